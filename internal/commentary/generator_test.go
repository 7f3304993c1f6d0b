package commentary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type stubFeed struct {
	price float64
	err   error
}

func (s stubFeed) BTCPriceUSD(context.Context) (float64, error) {
	return s.price, s.err
}

type stubCompleter struct {
	text string
	err  error
}

func (s stubCompleter) Complete(context.Context, string) (string, error) {
	return s.text, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFallbackNote(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		contains string
	}{
		{name: "above threshold", price: 104_500, contains: "broke $100k"},
		{name: "below threshold", price: 97_420, contains: "below the $100k threshold"},
		{name: "below mentions price", price: 97_420, contains: "$97,420"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FallbackNote(tt.price)
			if !strings.Contains(got, tt.contains) {
				t.Fatalf("FallbackNote(%v) = %q, want substring %q", tt.price, got, tt.contains)
			}
		})
	}
}

func TestGenerateUsesCompletion(t *testing.T) {
	g := NewGenerator(stubFeed{price: 101_000}, stubCompleter{text: "  desk note  "}, discardLogger())
	note := g.Generate(context.Background(), 3)
	if !note.Generated {
		t.Fatal("note not marked as generated")
	}
	if note.Text != "desk note" {
		t.Fatalf("text = %q", note.Text)
	}
	if note.BTCPrice != 101_000 {
		t.Fatalf("price = %v", note.BTCPrice)
	}
}

func TestGenerateFallsBackOnCompletionError(t *testing.T) {
	g := NewGenerator(stubFeed{price: 97_000}, stubCompleter{err: errors.New("rate limited")}, discardLogger())
	note := g.Generate(context.Background(), 3)
	if note.Generated {
		t.Fatal("note marked as generated despite completion failure")
	}
	if note.Text != FallbackNote(97_000) {
		t.Fatalf("text = %q, want rule-based note", note.Text)
	}
}

func TestGenerateAnchorsPriceWhenFeedDown(t *testing.T) {
	g := NewGenerator(stubFeed{err: errors.New("timeout")}, nil, discardLogger())
	note := g.Generate(context.Background(), 1)
	if note.BTCPrice != fallbackPrice {
		t.Fatalf("price = %v, want anchor %v", note.BTCPrice, fallbackPrice)
	}
	if note.Text == "" {
		t.Fatal("empty note text")
	}
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "0"},
		{in: 999, want: "999"},
		{in: 1_000, want: "1,000"},
		{in: 97_420, want: "97,420"},
		{in: 1_234_567, want: "1,234,567"},
	}
	for _, tt := range tests {
		if got := formatUSD(tt.in); got != tt.want {
			t.Errorf("formatUSD(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
