package domain

import (
	"math/big"
	"testing"
)

func TestParseStake(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string // base units, decimal
		wantErr bool
	}{
		{name: "whole unit", in: "1", want: "1000000000000000000"},
		{name: "default bet", in: "0.0005", want: "500000000000000"},
		{name: "trailing zeroes", in: "0.50", want: "500000000000000000"},
		{name: "no leading zero", in: ".25", want: "250000000000000000"},
		{name: "zero", in: "0", want: "0"},
		{name: "empty", in: "", wantErr: true},
		{name: "negative", in: "-1", wantErr: true},
		{name: "too many decimals", in: "0.0000000000000000001", wantErr: true},
		{name: "garbage", in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStake(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseStake(%q) succeeded with %s, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStake(%q): %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Fatalf("ParseStake(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatStake(t *testing.T) {
	tests := []struct {
		name string
		in   string // base units, decimal
		want string
	}{
		{name: "zero", in: "0", want: "0"},
		{name: "whole unit", in: "1000000000000000000", want: "1"},
		{name: "default bet", in: "500000000000000", want: "0.0005"},
		{name: "one and a half", in: "1500000000000000000", want: "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := new(big.Int).SetString(tt.in, 10)
			if got := FormatStake(v); got != tt.want {
				t.Fatalf("FormatStake(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStakeRoundTrip(t *testing.T) {
	for _, s := range []string{"1", "0.0005", "2.75", "100"} {
		parsed, err := ParseStake(s)
		if err != nil {
			t.Fatalf("ParseStake(%q): %v", s, err)
		}
		if got := FormatStake(parsed); got != s {
			t.Fatalf("round trip %q -> %q", s, got)
		}
	}
}
