package settlement

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

func TestParseFelt(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string // decimal
		wantErr bool
	}{
		{name: "hex", in: "0x64", want: "100"},
		{name: "hex uppercase prefix", in: "0X64", want: "100"},
		{name: "decimal", in: "100", want: "100"},
		{name: "zero", in: "0x0", want: "0"},
		{name: "whitespace trimmed", in: " 0x1 ", want: "1"},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "0xzz", wantErr: true},
		{name: "negative", in: "-5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFelt(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseFelt(%q) succeeded, want error", tt.in)
				}
				if !errors.Is(err, domain.ErrDecodeFailure) {
					t.Fatalf("parseFelt(%q) error = %v, want ErrDecodeFailure", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFelt(%q): %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Fatalf("parseFelt(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFeltBool(t *testing.T) {
	if v, err := parseFeltBool("0x1"); err != nil || !v {
		t.Fatalf("parseFeltBool(0x1) = %v, %v", v, err)
	}
	if v, err := parseFeltBool("0x0"); err != nil || v {
		t.Fatalf("parseFeltBool(0x0) = %v, %v", v, err)
	}
	if _, err := parseFeltBool("0x2"); !errors.Is(err, domain.ErrDecodeFailure) {
		t.Fatalf("parseFeltBool(0x2) error = %v, want ErrDecodeFailure", err)
	}
}

func TestU256RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		val  string // decimal
	}{
		{name: "zero", val: "0"},
		{name: "one stake unit", val: "1000000000000000000"},
		{name: "half milli stake", val: "500000000000000"},
		{name: "above 128 bits", val: "340282366920938463463374607431768211456"}, // 2^128
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := new(big.Int).SetString(tt.val, 10)
			low, high, err := encodeU256(v)
			if err != nil {
				t.Fatalf("encodeU256(%s): %v", tt.val, err)
			}
			got, err := parseU256(low, high)
			if err != nil {
				t.Fatalf("parseU256(%s, %s): %v", low, high, err)
			}
			if got.Cmp(v) != 0 {
				t.Fatalf("round trip = %s, want %s", got, tt.val)
			}
		})
	}
}

func TestParseU256RejectsWideLimbs(t *testing.T) {
	// 2^128 cannot be a limb.
	if _, err := parseU256("0x100000000000000000000000000000000", "0x0"); !errors.Is(err, domain.ErrDecodeFailure) {
		t.Fatalf("wide low limb error = %v, want ErrDecodeFailure", err)
	}
}

func TestDecodeShortString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		// "BTC $100k?" packed as a felt.
		{name: "ascii payload", in: "0x42544320243130306b3f", want: "BTC $100k?"},
		{name: "zero falls back", in: "0x0", want: questionPlaceholder},
		{name: "non-printable falls back", in: "0x01ff02", want: questionPlaceholder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeShortString(tt.in)
			if err != nil {
				t.Fatalf("decodeShortString(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("decodeShortString(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCommitBatchOrder(t *testing.T) {
	stake := new(big.Int).SetUint64(500_000_000_000_000) // 0.0005 units
	calls, err := CommitBatch("0xtoken", "0xmarket", "0xhash", stake)
	if err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].Entrypoint != "approve" || calls[0].Contract != "0xtoken" {
		t.Fatalf("first call = %s on %s, want approve on 0xtoken", calls[0].Entrypoint, calls[0].Contract)
	}
	if calls[1].Entrypoint != "commit" || calls[1].Contract != "0xmarket" {
		t.Fatalf("second call = %s on %s, want commit on 0xmarket", calls[1].Entrypoint, calls[1].Contract)
	}
	if calls[0].Calldata[0] != "0xmarket" {
		t.Fatalf("approve spender = %s, want the market address", calls[0].Calldata[0])
	}
	if calls[1].Calldata[0] != "0xhash" {
		t.Fatalf("commit calldata[0] = %s, want the commitment hash", calls[1].Calldata[0])
	}
}

func TestCommitBatchRejectsZeroStake(t *testing.T) {
	if _, err := CommitBatch("0xtoken", "0xmarket", "0xhash", big.NewInt(0)); err == nil {
		t.Fatal("CommitBatch accepted a zero stake")
	}
}

func TestRevealCallRejectsInvalidVote(t *testing.T) {
	if _, err := RevealCall("0xmarket", domain.VoteNone, "0xsecret"); err == nil {
		t.Fatal("RevealCall accepted the none sentinel")
	}
}
