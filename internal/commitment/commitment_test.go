package commitment

import (
	"errors"
	"strings"
	"testing"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

func TestCompute_Deterministic(t *testing.T) {
	const secret = "0x7a3f9c2b11aa"

	first, err := Compute(domain.VoteYes, secret)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Compute(domain.VoteYes, secret)
		if err != nil {
			t.Fatalf("Compute (repeat %d): %v", i, err)
		}
		if again != first {
			t.Fatalf("Compute not deterministic: %q vs %q", again, first)
		}
	}
}

func TestCompute_VoteChangesCommitment(t *testing.T) {
	const secret = "0xdeadbeef"

	yes, err := Compute(domain.VoteYes, secret)
	if err != nil {
		t.Fatalf("Compute(yes): %v", err)
	}
	no, err := Compute(domain.VoteNo, secret)
	if err != nil {
		t.Fatalf("Compute(no): %v", err)
	}
	if yes == no {
		t.Fatal("commitments for opposite votes under the same secret must differ")
	}
}

func TestCompute_InvalidInputs(t *testing.T) {
	tests := []struct {
		name   string
		vote   domain.Vote
		secret string
	}{
		{"empty secret", domain.VoteYes, ""},
		{"whitespace secret", domain.VoteYes, "   "},
		{"bare 0x", domain.VoteNo, "0x"},
		{"non-hex after 0x", domain.VoteYes, "0xzzqq"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compute(tt.vote, tt.secret); !errors.Is(err, domain.ErrInvalidSecret) {
				t.Errorf("Compute(%v, %q) err = %v, want ErrInvalidSecret", tt.vote, tt.secret, err)
			}
		})
	}

	if _, err := Compute(domain.VoteNone, "0xabcd"); err == nil {
		t.Error("Compute must reject the zero vote sentinel")
	}
}

func TestCompute_RawTextSecret(t *testing.T) {
	// Hand-typed passphrases are hashed as raw bytes, not rejected.
	c, err := Compute(domain.VoteYes, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !strings.HasPrefix(c, "0x") || len(c) != 2+64 {
		t.Errorf("commitment %q is not a 32-byte hex digest", c)
	}
}

func TestCompute_BulkNonCollision(t *testing.T) {
	// Statistical check: across many sampled secrets and both votes, no two
	// commitments collide.
	seen := make(map[string]string, 2000)
	for i := 0; i < 1000; i++ {
		secret, err := NewSecret()
		if err != nil {
			t.Fatalf("NewSecret: %v", err)
		}
		for _, vote := range []domain.Vote{domain.VoteYes, domain.VoteNo} {
			c, err := Compute(vote, secret)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			key := vote.String() + ":" + secret
			if prev, dup := seen[c]; dup {
				t.Fatalf("collision between %s and %s", prev, key)
			}
			seen[c] = key
		}
	}
}

func TestNewSecret_FormatAndUniqueness(t *testing.T) {
	a, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	b, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	if !strings.HasPrefix(a, "0x") || len(a) != 2+64 {
		t.Errorf("secret %q is not 32 bytes of hex", a)
	}
	if a == b {
		t.Error("two generated secrets must not repeat")
	}
}
