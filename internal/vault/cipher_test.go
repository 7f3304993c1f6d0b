package vault

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := NewBox("correct horse battery staple")
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	secret := []byte("0x9f2a7c41e88b03d6a1f5e9c2b7d40a6318ce5f90d2b4a7e6c1359f8024bd6e73")
	sealed, err := box.Seal(secret)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, secret) {
		t.Fatal("sealed blob contains plaintext secret")
	}

	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, secret) {
		t.Fatalf("round trip mismatch: got %q, want %q", opened, secret)
	}
}

func TestSealIsNonDeterministic(t *testing.T) {
	box, err := NewBox("pass")
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	secret := []byte("same secret")
	a, err := box.Seal(secret)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b, err := box.Seal(secret)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two seals of the same secret produced identical blobs")
	}
}

func TestOpenRejectsWrongPassphrase(t *testing.T) {
	box, err := NewBox("right")
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	sealed, err := box.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	wrong, err := NewBox("wrong")
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	if _, err := wrong.Open(sealed); err == nil {
		t.Fatal("Open succeeded under the wrong passphrase")
	}
}

func TestOpenRejectsTamperedBlob(t *testing.T) {
	box, err := NewBox("pass")
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	sealed, err := box.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	// Flip one ciphertext byte inside the JSON envelope.
	tampered := bytes.Replace(sealed, []byte(`"ciphertext":"`), []byte(`"ciphertext":"A`), 1)
	if _, err := box.Open(tampered); err == nil {
		t.Fatal("Open succeeded on a tampered blob")
	}
}

func TestNewBoxRejectsEmptyPassphrase(t *testing.T) {
	if _, err := NewBox(""); err == nil {
		t.Fatal("NewBox accepted an empty passphrase")
	}
}
