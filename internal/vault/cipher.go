// Package vault provides at-rest encryption for reveal secrets. Secrets are
// sealed with AES-256-GCM under a key derived from the operator passphrase via
// PBKDF2, so a database dump alone is not enough to reveal on anyone's behalf.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// boxVersion identifies the sealed-blob layout for forward migration.
	boxVersion = 1

	saltLen = 32
	keyLen  = 32 // AES-256

	// pbkdf2Iterations follows current OWASP guidance for PBKDF2-SHA256.
	pbkdf2Iterations = 480_000
)

// Box seals and opens secret blobs with a passphrase-derived key. A fresh salt
// and nonce are drawn per Seal, so identical secrets never produce identical
// ciphertexts.
type Box struct {
	passphrase []byte
}

// NewBox returns a Box bound to the given passphrase.
func NewBox(passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("vault: passphrase must not be empty")
	}
	return &Box{passphrase: []byte(passphrase)}, nil
}

// sealedBlob is the JSON envelope stored in the database.
type sealedBlob struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Seal encrypts plaintext and returns a self-describing JSON blob.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("vault: generate salt: %w", err)
	}

	gcm, err := b.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}

	blob := sealedBlob{
		Version:    boxVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, plaintext, nil),
	}
	out, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("vault: encode sealed blob: %w", err)
	}
	return out, nil
}

// Open decrypts a blob produced by Seal. It fails if the blob was tampered
// with or sealed under a different passphrase.
func (b *Box) Open(data []byte) ([]byte, error) {
	var blob sealedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("vault: decode sealed blob: %w", err)
	}
	if blob.Version != boxVersion {
		return nil, fmt.Errorf("vault: unsupported blob version %d", blob.Version)
	}
	if len(blob.Salt) != saltLen {
		return nil, fmt.Errorf("vault: malformed salt (%d bytes)", len(blob.Salt))
	}

	gcm, err := b.aead(blob.Salt)
	if err != nil {
		return nil, err
	}
	if len(blob.Nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("vault: malformed nonce (%d bytes)", len(blob.Nonce))
	}

	plaintext, err := gcm.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("vault: open sealed blob: %w", err)
	}
	return plaintext, nil
}

func (b *Box) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(b.passphrase, salt, pbkdf2Iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init gcm: %w", err)
	}
	return gcm, nil
}
