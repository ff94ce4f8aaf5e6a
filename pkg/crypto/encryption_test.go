package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}

	enc, err := NewEncryptor(key, 1)
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty", ""},
		{"short", "hello"},
		{"api_key", "abc123XYZ789"},
		{"long", "an exchange API secret long enough to span multiple AES blocks without padding tricks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := enc.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if !strings.HasPrefix(ciphertext, "ENC[v1]:") {
				t.Errorf("ciphertext missing version prefix: %s", ciphertext)
			}

			decrypted, err := enc.Decrypt(ciphertext)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if decrypted != tt.plaintext {
				t.Errorf("decrypted = %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptDifferentCiphertexts(t *testing.T) {
	key := make([]byte, KeySize)
	enc, _ := NewEncryptor(key, 1)

	c1, _ := enc.Encrypt("same-api-key")
	c2, _ := enc.Encrypt("same-api-key")

	// Random nonce: same plaintext must not repeat on the wire.
	if c1 == c2 {
		t.Error("expected different ciphertexts for same plaintext")
	}
}

func TestInvalidKey(t *testing.T) {
	_, err := NewEncryptor([]byte("short"), 1)
	if err != ErrInvalidKey {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestDecryptInvalidCiphertext(t *testing.T) {
	key := make([]byte, KeySize)
	enc, _ := NewEncryptor(key, 1)

	invalids := []string{
		"",
		"not-encrypted",
		"ENC[v1]:",           // empty data
		"ENC[v1]:!!!invalid", // invalid base64
	}

	for _, invalid := range invalids {
		if _, err := enc.Decrypt(invalid); err == nil {
			t.Errorf("expected error for invalid ciphertext: %s", invalid)
		}
	}
}

func TestDecryptWrongKey(t *testing.T) {
	keyA := make([]byte, KeySize)
	keyB := make([]byte, KeySize)
	keyB[0] = 1

	encA, _ := NewEncryptor(keyA, 1)
	encB, _ := NewEncryptor(keyB, 1)

	ciphertext, _ := encA.Encrypt("secret")
	if _, err := encB.Decrypt(ciphertext); err != ErrDecryptionFailed {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		ciphertext string
		expected   int
	}{
		{"ENC[v1]:data", 1},
		{"ENC[v2]:data", 2},
		{"ENC[v10]:data", 10},
		{"invalid", 0},
		{"ENC[vX]:data", 0},
	}

	for _, tt := range tests {
		if got := ParseVersion(tt.ciphertext); got != tt.expected {
			t.Errorf("ParseVersion(%q) = %d, want %d", tt.ciphertext, got, tt.expected)
		}
	}
}

func TestKeyManagerRotation(t *testing.T) {
	k1 := make([]byte, KeySize)
	k2 := make([]byte, KeySize)
	k2[0] = 7
	t.Setenv(envKeyPrefix, base64.StdEncoding.EncodeToString(k1))
	t.Setenv(envKeyPrefix+"_V2", base64.StdEncoding.EncodeToString(k2))

	km, err := NewKeyManager()
	if err != nil {
		t.Fatalf("NewKeyManager failed: %v", err)
	}
	if km.CurrentVersion() != 2 {
		t.Fatalf("CurrentVersion = %d, want 2", km.CurrentVersion())
	}

	// Ciphertext sealed under v1 must still decrypt after rotation to v2.
	v1, _ := NewEncryptor(k1, 1)
	old, _ := v1.Encrypt("legacy-secret")
	got, err := km.Decrypt(old)
	if err != nil {
		t.Fatalf("Decrypt v1 ciphertext: %v", err)
	}
	if got != "legacy-secret" {
		t.Errorf("decrypted = %q, want %q", got, "legacy-secret")
	}

	fresh, err := km.Encrypt("new-secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ParseVersion(fresh) != 2 {
		t.Errorf("new ciphertext sealed with v%d, want v2", ParseVersion(fresh))
	}
}
