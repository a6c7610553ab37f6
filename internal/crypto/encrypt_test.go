package crypto

import (
	"strings"
	"testing"
)

func testKey(t *testing.T, secret string) []byte {
	t.Helper()
	key, err := DeriveKey(secret)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	return key
}

func TestDeriveKey(t *testing.T) {
	key := testKey(t, "connection-field-secret")
	if len(key) != 32 {
		t.Fatalf("expected a 32-byte AES key, got %d bytes", len(key))
	}

	again := testKey(t, "connection-field-secret")
	if string(key) != string(again) {
		t.Error("the same secret must derive the same key")
	}
	other := testKey(t, "a-different-secret")
	if string(key) == string(other) {
		t.Error("different secrets must derive different keys")
	}

	if _, err := DeriveKey(""); err == nil {
		t.Error("expected error for an empty secret")
	}
}

func TestFieldRoundTrip(t *testing.T) {
	key := testKey(t, "connection-field-secret")

	password := "gauge-api-password"
	sealed, err := EncryptField(password, key)
	if err != nil {
		t.Fatalf("EncryptField: %v", err)
	}
	if sealed == password {
		t.Fatal("ciphertext must not equal the plaintext")
	}
	if !strings.HasPrefix(sealed, "enc:v1:") {
		t.Errorf("expected versioned prefix, got %q", sealed)
	}

	opened, err := DecryptField(sealed, key)
	if err != nil {
		t.Fatalf("DecryptField: %v", err)
	}
	if opened != password {
		t.Errorf("round trip changed the value: %q", opened)
	}
}

func TestEncryptField_RandomNonce(t *testing.T) {
	key := testKey(t, "connection-field-secret")

	a, err := EncryptField("same-credential", key)
	if err != nil {
		t.Fatalf("EncryptField: %v", err)
	}
	b, err := EncryptField("same-credential", key)
	if err != nil {
		t.Fatalf("EncryptField: %v", err)
	}
	if a == b {
		t.Fatal("repeated encryptions must not reuse a nonce")
	}
}

func TestDecryptField_Compatibility(t *testing.T) {
	key := testKey(t, "connection-field-secret")

	// Empty values pass straight through in both directions.
	if out, err := EncryptField("", key); err != nil || out != "" {
		t.Errorf("empty encrypt: got %q, %v", out, err)
	}
	if out, err := DecryptField("", key); err != nil || out != "" {
		t.Errorf("empty decrypt: got %q, %v", out, err)
	}

	// Settings written before encryption was enabled have no prefix and
	// are returned as-is.
	if out, err := DecryptField("plain-old-password", key); err != nil || out != "plain-old-password" {
		t.Errorf("plaintext passthrough: got %q, %v", out, err)
	}

	if _, err := DecryptField("enc:v9:ffff", key); err == nil {
		t.Error("expected error for an unknown envelope version")
	}
}

func TestDecryptField_WrongKey(t *testing.T) {
	sealed, err := EncryptField("credential", testKey(t, "secret-one"))
	if err != nil {
		t.Fatalf("EncryptField: %v", err)
	}
	if _, err := DecryptField(sealed, testKey(t, "secret-two")); err == nil {
		t.Error("expected authentication failure with the wrong key")
	}
}
