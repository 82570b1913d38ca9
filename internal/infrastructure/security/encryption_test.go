package security

import (
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := DeriveKey("operator passphrase")

	plain := `{"session":"blob","csrf":"token"}`
	sealed, err := Encrypt(plain, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if sealed == plain {
		t.Fatal("ciphertext equals plaintext")
	}
	if strings.Contains(sealed, "session") {
		t.Error("ciphertext leaks plaintext content")
	}

	opened, err := Decrypt(sealed, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if opened != plain {
		t.Errorf("round trip = %q, want %q", opened, plain)
	}
}

func TestEncryptProducesFreshNonce(t *testing.T) {
	key := DeriveKey("k")
	a, err := Encrypt("same input", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := Encrypt("same input", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Error("two encryptions of the same input are identical")
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	sealed, err := Encrypt("secret", DeriveKey("right"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(sealed, DeriveKey("wrong")); err == nil {
		t.Error("decryption with the wrong key succeeded")
	}
}

func TestDecryptGarbageFails(t *testing.T) {
	key := DeriveKey("k")
	if _, err := Decrypt("not base64 at all!!!", key); err == nil {
		t.Error("garbage input decrypted")
	}
	if _, err := Decrypt("YWJj", key); err == nil {
		t.Error("truncated ciphertext decrypted")
	}
}

func TestEncryptEmptyKeyRejected(t *testing.T) {
	if _, err := Encrypt("data", ""); err == nil {
		t.Error("empty key accepted")
	}
}

func TestDeriveKeyIsStable(t *testing.T) {
	if DeriveKey("pass") != DeriveKey("pass") {
		t.Error("derived key not deterministic")
	}
	if DeriveKey("pass") == DeriveKey("other") {
		t.Error("different passphrases derived the same key")
	}
	if len(DeriveKey("pass")) != 64 {
		t.Errorf("derived key length = %d hex chars, want 64", len(DeriveKey("pass")))
	}
}

func TestGenerateULID(t *testing.T) {
	a, b := GenerateULID(), GenerateULID()
	if len(a) != 26 {
		t.Errorf("ULID length = %d, want 26", len(a))
	}
	if a == b {
		t.Error("consecutive ULIDs collided")
	}
}

func TestGenerateSecureKey(t *testing.T) {
	a, err := GenerateSecureKey(64)
	if err != nil {
		t.Fatalf("GenerateSecureKey: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
	for _, c := range a {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Fatalf("key %q is not lowercase hex", a)
		}
	}
	b, err := GenerateSecureKey(64)
	if err != nil {
		t.Fatalf("GenerateSecureKey: %v", err)
	}
	if a == b {
		t.Error("consecutive keys collided")
	}
}
