package crypto

import "testing"

func TestNoopRoundTrip(t *testing.T) {
	var a Noop
	in := []byte("super-secret-tsig-key")

	enc, err := a.Encrypt(in)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	dec, err := a.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(dec) != string(in) {
		t.Fatalf("round trip mismatch: got %q want %q", dec, in)
	}
}

func TestAESGCMRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	a, err := NewAESGCM(key)
	if err != nil {
		t.Fatalf("NewAESGCM: %v", err)
	}

	in := []byte("super-secret-tsig-key")
	enc, err := a.Encrypt(in)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if string(enc) == string(in) {
		t.Fatalf("ciphertext equals plaintext")
	}

	dec, err := a.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(dec) != string(in) {
		t.Fatalf("round trip mismatch: got %q want %q", dec, in)
	}
}

func TestAESGCMRejectsShortKey(t *testing.T) {
	if _, err := NewAESGCM([]byte("too-short")); err == nil {
		t.Fatal("expected error for non-32-byte key")
	}
}

func TestAESGCMDecryptRejectsTamperedCiphertext(t *testing.T) {
	key := make([]byte, 32)
	a, err := NewAESGCM(key)
	if err != nil {
		t.Fatalf("NewAESGCM: %v", err)
	}
	enc, err := a.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	enc[len(enc)-1] ^= 0xFF
	if _, err := a.Decrypt(enc); err == nil {
		t.Fatal("expected error decrypting tampered ciphertext")
	}
}
