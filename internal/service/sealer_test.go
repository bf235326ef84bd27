package service

import (
	"errors"
	"testing"
)

func TestSealerRoundTripBoundToInstallation(t *testing.T) {
	sealer, err := NewSealer("a-long-enough-passphrase")
	if err != nil {
		t.Fatalf("new sealer failed: %v", err)
	}
	sealed, err := sealer.Seal([]byte(`{"password":"pw"}`), "install-a")
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	again, _ := sealer.Seal([]byte(`{"password":"pw"}`), "install-a")
	if sealed == again {
		t.Fatalf("nonce must differ between seals")
	}
	plain, err := sealer.Open(sealed, "install-a")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if string(plain) != `{"password":"pw"}` {
		t.Fatalf("unexpected plaintext %s", plain)
	}
	if _, err := sealer.Open(sealed, "install-b"); !errors.Is(err, ErrSealedPayloadInvalid) {
		t.Fatalf("foreign installation want ErrSealedPayloadInvalid got %v", err)
	}
	if _, err := sealer.Open("not-base64!!", "install-a"); !errors.Is(err, ErrSealedPayloadInvalid) {
		t.Fatalf("garbage want ErrSealedPayloadInvalid got %v", err)
	}
}

func TestSealerKeyRules(t *testing.T) {
	if _, err := NewSealer("short"); !errors.Is(err, ErrSealKeyInvalid) {
		t.Fatalf("short passphrase want ErrSealKeyInvalid got %v", err)
	}
	ephemeral, err := NewSealer("")
	if err != nil {
		t.Fatalf("empty passphrase must fall back to an ephemeral key: %v", err)
	}
	other, _ := NewSealer("")
	sealed, _ := ephemeral.Seal([]byte("x"), "id")
	if _, err := other.Open(sealed, "id"); err == nil {
		t.Fatalf("ephemeral keys must differ")
	}
}
