package metadata

import (
	"crypto/rand"
	"errors"
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	in := Wallet{DeviceName: "iPhone", Email: "alice@example.com", AuthProvider: "google", PhoneNumber: "+15550001"}

	env, err := Encrypt("seed words", in, rand.Reader)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	out, err := Decrypt("seed words", env)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if *out != in {
		t.Fatalf("metadata mismatch: %+v != %+v", *out, in)
	}
}

func TestDecryptWrongSeed(t *testing.T) {
	env, err := Encrypt("seed words", Wallet{Email: "a@b.c"}, rand.Reader)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := Decrypt("other words", env); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
}

func TestDecryptMalformed(t *testing.T) {
	cases := []string{
		"",
		"not json",
		`{"nonce":"AAAA"}`,
		`{"nonce":"AAAA","metadata_ciphertext":"AAAA"}`,
	}
	for _, c := range cases {
		if _, err := Decrypt("seed", c); !errors.Is(err, ErrMalformedEnvelope) {
			t.Fatalf("Decrypt(%q): expected ErrMalformedEnvelope, got %v", c, err)
		}
	}
	if _, err := Decrypt("", `{}`); !errors.Is(err, ErrEmptySeedPhrase) {
		t.Fatalf("expected ErrEmptySeedPhrase, got %v", err)
	}
}
