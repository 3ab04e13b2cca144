// Package metadata seals and opens the wallet metadata blob escrowed with the
// custom share. The blob is a JSON envelope
//
//	{"nonce":"<base64>","metadata_ciphertext":"<base64>"}
//
// whose ciphertext is a NaCl secretbox keyed by SHA-256 of the seed phrase.
package metadata

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var (
	ErrMalformedEnvelope = errors.New("malformed metadata envelope")
	ErrDecrypt           = errors.New("metadata decryption failed")
	ErrEmptySeedPhrase   = errors.New("empty seed phrase")
)

// Wallet is the decrypted metadata of a restored wallet.
type Wallet struct {
	DeviceName   string `json:"device_name"`
	Email        string `json:"email"`
	AuthProvider string `json:"auth_provider"`
	PhoneNumber  string `json:"phone_number"`
}

func key(seedPhrase string) *[32]byte {
	k := sha256.Sum256([]byte(seedPhrase))
	return &k
}

// Decrypt opens an encrypted metadata envelope with the seed phrase.
func Decrypt(seedPhrase, envelope string) (*Wallet, error) {
	if seedPhrase == "" {
		return nil, ErrEmptySeedPhrase
	}
	if !gjson.Valid(envelope) {
		return nil, ErrMalformedEnvelope
	}
	fields := gjson.GetMany(envelope, "nonce", "metadata_ciphertext")
	if !fields[0].Exists() || !fields[1].Exists() {
		return nil, ErrMalformedEnvelope
	}

	nonceRaw, err := base64.StdEncoding.DecodeString(fields[0].String())
	if err != nil || len(nonceRaw) != nonceSize {
		return nil, fmt.Errorf("%w: nonce", ErrMalformedEnvelope)
	}
	box, err := base64.StdEncoding.DecodeString(fields[1].String())
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext", ErrMalformedEnvelope)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], nonceRaw)
	plain, ok := secretbox.Open(nil, box, &nonce, key(seedPhrase))
	if !ok {
		return nil, ErrDecrypt
	}

	var w Wallet
	if err := json.Unmarshal(plain, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return &w, nil
}

// Encrypt seals w into an envelope that Decrypt opens with the same seed phrase.
func Encrypt(seedPhrase string, w Wallet, random io.Reader) (string, error) {
	if seedPhrase == "" {
		return "", ErrEmptySeedPhrase
	}
	plain, err := json.Marshal(w)
	if err != nil {
		return "", err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(random, nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nil, plain, &nonce, key(seedPhrase))

	out, err := json.Marshal(map[string]string{
		"nonce":               base64.StdEncoding.EncodeToString(nonce[:]),
		"metadata_ciphertext": base64.StdEncoding.EncodeToString(box),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
