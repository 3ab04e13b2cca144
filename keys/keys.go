// Package keys derives wallet accounts from BIP-39 mnemonics. Derivation is
// local: SLIP-0010 ed25519 over the BIP-39 seed, hardened indices only.
package keys

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
)

// Network selects the cluster an account is used on.
type Network string

const (
	MainnetBeta Network = "mainnet-beta"
	Testnet     Network = "testnet"
	Devnet      Network = "devnet"
)

// DefaultDerivablePath is used when an account carries no path.
const DefaultDerivablePath = "m/44'/501'/0'/0'"

const hardenedOffset = 0x80000000

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic phrase")
	ErrInvalidPath     = errors.New("invalid derivation path")
	ErrUnknownNetwork  = errors.New("unknown network")
)

// Account is a derived ed25519 key pair.
type Account struct {
	Network   Network
	PublicKey string
	SecretKey ed25519.PrivateKey
}

// EncodedSecretKey returns the base58 form of the 64-byte secret key.
func (a Account) EncodedSecretKey() string {
	return base58.Encode(a.SecretKey)
}

// NormalizePhrase collapses any whitespace between mnemonic words.
func NormalizePhrase(phrase string) string {
	return strings.Join(strings.Fields(phrase), " ")
}

// DeriveAccount derives the account at derivablePath from phrase.
func DeriveAccount(phrase string, network Network, derivablePath string) (Account, error) {
	switch network {
	case MainnetBeta, Testnet, Devnet:
	default:
		return Account{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}

	mnemonic := NormalizePhrase(phrase)
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}

	if derivablePath == "" {
		derivablePath = DefaultDerivablePath
	}
	indices, err := parsePath(derivablePath)
	if err != nil {
		return Account{}, err
	}

	key, chain := masterKey(seed)
	for _, idx := range indices {
		key, chain = childKey(key, chain, idx)
	}

	secret := ed25519.NewKeyFromSeed(key)
	return Account{
		Network:   network,
		PublicKey: base58.Encode(secret.Public().(ed25519.PublicKey)),
		SecretKey: secret,
	}, nil
}

func parsePath(path string) ([]uint32, error) {
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	out := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		// ed25519 supports hardened derivation only.
		if !strings.HasSuffix(p, "'") {
			return nil, fmt.Errorf("%w: non-hardened segment %q", ErrInvalidPath, p)
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(p, "'"), 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
		out = append(out, uint32(n)+hardenedOffset)
	}
	return out, nil
}

func masterKey(seed []byte) ([]byte, []byte) {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

func childKey(key, chain []byte, index uint32) ([]byte, []byte) {
	data := make([]byte, 0, 37)
	data = append(data, 0x00)
	data = append(data, key...)
	data = binary.BigEndian.AppendUint32(data, index)

	mac := hmac.New(sha512.New, chain)
	mac.Write(data)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}
