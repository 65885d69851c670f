// Package keys derives ed25519 seed material from a BIP-39 mnemonic along
// the SLIP-10 path m/44'/coin'/0'/0'/0'. Only the account command uses it.
package keys

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/tyler-smith/go-bip39"

	clierr "github.com/ggonzalez94/dotsign/internal/errors"
	"github.com/ggonzalez94/dotsign/internal/ss58"
)

// SLIP-44 coin types.
const (
	CoinPolkadot uint32 = 354
	CoinKusama   uint32 = 434
)

const hardened uint32 = 0x80000000

// Host hands out seed material for a coin type.
type Host interface {
	DeriveKey(coinType uint32) ([]byte, error)
}

// MnemonicHost derives keys from a mnemonic held in memory.
type MnemonicHost struct {
	mnemonic   string
	passphrase string
}

func NewMnemonicHost(mnemonic, passphrase string) (*MnemonicHost, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, clierr.New(clierr.CodeUsage, "invalid BIP-39 mnemonic")
	}
	return &MnemonicHost{mnemonic: mnemonic, passphrase: passphrase}, nil
}

// FromEnv reads the mnemonic from the named environment variable.
func FromEnv(name, passphrase string) (*MnemonicHost, error) {
	v := os.Getenv(name)
	if strings.TrimSpace(v) == "" {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("environment variable %s is not set", name))
	}
	return NewMnemonicHost(v, passphrase)
}

// FromFile reads the mnemonic from path.
func FromFile(path, passphrase string) (*MnemonicHost, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "read mnemonic file", err)
	}
	return NewMnemonicHost(string(buf), passphrase)
}

func (h *MnemonicHost) DeriveKey(coinType uint32) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(h.mnemonic, h.passphrase)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "mnemonic to seed", err)
	}
	return DerivePath(seed, []uint32{44, coinType, 0, 0, 0})
}

// DerivePath walks a SLIP-10 ed25519 path from seed. Every index is
// hardened; ed25519 has no public derivation.
func DerivePath(seed []byte, path []uint32) ([]byte, error) {
	key, chainCode := master(seed)
	for _, idx := range path {
		if idx >= hardened {
			return nil, fmt.Errorf("path index %d out of range", idx)
		}
		key, chainCode = child(key, chainCode, idx|hardened)
	}
	return key, nil
}

func master(seed []byte) ([]byte, []byte) {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

func child(key, chainCode []byte, index uint32) ([]byte, []byte) {
	data := make([]byte, 0, 37)
	data = append(data, 0)
	data = append(data, key...)
	data = binary.BigEndian.AppendUint32(data, index)
	mac := hmac.New(sha512.New, chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

// PublicKey returns the ed25519 public key for a 32-byte seed.
func PublicKey(seed []byte) ([]byte, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey), nil
}

// Address renders the seed's public key as an SS58 address.
func Address(seed []byte, prefix uint16) (string, error) {
	pub, err := PublicKey(seed)
	if err != nil {
		return "", err
	}
	return ss58.Encode(pub, prefix)
}
