// Package ss58 encodes and decodes Substrate SS58 addresses.
package ss58

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// MaxPrefix is the largest network prefix the two-byte form can carry.
	MaxPrefix = 16383

	checksumLen = 2
)

var checksumContext = []byte("SS58PRE")

// Encode renders a public key or account id under the given network prefix.
func Encode(pub []byte, prefix uint16) (string, error) {
	if prefix > MaxPrefix {
		return "", fmt.Errorf("ss58 prefix %d out of range", prefix)
	}
	switch len(pub) {
	case 1, 2, 4, 8, 32, 33:
	default:
		return "", fmt.Errorf("ss58 payload length %d not supported", len(pub))
	}
	data := append(prefixBytes(prefix), pub...)
	sum := checksum(data)
	return base58.Encode(append(data, sum[:checksumLen]...)), nil
}

// Decode parses an address and returns the payload and network prefix.
func Decode(addr string) ([]byte, uint16, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, 0, fmt.Errorf("ss58 base58: %w", err)
	}
	if len(raw) < 3 {
		return nil, 0, fmt.Errorf("ss58 address too short")
	}

	var prefix uint16
	prefixLen := 1
	switch {
	case raw[0] < 64:
		prefix = uint16(raw[0])
	case raw[0] < 128:
		prefixLen = 2
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0b0011_1111
		prefix = uint16(lower) | uint16(upper)<<8
	default:
		return nil, 0, fmt.Errorf("ss58 reserved prefix byte 0x%02x", raw[0])
	}

	body := raw[:len(raw)-checksumLen]
	if len(body) <= prefixLen {
		return nil, 0, fmt.Errorf("ss58 address has no payload")
	}
	sum := checksum(body)
	if !bytes.Equal(sum[:checksumLen], raw[len(raw)-checksumLen:]) {
		return nil, 0, fmt.Errorf("ss58 checksum mismatch")
	}
	return append([]byte(nil), body[prefixLen:]...), prefix, nil
}

func prefixBytes(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	first := byte((prefix&0b0000_0000_1111_1100)>>2) | 0b0100_0000
	second := byte(prefix>>8) | byte(prefix&0b11)<<6
	return []byte{first, second}
}

func checksum(data []byte) [64]byte {
	return blake2b.Sum512(append(append([]byte(nil), checksumContext...), data...))
}
