package chain

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ggonzalez94/dotsign/internal/scale"
)

// LookupIdentity returns the on-chain display name registered for
// accountID in the Identity pallet. Every failure, including a chain without
// the pallet, yields ("", false).
func LookupIdentity(ctx context.Context, h Handle, accountID []byte, log *zap.Logger) (string, bool) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(accountID) != 32 {
		return "", false
	}
	raw, err := h.Storage(ctx, StorageMapKey("Identity", "IdentityOf", accountID))
	if err != nil {
		log.Warn("identity lookup failed", zap.Error(err))
		return "", false
	}
	if raw == nil {
		return "", false
	}
	name, err := DecodeDisplayName(raw)
	if err != nil {
		log.Warn("identity record not decodable", zap.Error(err))
		return "", false
	}
	if name == "" {
		return "", false
	}
	return name, true
}

// DecodeDisplayName reads the display field out of a SCALE-encoded identity
// Registration (judgements, deposit, then IdentityInfo with its additional
// fields first). It returns "" when the display field is not raw data.
func DecodeDisplayName(raw []byte) (string, error) {
	r := scale.NewReader(raw)

	judgements, err := r.ReadLength()
	if err != nil {
		return "", fmt.Errorf("judgements: %w", err)
	}
	for i := 0; i < judgements; i++ {
		if _, err := r.ReadU32(); err != nil { // registrar index
			return "", err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if kind > 6 {
			return "", fmt.Errorf("unknown judgement %d", kind)
		}
		if kind == 1 { // FeePaid(Balance)
			if _, err := r.ReadBytes(16); err != nil {
				return "", err
			}
		}
	}
	if _, err := r.ReadBytes(16); err != nil { // deposit
		return "", fmt.Errorf("deposit: %w", err)
	}

	additional, err := r.ReadLength()
	if err != nil {
		return "", fmt.Errorf("additional: %w", err)
	}
	for i := 0; i < additional*2; i++ {
		if _, err := readData(r); err != nil {
			return "", err
		}
	}

	display, err := readData(r)
	if err != nil {
		return "", fmt.Errorf("display: %w", err)
	}
	if display == nil || !utf8.Valid(display) {
		return "", nil
	}
	return string(display), nil
}

// readData decodes an identity Data value. Only Raw variants return bytes.
func readData(r *scale.Reader) ([]byte, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch {
	case tag == 0:
		return nil, nil
	case tag <= 33:
		return r.ReadBytes(int(tag) - 1)
	case tag <= 37:
		_, err := r.ReadBytes(32)
		return nil, err
	default:
		return nil, fmt.Errorf("unknown identity data tag %d", tag)
	}
}
