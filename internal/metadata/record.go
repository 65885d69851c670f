package metadata

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Record is the cached metadata snapshot for one chain. It is replaced
// wholesale on refresh and never mutated in place.
type Record struct {
	GenesisHash   string `json:"genesis_hash" validate:"required,startswith=0x,len=66,hexadecimal"`
	Chain         string `json:"chain" validate:"required,printable"`
	SS58Format    uint16 `json:"ss58_format" validate:"lte=16383"`
	TokenSymbol   string `json:"token_symbol" validate:"required,printable"`
	TokenDecimals uint8  `json:"token_decimals"`
	SpecVersion   uint32 `json:"spec_version"`
	// MetaCalls is the JSON-encoded CallTable the decoder works from.
	MetaCalls []byte `json:"meta_calls,omitempty"`
}

// KnownVersion is the (genesis hash, spec version) pair a dapp compares
// against before offering a metadata update.
type KnownVersion struct {
	GenesisHash string `json:"genesis_hash"`
	SpecVersion uint32 `json:"spec_version"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("printable", func(fl validator.FieldLevel) bool {
			return printable(fl.Field().String())
		})
	})
	return validate
}

// printable rejects line breaks, terminal escapes and other unprintable
// runes. These fields are shown verbatim in the consent prompt.
func printable(s string) bool {
	for _, r := range s {
		if r != ' ' && !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// Validate checks field constraints. It does not decode MetaCalls.
func (r Record) Validate() error {
	if err := recordValidator().Struct(r); err != nil {
		return fmt.Errorf("invalid metadata record: %w", err)
	}
	return nil
}

// NormalizeHash lowercases a genesis hash and ensures the 0x prefix.
func NormalizeHash(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if !strings.HasPrefix(h, "0x") {
		h = "0x" + h
	}
	return h
}

// Calls decodes the call table carried by the record.
func (r Record) Calls() (*CallTable, error) {
	if len(r.MetaCalls) == 0 {
		return nil, fmt.Errorf("record for %s carries no call metadata", r.GenesisHash)
	}
	var table CallTable
	if err := json.Unmarshal(r.MetaCalls, &table); err != nil {
		return nil, fmt.Errorf("decode call metadata: %w", err)
	}
	return &table, nil
}

// WithCalls returns a copy of r carrying table as its call metadata.
func (r Record) WithCalls(table *CallTable) (Record, error) {
	buf, err := json.Marshal(table)
	if err != nil {
		return Record{}, fmt.Errorf("encode call metadata: %w", err)
	}
	r.MetaCalls = buf
	return r, nil
}
