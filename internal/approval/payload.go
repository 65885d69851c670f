package approval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"

	clierr "github.com/ggonzalez94/dotsign/internal/errors"
	"github.com/ggonzalez94/dotsign/internal/metadata"
	"github.com/ggonzalez94/dotsign/internal/ss58"
)

// Payload is the signer payload a dapp hands over for approval, in the
// polkadot.js SignerPayloadJSON shape.
type Payload struct {
	Address            string   `json:"address" validate:"required"`
	BlockHash          string   `json:"blockHash,omitempty" validate:"omitempty,startswith=0x,hexadecimal"`
	BlockNumber        string   `json:"blockNumber,omitempty"`
	Era                string   `json:"era,omitempty" validate:"omitempty,startswith=0x,hexadecimal"`
	GenesisHash        string   `json:"genesisHash" validate:"required,startswith=0x,len=66,hexadecimal"`
	Method             string   `json:"method" validate:"required,startswith=0x,hexadecimal"`
	Nonce              string   `json:"nonce,omitempty"`
	SpecVersion        Uint32   `json:"specVersion"`
	Tip                string   `json:"tip,omitempty"`
	TransactionVersion Uint32   `json:"transactionVersion"`
	SignedExtensions   []string `json:"signedExtensions,omitempty"`
	Version            int      `json:"version"`
}

// Uint32 accepts a JSON number, a decimal string or a 0x-prefixed hex
// string.
type Uint32 uint32

func (u *Uint32) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '"' {
		var n uint32
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*u = Uint32(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	var (
		n   uint64
		err error
	)
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		n, err = hexutil.DecodeUint64(normalizeHexQuantity(s))
		if err == nil && n > 0xffffffff {
			err = fmt.Errorf("%s overflows u32", s)
		}
	} else {
		n, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return fmt.Errorf("invalid u32 %q: %w", s, err)
	}
	*u = Uint32(n)
	return nil
}

func (u Uint32) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.Uint64(u).String())
}

// normalizeHexQuantity strips leading zeros, which signer payloads carry
// (0x000f4240) but hexutil quantities reject.
func normalizeHexQuantity(s string) string {
	digits := strings.TrimLeft(s[2:], "0")
	if digits == "" {
		digits = "0"
	}
	return "0x" + digits
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func payloadValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ParsePayload decodes and validates a signer payload. Every failure is a
// malformed-payload error.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, clierr.Wrap(clierr.CodeMalformed, "decode signer payload", err)
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func (p Payload) Validate() error {
	if err := payloadValidator().Struct(p); err != nil {
		return clierr.Wrap(clierr.CodeMalformed, "invalid signer payload", err)
	}
	if _, err := p.Call(); err != nil {
		return err
	}
	if _, err := p.Sender(); err != nil {
		return err
	}
	return nil
}

// Call returns the raw call bytes.
func (p Payload) Call() ([]byte, error) {
	call, err := hexutil.Decode(p.Method)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeMalformed, "decode call data", err)
	}
	if len(call) < 2 {
		return nil, clierr.New(clierr.CodeMalformed, "call data shorter than a call index")
	}
	return call, nil
}

// Sender returns the signing account's public key.
func (p Payload) Sender() ([]byte, error) {
	pub, _, err := ss58.Decode(p.Address)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeMalformed, "decode signer address", err)
	}
	return pub, nil
}

func (p Payload) Genesis() string {
	return metadata.NormalizeHash(p.GenesisHash)
}
