// Package chain is the boundary to Substrate nodes: a narrow Handle over the
// node's JSON-RPC API, the known-chain registry, and the derived queries the
// signer needs (chain info snapshot, identity display names, fee estimates).
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
)

// Handle is a live connection to one chain.
type Handle interface {
	GenesisHash(ctx context.Context) (string, error)
	RuntimeVersion(ctx context.Context) (RuntimeVersion, error)
	ChainName(ctx context.Context) (string, error)
	Properties(ctx context.Context) (Properties, error)
	// RuntimeMetadata returns the SCALE-encoded metadata blob, magic included.
	RuntimeMetadata(ctx context.Context) ([]byte, error)
	// Storage returns nil when the key holds no value.
	Storage(ctx context.Context, key []byte) ([]byte, error)
	// QueryCallInfo dry-runs fee computation for call, charging the length
	// fee as if the extrinsic were length bytes long.
	QueryCallInfo(ctx context.Context, call []byte, length uint32) (DispatchInfo, error)
	Close()
}

type RuntimeVersion struct {
	SpecName           string `json:"specName"`
	ImplName           string `json:"implName"`
	SpecVersion        uint32 `json:"specVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
}

// Properties are the chain's system_properties, with single-token values
// picked out of the list forms some chains report.
type Properties struct {
	SS58Format    *uint16
	TokenSymbol   string
	TokenDecimals *uint8
}

// DispatchInfo is TransactionPayment's RuntimeDispatchInfo.
type DispatchInfo struct {
	RefTime    uint64
	ProofSize  uint64
	Class      uint8
	PartialFee *big.Int
}

// ParseProperties decodes a system_properties response.
func ParseProperties(raw json.RawMessage) (Properties, error) {
	var body struct {
		SS58Format    *uint16         `json:"ss58Format"`
		TokenSymbol   json.RawMessage `json:"tokenSymbol"`
		TokenDecimals json.RawMessage `json:"tokenDecimals"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Properties{}, fmt.Errorf("decode system_properties: %w", err)
	}
	props := Properties{SS58Format: body.SS58Format}

	if len(body.TokenSymbol) > 0 && string(body.TokenSymbol) != "null" {
		var symbols []string
		if err := json.Unmarshal(body.TokenSymbol, &symbols); err != nil {
			var one string
			if err := json.Unmarshal(body.TokenSymbol, &one); err != nil {
				return Properties{}, fmt.Errorf("decode tokenSymbol: %w", err)
			}
			symbols = []string{one}
		}
		if len(symbols) > 0 {
			props.TokenSymbol = symbols[0]
		}
	}

	if len(body.TokenDecimals) > 0 && string(body.TokenDecimals) != "null" {
		var decimals []int
		if err := json.Unmarshal(body.TokenDecimals, &decimals); err != nil {
			var one int
			if err := json.Unmarshal(body.TokenDecimals, &one); err != nil {
				return Properties{}, fmt.Errorf("decode tokenDecimals: %w", err)
			}
			decimals = []int{one}
		}
		if len(decimals) > 0 {
			if decimals[0] < 0 || decimals[0] > 255 {
				return Properties{}, fmt.Errorf("tokenDecimals %d out of range", decimals[0])
			}
			d := uint8(decimals[0])
			props.TokenDecimals = &d
		}
	}
	return props, nil
}
