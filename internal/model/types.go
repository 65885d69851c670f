package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Chain     string    `json:"chain,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
}

// MetadataRecord is a cached record without its call table blob.
type MetadataRecord struct {
	GenesisHash   string   `json:"genesis_hash"`
	Chain         string   `json:"chain"`
	SS58Format    uint16   `json:"ss58_format"`
	TokenSymbol   string   `json:"token_symbol"`
	TokenDecimals uint8    `json:"token_decimals"`
	SpecVersion   uint32   `json:"spec_version"`
	Pallets       []string `json:"pallets,omitempty"`
	Calls         int      `json:"calls"`
}

type RefreshReport struct {
	Chain         string `json:"chain"`
	GenesisHash   string `json:"genesis_hash"`
	CachedVersion uint32 `json:"cached_version"`
	LiveVersion   uint32 `json:"live_version"`
	Outcome       string `json:"outcome"`
}

type MetadataWrite struct {
	Origin      string `json:"origin"`
	GenesisHash string `json:"genesis_hash"`
	SpecVersion uint32 `json:"spec_version"`
	Written     bool   `json:"written"`
}

type Confirmation struct {
	Origin      string `json:"origin"`
	GenesisHash string `json:"genesis_hash"`
	Decision    string `json:"decision"`
}

type DisclosureRow struct {
	Kind  string `json:"kind"`
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

type ChainInfo struct {
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	GenesisHash   string   `json:"genesis_hash"`
	SS58Format    uint16   `json:"ss58_format"`
	TokenSymbol   string   `json:"token_symbol"`
	TokenDecimals uint8    `json:"token_decimals"`
	Endpoints     []string `json:"endpoints"`
}

type AccountAddress struct {
	Chain      string `json:"chain"`
	CoinType   uint32 `json:"coin_type"`
	SS58Format uint16 `json:"ss58_format"`
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
}
