// Package chaintest provides an in-memory chain.Handle.
package chaintest

import (
	"context"
	"encoding/hex"
	"math/big"
	"sync"

	"github.com/ggonzalez94/dotsign/internal/chain"
	"github.com/ggonzalez94/dotsign/internal/metadata/metadatatest"
)

const (
	MethodGenesisHash     = "GenesisHash"
	MethodRuntimeVersion  = "RuntimeVersion"
	MethodChainName       = "ChainName"
	MethodProperties      = "Properties"
	MethodRuntimeMetadata = "RuntimeMetadata"
	MethodStorage         = "Storage"
	MethodQueryCallInfo   = "QueryCallInfo"
)

// Handle serves canned responses. Errors set in Errs are returned for the
// named method instead of the canned value.
type Handle struct {
	Genesis  string
	Version  chain.RuntimeVersion
	Name     string
	Props    chain.Properties
	Metadata []byte
	// StorageData is keyed by hex-encoded storage key without 0x.
	StorageData map[string][]byte
	CallInfo    chain.DispatchInfo

	mu      sync.Mutex
	Errs    map[string]error
	calls   map[string]int
	lastLen uint32
	closed  bool
}

// New returns a Polkadot-like handle at specVersion serving the fixture
// runtime metadata.
func New(genesis string, specVersion uint32) *Handle {
	ss58 := uint16(0)
	decimals := uint8(10)
	return &Handle{
		Genesis:  genesis,
		Version:  chain.RuntimeVersion{SpecName: "polkadot", SpecVersion: specVersion, TransactionVersion: 26},
		Name:     "Polkadot",
		Props:    chain.Properties{SS58Format: &ss58, TokenSymbol: "DOT", TokenDecimals: &decimals},
		Metadata: metadatatest.RuntimeV14(),
		CallInfo: chain.DispatchInfo{RefTime: 1_000_000, ProofSize: 3_593, PartialFee: big.NewInt(157_000_000)},
	}
}

func (h *Handle) record(method string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.calls == nil {
		h.calls = map[string]int{}
	}
	h.calls[method]++
	return h.Errs[method]
}

// SetErr makes method fail with err; nil clears it.
func (h *Handle) SetErr(method string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Errs == nil {
		h.Errs = map[string]error{}
	}
	if err == nil {
		delete(h.Errs, method)
		return
	}
	h.Errs[method] = err
}

// Calls reports how many times method was invoked.
func (h *Handle) Calls(method string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[method]
}

// FetchCalls counts metadata downloads, the expensive part of a refresh.
func (h *Handle) FetchCalls() int {
	return h.Calls(MethodRuntimeMetadata)
}

func (h *Handle) LastLength() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastLen
}

func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Handle) GenesisHash(context.Context) (string, error) {
	if err := h.record(MethodGenesisHash); err != nil {
		return "", err
	}
	return h.Genesis, nil
}

func (h *Handle) RuntimeVersion(context.Context) (chain.RuntimeVersion, error) {
	if err := h.record(MethodRuntimeVersion); err != nil {
		return chain.RuntimeVersion{}, err
	}
	return h.Version, nil
}

func (h *Handle) ChainName(context.Context) (string, error) {
	if err := h.record(MethodChainName); err != nil {
		return "", err
	}
	return h.Name, nil
}

func (h *Handle) Properties(context.Context) (chain.Properties, error) {
	if err := h.record(MethodProperties); err != nil {
		return chain.Properties{}, err
	}
	return h.Props, nil
}

func (h *Handle) RuntimeMetadata(context.Context) ([]byte, error) {
	if err := h.record(MethodRuntimeMetadata); err != nil {
		return nil, err
	}
	return h.Metadata, nil
}

func (h *Handle) Storage(_ context.Context, key []byte) ([]byte, error) {
	if err := h.record(MethodStorage); err != nil {
		return nil, err
	}
	return h.StorageData[hex.EncodeToString(key)], nil
}

func (h *Handle) QueryCallInfo(_ context.Context, _ []byte, length uint32) (chain.DispatchInfo, error) {
	if err := h.record(MethodQueryCallInfo); err != nil {
		return chain.DispatchInfo{}, err
	}
	h.mu.Lock()
	h.lastLen = length
	h.mu.Unlock()
	return h.CallInfo, nil
}

func (h *Handle) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// SetIdentity stores a Registration whose display field is name for
// accountID.
func (h *Handle) SetIdentity(accountID []byte, name string) {
	if h.StorageData == nil {
		h.StorageData = map[string][]byte{}
	}
	key := chain.StorageMapKey("Identity", "IdentityOf", accountID)
	h.StorageData[hex.EncodeToString(key)] = EncodeRegistration(name)
}

// EncodeRegistration builds a minimal identity Registration with one
// Reasonable judgement, a zero deposit and a raw display name.
func EncodeRegistration(name string) []byte {
	out := []byte{0x04}                    // one judgement
	out = append(out, 0, 0, 0, 0, 2)       // registrar 0, Reasonable
	out = append(out, make([]byte, 16)...) // deposit
	out = append(out, 0x00)                // no additional fields
	out = append(out, byte(len(name)+1))   // Raw(len)
	out = append(out, name...)
	return out
}
