package approval_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/ggonzalez94/dotsign/internal/approval"
	"github.com/ggonzalez94/dotsign/internal/chain"
	"github.com/ggonzalez94/dotsign/internal/chain/chaintest"
	"github.com/ggonzalez94/dotsign/internal/disclosure"
	clierr "github.com/ggonzalez94/dotsign/internal/errors"
	"github.com/ggonzalez94/dotsign/internal/metacache"
	"github.com/ggonzalez94/dotsign/internal/metadata/metadatatest"
	"github.com/ggonzalez94/dotsign/internal/prompt"
	"github.com/ggonzalez94/dotsign/internal/scale"
	"github.com/ggonzalez94/dotsign/internal/ss58"
	"github.com/ggonzalez94/dotsign/internal/state"
)

const (
	aliceAddr   = "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5"
	specVersion = 1_002_000
	origin      = "https://app.example"
)

type recordingHost struct {
	mu       sync.Mutex
	decision prompt.Decision
	err      error
	docs     []disclosure.Document
}

func (h *recordingHost) Prompt(_ context.Context, doc disclosure.Document) (prompt.Decision, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.docs = append(h.docs, doc)
	return h.decision, h.err
}

type fixture struct {
	handle  *chaintest.Handle
	host    *recordingHost
	cache   *metacache.Cache
	service *approval.Service
	dials   int
}

func newFixture(t *testing.T, opts ...approval.Option) *fixture {
	t.Helper()
	f := &fixture{
		handle: chaintest.New(chain.PolkadotGenesis, specVersion),
		host:   &recordingHost{decision: prompt.Accepted},
	}
	f.cache = metacache.New(state.NewStore(state.NewMemoryHost()), nil)
	connect := approval.ConnectorFunc(func(_ context.Context, target string) (chain.Handle, error) {
		f.dials++
		require.Equal(t, chain.PolkadotGenesis, target)
		return f.handle, nil
	})
	f.service = approval.NewService(connect, f.cache, f.host, opts...)
	return f
}

func bob() []byte {
	id := make([]byte, 32)
	for i := range id {
		id[i] = 0x8e
	}
	return id
}

func transferKeepAlive(amount uint64) []byte {
	var w scale.Writer
	w.WriteRaw([]byte{metadatatest.BalancesIndex, metadatatest.TransferKeepAliveCall})
	_ = w.WriteByte(0)
	w.WriteRaw(bob())
	w.WriteCompact(amount)
	return w.Bytes()
}

func remark(text string) []byte {
	var w scale.Writer
	w.WriteRaw([]byte{metadatatest.SystemIndex, metadatatest.RemarkCall})
	w.WriteByteVec([]byte(text))
	return w.Bytes()
}

func payload(call []byte, version uint32) approval.Payload {
	return approval.Payload{
		Address:            aliceAddr,
		GenesisHash:        chain.PolkadotGenesis,
		Method:             hexutil.Encode(call),
		SpecVersion:        approval.Uint32(version),
		TransactionVersion: 26,
		Era:                "0x00",
		Nonce:              "0x00",
		Tip:                "0x00",
		Version:            4,
	}
}

func TestConfirmTransferShowsIdentityAndDocs(t *testing.T) {
	f := newFixture(t)
	f.handle.SetIdentity(bob(), "Bob")

	decision, err := f.service.ConfirmTransaction(context.Background(), origin, payload(transferKeepAlive(12_500_000_000), specVersion))
	require.NoError(t, err)
	require.Equal(t, prompt.Accepted, decision)
	require.Equal(t, 1, f.handle.FetchCalls(), "stale cache refreshed before decoding")
	require.True(t, f.handle.Closed())
	require.NotZero(t, f.handle.LastLength())

	require.Len(t, f.host.docs, 1)
	doc := f.host.docs[0]
	require.Equal(t, "Transaction Approval Request from "+origin, doc.Heading())
	require.Equal(t, "Balances (Transfer Keep Alive)", doc.Rows[1].Value)

	bobAddr, err := ss58.Encode(bob(), 0)
	require.NoError(t, err)
	require.Equal(t, bobAddr, doc.Rows[2].Value)
	require.Equal(t, disclosure.Row{Kind: disclosure.RowIdentity, Label: "Recipient Identity", Value: "Bob"}, doc.Rows[3])
	require.Equal(t, "1.25 DOT", doc.Rows[4].Value)

	fee, _ := doc.Find(disclosure.RowFee)
	require.Equal(t, "0.0157 DOT", fee.Value)
	name, _ := doc.Find(disclosure.RowChain)
	require.Equal(t, "Polkadot", name.Value)
	info, _ := doc.Find(disclosure.RowInfo)
	require.Equal(t, metadatatest.TransferKeepAliveDoc, info.Value)
}

func TestConfirmWithoutIdentityOmitsRow(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.ConfirmTransaction(context.Background(), origin, payload(transferKeepAlive(1), specVersion))
	require.NoError(t, err)

	_, ok := f.host.docs[0].Find(disclosure.RowIdentity)
	require.False(t, ok)
}

func TestConfirmNonTransferSkipsIdentityLookup(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.ConfirmTransaction(context.Background(), origin, payload(remark("gm"), specVersion))
	require.NoError(t, err)
	require.Zero(t, f.handle.Calls(chaintest.MethodStorage))
	require.Equal(t, "System (Remark)", f.host.docs[0].Rows[1].Value)
}

func TestConfirmVersionMismatchDegrades(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.ConfirmTransaction(context.Background(), origin, payload(transferKeepAlive(1), specVersion-1))
	require.NoError(t, err)

	doc := f.host.docs[0]
	require.Equal(t, "Unknown call (0x0503)", doc.Rows[1].Value)
	info, _ := doc.Find(disclosure.RowInfo)
	require.Equal(t, disclosure.UpdateMetadataNotice, info.Value)
	require.Zero(t, f.handle.Calls(chaintest.MethodStorage))
}

func TestConfirmRefreshFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.handle.SetErr(chaintest.MethodRuntimeMetadata, clierr.New(clierr.CodeUnavailable, "metadata unavailable"))

	decision, err := f.service.ConfirmTransaction(context.Background(), origin, payload(transferKeepAlive(1), specVersion))
	require.NoError(t, err)
	require.Equal(t, prompt.Accepted, decision)

	doc := f.host.docs[0]
	require.Equal(t, "Unknown call (0x0503)", doc.Rows[1].Value)
	name, _ := doc.Find(disclosure.RowChain)
	require.Equal(t, "Polkadot", name.Value, "chain details fall back to the live node")
	fee, _ := doc.Find(disclosure.RowFee)
	require.Equal(t, "0.0157 DOT", fee.Value)
}

func TestConfirmFeeFailureAbortsBeforePrompt(t *testing.T) {
	f := newFixture(t)
	f.handle.SetErr(chaintest.MethodQueryCallInfo, clierr.New(clierr.CodeUnsupported, "node does not support state_call"))

	decision, err := f.service.ConfirmTransaction(context.Background(), origin, payload(transferKeepAlive(1), specVersion))
	require.Error(t, err)
	require.True(t, clierr.HasCode(err, clierr.CodeUnsupported))
	require.Empty(t, decision)
	require.Empty(t, f.host.docs)
}

func TestConfirmUntypedFeeFailureIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.handle.SetErr(chaintest.MethodQueryCallInfo, errors.New("connection reset"))

	_, err := f.service.ConfirmTransaction(context.Background(), origin, payload(transferKeepAlive(1), specVersion))
	require.True(t, clierr.HasCode(err, clierr.CodeUnavailable))
}

func TestConfirmConnectFailure(t *testing.T) {
	cache := metacache.New(state.NewStore(state.NewMemoryHost()), nil)
	host := &recordingHost{decision: prompt.Accepted}
	svc := approval.NewService(approval.ConnectorFunc(func(context.Context, string) (chain.Handle, error) {
		return nil, clierr.New(clierr.CodeUnavailable, "all endpoints failed")
	}), cache, host)

	_, err := svc.ConfirmTransaction(context.Background(), origin, payload(transferKeepAlive(1), specVersion))
	require.True(t, clierr.HasCode(err, clierr.CodeUnavailable))
	require.Empty(t, host.docs)
}

func TestConfirmBlockedOrigin(t *testing.T) {
	f := newFixture(t, approval.WithDenylist([]string{"evil.example"}))
	_, err := f.service.ConfirmTransaction(context.Background(), "https://evil.example", payload(transferKeepAlive(1), specVersion))
	require.True(t, clierr.HasCode(err, clierr.CodeBlocked))
	require.Zero(t, f.dials)
}

func TestConfirmMalformedPayload(t *testing.T) {
	f := newFixture(t)
	bad := payload(transferKeepAlive(1), specVersion)
	bad.Method = "0x05"
	_, err := f.service.ConfirmTransaction(context.Background(), origin, bad)
	require.True(t, clierr.HasCode(err, clierr.CodeMalformed))

	bad = payload(transferKeepAlive(1), specVersion)
	bad.Address = "not-an-address"
	_, err = f.service.ConfirmTransaction(context.Background(), origin, bad)
	require.True(t, clierr.HasCode(err, clierr.CodeMalformed))
	require.Zero(t, f.dials)
}

func TestConfirmReturnsDecisionVerbatim(t *testing.T) {
	for _, want := range []prompt.Decision{prompt.Accepted, prompt.Rejected, prompt.Dismissed} {
		f := newFixture(t)
		f.host.decision = want
		got, err := f.service.ConfirmTransaction(context.Background(), origin, payload(remark("x"), specVersion))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestConfirmPromptErrorIsDismissal(t *testing.T) {
	f := newFixture(t)
	f.host.err = errors.New("terminal gone")
	got, err := f.service.ConfirmTransaction(context.Background(), origin, payload(remark("x"), specVersion))
	require.NoError(t, err)
	require.Equal(t, prompt.Dismissed, got)
}

func TestPreviewDoesNotPrompt(t *testing.T) {
	f := newFixture(t)
	doc, err := f.service.Preview(context.Background(), origin, payload(remark("gm"), specVersion))
	require.NoError(t, err)
	require.Empty(t, f.host.docs)
	require.Equal(t, "gm", doc.Rows[2].Value)
}
