package chain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ggonzalez94/dotsign/internal/chain"
	"github.com/ggonzalez94/dotsign/internal/chain/chaintest"
	"github.com/ggonzalez94/dotsign/internal/metadata/metadatatest"
)

func TestFetchRecord(t *testing.T) {
	h := chaintest.New(chain.PolkadotGenesis, 1_002_000)

	rec, err := chain.FetchRecord(context.Background(), h)
	require.NoError(t, err)
	require.Equal(t, chain.PolkadotGenesis, rec.GenesisHash)
	require.Equal(t, "Polkadot", rec.Chain)
	require.Equal(t, "DOT", rec.TokenSymbol)
	require.Equal(t, uint8(10), rec.TokenDecimals)
	require.Equal(t, uint16(0), rec.SS58Format)
	require.Equal(t, uint32(1_002_000), rec.SpecVersion)

	table, err := rec.Calls()
	require.NoError(t, err)
	_, call, ok := table.Lookup(metadatatest.BalancesIndex, metadatatest.TransferKeepAliveCall)
	require.True(t, ok)
	require.Equal(t, "transfer_keep_alive", call.Name)
}

func TestFetchRecordDefaultsMissingProperties(t *testing.T) {
	h := chaintest.New(chain.WestendGenesis, 9)
	h.Props = chain.Properties{}

	rec, err := chain.FetchRecord(context.Background(), h)
	require.NoError(t, err)
	require.Equal(t, uint16(42), rec.SS58Format)
	require.Equal(t, "UNIT", rec.TokenSymbol)
	require.Equal(t, uint8(0), rec.TokenDecimals)
}

func TestFetchRecordFailures(t *testing.T) {
	h := chaintest.New(chain.PolkadotGenesis, 1)
	h.SetErr(chaintest.MethodChainName, errors.New("socket closed"))
	_, err := chain.FetchRecord(context.Background(), h)
	require.Error(t, err)

	h = chaintest.New(chain.PolkadotGenesis, 1)
	h.Metadata = []byte("meta\x0c")
	_, err = chain.FetchRecord(context.Background(), h)
	require.Error(t, err)
}
