package chain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ggonzalez94/dotsign/internal/chain"
	clierr "github.com/ggonzalez94/dotsign/internal/errors"
)

func TestRegistryResolve(t *testing.T) {
	reg, err := chain.NewRegistry()
	require.NoError(t, err)

	for _, key := range []string{"polkadot", "Polkadot", " DOT ", "", chain.PolkadotGenesis, "0x91B171BB158E2D3848FA23A9F1C25182FB8E20313B2C1EB49219DA7A70CE90C3"} {
		info, err := reg.Resolve(key)
		require.NoError(t, err, key)
		require.Equal(t, "polkadot", info.Slug)
	}

	info, err := reg.Resolve("statemine")
	require.NoError(t, err)
	require.Equal(t, chain.KusamaAssetHubGenesis, info.GenesisHash)
	require.Equal(t, uint16(2), info.SS58Format)

	_, err = reg.Resolve("ethereum")
	require.True(t, clierr.HasCode(err, clierr.CodeUnsupported))
	_, err = reg.Resolve("0x" + "00")
	require.True(t, clierr.HasCode(err, clierr.CodeUnsupported))
}

func TestRegistryExtraChains(t *testing.T) {
	local := chain.Info{
		Slug:        "Local Dev",
		GenesisHash: "0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000000",
		SS58Format:  42,
		TokenSymbol: "UNIT",
		Endpoints:   []string{"ws://127.0.0.1:9944"},
	}
	reg, err := chain.NewRegistry(local)
	require.NoError(t, err)

	info, err := reg.Resolve("local-dev")
	require.NoError(t, err)
	require.Equal(t, "local-dev", info.Name)
	require.Len(t, reg.All(), 6)

	// overriding a built-in by genesis hash replaces it
	custom := chain.Info{Slug: "my-polkadot", GenesisHash: chain.PolkadotGenesis, Endpoints: []string{"https://polkadot.example.org"}}
	reg, err = chain.NewRegistry(custom)
	require.NoError(t, err)
	info, err = reg.Resolve(chain.PolkadotGenesis)
	require.NoError(t, err)
	require.Equal(t, "my-polkadot", info.Slug)
	_, err = reg.Resolve("polkadot")
	require.Error(t, err)
}

func TestRegistryRejectsBadExtras(t *testing.T) {
	cases := []chain.Info{
		{GenesisHash: chain.PolkadotGenesis, Endpoints: []string{"wss://x.example"}},
		{Slug: "short", GenesisHash: "0x12", Endpoints: []string{"wss://x.example"}},
		{Slug: "noendpoint", GenesisHash: chain.WestendGenesis},
		{Slug: "plain", GenesisHash: chain.WestendGenesis, Endpoints: []string{"ws://node.example:9944"}},
	}
	for _, tc := range cases {
		_, err := chain.NewRegistry(tc)
		require.True(t, clierr.HasCode(err, clierr.CodeUsage), "%+v", tc)
	}
}

func TestIsAllowedEndpoint(t *testing.T) {
	require.True(t, chain.IsAllowedEndpoint("wss://rpc.polkadot.io"))
	require.True(t, chain.IsAllowedEndpoint("https://rpc.polkadot.io"))
	require.True(t, chain.IsAllowedEndpoint("ws://localhost:9944"))
	require.True(t, chain.IsAllowedEndpoint("http://[::1]:9933"))
	require.False(t, chain.IsAllowedEndpoint("ws://rpc.polkadot.io"))
	require.False(t, chain.IsAllowedEndpoint("ftp://rpc.polkadot.io"))
	require.False(t, chain.IsAllowedEndpoint("wss://"))
}
