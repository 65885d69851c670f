package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ggonzalez94/dotsign/internal/metadata"
	"github.com/ggonzalez94/dotsign/internal/metadata/metadatatest"
)

const polkadotGenesis = "0x91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3"

func polkadotRecord() metadata.Record {
	return metadata.Record{
		GenesisHash:   polkadotGenesis,
		Chain:         "Polkadot",
		SS58Format:    0,
		TokenSymbol:   "DOT",
		TokenDecimals: 10,
		SpecVersion:   1002000,
	}
}

func TestRecordValidate(t *testing.T) {
	require.NoError(t, polkadotRecord().Validate())

	bad := polkadotRecord()
	bad.GenesisHash = "0x1234"
	require.Error(t, bad.Validate())

	bad = polkadotRecord()
	bad.GenesisHash = "0x" + "zz" + polkadotGenesis[4:]
	require.Error(t, bad.Validate())

	bad = polkadotRecord()
	bad.TokenSymbol = ""
	require.Error(t, bad.Validate())

	bad = polkadotRecord()
	bad.SS58Format = 16384
	require.Error(t, bad.Validate())
}

func TestRecordCallsRoundTrip(t *testing.T) {
	rec := polkadotRecord()
	_, err := rec.Calls()
	require.Error(t, err)

	table, err := metadata.ParseRuntime(metadatatest.RuntimeV14())
	require.NoError(t, err)

	withCalls, err := rec.WithCalls(table)
	require.NoError(t, err)
	require.Empty(t, rec.MetaCalls, "original record must not be mutated")

	got, err := withCalls.Calls()
	require.NoError(t, err)
	_, call, ok := got.Lookup(metadatatest.SystemIndex, metadatatest.RemarkCall)
	require.True(t, ok)
	require.Equal(t, "remark", call.Name)
	require.Equal(t, []string{metadatatest.RemarkDoc}, call.Docs)
}

func TestNormalizeHash(t *testing.T) {
	require.Equal(t, "0xabcd", metadata.NormalizeHash(" ABCD "))
	require.Equal(t, "0xabcd", metadata.NormalizeHash("0xAbCd"))
}
