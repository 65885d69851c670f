package chain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ggonzalez94/dotsign/internal/chain"
	"github.com/ggonzalez94/dotsign/internal/chain/chaintest"
)

func aliceAccount() []byte {
	id := make([]byte, 32)
	for i := range id {
		id[i] = byte(i + 1)
	}
	return id
}

func TestLookupIdentityFound(t *testing.T) {
	h := chaintest.New(chain.PolkadotGenesis, 1)
	h.SetIdentity(aliceAccount(), "Alice")

	name, ok := chain.LookupIdentity(context.Background(), h, aliceAccount(), nil)
	require.True(t, ok)
	require.Equal(t, "Alice", name)
}

func TestLookupIdentityAbsentOrFailing(t *testing.T) {
	h := chaintest.New(chain.PolkadotGenesis, 1)
	_, ok := chain.LookupIdentity(context.Background(), h, aliceAccount(), nil)
	require.False(t, ok)

	h.SetIdentity(aliceAccount(), "Alice")
	h.SetErr(chaintest.MethodStorage, errors.New("pallet missing"))
	_, ok = chain.LookupIdentity(context.Background(), h, aliceAccount(), nil)
	require.False(t, ok)

	_, ok = chain.LookupIdentity(context.Background(), h, []byte{1, 2}, nil)
	require.False(t, ok)
}

func TestDecodeDisplayNameWithFeePaidAndAdditional(t *testing.T) {
	raw := []byte{0x08}                    // two judgements
	raw = append(raw, 1, 0, 0, 0, 1)       // FeePaid
	raw = append(raw, make([]byte, 16)...) // fee
	raw = append(raw, 2, 0, 0, 0, 3)       // KnownGood
	raw = append(raw, make([]byte, 16)...) // deposit
	raw = append(raw, 0x04)                // one additional pair
	raw = append(raw, 4, 'k', 'e', 'y')    // Raw("key")
	raw = append(raw, 34)                  // BlakeTwo256
	raw = append(raw, make([]byte, 32)...)
	raw = append(raw, 6, 'G', 'a', 'v', 'i', 'n') // display
	raw = append(raw, 0)                          // legal: None

	name, err := chain.DecodeDisplayName(raw)
	require.NoError(t, err)
	require.Equal(t, "Gavin", name)
}

func TestDecodeDisplayNameRejectsGarbage(t *testing.T) {
	_, err := chain.DecodeDisplayName([]byte{0x04, 0, 0, 0, 0, 9})
	require.Error(t, err)

	// display stored as a hash has no readable name
	raw := append([]byte{0x00}, make([]byte, 16)...)
	raw = append(raw, 0x00, 35)
	raw = append(raw, make([]byte, 32)...)
	name, err := chain.DecodeDisplayName(raw)
	require.NoError(t, err)
	require.Empty(t, name)
}
