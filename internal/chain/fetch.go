package chain

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ggonzalez94/dotsign/internal/metadata"
)

const (
	defaultSS58Format  = 42
	defaultTokenSymbol = "UNIT"
)

// FetchRecord snapshots the live chain into a metadata record. The five
// node queries run concurrently; any failure fails the whole fetch.
func FetchRecord(ctx context.Context, h Handle) (metadata.Record, error) {
	var (
		genesis string
		name    string
		props   Properties
		version RuntimeVersion
		blob    []byte
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		genesis, err = h.GenesisHash(gctx)
		return err
	})
	g.Go(func() (err error) {
		name, err = h.ChainName(gctx)
		return err
	})
	g.Go(func() (err error) {
		props, err = h.Properties(gctx)
		return err
	})
	g.Go(func() (err error) {
		version, err = h.RuntimeVersion(gctx)
		return err
	})
	g.Go(func() (err error) {
		blob, err = h.RuntimeMetadata(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return metadata.Record{}, err
	}

	table, err := metadata.ParseRuntime(blob)
	if err != nil {
		return metadata.Record{}, malformed("state_getMetadata", err)
	}

	rec := metadata.Record{
		GenesisHash: metadata.NormalizeHash(genesis),
		Chain:       name,
		SS58Format:  defaultSS58Format,
		TokenSymbol: defaultTokenSymbol,
		SpecVersion: version.SpecVersion,
	}
	if props.SS58Format != nil {
		rec.SS58Format = *props.SS58Format
	}
	if props.TokenSymbol != "" {
		rec.TokenSymbol = props.TokenSymbol
	}
	if props.TokenDecimals != nil {
		rec.TokenDecimals = *props.TokenDecimals
	}
	rec, err = rec.WithCalls(table)
	if err != nil {
		return metadata.Record{}, err
	}
	if err := rec.Validate(); err != nil {
		return metadata.Record{}, malformed("chain info", fmt.Errorf("%s: %w", rec.GenesisHash, err))
	}
	return rec, nil
}
