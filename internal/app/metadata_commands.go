package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/dotsign/internal/errors"
	"github.com/ggonzalez94/dotsign/internal/metadata"
	"github.com/ggonzalez94/dotsign/internal/model"
	"github.com/ggonzalez94/dotsign/internal/policy"
)

// recordInput is the file accepted by metadata set. RuntimeMetadata, when
// present, is the hex-encoded state_getMetadata blob the call table is
// parsed from.
type recordInput struct {
	metadata.Record
	RuntimeMetadata string `json:"runtime_metadata,omitempty"`
}

func (s *runtimeState) newMetadataCommand() *cobra.Command {
	root := &cobra.Command{Use: "metadata", Short: "Inspect and update the chain metadata cache"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List cached (genesis hash, spec version) pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := s.metadataCache()
			if err != nil {
				return err
			}
			return s.emitSuccess(cache.KnownVersions(cmd.Context()), nil)
		},
	}

	get := &cobra.Command{
		Use:   "get <chain|genesis-hash>",
		Short: "Show the cached record for one chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			genesis, err := s.resolveGenesis(args[0])
			if err != nil {
				return err
			}
			cache, err := s.metadataCache()
			if err != nil {
				return err
			}
			rec, ok, err := cache.Record(cmd.Context(), genesis)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "read metadata cache", err)
			}
			if !ok {
				return clierr.New(clierr.CodeUnsupported, fmt.Sprintf("no metadata cached for %s", genesis))
			}
			return s.emitSuccess(summarizeRecord(rec), nil)
		},
	}

	var refreshChain string
	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Re-fetch a chain's metadata when the runtime has been upgraded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := s.metadataCache()
			if err != nil {
				return err
			}
			dialer, err := s.chainDialer()
			if err != nil {
				return err
			}
			s.lastChain = refreshChain
			h, err := dialer.Connect(cmd.Context(), refreshChain)
			if err != nil {
				return err
			}
			defer h.Close()

			res := cache.RefreshIfStale(cmd.Context(), h)
			var warnings []string
			if res.Err != nil {
				warnings = append(warnings, fmt.Sprintf("metadata refresh %s: %v", res.Outcome, res.Err))
			}
			return s.emitSuccess(model.RefreshReport{
				Chain:         refreshChain,
				GenesisHash:   res.GenesisHash,
				CachedVersion: res.CachedVersion,
				LiveVersion:   res.LiveVersion,
				Outcome:       string(res.Outcome),
			}, warnings)
		},
	}
	refresh.Flags().StringVar(&refreshChain, "chain", "polkadot", "Chain slug, name or genesis hash")

	var setOrigin, setFile string
	set := &cobra.Command{
		Use:   "set",
		Short: "Store a metadata record offered by an origin, after user consent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := policy.CheckOrigin(s.settings.DenyOrigins, setOrigin); err != nil {
				return err
			}
			buf, err := s.readPromptedInput(setFile)
			if err != nil {
				return err
			}
			rec, err := parseRecordInput(buf)
			if err != nil {
				return err
			}
			cache, err := s.metadataCache()
			if err != nil {
				return err
			}
			s.lastChain = rec.Chain
			written, err := cache.SetRecord(cmd.Context(), setOrigin, rec)
			if err != nil {
				return err
			}
			return s.emitSuccess(model.MetadataWrite{
				Origin:      setOrigin,
				GenesisHash: metadata.NormalizeHash(rec.GenesisHash),
				SpecVersion: rec.SpecVersion,
				Written:     written,
			}, nil)
		},
	}
	set.Flags().StringVar(&setOrigin, "origin", "", "Origin offering the record")
	set.Flags().StringVar(&setFile, "file", "", "Record JSON file")
	_ = set.MarkFlagRequired("origin")
	_ = set.MarkFlagRequired("file")

	root.AddCommand(list, get, refresh, set)
	return root
}

// resolveGenesis accepts a genesis hash verbatim or looks a chain name up
// in the registry.
func (s *runtimeState) resolveGenesis(target string) (string, error) {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(target)), "0x") {
		return metadata.NormalizeHash(target), nil
	}
	registry, err := s.chainRegistry()
	if err != nil {
		return "", err
	}
	info, err := registry.Resolve(target)
	if err != nil {
		return "", err
	}
	s.lastChain = info.Slug
	return info.GenesisHash, nil
}

func parseRecordInput(buf []byte) (metadata.Record, error) {
	var in recordInput
	if err := json.Unmarshal(buf, &in); err != nil {
		return metadata.Record{}, clierr.Wrap(clierr.CodeMalformed, "decode metadata record", err)
	}
	rec := in.Record
	if in.RuntimeMetadata == "" {
		return rec, nil
	}
	raw, err := hexutil.Decode(strings.TrimSpace(in.RuntimeMetadata))
	if err != nil {
		return metadata.Record{}, clierr.Wrap(clierr.CodeMalformed, "decode runtime_metadata hex", err)
	}
	table, err := metadata.ParseRuntime(raw)
	if err != nil {
		return metadata.Record{}, clierr.Wrap(clierr.CodeMalformed, "parse runtime metadata", err)
	}
	rec, err = rec.WithCalls(table)
	if err != nil {
		return metadata.Record{}, clierr.Wrap(clierr.CodeInternal, "attach call metadata", err)
	}
	return rec, nil
}

func summarizeRecord(rec metadata.Record) model.MetadataRecord {
	out := model.MetadataRecord{
		GenesisHash:   rec.GenesisHash,
		Chain:         rec.Chain,
		SS58Format:    rec.SS58Format,
		TokenSymbol:   rec.TokenSymbol,
		TokenDecimals: rec.TokenDecimals,
		SpecVersion:   rec.SpecVersion,
	}
	table, err := rec.Calls()
	if err != nil {
		return out
	}
	for _, p := range table.Pallets {
		out.Pallets = append(out.Pallets, p.Name)
		out.Calls += len(p.Calls)
	}
	return out
}
