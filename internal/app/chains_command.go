package app

import (
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/dotsign/internal/chain"
	clierr "github.com/ggonzalez94/dotsign/internal/errors"
	"github.com/ggonzalez94/dotsign/internal/keys"
	"github.com/ggonzalez94/dotsign/internal/model"
)

func (s *runtimeState) newChainsCommand() *cobra.Command {
	root := &cobra.Command{Use: "chains", Short: "Known chains"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List built-in and configured chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := s.chainRegistry()
			if err != nil {
				return err
			}
			all := registry.All()
			items := make([]model.ChainInfo, 0, len(all))
			for _, info := range all {
				items = append(items, model.ChainInfo{
					Name:          info.Name,
					Slug:          info.Slug,
					GenesisHash:   info.GenesisHash,
					SS58Format:    info.SS58Format,
					TokenSymbol:   info.TokenSymbol,
					TokenDecimals: info.TokenDecimals,
					Endpoints:     info.Endpoints,
				})
			}
			return s.emitSuccess(items, nil)
		},
	}
	root.AddCommand(list)
	return root
}

func (s *runtimeState) newAccountCommand() *cobra.Command {
	root := &cobra.Command{Use: "account", Short: "Accounts derived from the configured mnemonic"}

	var chainArg string
	var coinType uint32
	address := &cobra.Command{
		Use:   "address",
		Short: "Print the SS58 address derived for a chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := s.chainRegistry()
			if err != nil {
				return err
			}
			info, err := registry.Resolve(chainArg)
			if err != nil {
				return err
			}
			s.lastChain = info.Slug
			if !cmd.Flags().Changed("coin-type") {
				coinType = defaultCoinType(info)
			}

			host, err := s.keyHost()
			if err != nil {
				return err
			}
			seed, err := host.DeriveKey(coinType)
			if err != nil {
				return err
			}
			pub, err := keys.PublicKey(seed)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "derive public key", err)
			}
			addr, err := keys.Address(seed, info.SS58Format)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "encode address", err)
			}
			return s.emitSuccess(model.AccountAddress{
				Chain:      info.Slug,
				CoinType:   coinType,
				SS58Format: info.SS58Format,
				Address:    addr,
				PublicKey:  hexString(pub),
			}, nil)
		},
	}
	address.Flags().StringVar(&chainArg, "chain", "polkadot", "Chain slug, name or genesis hash")
	address.Flags().Uint32Var(&coinType, "coin-type", keys.CoinPolkadot, "SLIP-44 coin type used in the derivation path")

	root.AddCommand(address)
	return root
}

func (s *runtimeState) keyHost() (keys.Host, error) {
	if s.settings.MnemonicFile != "" {
		return keys.FromFile(s.settings.MnemonicFile, "")
	}
	if s.settings.MnemonicEnv == "" {
		return nil, clierr.New(clierr.CodeUsage, "no mnemonic source configured; set keys.mnemonic_env or keys.mnemonic_file")
	}
	return keys.FromEnv(s.settings.MnemonicEnv, "")
}

// defaultCoinType follows the relay chain's token: Kusama and its system
// chains use 434, everything else 354.
func defaultCoinType(info chain.Info) uint32 {
	if info.TokenSymbol == "KSM" {
		return keys.CoinKusama
	}
	return keys.CoinPolkadot
}
