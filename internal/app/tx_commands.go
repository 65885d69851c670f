package app

import (
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/dotsign/internal/approval"
	"github.com/ggonzalez94/dotsign/internal/disclosure"
	"github.com/ggonzalez94/dotsign/internal/model"
)

func (s *runtimeState) newTxCommand() *cobra.Command {
	root := &cobra.Command{Use: "tx", Short: "Disclose and confirm transaction signing requests"}

	var origin, payloadPath string
	load := func(read func(string) ([]byte, error)) (approval.Payload, *approval.Service, error) {
		buf, err := read(payloadPath)
		if err != nil {
			return approval.Payload{}, nil, err
		}
		payload, err := approval.ParsePayload(buf)
		if err != nil {
			return approval.Payload{}, nil, err
		}
		s.lastChain = payload.Genesis()
		svc, err := s.approvalService()
		if err != nil {
			return approval.Payload{}, nil, err
		}
		return payload, svc, nil
	}

	confirm := &cobra.Command{
		Use:   "confirm",
		Short: "Show the disclosure for a signing payload and record the user's decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, svc, err := load(s.readPromptedInput)
			if err != nil {
				return err
			}
			decision, err := svc.ConfirmTransaction(cmd.Context(), origin, payload)
			if err != nil {
				return err
			}
			return s.emitSuccess(model.Confirmation{
				Origin:      origin,
				GenesisHash: payload.Genesis(),
				Decision:    string(decision),
			}, nil)
		},
	}

	preview := &cobra.Command{
		Use:   "preview",
		Short: "Print the disclosure for a signing payload without prompting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, svc, err := load(s.readInput)
			if err != nil {
				return err
			}
			doc, err := svc.Preview(cmd.Context(), origin, payload)
			if err != nil {
				return err
			}
			return s.emitSuccess(disclosureRows(doc), nil)
		},
	}

	confirm.Flags().StringVar(&payloadPath, "payload", "", "Signer payload JSON file")
	preview.Flags().StringVar(&payloadPath, "payload", "", "Signer payload JSON file, or - for stdin")
	for _, c := range []*cobra.Command{confirm, preview} {
		c.Flags().StringVar(&origin, "origin", "", "Origin requesting the signature")
		_ = c.MarkFlagRequired("origin")
		_ = c.MarkFlagRequired("payload")
	}

	root.AddCommand(confirm, preview)
	return root
}

func disclosureRows(doc disclosure.Document) []model.DisclosureRow {
	rows := make([]model.DisclosureRow, 0, len(doc.Rows))
	for _, r := range doc.Rows {
		rows = append(rows, model.DisclosureRow{Kind: string(r.Kind), Label: r.Label, Value: r.Value})
	}
	return rows
}
