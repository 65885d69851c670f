package disclosure

import (
	"math/big"

	"github.com/ggonzalez94/dotsign/internal/decode"
)

type Token struct {
	Symbol   string
	Decimals uint8
}

// Request is everything the approval disclosure shows.
type Request struct {
	Origin     string
	ChainName  string
	Call       decode.Call
	PartialFee *big.Int
	Token      Token
	SS58Format uint16
	// RecipientIdentity is the destination's display name, "" when unknown.
	RecipientIdentity string
}

// Assemble lays out the approval disclosure. Row order is fixed for every
// call: heading, action, arguments (with the recipient identity right after
// the destination), fee, chain, info, warning.
func Assemble(req Request) Document {
	f := formatter{token: req.Token, ss58: req.SS58Format}
	rows := []Row{
		{Kind: RowHeading, Value: "Transaction Approval Request from " + req.Origin},
		{Kind: RowAction, Label: "Action", Value: action(req.Call)},
	}

	identityPlaced := req.RecipientIdentity == ""
	for _, arg := range req.Call.Args {
		rows = append(rows, Row{Kind: RowArgument, Label: Humanize(arg.Name), Value: f.field(arg)})
		if !identityPlaced {
			if _, ok := arg.Value.AccountID(); ok {
				rows = append(rows, identityRow(req.RecipientIdentity))
				identityPlaced = true
			}
		}
	}
	if !identityPlaced {
		rows = append(rows, identityRow(req.RecipientIdentity))
	}

	fee := "unavailable"
	if req.PartialFee != nil {
		fee = f.amount(req.PartialFee)
	}
	info := req.Call.Docs
	if info == "" {
		info = UpdateMetadataNotice
	}
	rows = append(rows,
		Row{Kind: RowFee, Label: "Estimated Fee", Value: fee},
		Row{Kind: RowChain, Label: "Chain Name", Value: req.ChainName},
		Row{Kind: RowInfo, Label: "More info", Value: info},
		Row{Kind: RowWarning, Label: "Warning", Value: WarningText},
	)
	return Document{Rows: rows}
}

func identityRow(name string) Row {
	return Row{Kind: RowIdentity, Label: "Recipient Identity", Value: name}
}

func action(c decode.Call) string {
	if c.Section == "" || c.Method == "" {
		return "Unknown call (" + c.IndexHex() + ")"
	}
	return Humanize(c.Section) + " (" + Humanize(c.Method) + ")"
}
