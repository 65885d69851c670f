// Package disclosure builds the documents a human reviews before a decision:
// the transaction approval disclosure and the metadata update consent.
package disclosure

import (
	"fmt"

	"github.com/ggonzalez94/dotsign/internal/metadata"
)

type RowKind string

const (
	RowHeading  RowKind = "heading"
	RowAction   RowKind = "action"
	RowArgument RowKind = "argument"
	RowIdentity RowKind = "identity"
	RowFee      RowKind = "fee"
	RowChain    RowKind = "chain"
	RowInfo     RowKind = "info"
	RowWarning  RowKind = "warning"
	RowField    RowKind = "field"
)

const (
	UpdateMetadataNotice = "Update metadata to view this!"
	WarningText          = "proceed only if you understand the details above!"
)

type Row struct {
	Kind  RowKind `json:"kind"`
	Label string  `json:"label,omitempty"`
	Value string  `json:"value"`
}

// Document is an ordered list of rows; the first row is always the heading.
type Document struct {
	Rows []Row `json:"rows"`
}

func (d Document) Heading() string {
	if len(d.Rows) == 0 || d.Rows[0].Kind != RowHeading {
		return ""
	}
	return d.Rows[0].Value
}

func (d Document) Kinds() []RowKind {
	kinds := make([]RowKind, len(d.Rows))
	for i, r := range d.Rows {
		kinds[i] = r.Kind
	}
	return kinds
}

// Find returns the first row of kind.
func (d Document) Find(kind RowKind) (Row, bool) {
	for _, r := range d.Rows {
		if r.Kind == kind {
			return r, true
		}
	}
	return Row{}, false
}

// MetadataUpdate is the consent document shown before an external origin
// may replace a chain's cached metadata. Values are shown verbatim.
func MetadataUpdate(origin string, rec metadata.Record) Document {
	return Document{Rows: []Row{
		{Kind: RowHeading, Value: "Update Request from " + origin},
		{Kind: RowField, Label: "Chain", Value: rec.Chain},
		{Kind: RowField, Label: "Token", Value: rec.TokenSymbol},
		{Kind: RowField, Label: "Decimals", Value: fmt.Sprint(rec.TokenDecimals)},
		{Kind: RowField, Label: "Spec Version", Value: fmt.Sprint(rec.SpecVersion)},
		{Kind: RowField, Label: "Genesis Hash", Value: rec.GenesisHash},
	}}
}
