// Package decode turns raw call bytes into a described call using the
// cached metadata for the call's chain and runtime version.
package decode

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ggonzalez94/dotsign/internal/metadata"
	"github.com/ggonzalez94/dotsign/internal/scale"
)

// RecordSource is the metadata cache as seen by the decoder.
type RecordSource interface {
	Record(ctx context.Context, genesisHash string) (metadata.Record, bool, error)
}

// Call is a decoded call. When Verified is false the cached metadata did
// not match the declared runtime version: Section, Method, Docs and Args
// are empty and only Index is known.
type Call struct {
	Section  string  `json:"section,omitempty"`
	Method   string  `json:"method,omitempty"`
	Docs     string  `json:"docs,omitempty"`
	Args     []Field `json:"args,omitempty"`
	Index    [2]byte `json:"index"`
	Verified bool    `json:"verified"`
}

// IndexHex renders the pallet and call index as 0xPPCC.
func (c Call) IndexHex() string {
	return "0x" + hex.EncodeToString(c.Index[:])
}

type Decoder struct {
	records RecordSource
	log     *zap.Logger
}

type Option func(*Decoder)

func WithLogger(log *zap.Logger) Option {
	return func(d *Decoder) {
		if log != nil {
			d.log = log
		}
	}
}

func New(records RecordSource, opts ...Option) *Decoder {
	d := &Decoder{records: records, log: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode never fails: anything short of a cached record at exactly
// specVersion that decodes call cleanly yields an unverified Call.
func (d *Decoder) Decode(ctx context.Context, genesisHash string, call []byte, specVersion uint32) Call {
	var out Call
	if len(call) >= 2 {
		out.Index = [2]byte{call[0], call[1]}
	}
	genesisHash = metadata.NormalizeHash(genesisHash)
	log := d.log.With(zap.String("genesis_hash", genesisHash), zap.Uint32("spec_version", specVersion))

	rec, found, err := d.records.Record(ctx, genesisHash)
	if err != nil {
		log.Warn("metadata cache read failed", zap.Error(err))
		return out
	}
	if !found || rec.SpecVersion != specVersion {
		log.Debug("no cached metadata for declared version", zap.Bool("found", found), zap.Uint32("cached_version", rec.SpecVersion))
		return out
	}
	table, err := rec.Calls()
	if err != nil {
		log.Warn("cached call metadata unusable", zap.Error(err))
		return out
	}
	decoded, err := DecodeCall(table, call)
	if err != nil {
		log.Warn("call does not decode against cached metadata", zap.Error(err))
		return out
	}
	return decoded
}

// DecodeCall decodes call against table. The whole input must be consumed.
func DecodeCall(table *metadata.CallTable, call []byte) (Call, error) {
	r := scale.NewReader(call)
	c, err := readCall(r, table, 0)
	if err != nil {
		return Call{}, err
	}
	if r.Remaining() != 0 {
		return Call{}, fmt.Errorf("%d trailing bytes after call", r.Remaining())
	}
	return c, nil
}

func readCall(r *scale.Reader, table *metadata.CallTable, depth int) (Call, error) {
	palletIdx, err := r.ReadByte()
	if err != nil {
		return Call{}, err
	}
	callIdx, err := r.ReadByte()
	if err != nil {
		return Call{}, err
	}
	pallet, meta, ok := table.Lookup(palletIdx, callIdx)
	if !ok {
		return Call{}, fmt.Errorf("unknown call index %d.%d", palletIdx, callIdx)
	}
	c := Call{
		Section:  pallet.Name,
		Method:   meta.Name,
		Docs:     summarizeDocs(meta.Docs),
		Index:    [2]byte{palletIdx, callIdx},
		Verified: true,
	}
	vd := valueDecoder{table: table, r: r}
	for _, arg := range meta.Args {
		v, err := vd.decode(arg.Type, depth+1)
		if err != nil {
			return Call{}, fmt.Errorf("%s.%s argument %s: %w", pallet.Name, meta.Name, arg.Name, err)
		}
		c.Args = append(c.Args, Field{Name: arg.Name, TypeName: arg.TypeName, Value: v})
	}
	return c, nil
}

// summarizeDocs keeps the first paragraph of the doc lines on one line.
func summarizeDocs(lines []string) string {
	var parts []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(parts) > 0 {
				break
			}
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}

const maxDepth = 32

var errTooDeep = errors.New("value nesting too deep")
