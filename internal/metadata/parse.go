package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ggonzalez94/dotsign/internal/scale"
)

var magic = []byte("meta")

// ErrUnsupportedVersion is returned for runtime metadata older than V14,
// which has no portable type registry.
var ErrUnsupportedVersion = errors.New("unsupported runtime metadata version")

// ParseRuntime reads SCALE-encoded runtime metadata (V14 or V15, as returned
// by state_getMetadata) and projects it into a CallTable.
func ParseRuntime(raw []byte) (*CallTable, error) {
	r := scale.NewReader(raw)
	head, err := r.ReadBytes(len(magic))
	if err != nil || !bytes.Equal(head, magic) {
		return nil, errors.New("runtime metadata: missing magic prefix")
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("runtime metadata: %w", err)
	}
	if version != 14 && version != 15 {
		return nil, fmt.Errorf("%w: v%d", ErrUnsupportedVersion, version)
	}

	registry, err := readRegistry(r)
	if err != nil {
		return nil, fmt.Errorf("runtime metadata types: %w", err)
	}

	n, err := r.ReadLength()
	if err != nil {
		return nil, fmt.Errorf("runtime metadata pallets: %w", err)
	}
	table := &CallTable{Version: version, Types: map[uint32]TypeDef{}}
	for i := 0; i < n; i++ {
		p, callsType, hasCalls, err := readPallet(r, version)
		if err != nil {
			return nil, fmt.Errorf("runtime metadata pallet %d: %w", i, err)
		}
		if !hasCalls {
			continue
		}
		callEnum, ok := registry[callsType]
		if !ok || callEnum.def.Kind != KindVariant {
			return nil, fmt.Errorf("pallet %s: call type %d is not an enum", p.Name, callsType)
		}
		for _, v := range callEnum.def.Variants {
			p.Calls = append(p.Calls, Call{
				Index: v.Index,
				Name:  v.Name,
				Docs:  callEnum.variantDocs[v.Index],
				Args:  v.Fields,
			})
			for _, f := range v.Fields {
				if err := collectTypes(registry, table.Types, f.Type); err != nil {
					return nil, fmt.Errorf("pallet %s call %s: %w", p.Name, v.Name, err)
				}
			}
		}
		table.Pallets = append(table.Pallets, p)
	}
	// The extrinsic and runtime sections that follow are not needed for call
	// decoding.
	return table, nil
}

type registryEntry struct {
	def         TypeDef
	variantDocs map[uint8][]string
}

func readRegistry(r *scale.Reader) (map[uint32]registryEntry, error) {
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]registryEntry, n)
	for i := 0; i < n; i++ {
		id, err := r.ReadCompactU32()
		if err != nil {
			return nil, err
		}
		entry, err := readType(r)
		if err != nil {
			return nil, fmt.Errorf("type %d: %w", id, err)
		}
		out[id] = entry
	}
	return out, nil
}

func readType(r *scale.Reader) (registryEntry, error) {
	path, err := r.ReadTextVec()
	if err != nil {
		return registryEntry{}, err
	}
	// type parameters: Vec<{name: Text, ty: Option<Compact<u32>>}>
	params, err := r.ReadLength()
	if err != nil {
		return registryEntry{}, err
	}
	for i := 0; i < params; i++ {
		if _, err := r.ReadText(); err != nil {
			return registryEntry{}, err
		}
		some, err := r.ReadOption()
		if err != nil {
			return registryEntry{}, err
		}
		if some {
			if _, err := r.ReadCompactU32(); err != nil {
				return registryEntry{}, err
			}
		}
	}

	entry := registryEntry{def: TypeDef{Path: path}}
	tag, err := r.ReadByte()
	if err != nil {
		return registryEntry{}, err
	}
	switch tag {
	case 0:
		entry.def.Kind = KindComposite
		entry.def.Fields, err = readFields(r)
	case 1:
		entry.def.Kind = KindVariant
		entry.variantDocs = map[uint8][]string{}
		entry.def.Variants, err = readVariants(r, entry.variantDocs)
	case 2:
		entry.def.Kind = KindSequence
		entry.def.Elem, err = r.ReadCompactU32()
	case 3:
		entry.def.Kind = KindArray
		if entry.def.Len, err = r.ReadU32(); err == nil {
			entry.def.Elem, err = r.ReadCompactU32()
		}
	case 4:
		entry.def.Kind = KindTuple
		entry.def.Tuple, err = readTypeIDs(r)
	case 5:
		entry.def.Kind = KindPrimitive
		var p byte
		if p, err = r.ReadByte(); err == nil {
			if int(p) >= len(primitiveOrder) {
				err = fmt.Errorf("unknown primitive %d", p)
			} else {
				entry.def.Primitive = primitiveOrder[p]
			}
		}
	case 6:
		entry.def.Kind = KindCompact
		entry.def.Elem, err = r.ReadCompactU32()
	case 7:
		entry.def.Kind = KindBitSequence
		if entry.def.BitStore, err = r.ReadCompactU32(); err == nil {
			entry.def.BitOrder, err = r.ReadCompactU32()
		}
	default:
		err = fmt.Errorf("unknown type definition tag %d", tag)
	}
	if err != nil {
		return registryEntry{}, err
	}
	if _, err := r.ReadTextVec(); err != nil { // docs
		return registryEntry{}, err
	}
	return entry, nil
}

func readFields(r *scale.Reader) ([]Field, error) {
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, n)
	for i := 0; i < n; i++ {
		var f Field
		some, err := r.ReadOption()
		if err != nil {
			return nil, err
		}
		if some {
			if f.Name, err = r.ReadText(); err != nil {
				return nil, err
			}
		}
		if f.Type, err = r.ReadCompactU32(); err != nil {
			return nil, err
		}
		if some, err = r.ReadOption(); err != nil {
			return nil, err
		}
		if some {
			if f.TypeName, err = r.ReadText(); err != nil {
				return nil, err
			}
		}
		if _, err := r.ReadTextVec(); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func readVariants(r *scale.Reader, docs map[uint8][]string) ([]Variant, error) {
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}
	variants := make([]Variant, 0, n)
	for i := 0; i < n; i++ {
		var v Variant
		if v.Name, err = r.ReadText(); err != nil {
			return nil, err
		}
		if v.Fields, err = readFields(r); err != nil {
			return nil, err
		}
		if v.Index, err = r.ReadByte(); err != nil {
			return nil, err
		}
		d, err := r.ReadTextVec()
		if err != nil {
			return nil, err
		}
		if len(d) > 0 {
			docs[v.Index] = d
		}
		variants = append(variants, v)
	}
	return variants, nil
}

func readTypeIDs(r *scale.Reader) ([]uint32, error) {
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		id, err := r.ReadCompactU32()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// readPallet consumes one PalletMetadata entry and returns the pallet shell
// plus the id of its call enum, if any.
func readPallet(r *scale.Reader, version byte) (Pallet, uint32, bool, error) {
	var p Pallet
	var err error
	if p.Name, err = r.ReadText(); err != nil {
		return p, 0, false, err
	}
	if err := skipStorage(r); err != nil {
		return p, 0, false, fmt.Errorf("storage: %w", err)
	}

	hasCalls, err := r.ReadOption()
	if err != nil {
		return p, 0, false, err
	}
	var callsType uint32
	if hasCalls {
		if callsType, err = r.ReadCompactU32(); err != nil {
			return p, 0, false, err
		}
	}
	if err := skipOptionalTypeID(r); err != nil { // event
		return p, 0, false, err
	}
	if err := skipConstants(r); err != nil {
		return p, 0, false, fmt.Errorf("constants: %w", err)
	}
	if err := skipOptionalTypeID(r); err != nil { // error
		return p, 0, false, err
	}
	if p.Index, err = r.ReadByte(); err != nil {
		return p, 0, false, err
	}
	if version >= 15 {
		if _, err := r.ReadTextVec(); err != nil {
			return p, 0, false, err
		}
	}
	return p, callsType, hasCalls, nil
}

func skipStorage(r *scale.Reader) error {
	some, err := r.ReadOption()
	if err != nil || !some {
		return err
	}
	if _, err := r.ReadText(); err != nil { // prefix
		return err
	}
	n, err := r.ReadLength()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if _, err := r.ReadText(); err != nil {
			return err
		}
		if _, err := r.ReadByte(); err != nil { // modifier
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch kind {
		case 0:
			if _, err := r.ReadCompactU32(); err != nil {
				return err
			}
		case 1:
			hashers, err := r.ReadLength()
			if err != nil {
				return err
			}
			if _, err := r.ReadBytes(hashers); err != nil {
				return err
			}
			if _, err := r.ReadCompactU32(); err != nil {
				return err
			}
			if _, err := r.ReadCompactU32(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown storage entry kind %d", kind)
		}
		if _, err := r.ReadByteVec(); err != nil { // default
			return err
		}
		if _, err := r.ReadTextVec(); err != nil {
			return err
		}
	}
	return nil
}

func skipConstants(r *scale.Reader) error {
	n, err := r.ReadLength()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if _, err := r.ReadText(); err != nil {
			return err
		}
		if _, err := r.ReadCompactU32(); err != nil {
			return err
		}
		if _, err := r.ReadByteVec(); err != nil {
			return err
		}
		if _, err := r.ReadTextVec(); err != nil {
			return err
		}
	}
	return nil
}

func skipOptionalTypeID(r *scale.Reader) error {
	some, err := r.ReadOption()
	if err != nil || !some {
		return err
	}
	_, err = r.ReadCompactU32()
	return err
}

// collectTypes copies id and everything it references into dst.
func collectTypes(src map[uint32]registryEntry, dst map[uint32]TypeDef, id uint32) error {
	stack := []uint32{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := dst[cur]; seen {
			continue
		}
		entry, ok := src[cur]
		if !ok {
			return fmt.Errorf("dangling type reference %d", cur)
		}
		dst[cur] = entry.def
		def := entry.def
		for _, f := range def.Fields {
			stack = append(stack, f.Type)
		}
		for _, v := range def.Variants {
			for _, f := range v.Fields {
				stack = append(stack, f.Type)
			}
		}
		stack = append(stack, def.Tuple...)
		switch def.Kind {
		case KindSequence, KindArray, KindCompact:
			stack = append(stack, def.Elem)
		case KindBitSequence:
			stack = append(stack, def.BitStore, def.BitOrder)
		}
	}
	return nil
}

// PalletByName finds a pallet case-insensitively.
func (c *CallTable) PalletByName(name string) (Pallet, bool) {
	for _, p := range c.Pallets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Pallet{}, false
}
