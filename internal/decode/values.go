package decode

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ggonzalez94/dotsign/internal/metadata"
	"github.com/ggonzalez94/dotsign/internal/scale"
)

type valueDecoder struct {
	table *metadata.CallTable
	r     *scale.Reader
}

func (d valueDecoder) decode(id uint32, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, errTooDeep
	}
	def, err := d.table.Type(id)
	if err != nil {
		return Value{}, err
	}
	switch def.Kind {
	case metadata.KindComposite:
		return d.composite(def, depth)
	case metadata.KindVariant:
		return d.variant(def, depth)
	case metadata.KindSequence:
		n, err := d.r.ReadLength()
		if err != nil {
			return Value{}, err
		}
		return d.items(def, def.Elem, n, depth)
	case metadata.KindArray:
		return d.items(def, def.Elem, int(def.Len), depth)
	case metadata.KindTuple:
		v := Value{Kind: KindSequence}
		for _, elem := range def.Tuple {
			item, err := d.decode(elem, depth+1)
			if err != nil {
				return Value{}, err
			}
			v.Items = append(v.Items, item)
		}
		return v, nil
	case metadata.KindPrimitive:
		return d.primitive(def.Primitive)
	case metadata.KindCompact:
		return d.compact(def)
	case metadata.KindBitSequence:
		return d.bits(def)
	default:
		return Value{}, fmt.Errorf("type %d has unknown kind %q", id, def.Kind)
	}
}

func (d valueDecoder) composite(def metadata.TypeDef, depth int) (Value, error) {
	ident := def.Ident()
	if strings.HasPrefix(ident, "AccountId") && len(def.Fields) == 1 {
		if inner, err := d.table.Type(def.Fields[0].Type); err == nil && d.isByteArray(inner) {
			raw, err := d.r.ReadBytes(int(inner.Len))
			if err != nil {
				return Value{}, err
			}
			return Value{Kind: KindAccount, TypeName: ident, Bytes: raw}, nil
		}
	}
	// Newtype wrappers (Perbill, Percent, H256, ...) collapse to their inner
	// value and keep the wrapper's name.
	if len(def.Fields) == 1 && def.Fields[0].Name == "" {
		v, err := d.decode(def.Fields[0].Type, depth+1)
		if err != nil {
			return Value{}, err
		}
		if ident != "" {
			v.TypeName = ident
		}
		return v, nil
	}
	v := Value{Kind: KindComposite, TypeName: ident}
	for _, f := range def.Fields {
		inner, err := d.decode(f.Type, depth+1)
		if err != nil {
			return Value{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		v.Fields = append(v.Fields, Field{Name: f.Name, TypeName: f.TypeName, Value: inner})
	}
	return v, nil
}

func (d valueDecoder) variant(def metadata.TypeDef, depth int) (Value, error) {
	if isRuntimeCall(def) {
		c, err := readCall(d.r, d.table, depth)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindCall, TypeName: def.Ident(), Call: &c}, nil
	}

	idx, err := d.r.ReadByte()
	if err != nil {
		return Value{}, err
	}
	vr, ok := def.VariantByIndex(idx)
	if !ok {
		return Value{}, fmt.Errorf("%s has no variant %d", def.Ident(), idx)
	}
	if def.Ident() == "Option" {
		if vr.Name == "None" {
			return Value{Kind: KindNone}, nil
		}
		if len(vr.Fields) == 1 {
			return d.decode(vr.Fields[0].Type, depth+1)
		}
	}
	v := Value{Kind: KindVariant, TypeName: def.Ident(), Variant: vr.Name}
	for _, f := range vr.Fields {
		inner, err := d.decode(f.Type, depth+1)
		if err != nil {
			return Value{}, fmt.Errorf("%s::%s: %w", def.Ident(), vr.Name, err)
		}
		v.Fields = append(v.Fields, Field{Name: f.Name, TypeName: f.TypeName, Value: inner})
	}
	return v, nil
}

// isRuntimeCall matches the outer call enum, whose variants are the pallets
// and whose payload is the pallet's own call enum.
func isRuntimeCall(def metadata.TypeDef) bool {
	ident := def.Ident()
	return ident == "RuntimeCall" || (ident == "Call" && len(def.Path) == 2)
}

func (d valueDecoder) items(def metadata.TypeDef, elem uint32, n, depth int) (Value, error) {
	elemDef, err := d.table.Type(elem)
	if err != nil {
		return Value{}, err
	}
	if elemDef.Kind == metadata.KindPrimitive && elemDef.Primitive == metadata.PrimU8 {
		raw, err := d.r.ReadBytes(n)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBytes, TypeName: def.Ident(), Bytes: raw}, nil
	}
	v := Value{Kind: KindSequence, TypeName: def.Ident()}
	for i := 0; i < n; i++ {
		item, err := d.decode(elem, depth+1)
		if err != nil {
			return Value{}, fmt.Errorf("item %d: %w", i, err)
		}
		v.Items = append(v.Items, item)
	}
	return v, nil
}

func (d valueDecoder) isByteArray(def metadata.TypeDef) bool {
	if def.Kind != metadata.KindArray {
		return false
	}
	elem, err := d.table.Type(def.Elem)
	return err == nil && elem.Kind == metadata.KindPrimitive && elem.Primitive == metadata.PrimU8
}

func (d valueDecoder) primitive(p metadata.Primitive) (Value, error) {
	switch p {
	case metadata.PrimBool:
		b, err := d.r.ReadBool()
		return Value{Kind: KindBool, Bool: b}, err
	case metadata.PrimStr:
		s, err := d.r.ReadText()
		return Value{Kind: KindText, Text: s}, err
	case metadata.PrimChar:
		c, err := d.r.ReadU32()
		if err != nil {
			return Value{}, err
		}
		if !utf8.ValidRune(rune(c)) {
			return Value{}, fmt.Errorf("invalid char %#x", c)
		}
		return Value{Kind: KindText, Text: string(rune(c))}, nil
	}
	size := p.Size()
	if size == 0 {
		return Value{}, fmt.Errorf("unsupported primitive %q", p)
	}
	if p.Signed() {
		n, err := d.r.ReadInt(size)
		return Value{Kind: KindInt, TypeName: string(p), Int: n}, err
	}
	n, err := d.r.ReadUint(size)
	return Value{Kind: KindInt, TypeName: string(p), Int: n}, err
}

func (d valueDecoder) compact(def metadata.TypeDef) (Value, error) {
	inner, err := d.table.Type(def.Elem)
	if err != nil {
		return Value{}, err
	}
	// Compact<()> carries no bytes.
	if inner.Kind == metadata.KindTuple && len(inner.Tuple) == 0 {
		return Value{Kind: KindNone}, nil
	}
	n, err := d.r.ReadCompact()
	if err != nil {
		return Value{}, err
	}
	name := inner.Ident()
	if name == "" {
		name = string(inner.Primitive)
	}
	return Value{Kind: KindInt, TypeName: name, Int: n}, nil
}

func (d valueDecoder) bits(def metadata.TypeDef) (Value, error) {
	n, err := d.r.ReadLength()
	if err != nil {
		return Value{}, err
	}
	store, err := d.table.Type(def.BitStore)
	if err != nil {
		return Value{}, err
	}
	width := store.Primitive.Size() * 8
	if width == 0 {
		return Value{}, fmt.Errorf("bit store %q is not an integer", store.Primitive)
	}
	words := (n + width - 1) / width
	raw, err := d.r.ReadBytes(words * width / 8)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindBits, Bytes: raw, Text: fmt.Sprintf("%d bits", n)}, nil
}
