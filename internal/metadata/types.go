package metadata

import "fmt"

// Kind is the shape of a registry type.
type Kind string

const (
	KindComposite   Kind = "composite"
	KindVariant     Kind = "variant"
	KindSequence    Kind = "sequence"
	KindArray       Kind = "array"
	KindTuple       Kind = "tuple"
	KindPrimitive   Kind = "primitive"
	KindCompact     Kind = "compact"
	KindBitSequence Kind = "bit_sequence"
)

// Primitive names follow scale-info's TypeDefPrimitive order.
type Primitive string

const (
	PrimBool Primitive = "bool"
	PrimChar Primitive = "char"
	PrimStr  Primitive = "str"
	PrimU8   Primitive = "u8"
	PrimU16  Primitive = "u16"
	PrimU32  Primitive = "u32"
	PrimU64  Primitive = "u64"
	PrimU128 Primitive = "u128"
	PrimU256 Primitive = "u256"
	PrimI8   Primitive = "i8"
	PrimI16  Primitive = "i16"
	PrimI32  Primitive = "i32"
	PrimI64  Primitive = "i64"
	PrimI128 Primitive = "i128"
	PrimI256 Primitive = "i256"
)

var primitiveOrder = []Primitive{
	PrimBool, PrimChar, PrimStr,
	PrimU8, PrimU16, PrimU32, PrimU64, PrimU128, PrimU256,
	PrimI8, PrimI16, PrimI32, PrimI64, PrimI128, PrimI256,
}

// Size is the encoded width in bytes of fixed-size integer primitives.
func (p Primitive) Size() int {
	switch p {
	case PrimU8, PrimI8, PrimBool:
		return 1
	case PrimU16, PrimI16:
		return 2
	case PrimU32, PrimI32, PrimChar:
		return 4
	case PrimU64, PrimI64:
		return 8
	case PrimU128, PrimI128:
		return 16
	case PrimU256, PrimI256:
		return 32
	default:
		return 0
	}
}

func (p Primitive) Signed() bool {
	switch p {
	case PrimI8, PrimI16, PrimI32, PrimI64, PrimI128, PrimI256:
		return true
	default:
		return false
	}
}

// CallTable is the decoder-facing projection of a runtime's metadata: every
// pallet that exposes calls, and the registry types those calls reference.
type CallTable struct {
	Version uint8              `json:"version"`
	Pallets []Pallet           `json:"pallets"`
	Types   map[uint32]TypeDef `json:"types"`
}

type Pallet struct {
	Index uint8  `json:"index"`
	Name  string `json:"name"`
	Calls []Call `json:"calls"`
}

type Call struct {
	Index uint8    `json:"index"`
	Name  string   `json:"name"`
	Docs  []string `json:"docs,omitempty"`
	Args  []Field  `json:"args,omitempty"`
}

type Field struct {
	Name     string `json:"name,omitempty"`
	Type     uint32 `json:"type"`
	TypeName string `json:"type_name,omitempty"`
}

type Variant struct {
	Index  uint8   `json:"index"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields,omitempty"`
}

// TypeDef is one registry entry. Which fields are set depends on Kind.
type TypeDef struct {
	Path      []string  `json:"path,omitempty"`
	Kind      Kind      `json:"kind"`
	Fields    []Field   `json:"fields,omitempty"`
	Variants  []Variant `json:"variants,omitempty"`
	Elem      uint32    `json:"elem,omitempty"`
	Len       uint32    `json:"len,omitempty"`
	Tuple     []uint32  `json:"tuple,omitempty"`
	Primitive Primitive `json:"primitive,omitempty"`
	BitStore  uint32    `json:"bit_store,omitempty"`
	BitOrder  uint32    `json:"bit_order,omitempty"`
}

// Ident is the last path segment, e.g. "AccountId32" or "MultiAddress".
func (t TypeDef) Ident() string {
	if len(t.Path) == 0 {
		return ""
	}
	return t.Path[len(t.Path)-1]
}

// Lookup resolves a call by its two index bytes.
func (c *CallTable) Lookup(palletIndex, callIndex uint8) (Pallet, Call, bool) {
	for _, p := range c.Pallets {
		if p.Index != palletIndex {
			continue
		}
		for _, call := range p.Calls {
			if call.Index == callIndex {
				return p, call, true
			}
		}
		return p, Call{}, false
	}
	return Pallet{}, Call{}, false
}

// Type returns the registry entry for id.
func (c *CallTable) Type(id uint32) (TypeDef, error) {
	t, ok := c.Types[id]
	if !ok {
		return TypeDef{}, fmt.Errorf("type %d not in call metadata", id)
	}
	return t, nil
}

// VariantByIndex finds the variant with the given discriminant.
func (t TypeDef) VariantByIndex(idx uint8) (Variant, bool) {
	for _, v := range t.Variants {
		if v.Index == idx {
			return v, true
		}
	}
	return Variant{}, false
}
