package decode

import (
	"math/big"
)

// ValueKind tags the shape of a decoded argument value.
type ValueKind string

const (
	KindBool      ValueKind = "bool"
	KindInt       ValueKind = "int"
	KindText      ValueKind = "text"
	KindBytes     ValueKind = "bytes"
	KindAccount   ValueKind = "account"
	KindComposite ValueKind = "composite"
	KindVariant   ValueKind = "variant"
	KindSequence  ValueKind = "sequence"
	KindCall      ValueKind = "call"
	KindBits      ValueKind = "bits"
	KindNone      ValueKind = "none"
)

// Value is one decoded argument. Which fields are set depends on Kind.
type Value struct {
	Kind ValueKind `json:"kind"`
	// TypeName is the registry identifier of the value's type, when it has
	// one (AccountId32, MultiAddress, Perbill, ...).
	TypeName string   `json:"type_name,omitempty"`
	Bool     bool     `json:"bool,omitempty"`
	Int      *big.Int `json:"int,omitempty"`
	Text     string   `json:"text,omitempty"`
	Bytes    []byte   `json:"bytes,omitempty"`
	Variant  string   `json:"variant,omitempty"`
	Fields   []Field  `json:"fields,omitempty"`
	Items    []Value  `json:"items,omitempty"`
	Call     *Call    `json:"call,omitempty"`
}

// Field is a named value. TypeName is the type as written in the runtime
// source (T::Balance, AccountIdLookupOf<T>, ...), which is what tells a
// balance apart from any other integer.
type Field struct {
	Name     string `json:"name,omitempty"`
	TypeName string `json:"type_name,omitempty"`
	Value    Value  `json:"value"`
}

// AccountID returns the 32-byte account behind an AccountId32 or a
// MultiAddress::Id.
func (v Value) AccountID() ([]byte, bool) {
	switch v.Kind {
	case KindAccount:
		if len(v.Bytes) == 32 {
			return v.Bytes, true
		}
	case KindVariant:
		if v.Variant == "Id" && len(v.Fields) == 1 {
			return v.Fields[0].Value.AccountID()
		}
	}
	return nil, false
}
