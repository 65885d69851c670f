// Package metadatatest builds small SCALE-encoded runtime metadata blobs for
// tests. The layout mirrors a trimmed Polkadot runtime: System (remark),
// Balances (transfer_allow_death, transfer_keep_alive, transfer_all),
// Utility (batch) and a call-less Timestamp pallet.
package metadatatest

import "github.com/ggonzalez94/dotsign/internal/scale"

// Pallet and call indices of the fixture runtime.
const (
	SystemIndex    = 0
	TimestampIndex = 3
	BalancesIndex  = 5
	UtilityIndex   = 26

	RemarkCall             = 0
	TransferAllowDeathCall = 0
	TransferAllCall        = 4
	TransferKeepAliveCall  = 3
	BatchCall              = 0

	TransferKeepAliveDoc = "Same as the transfer call, but with a check that the transfer will not kill the origin account."
	RemarkDoc            = "Make some on-chain remark."
)

// Registry type ids.
const (
	tU8 uint32 = iota
	tAccountBytes
	tAccountID
	tU128
	tCompactU128
	tMultiAddress
	tBytes
	tBool
	tSystemCall
	tBalancesCall
	tUtilityCall
	tRuntimeCall
	tVecRuntimeCall
	tU32
	tCompactUnit
	tUnit
)

type field struct {
	name     string
	typ      uint32
	typeName string
}

type variant struct {
	name   string
	index  byte
	fields []field
	docs   []string
}

type encoder struct {
	w scale.Writer
}

func (e *encoder) path(segments ...string) {
	e.w.WriteTextVec(segments)
	e.w.WriteCompact(0) // type params
}

func (e *encoder) fields(fs []field) {
	e.w.WriteCompact(uint64(len(fs)))
	for _, f := range fs {
		if f.name == "" {
			e.w.WriteBool(false)
		} else {
			e.w.WriteBool(true)
			e.w.WriteText(f.name)
		}
		e.w.WriteCompact(uint64(f.typ))
		if f.typeName == "" {
			e.w.WriteBool(false)
		} else {
			e.w.WriteBool(true)
			e.w.WriteText(f.typeName)
		}
		e.w.WriteTextVec(nil)
	}
}

func (e *encoder) typeEntry(id uint32, body func()) {
	e.w.WriteCompact(uint64(id))
	body()
	e.w.WriteTextVec(nil) // docs
}

func (e *encoder) primitive(id uint32, tag byte) {
	e.typeEntry(id, func() {
		e.path()
		_ = e.w.WriteByte(5)
		_ = e.w.WriteByte(tag)
	})
}

func (e *encoder) variantType(id uint32, path []string, vs []variant) {
	e.typeEntry(id, func() {
		e.path(path...)
		_ = e.w.WriteByte(1)
		e.w.WriteCompact(uint64(len(vs)))
		for _, v := range vs {
			e.w.WriteText(v.name)
			e.fields(v.fields)
			_ = e.w.WriteByte(v.index)
			e.w.WriteTextVec(v.docs)
		}
	})
}

func transferFields() []field {
	return []field{
		{name: "dest", typ: tMultiAddress, typeName: "AccountIdLookupOf<T>"},
		{name: "value", typ: tCompactU128, typeName: "T::Balance"},
	}
}

// RuntimeV14 returns the fixture runtime encoded as metadata V14.
func RuntimeV14() []byte {
	return runtime(14)
}

// RuntimeV15 returns the fixture runtime encoded as metadata V15.
func RuntimeV15() []byte {
	return runtime(15)
}

func runtime(version byte) []byte {
	e := &encoder{}
	e.w.WriteRaw([]byte("meta"))
	_ = e.w.WriteByte(version)

	e.w.WriteCompact(16)
	e.primitive(tU8, 3)
	e.typeEntry(tAccountBytes, func() {
		e.path()
		_ = e.w.WriteByte(3)
		e.w.WriteU32(32)
		e.w.WriteCompact(uint64(tU8))
	})
	e.typeEntry(tAccountID, func() {
		e.path("sp_core", "crypto", "AccountId32")
		_ = e.w.WriteByte(0)
		e.fields([]field{{typ: tAccountBytes, typeName: "[u8; 32]"}})
	})
	e.primitive(tU128, 7)
	e.typeEntry(tCompactU128, func() {
		e.path()
		_ = e.w.WriteByte(6)
		e.w.WriteCompact(uint64(tU128))
	})
	e.variantType(tMultiAddress, []string{"sp_runtime", "multiaddress", "MultiAddress"}, []variant{
		{name: "Id", index: 0, fields: []field{{typ: tAccountID, typeName: "AccountId"}}},
		{name: "Index", index: 1, fields: []field{{typ: tCompactUnit, typeName: "AccountIndex"}}},
		{name: "Raw", index: 2, fields: []field{{typ: tBytes, typeName: "Vec<u8>"}}},
	})
	e.typeEntry(tBytes, func() {
		e.path()
		_ = e.w.WriteByte(2)
		e.w.WriteCompact(uint64(tU8))
	})
	e.primitive(tBool, 0)
	e.variantType(tSystemCall, []string{"frame_system", "pallet", "Call"}, []variant{
		{name: "remark", index: RemarkCall, fields: []field{{name: "remark", typ: tBytes, typeName: "Vec<u8>"}}, docs: []string{RemarkDoc}},
	})
	e.variantType(tBalancesCall, []string{"pallet_balances", "pallet", "Call"}, []variant{
		{name: "transfer_allow_death", index: TransferAllowDeathCall, fields: transferFields(), docs: []string{"Transfer some liquid free balance to another account."}},
		{name: "transfer_keep_alive", index: TransferKeepAliveCall, fields: transferFields(), docs: []string{TransferKeepAliveDoc}},
		{name: "transfer_all", index: TransferAllCall, fields: []field{
			{name: "dest", typ: tMultiAddress, typeName: "AccountIdLookupOf<T>"},
			{name: "keep_alive", typ: tBool, typeName: "bool"},
		}},
	})
	e.variantType(tUtilityCall, []string{"pallet_utility", "pallet", "Call"}, []variant{
		{name: "batch", index: BatchCall, fields: []field{{name: "calls", typ: tVecRuntimeCall, typeName: "Vec<<T as Config>::RuntimeCall>"}}, docs: []string{"Send a batch of dispatch calls."}},
	})
	e.variantType(tRuntimeCall, []string{"polkadot_runtime", "RuntimeCall"}, []variant{
		{name: "System", index: SystemIndex, fields: []field{{typ: tSystemCall, typeName: "self::sp_api_hidden_includes_construct_runtime::hidden_include::dispatch::CallableCallFor<System, Runtime>"}}},
		{name: "Balances", index: BalancesIndex, fields: []field{{typ: tBalancesCall}}},
		{name: "Utility", index: UtilityIndex, fields: []field{{typ: tUtilityCall}}},
	})
	e.typeEntry(tVecRuntimeCall, func() {
		e.path()
		_ = e.w.WriteByte(2)
		e.w.WriteCompact(uint64(tRuntimeCall))
	})
	e.primitive(tU32, 5)
	e.typeEntry(tCompactUnit, func() {
		e.path()
		_ = e.w.WriteByte(6)
		e.w.WriteCompact(uint64(tUnit))
	})
	e.typeEntry(tUnit, func() {
		e.path()
		_ = e.w.WriteByte(4)
		e.w.WriteCompact(0)
	})

	e.w.WriteCompact(4)
	e.pallet(version, "System", SystemIndex, true, tSystemCall, 1)
	e.pallet(version, "Timestamp", TimestampIndex, false, 0, 0)
	e.pallet(version, "Balances", BalancesIndex, true, tBalancesCall, 2)
	e.pallet(version, "Utility", UtilityIndex, true, tUtilityCall, 0)

	// extrinsic + runtime type; ignored by the parser
	e.w.WriteCompact(uint64(tRuntimeCall))
	_ = e.w.WriteByte(4)
	e.w.WriteCompact(0)
	e.w.WriteCompact(uint64(tRuntimeCall))
	return e.w.Bytes()
}

func (e *encoder) pallet(version byte, name string, index byte, hasCalls bool, callType uint32, storageEntries int) {
	e.w.WriteText(name)
	if storageEntries == 0 {
		e.w.WriteBool(false)
	} else {
		e.w.WriteBool(true)
		e.w.WriteText(name)
		e.w.WriteCompact(uint64(storageEntries))
		for i := 0; i < storageEntries; i++ {
			e.w.WriteText("Entry")
			_ = e.w.WriteByte(1)
			if i%2 == 0 {
				_ = e.w.WriteByte(0)
				e.w.WriteCompact(uint64(tU32))
			} else {
				_ = e.w.WriteByte(1)
				e.w.WriteByteVec([]byte{2}) // Blake2_128Concat
				e.w.WriteCompact(uint64(tAccountID))
				e.w.WriteCompact(uint64(tU128))
			}
			e.w.WriteByteVec([]byte{0, 0, 0, 0})
			e.w.WriteTextVec([]string{"storage docs"})
		}
	}
	if hasCalls {
		e.w.WriteBool(true)
		e.w.WriteCompact(uint64(callType))
	} else {
		e.w.WriteBool(false)
	}
	e.w.WriteBool(false) // event
	e.w.WriteCompact(1)  // constants
	e.w.WriteText("Version")
	e.w.WriteCompact(uint64(tU32))
	e.w.WriteByteVec([]byte{1, 0, 0, 0})
	e.w.WriteTextVec(nil)
	e.w.WriteBool(false) // error
	_ = e.w.WriteByte(index)
	if version >= 15 {
		e.w.WriteTextVec([]string{name + " pallet"})
	}
}
