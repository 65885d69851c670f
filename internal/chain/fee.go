package chain

import (
	"context"
	"fmt"
	"math/big"

	clierr "github.com/ggonzalez94/dotsign/internal/errors"
	"github.com/ggonzalez94/dotsign/internal/scale"
)

// Dispatch classes as reported by the runtime.
var dispatchClasses = []string{"normal", "operational", "mandatory"}

// Fee is the estimated partial fee of a call: base, length and weight fees
// without any tip.
type Fee struct {
	PartialFee *big.Int
	RefTime    uint64
	ProofSize  uint64
	Class      string
}

// signedOverhead approximates what a signed extrinsic adds on top of the
// call: version byte, MultiAddress::Id sender, MultiSignature, mortal era,
// nonce, tip and metadata-hash mode.
func signedOverhead(sender []byte) int {
	return 1 + (1 + len(sender)) + (1 + 64) + 2 + 5 + 1 + 1
}

// EstimateFee asks the runtime what call would cost if sent by sender. A
// failure here is fatal to confirmation and is returned as-is.
func EstimateFee(ctx context.Context, h Handle, call, sender []byte) (Fee, error) {
	if len(call) < 2 {
		return Fee{}, clierr.New(clierr.CodeMalformed, "call too short to estimate a fee")
	}
	body := len(call) + signedOverhead(sender)
	length := uint32(body + len(compactPrefix(body)))

	info, err := h.QueryCallInfo(ctx, call, length)
	if err != nil {
		return Fee{}, err
	}
	class := "unknown"
	if int(info.Class) < len(dispatchClasses) {
		class = dispatchClasses[info.Class]
	}
	return Fee{
		PartialFee: info.PartialFee,
		RefTime:    info.RefTime,
		ProofSize:  info.ProofSize,
		Class:      class,
	}, nil
}

// DecodeDispatchInfo decodes RuntimeDispatchInfo<u128, Weight>.
func DecodeDispatchInfo(raw []byte) (DispatchInfo, error) {
	r := scale.NewReader(raw)
	refTime, err := r.ReadCompact()
	if err != nil {
		return DispatchInfo{}, fmt.Errorf("ref_time: %w", err)
	}
	proofSize, err := r.ReadCompact()
	if err != nil {
		return DispatchInfo{}, fmt.Errorf("proof_size: %w", err)
	}
	if !refTime.IsUint64() || !proofSize.IsUint64() {
		return DispatchInfo{}, fmt.Errorf("weight out of range")
	}
	class, err := r.ReadByte()
	if err != nil {
		return DispatchInfo{}, fmt.Errorf("class: %w", err)
	}
	fee, err := r.ReadUint(16)
	if err != nil {
		return DispatchInfo{}, fmt.Errorf("partial_fee: %w", err)
	}
	if r.Remaining() != 0 {
		return DispatchInfo{}, fmt.Errorf("%d trailing bytes", r.Remaining())
	}
	return DispatchInfo{
		RefTime:    refTime.Uint64(),
		ProofSize:  proofSize.Uint64(),
		Class:      class,
		PartialFee: fee,
	}, nil
}

func compactPrefix(n int) []byte {
	var w scale.Writer
	w.WriteCompact(uint64(n))
	return w.Bytes()
}
