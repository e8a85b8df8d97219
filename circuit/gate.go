// Package circuit implements the gate codec, the primitive evaluators and the
// circuit evaluator used to re-execute a single gate of a committed
// decrypt-and-verify trace.
//
// A gate record is 64 bytes:
//
//	[0]      opcode
//	[1:31]   five operand slots, 6-byte big-endian signed indices
//	[31]     inline parameter length (0..32)
//	[32:64]  inline parameters
//
// An operand slot holding -1 (0xffffffffffff) is empty. Empty slots must
// trail populated ones.
package circuit

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/optiswap/optiswap/core/types"
)

// CircuitVersion is the only record version this package accepts.
const CircuitVersion uint8 = 1

// Record geometry.
const (
	RecordSize  = 64
	MaxOperands = 5
	SlotSize    = 6
	MaxParams   = 32

	slotsOffset  = 1
	paramsLenOff = slotsOffset + MaxOperands*SlotSize
	paramsOffset = 32
)

const (
	slotMask     uint64 = 1<<48 - 1
	slotSentinel        = slotMask
	slotSignBit  uint64 = 1 << 47

	// MaxIndex is the largest operand index a slot can carry.
	MaxIndex = slotSignBit - 1
)

// Record is the fixed-width wire form of a gate.
type Record [RecordSize]byte

// Gate is a decoded gate record.
type Gate struct {
	Op       Opcode
	Operands []uint64
	Params   []byte
}

// Decode parses a record under the given circuit version.
func Decode(rec Record, version uint8) (Gate, error) {
	if version != CircuitVersion {
		return Gate{}, errorsmod.Wrapf(types.ErrMalformedGate, "version %d", version)
	}
	op := Opcode(rec[0])
	if !op.Valid() {
		return Gate{}, errorsmod.Wrapf(types.ErrMalformedGate, "unknown opcode 0x%02x", rec[0])
	}
	var operands []uint64
	empty := false
	for i := 0; i < MaxOperands; i++ {
		v := readSlot(rec[slotsOffset+i*SlotSize:])
		switch {
		case v == slotSentinel:
			empty = true
		case empty:
			return Gate{}, errorsmod.Wrapf(types.ErrMalformedGate, "slot %d follows an empty slot", i)
		case v&slotSignBit != 0:
			return Gate{}, errorsmod.Wrapf(types.ErrMalformedGate, "slot %d holds a negative index", i)
		default:
			operands = append(operands, v)
		}
	}
	if _, max := op.Arity(); len(operands) > max {
		return Gate{}, errorsmod.Wrapf(types.ErrMalformedGate, "%s takes at most %d operands, got %d", op, max, len(operands))
	}
	n := int(rec[paramsLenOff])
	if n > MaxParams {
		return Gate{}, errorsmod.Wrapf(types.ErrMalformedGate, "parameter length %d", n)
	}
	params := make([]byte, n)
	copy(params, rec[paramsOffset:paramsOffset+n])
	return Gate{Op: op, Operands: operands, Params: params}, nil
}

// Encode is the inverse of Decode.
func Encode(g Gate) (Record, error) {
	var rec Record
	if !g.Op.Valid() {
		return rec, errorsmod.Wrapf(types.ErrMalformedGate, "unknown opcode 0x%02x", uint8(g.Op))
	}
	if _, max := g.Op.Arity(); len(g.Operands) > max {
		return rec, errorsmod.Wrapf(types.ErrMalformedGate, "%s takes at most %d operands, got %d", g.Op, max, len(g.Operands))
	}
	if len(g.Params) > MaxParams {
		return rec, errorsmod.Wrapf(types.ErrMalformedGate, "parameter length %d", len(g.Params))
	}
	rec[0] = byte(g.Op)
	for i := 0; i < MaxOperands; i++ {
		v := slotSentinel
		if i < len(g.Operands) {
			if g.Operands[i] > MaxIndex {
				return rec, errorsmod.Wrapf(types.ErrMalformedGate, "operand index %d too large", g.Operands[i])
			}
			v = g.Operands[i]
		}
		writeSlot(rec[slotsOffset+i*SlotSize:], v)
	}
	rec[paramsLenOff] = byte(len(g.Params))
	copy(rec[paramsOffset:], g.Params)
	return rec, nil
}

// EncodeAll encodes gates in order.
func EncodeAll(gates []Gate) ([]Record, error) {
	recs := make([]Record, len(gates))
	for i, g := range gates {
		rec, err := Encode(g)
		if err != nil {
			return nil, errorsmod.Wrapf(err, "gate %d", i)
		}
		recs[i] = rec
	}
	return recs, nil
}

// RecordValues returns the records as byte slices, the form committed to by
// the circuit root.
func RecordValues(recs []Record) [][]byte {
	out := make([][]byte, len(recs))
	for i := range recs {
		out[i] = append([]byte(nil), recs[i][:]...)
	}
	return out
}

// RecordFromBytes copies b into a Record.
func RecordFromBytes(b []byte) (Record, error) {
	var rec Record
	if len(b) != RecordSize {
		return rec, errorsmod.Wrapf(types.ErrMalformedGate, "record is %d bytes", len(b))
	}
	copy(rec[:], b)
	return rec, nil
}

// CheckOrder fails with ErrForwardReference if any operand does not precede
// the gate's own index.
func (g Gate) CheckOrder(index uint64) error {
	for i, op := range g.Operands {
		if op >= index {
			return errorsmod.Wrapf(types.ErrForwardReference, "gate %d operand %d references %d", index, i, op)
		}
	}
	return nil
}

func readSlot(b []byte) uint64 {
	var v uint64
	for i := 0; i < SlotSize; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func writeSlot(b []byte, v uint64) {
	v &= slotMask
	for i := SlotSize - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
