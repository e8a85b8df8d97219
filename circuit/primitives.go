package circuit

import (
	"bytes"
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"github.com/optiswap/optiswap/core/types"
)

// Fixed widths of the primitive contracts.
const (
	WordSize     = 16
	AESBlockSize = 16
	AESKeySize   = 16
	LengthSize   = 8
)

func evalEqual(operands [][]byte) []byte {
	first := operands[0]
	for _, o := range operands[1:] {
		if !bytes.Equal(first, o) {
			return []byte{0x00}
		}
	}
	return []byte{0x01}
}

func wordOperand(op Opcode, i int, b []byte) (*uint256.Int, error) {
	if len(b) == 0 || len(b) > WordSize {
		return nil, errorsmod.Wrapf(types.ErrInvalidOperandLength, "%s operand %d is %d bytes, want 1..%d", op, i, len(b), WordSize)
	}
	return new(uint256.Int).SetBytes(b), nil
}

func low128(x *uint256.Int) []byte {
	full := x.Bytes32()
	out := make([]byte, WordSize)
	copy(out, full[32-WordSize:])
	return out
}

func evalBinAdd(operands [][]byte) ([]byte, error) {
	a, err := wordOperand(OpBinAdd, 0, operands[0])
	if err != nil {
		return nil, err
	}
	b, err := wordOperand(OpBinAdd, 1, operands[1])
	if err != nil {
		return nil, err
	}
	return low128(new(uint256.Int).Add(a, b)), nil
}

func evalBinMult(operands [][]byte) ([]byte, error) {
	a, err := wordOperand(OpBinMult, 0, operands[0])
	if err != nil {
		return nil, err
	}
	b, err := wordOperand(OpBinMult, 1, operands[1])
	if err != nil {
		return nil, err
	}
	return low128(new(uint256.Int).Mul(a, b)), nil
}

func evalConcat(operands [][]byte) []byte {
	var out []byte
	for _, o := range operands {
		out = append(out, o...)
	}
	if out == nil {
		out = []byte{}
	}
	return out
}

func evalConst(operands [][]byte, params []byte) []byte {
	if len(operands) == 1 {
		return append([]byte{}, operands[0]...)
	}
	return append([]byte{}, params...)
}

func evalCompress(operands [][]byte) ([]byte, error) {
	s := sha256State(sha256IV)
	block := operands[len(operands)-1]
	if len(operands) == 2 {
		if len(operands[0]) != sha256DigestSize {
			return nil, errorsmod.Wrapf(types.ErrInvalidOperandLength, "SHA256_COMPRESS state is %d bytes", len(operands[0]))
		}
		s = stateFromBytes(operands[0])
	}
	if len(block) != sha256BlockSize {
		return nil, errorsmod.Wrapf(types.ErrInvalidOperandLength, "SHA256_COMPRESS block is %d bytes", len(block))
	}
	s.compress(block)
	return s.bytes(), nil
}

// evalCompressFinal accepts (tail, length) or (prev, tail, length), or with
// an 8-byte inline length, (tail) or (prev, tail).
func evalCompressFinal(operands [][]byte, params []byte) ([]byte, error) {
	var lenBytes []byte
	switch len(params) {
	case 0:
		if len(operands) < 2 {
			return nil, errorsmod.Wrap(types.ErrArityMismatch, "SHA256_COMPRESS_FINAL without inline length needs a length operand")
		}
		lenBytes = operands[len(operands)-1]
		operands = operands[:len(operands)-1]
	case LengthSize:
		if len(operands) > 2 {
			return nil, errorsmod.Wrapf(types.ErrArityMismatch, "SHA256_COMPRESS_FINAL with inline length takes 1..2 operands, got %d", len(operands))
		}
		lenBytes = params
	default:
		return nil, errorsmod.Wrapf(types.ErrInvalidOperandLength, "SHA256_COMPRESS_FINAL parameters are %d bytes", len(params))
	}
	if len(lenBytes) != LengthSize {
		return nil, errorsmod.Wrapf(types.ErrInvalidOperandLength, "SHA256_COMPRESS_FINAL length is %d bytes", len(lenBytes))
	}
	msgLen := binary.BigEndian.Uint64(lenBytes)
	if msgLen >= 1<<61 {
		return nil, errorsmod.Wrapf(types.ErrInvalidOperandLength, "message length %d overflows the bit counter", msgLen)
	}

	tail := operands[len(operands)-1]
	hasPrev := len(operands) == 2
	if len(tail) > sha256BlockSize {
		return nil, errorsmod.Wrapf(types.ErrInvalidOperandLength, "SHA256_COMPRESS_FINAL tail is %d bytes", len(tail))
	}
	if msgLen < uint64(len(tail)) || (msgLen-uint64(len(tail)))%sha256BlockSize != 0 {
		return nil, errorsmod.Wrapf(types.ErrInvalidOperandLength, "length %d inconsistent with a %d-byte tail", msgLen, len(tail))
	}
	if hasPrev != (msgLen > uint64(len(tail))) {
		return nil, errorsmod.Wrapf(types.ErrArityMismatch, "chaining state presence does not match length %d", msgLen)
	}

	s := sha256State(sha256IV)
	if hasPrev {
		if len(operands[0]) != sha256DigestSize {
			return nil, errorsmod.Wrapf(types.ErrInvalidOperandLength, "SHA256_COMPRESS_FINAL state is %d bytes", len(operands[0]))
		}
		s = stateFromBytes(operands[0])
	}
	s.finalize(tail, msgLen)
	return s.bytes(), nil
}
