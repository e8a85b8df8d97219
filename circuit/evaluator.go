package circuit

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/optiswap/optiswap/core/types"
)

// Evaluator dispatches decoded gates to the primitive evaluators.
type Evaluator struct {
	// Version is the circuit version the evaluator runs under.
	Version uint8

	// Key is the released exchange key, used by AES gates whose parameters
	// reference it instead of carrying a key inline.
	Key []byte
}

// NewEvaluator returns an evaluator for the current circuit version.
func NewEvaluator(key []byte) *Evaluator {
	return &Evaluator{Version: CircuitVersion, Key: key}
}

// Evaluate computes the output of g over resolved operand values.
func (e *Evaluator) Evaluate(g Gate, operands [][]byte) ([]byte, error) {
	if e.Version != CircuitVersion {
		return nil, errorsmod.Wrapf(types.ErrUnsupportedVersion, "version %d", e.Version)
	}
	if !g.Op.Valid() {
		return nil, errorsmod.Wrapf(types.ErrMalformedGate, "unknown opcode 0x%02x", uint8(g.Op))
	}
	min, max := g.Op.Arity()
	if len(operands) < min || len(operands) > max {
		return nil, errorsmod.Wrapf(types.ErrArityMismatch, "%s takes %d..%d operands, got %d", g.Op, min, max, len(operands))
	}
	if len(g.Params) > MaxParams {
		return nil, errorsmod.Wrapf(types.ErrMalformedGate, "parameter length %d", len(g.Params))
	}

	switch g.Op {
	case OpEqual:
		return evalEqual(operands), nil
	case OpBinAdd:
		return evalBinAdd(operands)
	case OpBinMult:
		return evalBinMult(operands)
	case OpConcat:
		return evalConcat(operands), nil
	case OpConst:
		return evalConst(operands, g.Params), nil
	case OpSHA256Compress:
		return evalCompress(operands)
	case OpSHA256CompressFinal:
		return evalCompressFinal(operands, g.Params)
	case OpAES128CTRBlock:
		key, err := e.aesKey(g.Params)
		if err != nil {
			return nil, err
		}
		return evalAESBlock(operands, key)
	}
	return nil, errorsmod.Wrapf(types.ErrMalformedGate, "unhandled opcode %s", g.Op)
}

// aesKey resolves the key_or_ref parameter: 16 bytes inline, or empty for
// the released exchange key.
func (e *Evaluator) aesKey(params []byte) ([]byte, error) {
	switch len(params) {
	case AESKeySize:
		return params, nil
	case 0:
		if len(e.Key) != AESKeySize {
			return nil, errorsmod.Wrap(types.ErrInvalidOperandLength, "AES128_CTR_BLOCK references a key that has not been released")
		}
		return e.Key, nil
	default:
		return nil, errorsmod.Wrapf(types.ErrInvalidOperandLength, "AES128_CTR_BLOCK key parameter is %d bytes", len(params))
	}
}

// EvaluateAt computes the output of g placed at index, resolving its
// operands from the values of earlier gates in trace.
func (e *Evaluator) EvaluateAt(index uint64, g Gate, trace [][]byte) ([]byte, error) {
	if err := g.CheckOrder(index); err != nil {
		return nil, err
	}
	operands := make([][]byte, len(g.Operands))
	for i, op := range g.Operands {
		if op >= uint64(len(trace)) {
			return nil, errorsmod.Wrapf(types.ErrInvalidParams, "operand %d not in a trace of %d values", op, len(trace))
		}
		operands[i] = trace[op]
	}
	return e.Evaluate(g, operands)
}

// EvaluateTrace decodes and evaluates every record in order, returning the
// full trace of gate outputs.
func (e *Evaluator) EvaluateTrace(recs []Record) ([][]byte, error) {
	if e.Version != CircuitVersion {
		return nil, errorsmod.Wrapf(types.ErrUnsupportedVersion, "version %d", e.Version)
	}
	trace := make([][]byte, 0, len(recs))
	for i, rec := range recs {
		g, err := Decode(rec, e.Version)
		if err != nil {
			return nil, errorsmod.Wrapf(err, "gate %d", i)
		}
		out, err := e.EvaluateAt(uint64(i), g, trace)
		if err != nil {
			return nil, errorsmod.Wrapf(err, "gate %d", i)
		}
		trace = append(trace, out)
	}
	return trace, nil
}
