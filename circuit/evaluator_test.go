package circuit

import (
	"bytes"
	"errors"
	"testing"

	"github.com/optiswap/optiswap/core/types"
)

func TestUnsupportedVersion(t *testing.T) {
	e := &Evaluator{Version: 2}
	if _, err := e.Evaluate(Gate{Op: OpConst}, nil); !errors.Is(err, types.ErrUnsupportedVersion) {
		t.Fatalf("Evaluate: err = %v, want ErrUnsupportedVersion", err)
	}
	if _, err := e.EvaluateTrace(nil); !errors.Is(err, types.ErrUnsupportedVersion) {
		t.Fatalf("EvaluateTrace: err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestEvaluateAtForwardReference(t *testing.T) {
	e := NewEvaluator(nil)
	trace := [][]byte{{1}, {2}, {3}}
	g := Gate{Op: OpConcat, Operands: []uint64{0, 2}}

	out, err := e.EvaluateAt(3, g, trace)
	if err != nil {
		t.Fatalf("EvaluateAt(3): %v", err)
	}
	if !bytes.Equal(out, []byte{1, 3}) {
		t.Fatalf("EvaluateAt(3) = %x", out)
	}
	if _, err := e.EvaluateAt(2, g, trace); !errors.Is(err, types.ErrForwardReference) {
		t.Fatalf("self reference: err = %v, want ErrForwardReference", err)
	}
}

func TestEvaluateAtShortTrace(t *testing.T) {
	e := NewEvaluator(nil)
	g := Gate{Op: OpConcat, Operands: []uint64{4}}
	if _, err := e.EvaluateAt(5, g, [][]byte{{1}}); !errors.Is(err, types.ErrInvalidParams) {
		t.Fatalf("err = %v, want ErrInvalidParams", err)
	}
}

func TestEvaluateTrace(t *testing.T) {
	gates := []Gate{
		{Op: OpConst, Params: []byte{0x05}},
		{Op: OpConst, Params: []byte{0x07}},
		{Op: OpBinAdd, Operands: []uint64{0, 1}},
		{Op: OpConst, Params: append(make([]byte, 15), 0x0c)},
		{Op: OpEqual, Operands: []uint64{2, 3}},
	}
	recs, err := EncodeAll(gates)
	if err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}
	trace, err := NewEvaluator(nil).EvaluateTrace(recs)
	if err != nil {
		t.Fatalf("EvaluateTrace: %v", err)
	}
	if len(trace) != len(gates) {
		t.Fatalf("trace length = %d, want %d", len(trace), len(gates))
	}
	if !bytes.Equal(trace[4], []byte{1}) {
		t.Fatalf("5+7 == 12 evaluated to %x", trace[4])
	}
}

func TestEvaluateTraceForwardReference(t *testing.T) {
	recs, _ := EncodeAll([]Gate{
		{Op: OpConst, Params: []byte{1}},
		{Op: OpConcat, Operands: []uint64{1}},
	})
	if _, err := NewEvaluator(nil).EvaluateTrace(recs); !errors.Is(err, types.ErrForwardReference) {
		t.Fatalf("err = %v, want ErrForwardReference", err)
	}
}
