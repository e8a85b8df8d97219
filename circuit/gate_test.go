package circuit

import (
	"bytes"
	"errors"
	"testing"

	"github.com/optiswap/optiswap/core/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	gates := []Gate{
		{Op: OpConst, Params: bytes.Repeat([]byte{0xaa}, 32)},
		{Op: OpEqual, Operands: []uint64{0, 1, 2, 3, 4}, Params: []byte{}},
		{Op: OpAES128CTRBlock, Operands: []uint64{7, MaxIndex}, Params: []byte{}},
		{Op: OpSHA256CompressFinal, Operands: []uint64{3}, Params: []byte{0, 0, 0, 0, 0, 0, 0, 16}},
	}
	for _, g := range gates {
		rec, err := Encode(g)
		if err != nil {
			t.Fatalf("Encode(%s): %v", g.Op, err)
		}
		got, err := Decode(rec, CircuitVersion)
		if err != nil {
			t.Fatalf("Decode(%s): %v", g.Op, err)
		}
		if got.Op != g.Op || !bytes.Equal(got.Params, g.Params) || len(got.Operands) != len(g.Operands) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, g)
		}
		for i := range g.Operands {
			if got.Operands[i] != g.Operands[i] {
				t.Fatalf("operand %d: got %d, want %d", i, got.Operands[i], g.Operands[i])
			}
		}
	}
}

func TestEncodeLayout(t *testing.T) {
	rec, err := Encode(Gate{Op: OpBinAdd, Operands: []uint64{1, 0x0102}, Params: []byte{0xee}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if rec[0] != byte(OpBinAdd) {
		t.Fatalf("opcode byte = %x", rec[0])
	}
	if !bytes.Equal(rec[1:7], []byte{0, 0, 0, 0, 0, 1}) {
		t.Fatalf("slot 0 = %x", rec[1:7])
	}
	if !bytes.Equal(rec[7:13], []byte{0, 0, 0, 0, 1, 2}) {
		t.Fatalf("slot 1 = %x", rec[7:13])
	}
	for i := 13; i < 31; i++ {
		if rec[i] != 0xff {
			t.Fatalf("empty slot byte %d = %x, want ff", i, rec[i])
		}
	}
	if rec[31] != 1 || rec[32] != 0xee {
		t.Fatalf("params = len %d, %x", rec[31], rec[32])
	}
}

func TestDecodeMalformed(t *testing.T) {
	valid, _ := Encode(Gate{Op: OpBinAdd, Operands: []uint64{0, 1}})

	tests := []struct {
		name    string
		mutate  func(r *Record)
		version uint8
	}{
		{"bad version", func(r *Record) {}, 2},
		{"unknown opcode", func(r *Record) { r[0] = 0x42 }, CircuitVersion},
		{"zero opcode", func(r *Record) { r[0] = 0 }, CircuitVersion},
		{"gap before populated slot", func(r *Record) {
			copy(r[1:7], bytes.Repeat([]byte{0xff}, 6))
		}, CircuitVersion},
		{"negative index", func(r *Record) { r[7] = 0x80 }, CircuitVersion},
		{"too many operands", func(r *Record) { copy(r[13:19], []byte{0, 0, 0, 0, 0, 2}) }, CircuitVersion},
		{"params too long", func(r *Record) { r[31] = 33 }, CircuitVersion},
	}
	for _, tt := range tests {
		rec := valid
		tt.mutate(&rec)
		_, err := Decode(rec, tt.version)
		if !errors.Is(err, types.ErrMalformedGate) {
			t.Errorf("%s: err = %v, want ErrMalformedGate", tt.name, err)
		}
	}
}

func TestEncodeRejects(t *testing.T) {
	if _, err := Encode(Gate{Op: 0x99}); !errors.Is(err, types.ErrMalformedGate) {
		t.Fatalf("unknown opcode: err = %v", err)
	}
	if _, err := Encode(Gate{Op: OpBinAdd, Operands: []uint64{0, 1, 2}}); !errors.Is(err, types.ErrMalformedGate) {
		t.Fatalf("excess operands: err = %v", err)
	}
	if _, err := Encode(Gate{Op: OpConst, Params: make([]byte, 33)}); !errors.Is(err, types.ErrMalformedGate) {
		t.Fatalf("long params: err = %v", err)
	}
	if _, err := Encode(Gate{Op: OpConcat, Operands: []uint64{MaxIndex + 1}}); !errors.Is(err, types.ErrMalformedGate) {
		t.Fatalf("oversized index: err = %v", err)
	}
}

func TestCheckOrder(t *testing.T) {
	g := Gate{Op: OpConcat, Operands: []uint64{0, 4}}
	if err := g.CheckOrder(5); err != nil {
		t.Fatalf("CheckOrder(5): %v", err)
	}
	if err := g.CheckOrder(4); !errors.Is(err, types.ErrForwardReference) {
		t.Fatalf("self reference: err = %v, want ErrForwardReference", err)
	}
}

func TestOpcodeNames(t *testing.T) {
	for op := range arities {
		name := op.String()
		back, ok := ParseOpcode(name)
		if !ok || back != op {
			t.Fatalf("ParseOpcode(%q) = %v, %v", name, back, ok)
		}
	}
	if Opcode(0x77).Valid() {
		t.Fatal("0x77 must not be a valid opcode")
	}
}
