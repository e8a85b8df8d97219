package circuit

import "fmt"

// Opcode identifies the primitive a gate evaluates.
type Opcode uint8

// Opcode values are part of the record format shared with the trace producer.
const (
	OpEqual               Opcode = 0x01
	OpBinAdd              Opcode = 0x02
	OpBinMult             Opcode = 0x03
	OpConcat              Opcode = 0x04
	OpConst               Opcode = 0x05
	OpSHA256Compress      Opcode = 0x06
	OpSHA256CompressFinal Opcode = 0x07
	OpAES128CTRBlock      Opcode = 0x08
)

type arity struct {
	min, max int
}

var arities = map[Opcode]arity{
	OpEqual:               {2, 5},
	OpBinAdd:              {2, 2},
	OpBinMult:             {2, 2},
	OpConcat:              {1, 5},
	OpConst:               {0, 1},
	OpSHA256Compress:      {1, 2},
	OpSHA256CompressFinal: {1, 3},
	OpAES128CTRBlock:      {1, 2},
}

var opcodeNames = map[Opcode]string{
	OpEqual:               "EQUAL",
	OpBinAdd:              "BIN_ADD",
	OpBinMult:             "BIN_MULT",
	OpConcat:              "CONCAT",
	OpConst:               "CONST",
	OpSHA256Compress:      "SHA256_COMPRESS",
	OpSHA256CompressFinal: "SHA256_COMPRESS_FINAL",
	OpAES128CTRBlock:      "AES128_CTR_BLOCK",
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := arities[op]
	return ok
}

// Arity returns the minimum and maximum operand counts of op.
func (op Opcode) Arity() (min, max int) {
	a := arities[op]
	return a.min, a.max
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OPCODE(0x%02x)", uint8(op))
}

// ParseOpcode maps an opcode name back to its value.
func ParseOpcode(name string) (Opcode, bool) {
	for op, n := range opcodeNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}
