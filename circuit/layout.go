package circuit

import (
	"crypto/sha256"
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"

	"github.com/optiswap/optiswap/core/types"
)

// GatesPerBlock is the number of gates the decryption circuit spends on each
// 16-byte ciphertext block.
const GatesPerBlock = 4

// MaxNumBlocks is the largest circuit whose gate indices fit an operand slot.
const MaxNumBlocks = (MaxIndex - 1) / GatesPerBlock

// NumGates returns the gate count of a decryption circuit over numBlocks.
func NumGates(numBlocks uint64) uint64 {
	return GatesPerBlock*numBlocks + 1
}

// CheckLayout validates that numGates matches numBlocks.
func CheckLayout(numBlocks, numGates uint64) error {
	if numBlocks == 0 || numBlocks > MaxNumBlocks {
		return errorsmod.Wrapf(types.ErrInvalidParams, "num_blocks %d out of range", numBlocks)
	}
	if numGates != NumGates(numBlocks) {
		return errorsmod.Wrapf(types.ErrInvalidParams, "num_gates %d, want %d for %d blocks", numGates, NumGates(numBlocks), numBlocks)
	}
	return nil
}

// NumBlocks returns the number of AES blocks covering size bytes.
func NumBlocks(size int) uint64 {
	return uint64((size + AESBlockSize - 1) / AESBlockSize)
}

// Gate positions within the decryption circuit.
const (
	DigestGate = 0

	offCounter = 0
	offCipher  = 1
	offPlain   = 2
	offChain   = 3
)

// BlockBase returns the index of the first gate of block i.
func BlockBase(i uint64) uint64 { return 1 + GatesPerBlock*i }

// PlaintextGate returns the index of the gate producing plaintext block i.
func PlaintextGate(i uint64) uint64 { return BlockBase(i) + offPlain }

// ChainGate returns the index of the gate producing the running digest
// after block i.
func ChainGate(i uint64) uint64 { return BlockBase(i) + offChain }

// ComposeDecryption builds the decrypt-and-verify circuit for ciphertext
// encrypted under AES-128-CTR starting at iv:
//
//	gate 0        CONST digest
//	gate b=1+4i   CONST counter_i
//	gate b+1      CONST ciphertext_i
//	gate b+2      AES128_CTR_BLOCK[released key](b, b+1) = plaintext_i
//	gate b+3      SHA256_COMPRESS_FINAL running digest
//
// The running digest is h_0 = SHA256(p_0) and h_i = FINAL(h_{i-1}, p_i)
// over a message of 64+len(p_i) bytes. The final gate therefore equals
// Digest(plaintext).
func ComposeDecryption(ciphertext []byte, iv [AESBlockSize]byte, digest types.Hash) ([]Gate, error) {
	if len(ciphertext) == 0 {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "empty ciphertext")
	}
	n := NumBlocks(len(ciphertext))
	if n > MaxNumBlocks {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "%d blocks exceeds %d", n, MaxNumBlocks)
	}
	gates := make([]Gate, 0, NumGates(n))
	gates = append(gates, Gate{Op: OpConst, Params: digest.Bytes()})
	for i := uint64(0); i < n; i++ {
		b := BlockBase(i)
		chunk := ciphertext[i*AESBlockSize : min(uint64(len(ciphertext)), (i+1)*AESBlockSize)]
		ctr := CounterBlock(iv, i)

		final := Gate{Op: OpSHA256CompressFinal, Operands: []uint64{b + offPlain}}
		msgLen := uint64(len(chunk))
		if i > 0 {
			final.Operands = []uint64{ChainGate(i - 1), b + offPlain}
			msgLen += sha256BlockSize
		}
		final.Params = binary.BigEndian.AppendUint64(nil, msgLen)

		gates = append(gates,
			Gate{Op: OpConst, Params: append([]byte(nil), ctr[:]...)},
			Gate{Op: OpConst, Params: append([]byte(nil), chunk...)},
			Gate{Op: OpAES128CTRBlock, Operands: []uint64{b + offCounter, b + offCipher}},
			final,
		)
	}
	return gates, nil
}

// Digest computes the running digest the decryption circuit ends with.
func Digest(plaintext []byte) types.Hash {
	if len(plaintext) == 0 {
		return types.Hash(sha256.Sum256(nil))
	}
	n := NumBlocks(len(plaintext))
	var h []byte
	for i := uint64(0); i < n; i++ {
		chunk := plaintext[i*AESBlockSize : min(uint64(len(plaintext)), (i+1)*AESBlockSize)]
		if i == 0 {
			sum := sha256.Sum256(chunk)
			h = sum[:]
			continue
		}
		s := stateFromBytes(h)
		s.finalize(chunk, sha256BlockSize+uint64(len(chunk)))
		h = s.bytes()
	}
	return types.BytesToHash(h)
}
