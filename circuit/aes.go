package circuit

import (
	"crypto/aes"
	"crypto/cipher"

	errorsmod "cosmossdk.io/errors"

	"github.com/optiswap/optiswap/core/types"
)

// evalAESBlock encrypts one counter block under key. With a data operand the
// keystream is XORed into it and truncated to its length.
func evalAESBlock(operands [][]byte, key []byte) ([]byte, error) {
	if len(key) != AESKeySize {
		return nil, errorsmod.Wrapf(types.ErrInvalidOperandLength, "AES128_CTR_BLOCK key is %d bytes", len(key))
	}
	ctr := operands[0]
	if len(ctr) != AESBlockSize {
		return nil, errorsmod.Wrapf(types.ErrInvalidOperandLength, "AES128_CTR_BLOCK counter is %d bytes", len(ctr))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrInvalidOperandLength, err.Error())
	}
	stream := make([]byte, AESBlockSize)
	block.Encrypt(stream, ctr)
	if len(operands) == 1 {
		return stream, nil
	}
	data := operands[1]
	if len(data) == 0 || len(data) > AESBlockSize {
		return nil, errorsmod.Wrapf(types.ErrInvalidOperandLength, "AES128_CTR_BLOCK data is %d bytes", len(data))
	}
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ stream[i]
	}
	return out, nil
}

// EncryptCTR encrypts (or decrypts) data with AES-128 in counter mode
// starting at iv, the transformation the decryption circuit reverses.
func EncryptCTR(key []byte, iv [AESBlockSize]byte, data []byte) ([]byte, error) {
	if len(key) != AESKeySize {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "key is %d bytes", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv[:]).XORKeyStream(out, data)
	return out, nil
}

// CounterBlock returns iv + i as a 128-bit big-endian integer, the counter
// crypto/cipher's CTR mode uses for block i.
func CounterBlock(iv [AESBlockSize]byte, i uint64) [AESBlockSize]byte {
	ctr := iv
	carry := i
	for j := AESBlockSize - 1; j >= 0 && carry != 0; j-- {
		sum := uint64(ctr[j]) + (carry & 0xff)
		ctr[j] = byte(sum)
		carry = (carry >> 8) + (sum >> 8)
	}
	return ctr
}
