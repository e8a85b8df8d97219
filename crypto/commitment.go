package crypto

import (
	"crypto/subtle"

	"github.com/optiswap/optiswap/core/types"
)

// Commit returns the binding commitment keccak256(value || salt).
func Commit(value, salt []byte) types.Hash {
	return Keccak256Hash(value, salt)
}

// Open reports whether (value, salt) opens commitment.
func Open(commitment types.Hash, value, salt []byte) bool {
	c := Commit(value, salt)
	return subtle.ConstantTimeCompare(c[:], commitment[:]) == 1
}
