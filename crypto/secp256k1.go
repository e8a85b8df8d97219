// Package crypto provides the hashing, signing and commitment primitives of
// the optiswap core. secp256k1 operations are delegated to go-ethereum so that
// signatures and recovered addresses match those of an Ethereum-style ledger.
package crypto

import (
	"crypto/ecdsa"
	"errors"

	gethcommon "github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/optiswap/optiswap/core/types"
)

// SignatureLength is the size of a recoverable signature: R || S || V.
const SignatureLength = 65

var (
	ErrInvalidSignatureLength = errors.New("crypto: signature must be 65 bytes")
	ErrInvalidHashLength      = errors.New("crypto: hash must be 32 bytes")
)

// GenerateKey generates a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return gethcrypto.GenerateKey()
}

// HexToECDSA parses a hex-encoded secp256k1 private key.
func HexToECDSA(hexkey string) (*ecdsa.PrivateKey, error) {
	return gethcrypto.HexToECDSA(hexkey)
}

// Sign produces a recoverable signature over a 32-byte hash.
func Sign(hash types.Hash, prv *ecdsa.PrivateKey) ([]byte, error) {
	return gethcrypto.Sign(hash[:], prv)
}

// RecoverAddress returns the address whose key produced sig over hash.
func RecoverAddress(hash types.Hash, sig []byte) (types.Address, error) {
	if len(sig) != SignatureLength {
		return types.Address{}, ErrInvalidSignatureLength
	}
	pub, err := gethcrypto.SigToPub(hash[:], sig)
	if err != nil {
		return types.Address{}, err
	}
	return PubkeyToAddress(*pub), nil
}

// PubkeyToAddress derives the ledger address of a secp256k1 public key.
func PubkeyToAddress(p ecdsa.PublicKey) types.Address {
	return types.Address(gethcrypto.PubkeyToAddress(p))
}

// CreateAddress derives the address of a machine instantiated by creator at
// the given nonce, the same way contract addresses are derived.
func CreateAddress(creator types.Address, nonce uint64) types.Address {
	return types.Address(gethcrypto.CreateAddress(gethcommon.Address(creator), nonce))
}
