// BLS session keys.
//
// Parties may delegate to a BLS12-381 session key instead of a secp256k1 key.
// Verification goes through the active BLSBackend; the default build has no
// backend, so BLS-signed transactions are rejected as unauthorized. Building
// with -tags blst installs the supranational/blst backend.
package crypto

import (
	"errors"
	"sync"

	"github.com/optiswap/optiswap/core/types"
)

// BLS key and signature sizes for the MinPk scheme.
const (
	BLSPubkeySize    = 48
	BLSSignatureSize = 96
)

// ErrNoBLSBackend is returned when a BLS operation is requested but no
// backend was compiled in.
var ErrNoBLSBackend = errors.New("bls: no backend available")

// BLSBackend verifies BLS12-381 signatures.
type BLSBackend interface {
	// Name returns a human-readable backend identifier.
	Name() string
	// Verify checks sig over msg under the compressed public key.
	Verify(pubkey, msg, sig []byte) bool
}

var (
	blsMu            sync.RWMutex
	activeBLSBackend BLSBackend
)

// DefaultBLSBackend returns the active backend, or nil if none is installed.
func DefaultBLSBackend() BLSBackend {
	blsMu.RLock()
	defer blsMu.RUnlock()
	return activeBLSBackend
}

// SetBLSBackend installs the active backend. Passing nil disables BLS.
func SetBLSBackend(b BLSBackend) {
	blsMu.Lock()
	defer blsMu.Unlock()
	activeBLSBackend = b
}

// VerifyBLS checks a BLS signature over a 32-byte hash with the active backend.
func VerifyBLS(pubkey []byte, hash types.Hash, sig []byte) error {
	b := DefaultBLSBackend()
	if b == nil {
		return ErrNoBLSBackend
	}
	if len(pubkey) != BLSPubkeySize || len(sig) != BLSSignatureSize {
		return errors.New("bls: malformed public key or signature")
	}
	if !b.Verify(pubkey, hash[:], sig) {
		return errors.New("bls: signature verification failed")
	}
	return nil
}

// BLSPubkeyToAddress derives the ledger address of a BLS public key as the
// last 20 bytes of its Keccak-256 hash.
func BLSPubkeyToAddress(pubkey []byte) types.Address {
	return types.BytesToAddress(Keccak256(pubkey)[12:])
}
