package ledger

import (
	"crypto/ecdsa"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/optiswap/optiswap/accumulator"
	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/crypto"
	"github.com/optiswap/optiswap/metrics"
)

// Op selects the transition a transaction invokes on its target.
type Op uint8

const (
	OpCreateExchange Op = iota + 1
	OpPay
	OpRevealKey
	OpSponsorBuyer
	OpSponsorVendor
	OpAccept
	OpStartDispute
	OpExchangeTimeout
	OpDelegate
	OpRevoke
	OpClaim
	OpRespond
	OpSubmitGate
	OpDisputeTimeout
)

var opNames = map[Op]string{
	OpCreateExchange:  "create_exchange",
	OpPay:             "pay",
	OpRevealKey:       "reveal_key",
	OpSponsorBuyer:    "sponsor_buyer",
	OpSponsorVendor:   "sponsor_vendor",
	OpAccept:          "accept",
	OpStartDispute:    "start_dispute",
	OpExchangeTimeout: "exchange_timeout",
	OpDelegate:        "delegate",
	OpRevoke:          "revoke",
	OpClaim:           "claim",
	OpRespond:         "respond",
	OpSubmitGate:      "submit_gate",
	OpDisputeTimeout:  "dispute_timeout",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "unknown"
}

// Machine returns the kind of machine op targets.
func (op Op) Machine() string {
	switch op {
	case OpClaim, OpRespond, OpSubmitGate, OpDisputeTimeout:
		return metrics.MachineDispute
	case OpCreateExchange:
		return metrics.MachineLedger
	default:
		return metrics.MachineExchange
	}
}

// Payloads, RLP-encoded into Tx.Payload. CreateExchange carries an
// exchange.Params and SubmitGate a dispute.Submission.
type (
	RevealKeyPayload struct {
		Key []byte
	}
	StartDisputePayload struct {
		Open   bool
		Digest types.Hash
		Salt   []byte
	}
	DelegatePayload struct {
		Delegate types.Address
		Expiry   uint64
	}
	RevokePayload struct {
		Delegate types.Address
	}
	ClaimPayload struct {
		Value []byte
		Proof accumulator.Proof
	}
	RespondPayload struct {
		Agree bool
	}
)

// Tx is an unsigned ledger transaction.
type Tx struct {
	Nonce   uint64
	Target  types.Address
	Op      Op
	Value   *uint256.Int
	Payload []byte
}

// NewTx encodes payload (nil for none) into a transaction.
func NewTx(nonce uint64, target types.Address, op Op, value *uint256.Int, payload any) (Tx, error) {
	tx := Tx{Nonce: nonce, Target: target, Op: op, Value: value}
	if tx.Value == nil {
		tx.Value = new(uint256.Int)
	}
	if payload != nil {
		enc, err := rlp.EncodeToBytes(payload)
		if err != nil {
			return Tx{}, errorsmod.Wrap(types.ErrInvalidParams, err.Error())
		}
		tx.Payload = enc
	}
	return tx, nil
}

// Hash returns the signing hash keccak256(rlp(tx)).
func (tx *Tx) Hash() types.Hash {
	enc, err := rlp.EncodeToBytes(tx)
	if err != nil {
		// Every field of Tx is RLP-encodable.
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}

// DecodePayload decodes the payload into v.
func (tx *Tx) DecodePayload(v any) error {
	if err := rlp.DecodeBytes(tx.Payload, v); err != nil {
		return errorsmod.Wrapf(types.ErrInvalidParams, "%s payload: %v", tx.Op, err)
	}
	return nil
}

// Scheme identifies the signature scheme of a SignedTx.
type Scheme uint8

const (
	SchemeSecp256k1 Scheme = iota
	SchemeBLS
)

// SignedTx is a transaction with its signature.
type SignedTx struct {
	Tx     Tx
	Scheme Scheme
	PubKey []byte // BLS only; secp256k1 senders are recovered
	Sig    []byte
}

// SignTx signs tx with a secp256k1 key.
func SignTx(tx Tx, prv *ecdsa.PrivateKey) (*SignedTx, error) {
	sig, err := crypto.Sign(tx.Hash(), prv)
	if err != nil {
		return nil, err
	}
	return &SignedTx{Tx: tx, Scheme: SchemeSecp256k1, Sig: sig}, nil
}

// Sender authenticates the signature and returns the signing address.
func (s *SignedTx) Sender() (types.Address, error) {
	hash := s.Tx.Hash()
	switch s.Scheme {
	case SchemeSecp256k1:
		addr, err := crypto.RecoverAddress(hash, s.Sig)
		if err != nil {
			return types.Address{}, errorsmod.Wrap(types.ErrUnauthorized, err.Error())
		}
		return addr, nil
	case SchemeBLS:
		if err := crypto.VerifyBLS(s.PubKey, hash, s.Sig); err != nil {
			return types.Address{}, errorsmod.Wrap(types.ErrUnauthorized, err.Error())
		}
		return crypto.BLSPubkeyToAddress(s.PubKey), nil
	default:
		return types.Address{}, errorsmod.Wrapf(types.ErrUnauthorized, "unknown signature scheme %d", s.Scheme)
	}
}

// EncodeSignedTx returns the RLP encoding of s.
func EncodeSignedTx(s *SignedTx) ([]byte, error) {
	return rlp.EncodeToBytes(s)
}

// DecodeSignedTx parses an RLP-encoded signed transaction.
func DecodeSignedTx(b []byte) (*SignedTx, error) {
	s := new(SignedTx)
	if err := rlp.DecodeBytes(b, s); err != nil {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, err.Error())
	}
	return s, nil
}
