package types

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error codespace registered for the protocol taxonomy.
const Codespace = "optiswap"

// Protocol error taxonomy. Every rejected call surfaces exactly one of these
// (possibly wrapped with detail) so that adjudication can tell "proof invalid"
// apart from "not yet submitted" and from "unauthorized".
var (
	ErrMalformedGate        = errorsmod.Register(Codespace, 2, "malformed gate")
	ErrArityMismatch        = errorsmod.Register(Codespace, 3, "arity mismatch")
	ErrInvalidOperandLength = errorsmod.Register(Codespace, 4, "invalid operand length")
	ErrUnsupportedVersion   = errorsmod.Register(Codespace, 5, "unsupported circuit version")
	ErrProofInvalid         = errorsmod.Register(Codespace, 6, "proof invalid")
	ErrUnauthorized         = errorsmod.Register(Codespace, 7, "unauthorized")
	ErrDeadlineExceeded     = errorsmod.Register(Codespace, 8, "deadline exceeded")
	ErrInvalidState         = errorsmod.Register(Codespace, 9, "invalid state for transition")
	ErrInsufficientFunds    = errorsmod.Register(Codespace, 10, "insufficient funds")
	ErrInvalidParams        = errorsmod.Register(Codespace, 11, "invalid parameters")
	ErrDeadlineNotReached   = errorsmod.Register(Codespace, 12, "deadline not reached")
	ErrAlreadySubmitted     = errorsmod.Register(Codespace, 13, "already submitted")
	ErrNotSubmitted         = errorsmod.Register(Codespace, 14, "not submitted")
	ErrForwardReference     = errorsmod.Register(Codespace, 15, "operand references a later gate")
	ErrUnknownTarget        = errorsmod.Register(Codespace, 16, "unknown target")
	ErrBadNonce             = errorsmod.Register(Codespace, 17, "bad nonce")
)

var taxonomy = []struct {
	err  error
	name string
}{
	{ErrMalformedGate, "MalformedGate"},
	{ErrArityMismatch, "ArityMismatch"},
	{ErrInvalidOperandLength, "InvalidOperandLength"},
	{ErrUnsupportedVersion, "UnsupportedVersion"},
	{ErrProofInvalid, "ProofInvalid"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrDeadlineExceeded, "DeadlineExceeded"},
	{ErrInvalidState, "InvalidState"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrInvalidParams, "InvalidParams"},
	{ErrDeadlineNotReached, "DeadlineNotReached"},
	{ErrAlreadySubmitted, "AlreadySubmitted"},
	{ErrNotSubmitted, "NotSubmitted"},
	{ErrForwardReference, "ForwardReference"},
	{ErrUnknownTarget, "UnknownTarget"},
	{ErrBadNonce, "BadNonce"},
}

// Reason returns the taxonomy name of err, "" for nil and "unknown" for
// errors outside the taxonomy.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, t := range taxonomy {
		if errors.Is(err, t.err) {
			return t.name
		}
	}
	return "unknown"
}
