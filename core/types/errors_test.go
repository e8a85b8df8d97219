package types

import (
	"errors"
	"fmt"
	"testing"

	errorsmod "cosmossdk.io/errors"
)

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrMalformedGate, "MalformedGate"},
		{errorsmod.Wrapf(ErrProofInvalid, "leaf %d", 3), "ProofInvalid"},
		{fmt.Errorf("outer: %w", errorsmod.Wrap(ErrDeadlineExceeded, "claim")), "DeadlineExceeded"},
		{ErrBadNonce, "BadNonce"},
		{errors.New("something else"), "unknown"},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestTaxonomyDistinct(t *testing.T) {
	seen := make(map[uint32]string)
	for _, e := range taxonomy {
		space, code, _ := errorsmod.ABCIInfo(e.err, false)
		if space != Codespace {
			t.Fatalf("%s: codespace = %q, want %q", e.name, space, Codespace)
		}
		if prev, ok := seen[code]; ok {
			t.Fatalf("%s reuses code %d of %s", e.name, code, prev)
		}
		seen[code] = e.name
	}
}
