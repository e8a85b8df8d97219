// Package auth evaluates per-transition authorization for the exchange and
// dispute machines: two fixed primaries and time-limited session-key
// delegations. A dispute shares its exchange's policy, so a delegation
// registered or revoked on the exchange takes effect in the dispute at once.
package auth

import (
	"sort"

	errorsmod "cosmossdk.io/errors"

	"github.com/optiswap/optiswap/core/types"
)

// Role is the capacity in which a signer acts.
type Role uint8

const (
	RoleNone Role = iota
	RoleBuyer
	RoleVendor
)

func (r Role) String() string {
	switch r {
	case RoleBuyer:
		return "buyer"
	case RoleVendor:
		return "vendor"
	default:
		return "none"
	}
}

// Delegation authorizes Delegate to act as Principal until Expiry
// (exclusive, ledger seconds).
type Delegation struct {
	Delegate  types.Address
	Principal Role
	Expiry    uint64
}

// Policy is the authorization state of one machine.
type Policy struct {
	Buyer  types.Address
	Vendor types.Address

	delegates map[types.Address]Delegation
}

// NewPolicy returns a policy with the two primaries and no delegations.
func NewPolicy(buyer, vendor types.Address) (*Policy, error) {
	if buyer.IsZero() || vendor.IsZero() {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "buyer and vendor are required")
	}
	if buyer == vendor {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "buyer and vendor must differ")
	}
	return &Policy{Buyer: buyer, Vendor: vendor, delegates: make(map[types.Address]Delegation)}, nil
}

// Clone returns a deep copy of p.
func (p *Policy) Clone() *Policy {
	cp := *p
	cp.delegates = make(map[types.Address]Delegation, len(p.delegates))
	for k, v := range p.delegates {
		cp.delegates[k] = v
	}
	return &cp
}

// Holds reports whether signer may act as role at time now.
func (p *Policy) Holds(signer types.Address, now uint64, role Role) bool {
	if signer.IsZero() {
		return false
	}
	switch role {
	case RoleBuyer:
		if signer == p.Buyer {
			return true
		}
	case RoleVendor:
		if signer == p.Vendor {
			return true
		}
	default:
		return false
	}
	d, ok := p.delegates[signer]
	return ok && d.Principal == role && now < d.Expiry
}

// Authorize returns the first of roles that signer holds, or ErrUnauthorized.
func (p *Policy) Authorize(signer types.Address, now uint64, roles ...Role) (Role, error) {
	for _, r := range roles {
		if p.Holds(signer, now, r) {
			return r, nil
		}
	}
	return RoleNone, errorsmod.Wrapf(types.ErrUnauthorized, "%s holds none of %v", signer, roles)
}

// Delegate registers a session key for the primary signing the call.
func (p *Policy) Delegate(signer, delegate types.Address, expiry, now uint64) (Delegation, error) {
	var principal Role
	switch signer {
	case p.Buyer:
		principal = RoleBuyer
	case p.Vendor:
		principal = RoleVendor
	default:
		return Delegation{}, errorsmod.Wrap(types.ErrUnauthorized, "only the buyer or vendor may delegate")
	}
	if delegate.IsZero() || delegate == p.Buyer || delegate == p.Vendor {
		return Delegation{}, errorsmod.Wrapf(types.ErrInvalidParams, "invalid delegate %s", delegate)
	}
	if expiry <= now {
		return Delegation{}, errorsmod.Wrapf(types.ErrInvalidParams, "expiry %d not after %d", expiry, now)
	}
	if d, ok := p.delegates[delegate]; ok && d.Principal != principal {
		return Delegation{}, errorsmod.Wrapf(types.ErrUnauthorized, "%s already acts for the %s", delegate, d.Principal)
	}
	d := Delegation{Delegate: delegate, Principal: principal, Expiry: expiry}
	p.delegates[delegate] = d
	return d, nil
}

// Revoke removes a session key registered by the signing primary.
func (p *Policy) Revoke(signer, delegate types.Address) error {
	d, ok := p.delegates[delegate]
	if !ok {
		return errorsmod.Wrapf(types.ErrInvalidParams, "no delegation for %s", delegate)
	}
	if (d.Principal == RoleBuyer && signer != p.Buyer) || (d.Principal == RoleVendor && signer != p.Vendor) {
		return errorsmod.Wrap(types.ErrUnauthorized, "only the delegating primary may revoke")
	}
	delete(p.delegates, delegate)
	return nil
}

// Delegations returns the registered delegations ordered by delegate.
func (p *Policy) Delegations() []Delegation {
	out := make([]Delegation, 0, len(p.delegates))
	for _, d := range p.delegates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Delegate.Hex() < out[j].Delegate.Hex()
	})
	return out
}
