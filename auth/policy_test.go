package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/optiswap/optiswap/core/types"
)

var (
	buyer   = types.HexToAddress("0xb0")
	vendor  = types.HexToAddress("0x0e")
	session = types.HexToAddress("0x5e")
	bs      = types.HexToAddress("0xb5")
	vs      = types.HexToAddress("0x05")
)

func newPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy(buyer, vendor)
	require.NoError(t, err)
	return p
}

func TestNewPolicyRejects(t *testing.T) {
	_, err := NewPolicy(buyer, buyer)
	require.ErrorIs(t, err, types.ErrInvalidParams)
	_, err = NewPolicy(types.Address{}, vendor)
	require.ErrorIs(t, err, types.ErrInvalidParams)
}

func TestPrimaries(t *testing.T) {
	p := newPolicy(t)
	r, err := p.Authorize(buyer, 0, RoleBuyer)
	require.NoError(t, err)
	require.Equal(t, RoleBuyer, r)

	_, err = p.Authorize(vendor, 0, RoleBuyer)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	r, err = p.Authorize(vendor, 0, RoleBuyer, RoleVendor)
	require.NoError(t, err)
	require.Equal(t, RoleVendor, r)
}

func TestDelegationLifecycle(t *testing.T) {
	p := newPolicy(t)
	_, err := p.Delegate(vendor, session, 100, 10)
	require.NoError(t, err)

	require.True(t, p.Holds(session, 99, RoleVendor))
	require.False(t, p.Holds(session, 100, RoleVendor), "delegation expires at Expiry")
	require.False(t, p.Holds(session, 50, RoleBuyer))

	require.ErrorIs(t, p.Revoke(buyer, session), types.ErrUnauthorized)
	require.NoError(t, p.Revoke(vendor, session))
	require.False(t, p.Holds(session, 50, RoleVendor))
	require.ErrorIs(t, p.Revoke(vendor, session), types.ErrInvalidParams)
}

func TestDelegateRejects(t *testing.T) {
	p := newPolicy(t)
	_, err := p.Delegate(session, bs, 100, 0)
	require.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = p.Delegate(buyer, session, 5, 5)
	require.ErrorIs(t, err, types.ErrInvalidParams)
	_, err = p.Delegate(buyer, vendor, 100, 0)
	require.ErrorIs(t, err, types.ErrInvalidParams)

	_, err = p.Delegate(buyer, session, 100, 0)
	require.NoError(t, err)
	_, err = p.Delegate(vendor, session, 100, 0)
	require.ErrorIs(t, err, types.ErrUnauthorized, "a key cannot act for both sides")
}

func TestClone(t *testing.T) {
	p := newPolicy(t)
	_, err := p.Delegate(buyer, session, 100, 0)
	require.NoError(t, err)

	cp := p.Clone()
	require.True(t, cp.Holds(session, 0, RoleBuyer), "delegations carry over")
	require.NoError(t, cp.Revoke(buyer, session))
	require.True(t, p.Holds(session, 0, RoleBuyer), "source policy unchanged")

	_, err = p.Delegate(vendor, vs, 100, 0)
	require.NoError(t, err)
	require.False(t, cp.Holds(vs, 0, RoleVendor))
	require.Len(t, p.Delegations(), 2)
	require.Empty(t, cp.Delegations())
}
