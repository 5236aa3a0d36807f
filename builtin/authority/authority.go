// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package authority keeps the owner and role grants of a builtin contract.
// Ownership moves in two phases: the owner nominates, the nominee accepts.
package authority

import (
	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/builtin/solidity"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/mesh"
)

var (
	logger = log.WithContext("pkg", "authority")

	slotOwner        = mesh.BytesToBytes32([]byte("owner"))
	slotPendingOwner = mesh.BytesToBytes32([]byte("pending-owner"))
	slotRoles        = mesh.BytesToBytes32([]byte("roles"))
)

// Role names a permission granted by the owner.
type Role string

func (r Role) Bytes() []byte {
	return []byte(r)
}

type grant struct {
	role    Role
	account mesh.Address
}

func (g grant) Bytes() []byte {
	return append(g.account.Bytes(), g.role...)
}

// Authority implements ownership and roles for the contract bound to sctx.
type Authority struct {
	contract     mesh.Address
	owner        *solidity.Address
	pendingOwner *solidity.Address
	roles        *solidity.Mapping[grant, bool]
}

func New(sctx *solidity.Context) *Authority {
	return &Authority{
		contract:     sctx.Address(),
		owner:        solidity.NewAddress(sctx, slotOwner),
		pendingOwner: solidity.NewAddress(sctx, slotPendingOwner),
		roles:        solidity.NewMapping[grant, bool](sctx, slotRoles),
	}
}

// Init sets the first owner. It fails once an owner exists.
func (a *Authority) Init(owner mesh.Address) error {
	current, err := a.owner.Get()
	if err != nil {
		return err
	}
	if !current.IsZero() {
		return reverts.State("owner already set")
	}
	if owner.IsZero() {
		return reverts.Invalid("zero owner")
	}
	a.owner.Set(&owner)
	return nil
}

// Owner returns the current owner.
func (a *Authority) Owner() (mesh.Address, error) {
	return a.owner.Get()
}

// PendingOwner returns the nominated owner, zero if none.
func (a *Authority) PendingOwner() (mesh.Address, error) {
	return a.pendingOwner.Get()
}

// RequireOwner fails unless caller is the owner.
func (a *Authority) RequireOwner(caller mesh.Address) error {
	owner, err := a.owner.Get()
	if err != nil {
		return err
	}
	if owner.IsZero() || owner != caller {
		return reverts.Unauthorized("caller %v is not the owner", caller)
	}
	return nil
}

// TransferOwnership nominates next as the new owner.
func (a *Authority) TransferOwnership(caller, next mesh.Address) error {
	if err := a.RequireOwner(caller); err != nil {
		return err
	}
	a.pendingOwner.Set(&next)
	logger.Info("ownership transfer started", "contract", a.contract, "pending", next)
	return nil
}

// AcceptOwnership completes a transfer started by the owner.
func (a *Authority) AcceptOwnership(caller mesh.Address) error {
	pending, err := a.pendingOwner.Get()
	if err != nil {
		return err
	}
	if pending.IsZero() || pending != caller {
		return reverts.Unauthorized("caller %v is not the pending owner", caller)
	}
	a.owner.Set(&caller)
	a.pendingOwner.Set(nil)
	logger.Info("ownership accepted", "contract", a.contract, "owner", caller)
	return nil
}

// Grant gives role to account.
func (a *Authority) Grant(caller mesh.Address, role Role, account mesh.Address) error {
	if err := a.RequireOwner(caller); err != nil {
		return err
	}
	return a.roles.Upsert(grant{role, account}, true)
}

// Revoke removes role from account.
func (a *Authority) Revoke(caller mesh.Address, role Role, account mesh.Address) error {
	if err := a.RequireOwner(caller); err != nil {
		return err
	}
	a.roles.Delete(grant{role, account})
	return nil
}

// HasRole reports whether account holds role.
func (a *Authority) HasRole(role Role, account mesh.Address) (bool, error) {
	return a.roles.Get(grant{role, account})
}

// RequireRole fails unless caller holds role or is the owner.
func (a *Authority) RequireRole(caller mesh.Address, role Role) error {
	ok, err := a.HasRole(role, caller)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := a.RequireOwner(caller); err != nil {
		return reverts.Unauthorized("caller %v lacks role %s", caller, role)
	}
	return nil
}
