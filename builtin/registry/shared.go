// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"math/big"

	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/mesh"
)

// Shared selects one of the two accumulators fed by protocol fees.
type Shared uint8

const (
	SharedLock Shared = iota
	SharedStaker
)

func (r *Registry) sharedID(which Shared) (mesh.Address, *Settings, error) {
	settings, err := r.Settings()
	if err != nil {
		return mesh.Address{}, nil, err
	}
	switch which {
	case SharedLock:
		return settings.LockRewards, settings, nil
	case SharedStaker:
		return settings.StakerRewards, settings, nil
	default:
		return mesh.Address{}, nil, reverts.Invalid("unknown shared accumulator %d", which)
	}
}

// StakeShared stakes amount of issuance from the caller into a shared accumulator.
func (r *Registry) StakeShared(caller mesh.Address, which Shared, amount *big.Int) error {
	id, settings, err := r.sharedID(which)
	if err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return reverts.Invalid("stake amount must be positive")
	}
	if err := r.token.Transfer(settings.Issuance, caller, r.addr, amount); err != nil {
		return err
	}
	return r.accumulator.Stake(r.addr, id, caller, amount)
}

// UnstakeShared returns amount of staked issuance to the caller.
func (r *Registry) UnstakeShared(caller mesh.Address, which Shared, amount *big.Int) error {
	id, settings, err := r.sharedID(which)
	if err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return reverts.Invalid("unstake amount must be positive")
	}
	if err := r.accumulator.Withdraw(r.addr, id, caller, amount); err != nil {
		return err
	}
	return r.token.Transfer(settings.Issuance, r.addr, caller, amount)
}

// ClaimShared pays the caller's reward from a shared accumulator.
func (r *Registry) ClaimShared(caller mesh.Address, which Shared) (*big.Int, error) {
	id, _, err := r.sharedID(which)
	if err != nil {
		return nil, err
	}
	paid, _, err := r.accumulator.GetReward(r.addr, id, caller)
	return paid, err
}
