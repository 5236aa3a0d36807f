// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package multiplier keeps the reward multiplier of each reward target.
//
// A multiplier scales the issuance minted for rewards of its target, expressed over
// mesh.MultiplierDenominator. Changing a multiplier is not retroactive: reward already
// notified keeps the multiplier that was in force when it was notified.
package multiplier

import (
	"math/big"

	"github.com/boostmesh/mesh/builtin/authority"
	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/builtin/solidity"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/state"
)

var (
	logger = log.WithContext("pkg", "multiplier")

	slotMultipliers = mesh.BytesToBytes32([]byte("multipliers"))

	defaultMultiplier = big.NewInt(mesh.MultiplierDenominator)
)

// Multiplier implements the reward multiplier contract.
type Multiplier struct {
	*authority.Authority
	values *solidity.Mapping[mesh.Address, *big.Int]
}

// New create a new instance.
func New(addr mesh.Address, state *state.State) *Multiplier {
	sctx := solidity.NewContext(addr, state)
	return &Multiplier{
		Authority: authority.New(sctx),
		values:    solidity.NewMapping[mesh.Address, *big.Int](sctx, slotMultipliers),
	}
}

// Get returns the multiplier of target, mesh.MultiplierDenominator when unset.
func (m *Multiplier) Get(target mesh.Address) (*big.Int, error) {
	v, err := m.values.Get(target)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return new(big.Int).Set(defaultMultiplier), nil
	}
	return v, nil
}

// Set updates the multiplier of target. Only the owner may call.
func (m *Multiplier) Set(caller, target mesh.Address, value *big.Int) error {
	if err := m.RequireOwner(caller); err != nil {
		return err
	}
	if value.Sign() < 0 || value.Cmp(big.NewInt(mesh.MaxMultiplier)) > 0 {
		return reverts.Invalid("multiplier %v out of range", value)
	}
	logger.Info("multiplier updated", "target", target, "value", value)
	return m.values.Upsert(target, value)
}
