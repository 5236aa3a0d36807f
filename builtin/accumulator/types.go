// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accumulator

import (
	"math/big"

	"github.com/boostmesh/mesh/mesh"
)

// Pool is the state of one reward accumulator.
//
// RewardPerToken grows by notified*Precision/TotalSupply on every notification.
// ScaledRewardPerToken grows by the same amount times the multiplier in force.
type Pool struct {
	RewardToken mesh.Address
	Operator    mesh.Address
	Parent      mesh.Address // set for extras, which mirror the parent's balances
	Extras      []mesh.Address

	TotalSupply          *big.Int
	RewardPerToken       *big.Int
	ScaledRewardPerToken *big.Int
	Queued               *big.Int // notified while TotalSupply was zero
	TotalNotified        *big.Int
	TotalPaid            *big.Int
}

func newPool(rewardToken, operator, parent mesh.Address) *Pool {
	return &Pool{
		RewardToken:          rewardToken,
		Operator:             operator,
		Parent:               parent,
		TotalSupply:          new(big.Int),
		RewardPerToken:       new(big.Int),
		ScaledRewardPerToken: new(big.Int),
		Queued:               new(big.Int),
		TotalNotified:        new(big.Int),
		TotalPaid:            new(big.Int),
	}
}

// IsExtra reports whether the pool mirrors another pool's balances.
func (p *Pool) IsExtra() bool {
	return !p.Parent.IsZero()
}

// Account is the per account state of an accumulator.
// Extras keep no balance of their own and read the parent's.
type Account struct {
	Balance       *big.Int
	Paid          *big.Int // RewardPerToken at last settlement
	ScaledPaid    *big.Int // ScaledRewardPerToken at last settlement
	Accrued       *big.Int
	ScaledAccrued *big.Int
}

func newAccount() *Account {
	return &Account{
		Balance:       new(big.Int),
		Paid:          new(big.Int),
		ScaledPaid:    new(big.Int),
		Accrued:       new(big.Int),
		ScaledAccrued: new(big.Int),
	}
}

type accountKey struct {
	pool    mesh.Address
	account mesh.Address
}

func (k accountKey) Bytes() []byte {
	return append(k.pool.Bytes(), k.account.Bytes()...)
}
