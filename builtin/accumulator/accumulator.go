// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package accumulator implements pro-rata reward accumulators.
//
// Each accumulator tracks a global reward-per-token index. An account's claimable reward is
// balance*(index-paid)/Precision plus what it accrued before, so notifying, staking and
// withdrawing are all O(1). Every balance change settles the account first.
//
// A second, multiplier-scaled index grows by delta*multiplier at each notify. The multiplier
// in force when a reward is notified is the one applied to it, so changing a multiplier
// never rescales rewards already notified.
package accumulator

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/builtin/solidity"
	"github.com/boostmesh/mesh/builtin/token"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/metrics"
	"github.com/boostmesh/mesh/state"
)

var (
	logger = log.WithContext("pkg", "accumulator")

	slotPools    = mesh.BytesToBytes32([]byte("pools"))
	slotAccounts = mesh.BytesToBytes32([]byte("accounts"))

	metricsNotified = metrics.LazyLoadCounter("accumulator_notify_count")
	metricsClaims   = metrics.LazyLoadCounter("accumulator_claim_count")

	errUnknownPool = reverts.State("unknown accumulator")
)

// Multipliers provides the reward multiplier of a target.
type Multipliers interface {
	Get(target mesh.Address) (*big.Int, error)
}

// Accumulator implements the reward accumulator contract.
// Reward tokens are held in custody under each accumulator's own address.
type Accumulator struct {
	pools       *solidity.Mapping[mesh.Address, *Pool]
	accounts    *solidity.Mapping[accountKey, *Account]
	token       *token.Token
	multipliers Multipliers
}

// New create a new instance.
func New(addr mesh.Address, state *state.State, token *token.Token, multipliers Multipliers) *Accumulator {
	sctx := solidity.NewContext(addr, state)
	return &Accumulator{
		pools:       solidity.NewMapping[mesh.Address, *Pool](sctx, slotPools),
		accounts:    solidity.NewMapping[accountKey, *Account](sctx, slotAccounts),
		token:       token,
		multipliers: multipliers,
	}
}

//
// Getters - no state change
//

// Get returns the accumulator, nil if it does not exist.
func (a *Accumulator) Get(id mesh.Address) (*Pool, error) {
	p, err := a.pools.Get(id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get accumulator")
	}
	return p, nil
}

func (a *Accumulator) getExisting(id mesh.Address) (*Pool, error) {
	p, err := a.Get(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errUnknownPool
	}
	return p, nil
}

func (a *Accumulator) getAccount(id, account mesh.Address) (*Account, error) {
	acc, err := a.accounts.Get(accountKey{id, account})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account")
	}
	if acc == nil {
		return newAccount(), nil
	}
	return acc, nil
}

func (a *Accumulator) setAccount(id, account mesh.Address, acc *Account) error {
	return a.accounts.Upsert(accountKey{id, account}, acc)
}

// stake returns the balance and total supply backing rewards of p.
func (a *Accumulator) stake(p *Pool, id, account mesh.Address) (*big.Int, *big.Int, error) {
	if !p.IsExtra() {
		acc, err := a.getAccount(id, account)
		if err != nil {
			return nil, nil, err
		}
		return acc.Balance, p.TotalSupply, nil
	}
	parent, err := a.getExisting(p.Parent)
	if err != nil {
		return nil, nil, err
	}
	acc, err := a.getAccount(p.Parent, account)
	if err != nil {
		return nil, nil, err
	}
	return acc.Balance, parent.TotalSupply, nil
}

// settled returns the account of p settled up to the current index.
func (a *Accumulator) settled(p *Pool, id, account mesh.Address) (*Account, error) {
	acc, err := a.getAccount(id, account)
	if err != nil {
		return nil, err
	}
	balance, _, err := a.stake(p, id, account)
	if err != nil {
		return nil, err
	}
	if err := settle(p, acc, balance); err != nil {
		return nil, err
	}
	return acc, nil
}

// Account returns a copy of the account state in the accumulator.
func (a *Accumulator) Account(id, account mesh.Address) (*Account, error) {
	return a.getAccount(id, account)
}

// BalanceOf returns the staked balance of account. Extras report the parent's balance.
func (a *Accumulator) BalanceOf(id, account mesh.Address) (*big.Int, error) {
	p, err := a.getExisting(id)
	if err != nil {
		return nil, err
	}
	balance, _, err := a.stake(p, id, account)
	return balance, err
}

// TotalSupply returns the sum of all staked balances.
func (a *Accumulator) TotalSupply(id mesh.Address) (*big.Int, error) {
	p, err := a.getExisting(id)
	if err != nil {
		return nil, err
	}
	if p.IsExtra() {
		return a.TotalSupply(p.Parent)
	}
	return p.TotalSupply, nil
}

// Earned returns the claimable reward of account.
func (a *Accumulator) Earned(id, account mesh.Address) (*big.Int, error) {
	p, err := a.getExisting(id)
	if err != nil {
		return nil, err
	}
	acc, err := a.settled(p, id, account)
	if err != nil {
		return nil, err
	}
	return acc.Accrued, nil
}

// ScaledEarned returns the claimable reward of account after multipliers.
func (a *Accumulator) ScaledEarned(id, account mesh.Address) (*big.Int, error) {
	p, err := a.getExisting(id)
	if err != nil {
		return nil, err
	}
	acc, err := a.settled(p, id, account)
	if err != nil {
		return nil, err
	}
	return acc.ScaledAccrued, nil
}

//
// Setters - state change
//

// Create registers a new accumulator. A non-zero parent makes it an extra of the parent:
// it pays its own reward token against the parent's balances.
func (a *Accumulator) Create(id, rewardToken, operator, parent mesh.Address) error {
	exists, err := a.pools.Exists(id)
	if err != nil {
		return err
	}
	if exists {
		return reverts.State("accumulator %v already exists", id)
	}
	if !parent.IsZero() {
		pp, err := a.getExisting(parent)
		if err != nil {
			return err
		}
		if pp.IsExtra() {
			return reverts.Invalid("nested extras not supported")
		}
		pp.Extras = append(pp.Extras, id)
		if err := a.pools.Update(parent, pp); err != nil {
			return err
		}
	}
	logger.Debug("created accumulator", "id", id, "rewardToken", rewardToken, "parent", parent)
	return a.pools.Insert(id, newPool(rewardToken, operator, parent))
}

// Stake adds amount to the balance of account. Only the operator may call.
func (a *Accumulator) Stake(caller, id, account mesh.Address, amount *big.Int) error {
	p, err := a.getExisting(id)
	if err != nil {
		return err
	}
	if p.IsExtra() {
		return reverts.State("cannot stake into an extra")
	}
	if caller != p.Operator {
		return reverts.Unauthorized("caller %v is not the operator", caller)
	}
	if amount.Sign() <= 0 {
		return reverts.Invalid("stake amount must be positive")
	}
	return a.changeBalance(id, p, account, amount)
}

// Withdraw removes amount from the balance of account. Only the operator may call.
func (a *Accumulator) Withdraw(caller, id, account mesh.Address, amount *big.Int) error {
	p, err := a.getExisting(id)
	if err != nil {
		return err
	}
	if p.IsExtra() {
		return reverts.State("cannot withdraw from an extra")
	}
	if caller != p.Operator {
		return reverts.Unauthorized("caller %v is not the operator", caller)
	}
	if amount.Sign() <= 0 {
		return reverts.Invalid("withdraw amount must be positive")
	}
	return a.changeBalance(id, p, account, new(big.Int).Neg(amount))
}

// changeBalance settles account in every extra and in the pool before applying delta.
func (a *Accumulator) changeBalance(id mesh.Address, p *Pool, account mesh.Address, delta *big.Int) error {
	acc, err := a.getAccount(id, account)
	if err != nil {
		return err
	}
	for _, extra := range p.Extras {
		ep, err := a.getExisting(extra)
		if err != nil {
			return err
		}
		eacc, err := a.getAccount(extra, account)
		if err != nil {
			return err
		}
		if err := settle(ep, eacc, acc.Balance); err != nil {
			return err
		}
		if err := a.setAccount(extra, account, eacc); err != nil {
			return err
		}
	}

	if err := settle(p, acc, acc.Balance); err != nil {
		return err
	}
	acc.Balance.Add(acc.Balance, delta)
	if acc.Balance.Sign() < 0 {
		return reverts.Invalid("insufficient staked balance")
	}
	p.TotalSupply.Add(p.TotalSupply, delta)
	if err := a.setAccount(id, account, acc); err != nil {
		return err
	}
	return a.pools.Update(id, p)
}

// NotifyReward distributes amount pro-rata to current stakers. The amount is pulled
// from the caller into the accumulator's custody. Only the operator may call.
func (a *Accumulator) NotifyReward(caller, id mesh.Address, amount *big.Int) error {
	p, err := a.getExisting(id)
	if err != nil {
		return err
	}
	if caller != p.Operator {
		return reverts.Unauthorized("caller %v is not the operator", caller)
	}
	if amount.Sign() < 0 {
		return reverts.Invalid("negative reward")
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := a.token.Transfer(p.RewardToken, caller, id, amount); err != nil {
		return err
	}
	p.TotalNotified.Add(p.TotalNotified, amount)

	_, supply, err := a.stake(p, id, mesh.Address{})
	if err != nil {
		return err
	}
	if supply.Sign() == 0 {
		p.Queued.Add(p.Queued, amount)
		logger.Debug("queued reward", "id", id, "amount", amount, "queued", p.Queued)
		return a.pools.Update(id, p)
	}

	reward := new(big.Int).Add(amount, p.Queued)
	delta, err := mesh.MulDiv(reward, mesh.Precision, supply)
	if err != nil {
		return reverts.Invalid("reward index overflow: %v", err)
	}
	target := id
	if p.IsExtra() {
		target = p.Parent
	}
	multiplier, err := a.multipliers.Get(target)
	if err != nil {
		return err
	}
	scaled, err := mesh.MulDiv(delta, multiplier, big.NewInt(mesh.MultiplierDenominator))
	if err != nil {
		return reverts.Invalid("scaled index overflow: %v", err)
	}
	if p.RewardPerToken, err = mesh.Add(p.RewardPerToken, delta); err != nil {
		return reverts.Invalid("reward index overflow")
	}
	if p.ScaledRewardPerToken, err = mesh.Add(p.ScaledRewardPerToken, scaled); err != nil {
		return reverts.Invalid("scaled index overflow")
	}
	p.Queued = new(big.Int)

	metricsNotified().Add(1)
	logger.Debug("notified reward", "id", id, "reward", reward, "rewardPerToken", p.RewardPerToken)
	return a.pools.Update(id, p)
}

// GetReward pays the accrued reward of account and zeroes it. It returns the paid amount
// and its multiplier-scaled counterpart. Account or operator may call.
func (a *Accumulator) GetReward(caller, id, account mesh.Address) (*big.Int, *big.Int, error) {
	p, err := a.getExisting(id)
	if err != nil {
		return nil, nil, err
	}
	if caller != account && caller != p.Operator {
		return nil, nil, reverts.Unauthorized("caller %v cannot claim for %v", caller, account)
	}
	acc, err := a.settled(p, id, account)
	if err != nil {
		return nil, nil, err
	}
	paid, scaled := acc.Accrued, acc.ScaledAccrued
	if paid.Sign() == 0 && scaled.Sign() == 0 {
		return new(big.Int), new(big.Int), nil
	}
	acc.Accrued, acc.ScaledAccrued = new(big.Int), new(big.Int)
	if err := a.setAccount(id, account, acc); err != nil {
		return nil, nil, err
	}
	if err := a.token.Transfer(p.RewardToken, id, account, paid); err != nil {
		return nil, nil, errors.WithMessage(err, "reward custody")
	}
	p.TotalPaid.Add(p.TotalPaid, paid)
	if err := a.pools.Update(id, p); err != nil {
		return nil, nil, err
	}
	metricsClaims().Add(1)
	logger.Debug("paid reward", "id", id, "account", account, "paid", paid, "scaled", scaled)
	return paid, scaled, nil
}

// settle moves the reward earned since the last settlement into the accrued fields.
func settle(p *Pool, acc *Account, balance *big.Int) error {
	if balance.Sign() > 0 {
		earned, err := mesh.MulDiv(balance, new(big.Int).Sub(p.RewardPerToken, acc.Paid), mesh.Precision)
		if err != nil {
			return reverts.Invalid("earned overflow: %v", err)
		}
		scaled, err := mesh.MulDiv(balance, new(big.Int).Sub(p.ScaledRewardPerToken, acc.ScaledPaid), mesh.Precision)
		if err != nil {
			return reverts.Invalid("scaled earned overflow: %v", err)
		}
		acc.Accrued.Add(acc.Accrued, earned)
		acc.ScaledAccrued.Add(acc.ScaledAccrued, scaled)
	}
	acc.Paid = new(big.Int).Set(p.RewardPerToken)
	acc.ScaledPaid = new(big.Int).Set(p.ScaledRewardPerToken)
	return nil
}
