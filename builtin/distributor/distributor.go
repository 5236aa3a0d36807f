// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package distributor implements the epoch reward distributor.
//
// Funders queue rewards for pools directly or fund an epoch budget that is split by gauge
// weight. Processing an epoch turns its records into queued payouts exactly once, and
// settling pays each record exactly once: local pools through their stashes, pools on
// other chains through the settlement layer.
package distributor

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin/authority"
	"github.com/boostmesh/mesh/builtin/registry"
	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/builtin/settlement"
	"github.com/boostmesh/mesh/builtin/solidity"
	"github.com/boostmesh/mesh/builtin/token"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/metrics"
	"github.com/boostmesh/mesh/state"
)

const (
	// RoleFunder may queue rewards and fund epochs.
	RoleFunder authority.Role = "funder"
	// RoleVoter may snapshot gauge weights.
	RoleVoter authority.Role = "voter"

	// MaxFundPeriods bounds the number of epochs FundPool spreads over.
	MaxFundPeriods = 52
)

var (
	logger = log.WithContext("pkg", "distributor")

	slotRecords  = mesh.BytesToBytes32([]byte("records"))
	slotBudgets  = mesh.BytesToBytes32([]byte("budgets"))
	slotVotes    = mesh.BytesToBytes32([]byte("votes"))
	slotRemotes  = mesh.BytesToBytes32([]byte("remotes"))
	slotSchedule = mesh.BytesToBytes32([]byte("schedule"))

	metricsProcessed = metrics.LazyLoadCounter("distributor_epoch_processed_count")
	metricsSettled   = metrics.LazyLoadCounterVec("distributor_settled_count", []string{"route"})
)

// WeightOracle provides the gauge weights governance voted for.
type WeightOracle interface {
	WeightOf(pid uint64, epoch uint64) (*big.Int, error)
	TotalWeight(epoch uint64) (*big.Int, error)
}

// Pools is the part of the pool registry the distributor pays through.
type Pools interface {
	PoolInfo(pid uint64) (*registry.Pool, error)
	FundStash(caller mesh.Address, pid uint64, token mesh.Address, amount *big.Int) error
}

// Sender is the outbound side of the settlement layer.
type Sender interface {
	Quote(dst uint64, payload []byte) (*big.Int, error)
	FeeToken() (mesh.Address, error)
	SendToChain(caller mesh.Address, dst uint64, token mesh.Address, amount *big.Int, recipient mesh.Address, payload []byte, fee *big.Int) (*settlement.Intent, error)
	Refund(caller mesh.Address, dst, nonce uint64) (*settlement.Intent, error)
}

// Distributor implements the epoch reward distributor contract.
// Queued funds are held under the distributor's own address.
type Distributor struct {
	*authority.Authority
	addr     mesh.Address
	sctx     *solidity.Context
	records  *solidity.Mapping[recordKey, *Record]
	budgets  *solidity.Mapping[budgetKey, *Budget]
	votes    *solidity.Mapping[uint64Key, *Vote]
	remotes  *solidity.Mapping[uint64Key, mesh.Address]
	schedule *solidity.Raw[*Schedule]

	token  *token.Token
	pools  Pools
	oracle WeightOracle
	sender Sender
}

// New create a new instance. sender may be nil on a chain without siphon pools.
func New(addr mesh.Address, state *state.State, token *token.Token, pools Pools, oracle WeightOracle, sender Sender) *Distributor {
	sctx := solidity.NewContext(addr, state)
	return &Distributor{
		Authority: authority.New(sctx),
		addr:      addr,
		sctx:      sctx,
		records:   solidity.NewMapping[recordKey, *Record](sctx, slotRecords),
		budgets:   solidity.NewMapping[budgetKey, *Budget](sctx, slotBudgets),
		votes:     solidity.NewMapping[uint64Key, *Vote](sctx, slotVotes),
		remotes:   solidity.NewMapping[uint64Key, mesh.Address](sctx, slotRemotes),
		schedule:  solidity.NewRaw[*Schedule](sctx, slotSchedule),
		token:     token,
		pools:     pools,
		oracle:    oracle,
		sender:    sender,
	}
}

// Address returns the distributor's contract and custody address.
func (d *Distributor) Address() mesh.Address {
	return d.addr
}

//
// Getters - no state change
//

// Schedule returns the epoch schedule.
func (d *Distributor) Schedule() *Schedule {
	s, err := d.schedule.Get()
	if err != nil {
		logger.Warn("failed to read epoch schedule", "err", err)
		return defaultSchedule()
	}
	if s == nil || s.Length == 0 {
		return defaultSchedule()
	}
	return s
}

// EpochLength returns the length of an epoch in seconds.
func (d *Distributor) EpochLength() uint64 {
	return d.Schedule().Length
}

// CurrentEpoch returns the epoch containing now.
func (d *Distributor) CurrentEpoch(now uint64) uint64 {
	return d.Schedule().EpochOf(now)
}

// EpochStart returns the first timestamp of the epoch.
func (d *Distributor) EpochStart(epoch uint64) uint64 {
	return d.Schedule().EpochStart(epoch)
}

// Record returns the reward record, nil if none exists.
func (d *Distributor) Record(epoch, pid uint64, token mesh.Address) (*Record, error) {
	r, err := d.records.Get(recordKey{epoch, pid, token})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get record")
	}
	return r, nil
}

// GetFunds returns the amount assigned to the pool in the epoch.
func (d *Distributor) GetFunds(epoch, pid uint64, token mesh.Address) (*big.Int, error) {
	r, err := d.Record(epoch, pid, token)
	if err != nil || r == nil {
		return new(big.Int), err
	}
	return r.Amount, nil
}

// Budget returns the weighted budget of the epoch in token.
func (d *Distributor) Budget(epoch uint64, token mesh.Address) (*Budget, error) {
	b, err := d.budgets.Get(budgetKey{epoch, token})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get budget")
	}
	if b == nil {
		return newBudget(), nil
	}
	return b, nil
}

// Vote returns the gauge weight snapshot of the epoch, nil if none was taken.
func (d *Distributor) Vote(epoch uint64) (*Vote, error) {
	return d.votes.Get(uint64Key(epoch))
}

// TotalWeight returns the total weight of the epoch's snapshot.
func (d *Distributor) TotalWeight(epoch uint64) (*big.Int, error) {
	v, err := d.Vote(epoch)
	if err != nil || v == nil {
		return new(big.Int), err
	}
	return v.Total(), nil
}

// Remote returns the distributor on a remote chain, zero if none.
func (d *Distributor) Remote(chain uint64) (mesh.Address, error) {
	return d.remotes.Get(uint64Key(chain))
}

// IsOverdue reports whether the record still holds funds after its epoch ended.
func (d *Distributor) IsOverdue(epoch, pid uint64, token mesh.Address, now uint64) (bool, error) {
	if epoch >= d.CurrentEpoch(now) {
		return false, nil
	}
	r, err := d.Record(epoch, pid, token)
	if err != nil || r == nil {
		return false, err
	}
	return r.Status != StatusProcessed && r.Amount.Sign() > 0, nil
}

// Overdue lists the overdue records in token of the epochs from `from` to the last
// finished epoch.
func (d *Distributor) Overdue(from, now uint64, token mesh.Address) ([]*OverdueEntry, error) {
	var entries []*OverdueEntry
	for epoch := from; epoch < d.CurrentEpoch(now); epoch++ {
		b, err := d.Budget(epoch, token)
		if err != nil {
			return nil, err
		}
		for _, pid := range b.Pids {
			r, err := d.Record(epoch, pid, token)
			if err != nil {
				return nil, err
			}
			if r != nil && r.Status != StatusProcessed && r.Amount.Sign() > 0 {
				entries = append(entries, &OverdueEntry{Epoch: epoch, Pid: pid, Amount: r.Amount, Status: r.Status})
			}
		}
	}
	return entries, nil
}

//
// Setters - state change
//

// Initialize assigns the owner and, if length is not zero, numbers epochs as now/length.
func (d *Distributor) Initialize(owner mesh.Address, length uint64) error {
	if err := d.Init(owner); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	return d.schedule.Upsert(&Schedule{Length: length})
}

// SetEpochLength changes the epoch length from the start of the next epoch, so the
// current epoch keeps its number and end. Only the owner may call.
func (d *Distributor) SetEpochLength(caller mesh.Address, length uint64, now uint64) error {
	if err := d.RequireOwner(caller); err != nil {
		return err
	}
	if length == 0 {
		return reverts.Invalid("zero epoch length")
	}
	s := d.Schedule()
	next := s.EpochOf(now) + 1
	updated := &Schedule{Length: length, Anchor: next, Start: s.EpochStart(next)}
	logger.Info("epoch length changed", "length", length, "from", updated.Anchor, "start", updated.Start)
	return d.schedule.Upsert(updated)
}

// SetRemote sets the distributor receiving rewards on a remote chain. Only the owner may call.
func (d *Distributor) SetRemote(caller mesh.Address, chain uint64, remote mesh.Address) error {
	if err := d.RequireOwner(caller); err != nil {
		return err
	}
	logger.Info("remote distributor set", "chain", chain, "remote", remote)
	if remote.IsZero() {
		d.remotes.Delete(uint64Key(chain))
		return nil
	}
	return d.remotes.Upsert(uint64Key(chain), remote)
}

func (d *Distributor) fundablePool(pid uint64) (*registry.Pool, error) {
	p, err := d.pools.PoolInfo(pid)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, reverts.State("unknown pool %d", pid)
	}
	if !CountsTowardWeight(p.Kind) {
		return nil, reverts.State("pool %d takes no rewards", pid)
	}
	return p, nil
}

// queue adds amount to the record, already held by the distributor.
func (d *Distributor) queue(epoch, pid uint64, token mesh.Address, amount *big.Int) error {
	key := recordKey{epoch, pid, token}
	r, err := d.records.Get(key)
	if err != nil {
		return err
	}
	if r == nil {
		r = &Record{Amount: new(big.Int), Weight: new(big.Int), Status: StatusPending}
	}
	if r.Status == StatusProcessed {
		return reverts.State("rewards of pool %d in epoch %d already processed", pid, epoch)
	}
	b, err := d.Budget(epoch, token)
	if err != nil {
		return err
	}
	if b.Processed {
		r.Status = StatusQueued
	}
	b.addPid(pid)
	r.Amount = new(big.Int).Add(r.Amount, amount)
	if err := d.budgets.Upsert(budgetKey{epoch, token}, b); err != nil {
		return err
	}
	return d.records.Upsert(key, r)
}

// QueueRewards takes amount of token from the caller for the pool in a current or
// future epoch.
func (d *Distributor) QueueRewards(caller mesh.Address, epoch, pid uint64, token mesh.Address, amount *big.Int, now uint64) error {
	if err := d.RequireRole(caller, RoleFunder); err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return reverts.Invalid("reward amount must be positive")
	}
	if current := d.CurrentEpoch(now); epoch < current {
		return reverts.Invalid("epoch %d before current epoch %d", epoch, current)
	}
	if _, err := d.fundablePool(pid); err != nil {
		return err
	}
	if err := d.token.Transfer(token, caller, d.addr, amount); err != nil {
		return err
	}
	logger.Debug("rewards queued", "epoch", epoch, "pid", pid, "token", token, "amount", amount)
	return d.queue(epoch, pid, token, amount)
}

// FundPool spreads amount of token over the pool's next periods epochs. The division
// remainder goes to the first epoch.
func (d *Distributor) FundPool(caller mesh.Address, pid uint64, token mesh.Address, amount *big.Int, periods uint64, now uint64) error {
	if err := d.RequireRole(caller, RoleFunder); err != nil {
		return err
	}
	if periods == 0 || periods > MaxFundPeriods {
		return reverts.Invalid("periods must be within 1 and %d", MaxFundPeriods)
	}
	if amount.Sign() <= 0 {
		return reverts.Invalid("reward amount must be positive")
	}
	if _, err := d.fundablePool(pid); err != nil {
		return err
	}
	if err := d.token.Transfer(token, caller, d.addr, amount); err != nil {
		return err
	}
	per := new(big.Int).Quo(amount, new(big.Int).SetUint64(periods))
	first := new(big.Int).Sub(amount, new(big.Int).Mul(per, new(big.Int).SetUint64(periods-1)))
	start := d.CurrentEpoch(now) + 1
	for i := uint64(0); i < periods; i++ {
		part := per
		if i == 0 {
			part = first
		}
		if part.Sign() == 0 {
			continue
		}
		if err := d.queue(start+i, pid, token, part); err != nil {
			return err
		}
	}
	logger.Debug("pool funded", "pid", pid, "token", token, "amount", amount, "periods", periods, "start", start)
	return nil
}

// FundEpoch takes amount of token from the caller into the epoch's weighted budget.
func (d *Distributor) FundEpoch(caller mesh.Address, epoch uint64, token mesh.Address, amount *big.Int, now uint64) error {
	if err := d.RequireRole(caller, RoleFunder); err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return reverts.Invalid("budget amount must be positive")
	}
	if current := d.CurrentEpoch(now); epoch < current {
		return reverts.Invalid("epoch %d before current epoch %d", epoch, current)
	}
	b, err := d.Budget(epoch, token)
	if err != nil {
		return err
	}
	if b.Processed {
		return reverts.State("epoch %d already processed", epoch)
	}
	if err := d.token.Transfer(token, caller, d.addr, amount); err != nil {
		return err
	}
	b.Amount.Add(b.Amount, amount)
	logger.Debug("epoch funded", "epoch", epoch, "token", token, "amount", amount, "budget", b.Amount)
	return d.budgets.Upsert(budgetKey{epoch, token}, b)
}

// VoteGaugeWeight snapshots the oracle weights of pids for the epoch. An epoch is voted once.
func (d *Distributor) VoteGaugeWeight(caller mesh.Address, epoch uint64, pids []uint64) (*Vote, error) {
	if err := d.RequireRole(caller, RoleVoter); err != nil {
		return nil, err
	}
	existing, err := d.Vote(epoch)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, reverts.State("epoch %d already voted", epoch)
	}
	if len(pids) == 0 {
		return nil, reverts.Invalid("empty vote")
	}
	seen := make(map[uint64]struct{}, len(pids))
	vote := &Vote{}
	for _, pid := range pids {
		if _, dup := seen[pid]; dup {
			return nil, reverts.Invalid("duplicate pool %d", pid)
		}
		seen[pid] = struct{}{}
		p, err := d.pools.PoolInfo(pid)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, reverts.State("unknown pool %d", pid)
		}
		w, err := d.oracle.WeightOf(pid, epoch)
		if err != nil {
			return nil, reverts.External("weight of pool %d: %v", pid, err)
		}
		if w.Sign() < 0 {
			return nil, reverts.Invalid("negative weight for pool %d", pid)
		}
		vote.Pids = append(vote.Pids, pid)
		vote.Weights = append(vote.Weights, w)
	}
	total, err := d.oracle.TotalWeight(epoch)
	if err != nil {
		return nil, reverts.External("total weight: %v", err)
	}
	if vote.Total().Cmp(total) > 0 {
		return nil, reverts.Invalid("voted weight %v exceeds total %v", vote.Total(), total)
	}
	if err := d.votes.Insert(uint64Key(epoch), vote); err != nil {
		return nil, err
	}
	logger.Info("gauge weights voted", "epoch", epoch, "pools", len(pids), "weight", vote.Total())
	return vote, nil
}

// ProcessGaugeRewards splits the epoch's budget in token by the voted weights and queues
// every record of the epoch for settlement. Weight division dust is carried to the next
// unprocessed epoch. Processing an epoch twice is a no-op.
func (d *Distributor) ProcessGaugeRewards(caller mesh.Address, epoch uint64, token mesh.Address, now uint64) ([]*Payout, error) {
	if current := d.CurrentEpoch(now); epoch > current {
		return nil, reverts.Invalid("epoch %d not started, current is %d", epoch, current)
	}
	b, err := d.Budget(epoch, token)
	if err != nil {
		return nil, err
	}
	if b.Processed {
		return nil, nil
	}
	vote, err := d.Vote(epoch)
	if err != nil {
		return nil, err
	}
	if vote == nil && new(big.Int).Sub(b.Amount, b.Carried).Sign() > 0 {
		// a funded budget waits for its gauge weights
		return nil, reverts.State("epoch %d has a budget but no gauge vote", epoch)
	}

	type share struct {
		pid    uint64
		weight *big.Int
	}
	var eligible []share
	total := new(big.Int)
	if vote != nil {
		for i, pid := range vote.Pids {
			p, err := d.pools.PoolInfo(pid)
			if err != nil {
				return nil, err
			}
			if p == nil || !CountsTowardWeight(p.Kind) || vote.Weights[i].Sign() == 0 {
				continue
			}
			eligible = append(eligible, share{pid, vote.Weights[i]})
			total.Add(total, vote.Weights[i])
		}
	}

	dust := new(big.Int).Set(b.Amount)
	if total.Sign() > 0 && b.Amount.Sign() > 0 {
		for _, s := range eligible {
			amount, err := mesh.MulDiv(b.Amount, s.weight, total)
			if err != nil {
				return nil, reverts.Invalid("share overflow: %v", err)
			}
			key := recordKey{epoch, s.pid, token}
			r, err := d.records.Get(key)
			if err != nil {
				return nil, err
			}
			if r == nil {
				r = &Record{Amount: new(big.Int), Status: StatusPending}
			}
			r.Amount = new(big.Int).Add(r.Amount, amount)
			r.Weight = s.weight
			if err := d.records.Upsert(key, r); err != nil {
				return nil, err
			}
			b.addPid(s.pid)
			dust.Sub(dust, amount)
		}
	}

	var payouts []*Payout
	for _, pid := range b.Pids {
		key := recordKey{epoch, pid, token}
		r, err := d.records.Get(key)
		if err != nil {
			return nil, err
		}
		if r == nil || r.Status != StatusPending {
			continue
		}
		r.Status = StatusQueued
		if err := d.records.Update(key, r); err != nil {
			return nil, err
		}
		payouts = append(payouts, &Payout{Pid: pid, Amount: r.Amount})
	}
	b.Processed = true
	b.TotalWeight = total
	if err := d.budgets.Upsert(budgetKey{epoch, token}, b); err != nil {
		return nil, err
	}
	if dust.Sign() > 0 {
		if err := d.carry(epoch+1, token, dust); err != nil {
			return nil, err
		}
	}
	metricsProcessed().Add(1)
	logger.Info("epoch processed", "epoch", epoch, "token", token, "budget", b.Amount, "weight", total, "pools", len(payouts), "carried", dust, "caller", caller)
	return payouts, nil
}

// carry adds amount to the budget of the first unprocessed epoch from epoch on.
func (d *Distributor) carry(epoch uint64, token mesh.Address, amount *big.Int) error {
	for {
		b, err := d.Budget(epoch, token)
		if err != nil {
			return err
		}
		if !b.Processed {
			b.Amount.Add(b.Amount, amount)
			b.Carried.Add(b.Carried, amount)
			return d.budgets.Upsert(budgetKey{epoch, token}, b)
		}
		epoch++
	}
}
