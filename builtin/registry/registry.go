// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package registry implements the pool registry. It takes LP deposits, routes them to the
// external gauges, harvests and splits their yield and pays it out through the accumulators.
package registry

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin/accumulator"
	"github.com/boostmesh/mesh/builtin/authority"
	"github.com/boostmesh/mesh/builtin/fees"
	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/builtin/solidity"
	"github.com/boostmesh/mesh/builtin/token"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/metrics"
	"github.com/boostmesh/mesh/state"
)

const (
	// RolePoolManager may add pools, attach stashes and shut pools down.
	RolePoolManager authority.Role = "pool-manager"
	// RoleStashFunder may fund pool stashes, granted to the distributor.
	RoleStashFunder authority.Role = "stash-funder"
	// RoleBridgeDelegate may distribute fees collected on sidechains.
	RoleBridgeDelegate authority.Role = "bridge-delegate"
)

var (
	logger = log.WithContext("pkg", "registry")

	slotSettings  = mesh.BytesToBytes32([]byte("settings"))
	slotPoolCount = mesh.BytesToBytes32([]byte("pool-count"))
	slotPools     = mesh.BytesToBytes32([]byte("pools"))
	slotGauges    = mesh.BytesToBytes32([]byte("gauges"))
	slotDeposits  = mesh.BytesToBytes32([]byte("deposits"))
	slotSystem    = mesh.BytesToBytes32([]byte("system-shutdown"))
	slotL2Fees    = mesh.BytesToBytes32([]byte("l2-fees"))

	forceShutdownDelay = solidity.NewConfigVariable("force-shutdown-delay", mesh.ForceShutdownDelay)

	metricsDeposits = metrics.LazyLoadCounterVec("registry_deposit_count", []string{"kind"})
	metricsClaims   = metrics.LazyLoadCounter("registry_claim_count")

	// ErrPoolShutdown is returned for deposits into a shut down pool or system.
	ErrPoolShutdown = reverts.State("pool is shut down")
	errUnknownPool  = reverts.State("unknown pool")
)

// YieldSource is the external gauge system LP tokens are deposited into.
type YieldSource interface {
	Deposit(gauge, lpToken, holder mesh.Address, amount *big.Int) error
	Withdraw(gauge, lpToken, holder mesh.Address, amount *big.Int) error
	// PullYield sends the yield accrued by gauge, in the reward token, to the recipient.
	PullYield(gauge, to mesh.Address) error
}

// Converter mints the issuance token for an amount of reward along the issuance curve.
type Converter interface {
	Convert(to mesh.Address, amount *big.Int) (*big.Int, error)
}

// Epochs numbers the distribution epochs.
type Epochs interface {
	CurrentEpoch(now uint64) uint64
}

// Registry implements the pool registry contract.
// LP and reward tokens in transit are held under the registry's own address.
type Registry struct {
	*authority.Authority
	addr      mesh.Address
	sctx      *solidity.Context
	settings  *solidity.Raw[*Settings]
	poolCount *solidity.Raw[uint64]
	pools     *solidity.Mapping[poolID, *Pool]
	gauges    *solidity.Mapping[mesh.Address, bool]
	deposits  *solidity.Mapping[depositKey, *big.Int]
	system    *solidity.Raw[bool]
	l2Fees    *solidity.Mapping[poolID, *big.Int]

	token       *token.Token
	accumulator *accumulator.Accumulator
	fees        *fees.Fees
	yield       YieldSource
	converter   Converter
	epochs      Epochs
}

// New create a new instance.
func New(
	addr mesh.Address,
	state *state.State,
	token *token.Token,
	accumulator *accumulator.Accumulator,
	fees *fees.Fees,
	yield YieldSource,
	converter Converter,
) *Registry {
	sctx := solidity.NewContext(addr, state)
	return &Registry{
		Authority:   authority.New(sctx),
		addr:        addr,
		sctx:        sctx,
		settings:    solidity.NewRaw[*Settings](sctx, slotSettings),
		poolCount:   solidity.NewRaw[uint64](sctx, slotPoolCount),
		pools:       solidity.NewMapping[poolID, *Pool](sctx, slotPools),
		gauges:      solidity.NewMapping[mesh.Address, bool](sctx, slotGauges),
		deposits:    solidity.NewMapping[depositKey, *big.Int](sctx, slotDeposits),
		system:      solidity.NewRaw[bool](sctx, slotSystem),
		l2Fees:      solidity.NewMapping[poolID, *big.Int](sctx, slotL2Fees),
		token:       token,
		accumulator: accumulator,
		fees:        fees,
		yield:       yield,
		converter:   converter,
	}
}

// SetEpochs sets the epoch numbering the sidechain fee cap is tracked in. Without one,
// epochs have the default length.
func (r *Registry) SetEpochs(epochs Epochs) {
	r.epochs = epochs
}

// SetConverter sets the converter claims mint issuance through.
func (r *Registry) SetConverter(converter Converter) {
	r.converter = converter
}

func (r *Registry) currentEpoch(now uint64) uint64 {
	if r.epochs == nil {
		return mesh.EpochOf(now, 0)
	}
	return r.epochs.CurrentEpoch(now)
}

// Address returns the registry's contract and custody address.
func (r *Registry) Address() mesh.Address {
	return r.addr
}

// Initialize sets the owner and settings and creates the shared accumulators.
func (r *Registry) Initialize(owner mesh.Address, settings *Settings) error {
	if err := r.Init(owner); err != nil {
		return err
	}
	if settings.RewardToken.IsZero() || settings.LockRewards.IsZero() || settings.StakerRewards.IsZero() {
		return reverts.Invalid("incomplete registry settings")
	}
	if settings.L2FeeCap == nil {
		settings.L2FeeCap = new(big.Int)
	}
	if err := r.settings.Upsert(settings); err != nil {
		return err
	}
	for _, id := range []mesh.Address{settings.LockRewards, settings.StakerRewards} {
		if err := r.accumulator.Create(id, settings.RewardToken, r.addr, mesh.Address{}); err != nil {
			return errors.WithMessage(err, "shared accumulator")
		}
	}
	logger.Info("registry initialized", "owner", owner, "rewardToken", settings.RewardToken)
	return nil
}

//
// Getters - no state change
//

// Settings returns the settings fixed at initialization.
func (r *Registry) Settings() (*Settings, error) {
	s, err := r.settings.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get settings")
	}
	if s == nil {
		return nil, reverts.State("registry not initialized")
	}
	return s, nil
}

// PoolLength returns the number of pools ever added.
func (r *Registry) PoolLength() (uint64, error) {
	return r.poolCount.Get()
}

// PoolInfo returns the pool, nil if it does not exist.
func (r *Registry) PoolInfo(pid uint64) (*Pool, error) {
	p, err := r.pools.Get(poolID(pid))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pool")
	}
	return p, nil
}

func (r *Registry) getExisting(pid uint64) (*Pool, error) {
	p, err := r.PoolInfo(pid)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errUnknownPool
	}
	return p, nil
}

// IsSystemShutdown reports whether the whole system was shut down.
func (r *Registry) IsSystemShutdown() (bool, error) {
	return r.system.Get()
}

// BalanceOf returns the unstaked and staked LP balance of account in the pool.
func (r *Registry) BalanceOf(pid uint64, account mesh.Address) (*big.Int, *big.Int, error) {
	unstaked, err := r.deposits.Get(depositKey{pid, account})
	if err != nil {
		return nil, nil, err
	}
	staked, err := r.accumulator.BalanceOf(RewardsID(pid), account)
	if err != nil {
		return nil, nil, err
	}
	return mesh.Big(unstaked), staked, nil
}

// TotalDeposits returns the LP the pool accounts for, staked or not.
func (r *Registry) TotalDeposits(pid uint64) (*big.Int, error) {
	p, err := r.getExisting(pid)
	if err != nil {
		return nil, err
	}
	staked, err := r.accumulator.TotalSupply(p.Rewards)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(staked, p.Unstaked), nil
}

// ForceShutdownDelay returns the delay between queueing and running a force shutdown.
func (r *Registry) ForceShutdownDelay() uint64 {
	return forceShutdownDelay.Get(r.sctx)
}

//
// Setters - state change
//

func (r *Registry) requireManager(caller mesh.Address) error {
	return r.RequireRole(caller, RolePoolManager)
}

// SetForceShutdownDelay overrides the force shutdown delay. Only the owner may call.
func (r *Registry) SetForceShutdownDelay(caller mesh.Address, delay uint64) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}
	forceShutdownDelay.Override(r.sctx, delay)
	return nil
}

// AddPool registers a pool for the gauge and returns its id.
func (r *Registry) AddPool(caller, lpToken, gauge mesh.Address, kind Kind, dstChainID uint64) (uint64, error) {
	if err := r.requireManager(caller); err != nil {
		return 0, err
	}
	shutdown, err := r.system.Get()
	if err != nil {
		return 0, err
	}
	if shutdown {
		return 0, ErrPoolShutdown
	}
	if !kind.Valid() {
		return 0, reverts.Invalid("invalid pool kind %d", kind)
	}
	if gauge.IsZero() {
		return 0, reverts.Invalid("zero gauge")
	}
	if kind != KindNoDeposit && lpToken.IsZero() {
		return 0, reverts.Invalid("zero lp token")
	}
	if kind == KindSiphon && dstChainID == 0 {
		return 0, reverts.Invalid("siphon pool without destination chain")
	}
	if kind != KindSiphon && dstChainID != 0 {
		return 0, reverts.Invalid("destination chain only applies to siphon pools")
	}
	bound, err := r.gauges.Get(gauge)
	if err != nil {
		return 0, err
	}
	if bound {
		return 0, reverts.State("gauge %v already bound to an active pool", gauge)
	}
	settings, err := r.Settings()
	if err != nil {
		return 0, err
	}

	pid, err := r.poolCount.Get()
	if err != nil {
		return 0, err
	}
	rewards := RewardsID(pid)
	if err := r.accumulator.Create(rewards, settings.RewardToken, r.addr, mesh.Address{}); err != nil {
		return 0, err
	}
	p := &Pool{
		LPToken:    lpToken,
		Gauge:      gauge,
		Rewards:    rewards,
		Kind:       kind,
		DstChainID: dstChainID,
		Unstaked:   new(big.Int),
		Held:       new(big.Int),
	}
	if err := r.pools.Insert(poolID(pid), p); err != nil {
		return 0, err
	}
	if err := r.gauges.Upsert(gauge, true); err != nil {
		return 0, err
	}
	if err := r.poolCount.Upsert(pid + 1); err != nil {
		return 0, err
	}
	logger.Info("pool added", "pid", pid, "lpToken", lpToken, "gauge", gauge, "kind", kind, "dstChainID", dstChainID)
	return pid, nil
}

// SetPoolKind changes how an active pool takes part in distribution.
func (r *Registry) SetPoolKind(caller mesh.Address, pid uint64, kind Kind, dstChainID uint64) error {
	if err := r.requireManager(caller); err != nil {
		return err
	}
	p, err := r.getExisting(pid)
	if err != nil {
		return err
	}
	if p.Shutdown {
		return ErrPoolShutdown
	}
	if !kind.Valid() {
		return reverts.Invalid("invalid pool kind %d", kind)
	}
	if kind != KindNoDeposit && p.LPToken.IsZero() {
		return reverts.Invalid("pool %d has no lp token", pid)
	}
	if (kind == KindSiphon) != (dstChainID != 0) {
		return reverts.Invalid("destination chain %d does not fit kind %v", dstChainID, kind)
	}
	if kind == KindNoDeposit {
		total, err := r.TotalDeposits(pid)
		if err != nil {
			return err
		}
		if total.Sign() > 0 {
			return reverts.State("pool %d holds deposits", pid)
		}
	}
	p.Kind, p.DstChainID = kind, dstChainID
	logger.Info("pool kind changed", "pid", pid, "kind", kind, "dstChainID", dstChainID)
	return r.pools.Update(poolID(pid), p)
}

// SetNoDepositGauge marks a pool as a no-deposit gauge or returns it to standard.
func (r *Registry) SetNoDepositGauge(caller mesh.Address, pid uint64, noDeposit bool) error {
	if noDeposit {
		return r.SetPoolKind(caller, pid, KindNoDeposit, 0)
	}
	return r.SetPoolKind(caller, pid, KindStandard, 0)
}

// Deposit takes amount of LP from the caller into the pool's gauge. With stake the deposit
// earns rewards at once, otherwise it is kept as an unstaked balance.
func (r *Registry) Deposit(caller mesh.Address, pid uint64, amount *big.Int, stake bool) error {
	if amount.Sign() <= 0 {
		return reverts.Invalid("deposit amount must be positive")
	}
	shutdown, err := r.system.Get()
	if err != nil {
		return err
	}
	p, err := r.getExisting(pid)
	if err != nil {
		return err
	}
	if shutdown || p.Shutdown {
		return ErrPoolShutdown
	}
	if p.Kind == KindNoDeposit {
		return reverts.State("pool %d accepts no deposits", pid)
	}
	if err := r.token.Transfer(p.LPToken, caller, r.addr, amount); err != nil {
		return err
	}
	if err := r.yield.Deposit(p.Gauge, p.LPToken, r.addr, amount); err != nil {
		return errors.WithMessage(err, "gauge deposit")
	}
	if stake {
		if err := r.accumulator.Stake(r.addr, p.Rewards, caller, amount); err != nil {
			return err
		}
	} else {
		if err := r.addUnstaked(pid, p, caller, amount); err != nil {
			return err
		}
	}
	metricsDeposits().AddWithLabel(1, map[string]string{"kind": p.Kind.String()})
	logger.Debug("deposited", "pid", pid, "account", caller, "amount", amount, "stake", stake)
	return nil
}

func (r *Registry) addUnstaked(pid uint64, p *Pool, account mesh.Address, delta *big.Int) error {
	bal, err := r.deposits.Get(depositKey{pid, account})
	if err != nil {
		return err
	}
	bal = new(big.Int).Add(mesh.Big(bal), delta)
	if bal.Sign() < 0 {
		return reverts.Invalid("insufficient deposit")
	}
	p.Unstaked = new(big.Int).Add(p.Unstaked, delta)
	if bal.Sign() == 0 {
		r.deposits.Delete(depositKey{pid, account})
	} else if err := r.deposits.Upsert(depositKey{pid, account}, bal); err != nil {
		return err
	}
	return r.pools.Update(poolID(pid), p)
}

// Stake moves amount of the caller's unstaked deposit into the pool's rewards.
func (r *Registry) Stake(caller mesh.Address, pid uint64, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return reverts.Invalid("stake amount must be positive")
	}
	p, err := r.getExisting(pid)
	if err != nil {
		return err
	}
	if p.Shutdown {
		return ErrPoolShutdown
	}
	if err := r.addUnstaked(pid, p, caller, new(big.Int).Neg(amount)); err != nil {
		return err
	}
	return r.accumulator.Stake(r.addr, p.Rewards, caller, amount)
}

// Withdraw returns amount of LP to the caller, from the unstaked deposit first and then from
// the staked balance. It works whether or not the pool is shut down.
func (r *Registry) Withdraw(caller mesh.Address, pid uint64, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return reverts.Invalid("withdraw amount must be positive")
	}
	p, err := r.getExisting(pid)
	if err != nil {
		return err
	}
	unstaked, staked, err := r.BalanceOf(pid, caller)
	if err != nil {
		return err
	}
	if new(big.Int).Add(unstaked, staked).Cmp(amount) < 0 {
		return reverts.Invalid("insufficient balance")
	}
	if err := r.release(pid, p, amount); err != nil {
		return err
	}
	fromUnstaked := mesh.Min(unstaked, amount)
	fromStaked := new(big.Int).Sub(amount, fromUnstaked)
	if fromStaked.Sign() > 0 {
		if err := r.accumulator.Withdraw(r.addr, p.Rewards, caller, fromStaked); err != nil {
			return err
		}
	}
	if fromUnstaked.Sign() > 0 {
		if err := r.addUnstaked(pid, p, caller, new(big.Int).Neg(fromUnstaked)); err != nil {
			return err
		}
	}
	logger.Debug("withdrawn", "pid", pid, "account", caller, "amount", amount)
	return r.token.Transfer(p.LPToken, r.addr, caller, amount)
}

// release brings amount of LP into the registry's custody, from what was held at shutdown
// and then from the gauge.
func (r *Registry) release(pid uint64, p *Pool, amount *big.Int) error {
	fromHeld := mesh.Min(p.Held, amount)
	if rest := new(big.Int).Sub(amount, fromHeld); rest.Sign() > 0 {
		if err := r.yield.Withdraw(p.Gauge, p.LPToken, r.addr, rest); err != nil {
			return errors.WithMessage(err, "gauge withdraw")
		}
	}
	if fromHeld.Sign() == 0 {
		return nil
	}
	p.Held = new(big.Int).Sub(p.Held, fromHeld)
	return r.pools.Update(poolID(pid), p)
}

// Claim pays the caller's rewards from the pool's accumulator and its stashes, and mints
// issuance for the multiplier-scaled reward.
func (r *Registry) Claim(caller mesh.Address, pid uint64) (*Claim, error) {
	p, err := r.getExisting(pid)
	if err != nil {
		return nil, err
	}
	paid, scaled, err := r.accumulator.GetReward(r.addr, p.Rewards, caller)
	if err != nil {
		return nil, err
	}
	claim := &Claim{Reward: paid, Minted: new(big.Int)}
	for _, stash := range p.Stashes {
		extra, _, err := r.accumulator.GetReward(r.addr, stash, caller)
		if err != nil {
			return nil, err
		}
		sp, err := r.accumulator.Get(stash)
		if err != nil {
			return nil, err
		}
		claim.Extras = append(claim.Extras, extra)
		claim.Tokens = append(claim.Tokens, sp.RewardToken)
	}
	if scaled.Sign() > 0 && r.converter != nil {
		if claim.Minted, err = r.converter.Convert(caller, scaled); err != nil {
			return nil, errors.WithMessage(err, "issuance")
		}
	}
	metricsClaims().Add(1)
	logger.Debug("reward claimed", "pid", pid, "account", caller, "reward", paid, "minted", claim.Minted)
	return claim, nil
}

// AddStash attaches an extra reward accumulator paying token to the pool.
func (r *Registry) AddStash(caller mesh.Address, pid uint64, token mesh.Address) (mesh.Address, error) {
	if err := r.requireManager(caller); err != nil {
		return mesh.Address{}, err
	}
	return r.addStash(pid, token)
}

func (r *Registry) addStash(pid uint64, token mesh.Address) (mesh.Address, error) {
	p, err := r.getExisting(pid)
	if err != nil {
		return mesh.Address{}, err
	}
	if token.IsZero() {
		return mesh.Address{}, reverts.Invalid("zero stash token")
	}
	id := StashID(pid, token)
	if err := r.accumulator.Create(id, token, r.addr, p.Rewards); err != nil {
		return mesh.Address{}, err
	}
	p.Stashes = append(p.Stashes, id)
	if err := r.pools.Update(poolID(pid), p); err != nil {
		return mesh.Address{}, err
	}
	logger.Info("stash added", "pid", pid, "token", token, "stash", id)
	return id, nil
}

// FundStash pulls amount of token from the caller and distributes it to the pool's
// depositors through the stash for token, creating the stash on first use.
func (r *Registry) FundStash(caller mesh.Address, pid uint64, token mesh.Address, amount *big.Int) error {
	if err := r.RequireRole(caller, RoleStashFunder); err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return reverts.Invalid("stash funding must be positive")
	}
	id := StashID(pid, token)
	existing, err := r.accumulator.Get(id)
	if err != nil {
		return err
	}
	if existing == nil {
		if _, err := r.addStash(pid, token); err != nil {
			return err
		}
	}
	if err := r.token.Transfer(token, caller, r.addr, amount); err != nil {
		return err
	}
	logger.Debug("stash funded", "pid", pid, "token", token, "amount", amount)
	return r.accumulator.NotifyReward(r.addr, id, amount)
}
