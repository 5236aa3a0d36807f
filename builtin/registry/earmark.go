// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin/fees"
	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/metrics"
)

var (
	metricsEarmarks = metrics.LazyLoadCounterVec("registry_earmark_count", []string{"result"})
	metricsL2Fees   = metrics.LazyLoadCounter("registry_l2_fee_count")
)

// EarmarkRewards harvests the pool's gauge and splits the yield: the caller's incentive is
// paid at once, the lock and staker shares go to the shared accumulators, the platform fee
// to the treasury and the rest to the pool's depositors.
// A harvest that yields nothing is not an error and returns a zero breakdown.
func (r *Registry) EarmarkRewards(caller mesh.Address, pid uint64) (*fees.Breakdown, error) {
	shutdown, err := r.system.Get()
	if err != nil {
		return nil, err
	}
	p, err := r.getExisting(pid)
	if err != nil {
		return nil, err
	}
	if shutdown || p.Shutdown {
		return nil, ErrPoolShutdown
	}
	if p.Kind == KindNoDeposit {
		return nil, reverts.State("pool %d accepts no deposits", pid)
	}
	settings, err := r.Settings()
	if err != nil {
		return nil, err
	}

	before, err := r.token.BalanceOf(settings.RewardToken, r.addr)
	if err != nil {
		return nil, err
	}
	if err := r.yield.PullYield(p.Gauge, r.addr); err != nil {
		metricsEarmarks().AddWithLabel(1, map[string]string{"result": "failed"})
		return nil, errors.WithMessage(err, "pull yield")
	}
	after, err := r.token.BalanceOf(settings.RewardToken, r.addr)
	if err != nil {
		return nil, err
	}
	amount := new(big.Int).Sub(after, before)
	if amount.Sign() <= 0 {
		metricsEarmarks().AddWithLabel(1, map[string]string{"result": "empty"})
		return fees.Split(new(big.Int), &fees.Config{}), nil
	}

	cfg, err := r.fees.Get()
	if err != nil {
		return nil, err
	}
	b := fees.Split(amount, cfg)
	if settings.Treasury.IsZero() && b.Platform.Sign() > 0 {
		b.Net.Add(b.Net, b.Platform)
		b.Platform = new(big.Int)
	}

	if b.Caller.Sign() > 0 {
		if err := r.token.Transfer(settings.RewardToken, r.addr, caller, b.Caller); err != nil {
			return nil, err
		}
	}
	if b.Platform.Sign() > 0 {
		if err := r.token.Transfer(settings.RewardToken, r.addr, settings.Treasury, b.Platform); err != nil {
			return nil, err
		}
	}
	for _, credit := range []struct {
		id     mesh.Address
		amount *big.Int
	}{
		{p.Rewards, b.Net},
		{settings.LockRewards, b.Lock},
		{settings.StakerRewards, b.Staker},
	} {
		if err := r.accumulator.NotifyReward(r.addr, credit.id, credit.amount); err != nil {
			return nil, errors.WithMessagef(err, "notify %v", credit.id)
		}
	}

	metricsEarmarks().AddWithLabel(1, map[string]string{"result": "ok"})
	logger.Debug("earmarked rewards",
		"pid", pid,
		"caller", caller,
		"total", b.Total,
		"net", b.Net,
		"lock", b.Lock,
		"staker", b.Staker,
		"incentive", b.Caller,
		"platform", b.Platform,
		"feeVersion", cfg.Version,
	)
	return b, nil
}

// L2FeesOf returns the sidechain fees distributed in the epoch.
func (r *Registry) L2FeesOf(epoch uint64) (*big.Int, error) {
	v, err := r.l2Fees.Get(poolID(epoch))
	return mesh.Big(v), err
}

// DistributeL2Fees takes amount of reward token collected as fees on a sidechain from the
// caller and splits it between the lock and staker accumulators in the ratio of their fees.
// The gross reward the fees were taken from is converted into issuance minted to the
// caller, to be sent back to the sidechain. Only a bridge delegate may call.
func (r *Registry) DistributeL2Fees(caller mesh.Address, amount *big.Int, now uint64) (*L2Distribution, error) {
	if err := r.RequireRole(caller, RoleBridgeDelegate); err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, reverts.Invalid("fee amount must be positive")
	}
	settings, err := r.Settings()
	if err != nil {
		return nil, err
	}
	cfg, err := r.fees.Get()
	if err != nil {
		return nil, err
	}
	incentives := cfg.LockIncentive + cfg.StakerIncentive
	if incentives == 0 {
		return nil, reverts.Invalid("no lock or staker incentive configured")
	}

	epoch := r.currentEpoch(now)
	distributed, err := r.L2FeesOf(epoch)
	if err != nil {
		return nil, err
	}
	distributed.Add(distributed, amount)
	if settings.L2FeeCap.Sign() > 0 && distributed.Cmp(settings.L2FeeCap) > 0 {
		return nil, reverts.State("sidechain fee cap of epoch %d exceeded", epoch)
	}
	if err := r.l2Fees.Upsert(poolID(epoch), distributed); err != nil {
		return nil, err
	}

	if err := r.token.Transfer(settings.RewardToken, caller, r.addr, amount); err != nil {
		return nil, err
	}
	lock, staker := fees.SplitRatio(amount, cfg.LockIncentive, cfg.StakerIncentive)
	if err := r.accumulator.NotifyReward(r.addr, settings.LockRewards, lock); err != nil {
		return nil, err
	}
	if err := r.accumulator.NotifyReward(r.addr, settings.StakerRewards, staker); err != nil {
		return nil, err
	}

	gross, err := mesh.MulDiv(amount, big.NewInt(mesh.FeeDenominator), new(big.Int).SetUint64(incentives))
	if err != nil {
		return nil, reverts.Invalid("gross reward overflow: %v", err)
	}
	minted := new(big.Int)
	if r.converter != nil {
		if minted, err = r.converter.Convert(caller, gross); err != nil {
			return nil, errors.WithMessage(err, "issuance")
		}
	}
	metricsL2Fees().Add(1)
	logger.Info("distributed sidechain fees", "caller", caller, "amount", amount, "lock", lock, "staker", staker, "minted", minted, "epoch", epoch)
	return &L2Distribution{Gross: gross, Minted: minted}, nil
}
