// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import (
	"math/big"
	"sort"

	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin/registry"
	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/builtin/settlement"
	"github.com/boostmesh/mesh/mesh"
)

// Settle pays the queued record of the pool. Local pools are funded through their stash,
// siphon pools through the settlement layer with the caller paying the messaging fee.
// Settling a paid record is a no-op returning zero.
func (d *Distributor) Settle(caller mesh.Address, epoch, pid uint64, token mesh.Address, now uint64, fee *big.Int) (*big.Int, error) {
	if current := d.CurrentEpoch(now); epoch > current {
		return nil, reverts.Invalid("epoch %d not started, current is %d", epoch, current)
	}
	key := recordKey{epoch, pid, token}
	r, err := d.records.Get(key)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, reverts.State("no rewards for pool %d in epoch %d", pid, epoch)
	}
	switch r.Status {
	case StatusProcessed:
		return new(big.Int), nil
	case StatusPending:
		return nil, reverts.State("epoch %d not processed", epoch)
	}
	p, err := d.pools.PoolInfo(pid)
	if err != nil {
		return nil, err
	}
	r.Status = StatusProcessed
	if err := d.records.Update(key, r); err != nil {
		return nil, err
	}
	if r.Amount.Sign() == 0 {
		return new(big.Int), nil
	}
	if p.Kind == registry.KindSiphon {
		items := []settlement.RewardItem{{Pid: pid, Amount: r.Amount}}
		if _, err := d.sendRemote(caller, epoch, token, p.DstChainID, items, fee); err != nil {
			return nil, err
		}
	} else if err := d.fundLocal(pid, token, r.Amount); err != nil {
		return nil, err
	}
	logger.Debug("record settled", "epoch", epoch, "pid", pid, "token", token, "amount", r.Amount, "kind", p.Kind)
	return r.Amount, nil
}

// SettleEpoch pays every queued record of the processed epoch. Siphon pools are batched
// into one message per destination chain, each paid for by the caller.
func (d *Distributor) SettleEpoch(caller mesh.Address, epoch uint64, token mesh.Address, now uint64, fee *big.Int) ([]*Payout, error) {
	if current := d.CurrentEpoch(now); epoch > current {
		return nil, reverts.Invalid("epoch %d not started, current is %d", epoch, current)
	}
	b, err := d.Budget(epoch, token)
	if err != nil {
		return nil, err
	}
	if !b.Processed {
		return nil, reverts.State("epoch %d not processed", epoch)
	}

	var (
		settled []*Payout
		remote  = make(map[uint64][]settlement.RewardItem)
	)
	for _, pid := range b.Pids {
		key := recordKey{epoch, pid, token}
		r, err := d.records.Get(key)
		if err != nil {
			return nil, err
		}
		if r == nil || r.Status != StatusQueued {
			continue
		}
		p, err := d.pools.PoolInfo(pid)
		if err != nil {
			return nil, err
		}
		r.Status = StatusProcessed
		if err := d.records.Update(key, r); err != nil {
			return nil, err
		}
		if r.Amount.Sign() == 0 {
			continue
		}
		if p.Kind == registry.KindSiphon {
			remote[p.DstChainID] = append(remote[p.DstChainID], settlement.RewardItem{Pid: pid, Amount: r.Amount})
		} else if err := d.fundLocal(pid, token, r.Amount); err != nil {
			return nil, err
		}
		settled = append(settled, &Payout{Pid: pid, Amount: r.Amount})
	}

	chains := make([]uint64, 0, len(remote))
	for chain := range remote {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	for _, chain := range chains {
		if _, err := d.sendRemote(caller, epoch, token, chain, remote[chain], fee); err != nil {
			return nil, err
		}
	}
	metricsSettled().AddWithLabel(int64(len(settled)), map[string]string{"route": "epoch"})
	logger.Info("epoch settled", "epoch", epoch, "token", token, "pools", len(settled), "chains", len(chains))
	return settled, nil
}

func (d *Distributor) fundLocal(pid uint64, token mesh.Address, amount *big.Int) error {
	if err := d.pools.FundStash(d.addr, pid, token, amount); err != nil {
		return errors.WithMessagef(err, "fund stash of pool %d", pid)
	}
	metricsSettled().AddWithLabel(1, map[string]string{"route": "local"})
	return nil
}

// sendRemote sends rewards to the distributor of dst. The caller pays the messaging fee.
func (d *Distributor) sendRemote(caller mesh.Address, epoch uint64, token mesh.Address, dst uint64, items []settlement.RewardItem, fee *big.Int) (*settlement.Intent, error) {
	if d.sender == nil {
		return nil, reverts.State("no settlement layer for chain %d", dst)
	}
	recipient, err := d.Remote(dst)
	if err != nil {
		return nil, err
	}
	if recipient.IsZero() {
		return nil, reverts.State("no remote distributor for chain %d", dst)
	}
	rewards := &settlement.Rewards{Epoch: epoch, Token: token, Items: items}
	payload, err := settlement.EncodePayload(settlement.PayloadRewards, rewards)
	if err != nil {
		return nil, err
	}
	quote, err := d.sender.Quote(dst, payload)
	if err != nil {
		return nil, err
	}
	if fee == nil || fee.Cmp(quote) < 0 {
		return nil, reverts.External("messaging fee %v below quote %v", fee, quote)
	}
	if quote.Sign() > 0 {
		feeToken, err := d.sender.FeeToken()
		if err != nil {
			return nil, err
		}
		if err := d.token.Transfer(feeToken, caller, d.addr, quote); err != nil {
			return nil, errors.WithMessage(err, "messaging fee")
		}
	}
	intent, err := d.sender.SendToChain(d.addr, dst, token, rewards.Total(), recipient, payload, quote)
	if err != nil {
		return nil, err
	}
	metricsSettled().AddWithLabel(1, map[string]string{"route": "remote"})
	logger.Debug("rewards sent", "dst", dst, "nonce", intent.Nonce, "epoch", epoch, "pools", len(items), "amount", rewards.Total())
	return intent, nil
}

// HandleRewards queues rewards that arrived from another chain. The tokens were already
// credited to the distributor. Rewards for an epoch whose record was paid already go to
// the current epoch.
func (d *Distributor) HandleRewards(src uint64, rewards *settlement.Rewards, now uint64) error {
	for _, item := range rewards.Items {
		if item.Amount == nil || item.Amount.Sign() <= 0 {
			continue
		}
		if _, err := d.fundablePool(item.Pid); err != nil {
			return err
		}
		epoch := rewards.Epoch
		r, err := d.Record(epoch, item.Pid, rewards.Token)
		if err != nil {
			return err
		}
		if r != nil && r.Status == StatusProcessed {
			epoch = d.CurrentEpoch(now)
			if cur, err := d.Record(epoch, item.Pid, rewards.Token); err != nil {
				return err
			} else if cur != nil && cur.Status == StatusProcessed {
				epoch++
			}
		}
		if err := d.queue(epoch, item.Pid, rewards.Token, item.Amount); err != nil {
			return err
		}
		logger.Debug("remote rewards queued", "src", src, "epoch", epoch, "pid", item.Pid, "amount", item.Amount)
	}
	return nil
}

// Reclaim takes back the escrow of a reward message that failed on dst and carries it into
// the budget of the first unprocessed epoch from the current one on. Only the owner may call.
func (d *Distributor) Reclaim(caller mesh.Address, dst, nonce uint64, now uint64) (*big.Int, error) {
	if err := d.RequireOwner(caller); err != nil {
		return nil, err
	}
	if d.sender == nil {
		return nil, reverts.State("no settlement layer")
	}
	intent, err := d.sender.Refund(d.addr, dst, nonce)
	if err != nil {
		return nil, err
	}
	var rewards settlement.Rewards
	if err := settlement.DecodePayload(intent.Payload, settlement.PayloadRewards, &rewards); err != nil {
		return nil, reverts.Invalid("intent %d to chain %d carries no rewards: %v", nonce, dst, err)
	}
	if intent.Amount.Sign() > 0 {
		if err := d.carry(d.CurrentEpoch(now), rewards.Token, intent.Amount); err != nil {
			return nil, err
		}
	}
	logger.Info("failed rewards reclaimed", "dst", dst, "nonce", nonce, "epoch", rewards.Epoch, "amount", intent.Amount)
	return intent.Amount, nil
}
