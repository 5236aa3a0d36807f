// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/mesh"
)

// ShutdownPool withdraws the pool's LP from the gauge into the registry and closes the pool
// to deposits. Withdrawals and claims keep working.
func (r *Registry) ShutdownPool(caller mesh.Address, pid uint64) error {
	if err := r.requireManager(caller); err != nil {
		return err
	}
	return r.shutdownPool(pid)
}

func (r *Registry) shutdownPool(pid uint64) error {
	p, err := r.getExisting(pid)
	if err != nil {
		return err
	}
	if p.Shutdown {
		return reverts.State("pool %d already shut down", pid)
	}
	total, err := r.TotalDeposits(pid)
	if err != nil {
		return err
	}
	if total.Sign() > 0 {
		if err := r.yield.Withdraw(p.Gauge, p.LPToken, r.addr, total); err != nil {
			return errors.WithMessage(err, "gauge withdraw")
		}
	}
	p.Held = total
	return r.closePool(pid, p)
}

func (r *Registry) closePool(pid uint64, p *Pool) error {
	p.Shutdown = true
	p.ForceShutdownAt = 0
	r.gauges.Delete(p.Gauge)
	logger.Info("pool shut down", "pid", pid, "held", p.Held)
	return r.pools.Update(poolID(pid), p)
}

// ShutdownSystem shuts down every active pool and closes the registry to new pools and
// deposits. Only the owner may call.
func (r *Registry) ShutdownSystem(caller mesh.Address) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}
	shutdown, err := r.system.Get()
	if err != nil {
		return err
	}
	if shutdown {
		return reverts.State("system already shut down")
	}
	count, err := r.poolCount.Get()
	if err != nil {
		return err
	}
	for pid := uint64(0); pid < count; pid++ {
		p, err := r.getExisting(pid)
		if err != nil {
			return err
		}
		if p.Shutdown {
			continue
		}
		if err := r.shutdownPool(pid); err != nil {
			return errors.WithMessagef(err, "pool %d", pid)
		}
	}
	logger.Info("system shut down", "pools", count)
	return r.system.Upsert(true)
}

// QueueForceShutdown schedules a force shutdown of the pool, runnable once the
// force shutdown delay has passed. Only the owner may call.
func (r *Registry) QueueForceShutdown(caller mesh.Address, pid uint64, now uint64) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}
	p, err := r.getExisting(pid)
	if err != nil {
		return err
	}
	if p.Shutdown {
		return reverts.State("pool %d already shut down", pid)
	}
	p.ForceShutdownAt = now + r.ForceShutdownDelay()
	logger.Info("force shutdown queued", "pid", pid, "at", p.ForceShutdownAt)
	return r.pools.Update(poolID(pid), p)
}

// ForceShutdown shuts down a pool queued for it even when its gauge refuses the withdraw.
// In that case the LP stays in the gauge and withdrawals pull it from there.
func (r *Registry) ForceShutdown(caller mesh.Address, pid uint64, now uint64) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}
	p, err := r.getExisting(pid)
	if err != nil {
		return err
	}
	if p.Shutdown {
		return reverts.State("pool %d already shut down", pid)
	}
	if p.ForceShutdownAt == 0 {
		return reverts.State("force shutdown of pool %d not queued", pid)
	}
	if now < p.ForceShutdownAt {
		return reverts.State("force shutdown of pool %d not ready until %d", pid, p.ForceShutdownAt)
	}
	total, err := r.TotalDeposits(pid)
	if err != nil {
		return err
	}
	p.Held = new(big.Int)
	if total.Sign() > 0 {
		st := r.sctx.State()
		rev := st.NewCheckpoint()
		if err := r.yield.Withdraw(p.Gauge, p.LPToken, r.addr, total); err != nil {
			st.RevertTo(rev)
			logger.Info("force shutdown without gauge withdraw", "pid", pid, "error", err)
		} else {
			p.Held = total
		}
	}
	return r.closePool(pid, p)
}
