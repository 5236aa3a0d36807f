// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pools

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/api/utils"
	"github.com/boostmesh/mesh/builtin"
	"github.com/boostmesh/mesh/mesh"
)

type Pools struct {
	chain utils.Viewer
}

func New(chain utils.Viewer) *Pools {
	return &Pools{chain}
}

func getPool(c *builtin.Contracts, pid uint64) (*Pool, error) {
	p, err := c.Registry.PoolInfo(pid)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, utils.NotFound(errors.Errorf("pool %d not found", pid))
	}
	deposits, err := c.Registry.TotalDeposits(pid)
	if err != nil {
		return nil, err
	}
	acc, err := c.Accumulator.Get(p.Rewards)
	if err != nil {
		return nil, err
	}
	pool := &Pool{
		Pid:        pid,
		LPToken:    p.LPToken,
		Gauge:      p.Gauge,
		Rewards:    p.Rewards,
		Stashes:    p.Stashes,
		Kind:       p.Kind.String(),
		DstChainID: p.DstChainID,
		Shutdown:   p.Shutdown,
		Deposits:   utils.Amount(deposits),
	}
	if acc != nil {
		pool.Staked = utils.Amount(acc.TotalSupply)
		pool.RewardPerToken = utils.Amount(acc.RewardPerToken)
		pool.Queued = utils.Amount(acc.Queued)
		pool.TotalNotified = utils.Amount(acc.TotalNotified)
		pool.TotalPaid = utils.Amount(acc.TotalPaid)
	}
	return pool, nil
}

func (p *Pools) handleGetPools(w http.ResponseWriter, _ *http.Request) error {
	var pools []*Pool
	err := p.chain.View(func(c *builtin.Contracts, _ uint64) error {
		n, err := c.Registry.PoolLength()
		if err != nil {
			return err
		}
		pools = make([]*Pool, 0, n)
		for pid := uint64(0); pid < n; pid++ {
			pool, err := getPool(c, pid)
			if err != nil {
				return err
			}
			pools = append(pools, pool)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, pools)
}

func (p *Pools) handleGetPool(w http.ResponseWriter, req *http.Request) error {
	pid, err := utils.ParseUint("pid", mux.Vars(req)["pid"])
	if err != nil {
		return err
	}
	var pool *Pool
	if err := p.chain.View(func(c *builtin.Contracts, _ uint64) (err error) {
		pool, err = getPool(c, pid)
		return
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, pool)
}

func getAccount(c *builtin.Contracts, pid uint64, addr mesh.Address) (*Account, error) {
	p, err := c.Registry.PoolInfo(pid)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, utils.NotFound(errors.Errorf("pool %d not found", pid))
	}
	unstaked, staked, err := c.Registry.BalanceOf(pid, addr)
	if err != nil {
		return nil, err
	}
	earned, err := c.Accumulator.Earned(p.Rewards, addr)
	if err != nil {
		return nil, err
	}
	scaled, err := c.Accumulator.ScaledEarned(p.Rewards, addr)
	if err != nil {
		return nil, err
	}
	acc := &Account{
		Unstaked:     utils.Amount(unstaked),
		Staked:       utils.Amount(staked),
		Earned:       utils.Amount(earned),
		ScaledEarned: utils.Amount(scaled),
		Extras:       []*Extra{},
	}
	for _, stash := range p.Stashes {
		sp, err := c.Accumulator.Get(stash)
		if err != nil {
			return nil, err
		}
		if sp == nil {
			continue
		}
		extra, err := c.Accumulator.Earned(stash, addr)
		if err != nil {
			return nil, err
		}
		acc.Extras = append(acc.Extras, &Extra{Stash: stash, Token: sp.RewardToken, Earned: utils.Amount(extra)})
	}
	return acc, nil
}

func (p *Pools) handleGetAccount(w http.ResponseWriter, req *http.Request) error {
	vars := mux.Vars(req)
	pid, err := utils.ParseUint("pid", vars["pid"])
	if err != nil {
		return err
	}
	addr, err := utils.ParseAddress("address", vars["address"])
	if err != nil {
		return err
	}
	var acc *Account
	if err := p.chain.View(func(c *builtin.Contracts, _ uint64) (err error) {
		acc, err = getAccount(c, pid, addr)
		return
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, acc)
}

func (p *Pools) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /pools").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetPools))
	sub.Path("/{pid}").
		Methods(http.MethodGet).
		Name("GET /pools/{pid}").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetPool))
	sub.Path("/{pid}/accounts/{address}").
		Methods(http.MethodGet).
		Name("GET /pools/{pid}/accounts/{address}").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetAccount))
}
