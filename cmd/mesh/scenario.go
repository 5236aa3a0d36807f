// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"math/big"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin"
	"github.com/boostmesh/mesh/builtin/registry"
	"github.com/boostmesh/mesh/builtin/settlement"
	"github.com/boostmesh/mesh/genesis"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/sim"
)

var (
	yieldPerEpoch  = ether(10000)
	budgetPerEpoch = ether(1000)
	depositAmount  = ether(100)
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), mesh.Precision)
}

type scenarioOptions struct {
	Users          int
	DropEvery      int
	DuplicateEvery int
	Reorder        bool
}

// epochReport summarizes one simulated epoch.
type epochReport struct {
	Epoch       uint64
	Earmarked   map[uint64]*big.Int // net yield per chain
	Claimed     map[uint64]*big.Int // reward and extras per chain
	Minted      *big.Int            // issuance minted on the primary chain
	FeesMoved   *big.Int            // sidechain fees distributed on the primary chain
	Retried     int
	BridgeStats sim.BridgeStats
}

type scenario struct {
	net    *genesis.Network
	clock  *clockwork.FakeClock
	opts   scenarioOptions
	keeper mesh.Address
	users  []mesh.Address
	fee    *big.Int
}

func newScenario(net *genesis.Network, clock *clockwork.FakeClock, opts scenarioOptions) *scenario {
	s := &scenario{
		net:    net,
		clock:  clock,
		opts:   opts,
		keeper: genesis.Label("keeper").Address(),
		fee:    new(big.Int),
	}
	if net.Config.BridgeFee != nil {
		s.fee = net.Config.BridgeFee.Value()
	}
	for i := 0; i < opts.Users; i++ {
		s.users = append(s.users, genesis.Label(fmt.Sprintf("user-%d", i)).Address())
	}
	net.Bridge.Reorder(opts.Reorder)
	return s
}

// depositPools returns the pids of the chain's pools that take deposits.
func depositPools(chain *genesis.Chain) ([]uint64, error) {
	var pids []uint64
	for pid, p := range chain.Config.Pools {
		kind, err := p.PoolKind()
		if err != nil {
			return nil, err
		}
		if kind == registry.KindStandard {
			pids = append(pids, uint64(pid))
		}
	}
	return pids, nil
}

func (s *scenario) forEachChain(fn func(chain *genesis.Chain) error) error {
	for _, id := range s.net.IDs() {
		if err := fn(s.net.Chains[id]); err != nil {
			return errors.WithMessagef(err, "chain %d", id)
		}
	}
	return nil
}

func (s *scenario) setup() error {
	return s.forEachChain(func(chain *genesis.Chain) error {
		pids, err := depositPools(chain)
		if err != nil {
			return err
		}
		return chain.Exec("deposit", func(c *builtin.Contracts, _ uint64) error {
			for _, pid := range pids {
				lp := chain.Config.Pools[pid].LPToken()
				for _, user := range s.users {
					if err := c.Token.Mint(lp, user, depositAmount); err != nil {
						return err
					}
					if err := c.Registry.Deposit(user, pid, depositAmount, true); err != nil {
						return err
					}
				}
			}
			return nil
		})
	})
}

// harvest accrues gauge yield and earmarks it. Sidechain treasuries report what they
// collected to the primary chain.
func (s *scenario) harvest(report *epochReport) error {
	primary := s.net.Primary()
	return s.forEachChain(func(chain *genesis.Chain) error {
		pids, err := depositPools(chain)
		if err != nil {
			return err
		}
		net := new(big.Int)
		err = chain.Exec("harvest", func(c *builtin.Contracts, _ uint64) error {
			collected := new(big.Int)
			for _, pid := range pids {
				if err := chain.Gauges.Accrue(chain.Config.Pools[pid].Gauge(), yieldPerEpoch); err != nil {
					return err
				}
				b, err := c.Registry.EarmarkRewards(s.keeper, pid)
				if err != nil {
					return err
				}
				net.Add(net, b.Net)
				collected.Add(collected, b.Platform)
			}
			if chain == primary || collected.Sign() == 0 || chain.Config.Treasury == "" {
				return nil
			}
			_, err := c.Settlement.SendFees(chain.Config.Treasury.Address(), primary.ID(), collected, s.fee)
			return err
		})
		report.Earmarked[chain.ID()] = net
		return err
	})
}

// distribute votes and funds the epoch on the primary chain, and settles it.
func (s *scenario) distribute(epoch uint64) error {
	primary := s.net.Primary()
	reward := s.net.Config.Tokens.Reward.Address()

	weights := make(map[uint64]*big.Int)
	pids := make([]uint64, 0, len(primary.Config.Pools))
	for pid := range primary.Config.Pools {
		weights[uint64(pid)] = big.NewInt(int64(pid + 1))
		pids = append(pids, uint64(pid))
	}
	primary.Oracle.SetWeights(epoch, weights)

	return primary.Exec("distribute", func(c *builtin.Contracts, now uint64) error {
		if err := c.Distributor.FundEpoch(s.net.Owner, epoch, reward, budgetPerEpoch, now); err != nil {
			return err
		}
		if _, err := c.Distributor.VoteGaugeWeight(s.net.Owner, epoch, pids); err != nil {
			return err
		}
		if _, err := c.Distributor.ProcessGaugeRewards(s.keeper, epoch, reward, now); err != nil {
			return err
		}
		_, err := c.Distributor.SettleEpoch(s.keeper, epoch, reward, now, s.fee)
		return err
	})
}

// relay delivers bridge messages and resends whatever failed until nothing is pending.
func (s *scenario) relay(report *epochReport) error {
	for round := 0; round < 4; round++ {
		if _, err := s.net.Bridge.Pump(); err != nil {
			return err
		}
		retried, err := s.retryFailed()
		if err != nil {
			return err
		}
		report.Retried += retried
		if retried == 0 && s.net.Bridge.Pending() == 0 {
			return nil
		}
	}
	return errors.Errorf("bridge did not settle, %d messages pending", s.net.Bridge.Pending())
}

func (s *scenario) retryFailed() (int, error) {
	var retried int
	err := s.forEachChain(func(chain *genesis.Chain) error {
		return chain.Exec("retry", func(c *builtin.Contracts, _ uint64) error {
			for _, dst := range s.net.IDs() {
				if dst == chain.ID() {
					continue
				}
				ledger, err := c.Settlement.Ledger(dst)
				if err != nil {
					return err
				}
				for nonce := uint64(1); nonce <= ledger.NextNonce; nonce++ {
					intent, err := c.Settlement.Intent(dst, nonce)
					if err != nil {
						return err
					}
					if intent == nil || intent.Status != settlement.StatusFailed {
						continue
					}
					if _, err := c.Settlement.Retry(s.keeper, dst, nonce, s.fee); err != nil {
						return err
					}
					retried++
				}
			}
			return nil
		})
	})
	return retried, err
}

// settleRemote settles what arrived on the sidechains for the epoch.
func (s *scenario) settleRemote(epoch uint64) error {
	primary := s.net.Primary()
	reward := s.net.Config.Tokens.Reward.Address()
	return s.forEachChain(func(chain *genesis.Chain) error {
		if chain == primary {
			return nil
		}
		return chain.Exec("settle", func(c *builtin.Contracts, now uint64) error {
			if _, err := c.Distributor.ProcessGaugeRewards(s.keeper, epoch, reward, now); err != nil {
				return err
			}
			_, err := c.Distributor.SettleEpoch(s.keeper, epoch, reward, now, nil)
			return err
		})
	})
}

func (s *scenario) distributeFees(report *epochReport) error {
	primary := s.net.Primary()
	return primary.Exec("fees", func(c *builtin.Contracts, now uint64) error {
		for _, src := range s.net.IDs() {
			if src == primary.ID() {
				continue
			}
			amount, err := c.Settlement.DistributeL2Fees(s.keeper, src, now, s.fee)
			if err != nil {
				return err
			}
			report.FeesMoved.Add(report.FeesMoved, amount)
		}
		return nil
	})
}

// claim pays every user and stakes the issuance minted on the primary chain into the
// shared lock accumulator.
func (s *scenario) claim(report *epochReport) error {
	primary := s.net.Primary()
	return s.forEachChain(func(chain *genesis.Chain) error {
		pids, err := depositPools(chain)
		if err != nil {
			return err
		}
		claimed := new(big.Int)
		err = chain.Exec("claim", func(c *builtin.Contracts, _ uint64) error {
			for _, pid := range pids {
				for _, user := range s.users {
					cl, err := c.Registry.Claim(user, pid)
					if err != nil {
						return err
					}
					claimed.Add(claimed, cl.Reward)
					for _, extra := range cl.Extras {
						claimed.Add(claimed, extra)
					}
					if chain != primary || cl.Minted.Sign() == 0 {
						continue
					}
					report.Minted.Add(report.Minted, cl.Minted)
					if err := c.Registry.StakeShared(user, registry.SharedLock, cl.Minted); err != nil {
						return err
					}
				}
			}
			return nil
		})
		report.Claimed[chain.ID()] = claimed
		return err
	})
}

// currentEpoch returns the primary chain's epoch and the time left until the next one.
func (s *scenario) currentEpoch() (epoch uint64, left time.Duration, err error) {
	err = s.net.Primary().View(func(c *builtin.Contracts, now uint64) error {
		epoch = c.Distributor.CurrentEpoch(now)
		left = time.Duration(c.Distributor.EpochStart(epoch+1)-now) * time.Second
		return nil
	})
	return
}

func (s *scenario) injectFaults(i int) {
	if s.opts.DropEvery > 0 && (i+1)%s.opts.DropEvery == 0 {
		s.net.Bridge.DropNext(1)
	}
	if s.opts.DuplicateEvery > 0 && (i+1)%s.opts.DuplicateEvery == 0 {
		s.net.Bridge.DuplicateNext(1)
	}
}

// runEpoch drives epoch i through harvest, distribution, settlement and claims, then
// advances the clock to the start of the next epoch.
func (s *scenario) runEpoch(i int) (*epochReport, error) {
	epoch, left, err := s.currentEpoch()
	if err != nil {
		return nil, err
	}
	report := &epochReport{
		Epoch:     epoch,
		Earmarked: make(map[uint64]*big.Int),
		Claimed:   make(map[uint64]*big.Int),
		Minted:    new(big.Int),
		FeesMoved: new(big.Int),
	}
	s.injectFaults(i)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"harvest", func() error { return s.harvest(report) }},
		{"distribute", func() error { return s.distribute(epoch) }},
		{"relay", func() error { return s.relay(report) }},
		{"settle remote", func() error { return s.settleRemote(epoch) }},
		{"distribute fees", func() error { return s.distributeFees(report) }},
		{"relay", func() error { return s.relay(report) }},
		{"claim", func() error { return s.claim(report) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return nil, errors.WithMessagef(err, "epoch %d: %s", epoch, step.name)
		}
	}
	report.BridgeStats = s.net.Bridge.Stats()
	s.clock.Advance(left)
	return report, nil
}
