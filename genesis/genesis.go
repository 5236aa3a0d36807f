// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis builds a network of chains from a genesis configuration.
package genesis

import (
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin"
	"github.com/boostmesh/mesh/builtin/registry"
	"github.com/boostmesh/mesh/builtin/settlement"
	"github.com/boostmesh/mesh/kv"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/runtime"
	"github.com/boostmesh/mesh/sim"
	"github.com/boostmesh/mesh/state"
)

var logger = log.WithContext("pkg", "genesis")

// Addresses of the simulated external protocol contracts on every chain.
var (
	GaugesAddress    = mesh.BytesToAddress([]byte("Gauges"))
	MinterAddress    = mesh.BytesToAddress([]byte("Minter"))
	TransportAddress = mesh.BytesToAddress([]byte("Transport"))
	LockRewards      = mesh.DeriveAddress("shared", []byte("lock"))
	StakerRewards    = mesh.DeriveAddress("shared", []byte("staker"))
)

// Chain is a chain of the network with the simulated protocols it talks to.
type Chain struct {
	*runtime.Chain
	Config *ChainConfig
	Gauges *sim.Gauges
	Minter *sim.Minter // nil off the primary chain
	Oracle *sim.VoteOracle
	DB     kv.Store
}

// Network is a set of chains joined by a bridge.
type Network struct {
	Config *Config
	Owner  mesh.Address
	Bridge *sim.Bridge
	Chains map[uint64]*Chain
}

// IDs returns the chain ids in ascending order.
func (n *Network) IDs() []uint64 {
	ids := make([]uint64, 0, len(n.Chains))
	for id := range n.Chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Primary returns the primary chain.
func (n *Network) Primary() *Chain {
	return n.Chains[n.Config.Primary().ID]
}

// Opener returns the store of a chain.
type Opener func(chain uint64) (kv.Store, error)

// Build binds every chain of cfg over the stores open returns and initializes the chains
// whose store is fresh.
func Build(cfg *Config, open Opener, clock clockwork.Clock) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := &Network{
		Config: cfg,
		Owner:  cfg.Owner.Address(),
		Bridge: sim.NewBridge(cfg.BridgeFee.Value()),
		Chains: make(map[uint64]*Chain),
	}
	for _, cc := range cfg.Chains {
		db, err := open(cc.ID)
		if err != nil {
			return nil, errors.WithMessagef(err, "open chain %d", cc.ID)
		}
		chain := bind(cfg, cc, db, n.Bridge, clock)
		n.Chains[cc.ID] = chain
		n.Bridge.Register(cc.ID, chain)
	}
	for _, cc := range cfg.Chains {
		chain := n.Chains[cc.ID]
		fresh, err := isFresh(chain)
		if err != nil {
			return nil, err
		}
		if !fresh {
			logger.Debug("chain already initialized", "chain", cc.ID)
			continue
		}
		if err := newBuilder(cfg, cc).Build(chain.Chain); err != nil {
			return nil, errors.WithMessagef(err, "genesis of chain %d", cc.ID)
		}
		logger.Info("chain initialized", "chain", cc.ID, "pools", len(cc.Pools), "primary", cc.Primary)
	}
	return n, nil
}

func bind(cfg *Config, cc *ChainConfig, db kv.Store, bridge *sim.Bridge, clock clockwork.Clock) *Chain {
	st := state.New(db)
	tk := builtin.Token.WithState(st)
	chain := &Chain{
		Config: cc,
		Gauges: sim.NewGauges(GaugesAddress, st, tk, cfg.Tokens.Reward.Address()),
		Oracle: sim.NewVoteOracle(),
		DB:     db,
	}
	ext := &builtin.Externals{Yield: chain.Gauges, Oracle: chain.Oracle, Transport: bridge}
	if cc.Primary {
		chain.Minter = sim.NewMinter(MinterAddress, st, tk, cfg.Tokens.Issuance.Address(), cc.MaxSupply.Value(), cc.Cliffs)
		ext.Converter = chain.Minter
	}
	contracts := builtin.Bind(st, ext, settlement.NewOutbox())
	chain.Chain = runtime.New(cc.ID, st, contracts, bridge, clock)
	return chain
}

func isFresh(chain *Chain) (fresh bool, err error) {
	err = chain.View(func(c *builtin.Contracts, _ uint64) error {
		owner, err := c.Registry.Owner()
		fresh = owner.IsZero()
		return err
	})
	return
}

func newBuilder(cfg *Config, cc *ChainConfig) *Builder {
	owner := cfg.Owner.Address()
	b := new(Builder).Setup(&builtin.Setup{
		Owner: owner,
		Registry: &registry.Settings{
			RewardToken:   cfg.Tokens.Reward.Address(),
			Issuance:      cfg.Tokens.Issuance.Address(),
			Treasury:      treasury(cc),
			LockRewards:   LockRewards,
			StakerRewards: StakerRewards,
			L2FeeCap:      cc.L2FeeCap.Value(),
		},
		Settlement: &settlement.Settings{
			ChainID:     cc.ID,
			Transport:   TransportAddress,
			FeeToken:    cfg.Tokens.Fee.Address(),
			RewardToken: cfg.Tokens.Reward.Address(),
			Issuance:    cfg.Tokens.Issuance.Address(),
		},
		Fees:        cc.Fees,
		EpochLength: cfg.EpochLength,
	})
	for _, other := range cfg.Chains {
		if other.ID == cc.ID {
			continue
		}
		id := other.ID
		b.Call("remotes", func(c *builtin.Contracts, _ uint64) error {
			if err := c.Settlement.SetTrustedRemote(owner, id, builtin.Settlement.Address); err != nil {
				return err
			}
			return c.Distributor.SetRemote(owner, id, builtin.Distributor.Address)
		})
	}
	for _, p := range cc.Pools {
		p := p
		b.Call("pool "+p.Name, func(c *builtin.Contracts, _ uint64) error {
			kind, err := p.PoolKind()
			if err != nil {
				return err
			}
			_, err = c.Registry.AddPool(owner, p.LPToken(), p.Gauge(), kind, p.Dst)
			return err
		})
	}
	for _, a := range cc.Alloc {
		a := a
		b.Call("alloc", func(c *builtin.Contracts, _ uint64) error {
			return c.Token.Mint(a.Token.Address(), a.Account.Address(), a.Amount.Value())
		})
	}
	return b
}

func treasury(cc *ChainConfig) mesh.Address {
	if cc.Treasury == "" {
		return mesh.Address{}
	}
	return cc.Treasury.Address()
}
