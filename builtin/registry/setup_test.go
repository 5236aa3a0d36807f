// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/builtin/accumulator"
	"github.com/boostmesh/mesh/builtin/fees"
	"github.com/boostmesh/mesh/builtin/multiplier"
	"github.com/boostmesh/mesh/builtin/registry"
	"github.com/boostmesh/mesh/builtin/token"
	"github.com/boostmesh/mesh/lvldb"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/sim"
	"github.com/boostmesh/mesh/state"
	"github.com/boostmesh/mesh/test/datagen"
)

type testSetup struct {
	state      *state.State
	registry   *registry.Registry
	token      *token.Token
	acc        *accumulator.Accumulator
	fees       *fees.Fees
	multiplier *multiplier.Multiplier
	gauges     *sim.Gauges
	minter     *sim.Minter
	settings   *registry.Settings
	owner      mesh.Address
}

func newSetup(t *testing.T) *testSetup {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := state.New(db)
	owner := datagen.RandAddress()
	tk := token.New(mesh.BytesToAddress([]byte("token")), st)
	m := multiplier.New(mesh.BytesToAddress([]byte("multiplier")), st)
	require.NoError(t, m.Init(owner))
	acc := accumulator.New(mesh.BytesToAddress([]byte("accumulator")), st, tk, m)
	f := fees.New(mesh.BytesToAddress([]byte("fees")), st)
	require.NoError(t, f.Init(owner))

	settings := &registry.Settings{
		RewardToken:   mesh.BytesToAddress([]byte("crv")),
		Issuance:      mesh.BytesToAddress([]byte("mesh")),
		Treasury:      mesh.BytesToAddress([]byte("treasury")),
		LockRewards:   mesh.BytesToAddress([]byte("lock-rewards")),
		StakerRewards: mesh.BytesToAddress([]byte("staker-rewards")),
	}
	gauges := sim.NewGauges(mesh.BytesToAddress([]byte("gauges")), st, tk, settings.RewardToken)
	minter := sim.NewMinter(mesh.BytesToAddress([]byte("minter")), st, tk, settings.Issuance, datagen.Ether(50_000_000), 500)

	r := registry.New(mesh.BytesToAddress([]byte("registry")), st, tk, acc, f, gauges, minter)
	require.NoError(t, r.Initialize(owner, settings))

	return &testSetup{
		state:      st,
		registry:   r,
		token:      tk,
		acc:        acc,
		fees:       f,
		multiplier: m,
		gauges:     gauges,
		minter:     minter,
		settings:   settings,
		owner:      owner,
	}
}

// addPool registers a standard pool with fresh lp token and gauge.
func (s *testSetup) addPool(t *testing.T) (uint64, *registry.Pool) {
	pid, err := s.registry.AddPool(s.owner, datagen.RandAddress(), datagen.RandAddress(), registry.KindStandard, 0)
	require.NoError(t, err)
	p, err := s.registry.PoolInfo(pid)
	require.NoError(t, err)
	return pid, p
}

// deposit mints lp to account and deposits it.
func (s *testSetup) deposit(t *testing.T, pid uint64, account mesh.Address, amount int64, stake bool) {
	p, err := s.registry.PoolInfo(pid)
	require.NoError(t, err)
	require.NoError(t, s.token.Mint(p.LPToken, account, big.NewInt(amount)))
	require.NoError(t, s.registry.Deposit(account, pid, big.NewInt(amount), stake))
}

func (s *testSetup) balance(t *testing.T, tok, account mesh.Address) *big.Int {
	bal, err := s.token.BalanceOf(tok, account)
	require.NoError(t, err)
	return bal
}
