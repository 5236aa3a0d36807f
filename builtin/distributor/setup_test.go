// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/builtin/accumulator"
	"github.com/boostmesh/mesh/builtin/fees"
	"github.com/boostmesh/mesh/builtin/multiplier"
	"github.com/boostmesh/mesh/builtin/registry"
	"github.com/boostmesh/mesh/builtin/settlement"
	"github.com/boostmesh/mesh/builtin/token"
	"github.com/boostmesh/mesh/lvldb"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/sim"
	"github.com/boostmesh/mesh/state"
	"github.com/boostmesh/mesh/test/datagen"
)

var (
	rewardToken = mesh.BytesToAddress([]byte("crv"))
	feeToken    = mesh.BytesToAddress([]byte("gas"))
	transport   = mesh.BytesToAddress([]byte("transport"))
	remoteDist  = mesh.BytesToAddress([]byte("remote-distributor"))

	// a time in epoch 100
	epochNow = 100*mesh.EpochLength + 10
)

type quoteTransport struct{}

func (quoteTransport) Quote(uint64, []byte) (*big.Int, error) { return big.NewInt(10), nil }

func (quoteTransport) Send(msg *settlement.Message) (*settlement.Receipt, error) {
	return &settlement.Receipt{Nonce: msg.Nonce}, nil
}

type testSetup struct {
	state       *state.State
	token       *token.Token
	acc         *accumulator.Accumulator
	registry    *registry.Registry
	coordinator *settlement.Coordinator
	outbox      *settlement.Outbox
	oracle      *sim.VoteOracle
	dist        *Distributor
	owner       mesh.Address
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
	gauges := sim.NewGauges(mesh.BytesToAddress([]byte("gauges")), st, tk, rewardToken)

	reg := registry.New(mesh.BytesToAddress([]byte("registry")), st, tk, acc, f, gauges, nil)
	require.NoError(t, reg.Initialize(owner, &registry.Settings{
		RewardToken:   rewardToken,
		Issuance:      mesh.BytesToAddress([]byte("mesh")),
		LockRewards:   mesh.BytesToAddress([]byte("lock-rewards")),
		StakerRewards: mesh.BytesToAddress([]byte("staker-rewards")),
	}))

	outbox := settlement.NewOutbox()
	coordinator := settlement.New(mesh.BytesToAddress([]byte("coordinator")), st, tk, quoteTransport{}, nil, outbox)
	require.NoError(t, coordinator.Initialize(owner, &settlement.Settings{
		ChainID:     1,
		Transport:   transport,
		FeeToken:    feeToken,
		RewardToken: rewardToken,
	}))
	require.NoError(t, coordinator.SetTrustedRemote(owner, 2, mesh.BytesToAddress([]byte("remote-coordinator"))))

	oracle := sim.NewVoteOracle()
	dist := New(mesh.BytesToAddress([]byte("distributor")), st, tk, reg, oracle, coordinator)
	require.NoError(t, dist.Init(owner))
	require.NoError(t, dist.SetRemote(owner, 2, remoteDist))
	require.NoError(t, reg.Grant(owner, registry.RoleStashFunder, dist.Address()))

	return &testSetup{
		state:       st,
		token:       tk,
		acc:         acc,
		registry:    reg,
		coordinator: coordinator,
		outbox:      outbox,
		oracle:      oracle,
		dist:        dist,
		owner:       owner,
	}
}

func (s *testSetup) addPool(t *testing.T, kind registry.Kind, dst uint64) uint64 {
	pid, err := s.registry.AddPool(s.owner, datagen.RandAddress(), datagen.RandAddress(), kind, dst)
	require.NoError(t, err)
	return pid
}

// stake deposits and stakes amount of the pool's lp for account.
func (s *testSetup) stake(t *testing.T, pid uint64, account mesh.Address, amount int64) {
	p, err := s.registry.PoolInfo(pid)
	require.NoError(t, err)
	require.NoError(t, s.token.Mint(p.LPToken, account, big.NewInt(amount)))
	require.NoError(t, s.registry.Deposit(account, pid, big.NewInt(amount), true))
}

// fund mints amount of token to the owner, who is a funder.
func (s *testSetup) fund(t *testing.T, tok mesh.Address, amount int64) {
	require.NoError(t, s.token.Mint(tok, s.owner, big.NewInt(amount)))
}

func (s *testSetup) record(t *testing.T, epoch, pid uint64) *Record {
	r, err := s.dist.Record(epoch, pid, rewardToken)
	require.NoError(t, err)
	return r
}

func (s *testSetup) balance(t *testing.T, tok, account mesh.Address) *big.Int {
	bal, err := s.token.BalanceOf(tok, account)
	require.NoError(t, err)
	return bal
}
