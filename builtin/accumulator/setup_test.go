// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accumulator

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/builtin/multiplier"
	"github.com/boostmesh/mesh/builtin/token"
	"github.com/boostmesh/mesh/lvldb"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/state"
	"github.com/boostmesh/mesh/test/datagen"
)

type testSetup struct {
	acc        *Accumulator
	token      *token.Token
	multiplier *multiplier.Multiplier
	owner      mesh.Address
	operator   mesh.Address
	reward     mesh.Address
}

func newSetup(t *testing.T) *testSetup {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := state.New(db)
	tk := token.New(mesh.BytesToAddress([]byte("token")), st)
	m := multiplier.New(mesh.BytesToAddress([]byte("multiplier")), st)
	owner := datagen.RandAddress()
	require.NoError(t, m.Init(owner))

	return &testSetup{
		acc:        New(mesh.BytesToAddress([]byte("accumulator")), st, tk, m),
		token:      tk,
		multiplier: m,
		owner:      owner,
		operator:   datagen.RandAddress(),
		reward:     datagen.RandAddress(),
	}
}

// create registers an accumulator and returns its id.
func (s *testSetup) create(t *testing.T) mesh.Address {
	id := datagen.RandAddress()
	require.NoError(t, s.acc.Create(id, s.reward, s.operator, mesh.Address{}))
	return id
}

// notify mints amount to the operator and notifies it.
func (s *testSetup) notify(t *testing.T, id mesh.Address, amount *big.Int) {
	p, err := s.acc.Get(id)
	require.NoError(t, err)
	require.NoError(t, s.token.Mint(p.RewardToken, s.operator, amount))
	require.NoError(t, s.acc.NotifyReward(s.operator, id, amount))
}

func (s *testSetup) earned(t *testing.T, id, account mesh.Address) *big.Int {
	e, err := s.acc.Earned(id, account)
	require.NoError(t, err)
	return e
}
