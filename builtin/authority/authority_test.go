// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package authority

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/builtin/solidity"
	"github.com/boostmesh/mesh/lvldb"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/state"
	"github.com/boostmesh/mesh/test/datagen"
)

func newAuthority(t *testing.T) *Authority {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(solidity.NewContext(mesh.BytesToAddress([]byte("registry")), state.New(db)))
}

func TestOwnershipTransfer(t *testing.T) {
	a := newAuthority(t)
	owner, next, stranger := datagen.RandAddress(), datagen.RandAddress(), datagen.RandAddress()

	require.NoError(t, a.Init(owner))
	assert.Error(t, a.Init(next))

	err := a.TransferOwnership(stranger, next)
	assert.Equal(t, reverts.KindUnauthorized, reverts.KindOf(err))

	require.NoError(t, a.TransferOwnership(owner, next))
	// the old owner keeps control until the nominee accepts
	assert.NoError(t, a.RequireOwner(owner))
	assert.Error(t, a.AcceptOwnership(stranger))

	require.NoError(t, a.AcceptOwnership(next))
	got, err := a.Owner()
	require.NoError(t, err)
	assert.Equal(t, next, got)
	pending, err := a.PendingOwner()
	require.NoError(t, err)
	assert.True(t, pending.IsZero())
	assert.Error(t, a.RequireOwner(owner))
}

func TestRoles(t *testing.T) {
	a := newAuthority(t)
	owner, manager := datagen.RandAddress(), datagen.RandAddress()
	const poolManager Role = "pool-manager"

	require.NoError(t, a.Init(owner))
	assert.Error(t, a.RequireRole(manager, poolManager))
	assert.NoError(t, a.RequireRole(owner, poolManager))

	assert.Error(t, a.Grant(manager, poolManager, manager))
	require.NoError(t, a.Grant(owner, poolManager, manager))
	assert.NoError(t, a.RequireRole(manager, poolManager))

	ok, err := a.HasRole("other", manager)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Revoke(owner, poolManager, manager))
	assert.Error(t, a.RequireRole(manager, poolManager))
}
