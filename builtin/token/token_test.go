// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package token

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/lvldb"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/state"
	"github.com/boostmesh/mesh/test/datagen"
)

func newToken(t *testing.T) *Token {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(mesh.BytesToAddress([]byte("token")), state.New(db))
}

func TestMintTransferBurn(t *testing.T) {
	tk := newToken(t)
	crv := datagen.RandAddress()
	alice, bob := datagen.RandAddress(), datagen.RandAddress()

	require.NoError(t, tk.Mint(crv, alice, big.NewInt(100)))
	require.NoError(t, tk.Transfer(crv, alice, bob, big.NewInt(40)))

	bal, err := tk.BalanceOf(crv, alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(60), bal)
	bal, err = tk.BalanceOf(crv, bob)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(40), bal)

	require.NoError(t, tk.Burn(crv, bob, big.NewInt(40)))
	supply, err := tk.TotalSupply(crv)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(60), supply)

	bal, err = tk.BalanceOf(crv, bob)
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Sign())
}

func TestTransferInsufficient(t *testing.T) {
	tk := newToken(t)
	crv := datagen.RandAddress()
	alice, bob := datagen.RandAddress(), datagen.RandAddress()

	require.NoError(t, tk.Mint(crv, alice, big.NewInt(10)))
	err := tk.Transfer(crv, alice, bob, big.NewInt(11))
	assert.Equal(t, reverts.KindInvalid, reverts.KindOf(err))

	err = tk.Transfer(crv, alice, bob, big.NewInt(-1))
	assert.True(t, reverts.IsRevertErr(err))

	// tokens are isolated from each other
	bal, err := tk.BalanceOf(datagen.RandAddress(), alice)
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Sign())
}
