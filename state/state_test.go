// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/lvldb"
	"github.com/boostmesh/mesh/mesh"
)

func newState(t *testing.T) (*State, *lvldb.LevelDB) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), db
}

func TestStateRevert(t *testing.T) {
	assert := assert.New(t)
	st, _ := newState(t)

	addr := mesh.BytesToAddress([]byte("contract"))
	key := mesh.BytesToBytes32([]byte("slot"))

	st.SetStorage(addr, key, mesh.BytesToBytes32([]byte{1}))
	rev := st.NewCheckpoint()
	st.SetStorage(addr, key, mesh.BytesToBytes32([]byte{2}))

	v, err := st.GetStorage(addr, key)
	assert.NoError(err)
	assert.Equal(mesh.BytesToBytes32([]byte{2}), v)

	st.RevertTo(rev)
	v, err = st.GetStorage(addr, key)
	assert.NoError(err)
	assert.Equal(mesh.BytesToBytes32([]byte{1}), v)

	// reverting below the base level keeps the base writes
	st.RevertTo(0)
	v, err = st.GetStorage(addr, key)
	assert.NoError(err)
	assert.Equal(mesh.BytesToBytes32([]byte{1}), v)
}

func TestStateCommit(t *testing.T) {
	assert := assert.New(t)
	st, db := newState(t)

	addr := mesh.BytesToAddress([]byte("contract"))
	k1 := mesh.BytesToBytes32([]byte("k1"))
	k2 := mesh.BytesToBytes32([]byte("k2"))

	st.SetStorage(addr, k1, mesh.BytesToBytes32([]byte{1}))
	st.SetStorage(addr, k1, mesh.BytesToBytes32([]byte{3}))
	st.SetStorage(addr, k2, mesh.BytesToBytes32([]byte{2}))
	assert.Equal(3, st.Dirty())
	require.NoError(t, st.Commit())
	assert.Equal(0, st.Dirty())

	// a fresh state over the same db sees committed values
	other := New(db)
	v, err := other.GetStorage(addr, k1)
	assert.NoError(err)
	assert.Equal(mesh.BytesToBytes32([]byte{3}), v)

	// zero value deletes the slot
	st.SetStorage(addr, k2, mesh.Bytes32{})
	require.NoError(t, st.Commit())
	v, err = New(db).GetStorage(addr, k2)
	assert.NoError(err)
	assert.True(v.IsZero())
}

func TestStateCodecErrors(t *testing.T) {
	st, _ := newState(t)
	addr := mesh.BytesToAddress([]byte("contract"))
	key := mesh.BytesToBytes32([]byte("bad"))

	st.SetRawStorage(addr, key, rlp.RawValue{0xFF})
	_, err := st.GetStorage(addr, key)
	assert.Error(t, err)

	var out []uint64
	err = st.DecodeStorage(addr, key, func(raw []byte) error {
		return rlp.DecodeBytes(raw, &out)
	})
	var stateErr *Error
	assert.ErrorAs(t, err, &stateErr)
}
