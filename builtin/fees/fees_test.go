// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/lvldb"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/state"
	"github.com/boostmesh/mesh/test/datagen"
)

func TestFeesVersioning(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	defer db.Close()

	f := New(mesh.BytesToAddress([]byte("fees")), state.New(db))
	owner := datagen.RandAddress()
	require.NoError(t, f.Init(owner))

	cfg, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = f.Set(datagen.RandAddress(), Config{LockIncentive: 1})
	assert.Error(t, err)

	_, err = f.Set(owner, Config{LockIncentive: 5000})
	assert.Error(t, err)

	updated, err := f.Set(owner, Config{Version: 99, LockIncentive: 1500, StakerIncentive: 500, EarmarkIncentive: 100})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), updated.Version)

	cfg, err = f.Get()
	require.NoError(t, err)
	assert.Equal(t, updated, cfg)
}
