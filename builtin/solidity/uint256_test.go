// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/test/datagen"
)

func TestUint256(t *testing.T) {
	ctx := newContext(t)
	u := NewUint256(ctx, mesh.Bytes32{1})

	assert.NoError(t, u.Set(big.NewInt(1000)))
	value, err := u.Get()
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), value)

	assert.NoError(t, u.Add(big.NewInt(500)))
	value, err = u.Get()
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), value)

	assert.NoError(t, u.Sub(big.NewInt(200)))
	value, err = u.Get()
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(1300), value)

	// underflow is rejected and leaves the value untouched
	assert.Error(t, u.Sub(big.NewInt(2000)))
	value, err = u.Get()
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(1300), value)

	assert.Error(t, u.Set(big.NewInt(-1)))
}

func TestAddress(t *testing.T) {
	ctx := newContext(t)
	address := NewAddress(ctx, mesh.Bytes32{1})

	value := datagen.RandAddress()
	address.Set(&value)
	got, err := address.Get()
	assert.NoError(t, err)
	assert.Equal(t, value, got)

	address.Set(nil)
	got, err = address.Get()
	assert.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestConfigVariable(t *testing.T) {
	ctx := newContext(t)
	config := NewConfigVariable("epoch-length", 10)

	assert.Equal(t, "epoch-length", config.Name())
	assert.Equal(t, mesh.BytesToBytes32([]byte("epoch-length")), config.Slot())
	assert.Equal(t, uint64(10), config.Get(ctx))

	config.Override(ctx, 42)
	assert.Equal(t, uint64(42), config.Get(ctx))
}
