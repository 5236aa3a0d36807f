// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/kv"
	"github.com/boostmesh/mesh/lvldb"
)

func TestPrefixRange(t *testing.T) {
	assert.Equal(t, kv.Range{From: []byte("ab"), To: []byte("ac")}, kv.PrefixRange([]byte("ab")))
	assert.Equal(t, kv.Range{From: []byte{0x1, 0xff}, To: []byte{0x2}}, kv.PrefixRange([]byte{0x1, 0xff}))
	assert.Nil(t, kv.PrefixRange([]byte{0xff}).To)
}

func TestBucket(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	defer db.Close()

	a := kv.Bucket("a").NewStore(db)
	b := kv.Bucket("b").NewStore(db)

	require.NoError(t, a.Put([]byte("k1"), []byte("v1")))
	batch := a.NewBatch()
	require.NoError(t, batch.Put([]byte("k2"), []byte("v2")))
	require.NoError(t, batch.Write())
	require.NoError(t, b.Put([]byte("k1"), []byte("other")))

	v, err := a.Get([]byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	raw, err := db.Get([]byte("ak2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), raw)

	var keys []string
	require.NoError(t, a.Iterate(kv.Range{}, func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	assert.Equal(t, []string{"k1", "k2"}, keys)

	require.NoError(t, a.Delete([]byte("k1")))
	_, err = a.Get([]byte("k1"))
	assert.True(t, a.IsNotFound(err))

	has, err := b.Has([]byte("k1"))
	require.NoError(t, err)
	assert.True(t, has)
}
