// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"

	"github.com/boostmesh/mesh/kv"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/stackedmap"
)

const (
	storageBucket    = kv.Bucket("s")
	defaultCacheSize = 4096
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

type storageKey struct {
	addr mesh.Address
	key  mesh.Bytes32
}

func (k storageKey) dbKey() []byte {
	return append(k.addr.Bytes(), k.key.Bytes()...)
}

// State manages contract storage.
// Uncommitted writes are kept in a stacked map so that any revision can be reverted.
// Committed values live in the kv store behind an LRU cache.
type State struct {
	db    kv.Store
	cache *lru.Cache
	sm    *stackedmap.StackedMap[storageKey, rlp.RawValue]
}

// New create state object backed by db.
func New(db kv.Store) *State {
	cache, _ := lru.New(defaultCacheSize)
	s := &State{
		db:    storageBucket.NewStore(db),
		cache: cache,
	}
	s.sm = stackedmap.New(s.load)
	return s
}

func (s *State) load(key storageKey) (rlp.RawValue, bool, error) {
	if v, ok := s.cache.Get(key); ok {
		return v.(rlp.RawValue), true, nil
	}
	data, err := s.db.Get(key.dbKey())
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	s.cache.Add(key, rlp.RawValue(data))
	return data, true, nil
}

// GetStorage returns storage value for the given address and key.
func (s *State) GetStorage(addr mesh.Address, key mesh.Bytes32) (mesh.Bytes32, error) {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return mesh.Bytes32{}, err
	}
	if len(raw) == 0 {
		return mesh.Bytes32{}, nil
	}
	kind, content, _, err := rlp.Split(raw)
	if err != nil {
		return mesh.Bytes32{}, &Error{err}
	}
	if kind == rlp.List {
		// customized storage value, return hash of raw data
		return mesh.Blake2b(raw), nil
	}
	return mesh.BytesToBytes32(content), nil
}

// SetStorage set storage value for the given address and key.
func (s *State) SetStorage(addr mesh.Address, key, value mesh.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(addr, key, nil)
		return
	}
	v, _ := rlp.EncodeToBytes(bytes.TrimLeft(value[:], "\x00"))
	s.SetRawStorage(addr, key, v)
}

// GetRawStorage returns storage value in rlp raw for given address and key.
func (s *State) GetRawStorage(addr mesh.Address, key mesh.Bytes32) (rlp.RawValue, error) {
	data, _, err := s.sm.Get(storageKey{addr, key})
	if err != nil {
		return nil, &Error{err}
	}
	return data, nil
}

// SetRawStorage set storage value in rlp raw.
func (s *State) SetRawStorage(addr mesh.Address, key mesh.Bytes32, raw rlp.RawValue) {
	s.sm.Put(storageKey{addr, key}, raw)
}

// EncodeStorage set storage value encoded by given enc method.
// Error returned by enc will be absorbed by State instance.
func (s *State) EncodeStorage(addr mesh.Address, key mesh.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage get and decode storage value.
// Error returned by dec will be absorbed by State instance.
func (s *State) DecodeStorage(addr mesh.Address, key mesh.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return err
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	if revision < 1 {
		revision = 1
	}
	s.sm.PopTo(revision)
}

// Dirty returns the number of uncommitted writes.
func (s *State) Dirty() (n int) {
	s.sm.Journal(func(storageKey, rlp.RawValue) bool {
		n++
		return true
	})
	return
}

// Commit flushes all uncommitted writes into the kv store in one batch.
// The latest write of each slot wins.
func (s *State) Commit() error {
	latest := make(map[storageKey]rlp.RawValue)
	var order []storageKey
	s.sm.Journal(func(key storageKey, value rlp.RawValue) bool {
		if _, ok := latest[key]; !ok {
			order = append(order, key)
		}
		latest[key] = value
		return true
	})
	if len(order) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	for _, key := range order {
		value := latest[key]
		var err error
		if len(value) == 0 {
			err = batch.Delete(key.dbKey())
		} else {
			err = batch.Put(key.dbKey(), value)
		}
		if err != nil {
			return &Error{err}
		}
	}
	if err := batch.Write(); err != nil {
		return &Error{err}
	}

	for _, key := range order {
		s.cache.Add(key, latest[key])
	}
	s.sm = stackedmap.New(s.load)
	return nil
}
