// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

// Bucket provides logical bucket for kv store.
type Bucket string

// Key returns the prefixed key.
func (b Bucket) Key(key []byte) []byte {
	return append([]byte(b), key...)
}

// NewStore creates a bucket store from the source store.
func (b Bucket) NewStore(src Store) Store {
	return &bucketStore{bucket: b, src: src}
}

type bucketStore struct {
	bucket Bucket
	src    Store
}

func (s *bucketStore) Get(key []byte) ([]byte, error) { return s.src.Get(s.bucket.Key(key)) }
func (s *bucketStore) Has(key []byte) (bool, error)   { return s.src.Has(s.bucket.Key(key)) }
func (s *bucketStore) IsNotFound(err error) bool      { return s.src.IsNotFound(err) }
func (s *bucketStore) Put(key, value []byte) error    { return s.src.Put(s.bucket.Key(key), value) }
func (s *bucketStore) Delete(key []byte) error        { return s.src.Delete(s.bucket.Key(key)) }

func (s *bucketStore) NewBatch() Batch {
	return &bucketBatch{bucket: s.bucket, Batch: s.src.NewBatch()}
}

func (s *bucketStore) Iterate(r Range, fn func(key, value []byte) bool) error {
	from := s.bucket.Key(r.From)
	to := PrefixRange([]byte(s.bucket)).To
	if r.To != nil {
		to = s.bucket.Key(r.To)
	}
	n := len(s.bucket)
	return s.src.Iterate(Range{From: from, To: to}, func(key, value []byte) bool {
		return fn(key[n:], value)
	})
}

type bucketBatch struct {
	Batch
	bucket Bucket
}

func (b *bucketBatch) Put(key, value []byte) error { return b.Batch.Put(b.bucket.Key(key), value) }
func (b *bucketBatch) Delete(key []byte) error     { return b.Batch.Delete(b.bucket.Key(key)) }
