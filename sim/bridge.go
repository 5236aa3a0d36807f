// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sim

import (
	"math/big"
	"sync"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin/settlement"
)

// maxPumpRounds bounds message chains triggered by deliveries within one Pump.
const maxPumpRounds = 64

// Endpoint is the transport-facing side of a chain.
type Endpoint interface {
	Deliver(msg *settlement.Message) (bool, error)
	Ack(dst, nonce uint64) error
	Fail(dst, nonce uint64) error
}

type envelope struct {
	id  string
	msg *settlement.Message
}

// BridgeStats counts what happened to the messages the bridge carried.
type BridgeStats struct {
	Sent      int
	Delivered int
	Replayed  int
	Dropped   int
	Failed    int
}

// Bridge is an in-memory messaging layer between chains. Messages are queued on Send and
// delivered by Pump. Delivery can be reordered, duplicated or dropped to exercise the
// settlement layer.
type Bridge struct {
	lock      sync.Mutex
	fee       *big.Int
	endpoints map[uint64]Endpoint
	queue     []*envelope
	reorder   bool
	drop      int
	duplicate int
	stats     BridgeStats
}

// NewBridge creates a bridge charging fee per message.
func NewBridge(fee *big.Int) *Bridge {
	if fee == nil {
		fee = new(big.Int)
	}
	return &Bridge{
		fee:       new(big.Int).Set(fee),
		endpoints: make(map[uint64]Endpoint),
	}
}

// Register attaches the endpoint of chain.
func (b *Bridge) Register(chain uint64, ep Endpoint) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.endpoints[chain] = ep
}

// Reorder makes Pump deliver each batch in reverse order.
func (b *Bridge) Reorder(on bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.reorder = on
}

// DropNext makes the next n messages fail delivery.
func (b *Bridge) DropNext(n int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.drop = n
}

// DuplicateNext makes the next n messages be delivered twice.
func (b *Bridge) DuplicateNext(n int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.duplicate = n
}

// Stats returns the delivery counters.
func (b *Bridge) Stats() BridgeStats {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.stats
}

// Pending returns the number of queued messages.
func (b *Bridge) Pending() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.queue)
}

// Quote implements settlement.Transport.
func (b *Bridge) Quote(dst uint64, _ []byte) (*big.Int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if _, ok := b.endpoints[dst]; !ok {
		return nil, errors.Errorf("no route to chain %d", dst)
	}
	return new(big.Int).Set(b.fee), nil
}

// Send implements settlement.Transport.
func (b *Bridge) Send(msg *settlement.Message) (*settlement.Receipt, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if _, ok := b.endpoints[msg.DstChainID]; !ok {
		return nil, errors.Errorf("no route to chain %d", msg.DstChainID)
	}
	env := &envelope{uuid.New(), msg}
	b.queue = append(b.queue, env)
	if b.duplicate > 0 {
		b.duplicate--
		b.queue = append(b.queue, env)
	}
	b.stats.Sent++
	return &settlement.Receipt{ID: env.id, Nonce: msg.Nonce}, nil
}

func (b *Bridge) take() ([]*envelope, map[uint64]Endpoint) {
	b.lock.Lock()
	defer b.lock.Unlock()
	batch := b.queue
	b.queue = nil
	if b.reorder {
		for i, j := 0, len(batch)-1; i < j; i, j = i+1, j-1 {
			batch[i], batch[j] = batch[j], batch[i]
		}
	}
	endpoints := make(map[uint64]Endpoint, len(b.endpoints))
	for k, v := range b.endpoints {
		endpoints[k] = v
	}
	return batch, endpoints
}

// shouldDrop consumes one pending drop.
func (b *Bridge) shouldDrop() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.drop > 0 {
		b.drop--
		b.stats.Dropped++
		return true
	}
	return false
}

func (b *Bridge) count(f func(*BridgeStats)) {
	b.lock.Lock()
	defer b.lock.Unlock()
	f(&b.stats)
}

// Pump delivers queued messages, including those sent by the deliveries themselves, until
// the queue is empty. It returns the number of messages applied.
func (b *Bridge) Pump() (int, error) {
	applied := 0
	for round := 0; round < maxPumpRounds; round++ {
		batch, endpoints := b.take()
		if len(batch) == 0 {
			return applied, nil
		}
		for _, env := range batch {
			msg := env.msg
			src, dst := endpoints[msg.SrcChainID], endpoints[msg.DstChainID]
			if src == nil || dst == nil {
				return applied, errors.Errorf("message %s between unknown chains %d and %d", env.id, msg.SrcChainID, msg.DstChainID)
			}
			if b.shouldDrop() {
				logger.Debug("message dropped", "id", env.id, "src", msg.SrcChainID, "dst", msg.DstChainID, "nonce", msg.Nonce)
				if err := src.Fail(msg.DstChainID, msg.Nonce); err != nil {
					logger.Warn("failure report rejected", "id", env.id, "err", err)
				}
				continue
			}
			ok, err := dst.Deliver(msg)
			if err != nil {
				b.count(func(s *BridgeStats) { s.Failed++ })
				logger.Debug("message rejected", "id", env.id, "dst", msg.DstChainID, "nonce", msg.Nonce, "err", err)
				if err := src.Fail(msg.DstChainID, msg.Nonce); err != nil {
					logger.Warn("failure report rejected", "id", env.id, "err", err)
				}
				continue
			}
			if !ok {
				b.count(func(s *BridgeStats) { s.Replayed++ })
				continue
			}
			applied++
			b.count(func(s *BridgeStats) { s.Delivered++ })
			if err := src.Ack(msg.DstChainID, msg.Nonce); err != nil {
				return applied, errors.WithMessagef(err, "ack %s", env.id)
			}
		}
	}
	return applied, errors.New("message loop did not settle")
}
