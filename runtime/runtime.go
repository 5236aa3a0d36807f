// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package runtime executes calls against the builtin contracts of one chain. Every call is
// atomic: it either commits all of its writes and sends its messages, or leaves no trace.
package runtime

import (
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin"
	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/builtin/settlement"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/metrics"
	"github.com/boostmesh/mesh/state"
)

var (
	logger = log.WithContext("pkg", "runtime")

	metricsExec    = metrics.LazyLoadHistogram("runtime_exec_ms", metrics.BucketExecMillis)
	metricsReverts = metrics.LazyLoadCounterVec("runtime_revert_count", []string{"op", "kind"})
	metricsSent    = metrics.LazyLoadCounterVec("runtime_message_count", []string{"result"})
)

// Func is a call against the contracts at time now, in unix seconds.
type Func func(c *builtin.Contracts, now uint64) error

// Chain hosts the builtin contracts of one chain.
type Chain struct {
	id        uint64
	mu        sync.Mutex
	state     *state.State
	contracts *builtin.Contracts
	transport settlement.Transport
	clock     clockwork.Clock
}

// New creates a chain over contracts bound to state. Messages the contracts send are
// handed to transport after the call that sent them committed.
func New(id uint64, state *state.State, contracts *builtin.Contracts, transport settlement.Transport, clock clockwork.Clock) *Chain {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Chain{
		id:        id,
		state:     state,
		contracts: contracts,
		transport: transport,
		clock:     clock,
	}
}

// ID returns the chain id.
func (c *Chain) ID() uint64 {
	return c.id
}

// Now returns the chain time in unix seconds.
func (c *Chain) Now() uint64 {
	return uint64(c.clock.Now().Unix())
}

// Exec runs fn atomically. On error all state changes and pending messages of the call
// are dropped.
func (c *Chain) Exec(op string, fn Func) error {
	msgs, err := c.exec(op, fn)
	if err != nil {
		return err
	}
	c.send(msgs)
	return nil
}

func (c *Chain) exec(op string, fn Func) ([]*settlement.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.clock.Now()
	rev := c.state.NewCheckpoint()
	if err := fn(c.contracts, c.Now()); err != nil {
		c.state.RevertTo(rev)
		c.contracts.Outbox.Discard()
		kind := reverts.KindOf(err)
		metricsReverts().AddWithLabel(1, map[string]string{"op": op, "kind": kind.String()})
		logger.Debug("call reverted", "chain", c.id, "op", op, "kind", kind, "err", err)
		return nil, err
	}
	if err := c.state.Commit(); err != nil {
		c.contracts.Outbox.Discard()
		return nil, errors.Wrap(err, "commit")
	}
	metricsExec().Observe(c.clock.Since(start).Milliseconds())
	return c.contracts.Outbox.Drain(), nil
}

// send hands committed messages to the transport. A failed hand-off leaves the intent in
// flight, to be retried.
func (c *Chain) send(msgs []*settlement.Message) {
	for _, msg := range msgs {
		receipt, err := c.transport.Send(msg)
		if err != nil {
			metricsSent().AddWithLabel(1, map[string]string{"result": "failed"})
			logger.Warn("message not sent", "chain", c.id, "dst", msg.DstChainID, "nonce", msg.Nonce, "err", err)
			continue
		}
		metricsSent().AddWithLabel(1, map[string]string{"result": "sent"})
		logger.Debug("message sent", "chain", c.id, "dst", msg.DstChainID, "nonce", msg.Nonce, "receipt", receipt.ID)
	}
}

// View runs fn without keeping any of its writes.
func (c *Chain) View(fn Func) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rev := c.state.NewCheckpoint()
	defer c.state.RevertTo(rev)
	return fn(c.contracts, c.Now())
}

func (c *Chain) transportAddress(contracts *builtin.Contracts) (mesh.Address, error) {
	s, err := contracts.Settlement.Settings()
	if err != nil {
		return mesh.Address{}, err
	}
	return s.Transport, nil
}

// Deliver applies an inbound message as the transport. It reports false for a replay.
func (c *Chain) Deliver(msg *settlement.Message) (bool, error) {
	var applied bool
	err := c.Exec("deliver", func(contracts *builtin.Contracts, now uint64) error {
		transport, err := c.transportAddress(contracts)
		if err != nil {
			return err
		}
		applied, err = contracts.Inbox.Receive(transport, msg, now)
		return err
	})
	return applied, err
}

// Ack confirms delivery of an outbound message as the transport.
func (c *Chain) Ack(dst, nonce uint64) error {
	return c.Exec("ack", func(contracts *builtin.Contracts, _ uint64) error {
		transport, err := c.transportAddress(contracts)
		if err != nil {
			return err
		}
		return contracts.Settlement.OnDeliveryAck(transport, dst, nonce)
	})
}

// Fail reports a failed delivery of an outbound message as the transport.
func (c *Chain) Fail(dst, nonce uint64) error {
	return c.Exec("fail", func(contracts *builtin.Contracts, _ uint64) error {
		transport, err := c.transportAddress(contracts)
		if err != nil {
			return err
		}
		return contracts.Settlement.OnDeliveryFailure(transport, dst, nonce)
	})
}
