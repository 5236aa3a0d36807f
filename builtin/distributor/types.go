// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import (
	"encoding/binary"
	"math/big"

	"github.com/boostmesh/mesh/builtin/registry"
	"github.com/boostmesh/mesh/mesh"
)

// Status is the processing state of an epoch-pool reward record.
type Status uint8

const (
	// StatusPending records have funds but the epoch was not processed yet.
	StatusPending Status = iota + 1
	// StatusQueued records are processed and wait for settlement.
	StatusQueued
	// StatusProcessed records were paid out.
	StatusProcessed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusQueued:
		return "queued"
	case StatusProcessed:
		return "processed"
	default:
		return "none"
	}
}

// Record is the reward of one pool in one epoch, in one token.
type Record struct {
	Amount *big.Int
	Weight *big.Int // gauge weight the weighted share was computed from
	Status Status
}

// Budget is the weighted reward of an epoch in one token.
type Budget struct {
	Amount      *big.Int // to split by gauge weight
	Carried     *big.Int // part of Amount carried over from earlier epochs
	Pids        []uint64 // pools with a record
	TotalWeight *big.Int
	Processed   bool
}

func newBudget() *Budget {
	return &Budget{Amount: new(big.Int), Carried: new(big.Int), TotalWeight: new(big.Int)}
}

func (b *Budget) addPid(pid uint64) {
	for _, p := range b.Pids {
		if p == pid {
			return
		}
	}
	b.Pids = append(b.Pids, pid)
}

// Vote is the gauge weight snapshot of an epoch.
type Vote struct {
	Pids    []uint64
	Weights []*big.Int
}

// Total returns the sum of all weights.
func (v *Vote) Total() *big.Int {
	total := new(big.Int)
	for _, w := range v.Weights {
		total.Add(total, w)
	}
	return total
}

// Schedule maps timestamps to epochs. Epoch Anchor starts at Start and every epoch lasts
// Length seconds. Times before Start belong to the epoch before Anchor.
type Schedule struct {
	Length uint64
	Anchor uint64
	Start  uint64
}

func defaultSchedule() *Schedule {
	return &Schedule{Length: mesh.EpochLength}
}

// EpochOf returns the epoch containing now.
func (s *Schedule) EpochOf(now uint64) uint64 {
	if now < s.Start {
		if s.Anchor == 0 {
			return 0
		}
		return s.Anchor - 1
	}
	return s.Anchor + (now-s.Start)/s.Length
}

// EpochStart returns the first timestamp of the epoch.
func (s *Schedule) EpochStart(epoch uint64) uint64 {
	if epoch >= s.Anchor {
		return s.Start + (epoch-s.Anchor)*s.Length
	}
	back := (s.Anchor - epoch) * s.Length
	if back > s.Start {
		return 0
	}
	return s.Start - back
}

// Payout is an amount assigned to a pool.
type Payout struct {
	Pid    uint64
	Amount *big.Int
}

// OverdueEntry is a record left unsettled after its epoch ended.
type OverdueEntry struct {
	Epoch  uint64
	Pid    uint64
	Amount *big.Int
	Status Status
}

// CountsTowardWeight reports whether pools of kind receive a weighted share.
// The weight of excluded pools is also left out of the total.
func CountsTowardWeight(kind registry.Kind) bool {
	return kind != registry.KindNoDeposit
}

type recordKey struct {
	epoch uint64
	pid   uint64
	token mesh.Address
}

func (k recordKey) Bytes() []byte {
	b := binary.BigEndian.AppendUint64(nil, k.epoch)
	b = binary.BigEndian.AppendUint64(b, k.pid)
	return append(b, k.token.Bytes()...)
}

type budgetKey struct {
	epoch uint64
	token mesh.Address
}

func (k budgetKey) Bytes() []byte {
	return append(binary.BigEndian.AppendUint64(nil, k.epoch), k.token.Bytes()...)
}

type uint64Key uint64

func (k uint64Key) Bytes() []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(k))
}
