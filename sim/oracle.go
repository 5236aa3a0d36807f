// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sim

import (
	"math/big"
	"sort"
	"sync"
)

// VoteOracle holds gauge weights as governance voted them, per epoch.
// Epochs without votes fall back to the latest voted epoch before them.
type VoteOracle struct {
	lock    sync.RWMutex
	weights map[uint64]map[uint64]*big.Int
}

func NewVoteOracle() *VoteOracle {
	return &VoteOracle{weights: make(map[uint64]map[uint64]*big.Int)}
}

// SetWeights replaces the weights of the epoch.
func (o *VoteOracle) SetWeights(epoch uint64, weights map[uint64]*big.Int) {
	o.lock.Lock()
	defer o.lock.Unlock()

	cpy := make(map[uint64]*big.Int, len(weights))
	for pid, w := range weights {
		cpy[pid] = new(big.Int).Set(w)
	}
	o.weights[epoch] = cpy
}

func (o *VoteOracle) epochWeights(epoch uint64) map[uint64]*big.Int {
	var (
		found  map[uint64]*big.Int
		latest uint64
	)
	for e, w := range o.weights {
		if e <= epoch && (found == nil || e > latest) {
			found, latest = w, e
		}
	}
	return found
}

// Pids returns the pools with a weight in the epoch.
func (o *VoteOracle) Pids(epoch uint64) []uint64 {
	o.lock.RLock()
	defer o.lock.RUnlock()

	weights := o.epochWeights(epoch)
	pids := make([]uint64, 0, len(weights))
	for pid := range weights {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

// WeightOf returns the weight of the pool in the epoch.
func (o *VoteOracle) WeightOf(pid uint64, epoch uint64) (*big.Int, error) {
	o.lock.RLock()
	defer o.lock.RUnlock()

	if w, ok := o.epochWeights(epoch)[pid]; ok {
		return new(big.Int).Set(w), nil
	}
	return new(big.Int), nil
}

// TotalWeight returns the sum of all weights in the epoch.
func (o *VoteOracle) TotalWeight(epoch uint64) (*big.Int, error) {
	o.lock.RLock()
	defer o.lock.RUnlock()

	total := new(big.Int)
	for _, w := range o.epochWeights(epoch) {
		total.Add(total, w)
	}
	return total, nil
}
