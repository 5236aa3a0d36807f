// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/boostmesh/mesh/mesh"
)

// Kind tells how a pool takes part in deposits and gauge-weight distribution.
type Kind uint8

const (
	// KindStandard is a pool of an LP token deposited into a gauge on this chain.
	KindStandard Kind = iota
	// KindNoDeposit is a gauge that can be voted for but accepts no deposits.
	// It never receives a share of weighted rewards.
	KindNoDeposit
	// KindSiphon is a pool whose depositors live on another chain.
	// Its rewards are settled on DstChainID.
	KindSiphon
)

func (k Kind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindNoDeposit:
		return "no-deposit"
	case KindSiphon:
		return "siphon"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k <= KindSiphon
}

// ParseKind parses the String form of a kind.
func ParseKind(s string) (Kind, error) {
	for k := KindStandard; k <= KindSiphon; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown pool kind %q", s)
}

// Pool is a registered LP pool.
type Pool struct {
	LPToken    mesh.Address
	Gauge      mesh.Address
	Rewards    mesh.Address // primary accumulator
	Stashes    []mesh.Address
	Kind       Kind
	DstChainID uint64
	Shutdown   bool
	Unstaked   *big.Int // deposited but not staked in Rewards
	Held       *big.Int // LP withdrawn from the gauge and kept by the registry after shutdown
	// ForceShutdownAt is the earliest time a queued force shutdown may run, zero when none is queued.
	ForceShutdownAt uint64
}

// Settings are fixed at initialization.
type Settings struct {
	RewardToken   mesh.Address // token the gauges pay yield in
	Issuance      mesh.Address // token minted on claims and staked into the shared accumulators
	Treasury      mesh.Address
	LockRewards   mesh.Address // shared lock accumulator
	StakerRewards mesh.Address // shared staker accumulator
	L2FeeCap      *big.Int     // cap on sidechain fees distributed per epoch, zero for none
}

// L2Distribution is the result of distributing sidechain fees.
type L2Distribution struct {
	Gross  *big.Int // reward the fees were taken from
	Minted *big.Int // issuance minted for Gross to the caller
}

// Claim is the result of claiming a pool's rewards.
type Claim struct {
	Reward *big.Int       // reward token paid by the primary accumulator
	Minted *big.Int       // issuance minted for the multiplier-scaled reward
	Extras []*big.Int     // paid by each stash, in Pool.Stashes order
	Tokens []mesh.Address // reward token of each stash
}

type poolID uint64

func (id poolID) Bytes() []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(id))
}

type depositKey struct {
	pid     uint64
	account mesh.Address
}

func (k depositKey) Bytes() []byte {
	return append(binary.BigEndian.AppendUint64(nil, k.pid), k.account.Bytes()...)
}

// RewardsID returns the primary accumulator id of a pool.
func RewardsID(pid uint64) mesh.Address {
	return mesh.DeriveAddress("rewards", poolID(pid).Bytes())
}

// StashID returns the accumulator id of the pool's stash for token.
func StashID(pid uint64, token mesh.Address) mesh.Address {
	return mesh.DeriveAddress("stash", poolID(pid).Bytes(), token.Bytes())
}
