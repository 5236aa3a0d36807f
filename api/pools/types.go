// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pools

import (
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/boostmesh/mesh/mesh"
)

// Pool is a registered pool with its reward accumulator state.
type Pool struct {
	Pid            uint64                `json:"pid"`
	LPToken        mesh.Address          `json:"lpToken"`
	Gauge          mesh.Address          `json:"gauge"`
	Rewards        mesh.Address          `json:"rewards"`
	Stashes        []mesh.Address        `json:"stashes"`
	Kind           string                `json:"kind"`
	DstChainID     uint64                `json:"dstChainId,omitempty"`
	Shutdown       bool                  `json:"shutdown"`
	Deposits       *math.HexOrDecimal256 `json:"deposits"`
	Staked         *math.HexOrDecimal256 `json:"staked"`
	RewardPerToken *math.HexOrDecimal256 `json:"rewardPerToken"`
	Queued         *math.HexOrDecimal256 `json:"queued"`
	TotalNotified  *math.HexOrDecimal256 `json:"totalNotified"`
	TotalPaid      *math.HexOrDecimal256 `json:"totalPaid"`
}

// Extra is what an account has earned from one stash.
type Extra struct {
	Stash  mesh.Address          `json:"stash"`
	Token  mesh.Address          `json:"token"`
	Earned *math.HexOrDecimal256 `json:"earned"`
}

// Account is a depositor's position in a pool.
type Account struct {
	Unstaked     *math.HexOrDecimal256 `json:"unstaked"`
	Staked       *math.HexOrDecimal256 `json:"staked"`
	Earned       *math.HexOrDecimal256 `json:"earned"`
	ScaledEarned *math.HexOrDecimal256 `json:"scaledEarned"`
	Extras       []*Extra              `json:"extras"`
}
