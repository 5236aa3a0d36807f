// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fees

import (
	"math/big"

	"github.com/boostmesh/mesh/mesh"
)

var denominator = big.NewInt(mesh.FeeDenominator)

// Breakdown is the result of splitting a harvested amount.
// Lock+Staker+Caller+Platform+Net always equals Total.
type Breakdown struct {
	Total    *big.Int
	Lock     *big.Int
	Staker   *big.Int
	Caller   *big.Int
	Platform *big.Int
	Net      *big.Int // to the pool's depositors, absorbs rounding dust
}

// Split divides amount by cfg. Each fee bucket rounds down and the remainder goes to Net.
func Split(amount *big.Int, cfg *Config) *Breakdown {
	share := func(bps uint64) *big.Int {
		v := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
		return v.Quo(v, denominator)
	}
	b := &Breakdown{
		Total:    new(big.Int).Set(amount),
		Lock:     share(cfg.LockIncentive),
		Staker:   share(cfg.StakerIncentive),
		Caller:   share(cfg.EarmarkIncentive),
		Platform: share(cfg.PlatformFee),
	}
	b.Net = new(big.Int).Set(amount)
	b.Net.Sub(b.Net, b.Lock)
	b.Net.Sub(b.Net, b.Staker)
	b.Net.Sub(b.Net, b.Caller)
	b.Net.Sub(b.Net, b.Platform)
	return b
}

// Sum returns the sum of all buckets.
func (b *Breakdown) Sum() *big.Int {
	s := new(big.Int).Add(b.Lock, b.Staker)
	s.Add(s, b.Caller)
	s.Add(s, b.Platform)
	return s.Add(s, b.Net)
}

// SplitRatio divides amount between two parts in the ratio a:b, the remainder going to the first.
func SplitRatio(amount *big.Int, a, b uint64) (*big.Int, *big.Int) {
	total := a + b
	if total == 0 {
		return new(big.Int).Set(amount), new(big.Int)
	}
	second := new(big.Int).Mul(amount, new(big.Int).SetUint64(b))
	second.Quo(second, new(big.Int).SetUint64(total))
	return new(big.Int).Sub(amount, second), second
}
