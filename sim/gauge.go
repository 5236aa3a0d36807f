// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sim

import (
	"math/big"

	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/builtin/solidity"
	"github.com/boostmesh/mesh/builtin/token"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/state"
)

var (
	logger = log.WithContext("pkg", "sim")

	slotGaugeDeposits = mesh.BytesToBytes32([]byte("gauge-deposits"))
	slotGaugePending  = mesh.BytesToBytes32([]byte("gauge-pending"))
	slotGaugeBroken   = mesh.BytesToBytes32([]byte("gauge-broken"))
)

type gaugeHolder struct {
	gauge  mesh.Address
	holder mesh.Address
}

func (k gaugeHolder) Bytes() []byte {
	return append(k.gauge.Bytes(), k.holder.Bytes()...)
}

// Gauges simulates the external gauge system. Each gauge holds deposited LP tokens
// under its own address and pays accrued yield in a single reward token.
// All of its state lives in contract storage, so it reverts with the transaction.
type Gauges struct {
	token       *token.Token
	rewardToken mesh.Address
	deposits    *solidity.Mapping[gaugeHolder, *big.Int]
	pending     *solidity.Mapping[mesh.Address, *big.Int]
	broken      *solidity.Mapping[mesh.Address, bool]
}

// NewGauges creates the gauge system stored under addr.
func NewGauges(addr mesh.Address, state *state.State, token *token.Token, rewardToken mesh.Address) *Gauges {
	sctx := solidity.NewContext(addr, state)
	return &Gauges{
		token:       token,
		rewardToken: rewardToken,
		deposits:    solidity.NewMapping[gaugeHolder, *big.Int](sctx, slotGaugeDeposits),
		pending:     solidity.NewMapping[mesh.Address, *big.Int](sctx, slotGaugePending),
		broken:      solidity.NewMapping[mesh.Address, bool](sctx, slotGaugeBroken),
	}
}

// RewardToken returns the token yield is paid in.
func (g *Gauges) RewardToken() mesh.Address {
	return g.rewardToken
}

// Accrue adds amount to the yield the gauge will pay on the next pull.
func (g *Gauges) Accrue(gauge mesh.Address, amount *big.Int) error {
	pending, err := g.pending.Get(gauge)
	if err != nil {
		return err
	}
	return g.pending.Upsert(gauge, new(big.Int).Add(mesh.Big(pending), amount))
}

// Pending returns the yield not pulled yet.
func (g *Gauges) Pending(gauge mesh.Address) (*big.Int, error) {
	pending, err := g.pending.Get(gauge)
	return mesh.Big(pending), err
}

// SetBroken makes every call on the gauge fail with an external error.
func (g *Gauges) SetBroken(gauge mesh.Address, broken bool) error {
	if !broken {
		g.broken.Delete(gauge)
		return nil
	}
	return g.broken.Upsert(gauge, true)
}

func (g *Gauges) check(gauge mesh.Address) error {
	broken, err := g.broken.Get(gauge)
	if err != nil {
		return err
	}
	if broken {
		return reverts.External("gauge %v unavailable", gauge)
	}
	return nil
}

// BalanceOf returns the LP amount holder has deposited into gauge.
func (g *Gauges) BalanceOf(gauge, holder mesh.Address) (*big.Int, error) {
	bal, err := g.deposits.Get(gaugeHolder{gauge, holder})
	return mesh.Big(bal), err
}

// Deposit moves amount of lpToken from holder into the gauge.
func (g *Gauges) Deposit(gauge, lpToken, holder mesh.Address, amount *big.Int) error {
	if err := g.check(gauge); err != nil {
		return err
	}
	if err := g.token.Transfer(lpToken, holder, gauge, amount); err != nil {
		return err
	}
	bal, err := g.BalanceOf(gauge, holder)
	if err != nil {
		return err
	}
	return g.deposits.Upsert(gaugeHolder{gauge, holder}, bal.Add(bal, amount))
}

// Withdraw moves amount of lpToken from the gauge back to holder.
func (g *Gauges) Withdraw(gauge, lpToken, holder mesh.Address, amount *big.Int) error {
	if err := g.check(gauge); err != nil {
		return err
	}
	bal, err := g.BalanceOf(gauge, holder)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return reverts.Invalid("gauge balance %v below %v", bal, amount)
	}
	if err := g.deposits.Upsert(gaugeHolder{gauge, holder}, bal.Sub(bal, amount)); err != nil {
		return err
	}
	return g.token.Transfer(lpToken, gauge, holder, amount)
}

// PullYield mints the pending yield of gauge to the recipient.
func (g *Gauges) PullYield(gauge, to mesh.Address) error {
	if err := g.check(gauge); err != nil {
		return err
	}
	pending, err := g.Pending(gauge)
	if err != nil {
		return err
	}
	if pending.Sign() == 0 {
		return nil
	}
	g.pending.Delete(gauge)
	logger.Debug("yield pulled", "gauge", gauge, "to", to, "amount", pending)
	return g.token.Mint(g.rewardToken, to, pending)
}
