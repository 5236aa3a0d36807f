// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package settlement

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin/authority"
	"github.com/boostmesh/mesh/builtin/registry"
	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/metrics"
)

// RoleBridgeReceiver may settle fee debt with tokens that arrived through a token bridge.
const RoleBridgeReceiver authority.Role = "bridge-receiver"

var metricsFeeDebt = metrics.LazyLoadGaugeVec("settlement_fee_debt", []string{"chain"})

// FeeDistributor credits sidechain fees to the shared accumulators and returns the
// issuance minted for them to the caller.
type FeeDistributor interface {
	DistributeL2Fees(caller mesh.Address, amount *big.Int, now uint64) (*registry.L2Distribution, error)
}

// SendFees reports amount of fees collected on this chain to dst and sends the fee tokens
// after it in a separate message. The caller pays the fee for each message.
func (c *Coordinator) SendFees(caller mesh.Address, dst uint64, amount *big.Int, fee *big.Int) ([]*Intent, error) {
	s, err := c.Settings()
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, reverts.Invalid("fee amount must be positive")
	}
	remote, err := c.TrustedRemote(dst)
	if err != nil {
		return nil, err
	}
	if remote.IsZero() {
		return nil, reverts.State("no trusted remote for chain %d", dst)
	}

	notify, err := EncodePayload(PayloadFees, &Fees{Amount: amount})
	if err != nil {
		return nil, err
	}
	first, err := c.send(s, caller, caller, dst, s.RewardToken, new(big.Int), remote, notify, fee)
	if err != nil {
		return nil, err
	}
	settle, err := EncodePayload(PayloadFeeSettlement, &Fees{Amount: amount})
	if err != nil {
		return nil, err
	}
	second, err := c.send(s, caller, caller, dst, s.RewardToken, amount, remote, settle, fee)
	if err != nil {
		return nil, err
	}
	logger.Info("fees sent", "dst", dst, "amount", amount, "notify", first.Nonce, "settle", second.Nonce)
	return []*Intent{first, second}, nil
}

// NotifyFees records fees reported by the trusted remote of src.
func (c *Coordinator) NotifyFees(caller mesh.Address, src uint64, amount *big.Int) error {
	remote, err := c.TrustedRemote(src)
	if err != nil {
		return err
	}
	if remote.IsZero() || caller != remote {
		return reverts.Unauthorized("caller %v is not trusted for chain %d", caller, src)
	}
	if amount.Sign() <= 0 {
		return reverts.Invalid("fee amount must be positive")
	}
	ledger, err := c.Ledger(src)
	if err != nil {
		return err
	}
	ledger.FeeDebt.Add(ledger.FeeDebt, amount)
	logger.Debug("fees notified", "src", src, "amount", amount, "debt", ledger.FeeDebt)
	return c.updateLedger(src, ledger)
}

// SettleFeeDebt takes amount of fee tokens of src from the caller, a bridge receiver.
func (c *Coordinator) SettleFeeDebt(caller mesh.Address, src uint64, amount *big.Int) error {
	if err := c.RequireRole(caller, RoleBridgeReceiver); err != nil {
		return err
	}
	s, err := c.Settings()
	if err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return reverts.Invalid("settlement amount must be positive")
	}
	if err := c.token.Transfer(s.RewardToken, caller, c.addr, amount); err != nil {
		return err
	}
	return c.settleFeeDebt(src, amount)
}

// settleFeeDebt records fee tokens already held by the coordinator.
func (c *Coordinator) settleFeeDebt(src uint64, amount *big.Int) error {
	ledger, err := c.Ledger(src)
	if err != nil {
		return err
	}
	ledger.SettledFeeDebt.Add(ledger.SettledFeeDebt, amount)
	logger.Debug("fee debt settled", "src", src, "amount", amount, "settled", ledger.SettledFeeDebt)
	return c.updateLedger(src, ledger)
}

func (c *Coordinator) updateLedger(chain uint64, ledger *Ledger) error {
	metricsFeeDebt().SetWithLabel(ledger.Pending().Int64(), map[string]string{"chain": chainLabel(chain)})
	return c.ledgers.Upsert(chainKey(chain), ledger)
}

// DistributeL2Fees distributes the fees of src that both were reported and arrived.
// A shortfall stays as debt and is paid from later settlements. The issuance minted for
// the fees is sent back to the trusted remote of src, the caller paying the messaging fee.
// It returns the distributed amount.
func (c *Coordinator) DistributeL2Fees(caller mesh.Address, src uint64, now uint64, fee *big.Int) (*big.Int, error) {
	if c.registry == nil {
		return nil, reverts.State("fee distribution not available on this chain")
	}
	s, err := c.Settings()
	if err != nil {
		return nil, err
	}
	remote, err := c.TrustedRemote(src)
	if err != nil {
		return nil, err
	}
	if remote.IsZero() {
		return nil, reverts.State("no trusted remote for chain %d", src)
	}
	ledger, err := c.Ledger(src)
	if err != nil {
		return nil, err
	}
	amount := mesh.Min(ledger.Pending(), ledger.Available())
	if amount.Sign() <= 0 {
		return new(big.Int), nil
	}
	dist, err := c.registry.DistributeL2Fees(c.addr, amount, now)
	if err != nil {
		return nil, errors.WithMessage(err, "distribute fees")
	}
	minted := dist.Minted
	ledger.DistributedFeeDebt.Add(ledger.DistributedFeeDebt, amount)
	if err := c.updateLedger(src, ledger); err != nil {
		return nil, err
	}
	if minted.Sign() > 0 {
		payload, err := EncodePayload(PayloadIssuance, &Issuance{Amount: minted, Gross: dist.Gross})
		if err != nil {
			return nil, err
		}
		if _, err := c.send(s, c.addr, caller, src, s.Issuance, minted, remote, payload, fee); err != nil {
			return nil, err
		}
	}
	logger.Info("sidechain fees distributed", "src", src, "amount", amount, "minted", minted, "debt", ledger.Pending())
	return amount, nil
}
