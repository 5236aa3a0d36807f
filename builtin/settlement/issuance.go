// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package settlement

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/metrics"
)

var metricsIssuancePaid = metrics.LazyLoadCounter("settlement_issuance_paid_count")

// IssuancePool returns the issuance received from the primary chain.
func (c *Coordinator) IssuancePool() (*IssuancePool, error) {
	p, err := c.issuance.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get issuance pool")
	}
	if p == nil {
		return newIssuancePool(), nil
	}
	return p, nil
}

// UncoveredReward returns the reward of the account still waiting for issuance.
func (c *Coordinator) UncoveredReward(account mesh.Address) (*big.Int, error) {
	v, err := c.uncovered.Get(account)
	return mesh.Big(v), err
}

func (c *Coordinator) receiveIssuance(src uint64, amount, gross *big.Int) error {
	if gross == nil || gross.Sign() <= 0 {
		return reverts.Invalid("issuance without gross reward")
	}
	p, err := c.IssuancePool()
	if err != nil {
		return err
	}
	p.Received.Add(p.Received, amount)
	p.Gross.Add(p.Gross, gross)
	logger.Debug("issuance received", "src", src, "amount", amount, "gross", gross, "balance", p.Balance())
	return c.issuance.Upsert(p)
}

// Convert pays the account issuance for reward claimed on this chain, at the rate issuance
// arrived from the primary chain. The part of the reward the pool cannot cover yet is kept
// for the account and paid by a later Convert or ClaimIssuance.
func (c *Coordinator) Convert(to mesh.Address, reward *big.Int) (*big.Int, error) {
	s, err := c.Settings()
	if err != nil {
		return nil, err
	}
	prev, err := c.UncoveredReward(to)
	if err != nil {
		return nil, err
	}
	total := prev.Add(prev, reward)
	if total.Sign() == 0 {
		return new(big.Int), nil
	}
	p, err := c.IssuancePool()
	if err != nil {
		return nil, err
	}

	paid, left := new(big.Int), total
	if p.Gross.Sign() > 0 {
		due, err := mesh.MulDiv(total, p.Received, p.Gross)
		if err != nil {
			return nil, reverts.Invalid("issuance overflow: %v", err)
		}
		paid = mesh.Min(due, p.Balance())
		if paid.Cmp(due) == 0 {
			left = new(big.Int)
		} else if left, err = mesh.MulDiv(total, new(big.Int).Sub(due, paid), due); err != nil {
			return nil, reverts.Invalid("issuance overflow: %v", err)
		}
	}
	if paid.Sign() > 0 {
		if err := c.token.Transfer(s.Issuance, c.addr, to, paid); err != nil {
			return nil, errors.WithMessage(err, "issuance")
		}
		p.Paid.Add(p.Paid, paid)
		if err := c.issuance.Upsert(p); err != nil {
			return nil, err
		}
		metricsIssuancePaid().Add(1)
	}
	if left.Sign() == 0 {
		c.uncovered.Delete(to)
	} else if err := c.uncovered.Upsert(to, left); err != nil {
		return nil, err
	}
	logger.Debug("issuance converted", "to", to, "reward", reward, "paid", paid, "uncovered", left)
	return paid, nil
}

// ClaimIssuance pays the caller the issuance now available for its uncovered reward.
func (c *Coordinator) ClaimIssuance(caller mesh.Address) (*big.Int, error) {
	return c.Convert(caller, new(big.Int))
}
