// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fees

import (
	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/mesh"
)

// Config holds the fee fractions, in basis points of the harvested amount.
type Config struct {
	Version          uint64 `json:"version" yaml:"-"`
	LockIncentive    uint64 `json:"lockIncentive" yaml:"lockIncentive"`       // to the shared lock accumulator
	StakerIncentive  uint64 `json:"stakerIncentive" yaml:"stakerIncentive"`   // to the shared staker accumulator
	EarmarkIncentive uint64 `json:"earmarkIncentive" yaml:"earmarkIncentive"` // to whoever triggered the harvest
	PlatformFee      uint64 `json:"platformFee" yaml:"platformFee"`           // to the treasury
}

// DefaultConfig returns the fees a fresh deployment starts with.
func DefaultConfig() *Config {
	return &Config{
		Version:          1,
		LockIncentive:    1000,
		StakerIncentive:  450,
		EarmarkIncentive: 50,
		PlatformFee:      0,
	}
}

// Total returns the sum of all fractions.
func (c *Config) Total() uint64 {
	return c.LockIncentive + c.StakerIncentive + c.EarmarkIncentive + c.PlatformFee
}

// Validate checks every fraction and their sum against mesh.MaxFees.
func (c *Config) Validate() error {
	for name, v := range map[string]uint64{
		"lock incentive":    c.LockIncentive,
		"staker incentive":  c.StakerIncentive,
		"earmark incentive": c.EarmarkIncentive,
		"platform fee":      c.PlatformFee,
	} {
		if v > mesh.MaxFees {
			return reverts.Invalid("%s %d exceeds %d", name, v, mesh.MaxFees)
		}
	}
	if total := c.Total(); total > mesh.MaxFees {
		return reverts.Invalid("total fees %d exceed %d", total, mesh.MaxFees)
	}
	return nil
}
