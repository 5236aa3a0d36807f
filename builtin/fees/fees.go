// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package fees holds the versioned fee configuration and the pure fee split.
package fees

import (
	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin/authority"
	"github.com/boostmesh/mesh/builtin/solidity"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/state"
)

var (
	logger = log.WithContext("pkg", "fees")

	slotConfig = mesh.BytesToBytes32([]byte("fee-config"))
)

// Fees implements the fee configuration contract.
type Fees struct {
	*authority.Authority
	config *solidity.Raw[*Config]
}

// New create a new instance.
func New(addr mesh.Address, state *state.State) *Fees {
	sctx := solidity.NewContext(addr, state)
	return &Fees{
		Authority: authority.New(sctx),
		config:    solidity.NewRaw[*Config](sctx, slotConfig),
	}
}

// Get returns the config in force, DefaultConfig when never set.
func (f *Fees) Get() (*Config, error) {
	cfg, err := f.config.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get fee config")
	}
	if cfg == nil {
		return DefaultConfig(), nil
	}
	return cfg, nil
}

// Set replaces the fractions. The version is bumped, the Version field of cfg is ignored.
// Only the owner may call.
func (f *Fees) Set(caller mesh.Address, cfg Config) (*Config, error) {
	if err := f.RequireOwner(caller); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	current, err := f.Get()
	if err != nil {
		return nil, err
	}
	cfg.Version = current.Version + 1
	if err := f.config.Upsert(&cfg); err != nil {
		return nil, err
	}
	logger.Info("fee config updated",
		"version", cfg.Version,
		"lock", cfg.LockIncentive,
		"staker", cfg.StakerIncentive,
		"earmark", cfg.EarmarkIncentive,
		"platform", cfg.PlatformFee,
	)
	return &cfg, nil
}
