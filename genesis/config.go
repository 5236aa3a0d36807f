// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"math/big"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/boostmesh/mesh/builtin/fees"
	"github.com/boostmesh/mesh/builtin/registry"
	"github.com/boostmesh/mesh/mesh"
)

// Label names an address. Hex strings are taken as is, anything else is hashed into a
// stable address, so scenario files can say "crv" or "alice".
type Label string

// Address resolves the label.
func (l Label) Address() mesh.Address {
	if addr, err := mesh.ParseAddress(string(l)); err == nil {
		return *addr
	}
	return mesh.DeriveAddress("label", []byte(l))
}

// Amount is a token amount written as an integer, optionally suffixed with "ether".
type Amount struct {
	*big.Int
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Amount) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseAmount(value.Value)
	if err != nil {
		return err
	}
	a.Int = v
	return nil
}

// ParseAmount parses "1000" or "1.5 ether" style amounts.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	unit := big.NewRat(1, 1)
	if trimmed, ok := strings.CutSuffix(s, "ether"); ok {
		s = strings.TrimSpace(trimmed)
		unit.SetInt(mesh.Precision)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, errors.Errorf("invalid amount %q", s)
	}
	r.Mul(r, unit)
	if !r.IsInt() || r.Sign() < 0 {
		return nil, errors.Errorf("amount %q is not a whole non-negative number", s)
	}
	return new(big.Int).Set(r.Num()), nil
}

// Value returns the amount, zero when unset.
func (a *Amount) Value() *big.Int {
	if a == nil || a.Int == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.Int)
}

// Tokens names the tokens shared by every chain.
type Tokens struct {
	Reward   Label `yaml:"reward"`
	Issuance Label `yaml:"issuance"`
	Fee      Label `yaml:"fee"`
}

// Alloc credits an account at genesis.
type Alloc struct {
	Account Label   `yaml:"account"`
	Token   Label   `yaml:"token"`
	Amount  *Amount `yaml:"amount"`
}

// PoolConfig registers a pool at genesis. Its lp token and gauge are derived from the name.
type PoolConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	Dst  uint64 `yaml:"dst"`
}

// LPToken returns the pool's lp token.
func (p *PoolConfig) LPToken() mesh.Address {
	return mesh.DeriveAddress("lp", []byte(p.Name))
}

// Gauge returns the pool's gauge.
func (p *PoolConfig) Gauge() mesh.Address {
	return mesh.DeriveAddress("gauge", []byte(p.Name))
}

// PoolKind returns the pool kind, standard when unset.
func (p *PoolConfig) PoolKind() (registry.Kind, error) {
	if p.Kind == "" {
		return registry.KindStandard, nil
	}
	return registry.ParseKind(p.Kind)
}

// ChainConfig describes one chain of the network.
type ChainConfig struct {
	ID uint64 `yaml:"id"`
	// Primary chains mint issuance and distribute sidechain fees.
	Primary   bool          `yaml:"primary"`
	Treasury  Label         `yaml:"treasury"`
	Fees      *fees.Config  `yaml:"fees"`
	L2FeeCap  *Amount       `yaml:"l2FeeCap"`
	MaxSupply *Amount       `yaml:"maxSupply"`
	Cliffs    int64         `yaml:"cliffs"`
	Pools     []*PoolConfig `yaml:"pools"`
	Alloc     []*Alloc      `yaml:"alloc"`
}

// Config is a network genesis.
type Config struct {
	Owner       Label          `yaml:"owner"`
	LaunchTime  uint64         `yaml:"launchTime"`
	EpochLength uint64         `yaml:"epochLength"`
	BridgeFee   *Amount        `yaml:"bridgeFee"`
	Tokens      Tokens         `yaml:"tokens"`
	Chains      []*ChainConfig `yaml:"chains"`
}

// Load reads a YAML genesis file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read genesis")
	}
	return Parse(data)
}

// Parse decodes and validates a YAML genesis.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "decode genesis")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the genesis is consistent.
func (c *Config) Validate() error {
	if c.Owner == "" {
		return errors.New("owner required")
	}
	if c.Tokens.Reward == "" || c.Tokens.Issuance == "" {
		return errors.New("reward and issuance tokens required")
	}
	if len(c.Chains) == 0 {
		return errors.New("no chains")
	}
	ids := make(map[uint64]bool)
	primaries := 0
	for _, ch := range c.Chains {
		if ch.ID == 0 || ids[ch.ID] {
			return errors.Errorf("invalid or duplicate chain id %d", ch.ID)
		}
		ids[ch.ID] = true
		if ch.Primary {
			primaries++
			if ch.Cliffs <= 0 || ch.MaxSupply.Value().Sign() <= 0 {
				return errors.Errorf("chain %d: primary chain needs cliffs and max supply", ch.ID)
			}
		}
		if ch.Fees != nil {
			if err := ch.Fees.Validate(); err != nil {
				return errors.WithMessagef(err, "chain %d", ch.ID)
			}
		}
	}
	if primaries != 1 {
		return errors.Errorf("exactly one primary chain required, got %d", primaries)
	}
	for _, ch := range c.Chains {
		for _, p := range ch.Pools {
			kind, err := p.PoolKind()
			if err != nil {
				return errors.WithMessagef(err, "chain %d pool %q", ch.ID, p.Name)
			}
			if kind == registry.KindSiphon && !ids[p.Dst] {
				return errors.Errorf("chain %d pool %q: unknown destination chain %d", ch.ID, p.Name, p.Dst)
			}
		}
	}
	return c.validateSiphons()
}

// validateSiphons checks every siphon pool has its counterpart under the same pool id on
// the destination chain.
func (c *Config) validateSiphons() error {
	byID := make(map[uint64]*ChainConfig, len(c.Chains))
	for _, ch := range c.Chains {
		byID[ch.ID] = ch
	}
	for _, ch := range c.Chains {
		for pid, p := range ch.Pools {
			if kind, _ := p.PoolKind(); kind != registry.KindSiphon {
				continue
			}
			dst := byID[p.Dst]
			if pid >= len(dst.Pools) || dst.Pools[pid].Name != p.Name {
				return errors.Errorf("chain %d pool %q: no pool %d of that name on chain %d", ch.ID, p.Name, pid, p.Dst)
			}
		}
	}
	return nil
}

// Primary returns the primary chain.
func (c *Config) Primary() *ChainConfig {
	for _, ch := range c.Chains {
		if ch.Primary {
			return ch
		}
	}
	return nil
}
