// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"math/big"

	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/mesh"
)

// ConfigVariable is a protocol constant that a deployment may override through a storage slot.
type ConfigVariable struct {
	slot  mesh.Bytes32
	name  string
	value uint64
}

func NewConfigVariable(name string, defaultValue uint64) *ConfigVariable {
	return &ConfigVariable{
		slot:  mesh.BytesToBytes32([]byte(name)),
		name:  name,
		value: defaultValue,
	}
}

func (c *ConfigVariable) Name() string {
	return c.name
}

func (c *ConfigVariable) Slot() mesh.Bytes32 {
	return c.slot
}

// Get returns the overridden value stored in the contract, or the default.
func (c *ConfigVariable) Get(ctx *Context) uint64 {
	storage, err := ctx.state.GetStorage(ctx.address, c.slot)
	if err != nil {
		log.Warn("failed to read config value", "slot", c.name, "error", err)
		return c.value
	}
	num := new(big.Int).SetBytes(storage.Bytes())
	if num.Sign() == 0 || !num.IsUint64() {
		return c.value
	}
	return num.Uint64()
}

// Override stores a value for the variable in the contract.
func (c *ConfigVariable) Override(ctx *Context, value uint64) {
	ctx.state.SetStorage(ctx.address, c.slot, mesh.Uint64ToBytes32(value))
	log.Debug("config value overridden", "slot", c.name, "value", value)
}
