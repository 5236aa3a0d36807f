// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/state"
)

// Context binds storage wrappers to a contract address in a state.
type Context struct {
	address mesh.Address
	state   *state.State
}

func NewContext(address mesh.Address, state *state.State) *Context {
	return &Context{
		address: address,
		state:   state,
	}
}

func (c *Context) Address() mesh.Address {
	return c.address
}

func (c *Context) State() *state.State {
	return c.state
}
