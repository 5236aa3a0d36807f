// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"github.com/boostmesh/mesh/mesh"
)

type contract struct {
	name    string
	Address mesh.Address
}

// newContract binds name to its fixed address, the same on every chain.
func newContract(name string) *contract {
	return &contract{
		name,
		mesh.BytesToAddress([]byte(name)),
	}
}

// Name returns the contract name.
func (c *contract) Name() string {
	return c.name
}
