// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"github.com/boostmesh/mesh/mesh"
)

// Address is a wrapper for storage and retrieval of an address.
type Address struct {
	context *Context
	pos     mesh.Bytes32
}

func NewAddress(context *Context, pos mesh.Bytes32) *Address {
	return &Address{context: context, pos: pos}
}

func (a *Address) Get() (mesh.Address, error) {
	storage, err := a.context.state.GetStorage(a.context.address, a.pos)
	if err != nil {
		return mesh.Address{}, err
	}
	return mesh.BytesToAddress(storage.Bytes()), nil
}

func (a *Address) Set(addr *mesh.Address) {
	var storage mesh.Bytes32
	if addr != nil {
		storage = mesh.BytesToBytes32(addr.Bytes())
	}
	a.context.state.SetStorage(a.context.address, a.pos, storage)
}
