// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/mesh"
)

// Uint256 is a wrapper for storage and retrieval of an uint256. Similar to storing an uint256 in a smart contract.
type Uint256 struct {
	context *Context
	pos     mesh.Bytes32
}

func NewUint256(context *Context, pos mesh.Bytes32) *Uint256 {
	return &Uint256{context: context, pos: pos}
}

func (u *Uint256) Get() (*big.Int, error) {
	storage, err := u.context.state.GetStorage(u.context.address, u.pos)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(storage.Bytes()), nil
}

func (u *Uint256) Set(value *big.Int) error {
	if _, err := mesh.ToUint256(value); err != nil {
		return errors.Wrap(err, "set uint256")
	}
	u.context.state.SetStorage(u.context.address, u.pos, mesh.BytesToBytes32(value.Bytes()))
	return nil
}

func (u *Uint256) Add(value *big.Int) error {
	storage, err := u.Get()
	if err != nil {
		return err
	}
	sum, err := mesh.Add(storage, value)
	if err != nil {
		return errors.Wrap(err, "add uint256")
	}
	return u.Set(sum)
}

func (u *Uint256) Sub(value *big.Int) error {
	storage, err := u.Get()
	if err != nil {
		return err
	}
	diff, err := mesh.Sub(storage, value)
	if err != nil {
		return errors.Wrap(err, "sub uint256")
	}
	return u.Set(diff)
}
