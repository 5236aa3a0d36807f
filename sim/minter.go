// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sim

import (
	"math/big"

	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/builtin/solidity"
	"github.com/boostmesh/mesh/builtin/token"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/state"
)

var slotEmissions = mesh.BytesToBytes32([]byte("emissions"))

// Minter converts reward amounts into the issuance token along a cliff curve.
// The emission rate drops at each cliff until MaxSupply is reached.
type Minter struct {
	token     *token.Token
	issuance  mesh.Address
	maxSupply *big.Int
	cliffs    int64
	minted    *solidity.Uint256
}

// NewMinter creates the minter stored under addr.
func NewMinter(addr mesh.Address, state *state.State, token *token.Token, issuance mesh.Address, maxSupply *big.Int, cliffs int64) *Minter {
	sctx := solidity.NewContext(addr, state)
	return &Minter{
		token:     token,
		issuance:  issuance,
		maxSupply: maxSupply,
		cliffs:    cliffs,
		minted:    solidity.NewUint256(sctx, slotEmissions),
	}
}

// Issuance returns the minted token.
func (m *Minter) Issuance() mesh.Address {
	return m.issuance
}

// Minted returns the total emissions so far.
func (m *Minter) Minted() (*big.Int, error) {
	return m.minted.Get()
}

// Quote returns what Convert would mint for amount, without minting.
func (m *Minter) Quote(amount *big.Int) (*big.Int, error) {
	minted, err := m.minted.Get()
	if err != nil {
		return nil, err
	}
	if m.cliffs <= 0 {
		return nil, reverts.Invalid("minter has no cliffs")
	}
	perCliff := new(big.Int).Quo(m.maxSupply, big.NewInt(m.cliffs))
	if perCliff.Sign() == 0 {
		return new(big.Int), nil
	}
	cliff := new(big.Int).Quo(minted, perCliff)
	if cliff.Cmp(big.NewInt(m.cliffs)) >= 0 {
		return new(big.Int), nil
	}
	// reduction = (cliffs - cliff) * 5 / 2 + 700
	reduction := new(big.Int).Sub(big.NewInt(m.cliffs), cliff)
	reduction.Mul(reduction, big.NewInt(5))
	reduction.Quo(reduction, big.NewInt(2))
	reduction.Add(reduction, big.NewInt(700))

	out, err := mesh.MulDiv(amount, reduction, big.NewInt(m.cliffs))
	if err != nil {
		return nil, reverts.Invalid("conversion overflow: %v", err)
	}
	return mesh.Min(out, new(big.Int).Sub(m.maxSupply, minted)), nil
}

// Convert mints the issuance equivalent of amount to the recipient.
func (m *Minter) Convert(to mesh.Address, amount *big.Int) (*big.Int, error) {
	out, err := m.Quote(amount)
	if err != nil {
		return nil, err
	}
	if out.Sign() == 0 {
		return out, nil
	}
	if err := m.minted.Add(out); err != nil {
		return nil, err
	}
	if err := m.token.Mint(m.issuance, to, out); err != nil {
		return nil, err
	}
	return out, nil
}
