// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package token implements the multi-token balance ledger every builtin moves funds through.
// LP tokens, reward tokens and the issuance token all live here, keyed by token address.
package token

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/builtin/solidity"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/state"
)

var (
	logger = log.WithContext("pkg", "token")

	slotBalances = mesh.BytesToBytes32([]byte("balances"))
	slotSupplies = mesh.BytesToBytes32([]byte("supplies"))
)

type holding struct {
	token   mesh.Address
	account mesh.Address
}

func (h holding) Bytes() []byte {
	return append(h.token.Bytes(), h.account.Bytes()...)
}

// Token implements the token ledger contract.
type Token struct {
	balances *solidity.Mapping[holding, *big.Int]
	supplies *solidity.Mapping[mesh.Address, *big.Int]
}

// New create a new instance.
func New(addr mesh.Address, state *state.State) *Token {
	sctx := solidity.NewContext(addr, state)
	return &Token{
		balances: solidity.NewMapping[holding, *big.Int](sctx, slotBalances),
		supplies: solidity.NewMapping[mesh.Address, *big.Int](sctx, slotSupplies),
	}
}

// BalanceOf returns the balance of account in token.
func (t *Token) BalanceOf(token, account mesh.Address) (*big.Int, error) {
	bal, err := t.balances.Get(holding{token, account})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get balance")
	}
	return mesh.Big(bal), nil
}

// TotalSupply returns the minted minus burned amount of token.
func (t *Token) TotalSupply(token mesh.Address) (*big.Int, error) {
	supply, err := t.supplies.Get(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get supply")
	}
	return mesh.Big(supply), nil
}

// Mint creates amount of token for account.
func (t *Token) Mint(token, to mesh.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return reverts.Invalid("negative mint amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	supply, err := t.TotalSupply(token)
	if err != nil {
		return err
	}
	if supply, err = mesh.Add(supply, amount); err != nil {
		return reverts.Invalid("token supply overflow")
	}
	if err := t.supplies.Upsert(token, supply); err != nil {
		return err
	}
	logger.Trace("mint", "token", token, "to", to, "amount", amount)
	return t.credit(token, to, amount)
}

// Burn destroys amount of token held by account.
func (t *Token) Burn(token, from mesh.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return reverts.Invalid("negative burn amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := t.debit(token, from, amount); err != nil {
		return err
	}
	supply, err := t.TotalSupply(token)
	if err != nil {
		return err
	}
	return t.supplies.Upsert(token, supply.Sub(supply, amount))
}

// Transfer moves amount of token between accounts.
func (t *Token) Transfer(token, from, to mesh.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return reverts.Invalid("negative transfer amount")
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	if err := t.debit(token, from, amount); err != nil {
		return err
	}
	return t.credit(token, to, amount)
}

func (t *Token) credit(token, account mesh.Address, amount *big.Int) error {
	bal, err := t.BalanceOf(token, account)
	if err != nil {
		return err
	}
	if bal, err = mesh.Add(bal, amount); err != nil {
		return reverts.Invalid("balance overflow")
	}
	return t.balances.Upsert(holding{token, account}, bal)
}

func (t *Token) debit(token, account mesh.Address, amount *big.Int) error {
	bal, err := t.BalanceOf(token, account)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return reverts.Invalid("insufficient balance of %v: have %v, need %v", token, bal, amount)
	}
	bal.Sub(bal, amount)
	if bal.Sign() == 0 {
		t.balances.Delete(holding{token, account})
		return nil
	}
	return t.balances.Upsert(holding{token, account}, bal)
}
