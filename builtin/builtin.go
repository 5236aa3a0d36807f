// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package builtin binds the protocol contracts to their addresses and wires them together
// over one state.
package builtin

import (
	"github.com/boostmesh/mesh/builtin/accumulator"
	"github.com/boostmesh/mesh/builtin/distributor"
	"github.com/boostmesh/mesh/builtin/fees"
	"github.com/boostmesh/mesh/builtin/multiplier"
	"github.com/boostmesh/mesh/builtin/registry"
	"github.com/boostmesh/mesh/builtin/settlement"
	"github.com/boostmesh/mesh/builtin/token"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/state"
)

// Builtin contracts binding.
var (
	Token       = &tokenContract{newContract("Token")}
	Multiplier  = &multiplierContract{newContract("Multiplier")}
	Accumulator = &accumulatorContract{newContract("Accumulator")}
	Fees        = &feesContract{newContract("Fees")}
	Registry    = &registryContract{newContract("Registry")}
	Distributor = &distributorContract{newContract("Distributor")}
	Settlement  = &settlementContract{newContract("Settlement")}
	Inbox       = &inboxContract{newContract("Inbox")}
)

type (
	tokenContract       struct{ *contract }
	multiplierContract  struct{ *contract }
	accumulatorContract struct{ *contract }
	feesContract        struct{ *contract }
	registryContract    struct{ *contract }
	distributorContract struct{ *contract }
	settlementContract  struct{ *contract }
	inboxContract       struct{ *contract }
)

func (t *tokenContract) WithState(state *state.State) *token.Token {
	return token.New(t.Address, state)
}

func (m *multiplierContract) WithState(state *state.State) *multiplier.Multiplier {
	return multiplier.New(m.Address, state)
}

func (f *feesContract) WithState(state *state.State) *fees.Fees {
	return fees.New(f.Address, state)
}

// Externals are the contracts of other protocols the builtins call into.
type Externals struct {
	Yield     registry.YieldSource
	Converter registry.Converter
	Oracle    distributor.WeightOracle
	Transport settlement.Transport
}

// Contracts is the set of builtin contracts bound to one state.
type Contracts struct {
	Token       *token.Token
	Multiplier  *multiplier.Multiplier
	Accumulator *accumulator.Accumulator
	Fees        *fees.Fees
	Registry    *registry.Registry
	Distributor *distributor.Distributor
	Settlement  *settlement.Coordinator
	Inbox       *settlement.Inbox
	Outbox      *settlement.Outbox
}

// Bind wires every builtin contract over state. Messages sent by the settlement
// coordinator are collected in outbox.
func Bind(state *state.State, ext *Externals, outbox *settlement.Outbox) *Contracts {
	c := &Contracts{Outbox: outbox}
	c.Token = Token.WithState(state)
	c.Multiplier = Multiplier.WithState(state)
	c.Accumulator = accumulator.New(Accumulator.Address, state, c.Token, c.Multiplier)
	c.Fees = Fees.WithState(state)
	c.Registry = registry.New(Registry.Address, state, c.Token, c.Accumulator, c.Fees, ext.Yield, ext.Converter)
	c.Settlement = settlement.New(Settlement.Address, state, c.Token, ext.Transport, c.Registry, outbox)
	c.Distributor = distributor.New(Distributor.Address, state, c.Token, c.Registry, ext.Oracle, c.Settlement)
	c.Registry.SetEpochs(c.Distributor)
	if ext.Converter == nil {
		// without a minter, claims are paid from issuance the primary chain sent back
		c.Registry.SetConverter(c.Settlement)
	}
	c.Inbox = settlement.NewInbox(Inbox.Address, state, c.Token, c.Settlement, c.Distributor)
	return c
}

// Setup holds the one-off configuration of a fresh chain.
type Setup struct {
	Owner      mesh.Address
	Registry   *registry.Settings
	Settlement *settlement.Settings
	Fees       *fees.Config // nil keeps the default fee split
	// EpochLength numbers epochs as now/EpochLength, zero keeps the default length.
	EpochLength uint64
}

// Initialize assigns owners, initializes the contracts and grants the roles the contracts
// hold on each other.
func (c *Contracts) Initialize(setup *Setup) error {
	owner := setup.Owner
	if err := c.Multiplier.Init(owner); err != nil {
		return err
	}
	if err := c.Fees.Init(owner); err != nil {
		return err
	}
	if setup.Fees != nil {
		if _, err := c.Fees.Set(owner, *setup.Fees); err != nil {
			return err
		}
	}
	if err := c.Registry.Initialize(owner, setup.Registry); err != nil {
		return err
	}
	if err := c.Settlement.Initialize(owner, setup.Settlement); err != nil {
		return err
	}
	if err := c.Distributor.Initialize(owner, setup.EpochLength); err != nil {
		return err
	}
	if err := c.Registry.Grant(owner, registry.RoleStashFunder, c.Distributor.Address()); err != nil {
		return err
	}
	return c.Registry.Grant(owner, registry.RoleBridgeDelegate, c.Settlement.Address())
}
