// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/builtin/registry"
	"github.com/boostmesh/mesh/builtin/settlement"
	"github.com/boostmesh/mesh/lvldb"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/sim"
	"github.com/boostmesh/mesh/state"
	"github.com/boostmesh/mesh/test/datagen"
)

type nopTransport struct{}

func (nopTransport) Quote(uint64, []byte) (*big.Int, error) { return new(big.Int), nil }

func (nopTransport) Send(msg *settlement.Message) (*settlement.Receipt, error) {
	return &settlement.Receipt{Nonce: msg.Nonce}, nil
}

func TestAddresses(t *testing.T) {
	seen := make(map[mesh.Address]string)
	for _, c := range []*contract{
		Token.contract, Multiplier.contract, Accumulator.contract, Fees.contract,
		Registry.contract, Distributor.contract, Settlement.contract, Inbox.contract,
	} {
		_, dup := seen[c.Address]
		assert.False(t, dup, c.Name())
		seen[c.Address] = c.Name()
	}
	assert.Equal(t, mesh.BytesToAddress([]byte("Registry")), Registry.Address)
}

func TestBindAndInitialize(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	defer db.Close()
	st := state.New(db)

	crv := mesh.BytesToAddress([]byte("crv"))
	issuance := mesh.BytesToAddress([]byte("mesh"))
	tk := Token.WithState(st)
	gauges := sim.NewGauges(mesh.BytesToAddress([]byte("gauges")), st, tk, crv)
	minter := sim.NewMinter(mesh.BytesToAddress([]byte("minter")), st, tk, issuance, datagen.Ether(50_000_000), 500)
	oracle := sim.NewVoteOracle()

	c := Bind(st, &Externals{Yield: gauges, Converter: minter, Oracle: oracle, Transport: nopTransport{}}, settlement.NewOutbox())
	owner := datagen.RandAddress()
	require.NoError(t, c.Initialize(&Setup{
		Owner: owner,
		Registry: &registry.Settings{
			RewardToken:   crv,
			Issuance:      issuance,
			LockRewards:   mesh.DeriveAddress("lock-rewards"),
			StakerRewards: mesh.DeriveAddress("staker-rewards"),
		},
		Settlement: &settlement.Settings{ChainID: 1, Transport: datagen.RandAddress(), RewardToken: crv, Issuance: issuance},
	}))

	ok, err := c.Registry.HasRole(registry.RoleStashFunder, Distributor.Address)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.Registry.HasRole(registry.RoleBridgeDelegate, Settlement.Address)
	require.NoError(t, err)
	assert.True(t, ok)

	// deposit, earn from the gauge and claim
	lp, gauge, alice := datagen.RandAddress(), datagen.RandAddress(), datagen.RandAddress()
	pid, err := c.Registry.AddPool(owner, lp, gauge, registry.KindStandard, 0)
	require.NoError(t, err)
	require.NoError(t, c.Token.Mint(lp, alice, big.NewInt(100)))
	require.NoError(t, c.Registry.Deposit(alice, pid, big.NewInt(100), true))
	require.NoError(t, gauges.Accrue(gauge, big.NewInt(1000)))
	_, err = c.Registry.EarmarkRewards(owner, pid)
	require.NoError(t, err)

	// epoch rewards reach the pool's stash
	require.NoError(t, c.Token.Mint(crv, owner, big.NewInt(300)))
	now := 10*mesh.EpochLength + 1
	require.NoError(t, c.Distributor.QueueRewards(owner, 10, pid, crv, big.NewInt(300), now))
	_, err = c.Distributor.ProcessGaugeRewards(owner, 10, crv, now)
	require.NoError(t, err)
	_, err = c.Distributor.Settle(owner, 10, pid, crv, now, nil)
	require.NoError(t, err)

	claim, err := c.Registry.Claim(alice, pid)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(850), claim.Reward)
	require.Len(t, claim.Extras, 1)
	assert.Equal(t, big.NewInt(300), claim.Extras[0])
	assert.Equal(t, big.NewInt(1150), mustBalance(t, c, crv, alice))
}

func mustBalance(t *testing.T, c *Contracts, tok, account mesh.Address) *big.Int {
	b, err := c.Token.BalanceOf(tok, account)
	require.NoError(t, err)
	return b
}
