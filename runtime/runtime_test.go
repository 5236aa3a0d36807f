// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"math/big"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/builtin"
	"github.com/boostmesh/mesh/builtin/registry"
	"github.com/boostmesh/mesh/builtin/settlement"
	"github.com/boostmesh/mesh/lvldb"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/sim"
	"github.com/boostmesh/mesh/state"
	"github.com/boostmesh/mesh/test/datagen"
)

var (
	crv       = mesh.BytesToAddress([]byte("crv"))
	transport = mesh.BytesToAddress([]byte("transport"))
)

type recordingTransport struct {
	sent []*settlement.Message
}

func (r *recordingTransport) Quote(uint64, []byte) (*big.Int, error) { return new(big.Int), nil }

func (r *recordingTransport) Send(msg *settlement.Message) (*settlement.Receipt, error) {
	r.sent = append(r.sent, msg)
	return &settlement.Receipt{ID: "r", Nonce: msg.Nonce}, nil
}

func newChain(t *testing.T) (*Chain, *recordingTransport, mesh.Address) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := state.New(db)
	tr := &recordingTransport{}
	gauges := sim.NewGauges(mesh.BytesToAddress([]byte("gauges")), st, builtin.Token.WithState(st), crv)
	contracts := builtin.Bind(st, &builtin.Externals{Yield: gauges, Oracle: sim.NewVoteOracle(), Transport: tr}, settlement.NewOutbox())
	clock := clockwork.NewFakeClockAt(time.Unix(int64(100*mesh.EpochLength), 0))
	chain := New(1, st, contracts, tr, clock)

	owner := datagen.RandAddress()
	require.NoError(t, chain.Exec("init", func(c *builtin.Contracts, _ uint64) error {
		if err := c.Initialize(&builtin.Setup{
			Owner: owner,
			Registry: &registry.Settings{
				RewardToken:   crv,
				Issuance:      mesh.BytesToAddress([]byte("mesh")),
				LockRewards:   mesh.DeriveAddress("lock"),
				StakerRewards: mesh.DeriveAddress("staker"),
			},
			Settlement: &settlement.Settings{ChainID: 1, Transport: transport, RewardToken: crv},
		}); err != nil {
			return err
		}
		return c.Settlement.SetTrustedRemote(owner, 2, builtin.Settlement.Address)
	}))
	return chain, tr, owner
}

func balance(t *testing.T, chain *Chain, token, account mesh.Address) (b *big.Int) {
	require.NoError(t, chain.View(func(c *builtin.Contracts, _ uint64) (err error) {
		b, err = c.Token.BalanceOf(token, account)
		return
	}))
	return
}

func TestExecCommitsAndSends(t *testing.T) {
	chain, tr, _ := newChain(t)
	alice, bob := datagen.RandAddress(), datagen.RandAddress()

	require.NoError(t, chain.Exec("send", func(c *builtin.Contracts, now uint64) error {
		assert.Equal(t, chain.Now(), now)
		if err := c.Token.Mint(crv, alice, big.NewInt(100)); err != nil {
			return err
		}
		_, err := c.Settlement.SendToChain(alice, 2, crv, big.NewInt(40), bob, []byte{1}, nil)
		return err
	}))
	assert.Equal(t, big.NewInt(60), balance(t, chain, crv, alice))
	require.Len(t, tr.sent, 1)
	assert.Equal(t, uint64(1), tr.sent[0].Nonce)
}

func TestExecRevertsOnError(t *testing.T) {
	chain, tr, _ := newChain(t)
	alice, bob := datagen.RandAddress(), datagen.RandAddress()

	err := chain.Exec("send", func(c *builtin.Contracts, _ uint64) error {
		if err := c.Token.Mint(crv, alice, big.NewInt(100)); err != nil {
			return err
		}
		if _, err := c.Settlement.SendToChain(alice, 2, crv, big.NewInt(40), bob, []byte{1}, nil); err != nil {
			return err
		}
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")

	// no partial credit and no orphaned message
	assert.Equal(t, 0, balance(t, chain, crv, alice).Sign())
	assert.Empty(t, tr.sent)
	require.NoError(t, chain.View(func(c *builtin.Contracts, _ uint64) error {
		ledger, err := c.Settlement.Ledger(2)
		assert.Equal(t, uint64(0), ledger.NextNonce)
		return err
	}))
}

func TestViewDiscardsWrites(t *testing.T) {
	chain, _, _ := newChain(t)
	alice := datagen.RandAddress()
	require.NoError(t, chain.View(func(c *builtin.Contracts, _ uint64) error {
		return c.Token.Mint(crv, alice, big.NewInt(5))
	}))
	assert.Equal(t, 0, balance(t, chain, crv, alice).Sign())
}

func TestTransportEndpoints(t *testing.T) {
	chain, tr, _ := newChain(t)
	alice, bob := datagen.RandAddress(), datagen.RandAddress()
	require.NoError(t, chain.Exec("send", func(c *builtin.Contracts, _ uint64) error {
		if err := c.Token.Mint(crv, alice, big.NewInt(10)); err != nil {
			return err
		}
		_, err := c.Settlement.SendToChain(alice, 2, crv, big.NewInt(10), bob, []byte{1}, nil)
		return err
	}))
	require.Len(t, tr.sent, 1)

	require.NoError(t, chain.Fail(2, 1))
	require.NoError(t, chain.Ack(2, 1))
	require.NoError(t, chain.View(func(c *builtin.Contracts, _ uint64) error {
		intent, err := c.Settlement.Intent(2, 1)
		assert.Equal(t, settlement.StatusDelivered, intent.Status)
		return err
	}))

	// an inbound message from the trusted remote mints to its recipient once
	payload, err := settlement.EncodePayload(settlement.PayloadIssuance, &settlement.Fees{Amount: big.NewInt(7)})
	require.NoError(t, err)
	msg := &settlement.Message{
		SrcChainID: 2,
		DstChainID: 1,
		Nonce:      1,
		Sender:     builtin.Settlement.Address,
		Token:      crv,
		Amount:     big.NewInt(7),
		Recipient:  bob,
		Payload:    payload,
	}
	ok, err := chain.Deliver(msg)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = chain.Deliver(msg)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, big.NewInt(7), balance(t, chain, crv, bob))

	msg.Nonce, msg.Sender = 2, datagen.RandAddress()
	_, err = chain.Deliver(msg)
	assert.Error(t, err)
}
