// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package settlement

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/builtin/registry"
	"github.com/boostmesh/mesh/builtin/token"
	"github.com/boostmesh/mesh/lvldb"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/state"
	"github.com/boostmesh/mesh/test/datagen"
)

var (
	rewardToken = mesh.BytesToAddress([]byte("crv"))
	issuance    = mesh.BytesToAddress([]byte("mesh"))
	feeToken    = mesh.BytesToAddress([]byte("gas"))
	transport   = mesh.BytesToAddress([]byte("transport"))
)

type fakeTransport struct {
	fee int64
}

func (f *fakeTransport) Quote(uint64, []byte) (*big.Int, error) {
	return big.NewInt(f.fee), nil
}

func (f *fakeTransport) Send(msg *Message) (*Receipt, error) {
	return &Receipt{ID: "fake", Nonce: msg.Nonce}, nil
}

type fakeRewards struct {
	addr     mesh.Address
	received []*Rewards
}

func (f *fakeRewards) Address() mesh.Address { return f.addr }

func (f *fakeRewards) HandleRewards(_ uint64, rewards *Rewards, _ uint64) error {
	f.received = append(f.received, rewards)
	return nil
}

// fakeRegistry takes fees as a tenth of the gross reward and mints twice the fees as
// issuance.
type fakeRegistry struct {
	token       *token.Token
	distributed *big.Int
}

func (f *fakeRegistry) DistributeL2Fees(caller mesh.Address, amount *big.Int, _ uint64) (*registry.L2Distribution, error) {
	if err := f.token.Burn(rewardToken, caller, amount); err != nil {
		return nil, err
	}
	f.distributed.Add(f.distributed, amount)
	minted := new(big.Int).Mul(amount, big.NewInt(2))
	if err := f.token.Mint(issuance, caller, minted); err != nil {
		return nil, err
	}
	return &registry.L2Distribution{Gross: new(big.Int).Mul(amount, big.NewInt(10)), Minted: minted}, nil
}

type chain struct {
	id          uint64
	state       *state.State
	token       *token.Token
	coordinator *Coordinator
	inbox       *Inbox
	outbox      *Outbox
	rewards     *fakeRewards
	registry    *fakeRegistry
	owner       mesh.Address
}

func newChain(t *testing.T, id uint64) *chain {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := state.New(db)
	tk := token.New(mesh.BytesToAddress([]byte("token")), st)
	outbox := NewOutbox()
	reg := &fakeRegistry{token: tk, distributed: new(big.Int)}
	coordinator := New(mesh.BytesToAddress([]byte("coordinator")), st, tk, &fakeTransport{fee: 10}, reg, outbox)
	rewards := &fakeRewards{addr: mesh.BytesToAddress([]byte("distributor"))}
	inbox := NewInbox(mesh.BytesToAddress([]byte("inbox")), st, tk, coordinator, rewards)

	owner := datagen.RandAddress()
	require.NoError(t, coordinator.Initialize(owner, &Settings{
		ChainID:     id,
		Transport:   transport,
		FeeToken:    feeToken,
		RewardToken: rewardToken,
		Issuance:    issuance,
	}))
	return &chain{
		id:          id,
		state:       st,
		token:       tk,
		coordinator: coordinator,
		inbox:       inbox,
		outbox:      outbox,
		rewards:     rewards,
		registry:    reg,
		owner:       owner,
	}
}

// link makes two chains trust each other's coordinator.
func link(t *testing.T, a, b *chain) {
	require.NoError(t, a.coordinator.SetTrustedRemote(a.owner, b.id, b.coordinator.Address()))
	require.NoError(t, b.coordinator.SetTrustedRemote(b.owner, a.id, a.coordinator.Address()))
}

// deliver hands every buffered message of from to the inbox of to and acks it on from.
func deliver(t *testing.T, from, to *chain) {
	for _, msg := range from.outbox.Drain() {
		_, err := to.inbox.Receive(transport, msg, 0)
		require.NoError(t, err)
		require.NoError(t, from.coordinator.OnDeliveryAck(transport, msg.DstChainID, msg.Nonce))
	}
}

func (c *chain) fund(t *testing.T, account mesh.Address, tok mesh.Address, amount int64) {
	require.NoError(t, c.token.Mint(tok, account, big.NewInt(amount)))
}

func (c *chain) balance(t *testing.T, tok, account mesh.Address) *big.Int {
	bal, err := c.token.BalanceOf(tok, account)
	require.NoError(t, err)
	return bal
}
