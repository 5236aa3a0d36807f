// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package settlement

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/test/datagen"
)

func TestSendToChain(t *testing.T) {
	l1, l2 := newChain(t, 1), newChain(t, 2)
	sender := datagen.RandAddress()
	recipient := datagen.RandAddress()
	l1.fund(t, sender, rewardToken, 1000)
	l1.fund(t, sender, feeToken, 100)

	_, err := l1.coordinator.SendToChain(sender, 2, rewardToken, big.NewInt(100), recipient, nil, big.NewInt(10))
	assert.Equal(t, reverts.KindState, reverts.KindOf(err))

	link(t, l1, l2)
	_, err = l1.coordinator.SendToChain(sender, 2, rewardToken, big.NewInt(100), recipient, nil, big.NewInt(9))
	assert.Equal(t, reverts.KindExternal, reverts.KindOf(err))

	first, err := l1.coordinator.SendToChain(sender, 2, rewardToken, big.NewInt(100), recipient, nil, big.NewInt(15))
	require.NoError(t, err)
	second, err := l1.coordinator.SendToChain(sender, 2, rewardToken, big.NewInt(200), recipient, nil, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Nonce)
	assert.Equal(t, uint64(2), second.Nonce)
	assert.Equal(t, StatusInFlight, second.Status)

	// only the quote is charged
	assert.Equal(t, big.NewInt(80), l1.balance(t, feeToken, sender))
	assert.Equal(t, big.NewInt(700), l1.balance(t, rewardToken, sender))
	assert.Equal(t, big.NewInt(300), l1.balance(t, rewardToken, l1.coordinator.Address()))
	assert.Equal(t, 2, l1.outbox.Len())

	ledger, err := l1.coordinator.Ledger(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ledger.NextNonce)
}

func TestDeliveryAckAndRetry(t *testing.T) {
	l1, l2 := newChain(t, 1), newChain(t, 2)
	link(t, l1, l2)
	sender := datagen.RandAddress()
	l1.fund(t, sender, rewardToken, 100)
	l1.fund(t, sender, feeToken, 100)

	intent, err := l1.coordinator.SendToChain(sender, 2, rewardToken, big.NewInt(100), datagen.RandAddress(), nil, big.NewInt(10))
	require.NoError(t, err)
	msgs := l1.outbox.Drain()
	require.Len(t, msgs, 1)

	err = l1.coordinator.OnDeliveryFailure(sender, 2, intent.Nonce)
	assert.Equal(t, reverts.KindUnauthorized, reverts.KindOf(err))
	require.NoError(t, l1.coordinator.OnDeliveryFailure(transport, 2, intent.Nonce))

	_, err = l1.coordinator.Retry(sender, 2, intent.Nonce, big.NewInt(1))
	assert.Equal(t, reverts.KindExternal, reverts.KindOf(err))
	retried, err := l1.coordinator.Retry(sender, 2, intent.Nonce, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, intent.Nonce, retried.Nonce)
	assert.Equal(t, uint64(2), retried.Attempts)

	msgs = l1.outbox.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, intent.Nonce, msgs[0].Nonce)

	_, err = l1.coordinator.Retry(sender, 2, intent.Nonce, big.NewInt(10))
	assert.Equal(t, reverts.KindState, reverts.KindOf(err))

	require.NoError(t, l1.coordinator.OnDeliveryAck(transport, 2, intent.Nonce))
	require.NoError(t, l1.coordinator.OnDeliveryAck(transport, 2, intent.Nonce))
	got, err := l1.coordinator.Intent(2, intent.Nonce)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, got.Status)
	assert.Equal(t, 0, l1.balance(t, rewardToken, l1.coordinator.Address()).Sign())

	// a late failure report does not undo the delivery
	require.NoError(t, l1.coordinator.OnDeliveryFailure(transport, 2, intent.Nonce))
	got, err = l1.coordinator.Intent(2, intent.Nonce)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, got.Status)
}

func TestInboxReceive(t *testing.T) {
	l1, l2 := newChain(t, 1), newChain(t, 2)
	link(t, l1, l2)
	sender := datagen.RandAddress()
	l1.fund(t, sender, rewardToken, 300)
	l1.fund(t, sender, feeToken, 100)

	rewards := &Rewards{Epoch: 7, Token: rewardToken, Items: []RewardItem{
		{Pid: 0, Amount: big.NewInt(100)},
		{Pid: 3, Amount: big.NewInt(200)},
	}}
	payload, err := EncodePayload(PayloadRewards, rewards)
	require.NoError(t, err)
	_, err = l1.coordinator.SendToChain(sender, 2, rewardToken, rewards.Total(), l2.rewards.Address(), payload, big.NewInt(10))
	require.NoError(t, err)
	msgs := l1.outbox.Drain()
	require.Len(t, msgs, 1)
	msg := msgs[0]

	_, err = l2.inbox.Receive(sender, msg, 0)
	assert.Equal(t, reverts.KindUnauthorized, reverts.KindOf(err))

	forged := *msg
	forged.Sender = datagen.RandAddress()
	_, err = l2.inbox.Receive(transport, &forged, 0)
	assert.Equal(t, reverts.KindUnauthorized, reverts.KindOf(err))

	applied, err := l2.inbox.Receive(transport, msg, 0)
	require.NoError(t, err)
	assert.True(t, applied)
	require.Len(t, l2.rewards.received, 1)
	assert.Equal(t, uint64(7), l2.rewards.received[0].Epoch)
	assert.Equal(t, big.NewInt(300), l2.balance(t, rewardToken, l2.rewards.Address()))

	// replay is a no-op
	applied, err = l2.inbox.Receive(transport, msg, 0)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Len(t, l2.rewards.received, 1)
	assert.Equal(t, big.NewInt(300), l2.balance(t, rewardToken, l2.rewards.Address()))

	received, err := l2.inbox.Received(1, msg.Nonce)
	require.NoError(t, err)
	assert.True(t, received)
}

func TestFeeDebtShortfallCarried(t *testing.T) {
	l1, l2 := newChain(t, 1), newChain(t, 2)
	link(t, l1, l2)
	collector, keeper := datagen.RandAddress(), datagen.RandAddress()
	l2.fund(t, collector, rewardToken, 1000)
	l2.fund(t, collector, feeToken, 1000)
	l1.fund(t, keeper, feeToken, 1000)

	// 100 reported, tokens of the report not arrived yet
	intents, err := l2.coordinator.SendFees(collector, 1, big.NewInt(100), big.NewInt(10))
	require.NoError(t, err)
	require.Len(t, intents, 2)
	msgs := l2.outbox.Drain()
	require.Len(t, msgs, 2)
	_, err = l1.inbox.Receive(transport, msgs[0], 0)
	require.NoError(t, err)

	distributed, err := l1.coordinator.DistributeL2Fees(keeper, 2, 0, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, 0, distributed.Sign())

	// a bridge receiver settles 60 by hand
	receiver := datagen.RandAddress()
	l1.fund(t, receiver, rewardToken, 60)
	assert.Error(t, l1.coordinator.SettleFeeDebt(receiver, 2, big.NewInt(60)))
	require.NoError(t, l1.coordinator.Grant(l1.owner, RoleBridgeReceiver, receiver))
	require.NoError(t, l1.coordinator.SettleFeeDebt(receiver, 2, big.NewInt(60)))

	distributed, err = l1.coordinator.DistributeL2Fees(keeper, 2, 0, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(60), distributed)
	ledger, err := l1.coordinator.Ledger(2)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(40), ledger.Pending())
	assert.Equal(t, 0, ledger.Available().Sign())

	// the bridged tokens arrive later and pay the rest of the debt
	_, err = l1.inbox.Receive(transport, msgs[1], 0)
	require.NoError(t, err)
	distributed, err = l1.coordinator.DistributeL2Fees(keeper, 2, 0, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(40), distributed)

	ledger, err = l1.coordinator.Ledger(2)
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.Pending().Sign())
	assert.Equal(t, big.NewInt(60), ledger.Available())
	assert.Equal(t, big.NewInt(100), l1.registry.distributed)

	// issuance went back to the sidechain twice
	back := l1.outbox.Drain()
	require.Len(t, back, 2)
	assert.Equal(t, issuance, back[0].Token)
	assert.Equal(t, big.NewInt(120), back[0].Amount)
	assert.Equal(t, l2.coordinator.Address(), back[0].Recipient)

	for _, msg := range back {
		_, err = l2.inbox.Receive(transport, msg, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, big.NewInt(200), l2.balance(t, issuance, l2.coordinator.Address()))

	pool, err := l2.coordinator.IssuancePool()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), pool.Received)
	assert.Equal(t, big.NewInt(1000), pool.Gross)
}

// issuanceMsg is an issuance message from l1 to the coordinator of l2.
func issuanceMsg(t *testing.T, l1, l2 *chain, nonce uint64, amount, gross int64) *Message {
	payload, err := EncodePayload(PayloadIssuance, &Issuance{Amount: big.NewInt(amount), Gross: big.NewInt(gross)})
	require.NoError(t, err)
	return &Message{
		SrcChainID: l1.id,
		DstChainID: l2.id,
		Nonce:      nonce,
		Sender:     l1.coordinator.Address(),
		Token:      issuance,
		Amount:     big.NewInt(amount),
		Recipient:  l2.coordinator.Address(),
		Payload:    payload,
	}
}

func TestIssuanceConvert(t *testing.T) {
	l1, l2 := newChain(t, 1), newChain(t, 2)
	link(t, l1, l2)
	alice, bob := datagen.RandAddress(), datagen.RandAddress()

	// nothing arrived yet: the reward waits
	paid, err := l2.coordinator.Convert(alice, big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, 0, paid.Sign())
	uncovered, err := l2.coordinator.UncoveredReward(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), uncovered)

	// 100 issuance for 1000 reward
	_, err = l2.inbox.Receive(transport, issuanceMsg(t, l1, l2, 1, 100, 1000), 0)
	require.NoError(t, err)

	paid, err = l2.coordinator.Convert(bob, big.NewInt(300))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30), paid)
	paid, err = l2.coordinator.ClaimIssuance(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), paid)
	uncovered, err = l2.coordinator.UncoveredReward(alice)
	require.NoError(t, err)
	assert.Equal(t, 0, uncovered.Sign())

	// 20 left: bob is paid in part and the rest waits for the next arrival
	paid, err = l2.coordinator.Convert(bob, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20), paid)
	uncovered, err = l2.coordinator.UncoveredReward(bob)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(800), uncovered)

	_, err = l2.inbox.Receive(transport, issuanceMsg(t, l1, l2, 2, 100, 1000), 0)
	require.NoError(t, err)
	paid, err = l2.coordinator.ClaimIssuance(bob)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(80), paid)

	assert.Equal(t, big.NewInt(130), l2.balance(t, issuance, bob))
	assert.Equal(t, big.NewInt(50), l2.balance(t, issuance, alice))
	pool, err := l2.coordinator.IssuancePool()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(180), pool.Paid)
	assert.Equal(t, big.NewInt(20), pool.Balance())

	// the carried amount must match the payload
	bad := issuanceMsg(t, l1, l2, 3, 100, 1000)
	bad.Amount = big.NewInt(99)
	_, err = l2.inbox.Receive(transport, bad, 0)
	assert.Equal(t, reverts.KindInvalid, reverts.KindOf(err))
}

func TestRefund(t *testing.T) {
	l1, l2 := newChain(t, 1), newChain(t, 2)
	link(t, l1, l2)
	sender, stranger := datagen.RandAddress(), datagen.RandAddress()
	l1.fund(t, sender, rewardToken, 100)
	l1.fund(t, sender, feeToken, 100)

	intent, err := l1.coordinator.SendToChain(sender, 2, rewardToken, big.NewInt(100), datagen.RandAddress(), nil, big.NewInt(10))
	require.NoError(t, err)
	l1.outbox.Drain()

	// only failed intents are refundable
	_, err = l1.coordinator.Refund(sender, 2, intent.Nonce)
	assert.Equal(t, reverts.KindState, reverts.KindOf(err))
	require.NoError(t, l1.coordinator.OnDeliveryFailure(transport, 2, intent.Nonce))

	_, err = l1.coordinator.Refund(stranger, 2, intent.Nonce)
	assert.Equal(t, reverts.KindUnauthorized, reverts.KindOf(err))
	refunded, err := l1.coordinator.Refund(l1.owner, 2, intent.Nonce)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, refunded.Status)
	assert.Equal(t, big.NewInt(100), l1.balance(t, rewardToken, sender))
	assert.Equal(t, 0, l1.balance(t, rewardToken, l1.coordinator.Address()).Sign())

	// a refunded intent is settled for good
	_, err = l1.coordinator.Retry(sender, 2, intent.Nonce, big.NewInt(10))
	assert.Equal(t, reverts.KindState, reverts.KindOf(err))
	_, err = l1.coordinator.Refund(sender, 2, intent.Nonce)
	assert.Equal(t, reverts.KindState, reverts.KindOf(err))
	err = l1.coordinator.OnDeliveryAck(transport, 2, intent.Nonce)
	assert.Equal(t, reverts.KindState, reverts.KindOf(err))
}

func TestNotifyFeesOnlyFromTrustedRemote(t *testing.T) {
	l1, l2 := newChain(t, 1), newChain(t, 2)
	link(t, l1, l2)

	err := l1.coordinator.NotifyFees(datagen.RandAddress(), 2, big.NewInt(1))
	assert.Equal(t, reverts.KindUnauthorized, reverts.KindOf(err))
	require.NoError(t, l1.coordinator.NotifyFees(l2.coordinator.Address(), 2, big.NewInt(1)))
}

func TestPayloadCodec(t *testing.T) {
	payload, err := EncodePayload(PayloadFees, &Fees{Amount: big.NewInt(42)})
	require.NoError(t, err)

	typ, err := PayloadTypeOf(payload)
	require.NoError(t, err)
	assert.Equal(t, PayloadFees, typ)

	var fees Fees
	require.NoError(t, DecodePayload(payload, PayloadFees, &fees))
	assert.Equal(t, big.NewInt(42), fees.Amount)

	var rewards Rewards
	assert.Error(t, DecodePayload(payload, PayloadRewards, &rewards))

	_, err = PayloadTypeOf([]byte{0xff})
	assert.Error(t, err)
}

func TestSetTrustedRemote(t *testing.T) {
	l1 := newChain(t, 1)
	remote := mesh.BytesToAddress([]byte("remote"))

	assert.Error(t, l1.coordinator.SetTrustedRemote(datagen.RandAddress(), 2, remote))
	assert.Error(t, l1.coordinator.SetTrustedRemote(l1.owner, 1, remote))
	require.NoError(t, l1.coordinator.SetTrustedRemote(l1.owner, 2, remote))
	got, err := l1.coordinator.TrustedRemote(2)
	require.NoError(t, err)
	assert.Equal(t, remote, got)

	require.NoError(t, l1.coordinator.SetTrustedRemote(l1.owner, 2, mesh.Address{}))
	got, err = l1.coordinator.TrustedRemote(2)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
