// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package settlement

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/builtin/solidity"
	"github.com/boostmesh/mesh/builtin/token"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/metrics"
	"github.com/boostmesh/mesh/state"
)

var (
	slotReceived = mesh.BytesToBytes32([]byte("received"))

	metricsReceived = metrics.LazyLoadCounterVec("settlement_received_count", []string{"type"})
)

// RewardsHandler applies rewards that arrived for local pools.
type RewardsHandler interface {
	Address() mesh.Address
	HandleRewards(src uint64, rewards *Rewards, now uint64) error
}

// Inbox implements the inbound side of the settlement contract.
type Inbox struct {
	received    *solidity.Mapping[intentKey, bool]
	token       *token.Token
	coordinator *Coordinator
	rewards     RewardsHandler
}

// NewInbox creates the inbox stored under addr. rewards may be nil when no distributor
// takes rewards on this chain.
func NewInbox(addr mesh.Address, state *state.State, token *token.Token, coordinator *Coordinator, rewards RewardsHandler) *Inbox {
	sctx := solidity.NewContext(addr, state)
	return &Inbox{
		received:    solidity.NewMapping[intentKey, bool](sctx, slotReceived),
		token:       token,
		coordinator: coordinator,
		rewards:     rewards,
	}
}

// Received reports whether the message with nonce from src was applied.
func (i *Inbox) Received(src, nonce uint64) (bool, error) {
	return i.received.Get(intentKey{src, nonce})
}

// Receive applies a message delivered by the transport. The carried tokens are minted to
// the recipient and the payload is dispatched by type. A replayed nonce is a no-op and
// reports false.
func (i *Inbox) Receive(caller mesh.Address, msg *Message, now uint64) (bool, error) {
	s, err := i.coordinator.requireTransport(caller)
	if err != nil {
		return false, err
	}
	if msg.DstChainID != s.ChainID {
		return false, reverts.Invalid("message for chain %d delivered to %d", msg.DstChainID, s.ChainID)
	}
	remote, err := i.coordinator.TrustedRemote(msg.SrcChainID)
	if err != nil {
		return false, err
	}
	if remote.IsZero() || remote != msg.Sender {
		return false, reverts.Unauthorized("untrusted sender %v on chain %d", msg.Sender, msg.SrcChainID)
	}
	key := intentKey{msg.SrcChainID, msg.Nonce}
	done, err := i.received.Get(key)
	if err != nil {
		return false, err
	}
	if done {
		logger.Debug("replayed message ignored", "src", msg.SrcChainID, "nonce", msg.Nonce)
		return false, nil
	}
	if err := i.received.Upsert(key, true); err != nil {
		return false, err
	}
	if msg.Amount != nil && msg.Amount.Sign() > 0 {
		if err := i.token.Mint(msg.Token, msg.Recipient, msg.Amount); err != nil {
			return false, err
		}
	}

	typ, err := PayloadTypeOf(msg.Payload)
	if err != nil {
		return false, reverts.Invalid("malformed payload: %v", err)
	}
	if err := i.dispatch(typ, msg, now); err != nil {
		return false, errors.WithMessagef(err, "%v message %d from chain %d", typ, msg.Nonce, msg.SrcChainID)
	}
	metricsReceived().AddWithLabel(1, map[string]string{"type": typ.String()})
	logger.Debug("message received", "src", msg.SrcChainID, "nonce", msg.Nonce, "type", typ)
	return true, nil
}

func (i *Inbox) dispatch(typ PayloadType, msg *Message, now uint64) error {
	switch typ {
	case PayloadRewards:
		var rewards Rewards
		if err := DecodePayload(msg.Payload, typ, &rewards); err != nil {
			return reverts.Invalid("%v", err)
		}
		if i.rewards == nil || msg.Recipient != i.rewards.Address() {
			return reverts.State("no rewards handler for %v", msg.Recipient)
		}
		if rewards.Total().Cmp(msg.Amount) != 0 {
			return reverts.Invalid("rewards total %v does not match amount %v", rewards.Total(), msg.Amount)
		}
		return i.rewards.HandleRewards(msg.SrcChainID, &rewards, now)
	case PayloadFees:
		var fees Fees
		if err := DecodePayload(msg.Payload, typ, &fees); err != nil {
			return reverts.Invalid("%v", err)
		}
		return i.coordinator.NotifyFees(msg.Sender, msg.SrcChainID, fees.Amount)
	case PayloadFeeSettlement:
		if msg.Recipient != i.coordinator.Address() {
			return reverts.Invalid("fee settlement for %v", msg.Recipient)
		}
		if msg.Amount == nil || msg.Amount.Sign() <= 0 {
			return reverts.Invalid("empty fee settlement")
		}
		return i.coordinator.settleFeeDebt(msg.SrcChainID, msg.Amount)
	case PayloadIssuance:
		var iss Issuance
		if err := DecodePayload(msg.Payload, typ, &iss); err != nil {
			return reverts.Invalid("%v", err)
		}
		if msg.Recipient != i.coordinator.Address() {
			return reverts.Invalid("issuance for %v", msg.Recipient)
		}
		if iss.Amount == nil || msg.Amount == nil || iss.Amount.Cmp(msg.Amount) != 0 {
			return reverts.Invalid("issuance %v does not match amount %v", iss.Amount, msg.Amount)
		}
		return i.coordinator.receiveIssuance(msg.SrcChainID, iss.Amount, iss.Gross)
	default:
		return reverts.Invalid("unknown payload type %d", typ)
	}
}

func chainLabel(chain uint64) string {
	return strconv.FormatUint(chain, 10)
}
