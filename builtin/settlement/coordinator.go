// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package settlement moves tokens and reward instructions between chains.
//
// Outbound transfers become intents with a strictly increasing nonce per destination. Their
// messages are buffered in an Outbox and handed to the transport only after the transaction
// that created them commits. Inbound messages are applied exactly once by the Inbox.
package settlement

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin/authority"
	"github.com/boostmesh/mesh/builtin/reverts"
	"github.com/boostmesh/mesh/builtin/solidity"
	"github.com/boostmesh/mesh/builtin/token"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/mesh"
	"github.com/boostmesh/mesh/metrics"
	"github.com/boostmesh/mesh/state"
)

var (
	logger = log.WithContext("pkg", "settlement")

	slotSettings = mesh.BytesToBytes32([]byte("settings"))
	slotLedgers  = mesh.BytesToBytes32([]byte("ledgers"))
	slotIntents  = mesh.BytesToBytes32([]byte("intents"))
	slotRemotes  = mesh.BytesToBytes32([]byte("remotes"))
	slotIssuance = mesh.BytesToBytes32([]byte("issuance"))
	slotOwed     = mesh.BytesToBytes32([]byte("uncovered"))

	metricsIntents = metrics.LazyLoadCounterVec("settlement_intent_count", []string{"status"})

	errUnknownIntent = reverts.State("unknown intent")
)

// Coordinator implements the outbound side of the settlement contract.
// Escrowed tokens are held under the coordinator's address until delivery.
type Coordinator struct {
	*authority.Authority
	addr      mesh.Address
	settings  *solidity.Raw[*Settings]
	ledgers   *solidity.Mapping[chainKey, *Ledger]
	intents   *solidity.Mapping[intentKey, *Intent]
	remotes   *solidity.Mapping[chainKey, mesh.Address]
	issuance  *solidity.Raw[*IssuancePool]
	uncovered *solidity.Mapping[mesh.Address, *big.Int]
	token     *token.Token
	transport Transport
	registry  FeeDistributor
	outbox    *Outbox
}

// New create a new instance. registry may be nil on chains that do not distribute
// sidechain fees.
func New(addr mesh.Address, state *state.State, token *token.Token, transport Transport, registry FeeDistributor, outbox *Outbox) *Coordinator {
	sctx := solidity.NewContext(addr, state)
	return &Coordinator{
		Authority: authority.New(sctx),
		addr:      addr,
		settings:  solidity.NewRaw[*Settings](sctx, slotSettings),
		ledgers:   solidity.NewMapping[chainKey, *Ledger](sctx, slotLedgers),
		intents:   solidity.NewMapping[intentKey, *Intent](sctx, slotIntents),
		remotes:   solidity.NewMapping[chainKey, mesh.Address](sctx, slotRemotes),
		issuance:  solidity.NewRaw[*IssuancePool](sctx, slotIssuance),
		uncovered: solidity.NewMapping[mesh.Address, *big.Int](sctx, slotOwed),
		token:     token,
		transport: transport,
		registry:  registry,
		outbox:    outbox,
	}
}

// Address returns the coordinator's contract and escrow address.
func (c *Coordinator) Address() mesh.Address {
	return c.addr
}

// Initialize sets the owner and the settings.
func (c *Coordinator) Initialize(owner mesh.Address, settings *Settings) error {
	if err := c.Init(owner); err != nil {
		return err
	}
	if settings.ChainID == 0 || settings.Transport.IsZero() {
		return reverts.Invalid("incomplete settlement settings")
	}
	logger.Info("settlement initialized", "chain", settings.ChainID, "transport", settings.Transport)
	return c.settings.Upsert(settings)
}

//
// Getters - no state change
//

// Settings returns the settings fixed at initialization.
func (c *Coordinator) Settings() (*Settings, error) {
	s, err := c.settings.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get settings")
	}
	if s == nil {
		return nil, reverts.State("settlement not initialized")
	}
	return s, nil
}

// Ledger returns the ledger of a remote chain.
func (c *Coordinator) Ledger(chain uint64) (*Ledger, error) {
	l, err := c.ledgers.Get(chainKey(chain))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get ledger")
	}
	if l == nil {
		return newLedger(), nil
	}
	return l, nil
}

// Intent returns an outbound intent, nil if it does not exist.
func (c *Coordinator) Intent(dst, nonce uint64) (*Intent, error) {
	i, err := c.intents.Get(intentKey{dst, nonce})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get intent")
	}
	return i, nil
}

// TrustedRemote returns the coordinator address trusted on a remote chain, zero if none.
func (c *Coordinator) TrustedRemote(chain uint64) (mesh.Address, error) {
	return c.remotes.Get(chainKey(chain))
}

// Quote returns the messaging fee for sending payload to dst.
func (c *Coordinator) Quote(dst uint64, payload []byte) (*big.Int, error) {
	fee, err := c.transport.Quote(dst, payload)
	if err != nil {
		return nil, reverts.External("quote: %v", err)
	}
	return fee, nil
}

// FeeToken returns the token messaging fees are paid in.
func (c *Coordinator) FeeToken() (mesh.Address, error) {
	s, err := c.Settings()
	if err != nil {
		return mesh.Address{}, err
	}
	return s.FeeToken, nil
}

//
// Setters - state change
//

// SetTrustedRemote sets the coordinator trusted on a remote chain. Only the owner may call.
func (c *Coordinator) SetTrustedRemote(caller mesh.Address, chain uint64, remote mesh.Address) error {
	if err := c.RequireOwner(caller); err != nil {
		return err
	}
	s, err := c.Settings()
	if err != nil {
		return err
	}
	if chain == 0 || chain == s.ChainID {
		return reverts.Invalid("invalid remote chain %d", chain)
	}
	logger.Info("trusted remote set", "chain", chain, "remote", remote)
	if remote.IsZero() {
		c.remotes.Delete(chainKey(chain))
		return nil
	}
	return c.remotes.Upsert(chainKey(chain), remote)
}

// SendToChain escrows amount of token from the caller and sends it with payload to the
// recipient on dst. fee must cover the transport's quote; only the quote is charged.
func (c *Coordinator) SendToChain(
	caller mesh.Address,
	dst uint64,
	token mesh.Address,
	amount *big.Int,
	recipient mesh.Address,
	payload []byte,
	fee *big.Int,
) (*Intent, error) {
	s, err := c.Settings()
	if err != nil {
		return nil, err
	}
	return c.send(s, caller, caller, dst, token, amount, recipient, payload, fee)
}

// send escrows amount of token from sender and charges the messaging fee to payer.
func (c *Coordinator) send(
	s *Settings,
	sender, payer mesh.Address,
	dst uint64,
	token mesh.Address,
	amount *big.Int,
	recipient mesh.Address,
	payload []byte,
	fee *big.Int,
) (*Intent, error) {
	remote, err := c.TrustedRemote(dst)
	if err != nil {
		return nil, err
	}
	if remote.IsZero() {
		return nil, reverts.State("no trusted remote for chain %d", dst)
	}
	if amount.Sign() < 0 {
		return nil, reverts.Invalid("negative amount")
	}
	if recipient.IsZero() {
		return nil, reverts.Invalid("zero recipient")
	}
	if err := c.chargeFee(s, payer, dst, payload, fee); err != nil {
		return nil, err
	}
	if amount.Sign() > 0 && sender != c.addr {
		if err := c.token.Transfer(token, sender, c.addr, amount); err != nil {
			return nil, errors.WithMessage(err, "escrow")
		}
	}

	ledger, err := c.Ledger(dst)
	if err != nil {
		return nil, err
	}
	ledger.NextNonce++
	intent := &Intent{
		Nonce:      ledger.NextNonce,
		DstChainID: dst,
		Sender:     sender,
		Token:      token,
		Amount:     new(big.Int).Set(amount),
		Recipient:  recipient,
		Payload:    payload,
		Status:     StatusInFlight,
		Attempts:   1,
	}
	if err := c.ledgers.Upsert(chainKey(dst), ledger); err != nil {
		return nil, err
	}
	if err := c.intents.Insert(intentKey{dst, intent.Nonce}, intent); err != nil {
		return nil, err
	}
	c.outbox.add(c.message(s, intent))
	metricsIntents().AddWithLabel(1, map[string]string{"status": "sent"})
	logger.Debug("intent created", "dst", dst, "nonce", intent.Nonce, "token", token, "amount", amount, "recipient", recipient)
	return intent, nil
}

func (c *Coordinator) chargeFee(s *Settings, payer mesh.Address, dst uint64, payload []byte, fee *big.Int) error {
	quote, err := c.Quote(dst, payload)
	if err != nil {
		return err
	}
	if fee == nil {
		fee = new(big.Int)
	}
	if fee.Cmp(quote) < 0 {
		return reverts.External("messaging fee %v below quote %v", fee, quote)
	}
	if quote.Sign() == 0 {
		return nil
	}
	if refund := new(big.Int).Sub(fee, quote); refund.Sign() > 0 {
		logger.Debug("excess messaging fee refunded", "payer", payer, "refund", refund)
	}
	return c.token.Transfer(s.FeeToken, payer, s.Transport, quote)
}

func (c *Coordinator) message(s *Settings, intent *Intent) *Message {
	return &Message{
		SrcChainID: s.ChainID,
		DstChainID: intent.DstChainID,
		Nonce:      intent.Nonce,
		Sender:     c.addr,
		Token:      intent.Token,
		Amount:     new(big.Int).Set(intent.Amount),
		Recipient:  intent.Recipient,
		Payload:    intent.Payload,
	}
}

func (c *Coordinator) requireTransport(caller mesh.Address) (*Settings, error) {
	s, err := c.Settings()
	if err != nil {
		return nil, err
	}
	if caller != s.Transport {
		return nil, reverts.Unauthorized("caller %v is not the transport", caller)
	}
	return s, nil
}

func (c *Coordinator) getExisting(dst, nonce uint64) (*Intent, error) {
	intent, err := c.Intent(dst, nonce)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, errUnknownIntent
	}
	return intent, nil
}

// OnDeliveryAck marks an intent delivered and releases its escrow. Repeated acks are no-ops.
func (c *Coordinator) OnDeliveryAck(caller mesh.Address, dst, nonce uint64) error {
	if _, err := c.requireTransport(caller); err != nil {
		return err
	}
	intent, err := c.getExisting(dst, nonce)
	if err != nil {
		return err
	}
	switch intent.Status {
	case StatusDelivered:
		return nil
	case StatusRefunded:
		logger.Error("ack for a refunded intent", "dst", dst, "nonce", nonce)
		return reverts.State("intent %d to chain %d was refunded", nonce, dst)
	}
	intent.Status = StatusDelivered
	if intent.Amount.Sign() > 0 {
		// the tokens now exist on the destination chain
		if err := c.token.Burn(intent.Token, c.addr, intent.Amount); err != nil {
			return err
		}
	}
	metricsIntents().AddWithLabel(1, map[string]string{"status": "delivered"})
	logger.Debug("intent delivered", "dst", dst, "nonce", nonce)
	return c.intents.Update(intentKey{dst, nonce}, intent)
}

// OnDeliveryFailure marks an in-flight intent failed, making it retriable.
func (c *Coordinator) OnDeliveryFailure(caller mesh.Address, dst, nonce uint64) error {
	if _, err := c.requireTransport(caller); err != nil {
		return err
	}
	intent, err := c.getExisting(dst, nonce)
	if err != nil {
		return err
	}
	if intent.Status != StatusInFlight {
		return nil
	}
	intent.Status = StatusFailed
	metricsIntents().AddWithLabel(1, map[string]string{"status": "failed"})
	logger.Info("intent failed", "dst", dst, "nonce", nonce, "attempts", intent.Attempts)
	return c.intents.Update(intentKey{dst, nonce}, intent)
}

// Retry sends a failed intent again under the same nonce. The caller pays the fee.
func (c *Coordinator) Retry(caller mesh.Address, dst, nonce uint64, fee *big.Int) (*Intent, error) {
	s, err := c.Settings()
	if err != nil {
		return nil, err
	}
	intent, err := c.getExisting(dst, nonce)
	if err != nil {
		return nil, err
	}
	if intent.Status != StatusFailed {
		return nil, reverts.State("intent %d to chain %d is %v", nonce, dst, intent.Status)
	}
	if err := c.chargeFee(s, caller, dst, intent.Payload, fee); err != nil {
		return nil, err
	}
	intent.Status = StatusInFlight
	intent.Attempts++
	if err := c.intents.Update(intentKey{dst, nonce}, intent); err != nil {
		return nil, err
	}
	c.outbox.add(c.message(s, intent))
	metricsIntents().AddWithLabel(1, map[string]string{"status": "retried"})
	logger.Debug("intent retried", "dst", dst, "nonce", nonce, "attempts", intent.Attempts)
	return intent, nil
}

// Refund cancels a failed intent and returns its escrow to the sender. The owner may call,
// and so may the sender of the intent.
func (c *Coordinator) Refund(caller mesh.Address, dst, nonce uint64) (*Intent, error) {
	intent, err := c.getExisting(dst, nonce)
	if err != nil {
		return nil, err
	}
	if caller != intent.Sender {
		if err := c.RequireOwner(caller); err != nil {
			return nil, err
		}
	}
	if intent.Status != StatusFailed {
		return nil, reverts.State("intent %d to chain %d is %v", nonce, dst, intent.Status)
	}
	intent.Status = StatusRefunded
	if intent.Amount.Sign() > 0 && intent.Sender != c.addr {
		if err := c.token.Transfer(intent.Token, c.addr, intent.Sender, intent.Amount); err != nil {
			return nil, errors.WithMessage(err, "refund")
		}
	}
	if err := c.intents.Update(intentKey{dst, nonce}, intent); err != nil {
		return nil, err
	}
	metricsIntents().AddWithLabel(1, map[string]string{"status": "refunded"})
	logger.Info("intent refunded", "dst", dst, "nonce", nonce, "sender", intent.Sender, "amount", intent.Amount)
	return intent, nil
}
