// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package settlement

import (
	"encoding/binary"
	"math/big"

	"github.com/boostmesh/mesh/mesh"
)

// Status is the delivery state of an intent.
type Status uint8

const (
	StatusInFlight Status = iota + 1
	StatusDelivered
	StatusFailed
	// StatusRefunded intents failed and returned their escrow to the sender.
	StatusRefunded
)

func (s Status) String() string {
	switch s {
	case StatusInFlight:
		return "in-flight"
	case StatusDelivered:
		return "delivered"
	case StatusFailed:
		return "failed"
	case StatusRefunded:
		return "refunded"
	default:
		return "none"
	}
}

// Intent is an outbound message and its delivery state.
type Intent struct {
	Nonce      uint64
	DstChainID uint64
	Sender     mesh.Address // account the tokens were escrowed from
	Token      mesh.Address
	Amount     *big.Int
	Recipient  mesh.Address
	Payload    []byte
	Status     Status
	Attempts   uint64
}

// Ledger is the per remote chain account of the coordinator.
type Ledger struct {
	NextNonce uint64
	// FeeDebt is the total of fees the remote chain reported.
	FeeDebt *big.Int
	// SettledFeeDebt is the total of fee tokens that arrived from the remote chain.
	SettledFeeDebt *big.Int
	// DistributedFeeDebt is the total of fees distributed to the shared accumulators.
	DistributedFeeDebt *big.Int
}

func newLedger() *Ledger {
	return &Ledger{
		FeeDebt:            new(big.Int),
		SettledFeeDebt:     new(big.Int),
		DistributedFeeDebt: new(big.Int),
	}
}

// Pending returns the fees reported but not distributed yet.
func (l *Ledger) Pending() *big.Int {
	return new(big.Int).Sub(l.FeeDebt, l.DistributedFeeDebt)
}

// Available returns the fee tokens arrived but not distributed yet.
func (l *Ledger) Available() *big.Int {
	return new(big.Int).Sub(l.SettledFeeDebt, l.DistributedFeeDebt)
}

// IssuancePool accounts for the issuance the primary chain minted for fees sent from this
// chain. Claims on this chain are paid from it at the rate Received/Gross.
type IssuancePool struct {
	Received *big.Int // issuance that arrived
	Gross    *big.Int // reward the arrived issuance was minted for
	Paid     *big.Int // issuance paid to claimers
}

func newIssuancePool() *IssuancePool {
	return &IssuancePool{Received: new(big.Int), Gross: new(big.Int), Paid: new(big.Int)}
}

// Balance returns the issuance arrived and not paid yet.
func (p *IssuancePool) Balance() *big.Int {
	return new(big.Int).Sub(p.Received, p.Paid)
}

// Settings are fixed at initialization.
type Settings struct {
	ChainID     uint64
	Transport   mesh.Address // caller identity of the transport
	FeeToken    mesh.Address // token messaging fees are paid in
	RewardToken mesh.Address // token sidechain fees are collected in
	Issuance    mesh.Address
}

type chainKey uint64

func (k chainKey) Bytes() []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(k))
}

type intentKey struct {
	chain uint64
	nonce uint64
}

func (k intentKey) Bytes() []byte {
	return binary.BigEndian.AppendUint64(binary.BigEndian.AppendUint64(nil, k.chain), k.nonce)
}
