// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package settlement

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/mesh"
)

// PayloadType tags the content of a message payload.
type PayloadType uint8

const (
	// PayloadRewards carries epoch rewards for pools on the destination chain.
	PayloadRewards PayloadType = iota + 1
	// PayloadFees notifies the destination of fees collected on the source chain.
	PayloadFees
	// PayloadFeeSettlement carries the tokens of previously notified fees.
	PayloadFeeSettlement
	// PayloadIssuance returns issuance minted for sidechain fees.
	PayloadIssuance
)

func (t PayloadType) String() string {
	switch t {
	case PayloadRewards:
		return "rewards"
	case PayloadFees:
		return "fees"
	case PayloadFeeSettlement:
		return "fee-settlement"
	case PayloadIssuance:
		return "issuance"
	default:
		return "unknown"
	}
}

// Message is what travels between chains. The transport treats it as opaque.
type Message struct {
	SrcChainID uint64
	DstChainID uint64
	Nonce      uint64
	Sender     mesh.Address // coordinator on the source chain
	Token      mesh.Address
	Amount     *big.Int // escrowed on the source, minted to Recipient on delivery
	Recipient  mesh.Address
	Payload    []byte
}

// Receipt acknowledges that the transport accepted a message.
type Receipt struct {
	ID    string
	Nonce uint64
}

// Transport is the asynchronous cross-chain channel.
type Transport interface {
	// Quote returns the messaging fee for sending payload to dst.
	Quote(dst uint64, payload []byte) (*big.Int, error)
	Send(msg *Message) (*Receipt, error)
}

type envelope struct {
	Type PayloadType
	Data []byte
}

// RewardItem is the reward of one pool.
type RewardItem struct {
	Pid    uint64
	Amount *big.Int
}

// Rewards is the payload of PayloadRewards.
type Rewards struct {
	Epoch uint64
	Token mesh.Address
	Items []RewardItem
}

// Total returns the sum of all items.
func (r *Rewards) Total() *big.Int {
	total := new(big.Int)
	for _, item := range r.Items {
		total.Add(total, item.Amount)
	}
	return total
}

// Fees is the payload of PayloadFees and PayloadFeeSettlement.
type Fees struct {
	Amount *big.Int
}

// Issuance is the payload of PayloadIssuance.
type Issuance struct {
	Amount *big.Int // issuance carried by the message
	Gross  *big.Int // sidechain reward it was minted for
}

// EncodePayload encodes a typed payload.
func EncodePayload(typ PayloadType, v any) ([]byte, error) {
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}
	return rlp.EncodeToBytes(&envelope{Type: typ, Data: data})
}

// PayloadTypeOf returns the type of an encoded payload.
func PayloadTypeOf(payload []byte) (PayloadType, error) {
	var env envelope
	if err := rlp.DecodeBytes(payload, &env); err != nil {
		return 0, errors.Wrap(err, "decode envelope")
	}
	return env.Type, nil
}

// DecodePayload decodes payload into v, which must match the expected type.
func DecodePayload(payload []byte, expected PayloadType, v any) error {
	var env envelope
	if err := rlp.DecodeBytes(payload, &env); err != nil {
		return errors.Wrap(err, "decode envelope")
	}
	if env.Type != expected {
		return errors.Errorf("payload type %v, want %v", env.Type, expected)
	}
	return errors.Wrap(rlp.DecodeBytes(env.Data, v), "decode payload")
}
