// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chains

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/api/utils"
	"github.com/boostmesh/mesh/builtin"
	"github.com/boostmesh/mesh/mesh"
)

// Chain is the settlement state with a remote chain.
type Chain struct {
	ChainID            uint64                `json:"chainId"`
	TrustedRemote      mesh.Address          `json:"trustedRemote"`
	RemoteDistributor  mesh.Address          `json:"remoteDistributor"`
	LastNonce          uint64                `json:"lastNonce"`
	FeeDebt            *math.HexOrDecimal256 `json:"feeDebt"`
	SettledFeeDebt     *math.HexOrDecimal256 `json:"settledFeeDebt"`
	DistributedFeeDebt *math.HexOrDecimal256 `json:"distributedFeeDebt"`
	PendingFeeDebt     *math.HexOrDecimal256 `json:"pendingFeeDebt"`
	AvailableFees      *math.HexOrDecimal256 `json:"availableFees"`
}

// Intent is an outbound message.
type Intent struct {
	Nonce     uint64                `json:"nonce"`
	Sender    mesh.Address          `json:"sender"`
	Token     mesh.Address          `json:"token"`
	Amount    *math.HexOrDecimal256 `json:"amount"`
	Recipient mesh.Address          `json:"recipient"`
	Payload   hexutil.Bytes         `json:"payload"`
	Type      string                `json:"type"`
	Status    string                `json:"status"`
	Attempts  uint64                `json:"attempts"`
}

type Chains struct {
	chain utils.Viewer
}

func New(chain utils.Viewer) *Chains {
	return &Chains{chain}
}

func (c *Chains) handleGetChain(w http.ResponseWriter, req *http.Request) error {
	id, err := utils.ParseUint("chain", mux.Vars(req)["chain"])
	if err != nil {
		return err
	}
	out := &Chain{ChainID: id}
	if err := c.chain.View(func(contracts *builtin.Contracts, _ uint64) error {
		remote, err := contracts.Settlement.TrustedRemote(id)
		if err != nil {
			return err
		}
		if remote.IsZero() {
			return utils.NotFound(errors.Errorf("chain %d not linked", id))
		}
		out.TrustedRemote = remote
		if out.RemoteDistributor, err = contracts.Distributor.Remote(id); err != nil {
			return err
		}
		ledger, err := contracts.Settlement.Ledger(id)
		if err != nil {
			return err
		}
		out.LastNonce = ledger.NextNonce
		out.FeeDebt = utils.Amount(ledger.FeeDebt)
		out.SettledFeeDebt = utils.Amount(ledger.SettledFeeDebt)
		out.DistributedFeeDebt = utils.Amount(ledger.DistributedFeeDebt)
		out.PendingFeeDebt = utils.Amount(ledger.Pending())
		out.AvailableFees = utils.Amount(ledger.Available())
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, out)
}

func (c *Chains) handleGetIntent(w http.ResponseWriter, req *http.Request) error {
	vars := mux.Vars(req)
	id, err := utils.ParseUint("chain", vars["chain"])
	if err != nil {
		return err
	}
	nonce, err := utils.ParseUint("nonce", vars["nonce"])
	if err != nil {
		return err
	}
	var out *Intent
	if err := c.chain.View(func(contracts *builtin.Contracts, _ uint64) error {
		intent, err := contracts.Settlement.Intent(id, nonce)
		if err != nil {
			return err
		}
		if intent == nil {
			return utils.NotFound(errors.Errorf("no intent %d to chain %d", nonce, id))
		}
		out = &Intent{
			Nonce:     intent.Nonce,
			Sender:    intent.Sender,
			Token:     intent.Token,
			Amount:    utils.Amount(intent.Amount),
			Recipient: intent.Recipient,
			Payload:   intent.Payload,
			Status:    intent.Status.String(),
			Attempts:  intent.Attempts,
		}
		if typ, err := settlementType(intent.Payload); err == nil {
			out.Type = typ
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, out)
}

func (c *Chains) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{chain}").
		Methods(http.MethodGet).
		Name("GET /chains/{chain}").
		HandlerFunc(utils.WrapHandlerFunc(c.handleGetChain))
	sub.Path("/{chain}/intents/{nonce}").
		Methods(http.MethodGet).
		Name("GET /chains/{chain}/intents/{nonce}").
		HandlerFunc(utils.WrapHandlerFunc(c.handleGetIntent))
}
