// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package params

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"

	"github.com/boostmesh/mesh/api/utils"
	"github.com/boostmesh/mesh/builtin"
	"github.com/boostmesh/mesh/builtin/fees"
	"github.com/boostmesh/mesh/mesh"
)

// Multiplier is the reward multiplier of an account, in basis points.
type Multiplier struct {
	Address     mesh.Address          `json:"address"`
	Multiplier  *math.HexOrDecimal256 `json:"multiplier"`
	Denominator uint64                `json:"denominator"`
}

type Params struct {
	chain utils.Viewer
}

func New(chain utils.Viewer) *Params {
	return &Params{chain}
}

func (p *Params) handleGetFees(w http.ResponseWriter, _ *http.Request) error {
	var cfg *fees.Config
	if err := p.chain.View(func(c *builtin.Contracts, _ uint64) (err error) {
		cfg, err = c.Fees.Get()
		return
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, cfg)
}

func (p *Params) handleGetMultiplier(w http.ResponseWriter, req *http.Request) error {
	addr, err := utils.ParseAddress("address", mux.Vars(req)["address"])
	if err != nil {
		return err
	}
	m := &Multiplier{Address: addr, Denominator: mesh.MultiplierDenominator}
	if err := p.chain.View(func(c *builtin.Contracts, _ uint64) error {
		v, err := c.Multiplier.Get(addr)
		m.Multiplier = utils.Amount(v)
		return err
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, m)
}

func (p *Params) Mount(root *mux.Router, pathPrefix string) {
	sub := root
	if pathPrefix != "" {
		sub = root.PathPrefix(pathPrefix).Subrouter()
	}

	sub.Path("/fees").
		Methods(http.MethodGet).
		Name("GET /fees").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetFees))
	sub.Path("/multipliers/{address}").
		Methods(http.MethodGet).
		Name("GET /multipliers/{address}").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetMultiplier))
}
