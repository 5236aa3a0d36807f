// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package epochs

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/api/utils"
	"github.com/boostmesh/mesh/builtin"
	"github.com/boostmesh/mesh/mesh"
)

// Weight is the voted weight of one pool.
type Weight struct {
	Pid    uint64                `json:"pid"`
	Weight *math.HexOrDecimal256 `json:"weight"`
}

// Epoch is the distribution state of an epoch in one token.
type Epoch struct {
	Epoch        uint64                `json:"epoch"`
	CurrentEpoch uint64                `json:"currentEpoch"`
	Token        mesh.Address          `json:"token"`
	Budget       *math.HexOrDecimal256 `json:"budget"`
	Carried      *math.HexOrDecimal256 `json:"carried"`
	TotalWeight  *math.HexOrDecimal256 `json:"totalWeight"`
	Processed    bool                  `json:"processed"`
	Pids         []uint64              `json:"pids"`
	Votes        []*Weight             `json:"votes"`
}

// Record is the reward record of one pool in an epoch.
type Record struct {
	Epoch   uint64                `json:"epoch"`
	Pid     uint64                `json:"pid"`
	Amount  *math.HexOrDecimal256 `json:"amount"`
	Weight  *math.HexOrDecimal256 `json:"weight"`
	Status  string                `json:"status"`
	Overdue bool                  `json:"overdue"`
}

type Epochs struct {
	chain utils.Viewer
}

func New(chain utils.Viewer) *Epochs {
	return &Epochs{chain}
}

func parseEpochToken(vars map[string]string) (uint64, mesh.Address, error) {
	epoch, err := utils.ParseUint("epoch", vars["epoch"])
	if err != nil {
		return 0, mesh.Address{}, err
	}
	token, err := utils.ParseAddress("token", vars["token"])
	if err != nil {
		return 0, mesh.Address{}, err
	}
	return epoch, token, nil
}

func (e *Epochs) handleGetEpoch(w http.ResponseWriter, req *http.Request) error {
	epoch, token, err := parseEpochToken(mux.Vars(req))
	if err != nil {
		return err
	}
	out := &Epoch{Epoch: epoch, Token: token, Votes: []*Weight{}}
	if err := e.chain.View(func(c *builtin.Contracts, now uint64) error {
		out.CurrentEpoch = c.Distributor.CurrentEpoch(now)
		b, err := c.Distributor.Budget(epoch, token)
		if err != nil {
			return err
		}
		out.Budget = utils.Amount(b.Amount)
		out.Carried = utils.Amount(b.Carried)
		out.TotalWeight = utils.Amount(b.TotalWeight)
		out.Processed = b.Processed
		out.Pids = b.Pids
		vote, err := c.Distributor.Vote(epoch)
		if err != nil || vote == nil {
			return err
		}
		for i, pid := range vote.Pids {
			out.Votes = append(out.Votes, &Weight{Pid: pid, Weight: utils.Amount(vote.Weights[i])})
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, out)
}

func (e *Epochs) handleGetRecord(w http.ResponseWriter, req *http.Request) error {
	vars := mux.Vars(req)
	epoch, token, err := parseEpochToken(vars)
	if err != nil {
		return err
	}
	pid, err := utils.ParseUint("pid", vars["pid"])
	if err != nil {
		return err
	}
	out := &Record{Epoch: epoch, Pid: pid}
	if err := e.chain.View(func(c *builtin.Contracts, now uint64) error {
		r, err := c.Distributor.Record(epoch, pid, token)
		if err != nil {
			return err
		}
		if r == nil {
			return utils.NotFound(errors.Errorf("no record for pool %d in epoch %d", pid, epoch))
		}
		out.Amount = utils.Amount(r.Amount)
		out.Weight = utils.Amount(r.Weight)
		out.Status = r.Status.String()
		out.Overdue, err = c.Distributor.IsOverdue(epoch, pid, token, now)
		return err
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, out)
}

func (e *Epochs) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{epoch}/{token}").
		Methods(http.MethodGet).
		Name("GET /epochs/{epoch}/{token}").
		HandlerFunc(utils.WrapHandlerFunc(e.handleGetEpoch))
	sub.Path("/{epoch}/{token}/pools/{pid}").
		Methods(http.MethodGet).
		Name("GET /epochs/{epoch}/{token}/pools/{pid}").
		HandlerFunc(utils.WrapHandlerFunc(e.handleGetRecord))
}
