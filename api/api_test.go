// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/api/chains"
	"github.com/boostmesh/mesh/api/epochs"
	"github.com/boostmesh/mesh/api/params"
	"github.com/boostmesh/mesh/api/pools"
	"github.com/boostmesh/mesh/builtin"
	"github.com/boostmesh/mesh/builtin/fees"
	"github.com/boostmesh/mesh/genesis"
	"github.com/boostmesh/mesh/kv"
	"github.com/boostmesh/mesh/lvldb"
	"github.com/boostmesh/mesh/metrics"
)

func TestMain(m *testing.M) {
	metrics.InitializePrometheusMetrics()
	os.Exit(m.Run())
}

func newServer(t *testing.T) (*genesis.Network, *httptest.Server) {
	stores := make(map[uint64]kv.Store)
	open := func(chain uint64) (kv.Store, error) {
		if db, ok := stores[chain]; ok {
			return db, nil
		}
		db, err := lvldb.NewMem()
		if err != nil {
			return nil, err
		}
		t.Cleanup(func() { db.Close() })
		stores[chain] = db
		return db, nil
	}
	cfg := genesis.Devnet()
	clock := clockwork.NewFakeClockAt(time.Unix(int64(cfg.LaunchTime), 0))
	n, err := genesis.Build(cfg, open, clock)
	require.NoError(t, err)

	ts := httptest.NewServer(New(n.Primary(), Options{AllowedOrigins: "*", EnableMetrics: true}))
	t.Cleanup(ts.Close)
	return n, ts
}

func httpGet(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url) //#nosec G107
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return body, res.StatusCode
}

func getJSON(t *testing.T, url string, v any) {
	body, code := httpGet(t, url)
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, v))
}

func TestPools(t *testing.T) {
	n, ts := newServer(t)
	alice := genesis.Label("alice").Address()
	pool := n.Config.Chains[0].Pools[1]

	require.NoError(t, n.Primary().Exec(t.Name(), func(c *builtin.Contracts, _ uint64) error {
		require.NoError(t, c.Token.Mint(pool.LPToken(), alice, big.NewInt(100)))
		return c.Registry.Deposit(alice, 1, big.NewInt(100), true)
	}))

	var all []*pools.Pool
	getJSON(t, ts.URL+"/pools", &all)
	require.Len(t, all, 3)
	assert.Equal(t, "siphon", all[0].Kind)
	assert.Equal(t, uint64(2), all[0].DstChainID)
	assert.Equal(t, "standard", all[1].Kind)
	assert.Equal(t, "no-deposit", all[2].Kind)

	var one pools.Pool
	getJSON(t, ts.URL+"/pools/1", &one)
	assert.Equal(t, pool.LPToken(), one.LPToken)
	assert.Equal(t, big.NewInt(100), (*big.Int)(one.Staked))

	var acc pools.Account
	getJSON(t, fmt.Sprintf("%s/pools/1/accounts/%s", ts.URL, alice), &acc)
	assert.Equal(t, big.NewInt(100), (*big.Int)(acc.Staked))
	assert.Equal(t, int64(0), (*big.Int)(acc.Unstaked).Int64())

	_, code := httpGet(t, ts.URL+"/pools/9")
	assert.Equal(t, http.StatusNotFound, code)
	_, code = httpGet(t, ts.URL+"/pools/x")
	assert.Equal(t, http.StatusBadRequest, code)
	_, code = httpGet(t, ts.URL+"/pools/1/accounts/0x01")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestParams(t *testing.T) {
	n, ts := newServer(t)

	var cfg fees.Config
	getJSON(t, ts.URL+"/fees", &cfg)
	assert.Equal(t, fees.DefaultConfig().LockIncentive, cfg.LockIncentive)
	assert.Equal(t, fees.DefaultConfig().StakerIncentive, cfg.StakerIncentive)

	var m params.Multiplier
	getJSON(t, fmt.Sprintf("%s/multipliers/%s", ts.URL, n.Owner), &m)
	assert.Equal(t, n.Owner, m.Address)
	assert.Equal(t, uint64(10000), m.Denominator)
}

func TestEpochs(t *testing.T) {
	n, ts := newServer(t)
	l1 := n.Primary()
	crv := n.Config.Tokens.Reward.Address()

	var epoch uint64
	require.NoError(t, l1.Exec(t.Name(), func(c *builtin.Contracts, now uint64) error {
		epoch = c.Distributor.CurrentEpoch(now)
		return c.Distributor.QueueRewards(n.Owner, epoch, 1, crv, big.NewInt(500), now)
	}))

	var e epochs.Epoch
	getJSON(t, fmt.Sprintf("%s/epochs/%d/%s", ts.URL, epoch, crv), &e)
	assert.Equal(t, epoch, e.CurrentEpoch)
	assert.False(t, e.Processed)
	assert.Empty(t, e.Votes)

	var r epochs.Record
	getJSON(t, fmt.Sprintf("%s/epochs/%d/%s/pools/1", ts.URL, epoch, crv), &r)
	assert.Equal(t, big.NewInt(500), (*big.Int)(r.Amount))
	assert.Equal(t, "pending", r.Status)
	assert.False(t, r.Overdue)

	_, code := httpGet(t, fmt.Sprintf("%s/epochs/%d/%s/pools/0", ts.URL, epoch, crv))
	assert.Equal(t, http.StatusNotFound, code)
	_, code = httpGet(t, fmt.Sprintf("%s/epochs/%d/crv", ts.URL, epoch))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestChains(t *testing.T) {
	_, ts := newServer(t)

	var c chains.Chain
	getJSON(t, ts.URL+"/chains/2", &c)
	assert.Equal(t, uint64(2), c.ChainID)
	assert.False(t, c.TrustedRemote.IsZero())
	assert.False(t, c.RemoteDistributor.IsZero())
	assert.Equal(t, uint64(0), c.LastNonce)
	assert.Equal(t, int64(0), (*big.Int)(c.PendingFeeDebt).Int64())

	_, code := httpGet(t, ts.URL+"/chains/9")
	assert.Equal(t, http.StatusNotFound, code)
	_, code = httpGet(t, ts.URL+"/chains/2/intents/0")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetrics(t *testing.T) {
	_, ts := newServer(t)

	_, code := httpGet(t, ts.URL+"/pools/0")
	assert.Equal(t, http.StatusOK, code)

	body, code := httpGet(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "api_request_count")
}
