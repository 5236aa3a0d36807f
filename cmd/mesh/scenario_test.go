// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostmesh/mesh/genesis"
)

func newTestScenario(t *testing.T, opts scenarioOptions) *scenario {
	open, closeAll := memOpener()
	t.Cleanup(closeAll)
	cfg := genesis.Devnet()
	clock := clockwork.NewFakeClockAt(time.Unix(int64(cfg.LaunchTime), 0))
	net, err := genesis.Build(cfg, open, clock)
	require.NoError(t, err)

	s := newScenario(net, clock, opts)
	require.NoError(t, s.setup())
	return s
}

func TestScenario(t *testing.T) {
	s := newTestScenario(t, scenarioOptions{Users: 2})

	var epochs []uint64
	for i := 0; i < 3; i++ {
		report, err := s.runEpoch(i)
		require.NoError(t, err)
		epochs = append(epochs, report.Epoch)

		assert.Equal(t, 0, report.Retried)
		for _, id := range s.net.IDs() {
			assert.True(t, report.Earmarked[id].Sign() > 0, "chain %d earmarked", id)
			assert.True(t, report.Claimed[id].Sign() > 0, "chain %d claimed", id)
		}
		assert.True(t, report.Minted.Sign() > 0)
		assert.True(t, report.FeesMoved.Sign() > 0)
	}
	assert.Equal(t, []uint64{epochs[0], epochs[0] + 1, epochs[0] + 2}, epochs)
	assert.Equal(t, 0, s.net.Bridge.Pending())
}

func TestScenarioWithFaults(t *testing.T) {
	s := newTestScenario(t, scenarioOptions{Users: 1, DropEvery: 1, DuplicateEvery: 2, Reorder: true})

	var last *epochReport
	for i := 0; i < 2; i++ {
		report, err := s.runEpoch(i)
		require.NoError(t, err)
		assert.True(t, report.Retried > 0)
		last = report
	}
	assert.Equal(t, 2, last.BridgeStats.Dropped)
	assert.Equal(t, 1, last.BridgeStats.Replayed)
	assert.Equal(t, 0, s.net.Bridge.Pending())
}

func TestInspect(t *testing.T) {
	s := newTestScenario(t, scenarioOptions{Users: 1})
	_, err := s.runEpoch(0)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, inspect(&out, s.net, s.net.Primary(), true))
	assert.Contains(t, out.String(), "usdc-l2")
	assert.Contains(t, out.String(), "siphon")
	assert.Contains(t, out.String(), "FeeDebt")

	var table bytes.Buffer
	printReports(&table, s.net.IDs(), nil)
	assert.Contains(t, table.String(), "claimed@2")
}
