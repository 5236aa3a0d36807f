// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	genesisFlag = cli.StringFlag{
		Name:  "genesis",
		Usage: "path to a genesis file, the development network when empty",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for chain databases",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-9)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}
	chainFlag = cli.Uint64Flag{
		Name:  "chain",
		Usage: "chain to serve or inspect, the primary chain when zero",
	}
	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "localhost:8669",
		Usage: "API service listening address",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Value: "",
		Usage: "comma separated list of domains from which to accept cross origin requests to API",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enables API requests logging",
	}
	apiSlowQueriesThresholdFlag = cli.Uint64Flag{
		Name:  "api-slow-queries-threshold",
		Value: 0,
		Usage: "all queries with duration (ms) above the threshold will be logged",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection and the /metrics endpoint",
	}
	pumpIntervalFlag = cli.DurationFlag{
		Name:  "pump-interval",
		Value: defaultPumpInterval,
		Usage: "interval between bridge deliveries",
	}
	epochsFlag = cli.IntFlag{
		Name:  "epochs",
		Value: 8,
		Usage: "number of epochs to simulate",
	}
	usersFlag = cli.IntFlag{
		Name:  "users",
		Value: 3,
		Usage: "number of depositors per pool",
	}
	dropEveryFlag = cli.IntFlag{
		Name:  "drop-every",
		Usage: "drop the first bridge message of every n-th epoch, zero for never",
	}
	duplicateEveryFlag = cli.IntFlag{
		Name:  "duplicate-every",
		Usage: "duplicate the first bridge message of every n-th epoch, zero for never",
	}
	reorderFlag = cli.BoolFlag{
		Name:  "reorder",
		Usage: "deliver every bridge batch in reverse order",
	}
	dumpFlag = cli.BoolFlag{
		Name:  "dump",
		Usage: "dump raw contract state",
	}
)
