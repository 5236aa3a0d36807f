// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/boostmesh/mesh/log"
)

var (
	version   string
	gitCommit string
	gitTag    string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Mesh",
		Usage:     "Multi-chain liquidity incentive accounting",
		Copyright: "2025 The Mesh developers",
		Flags: []cli.Flag{
			verbosityFlag,
			jsonLogsFlag,
		},
		Before: func(ctx *cli.Context) error {
			initLogger(ctx)
			return nil
		},
		Commands: []cli.Command{
			{
				Name:  "simulate",
				Usage: "run incentive epochs over an in-memory network",
				Flags: []cli.Flag{
					genesisFlag,
					epochsFlag,
					usersFlag,
					dropEveryFlag,
					duplicateEveryFlag,
					reorderFlag,
				},
				Action: simulateAction,
			},
			{
				Name:  "serve",
				Usage: "host a network and serve the API of one of its chains",
				Flags: []cli.Flag{
					genesisFlag,
					dataDirFlag,
					chainFlag,
					apiAddrFlag,
					apiCorsFlag,
					enableAPILogsFlag,
					apiSlowQueriesThresholdFlag,
					enableMetricsFlag,
					pumpIntervalFlag,
				},
				Action: serveAction,
			},
			{
				Name:  "inspect",
				Usage: "print the pools and settlement ledgers of a chain",
				Flags: []cli.Flag{
					genesisFlag,
					dataDirFlag,
					chainFlag,
					dumpFlag,
				},
				Action: inspectAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("exited with error", "err", err)
		os.Exit(1)
	}
}
