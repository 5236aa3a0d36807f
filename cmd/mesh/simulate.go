// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/boostmesh/mesh/genesis"
)

func simulateAction(ctx *cli.Context) error {
	cfg, err := loadGenesis(ctx)
	if err != nil {
		return err
	}
	epochs := ctx.Int(epochsFlag.Name)
	if epochs <= 0 {
		return errors.Errorf("invalid epochs %d", epochs)
	}

	open, closeAll := memOpener()
	defer closeAll()
	clock := clockwork.NewFakeClockAt(time.Unix(int64(cfg.LaunchTime), 0))
	net, err := genesis.Build(cfg, open, clock)
	if err != nil {
		return errors.WithMessage(err, "build network")
	}

	s := newScenario(net, clock, scenarioOptions{
		Users:          ctx.Int(usersFlag.Name),
		DropEvery:      ctx.Int(dropEveryFlag.Name),
		DuplicateEvery: ctx.Int(duplicateEveryFlag.Name),
		Reorder:        ctx.Bool(reorderFlag.Name),
	})
	if err := s.setup(); err != nil {
		return errors.WithMessage(err, "setup")
	}

	fmt.Println(">> Simulating epochs <<")
	bar := pb.New(epochs).
		SetMaxWidth(90).
		Start()
	defer func() { bar.NotPrint = true }()

	reports := make([]*epochReport, 0, epochs)
	for i := 0; i < epochs; i++ {
		report, err := s.runEpoch(i)
		if err != nil {
			return err
		}
		reports = append(reports, report)
		bar.Increment()
	}
	bar.Finish()

	printReports(os.Stdout, net.IDs(), reports)
	return nil
}

func printReports(out io.Writer, chains []uint64, reports []*epochReport) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprint(w, "epoch")
	for _, id := range chains {
		fmt.Fprintf(w, "\tearmarked@%d\tclaimed@%d", id, id)
	}
	fmt.Fprintln(w, "\tminted\tfees\tretried\tdelivered\treplayed\tdropped")
	for _, r := range reports {
		fmt.Fprintf(w, "%d", r.Epoch)
		for _, id := range chains {
			fmt.Fprintf(w, "\t%v\t%v", r.Earmarked[id], r.Claimed[id])
		}
		fmt.Fprintf(w, "\t%v\t%v\t%d\t%d\t%d\t%d\n",
			r.Minted, r.FeesMoved, r.Retried,
			r.BridgeStats.Delivered, r.BridgeStats.Replayed, r.BridgeStats.Dropped)
	}
	w.Flush()
}
