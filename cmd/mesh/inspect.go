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

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/boostmesh/mesh/builtin"
	"github.com/boostmesh/mesh/genesis"
	"github.com/boostmesh/mesh/mesh"
)

func inspectAction(ctx *cli.Context) error {
	cfg, err := loadGenesis(ctx)
	if err != nil {
		return err
	}
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return errors.Errorf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name)
	}
	opener := &dbOpener{dir: dataDir}
	defer opener.close()

	network, err := genesis.Build(cfg, opener.open, nil)
	if err != nil {
		return errors.WithMessage(err, "build network")
	}
	chain, err := selectChain(ctx, network)
	if err != nil {
		return err
	}
	return inspect(os.Stdout, network, chain, ctx.Bool(dumpFlag.Name))
}

func inspect(out io.Writer, network *genesis.Network, chain *genesis.Chain, dump bool) error {
	return chain.View(func(c *builtin.Contracts, now uint64) error {
		fmt.Fprintf(out, "chain %d, epoch %d\n\n", chain.ID(), c.Distributor.CurrentEpoch(now))
		var dumps []any

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "pid\tname\tkind\tdst\tshutdown\tdeposits\tstaked\tnotified\tpaid")
		length, err := c.Registry.PoolLength()
		if err != nil {
			return err
		}
		for pid := uint64(0); pid < length; pid++ {
			p, err := c.Registry.PoolInfo(pid)
			if err != nil {
				return err
			}
			deposits, err := c.Registry.TotalDeposits(pid)
			if err != nil {
				return err
			}
			acc, err := c.Accumulator.Get(p.Rewards)
			if err != nil {
				return err
			}
			name := ""
			if int(pid) < len(chain.Config.Pools) {
				name = chain.Config.Pools[pid].Name
			}
			staked, notified, paid := mesh.Big(nil), mesh.Big(nil), mesh.Big(nil)
			if acc != nil {
				staked, notified, paid = acc.TotalSupply, acc.TotalNotified, acc.TotalPaid
			}
			fmt.Fprintf(w, "%d\t%s\t%v\t%d\t%v\t%v\t%v\t%v\t%v\n",
				pid, name, p.Kind, p.DstChainID, p.Shutdown, deposits, staked, notified, paid)
			dumps = append(dumps, p, acc)
		}
		w.Flush()

		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "remote\tnonce\tfee debt\tsettled\tdistributed\tpending")
		for _, id := range network.IDs() {
			if id == chain.ID() {
				continue
			}
			ledger, err := c.Settlement.Ledger(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%d\t%d\t%v\t%v\t%v\t%v\n",
				id, ledger.NextNonce, ledger.FeeDebt, ledger.SettledFeeDebt, ledger.DistributedFeeDebt, ledger.Pending())
			dumps = append(dumps, ledger)
		}
		w.Flush()

		if dump {
			fmt.Fprintln(out)
			spew.Fdump(out, dumps...)
		}
		return nil
	})
}
