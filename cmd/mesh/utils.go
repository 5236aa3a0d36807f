// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/boostmesh/mesh/genesis"
	"github.com/boostmesh/mesh/kv"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/lvldb"
)

const defaultPumpInterval = time.Second

func initLogger(ctx *cli.Context) {
	lvl := log.FromLegacyLevel(ctx.GlobalInt(verbosityFlag.Name))
	if ctx.GlobalBool(jsonLogsFlag.Name) {
		log.SetDefault(log.NewLogger(log.NewJSONHandler(os.Stderr, lvl)))
		return
	}
	useColor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	log.SetDefault(log.NewLogger(log.NewTerminalHandler(os.Stderr, lvl, useColor)))
}

func defaultDataDir() string {
	home := homeDir()
	if home == "" {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "org.boostmesh.mesh")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "org.boostmesh.mesh")
	default:
		return filepath.Join(home, ".org.boostmesh.mesh")
	}
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

func loadGenesis(ctx *cli.Context) (*genesis.Config, error) {
	path := ctx.String(genesisFlag.Name)
	if path == "" {
		return genesis.Devnet(), nil
	}
	cfg, err := genesis.Load(path)
	if err != nil {
		return nil, errors.WithMessage(err, "load genesis")
	}
	return cfg, nil
}

// dbOpener opens one leveldb per chain under dir and records them for closing.
type dbOpener struct {
	dir string
	dbs []*lvldb.LevelDB
}

func (o *dbOpener) open(chain uint64) (kv.Store, error) {
	dir := filepath.Join(o.dir, fmt.Sprintf("chain-%d", chain))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrapf(err, "create data dir %v", dir)
	}
	db, err := lvldb.New(dir, lvldb.Options{CacheSize: 64, OpenFilesCacheCapacity: 64})
	if err != nil {
		return nil, errors.Wrapf(err, "open database %v", dir)
	}
	o.dbs = append(o.dbs, db)
	return db, nil
}

func (o *dbOpener) close() {
	for _, db := range o.dbs {
		if err := db.Close(); err != nil {
			log.Warn("failed to close database", "err", err)
		}
	}
}

func memOpener() (genesis.Opener, func()) {
	var dbs []*lvldb.LevelDB
	open := func(uint64) (kv.Store, error) {
		db, err := lvldb.NewMem()
		if err != nil {
			return nil, err
		}
		dbs = append(dbs, db)
		return db, nil
	}
	return open, func() {
		for _, db := range dbs {
			db.Close()
		}
	}
}

func selectChain(ctx *cli.Context, n *genesis.Network) (*genesis.Chain, error) {
	id := ctx.Uint64(chainFlag.Name)
	if id == 0 {
		return n.Primary(), nil
	}
	chain, ok := n.Chains[id]
	if !ok {
		return nil, errors.Errorf("unknown chain %d", id)
	}
	return chain, nil
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		log.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}
