// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/boostmesh/mesh/api"
	"github.com/boostmesh/mesh/genesis"
	"github.com/boostmesh/mesh/log"
	"github.com/boostmesh/mesh/metrics"
	"github.com/boostmesh/mesh/sim"
)

func serveAction(ctx *cli.Context) error {
	defer func() { log.Info("exited") }()

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}
	cfg, err := loadGenesis(ctx)
	if err != nil {
		return err
	}
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return errors.Errorf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name)
	}
	opener := &dbOpener{dir: dataDir}
	defer func() { log.Info("closing databases..."); opener.close() }()

	network, err := genesis.Build(cfg, opener.open, nil)
	if err != nil {
		return errors.WithMessage(err, "build network")
	}
	chain, err := selectChain(ctx, network)
	if err != nil {
		return err
	}

	enableLogs := &atomic.Bool{}
	enableLogs.Store(ctx.Bool(enableAPILogsFlag.Name))
	handler := api.New(chain, api.Options{
		AllowedOrigins:       ctx.String(apiCorsFlag.Name),
		EnableReqLogger:      enableLogs,
		SlowQueriesThreshold: time.Duration(ctx.Uint64(apiSlowQueriesThresholdFlag.Name)) * time.Millisecond,
		EnableMetrics:        ctx.Bool(enableMetricsFlag.Name),
	})

	addr := ctx.String(apiAddrFlag.Name)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen API addr [%v]", addr)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	log.Info("serving API", "chain", chain.ID(), "url", "http://"+listener.Addr().String()+"/")

	exitCtx := handleExitSignal()
	g, gctx := errgroup.WithContext(exitCtx)
	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return pumpLoop(gctx, network.Bridge, ctx.Duration(pumpIntervalFlag.Name))
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("stopping API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// pumpLoop delivers bridge messages every interval until ctx is done.
func pumpLoop(ctx context.Context, bridge *sim.Bridge, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultPumpInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			applied, err := bridge.Pump()
			if err != nil {
				log.Warn("bridge pump failed", "err", err)
				continue
			}
			if applied > 0 {
				log.Debug("bridge messages applied", "count", applied)
			}
		}
	}
}
