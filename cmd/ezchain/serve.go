// Copyright 2025 The go-ezchain Authors
// This file is part of go-ezchain.
//
// go-ezchain is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ezchain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ezchain. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v2"

	"github.com/ezchain/go-ezchain/api"
	"github.com/ezchain/go-ezchain/config"
	"github.com/ezchain/go-ezchain/engine"
	"github.com/ezchain/go-ezchain/internal/audit"
	"github.com/ezchain/go-ezchain/internal/guard"
	"github.com/ezchain/go-ezchain/metrics"
	"github.com/ezchain/go-ezchain/node"
	"github.com/ezchain/go-ezchain/p2p"
	"github.com/ezchain/go-ezchain/params"
	"github.com/ezchain/go-ezchain/wallet"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "run the local submission service",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "p2p",
			Usage: "also run a gateway router joined to the configured network",
		},
		&cli.IntFlag{
			Name:  "p2p-port",
			Usage: "listen port for the gateway router",
			Value: 19600,
		},
	},
	Action: serve,
}

func serve(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := config.EnsureDirectories(cfg); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	logger := log.New("pkg", "serve")

	// One service per data directory.
	lock := flock.New(filepath.Join(cfg.App.DataDir, "serve.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if !locked {
		return cli.Exit("another ezchain serve is already running for this data directory", 1)
	}
	defer lock.Unlock()

	token, err := config.LoadAPIToken(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	auditLog := audit.New(filepath.Join(cfg.App.LogDir, "service_audit.log"))
	defer auditLog.Close()

	var router *p2p.Router
	if ctx.Bool("p2p") {
		router, err = p2p.NewRouter(p2p.Config{
			NodeRole:   params.RolePoolGateway,
			ListenHost: "127.0.0.1",
			ListenPort: ctx.Int("p2p-port"),
			PeerSeeds:  cfg.Network.BootstrapNodes,
			NetworkID:  cfg.Network.Name,
		})
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if err := router.Start(); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer router.Stop()
	}

	srv := api.NewServer(api.Deps{
		Config:  cfg,
		Token:   token,
		Engine:  engine.NewLocalEngine(cfg.App.DataDir, cfg.Security.MaxTxAmount),
		Wallets: wallet.NewStore(cfg.App.DataDir),
		Nodes:   node.NewManager(cfg),
		Nonces: guard.NewNonceGuard(
			filepath.Join(cfg.App.DataDir, "used_nonces.json"),
			time.Duration(cfg.Security.NonceTTLSeconds)*time.Second,
		),
		Idem:    guard.NewIdempotencyStore(filepath.Join(cfg.App.DataDir, "tx_idempotency.json")),
		Audit:   auditLog,
		Metrics: metrics.New(),
		Router:  router,
	})
	if err := srv.Start(); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Printf("Submission service on http://%s\n", srv.Addr())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	got := <-sig
	logger.Info("Shutting down", "signal", got)
	if err := srv.Stop(); err != nil {
		logger.Warn("Shutdown incomplete", "err", err)
	}
	if got == syscall.SIGINT {
		return cli.Exit("", 130)
	}
	return nil
}
