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
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ezchain/go-ezchain/node"
	"github.com/ezchain/go-ezchain/p2p"
	"github.com/ezchain/go-ezchain/params"
)

var nodeCommand = &cli.Command{
	Name:  "node",
	Usage: "control the local node cluster",
	Subcommands: []*cli.Command{
		{
			Name:   "start",
			Usage:  "start the node cluster in the background",
			Action: nodeStart,
		},
		{
			Name:   "stop",
			Usage:  "stop the node cluster",
			Action: nodeStop,
		},
		{
			Name:   "status",
			Usage:  "print the node cluster status",
			Action: nodeStatus,
		},
		{
			// Internal runner spawned by `node start`; runs the routers
			// in the foreground until terminated.
			Name:   "run",
			Hidden: true,
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "consensus", Value: 1},
				&cli.IntFlag{Name: "accounts", Value: 1},
				&cli.IntFlag{Name: "start-port", Value: 19500},
				&cli.StringFlag{Name: "data-dir", Value: ".ezchain"},
			},
			Action: nodeRun,
		},
	},
}

func nodeStart(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	mgr := node.NewManager(cfg)
	if err := mgr.Start(); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println("Node cluster started.")
	return nil
}

func nodeStop(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	mgr := node.NewManager(cfg)
	if err := mgr.Stop(); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println("Node cluster stopped.")
	return nil
}

func nodeStatus(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	mgr := node.NewManager(cfg)
	status := mgr.Status()
	fmt.Println("Mode:   ", status["mode"])
	fmt.Println("Status: ", status["status"])
	fmt.Println("Network:", status["network"])
	if pid, ok := status["pid"]; ok {
		fmt.Println("PID:    ", pid)
	}
	return nil
}

// nodeRun brings up the in-process cluster: one router per node, the
// first consensus node acting as the seed for the rest.
func nodeRun(ctx *cli.Context) error {
	consensus := ctx.Int("consensus")
	accounts := ctx.Int("accounts")
	startPort := ctx.Int("start-port")
	logger := log.New("pkg", "noderun")

	seedAddr := fmt.Sprintf("127.0.0.1:%d", startPort)
	var routers []*p2p.Router

	stopAll := func() {
		for i := len(routers) - 1; i >= 0; i-- {
			routers[i].Stop()
		}
	}

	port := startPort
	launch := func(role string, seeds []string) error {
		rt, err := p2p.NewRouter(p2p.Config{
			NodeRole:   role,
			ListenHost: "127.0.0.1",
			ListenPort: port,
			PeerSeeds:  seeds,
			NetworkID:  role,
		})
		if err != nil {
			return err
		}
		if err := rt.Start(); err != nil {
			return err
		}
		routers = append(routers, rt)
		logger.Info("Node up", "role", role, "port", port)
		port++
		return nil
	}

	for i := 0; i < consensus; i++ {
		seeds := []string{seedAddr}
		if i == 0 {
			seeds = nil
		}
		if err := launch(params.RoleConsensus, seeds); err != nil {
			stopAll()
			return cli.Exit(err.Error(), 1)
		}
		// Let the seed bind before the others dial it.
		if i == 0 {
			time.Sleep(100 * time.Millisecond)
		}
	}
	for i := 0; i < accounts; i++ {
		if err := launch(params.RoleAccount, []string{seedAddr}); err != nil {
			stopAll()
			return cli.Exit(err.Error(), 1)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	got := <-sig
	logger.Info("Shutting down node cluster", "signal", got)
	stopAll()
	if got == syscall.SIGINT {
		return cli.Exit("", 130)
	}
	return nil
}
