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

// ezchain is the command-line entry point: wallet management, transaction
// submission, node lifecycle control and the local submission service.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	isatty "github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/ezchain/go-ezchain/config"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "path to the configuration file",
		Value:   config.DefaultConfigFile,
		Aliases: []string{"c"},
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
)

func main() {
	app := &cli.App{
		Name:    "ezchain",
		Usage:   "EZchain wallet, node and network control",
		Version: "0.1.0",
		Flags:   []cli.Flag{configFlag, verbosityFlag},
		Before: func(ctx *cli.Context) error {
			setupLogging(ctx.Int(verbosityFlag.Name))
			return nil
		},
		Commands: []*cli.Command{
			walletCommand,
			txCommand,
			nodeCommand,
			networkCommand,
			authCommand,
			serveCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		if exit, ok := err.(cli.ExitCoder); ok && exit.ExitCode() != 0 {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(exit.ExitCode())
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogging(verbosity int) {
	usecolor := isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("TERM") != "dumb"
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), usecolor)
	log.SetDefault(log.NewLogger(handler))
}

// loadConfig reads the config named by the global flag.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String(configFlag.Name))
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	return cfg, nil
}
