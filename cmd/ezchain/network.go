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
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/ezchain/go-ezchain/config"
	"github.com/ezchain/go-ezchain/node"
)

var networkCommand = &cli.Command{
	Name:  "network",
	Usage: "inspect and switch network profiles",
	Subcommands: []*cli.Command{
		{
			Name:   "info",
			Usage:  "print the active network and bootstrap reachability",
			Action: networkInfo,
		},
		{
			Name:      "set-profile",
			Usage:     "rewrite the config from a built-in profile",
			ArgsUsage: "<profile>",
			Action:    networkSetProfile,
		},
		{
			Name:   "list-profiles",
			Usage:  "list the built-in network profiles",
			Action: networkListProfiles,
		},
	},
}

func networkInfo(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	mode := "local"
	if config.IsExternalNetwork(cfg) {
		mode = "external"
	}
	fmt.Println("Network:  ", cfg.Network.Name)
	fmt.Println("Mode:     ", mode)
	fmt.Println("Bootstrap:", strings.Join(cfg.Network.BootstrapNodes, ", "))

	probe := node.NewManager(cfg).ProbeBootstrap(2 * time.Second)
	results, _ := probe["endpoints"].([]node.ProbeResult)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Endpoint", "Reachable", "Error"})
	for _, res := range results {
		reachable := "no"
		if res.Reachable {
			reachable = "yes"
		}
		table.Append([]string{res.Endpoint, reachable, res.Error})
	}
	table.Render()
	return nil
}

func networkSetProfile(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.Exit("usage: ezchain network set-profile <profile>", 1)
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	name := ctx.Args().First()
	if err := config.ApplyNetworkProfile(cfg, name, ctx.String(configFlag.Name)); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Printf("Switched to profile %q.\n", name)
	return nil
}

func networkListProfiles(ctx *cli.Context) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Profile", "Description", "Bootstrap", "Mode"})
	for _, p := range config.ListProfiles() {
		mode := "local"
		if p.External {
			mode = "external"
		}
		table.Append([]string{p.Name, p.Description, strings.Join(p.BootstrapNodes, ", "), mode})
	}
	table.Render()
	return nil
}
