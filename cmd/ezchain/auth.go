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

	"github.com/urfave/cli/v2"

	"github.com/ezchain/go-ezchain/config"
)

var authCommand = &cli.Command{
	Name:  "auth",
	Usage: "API authentication helpers",
	Subcommands: []*cli.Command{
		{
			Name:   "show-token",
			Usage:  "print the API token, generating one on first run",
			Action: authShowToken,
		},
	},
}

func authShowToken(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	token, err := config.LoadAPIToken(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println(token)
	return nil
}
