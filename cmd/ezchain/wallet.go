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
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/ezchain/go-ezchain/engine"
	"github.com/ezchain/go-ezchain/wallet"
)

var walletCommand = &cli.Command{
	Name:  "wallet",
	Usage: "manage the local wallet",
	Subcommands: []*cli.Command{
		{
			Name:   "create",
			Usage:  "create a new wallet from a fresh mnemonic",
			Flags:  []cli.Flag{walletNameFlag, passwordFlag},
			Action: walletCreate,
		},
		{
			Name:   "import",
			Usage:  "recreate a wallet from an existing mnemonic",
			Flags:  []cli.Flag{walletNameFlag, passwordFlag},
			Action: walletImport,
		},
		{
			Name:   "show",
			Usage:  "print the wallet summary",
			Action: walletShow,
		},
		{
			Name:   "balance",
			Usage:  "print the wallet balance",
			Flags:  []cli.Flag{passwordFlag},
			Action: walletBalance,
		},
	},
}

var (
	walletNameFlag = &cli.StringFlag{
		Name:  "name",
		Usage: "wallet display name",
		Value: "default",
	}
	passwordFlag = &cli.StringFlag{
		Name:  "password",
		Usage: "wallet password (prompted when omitted)",
	}
)

func walletCreate(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	password, err := resolvePassword(ctx, true)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	store := wallet.NewStore(cfg.App.DataDir)
	w, err := store.Create(ctx.String(walletNameFlag.Name), password)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println("Address: ", w.Address)
	fmt.Println("Mnemonic:", w.Mnemonic)
	fmt.Println()
	fmt.Println("Write the mnemonic down. It is the only way to recover the wallet.")
	return nil
}

func walletImport(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	fmt.Print("Mnemonic: ")
	reader := bufio.NewReader(os.Stdin)
	mnemonic, err := reader.ReadString('\n')
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	mnemonic = strings.TrimSpace(mnemonic)
	password, err := resolvePassword(ctx, true)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	store := wallet.NewStore(cfg.App.DataDir)
	w, err := store.Import(ctx.String(walletNameFlag.Name), mnemonic, password)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println("Address:", w.Address)
	return nil
}

func walletShow(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	store := wallet.NewStore(cfg.App.DataDir)
	summary, err := store.Summary()
	if errors.Is(err, wallet.ErrNotFound) {
		return cli.Exit("no wallet exists yet, run `ezchain wallet create`", 1)
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println("Name:   ", summary["name"])
	fmt.Println("Address:", summary["address"])
	fmt.Println("Created:", summary["created_at"])
	return nil
}

func walletBalance(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	password, err := resolvePassword(ctx, false)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	store := wallet.NewStore(cfg.App.DataDir)
	if _, _, err := store.Load(password); err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return cli.Exit("no wallet exists yet", 1)
		}
		return cli.Exit("wallet could not be unlocked", 1)
	}
	address, err := store.Address()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	eng := engine.NewLocalEngine(cfg.App.DataDir, cfg.Security.MaxTxAmount)
	bal, err := eng.Balance(address)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println("Address:", address)
	fmt.Println("Balance:", bal.Total)
	for _, d := range []int64{100, 50, 20, 10, 5, 1} {
		if n := bal.Chunks[d]; n > 0 {
			fmt.Printf("  %3d x %d\n", d, n)
		}
	}
	return nil
}

// resolvePassword takes the flag value or prompts on the terminal.
// confirm additionally asks for a repetition, for wallet creation.
func resolvePassword(ctx *cli.Context, confirm bool) (string, error) {
	if pw := ctx.String(passwordFlag.Name); pw != "" {
		return pw, nil
	}
	fmt.Print("Password: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(first) == 0 {
		return "", errors.New("password must not be empty")
	}
	if confirm {
		fmt.Print("Repeat password: ")
		second, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
	}
	return string(first), nil
}
