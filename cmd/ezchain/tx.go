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
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
)

var txCommand = &cli.Command{
	Name:  "tx",
	Usage: "submit transactions through the local service",
	Subcommands: []*cli.Command{
		{
			Name:  "send",
			Usage: "send value to a recipient",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "to", Usage: "recipient address", Required: true},
				&cli.Int64Flag{Name: "amount", Usage: "amount to send", Required: true},
				&cli.StringFlag{Name: "client-tx-id", Usage: "idempotency id (random when omitted)"},
				passwordFlag,
			},
			Action: txSend,
		},
		{
			Name:  "faucet",
			Usage: "credit the local value stock",
			Flags: []cli.Flag{
				&cli.Int64Flag{Name: "amount", Usage: "amount to credit", Required: true},
				passwordFlag,
			},
			Action: txFaucet,
		},
	},
}

func txSend(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	password, err := resolvePassword(ctx, false)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	client, err := newAPIClient(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	body := map[string]interface{}{
		"recipient": ctx.String("to"),
		"amount":    ctx.Int64("amount"),
		"password":  password,
	}
	if id := ctx.String("client-tx-id"); id != "" {
		body["client_tx_id"] = id
	}
	data, err := client.post("/tx/send", body, true)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	var res struct {
		TxHash     string `json:"tx_hash"`
		Status     string `json:"status"`
		ClientTxID string `json:"client_tx_id"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println("Status:      ", res.Status)
	fmt.Println("Tx hash:     ", res.TxHash)
	fmt.Println("Client tx id:", res.ClientTxID)
	return nil
}

func txFaucet(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	password, err := resolvePassword(ctx, false)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	client, err := newAPIClient(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	data, err := client.post("/tx/faucet", map[string]interface{}{
		"amount":   ctx.Int64("amount"),
		"password": password,
	}, false)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	var res struct {
		TxHash string `json:"tx_hash"`
		Amount int64  `json:"amount"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println("Status: ", res.Status)
	fmt.Println("Amount: ", res.Amount)
	fmt.Println("Tx hash:", res.TxHash)
	return nil
}
