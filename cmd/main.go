package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"papertrader/cmd/seed"
	"papertrader/src/database"
	"papertrader/src/marketfeed"
	"papertrader/src/repository"
	"papertrader/src/server"
	"papertrader/src/trading"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Papertrader CMD"
	app.Usage = "The papertrader command line interface"

	app.Commands = []cli.Command{
		serverCMD,
		seedCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serverCMD = cli.Command{
		Name:        "server",
		Usage:       "run the trading API server",
		Action:      serverAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the HTTP API backed by the configured ledger and market feed`,
	}
	seedCMD = cli.Command{
		Name:      "seed",
		Usage:     "provision a demo account",
		Action:    seedAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "email", Value: "demo@papertrader.local"},
			cli.StringFlag{Name: "name", Value: "Demo Trader"},
		},
		Description: `Create a demo user with the starting virtual balance and default settings`,
	}
)

func serverAction(_ *cli.Context) error {
	logrus.Info("Starting server CMD")

	if err := database.InitMainDB(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := marketfeed.Build(ctx, marketfeed.GetConfig())
	ledger := repository.NewLedgerRepository()
	svc := trading.NewService(ledger, feed, logrus.NewEntry(logrus.StandardLogger()))

	server.StartServer(server.GetConfig().Port, server.NewRouter(svc, ledger))
	return nil
}

func seedAction(c *cli.Context) error {
	logrus.Info("Starting seed CMD")

	seeder := &seed.Seeder{
		Email:       c.String("email"),
		DisplayName: c.String("name"),
	}
	if err := seeder.Start(); err != nil {
		logrus.WithError(err).Error("Seeding failed")
		return err
	}

	return nil
}
