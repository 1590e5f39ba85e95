package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"executioncore/cmd/daemon"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "ExecutionCore CMD"
	app.Usage = "The execution core command line interface"

	app.Commands = []cli.Command{
		engineCMD,
		serveCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	engineCMD = cli.Command{
		Name:        "engine",
		Usage:       "run the headless dispatch loop",
		Action:      engineAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the signal dispatch loop without the REST API`,
	}
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the dispatch loop and REST API",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the signal dispatch loop together with the REST API`,
	}
)

func engineAction(_ *cli.Context) error {

	logrus.Info("Starting engine CMD")
	logrus.WithField("cmd", "engine")

	d := &daemon.Daemon{}
	err := d.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func serveAction(_ *cli.Context) error {

	logrus.Info("Starting serve CMD")
	logrus.WithField("cmd", "serve")

	d := &daemon.Daemon{ServeHTTP: true}
	err := d.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}
