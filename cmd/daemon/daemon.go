package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"executioncore/src/database"
	"executioncore/src/engine"
	"executioncore/src/server"
)

// Daemon runs the execution core. With ServeHTTP set the REST API is
// started alongside the dispatch loop; without it the loop runs headless.
type Daemon struct {
	ServeHTTP bool
}

func (d *Daemon) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	// Initialize main (read/write) database
	if database.GetConfig().EnableDB {
		if err := database.InitMainDB(); err != nil {
			logrus.WithError(err).Fatal("Failed to connect to main database")
			return err
		}
	}

	eng := engine.Init(logrus.WithField("cmd", "daemon"))

	if !d.ServeHTTP {
		return eng.StartLoop(ctx)
	}

	go func() {
		if err := eng.StartLoop(ctx); err != nil {
			logrus.WithError(err).Error("Dispatch loop exited")
		}
	}()

	server.StartServer(server.GetConfig().Port)
	return nil
}
