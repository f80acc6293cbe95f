package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lsmengine/lsmengine/pkg/httpapi"
	"github.com/lsmengine/lsmengine/pkg/lsm"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	logger := logrus.StandardLogger()

	opts, err := lsm.LoadOptions(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("lsmserver: failed to load config")
	}
	opts.Logger = logger

	db, err := lsm.Open(opts)
	if err != nil {
		logger.WithError(err).Fatal("lsmserver: failed to open engine")
	}
	defer db.Close()

	srv := httpapi.NewServer(db, logger)
	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv,
		ReadHeaderTimeout: time.Second,
	}

	go func() {
		logger.WithField("addr", *addr).Info("lsmserver: listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("lsmserver: server error")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("lsmserver: shutdown error")
	}
}
