package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shaktiprasadram22/Elearning-Platform/internal/app"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/config"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env)

	application, err := app.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server stopped")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Stop(ctx); err != nil {
		log.WithError(err).Error("shutdown incomplete")
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
