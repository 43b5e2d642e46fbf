// Command server runs a ledger node: the ride contract, its HTTP gateway, and
// optionally a relay that mirrors mined events to Redis or RabbitMQ.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridesync/internal/api"
	"ridesync/internal/chain"
	"ridesync/internal/config"
	"ridesync/internal/events/broker"
	"ridesync/internal/repository"
	"ridesync/internal/repository/memory"
	"ridesync/internal/repository/mysql"
	"ridesync/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		logrus.WithError(err).Fatal("failed to open log output")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, db, err := openStore(ctx, cfg.Ledger)
	if err != nil {
		log.WithError(err).Fatal("failed to open ledger store")
	}
	if db != nil {
		defer db.Close()
	}

	bus := chain.NewEventBus(log)
	relay, err := broker.Open(cfg.Events, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect event relay")
	}
	if relay != nil {
		defer relay.Close()
		bus.AddRelay(relay)
		log.WithField("backend", cfg.Events.Backend).Info("relaying ledger events")
	}

	contract := chain.NewContract(store, bus, cfg.Ledger.BlockTime, log)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      api.NewRouter(contract, log).WithAllowedOrigins(cfg.Server.AllowedOrigins).Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":       cfg.Server.Port,
			"store":      cfg.Ledger.Store,
			"block_time": cfg.Ledger.BlockTime,
		}).Info("ledger node listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// openStore returns the store for the configured backend. db is nil for the
// memory store.
func openStore(ctx context.Context, cfg config.LedgerConfig) (repository.Store, *sql.DB, error) {
	if cfg.Store != "mysql" {
		return memory.NewStore(), nil, nil
	}

	db, err := mysql.Open(ctx, cfg.MySQLDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := mysql.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return mysql.NewStore(db), db, nil
}
