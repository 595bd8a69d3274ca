package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/bridge"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/config"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/db"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/db/schema"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/httpapi"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/repository"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/service"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/types"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.Driver,
		"sqlitePath", cfg.Path,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"topicPrefix", cfg.TopicPrefix,
		"bufferTimeout", cfg.BufferTimeout,
		"partialFlush", cfg.PartialFlush,
		"statsInterval", cfg.StatsInterval,
		"eventRetention", cfg.EventRetention,
	)

	database, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(database); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	applied, err := schema.Converge(database)
	if err != nil {
		return err
	}

	repo := repository.NewRepository(database)
	svc := service.NewService(repo, slog.Default())

	if len(applied) > 0 {
		slog.Info("schema changes applied", "count", len(applied))
		svc.RecordEvent(types.CategoryMaintenance,
			fmt.Sprintf("schema updated: %s", strings.Join(applied, ", ")))
	}

	lastSeq, err := repo.MaxSequence()
	if err != nil {
		return err
	}
	slog.Info("sequence counter seeded", "lastSequence", lastSeq)

	routes, err := bridge.NewRoutes(cfg)
	if err != nil {
		return err
	}

	// The bridge wires the supervisor's handlers before Connect so the
	// subscription made in the connect callback never races a delivery.
	sup := bridge.NewSupervisor(cfg, routes, slog.Default())
	corr := bridge.NewCorrelator(lastSeq, slog.Default())
	b := bridge.New(cfg, sup, corr, svc, slog.Default())

	mux := httpapi.NewMux(database, func() string { return sup.State().String() })
	telemetry.RegisterFeature(mux, repo, svc, sup)

	bridgeCtx, bridgeCancel := context.WithCancel(ctx)
	defer bridgeCancel()
	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		b.Run(bridgeCtx)
	}()

	// Short timeout for the initial connect: when the broker is down the
	// HTTP API still has to come up, and paho keeps retrying in the
	// background until the subscription succeeds.
	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	err = sup.Connect(connectCtx)
	connectCancel()
	if err != nil {
		slog.Warn("mqtt connection failed (continuing, retries in background)", "error", err)
	}

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		bridgeCancel()
		<-bridgeDone
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("bridge stopping")
	bridgeCancel()
	<-bridgeDone

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
