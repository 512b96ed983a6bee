// README: Entry point; loads config, wires services, starts HTTP server and the sweep job.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"mealdrop/internal/config"
	httptransport "mealdrop/internal/http"
	"mealdrop/internal/infra"
	"mealdrop/internal/modules/dispatch"
	"mealdrop/internal/modules/notify"
	"mealdrop/internal/modules/order"
	"mealdrop/internal/modules/schedule"
	"mealdrop/internal/modules/tracking"
)

func main() {
	logger := infra.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("loading config failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Error("connecting to postgres failed", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	notifyStore := notify.NewStore(dbPool)
	broadcaster := notify.NewRedisBroadcaster(redisClient)
	notifySvc := notify.NewService(notifyStore, broadcaster, logger)

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore, notifySvc)

	trackingStore := tracking.NewStore(redisClient)
	trackingSvc := tracking.NewService(trackingStore, orderSvc, notifySvc)

	dispatchSvc := dispatch.NewService(orderSvc, trackingSvc, cfg.Dispatch.RadiusKm)

	scheduleSvc := schedule.NewService(orderSvc, cfg.Sweep.Lookahead, logger)
	sweepJob := schedule.NewSweepJob(scheduleSvc, cfg.Sweep.Interval, logger)
	if err := sweepJob.Start(); err != nil {
		logger.Error("starting sweep job failed", "error", err)
		os.Exit(1)
	}
	defer sweepJob.Stop()

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Order:    orderSvc,
		Dispatch: dispatchSvc,
		Tracking: trackingSvc,
		Schedule: scheduleSvc,
		Notify:   notifySvc,
		Logger:   logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Info("mealdrop api listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}
