package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/infrastructure/scheduler"
	"github.com/erp/shipcheck/internal/interfaces/http/handler"
	"github.com/erp/shipcheck/internal/interfaces/http/router"
)

func newServeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API and start the cron scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *cli) error {
	cfg, log := c.cfg, c.log

	rt, err := buildServices(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close(log)
	log = rt.log

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.NewEngine(log, router.EngineOptions{
		ServiceName:    cfg.Telemetry.ServiceName,
		Meter:          rt.meters.Meter("http.server"),
		TracerProvider: rt.tracer.Provider(),
	})
	engine.GET("/health", handler.NewSystemHandler(version).Health)
	router.NewRouter(engine).
		Register(handler.NewRunHandler(rt.runs).Routes()).
		Setup()

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(scheduler.Config{
			Cron:    cfg.Scheduler.Cron,
			Timeout: cfg.Scheduler.Timeout,
		}, rt.runs, log)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}
