package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/thearjunkv/dots-and-boxes-backend/internal/application/config"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/application/constant"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/application/metric"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/infra/adapters/memory"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/infra/adapters/redis"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/infra/ports/http/handlers"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/infra/ports/http/server"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/infra/repository"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/usecase"
)

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: slog.LevelInfo},
			),
		),
	)

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	slog.Info("Running app", slog.Bool("debug", cfg.Debug))

	pool := redis.NewPool(cfg.Redis)
	defer pool.Close()

	if err := redis.Ping(ctx, pool); err != nil {
		slog.Error("connect to redis", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	roomRepo := repository.NewRoomRepo(redis.NewStore(pool))
	connRepo := memory.NewConnectionRepository()
	membersRepo := memory.NewRoomMembersRepository()

	gameUsecase := usecase.NewGameUsecase(cfg, roomRepo)

	wsHandler := handlers.NewWebSocketHandler(cfg, gameUsecase, connRepo, membersRepo)

	echoSrv := server.New(cfg, wsHandler)
	metricSrv := metric.NewServer()

	srvCh := make(chan error, 1)
	go func() {
		srvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	go func() {
		if err := metricSrv.Start(":" + cfg.MetricsPort); err != nil {
			slog.Error("metrics server failed", slog.Any(constant.Error, err))
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down server due to context cancel")
	case err := <-srvCh:
		slog.Error(
			"HTTP server failed",
			slog.Any(constant.Error, err),
		)

		os.Exit(1)
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeoutCancel()

	if err := metricSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown metrics server", slog.Any(constant.Error, err))
	}

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown server", slog.Any(constant.Error, err))
	}
}
