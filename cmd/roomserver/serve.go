package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hyggen/internal/admin"
	"github.com/cory-johannsen/hyggen/internal/config"
	"github.com/cory-johannsen/hyggen/internal/frontend/line"
	"github.com/cory-johannsen/hyggen/internal/frontend/ws"
	"github.com/cory-johannsen/hyggen/internal/game/layout"
	"github.com/cory-johannsen/hyggen/internal/gameserver"
	"github.com/cory-johannsen/hyggen/internal/observability"
	"github.com/cory-johannsen/hyggen/internal/server"
	"github.com/cory-johannsen/hyggen/internal/storage/postgres"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the room server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	start := time.Now()

	logger, err := observability.NewLogger(cfg.Logging, cfg.Server.Name)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing, cfg.Server.Name)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("flushing traces", zap.Error(err))
		}
	}()

	l, err := loadLayout(cfg.Room.LayoutFile)
	if err != nil {
		return err
	}
	logger.Info("layout loaded",
		zap.String("layout_id", l.ID),
		zap.Int("seats", len(l.Seats)),
		zap.Int("obstacles", len(l.Obstacles)),
	)

	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)
	roomOpts := []gameserver.Option{gameserver.WithOutboxSize(cfg.Room.OutboxSize)}
	var checks []admin.Option

	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)

		writer := postgres.NewJournalWriter(pool.Journal(), cfg.Journal, logger)
		roomOpts = append(roomOpts, gameserver.WithJournal(writer))
		// Added first so it stops last, after every session has departed.
		lifecycle.Add("journal", &server.FuncService{
			StartFn: func(ctx context.Context) error { return writer.Start(context.WithoutCancel(ctx)) },
			StopFn:  writer.Stop,
		})
		checks = append(checks, admin.WithCheck("hyggen.Journal", pool.Health))
	}

	room := gameserver.NewRoom(l, logger, roomOpts...)
	checks = append(checks, admin.WithCheck("hyggen.Room", func(context.Context) error {
		return room.CheckInvariants()
	}))

	handler := ws.NewHandler(room, cfg.WebSocket, cfg.HTTP.AllowedOrigins, logger)
	router := ws.NewRouter(cfg.HTTP, handler, room, logger)
	lifecycle.Add("http", ws.NewServer(cfg.HTTP, otelhttp.NewHandler(router, "http"), room.CloseAll, logger))

	if cfg.Line.Enabled {
		acc := line.NewAcceptor(cfg.Line, room, logger)
		lifecycle.Add("line", &server.FuncService{StartFn: acc.Serve, StopFn: acc.Shutdown})
	}
	if cfg.Admin.Enabled {
		lifecycle.Add("admin", admin.NewServer(cfg.Admin, logger, checks...))
	}

	logger.Info("room server initialized",
		zap.String("http_addr", cfg.HTTP.Addr()),
		zap.Bool("line", cfg.Line.Enabled),
		zap.Bool("journal", cfg.Database.Enabled),
		zap.Duration("startup", time.Since(start)),
	)
	return lifecycle.Run(ctx)
}

func loadLayout(path string) (*layout.Layout, error) {
	if path == "" {
		return layout.Default(), nil
	}
	l, err := layout.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading layout %s: %w", path, err)
	}
	return l, nil
}
