package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hyggen/internal/config"
	"github.com/cory-johannsen/hyggen/internal/gameserver"
)

// RoomViewer exposes a read-only copy of the room.
type RoomViewer interface {
	Snapshot() gameserver.View
}

// NewRouter builds the HTTP routes: the WebSocket endpoint at /ws, a
// liveness probe at /healthz, and the room view at /api/room.
//
// Precondition: cfg.Mode must be a valid gin mode.
func NewRouter(cfg config.HTTPConfig, h *Handler, room RoomViewer, logger *zap.Logger) *gin.Engine {
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Mode == gin.DebugMode {
		r.Use(requestLogger(logger))
	}

	r.GET("/ws", func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/room", func(c *gin.Context) {
		c.JSON(http.StatusOK, room.Snapshot())
	})

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// Server runs the router on the configured address. It implements
// server.Service.
type Server struct {
	srv    *http.Server
	onStop func() int
	logger *zap.Logger
}

// NewServer wraps handler in an http.Server. onStop, if non-nil, is called
// after the listener shuts down to close hijacked WebSocket sessions, which
// http.Server.Shutdown does not track.
func NewServer(cfg config.HTTPConfig, handler http.Handler, onStop func() int, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		onStop: onStop,
		logger: logger,
	}
}

// Start listens and serves until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until Stop is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Stop shuts the listener down and closes every open session.
func (s *Server) Stop(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	if s.onStop != nil {
		n := s.onStop()
		s.logger.Info("closed websocket sessions", zap.Int("sessions", n))
	}
	if err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
