// Package ws serves the room protocol over WebSocket, one JSON envelope per
// text frame.
package ws

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/hyggen/internal/config"
	"github.com/cory-johannsen/hyggen/internal/gameserver"
	"github.com/cory-johannsen/hyggen/internal/protocol"
)

// Gateway is the part of the room a transport drives.
type Gateway interface {
	Accept() (string, *gameserver.Outbox)
	Dispatch(ctx context.Context, id string, msg protocol.Inbound) error
	Close(id string) bool
}

// Handler upgrades HTTP requests and runs one read pump and one write pump
// per connection.
type Handler struct {
	room     Gateway
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a Handler. An empty allowedOrigins accepts any Origin.
//
// Precondition: room and logger must be non-nil; cfg must pass validation.
func NewHandler(room Gateway, cfg config.WebSocketConfig, allowedOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		room:   room,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}

// ServeHTTP upgrades the request and blocks until the connection ends.
//
// Postcondition: The session has been closed in the room and the socket is closed.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	start := time.Now()

	id, out := h.room.Accept()
	log := h.logger.With(zap.String("session_id", id))
	log.Info("client connected", zap.String("remote_addr", r.RemoteAddr))

	g, ctx := errgroup.WithContext(context.WithoutCancel(r.Context()))
	g.Go(func() error {
		defer h.room.Close(id)
		return h.readPump(ctx, conn, id, log)
	})
	g.Go(func() error {
		defer conn.Close()
		return h.writePump(ctx, conn, out)
	})
	err = g.Wait()

	if err == nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		log.Info("client disconnected", zap.Duration("duration", time.Since(start)))
	} else {
		log.Info("client dropped",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
	}
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, id string, log *zap.Logger) error {
	conn.SetReadLimit(h.cfg.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			log.Debug("dropping non-text frame", zap.Int("frame_type", kind))
			continue
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			log.Debug("dropping undecodable frame", zap.Error(err))
			continue
		}
		if err := h.room.Dispatch(ctx, id, msg); errors.Is(err, gameserver.ErrSessionClosed) {
			return nil
		}
	}
}

// writePump drains the outbox until the room closes it, pinging the peer
// on every PingInterval.
func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, out *gameserver.Outbox) error {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-out.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
