package line

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

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

// Acceptor listens for TCP connections and runs each as a room session.
type Acceptor struct {
	cfg    config.LineConfig
	room   Gateway
	logger *zap.Logger

	listener net.Listener
	conns    map[*Conn]struct{}
	wg       sync.WaitGroup
	quit     chan struct{}
	ready    chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewAcceptor creates an Acceptor.
//
// Precondition: cfg must pass validation; room and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(cfg config.LineConfig, room Gateway, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:    cfg,
		room:   room,
		logger: logger,
		conns:  make(map[*Conn]struct{}),
		quit:   make(chan struct{}),
		ready:  make(chan struct{}),
	}
}

// ListenAndServe accepts connections until Stop is called.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	a.mu.Lock()
	a.listener = listener
	a.running = true
	a.mu.Unlock()
	close(a.ready)

	a.logger.Info("line acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	for {
		raw, err := listener.Accept()
		if err != nil {
			select {
			case <-a.quit:
				return nil
			default:
				a.logger.Error("accepting connection", zap.Error(err))
				continue
			}
		}

		conn := NewConn(raw, a.cfg.MaxLineBytes, a.cfg.ReadTimeout, a.cfg.WriteTimeout)
		a.mu.Lock()
		if !a.running {
			a.mu.Unlock()
			_ = conn.Close()
			continue
		}
		a.conns[conn] = struct{}{}
		a.wg.Add(1)
		a.mu.Unlock()

		go a.handleConn(conn)
	}
}

// Ready is closed once the listener is bound.
func (a *Acceptor) Ready() <-chan struct{} {
	return a.ready
}

func (a *Acceptor) handleConn(conn *Conn) {
	defer a.wg.Done()
	defer func() {
		a.mu.Lock()
		delete(a.conns, conn)
		a.mu.Unlock()
	}()
	start := time.Now()

	id, out := a.room.Accept()
	log := a.logger.With(zap.String("session_id", id), zap.String("remote_addr", conn.RemoteAddr()))
	log.Info("client connected")

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		defer a.room.Close(id)
		return a.readLoop(ctx, conn, id, log)
	})
	g.Go(func() error {
		defer conn.Close()
		return writeLoop(ctx, conn, out)
	})
	err := g.Wait()

	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		log.Info("session ended cleanly", zap.Duration("duration", time.Since(start)))
	} else {
		log.Debug("session ended",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (a *Acceptor) readLoop(ctx context.Context, conn *Conn, id string, log *zap.Logger) error {
	for {
		line, err := conn.ReadLine()
		if err != nil {
			return err
		}
		msg, err := protocol.Decode(line)
		if err != nil {
			log.Debug("dropping undecodable line", zap.Error(err))
			continue
		}
		if err := a.room.Dispatch(ctx, id, msg); errors.Is(err, gameserver.ErrSessionClosed) {
			return nil
		}
	}
}

func writeLoop(ctx context.Context, conn *Conn, out *gameserver.Outbox) error {
	for {
		select {
		case frame, ok := <-out.Frames():
			if !ok {
				return nil
			}
			if err := conn.WriteLine(frame); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Stop closes the listener and every open connection, then waits for the
// sessions to finish.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.quit)
	if a.listener != nil {
		a.listener.Close()
	}
	for conn := range a.conns {
		_ = conn.Close()
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.logger.Info("line acceptor stopped")
}

// Serve runs ListenAndServe. With Shutdown it fits server.FuncService.
func (a *Acceptor) Serve(context.Context) error {
	return a.ListenAndServe()
}

// Shutdown calls Stop, giving up waiting when ctx ends.
func (a *Acceptor) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.Stop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stopping line acceptor: %w", ctx.Err())
	}
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
