// Package wsio is the websocket transport: it accepts connections, assigns
// connection ids, pumps frames both ways and feeds the engine. All game
// logic stays on the other side of engine.Dispatch.
package wsio

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/chess-arena/server/internal/conndir"
	"github.com/chess-arena/server/internal/engine"
	"github.com/chess-arena/server/internal/obslog"
	"github.com/chess-arena/server/pkg/arenadto"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

type Server struct {
	eng            *engine.Engine
	dir            *conndir.Directory
	allowedOrigins []string
}

func NewServer(eng *engine.Engine, dir *conndir.Directory, allowedOrigins []string) *Server {
	return &Server{eng: eng, dir: dir, allowedOrigins: allowedOrigins}
}

// Handler serves the websocket endpoint.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := &websocket.AcceptOptions{
			CompressionMode: websocket.CompressionNoContextTakeover,
		}
		if len(s.allowedOrigins) > 0 {
			opts.OriginPatterns = s.allowedOrigins
		}
		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			obslog.L().Warn("ws_accept_failed", zap.Error(err))
			return
		}
		s.serve(r.Context(), conn)
	}
}

type client struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan arenadto.Event
	closed bool
}

// Send queues an event for the write pump without blocking. A full buffer
// means the connection is not draining; the frame is dropped and reported.
func (c *client) Send(ev arenadto.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

func (s *Server) serve(ctx context.Context, conn *websocket.Conn) {
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan arenadto.Event, sendBuffer),
	}
	s.dir.Register(c.id, c)
	obslog.L().Info("ws_connect", zap.String("conn_id", c.id))

	pumpCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writePump(pumpCtx, c)
	}()

	// the client keeps this id to present as oldConnectionId on rejoin
	c.Send(arenadto.MustEvent(arenadto.EvtConnected, arenadto.ConnectedPayload{ConnectionID: c.id}))

	s.readLoop(pumpCtx, c)

	// read loop exit means the connection is gone; run the disconnect sweep
	// exactly once, then tear down the writer.
	s.eng.HandleDisconnect(c.id)
	c.close()
	cancel()
	wg.Wait()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	obslog.L().Info("ws_disconnect", zap.String("conn_id", c.id))
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	for {
		var ev arenadto.Event
		if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
			return
		}
		s.eng.Dispatch(c.id, ev)
	}
}

func (s *Server) writePump(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, ev)
			cancel()
			if err != nil {
				obslog.L().Warn("ws_write_failed",
					zap.String("conn_id", c.id),
					zap.String("event", ev.Type),
					zap.Error(err),
				)
				return
			}
		}
	}
}
