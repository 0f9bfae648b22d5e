package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/linzo/meet/internal/app"
	"github.com/linzo/meet/internal/core"
	"github.com/linzo/meet/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Orch        *app.Orchestrator
	Transcripts *RateLimiter

	// ReadLimit caps inbound frame size; PingPeriod drives the
	// keepalive ticker in writePump.
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewController(orch *app.Orchestrator, transcriptLimit int, transcriptWindow time.Duration) *Controller {
	return &Controller{
		Orch:        orch,
		Transcripts: NewRateLimiter(transcriptLimit, transcriptWindow),
		ReadLimit:   32 * 1024,
		PingPeriod:  54 * time.Second,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the connection and binds a session under the
// identity already issued by the client-token middleware.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	id := domain.PeerID(c.GetString("client_token"))
	if id == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	log.Info().Str("module", "signal").Str("peer", string(id)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	peer := ctl.Orch.Registry.GetOrCreatePeer(id)
	sess := core.NewMemberSession(peer, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(id, sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, id, conn)
}
