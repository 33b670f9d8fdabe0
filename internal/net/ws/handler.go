package ws

import (
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeknom/udp-game-example/server"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

// StatusFeed is the subscription side of server.Feed.
type StatusFeed interface {
	Subscribe() (<-chan server.Status, func())
}

type HandlerConfig struct {
	Logger *log.Logger
}

// Handler streams session status to websocket observers. Observers are
// read-only: anything they send is discarded.
type Handler struct {
	feed     StatusFeed
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewHandler(feed StatusFeed, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		feed:     feed,
		logger:   logger,
		upgrader: upgrader,
	}
}

func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	h.Handle(w, r)
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("status feed upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.feed.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case status, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(status); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps control frames flowing and reports when the peer goes away.
func (h *Handler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Printf("status feed closed: %v", err)
			}
			return
		}
	}
}
