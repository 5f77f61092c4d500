package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/anonroom/anonroom/internal/broadcast"
	"github.com/anonroom/anonroom/internal/service"
	"github.com/anonroom/anonroom/lib/logger/sl"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type StreamController struct {
	rooms service.RoomInteractor
	log   *slog.Logger
}

func NewStreamController(rooms service.RoomInteractor, log *slog.Logger) *StreamController {
	return &StreamController{rooms: rooms, log: log}
}

// Subscribe upgrades the request to a websocket and forwards room events to
// it until the client disconnects. The subscription is taken before the
// upgrade so a missing room still gets a proper JSON error.
func (c *StreamController) Subscribe(ctx *gin.Context) {
	sub, err := c.rooms.Subscribe(ctx.Request.Context(), ctx.Param("shareToken"))
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		sub.Close()
		c.log.Warn("websocket upgrade failed", sl.Err(err))
		return
	}

	go c.writePump(conn, sub)
	go c.readPump(conn, sub)
}

func (c *StreamController) writePump(conn *websocket.Conn, sub *broadcast.Subscription) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// evicted by the hub; tell the client before closing
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				c.log.Error("marshal event", sl.Err(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains and discards client frames. The stream is one-way; reading
// is only for pong handling and disconnect detection.
func (c *StreamController) readPump(conn *websocket.Conn, sub *broadcast.Subscription) {
	defer func() {
		sub.Close()
		conn.Close()
	}()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
