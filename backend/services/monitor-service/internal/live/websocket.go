package live

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsReadLimit = 4096
	wsPongWait  = 60 * time.Second
)

type wsMessage struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WSHandler streams hub events over WebSocket text messages.
type WSHandler struct {
	hub      *Hub
	opts     StreamOptions
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler builds the WebSocket endpoint. checkOrigin may be nil to
// accept any origin.
func NewWSHandler(hub *Hub, opts StreamOptions, checkOrigin func(*http.Request) bool, logger *zap.Logger) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WSHandler{
		hub:    hub,
		opts:   opts.withDefaults(),
		logger: logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sub, err := h.hub.Subscribe("websocket")
	if err != nil {
		http.Error(w, "live channel unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsConn{ws: conn, sub: sub, opts: h.opts, logger: h.logger}
	h.logger.Info("websocket client connected", zap.String("subscriber_id", sub.ID()), zap.String("remote", r.RemoteAddr))

	go c.readPump()
	c.writePump()
}

type wsConn struct {
	ws     *websocket.Conn
	sub    *Subscription
	opts   StreamOptions
	logger *zap.Logger
}

// readPump only services control frames; viewers never send data. It ends
// the subscription when the peer goes away.
func (c *wsConn) readPump() {
	defer c.sub.Close()
	c.ws.SetReadLimit(wsReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.logger.Info("websocket read closed", zap.String("subscriber_id", c.sub.ID()), zap.Error(err))
			return
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		c.sub.Close()
		_ = c.ws.Close()
	}()

	if err := c.writeJSON(wsMessage{Event: "ready"}); err != nil {
		return
	}

	for {
		select {
		case <-c.sub.Done():
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case frame := <-c.sub.Frames():
			if err := c.writeJSON(wsMessage{Event: frame.Event, Data: frame.Data}); err != nil {
				c.logger.Warn("websocket write failed", zap.String("subscriber_id", c.sub.ID()), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) writeJSON(msg wsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *wsConn) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.ws.WriteMessage(messageType, data)
}
