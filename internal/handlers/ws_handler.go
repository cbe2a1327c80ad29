package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stwalsh4118/staylens/internal/logger"
	"github.com/stwalsh4118/staylens/internal/metrics"
	"github.com/stwalsh4118/staylens/internal/middleware"
	"github.com/stwalsh4118/staylens/internal/models"
	"github.com/stwalsh4118/staylens/internal/services"
	"github.com/stwalsh4118/staylens/internal/views"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendBuffer = 16
)

// UpdateMessage is a widget change sent by the client.
type UpdateMessage struct {
	View   string       `json:"view"`
	Inputs views.Inputs `json:"inputs"`
}

// UpdateReply is the server's answer to one UpdateMessage.
type UpdateReply struct {
	View    string         `json:"view"`
	Status  views.Status   `json:"status"`
	Payload *views.Payload `json:"payload"`
	Error   string         `json:"error,omitempty"`
}

// WebsocketHandler runs one reactive session per connection.
type WebsocketHandler struct {
	service  services.DashboardService
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

// NewWebsocketHandler creates a handler that accepts connections from the
// allowed origins. m may be nil.
func NewWebsocketHandler(service services.DashboardService, allowedOrigins []string, m *metrics.Metrics) *WebsocketHandler {
	return &WebsocketHandler{
		service: service,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// Serve handles GET /api/v1/ws endpoint.
func (h *WebsocketHandler) Serve(c *gin.Context) {
	log := middleware.GetLogger(c)
	if log == nil {
		log = logger.Nop()
	}

	// Upgrade writes its own error response
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	client := &wsClient{
		id:      uuid.New().String(),
		conn:    conn,
		service: h.service,
		session: h.service.NewSession(),
		send:    make(chan UpdateReply, sendBuffer),
		done:    make(chan struct{}),
	}
	client.log = log.With(map[string]interface{}{"client_id": client.id})

	if h.metrics != nil {
		h.metrics.WebsocketSessions.Inc()
		defer h.metrics.WebsocketSessions.Dec()
	}

	client.log.Info("WebSocket session opened", map[string]interface{}{
		"remote_addr": conn.RemoteAddr().String(),
	})
	start := time.Now()

	go client.writePump()
	received := client.readPump(c.Request.Context())
	<-client.done

	client.log.Info("WebSocket session closed", map[string]interface{}{
		"duration_ms":       time.Since(start).Milliseconds(),
		"messages_received": received,
	})
}

// wsClient is a single connection. Updates are evaluated on the reading
// goroutine, so the session is never shared.
type wsClient struct {
	id      string
	conn    *websocket.Conn
	service services.DashboardService
	session *views.Session
	log     *logger.Logger

	send chan UpdateReply
	done chan struct{}
}

// readPump evaluates each incoming update until the peer goes away.
func (w *wsClient) readPump(ctx context.Context) int {
	defer close(w.send)

	w.conn.SetReadLimit(maxMessageSize)
	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	received := 0
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.log.Warn("Unexpected WebSocket close", map[string]interface{}{"error": err.Error()})
			}
			return received
		}
		received++

		reply := w.handle(ctx, data)
		select {
		case w.send <- reply:
		case <-w.done:
			return received
		}
	}
}

func (w *wsClient) handle(ctx context.Context, data []byte) UpdateReply {
	var msg UpdateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		w.log.Warn("Malformed WebSocket message", map[string]interface{}{"error": err.Error()})
		return w.malformed(data, err)
	}

	res := w.service.Update(ctx, w.session, msg.View, msg.Inputs)
	reply := UpdateReply{
		View:    res.View,
		Status:  res.Status,
		Payload: res.Payload,
	}
	if res.Err != nil {
		reply.Error = res.Err.Error()
	}
	return reply
}

// malformed answers an undecodable message. When the target view can still be
// read, the reply names it and carries its last render. A bad horizon is rejected.
func (w *wsClient) malformed(data []byte, err error) UpdateReply {
	reply := UpdateReply{Status: views.StatusError, Error: "malformed message: " + err.Error()}

	var head struct {
		View string `json:"view"`
	}
	if json.Unmarshal(data, &head) != nil || head.View == "" {
		return reply
	}
	reply.View = head.View
	reply.Payload, _ = w.session.Last(head.View)
	if errors.Is(err, models.ErrUnknownHorizon) {
		reply.Status = views.StatusRejected
		reply.Error = err.Error()
	}
	return reply
}

// writePump delivers replies and keeps the connection alive with pings.
func (w *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = w.conn.Close()
		close(w.done)
	}()

	for {
		select {
		case reply, ok := <-w.send:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := w.conn.WriteJSON(reply); err != nil {
				w.log.Warn("WebSocket write failed", map[string]interface{}{"error": err.Error()})
				return
			}
		case <-ticker.C:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
