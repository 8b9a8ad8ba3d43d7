package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"steadystream/internal/auth"
	"steadystream/internal/feeds"
	"steadystream/internal/realtime"
	"steadystream/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsPingInterval = 30 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsMaxMessage   = 4096
	wsSendBuffer   = 16
)

// wsMessage is the envelope of every frame in both directions
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type wsError struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// RealtimeHandler serves the live feed of a viewer over a WebSocket. Each
// connection gets its own refresher, triggered on connect, on throws addressed
// to the viewer, and on focus/visible messages from the client.
type RealtimeHandler struct {
	composer   session.Composer
	subscriber realtime.Subscriber
	verifier   *auth.JWTVerifier
	log        logrus.FieldLogger
	upgrader   websocket.Upgrader

	PingInterval time.Duration
}

// NewRealtimeHandler creates a new realtime handler
func NewRealtimeHandler(composer session.Composer, subscriber realtime.Subscriber, verifier *auth.JWTVerifier, log logrus.FieldLogger) *RealtimeHandler {
	return &RealtimeHandler{
		composer:   composer,
		subscriber: subscriber,
		verifier:   verifier,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		PingInterval: wsPingInterval,
	}
}

// ServeWS handles GET /ws?token=...
func (h *RealtimeHandler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("Authorization")
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
		return
	}

	userID, err := h.verifier.ExtractUserIDFromToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidToken.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	h.serve(conn, userID)
}

func (h *RealtimeHandler) serve(conn *websocket.Conn, userID uuid.UUID) {
	log := h.log.WithField("user_id", userID)
	ctx, cancel := context.WithCancel(context.Background())

	client := newWSClient(conn, log)
	refresher := session.NewRefresher(userID, h.composer, client, log)
	events, unsubscribe := h.subscriber.Subscribe(userID)

	defer func() {
		refresher.Close()
		unsubscribe()
		client.shutdown(cancel)
		log.Info("Feed session closed")
	}()

	go refresher.Run(ctx)
	go client.writePump(ctx, h.PingInterval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				refresher.Trigger(session.TriggerThrowReceived)
			}
		}
	}()

	log.Info("Feed session opened")
	refresher.Trigger(session.TriggerMount)
	client.readPump(refresher)
}

// wsClient is the write side of a connection and the refresher's sink
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	log  logrus.FieldLogger
}

func newWSClient(conn *websocket.Conn, log logrus.FieldLogger) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		done: make(chan struct{}),
		log:  log,
	}
}

// shutdown stops writePump and closes the connection once the close frame is written
func (c *wsClient) shutdown(cancel context.CancelFunc) {
	cancel()
	<-c.done
	c.conn.Close()
}

func (c *wsClient) Feed(items []feeds.FeedItem) {
	if items == nil {
		items = []feeds.FeedItem{}
	}
	c.enqueue(wsMessage{Type: "feed", Data: items})
}

func (c *wsClient) Error(err error) {
	c.enqueue(wsMessage{Type: "error", Data: wsError{
		Message:   "Failed to load feed",
		Retryable: true,
	}})
}

func (c *wsClient) enqueue(msg wsMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.log.WithError(err).Error("Failed to encode message")
		return
	}

	select {
	case c.send <- payload:
	default:
		c.log.WithField("type", msg.Type).Warn("Send buffer full, dropping message")
	}
}

func (c *wsClient) readPump(refresher *session.Refresher) {
	c.conn.SetReadLimit(wsMaxMessage)
	c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.WithError(err).Warn("WebSocket closed unexpectedly")
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.enqueue(wsMessage{Type: "error", Data: wsError{Message: "Invalid JSON format"}})
			continue
		}

		switch session.Trigger(msg.Type) {
		case session.TriggerFocus, session.TriggerVisible:
			refresher.Trigger(session.Trigger(msg.Type))
		default:
			c.enqueue(wsMessage{Type: "error", Data: wsError{Message: "Unknown message type"}})
		}
	}
}

func (c *wsClient) writePump(ctx context.Context, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.WithError(err).Debug("WebSocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
