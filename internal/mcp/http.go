package mcp

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxHTTPBody  = 1 << 20
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// HTTPHandler exposes the server over HTTP: JSON-RPC on POST /mcp, a
// WebSocket session on GET /ws, plus /health and /metrics.
func (s *Server) HTTPHandler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/mcp", s.handleRPC)
	r.GET("/ws", s.handleWebSocket)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := uuid.NewString()
		c.Set("request_id", reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)

		c.Next()

		s.logger.Debug("http request",
			"rid", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.prompts.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"server":     s.name,
		"version":    Version,
		"prompts":    snap.Len(),
		"source":     snap.Source,
		"generation": snap.Generation,
		"stats":      s.Stats(),
	})
}

// handleRPC serves one JSON-RPC message per POST. Each request is its own
// session, so list_changed notifications are not delivered here.
func (s *Server) handleRPC(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxHTTPBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse(nil, codeParseError, "request too large", err.Error()))
		return
	}
	resp, shouldRespond := s.process(c.Request.Context(), &session{}, payload)
	if !shouldRespond {
		c.Status(http.StatusAccepted)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	rid, _ := c.Get("request_id")
	logger := s.logger.With("session", rid)
	logger.Info("websocket session opened", "remote", c.ClientIP())

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					logger.Debug("websocket ping failed", "error", err)
					return
				}
			}
		}
	}()

	ctx := c.Request.Context()
	sess := &session{}
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", "error", err)
			}
			logger.Info("websocket session closed")
			return
		}

		resp, shouldRespond := s.process(ctx, sess, payload)
		if !shouldRespond {
			continue
		}
		if note, ok := s.pendingNotification(sess); ok {
			if err := conn.WriteJSON(note); err != nil {
				logger.Warn("websocket write failed", "error", err)
				return
			}
		}
		if err := conn.WriteJSON(resp); err != nil {
			logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}
