package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/usecase"
)

const (
	pollInterval = 500 * time.Millisecond
	writeTimeout = 5 * time.Second
)

// WebSocketHandler streams submission status until grading finishes.
type WebSocketHandler struct {
	getUC    *usecase.GetSubmissionUsecase
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler. checkOrigin may be nil to allow any origin.
func NewWebSocketHandler(getUC *usecase.GetSubmissionUsecase, checkOrigin func(*http.Request) bool, logger *zap.Logger) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		getUC:    getUC,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   logger,
	}
}

// Stream handles GET /api/v1/submissions/:id/stream (WebSocket upgrade)
func (h *WebSocketHandler) Stream(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission ID format"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket connection opened", zap.String("submission_id", idStr))

	// Reader goroutine notices when the client goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request.Context()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastStatus domain.SubmissionStatus
	for {
		sub, err := h.getUC.Execute(ctx, id)
		if err != nil {
			msg := "Internal server error"
			if errors.Is(err, domain.ErrSubmissionNotFound) {
				msg = "Submission not found"
			}
			h.write(conn, gin.H{"error": msg})
			return
		}

		// Only push changes; the first poll always goes out.
		if sub.Status != lastStatus {
			if err := h.write(conn, sub); err != nil {
				h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
				return
			}
			lastStatus = sub.Status
		}

		// Stop streaming once the submission reaches a terminal state
		if sub.Status.IsTerminal() {
			h.logger.Debug("Submission reached terminal state, closing WebSocket", zap.String("submission_id", idStr))
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(sub.Status)),
				time.Now().Add(writeTimeout))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case <-ticker.C:
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}
