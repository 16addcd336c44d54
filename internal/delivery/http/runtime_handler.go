package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/domain"
)

// VersionFunc reports the interpreter version.
type VersionFunc func(ctx context.Context) (string, error)

// RuntimeHandler describes the Python runtime learners' code runs on.
type RuntimeHandler struct {
	info    domain.RuntimeInfo
	version VersionFunc
	logger  *zap.Logger

	mu     sync.Mutex
	cached string
}

// NewRuntimeHandler creates a new RuntimeHandler. version may be nil.
func NewRuntimeHandler(info domain.RuntimeInfo, version VersionFunc, logger *zap.Logger) *RuntimeHandler {
	if info.Language == "" {
		info.Language = "python"
	}
	return &RuntimeHandler{info: info, version: version, logger: logger}
}

// Get handles GET /api/v1/runtime
func (h *RuntimeHandler) Get(c *gin.Context) {
	info := h.info

	if h.version != nil {
		v, err := h.lookupVersion(c.Request.Context())
		if err != nil {
			h.logger.Warn("Interpreter version lookup failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Python interpreter unavailable"})
			return
		}
		info.Version = v
	}

	c.JSON(http.StatusOK, info)
}

// lookupVersion caches the first successful answer only.
func (h *RuntimeHandler) lookupVersion(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cached != "" {
		return h.cached, nil
	}
	v, err := h.version(ctx)
	if err != nil {
		return "", err
	}
	h.cached = v
	return v, nil
}
