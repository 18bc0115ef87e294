package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger es lo que necesita /healthz; *pgxpool.Pool lo cumple.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	logger *zap.Logger
	db     Pinger
}

func NewHealthHandler(logger *zap.Logger, db Pinger) *HealthHandler {
	return &HealthHandler{logger: logger, db: db}
}

// Landing maneja GET / con un resumen del producto.
func (h *HealthHandler) Landing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "Hapo",
		"tagline": "Family payments for parents and students",
		"features": []string{
			"Send money and emergency funds to your children",
			"Spending limits and activity history",
			"QR payments and reward points for students",
		},
	})
}

// Healthz maneja GET /healthz.
func (h *HealthHandler) Healthz(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
