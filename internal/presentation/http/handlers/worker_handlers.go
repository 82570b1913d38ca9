package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gramsender/gramsender-go/internal/application/services"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
)

// WorkerHandlers exposes the live worker registry: listing, stopping, and
// supplying interactive verification codes.
type WorkerHandlers struct {
	registry *services.Registry
	logger   *logging.ChanneledLogger
}

// NewWorkerHandlers creates worker handlers with injected dependencies
func NewWorkerHandlers(registry *services.Registry, logger *logging.ChanneledLogger) *WorkerHandlers {
	return &WorkerHandlers{registry: registry, logger: logger}
}

// GetWorkers handles GET /api/v1/workers
func (h *WorkerHandlers) GetWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"workers": h.registry.List()})
}

// GetWorker handles GET /api/v1/workers/:id
func (h *WorkerHandlers) GetWorker(c *gin.Context) {
	state, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "worker not found"})
		return
	}
	c.JSON(http.StatusOK, state)
}

// PostStop handles POST /api/v1/workers/:id/stop
func (h *WorkerHandlers) PostStop(c *gin.Context) {
	id := c.Param("id")
	if !h.registry.Stop(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "worker not found or already finished"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopping": id})
}

// PostVerificationCode handles POST /api/v1/workers/:id/verification-code -
// delivers an operator-supplied 2FA/challenge code to a parked worker.
func (h *WorkerHandlers) PostVerificationCode(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code payload"})
		return
	}
	id := c.Param("id")
	if !h.registry.SupplyCode(id, req.Code) {
		c.JSON(http.StatusConflict, gin.H{"error": "no worker is waiting for a code"})
		return
	}
	h.logger.Worker().Info("Verification code supplied", "workerId", id)
	c.JSON(http.StatusOK, gin.H{"delivered": true})
}
