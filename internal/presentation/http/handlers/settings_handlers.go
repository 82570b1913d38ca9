package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/store"
)

// SettingsHandlers manages global webhook and alerting settings.
type SettingsHandlers struct {
	settings *store.SettingsRepository
	logger   *logging.ChanneledLogger
	// onSave lets the container refresh live webhook state after a write.
	onSave func()
}

// NewSettingsHandlers creates settings handlers with injected dependencies
func NewSettingsHandlers(settings *store.SettingsRepository, logger *logging.ChanneledLogger, onSave func()) *SettingsHandlers {
	return &SettingsHandlers{settings: settings, logger: logger, onSave: onSave}
}

// GetSettings handles GET /api/v1/settings
func (h *SettingsHandlers) GetSettings(c *gin.Context) {
	settings, err := h.settings.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// PutSettings handles PUT /api/v1/settings
func (h *SettingsHandlers) PutSettings(c *gin.Context) {
	var settings store.GlobalSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings payload"})
		return
	}
	if err := h.settings.Save(settings); err != nil {
		h.logger.Database().Error("Failed to save settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}
	if h.onSave != nil {
		h.onSave()
	}
	h.logger.System().Info("Global settings updated")
	c.JSON(http.StatusOK, settings)
}
