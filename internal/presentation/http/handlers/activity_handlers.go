package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/store"
)

// ActivityHandlers exposes recorded sends and detected replies.
type ActivityHandlers struct {
	sends   *store.SendRepository
	replies *store.ReplyRepository
	logger  *logging.ChanneledLogger
}

// NewActivityHandlers creates activity handlers with injected dependencies
func NewActivityHandlers(sends *store.SendRepository, replies *store.ReplyRepository, logger *logging.ChanneledLogger) *ActivityHandlers {
	return &ActivityHandlers{sends: sends, replies: replies, logger: logger}
}

func limitParam(c *gin.Context) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// GetSends handles GET /api/v1/sends, optionally filtered by campaign.
func (h *ActivityHandlers) GetSends(c *gin.Context) {
	limit := limitParam(c)
	if campaignID := c.Query("campaign_id"); campaignID != "" {
		sends, err := h.sends.ListByCampaign(campaignID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sends"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sends": sends})
		return
	}
	sends, err := h.sends.ListRecent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sends"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sends": sends})
}

// GetReplies handles GET /api/v1/replies
func (h *ActivityHandlers) GetReplies(c *gin.Context) {
	replies, err := h.replies.ListRecent(limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list replies"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": replies})
}

// GetAccountUsage handles GET /api/v1/accounts/:username/usage - today's
// initial-send count against the daily limit.
func (h *ActivityHandlers) GetAccountUsage(c *gin.Context) {
	username := c.Param("username")
	count, err := h.sends.CountToday(username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count sends"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": username, "sent_today": count})
}
