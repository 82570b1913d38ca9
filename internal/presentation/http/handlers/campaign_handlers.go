package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/leads"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/store"
	"github.com/gramsender/gramsender-go/internal/infrastructure/security"
)

// CampaignHandlers contains campaign CRUD, lifecycle and assignment handlers.
type CampaignHandlers struct {
	campaigns   *store.CampaignRepository
	assignments *store.AssignmentRepository
	leads       *leads.Store
	logger      *logging.ChanneledLogger
}

// NewCampaignHandlers creates campaign handlers with injected dependencies
func NewCampaignHandlers(campaigns *store.CampaignRepository, assignments *store.AssignmentRepository, leadStore *leads.Store, logger *logging.ChanneledLogger) *CampaignHandlers {
	return &CampaignHandlers{
		campaigns:   campaigns,
		assignments: assignments,
		leads:       leadStore,
		logger:      logger,
	}
}

// GetCampaigns handles GET /api/v1/campaigns
func (h *CampaignHandlers) GetCampaigns(c *gin.Context) {
	campaigns, err := h.campaigns.List()
	if err != nil {
		h.logger.Database().Error("Failed to list campaigns", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list campaigns"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

// GetCampaign handles GET /api/v1/campaigns/:id
func (h *CampaignHandlers) GetCampaign(c *gin.Context) {
	campaign, err := h.campaigns.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load campaign"})
		return
	}
	if campaign == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// PutCampaign handles PUT /api/v1/campaigns - create or update one campaign
func (h *CampaignHandlers) PutCampaign(c *gin.Context) {
	var campaign outreach.CampaignSpec
	if err := c.ShouldBindJSON(&campaign); err != nil || campaign.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign payload"})
		return
	}
	if campaign.ID == "" {
		campaign.ID = security.GenerateULID()
	}
	if campaign.Status == "" {
		campaign.Status = outreach.CampaignDraft
	}
	if err := h.campaigns.Upsert(campaign); err != nil {
		h.logger.Database().Error("Failed to save campaign", "campaignId", campaign.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save campaign"})
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// DeleteCampaign handles DELETE /api/v1/campaigns/:id
func (h *CampaignHandlers) DeleteCampaign(c *gin.Context) {
	id := c.Param("id")
	if err := h.campaigns.Delete(id); err != nil {
		h.logger.Database().Error("Failed to delete campaign", "campaignId", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete campaign"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// PostStart handles POST /api/v1/campaigns/:id/start - flip to running so
// the poller picks the campaign up on its next pass.
func (h *CampaignHandlers) PostStart(c *gin.Context) {
	id := c.Param("id")
	campaign, err := h.campaigns.Get(id)
	if err != nil || campaign == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}
	assigned, err := h.assignments.AccountsFor(id)
	if err != nil || len(assigned) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "campaign has no assigned accounts"})
		return
	}
	if err := h.campaigns.UpdateStatus(id, outreach.CampaignRunning); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start campaign"})
		return
	}
	h.logger.System().Info("Campaign started", "campaignId", id, "accounts", len(assigned))
	c.JSON(http.StatusOK, gin.H{"status": string(outreach.CampaignRunning)})
}

// PostStop handles POST /api/v1/campaigns/:id/stop
func (h *CampaignHandlers) PostStop(c *gin.Context) {
	id := c.Param("id")
	if err := h.campaigns.UpdateStatus(id, outreach.CampaignDraft); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop campaign"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(outreach.CampaignDraft)})
}

// PostAssignment handles POST /api/v1/campaigns/:id/assignments
func (h *CampaignHandlers) PostAssignment(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment payload"})
		return
	}
	if err := h.assignments.Assign(c.Param("id"), req.Username); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assign account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assigned": req.Username})
}

// DeleteAssignment handles DELETE /api/v1/campaigns/:id/assignments/:username
func (h *CampaignHandlers) DeleteAssignment(c *gin.Context) {
	if err := h.assignments.Unassign(c.Param("id"), c.Param("username")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unassign account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unassigned": c.Param("username")})
}

// GetAssignments handles GET /api/v1/campaigns/:id/assignments
func (h *CampaignHandlers) GetAssignments(c *gin.Context) {
	usernames, err := h.assignments.AccountsFor(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assignments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": usernames})
}

// PostLeads handles POST /api/v1/campaigns/:id/leads - import a lead list
// with optional first/full names for personalization.
func (h *CampaignHandlers) PostLeads(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		Leads []leads.ImportedLead `json:"leads" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Leads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid leads payload"})
		return
	}
	if err := h.leads.SaveJSONL(id, req.Leads); err != nil {
		h.logger.System().Error("Failed to save leads", "campaignId", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save leads"})
		return
	}
	if campaign, err := h.campaigns.Get(id); err == nil && campaign != nil {
		campaign.LeadCount = len(req.Leads)
		if err := h.campaigns.Upsert(*campaign); err != nil {
			h.logger.Database().Warn("Failed to update lead count", "campaignId", id, "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"imported": len(req.Leads)})
}
