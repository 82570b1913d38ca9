package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/store"
)

// AccountHandlers contains the account CRUD handlers.
type AccountHandlers struct {
	accounts *store.AccountRepository
	logger   *logging.ChanneledLogger
}

// NewAccountHandlers creates account handlers with injected dependencies
func NewAccountHandlers(accounts *store.AccountRepository, logger *logging.ChanneledLogger) *AccountHandlers {
	return &AccountHandlers{accounts: accounts, logger: logger}
}

// sanitize strips secrets before an account leaves the API.
func sanitize(cred outreach.AccountCredential) gin.H {
	return gin.H{
		"username":        cred.Username,
		"displayName":     cred.DisplayName,
		"hasPassword":     cred.Password != "",
		"hasSession":      cred.SessionToken != "",
		"proxyConfigured": cred.Proxy != "",
	}
}

// GetAccounts handles GET /api/v1/accounts
func (h *AccountHandlers) GetAccounts(c *gin.Context) {
	accounts, err := h.accounts.List()
	if err != nil {
		h.logger.Database().Error("Failed to list accounts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list accounts"})
		return
	}
	out := make([]gin.H, 0, len(accounts))
	for _, cred := range accounts {
		out = append(out, sanitize(cred))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

// PutAccount handles PUT /api/v1/accounts - create or update one account
func (h *AccountHandlers) PutAccount(c *gin.Context) {
	var cred outreach.AccountCredential
	if err := c.ShouldBindJSON(&cred); err != nil || cred.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account payload"})
		return
	}
	if err := h.accounts.Upsert(cred); err != nil {
		h.logger.Database().Error("Failed to save account", "account", cred.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save account"})
		return
	}
	h.logger.System().Info("Account saved", "account", cred.Username)
	c.JSON(http.StatusOK, sanitize(cred))
}

// DeleteAccount handles DELETE /api/v1/accounts/:username
func (h *AccountHandlers) DeleteAccount(c *gin.Context) {
	username := c.Param("username")
	if err := h.accounts.Delete(username); err != nil {
		h.logger.Database().Error("Failed to delete account", "account", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": username})
}
