// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gramsender/gramsender-go/internal/application/container"
	"github.com/gramsender/gramsender-go/internal/presentation/http/handlers"
	"github.com/gramsender/gramsender-go/internal/presentation/http/middleware"
	"github.com/gramsender/gramsender-go/pkg/config"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(c *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(c.Logger)
	accountHandlers := handlers.NewAccountHandlers(c.Accounts, c.Logger)
	campaignHandlers := handlers.NewCampaignHandlers(c.Campaigns, c.Assignments, c.Leads, c.Logger)
	workerHandlers := handlers.NewWorkerHandlers(c.Registry, c.Logger)
	activityHandlers := handlers.NewActivityHandlers(c.Sends, c.Replies, c.Logger)
	settingsHandlers := handlers.NewSettingsHandlers(c.Settings, c.Logger, c.RefreshWebhookSettings)

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Event stream for the dashboard.
	r.GET("/ws", func(ctx *gin.Context) {
		c.Broadcaster.HandleConnection(ctx.Writer, ctx.Request)
	})

	api := r.Group("/api/v1")
	api.POST("/auth/login", authHandlers.PostLogin)

	api.Use(middleware.AuthMiddleware(config.JWTSecret))
	{
		accounts := api.Group("/accounts")
		{
			accounts.GET("", accountHandlers.GetAccounts)
			accounts.PUT("", accountHandlers.PutAccount)
			accounts.DELETE("/:username", accountHandlers.DeleteAccount)
			accounts.GET("/:username/usage", activityHandlers.GetAccountUsage)
		}

		campaigns := api.Group("/campaigns")
		{
			campaigns.GET("", campaignHandlers.GetCampaigns)
			campaigns.PUT("", campaignHandlers.PutCampaign)
			campaigns.GET("/:id", campaignHandlers.GetCampaign)
			campaigns.DELETE("/:id", campaignHandlers.DeleteCampaign)
			campaigns.POST("/:id/start", campaignHandlers.PostStart)
			campaigns.POST("/:id/stop", campaignHandlers.PostStop)
			campaigns.GET("/:id/assignments", campaignHandlers.GetAssignments)
			campaigns.POST("/:id/assignments", campaignHandlers.PostAssignment)
			campaigns.DELETE("/:id/assignments/:username", campaignHandlers.DeleteAssignment)
			campaigns.POST("/:id/leads", campaignHandlers.PostLeads)
		}

		workers := api.Group("/workers")
		{
			workers.GET("", workerHandlers.GetWorkers)
			workers.GET("/:id", workerHandlers.GetWorker)
			workers.POST("/:id/stop", workerHandlers.PostStop)
			workers.POST("/:id/verification-code", workerHandlers.PostVerificationCode)
		}

		api.GET("/sends", activityHandlers.GetSends)
		api.GET("/replies", activityHandlers.GetReplies)
		api.GET("/settings", settingsHandlers.GetSettings)
		api.PUT("/settings", settingsHandlers.PutSettings)
	}

	return r
}
