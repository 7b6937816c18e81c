package main

import (
	"database/sql"
	"time"

	"sms-backoffice/internal/anomaly"
	"sms-backoffice/internal/auth"
	"sms-backoffice/internal/campaign"
	"sms-backoffice/internal/httpapi"
	"sms-backoffice/internal/message"
	"sms-backoffice/internal/pipeline"
	"sms-backoffice/internal/rbac"
	"sms-backoffice/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	auth      *auth.Manager
	pipeline  *pipeline.Service
	campaigns campaign.Store
	messages  message.Store
	anomalies *anomaly.Service
	db        *sql.DB
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if deps.db != nil {
			if err := utils.HealthCheck(c.Request.Context(), deps.db, 2*time.Second); err != nil {
				c.JSON(503, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Carrier webhooks (public). Signature verification is pluggable per
	// provider; unregistered providers are accepted as-is for now.
	{
		h := httpapi.DLRWebhookHandler{
			Pipeline:  deps.pipeline,
			Verifiers: map[string]httpapi.SignatureVerifier{},
		}
		r.POST("/webhooks/dlr", h.HandleReport)
		r.POST("/webhooks/dlr/:provider", h.HandleReport)
	}

	h := httpapi.Handlers{
		Auth:      deps.auth,
		Campaigns: deps.campaigns,
		Messages:  deps.messages,
		Anomalies: deps.anomalies,
	}

	// Token issuance sits outside the auth middleware.
	r.POST("/v1/auth/login", h.Login)

	// protected ops group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.auth))
	{
		campaigns := v1.Group("/campaigns")
		campaigns.Use(rbac.RequireAnyRole(rbac.RoleSupport, rbac.RoleFinance))
		{
			campaigns.GET("/:campaign_id/stats", h.GetCampaignStats)
		}

		anomalies := v1.Group("/anomalies")
		anomalies.Use(rbac.RequireAnyRole(rbac.RoleSupport))
		{
			anomalies.GET("", h.ListAnomalies)
		}
	}
}
