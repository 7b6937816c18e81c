package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"sms-backoffice/internal/anomaly"
	"sms-backoffice/internal/auth"
	"sms-backoffice/internal/campaign"
	"sms-backoffice/internal/message"
	"sms-backoffice/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups the ops HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Campaigns campaign.Store
	Messages  message.Store
	Anomalies *anomaly.Service
}

// --- Auth ---

type loginRequest struct {
	OperatorID string `json:"operator_id"`
	Role       string `json:"role"`
}

// Login issues an operator access token.
//
// NOTE: Credential validation is delegated to the SSO proxy fronting this
// service; the handler only mints the token shape the middleware expects.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.OperatorID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "operator_id, role required"})
		return
	}
	tok, err := h.Auth.Issue(time.Now(), req.OperatorID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok})
}

// --- Campaign stats ---

type campaignStatsResponse struct {
	Campaign campaign.Campaign      `json:"campaign"`
	Tally    map[message.Status]int `json:"tally"`
	// TallyCostMinor is the delivered-message cost sum from the message
	// store, which can run ahead of the campaign's incremental counter.
	TallyCostMinor int64 `json:"tally_cost_minor"`
}

// GetCampaignStats returns the stored campaign row next to the
// authoritative per-message tally so operators can see counter drift.
func (h Handlers) GetCampaignStats(c *gin.Context) {
	if h.Campaigns == nil || h.Messages == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stores not configured"})
		return
	}
	id := c.Param("campaign_id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id required"})
		return
	}

	camp, err := h.Campaigns.Get(c.Request.Context(), id)
	if errors.Is(err, campaign.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign lookup failed"})
		return
	}

	tally, err := h.Messages.CountByStatus(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "tally failed"})
		return
	}
	cost, err := h.Messages.SumCostByStatus(c.Request.Context(), id, message.StatusDelivered)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "tally failed"})
		return
	}

	c.JSON(http.StatusOK, campaignStatsResponse{
		Campaign:       camp,
		Tally:          tally,
		TallyCostMinor: cost,
	})
}

// --- Anomalies ---

func (h Handlers) ListAnomalies(c *gin.Context) {
	if h.Anomalies == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "anomalies not configured"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	// Attribute access to the anomaly log; support uses it when chasing
	// billing disputes.
	if operatorID, err := auth.OperatorID(c.Request.Context()); err == nil {
		logger.FromGin(c).Info("anomaly log viewed",
			"operator_id", operatorID, "campaign_id", c.Query("campaign_id"))
	}

	events, err := h.Anomalies.List(c.Request.Context(), c.Query("campaign_id"), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "anomaly lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"anomalies": events})
}
