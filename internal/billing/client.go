package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sms-backoffice/internal/config"
)

// SippyClient settles a completed campaign against the upstream billing API.
// The call is idempotent upstream (settling a settled campaign is a no-op),
// so the caller is free to retry out of band.
type SippyClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	logger    *slog.Logger
}

func NewSippyClient(cfg config.BillingConfig, logger *slog.Logger) *SippyClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SippyClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		authToken: cfg.AuthToken,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type settleRequest struct {
	CampaignID string `json:"campaign_id"`
}

type settleResponse struct {
	Result  any    `json:"result"`
	Message string `json:"message"`
}

// OnCampaignCompleted implements campaign.BillingCollaborator.
func (c *SippyClient) OnCampaignCompleted(ctx context.Context, campaignID string) error {
	reqBody, err := json.Marshal(settleRequest{CampaignID: campaignID})
	if err != nil {
		return err
	}

	url := c.baseURL + "/campaigns/settle"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("billing: settle request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("billing: settle %s: unexpected status %d body=%q", campaignID, resp.StatusCode, string(body))
	}

	var sr settleResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return fmt.Errorf("billing: settle %s: decode response: %w body=%q", campaignID, err, string(body))
	}
	if !IsSuccess(sr.Result) {
		return fmt.Errorf("billing: settle %s: upstream rejected: result=%v message=%q", campaignID, sr.Result, sr.Message)
	}

	c.logger.Info("campaign settled", "campaign_id", campaignID)
	return nil
}

// Nop is the collaborator used when no billing endpoint is configured
// (local development, tests). It only logs.
type Nop struct {
	Logger *slog.Logger
}

func (n Nop) OnCampaignCompleted(_ context.Context, campaignID string) error {
	if n.Logger != nil {
		n.Logger.Info("billing disabled, skipping settle", "campaign_id", campaignID)
	}
	return nil
}
