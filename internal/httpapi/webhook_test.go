package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sms-backoffice/internal/campaign"
	"sms-backoffice/internal/dlr"
	"sms-backoffice/internal/message"
	"sms-backoffice/internal/pipeline"

	"github.com/gin-gonic/gin"
)

func newWebhookRouter(t *testing.T, verifiers map[string]SignatureVerifier) (*gin.Engine, *message.MemoryStore, *campaign.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	msgs := message.NewMemoryStore()
	camps := campaign.NewMemoryStore()
	svc := pipeline.NewService(
		dlr.NewNormalizer(), nil,
		message.NewMachine(msgs),
		campaign.NewReconciler(camps, nil, nil),
		campaign.NewDetector(msgs, camps, nil, nil, nil),
		nil, nil,
	)

	h := DLRWebhookHandler{Pipeline: svc, Verifiers: verifiers}
	r := gin.New()
	r.POST("/webhooks/dlr", h.HandleReport)
	r.POST("/webhooks/dlr/:provider", h.HandleReport)
	return r, msgs, camps
}

func seedWebhookMessage(msgs *message.MemoryStore, camps *campaign.MemoryStore) {
	camps.Put(campaign.Campaign{
		ID:           "camp",
		ContactCount: 2,
		SentCount:    1,
		Currency:     "USD",
		Status:       campaign.StatusSending,
	})
	msgs.Put(message.Message{
		ID:                "m1",
		ProviderMessageID: "SM123",
		CampaignID:        "camp",
		Status:            message.StatusSent,
		CostMinor:         10,
		Currency:          "USD",
	})
}

func TestHandleReport_JSONBody(t *testing.T) {
	r, msgs, camps := newWebhookRouter(t, nil)
	seedWebhookMessage(msgs, camps)

	body := `{"message_key":"SM123","status":"delivered","timestamp":"2023-11-14T22:13:20Z"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/dlr", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var res pipeline.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Outcome != pipeline.OutcomeApplied {
		t.Fatalf("expected applied, got %s", res.Outcome)
	}

	msg, _ := msgs.Get("m1")
	if msg.Status != message.StatusDelivered {
		t.Fatalf("expected delivered, got %s", msg.Status)
	}
}

func TestHandleReport_FormBody(t *testing.T) {
	r, msgs, camps := newWebhookRouter(t, nil)
	seedWebhookMessage(msgs, camps)

	body := "MessageSid=SM123&MessageStatus=delivered"
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/dlr/twilio", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	msg, _ := msgs.Get("m1")
	if msg.Status != message.StatusDelivered {
		t.Fatalf("expected delivered, got %s", msg.Status)
	}
}

func TestHandleReport_NoContentTypeFallsBackToJSON(t *testing.T) {
	r, msgs, camps := newWebhookRouter(t, nil)
	seedWebhookMessage(msgs, camps)

	body := `{"message_key":"SM123","status":"failed"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/dlr", strings.NewReader(body))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	msg, _ := msgs.Get("m1")
	if msg.Status != message.StatusFailed {
		t.Fatalf("expected failed, got %s", msg.Status)
	}
}

func TestHandleReport_MissingMessageKeyIs400(t *testing.T) {
	r, _, _ := newWebhookRouter(t, nil)

	body := `{"status":"delivered"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/dlr", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleReport_UnknownMessageIs200(t *testing.T) {
	r, _, _ := newWebhookRouter(t, nil)

	body := `{"message_key":"ghost","status":"delivered"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/dlr", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("carrier must not retry unknown messages, got %d", w.Code)
	}
	var res pipeline.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Outcome != pipeline.OutcomeUnknownMessage {
		t.Fatalf("expected unknown_message, got %s", res.Outcome)
	}
}

func TestHandleReport_SignatureVerifierRejects(t *testing.T) {
	verifiers := map[string]SignatureVerifier{
		"twilio": func(r *http.Request, _ []byte) error {
			if r.Header.Get("X-Twilio-Signature") == "" {
				return errors.New("missing signature")
			}
			return nil
		},
	}
	r, msgs, camps := newWebhookRouter(t, verifiers)
	seedWebhookMessage(msgs, camps)

	body := "MessageSid=SM123&MessageStatus=delivered"
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/dlr/twilio", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	msg, _ := msgs.Get("m1")
	if msg.Status != message.StatusSent {
		t.Fatalf("rejected request must not change state, got %s", msg.Status)
	}
}

func TestHandleReport_SimulatedSkipsVerification(t *testing.T) {
	verifiers := map[string]SignatureVerifier{
		"twilio": func(*http.Request, []byte) error { return errors.New("always reject") },
	}
	r, msgs, camps := newWebhookRouter(t, verifiers)
	seedWebhookMessage(msgs, camps)

	body := "MessageSid=SM123&MessageStatus=delivered"
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/dlr/twilio", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Simulated", "true")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestParseBody_GarbageIs400(t *testing.T) {
	r, _, _ := newWebhookRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/dlr", strings.NewReader("%%%not-a-payload"))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleReport_CompletesCampaign(t *testing.T) {
	r, msgs, camps := newWebhookRouter(t, nil)
	camps.Put(campaign.Campaign{
		ID:           "camp",
		ContactCount: 1,
		SentCount:    1,
		Currency:     "USD",
		Status:       campaign.StatusSending,
	})
	msgs.Put(message.Message{
		ID:                "m1",
		ProviderMessageID: "SM123",
		CampaignID:        "camp",
		Status:            message.StatusSent,
		CostMinor:         10,
		Currency:          "USD",
	})

	ts := time.Unix(1700000000, 0).UTC().Format(time.RFC3339)
	body := `{"message_key":"SM123","status":"delivered","timestamp":"` + ts + `"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/dlr", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	c, _ := camps.Get(req.Context(), "camp")
	if c.Status != campaign.StatusCompleted {
		t.Fatalf("expected completed, got %s", c.Status)
	}
}
