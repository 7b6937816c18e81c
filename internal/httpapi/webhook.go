package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"sms-backoffice/internal/dlr"
	"sms-backoffice/internal/pipeline"

	"github.com/gin-gonic/gin"
)

// SignatureVerifier authenticates an inbound webhook request for one
// provider. The raw body is passed separately because gin has already
// consumed the request body by the time verification runs.
type SignatureVerifier func(r *http.Request, body []byte) error

// TrustAll accepts every request. Inbound webhook authenticity is a known
// trust gap; providers that support signing get a real verifier registered
// per provider id.
func TrustAll(*http.Request, []byte) error { return nil }

// DLRWebhookHandler terminates carrier delivery-report callbacks.
//
// Response contract: 400 only when the payload cannot be tied to any
// message; every other disposition returns 200 with the outcome in the
// body. Carriers retry non-2xx responses with exponential backoff, and
// none of the non-malformed dispositions can be resolved by a retry.
type DLRWebhookHandler struct {
	Pipeline  *pipeline.Service
	Verifiers map[string]SignatureVerifier
}

const simulatedHeader = "X-Simulated"

func (h DLRWebhookHandler) HandleReport(c *gin.Context) {
	provider := c.Param("provider")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !strings.EqualFold(c.GetHeader(simulatedHeader), "true") {
		verify := h.verifierFor(provider)
		if err := verify(c.Request, body); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
			return
		}
	}

	payload, err := parseBody(c.ContentType(), body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unparseable payload"})
		return
	}

	res, err := h.Pipeline.Process(c.Request.Context(), provider, payload)
	if errors.Is(err, dlr.ErrNoMessageKey) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "no message key in payload"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report processing failed"})
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h DLRWebhookHandler) verifierFor(provider string) SignatureVerifier {
	if v, ok := h.Verifiers[provider]; ok && v != nil {
		return v
	}
	return TrustAll
}

// parseBody decodes the raw body into a generic payload. Carriers disagree
// on encodings: JSON is the norm, but several still post form-encoded
// callbacks, some without a usable Content-Type at all.
func parseBody(contentType string, body []byte) (dlr.Payload, error) {
	switch {
	case strings.Contains(contentType, "json"):
		return parseJSON(body)
	case strings.Contains(contentType, "x-www-form-urlencoded"):
		return parseForm(body)
	default:
		p, err := parseJSON(body)
		if err == nil {
			return p, nil
		}
		return parseForm(body)
	}
}

func parseJSON(body []byte) (dlr.Payload, error) {
	var p dlr.Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("httpapi: empty payload")
	}
	return p, nil
}

func parseForm(body []byte) (dlr.Payload, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.New("httpapi: empty payload")
	}
	p := make(dlr.Payload, len(values))
	for k, v := range values {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	return p, nil
}
