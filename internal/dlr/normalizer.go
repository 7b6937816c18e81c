package dlr

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Payload is a decoded webhook body. JSON bodies decode to nested maps;
// form-encoded bodies decode to flat string values.
type Payload map[string]any

var ErrNoMessageKey = errors.New("dlr: payload has no resolvable message key")

// Provider is one supported carrier shape: a detector predicate plus a
// normalizer. Detectors are tried in registration order, so more specific
// shapes must be registered before generic ones.
//
// Normalizers must be side-effect free. New carriers are added by registering
// an entry here, not by changing the pipeline.
type Provider struct {
	ID        string
	Detect    func(p Payload) bool
	Normalize func(p Payload, now time.Time) (Report, error)
}

// Normalizer folds heterogeneous carrier payloads into canonical Reports.
type Normalizer struct {
	providers []Provider
	clock     func() time.Time
}

// NewNormalizer returns a Normalizer with all built-in provider shapes
// registered in priority order, ending with the generic fallback.
func NewNormalizer() *Normalizer {
	n := &Normalizer{clock: time.Now}
	n.providers = []Provider{
		twilioProvider(),
		snsProvider(),
		messageBirdProvider(),
		smsProProvider(),
		genericProvider(),
	}
	return n
}

// Normalize converts a raw payload into one canonical Report.
//
// providerHint, when non-empty, selects the provider by id and skips
// detection. An unknown hint falls back to detection so that a misconfigured
// carrier URL does not drop reports.
//
// The only fatal condition is a missing message key. Malformed fields
// (timestamps in particular) are defaulted rather than rejected: the report's
// existence is the essential signal.
func (n *Normalizer) Normalize(providerHint string, p Payload) (Report, error) {
	if p == nil {
		return Report{}, ErrNoMessageKey
	}
	now := n.clock().UTC()

	if providerHint != "" {
		for _, prov := range n.providers {
			if prov.ID == providerHint {
				return prov.Normalize(p, now)
			}
		}
	}

	for _, prov := range n.providers {
		if prov.Detect(p) {
			return prov.Normalize(p, now)
		}
	}
	// genericProvider detects everything; unreachable unless the registry is
	// reconfigured without a fallback.
	return Report{}, ErrNoMessageKey
}

// --- shared field helpers ---

func str(p Payload, key string) string {
	v, ok := p[key]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		// JSON numbers decode to float64; carrier ids are integral.
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

func nested(p Payload, key string) Payload {
	v, ok := p[key]
	if !ok {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return Payload(m)
	}
	return nil
}

// parseWhen parses a provider timestamp, trying the given layouts in order.
// Unparseable or absent values default to now; a report without a usable
// timestamp is still a report.
func parseWhen(raw string, now time.Time, layouts ...string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return now
}
