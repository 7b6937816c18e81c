package dlr

import (
	"strings"
	"time"
)

// Built-in provider shapes. Status vocabularies are folded into the four
// canonical statuses; strings not in a provider's map fold to failed with the
// raw value preserved in Report.RawStatus.

func foldStatus(vocab map[string]Status, raw string) Status {
	if s, ok := vocab[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return StatusFailed
}

// --- Twilio-style: form-encoded, keyed on (MessageSid, MessageStatus) ---

func twilioProvider() Provider {
	vocab := map[string]Status{
		"delivered":   StatusDelivered,
		"failed":      StatusFailed,
		"undelivered": StatusUndelivered,
	}
	return Provider{
		ID: "twilio",
		Detect: func(p Payload) bool {
			return str(p, "MessageSid") != "" && str(p, "MessageStatus") != ""
		},
		Normalize: func(p Payload, now time.Time) (Report, error) {
			sid := str(p, "MessageSid")
			if sid == "" {
				return Report{}, ErrNoMessageKey
			}
			raw := str(p, "MessageStatus")
			return Report{
				MessageKey:        sid,
				Status:            foldStatus(vocab, raw),
				Timestamp:         now, // Twilio status callbacks carry no event timestamp
				ErrorCode:         str(p, "ErrorCode"),
				ErrorMessage:      str(p, "ErrorMessage"),
				ProviderID:        "twilio",
				ProviderMessageID: sid,
				RawStatus:         raw,
			}, nil
		},
	}
}

// --- SNS-style: JSON, nested notification.{messageId,status,timestamp,reasonForFailure} ---

func snsProvider() Provider {
	vocab := map[string]Status{
		"delivered": StatusDelivered,
		"success":   StatusDelivered,
		"failure":   StatusFailed,
		"failed":    StatusFailed,
	}
	return Provider{
		ID: "sns",
		Detect: func(p Payload) bool {
			n := nested(p, "notification")
			return n != nil && str(n, "messageId") != ""
		},
		Normalize: func(p Payload, now time.Time) (Report, error) {
			n := nested(p, "notification")
			if n == nil {
				return Report{}, ErrNoMessageKey
			}
			key := str(n, "messageId")
			if key == "" {
				return Report{}, ErrNoMessageKey
			}
			raw := str(n, "status")
			return Report{
				MessageKey:        key,
				Status:            foldStatus(vocab, raw),
				Timestamp:         parseWhen(str(n, "timestamp"), now, time.RFC3339, "2006-01-02 15:04:05"),
				ErrorMessage:      str(n, "reasonForFailure"),
				ProviderID:        "sns",
				ProviderMessageID: key,
				RawStatus:         raw,
			}, nil
		},
	}
}

// --- MessageBird-style: JSON, keyed on (id, status, updatedDatetime, errors[0]) ---

func messageBirdProvider() Provider {
	vocab := map[string]Status{
		"delivered":       StatusDelivered,
		"delivery_failed": StatusFailed,
		"failed":          StatusFailed,
		"expired":         StatusExpired,
	}
	return Provider{
		ID: "messagebird",
		Detect: func(p Payload) bool {
			return str(p, "id") != "" && str(p, "status") != "" && str(p, "updatedDatetime") != ""
		},
		Normalize: func(p Payload, now time.Time) (Report, error) {
			key := str(p, "id")
			if key == "" {
				return Report{}, ErrNoMessageKey
			}
			raw := str(p, "status")
			r := Report{
				MessageKey:        key,
				Status:            foldStatus(vocab, raw),
				Timestamp:         parseWhen(str(p, "updatedDatetime"), now, time.RFC3339),
				ProviderID:        "messagebird",
				ProviderMessageID: key,
				RawStatus:         raw,
			}
			if errs, ok := p["errors"].([]any); ok && len(errs) > 0 {
				if e, ok := errs[0].(map[string]any); ok {
					r.ErrorCode = str(Payload(e), "code")
					r.ErrorMessage = str(Payload(e), "description")
				}
			}
			return r, nil
		},
	}
}

// --- Fixed-width-date style: (order_id, status, delivery_date = YYYYMMDDHHMMSS) ---

func smsProProvider() Provider {
	vocab := map[string]Status{
		"delivrd":     StatusDelivered,
		"delivered":   StatusDelivered,
		"undeliv":     StatusUndelivered,
		"undelivered": StatusUndelivered,
		"expired":     StatusExpired,
		"rejectd":     StatusFailed,
		"failed":      StatusFailed,
	}
	return Provider{
		ID: "smspro",
		Detect: func(p Payload) bool {
			return str(p, "order_id") != "" && str(p, "status") != ""
		},
		Normalize: func(p Payload, now time.Time) (Report, error) {
			key := str(p, "order_id")
			if key == "" {
				return Report{}, ErrNoMessageKey
			}
			raw := str(p, "status")
			return Report{
				MessageKey: key,
				Status:     foldStatus(vocab, raw),
				// delivery_date is a positional YYYYMMDDHHMMSS string.
				Timestamp:         parseWhen(str(p, "delivery_date"), now, "20060102150405"),
				ErrorCode:         str(p, "error_code"),
				ProviderID:        "smspro",
				ProviderMessageID: key,
				RawStatus:         raw,
			}, nil
		},
	}
}

// --- Generic fallback: payload already uses canonical field names ---

func genericProvider() Provider {
	return Provider{
		ID: "generic",
		Detect: func(p Payload) bool {
			return true
		},
		Normalize: func(p Payload, now time.Time) (Report, error) {
			key := str(p, "messageKey")
			if key == "" {
				key = str(p, "message_key")
			}
			if key == "" {
				key = str(p, "message_id")
			}
			if key == "" {
				return Report{}, ErrNoMessageKey
			}
			status := Status(strings.ToLower(str(p, "status")))
			raw := str(p, "status")
			if !status.Valid() {
				status = StatusFailed
			}
			providerID := str(p, "providerId")
			if providerID == "" {
				providerID = "generic"
			}
			pmid := str(p, "providerMessageId")
			if pmid == "" {
				pmid = key
			}
			return Report{
				MessageKey:        key,
				Status:            status,
				Timestamp:         parseWhen(str(p, "timestamp"), now, time.RFC3339, "2006-01-02 15:04:05"),
				ErrorCode:         str(p, "errorCode"),
				ErrorMessage:      str(p, "errorMessage"),
				ProviderID:        providerID,
				ProviderMessageID: pmid,
				RawStatus:         raw,
			}, nil
		},
	}
}
