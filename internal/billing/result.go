package billing

import (
	"encoding/json"
	"strings"
)

// Upstream billing endpoints are inconsistent about how they say "yes":
// depending on the endpoint and its age the result field arrives as
// "success", "OK", "1", the number 1, or a bare boolean. IsSuccess is the
// single classification point for all of them; anything outside the table
// is a failure, including encodings we have never seen.
func IsSuccess(result any) bool {
	switch v := result.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return successStrings[strings.ToLower(strings.TrimSpace(v))]
	case int:
		return v == 1
	case int64:
		return v == 1
	case float64:
		// encoding/json decodes all JSON numbers into float64.
		return v == 1
	case json.Number:
		return v.String() == "1"
	default:
		return false
	}
}

var successStrings = map[string]bool{
	"success": true,
	"ok":      true,
	"1":       true,
	"true":    true,
	"done":    true,
}
