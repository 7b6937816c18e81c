package billing

import (
	"encoding/json"
	"testing"
)

func TestIsSuccess(t *testing.T) {
	cases := []struct {
		name   string
		result any
		want   bool
	}{
		{"string success", "success", true},
		{"string SUCCESS", "SUCCESS", true},
		{"string ok", "ok", true},
		{"string OK", "OK", true},
		{"string one", "1", true},
		{"string true", "true", true},
		{"string done", "done", true},
		{"string padded", "  success  ", true},
		{"bool true", true, true},
		{"int one", 1, true},
		{"int64 one", int64(1), true},
		{"json float one", float64(1), true},
		{"json.Number one", json.Number("1"), true},

		{"nil", nil, false},
		{"bool false", false, false},
		{"string failure", "failure", false},
		{"string error", "error", false},
		{"string zero", "0", false},
		{"string empty", "", false},
		{"string unknown encoding", "yes", false},
		{"int zero", 0, false},
		{"int two", 2, false},
		{"float zero", float64(0), false},
		{"json.Number zero", json.Number("0"), false},
		{"unexpected type", []string{"success"}, false},
	}

	for _, tc := range cases {
		if got := IsSuccess(tc.result); got != tc.want {
			t.Fatalf("%s: IsSuccess(%#v) = %v, want %v", tc.name, tc.result, got, tc.want)
		}
	}
}
