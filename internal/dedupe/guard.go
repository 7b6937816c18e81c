package dedupe

import (
	"context"
	"fmt"

	"sms-backoffice/internal/dlr"
)

// Guard is the idempotency check for delivery reports.
//
// Accept claims the report's dedup key. Exactly one concurrent caller for the
// same key observes fresh=true; all others observe fresh=false without error.
// Callers seeing fresh=false must stop without further side effects.
//
// Keys are retained only for a bounded window. Carriers do not replay
// indefinitely, and a replayed terminal-status report past the window is
// rejected by the status machine anyway.
type Guard interface {
	Accept(ctx context.Context, r dlr.Report) (fresh bool, err error)
}

// Key derives the stable dedup key for a report: same message, same status,
// same carrier timestamp means same report.
func Key(r dlr.Report) string {
	return fmt.Sprintf("dlr:dedup:%s|%s|%d", r.MessageKey, r.Status, r.Timestamp.UTC().Unix())
}
