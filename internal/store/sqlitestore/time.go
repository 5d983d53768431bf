package sqlitestore

import (
	"time"

	"github.com/taskgraph/engine/internal/util"
)

// formatPtrTime renders t using util.FormatTime, treating a nil pointer
// the same as the zero value ("-").
func formatPtrTime(t *time.Time) string {
	if t == nil {
		return util.FormatTime(time.Time{})
	}
	return util.FormatTime(*t)
}

// parsePtrTime is formatPtrTime's inverse: "-" parses back to nil rather
// than a pointer to the zero value, so round-tripped WorkflowRun/TaskRun
// timestamps are comparable to the in-memory store's nil-means-unset
// convention.
func parsePtrTime(s string) (*time.Time, error) {
	t, err := util.ParseTime(s)
	if err != nil {
		return nil, err
	}
	if t.IsZero() {
		return nil, nil
	}
	return &t, nil
}
