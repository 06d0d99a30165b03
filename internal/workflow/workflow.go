// Package workflow holds the satellite records that accompany an asset
// through procurement, allocation, maintenance and disposal. Each record is
// a small state machine; transitions consult the rbac gate first and return
// the shared typed errors, so a denied or invalid command never changes the
// record.
package workflow

import (
	"fmt"
	"strings"

	"assetflow.org/internal/asset"
)

// Priority ranks procurement and maintenance work.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorities = map[Priority]struct{}{
	PriorityLow:      {},
	PriorityMedium:   {},
	PriorityHigh:     {},
	PriorityCritical: {},
}

// ParsePriority normalizes raw input into a known priority.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := priorities[p]; !ok {
		return "", fmt.Errorf("%w: unknown priority %q", asset.ErrValidation, raw)
	}
	return p, nil
}
