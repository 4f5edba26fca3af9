// Package events publishes run and tenant outcome events.
package events

import (
	"context"
	"time"
)

// Event topics.
const (
	TopicRunStarted     = "pulse.run.started"
	TopicTenantFinished = "pulse.tenant.finished"
	TopicRunFinished    = "pulse.run.finished"
)

type RunStarted struct {
	RunID     string    `json:"run_id"`
	Manual    bool      `json:"manual"`
	Tenants   int       `json:"tenants"`
	StartedAt time.Time `json:"started_at"`
}

type TenantFinished struct {
	RunID      string `json:"run_id"`
	TenantID   string `json:"tenant_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
	Fallback   bool   `json:"fallback,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type RunFinished struct {
	RunID      string `json:"run_id"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	DurationMS int64  `json:"duration_ms"`
}

// Publisher publishes JSON events to topics.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
