package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/pulse/internal/storage"
)

// Notifier sends briefings, falling back to plain text when the transport
// rejects the Markdown rendition.
type Notifier struct {
	transport Transport
}

func NewNotifier(t Transport) *Notifier {
	return &Notifier{transport: t}
}

// Deliver sends text to chatID. An empty text sends nothing.
func (n *Notifier) Deliver(ctx context.Context, chatID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	err := n.transport.Send(ctx, chatID, text, FormatMarkdown)
	if err == nil {
		return nil
	}
	slog.Warn("markdown rejected, retrying as plain text", "chat_id", chatID, "error", err)
	if ctx.Err() != nil {
		return fmt.Errorf("delivering briefing: %w", err)
	}
	if err := n.transport.Send(ctx, chatID, text, FormatPlain); err != nil {
		return fmt.Errorf("delivering briefing as plain text: %w", err)
	}
	return nil
}

// JobAlertType is the outbox job type of undelivered admin alerts.
const JobAlertType = "admin_alert"

// AlertPayload is the outbox job payload for an admin alert.
type AlertPayload struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// JobQueue stores alerts that could not be sent right away.
// Implemented by storage.Store.
type JobQueue interface {
	EnqueueJob(job storage.Job) error
}

// Alerter reports per-tenant failures to the single admin chat.
type Alerter struct {
	transport Transport
	chatID    string
	queue     JobQueue
}

// NewAlerter returns an Alerter. An empty chatID disables alerts; a nil queue
// drops alerts that fail to send.
func NewAlerter(t Transport, chatID string, queue JobQueue) *Alerter {
	return &Alerter{transport: t, chatID: chatID, queue: queue}
}

// AlertText formats the admin message for a tenant failure.
func AlertText(tenantID string, err error) string {
	return fmt.Sprintf("🚨 Pulse Failure: %s\nErr: %v", tenantID, err)
}

// Alert sends the failure to the admin chat, queueing it for retry when the
// transport is unavailable. It never returns an error; alerting must not
// fail the run.
func (a *Alerter) Alert(ctx context.Context, tenantID string, cause error) {
	if a == nil || a.chatID == "" {
		slog.Warn("admin alert dropped: no admin chat configured", "tenant", tenantID, "error", cause)
		return
	}
	text := AlertText(tenantID, cause)
	err := a.transport.Send(ctx, a.chatID, text, FormatPlain)
	if err == nil {
		return
	}
	slog.Warn("admin alert not delivered", "tenant", tenantID, "error", err)
	if a.queue == nil {
		return
	}
	payload, _ := json.Marshal(AlertPayload{ChatID: a.chatID, Text: text})
	job := storage.Job{ID: uuid.New().String(), Type: JobAlertType, PayloadJSON: string(payload), MaxAttempts: 3}
	if err := a.queue.EnqueueJob(job); err != nil {
		slog.Error("queueing admin alert", "tenant", tenantID, "error", err)
	}
}
