// Package pipeline runs one tenant's cycle:
// gate, aggregate, reconcile, persist, notify.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/pulse/internal/aggregate"
	"github.com/kalambet/pulse/internal/persist"
	"github.com/kalambet/pulse/internal/reconcile"
	"github.com/kalambet/pulse/internal/schedule"
	"github.com/kalambet/pulse/internal/tenant"
)

// Status is the end state of one tenant cycle.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// ReasonNothingToDo marks a tenant with no pending notes and no open tasks.
const ReasonNothingToDo = "nothing_to_do"

// Outcome reports what happened to one tenant. Failures are values, not
// panics or errors, so a batch can summarize them.
type Outcome struct {
	TenantID string
	Status   Status
	Reason   string
	Err      error
	// Fallback is set when the generative service reply was unusable.
	Fallback  bool
	Delivered bool
	Report    persist.Report
	// Warnings are non-fatal problems: failed item writes, undelivered briefing.
	Warnings []string
	Duration time.Duration
}

type ProfileLoader interface {
	Load(ctx context.Context, tenantID string) (tenant.Profile, error)
}

type Aggregator interface {
	Aggregate(ctx context.Context, p tenant.Profile, d schedule.Decision) (aggregate.Bundle, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, b aggregate.Bundle) reconcile.Result
}

type Writer interface {
	Apply(ctx context.Context, tenantID string, res reconcile.Result, consumedDumpIDs []string) (persist.Report, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, chatID, text string) error
}

// Pipeline wires the cycle's components. All collaborators are injected.
type Pipeline struct {
	profiles   ProfileLoader
	gate       schedule.Gate
	aggregator Aggregator
	reconciler Reconciler
	writer     Writer
	notifier   Deliverer
	now        func() time.Time
}

func New(profiles ProfileLoader, gate schedule.Gate, agg Aggregator, rec Reconciler, w Writer, n Deliverer) *Pipeline {
	return &Pipeline{
		profiles:   profiles,
		gate:       gate,
		aggregator: agg,
		reconciler: rec,
		writer:     w,
		notifier:   n,
		now:        time.Now,
	}
}

// Run executes one cycle for tenantID. manual bypasses the delivery hours
// but never the trial expiry.
func (p *Pipeline) Run(ctx context.Context, tenantID string, manual bool) (out Outcome) {
	start := time.Now()
	out.TenantID = tenantID
	defer func() { out.Duration = time.Since(start) }()

	prof, err := p.profiles.Load(ctx, tenantID)
	if err != nil {
		return failed(out, fmt.Errorf("loading profile: %w", err))
	}

	d := p.gate.Decide(schedule.Input{
		Now:         p.now(),
		OffsetHours: prof.OffsetHours,
		Tier:        prof.Tier,
		Manual:      manual,
		TrialStart:  prof.TrialStart,
	})
	if !d.Proceed {
		slog.Debug("tenant skipped by gate", "tenant", tenantID, "reason", d.Reason, "local", d.Local.Format("Mon 15:04"))
		out.Status, out.Reason = StatusSkipped, string(d.Reason)
		return out
	}

	b, err := p.aggregator.Aggregate(ctx, prof, d)
	if err != nil {
		return failed(out, fmt.Errorf("aggregating context: %w", err))
	}
	if b.Empty() {
		slog.Debug("tenant has nothing to do", "tenant", tenantID)
		out.Status, out.Reason = StatusSkipped, ReasonNothingToDo
		return out
	}

	res := p.reconciler.Reconcile(ctx, b)
	out.Fallback = res.Fallback

	rep, err := p.writer.Apply(ctx, tenantID, res, b.DumpIDs())
	out.Report = rep
	if err != nil {
		return failed(out, fmt.Errorf("persisting result: %w", err))
	}
	if rep.ItemErrors != nil {
		out.Warnings = append(out.Warnings, rep.ItemErrors.Error())
	}

	if res.Briefing != "" {
		if err := p.notifier.Deliver(ctx, prof.ChatID, res.Briefing); err != nil {
			slog.Warn("briefing not delivered", "tenant", tenantID, "error", err)
			out.Warnings = append(out.Warnings, err.Error())
		} else {
			out.Delivered = true
		}
	}

	out.Status, out.Reason = StatusSucceeded, string(d.Reason)
	slog.Info("tenant pulsed",
		"tenant", tenantID,
		"reason", d.Reason,
		"notes", len(b.Dumps),
		"closed", rep.TasksClosed,
		"created", rep.TasksCreated,
		"fallback", res.Fallback,
		"delivered", out.Delivered,
	)
	return out
}

func failed(out Outcome, err error) Outcome {
	out.Status, out.Err, out.Reason = StatusFailed, err, err.Error()
	return out
}
