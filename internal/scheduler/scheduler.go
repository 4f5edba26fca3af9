// Package scheduler runs the per-tenant pipeline over every onboarded tenant
// in fixed-size concurrent batches.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/pulse/internal/events"
	"github.com/kalambet/pulse/internal/pipeline"
)

// ErrRunInProgress is returned when Run is called while another run is in
// flight.
var ErrRunInProgress = errors.New("a pulse run is already in progress")

// ReasonDeadline marks tenants that were never started because the run
// ceiling passed.
const ReasonDeadline = "run deadline exceeded"

// TenantLister enumerates onboarded tenants. Implemented by storage.Store.
type TenantLister interface {
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// Runner executes one tenant's cycle. Implemented by pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, tenantID string, manual bool) pipeline.Outcome
}

// Alerter escalates a failed tenant to the admin channel.
// Implemented by notify.Alerter.
type Alerter interface {
	Alert(ctx context.Context, tenantID string, cause error)
}

type Options struct {
	// BatchSize is the number of tenants processed concurrently. Defaults to 10.
	BatchSize int
	// BatchPause is the wait between batches.
	BatchPause time.Duration
	// RunTimeout bounds a whole run. Zero means no ceiling.
	RunTimeout time.Duration
	// NotifyTimeout bounds each admin alert and event publish. They run
	// detached from the run deadline so a late failure is still reported.
	// Defaults to 10s.
	NotifyTimeout time.Duration
}

// Summary is the result of one run.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Outcomes  []pipeline.Outcome
	Duration  time.Duration
}

type Scheduler struct {
	tenants TenantLister
	runner  Runner
	alerter Alerter
	events  events.Publisher
	opts    Options
	running atomic.Bool
	// sleep waits between batches; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Scheduler. A nil publisher disables events.
func New(tenants TenantLister, runner Runner, alerter Alerter, pub events.Publisher, opts Options) *Scheduler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	return &Scheduler{
		tenants: tenants,
		runner:  runner,
		alerter: alerter,
		events:  pub,
		opts:    opts,
		sleep:   sleepCtx,
	}
}

// Run processes every onboarded tenant once. Individual tenant failures are
// reported in the Summary; only a failure to enumerate tenants is returned
// as an error.
func (s *Scheduler) Run(ctx context.Context, manual bool) (Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Summary{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	sum := Summary{RunID: uuid.New().String()}
	logger := slog.With("run_id", sum.RunID)

	ids, err := s.tenants.ListTenantIDs(ctx)
	if err != nil {
		return sum, fmt.Errorf("enumerating tenants: %w", err)
	}
	ids = dedupe(ids)
	sum.Total = len(ids)
	logger.Info("pulse run started", "tenants", len(ids), "manual", manual)
	s.publish(ctx, events.TopicRunStarted, events.RunStarted{
		RunID:     sum.RunID,
		Manual:    manual,
		Tenants:   len(ids),
		StartedAt: start.UTC(),
	})

	sum.Outcomes = make([]pipeline.Outcome, len(ids))
	for lo := 0; lo < len(ids); lo += s.opts.BatchSize {
		hi := min(lo+s.opts.BatchSize, len(ids))
		if lo > 0 && s.opts.BatchPause > 0 {
			if err := s.sleep(ctx, s.opts.BatchPause); err != nil {
				logger.Warn("run stopped between batches", "error", err)
			}
		}
		if ctx.Err() != nil {
			for i := lo; i < len(ids); i++ {
				sum.Outcomes[i] = pipeline.Outcome{TenantID: ids[i], Status: pipeline.StatusSkipped, Reason: ReasonDeadline}
				s.finishTenant(ctx, sum.RunID, sum.Outcomes[i])
			}
			break
		}
		s.runBatch(ctx, sum.RunID, ids[lo:hi], sum.Outcomes[lo:hi], manual)
	}

	for _, o := range sum.Outcomes {
		switch o.Status {
		case pipeline.StatusSucceeded:
			sum.Succeeded++
		case pipeline.StatusSkipped:
			sum.Skipped++
		case pipeline.StatusFailed:
			sum.Failed++
		}
	}
	sum.Duration = time.Since(start)

	logger.Info("pulse run finished",
		"total", sum.Total,
		"succeeded", sum.Succeeded,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"duration", sum.Duration.Round(time.Millisecond),
	)
	s.publish(ctx, events.TopicRunFinished, events.RunFinished{
		RunID:      sum.RunID,
		Total:      sum.Total,
		Succeeded:  sum.Succeeded,
		Skipped:    sum.Skipped,
		Failed:     sum.Failed,
		DurationMS: sum.Duration.Milliseconds(),
	})
	return sum, nil
}

// runBatch runs the tenants concurrently and writes each outcome into the
// matching slot of out.
func (s *Scheduler) runBatch(ctx context.Context, runID string, ids []string, out []pipeline.Outcome, manual bool) {
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			out[i] = s.runOne(ctx, runID, id, manual)
			return nil
		})
	}
	_ = g.Wait()
}

// RunTenant runs a single tenant's cycle under the same overlap guard as Run.
func (s *Scheduler) RunTenant(ctx context.Context, tenantID string, manual bool) (pipeline.Outcome, error) {
	if !s.running.CompareAndSwap(false, true) {
		return pipeline.Outcome{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}
	return s.runOne(ctx, uuid.New().String(), tenantID, manual), nil
}

// runOne runs a tenant, escalates a failure and publishes the outcome.
func (s *Scheduler) runOne(ctx context.Context, runID, id string, manual bool) pipeline.Outcome {
	o := s.runTenant(ctx, id, manual)
	if o.Status == pipeline.StatusFailed {
		slog.Error("tenant pulse failed", "run_id", runID, "tenant", id, "error", o.Err)
		if s.alerter != nil {
			actx, cancel := s.detached(ctx)
			s.alerter.Alert(actx, id, o.Err)
			cancel()
		}
	}
	s.finishTenant(ctx, runID, o)
	return o
}

// runTenant converts a panic inside one tenant's cycle into a failed Outcome.
func (s *Scheduler) runTenant(ctx context.Context, id string, manual bool) (out pipeline.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			out = pipeline.Outcome{TenantID: id, Status: pipeline.StatusFailed, Reason: err.Error(), Err: err}
		}
	}()
	return s.runner.Run(ctx, id, manual)
}

func (s *Scheduler) finishTenant(ctx context.Context, runID string, o pipeline.Outcome) {
	ev := events.TenantFinished{
		RunID:      runID,
		TenantID:   o.TenantID,
		Status:     string(o.Status),
		Reason:     o.Reason,
		Fallback:   o.Fallback,
		DurationMS: o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}
	s.publish(ctx, events.TopicTenantFinished, ev)
}

// detached keeps ctx's values but swaps its deadline for NotifyTimeout.
func (s *Scheduler) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
}

func (s *Scheduler) publish(ctx context.Context, topic string, ev any) {
	pctx, cancel := s.detached(ctx)
	defer cancel()
	if err := s.events.Publish(pctx, topic, ev); err != nil {
		slog.Warn("publishing event", "topic", topic, "error", err)
	}
}

// Loop triggers a scheduled run every interval until ctx is cancelled.
func (s *Scheduler) Loop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Run(ctx, false); err != nil {
				if errors.Is(err, ErrRunInProgress) {
					slog.Warn("scheduled run skipped: previous run still in flight")
					continue
				}
				slog.Error("scheduled run failed", "error", err)
			}
		}
	}
}

// dedupe drops blank and repeated ids. Ids are kept verbatim since every
// later query matches them exactly.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if strings.TrimSpace(id) == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
