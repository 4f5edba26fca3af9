package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/pulse/internal/dashboard"
	"github.com/kalambet/pulse/internal/pipeline"
	"github.com/kalambet/pulse/internal/scheduler"
	"github.com/kalambet/pulse/internal/storage"
	"github.com/kalambet/pulse/internal/tenant"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ManualHeader forces a manual run when set to a true value.
const ManualHeader = "X-Manual-Trigger"

// Runner starts pulse runs. Implemented by scheduler.Scheduler.
type Runner interface {
	Run(ctx context.Context, manual bool) (scheduler.Summary, error)
	RunTenant(ctx context.Context, tenantID string, manual bool) (pipeline.Outcome, error)
}

type Deps struct {
	Store     *storage.Store
	Tenants   *tenant.Manager
	Dashboard *dashboard.Dashboard
	Runner    Runner
	// Secret guards /api/pulse. Empty rejects every trigger.
	Secret string
	// Token guards /tenants. Empty disables those routes.
	Token string
}

// NewRouter returns the HTTP surface: health, the run trigger and the tenant
// management routes.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(SecretAuth(deps.Secret))
		r.Get("/api/pulse", handleTrigger(deps))
		r.Post("/api/pulse", handleTrigger(deps))
	})

	if deps.Token != "" {
		r.Mount("/tenants/{tenantID}", newTenantHandler(deps))
	}
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type outcomeJSON struct {
	TenantID  string   `json:"tenant_id"`
	Status    string   `json:"status"`
	Reason    string   `json:"reason,omitempty"`
	Error     string   `json:"error,omitempty"`
	Fallback  bool     `json:"fallback,omitempty"`
	Delivered bool     `json:"delivered"`
	Warnings  []string `json:"warnings,omitempty"`
}

func toOutcomeJSON(o pipeline.Outcome) outcomeJSON {
	out := outcomeJSON{
		TenantID:  o.TenantID,
		Status:    string(o.Status),
		Reason:    o.Reason,
		Fallback:  o.Fallback,
		Delivered: o.Delivered,
		Warnings:  o.Warnings,
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return out
}

type triggerResponse struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message,omitempty"`
	RunID      string        `json:"run_id,omitempty"`
	Total      int           `json:"total"`
	Succeeded  int           `json:"succeeded"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	DurationMS int64         `json:"duration_ms"`
	Tenants    []outcomeJSON `json:"tenants,omitempty"`
}

func handleTrigger(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		manual := isManual(r)
		// The run outlives a dropped client connection; the scheduler bounds it.
		sum, err := deps.Runner.Run(context.WithoutCancel(r.Context()), manual)
		if errors.Is(err, scheduler.ErrRunInProgress) {
			httpError(w, http.StatusConflict, "conflict_error", "%v", err)
			return
		}
		if err != nil {
			slog.Error("pulse run failed", "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "pulse run failed: %v", err)
			return
		}

		resp := triggerResponse{Success: true}
		if sum.Total == 0 {
			resp.Message = "No active users."
			writeJSON(w, resp)
			return
		}
		resp.RunID = sum.RunID
		resp.Total = sum.Total
		resp.Succeeded = sum.Succeeded
		resp.Skipped = sum.Skipped
		resp.Failed = sum.Failed
		resp.DurationMS = sum.Duration.Milliseconds()
		resp.Message = fmt.Sprintf("Processed %d tenants.", sum.Total)
		for _, o := range sum.Outcomes {
			resp.Tenants = append(resp.Tenants, toOutcomeJSON(o))
		}
		writeJSON(w, resp)
	}
}

// isManual reads the override from the X-Manual-Trigger header or the
// manual query parameter.
func isManual(r *http.Request) bool {
	for _, v := range []string{r.Header.Get(ManualHeader), r.URL.Query().Get("manual")} {
		if b, err := strconv.ParseBool(v); err == nil && b {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
