package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/pulse/internal/dashboard"
	"github.com/kalambet/pulse/internal/idgen"
	"github.com/kalambet/pulse/internal/scheduler"
	"github.com/kalambet/pulse/internal/storage"
	"github.com/kalambet/pulse/internal/tenant"
)

const maxNoteRunes = 8000

func newTenantHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))

	r.Post("/dumps", handleCreateDump(deps))
	r.Get("/dumps", handleListDumps(deps))
	r.Get("/tasks", handleListTasks(deps))
	r.Get("/logs", handleListLogs(deps))
	r.Get("/config", handleGetConfig(deps))
	r.Put("/config", handlePutConfig(deps))
	r.Post("/pulse", handleTenantPulse(deps))
	r.Get("/views/{view}", handleView(deps))

	return r
}

type DumpRequest struct {
	Content string `json:"content"`
}

type dumpJSON struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}

// captureNote stores a raw note for the tenant's next cycle.
func captureNote(ctx context.Context, store *storage.Store, tenantID, content string) (storage.RawDump, error) {
	id, err := idgen.GenerateWithPrefix(idgen.PrefixDump)
	if err != nil {
		return storage.RawDump{}, err
	}
	d := storage.RawDump{ID: id, TenantID: tenantID, Content: content, CreatedAt: time.Now().UTC()}
	if err := store.InsertDump(ctx, d); err != nil {
		return storage.RawDump{}, err
	}
	return d, nil
}

func validNote(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errors.New("content is required")
	}
	if len([]rune(content)) > maxNoteRunes {
		return "", errors.New("content is too long")
	}
	return content, nil
}

func handleCreateDump(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req DumpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		content, err := validNote(req.Content)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		d, err := captureNote(r.Context(), deps.Store, chi.URLParam(r, "tenantID"), content)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save note: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": d.ID, "status": "pending"})
	}
}

func handleListDumps(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dumps, err := deps.Store.ListUnprocessedDumps(r.Context(), chi.URLParam(r, "tenantID"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list notes: %v", err)
			return
		}
		out := make([]dumpJSON, len(dumps))
		for i, d := range dumps {
			out[i] = dumpJSON{ID: d.ID, Content: d.Content, Processed: d.Processed, CreatedAt: d.CreatedAt}
		}
		writeJSON(w, out)
	}
}

type taskJSON struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id,omitempty"`
	Title       string     `json:"title"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func handleListTasks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		switch status {
		case "", storage.StatusTodo, storage.StatusDone, storage.StatusCancelled:
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown status %q", status)
			return
		}
		limit := parseIntParam(r, "limit", 50, 500)

		tasks, err := deps.Store.ListTasks(r.Context(), chi.URLParam(r, "tenantID"), status, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list tasks: %v", err)
			return
		}
		out := make([]taskJSON, len(tasks))
		for i, t := range tasks {
			out[i] = taskJSON{
				ID: t.ID, ProjectID: t.ProjectID, Title: t.Title,
				Priority: t.Priority, Status: t.Status, CreatedAt: t.CreatedAt,
			}
			if !t.CompletedAt.IsZero() {
				at := t.CompletedAt
				out[i].CompletedAt = &at
			}
		}
		writeJSON(w, out)
	}
}

type logJSON struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func handleListLogs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 200)
		logs, err := deps.Store.ListLogs(r.Context(), chi.URLParam(r, "tenantID"), r.URL.Query().Get("type"), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list logs: %v", err)
			return
		}
		out := make([]logJSON, len(logs))
		for i, l := range logs {
			out[i] = logJSON{ID: l.ID, Type: l.EntryType, Content: l.Content, CreatedAt: l.CreatedAt}
		}
		writeJSON(w, out)
	}
}

type profileJSON struct {
	TenantID    string    `json:"tenant_id"`
	Persona     string    `json:"persona"`
	Tier        string    `json:"tier"`
	OffsetHours float64   `json:"timezone_offset"`
	Goal        string    `json:"goal"`
	UserName    string    `json:"user_name"`
	ChatID      string    `json:"chat_id"`
	TrialStart  time.Time `json:"trial_start"`
}

func toProfileJSON(p tenant.Profile) profileJSON {
	return profileJSON{
		TenantID:    p.ID,
		Persona:     p.Persona.String(),
		Tier:        p.Tier.String(),
		OffsetHours: p.OffsetHours,
		Goal:        p.Goal,
		UserName:    p.UserName,
		ChatID:      p.ChatID,
		TrialStart:  p.TrialStart,
	}
}

func handleGetConfig(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Tenants.Load(r.Context(), chi.URLParam(r, "tenantID"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "tenant not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load tenant: %v", err)
			return
		}
		writeJSON(w, toProfileJSON(p))
	}
}

func handlePutConfig(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var fields map[string]string
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(fields) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no config keys given")
			return
		}

		keys := make([]string, 0, len(fields))
		for key, value := range fields {
			if err := tenant.Validate(key, value); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		tenantID := chi.URLParam(r, "tenantID")
		for _, key := range keys {
			if err := deps.Tenants.Set(r.Context(), tenantID, key, fields[key]); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to set %q: %v", key, err)
				return
			}
		}
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleTenantPulse(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := deps.Runner.RunTenant(r.Context(), chi.URLParam(r, "tenantID"), true)
		if errors.Is(err, scheduler.ErrRunInProgress) {
			httpError(w, http.StatusConflict, "conflict_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "pulse failed: %v", err)
			return
		}
		writeJSON(w, toOutcomeJSON(o))
	}
}

func handleView(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := dashboard.ParseView(chi.URLParam(r, "view"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "unknown view %q", chi.URLParam(r, "view"))
			return
		}
		text, err := deps.Dashboard.Render(r.Context(), chi.URLParam(r, "tenantID"), v)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "tenant not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to render %s: %v", v, err)
			return
		}
		writeJSON(w, map[string]string{"view": string(v), "text": text})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
