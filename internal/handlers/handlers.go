// Package handlers is the HTTP surface: manual sync trigger, sync
// status, lesson listing, the Cal.com webhook endpoint and health.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"lesson-sync/internal/auth"
	"lesson-sync/internal/common/errors"
	"lesson-sync/internal/common/logging"
	"lesson-sync/internal/config"
	"lesson-sync/internal/scheduler"
	"lesson-sync/internal/sources/caldotcom"
	"lesson-sync/internal/storage"
	"lesson-sync/internal/syncer"
)

type Handlers struct {
	store     storage.Store
	syncer    *syncer.Syncer
	scheduler *scheduler.Scheduler
	config    *config.Config
	logger    logging.Logger
}

func New(store storage.Store, s *syncer.Syncer, sched *scheduler.Scheduler, cfg *config.Config) *Handlers {
	return &Handlers{
		store:     store,
		syncer:    s,
		scheduler: sched,
		config:    cfg,
		logger:    logging.GetGlobalLogger(),
	}
}

// RegisterRoutes wires all endpoints onto the router. Everything under
// /api requires a bearer token; the webhook endpoint authenticates via
// its HMAC signature instead.
func (h *Handlers) RegisterRoutes(router *mux.Router, authHandler *auth.Auth) {
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authHandler.RequireAuth)
	api.HandleFunc("/sync", h.TriggerSync).Methods("POST")
	api.HandleFunc("/sync/status", h.SyncStatus).Methods("GET")
	api.HandleFunc("/lessons", h.GetLessons).Methods("GET")

	router.HandleFunc("/webhooks/cal", h.HandleCalWebhook).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}

// TriggerSync runs a sync pass immediately. Manual triggers bypass the
// scheduler's throttle but still respect the single-flight guard:
// while a pass is in flight the request gets a 409 instead of queuing.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncer.Run(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.scheduler != nil {
		h.scheduler.Observe(result.CompletedAt)
	}

	respondJSON(w, http.StatusOK, result)
}

// SyncStatus reports whether a pass is in flight and the last result.
func (h *Handlers) SyncStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"in_flight":   h.syncer.InFlight(),
		"last_result": h.syncer.LastResult(),
	})
}

// GetLessons lists lessons in [from, to); both bounds are optional
// RFC3339 timestamps, defaulting to [now, now+days).
func (h *Handlers) GetLessons(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now
	to := now.AddDate(0, 0, h.config.WindowDays())

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, errors.ValidationError("invalid 'from' timestamp, want RFC3339"))
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, errors.ValidationError("invalid 'to' timestamp, want RFC3339"))
			return
		}
		to = parsed
	}
	if !to.After(from) {
		h.writeError(w, errors.ValidationError("'to' must be after 'from'"))
		return
	}

	lessons, err := h.store.Lessons(r.Context(), from, to)
	if err != nil {
		h.writeError(w, errors.PersistenceError("failed to list lessons", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"lessons": lessons,
		"count":   len(lessons),
	})
}

// HandleCalWebhook ingests one Cal.com booking delivery. Ignored
// trigger types and non-lesson events are acknowledged with 200 so
// Cal.com does not retry them.
func (h *Handlers) HandleCalWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if !caldotcom.VerifySignature(h.config.CalComWebhookSecret, body, r.Header.Get(caldotcom.SignatureHeader)) {
		h.logger.Warn("rejected webhook with bad signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := caldotcom.ParseWebhook(body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if event == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"ignored": true})
		return
	}

	created, err := h.syncer.IngestEvent(r.Context(), event)
	if err != nil {
		h.writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"created": created})
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Health(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetType(err) {
	case errors.ErrTypeValidation:
		status = http.StatusBadRequest
	case errors.ErrTypeAuth:
		status = http.StatusBadGateway // upstream credential, not the caller's
	case errors.ErrTypeRateLimit:
		status = http.StatusServiceUnavailable
	case errors.ErrTypeConflict:
		status = http.StatusConflict
	case errors.ErrTypeNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", err)
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
