// Package admin provides the /admin/* control plane: state snapshot and
// restore, demo reset, simulated time, fault injection and inspection.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MiKapsDev/Lion-City/internal/clock"
	"github.com/MiKapsDev/Lion-City/internal/server"
)

// StateStore exposes the persisted demo state. *ledger.Service implements it.
type StateStore interface {
	Snapshot() (map[string]string, error)
	Restore(state map[string]string) error
	ResetAll()
}

// WebhookFlusher is implemented by the webhook dispatcher.
type WebhookFlusher interface {
	FlushWebhooks(ctx context.Context) error
}

// Handler provides the admin endpoints.
type Handler struct {
	state   StateStore
	flusher WebhookFlusher
	mw      *server.Middleware
	clock   *clock.Clock
	onReset []func()
}

// NewHandler creates an admin handler. clock may be nil.
func NewHandler(state StateStore, mw *server.Middleware, clk *clock.Clock) *Handler {
	return &Handler{
		state: state,
		mw:    mw,
		clock: clk,
	}
}

// SetFlusher sets the webhook flusher.
func (h *Handler) SetFlusher(f WebhookFlusher) {
	h.flusher = f
}

// OnReset registers fn to run after POST /admin/reset cleared the state.
func (h *Handler) OnReset(fn func()) {
	h.onReset = append(h.onReset, fn)
}

// Routes mounts the admin endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/reset", h.handleReset)
		r.Get("/state", h.handleGetState)
		r.Post("/state", h.handleLoadState)
		r.Post("/fault/*", h.handleInjectFault)
		r.Delete("/fault/*", h.handleRemoveFault)
		r.Get("/faults", h.handleListFaults)
		r.Get("/requests", h.handleGetRequests)
		r.Post("/webhooks/flush", h.handleFlushWebhooks)
		r.Post("/time/advance", h.handleTimeAdvance)
		r.Get("/time", h.handleGetTime)
		r.Get("/health", h.handleHealth)
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.state.ResetAll()
	h.mw.ReqLog.Clear()
	h.mw.Faults.Reset()
	h.mw.Idempotent.Reset()
	if h.clock != nil {
		h.clock.Reset()
	}
	for _, fn := range h.onReset {
		fn()
	}
	server.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap, err := h.state.Snapshot()
	if err != nil {
		server.Error(w, http.StatusInternalServerError, "failed to read state: "+err.Error())
		return
	}
	server.JSON(w, http.StatusOK, snap)
}

func (h *Handler) handleLoadState(w http.ResponseWriter, r *http.Request) {
	var state map[string]string
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		server.Error(w, http.StatusBadRequest, "invalid state: "+err.Error())
		return
	}
	if err := h.state.Restore(state); err != nil {
		server.Error(w, http.StatusBadRequest, "failed to load state: "+err.Error())
		return
	}
	server.JSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

func (h *Handler) handleInjectFault(w http.ResponseWriter, r *http.Request) {
	endpoint := "/" + chi.URLParam(r, "*")

	var fault server.FaultConfig
	if err := json.NewDecoder(r.Body).Decode(&fault); err != nil {
		server.Error(w, http.StatusBadRequest, "invalid fault config: "+err.Error())
		return
	}
	h.mw.Faults.Set(endpoint, fault)
	server.JSON(w, http.StatusOK, map[string]any{
		"status":   "injected",
		"endpoint": endpoint,
		"fault":    fault,
	})
}

func (h *Handler) handleRemoveFault(w http.ResponseWriter, r *http.Request) {
	endpoint := "/" + chi.URLParam(r, "*")
	if !h.mw.Faults.Remove(endpoint) {
		server.Error(w, http.StatusNotFound, "no fault registered for "+endpoint)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"status": "removed", "endpoint": endpoint})
}

func (h *Handler) handleListFaults(w http.ResponseWriter, r *http.Request) {
	server.JSON(w, http.StatusOK, h.mw.Faults.All())
}

func (h *Handler) handleGetRequests(w http.ResponseWriter, r *http.Request) {
	server.JSON(w, http.StatusOK, h.mw.ReqLog.Entries())
}

func (h *Handler) handleFlushWebhooks(w http.ResponseWriter, r *http.Request) {
	if h.flusher == nil {
		server.JSON(w, http.StatusOK, map[string]string{"status": "no webhooks configured"})
		return
	}
	if err := h.flusher.FlushWebhooks(r.Context()); err != nil {
		server.Error(w, http.StatusBadGateway, "flush failed: "+err.Error())
		return
	}
	server.JSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

func (h *Handler) handleTimeAdvance(w http.ResponseWriter, r *http.Request) {
	if h.clock == nil {
		server.Error(w, http.StatusBadRequest, "simulated clock not configured")
		return
	}

	var req struct {
		Duration string `json:"duration"` // e.g. "24h", "30m"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.Error(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		server.Error(w, http.StatusBadRequest, "invalid duration: "+err.Error())
		return
	}
	if d < 0 {
		server.Error(w, http.StatusBadRequest, "duration must not be negative")
		return
	}

	h.clock.Advance(d)
	server.JSON(w, http.StatusOK, map[string]any{
		"status":    "advanced",
		"duration":  d.String(),
		"offset":    h.clock.Offset().String(),
		"simulated": h.clock.Now().Format(time.RFC3339),
	})
}

func (h *Handler) handleGetTime(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"real": time.Now().Format(time.RFC3339)}
	if h.clock != nil {
		resp["simulated"] = h.clock.Now().Format(time.RFC3339)
		resp["offset"] = h.clock.Offset().String()
	}
	server.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	server.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
