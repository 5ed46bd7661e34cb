package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MiKapsDev/Lion-City/internal/ledger"
	"github.com/MiKapsDev/Lion-City/internal/notify"
	"github.com/MiKapsDev/Lion-City/internal/server"
)

type boostStatus struct {
	Active bool       `json:"active"`
	Until  *time.Time `json:"until,omitempty"`
}

func (h *Handler) boost() boostStatus {
	exp, ok := h.Ledger.BoostExpiry()
	if !ok {
		return boostStatus{}
	}
	exp = exp.UTC()
	return boostStatus{Active: true, Until: &exp}
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	daily := h.Ledger.DailyState()
	claimed := make([]string, 0, len(daily.Claims))
	for id, ok := range daily.Claims {
		if ok {
			claimed = append(claimed, id)
		}
	}
	resp := map[string]any{
		"balance":        h.Ledger.Balance(),
		"boost":          h.boost(),
		"today":          daily.Date,
		"claimed_today":  claimed,
		"offers_version": h.Board.Version(),
	}
	if v, err := h.Games.View(); err == nil {
		resp["game"] = v.State.Status
	}
	server.JSON(w, http.StatusOK, resp)
}

// ListMessages handles GET /api/messages?channel=&limit=.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	channel := notify.Channel(r.URL.Query().Get("channel"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			server.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	out := make([]notify.Message, 0)
	for _, m := range h.Messages.Entries() {
		if channel == "" || m.Channel == channel {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	server.JSON(w, http.StatusOK, out)
}

// Reset handles POST /api/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.Ledger.ResetAll()
	server.JSON(w, http.StatusOK, map[string]any{"status": "reset", "balance": h.Ledger.Balance()})
}

// GetBalance handles GET /api/balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	server.JSON(w, http.StatusOK, map[string]any{
		"balance": h.Ledger.Balance(),
		"boost":   h.boost(),
	})
}

// ListTransactions handles GET /api/transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := h.Ledger.Transactions()
	if txs == nil {
		txs = []ledger.Transaction{}
	}
	server.JSON(w, http.StatusOK, txs)
}

// EarnPoints handles POST /api/points/earn.
func (h *Handler) EarnPoints(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int    `json:"amount"`
		Source string `json:"source"`
		Reason string `json:"reason"`
	}
	if !decode(w, r, &req) {
		return
	}
	src, err := ledger.ParseSource(req.Source)
	if err != nil {
		server.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res := h.Ledger.AddPoints(req.Amount, src, req.Reason)
	if !res.Applied {
		reject(w, res)
		return
	}
	server.JSON(w, http.StatusOK, res)
}

// SpendPoints handles POST /api/points/spend.
func (h *Handler) SpendPoints(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount   int    `json:"amount"`
		Reason   string `json:"reason"`
		IssueKey bool   `json:"issue_key"`
	}
	if !decode(w, r, &req) {
		return
	}

	res := h.Ledger.DeductPoints(req.Amount, req.Reason, ledger.SpendOptions{IssueKey: req.IssueKey})
	if !res.Success {
		reject(w, res)
		return
	}
	server.JSON(w, http.StatusOK, res)
}

// GetBoost handles GET /api/boost.
func (h *Handler) GetBoost(w http.ResponseWriter, r *http.Request) {
	server.JSON(w, http.StatusOK, h.boost())
}

// ActivateBoost handles POST /api/boost. An empty duration uses the
// configured default.
func (h *Handler) ActivateBoost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Duration string `json:"duration"`
	}
	if !decode(w, r, &req) {
		return
	}
	var d time.Duration
	if req.Duration != "" {
		var err error
		if d, err = time.ParseDuration(req.Duration); err != nil || d <= 0 {
			server.Error(w, http.StatusBadRequest, "duration must be a positive Go duration")
			return
		}
	}
	h.Ledger.ActivateBoost(d)
	server.JSON(w, http.StatusOK, h.boost())
}
