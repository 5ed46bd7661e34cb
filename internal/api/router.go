// Package api is the JSON HTTP adapter over the ledger, the catalog, groups,
// QR scans and the mini-game.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MiKapsDev/Lion-City/internal/catalog"
	"github.com/MiKapsDev/Lion-City/internal/game"
	"github.com/MiKapsDev/Lion-City/internal/groups"
	"github.com/MiKapsDev/Lion-City/internal/ledger"
	"github.com/MiKapsDev/Lion-City/internal/notify"
	"github.com/MiKapsDev/Lion-City/internal/scan"
	"github.com/MiKapsDev/Lion-City/internal/server"
)

// Deps are the services the API exposes.
type Deps struct {
	Ledger   *ledger.Service
	Offers   *catalog.Service
	Board    *catalog.Board
	Groups   *groups.Manager
	Games    *game.Manager
	Scans    *scan.Handler
	Messages *notify.Log
}

// Handler holds all API handler state.
type Handler struct {
	Deps
	mw *server.Middleware
}

// NewHandler creates the API handler.
func NewHandler(d Deps, mw *server.Middleware) *Handler {
	return &Handler{Deps: d, mw: mw}
}

// Routes mounts the API under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(h.mw.RateLimit)
		r.Use(h.mw.FaultInjection)
		r.Use(h.mw.Idempotency)

		r.Get("/status", h.GetStatus)
		r.Get("/messages", h.ListMessages)
		r.Post("/reset", h.Reset)

		// Ledger
		r.Get("/balance", h.GetBalance)
		r.Get("/transactions", h.ListTransactions)
		r.Post("/points/earn", h.EarnPoints)
		r.Post("/points/spend", h.SpendPoints)
		r.Get("/boost", h.GetBoost)
		r.Post("/boost", h.ActivateBoost)

		// Catalog
		r.Get("/offers", h.GetOffers)
		r.Get("/rewards", h.ListRewards)
		r.Post("/rewards/{id}/redeem", h.RedeemReward)
		r.Get("/discounts", h.ListDiscounts)
		r.Post("/discounts/{id}/redeem", h.RedeemDiscount)

		// Groups
		r.Get("/groups", h.ListGroups)
		r.Post("/groups", h.CreateGroup)
		r.Get("/groups/{id}", h.GetGroup)
		r.Post("/groups/{id}/members", h.AddMember)

		// QR scans and the game overlay
		r.Post("/scan", h.Scan)
		r.Get("/game", h.GetGame)
		r.Post("/game/launch", h.LaunchGame)
		r.Post("/game/start", h.StartGame)
		r.Post("/game/direction", h.GameDirection)
		r.Post("/game/give-up", h.GiveUpGame)
		r.Post("/game/close", h.CloseGame)
	})
}

// reject writes a business rejection: 422 with the result body.
func reject(w http.ResponseWriter, v any) {
	server.JSON(w, http.StatusUnprocessableEntity, v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := server.Decode(r, v); err != nil {
		server.Error(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
