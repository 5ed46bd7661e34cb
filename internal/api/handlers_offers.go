package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MiKapsDev/Lion-City/internal/catalog"
	"github.com/MiKapsDev/Lion-City/internal/server"
)

// GetOffers handles GET /api/offers: the board's latest evaluation.
func (h *Handler) GetOffers(w http.ResponseWriter, r *http.Request) {
	server.JSON(w, http.StatusOK, map[string]any{
		"version": h.Board.Version(),
		"offers":  h.Board.Offers(),
	})
}

// ListRewards handles GET /api/rewards.
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	server.JSON(w, http.StatusOK, h.Offers.Offers().Rewards)
}

// ListDiscounts handles GET /api/discounts.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	server.JSON(w, http.StatusOK, h.Offers.Offers().Discounts)
}

// RedeemReward handles POST /api/rewards/{id}/redeem.
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	res, err := h.Offers.RedeemReward(chi.URLParam(r, "id"))
	writeRedemption(w, res, err)
}

// RedeemDiscount handles POST /api/discounts/{id}/redeem.
func (h *Handler) RedeemDiscount(w http.ResponseWriter, r *http.Request) {
	res, err := h.Offers.RedeemDiscount(chi.URLParam(r, "id"))
	writeRedemption(w, res, err)
}

func writeRedemption(w http.ResponseWriter, res catalog.Redemption, err error) {
	switch {
	case errors.Is(err, catalog.ErrUnknownOffer):
		server.Error(w, http.StatusNotFound, err.Error())
	case err != nil:
		server.Error(w, http.StatusInternalServerError, err.Error())
	case !res.Success:
		reject(w, res)
	default:
		server.JSON(w, http.StatusOK, res)
	}
}
