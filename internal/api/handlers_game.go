package api

import (
	"errors"
	"net/http"

	"github.com/MiKapsDev/Lion-City/internal/game"
	"github.com/MiKapsDev/Lion-City/internal/server"
)

// GetGame handles GET /api/game.
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	v, err := h.Games.View()
	if err != nil {
		writeGameError(w, err)
		return
	}
	server.JSON(w, http.StatusOK, v)
}

// LaunchGame handles POST /api/game/launch.
func (h *Handler) LaunchGame(w http.ResponseWriter, r *http.Request) {
	var p game.Payload
	if !decode(w, r, &p) {
		return
	}
	if !h.Games.Launch(p) {
		reject(w, map[string]any{"launched": false, "game": p.Game})
		return
	}
	h.writeView(w, http.StatusCreated)
}

// StartGame handles POST /api/game/start.
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	ok, err := h.Games.Start()
	h.writeTransition(w, ok, err)
}

// GiveUpGame handles POST /api/game/give-up.
func (h *Handler) GiveUpGame(w http.ResponseWriter, r *http.Request) {
	ok, err := h.Games.GiveUp()
	h.writeTransition(w, ok, err)
}

// CloseGame handles POST /api/game/close. Closing without a game is a no-op.
func (h *Handler) CloseGame(w http.ResponseWriter, r *http.Request) {
	h.Games.Close()
	server.JSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// GameDirection handles POST /api/game/direction. The body carries either an
// input name (d-pad button or key) or a swipe vector.
func (h *Handler) GameDirection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string   `json:"input"`
		DX    *float64 `json:"dx"`
		DY    *float64 `json:"dy"`
	}
	if !decode(w, r, &req) {
		return
	}

	var (
		dir game.Point
		ok  bool
	)
	switch {
	case req.Input != "":
		dir, ok = game.ParseInput(req.Input)
		if !ok {
			server.Error(w, http.StatusBadRequest, "unknown input "+req.Input)
			return
		}
	case req.DX != nil || req.DY != nil:
		var dx, dy float64
		if req.DX != nil {
			dx = *req.DX
		}
		if req.DY != nil {
			dy = *req.DY
		}
		dir, ok = game.ParseSwipe(dx, dy)
	default:
		server.Error(w, http.StatusBadRequest, "input or dx/dy required")
		return
	}

	accepted := false
	if ok {
		var err error
		if accepted, err = h.Games.Direction(dir); err != nil {
			writeGameError(w, err)
			return
		}
	}
	v, err := h.Games.View()
	if err != nil {
		writeGameError(w, err)
		return
	}
	server.JSON(w, http.StatusOK, map[string]any{"accepted": accepted, "game": v})
}

func (h *Handler) writeTransition(w http.ResponseWriter, ok bool, err error) {
	if err != nil {
		writeGameError(w, err)
		return
	}
	if !ok {
		v, _ := h.Games.View()
		reject(w, v)
		return
	}
	h.writeView(w, http.StatusOK)
}

func (h *Handler) writeView(w http.ResponseWriter, status int) {
	v, err := h.Games.View()
	if err != nil {
		writeGameError(w, err)
		return
	}
	server.JSON(w, status, v)
}

func writeGameError(w http.ResponseWriter, err error) {
	if errors.Is(err, game.ErrNoSession) {
		server.Error(w, http.StatusNotFound, err.Error())
		return
	}
	server.Error(w, http.StatusInternalServerError, err.Error())
}
