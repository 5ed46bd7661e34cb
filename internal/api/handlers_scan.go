package api

import (
	"net/http"

	"github.com/MiKapsDev/Lion-City/internal/scan"
	"github.com/MiKapsDev/Lion-City/internal/server"
)

// Scan handles POST /api/scan with the decoded QR text. Payloads that credit
// nothing and launch nothing are rejected with the scan result.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}

	res := h.Scans.Handle(req.Text)
	switch res.Kind {
	case scan.KindPoints, scan.KindGame:
		server.JSON(w, http.StatusOK, res)
	default:
		reject(w, res)
	}
}
