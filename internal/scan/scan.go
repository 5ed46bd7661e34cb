package scan

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MiKapsDev/Lion-City/internal/game"
	"github.com/MiKapsDev/Lion-City/internal/ledger"
	"github.com/MiKapsDev/Lion-City/internal/notify"
)

// Kind classifies how a scan was handled.
type Kind string

const (
	KindGame            Kind = "game"
	KindUnsupportedGame Kind = "unsupported-game"
	KindPoints          Kind = "points"
	KindRejected        Kind = "rejected"
	KindNoNumber        Kind = "no-number"
)

// Earner credits scanned points.
type Earner interface {
	AddPoints(amount int, source ledger.Source, reason string) ledger.EarnResult
}

// Launcher opens the game overlay.
type Launcher interface {
	Launch(p game.Payload) bool
}

// Result describes what a scan did.
type Result struct {
	Kind    Kind               `json:"kind"`
	Text    string             `json:"text"`
	Game    *game.Payload      `json:"game,omitempty"`
	Points  int                `json:"points,omitempty"`
	Earn    *ledger.EarnResult `json:"earn,omitempty"`
	Message string             `json:"message"`
	Tone    notify.Tone        `json:"tone"`
}

// Handler dispatches decoded QR text to the game manager or the ledger.
type Handler struct {
	earner   Earner
	games    Launcher
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewHandler creates a scan handler. notifier and logger may be nil.
func NewHandler(earner Earner, games Launcher, notifier notify.Notifier, logger *slog.Logger) *Handler {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{earner: earner, games: games, notifier: notifier, logger: logger}
}

// Handle processes one decoded QR text.
func (h *Handler) Handle(raw string) Result {
	text := strings.TrimSpace(raw)

	if p, ok := ParseGame(text); ok {
		res := Result{Text: text, Game: &p}
		if h.games.Launch(p) {
			res.Kind = KindGame
			return h.report(res, "Game detected - starting challenge.", notify.ToneSuccess)
		}
		res.Kind = KindUnsupportedGame
		return h.report(res, fmt.Sprintf("Game %q detected but not supported.", p.Game), notify.ToneWarning)
	}

	n, err := ParseNumber(text)
	switch {
	case errors.Is(err, ErrNumberTooLarge):
		return h.report(Result{Kind: KindRejected, Text: text}, "QR code points value is too large.", notify.ToneWarning)
	case err != nil:
		return h.report(Result{Kind: KindNoNumber, Text: text}, "QR code detected but no number found.", notify.ToneWarning)
	case n <= 0:
		return h.report(Result{Kind: KindRejected, Text: text, Points: n}, "QR code contains no positive points.", notify.ToneWarning)
	}

	earn := h.earner.AddPoints(n, ledger.SourceScan, "")
	if !earn.Applied {
		res := Result{Kind: KindRejected, Text: text, Points: n, Earn: &earn}
		return h.report(res, "QR code points could not be credited.", notify.ToneWarning)
	}
	res := Result{Kind: KindPoints, Text: text, Points: n, Earn: &earn}
	return h.report(res, "QR code detected and points credited.", notify.ToneSuccess)
}

func (h *Handler) report(res Result, msg string, tone notify.Tone) Result {
	res.Message = msg
	res.Tone = tone
	h.notifier.Notify(notify.ChannelScan, msg, tone)
	h.logger.Info("qr scanned", "kind", res.Kind, "points", res.Points)
	return res
}
