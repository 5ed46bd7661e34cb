package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MiKapsDev/Lion-City/internal/kvstore"
	"github.com/MiKapsDev/Lion-City/internal/notify"
)

// IsBoostActive reports whether the double-points window is open.
func (s *Service) IsBoostActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boostActive()
}

// BoostExpiry returns the expiry of the active window, if any.
func (s *Service) BoostExpiry() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.boostExpiry()
	if !ok || !s.clock.Now().Before(exp) {
		return time.Time{}, false
	}
	return exp, true
}

// ActivateBoost opens a double-points window of length d, replacing any
// existing window. A non-positive d uses the configured default.
func (s *Service) ActivateBoost(d time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activateBoost(d)
}

func (s *Service) activateBoost(d time.Duration) time.Time {
	if d <= 0 {
		d = s.boostDuration
	}
	exp := s.clock.Now().Add(d)
	if !s.write(KeyBoostExpiry, strconv.FormatInt(exp.UnixMilli(), 10)) {
		s.reportWrite(false)
		return exp
	}
	s.notifier.Notify(notify.ChannelPoints,
		fmt.Sprintf("Double points active for %s.", describeDuration(d)), notify.ToneSuccess)
	s.logger.Info("boost activated", "expires_at", exp.UTC().Format(time.RFC3339))
	return exp
}

func (s *Service) boostActive() bool {
	exp, ok := s.boostExpiry()
	return ok && s.clock.Now().Before(exp)
}

func (s *Service) boostExpiry() (time.Time, bool) {
	raw, err := s.store.Get(KeyBoostExpiry)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Warn("reading boost expiry failed", "err", err)
		}
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func describeDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
