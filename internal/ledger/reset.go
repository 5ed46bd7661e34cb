package ledger

import (
	"errors"
	"fmt"
	"slices"

	"github.com/MiKapsDev/Lion-City/internal/events"
	"github.com/MiKapsDev/Lion-City/internal/kvstore"
	"github.com/MiKapsDev/Lion-City/internal/notify"
)

// ResetAll clears every ledger key and the adjacent catalog and group keys,
// then publishes events.Reset.
func (s *Service) ResetAll() {
	s.mu.Lock()
	ok := true
	for _, k := range Keys {
		if err := s.store.Delete(k); err != nil {
			s.logger.Error("store delete failed", "key", k, "err", err)
			s.metrics.StoreWriteFailure(k)
			ok = false
		}
	}
	s.notifier.Notify(notify.ChannelPoints, "Demo reset.", notify.ToneInfo)
	s.reportWrite(ok)
	s.logger.Info("demo reset")
	s.mu.Unlock()

	// Subscribers read the ledger again, so publish outside the lock.
	s.bus.Publish(events.Reset, nil)
}

// Snapshot returns the raw stored value of every ledger-related key that is present.
func (s *Service) Snapshot() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(Keys))
	for _, k := range Keys {
		v, err := s.store.Get(k)
		if errors.Is(err, kvstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Restore replaces the stored keys with state. Keys not in state are cleared;
// unknown keys are rejected before anything is written.
func (s *Service) Restore(state map[string]string) error {
	for k := range state {
		if !slices.Contains(Keys, k) {
			return fmt.Errorf("unknown ledger key %q", k)
		}
	}

	s.mu.Lock()
	for _, k := range Keys {
		var err error
		if v, ok := state[k]; ok {
			err = s.store.Set(k, v)
		} else {
			err = s.store.Delete(k)
		}
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("writing %s: %w", k, err)
		}
	}
	balance := s.balance()
	s.mu.Unlock()

	s.bus.Publish(events.BalanceChanged, map[string]any{"balance": balance})
	s.bus.Publish(events.GroupsChanged, nil)
	return nil
}
