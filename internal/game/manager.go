package game

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/MiKapsDev/Lion-City/internal/events"
	"github.com/MiKapsDev/Lion-City/internal/metrics"
	"github.com/MiKapsDev/Lion-City/internal/notify"
)

// ErrNoSession is returned when an operation needs a launched game.
var ErrNoSession = errors.New("no active game")

// Payload is the launch request from the QR collaborator.
type Payload struct {
	Game   string `json:"game"`
	Points int    `json:"points"`
}

// Supported reports whether name identifies a known game. Surrounding space
// and case are ignored.
func Supported(name string) bool {
	return strings.ToLower(strings.TrimSpace(name)) == "snake"
}

// Option configures a Manager.
type Option func(*deps)

// WithScheduler replaces the runtime timer scheduler.
func WithScheduler(s Scheduler) Option { return func(d *deps) { d.scheduler = s } }

// WithRand sets the source used for food placement.
func WithRand(r Rand) Option { return func(d *deps) { d.rand = r } }

// WithNotifier sets the receiver of status messages.
func WithNotifier(n notify.Notifier) Option { return func(d *deps) { d.notifier = n } }

// WithBus sets the bus game results are published on.
func WithBus(b *events.Bus) Option { return func(d *deps) { d.bus = b } }

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option { return func(d *deps) { d.metrics = m } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(d *deps) { d.logger = l } }

// Manager owns the single game overlay: at most one session exists at a time.
type Manager struct {
	mu      sync.Mutex
	d       deps
	session *Session
}

// NewManager creates a manager that credits finished games to awarder.
func NewManager(awarder Awarder, opts ...Option) *Manager {
	d := deps{
		awarder:   awarder,
		scheduler: RealScheduler{},
		rand:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		notifier:  notify.Discard{},
		bus:       events.NewBus(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	if d.metrics == nil {
		d.metrics = metrics.Default()
	}
	return &Manager{d: d}
}

// Launch opens a new session for p, closing any current one. It reports
// false, and changes nothing, for an unsupported game.
func (m *Manager) Launch(p Payload) bool {
	if !Supported(p.Game) {
		m.d.logger.Debug("game not supported", "game", p.Game)
		return false
	}
	m.mu.Lock()
	prev := m.session
	m.session = newSession(p.Points, m.d)
	m.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	m.d.logger.Info("game launched", "game", "snake", "base_points", max(0, p.Points))
	return true
}

// Session returns the current session.
func (m *Manager) Session() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, ErrNoSession
	}
	return m.session, nil
}

// Start starts the current session's countdown.
func (m *Manager) Start() (bool, error) {
	s, err := m.Session()
	if err != nil {
		return false, err
	}
	return s.Start(), nil
}

// Direction queues a direction on the current session.
func (m *Manager) Direction(dir Point) (bool, error) {
	s, err := m.Session()
	if err != nil {
		return false, err
	}
	return s.Queue(dir), nil
}

// GiveUp cancels the current session without an award.
func (m *Manager) GiveUp() (bool, error) {
	s, err := m.Session()
	if err != nil {
		return false, err
	}
	return s.GiveUp(), nil
}

// Close closes the overlay and discards the session. Closing without a
// session is a no-op.
func (m *Manager) Close() {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// View returns a snapshot of the current session.
func (m *Manager) View() (View, error) {
	s, err := m.Session()
	if err != nil {
		return View{}, err
	}
	return s.View(), nil
}
