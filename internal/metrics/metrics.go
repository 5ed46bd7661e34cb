// Package metrics exposes Prometheus counters for ledger and game activity.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors recorded by the domain packages.
type Metrics struct {
	earned        *prometheus.CounterVec
	spent         prometheus.Counter
	redemptions   *prometheus.CounterVec
	games         *prometheus.CounterVec
	writeFailures *prometheus.CounterVec
}

var (
	defaultOnce sync.Once
	defaultReg  *Metrics
)

// Default returns the lazily-initialised metrics registered on the default
// Prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultReg = New(prometheus.DefaultRegisterer)
	})
	return defaultReg
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		earned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lioncity",
			Name:      "points_earned_total",
			Help:      "Points credited to the balance, segmented by earn source.",
		}, []string{"source"}),
		spent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lioncity",
			Name:      "points_spent_total",
			Help:      "Points deducted from the balance.",
		}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lioncity",
			Name:      "redemptions_total",
			Help:      "Catalog redemption attempts segmented by offer kind and outcome.",
		}, []string{"kind", "outcome"}),
		games: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lioncity",
			Name:      "games_finished_total",
			Help:      "Finished mini-game sessions segmented by outcome.",
		}, []string{"outcome"}),
		writeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lioncity",
			Name:      "store_write_failures_total",
			Help:      "Failed writes to the persistent store, segmented by key.",
		}, []string{"key"}),
	}
	if reg != nil {
		reg.MustRegister(m.earned, m.spent, m.redemptions, m.games, m.writeFailures)
	}
	return m
}

// PointsEarned records a credit.
func (m *Metrics) PointsEarned(source string, amount int) {
	m.earned.WithLabelValues(source).Add(float64(amount))
}

// PointsSpent records a debit.
func (m *Metrics) PointsSpent(amount int) {
	m.spent.Add(float64(amount))
}

// Redemption records a catalog redemption attempt.
func (m *Metrics) Redemption(kind, outcome string) {
	m.redemptions.WithLabelValues(kind, outcome).Inc()
}

// GameFinished records the end of a game session.
func (m *Metrics) GameFinished(outcome string) {
	m.games.WithLabelValues(outcome).Inc()
}

// StoreWriteFailure records a failed write for key.
func (m *Metrics) StoreWriteFailure(key string) {
	m.writeFailures.WithLabelValues(key).Inc()
}
