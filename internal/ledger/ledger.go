// Package ledger owns the loyalty balance, the transaction history, the
// double-points boost window and daily reward claims. Every form of spending
// goes through Service.DeductPoints.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MiKapsDev/Lion-City/internal/events"
	"github.com/MiKapsDev/Lion-City/internal/kvstore"
	"github.com/MiKapsDev/Lion-City/internal/metrics"
	"github.com/MiKapsDev/Lion-City/internal/notify"
	"github.com/MiKapsDev/Lion-City/internal/redeemkey"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Service is the ledger engine. All state lives in the store; the service
// serialises its own read-modify-write cycles but not those of other processes.
type Service struct {
	mu            sync.Mutex
	store         kvstore.Store
	clock         Clock
	keys          redeemkey.Generator
	notifier      notify.Notifier
	bus           *events.Bus
	metrics       *metrics.Metrics
	logger        *slog.Logger
	location      *time.Location
	boostDuration time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithKeyGenerator overrides the redemption key generator.
func WithKeyGenerator(g redeemkey.Generator) Option {
	return func(s *Service) { s.keys = g }
}

// WithNotifier sets the receiver of user-visible messages.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithBus sets the event bus used for reset and balance notifications.
func WithBus(b *events.Bus) Option {
	return func(s *Service) { s.bus = b }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithLocation sets the zone whose calendar day gates daily claims. Default UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithBoostDuration sets the default double-points window length.
func WithBoostDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.boostDuration = d
		}
	}
}

// New creates a ledger over store. store and clock are required.
func New(store kvstore.Store, clock Clock, opts ...Option) *Service {
	s := &Service{
		store:         store,
		clock:         clock,
		keys:          redeemkey.Random{},
		notifier:      notify.Discard{},
		bus:           events.NewBus(),
		logger:        slog.Default(),
		location:      time.UTC,
		boostDuration: DefaultBoostDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Default()
	}
	return s
}

// Bus returns the event bus the ledger publishes on.
func (s *Service) Bus() *events.Bus {
	return s.bus
}

// Balance returns the current balance. Absent or corrupt data reads as 0.
func (s *Service) Balance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance()
}

// Transactions returns the retained history, newest first.
func (s *Service) Transactions() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions()
}

// AddPoints credits amount to the balance. Scan earnings are doubled while a
// boost is active. Non-positive amounts, and amounts that would overflow the
// balance, are rejected without mutation.
func (s *Service) AddPoints(amount int, source Source, reason string) EarnResult {
	res := s.addPoints(amount, source, reason)
	if res.Applied {
		s.bus.Publish(events.BalanceChanged, map[string]any{"balance": res.Balance, "delta": res.Amount})
	}
	return res
}

func (s *Service) addPoints(amount int, source Source, reason string) EarnResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount <= 0 {
		s.notifier.Notify(notify.ChannelPoints, "Points must be positive.", notify.ToneWarning)
		return EarnResult{Balance: s.balance(), Persisted: true}
	}
	if reason == "" {
		reason = source.defaultReason()
	}

	current := s.balance()
	factor := 1
	boosted := source == SourceScan && s.boostActive()
	if boosted {
		factor = 2
	}
	if amount > (math.MaxInt-current)/factor {
		s.notifier.Notify(notify.ChannelPoints, "Points amount is too large.", notify.ToneWarning)
		s.logger.Warn("earn rejected: balance would overflow", "source", source, "amount", amount, "balance", current)
		return EarnResult{Balance: current, Persisted: true}
	}
	effective := amount * factor

	tx := s.newTransaction(TxEarn, effective, reason, nil)
	ok := s.appendTransaction(tx)
	balance := current + effective
	ok = s.writeBalance(balance) && ok

	suffix := ""
	if boosted {
		suffix = " (2x active)"
	}
	s.notifier.Notify(notify.ChannelPoints, fmt.Sprintf("%s: +%d points%s", reason, effective, suffix), notify.ToneSuccess)
	s.reportWrite(ok)
	s.metrics.PointsEarned(string(source), effective)
	s.logger.Info("points earned",
		"source", source,
		"amount", effective,
		"boosted", boosted,
		"balance", balance,
	)

	return EarnResult{
		Applied:     true,
		Amount:      effective,
		Boosted:     boosted,
		Balance:     balance,
		Transaction: tx,
		Persisted:   ok,
	}
}

// DeductPoints spends amount from the balance. It is rejected without
// mutation when amount exceeds the balance.
func (s *Service) DeductPoints(amount int, reason string, opts SpendOptions) SpendResult {
	res := s.deductPoints(amount, reason, opts)
	if res.Success {
		s.bus.Publish(events.BalanceChanged, map[string]any{"balance": res.Balance, "delta": -res.Transaction.Amount})
	}
	return res
}

func (s *Service) deductPoints(amount int, reason string, opts SpendOptions) SpendResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.balance()
	if amount <= 0 {
		s.notifier.Notify(notify.ChannelPoints, "Points must be positive.", notify.ToneWarning)
		return SpendResult{Balance: current, Persisted: true}
	}
	if amount > current {
		s.notifier.Notify(notify.ChannelPoints, "Not enough points available.", notify.ToneWarning)
		return SpendResult{Balance: current, Insufficient: true, Persisted: true}
	}
	if reason == "" {
		reason = "Redeemed"
	}

	var key *string
	if opts.IssueKey {
		k := s.keys.Generate()
		key = &k
	}

	tx := s.newTransaction(TxSpend, amount, reason, key)
	ok := s.appendTransaction(tx)
	balance := current - amount
	ok = s.writeBalance(balance) && ok

	text := fmt.Sprintf("%s: -%d points", reason, amount)
	if key != nil {
		text += " | Key: " + *key
	}
	s.notifier.Notify(notify.ChannelPoints, text, notify.ToneInfo)
	s.reportWrite(ok)
	s.metrics.PointsSpent(amount)
	s.logger.Info("points spent", "amount", amount, "reason", reason, "balance", balance)

	return SpendResult{
		Success:     true,
		Key:         tx.KeyValue(),
		Balance:     balance,
		Transaction: &tx,
		Persisted:   ok,
	}
}

func (s *Service) newTransaction(typ TxType, amount int, reason string, key *string) Transaction {
	return Transaction{
		ID:        uuid.NewString(),
		Type:      typ,
		Amount:    amount,
		Reason:    reason,
		Key:       key,
		Timestamp: s.clock.Now().UTC().Format(timestampLayout),
	}
}

func (s *Service) balance() int {
	raw, err := s.store.Get(KeyBalance)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Warn("reading balance failed", "err", err)
		}
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *Service) writeBalance(v int) bool {
	return s.write(KeyBalance, strconv.Itoa(max(0, v)))
}

func (s *Service) transactions() []Transaction {
	var out []Transaction
	if !s.readJSON(KeyTransactions, &out) || out == nil {
		return []Transaction{}
	}
	return out
}

func (s *Service) appendTransaction(tx Transaction) bool {
	list := append([]Transaction{tx}, s.transactions()...)
	if len(list) > MaxTransactions {
		list = list[:MaxTransactions]
	}
	return s.writeJSON(KeyTransactions, list)
}

// readJSON decodes key into v. It reports false for absent or corrupt data.
func (s *Service) readJSON(key string, v any) bool {
	raw, err := s.store.Get(key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Warn("reading key failed", "key", key, "err", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.logger.Warn("discarding corrupt value", "key", key, "err", err)
		return false
	}
	return true
}

func (s *Service) writeJSON(key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encoding value failed", "key", key, "err", err)
		return false
	}
	return s.write(key, string(data))
}

func (s *Service) write(key, value string) bool {
	if err := s.store.Set(key, value); err != nil {
		s.logger.Error("store write failed", "key", key, "err", err)
		s.metrics.StoreWriteFailure(key)
		return false
	}
	return true
}

func (s *Service) reportWrite(ok bool) {
	if !ok {
		s.notifier.Notify(notify.ChannelPoints, "Could not save points.", notify.ToneDanger)
	}
}
