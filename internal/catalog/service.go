package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MiKapsDev/Lion-City/internal/events"
	"github.com/MiKapsDev/Lion-City/internal/groups"
	"github.com/MiKapsDev/Lion-City/internal/kvstore"
	"github.com/MiKapsDev/Lion-City/internal/ledger"
	"github.com/MiKapsDev/Lion-City/internal/metrics"
	"github.com/MiKapsDev/Lion-City/internal/notify"
)

// Ledger is the part of the ledger the catalog spends through.
type Ledger interface {
	Balance() int
	DeductPoints(amount int, reason string, opts ledger.SpendOptions) ledger.SpendResult
	ActivateBoost(d time.Duration) time.Time
	HasClaimedToday(rewardID string) bool
	MarkClaimedToday(rewardID string) bool
}

// GroupLister provides the groups consulted for group-only discounts.
type GroupLister interface {
	List() []groups.Group
}

// Kind distinguishes rewards from discounts in results and metrics.
type Kind string

const (
	KindReward   Kind = "reward"
	KindDiscount Kind = "discount"
)

// Redemption is the outcome of a redemption attempt. A blocked attempt has
// Success false and the failing gate in Eligibility.
type Redemption struct {
	Kind        Kind        `json:"kind"`
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Success     bool        `json:"success"`
	Eligibility Eligibility `json:"eligibility"`
	Key         string      `json:"key,omitempty"`
	Balance     int         `json:"balance"`
	// Remaining is set for discounts.
	Remaining  *int       `json:"remaining,omitempty"`
	BoostUntil *time.Time `json:"boost_until,omitempty"`
	Persisted  bool       `json:"persisted"`
}

// RewardOffer is a reward with its evaluated state.
type RewardOffer struct {
	Reward
	ClaimedToday bool `json:"claimed_today"`
	Eligibility
}

// DiscountOffer is a discount with its evaluated state.
type DiscountOffer struct {
	Discount
	Remaining int `json:"remaining"`
	Eligibility
}

// Offers is a full evaluation of the catalog.
type Offers struct {
	Balance   int             `json:"balance"`
	Rewards   []RewardOffer   `json:"rewards"`
	Discounts []DiscountOffer `json:"discounts"`
}

// Service runs redemptions. Redemptions are serialised; reads are not.
type Service struct {
	redeemMu sync.Mutex
	catalog  Catalog
	store    kvstore.Store
	ledger   Ledger
	groups   GroupLister
	bus      *events.Bus
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBus sets the bus redemptions are announced on.
func WithBus(b *events.Bus) Option { return func(s *Service) { s.bus = b } }

// WithNotifier sets the receiver of user-visible messages.
func WithNotifier(n notify.Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// NewService creates a catalog service. All of store, l and g are required.
func NewService(cat Catalog, store kvstore.Store, l Ledger, g GroupLister, opts ...Option) *Service {
	s := &Service{
		catalog:  cat,
		store:    store,
		ledger:   l,
		groups:   g,
		bus:      events.NewBus(),
		notifier: notify.Discard{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Default()
	}
	return s
}

// Catalog returns the configured offers.
func (s *Service) Catalog() Catalog {
	return s.catalog
}

// Uses returns the remaining-uses map. Corrupt data reads as empty.
func (s *Service) Uses() Uses {
	raw, err := s.store.Get(ledger.KeyDiscountUses)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Warn("reading discount uses failed", "err", err)
		}
		return Uses{}
	}
	var u Uses
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u == nil {
		return Uses{}
	}
	return u
}

// Offers evaluates every reward and discount against the current state.
func (s *Service) Offers() Offers {
	balance := s.ledger.Balance()
	uses := s.Uses()
	list := s.groups.List()

	out := Offers{
		Balance:   balance,
		Rewards:   make([]RewardOffer, 0, len(s.catalog.Rewards)),
		Discounts: make([]DiscountOffer, 0, len(s.catalog.Discounts)),
	}
	for _, r := range s.catalog.Rewards {
		claimed := s.ledger.HasClaimedToday(r.ID)
		out.Rewards = append(out.Rewards, RewardOffer{
			Reward:       r,
			ClaimedToday: claimed,
			Eligibility:  EvaluateReward(r, claimed, balance),
		})
	}
	for _, d := range s.catalog.Discounts {
		out.Discounts = append(out.Discounts, DiscountOffer{
			Discount:    d,
			Remaining:   uses.Remaining(d),
			Eligibility: Evaluate(d, uses, list, balance),
		})
	}
	return out
}

// RedeemDiscount spends the discount's cost with a key and decrements its
// remaining uses. A blocked attempt changes nothing.
func (s *Service) RedeemDiscount(id string) (Redemption, error) {
	d, ok := s.catalog.Discount(id)
	if !ok {
		s.metrics.Redemption(string(KindDiscount), "unknown")
		return Redemption{}, fmt.Errorf("%w: %q", ErrUnknownOffer, id)
	}
	res := s.redeemDiscount(d)
	if res.Success {
		s.bus.Publish(events.OfferRedeemed, map[string]any{"kind": KindDiscount, "id": d.ID})
	}
	return res, nil
}

func (s *Service) redeemDiscount(d Discount) Redemption {
	s.redeemMu.Lock()
	defer s.redeemMu.Unlock()

	uses := s.Uses()
	remaining := uses.Remaining(d)
	balance := s.ledger.Balance()
	res := Redemption{Kind: KindDiscount, ID: d.ID, Title: d.Title, Balance: balance, Remaining: &remaining}

	res.Eligibility = Evaluate(d, uses, s.groups.List(), balance)
	if !res.Eligibility.Enabled {
		return s.block(res)
	}

	spend := s.ledger.DeductPoints(d.Cost, d.Title, ledger.SpendOptions{IssueKey: true})
	res.Balance = spend.Balance
	if !spend.Success {
		res.Eligibility = blocked(GateBalance, "Not enough points")
		return s.block(res)
	}

	s.notifier.Notify(notify.ChannelPoints, fmt.Sprintf("%s secured! Key: %s", d.Title, spend.Key), notify.ToneSuccess)
	remaining--
	uses[d.ID] = remaining
	persisted := s.saveUses(uses) && spend.Persisted

	res.Success = true
	res.Key = spend.Key
	res.Persisted = persisted
	s.metrics.Redemption(string(KindDiscount), "success")
	s.logger.Info("discount redeemed", "discount", d.ID, "remaining", remaining, "balance", spend.Balance)
	return res
}

// RedeemReward spends the reward's cost with a key, opens the boost window
// for boost rewards and marks the reward claimed for today.
func (s *Service) RedeemReward(id string) (Redemption, error) {
	r, ok := s.catalog.Reward(id)
	if !ok {
		s.metrics.Redemption(string(KindReward), "unknown")
		return Redemption{}, fmt.Errorf("%w: %q", ErrUnknownOffer, id)
	}
	res := s.redeemReward(r)
	if res.Success {
		s.bus.Publish(events.OfferRedeemed, map[string]any{"kind": KindReward, "id": r.ID})
	}
	return res, nil
}

func (s *Service) redeemReward(r Reward) Redemption {
	s.redeemMu.Lock()
	defer s.redeemMu.Unlock()

	balance := s.ledger.Balance()
	res := Redemption{Kind: KindReward, ID: r.ID, Title: r.Name, Balance: balance}
	res.Eligibility = EvaluateReward(r, s.ledger.HasClaimedToday(r.ID), balance)
	if !res.Eligibility.Enabled {
		return s.block(res)
	}

	spend := s.ledger.DeductPoints(r.Cost, r.Name, ledger.SpendOptions{IssueKey: true})
	res.Balance = spend.Balance
	if !spend.Success {
		res.Eligibility = blocked(GateBalance, "Not enough points")
		return s.block(res)
	}

	if r.Boost {
		until := s.ledger.ActivateBoost(0)
		res.BoostUntil = &until
	}
	s.notifier.Notify(notify.ChannelPoints, fmt.Sprintf("%s redeemed! Key: %s", r.Name, spend.Key), notify.ToneSuccess)
	persisted := s.ledger.MarkClaimedToday(r.ID) && spend.Persisted

	res.Success = true
	res.Key = spend.Key
	res.Persisted = persisted
	s.metrics.Redemption(string(KindReward), "success")
	s.logger.Info("reward redeemed", "reward", r.ID, "boost", r.Boost, "balance", spend.Balance)
	return res
}

func (s *Service) block(res Redemption) Redemption {
	res.Persisted = true
	s.metrics.Redemption(string(res.Kind), "blocked")
	s.logger.Debug("redemption blocked", "kind", res.Kind, "id", res.ID, "gate", res.Eligibility.Gate)
	return res
}

func (s *Service) saveUses(u Uses) bool {
	data, err := json.Marshal(u)
	if err != nil {
		s.logger.Error("encoding discount uses failed", "err", err)
		return false
	}
	if err := s.store.Set(ledger.KeyDiscountUses, string(data)); err != nil {
		s.logger.Error("store write failed", "key", ledger.KeyDiscountUses, "err", err)
		s.metrics.StoreWriteFailure(ledger.KeyDiscountUses)
		s.notifier.Notify(notify.ChannelPoints, "Could not save points.", notify.ToneDanger)
		return false
	}
	return true
}
