package api_test

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MiKapsDev/Lion-City/internal/admin"
	"github.com/MiKapsDev/Lion-City/internal/api"
	"github.com/MiKapsDev/Lion-City/internal/catalog"
	"github.com/MiKapsDev/Lion-City/internal/clock"
	"github.com/MiKapsDev/Lion-City/internal/events"
	"github.com/MiKapsDev/Lion-City/internal/game"
	"github.com/MiKapsDev/Lion-City/internal/groups"
	"github.com/MiKapsDev/Lion-City/internal/kvstore"
	"github.com/MiKapsDev/Lion-City/internal/ledger"
	"github.com/MiKapsDev/Lion-City/internal/logging"
	"github.com/MiKapsDev/Lion-City/internal/metrics"
	"github.com/MiKapsDev/Lion-City/internal/notify"
	"github.com/MiKapsDev/Lion-City/internal/redeemkey"
	"github.com/MiKapsDev/Lion-City/internal/scan"
	"github.com/MiKapsDev/Lion-City/internal/server"
	"github.com/MiKapsDev/Lion-City/internal/testutil"
)

// firstFree always places food on the first free cell in row-major order.
type firstFree struct{}

func (firstFree) IntN(int) int { return 0 }

type fixture struct {
	tc    *testutil.Client
	ac    *testutil.AdminClient
	clock *clock.Clock
	sched *game.ManualScheduler
}

func setup(t *testing.T) *fixture {
	return setupWith(t, &server.Config{})
}

func setupWith(t *testing.T, cfg *server.Config) *fixture {
	t.Helper()
	logger := logging.Discard()
	m := metrics.New(nil)
	store := kvstore.NewMemory()
	clk := clock.NewAt(time.Date(2025, 6, 14, 10, 30, 0, 0, time.UTC))
	bus := events.NewBus()
	msgs := notify.NewLog(200)
	sched := game.NewManualScheduler()

	l := ledger.New(store, clk,
		ledger.WithBus(bus),
		ledger.WithNotifier(msgs),
		ledger.WithMetrics(m),
		ledger.WithLogger(logger),
		ledger.WithKeyGenerator(redeemkey.Random{}),
	)
	grp := groups.NewManager(store, clk, bus, msgs, logger)
	offers := catalog.NewService(catalog.Default(), store, l, grp,
		catalog.WithBus(bus),
		catalog.WithNotifier(msgs),
		catalog.WithMetrics(m),
		catalog.WithLogger(logger),
	)
	board := catalog.NewBoard(offers, bus)
	t.Cleanup(board.Close)
	games := game.NewManager(l,
		game.WithScheduler(sched),
		game.WithRand(firstFree{}),
		game.WithNotifier(msgs),
		game.WithBus(bus),
		game.WithMetrics(m),
		game.WithLogger(logger),
	)
	t.Cleanup(games.Close)

	cfg.Name = "api-test"
	cfg.Gatherer = prometheus.NewRegistry()
	srv := server.New(cfg, logger)
	api.NewHandler(api.Deps{
		Ledger:   l,
		Offers:   offers,
		Board:    board,
		Groups:   grp,
		Games:    games,
		Scans:    scan.NewHandler(l, games, msgs, logger),
		Messages: msgs,
	}, srv.Middleware()).Routes(srv.Router)
	admin.NewHandler(l, srv.Middleware(), clk).Routes(srv.Router)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	tc := testutil.NewClient(t, ts)
	return &fixture{
		tc:    tc,
		ac:    testutil.NewAdminClient(tc),
		clock: clk,
		sched: sched,
	}
}

// --- Points ---

func TestBalanceStartsAtZero(t *testing.T) {
	f := setup(t)
	if got := f.tc.Balance(); got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}
}

func TestEarnPoints(t *testing.T) {
	f := setup(t)
	var res ledger.EarnResult
	f.tc.Earn(50, "Welcome").AssertStatus(http.StatusOK).JSON(&res)

	if !res.Applied || res.Amount != 50 || res.Balance != 50 {
		t.Errorf("unexpected earn result %+v", res)
	}
	if res.Transaction.Reason != "Welcome" || res.Transaction.Timestamp != "2025-06-14T10:30:00.000Z" {
		t.Errorf("unexpected transaction %+v", res.Transaction)
	}
	if got := f.tc.Balance(); got != 50 {
		t.Errorf("balance = %d, want 50", got)
	}
}

func TestEarnRejectsNonPositive(t *testing.T) {
	f := setup(t)
	var res ledger.EarnResult
	f.tc.Earn(0, "").AssertStatus(http.StatusUnprocessableEntity).JSON(&res)
	if res.Applied {
		t.Error("zero earn must not apply")
	}
	if f.tc.Balance() != 0 {
		t.Error("balance changed")
	}
}

func TestEarnRejectsOverflow(t *testing.T) {
	f := setup(t)
	f.tc.Earn(10, "")

	var res ledger.EarnResult
	f.tc.Earn(math.MaxInt, "").AssertStatus(http.StatusUnprocessableEntity).JSON(&res)
	if res.Applied || res.Balance != 10 {
		t.Errorf("overflowing earn applied: %+v", res)
	}
	if got := f.tc.Balance(); got != 10 {
		t.Errorf("balance = %d, want 10", got)
	}
}

func TestEarnValidation(t *testing.T) {
	f := setup(t)
	f.tc.Post("/api/points/earn", map[string]any{"amount": 5, "source": "lottery"}).
		AssertStatus(http.StatusBadRequest).
		AssertBodyContains("unknown earn source")
	f.tc.Post("/api/points/earn", map[string]any{"amount": "five"}).AssertStatus(http.StatusBadRequest)
	f.tc.Post("/api/points/earn", map[string]any{"amount": 5, "bonus": true}).AssertStatus(http.StatusBadRequest)
}

func TestSpendPoints(t *testing.T) {
	f := setup(t)
	f.tc.Earn(40, "")

	var res ledger.SpendResult
	f.tc.Post("/api/points/spend", map[string]any{"amount": 15, "reason": "Kiosk", "issue_key": true}).
		AssertStatus(http.StatusOK).JSON(&res)
	if !res.Success || res.Balance != 25 {
		t.Errorf("unexpected spend result %+v", res)
	}
	if !redeemkey.Valid(res.Key) {
		t.Errorf("invalid key %q", res.Key)
	}

	var txs []ledger.Transaction
	f.tc.Get("/api/transactions").AssertStatus(http.StatusOK).JSON(&txs)
	if len(txs) != 2 || txs[0].Type != ledger.TxSpend || txs[0].KeyValue() != res.Key {
		t.Errorf("unexpected history %+v", txs)
	}
}

func TestSpendInsufficient(t *testing.T) {
	f := setup(t)
	f.tc.Earn(10, "")

	var res ledger.SpendResult
	f.tc.Post("/api/points/spend", map[string]any{"amount": 11}).
		AssertStatus(http.StatusUnprocessableEntity).JSON(&res)
	if res.Success || !res.Insufficient || res.Balance != 10 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestTransactionsEmptyList(t *testing.T) {
	f := setup(t)
	f.tc.Get("/api/transactions").AssertStatus(http.StatusOK).AssertBodyContains("[]")
}

func TestBoostDoublesScans(t *testing.T) {
	f := setup(t)
	f.tc.Get("/api/boost").AssertStatus(http.StatusOK).AssertBodyContains(`"active":false`)

	body := f.tc.Post("/api/boost", map[string]string{"duration": "30m"}).AssertStatus(http.StatusOK).JSONMap()
	if body["active"] != true || body["until"] != "2025-06-14T11:00:00Z" {
		t.Errorf("unexpected boost %+v", body)
	}

	var res scan.Result
	f.tc.Scan("PROMO 10").AssertStatus(http.StatusOK).JSON(&res)
	if res.Earn == nil || res.Earn.Amount != 20 || !res.Earn.Boosted {
		t.Errorf("expected boosted scan, got %+v", res.Earn)
	}

	f.tc.Earn(10, "")
	if got := f.tc.Balance(); got != 30 {
		t.Errorf("manual earn must not be doubled, balance = %d", got)
	}

	f.ac.AdvanceTime("30m").AssertStatus(http.StatusOK)
	f.tc.Get("/api/boost").AssertBodyContains(`"active":false`)
}

func TestBoostInvalidDuration(t *testing.T) {
	f := setup(t)
	f.tc.Post("/api/boost", map[string]string{"duration": "-5m"}).AssertStatus(http.StatusBadRequest)
	f.tc.Post("/api/boost", map[string]string{"duration": "later"}).AssertStatus(http.StatusBadRequest)
}

func TestMessages(t *testing.T) {
	f := setup(t)
	f.tc.Earn(50, "Welcome")
	f.tc.Scan("no digits here")

	var msgs []notify.Message
	f.tc.Get("/api/messages?channel=points&limit=1").AssertStatus(http.StatusOK).JSON(&msgs)
	if len(msgs) != 1 || msgs[0].Text != "Welcome: +50 points" {
		t.Errorf("unexpected messages %+v", msgs)
	}

	f.tc.Get("/api/messages?channel=scan").JSON(&msgs)
	if len(msgs) != 1 || msgs[0].Tone != notify.ToneWarning {
		t.Errorf("unexpected scan messages %+v", msgs)
	}

	f.tc.Get("/api/messages?limit=x").AssertStatus(http.StatusBadRequest)
}

func TestReset(t *testing.T) {
	f := setup(t)
	f.tc.Earn(50, "")
	f.tc.Post("/api/groups", map[string]any{"name": "Crew", "members": []string{"a@b.co"}}).AssertStatus(http.StatusCreated)

	f.tc.Post("/api/reset", nil).AssertStatus(http.StatusOK)
	if f.tc.Balance() != 0 {
		t.Error("balance not reset")
	}
	f.tc.Get("/api/groups").AssertBodyContains("[]")
}

func TestIdempotentEarn(t *testing.T) {
	f := setup(t)
	headers := map[string]string{"Idempotency-Key": "scan-7"}
	first := f.tc.Do(http.MethodPost, "/api/points/earn", map[string]any{"amount": 25}, headers).AssertStatus(http.StatusOK)
	second := f.tc.Do(http.MethodPost, "/api/points/earn", map[string]any{"amount": 25}, headers).AssertStatus(http.StatusOK)

	if string(first.Body) != string(second.Body) {
		t.Error("replayed body differs")
	}
	if second.Headers.Get("Idempotent-Replayed") != "true" {
		t.Error("expected replay header")
	}
	if got := f.tc.Balance(); got != 25 {
		t.Errorf("balance = %d, want 25", got)
	}
}

// --- Catalog ---

func TestListOffers(t *testing.T) {
	f := setup(t)
	f.tc.Earn(20, "")

	var rewards []catalog.RewardOffer
	f.tc.Get("/api/rewards").AssertStatus(http.StatusOK).JSON(&rewards)
	if len(rewards) != 3 {
		t.Fatalf("rewards = %d, want 3", len(rewards))
	}
	if !rewards[0].Enabled || rewards[1].Gate != catalog.GateBalance {
		t.Errorf("unexpected reward states %+v", rewards)
	}

	var discounts []catalog.DiscountOffer
	f.tc.Get("/api/discounts").AssertStatus(http.StatusOK).JSON(&discounts)
	if len(discounts) != 4 || discounts[3].Gate != catalog.GateGroup {
		t.Errorf("unexpected discounts %+v", discounts)
	}

	body := f.tc.Get("/api/offers").AssertStatus(http.StatusOK).JSONMap()
	if body["version"].(float64) < 2 {
		t.Errorf("board should have refreshed after the earn, version %v", body["version"])
	}
}

func TestRedeemRewardOncePerDay(t *testing.T) {
	f := setup(t)
	f.tc.Earn(40, "")

	var res catalog.Redemption
	f.tc.Post("/api/rewards/coffee/redeem", nil).AssertStatus(http.StatusOK).JSON(&res)
	if !res.Success || res.Balance != 25 || !redeemkey.Valid(res.Key) {
		t.Errorf("unexpected redemption %+v", res)
	}

	f.tc.Post("/api/rewards/coffee/redeem", nil).AssertStatus(http.StatusUnprocessableEntity).JSON(&res)
	if res.Success || res.Eligibility.Gate != catalog.GateClaimedToday {
		t.Errorf("expected claimed-today gate, got %+v", res)
	}

	f.ac.AdvanceTime("14h")
	f.tc.Post("/api/rewards/coffee/redeem", nil).AssertStatus(http.StatusOK)
	if got := f.tc.Balance(); got != 10 {
		t.Errorf("balance = %d, want 10", got)
	}
}

func TestRedeemUnknownOffer(t *testing.T) {
	f := setup(t)
	f.tc.Post("/api/rewards/caviar/redeem", nil).AssertStatus(http.StatusNotFound)
	f.tc.Post("/api/discounts/caviar/redeem", nil).AssertStatus(http.StatusNotFound)
}

func TestRedeemGroupDiscount(t *testing.T) {
	f := setup(t)
	f.tc.Earn(100, "")

	var res catalog.Redemption
	f.tc.Post("/api/discounts/brunch/redeem", nil).AssertStatus(http.StatusUnprocessableEntity).JSON(&res)
	if res.Eligibility.Gate != catalog.GateGroup || res.Eligibility.Label != "Group of 3 required" {
		t.Errorf("unexpected eligibility %+v", res.Eligibility)
	}

	f.tc.Post("/api/groups", map[string]any{
		"name":        "Brunch club",
		"member_list": "a@lc.sg, b@lc.sg, c@lc.sg",
	}).AssertStatus(http.StatusCreated)

	f.tc.Post("/api/discounts/brunch/redeem", nil).AssertStatus(http.StatusOK).JSON(&res)
	if !res.Success || res.Balance != 60 || res.Remaining == nil || *res.Remaining != 1 {
		t.Errorf("unexpected redemption %+v", res)
	}
}

func TestRedeemDiscountUntilSoldOut(t *testing.T) {
	f := setup(t)
	f.tc.Earn(100, "")
	f.tc.Post("/api/discounts/tickets/redeem", nil).AssertStatus(http.StatusOK)

	var res catalog.Redemption
	f.tc.Post("/api/discounts/tickets/redeem", nil).AssertStatus(http.StatusUnprocessableEntity).JSON(&res)
	if res.Eligibility.Gate != catalog.GateSoldOut || res.Balance != 70 {
		t.Errorf("unexpected redemption %+v", res)
	}
}

// --- Groups ---

func TestGroups(t *testing.T) {
	f := setup(t)
	var g groups.Group
	f.tc.Post("/api/groups", map[string]any{"name": "Crew", "members": []string{"ana@lc.sg"}}).
		AssertStatus(http.StatusCreated).JSON(&g)
	if g.ID != "group-1749897000000" {
		t.Errorf("id = %q", g.ID)
	}

	f.tc.Get("/api/groups/"+g.ID).AssertStatus(http.StatusOK).AssertBodyContains("ana@lc.sg")
	f.tc.Post("/api/groups/"+g.ID+"/members", map[string]string{"email": "ben@lc.sg"}).
		AssertStatus(http.StatusOK).AssertBodyContains("ben@lc.sg")
	f.tc.Post("/api/groups/"+g.ID+"/members", map[string]string{"email": "ben@lc.sg"}).
		AssertStatus(http.StatusConflict)
	f.tc.Post("/api/groups/"+g.ID+"/members", map[string]string{"email": "not-an-email"}).
		AssertStatus(http.StatusUnprocessableEntity)
	f.tc.Post("/api/groups/group-0/members", map[string]string{"email": "c@lc.sg"}).
		AssertStatus(http.StatusNotFound)
	f.tc.Get("/api/groups/group-0").AssertStatus(http.StatusNotFound)

	var list []groups.Group
	f.tc.Get("/api/groups").JSON(&list)
	if len(list) != 1 || len(list[0].Members) != 2 {
		t.Errorf("unexpected groups %+v", list)
	}
}

func TestCreateGroupValidation(t *testing.T) {
	f := setup(t)
	f.tc.Post("/api/groups", map[string]any{"name": "", "members": []string{"a@b.co"}}).
		AssertStatus(http.StatusUnprocessableEntity)
	f.tc.Post("/api/groups", map[string]any{"name": "Crew", "members": []string{"nope"}}).
		AssertStatus(http.StatusUnprocessableEntity)
}

// --- Scans ---

func TestScanOutcomes(t *testing.T) {
	f := setup(t)
	tests := []struct {
		text   string
		status int
		kind   scan.Kind
	}{
		{"Shop 42 bonus", http.StatusOK, scan.KindPoints},
		{"PROMO 99999999999999999999", http.StatusUnprocessableEntity, scan.KindRejected},
		{"9223372036854775807", http.StatusUnprocessableEntity, scan.KindRejected},
		{"Bonus -5", http.StatusUnprocessableEntity, scan.KindRejected},
		{"hello", http.StatusUnprocessableEntity, scan.KindNoNumber},
		{`{"game":"tetris","points":10}`, http.StatusUnprocessableEntity, scan.KindUnsupportedGame},
		{"game:snake;points:30", http.StatusOK, scan.KindGame},
	}
	for _, tt := range tests {
		var res scan.Result
		f.tc.Scan(tt.text).AssertStatus(tt.status).JSON(&res)
		if res.Kind != tt.kind {
			t.Errorf("scan %q: kind = %s, want %s", tt.text, res.Kind, tt.kind)
		}
	}
	if got := f.tc.Balance(); got != 42 {
		t.Errorf("balance = %d, want 42", got)
	}

	var v game.View
	f.tc.Get("/api/game").AssertStatus(http.StatusOK).JSON(&v)
	if v.State.Status != game.StatusReady || v.State.BasePoints != 30 {
		t.Errorf("scan should have launched snake, got %+v", v.State)
	}
}

// --- Game ---

func TestGameNotLaunched(t *testing.T) {
	f := setup(t)
	f.tc.Get("/api/game").AssertStatus(http.StatusNotFound)
	f.tc.Post("/api/game/start", nil).AssertStatus(http.StatusNotFound)
	f.tc.Post("/api/game/close", nil).AssertStatus(http.StatusOK)
}

func TestLaunchUnsupportedGame(t *testing.T) {
	f := setup(t)
	f.tc.Post("/api/game/launch", map[string]any{"game": "pong", "points": 5}).
		AssertStatus(http.StatusUnprocessableEntity)
}

func TestGamePlaysToAward(t *testing.T) {
	f := setup(t)
	f.tc.Post("/api/game/launch", map[string]any{"game": " Snake ", "points": 10}).AssertStatus(http.StatusCreated)
	f.tc.Post("/api/game/start", nil).AssertStatus(http.StatusOK)
	f.tc.Post("/api/game/start", nil).AssertStatus(http.StatusUnprocessableEntity)

	var v game.View
	f.tc.Get("/api/game").JSON(&v)
	if v.State.Status != game.StatusCountdown || v.Countdown != game.CountdownSeconds {
		t.Errorf("unexpected view %+v", v)
	}

	// Countdown, then the snake runs right into the wall without eating.
	f.sched.Advance(30 * time.Second)

	f.tc.Get("/api/game").JSON(&v)
	if v.State.Status != game.StatusOver || v.Result == nil || v.Result.Points != 10 {
		t.Fatalf("unexpected final view %+v", v)
	}
	if v.Result.Cause != "hit-wall" {
		t.Errorf("cause = %q", v.Result.Cause)
	}

	var txs []ledger.Transaction
	f.tc.Get("/api/transactions").JSON(&txs)
	if len(txs) != 1 || txs[0].Reason != "QR-Game Snake (0 Score, 1.0x)" || txs[0].Amount != 10 {
		t.Errorf("unexpected history %+v", txs)
	}

	f.tc.Post("/api/game/give-up", nil).AssertStatus(http.StatusUnprocessableEntity)
}

func TestGameDirection(t *testing.T) {
	f := setup(t)
	f.tc.Post("/api/game/launch", map[string]any{"game": "snake", "points": 5})

	body := f.tc.Post("/api/game/direction", map[string]string{"input": "up"}).AssertStatus(http.StatusOK).JSONMap()
	if body["accepted"] != false {
		t.Error("directions are ignored before the game runs")
	}

	f.tc.Post("/api/game/start", nil)
	f.sched.Advance(5 * time.Second)

	body = f.tc.Post("/api/game/direction", map[string]string{"input": "ArrowLeft"}).JSONMap()
	if body["accepted"] != false {
		t.Error("reversing into the body must be rejected")
	}
	body = f.tc.Post("/api/game/direction", map[string]any{"dx": 3, "dy": -40}).JSONMap()
	if body["accepted"] != true {
		t.Error("upward swipe should be accepted")
	}
	body = f.tc.Post("/api/game/direction", map[string]any{"dx": 2, "dy": 2}).JSONMap()
	if body["accepted"] != false {
		t.Error("short swipe should be ignored")
	}

	f.tc.Post("/api/game/direction", map[string]string{"input": "jump"}).AssertStatus(http.StatusBadRequest)
	f.tc.Post("/api/game/direction", map[string]string{}).AssertStatus(http.StatusBadRequest)

	f.sched.Advance(game.MaxTickDelay)
	var v game.View
	f.tc.Get("/api/game").JSON(&v)
	if v.State.Snake[0] != (game.Point{X: 7, Y: 8}) {
		t.Errorf("head = %+v, want {7 8}", v.State.Snake[0])
	}
}

func TestGameGiveUpAndClose(t *testing.T) {
	f := setup(t)
	f.tc.Post("/api/game/launch", map[string]any{"game": "snake", "points": 50})
	f.tc.Post("/api/game/start", nil)
	f.sched.Advance(6 * time.Second)

	var v game.View
	f.tc.Post("/api/game/give-up", nil).AssertStatus(http.StatusOK).JSON(&v)
	if v.Result == nil || !v.Result.Cancelled || v.Result.Points != 0 {
		t.Errorf("unexpected result %+v", v.Result)
	}
	if f.tc.Balance() != 0 {
		t.Error("give-up must not award points")
	}

	f.tc.Post("/api/game/close", nil).AssertStatus(http.StatusOK)
	f.tc.Get("/api/game").AssertStatus(http.StatusNotFound)
}

// --- Cross-cutting ---

func TestStatus(t *testing.T) {
	f := setup(t)
	f.tc.Earn(30, "")
	f.tc.Post("/api/rewards/coffee/redeem", nil)

	body := f.tc.Get("/api/status").AssertStatus(http.StatusOK).JSONMap()
	if body["balance"].(float64) != 15 || body["today"] != "2025-06-14" {
		t.Errorf("unexpected status %+v", body)
	}
	claimed := body["claimed_today"].([]any)
	if len(claimed) != 1 || claimed[0] != "coffee" {
		t.Errorf("claimed_today = %v", claimed)
	}
}

func TestFaultInjectionSparesAdmin(t *testing.T) {
	f := setup(t)
	f.ac.InjectFault("/api/balance", server.FaultConfig{StatusCode: http.StatusServiceUnavailable}).AssertStatus(http.StatusOK)

	f.tc.Get("/api/balance").AssertStatus(http.StatusServiceUnavailable)
	f.ac.Health().AssertStatus(http.StatusOK)

	f.ac.RemoveFault("/api/balance").AssertStatus(http.StatusOK)
	f.tc.Get("/api/balance").AssertStatus(http.StatusOK)
}

func TestRateLimit(t *testing.T) {
	f := setupWith(t, &server.Config{RequestsPerSecond: 0.01, Burst: 2})
	f.tc.Get("/api/balance").AssertStatus(http.StatusOK)
	f.tc.Get("/api/balance").AssertStatus(http.StatusOK)
	f.tc.Get("/api/balance").AssertStatus(http.StatusTooManyRequests)
	f.ac.Health().AssertStatus(http.StatusOK)
}

func TestAdminStateRoundTrip(t *testing.T) {
	f := setup(t)
	f.tc.Earn(70, "")
	var state map[string]string
	f.ac.GetState().AssertStatus(http.StatusOK).JSON(&state)

	f.tc.Post("/api/reset", nil)
	f.ac.LoadState(state).AssertStatus(http.StatusOK)
	if got := f.tc.Balance(); got != 70 {
		t.Errorf("balance = %d after restore, want 70", got)
	}
}
