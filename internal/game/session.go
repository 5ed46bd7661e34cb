package game

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MiKapsDev/Lion-City/internal/events"
	"github.com/MiKapsDev/Lion-City/internal/ledger"
	"github.com/MiKapsDev/Lion-City/internal/metrics"
	"github.com/MiKapsDev/Lion-City/internal/notify"
)

const (
	// CountdownSeconds is the number of one second countdown ticks before play.
	CountdownSeconds = 5
	countdownPeriod  = time.Second
)

// Awarder credits finished games.
type Awarder interface {
	AddPoints(amount int, source ledger.Source, reason string) ledger.EarnResult
}

// Result is the outcome of an ended session.
type Result struct {
	Score      int     `json:"score"`
	Multiplier float64 `json:"multiplier"`
	Points     int     `json:"points"`
	Reason     string  `json:"reason,omitempty"`
	Cancelled  bool    `json:"cancelled"`
	// Cause is the final step outcome, empty for cancelled sessions.
	Cause string `json:"cause,omitempty"`
}

// View is a read-only snapshot of a session for display.
type View struct {
	Game        string        `json:"game"`
	State       State         `json:"state"`
	Countdown   int           `json:"countdown,omitempty"`
	Multiplier  float64       `json:"multiplier"`
	FinalPoints int           `json:"final_points"`
	TickDelay   time.Duration `json:"-"`
	TickDelayMS int64         `json:"tick_delay_ms"`
	Message     string        `json:"message"`
	Tone        notify.Tone   `json:"tone"`
	GridSize    int           `json:"grid_size"`
	Result      *Result       `json:"result,omitempty"`
}

type deps struct {
	awarder   Awarder
	scheduler Scheduler
	rand      Rand
	notifier  notify.Notifier
	bus       *events.Bus
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Session is one play of the game. It owns at most one pending tick and one
// pending countdown step; every transition cancels both before scheduling.
type Session struct {
	mu  sync.Mutex
	d   deps
	gen uint64

	state     State
	lastDir   Point
	queued    *Point
	remaining int
	tick      Timer
	countdown Timer
	message   string
	tone      notify.Tone
	result    *Result
	discarded bool
}

// finish carries the side effects of an ended session out of the lock.
type finish struct {
	result Result
	award  bool
}

func newSession(basePoints int, d deps) *Session {
	s := &Session{d: d, state: NewState(basePoints, d.rand), lastDir: Right}
	s.setStatus("Ready for the round. Press start.", notify.ToneInfo)
	return s
}

// Start begins the countdown. It is accepted only from StatusReady.
func (s *Session) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded || s.state.Status != StatusReady {
		return false
	}
	s.cancelTimers()
	s.state.Status = StatusCountdown
	s.remaining = CountdownSeconds
	s.setStatus(countdownMessage(s.remaining), notify.ToneInfo)
	s.scheduleCountdown()
	return true
}

// Queue records dir as the direction for the next tick, replacing any
// direction queued earlier. It is accepted only while running and never for
// the reverse of the last applied direction.
func (s *Session) Queue(dir Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded || s.state.Status != StatusRunning {
		return false
	}
	if dir == s.lastDir.reverse() {
		return false
	}
	s.queued = &dir
	return true
}

// GiveUp ends the session without an award. It is accepted from every
// status except StatusOver.
func (s *Session) GiveUp() bool {
	s.mu.Lock()
	if s.discarded || s.state.Status == StatusOver {
		s.mu.Unlock()
		return false
	}
	f := s.end(true, "")
	s.mu.Unlock()
	s.complete(f)
	return true
}

// Close is the overlay close: a running session is cancelled, both timers
// are torn down and the session is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	var f *finish
	if !s.discarded && s.state.Status == StatusRunning {
		f = s.end(true, "")
	}
	s.cancelTimers()
	s.discarded = true
	s.mu.Unlock()
	s.complete(f)
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Snake = append([]Point(nil), s.state.Snake...)
	mult := Multiplier(st.Score)
	delay := TickDelay(mult)
	v := View{
		Game:        "snake",
		State:       st,
		Multiplier:  mult,
		FinalPoints: FinalPoints(st.BasePoints, mult),
		TickDelay:   delay,
		TickDelayMS: delay.Milliseconds(),
		Message:     s.message,
		Tone:        s.tone,
		GridSize:    GridSize,
	}
	if st.Status == StatusCountdown {
		v.Countdown = s.remaining
	}
	if s.result != nil {
		r := *s.result
		v.Result = &r
	}
	return v
}

func (s *Session) scheduleCountdown() {
	gen := s.gen
	s.countdown = s.d.scheduler.AfterFunc(countdownPeriod, func() { s.onCountdown(gen) })
}

func (s *Session) onCountdown(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.discarded || s.state.Status != StatusCountdown {
		return
	}
	s.countdown = nil
	s.remaining--
	if s.remaining > 0 {
		s.setStatus(countdownMessage(s.remaining), notify.ToneInfo)
		s.scheduleCountdown()
		return
	}
	s.cancelTimers()
	s.state.Status = StatusRunning
	s.setStatus("Running - collect food for a higher multiplier.", notify.ToneSuccess)
	s.scheduleTick()
}

func (s *Session) scheduleTick() {
	gen := s.gen
	delay := TickDelay(Multiplier(s.state.Score))
	s.tick = s.d.scheduler.AfterFunc(delay, func() { s.onTick(gen) })
}

func (s *Session) onTick(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.discarded || s.state.Status != StatusRunning {
		s.mu.Unlock()
		return
	}
	s.tick = nil

	dir := s.state.Dir
	if s.queued != nil {
		dir = *s.queued
		s.queued = nil
	}
	s.lastDir = dir

	outcome := s.state.Step(dir, s.d.rand)
	if !outcome.Ended() {
		s.scheduleTick()
		s.mu.Unlock()
		return
	}
	f := s.end(false, outcome.String())
	s.mu.Unlock()
	s.complete(f)
}

// end moves the session to StatusOver. The award decision is made here,
// under the lock, so it happens at most once per session.
func (s *Session) end(cancelled bool, cause string) *finish {
	s.cancelTimers()
	s.state.Status = StatusOver
	s.queued = nil

	mult := Multiplier(s.state.Score)
	res := Result{Score: s.state.Score, Multiplier: mult, Cancelled: cancelled, Cause: cause}

	if cancelled {
		s.result = &res
		s.setStatus("Game cancelled. No points awarded.", notify.ToneWarning)
		return &finish{result: res}
	}
	if s.state.Awarded {
		return nil
	}
	s.state.Awarded = true
	res.Points = FinalPoints(s.state.BasePoints, mult)
	res.Reason = AwardReason(s.state.Score, mult)
	s.result = &res
	if res.Points > 0 {
		s.setStatus(fmt.Sprintf("Game over: +%d points credited.", res.Points), notify.ToneSuccess)
	} else {
		s.setStatus("Game over: no points earned.", notify.ToneWarning)
	}
	return &finish{result: res, award: res.Points > 0}
}

// complete runs the side effects of end outside the session lock.
func (s *Session) complete(f *finish) {
	if f == nil {
		return
	}
	r := f.result
	outcome := "no-points"
	switch {
	case r.Cancelled:
		outcome = "cancelled"
	case f.award:
		outcome = "awarded"
		s.d.awarder.AddPoints(r.Points, ledger.SourceGame, r.Reason)
	}
	s.d.metrics.GameFinished(outcome)
	s.d.logger.Info("game finished",
		"outcome", outcome,
		"score", r.Score,
		"multiplier", r.Multiplier,
		"points", r.Points,
	)
	s.d.bus.Publish(events.GameFinished, map[string]any{
		"game":       "snake",
		"score":      r.Score,
		"multiplier": r.Multiplier,
		"points":     r.Points,
		"cancelled":  r.Cancelled,
	})
}

// cancelTimers stops both pending callbacks and invalidates any that are
// already running.
func (s *Session) cancelTimers() {
	s.gen++
	if s.tick != nil {
		s.tick.Stop()
		s.tick = nil
	}
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
}

func (s *Session) setStatus(text string, tone notify.Tone) {
	s.message = text
	s.tone = tone
	s.d.notifier.Notify(notify.ChannelGame, text, tone)
}

func countdownMessage(n int) string {
	if n == 1 {
		return "Starting in 1 second ..."
	}
	return fmt.Sprintf("Starting in %d seconds ...", n)
}
