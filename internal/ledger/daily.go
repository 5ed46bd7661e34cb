package ledger

const dayLayout = "2006-01-02"

// Rollover returns state unchanged when it belongs to today, and an empty
// state for today otherwise.
func Rollover(state DailyState, today string) DailyState {
	if state.Date != today {
		return DailyState{Date: today, Claims: map[string]bool{}}
	}
	if state.Claims == nil {
		state.Claims = map[string]bool{}
	}
	return state
}

// Today returns the current calendar day in the ledger's zone.
func (s *Service) Today() string {
	return s.clock.Now().In(s.location).Format(dayLayout)
}

// DailyState returns today's claim state.
func (s *Service) DailyState() DailyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyState()
}

// HasClaimedToday reports whether rewardID was claimed on the current day.
func (s *Service) HasClaimedToday(rewardID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyState().Claims[rewardID]
}

// MarkClaimedToday records a claim of rewardID for the current day.
func (s *Service) MarkClaimedToday(rewardID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.dailyState()
	state.Claims[rewardID] = true
	ok := s.writeJSON(KeyDailyClaims, state)
	s.reportWrite(ok)
	return ok
}

func (s *Service) dailyState() DailyState {
	var stored DailyState
	s.readJSON(KeyDailyClaims, &stored)
	return Rollover(stored, s.Today())
}
