package catalog

import (
	"fmt"

	"github.com/MiKapsDev/Lion-City/internal/groups"
)

// Gate names the check that blocks a redemption.
type Gate string

const (
	GateOpen         Gate = ""
	GateGroup        Gate = "group-required"
	GateSoldOut      Gate = "sold-out"
	GateBalance      Gate = "insufficient-balance"
	GateClaimedToday Gate = "claimed-today"
)

// Eligibility is the evaluated state of one offer.
type Eligibility struct {
	Enabled bool   `json:"enabled"`
	Gate    Gate   `json:"gate,omitempty"`
	Label   string `json:"label"`
}

const labelRedeem = "Redeem"

func open() Eligibility {
	return Eligibility{Enabled: true, Label: labelRedeem}
}

func blocked(g Gate, label string) Eligibility {
	return Eligibility{Gate: g, Label: label}
}

// Evaluate applies the discount gates in priority order: group requirement,
// then stock, then balance.
func Evaluate(d Discount, uses Uses, list []groups.Group, balance int) Eligibility {
	if d.MinGroupMembers > 0 && !hasGroupWithAtLeast(list, d.MinGroupMembers) {
		return blocked(GateGroup, fmt.Sprintf("Group of %d required", d.MinGroupMembers))
	}
	if uses.Remaining(d) <= 0 {
		return blocked(GateSoldOut, "Sold out")
	}
	if balance < d.Cost {
		return blocked(GateBalance, "Not enough points")
	}
	return open()
}

// EvaluateReward applies the reward gates: claimed today, then balance.
func EvaluateReward(r Reward, claimedToday bool, balance int) Eligibility {
	if claimedToday {
		return blocked(GateClaimedToday, "Claimed today")
	}
	if balance < r.Cost {
		return blocked(GateBalance, "Not enough points")
	}
	return open()
}

func hasGroupWithAtLeast(list []groups.Group, n int) bool {
	for _, g := range list {
		if len(g.Members) >= n {
			return true
		}
	}
	return false
}
