package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MiKapsDev/Lion-City/internal/groups"
)

func TestEvaluate(t *testing.T) {
	brunch := Discount{ID: "brunch", Cost: 40, Uses: 2, MinGroupMembers: 3}
	smoothie := Discount{ID: "smoothie", Cost: 12, Uses: 3}
	trio := []groups.Group{{ID: "g", Members: []string{"a@b.de", "c@d.de", "e@f.de"}}}
	duo := []groups.Group{{ID: "g", Members: []string{"a@b.de", "c@d.de"}}}

	tests := []struct {
		name    string
		d       Discount
		uses    Uses
		groups  []groups.Group
		balance int
		want    Eligibility
	}{
		{
			name: "all gates fail reports group first",
			d:    brunch, uses: Uses{"brunch": 0}, groups: duo, balance: 0,
			want: Eligibility{Gate: GateGroup, Label: "Group of 3 required"},
		},
		{
			name: "no groups at all",
			d:    brunch, uses: Uses{}, groups: nil, balance: 100,
			want: Eligibility{Gate: GateGroup, Label: "Group of 3 required"},
		},
		{
			name: "sold out beats balance",
			d:    brunch, uses: Uses{"brunch": 0}, groups: trio, balance: 0,
			want: Eligibility{Gate: GateSoldOut, Label: "Sold out"},
		},
		{
			name: "negative stored count is sold out",
			d:    smoothie, uses: Uses{"smoothie": -2}, balance: 100,
			want: Eligibility{Gate: GateSoldOut, Label: "Sold out"},
		},
		{
			name: "insufficient balance",
			d:    smoothie, uses: Uses{}, balance: 11,
			want: Eligibility{Gate: GateBalance, Label: "Not enough points"},
		},
		{
			name: "exact balance is enough",
			d:    smoothie, uses: Uses{"smoothie": 1}, balance: 12,
			want: Eligibility{Enabled: true, Label: "Redeem"},
		},
		{
			name: "group satisfied",
			d:    brunch, uses: Uses{}, groups: trio, balance: 40,
			want: Eligibility{Enabled: true, Label: "Redeem"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.d, tt.uses, tt.groups, tt.balance))
		})
	}
}

func TestEvaluateReward(t *testing.T) {
	coffee := Reward{ID: "coffee", Cost: 15}

	assert.Equal(t, Eligibility{Gate: GateClaimedToday, Label: "Claimed today"}, EvaluateReward(coffee, true, 0))
	assert.Equal(t, Eligibility{Gate: GateBalance, Label: "Not enough points"}, EvaluateReward(coffee, false, 14))
	assert.True(t, EvaluateReward(coffee, false, 15).Enabled)
}

func TestUsesRemaining(t *testing.T) {
	d := Discount{ID: "gear", Uses: 2}
	assert.Equal(t, 2, Uses{}.Remaining(d))
	assert.Equal(t, 1, Uses{"gear": 1}.Remaining(d))
	assert.Equal(t, 0, Uses{"gear": -1}.Remaining(d))
	assert.Equal(t, 2, Uses(nil).Remaining(d))
}

func TestCatalogValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	dup := Default()
	dup.Discounts = append(dup.Discounts, Discount{ID: "coffee", Cost: 1, Uses: 1})
	assert.ErrorContains(t, dup.Validate(), "duplicate")

	free := Catalog{Rewards: []Reward{{ID: "x", Cost: 0}}}
	assert.Error(t, free.Validate())

	noStock := Catalog{Discounts: []Discount{{ID: "x", Cost: 1}}}
	assert.Error(t, noStock.Validate())
}

func TestCatalogLookup(t *testing.T) {
	c := Default()
	r, ok := c.Reward("double-points")
	assert.True(t, ok)
	assert.True(t, r.Boost)
	assert.Equal(t, 500, r.Cost)

	d, ok := c.Discount("brunch")
	assert.True(t, ok)
	assert.Equal(t, 3, d.MinGroupMembers)

	_, ok = c.Discount("coffee")
	assert.False(t, ok)
}
