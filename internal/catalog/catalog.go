// Package catalog holds the reward and discount definitions, evaluates
// redemption eligibility and runs the redemption flows on top of the ledger.
package catalog

import (
	"errors"
	"fmt"
)

// ErrUnknownOffer is returned when a reward or discount id is not in the catalog.
var ErrUnknownOffer = errors.New("unknown offer")

// Reward is a daily-gated offer. Redeeming it issues a key.
type Reward struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Cost int    `json:"cost" yaml:"cost"`
	// Boost makes a successful redemption open the double-points window.
	Boost bool `json:"boost,omitempty" yaml:"boost"`
}

// Discount is a stock-limited offer, optionally restricted to group members.
type Discount struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Cost        int    `json:"cost" yaml:"cost"`
	Uses        int    `json:"uses" yaml:"uses"`
	// MinGroupMembers is 0 when no group is required.
	MinGroupMembers int `json:"min_group_members,omitempty" yaml:"min_group_members"`
}

// Catalog is the static offer configuration.
type Catalog struct {
	Rewards   []Reward   `json:"rewards" yaml:"rewards"`
	Discounts []Discount `json:"discounts" yaml:"discounts"`
}

// Default returns the built-in catalog.
func Default() Catalog {
	return Catalog{
		Rewards: []Reward{
			{ID: "coffee", Name: "Gratis Kaffee", Cost: 15},
			{ID: "voucher", Name: "Gutschein 5€ für teilnehmende Shops", Cost: 25},
			{ID: "double-points", Name: "Doppelte Punkte 1 Std.", Cost: 500, Boost: true},
		},
		Discounts: []Discount{
			{ID: "smoothie", Title: "20% auf Smoothies", Description: "Frische Bowls & Smoothies im City Store.", Cost: 12, Uses: 3},
			{ID: "gear", Title: "5 EUR Rabatt auf Bike-Gear", Description: "Perfekt fuer das naechste Abenteuer.", Cost: 18, Uses: 2},
			{ID: "tickets", Title: "2-for-1 Kinotickets", Description: "Nur donnerstags einloesbar.", Cost: 30, Uses: 1},
			{ID: "brunch", Title: "Gruppen-Brunch -25%", Description: "Fuer Gruppen ab 3 Personen.", Cost: 40, Uses: 2, MinGroupMembers: 3},
		},
	}
}

// Validate checks ids are unique and non-empty, and costs and caps are positive.
func (c Catalog) Validate() error {
	seen := make(map[string]bool)
	check := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%s with empty id", kind)
		}
		if seen[id] {
			return fmt.Errorf("duplicate offer id %q", id)
		}
		seen[id] = true
		return nil
	}
	for _, r := range c.Rewards {
		if err := check("reward", r.ID); err != nil {
			return err
		}
		if r.Cost <= 0 {
			return fmt.Errorf("reward %q: cost must be positive", r.ID)
		}
	}
	for _, d := range c.Discounts {
		if err := check("discount", d.ID); err != nil {
			return err
		}
		if d.Cost <= 0 {
			return fmt.Errorf("discount %q: cost must be positive", d.ID)
		}
		if d.Uses <= 0 {
			return fmt.Errorf("discount %q: uses must be positive", d.ID)
		}
		if d.MinGroupMembers < 0 {
			return fmt.Errorf("discount %q: min_group_members must not be negative", d.ID)
		}
	}
	return nil
}

// Reward looks up a reward by id.
func (c Catalog) Reward(id string) (Reward, bool) {
	for _, r := range c.Rewards {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}

// Discount looks up a discount by id.
func (c Catalog) Discount(id string) (Discount, bool) {
	for _, d := range c.Discounts {
		if d.ID == id {
			return d, true
		}
	}
	return Discount{}, false
}
