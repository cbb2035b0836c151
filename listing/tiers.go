package listing

import (
	"fmt"
	"sort"

	"github.com/teranos/vacancy/am"
)

// Tier is one (duration, price) row of the pricing table
type Tier struct {
	Days        int
	PriceCents  int64
	Description string
}

// ProductName is the line item name shown at checkout
func (t Tier) ProductName() string {
	return fmt.Sprintf("Job Posting - %d Days", t.Days)
}

// Tiers is the pricing table, ordered by duration
type Tiers []Tier

// TiersFromConfig converts configured tiers
func TiersFromConfig(cfg []am.TierConfig) Tiers {
	tiers := make(Tiers, 0, len(cfg))
	for _, c := range cfg {
		tiers = append(tiers, Tier{Days: c.Days, PriceCents: c.PriceCents, Description: c.Description})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Days < tiers[j].Days })
	return tiers
}

// Lookup finds the tier for a duration
func (ts Tiers) Lookup(days int) (Tier, bool) {
	for _, t := range ts {
		if t.Days == days {
			return t, true
		}
	}
	return Tier{}, false
}

// Days lists the offered durations
func (ts Tiers) Days() []int {
	days := make([]int, len(ts))
	for i, t := range ts {
		days[i] = t.Days
	}
	return days
}
