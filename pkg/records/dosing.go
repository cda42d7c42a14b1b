package records

import (
	"strings"
	"time"
)

const DefaultDoseInterval = 8 * time.Hour

type doseRule struct {
	phrases  []string
	interval time.Duration
}

// Evaluated top to bottom, first match wins. Counted schedules come before
// the bare "once"/"daily" rule so "three times daily" resolves to 8h.
var doseRules = []doseRule{
	{phrases: []string{"four times"}, interval: 6 * time.Hour},
	{phrases: []string{"three times", "thrice"}, interval: 8 * time.Hour},
	{phrases: []string{"twice"}, interval: 12 * time.Hour},
	{phrases: []string{"every 6 hours"}, interval: 6 * time.Hour},
	{phrases: []string{"every 8 hours"}, interval: 8 * time.Hour},
	{phrases: []string{"once", "daily"}, interval: 24 * time.Hour},
}

// DoseInterval maps a free-text frequency such as "twice daily" to the gap
// between doses.
func DoseInterval(frequency string) time.Duration {
	f := strings.ToLower(frequency)
	for _, rule := range doseRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(f, phrase) {
				return rule.interval
			}
		}
	}
	return DefaultDoseInterval
}

func NextDose(frequency string, now time.Time) time.Time {
	return now.UTC().Add(DoseInterval(frequency))
}
