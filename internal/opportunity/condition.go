package opportunity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Kind string

const (
	KindGreater Kind = "greater-than"
	KindLess    Kind = "less-than"
	KindBetween Kind = "between"
)

// Condition is a numeric temperature predicate parsed from a market title.
type Condition struct {
	Kind      Kind    `json:"kind"`
	Threshold float64 `json:"threshold,omitempty"`
	Low       float64 `json:"low,omitempty"`
	High      float64 `json:"high,omitempty"`
}

func (c Condition) String() string {
	switch c.Kind {
	case KindGreater:
		return fmt.Sprintf(">=%.0fF", c.Threshold)
	case KindLess:
		return fmt.Sprintf("<=%.0fF", c.Threshold)
	case KindBetween:
		return fmt.Sprintf("%.0f-%.0fF", c.Low, c.High)
	}
	return "unknown"
}

var tempRe = regexp.MustCompile(`(?i)(-?\d+)\s*°?\s*F`)

var (
	greaterKeywords = []string{"at least", "or higher", "or above", "greater than", "above", ">="}
	lessKeywords    = []string{"at most", "or lower", "or below", "less than", "below", "<="}
)

// ParseCondition best-effort parses a market title into a condition.
// Titles it cannot classify return ok=false and are skipped by the
// evaluation pass.
func ParseCondition(title string) (Condition, bool) {
	matches := tempRe.FindAllStringSubmatch(title, -1)
	temps := make([]float64, 0, len(matches))
	for _, m := range matches {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			temps = append(temps, v)
		}
	}
	lower := strings.ToLower(title)

	if len(temps) >= 2 && (strings.Contains(lower, "between") || strings.Contains(lower, " to ")) {
		low, high := temps[0], temps[1]
		if low > high {
			low, high = high, low
		}
		return Condition{Kind: KindBetween, Low: low, High: high}, true
	}
	if len(temps) > 0 && containsAny(lower, greaterKeywords) {
		return Condition{Kind: KindGreater, Threshold: temps[0]}, true
	}
	if len(temps) > 0 && containsAny(lower, lessKeywords) {
		return Condition{Kind: KindLess, Threshold: temps[0]}, true
	}
	return Condition{}, false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
