package opportunity

import "fmt"

// Thresholds are the heuristic tuning constants for the decision rule. They
// are not derived from a model; operators adjust them in config.
type Thresholds struct {
	GreaterMarginF       float64
	LessMarginF          float64
	BetweenSlackF        float64
	GreaterMaxPriceCents int
	LessMaxPriceCents    int
	BetweenMaxPriceCents int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		GreaterMarginF:       1,
		LessMarginF:          1,
		BetweenSlackF:        0.5,
		GreaterMaxPriceCents: 60,
		LessMaxPriceCents:    70,
		BetweenMaxPriceCents: 60,
	}
}

// Opportunity is the outcome of one decision-rule evaluation. Only the
// latest set per cycle is kept.
type Opportunity struct {
	Ticker             string    `json:"ticker"`
	Title              string    `json:"title,omitempty"`
	Condition          Condition `json:"condition"`
	ObservedPriceCents int       `json:"observed_price_cents"`
	ForecastF          float64   `json:"forecast_f"`
	Decision           bool      `json:"decision"`
	Rationale          string    `json:"rationale"`
}

// Evaluate applies the decision rule to one market. Deterministic: the same
// (condition, forecast, price) triple always yields the same decision.
func Evaluate(ticker, title string, cond Condition, forecastF float64, priceCents int, th Thresholds) Opportunity {
	opp := Opportunity{
		Ticker:             ticker,
		Title:              title,
		Condition:          cond,
		ObservedPriceCents: priceCents,
		ForecastF:          forecastF,
	}

	switch cond.Kind {
	case KindGreater:
		need := cond.Threshold + th.GreaterMarginF
		if forecastF >= need && priceCents <= th.GreaterMaxPriceCents {
			opp.Decision = true
			opp.Rationale = fmt.Sprintf("forecast %.1fF clears %.1fF and price %dc within %dc", forecastF, need, priceCents, th.GreaterMaxPriceCents)
		} else {
			opp.Rationale = fmt.Sprintf("need forecast >= %.1fF (have %.1fF) and price <= %dc (have %dc)", need, forecastF, th.GreaterMaxPriceCents, priceCents)
		}
	case KindLess:
		need := cond.Threshold - th.LessMarginF
		if forecastF <= need && priceCents <= th.LessMaxPriceCents {
			opp.Decision = true
			opp.Rationale = fmt.Sprintf("forecast %.1fF under %.1fF and price %dc within %dc", forecastF, need, priceCents, th.LessMaxPriceCents)
		} else {
			opp.Rationale = fmt.Sprintf("need forecast <= %.1fF (have %.1fF) and price <= %dc (have %dc)", need, forecastF, th.LessMaxPriceCents, priceCents)
		}
	case KindBetween:
		low := cond.Low - th.BetweenSlackF
		high := cond.High + th.BetweenSlackF
		if forecastF >= low && forecastF <= high && priceCents <= th.BetweenMaxPriceCents {
			opp.Decision = true
			opp.Rationale = fmt.Sprintf("forecast %.1fF within %.1f-%.1fF and price %dc within %dc", forecastF, low, high, priceCents, th.BetweenMaxPriceCents)
		} else {
			opp.Rationale = fmt.Sprintf("need forecast in %.1f-%.1fF (have %.1fF) and price <= %dc (have %dc)", low, high, forecastF, th.BetweenMaxPriceCents, priceCents)
		}
	default:
		opp.Rationale = "condition not parsable"
	}
	return opp
}
