package service

import (
	"strings"
	"time"

	"github.com/nitebet/casino-core/internal/domain"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Jurisdictions and thresholds
// ──────────────────────────────────────────────────────────────────────────────

const (
	jurisdictionMalta       = "MALTA"
	jurisdictionPhilippines = "PHILIPPINES"
	jurisdictionCuracao     = "CURACAO"
	jurisdictionDefault     = "DEFAULT"
)

// reportingThresholds holds the large-transaction reporting thresholds per
// jurisdiction, indexed by currency with a per-jurisdiction fallback under "".
var reportingThresholds = map[string]map[string]decimal.Decimal{
	jurisdictionMalta: {
		"EUR": decimal.NewFromInt(2000),
		"USD": decimal.NewFromInt(2200),
		"":    decimal.NewFromInt(2000),
	},
	jurisdictionPhilippines: {
		"USD": decimal.NewFromInt(10000),
		"PHP": decimal.NewFromInt(500000),
		"":    decimal.NewFromInt(10000),
	},
	jurisdictionCuracao: {
		"EUR": decimal.NewFromInt(4500),
		"USD": decimal.NewFromInt(5000),
		"":    decimal.NewFromInt(5000),
	},
	jurisdictionDefault: {
		"EUR": decimal.NewFromInt(9500),
		"USD": decimal.NewFromInt(10000),
		"":    decimal.NewFromInt(10000),
	},
}

// jurisdictionForCountry maps a player country to its regulatory regime.
func jurisdictionForCountry(country string) string {
	switch strings.ToUpper(country) {
	case "MT":
		return jurisdictionMalta
	case "PH":
		return jurisdictionPhilippines
	case "AW", "CW":
		return jurisdictionCuracao
	default:
		return jurisdictionDefault
	}
}

// reportingThreshold returns the large-transaction threshold for a
// jurisdiction and currency.
func reportingThreshold(jurisdiction, currency string) decimal.Decimal {
	table, ok := reportingThresholds[jurisdiction]
	if !ok {
		table = reportingThresholds[jurisdictionDefault]
	}
	if t, ok := table[strings.ToUpper(currency)]; ok {
		return t
	}
	return table[""]
}

// highRiskCountries is the FATF high-risk set the rules test against.
var highRiskCountries = map[string]bool{
	"AF": true, "BY": true, "BI": true, "CF": true, "CD": true,
	"KP": true, "ER": true, "IR": true, "IQ": true, "LY": true,
	"ML": true, "MM": true, "NI": true, "PK": true, "RU": true,
	"SO": true, "SS": true, "SD": true, "SY": true, "VE": true,
	"YE": true, "ZW": true,
}

// sanctionedCountries is the subset that upgrades severity to CRITICAL.
var sanctionedCountries = map[string]bool{"KP": true, "IR": true}

// ──────────────────────────────────────────────────────────────────────────────
// Rule input and result
// ──────────────────────────────────────────────────────────────────────────────

// ruleInput is the snapshot a single analysis runs over. The service
// assembles it from the store; the rules themselves touch no I/O.
type ruleInput struct {
	Transaction *domain.Transaction
	Player      *domain.Player

	Jurisdiction string
	Threshold    decimal.Decimal

	// 24h window, same transaction type.
	SameType24h []*domain.Transaction
	// 7d window, same transaction type.
	Count7d int
	Sum7d   decimal.Decimal
	List7d  []*domain.Transaction

	// 30-day average amount for the same type and the five most recent
	// transactions preceding this one, for the unusual-pattern rule.
	Avg30d  decimal.Decimal
	Recent5 []*domain.Transaction
}

// ruleHit is one triggered rule.
type ruleHit struct {
	Alert     domain.AlertType
	Rule      string // machine-readable detection_rule value
	Score     float64
	Detail    string
	Sanctions bool
}

// ruleResult aggregates all triggered rules for one transaction.
type ruleResult struct {
	Score float64 // clipped to 100
	Hits  []ruleHit

	IsLargeTransaction         bool
	IsPoliticallyExposedPerson bool
	IsHighRiskCountry          bool
	IsStructuringAttempt       bool
	IsUnusualPattern           bool
	SanctionsMatch             bool
}

// alertPriority orders alert types when several rules hit; the emitted alert
// takes the highest-priority type.
var alertPriority = map[domain.AlertType]int{
	domain.AlertPEPMatch:         5,
	domain.AlertHighRiskCountry:  4,
	domain.AlertStructuring:      3,
	domain.AlertLargeTransaction: 2,
	domain.AlertUnusualPattern:   1,
}

// evaluateRules runs the full rule set over one snapshot and returns the
// aggregate. Pure function; deterministic given the input.
func evaluateRules(in ruleInput) ruleResult {
	var res ruleResult

	if hit, ok := ruleLargeTransaction(in); ok {
		res.Hits = append(res.Hits, hit)
		res.IsLargeTransaction = true
	}
	if hit, ok := rulePEPMatch(in); ok {
		res.Hits = append(res.Hits, hit)
		res.IsPoliticallyExposedPerson = true
	}
	if hit, ok := ruleHighRiskCountry(in); ok {
		res.Hits = append(res.Hits, hit)
		res.IsHighRiskCountry = true
		res.SanctionsMatch = res.SanctionsMatch || hit.Sanctions
	}
	if hit, ok := ruleStructuring(in); ok {
		res.Hits = append(res.Hits, hit)
		res.IsStructuringAttempt = true
	}
	if hit, ok := ruleUnusualPattern(in); ok {
		res.Hits = append(res.Hits, hit)
		res.IsUnusualPattern = true
	}

	for _, h := range res.Hits {
		res.Score += h.Score
	}
	if res.Score > 100 {
		res.Score = 100
	}
	return res
}

// topHit returns the highest-priority triggered rule, or nil when none fired.
func (r ruleResult) topHit() *ruleHit {
	var best *ruleHit
	for i := range r.Hits {
		h := &r.Hits[i]
		if best == nil || alertPriority[h.Alert] > alertPriority[best.Alert] {
			best = h
		}
	}
	return best
}

// severityFor grades the emitted alert.
func (r ruleResult) severityFor(t domain.AlertType) domain.AlertSeverity {
	if r.SanctionsMatch {
		return domain.SeverityCritical
	}
	switch t {
	case domain.AlertPEPMatch, domain.AlertHighRiskCountry, domain.AlertStructuring:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Individual rules
// ──────────────────────────────────────────────────────────────────────────────

// ruleLargeTransaction fires when the amount meets the jurisdictional
// reporting threshold.
func ruleLargeTransaction(in ruleInput) (ruleHit, bool) {
	if in.Transaction.Amount.LessThan(in.Threshold) {
		return ruleHit{}, false
	}
	return ruleHit{
		Alert:  domain.AlertLargeTransaction,
		Rule:   "large_transaction",
		Score:  25,
		Detail: "amount meets the jurisdictional reporting threshold",
	}, true
}

// rulePEPMatch fires when player or transaction metadata carries a PEP flag.
func rulePEPMatch(in ruleInput) (ruleHit, bool) {
	meta := in.Transaction.Metadata
	pep := meta.Bool("is_pep")
	if !pep {
		switch strings.ToLower(meta.String("pep_status")) {
		case "pep", "politically_exposed_person":
			pep = true
		}
	}
	if !pep {
		return ruleHit{}, false
	}
	return ruleHit{
		Alert:  domain.AlertPEPMatch,
		Rule:   "pep_detection",
		Score:  40,
		Detail: "politically exposed person flagged in metadata",
	}, true
}

// ruleHighRiskCountry fires on FATF-listed player countries or an explicit
// metadata flag. Sanctions-listed countries mark the hit CRITICAL.
func ruleHighRiskCountry(in ruleInput) (ruleHit, bool) {
	country := strings.ToUpper(in.Player.Country)
	flagged := highRiskCountries[country]
	if !flagged {
		meta := in.Transaction.Metadata
		if meta.Bool("high_risk_jurisdiction") {
			flagged = true
		} else if mc := strings.ToUpper(meta.String("country")); mc != "" && highRiskCountries[mc] {
			country = mc
			flagged = true
		}
	}
	if !flagged {
		return ruleHit{}, false
	}
	return ruleHit{
		Alert:     domain.AlertHighRiskCountry,
		Rule:      "high_risk_country",
		Score:     35,
		Detail:    "player associated with a high-risk jurisdiction",
		Sanctions: sanctionedCountries[country],
	}, true
}

// ruleStructuring detects transaction splitting under the reporting
// threshold, over a 24-hour and a 7-day window. The contribution starts at 15
// and grows with the number of matched patterns, capped at 80.
func ruleStructuring(in ruleInput) (ruleHit, bool) {
	threshold := in.Threshold
	score := 0.0

	// 24h window (same-type transactions including the one under analysis).
	count24h := len(in.SameType24h)
	sum24h := decimal.Zero
	nearThreshold := 0
	for _, t := range in.SameType24h {
		sum24h = sum24h.Add(t.Amount)
		lo := threshold.Mul(decimal.NewFromFloat(0.7))
		if t.Amount.GreaterThanOrEqual(lo) && t.Amount.LessThan(threshold) {
			nearThreshold++
		}
	}
	if count24h >= 3 {
		score += 15
	}
	bandLo := threshold.Mul(decimal.NewFromFloat(0.8))
	bandHi := threshold.Mul(decimal.NewFromFloat(1.1))
	if sum24h.GreaterThanOrEqual(bandLo) && sum24h.LessThanOrEqual(bandHi) {
		score += 20
	}
	if nearThreshold >= 2 {
		score += 20
	}

	// 7d window.
	if in.Count7d >= 50 && in.Sum7d.GreaterThan(threshold.Mul(decimal.NewFromFloat(0.8))) {
		score += 25
	}
	if in.Count7d >= 20 {
		avg := in.Sum7d.Div(decimal.NewFromInt(int64(in.Count7d)))
		if avg.LessThan(threshold.Mul(decimal.NewFromFloat(0.05))) {
			score += 20
		}
	}
	if clusteredBelowThreshold(in.List7d, threshold) {
		score += 25
	}

	if score == 0 {
		return ruleHit{}, false
	}
	if score > 80 {
		score = 80
	}
	if score < 15 {
		score = 15
	}
	return ruleHit{
		Alert:  domain.AlertStructuring,
		Rule:   "structuring_detection",
		Score:  score,
		Detail: "transaction pattern consistent with structuring below the reporting threshold",
	}, true
}

// clusteredBelowThreshold reports whether five or more amounts in the window
// fall into the same 10%-of-threshold band.
func clusteredBelowThreshold(txns []*domain.Transaction, threshold decimal.Decimal) bool {
	if len(txns) < 5 || threshold.IsZero() {
		return false
	}
	band := threshold.Mul(decimal.NewFromFloat(0.1))
	buckets := map[int64]int{}
	for _, t := range txns {
		idx := t.Amount.Div(band).IntPart()
		buckets[idx]++
		if buckets[idx] >= 5 {
			return true
		}
	}
	return false
}

// nightStart and nightEnd bound the elevated-risk hours for the
// unusual-pattern rule, in the transaction's own clock.
const (
	nightStart = 1
	nightEnd   = 5
)

// ruleUnusualPattern compares the amount against the player's own history:
// the 30-day average and the five most recent transactions of the same type.
// Night-time activity adds a flat 10.
func ruleUnusualPattern(in ruleInput) (ruleHit, bool) {
	amount := in.Transaction.Amount
	score := 0.0

	if in.Avg30d.IsPositive() && amount.GreaterThan(in.Avg30d.Mul(decimal.NewFromInt(3))) {
		score += 30
	}
	if len(in.Recent5) > 0 {
		maxRecent := in.Recent5[0].Amount
		sumRecent := decimal.Zero
		for _, t := range in.Recent5 {
			if t.Amount.GreaterThan(maxRecent) {
				maxRecent = t.Amount
			}
			sumRecent = sumRecent.Add(t.Amount)
		}
		avgRecent := sumRecent.Div(decimal.NewFromInt(int64(len(in.Recent5))))
		if amount.GreaterThan(maxRecent.Mul(decimal.NewFromInt(2))) &&
			amount.GreaterThan(avgRecent.Mul(decimal.NewFromInt(3))) {
			score += 20
		}
	}
	if score > 0 {
		hour := in.Transaction.CreatedAt.Hour()
		if hour >= nightStart && hour <= nightEnd {
			score += 10
		}
	}

	if score == 0 {
		return ruleHit{}, false
	}
	if score > 60 {
		score = 60
	}
	return ruleHit{
		Alert:  domain.AlertUnusualPattern,
		Rule:   "unusual_pattern",
		Score:  score,
		Detail: "amount deviates sharply from the player's recent history",
	}, true
}

// ──────────────────────────────────────────────────────────────────────────────
// Windows
// ──────────────────────────────────────────────────────────────────────────────

// Analysis window lengths.
const (
	windowDay   = 24 * time.Hour
	window7d    = 7 * 24 * time.Hour
	window30d   = 30 * 24 * time.Hour
	recentDepth = 5
)
