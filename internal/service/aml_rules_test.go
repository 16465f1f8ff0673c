package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/nitebet/casino-core/internal/domain"
	"github.com/shopspring/decimal"
)

// ── Fixtures ──────────────────────────────────────────────────────────────────

func testPlayer(country string) *domain.Player {
	return &domain.Player{
		PlayerID: "p1",
		Country:  country,
		Currency: "EUR",
	}
}

func testTxn(amount string, meta domain.MetadataMap) *domain.Transaction {
	return &domain.Transaction{
		TransactionID: "t1",
		PlayerID:      "p1",
		Type:          domain.TxCredit,
		Amount:        decimal.RequireFromString(amount),
		Currency:      "EUR",
		Status:        domain.TxCompleted,
		Metadata:      meta,
		CreatedAt:     time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}
}

func baseInput(country, amount string, meta domain.MetadataMap) ruleInput {
	p := testPlayer(country)
	j := jurisdictionForCountry(country)
	return ruleInput{
		Transaction:  testTxn(amount, meta),
		Player:       p,
		Jurisdiction: j,
		Threshold:    reportingThreshold(j, "EUR"),
	}
}

// ── Jurisdiction mapping ──────────────────────────────────────────────────────

func TestJurisdictionForCountry(t *testing.T) {
	cases := map[string]string{
		"MT": jurisdictionMalta,
		"mt": jurisdictionMalta,
		"PH": jurisdictionPhilippines,
		"AW": jurisdictionCuracao,
		"CW": jurisdictionCuracao,
		"DE": jurisdictionDefault,
		"":   jurisdictionDefault,
	}
	for country, want := range cases {
		if got := jurisdictionForCountry(country); got != want {
			t.Errorf("jurisdictionForCountry(%q) = %s, want %s", country, got, want)
		}
	}
}

func TestReportingThreshold(t *testing.T) {
	cases := []struct {
		jurisdiction string
		currency     string
		want         int64
	}{
		{jurisdictionMalta, "EUR", 2000},
		{jurisdictionMalta, "USD", 2200},
		{jurisdictionMalta, "GBP", 2000}, // per-jurisdiction fallback
		{jurisdictionPhilippines, "PHP", 500000},
		{jurisdictionPhilippines, "USD", 10000},
		{jurisdictionCuracao, "EUR", 4500},
		{jurisdictionCuracao, "USD", 5000},
		{jurisdictionDefault, "EUR", 9500},
		{jurisdictionDefault, "USD", 10000},
		{"UNKNOWN", "EUR", 9500}, // unknown regime falls back to default table
	}
	for _, tc := range cases {
		got := reportingThreshold(tc.jurisdiction, tc.currency)
		if !got.Equal(decimal.NewFromInt(tc.want)) {
			t.Errorf("reportingThreshold(%s, %s) = %s, want %d",
				tc.jurisdiction, tc.currency, got, tc.want)
		}
	}
}

// ── Large transaction ─────────────────────────────────────────────────────────

func TestLargeTransaction_MaltaEUR(t *testing.T) {
	in := baseInput("MT", "2500.00", nil)
	res := evaluateRules(in)

	if !res.IsLargeTransaction {
		t.Fatal("2500 EUR in Malta should flag as large (threshold 2000)")
	}
	if res.Score < 25 {
		t.Errorf("score = %.0f, want at least 25", res.Score)
	}
	hit := res.topHit()
	if hit == nil || hit.Alert != domain.AlertLargeTransaction {
		t.Errorf("top hit = %+v, want LARGE_TRANSACTION", hit)
	}
	if got := res.severityFor(hit.Alert); got != domain.SeverityMedium {
		t.Errorf("severity = %s, want MEDIUM", got)
	}
}

func TestLargeTransaction_BelowThresholdDoesNotFire(t *testing.T) {
	in := baseInput("MT", "1999.99", nil)
	res := evaluateRules(in)
	if res.IsLargeTransaction {
		t.Error("1999.99 EUR in Malta is below the 2000 threshold")
	}
}

func TestLargeTransaction_ExactThresholdFires(t *testing.T) {
	in := baseInput("MT", "2000.00", nil)
	if res := evaluateRules(in); !res.IsLargeTransaction {
		t.Error("amount equal to the threshold should flag")
	}
}

// ── PEP detection ─────────────────────────────────────────────────────────────

func TestPEP_MetadataFlag(t *testing.T) {
	in := baseInput("DE", "100.00", domain.MetadataMap{"is_pep": true})
	res := evaluateRules(in)

	if !res.IsPoliticallyExposedPerson {
		t.Fatal("is_pep metadata should flag the transaction")
	}
	hit := res.topHit()
	if hit.Alert != domain.AlertPEPMatch {
		t.Errorf("top hit = %s, want PEP_MATCH", hit.Alert)
	}
	if got := res.severityFor(hit.Alert); got != domain.SeverityHigh {
		t.Errorf("severity = %s, want HIGH", got)
	}
}

func TestPEP_StatusString(t *testing.T) {
	for _, status := range []string{"pep", "PEP", "politically_exposed_person"} {
		in := baseInput("DE", "100.00", domain.MetadataMap{"pep_status": status})
		if res := evaluateRules(in); !res.IsPoliticallyExposedPerson {
			t.Errorf("pep_status=%q should flag", status)
		}
	}
	in := baseInput("DE", "100.00", domain.MetadataMap{"pep_status": "none"})
	if res := evaluateRules(in); res.IsPoliticallyExposedPerson {
		t.Error("pep_status=none should not flag")
	}
}

// ── High-risk and sanctioned countries ────────────────────────────────────────

func TestHighRiskCountry(t *testing.T) {
	in := baseInput("PK", "100.00", nil)
	res := evaluateRules(in)

	if !res.IsHighRiskCountry {
		t.Fatal("PK player should flag as high-risk country")
	}
	if res.SanctionsMatch {
		t.Error("PK is high-risk but not sanctions-listed")
	}
	if got := res.severityFor(res.topHit().Alert); got != domain.SeverityHigh {
		t.Errorf("severity = %s, want HIGH", got)
	}
}

func TestSanctionedCountryIsCritical(t *testing.T) {
	for _, country := range []string{"KP", "IR"} {
		in := baseInput(country, "100.00", nil)
		res := evaluateRules(in)
		if !res.SanctionsMatch {
			t.Errorf("%s should be a sanctions match", country)
		}
		if got := res.severityFor(res.topHit().Alert); got != domain.SeverityCritical {
			t.Errorf("%s severity = %s, want CRITICAL", country, got)
		}
	}
}

func TestHighRiskCountry_MetadataOverride(t *testing.T) {
	in := baseInput("DE", "100.00", domain.MetadataMap{"high_risk_jurisdiction": true})
	if res := evaluateRules(in); !res.IsHighRiskCountry {
		t.Error("high_risk_jurisdiction metadata flag should fire")
	}

	in = baseInput("DE", "100.00", domain.MetadataMap{"country": "SY"})
	if res := evaluateRules(in); !res.IsHighRiskCountry {
		t.Error("high-risk metadata country should fire")
	}
}

// ── Structuring ───────────────────────────────────────────────────────────────

func TestStructuring_RepeatedNearThresholdDeposits(t *testing.T) {
	// Five same-type transactions just under a 500000 PHP threshold within a
	// day: repeated near-threshold amounts are the classic splitting pattern.
	p := testPlayer("PH")
	threshold := reportingThreshold(jurisdictionPhilippines, "PHP")

	var window []*domain.Transaction
	for i := 0; i < 5; i++ {
		window = append(window, &domain.Transaction{
			TransactionID: fmt.Sprintf("w%d", i),
			PlayerID:      p.PlayerID,
			Type:          domain.TxCredit,
			Amount:        decimal.NewFromInt(475000),
			Currency:      "PHP",
			Status:        domain.TxCompleted,
		})
	}

	in := ruleInput{
		Transaction:  window[4],
		Player:       p,
		Jurisdiction: jurisdictionPhilippines,
		Threshold:    threshold,
		SameType24h:  window,
		Count7d:      5,
		Sum7d:        decimal.NewFromInt(5 * 475000),
		List7d:       window,
	}
	res := evaluateRules(in)

	if !res.IsStructuringAttempt {
		t.Fatal("repeated near-threshold deposits should flag as structuring")
	}
	if got := res.severityFor(domain.AlertStructuring); got != domain.SeverityHigh {
		t.Errorf("severity = %s, want HIGH", got)
	}
	var structuring *ruleHit
	for i := range res.Hits {
		if res.Hits[i].Alert == domain.AlertStructuring {
			structuring = &res.Hits[i]
		}
	}
	if structuring == nil {
		t.Fatal("no structuring hit recorded")
	}
	if structuring.Score < 15 || structuring.Score > 80 {
		t.Errorf("structuring score = %.0f, want within [15, 80]", structuring.Score)
	}
}

func TestStructuring_SingleTransactionDoesNotFire(t *testing.T) {
	in := baseInput("MT", "500.00", nil)
	in.SameType24h = []*domain.Transaction{in.Transaction}
	in.Count7d = 1
	in.Sum7d = in.Transaction.Amount
	in.List7d = in.SameType24h
	if res := evaluateRules(in); res.IsStructuringAttempt {
		t.Error("a single ordinary transaction should not flag as structuring")
	}
}

func TestClusteredBelowThreshold(t *testing.T) {
	threshold := decimal.NewFromInt(10000)

	mk := func(amounts ...int64) []*domain.Transaction {
		var out []*domain.Transaction
		for _, a := range amounts {
			out = append(out, &domain.Transaction{Amount: decimal.NewFromInt(a)})
		}
		return out
	}

	// Five amounts in the same 1000-wide band.
	if !clusteredBelowThreshold(mk(9100, 9200, 9300, 9400, 9500), threshold) {
		t.Error("five amounts in one band should cluster")
	}
	// Spread across bands.
	if clusteredBelowThreshold(mk(1000, 2500, 4000, 6500, 9000), threshold) {
		t.Error("spread amounts should not cluster")
	}
	// Too few.
	if clusteredBelowThreshold(mk(9100, 9200, 9300, 9400), threshold) {
		t.Error("four amounts are below the cluster minimum")
	}
	if clusteredBelowThreshold(nil, decimal.Zero) {
		t.Error("zero threshold must not cluster")
	}
}

// ── Unusual pattern ───────────────────────────────────────────────────────────

func TestUnusualPattern_SpikesOverHistory(t *testing.T) {
	recent := []*domain.Transaction{
		{Amount: decimal.NewFromInt(50)},
		{Amount: decimal.NewFromInt(60)},
		{Amount: decimal.NewFromInt(40)},
	}
	in := baseInput("DE", "1000.00", nil)
	in.Avg30d = decimal.NewFromInt(50)
	in.Recent5 = recent

	res := evaluateRules(in)
	if !res.IsUnusualPattern {
		t.Fatal("a 20x spike over the 30-day average should flag")
	}
	hit := res.topHit()
	if hit.Alert != domain.AlertUnusualPattern {
		t.Errorf("top hit = %s, want UNUSUAL_PATTERN", hit.Alert)
	}
	if got := res.severityFor(hit.Alert); got != domain.SeverityMedium {
		t.Errorf("severity = %s, want MEDIUM", got)
	}
}

func TestUnusualPattern_NightHoursAddTen(t *testing.T) {
	day := baseInput("DE", "1000.00", nil)
	day.Avg30d = decimal.NewFromInt(50)
	dayScore := evaluateRules(day).Score

	night := baseInput("DE", "1000.00", nil)
	night.Avg30d = decimal.NewFromInt(50)
	night.Transaction.CreatedAt = time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	nightScore := evaluateRules(night).Score

	if nightScore != dayScore+10 {
		t.Errorf("night score = %.0f, day score = %.0f, want +10 at night", nightScore, dayScore)
	}
}

func TestUnusualPattern_NoHistoryDoesNotFire(t *testing.T) {
	in := baseInput("DE", "1000.00", nil)
	if res := evaluateRules(in); res.IsUnusualPattern {
		t.Error("no history means no baseline to deviate from")
	}
}

// ── Aggregation ───────────────────────────────────────────────────────────────

func TestScoreClipsAt100(t *testing.T) {
	// Large + PEP + high-risk country + unusual pattern stacks past 100.
	in := baseInput("IR", "50000.00", domain.MetadataMap{"is_pep": true})
	in.Avg30d = decimal.NewFromInt(100)

	res := evaluateRules(in)
	if res.Score != 100 {
		t.Errorf("stacked score = %.0f, want clipped to 100", res.Score)
	}
}

func TestTopHitPriority_PEPWins(t *testing.T) {
	// PEP and large-transaction both fire; PEP carries the higher priority.
	in := baseInput("MT", "2500.00", domain.MetadataMap{"is_pep": true})
	res := evaluateRules(in)

	if !res.IsLargeTransaction || !res.IsPoliticallyExposedPerson {
		t.Fatal("both rules should fire")
	}
	if hit := res.topHit(); hit.Alert != domain.AlertPEPMatch {
		t.Errorf("top hit = %s, want PEP_MATCH", hit.Alert)
	}
}

func TestTopHit_NoneFired(t *testing.T) {
	in := baseInput("DE", "50.00", nil)
	res := evaluateRules(in)
	if res.topHit() != nil {
		t.Errorf("no rule fired but topHit = %+v", res.topHit())
	}
	if res.Score != 0 {
		t.Errorf("score = %.0f, want 0", res.Score)
	}
}
