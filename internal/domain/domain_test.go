package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

// ── Amount validation ─────────────────────────────────────────────────────────

func TestValidateAmount(t *testing.T) {
	cases := []struct {
		name   string
		amount string
		wantOK bool
	}{
		{"positive integer", "100", true},
		{"two decimals", "100.25", true},
		{"one decimal", "0.5", true},
		{"zero", "0", false},
		{"negative", "-10.00", false},
		{"three decimals", "10.125", false},
		{"smallest valid", "0.01", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tc.amount)
			if err != nil {
				t.Fatalf("parse %q: %v", tc.amount, err)
			}
			got := ValidateAmount(amount)
			if tc.wantOK && got != nil {
				t.Errorf("ValidateAmount(%s) = %v, want nil", tc.amount, got)
			}
			if !tc.wantOK && got == nil {
				t.Errorf("ValidateAmount(%s) = nil, want ErrInvalidAmount", tc.amount)
			}
		})
	}
}

// ── Ledger entries ────────────────────────────────────────────────────────────

func TestSignedEffect(t *testing.T) {
	credit := &Transaction{Type: TxCredit, Amount: decimal.NewFromInt(100)}
	if !credit.SignedEffect().Equal(decimal.NewFromInt(100)) {
		t.Errorf("credit effect = %s, want 100", credit.SignedEffect())
	}

	debit := &Transaction{Type: TxDebit, Amount: decimal.NewFromInt(40)}
	if !debit.SignedEffect().Equal(decimal.NewFromInt(-40)) {
		t.Errorf("debit effect = %s, want -40", debit.SignedEffect())
	}

	// A cancel reversing a debit moves the balance back up.
	cancel := &Transaction{
		Type:            TxCancel,
		Amount:          decimal.NewFromInt(40),
		OriginalBalance: decimal.NewFromInt(60),
		UpdatedBalance:  decimal.NewFromInt(100),
	}
	if !cancel.SignedEffect().Equal(decimal.NewFromInt(40)) {
		t.Errorf("cancel effect = %s, want 40", cancel.SignedEffect())
	}
}

func TestIsCancelable(t *testing.T) {
	cases := []struct {
		txType TxType
		status TxStatus
		want   bool
	}{
		{TxDebit, TxCompleted, true},
		{TxCredit, TxCompleted, true},
		{TxDebit, TxCanceled, false},
		{TxCredit, TxCanceled, false},
		{TxCancel, TxCompleted, false},
	}
	for _, tc := range cases {
		txn := &Transaction{Type: tc.txType, Status: tc.status}
		if got := txn.IsCancelable(); got != tc.want {
			t.Errorf("IsCancelable(%s/%s) = %v, want %v", tc.txType, tc.status, got, tc.want)
		}
	}
}

// ── Alert lifecycle ───────────────────────────────────────────────────────────

func TestAlertStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to AlertStatus }{
		{AlertNew, AlertInvestigating},
		{AlertNew, AlertDismissed},
		{AlertNew, AlertClosed},
		{AlertInvestigating, AlertDismissed},
		{AlertInvestigating, AlertReported},
		{AlertInvestigating, AlertClosed},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to AlertStatus }{
		{AlertNew, AlertReported}, // must go through INVESTIGATING
		{AlertDismissed, AlertNew},
		{AlertReported, AlertInvestigating},
		{AlertClosed, AlertNew},
		{AlertInvestigating, AlertNew},
	}
	for _, tc := range denied {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}

func TestReportTypeIsValid(t *testing.T) {
	for _, rt := range []ReportType{ReportSTR, ReportCTR, ReportSAR} {
		if !rt.IsValid() {
			t.Errorf("%s should be valid", rt)
		}
	}
	if ReportType("XYZ").IsValid() {
		t.Error("XYZ should not be a valid report type")
	}
}

// ── Metadata helpers ──────────────────────────────────────────────────────────

func TestMetadataBool(t *testing.T) {
	m := MetadataMap{
		"b_true":  true,
		"b_false": false,
		"s_true":  "true",
		"s_one":   "1",
		"s_yes":   "yes",
		"s_no":    "no",
		"n_one":   float64(1), // JSON numbers decode to float64
		"n_zero":  float64(0),
	}
	truthy := []string{"b_true", "s_true", "s_one", "s_yes", "n_one"}
	for _, k := range truthy {
		if !m.Bool(k) {
			t.Errorf("Bool(%q) = false, want true", k)
		}
	}
	falsy := []string{"b_false", "s_no", "n_zero", "missing"}
	for _, k := range falsy {
		if m.Bool(k) {
			t.Errorf("Bool(%q) = true, want false", k)
		}
	}
}

func TestMetadataScanRoundTrip(t *testing.T) {
	src := MetadataMap{"is_pep": true, "note": "check"}
	raw, err := src.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var dst MetadataMap
	if err := dst.Scan(raw); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !dst.Bool("is_pep") {
		t.Error("is_pep flag lost in round trip")
	}
	if dst.String("note") != "check" {
		t.Errorf("note = %q, want check", dst.String("note"))
	}
}
