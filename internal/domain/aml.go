package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// AML alerts
// ──────────────────────────────────────────────────────────────────────────────

// AlertType classifies what a detection rule found.
type AlertType string

const (
	AlertLargeTransaction AlertType = "LARGE_TRANSACTION"
	AlertUnusualPattern   AlertType = "UNUSUAL_PATTERN"
	AlertStructuring      AlertType = "STRUCTURING"
	AlertHighRiskCountry  AlertType = "HIGH_RISK_COUNTRY"
	AlertSanctionsMatch   AlertType = "SANCTIONS_MATCH"
	AlertPEPMatch         AlertType = "PEP_MATCH"
	AlertRapidMovement    AlertType = "RAPID_MOVEMENT"
	AlertManual           AlertType = "MANUAL"
)

// AlertSeverity grades how urgent an alert is.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// AlertStatus is the review lifecycle: NEW → INVESTIGATING →
// (DISMISSED | REPORTED | CLOSED).
type AlertStatus string

const (
	AlertNew           AlertStatus = "NEW"
	AlertInvestigating AlertStatus = "INVESTIGATING"
	AlertDismissed     AlertStatus = "DISMISSED"
	AlertReported      AlertStatus = "REPORTED"
	AlertClosed        AlertStatus = "CLOSED"
)

// validAlertTransitions encodes the review lifecycle.
var validAlertTransitions = map[AlertStatus][]AlertStatus{
	AlertNew:           {AlertInvestigating, AlertDismissed, AlertClosed},
	AlertInvestigating: {AlertDismissed, AlertReported, AlertClosed},
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	for _, allowed := range validAlertTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StringList is a text[]/jsonb-backed list of transaction identifiers.
type StringList []string

// AMLAlert records one detection-rule hit against a player.
type AMLAlert struct {
	ID                 int64         `json:"id"                  db:"id"`
	PlayerID           string        `json:"player_id"           db:"player_id"`
	Type               AlertType     `json:"type"                db:"type"`
	Severity           AlertSeverity `json:"severity"            db:"severity"`
	Status             AlertStatus   `json:"status"              db:"status"`
	Description        string        `json:"description"         db:"description"`
	DetectionRule      string        `json:"detection_rule"      db:"detection_rule"`
	RiskScore          float64       `json:"risk_score"          db:"risk_score"`
	TransactionIDs     StringList    `json:"transaction_ids"     db:"transaction_ids"`
	TransactionDetails MetadataMap   `json:"transaction_details" db:"transaction_details"`
	AlertData          MetadataMap   `json:"alert_data"          db:"alert_data"`
	ReviewedBy         *string       `json:"reviewed_by"         db:"reviewed_by"`
	ReviewNotes        *string       `json:"review_notes"        db:"review_notes"`
	ReviewedAt         *time.Time    `json:"reviewed_at"         db:"reviewed_at"`
	ReportedAt         *time.Time    `json:"reported_at"         db:"reported_at"`
	ReportReference    *string       `json:"report_reference"    db:"report_reference"`
	CreatedAt          time.Time     `json:"created_at"          db:"created_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Risk profiles
// ──────────────────────────────────────────────────────────────────────────────

// AMLRiskProfile is the rolling per-player risk aggregate, recomputed from the
// ledger after every analysis. One row per player; never deleted.
type AMLRiskProfile struct {
	ID                 int64           `json:"id"                        db:"id"`
	PlayerID           string          `json:"player_id"                 db:"player_id"`
	OverallRiskScore   float64         `json:"overall_risk_score"        db:"overall_risk_score"`
	DepositRiskScore   float64         `json:"deposit_risk_score"        db:"deposit_risk_score"`
	WithdrawalRiskScore float64        `json:"withdrawal_risk_score"     db:"withdrawal_risk_score"`
	GameplayRiskScore  float64         `json:"gameplay_risk_score"       db:"gameplay_risk_score"`
	LastDepositAt      *time.Time      `json:"last_deposit_at"           db:"last_deposit_at"`
	LastWithdrawalAt   *time.Time      `json:"last_withdrawal_at"        db:"last_withdrawal_at"`
	LastPlayedAt       *time.Time      `json:"last_played_at"            db:"last_played_at"`
	DepositCount7d     int             `json:"deposit_count_7d"          db:"deposit_count_7d"`
	DepositAmount7d    decimal.Decimal `json:"deposit_amount_7d"         db:"deposit_amount_7d"`
	DepositCount30d    int             `json:"deposit_count_30d"         db:"deposit_count_30d"`
	DepositAmount30d   decimal.Decimal `json:"deposit_amount_30d"        db:"deposit_amount_30d"`
	WithdrawalCount7d  int             `json:"withdrawal_count_7d"       db:"withdrawal_count_7d"`
	WithdrawalAmount7d decimal.Decimal `json:"withdrawal_amount_7d"      db:"withdrawal_amount_7d"`
	WithdrawalCount30d int             `json:"withdrawal_count_30d"      db:"withdrawal_count_30d"`
	WithdrawalAmount30d decimal.Decimal `json:"withdrawal_amount_30d"    db:"withdrawal_amount_30d"`
	WagerToDepositRatio      float64   `json:"wager_to_deposit_ratio"      db:"wager_to_deposit_ratio"`
	WithdrawalToDepositRatio float64   `json:"withdrawal_to_deposit_ratio" db:"withdrawal_to_deposit_ratio"`
	RiskFactors        MetadataMap     `json:"risk_factors"              db:"risk_factors"`
	LastAssessmentAt   *time.Time      `json:"last_assessment_at"        db:"last_assessment_at"`
	CreatedAt          time.Time       `json:"created_at"                db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"                db:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Regulatory reports
// ──────────────────────────────────────────────────────────────────────────────

// ReportType is the regulatory report category.
type ReportType string

const (
	ReportSTR ReportType = "STR" // Suspicious Transaction Report
	ReportCTR ReportType = "CTR" // Currency Transaction Report
	ReportSAR ReportType = "SAR" // Suspicious Activity Report
)

// IsValid reports whether t is one of the supported report types.
func (t ReportType) IsValid() bool {
	return t == ReportSTR || t == ReportCTR || t == ReportSAR
}

// ReportStatus is the filing lifecycle of a report record.
type ReportStatus string

const (
	ReportDraft        ReportStatus = "draft"
	ReportSubmitted    ReportStatus = "submitted"
	ReportAcknowledged ReportStatus = "acknowledged"
)

// AMLReport is the persisted regulatory report record. Formatting and filing
// with the regulator happen outside this system; only the record and its
// status transitions live here.
type AMLReport struct {
	ReportID       uuid.UUID    `json:"report_id"       db:"report_id"`
	PlayerID       string       `json:"player_id"       db:"player_id"`
	ReportType     ReportType   `json:"report_type"     db:"report_type"`
	Jurisdiction   string       `json:"jurisdiction"    db:"jurisdiction"`
	AlertID        *int64       `json:"alert_id"        db:"alert_id"`
	TransactionIDs StringList   `json:"transaction_ids" db:"transaction_ids"`
	Notes          string       `json:"notes"           db:"notes"`
	Status         ReportStatus `json:"status"          db:"status"`
	CreatedBy      string       `json:"created_by"      db:"created_by"`
	CreatedAt      time.Time    `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"      db:"updated_at"`
}
