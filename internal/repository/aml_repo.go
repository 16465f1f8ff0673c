package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nitebet/casino-core/internal/domain"
)

// AMLRepository handles all database operations for alerts, risk profiles,
// and regulatory report records.
type AMLRepository struct {
	db *sqlx.DB
}

// NewAMLRepository creates a new AMLRepository.
func NewAMLRepository(db *sqlx.DB) *AMLRepository {
	return &AMLRepository{db: db}
}

// ──────────────────────────────────────────────────────────────────────────────
// Alerts
// ──────────────────────────────────────────────────────────────────────────────

// InsertAlert persists a new alert and fills in its numeric id.
func (r *AMLRepository) InsertAlert(ctx context.Context, a *domain.AMLAlert) error {
	query := `
		INSERT INTO aml_alerts
			(player_id, type, severity, status, description, detection_rule,
			 risk_score, transaction_ids, transaction_details, alert_data, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		a.PlayerID, a.Type, a.Severity, a.Status, a.Description, a.DetectionRule,
		a.RiskScore, a.TransactionIDs, a.TransactionDetails, a.AlertData, a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("aml_repo.InsertAlert: %w", err)
	}
	for _, txnID := range a.TransactionIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO aml_transactions (alert_id, transaction_id)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			a.ID, txnID)
		if err != nil {
			return fmt.Errorf("aml_repo.InsertAlert: link %s: %w", txnID, err)
		}
	}
	return nil
}

// GetAlert fetches one alert by numeric id.
func (r *AMLRepository) GetAlert(ctx context.Context, id int64) (*domain.AMLAlert, error) {
	var a domain.AMLAlert
	err := r.db.GetContext(ctx, &a, `SELECT * FROM aml_alerts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAlertNotFound
		}
		return nil, fmt.Errorf("aml_repo.GetAlert: %w", err)
	}
	return &a, nil
}

// AlertFilter narrows ListAlerts. Zero values mean "no filter".
type AlertFilter struct {
	PlayerID string
	Status   domain.AlertStatus
	Severity domain.AlertSeverity
	Limit    int
	Offset   int
}

// ListAlerts returns alerts matching the filter, newest first.
func (r *AMLRepository) ListAlerts(ctx context.Context, f AlertFilter) ([]*domain.AMLAlert, error) {
	query := `SELECT * FROM aml_alerts WHERE 1=1`
	var args []any
	if f.PlayerID != "" {
		args = append(args, f.PlayerID)
		query += fmt.Sprintf(" AND player_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Severity != "" {
		args = append(args, f.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	var alerts []*domain.AMLAlert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("aml_repo.ListAlerts: %w", err)
	}
	return alerts, nil
}

// UpdateAlertStatus applies a lifecycle transition. Moving out of NEW stamps
// reviewed_at; moving to REPORTED stamps reported_at.
func (r *AMLRepository) UpdateAlertStatus(ctx context.Context, id int64, next domain.AlertStatus, reviewedBy, notes string) (*domain.AMLAlert, error) {
	alert, err := r.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if !alert.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("aml_repo.UpdateAlertStatus: %s -> %s: %w",
			alert.Status, next, domain.ErrInvalidAlertTransition)
	}

	now := time.Now().UTC()
	var reportedAt *time.Time
	if next == domain.AlertReported {
		reportedAt = &now
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE aml_alerts
		SET status       = $1,
		    reviewed_by  = $2,
		    review_notes = $3,
		    reviewed_at  = COALESCE(reviewed_at, $4),
		    reported_at  = COALESCE($5, reported_at)
		WHERE id = $6`,
		next, reviewedBy, notes, now, reportedAt, id)
	if err != nil {
		return nil, fmt.Errorf("aml_repo.UpdateAlertStatus: %w", err)
	}
	return r.GetAlert(ctx, id)
}

// LinkAlertReport stamps the report reference on an alert.
func (r *AMLRepository) LinkAlertReport(ctx context.Context, id int64, reportRef string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE aml_alerts SET report_reference = $1 WHERE id = $2`, reportRef, id)
	if err != nil {
		return fmt.Errorf("aml_repo.LinkAlertReport: %w", err)
	}
	return nil
}

// CountAlertsByStatus returns alert counts grouped by lifecycle status.
// Feeds the backoffice overview.
func (r *AMLRepository) CountAlertsByStatus(ctx context.Context) (map[domain.AlertStatus]int, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT status, COUNT(*) FROM aml_alerts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("aml_repo.CountAlertsByStatus: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.AlertStatus]int)
	for rows.Next() {
		var status domain.AlertStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("aml_repo.CountAlertsByStatus: scan: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aml_repo.CountAlertsByStatus: %w", err)
	}
	return counts, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Risk profiles
// ──────────────────────────────────────────────────────────────────────────────

// GetRiskProfile fetches the risk profile for a player.
func (r *AMLRepository) GetRiskProfile(ctx context.Context, playerID string) (*domain.AMLRiskProfile, error) {
	var p domain.AMLRiskProfile
	err := r.db.GetContext(ctx, &p, `SELECT * FROM aml_risk_profiles WHERE player_id = $1`, playerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRiskProfileNotFound
		}
		return nil, fmt.Errorf("aml_repo.GetRiskProfile: %w", err)
	}
	return &p, nil
}

// UpsertRiskProfile writes the full recomputed profile in a single statement
// keyed on player_id, creating the row on the player's first analysis.
func (r *AMLRepository) UpsertRiskProfile(ctx context.Context, p *domain.AMLRiskProfile) error {
	query := `
		INSERT INTO aml_risk_profiles
			(player_id, overall_risk_score, deposit_risk_score, withdrawal_risk_score,
			 gameplay_risk_score, last_deposit_at, last_withdrawal_at, last_played_at,
			 deposit_count_7d, deposit_amount_7d, deposit_count_30d, deposit_amount_30d,
			 withdrawal_count_7d, withdrawal_amount_7d, withdrawal_count_30d, withdrawal_amount_30d,
			 wager_to_deposit_ratio, withdrawal_to_deposit_ratio, risk_factors,
			 last_assessment_at, created_at, updated_at)
		VALUES
			(:player_id, :overall_risk_score, :deposit_risk_score, :withdrawal_risk_score,
			 :gameplay_risk_score, :last_deposit_at, :last_withdrawal_at, :last_played_at,
			 :deposit_count_7d, :deposit_amount_7d, :deposit_count_30d, :deposit_amount_30d,
			 :withdrawal_count_7d, :withdrawal_amount_7d, :withdrawal_count_30d, :withdrawal_amount_30d,
			 :wager_to_deposit_ratio, :withdrawal_to_deposit_ratio, :risk_factors,
			 :last_assessment_at, now(), now())
		ON CONFLICT (player_id) DO UPDATE SET
			overall_risk_score          = EXCLUDED.overall_risk_score,
			deposit_risk_score          = EXCLUDED.deposit_risk_score,
			withdrawal_risk_score       = EXCLUDED.withdrawal_risk_score,
			gameplay_risk_score         = EXCLUDED.gameplay_risk_score,
			last_deposit_at             = EXCLUDED.last_deposit_at,
			last_withdrawal_at          = EXCLUDED.last_withdrawal_at,
			last_played_at              = EXCLUDED.last_played_at,
			deposit_count_7d            = EXCLUDED.deposit_count_7d,
			deposit_amount_7d           = EXCLUDED.deposit_amount_7d,
			deposit_count_30d           = EXCLUDED.deposit_count_30d,
			deposit_amount_30d          = EXCLUDED.deposit_amount_30d,
			withdrawal_count_7d         = EXCLUDED.withdrawal_count_7d,
			withdrawal_amount_7d        = EXCLUDED.withdrawal_amount_7d,
			withdrawal_count_30d        = EXCLUDED.withdrawal_count_30d,
			withdrawal_amount_30d       = EXCLUDED.withdrawal_amount_30d,
			wager_to_deposit_ratio      = EXCLUDED.wager_to_deposit_ratio,
			withdrawal_to_deposit_ratio = EXCLUDED.withdrawal_to_deposit_ratio,
			risk_factors                = EXCLUDED.risk_factors,
			last_assessment_at          = EXCLUDED.last_assessment_at,
			updated_at                  = now()`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("aml_repo.UpsertRiskProfile: %w", err)
	}
	return nil
}

// ListHighRisk returns risk profiles ordered by overall score descending.
func (r *AMLRepository) ListHighRisk(ctx context.Context, limit int) ([]*domain.AMLRiskProfile, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var profiles []*domain.AMLRiskProfile
	err := r.db.SelectContext(ctx, &profiles, `
		SELECT * FROM aml_risk_profiles
		ORDER BY overall_risk_score DESC
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("aml_repo.ListHighRisk: %w", err)
	}
	return profiles, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Reports
// ──────────────────────────────────────────────────────────────────────────────

// InsertReport persists a new regulatory report record.
func (r *AMLRepository) InsertReport(ctx context.Context, rep *domain.AMLReport) error {
	query := `
		INSERT INTO aml_reports
			(report_id, player_id, report_type, jurisdiction, alert_id,
			 transaction_ids, notes, status, created_by, created_at, updated_at)
		VALUES
			(:report_id, :player_id, :report_type, :jurisdiction, :alert_id,
			 :transaction_ids, :notes, :status, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rep); err != nil {
		return fmt.Errorf("aml_repo.InsertReport: %w", err)
	}
	return nil
}

// GetReport fetches one report by id.
func (r *AMLRepository) GetReport(ctx context.Context, reportID uuid.UUID) (*domain.AMLReport, error) {
	var rep domain.AMLReport
	err := r.db.GetContext(ctx, &rep, `SELECT * FROM aml_reports WHERE report_id = $1`, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReportNotFound
		}
		return nil, fmt.Errorf("aml_repo.GetReport: %w", err)
	}
	return &rep, nil
}

// UpdateReportStatus applies a status-only mutation to a report.
func (r *AMLRepository) UpdateReportStatus(ctx context.Context, reportID uuid.UUID, status domain.ReportStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE aml_reports SET status = $1, updated_at = now() WHERE report_id = $2`,
		status, reportID)
	if err != nil {
		return fmt.Errorf("aml_repo.UpdateReportStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrReportNotFound
	}
	return nil
}
