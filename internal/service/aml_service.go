package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nitebet/casino-core/internal/domain"
	"github.com/nitebet/casino-core/internal/events"
	"github.com/nitebet/casino-core/internal/repository"
	"github.com/nitebet/casino-core/internal/scheduler"
	"github.com/shopspring/decimal"
)

// AnalysisResult is the outcome of one transaction analysis.
type AnalysisResult struct {
	TransactionID              string  `json:"transaction_id"`
	PlayerID                   string  `json:"player_id"`
	RiskScore                  float64 `json:"risk_score"`
	IsLargeTransaction         bool    `json:"is_large_transaction"`
	IsPoliticallyExposedPerson bool    `json:"is_politically_exposed_person"`
	IsHighRiskCountry          bool    `json:"is_high_risk_country"`
	IsStructuringAttempt       bool    `json:"is_structuring_attempt"`
	IsUnusualPattern           bool    `json:"is_unusual_pattern"`
	AlertID                    *int64  `json:"alert_id,omitempty"`
	AlertType                  string  `json:"alert_type,omitempty"`
	Severity                   string  `json:"severity,omitempty"`
	Jurisdiction               string  `json:"jurisdiction"`
}

// AMLService scores transactions against the detection rule set, raises
// alerts, and keeps per-player risk profiles current. All entry points are
// fail-soft toward wallet callers: analysis errors are logged, never
// propagated into the mutation that produced the transaction.
type AMLService struct {
	amlRepo    *repository.AMLRepository
	walletRepo *repository.WalletRepository
	playerRepo *repository.PlayerRepository
	bus        *events.Bus
	tasks      *scheduler.Runner
	logger     *slog.Logger
}

// NewAMLService creates an AMLService.
func NewAMLService(
	amlRepo *repository.AMLRepository,
	walletRepo *repository.WalletRepository,
	playerRepo *repository.PlayerRepository,
	bus *events.Bus,
	tasks *scheduler.Runner,
	logger *slog.Logger,
) *AMLService {
	return &AMLService{
		amlRepo:    amlRepo,
		walletRepo: walletRepo,
		playerRepo: playerRepo,
		bus:        bus,
		tasks:      tasks,
		logger:     logger,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Analysis
// ──────────────────────────────────────────────────────────────────────────────

// AnalyzeTransaction scores one ledger entry, emits at most one alert, and
// recomputes the player's risk profile.
func (s *AMLService) AnalyzeTransaction(ctx context.Context, transactionID, actorID string) (*AnalysisResult, error) {
	txn, err := s.walletRepo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("aml_service.AnalyzeTransaction: %w", err)
	}
	player, err := s.playerRepo.GetByID(ctx, txn.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("aml_service.AnalyzeTransaction: %w", err)
	}

	in, err := s.buildRuleInput(ctx, txn, player)
	if err != nil {
		return nil, fmt.Errorf("aml_service.AnalyzeTransaction: %w", err)
	}
	res := evaluateRules(in)

	result := &AnalysisResult{
		TransactionID:              txn.TransactionID,
		PlayerID:                   txn.PlayerID,
		RiskScore:                  res.Score,
		IsLargeTransaction:         res.IsLargeTransaction,
		IsPoliticallyExposedPerson: res.IsPoliticallyExposedPerson,
		IsHighRiskCountry:          res.IsHighRiskCountry,
		IsStructuringAttempt:       res.IsStructuringAttempt,
		IsUnusualPattern:           res.IsUnusualPattern,
		Jurisdiction:               in.Jurisdiction,
	}

	if hit := res.topHit(); hit != nil {
		alert, err := s.raiseAlert(ctx, txn, res, hit)
		if err != nil {
			// Scoring succeeded; an alert write failure degrades, not fails.
			s.logger.Error("aml: alert write failed",
				"transaction_id", txn.TransactionID, "err", err)
		} else {
			result.AlertID = &alert.ID
			result.AlertType = string(alert.Type)
			result.Severity = string(alert.Severity)
		}
	}

	if err := s.updateRiskProfile(ctx, txn, res.Score); err != nil {
		s.logger.Error("aml: risk profile update failed",
			"player_id", txn.PlayerID, "err", err)
	}

	return result, nil
}

// ScheduleAnalysis queues a background analysis of a committed transaction.
// Used by the wallet path; failures stay inside the task.
func (s *AMLService) ScheduleAnalysis(transactionID string) {
	s.tasks.Enqueue(scheduler.Task{
		Name:    "aml.analyze_transaction",
		Timeout: scheduler.AnalyzeTimeout,
		Fn: func(ctx context.Context) error {
			_, err := s.AnalyzeTransaction(ctx, transactionID, "system")
			return err
		},
	})
}

// buildRuleInput assembles the snapshot the rule set runs over.
func (s *AMLService) buildRuleInput(ctx context.Context, txn *domain.Transaction, player *domain.Player) (ruleInput, error) {
	now := txn.CreatedAt
	jurisdiction := jurisdictionForCountry(player.Country)

	sameType24h, err := s.walletRepo.ListByPlayerTypeSince(ctx, txn.PlayerID, txn.Type, now.Add(-windowDay))
	if err != nil {
		return ruleInput{}, err
	}
	list7d, err := s.walletRepo.ListByPlayerTypeSince(ctx, txn.PlayerID, txn.Type, now.Add(-window7d))
	if err != nil {
		return ruleInput{}, err
	}
	sum7d := decimal.Zero
	for _, t := range list7d {
		sum7d = sum7d.Add(t.Amount)
	}

	sum30d, err := s.walletRepo.SumByPlayerTypeSince(ctx, txn.PlayerID, txn.Type, now.Add(-window30d))
	if err != nil {
		return ruleInput{}, err
	}
	count30d, err := s.walletRepo.CountByPlayerTypeSince(ctx, txn.PlayerID, txn.Type, now.Add(-window30d))
	if err != nil {
		return ruleInput{}, err
	}
	avg30d := decimal.Zero
	if count30d > 0 {
		avg30d = sum30d.Div(decimal.NewFromInt(int64(count30d)))
	}

	recent, err := s.walletRepo.RecentByPlayerType(ctx, txn.PlayerID, txn.Type, recentDepth+1)
	if err != nil {
		return ruleInput{}, err
	}
	// Exclude the transaction under analysis from its own history.
	recent5 := make([]*domain.Transaction, 0, recentDepth)
	for _, t := range recent {
		if t.TransactionID == txn.TransactionID {
			continue
		}
		recent5 = append(recent5, t)
		if len(recent5) == recentDepth {
			break
		}
	}

	return ruleInput{
		Transaction:  txn,
		Player:       player,
		Jurisdiction: jurisdiction,
		Threshold:    reportingThreshold(jurisdiction, txn.Currency),
		SameType24h:  sameType24h,
		Count7d:      len(list7d),
		Sum7d:        sum7d,
		List7d:       list7d,
		Avg30d:       avg30d,
		Recent5:      recent5,
	}, nil
}

// raiseAlert persists the single alert for an analysis and announces it.
func (s *AMLService) raiseAlert(ctx context.Context, txn *domain.Transaction, res ruleResult, hit *ruleHit) (*domain.AMLAlert, error) {
	alert := &domain.AMLAlert{
		PlayerID:      txn.PlayerID,
		Type:          hit.Alert,
		Severity:      res.severityFor(hit.Alert),
		Status:        domain.AlertNew,
		Description:   hit.Detail,
		DetectionRule: hit.Rule,
		RiskScore:     res.Score,
		TransactionIDs: domain.StringList{
			txn.TransactionID,
		},
		TransactionDetails: domain.MetadataMap{
			"transaction_id": txn.TransactionID,
			"type":           string(txn.Type),
			"amount":         txn.Amount.StringFixed(2),
			"currency":       txn.Currency,
			"created_at":     txn.CreatedAt.UTC().Format(time.RFC3339),
		},
		AlertData: domain.MetadataMap{
			"rules_triggered": len(res.Hits),
			"sanctions_match": res.SanctionsMatch,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.amlRepo.InsertAlert(ctx, alert); err != nil {
		return nil, err
	}
	s.bus.AlertRaised(ctx, alert.ID, alert.PlayerID, string(alert.Type), string(alert.Severity))
	return alert, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Risk profile
// ──────────────────────────────────────────────────────────────────────────────

// updateRiskProfile recomputes the player's rolling aggregate from the ledger
// and folds the fresh transaction score into the sub-scores.
func (s *AMLService) updateRiskProfile(ctx context.Context, txn *domain.Transaction, txScore float64) error {
	playerID := txn.PlayerID
	now := time.Now().UTC()

	old, err := s.amlRepo.GetRiskProfile(ctx, playerID)
	if err != nil {
		if !IsProfileMissing(err) {
			return err
		}
		old = &domain.AMLRiskProfile{PlayerID: playerID}
	}

	p := &domain.AMLRiskProfile{PlayerID: playerID}

	if p.LastDepositAt, err = s.walletRepo.LatestByPlayerType(ctx, playerID, domain.TxCredit); err != nil {
		return err
	}
	if p.LastWithdrawalAt, err = s.walletRepo.LatestByPlayerType(ctx, playerID, domain.TxDebit); err != nil {
		return err
	}
	if p.LastPlayedAt, err = s.walletRepo.LatestWagerAt(ctx, playerID); err != nil {
		return err
	}

	since7d, since30d := now.Add(-window7d), now.Add(-window30d)
	if p.DepositCount7d, err = s.walletRepo.CountByPlayerTypeSince(ctx, playerID, domain.TxCredit, since7d); err != nil {
		return err
	}
	if p.DepositAmount7d, err = s.walletRepo.SumByPlayerTypeSince(ctx, playerID, domain.TxCredit, since7d); err != nil {
		return err
	}
	if p.DepositCount30d, err = s.walletRepo.CountByPlayerTypeSince(ctx, playerID, domain.TxCredit, since30d); err != nil {
		return err
	}
	if p.DepositAmount30d, err = s.walletRepo.SumByPlayerTypeSince(ctx, playerID, domain.TxCredit, since30d); err != nil {
		return err
	}
	if p.WithdrawalCount7d, err = s.walletRepo.CountByPlayerTypeSince(ctx, playerID, domain.TxDebit, since7d); err != nil {
		return err
	}
	if p.WithdrawalAmount7d, err = s.walletRepo.SumByPlayerTypeSince(ctx, playerID, domain.TxDebit, since7d); err != nil {
		return err
	}
	if p.WithdrawalCount30d, err = s.walletRepo.CountByPlayerTypeSince(ctx, playerID, domain.TxDebit, since30d); err != nil {
		return err
	}
	if p.WithdrawalAmount30d, err = s.walletRepo.SumByPlayerTypeSince(ctx, playerID, domain.TxDebit, since30d); err != nil {
		return err
	}

	wagers30d, err := s.walletRepo.SumWagersSince(ctx, playerID, since30d)
	if err != nil {
		return err
	}
	if p.DepositAmount30d.IsPositive() {
		p.WagerToDepositRatio, _ = wagers30d.Div(p.DepositAmount30d).Float64()
		p.WithdrawalToDepositRatio, _ = p.WithdrawalAmount30d.Div(p.DepositAmount30d).Float64()
	}

	// EWMA sub-scores: the transaction's score folds into the sub-score of
	// its own category only.
	p.DepositRiskScore = old.DepositRiskScore
	p.WithdrawalRiskScore = old.WithdrawalRiskScore
	p.GameplayRiskScore = old.GameplayRiskScore
	switch {
	case txn.Type == domain.TxDebit && txn.GameID != nil:
		p.GameplayRiskScore = 0.6*old.GameplayRiskScore + 0.4*txScore
	case txn.Type == domain.TxDebit:
		p.WithdrawalRiskScore = 0.6*old.WithdrawalRiskScore + 0.4*txScore
	case txn.Type == domain.TxCredit:
		p.DepositRiskScore = 0.6*old.DepositRiskScore + 0.4*txScore
	}

	if txScore >= 70 {
		p.OverallRiskScore = 0.5*old.OverallRiskScore + 0.5*txScore
	} else {
		p.OverallRiskScore = 0.4*p.DepositRiskScore + 0.4*p.WithdrawalRiskScore + 0.2*p.GameplayRiskScore
	}

	p.RiskFactors = s.riskFactors(p, txScore)
	if p.RiskFactors.Bool("very_low_wagering") && p.OverallRiskScore < 70 {
		p.OverallRiskScore = 70
	}
	if p.RiskFactors.Bool("high_withdrawal_ratio") && p.OverallRiskScore < 75 {
		p.OverallRiskScore = 75
	}
	if p.OverallRiskScore > 100 {
		p.OverallRiskScore = 100
	}

	p.LastAssessmentAt = &now
	return s.amlRepo.UpsertRiskProfile(ctx, p)
}

// riskFactors derives the named behavioral flags from the fresh aggregate.
func (s *AMLService) riskFactors(p *domain.AMLRiskProfile, txScore float64) domain.MetadataMap {
	factors := domain.MetadataMap{}
	if p.DepositAmount30d.IsPositive() {
		if p.WagerToDepositRatio < 0.1 {
			factors["very_low_wagering"] = true
		} else if p.WagerToDepositRatio < 0.3 {
			factors["low_wagering"] = true
		}
		if p.WithdrawalToDepositRatio > 0.95 {
			factors["high_withdrawal_ratio"] = true
		}
	}
	if p.DepositCount7d > 50 {
		avg := p.DepositAmount7d.Div(decimal.NewFromInt(int64(p.DepositCount7d)))
		if avg.LessThan(decimal.NewFromInt(1_000_000)) {
			factors["multiple_small_deposits"] = true
		}
	}
	if txScore >= 50 {
		factors["high_risk_transaction"] = true
	}
	return factors
}

// IsProfileMissing reports whether err is the first-analysis case.
func IsProfileMissing(err error) bool {
	return err != nil && domain.IsNotFound(err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Alert operations
// ──────────────────────────────────────────────────────────────────────────────

// ManualAlertRequest creates an analyst-raised alert.
type ManualAlertRequest struct {
	PlayerID       string             `json:"player_id"       binding:"required"`
	Severity       string             `json:"severity"        binding:"required"`
	Description    string             `json:"description"     binding:"required"`
	TransactionIDs []string           `json:"transaction_ids"`
	AlertData      domain.MetadataMap `json:"alert_data"`
}

// CreateManualAlert records an analyst-raised alert with type MANUAL.
func (s *AMLService) CreateManualAlert(ctx context.Context, req ManualAlertRequest) (*domain.AMLAlert, error) {
	severity := domain.AlertSeverity(req.Severity)
	switch severity {
	case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical:
	default:
		severity = domain.SeverityMedium
	}
	alert := &domain.AMLAlert{
		PlayerID:       req.PlayerID,
		Type:           domain.AlertManual,
		Severity:       severity,
		Status:         domain.AlertNew,
		Description:    req.Description,
		DetectionRule:  "manual_review",
		TransactionIDs: domain.StringList(req.TransactionIDs),
		AlertData:      req.AlertData,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.amlRepo.InsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("aml_service.CreateManualAlert: %w", err)
	}
	s.bus.AlertRaised(ctx, alert.ID, alert.PlayerID, string(alert.Type), string(alert.Severity))
	return alert, nil
}

// GetAlert fetches one alert.
func (s *AMLService) GetAlert(ctx context.Context, id int64) (*domain.AMLAlert, error) {
	return s.amlRepo.GetAlert(ctx, id)
}

// ListAlerts returns alerts matching the filter.
func (s *AMLService) ListAlerts(ctx context.Context, f repository.AlertFilter) ([]*domain.AMLAlert, error) {
	return s.amlRepo.ListAlerts(ctx, f)
}

// UpdateAlertStatus applies a review-lifecycle transition.
func (s *AMLService) UpdateAlertStatus(ctx context.Context, id int64, next domain.AlertStatus, reviewedBy, notes string) (*domain.AMLAlert, error) {
	return s.amlRepo.UpdateAlertStatus(ctx, id, next, reviewedBy, notes)
}

// ──────────────────────────────────────────────────────────────────────────────
// Risk profile reads
// ──────────────────────────────────────────────────────────────────────────────

// GetRiskProfile returns the current profile for a player.
func (s *AMLService) GetRiskProfile(ctx context.Context, playerID string) (*domain.AMLRiskProfile, error) {
	return s.amlRepo.GetRiskProfile(ctx, playerID)
}

// AlertCountsByStatus returns the review-queue totals for the backoffice
// overview.
func (s *AMLService) AlertCountsByStatus(ctx context.Context) (map[domain.AlertStatus]int, error) {
	return s.amlRepo.CountAlertsByStatus(ctx)
}

// HighRiskPlayers returns the high-risk feed, highest score first.
func (s *AMLService) HighRiskPlayers(ctx context.Context, limit int) ([]*domain.AMLRiskProfile, error) {
	return s.amlRepo.ListHighRisk(ctx, limit)
}

// PlayerTransactions returns a page of the player's ledger, newest first, for
// compliance review.
func (s *AMLService) PlayerTransactions(ctx context.Context, playerID string, limit, offset int) ([]*domain.Transaction, error) {
	if _, err := s.playerRepo.GetByID(ctx, playerID); err != nil {
		return nil, fmt.Errorf("aml_service.PlayerTransactions: %w", err)
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.walletRepo.ListByPlayer(ctx, playerID, limit, offset)
}

// ──────────────────────────────────────────────────────────────────────────────
// Reports
// ──────────────────────────────────────────────────────────────────────────────

// ReportRequest creates a regulatory report record.
type ReportRequest struct {
	PlayerID       string   `json:"player_id"       binding:"required"`
	ReportType     string   `json:"report_type"     binding:"required"`
	Jurisdiction   string   `json:"jurisdiction"    binding:"required"`
	AlertID        *int64   `json:"alert_id"`
	TransactionIDs []string `json:"transaction_ids"`
	Notes          string   `json:"notes"`
}

// CreateReport persists a draft report record. Formatting and filing with the
// regulator happen elsewhere; when an alert is linked, the alert carries the
// report reference.
func (s *AMLService) CreateReport(ctx context.Context, req ReportRequest, createdBy string) (*domain.AMLReport, error) {
	reportType := domain.ReportType(req.ReportType)
	if !reportType.IsValid() {
		return nil, fmt.Errorf("aml_service.CreateReport: report type %q: %w",
			req.ReportType, domain.ErrInvalidRequest)
	}

	now := time.Now().UTC()
	rep := &domain.AMLReport{
		ReportID:       uuid.New(),
		PlayerID:       req.PlayerID,
		ReportType:     reportType,
		Jurisdiction:   req.Jurisdiction,
		AlertID:        req.AlertID,
		TransactionIDs: domain.StringList(req.TransactionIDs),
		Notes:          req.Notes,
		Status:         domain.ReportDraft,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.amlRepo.InsertReport(ctx, rep); err != nil {
		return nil, fmt.Errorf("aml_service.CreateReport: %w", err)
	}
	if req.AlertID != nil {
		if err := s.amlRepo.LinkAlertReport(ctx, *req.AlertID, rep.ReportID.String()); err != nil {
			s.logger.Warn("aml: alert-report link failed",
				"alert_id", *req.AlertID, "report_id", rep.ReportID, "err", err)
		}
	}
	s.bus.ReportCreated(ctx, rep.ReportID.String(), rep.PlayerID, string(rep.ReportType))
	return rep, nil
}

// GetReport fetches one report record.
func (s *AMLService) GetReport(ctx context.Context, reportID uuid.UUID) (*domain.AMLReport, error) {
	return s.amlRepo.GetReport(ctx, reportID)
}

// UpdateReportStatus applies a status-only mutation to a report record.
func (s *AMLService) UpdateReportStatus(ctx context.Context, reportID uuid.UUID, status domain.ReportStatus) error {
	switch status {
	case domain.ReportDraft, domain.ReportSubmitted, domain.ReportAcknowledged:
	default:
		return fmt.Errorf("aml_service.UpdateReportStatus: status %q: %w",
			status, domain.ErrInvalidRequest)
	}
	return s.amlRepo.UpdateReportStatus(ctx, reportID, status)
}
