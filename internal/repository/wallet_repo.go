package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/nitebet/casino-core/internal/domain"
	"github.com/shopspring/decimal"
)

// txnIDConstraint is the unique constraint carrying the exactly-once
// guarantee for ledger entries.
const txnIDConstraint = "transactions_transaction_id_key"

// isUniqueViolation reports whether err is a Postgres unique violation
// (SQLSTATE 23505) on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == constraint
}

// WalletRepository handles all database operations for Wallets and the
// transaction ledger. Balance mutations go through GetForUpdate +
// UpdateBalance inside a caller-owned transaction; the unique constraint on
// transactions.transaction_id is the idempotency mechanism and its violation
// is surfaced as domain.ErrTransactionAlreadyProcessed.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// ──────────────────────────────────────────────────────────────────────────────
// Wallets
// ──────────────────────────────────────────────────────────────────────────────

// Get fetches a wallet without locking it. Use for reads only.
func (r *WalletRepository) Get(ctx context.Context, playerID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM wallets WHERE player_id = $1`, playerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet_repo.Get: %w", err)
	}
	return &w, nil
}

// GetForUpdate locks the wallet row with FOR UPDATE inside tx, blocking other
// writers of the same row until the transaction commits or rolls back. This
// is the per-player serialization point for every balance mutation.
func (r *WalletRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, playerID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := tx.GetContext(ctx, &w, `SELECT * FROM wallets WHERE player_id = $1 FOR UPDATE`, playerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet_repo.GetForUpdate: %w", err)
	}
	return &w, nil
}

// Create inserts a wallet row inside tx. Used for lazy creation on first
// credit and for explicit creation at bootstrap.
func (r *WalletRepository) Create(ctx context.Context, tx *sqlx.Tx, playerID, currency string) (*domain.Wallet, error) {
	now := time.Now().UTC()
	w := &domain.Wallet{
		PlayerID:  playerID,
		Balance:   decimal.Zero,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (player_id, balance, currency, created_at, updated_at)
		VALUES ($1, 0, $2, $3, $3)
		ON CONFLICT (player_id) DO NOTHING`,
		playerID, currency, now)
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.Create: %w", err)
	}
	return w, nil
}

// UpdateBalance writes a new balance for a wallet locked earlier in the same
// transaction.
func (r *WalletRepository) UpdateBalance(ctx context.Context, tx *sqlx.Tx, playerID string, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, updated_at = now() WHERE player_id = $2`,
		balance, playerID)
	if err != nil {
		return fmt.Errorf("wallet_repo.UpdateBalance: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Ledger
// ──────────────────────────────────────────────────────────────────────────────

// InsertTransaction appends a ledger entry inside tx. A unique violation on
// transaction_id means a concurrent duplicate won the race; it is mapped to
// domain.ErrTransactionAlreadyProcessed so the service layer never sees the
// raw constraint error.
func (r *WalletRepository) InsertTransaction(ctx context.Context, tx *sqlx.Tx, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions
			(transaction_id, player_id, type, amount, currency, status,
			 original_balance, updated_balance, ref_transaction_id,
			 provider, game_id, session_id, metadata, created_at)
		VALUES
			(:transaction_id, :player_id, :type, :amount, :currency, :status,
			 :original_balance, :updated_balance, :ref_transaction_id,
			 :provider, :game_id, :session_id, :metadata, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, txn); err != nil {
		if isUniqueViolation(err, txnIDConstraint) {
			return domain.ErrTransactionAlreadyProcessed
		}
		return fmt.Errorf("wallet_repo.InsertTransaction: %w", err)
	}
	return nil
}

// GetTransaction is the point lookup by client-supplied transaction id.
func (r *WalletRepository) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var t domain.Transaction
	err := r.db.GetContext(ctx, &t,
		`SELECT * FROM transactions WHERE transaction_id = $1`, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("wallet_repo.GetTransaction: %w", err)
	}
	return &t, nil
}

// GetCancelByRef returns the cancel entry referencing refTransactionID, if
// one exists. Cancel idempotency is keyed on this lookup.
func (r *WalletRepository) GetCancelByRef(ctx context.Context, refTransactionID string) (*domain.Transaction, error) {
	var t domain.Transaction
	err := r.db.GetContext(ctx, &t, `
		SELECT * FROM transactions
		WHERE type = 'cancel' AND ref_transaction_id = $1`,
		refTransactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("wallet_repo.GetCancelByRef: %w", err)
	}
	return &t, nil
}

// MarkCanceled flips a completed transaction to canceled inside tx. This is
// the single permitted update on a committed ledger entry.
func (r *WalletRepository) MarkCanceled(ctx context.Context, tx *sqlx.Tx, transactionID string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE transactions SET status = 'canceled'
		WHERE transaction_id = $1 AND status = 'completed'`,
		transactionID)
	if err != nil {
		return fmt.Errorf("wallet_repo.MarkCanceled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTransactionAlreadyProcessed
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Window queries (AML)
// ──────────────────────────────────────────────────────────────────────────────

// ListByPlayerTypeSince returns a player's transactions of one type created
// at or after since, newest first.
func (r *WalletRepository) ListByPlayerTypeSince(ctx context.Context, playerID string, txType domain.TxType, since time.Time) ([]*domain.Transaction, error) {
	var txns []*domain.Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM transactions
		WHERE player_id = $1 AND type = $2 AND created_at >= $3
		ORDER BY created_at DESC`,
		playerID, txType, since)
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.ListByPlayerTypeSince: %w", err)
	}
	return txns, nil
}

// SumByPlayerTypeSince sums a player's transaction amounts of one type within
// the window.
func (r *WalletRepository) SumByPlayerTypeSince(ctx context.Context, playerID string, txType domain.TxType, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE player_id = $1 AND type = $2 AND created_at >= $3`,
		playerID, txType, since)
	if err != nil {
		return decimal.Zero, fmt.Errorf("wallet_repo.SumByPlayerTypeSince: %w", err)
	}
	return total, nil
}

// CountByPlayerTypeSince counts a player's transactions of one type within
// the window.
func (r *WalletRepository) CountByPlayerTypeSince(ctx context.Context, playerID string, txType domain.TxType, since time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM transactions
		WHERE player_id = $1 AND type = $2 AND created_at >= $3`,
		playerID, txType, since)
	if err != nil {
		return 0, fmt.Errorf("wallet_repo.CountByPlayerTypeSince: %w", err)
	}
	return n, nil
}

// SumWagersSince sums a player's wagers (debits carrying a game id) within
// the window. Feeds the wager-to-deposit ratio.
func (r *WalletRepository) SumWagersSince(ctx context.Context, playerID string, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE player_id = $1 AND type = 'debit' AND game_id IS NOT NULL AND created_at >= $2`,
		playerID, since)
	if err != nil {
		return decimal.Zero, fmt.Errorf("wallet_repo.SumWagersSince: %w", err)
	}
	return total, nil
}

// RecentByPlayerType returns the player's most recent transactions of one
// type, newest first, capped at limit.
func (r *WalletRepository) RecentByPlayerType(ctx context.Context, playerID string, txType domain.TxType, limit int) ([]*domain.Transaction, error) {
	var txns []*domain.Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM transactions
		WHERE player_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT $3`,
		playerID, txType, limit)
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.RecentByPlayerType: %w", err)
	}
	return txns, nil
}

// LatestByPlayerType returns the creation time of the player's newest
// transaction of one type, or nil when none exists.
func (r *WalletRepository) LatestByPlayerType(ctx context.Context, playerID string, txType domain.TxType) (*time.Time, error) {
	var ts time.Time
	err := r.db.GetContext(ctx, &ts, `
		SELECT created_at FROM transactions
		WHERE player_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		playerID, txType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("wallet_repo.LatestByPlayerType: %w", err)
	}
	return &ts, nil
}

// LatestWagerAt returns the creation time of the player's newest wager, or
// nil when the player has never played.
func (r *WalletRepository) LatestWagerAt(ctx context.Context, playerID string) (*time.Time, error) {
	var ts time.Time
	err := r.db.GetContext(ctx, &ts, `
		SELECT created_at FROM transactions
		WHERE player_id = $1 AND type = 'debit' AND game_id IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1`,
		playerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("wallet_repo.LatestWagerAt: %w", err)
	}
	return &ts, nil
}

// ListByPlayer returns paginated transaction history for a player.
func (r *WalletRepository) ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]*domain.Transaction, error) {
	var txns []*domain.Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM transactions
		WHERE player_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		playerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.ListByPlayer: %w", err)
	}
	return txns, nil
}
