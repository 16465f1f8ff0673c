package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nitebet/casino-core/internal/cache"
	"github.com/nitebet/casino-core/internal/domain"
	"github.com/nitebet/casino-core/internal/events"
	"github.com/nitebet/casino-core/internal/repository"
	"github.com/nitebet/casino-core/internal/scheduler"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Result types
// ──────────────────────────────────────────────────────────────────────────────

// BalanceResult is returned by Balance.
type BalanceResult struct {
	Balance  decimal.Decimal
	Currency string
	CacheHit bool
}

// MutationResult is returned by Debit, Credit, and Cancel.
type MutationResult struct {
	Balance          decimal.Decimal
	Currency         string
	TransactionID    string
	RefTransactionID string // set only by Cancel
}

// TxMeta carries the optional provider context of a wallet mutation.
type TxMeta struct {
	Provider  *string
	GameID    *string
	SessionID *string
	Metadata  domain.MetadataMap
}

// ──────────────────────────────────────────────────────────────────────────────
// WalletService
// ──────────────────────────────────────────────────────────────────────────────

// WalletService implements the idempotent debit/credit/cancel engine over
// per-player balances. Correctness rests on two store mechanisms: the
// FOR UPDATE row lock serializing mutations within a player, and the unique
// constraint on transactions.transaction_id suppressing duplicates. The
// window between the row lock and commit contains no cache or event I/O;
// those run post-commit on the background runner.
type WalletService struct {
	store   walletStore
	players playerGetter
	cache   *cache.Cache
	bus     *events.Bus
	tasks   *scheduler.Runner
	logger  *slog.Logger
}

// NewWalletService creates a WalletService over the production SQL store.
func NewWalletService(
	db *sqlx.DB,
	playerRepo *repository.PlayerRepository,
	walletRepo *repository.WalletRepository,
	c *cache.Cache,
	bus *events.Bus,
	tasks *scheduler.Runner,
	logger *slog.Logger,
) *WalletService {
	return &WalletService{
		store:   &sqlWalletStore{db: db, repo: walletRepo},
		players: playerRepo,
		cache:   c,
		bus:     bus,
		tasks:   tasks,
		logger:  logger,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Check / Balance
// ──────────────────────────────────────────────────────────────────────────────

// Check verifies the player exists and has a wallet. Side-effect-free.
func (s *WalletService) Check(ctx context.Context, playerID string) error {
	if _, err := s.players.GetByID(ctx, playerID); err != nil {
		return fmt.Errorf("wallet_service.Check: %w", err)
	}
	if _, err := s.store.Wallet(ctx, playerID); err != nil {
		return fmt.Errorf("wallet_service.Check: %w", err)
	}
	return nil
}

// Balance reads the wallet balance, preferring the verified cache. On a miss
// the store is read and a cache write is scheduled in the background.
func (s *WalletService) Balance(ctx context.Context, playerID string) (*BalanceResult, error) {
	if entry, ok := s.cache.GetWallet(ctx, playerID); ok {
		return &BalanceResult{
			Balance:  entry.Balance,
			Currency: entry.Currency,
			CacheHit: true,
		}, nil
	}

	wallet, err := s.store.Wallet(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("wallet_service.Balance: %w", err)
	}

	balance, currency := wallet.Balance, wallet.Currency
	s.tasks.Enqueue(scheduler.Task{
		Name:    "cache.set_wallet",
		Timeout: scheduler.CacheTimeout,
		Fn: func(ctx context.Context) error {
			s.cache.SetWallet(ctx, playerID, balance, currency)
			return nil
		},
	})

	return &BalanceResult{Balance: balance, Currency: currency, CacheHit: false}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Debit
// ──────────────────────────────────────────────────────────────────────────────

// Debit withdraws amount from the wallet, exactly once per transactionID.
// A duplicate id always fails with ErrTransactionAlreadyProcessed: the
// original debit's funds could have been consumed or cancelled since, so a
// replay cannot safely return the prior result.
func (s *WalletService) Debit(ctx context.Context, playerID string, amount decimal.Decimal, transactionID string, meta TxMeta) (*MutationResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	if _, err := s.store.Ledger(ctx, transactionID); err == nil {
		return nil, domain.ErrTransactionAlreadyProcessed
	} else if !errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, fmt.Errorf("wallet_service.Debit: lookup: %w", err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet_service.Debit: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	wallet, err := s.store.WalletForUpdate(ctx, tx, playerID)
	if err != nil {
		return nil, fmt.Errorf("wallet_service.Debit: lock wallet: %w", err)
	}
	if !wallet.CanDebit(amount) {
		err = domain.ErrInsufficientFunds
		return nil, err
	}

	original := wallet.Balance
	updated := original.Sub(amount)
	if err = s.store.SetBalance(ctx, tx, playerID, updated); err != nil {
		return nil, fmt.Errorf("wallet_service.Debit: update balance: %w", err)
	}

	txn := newLedgerEntry(transactionID, playerID, domain.TxDebit, amount, wallet.Currency, original, updated, nil, meta)
	if err = s.store.InsertLedger(ctx, tx, txn); err != nil {
		// Unique violation here means a concurrent duplicate won the race.
		if errors.Is(err, domain.ErrTransactionAlreadyProcessed) {
			return nil, err
		}
		return nil, fmt.Errorf("wallet_service.Debit: insert: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("wallet_service.Debit: commit: %w", err)
	}

	s.postCommit(playerID)
	return &MutationResult{Balance: updated, Currency: wallet.Currency, TransactionID: transactionID}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Credit
// ──────────────────────────────────────────────────────────────────────────────

// Credit deposits amount into the wallet, idempotently per transactionID:
// replaying a completed credit for the same player returns the current
// balance without mutation, so providers can retry safely. The wallet is
// created lazily with the player's currency when missing.
func (s *WalletService) Credit(ctx context.Context, playerID string, amount decimal.Decimal, transactionID string, meta TxMeta) (*MutationResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	existing, err := s.store.Ledger(ctx, transactionID)
	if err == nil {
		return s.replayCredit(ctx, playerID, existing)
	}
	if !errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, fmt.Errorf("wallet_service.Credit: lookup: %w", err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet_service.Credit: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	wallet, err := s.store.WalletForUpdate(ctx, tx, playerID)
	if errors.Is(err, domain.ErrWalletNotFound) {
		wallet, err = s.createWalletLocked(ctx, tx, playerID)
	}
	if err != nil {
		return nil, fmt.Errorf("wallet_service.Credit: lock wallet: %w", err)
	}

	original := wallet.Balance
	updated := original.Add(amount)
	if err = s.store.SetBalance(ctx, tx, playerID, updated); err != nil {
		return nil, fmt.Errorf("wallet_service.Credit: update balance: %w", err)
	}

	txn := newLedgerEntry(transactionID, playerID, domain.TxCredit, amount, wallet.Currency, original, updated, nil, meta)
	if err = s.store.InsertLedger(ctx, tx, txn); err != nil {
		if errors.Is(err, domain.ErrTransactionAlreadyProcessed) {
			// Concurrent duplicate: roll back and take the replay branch.
			_ = tx.Rollback()
			err = nil
			if existing, lookupErr := s.store.Ledger(ctx, transactionID); lookupErr == nil {
				return s.replayCredit(ctx, playerID, existing)
			}
			return nil, domain.ErrTransactionAlreadyProcessed
		}
		return nil, fmt.Errorf("wallet_service.Credit: insert: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("wallet_service.Credit: commit: %w", err)
	}

	s.postCommit(playerID)
	return &MutationResult{Balance: updated, Currency: wallet.Currency, TransactionID: transactionID}, nil
}

// replayCredit handles a duplicate credit transactionID. Only a completed
// credit for the same player is replay-safe; anything else is a conflict.
func (s *WalletService) replayCredit(ctx context.Context, playerID string, existing *domain.Transaction) (*MutationResult, error) {
	if existing.Type != domain.TxCredit || existing.Status != domain.TxCompleted || existing.PlayerID != playerID {
		return nil, domain.ErrTransactionAlreadyProcessed
	}
	wallet, err := s.store.Wallet(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("wallet_service.replayCredit: %w", err)
	}
	return &MutationResult{
		Balance:       wallet.Balance,
		Currency:      wallet.Currency,
		TransactionID: existing.TransactionID,
	}, nil
}

// createWalletLocked lazily creates the wallet inside tx using the player's
// currency, then takes the row lock on the fresh row.
func (s *WalletService) createWalletLocked(ctx context.Context, tx walletTx, playerID string) (*domain.Wallet, error) {
	player, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if _, err = s.store.CreateWallet(ctx, tx, playerID, player.Currency); err != nil {
		return nil, err
	}
	return s.store.WalletForUpdate(ctx, tx, playerID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Cancel
// ──────────────────────────────────────────────────────────────────────────────

// Cancel reverses a completed debit or credit, idempotently per referenced
// transaction: a second cancel of the same ref returns the first cancel's
// result. Reversing a credit fails with ErrInsufficientFunds when intervening
// debits consumed the credited funds.
func (s *WalletService) Cancel(ctx context.Context, playerID, cancelTransactionID, refTransactionID string) (*MutationResult, error) {
	ref, err := s.store.Ledger(ctx, refTransactionID)
	if err != nil {
		return nil, fmt.Errorf("wallet_service.Cancel: ref lookup: %w", err)
	}
	// A ref owned by another player is reported as missing, not as foreign.
	if ref.PlayerID != playerID {
		return nil, domain.ErrTransactionNotFound
	}

	// Idempotent replay: an existing cancel of this ref is the result.
	if prior, err := s.store.CancelByRef(ctx, refTransactionID); err == nil {
		return cancelResult(prior), nil
	} else if !errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, fmt.Errorf("wallet_service.Cancel: prior lookup: %w", err)
	}

	if !ref.IsCancelable() {
		return nil, domain.ErrTransactionAlreadyProcessed
	}

	// The cancel's own id must be unused.
	if _, err := s.store.Ledger(ctx, cancelTransactionID); err == nil {
		return nil, domain.ErrTransactionAlreadyProcessed
	} else if !errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, fmt.Errorf("wallet_service.Cancel: id lookup: %w", err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet_service.Cancel: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	wallet, err := s.store.WalletForUpdate(ctx, tx, playerID)
	if err != nil {
		return nil, fmt.Errorf("wallet_service.Cancel: lock wallet: %w", err)
	}

	original := wallet.Balance
	var updated decimal.Decimal
	switch ref.Type {
	case domain.TxDebit:
		updated = original.Add(ref.Amount)
	case domain.TxCredit:
		if original.LessThan(ref.Amount) {
			err = domain.ErrInsufficientFunds
			return nil, err
		}
		updated = original.Sub(ref.Amount)
	default:
		err = domain.ErrTransactionAlreadyProcessed
		return nil, err
	}

	// Flip the ref first: its WHERE status='completed' guard closes the race
	// with a concurrent cancel that carries a different cancel id.
	if err = s.store.MarkCanceled(ctx, tx, refTransactionID); err != nil {
		if errors.Is(err, domain.ErrTransactionAlreadyProcessed) {
			_ = tx.Rollback()
			err = nil
			if prior, lookupErr := s.store.CancelByRef(ctx, refTransactionID); lookupErr == nil {
				return cancelResult(prior), nil
			}
			return nil, domain.ErrTransactionAlreadyProcessed
		}
		return nil, fmt.Errorf("wallet_service.Cancel: flip ref: %w", err)
	}

	if err = s.store.SetBalance(ctx, tx, playerID, updated); err != nil {
		return nil, fmt.Errorf("wallet_service.Cancel: update balance: %w", err)
	}

	refID := ref.TransactionID
	txn := newLedgerEntry(cancelTransactionID, playerID, domain.TxCancel, ref.Amount, wallet.Currency, original, updated, &refID, TxMeta{})
	if err = s.store.InsertLedger(ctx, tx, txn); err != nil {
		if errors.Is(err, domain.ErrTransactionAlreadyProcessed) {
			return nil, err
		}
		return nil, fmt.Errorf("wallet_service.Cancel: insert: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("wallet_service.Cancel: commit: %w", err)
	}

	s.postCommit(playerID)
	return &MutationResult{
		Balance:          updated,
		Currency:         wallet.Currency,
		TransactionID:    cancelTransactionID,
		RefTransactionID: refID,
	}, nil
}

// cancelResult rebuilds a MutationResult from a committed cancel entry.
func cancelResult(prior *domain.Transaction) *MutationResult {
	res := &MutationResult{
		Balance:       prior.UpdatedBalance,
		Currency:      prior.Currency,
		TransactionID: prior.TransactionID,
	}
	if prior.RefTransactionID != nil {
		res.RefTransactionID = *prior.RefTransactionID
	}
	return res
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

// newLedgerEntry assembles a completed ledger entry.
func newLedgerEntry(transactionID, playerID string, txType domain.TxType, amount decimal.Decimal, currency string, original, updated decimal.Decimal, refID *string, meta TxMeta) *domain.Transaction {
	metadata := meta.Metadata
	if metadata == nil {
		metadata = domain.MetadataMap{}
	}
	return &domain.Transaction{
		TransactionID:    transactionID,
		PlayerID:         playerID,
		Type:             txType,
		Amount:           amount,
		Currency:         currency,
		Status:           domain.TxCompleted,
		OriginalBalance:  original,
		UpdatedBalance:   updated,
		RefTransactionID: refID,
		Provider:         meta.Provider,
		GameID:           meta.GameID,
		SessionID:        meta.SessionID,
		Metadata:         metadata,
		CreatedAt:        time.Now().UTC(),
	}
}

// postCommit schedules cache invalidation and the wallet_updated event.
// Runs strictly after commit; neither task can fail the mutation.
func (s *WalletService) postCommit(playerID string) {
	s.tasks.Enqueue(scheduler.Task{
		Name:    "cache.invalidate_wallet",
		Timeout: scheduler.CacheTimeout,
		Fn: func(ctx context.Context) error {
			s.cache.InvalidateWallet(ctx, playerID)
			return nil
		},
	})
	s.tasks.Enqueue(scheduler.Task{
		Name:    "events.wallet_updated",
		Timeout: scheduler.PublishTimeout,
		Fn: func(ctx context.Context) error {
			s.bus.WalletUpdated(ctx, playerID)
			return nil
		},
	})
}
