package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/nitebet/casino-core/internal/domain"
	"github.com/nitebet/casino-core/internal/repository"
	"github.com/shopspring/decimal"
)

// walletTx is one atomic mutation scope on the wallet store.
type walletTx interface {
	Commit() error
	Rollback() error
}

// walletStore is the persistence surface the wallet engine runs on.
// Implemented by sqlWalletStore over WalletRepository in production and by an
// in-memory fake in tests, so the duplicate/replay/cancel branches are
// testable without a database.
type walletStore interface {
	Begin(ctx context.Context) (walletTx, error)
	Wallet(ctx context.Context, playerID string) (*domain.Wallet, error)
	WalletForUpdate(ctx context.Context, tx walletTx, playerID string) (*domain.Wallet, error)
	CreateWallet(ctx context.Context, tx walletTx, playerID, currency string) (*domain.Wallet, error)
	SetBalance(ctx context.Context, tx walletTx, playerID string, balance decimal.Decimal) error
	InsertLedger(ctx context.Context, tx walletTx, txn *domain.Transaction) error
	Ledger(ctx context.Context, transactionID string) (*domain.Transaction, error)
	CancelByRef(ctx context.Context, refTransactionID string) (*domain.Transaction, error)
	MarkCanceled(ctx context.Context, tx walletTx, transactionID string) error
}

// playerGetter is the slice of PlayerRepository the wallet engine needs.
type playerGetter interface {
	GetByID(ctx context.Context, playerID string) (*domain.Player, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// SQL adapter
// ──────────────────────────────────────────────────────────────────────────────

// sqlWalletStore adapts the sqlx handle and WalletRepository to walletStore.
type sqlWalletStore struct {
	db   *sqlx.DB
	repo *repository.WalletRepository
}

type sqlWalletTx struct {
	tx *sqlx.Tx
}

func (t *sqlWalletTx) Commit() error   { return t.tx.Commit() }
func (t *sqlWalletTx) Rollback() error { return t.tx.Rollback() }

// sqlTx unwraps the *sqlx.Tx; only sqlWalletStore ever receives its own txs.
func sqlTx(tx walletTx) *sqlx.Tx { return tx.(*sqlWalletTx).tx }

func (s *sqlWalletStore) Begin(ctx context.Context) (walletTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlWalletTx{tx: tx}, nil
}

func (s *sqlWalletStore) Wallet(ctx context.Context, playerID string) (*domain.Wallet, error) {
	return s.repo.Get(ctx, playerID)
}

func (s *sqlWalletStore) WalletForUpdate(ctx context.Context, tx walletTx, playerID string) (*domain.Wallet, error) {
	return s.repo.GetForUpdate(ctx, sqlTx(tx), playerID)
}

func (s *sqlWalletStore) CreateWallet(ctx context.Context, tx walletTx, playerID, currency string) (*domain.Wallet, error) {
	return s.repo.Create(ctx, sqlTx(tx), playerID, currency)
}

func (s *sqlWalletStore) SetBalance(ctx context.Context, tx walletTx, playerID string, balance decimal.Decimal) error {
	return s.repo.UpdateBalance(ctx, sqlTx(tx), playerID, balance)
}

func (s *sqlWalletStore) InsertLedger(ctx context.Context, tx walletTx, txn *domain.Transaction) error {
	return s.repo.InsertTransaction(ctx, sqlTx(tx), txn)
}

func (s *sqlWalletStore) Ledger(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.repo.GetTransaction(ctx, transactionID)
}

func (s *sqlWalletStore) CancelByRef(ctx context.Context, refTransactionID string) (*domain.Transaction, error) {
	return s.repo.GetCancelByRef(ctx, refTransactionID)
}

func (s *sqlWalletStore) MarkCanceled(ctx context.Context, tx walletTx, transactionID string) error {
	return s.repo.MarkCanceled(ctx, sqlTx(tx), transactionID)
}
