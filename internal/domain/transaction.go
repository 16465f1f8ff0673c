package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Transaction
// ──────────────────────────────────────────────────────────────────────────────

// TxType enumerates ledger entry types.
type TxType string

const (
	TxDebit  TxType = "debit"
	TxCredit TxType = "credit"
	TxCancel TxType = "cancel"
)

// TxStatus is the lifecycle state of a ledger entry. The only permitted
// mutation of a committed transaction is the completed→canceled flip applied
// by a cancel referencing it.
type TxStatus string

const (
	TxCompleted TxStatus = "completed"
	TxCanceled  TxStatus = "canceled"
)

// Transaction is an append-only ledger entry. TransactionID is supplied by
// the game provider and is globally unique; the database constraint on it is
// the idempotency mechanism for the whole wallet engine.
type Transaction struct {
	ID               int64             `json:"id"                  db:"id"`
	TransactionID    string            `json:"transaction_id"      db:"transaction_id"`
	PlayerID         string            `json:"player_id"           db:"player_id"`
	Type             TxType            `json:"type"                db:"type"`
	Amount           decimal.Decimal   `json:"amount"              db:"amount"`
	Currency         string            `json:"currency"            db:"currency"`
	Status           TxStatus          `json:"status"              db:"status"`
	OriginalBalance  decimal.Decimal   `json:"original_balance"    db:"original_balance"`
	UpdatedBalance   decimal.Decimal   `json:"updated_balance"     db:"updated_balance"`
	RefTransactionID *string           `json:"ref_transaction_id"  db:"ref_transaction_id"` // set only for cancels
	Provider         *string           `json:"provider"            db:"provider"`
	GameID           *string           `json:"game_id"             db:"game_id"`
	SessionID        *string           `json:"session_id"          db:"session_id"`
	Metadata         MetadataMap       `json:"metadata"            db:"metadata"`
	CreatedAt        time.Time         `json:"created_at"          db:"created_at"`
}

// SignedEffect returns the delta this entry applied to the wallet balance
// (credit +amount, debit −amount). Cancels carry the reversal amount with the
// sign opposite to the entry they reference; callers that replay a ledger
// should use the cancel's own original/updated balances instead.
func (t *Transaction) SignedEffect() decimal.Decimal {
	switch t.Type {
	case TxCredit:
		return t.Amount
	case TxDebit:
		return t.Amount.Neg()
	default:
		return t.UpdatedBalance.Sub(t.OriginalBalance)
	}
}

// IsCancelable reports whether a cancel may reference this entry.
func (t *Transaction) IsCancelable() bool {
	return t.Status == TxCompleted && (t.Type == TxDebit || t.Type == TxCredit)
}

// ValidateAmount checks the fixed-point contract for wallet mutations:
// strictly positive with at most two fractional digits.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.Exponent() < -2 {
		return ErrInvalidAmount
	}
	return nil
}
