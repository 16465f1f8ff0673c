package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Player
// ──────────────────────────────────────────────────────────────────────────────

// Player is the identity record for a casino player. Players are created on
// their first authenticated appearance through the operator bootstrap and are
// never hard-deleted; GDPR erasure blanks the PII fields instead.
type Player struct {
	PlayerID   string    `json:"player_id"  db:"player_id"`
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   string    `json:"last_name"  db:"last_name"`
	Country    string    `json:"country"    db:"country"`  // ISO-3166-1 alpha-2
	Currency   string    `json:"currency"   db:"currency"` // ISO-4217
	Anonymized bool      `json:"anonymized" db:"anonymized"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Role controls access levels on the API.
type Role string

const (
	RolePlayer Role = "player" // standard authenticated player
	RoleAdmin  Role = "admin"  // AML back-office and cross-player access
)

// IsAdmin returns true only for the admin role.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// ──────────────────────────────────────────────────────────────────────────────
// Wallet
// ──────────────────────────────────────────────────────────────────────────────

// Wallet holds a player's balance in their fixed wallet currency.
// Invariants: currency equals the owning player's currency at creation and
// never changes; balance is non-negative after every committed mutation.
type Wallet struct {
	PlayerID  string          `json:"player_id"  db:"player_id"`
	Balance   decimal.Decimal `json:"balance"    db:"balance"`
	Currency  string          `json:"currency"   db:"currency"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// CanDebit reports whether the wallet holds at least amount.
func (w *Wallet) CanDebit(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}
