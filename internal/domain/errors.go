package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Wallet / transaction errors
var (
	// ErrPlayerNotFound is returned when no player row matches the given id.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrWalletNotFound is returned when no wallet exists for the player and
	// lazy creation does not apply.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound is returned when a referenced transaction is
	// missing — including when it exists but belongs to another player, so
	// that existence is not leaked across accounts.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrTransactionAlreadyProcessed is returned on a duplicate transaction_id,
	// or when a cancel references a transaction that is not in a cancellable
	// state.
	ErrTransactionAlreadyProcessed = errors.New("transaction already processed")

	// ErrInsufficientFunds is returned when a debit, or the reversal of a
	// credit, would drive the wallet balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for non-positive amounts or amounts with
	// more than two fractional digits.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrCurrencyMismatch is returned when a request currency does not match
	// the wallet currency.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInvalidRequest is returned for a structurally valid body carrying a
	// semantically invalid field, such as an unknown report type.
	ErrInvalidRequest = errors.New("invalid request")
)

// AML errors
var (
	// ErrAlertNotFound is returned when no alert matches the given id.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidAlertTransition is returned when a status update violates the
	// alert review lifecycle.
	ErrInvalidAlertTransition = errors.New("invalid alert status transition")

	// ErrRiskProfileNotFound is returned when a player has never been through
	// AML analysis.
	ErrRiskProfileNotFound = errors.New("risk profile not found")

	// ErrReportNotFound is returned when no report matches the given id.
	ErrReportNotFound = errors.New("report not found")
)

// Auth errors
var (
	// ErrInvalidCredentials is returned when the operator bootstrap key pair
	// or a bearer token fails validation.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPlayerIDMismatch is returned when the body player_id differs from the
	// authenticated player and the credential is not admin.
	ErrPlayerIDMismatch = errors.New("player id mismatch")

	// ErrTokenExpired is returned when a bearer token has passed its TTL.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalid is returned when a token cannot be parsed or its
	// signature does not match.
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrForbidden is returned when the authenticated credential lacks the
	// required role.
	ErrForbidden = errors.New("forbidden: insufficient permissions")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound stays in sync automatically.
var notFoundErrors = []error{
	ErrPlayerNotFound,
	ErrWalletNotFound,
	ErrTransactionNotFound,
	ErrAlertNotFound,
	ErrRiskProfileNotFound,
	ErrReportNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors. Use this instead of comparing error values
// directly when translating domain errors to HTTP 404 responses.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors that represent a state conflict and map
// to HTTP 409.
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrTransactionAlreadyProcessed,
		ErrInvalidAlertTransition,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthError returns true for authentication errors that map to HTTP 401.
func IsAuthError(err error) bool {
	authErrors := []error{
		ErrInvalidCredentials,
		ErrTokenExpired,
		ErrTokenInvalid,
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
