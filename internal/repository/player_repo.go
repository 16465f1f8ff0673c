package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nitebet/casino-core/internal/crypto"
	"github.com/nitebet/casino-core/internal/domain"
)

// PlayerRepository handles all database operations for Players. First and
// last names are sealed with the PII sealer before they touch the database
// and opened again on read.
type PlayerRepository struct {
	db     *sqlx.DB
	sealer *crypto.Sealer
}

// NewPlayerRepository creates a new PlayerRepository.
func NewPlayerRepository(db *sqlx.DB, sealer *crypto.Sealer) *PlayerRepository {
	return &PlayerRepository{db: db, sealer: sealer}
}

// GetByID fetches a player by id.
func (r *PlayerRepository) GetByID(ctx context.Context, playerID string) (*domain.Player, error) {
	var p domain.Player
	err := r.db.GetContext(ctx, &p, `SELECT * FROM players WHERE player_id = $1`, playerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("player_repo.GetByID: %w", err)
	}
	if err = r.openPII(&p); err != nil {
		return nil, fmt.Errorf("player_repo.GetByID: %w", err)
	}
	return &p, nil
}

// Upsert creates the player on first authenticated appearance or refreshes
// the mutable profile fields on subsequent logins. Country and currency are
// fixed after creation; profile updates may only change the name fields.
func (r *PlayerRepository) Upsert(ctx context.Context, p *domain.Player) error {
	sealed := *p
	var err error
	if sealed.FirstName, err = r.sealer.Seal(p.FirstName); err != nil {
		return fmt.Errorf("player_repo.Upsert: seal first name: %w", err)
	}
	if sealed.LastName, err = r.sealer.Seal(p.LastName); err != nil {
		return fmt.Errorf("player_repo.Upsert: seal last name: %w", err)
	}

	now := time.Now().UTC()
	sealed.CreatedAt = now
	sealed.UpdatedAt = now

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO players (player_id, first_name, last_name, country, currency, anonymized, created_at, updated_at)
		VALUES (:player_id, :first_name, :last_name, :country, :currency, false, :created_at, :updated_at)
		ON CONFLICT (player_id) DO UPDATE
		SET first_name = EXCLUDED.first_name,
		    last_name  = EXCLUDED.last_name,
		    updated_at = EXCLUDED.updated_at
		WHERE players.anonymized = false`,
		&sealed)
	if err != nil {
		return fmt.Errorf("player_repo.Upsert: %w", err)
	}
	return nil
}

// Anonymize blanks the sealed PII of a player for GDPR erasure. The row is
// kept so the ledger and AML records stay referentially intact.
func (r *PlayerRepository) Anonymize(ctx context.Context, playerID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE players
		SET first_name = '', last_name = '', anonymized = true, updated_at = now()
		WHERE player_id = $1`,
		playerID)
	if err != nil {
		return fmt.Errorf("player_repo.Anonymize: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}

// openPII decrypts the sealed name fields in place.
func (r *PlayerRepository) openPII(p *domain.Player) error {
	var err error
	if p.FirstName, err = r.sealer.Open(p.FirstName); err != nil {
		return fmt.Errorf("open first name: %w", err)
	}
	if p.LastName, err = r.sealer.Open(p.LastName); err != nil {
		return fmt.Errorf("open last name: %w", err)
	}
	return nil
}
