package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/nitebet/casino-core/internal/config"
	"github.com/nitebet/casino-core/internal/domain"
	"github.com/nitebet/casino-core/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ──────────────────────────────────────────────────────────────────────────────

// BootstrapPlayer is the player block of the operator bootstrap request.
type BootstrapPlayer struct {
	ID        string `json:"id"        binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Country   string `json:"country"   binding:"required,len=2"`
	Currency  string `json:"currency"  binding:"required,len=3"`
	Session   struct {
		ID string `json:"id"`
		IP string `json:"ip"`
	} `json:"session"`
}

// BootstrapRequest is the operator bootstrap body. The operator credentials
// travel in the URL path, not the body.
type BootstrapRequest struct {
	UUID   string          `json:"uuid"   binding:"required"`
	Player BootstrapPlayer `json:"player" binding:"required"`
}

// BootstrapResponse carries the entry URL with the bearer token embedded as
// the params query value.
type BootstrapResponse struct {
	Entry         string `json:"entry"`
	EntryEmbedded string `json:"entryEmbedded"`
}

// ──────────────────────────────────────────────────────────────────────────────
// JWT claims
// ──────────────────────────────────────────────────────────────────────────────

// AppClaims extends jwt.RegisteredClaims with the credential role.
type AppClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthService
// ──────────────────────────────────────────────────────────────────────────────

// AuthService validates operator credentials, registers players on first
// appearance, and issues and parses bearer tokens.
type AuthService struct {
	db         *sqlx.DB
	playerRepo *repository.PlayerRepository
	walletRepo *repository.WalletRepository
	cfg        *config.Config
}

// NewAuthService creates an AuthService.
func NewAuthService(
	db *sqlx.DB,
	playerRepo *repository.PlayerRepository,
	walletRepo *repository.WalletRepository,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		db:         db,
		playerRepo: playerRepo,
		walletRepo: walletRepo,
		cfg:        cfg,
	}
}

// ValidateOperator checks the casino key / API token pair presented in the
// bootstrap URL.
func (s *AuthService) ValidateOperator(casinoKey, apiToken string) error {
	if casinoKey != s.cfg.Auth.CasinoKey || apiToken != s.cfg.Auth.APIToken {
		return domain.ErrInvalidCredentials
	}
	return nil
}

// Bootstrap upserts the player, ensures a wallet in the player's currency
// exists, and returns an entry URL carrying a fresh bearer token.
func (s *AuthService) Bootstrap(ctx context.Context, req BootstrapRequest) (*BootstrapResponse, error) {
	player := &domain.Player{
		PlayerID:  req.Player.ID,
		FirstName: req.Player.FirstName,
		LastName:  req.Player.LastName,
		Country:   req.Player.Country,
		Currency:  req.Player.Currency,
	}
	if err := s.playerRepo.Upsert(ctx, player); err != nil {
		return nil, fmt.Errorf("auth_service.Bootstrap: upsert player: %w", err)
	}

	// Explicit wallet creation at bootstrap; ON CONFLICT DO NOTHING keeps the
	// currency fixed for returning players.
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("auth_service.Bootstrap: begin tx: %w", err)
	}
	if _, err = s.walletRepo.Create(ctx, tx, player.PlayerID, player.Currency); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("auth_service.Bootstrap: create wallet: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("auth_service.Bootstrap: commit: %w", err)
	}

	token, err := s.IssueToken(player.PlayerID, domain.RolePlayer)
	if err != nil {
		return nil, fmt.Errorf("auth_service.Bootstrap: %w", err)
	}

	entry := fmt.Sprintf("/entry?params=%s", token)
	return &BootstrapResponse{
		Entry:         entry,
		EntryEmbedded: entry + "&embedded=true",
	}, nil
}

// ErasePlayer blanks the player's stored PII for a GDPR erasure request. The
// row and the transaction ledger stay intact.
func (s *AuthService) ErasePlayer(ctx context.Context, playerID string) error {
	if _, err := s.playerRepo.GetByID(ctx, playerID); err != nil {
		return fmt.Errorf("auth_service.ErasePlayer: %w", err)
	}
	if err := s.playerRepo.Anonymize(ctx, playerID); err != nil {
		return fmt.Errorf("auth_service.ErasePlayer: %w", err)
	}
	return nil
}

// IssueToken signs a bearer token with sub=playerID and the given role.
func (s *AuthService) IssueToken(playerID string, role domain.Role) (string, error) {
	now := time.Now().UTC()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.TTL)),
		},
		Role: string(role),
	}
	method := jwt.GetSigningMethod(s.cfg.JWT.Algorithm)
	if method == nil {
		method = jwt.SigningMethodHS256
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// ParseToken validates the token signature, algorithm family, and expiry.
func (s *AuthService) ParseToken(tokenString string) (*AppClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil || !tok.Valid {
		return nil, domain.ErrTokenInvalid
	}
	claims, ok := tok.Claims.(*AppClaims)
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}
