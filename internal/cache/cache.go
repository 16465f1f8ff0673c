// Package cache implements the two-tier read cache in front of the store:
// an in-process bounded LRU (L1) over a shared Redis key-value tier (L2).
// Cached wallet balances carry an HMAC tag; entries that fail verification
// are dropped and reported as misses. Writers invalidate rather than update,
// and a pub/sub listener drops L1 entries when a peer process mutates a
// wallet.
package cache

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nitebet/casino-core/internal/config"
	"github.com/shopspring/decimal"
)

// WalletUpdatesChannel is the pub/sub channel carrying wallet mutation
// notifications between processes.
const WalletUpdatesChannel = "wallet_updates"

// l1Backfill caps the L1 TTL applied when an L2 hit is copied up.
const l1Backfill = 60 * time.Second

// lockTTL bounds the coalesced-write lock so a crashed writer cannot wedge
// the key.
const lockTTL = 5 * time.Second

// ──────────────────────────────────────────────────────────────────────────────
// KV — the L2 tier
// ──────────────────────────────────────────────────────────────────────────────

// KV is the shared key-value tier. Implemented by RedisKV in production and
// by an in-memory fake in tests.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string) (<-chan string, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// Cache
// ──────────────────────────────────────────────────────────────────────────────

type l1Entry struct {
	value     string
	expiresAt time.Time
}

// Cache is the two-tier cache. Safe for concurrent use.
type Cache struct {
	l1      *lru.Cache[string, l1Entry]
	kv      KV
	hmacKey []byte
	cfg     *config.CacheConfig
	logger  *slog.Logger
}

// New creates a Cache with an L1 bounded to cfg.L1Size entries.
func New(kv KV, cfg *config.CacheConfig, logger *slog.Logger) (*Cache, error) {
	size := cfg.L1Size
	if size <= 0 {
		size = 5000
	}
	l1, err := lru.New[string, l1Entry](size)
	if err != nil {
		return nil, fmt.Errorf("cache.New: %w", err)
	}
	return &Cache{
		l1:      l1,
		kv:      kv,
		hmacKey: cfg.HMACKey,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Keys and TTLs
// ──────────────────────────────────────────────────────────────────────────────

// WalletKey returns the cache key for a player's wallet.
func WalletKey(playerID string) string { return "wallet:" + playerID }

// walletLockKey guards the rare coalesced cache write.
func walletLockKey(playerID string) string { return "lock:wallet:" + playerID }

// TTLFor returns the resource-typed TTL for a key.
func (c *Cache) TTLFor(key string) time.Duration {
	switch {
	case strings.HasPrefix(key, "wallet:"):
		return c.cfg.WalletTTL
	case strings.HasPrefix(key, "player:"), strings.HasPrefix(key, "session:"):
		return c.cfg.PlayerTTL
	case strings.HasPrefix(key, "game_list:"):
		return c.cfg.GameListTTL
	case strings.HasPrefix(key, "game_state:"):
		return c.cfg.GameStateTTL
	default:
		return c.cfg.DefaultTTL
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Generic operations
// ──────────────────────────────────────────────────────────────────────────────

// Get reads a key, consulting L1 then L2. An L2 hit back-fills L1 with
// min(resource TTL, 60s). Cache errors are logged and reported as misses —
// the cache never fails a caller.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if e, ok := c.l1.Get(key); ok {
		if time.Now().Before(e.expiresAt) {
			return e.value, true
		}
		c.l1.Remove(key)
	}

	val, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache: L2 read failed", "key", key, "err", err)
		return "", false
	}
	if !ok {
		return "", false
	}

	ttl := c.TTLFor(key)
	if ttl > l1Backfill {
		ttl = l1Backfill
	}
	c.l1.Add(key, l1Entry{value: val, expiresAt: time.Now().Add(ttl)})
	return val, true
}

// Set writes a key to both tiers with its resource-typed TTL. L2 failures
// are logged and swallowed.
func (c *Cache) Set(ctx context.Context, key, value string) {
	ttl := c.TTLFor(key)
	c.l1.Add(key, l1Entry{value: value, expiresAt: time.Now().Add(ttl)})
	if err := c.kv.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("cache: L2 write failed", "key", key, "err", err)
	}
}

// Delete removes a key from both tiers. This is the invalidation primitive:
// writers delete and let the next read back-fill, avoiding stale-write races
// under concurrent mutations.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.l1.Remove(key)
	if err := c.kv.Del(ctx, key); err != nil {
		c.logger.Warn("cache: L2 delete failed", "key", key, "err", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Wallet entries
// ──────────────────────────────────────────────────────────────────────────────

// WalletEntry is the wire format of a cached wallet balance.
type WalletEntry struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
	CachedAt time.Time       `json:"_cached_at"`
	Hash     string          `json:"hash"`
}

// walletHash computes the integrity tag over (player_id, balance).
func (c *Cache) walletHash(playerID string, balance decimal.Decimal) string {
	mac := hmac.New(sha256.New, c.hmacKey)
	mac.Write([]byte(playerID + "|" + balance.StringFixed(2)))
	return hex.EncodeToString(mac.Sum(nil))
}

// GetWallet reads and verifies a cached wallet balance. A value that fails
// HMAC verification is deleted and reported as a miss.
func (c *Cache) GetWallet(ctx context.Context, playerID string) (*WalletEntry, bool) {
	key := WalletKey(playerID)
	raw, ok := c.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var entry WalletEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.logger.Warn("cache: malformed wallet entry", "key", key, "err", err)
		c.Delete(ctx, key)
		return nil, false
	}
	want := c.walletHash(playerID, entry.Balance)
	if !hmac.Equal([]byte(want), []byte(entry.Hash)) {
		c.logger.Warn("cache: wallet integrity check failed", "key", key)
		c.Delete(ctx, key)
		return nil, false
	}
	return &entry, true
}

// SetWallet writes a wallet balance with its integrity tag. It takes the
// short-TTL wallet lock first; losing the race means another writer is
// updating concurrently, so this writer invalidates instead of writing.
func (c *Cache) SetWallet(ctx context.Context, playerID string, balance decimal.Decimal, currency string) {
	acquired, err := c.kv.SetNX(ctx, walletLockKey(playerID), "1", lockTTL)
	if err != nil {
		c.logger.Warn("cache: wallet lock failed", "player_id", playerID, "err", err)
		return
	}
	if !acquired {
		c.Delete(ctx, WalletKey(playerID))
		return
	}
	defer func() {
		if err := c.kv.Del(ctx, walletLockKey(playerID)); err != nil {
			c.logger.Warn("cache: wallet unlock failed", "player_id", playerID, "err", err)
		}
	}()

	entry := WalletEntry{
		Balance:  balance,
		Currency: currency,
		CachedAt: time.Now().UTC(),
		Hash:     c.walletHash(playerID, balance),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("cache: marshal wallet entry", "player_id", playerID, "err", err)
		return
	}
	c.Set(ctx, WalletKey(playerID), string(raw))
}

// InvalidateWallet drops a player's wallet entry from both tiers.
func (c *Cache) InvalidateWallet(ctx context.Context, playerID string) {
	c.Delete(ctx, WalletKey(playerID))
}

// ──────────────────────────────────────────────────────────────────────────────
// Pub/sub invalidation
// ──────────────────────────────────────────────────────────────────────────────

// walletUpdate is the payload published on WalletUpdatesChannel.
type walletUpdate struct {
	Event    string `json:"event"`
	PlayerID string `json:"player_id"`
}

// ListenWalletUpdates subscribes to WalletUpdatesChannel and drops the L1
// entry for every announced mutation, so peers converge without waiting for
// TTL expiry. Runs until ctx is cancelled; call from main in a goroutine.
func (c *Cache) ListenWalletUpdates(ctx context.Context) {
	msgs, err := c.kv.Subscribe(ctx, WalletUpdatesChannel)
	if err != nil {
		c.logger.Warn("cache: subscribe failed, L1 relies on TTL expiry", "err", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case raw, open := <-msgs:
			if !open {
				return
			}
			var upd walletUpdate
			if err := json.Unmarshal([]byte(raw), &upd); err != nil || upd.PlayerID == "" {
				continue
			}
			c.l1.Remove(WalletKey(upd.PlayerID))
		}
	}
}
