package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nitebet/casino-core/internal/config"
	"github.com/shopspring/decimal"
)

// ── In-memory KV fake ─────────────────────────────────────────────────────────

type memEntry struct {
	value     string
	expiresAt time.Time
}

// memKV is an in-memory KV with TTL and a single-process pub/sub, standing in
// for Redis in tests.
type memKV struct {
	mu   sync.Mutex
	data map[string]memEntry
	subs map[string][]chan string
}

func newMemKV() *memKV {
	return &memKV{
		data: make(map[string]memEntry),
		subs: make(map[string][]chan string),
	}
}

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
		delete(m.data, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *memKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.data[key] = memEntry{value: value, expiresAt: exp}
	return nil
}

func (m *memKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	e, exists := m.data[key]
	live := exists && (e.expiresAt.IsZero() || time.Now().Before(e.expiresAt))
	m.mu.Unlock()
	if live {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *memKV) Publish(_ context.Context, channel, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (m *memKV) Subscribe(_ context.Context, channel string) (<-chan string, error) {
	ch := make(chan string, 16)
	m.mu.Lock()
	m.subs[channel] = append(m.subs[channel], ch)
	m.mu.Unlock()
	return ch, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func testCacheCfg() *config.CacheConfig {
	return &config.CacheConfig{
		L1Size:       16,
		WalletTTL:    60 * time.Second,
		PlayerTTL:    600 * time.Second,
		GameListTTL:  1800 * time.Second,
		GameStateTTL: 30 * time.Second,
		DefaultTTL:   300 * time.Second,
		HMACKey:      []byte("test-hmac-key"),
	}
}

func newTestCache(t *testing.T) (*Cache, *memKV) {
	t.Helper()
	kv := newMemKV()
	c, err := New(kv, testCacheCfg(), slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, kv
}

// ── Generic tiers ─────────────────────────────────────────────────────────────

func TestGetSetDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "wallet:p1"); ok {
		t.Error("empty cache should miss")
	}

	c.Set(ctx, "wallet:p1", "v1")
	if v, ok := c.Get(ctx, "wallet:p1"); !ok || v != "v1" {
		t.Errorf("Get = (%q, %v), want (v1, true)", v, ok)
	}

	c.Delete(ctx, "wallet:p1")
	if _, ok := c.Get(ctx, "wallet:p1"); ok {
		t.Error("deleted key should miss")
	}
}

func TestL2HitBackfillsL1(t *testing.T) {
	c, kv := newTestCache(t)
	ctx := context.Background()

	// Value present only in L2.
	_ = kv.Set(ctx, "wallet:p1", "from-l2", time.Minute)
	if v, ok := c.Get(ctx, "wallet:p1"); !ok || v != "from-l2" {
		t.Fatalf("Get via L2 = (%q, %v)", v, ok)
	}

	// Now remove from L2; the back-filled L1 copy should still serve it.
	_ = kv.Del(ctx, "wallet:p1")
	if v, ok := c.Get(ctx, "wallet:p1"); !ok || v != "from-l2" {
		t.Errorf("L1 backfill not serving, got (%q, %v)", v, ok)
	}
}

func TestTTLFor(t *testing.T) {
	c, _ := newTestCache(t)
	cases := map[string]time.Duration{
		"wallet:p1":     60 * time.Second,
		"session:p1":    600 * time.Second,
		"game_list:all": 1800 * time.Second,
		"game_state:g1": 30 * time.Second,
		"other:thing":   300 * time.Second,
	}
	for key, want := range cases {
		if got := c.TTLFor(key); got != want {
			t.Errorf("TTLFor(%q) = %s, want %s", key, got, want)
		}
	}
}

// ── Wallet entries and integrity ──────────────────────────────────────────────

func TestWalletRoundTripVerifies(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	balance := decimal.RequireFromString("123.45")
	c.SetWallet(ctx, "p1", balance, "EUR")

	entry, ok := c.GetWallet(ctx, "p1")
	if !ok {
		t.Fatal("verified wallet entry should hit")
	}
	if !entry.Balance.Equal(balance) || entry.Currency != "EUR" {
		t.Errorf("entry = %s %s, want 123.45 EUR", entry.Balance, entry.Currency)
	}
}

func TestWalletTamperedBalanceIsDropped(t *testing.T) {
	c, kv := newTestCache(t)
	ctx := context.Background()

	c.SetWallet(ctx, "p1", decimal.RequireFromString("100.00"), "EUR")

	// Tamper with the cached balance directly in both tiers.
	raw, ok, _ := kv.Get(ctx, WalletKey("p1"))
	if !ok {
		t.Fatal("expected cached entry")
	}
	var entry WalletEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	entry.Balance = decimal.RequireFromString("999999.00")
	forged, _ := json.Marshal(entry)
	c.Set(ctx, WalletKey("p1"), string(forged))

	if _, ok := c.GetWallet(ctx, "p1"); ok {
		t.Error("tampered entry must be reported as a miss")
	}
	// And the poisoned key must be gone.
	if _, ok, _ := kv.Get(ctx, WalletKey("p1")); ok {
		t.Error("tampered entry must be deleted from L2")
	}
}

func TestWalletMalformedEntryIsDropped(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, WalletKey("p1"), "{not json")
	if _, ok := c.GetWallet(ctx, "p1"); ok {
		t.Error("malformed entry must be reported as a miss")
	}
}

func TestSetWalletLostLockInvalidates(t *testing.T) {
	c, kv := newTestCache(t)
	ctx := context.Background()

	c.SetWallet(ctx, "p1", decimal.RequireFromString("50.00"), "EUR")
	if _, ok := c.GetWallet(ctx, "p1"); !ok {
		t.Fatal("expected cached entry")
	}

	// Another writer holds the lock: this write must invalidate instead.
	if ok, _ := kv.SetNX(ctx, "lock:wallet:p1", "1", time.Minute); !ok {
		t.Fatal("could not take lock for test")
	}
	c.SetWallet(ctx, "p1", decimal.RequireFromString("75.00"), "EUR")

	if _, ok := c.GetWallet(ctx, "p1"); ok {
		t.Error("losing the write lock must leave the key invalidated")
	}
}

func TestInvalidateWallet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.SetWallet(ctx, "p1", decimal.RequireFromString("10.00"), "EUR")
	c.InvalidateWallet(ctx, "p1")
	if _, ok := c.GetWallet(ctx, "p1"); ok {
		t.Error("invalidated wallet should miss")
	}
}

// ── Pub/sub L1 drop ───────────────────────────────────────────────────────────

func TestListenWalletUpdatesDropsL1(t *testing.T) {
	c, kv := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.ListenWalletUpdates(ctx)
	time.Sleep(20 * time.Millisecond) // let the subscription land

	c.SetWallet(ctx, "p1", decimal.RequireFromString("10.00"), "EUR")

	// A peer process announces a mutation; our L1 copy must be dropped even
	// though L2 still holds the old value.
	payload, _ := json.Marshal(map[string]string{"event": "wallet_updated", "player_id": "p1"})
	_ = kv.Publish(ctx, WalletUpdatesChannel, string(payload))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.l1.Get(WalletKey("p1")); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("L1 entry not dropped after wallet_updated notification")
}
