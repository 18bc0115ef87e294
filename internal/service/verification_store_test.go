package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"hapo/internal/domain"
)

type mockRedisKV struct {
	data    map[string]string
	lastTTL time.Duration
}

func newMockRedisKV() *mockRedisKV {
	return &mockRedisKV{data: make(map[string]string)}
}

func (m *mockRedisKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.lastTTL = expiration
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisKV) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	v, ok := m.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (m *mockRedisKV) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func testPending(purpose domain.VerificationPurpose, expiresIn time.Duration) domain.PendingVerification {
	now := time.Now().UTC()
	return domain.PendingVerification{
		Purpose:   purpose,
		Email:     "a@b.com",
		CodeHash:  "salt:hash",
		ExpiresAt: now.Add(expiresIn),
		CreatedAt: now,
	}
}

func TestMemoryVerificationStore_KeyedByPurpose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVerificationStore()

	if err := store.Save(ctx, testPending(domain.PurposeEmail, 10*time.Minute)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Get(ctx, domain.PurposeMFA, "a@b.com"); !errors.Is(err, errPendingNotFound) {
		t.Fatalf("expected mfa slot empty, got %v", err)
	}
	got, err := store.Get(ctx, domain.PurposeEmail, "a@b.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CodeHash != "salt:hash" {
		t.Fatalf("unexpected pending: %+v", got)
	}

	if err := store.Delete(ctx, domain.PurposeEmail, "a@b.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, domain.PurposeEmail, "a@b.com"); !errors.Is(err, errPendingNotFound) {
		t.Fatalf("expected deleted, got %v", err)
	}
}

func TestMemoryVerificationStore_KeepsExpiredDuringRetention(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVerificationStore()

	if err := store.Save(ctx, testPending(domain.PurposeEmail, -time.Minute)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Get(ctx, domain.PurposeEmail, "a@b.com")
	if err != nil {
		t.Fatalf("expected expired record still readable, got %v", err)
	}
	if !got.Expired(time.Now().UTC()) {
		t.Fatalf("expected record reported as expired")
	}

	if err := store.Save(ctx, testPending(domain.PurposeMFA, -2*pendingRetention)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Get(ctx, domain.PurposeMFA, "a@b.com"); !errors.Is(err, errPendingNotFound) {
		t.Fatalf("expected record dropped after retention, got %v", err)
	}
}

func TestRedisVerificationStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newMockRedisKV()
	store := NewRedisVerificationStore(kv)

	pending := testPending(domain.PurposeMFA, 5*time.Minute)
	if err := store.Save(ctx, pending); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := kv.data["hapo:verify:mfa:a@b.com"]; !ok {
		t.Fatalf("expected prefixed key, got %v", kv.data)
	}
	if kv.lastTTL < pendingRetention+4*time.Minute || kv.lastTTL > pendingRetention+5*time.Minute {
		t.Fatalf("unexpected ttl %v", kv.lastTTL)
	}

	got, err := store.Get(ctx, domain.PurposeMFA, "a@b.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CodeHash != pending.CodeHash || !got.ExpiresAt.Equal(pending.ExpiresAt) {
		t.Fatalf("unexpected pending: %+v", got)
	}

	if err := store.Delete(ctx, domain.PurposeMFA, "a@b.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, domain.PurposeMFA, "a@b.com"); !errors.Is(err, errPendingNotFound) {
		t.Fatalf("expected errPendingNotFound, got %v", err)
	}
}

func TestNewRedisVerificationStore_NilClient(t *testing.T) {
	if store := NewRedisVerificationStore(nil); store != nil {
		t.Fatalf("expected nil store for nil client")
	}
}
