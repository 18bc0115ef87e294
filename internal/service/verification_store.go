package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"hapo/internal/domain"
)

// pendingRetention mantiene el registro vencido un rato mas para poder
// informar "codigo expirado" en vez de "no hay verificacion pendiente".
const pendingRetention = time.Hour

var errPendingNotFound = errors.New("pending verification not found")

// VerificationStore guarda codigos pendientes indexados por proposito y email.
type VerificationStore interface {
	Save(ctx context.Context, pending domain.PendingVerification) error
	Get(ctx context.Context, purpose domain.VerificationPurpose, email string) (domain.PendingVerification, error)
	Delete(ctx context.Context, purpose domain.VerificationPurpose, email string) error
}

func verificationKey(purpose domain.VerificationPurpose, email string) string {
	return string(purpose) + ":" + strings.ToLower(strings.TrimSpace(email))
}

type memoryVerificationStore struct {
	mu    sync.Mutex
	items map[string]domain.PendingVerification
}

func NewMemoryVerificationStore() VerificationStore {
	return &memoryVerificationStore{
		items: make(map[string]domain.PendingVerification),
	}
}

func (s *memoryVerificationStore) Save(_ context.Context, pending domain.PendingVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[verificationKey(pending.Purpose, pending.Email)] = pending
	return nil
}

func (s *memoryVerificationStore) Get(_ context.Context, purpose domain.VerificationPurpose, email string) (domain.PendingVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := verificationKey(purpose, email)
	pending, ok := s.items[key]
	if !ok {
		return domain.PendingVerification{}, errPendingNotFound
	}
	if time.Now().UTC().After(pending.ExpiresAt.Add(pendingRetention)) {
		delete(s.items, key)
		return domain.PendingVerification{}, errPendingNotFound
	}
	return pending, nil
}

func (s *memoryVerificationStore) Delete(_ context.Context, purpose domain.VerificationPurpose, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, verificationKey(purpose, email))
	return nil
}

type redisKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisVerificationStore struct {
	client redisKV
	prefix string
}

func NewRedisVerificationStore(client redisKV) VerificationStore {
	if client == nil {
		return nil
	}
	return &redisVerificationStore{
		client: client,
		prefix: "hapo:verify:",
	}
}

func (s *redisVerificationStore) Save(ctx context.Context, pending domain.PendingVerification) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	ttl := time.Until(pending.ExpiresAt) + pendingRetention
	if ttl <= 0 {
		ttl = pendingRetention
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+verificationKey(pending.Purpose, pending.Email), payload, ttl).Err()
}

func (s *redisVerificationStore) Get(ctx context.Context, purpose domain.VerificationPurpose, email string) (domain.PendingVerification, error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := s.client.Get(ctx, s.prefix+verificationKey(purpose, email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PendingVerification{}, errPendingNotFound
	}
	if err != nil {
		return domain.PendingVerification{}, err
	}
	var pending domain.PendingVerification
	if err := json.Unmarshal(raw, &pending); err != nil {
		return domain.PendingVerification{}, err
	}
	return pending, nil
}

func (s *redisVerificationStore) Delete(ctx context.Context, purpose domain.VerificationPurpose, email string) error {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+verificationKey(purpose, email)).Err()
}
