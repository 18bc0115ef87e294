package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var errRefreshGrantNotFound = errors.New("refresh grant not found")

// RefreshGrant es lo que queda registrado por cada refresh token vigente. La rotacion
// exige que usuario y rol coincidan con los claims del token.
type RefreshGrant struct {
	UserID    string    `json:"uid"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"exp"`
}

// RefreshTokenStore indexa grants por jti. Take los consume: cada refresh token rota una sola vez.
type RefreshTokenStore interface {
	Save(jti string, grant RefreshGrant) error
	Take(jti string) (RefreshGrant, error)
	Drop(jti string) error
}

type memoryRefreshTokenStore struct {
	mu     sync.Mutex
	grants map[string]RefreshGrant
	now    func() time.Time
}

func NewMemoryRefreshTokenStore() RefreshTokenStore {
	return &memoryRefreshTokenStore{
		grants: make(map[string]RefreshGrant),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryRefreshTokenStore) Save(jti string, grant RefreshGrant) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return errRefreshGrantNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// aprovecha la escritura para podar grants vencidos
	now := s.now()
	for k, g := range s.grants {
		if now.After(g.ExpiresAt) {
			delete(s.grants, k)
		}
	}
	s.grants[jti] = grant
	return nil
}

func (s *memoryRefreshTokenStore) Take(jti string) (RefreshGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[strings.TrimSpace(jti)]
	if !ok {
		return RefreshGrant{}, errRefreshGrantNotFound
	}
	delete(s.grants, strings.TrimSpace(jti))
	if s.now().After(grant.ExpiresAt) {
		return RefreshGrant{}, errRefreshGrantNotFound
	}
	return grant, nil
}

func (s *memoryRefreshTokenStore) Drop(jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, strings.TrimSpace(jti))
	return nil
}

type redisGrantClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// redisRefreshTokenStore guarda el grant como JSON con TTL igual a su vencimiento.
// Take usa GETDEL para que dos rotaciones concurrentes no puedan ganar ambas.
type redisRefreshTokenStore struct {
	client  redisGrantClient
	prefix  string
	timeout time.Duration
}

func NewRedisRefreshTokenStore(client redisGrantClient) RefreshTokenStore {
	if client == nil {
		return nil
	}
	return &redisRefreshTokenStore{
		client:  client,
		prefix:  "hapo:refresh:",
		timeout: 500 * time.Millisecond,
	}
}

func (s *redisRefreshTokenStore) Save(jti string, grant RefreshGrant) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return errRefreshGrantNotFound
	}
	ttl := time.Until(grant.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(grant)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Set(ctx, s.prefix+jti, payload, ttl).Err()
}

func (s *redisRefreshTokenStore) Take(jti string) (RefreshGrant, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return RefreshGrant{}, errRefreshGrantNotFound
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	raw, err := s.client.GetDel(ctx, s.prefix+jti).Bytes()
	if errors.Is(err, redis.Nil) {
		return RefreshGrant{}, errRefreshGrantNotFound
	}
	if err != nil {
		return RefreshGrant{}, err
	}
	var grant RefreshGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return RefreshGrant{}, err
	}
	return grant, nil
}

func (s *redisRefreshTokenStore) Drop(jti string) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Del(ctx, s.prefix+jti).Err()
}
