package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNonceInvalid = errors.New("invalid or expired nonce")

// Challenge is an issued login nonce and the message to sign.
type Challenge struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NonceStore keeps one-time login nonces.
type NonceStore interface {
	Put(ctx context.Context, address common.Address, c Challenge, ttl time.Duration) error
	// Take returns and deletes the challenge of address.
	Take(ctx context.Context, address common.Address, nonce string) (Challenge, error)
}

func NewChallenge(domain string, address common.Address, ttl time.Duration) Challenge {
	now := time.Now()
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	return Challenge{
		Nonce:     nonce,
		Message:   LoginMessage(domain, address, nonce, now),
		ExpiresAt: now.Add(ttl),
	}
}

type RedisNonceStore struct {
	rdb *redis.Client
}

func NewRedisNonceStore(rdb *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{rdb: rdb}
}

func nonceKey(address common.Address, nonce string) string {
	return fmt.Sprintf("auth:nonce:%s:%s", strings.ToLower(address.Hex()), nonce)
}

func (s *RedisNonceStore) Put(ctx context.Context, address common.Address, c Challenge, ttl time.Duration) error {
	return s.rdb.Set(ctx, nonceKey(address, c.Nonce), c.Message, ttl).Err()
}

func (s *RedisNonceStore) Take(ctx context.Context, address common.Address, nonce string) (Challenge, error) {
	msg, err := s.rdb.GetDel(ctx, nonceKey(address, nonce)).Result()
	if errors.Is(err, redis.Nil) {
		return Challenge{}, ErrNonceInvalid
	}
	if err != nil {
		return Challenge{}, err
	}
	return Challenge{Nonce: nonce, Message: msg}, nil
}

// MemoryNonceStore keeps nonces in process memory. It serves single-instance
// deployments running without redis.
type MemoryNonceStore struct {
	mu    sync.Mutex
	items map[string]Challenge
	now   func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{items: make(map[string]Challenge), now: time.Now}
}

func (s *MemoryNonceStore) Put(_ context.Context, address common.Address, c Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.items {
		if now.After(v.ExpiresAt) {
			delete(s.items, k)
		}
	}
	c.ExpiresAt = now.Add(ttl)
	s.items[nonceKey(address, c.Nonce)] = c
	return nil
}

func (s *MemoryNonceStore) Take(_ context.Context, address common.Address, nonce string) (Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := nonceKey(address, nonce)
	c, ok := s.items[key]
	if !ok {
		return Challenge{}, ErrNonceInvalid
	}
	delete(s.items, key)
	if s.now().After(c.ExpiresAt) {
		return Challenge{}, ErrNonceInvalid
	}
	return c, nil
}
