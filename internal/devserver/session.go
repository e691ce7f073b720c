package devserver

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	sessionLifetime = 24 * time.Hour

	redisSessionPrefix = "workchat:session:"
	redisRefreshPrefix = "workchat:refresh:"
)

// Session pairs a chat session id with its refresh token. The session
// id is stable across refreshes; the refresh token rotates.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RefreshToken string    `json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionStore holds active sessions, addressable by session id and by
// refresh token.
type SessionStore interface {
	Create(ctx context.Context, userID string) (Session, error)
	Get(ctx context.Context, sessionID string) (Session, bool, error)
	Refresh(ctx context.Context, oldRefreshToken string) (Session, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

type MemorySessionStore struct {
	mu        sync.RWMutex
	byID      map[string]Session
	byRefresh map[string]string // refresh token -> session id
}

type RedisSessionStore struct {
	client *redis.Client
}

// NewSessionStore prefers Redis when a reachable URL is configured,
// falling back to process memory.
func NewSessionStore(redisURL, redisPassword string) SessionStore {
	if redisURL != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     redisURL,
			Password: redisPassword,
			DB:       0,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Str("addr", redisURL).Msg("Redis unreachable - using in-memory sessions")
		} else {
			return &RedisSessionStore{client: client}
		}
	}
	return NewMemorySessionStore()
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		byID:      make(map[string]Session),
		byRefresh: make(map[string]string),
	}
}

func newSession(userID string) Session {
	return Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		RefreshToken: uuid.New().String(),
		CreatedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(sessionLifetime),
	}
}

// Memory store implementation
func (ms *MemorySessionStore) Create(ctx context.Context, userID string) (Session, error) {
	session := newSession(userID)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.byID[session.ID] = session
	ms.byRefresh[session.RefreshToken] = session.ID
	return session, nil
}

func (ms *MemorySessionStore) Get(ctx context.Context, sessionID string) (Session, bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	session, exists := ms.byID[sessionID]
	if !exists || time.Now().After(session.ExpiresAt) {
		return Session{}, false, nil
	}
	return session, true, nil
}

func (ms *MemorySessionStore) Refresh(ctx context.Context, oldRefreshToken string) (Session, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	sessionID, exists := ms.byRefresh[oldRefreshToken]
	if !exists {
		return Session{}, false, nil
	}
	old := ms.byID[sessionID]
	if time.Now().After(old.ExpiresAt) {
		return Session{}, false, nil
	}

	// Same session id, new refresh token.
	rotated := old
	rotated.RefreshToken = uuid.New().String()
	rotated.CreatedAt = time.Now()
	rotated.ExpiresAt = time.Now().Add(sessionLifetime)

	delete(ms.byRefresh, oldRefreshToken)
	ms.byID[rotated.ID] = rotated
	ms.byRefresh[rotated.RefreshToken] = rotated.ID
	return rotated, true, nil
}

func (ms *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if session, exists := ms.byID[sessionID]; exists {
		delete(ms.byRefresh, session.RefreshToken)
		delete(ms.byID, sessionID)
	}
	return nil
}

// Redis store implementation
func (rs *RedisSessionStore) save(ctx context.Context, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ttl := time.Until(session.ExpiresAt)
	if err := rs.client.Set(ctx, redisSessionPrefix+session.ID, string(data), ttl).Err(); err != nil {
		log.Error().Err(err).Str("session_id", session.ID).Msg("Redis session SET failed")
		return err
	}
	return rs.client.Set(ctx, redisRefreshPrefix+session.RefreshToken, session.ID, ttl).Err()
}

func (rs *RedisSessionStore) Create(ctx context.Context, userID string) (Session, error) {
	session := newSession(userID)
	if err := rs.save(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (rs *RedisSessionStore) Get(ctx context.Context, sessionID string) (Session, bool, error) {
	data, err := rs.client.Get(ctx, redisSessionPrefix+sessionID).Result()
	if err == redis.Nil {
		return Session{}, false, nil
	}
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Redis session GET failed")
		return Session{}, false, err
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return Session{}, false, err
	}
	return session, true, nil
}

func (rs *RedisSessionStore) Refresh(ctx context.Context, oldRefreshToken string) (Session, bool, error) {
	sessionID, err := rs.client.Get(ctx, redisRefreshPrefix+oldRefreshToken).Result()
	if err == redis.Nil {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}

	old, found, err := rs.Get(ctx, sessionID)
	if err != nil || !found {
		return Session{}, false, err
	}

	rotated := old
	rotated.RefreshToken = uuid.New().String()
	rotated.CreatedAt = time.Now()
	rotated.ExpiresAt = time.Now().Add(sessionLifetime)

	if err := rs.save(ctx, rotated); err != nil {
		return Session{}, false, err
	}
	_ = rs.client.Del(ctx, redisRefreshPrefix+oldRefreshToken).Err()
	return rotated, true, nil
}

func (rs *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	session, found, err := rs.Get(ctx, sessionID)
	if err != nil || !found {
		return err
	}
	_ = rs.client.Del(ctx, redisRefreshPrefix+session.RefreshToken).Err()
	return rs.client.Del(ctx, redisSessionPrefix+sessionID).Err()
}
