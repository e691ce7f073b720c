package auth

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// credentialKey is the fixed key credentials live under in shared stores.
	credentialKey = "workchat:credentials"

	credentialFile = "credentials.json"

	redisCredentialTTL = 24 * time.Hour
)

// ErrNoCredentials is returned by Load when nothing has been saved yet.
var ErrNoCredentials = errors.New("no stored credentials")

// Store persists bearer credentials between requests. Implementations
// must be safe for concurrent use.
type Store interface {
	Save(ctx context.Context, creds *Credentials) error
	Load(ctx context.Context) (*Credentials, error)
	Clear(ctx context.Context) error
}

// MemoryStore keeps credentials for the lifetime of the process only.
type MemoryStore struct {
	mu    sync.RWMutex
	creds *Credentials
}

// FileStore keeps credentials in a JSON file under a config directory,
// surviving process restarts.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// RedisStore keeps credentials in Redis so multiple clients on one host
// can share a login.
type RedisStore struct {
	client *redis.Client
}

// NewStore selects the backing store: Redis when a reachable URL is
// configured, otherwise the durable file store.
func NewStore(redisURL, redisPassword, configDir string) Store {
	if redisURL != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     redisURL,
			Password: redisPassword,
			DB:       0,
		})

		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Str("addr", redisURL).Msg("Redis unreachable - using file store for credentials")
		} else {
			return &RedisStore{client: client}
		}
	}

	return NewFileStore(configDir)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func NewFileStore(dir string) *FileStore {
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".workchat")
	}
	return &FileStore{dir: dir}
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Memory store implementation
func (ms *MemoryStore) Save(ctx context.Context, creds *Credentials) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	copied := *creds
	ms.creds = &copied
	return nil
}

func (ms *MemoryStore) Load(ctx context.Context) (*Credentials, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.creds == nil {
		return nil, ErrNoCredentials
	}
	copied := *ms.creds
	return &copied, nil
}

func (ms *MemoryStore) Clear(ctx context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.creds = nil
	return nil
}

// File store implementation
func (fs *FileStore) path() string {
	return filepath.Join(fs.dir, credentialFile)
}

func (fs *FileStore) Save(ctx context.Context, creds *Credentials) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(fs.dir, 0700); err != nil {
		return err
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}

	return os.WriteFile(fs.path(), data, 0600)
}

func (fs *FileStore) Load(ctx context.Context) (*Credentials, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredentials
		}
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

func (fs *FileStore) Clear(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Redis store implementation
func (rs *RedisStore) Save(ctx context.Context, creds *Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}

	if err := rs.client.Set(ctx, credentialKey, string(data), redisCredentialTTL).Err(); err != nil {
		log.Error().Err(err).Msg("Redis credential SET failed")
		return err
	}
	return nil
}

func (rs *RedisStore) Load(ctx context.Context) (*Credentials, error) {
	data, err := rs.client.Get(ctx, credentialKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNoCredentials
		}
		log.Error().Err(err).Msg("Redis credential GET failed")
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(data), &creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

func (rs *RedisStore) Clear(ctx context.Context) error {
	return rs.client.Del(ctx, credentialKey).Err()
}
