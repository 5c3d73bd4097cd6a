package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrNoSession is returned by a Persister holding no session.
var ErrNoSession = errors.New("no persisted session")

// Persister keeps the session across process restarts.
type Persister interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

type memoryPersister struct {
	mu      sync.Mutex
	session *Session
}

// NewMemoryPersister returns a process-local persister for tests.
func NewMemoryPersister() Persister {
	return &memoryPersister{}
}

func (p *memoryPersister) Load(_ context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return Session{}, ErrNoSession
	}
	return *p.session, nil
}

func (p *memoryPersister) Save(_ context.Context, s Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = &s
	return nil
}

func (p *memoryPersister) Clear(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = nil
	return nil
}

// FilePersister stores the session as a JSON file. When a secret is set the
// file is sealed with NaCl secretbox and base64 encoded.
type FilePersister struct {
	path string
	key  *[32]byte
}

// NewFilePersister builds a file persister at path.
func NewFilePersister(path, secret string) *FilePersister {
	p := &FilePersister{path: path}
	if secret != "" {
		sum := sha256.Sum256([]byte(secret))
		p.key = &sum
	}
	return p
}

// Load reads the persisted session.
func (p *FilePersister) Load(_ context.Context) (Session, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("read session file: %w", err)
	}
	if p.key != nil {
		data, err = p.open(data)
		if err != nil {
			return Session{}, err
		}
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decode session file: %w", err)
	}
	return s, nil
}

// Save writes the session with owner-only permissions.
func (p *FilePersister) Save(_ context.Context, s Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if p.key != nil {
		data, err = p.seal(data)
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Clear removes the session file.
func (p *FilePersister) Clear(_ context.Context) error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (p *FilePersister) seal(plain []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("session nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, p.key)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out, nil
}

func (p *FilePersister) open(encoded []byte) ([]byte, error) {
	sealed := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(sealed, encoded)
	if err != nil {
		return nil, fmt.Errorf("decode sealed session: %w", err)
	}
	sealed = sealed[:n]
	if len(sealed) < 24+secretbox.Overhead {
		return nil, errors.New("sealed session too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, p.key)
	if !ok {
		return nil, errors.New("session file cannot be decrypted with the configured secret")
	}
	return plain, nil
}

const redisSessionPrefix = "loandesk:session:v1:"

// RedisPersister stores the session under a per-profile Redis key.
type RedisPersister struct {
	cache      *redis.Client
	key        string
	defaultTTL time.Duration
}

// NewRedisPersister builds a Redis persister for the named profile.
func NewRedisPersister(cache *redis.Client, profile string, defaultTTL time.Duration) *RedisPersister {
	if profile == "" {
		profile = "default"
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &RedisPersister{cache: cache, key: redisSessionPrefix + profile, defaultTTL: defaultTTL}
}

// Load fetches the session.
func (p *RedisPersister) Load(ctx context.Context) (Session, error) {
	raw, err := p.cache.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("redis session lookup: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode redis session: %w", err)
	}
	return s, nil
}

// Save stores the session, expiring the key with the credential.
func (p *RedisPersister) Save(ctx context.Context, s Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := p.defaultTTL
	if s.ExpiresAt != nil {
		if remaining := time.Until(*s.ExpiresAt); remaining > 0 {
			ttl = remaining
		}
	}
	if err := p.cache.Set(ctx, p.key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis session store: %w", err)
	}
	return nil
}

// Clear deletes the session key.
func (p *RedisPersister) Clear(ctx context.Context) error {
	if err := p.cache.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("redis session delete: %w", err)
	}
	return nil
}
