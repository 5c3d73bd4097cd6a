package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/loandesk/loandesk/internal/logging"
)

func realSession() Session {
	return Session{
		UserID:      "42",
		DisplayName: "Asha",
		Email:       "asha@example.com",
		Role:        RoleStandard,
		Credential:  "opaque-token",
		Mode:        ModeReal,
	}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryPersister(), logging.Discard())

	if store.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", store.State())
	}
	if _, err := store.Require(); err != ErrNotAuthenticated {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	ended := 0
	store.OnEnd(func() { ended++ })

	if err := store.Begin(ctx, realSession()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if store.State() != StateAuthenticatedReal || !store.IsReal() || store.IsDemo() {
		t.Fatalf("expected real session, got %s", store.State())
	}
	if store.Credential() != "opaque-token" {
		t.Fatalf("unexpected credential %q", store.Credential())
	}

	if err := store.End(ctx); err != nil {
		t.Fatalf("end: %v", err)
	}
	if store.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated after logout, got %s", store.State())
	}
	if ended != 1 {
		t.Fatalf("expected teardown hook once, got %d", ended)
	}
}

func TestStoreRestoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	first := NewStore(persister, logging.Discard())
	if err := first.Begin(ctx, realSession()); err != nil {
		t.Fatalf("begin: %v", err)
	}

	second := NewStore(persister, logging.Discard())
	restored, ok, err := second.Restore(ctx)
	if err != nil || !ok {
		t.Fatalf("restore: ok=%v err=%v", ok, err)
	}
	if restored.UserID != "42" || second.Credential() != "opaque-token" {
		t.Fatalf("unexpected restored session %+v", restored)
	}
}

func TestStoreRestoreDropsExpired(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	past := time.Now().Add(-time.Minute)
	expired := realSession()
	expired.ExpiresAt = &past
	if err := persister.Save(ctx, expired); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := NewStore(persister, logging.Discard())
	if _, ok, err := store.Restore(ctx); err != nil || ok {
		t.Fatalf("expected expired session to be dropped, ok=%v err=%v", ok, err)
	}
	if _, err := persister.Load(ctx); err != ErrNoSession {
		t.Fatalf("expected persisted copy cleared, got %v", err)
	}
}

func TestFlagReauthAndInvalidate(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryPersister(), logging.Discard())
	if err := store.Begin(ctx, realSession()); err != nil {
		t.Fatalf("begin: %v", err)
	}

	store.FlagReauth(ctx)
	sess, ok := store.Current()
	if !ok || !sess.ReauthRequired {
		t.Fatalf("expected reauth flag on live session, got %+v", sess)
	}

	store.Invalidate(ctx, "401 on read")
	if store.State() != StateUnauthenticated {
		t.Fatalf("expected invalidation to log out, got %s", store.State())
	}
}

func TestCredentialIssuerDemoTokens(t *testing.T) {
	issuer := NewCredentialIssuer("s3cret", time.Hour)
	token, exp, err := issuer.MintDemo(Session{UserID: "1", DisplayName: "Demo User", Role: RoleStandard})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !issuer.IsDemo(token) {
		t.Fatal("expected minted token to be recognised")
	}
	if NewCredentialIssuer("other", time.Hour).IsDemo(token) {
		t.Fatal("token signed with another secret must not be recognised")
	}
	if issuer.IsDemo("opaque-token") {
		t.Fatal("opaque backend token is not a demo credential")
	}

	got, ok := CredentialExpiry(token)
	if !ok || got.Unix() != exp.Unix() {
		t.Fatalf("expected expiry %v, got %v ok=%v", exp, got, ok)
	}
	if _, ok := CredentialExpiry("opaque-token"); ok {
		t.Fatal("non-JWT credential has no readable expiry")
	}
}

func TestFilePersisterEncrypted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	p := NewFilePersister(path, "passphrase")

	if _, err := p.Load(ctx); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := p.Save(ctx, realSession()); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(raw), "opaque-token") {
		t.Fatal("credential must not be stored in clear text")
	}

	loaded, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Credential != "opaque-token" {
		t.Fatalf("unexpected credential %q", loaded.Credential)
	}

	if _, err := NewFilePersister(path, "wrong").Load(ctx); err == nil {
		t.Fatal("expected decryption failure with wrong secret")
	}

	if err := p.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := p.Clear(ctx); err != nil {
		t.Fatalf("second clear should be a no-op: %v", err)
	}
}

func TestFilePersisterPlain(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	p := NewFilePersister(path, "")
	if err := p.Save(ctx, realSession()); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), `"token": "opaque-token"`) {
		t.Fatalf("expected plain json, got %s", raw)
	}
}

func TestRedisPersister(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	ctx := context.Background()
	p := NewRedisPersister(cache, "cli", time.Hour)
	if _, err := p.Load(ctx); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	sess := realSession()
	exp := time.Now().Add(10 * time.Minute)
	sess.ExpiresAt = &exp
	if err := p.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL(redisSessionPrefix + "cli"); ttl <= 0 || ttl > 10*time.Minute {
		t.Fatalf("expected key ttl bound to credential expiry, got %s", ttl)
	}

	loaded, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Email != sess.Email {
		t.Fatalf("unexpected session %+v", loaded)
	}

	if err := p.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists(redisSessionPrefix + "cli") {
		t.Fatal("expected key removed")
	}
}
