// Package app builds the object graph shared by the console API and the CLI.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loandesk/loandesk/internal/admin"
	"github.com/loandesk/loandesk/internal/auth"
	"github.com/loandesk/loandesk/internal/checkout"
	"github.com/loandesk/loandesk/internal/config"
	"github.com/loandesk/loandesk/internal/forms"
	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/ledger"
	"github.com/loandesk/loandesk/internal/notification"
	"github.com/loandesk/loandesk/internal/session"
	"github.com/loandesk/loandesk/internal/support"
	"github.com/loandesk/loandesk/internal/wallet"
)

const (
	feedLimit     = 50
	credentialTTL = 24 * time.Hour
)

// App holds the per-process stores and services.
type App struct {
	Cfg    config.Config
	Logger *slog.Logger
	Cache  *redis.Client

	Sessions  *session.Store
	Gateway   *gateway.Gateway
	Ledger    *ledger.Store
	Persister *ledger.Persister
	Feed      *notification.Feed

	Auth     *auth.Service
	Wallet   *wallet.Service
	Checkout *checkout.Service
	Forms    *forms.Service
	Support  *support.Service
	Admin    *admin.Service
}

// Options override collaborators, mostly for tests.
type Options struct {
	HTTPClient gateway.HTTPDoer
	Processor  checkout.Processor
	Persister  session.Persister
}

// New wires every store and service. cache may be nil.
func New(cfg config.Config, cache *redis.Client, logger *slog.Logger, opts Options) *App {
	sessionPersister := opts.Persister
	if sessionPersister == nil {
		if cache != nil {
			sessionPersister = session.NewRedisPersister(cache, cfg.AppName, credentialTTL)
		} else {
			sessionPersister = session.NewFilePersister(cfg.SessionFile, cfg.SessionSecret)
		}
	}
	sessions := session.NewStore(sessionPersister, logger)

	var fallback gateway.Fallback
	if cfg.DemoFallback {
		fallback = gateway.NewDemoFallback()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = gateway.NewDefaultHTTPClient(cfg.HTTPTimeout)
	}
	gw := gateway.New(gateway.NewBaseClient(cfg.APIBaseURL, httpClient), sessions, fallback, logger)

	persister := ledger.NewPersister(gw, cfg.PersistQueueSize, cfg.HTTPTimeout, logger)
	store := ledger.NewStore(gw, sessions, persister, logger)

	feed := notification.NewFeed(feedLimit)
	notifier := notification.Fanout{feed, notification.NewLoggerNotifier(logger)}

	issuer := session.NewCredentialIssuer(cfg.SessionSecret, credentialTTL)
	authSvc := auth.NewService(gw, sessions, issuer, notifier, logger)
	checkoutSvc := checkout.NewService(gw, store, opts.Processor, notifier,
		checkout.Settings{Currency: cfg.Currency, Key: cfg.CheckoutKey}, logger)

	a := &App{
		Cfg:       cfg,
		Logger:    logger,
		Cache:     cache,
		Sessions:  sessions,
		Gateway:   gw,
		Ledger:    store,
		Persister: persister,
		Feed:      feed,
		Auth:      authSvc,
		Wallet:    wallet.NewService(store, cfg.Rates, cfg.Currency),
		Checkout:  checkoutSvc,
		Forms:     forms.NewService(store, gw, cfg.Rates, notifier, logger),
		Support:   support.NewService(gw, notifier, logger),
		Admin:     admin.NewService(gw, notifier, logger),
	}

	authSvc.AfterLogin(store.Resync)
	authSvc.BeforeLogout(store.Flush)
	sessions.OnEnd(store.Reset)
	sessions.OnEnd(checkoutSvc.Reset)
	return a
}

// Restore reloads a persisted session, if any.
func (a *App) Restore(ctx context.Context) (session.Session, bool, error) {
	return a.Auth.Restore(ctx)
}

// Close drains queued ledger writes.
func (a *App) Close(ctx context.Context) error {
	return a.Persister.Close(ctx)
}
