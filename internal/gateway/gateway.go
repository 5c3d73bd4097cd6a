// Package gateway talks to the remote REST API and applies the read/write
// fallback protocol when the backend is absent.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loandesk/loandesk/internal/metrics"
)

// Session is the view of the session store the gateway needs.
type Session interface {
	Credential() string
	IsDemo() bool
	FlagReauth(ctx context.Context)
	Invalidate(ctx context.Context, reason string)
}

// Response is a successful backend response, or a substituted one when Mock
// is set.
type Response struct {
	Status int
	Body   []byte
	Mock   bool
}

// Decode unmarshals the body into v.
func (r Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// Gateway is the remote gateway adapter.
type Gateway struct {
	client   *BaseClient
	session  Session
	fallback Fallback
	logger   *slog.Logger
}

// New builds a gateway. A nil fallback means strict mode.
func New(client *BaseClient, session Session, fallback Fallback, logger *slog.Logger) *Gateway {
	if fallback == nil {
		fallback = NoFallback{}
	}
	return &Gateway{client: client, session: session, fallback: fallback, logger: logger}
}

// Get performs a read.
func (g *Gateway) Get(ctx context.Context, ep Endpoint) (Response, error) {
	return g.Do(ctx, ep, nil)
}

// Do performs the call described by ep with an optional JSON payload.
func (g *Gateway) Do(ctx context.Context, ep Endpoint, payload any) (Response, error) {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Response{}, fmt.Errorf("encode %s payload: %w", ep.Name, err)
		}
		body = b
	}

	headers := map[string]string{}
	if !ep.Public && g.session != nil {
		// A synthetic credential is never sent to the backend.
		if g.session.IsDemo() {
			metrics.RecordBackendCall(ep.Name, "demo")
			return g.substitute(ep, fmt.Errorf("%w: %s: demo session", ErrBackendUnreachable, ep.Name))
		}
		if cred := g.session.Credential(); cred != "" {
			headers["Authorization"] = "Bearer " + cred
		}
	}

	status, respBody, err := g.client.Do(ctx, ep.Method, ep.Path, body, headers)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		metrics.RecordBackendCall(ep.Name, "unreachable")
		return g.substitute(ep, fmt.Errorf("%w: %s: %v", ErrBackendUnreachable, ep.Name, err))
	}

	if err := classifyStatus(ep.Name, status, respBody); err != nil {
		switch {
		case errors.Is(err, ErrAuthentication):
			metrics.RecordBackendCall(ep.Name, "unauthorized")
			metrics.RecordAuthFailure(ep.Name)
			g.onUnauthorized(ctx, ep)
		case errors.Is(err, ErrBackendUnreachable):
			metrics.RecordBackendCall(ep.Name, "not_found")
			return g.substitute(ep, err)
		case errors.Is(err, ErrValidation):
			metrics.RecordBackendCall(ep.Name, "validation")
		default:
			metrics.RecordBackendCall(ep.Name, "server")
		}
		return Response{}, err
	}

	metrics.RecordBackendCall(ep.Name, "ok")
	return Response{Status: status, Body: respBody}, nil
}

func (g *Gateway) substitute(ep Endpoint, cause error) (Response, error) {
	var (
		body []byte
		ok   bool
	)
	if ep.IsRead() {
		body, ok = g.fallback.Read(ep.Name)
	} else {
		body, ok = g.fallback.Write(ep.Name)
	}
	if !ok {
		return Response{}, cause
	}
	metrics.RecordFallback(ep.Name, ep.Method)
	g.logger.Warn("backend absent, serving mock response",
		slog.String("endpoint", ep.Name),
		slog.String("method", ep.Method),
		slog.Any("cause", cause),
	)
	return Response{Status: 200, Body: body, Mock: true}, nil
}

func (g *Gateway) onUnauthorized(ctx context.Context, ep Endpoint) {
	if ep.Public || g.session == nil {
		return
	}
	if ep.IsRead() {
		g.session.Invalidate(ctx, "401 on "+ep.Name)
		return
	}
	g.session.FlagReauth(ctx)
}
