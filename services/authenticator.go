package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lborres/starterp/core"
)

const (
	DefaultAuthTimeout = 5 * time.Second
	bearerPrefix       = "bearer "
)

// OutcomeObserver is told about every strategy outcome.
type OutcomeObserver func(strategy string, kind core.OutcomeKind)

type AuthenticatorConfig struct {
	// Timeout bounds each strategy call. A strategy that runs out of time
	// rejects the request.
	Timeout  time.Duration
	Observer OutcomeObserver
	Logger   *slog.Logger
}

// Authenticator runs strategies in order. The first one to admit or reject
// decides; when none applies the request is rejected.
type Authenticator struct {
	strategies []core.Strategy
	timeout    time.Duration
	observer   OutcomeObserver
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewAuthenticator(cfg AuthenticatorConfig, strategies ...core.Strategy) *Authenticator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAuthTimeout
	}
	if cfg.Observer == nil {
		cfg.Observer = func(string, core.OutcomeKind) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Authenticator{
		strategies: strategies,
		timeout:    cfg.Timeout,
		observer:   cfg.Observer,
		logger:     cfg.Logger.With("component", "Authenticator"),
		tracer:     otel.Tracer("github.com/lborres/starterp/services"),
	}
}

func (a *Authenticator) Authenticate(ctx context.Context, req core.AuthRequest) (*core.Identity, error) {
	ctx, span := a.tracer.Start(ctx, "auth.authenticate")
	defer span.End()

	for _, s := range a.strategies {
		out := a.run(ctx, s, req)
		a.observer(s.Name(), out.Kind)
		span.AddEvent("strategy", trace.WithAttributes(
			attribute.String("auth.strategy", s.Name()),
			attribute.String("auth.outcome", out.Kind.String()),
		))

		switch out.Kind {
		case core.Admitted:
			span.SetAttributes(attribute.String("auth.user_id", out.Identity.ID))
			return out.Identity, nil
		case core.Rejected:
			span.SetStatus(codes.Error, out.Reason.Error())
			a.logger.DebugContext(ctx, "request rejected", "strategy", s.Name(), "reason", out.Reason)
			return nil, out.Reason
		}
	}

	span.SetStatus(codes.Error, core.ErrAuthenticationRequired.Error())
	return nil, core.ErrAuthenticationRequired
}

func (a *Authenticator) run(ctx context.Context, s core.Strategy, req core.AuthRequest) core.Outcome {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return s.Authenticate(ctx, req)
}

// CookieStrategy admits requests carrying a valid session, either as the
// session cookie or as a session token in the Authorization header. Missing
// or dead sessions fall through to the next strategy; provider failures reject.
type CookieStrategy struct {
	resolver core.SessionResolver
}

func NewCookieStrategy(resolver core.SessionResolver) *CookieStrategy {
	return &CookieStrategy{resolver: resolver}
}

func (s *CookieStrategy) Name() string { return "cookie" }

func (s *CookieStrategy) Authenticate(ctx context.Context, req core.AuthRequest) core.Outcome {
	data, err := s.resolver.GetSessionFromHeaders(ctx, req.Headers)
	switch {
	case errors.Is(err, core.ErrNoSession):
		return core.Skip()
	case err != nil:
		return core.Reject(fmt.Errorf("%w: %w", core.ErrProviderUnavailable, err))
	case data == nil || data.User == nil:
		return core.Skip()
	}

	return core.Admit(&core.Identity{
		ID:    data.User.ID,
		Email: data.User.Email,
		Roles: core.DefaultRoles(data.User.Roles),
	})
}

// BearerStrategy admits requests whose Authorization header carries a token
// the verifier accepts.
type BearerStrategy struct {
	verifier core.TokenVerifier
}

func NewBearerStrategy(verifier core.TokenVerifier) *BearerStrategy {
	return &BearerStrategy{verifier: verifier}
}

func (s *BearerStrategy) Name() string { return "bearer" }

func (s *BearerStrategy) Authenticate(ctx context.Context, req core.AuthRequest) core.Outcome {
	header := req.Headers.Get("Authorization")
	if header == "" {
		return core.Skip()
	}

	token, ok := parseBearer(header)
	if !ok {
		return core.Reject(core.ErrInvalidAuthHeader)
	}

	id, err := s.verifier.VerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrInvalidToken) {
			return core.Reject(core.ErrInvalidToken)
		}
		return core.Reject(fmt.Errorf("%w: %w", core.ErrProviderUnavailable, err))
	}

	id.Roles = core.DefaultRoles(id.Roles)
	return core.Admit(id)
}

func parseBearer(header string) (string, bool) {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
