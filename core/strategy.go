package core

import (
	"context"
	"net/http"
)

// AuthRequest is the transport-neutral view of an inbound request that
// authentication strategies inspect.
type AuthRequest struct {
	Headers http.Header
}

type OutcomeKind int

const (
	NotApplicable OutcomeKind = iota
	Admitted
	Rejected
)

func (k OutcomeKind) String() string {
	switch k {
	case Admitted:
		return "admitted"
	case Rejected:
		return "rejected"
	default:
		return "not_applicable"
	}
}

// Outcome is the result of a single strategy. Identity is set only when
// admitted and Reason only when rejected.
type Outcome struct {
	Kind     OutcomeKind
	Identity *Identity
	Reason   error
}

func Admit(id *Identity) Outcome  { return Outcome{Kind: Admitted, Identity: id} }
func Reject(reason error) Outcome { return Outcome{Kind: Rejected, Reason: reason} }
func Skip() Outcome               { return Outcome{Kind: NotApplicable} }

// Strategy tries one way of authenticating a request.
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, req AuthRequest) Outcome
}

// SessionResolver resolves the session carried by request headers (cookies).
// It returns ErrNoSession when the headers carry no usable session.
type SessionResolver interface {
	GetSessionFromHeaders(ctx context.Context, headers http.Header) (*SessionData, error)
}

// TokenVerifier verifies a bearer token. It returns ErrInvalidToken for
// tokens that are malformed, expired or unknown.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}
