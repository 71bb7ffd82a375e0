package services

import (
	"context"
	"fmt"
	"time"

	"github.com/lborres/starterp/core"
	"github.com/lborres/starterp/pkg/crypto"
)

// JWTVerifier accepts HS256 tokens minted by Issue.
type JWTVerifier struct {
	issuer *crypto.JWTIssuer
}

var _ core.TokenVerifier = (*JWTVerifier)(nil)

func NewJWTVerifier(issuer *crypto.JWTIssuer) *JWTVerifier {
	return &JWTVerifier{issuer: issuer}
}

type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issue mints a bearer token for an authenticated identity.
func (v *JWTVerifier) Issue(id *core.Identity) (*IssuedToken, error) {
	token, expires, err := v.issuer.Issue(id.ID, id.Email, id.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &IssuedToken{Token: token, ExpiresAt: expires}, nil
}

func (v *JWTVerifier) VerifyToken(_ context.Context, token string) (*core.Identity, error) {
	claims, err := v.issuer.Parse(token)
	if err != nil {
		return nil, core.ErrInvalidToken
	}
	return &core.Identity{ID: claims.Subject, Email: claims.Email, Roles: claims.Roles}, nil
}

// SessionTokenVerifier accepts raw session tokens as bearer credentials.
type SessionTokenVerifier struct {
	auth *AuthService
}

var _ core.TokenVerifier = (*SessionTokenVerifier)(nil)

func NewSessionTokenVerifier(auth *AuthService) *SessionTokenVerifier {
	return &SessionTokenVerifier{auth: auth}
}

func (v *SessionTokenVerifier) VerifyToken(ctx context.Context, token string) (*core.Identity, error) {
	data, err := v.auth.GetSession(ctx, token)
	if err != nil {
		if isNoSession(err) {
			return nil, core.ErrInvalidToken
		}
		return nil, err
	}
	return &core.Identity{ID: data.User.ID, Email: data.User.Email, Roles: data.User.Roles}, nil
}
