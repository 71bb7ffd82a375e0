package fiber

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/starterp/core"
	"github.com/lborres/starterp/services"
)

type socialSignInInput struct {
	Provider    string `json:"provider"`
	CallbackURL string `json:"callbackURL"`
}

type setRoleInput struct {
	Role core.UserRole `json:"role"`
}

type meResponse struct {
	User *core.Identity        `json:"user"`
	Role core.UserRole         `json:"role"`
	Tier core.SubscriptionTier `json:"tier"`
}

func (a *Adapter) signUpEmail(c fiber.Ctx) error {
	var input services.SignUpInput
	if err := c.Bind().Body(&input); err != nil {
		return a.writeError(c, errInvalidBody)
	}

	result, err := a.s.Auth.SignUp(c.Context(), input, c.IP(), c.Get(fiber.HeaderUserAgent))
	a.countSignIn("email_sign_up", err)
	if err != nil {
		return a.writeError(c, err)
	}

	a.setSessionCookie(c, result.Token, result.Session.ExpiresAt)
	return c.Status(http.StatusCreated).JSON(result)
}

func (a *Adapter) signInEmail(c fiber.Ctx) error {
	var input services.SignInInput
	if err := c.Bind().Body(&input); err != nil {
		return a.writeError(c, errInvalidBody)
	}

	result, err := a.s.Auth.SignIn(c.Context(), input, c.IP(), c.Get(fiber.HeaderUserAgent))
	a.countSignIn("email", err)
	if err != nil {
		return a.writeError(c, err)
	}

	a.setSessionCookie(c, result.Token, result.Session.ExpiresAt)
	return c.Status(http.StatusOK).JSON(result)
}

func (a *Adapter) signInSocial(c fiber.Ctx) error {
	var input socialSignInInput
	if err := c.Bind().Body(&input); err != nil {
		return a.writeError(c, errInvalidBody)
	}

	url, err := a.s.Auth.SocialSignIn(c.Context(), input.Provider, input.CallbackURL)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(fiber.Map{"url": url, "redirect": true})
}

func (a *Adapter) oauthCallback(c fiber.Ctx) error {
	provider := c.Params("provider")
	result, err := a.s.Auth.HandleOAuthCallback(
		c.Context(), provider, c.Query("state"), c.Query("code"), c.IP(), c.Get(fiber.HeaderUserAgent),
	)
	a.countSignIn(provider, err)
	if err != nil {
		return a.writeError(c, err)
	}

	a.setSessionCookie(c, result.Token, result.Session.ExpiresAt)
	target := result.CallbackURL
	if target == "" {
		target = "/"
	}
	return c.Redirect().Status(fiber.StatusFound).To(target)
}

func (a *Adapter) signOut(c fiber.Ctx) error {
	if token := a.sessionToken(c); token != "" {
		if err := a.s.Auth.SignOut(c.Context(), token); err != nil && !errors.Is(err, core.ErrSessionNotFound) {
			return a.writeError(c, err)
		}
	}
	c.ClearCookie(a.s.Auth.CookieName())
	return c.JSON(fiber.Map{"success": true})
}

// getSession answers null when the request carries no live session.
func (a *Adapter) getSession(c fiber.Ctx) error {
	token := a.sessionToken(c)
	if token == "" {
		return c.JSON(nil)
	}

	data, err := a.s.Auth.GetSession(c.Context(), token)
	switch {
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrSessionExpired),
		errors.Is(err, core.ErrInvalidToken):
		return c.JSON(nil)
	case err != nil:
		return a.writeError(c, err)
	}
	return c.JSON(data)
}

// issueToken returns a JWT in jwt bearer mode and the session token itself
// in session bearer mode.
func (a *Adapter) issueToken(c fiber.Ctx) error {
	id, _ := IdentityFrom(c)
	if a.s.Tokens != nil {
		issued, err := a.s.Tokens.Issue(id)
		if err != nil {
			return a.writeError(c, err)
		}
		return c.JSON(issued)
	}

	token := a.sessionToken(c)
	data, err := a.s.Auth.GetSession(c.Context(), token)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(services.IssuedToken{Token: token, ExpiresAt: data.Session.ExpiresAt})
}

func (a *Adapter) me(c fiber.Ctx) error {
	id, _ := IdentityFrom(c)
	ctx := c.Context()

	role, err := a.s.Roles.GetUserRole(ctx, id.ID)
	if err != nil {
		return a.writeError(c, err)
	}
	tier, err := a.s.Subscriptions.GetTier(ctx, id.ID)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(meResponse{User: id, Role: role, Tier: tier})
}

func (a *Adapter) listAdmins(c fiber.Ctx) error {
	admins, err := a.s.Roles.GetAdminUsers(c.Context())
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(fiber.Map{"admins": admins})
}

func (a *Adapter) setUserRole(c fiber.Ctx) error {
	var input setRoleInput
	if err := c.Bind().Body(&input); err != nil {
		return a.writeError(c, errInvalidBody)
	}
	actor, _ := IdentityFrom(c)

	record, err := a.s.Roles.SetUserRole(c.Context(), c.Params("id"), input.Role, actor.ID)
	if err != nil {
		return a.writeError(c, err)
	}
	if a.opts.Metrics != nil {
		a.opts.Metrics.RoleChange(core.EventUserRoleCreated)
	}
	return c.JSON(record)
}

func (a *Adapter) removeUserRole(c fiber.Ctx) error {
	actor, _ := IdentityFrom(c)
	if err := a.s.Roles.RemoveUserRole(c.Context(), c.Params("id"), actor.ID); err != nil {
		return a.writeError(c, err)
	}
	if a.opts.Metrics != nil {
		a.opts.Metrics.RoleChange(core.EventUserRoleRemoved)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (a *Adapter) roleHistory(c fiber.Ctx) error {
	events, err := a.s.Roles.History(c.Context(), c.Params("id"))
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

func (a *Adapter) setSessionCookie(c fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     a.s.Auth.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   a.opts.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// sessionToken reads the session cookie, falling back to a bearer value.
func (a *Adapter) sessionToken(c fiber.Ctx) string {
	if token := c.Cookies(a.s.Auth.CookieName()); token != "" {
		return token
	}
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func (a *Adapter) countSignIn(method string, err error) {
	if a.opts.Metrics != nil {
		a.opts.Metrics.SignIn(method, err == nil)
	}
}
