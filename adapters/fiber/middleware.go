package fiber

import (
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/starterp/core"
)

const localsIdentity = "identity"

// Protected is a Fiber middleware that runs the authentication strategies
// and stores the admitted identity for downstream handlers.
func (a *Adapter) Protected(c fiber.Ctx) error {
	if _, err := a.authenticate(c); err != nil {
		return a.writeError(c, err)
	}
	return c.Next()
}

// AdminOnly must run after Protected.
func (a *Adapter) AdminOnly(c fiber.Ctx) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return a.writeError(c, core.ErrAuthenticationRequired)
	}
	if err := a.requireAdmin(c, id); err != nil {
		return a.writeError(c, err)
	}
	return c.Next()
}

// IdentityFrom returns the identity admitted for this request.
func IdentityFrom(c fiber.Ctx) (*core.Identity, bool) {
	id, ok := c.Locals(localsIdentity).(*core.Identity)
	return id, ok && id != nil
}

func (a *Adapter) authenticate(c fiber.Ctx) (*core.Identity, error) {
	id, err := a.s.Authenticator.Authenticate(c.Context(), core.AuthRequest{Headers: requestHeaders(c)})
	if err != nil {
		return nil, err
	}
	c.Locals(localsIdentity, id)
	return id, nil
}

// requireAdmin checks the stored role, not the roles carried by the credential.
func (a *Adapter) requireAdmin(c fiber.Ctx, id *core.Identity) error {
	admin, err := a.s.Roles.IsAdmin(c.Context(), id.ID)
	if err != nil {
		return err
	}
	if !admin {
		return core.ErrForbidden
	}
	return nil
}

func requestHeaders(c fiber.Ctx) http.Header {
	h := http.Header{}
	for k, values := range c.GetReqHeaders() {
		for _, v := range values {
			h.Add(k, v)
		}
	}
	return h
}
