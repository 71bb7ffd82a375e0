package fiber

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/starterp/core"
)

// statusRules maps sentinels to HTTP status codes; the first match wins.
var statusRules = []struct {
	err    error
	status int
}{
	{core.ErrInvalidCredentials, http.StatusUnauthorized},
	{core.ErrInvalidToken, http.StatusUnauthorized},
	{core.ErrSessionExpired, http.StatusUnauthorized},
	{core.ErrSessionNotFound, http.StatusUnauthorized},
	{core.ErrNoSession, http.StatusUnauthorized},
	{core.ErrMissingAuthHeader, http.StatusUnauthorized},
	{core.ErrInvalidAuthHeader, http.StatusUnauthorized},
	{core.ErrAuthenticationRequired, http.StatusUnauthorized},
	{core.ErrProviderUnavailable, http.StatusUnauthorized},
	{core.ErrOAuthExchange, http.StatusUnauthorized},

	{core.ErrForbidden, http.StatusForbidden},

	{core.ErrEmailRequired, http.StatusBadRequest},
	{core.ErrPasswordRequired, http.StatusBadRequest},
	{core.ErrPasswordTooShort, http.StatusBadRequest},
	{core.ErrPasswordTooLong, http.StatusBadRequest},
	{core.ErrInvalidEmail, http.StatusBadRequest},
	{core.ErrUserIDRequired, http.StatusBadRequest},
	{core.ErrInvalidRole, http.StatusBadRequest},
	{core.ErrInvalidTier, http.StatusBadRequest},
	{core.ErrUnsupportedProvider, http.StatusBadRequest},
	{core.ErrInvalidOAuthState, http.StatusBadRequest},

	{core.ErrUserNotFound, http.StatusNotFound},
	{core.ErrRoleNotFound, http.StatusNotFound},

	{core.ErrUserExists, http.StatusConflict},

	{core.ErrTooManyRequests, http.StatusTooManyRequests},
}

var errInvalidBody = errors.New("invalid request body")

// classify returns the status for err and the sentinel whose text is safe
// to show to clients. Unknown errors are 500 with no sentinel.
func classify(err error) (int, error) {
	if errors.Is(err, errInvalidBody) {
		return http.StatusBadRequest, errInvalidBody
	}
	for _, rule := range statusRules {
		if errors.Is(err, rule.err) {
			return rule.status, rule.err
		}
	}
	return http.StatusInternalServerError, nil
}

// mapErrorToStatus maps core error types to HTTP status codes
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	status, _ := classify(err)
	return status
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

func (a *Adapter) writeError(c fiber.Ctx, err error) error {
	status, public := classify(err)
	message := "internal server error"
	if public != nil {
		message = public.Error()
	}
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(c.Context(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(core.ErrorResponse{
		Error: core.ErrorBody{Code: errorCode(status), Message: message},
	})
}
