package fiber

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"

	"github.com/lborres/starterp"
	"github.com/lborres/starterp/core"
	"github.com/lborres/starterp/internal/metrics"
	"github.com/lborres/starterp/services"
)

const appPrefix = "/api"

type Options struct {
	// TrustedOrigins enables credentialed CORS for the listed origins.
	TrustedOrigins []string
	RateLimit      RateLimitConfig
	// SecureCookies marks the session cookie Secure. Enable behind HTTPS.
	SecureCookies bool
	// Metrics, when set, is updated by the handlers and served at /metrics.
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Adapter struct {
	app     *fiber.App
	opts    Options
	limiter *ipLimiter
	logger  *slog.Logger
	s       *starterp.Starter
}

var _ starterp.HTTPAdapter = (*Adapter)(nil)

func New(app *fiber.App, opts Options) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		app:     app,
		opts:    opts,
		limiter: newIPLimiter(opts.RateLimit),
		logger:  logger.With("component", "FiberAdapter"),
	}
}

func (a *Adapter) handlers() map[string]fiber.Handler {
	return map[string]fiber.Handler{
		services.OpSignUpEmail:    a.signUpEmail,
		services.OpSignInEmail:    a.signInEmail,
		services.OpSignInSocial:   a.signInSocial,
		services.OpOAuthCallback:  a.oauthCallback,
		services.OpSignOut:        a.signOut,
		services.OpGetSession:     a.getSession,
		services.OpIssueToken:     a.issueToken,
		services.OpMe:             a.me,
		services.OpListAdmins:     a.listAdmins,
		services.OpSetUserRole:    a.setUserRole,
		services.OpRemoveUserRole: a.removeUserRole,
		services.OpRoleHistory:    a.roleHistory,
	}
}

func (a *Adapter) RegisterRoutes(s *starterp.Starter) error {
	a.s = s

	if len(a.opts.TrustedOrigins) > 0 {
		a.app.Use(cors.New(cors.Config{
			AllowOrigins:     a.opts.TrustedOrigins,
			AllowCredentials: true,
		}))
	}

	handlers := a.handlers()
	if err := a.mount(a.app.Group(s.BasePath), s.Endpoints.Endpoints(), handlers); err != nil {
		return err
	}
	if err := a.mount(a.app.Group(appPrefix), s.AppEndpoints.Endpoints(), handlers); err != nil {
		return err
	}

	a.app.Get("/healthz", fiber.Handler(func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	}))
	if a.opts.Metrics != nil {
		a.app.Get("/metrics", adaptor.HTTPHandler(a.opts.Metrics.Handler()))
	}

	return nil
}

func (a *Adapter) mount(r fiber.Router, endpoints []*core.Endpoint, handlers map[string]fiber.Handler) error {
	for _, ep := range endpoints {
		h, ok := handlers[ep.Metadata.OperationID]
		if !ok {
			return fmt.Errorf("no handler for operation %q (%s %s)", ep.Metadata.OperationID, ep.Method, ep.Path)
		}
		r.Add([]string{ep.Method}, ep.Path, a.guard(ep.Metadata, h))
	}
	return nil
}

// guard applies the endpoint's rate limit and access level before h runs.
func (a *Adapter) guard(meta core.EndpointMetadata, h fiber.Handler) fiber.Handler {
	return func(c fiber.Ctx) error {
		if meta.RateLimited && !a.limiter.allow(c.IP()) {
			if a.opts.Metrics != nil {
				a.opts.Metrics.RateLimited()
			}
			return a.writeError(c, core.ErrTooManyRequests)
		}
		if meta.Access == core.Public {
			return h(c)
		}

		id, err := a.authenticate(c)
		if err != nil {
			return a.writeError(c, err)
		}
		if meta.Access == core.AdminOnly {
			if err := a.requireAdmin(c, id); err != nil {
				return a.writeError(c, err)
			}
		}
		return h(c)
	}
}
