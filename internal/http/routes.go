package http

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerOptions struct {
	AllowOrigins []string
	BodyLimit    int
	AdminToken   string
	AccessLog    bool
}

// NewApp builds the fiber app with every route registered.
func NewApp(h *Handler, opts ServerOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "lookalike",
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	if len(opts.AllowOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(opts.AllowOrigins, ","),
			AllowMethods: "GET,POST,OPTIONS",
		}))
	}

	app.Get("/", h.Root)
	app.Get("/api/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	api.Post("/match", h.Match)
	api.Post("/match/batch", h.MatchBatch)
	api.Get("/catalog", h.Catalog)
	api.Get("/catalog/characters/:id", h.Character)

	admin := app.Group("/admin", adminAuth(opts.AdminToken))
	admin.Post("/reload", h.Reload)
	admin.Post("/join", h.Join)

	return app
}

// adminAuth requires a bearer token on /admin routes. Without a configured
// token the routes stay registered but refuse every request.
func adminAuth(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
				Error: "admin routes are disabled, set server.admin_token to enable them",
				Kind:  "forbidden",
			})
		}
		got := []byte(c.Get(fiber.HeaderAuthorization))
		if subtle.ConstantTimeCompare(got, []byte("Bearer "+token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "unauthorized", Kind: "unauthorized"})
		}
		return c.Next()
	}
}
