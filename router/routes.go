package router

import (
	"errors"
	"log/slog"

	"github.com/go-pkgz/auth/v2/token"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/josh-vincent/roast-me-characters-sub001/config"
	handler "github.com/josh-vincent/roast-me-characters-sub001/handlers"
	"github.com/josh-vincent/roast-me-characters-sub001/middleware"
)

// BodyLimit leaves room for a 10 MiB image plus multipart overhead.
const BodyLimit = 12 << 20

// New builds the fiber app with global middleware and all routes.
func New(cfg config.Config, h *handler.Handler, tokens *token.Service) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "roast-me-characters",
		BodyLimit:    BodyLimit,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + middleware.AnonHeader,
		AllowCredentials: cfg.CORSOrigins != "*",
	}))

	SetupRoutes(app, h, tokens)
	return app
}

func SetupRoutes(app *fiber.App, h *handler.Handler, tokens *token.Service) {
	app.Get("/s/:shortCode", logger.New(), h.RedirectShortLink)

	// Health stays outside the identity middleware.
	app.Get("/api/health", logger.New(), h.Health)

	api := app.Group("/api", logger.New(), middleware.IdentityMiddleware(tokens))

	api.Post("/analyze-image", h.AnalyzeImage)
	api.Post("/generate", h.GenerateCharacter)
	api.Post("/retry-generation", h.RetryGeneration)

	api.Get("/character-status/:id", h.GetCharacterStatus)

	// Characters
	characters := api.Group("/characters")
	characters.Get("/:id", h.GetCharacter)
	characters.Post("/:id/share", h.ShareCharacter)

	// Credits
	credits := api.Group("/credits")
	credits.Get("/packages", h.GetCreditPackages)
	credits.Get("/packages/:id", h.GetCreditPackage)
	credits.Get("/balance", middleware.RequireUser(), h.GetCreditBalance)
	credits.Get("/history", middleware.RequireUser(), h.GetCreditHistory)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	if code >= fiber.StatusInternalServerError {
		slog.ErrorContext(c.UserContext(), "unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": message})
}
