package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/josh-vincent/roast-me-characters-sub001/credits"
	"github.com/josh-vincent/roast-me-characters-sub001/health"
	"github.com/josh-vincent/roast-me-characters-sub001/middleware"
	"github.com/josh-vincent/roast-me-characters-sub001/pipeline"
	"github.com/josh-vincent/roast-me-characters-sub001/shortlink"
	"gorm.io/gorm"
)

// Handler holds the services the HTTP endpoints call into.
type Handler struct {
	db       *gorm.DB
	pipeline *pipeline.Pipeline
	links    *shortlink.Service
	ledger   *credits.Ledger
	catalog  credits.Catalog
	health   *health.Checker
}

type Deps struct {
	DB       *gorm.DB
	Pipeline *pipeline.Pipeline
	Links    *shortlink.Service
	Ledger   *credits.Ledger
	Catalog  credits.Catalog
	Health   *health.Checker
}

func New(deps Deps) *Handler {
	return &Handler{
		db:       deps.DB,
		pipeline: deps.Pipeline,
		links:    deps.Links,
		ledger:   deps.Ledger,
		catalog:  deps.Catalog,
		health:   deps.Health,
	}
}

func statusFor(err error) int {
	switch pipeline.KindOf(err) {
	case pipeline.KindInvalidInput:
		return fiber.StatusBadRequest
	case pipeline.KindUnauthorized:
		return fiber.StatusUnauthorized
	case pipeline.KindInsufficientCredits:
		return fiber.StatusPaymentRequired
	case pipeline.KindForbidden:
		return fiber.StatusForbidden
	case pipeline.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// errorBody logs server side failures and returns the status and the public
// message for err.
func errorBody(c *fiber.Ctx, err error) (int, string) {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		slog.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(), "path", c.Path(), "error", err)
	}
	return status, pipeline.PublicMessage(err)
}

type imageRequest struct {
	ImageURL string `json:"imageUrl" form:"imageUrl"`
}

// imageInput reads a multipart `file` or an `imageUrl` field (form or JSON).
// The returned close func must be called once the input is consumed.
func imageInput(c *fiber.Ctx) (pipeline.Input, func(), error) {
	in := pipeline.Input{Identity: middleware.CurrentIdentity(c)}
	noop := func() {}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		in.ImageURL = c.FormValue("imageUrl")

		header, err := c.FormFile("file")
		if errors.Is(err, multipart.ErrMessageTooLarge) {
			return in, noop, pipeline.NewError(pipeline.KindInvalidInput, "Image is too large", err)
		}
		if err != nil || header == nil {
			return in, noop, nil
		}

		file, err := header.Open()
		if err != nil {
			return in, noop, pipeline.NewError(pipeline.KindInvalidInput, "Error opening the file", err)
		}
		in.File = &pipeline.File{
			Name:        header.Filename,
			ContentType: header.Header.Get(fiber.HeaderContentType),
			Reader:      file,
		}
		return in, func() { _ = file.Close() }, nil
	}

	if len(c.Body()) > 0 {
		var req imageRequest
		if err := c.BodyParser(&req); err != nil {
			return in, noop, pipeline.NewError(pipeline.KindInvalidInput, "Invalid request body", err)
		}
		in.ImageURL = req.ImageURL
	}
	return in, noop, nil
}
