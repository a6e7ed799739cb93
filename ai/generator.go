package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/josh-vincent/roast-me-characters-sub001/config"
	"github.com/josh-vincent/roast-me-characters-sub001/models"
	"github.com/josh-vincent/roast-me-characters-sub001/storage"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GenerationRequest is everything needed to draw one character.
type GenerationRequest struct {
	Analysis         models.ImageAnalysis
	OriginalImageURL string
	Scope            string
}

type GenerationResult struct {
	ImageURL string
	Prompt   string
}

// Generator renders characters with the Gemini image model and stores them.
type Generator struct {
	models     ContentGenerator
	model      string
	store      storage.Storage
	limiter    *rate.Limiter
	httpClient *http.Client
}

func NewGenerator(contentGen ContentGenerator, cfg config.AI, store storage.Storage, httpClient *http.Client) *Generator {
	limit := rate.Inf
	if cfg.GenerationInterval > 0 {
		limit = rate.Every(cfg.GenerationInterval)
	}
	burst := cfg.GenerationBurst
	if burst <= 0 {
		burst = 1
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg.Timeout)
	}

	return &Generator{
		models:     contentGen,
		model:      cfg.ImageModel,
		store:      store,
		limiter:    rate.NewLimiter(limit, burst),
		httpClient: httpClient,
	}
}

// Generate makes a single image model call and uploads the result.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	if g == nil || g.models == nil || g.store == nil {
		return GenerationResult{}, errors.New("ai: generator not configured")
	}

	prompt, err := BuildPrompt(req.Analysis)
	if err != nil {
		return GenerationResult{}, err
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if req.OriginalImageURL != "" {
		data, mimeType, err := fetchImage(ctx, g.httpClient, req.OriginalImageURL)
		if err != nil {
			slog.WarnContext(ctx, "generating without reference photo", "url", req.OriginalImageURL, "error", err)
		} else {
			parts = append(parts, genai.NewPartFromBytes(data, mimeType))
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return GenerationResult{Prompt: prompt}, fmt.Errorf("ai: rate limiter: %w", err)
	}

	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	)
	if err != nil {
		return GenerationResult{Prompt: prompt}, fmt.Errorf("ai: generate image: %w", err)
	}

	imageBytes, mimeType := firstInlineImage(resp)
	if len(imageBytes) == 0 {
		return GenerationResult{Prompt: prompt}, errors.New("ai: no image data found in response")
	}

	key := storage.ObjectKey("generated", req.Scope, storage.Extension("", mimeType))
	url, err := g.store.Upload(ctx, key, bytes.NewReader(imageBytes), int64(len(imageBytes)), mimeType)
	if err != nil {
		return GenerationResult{Prompt: prompt}, fmt.Errorf("ai: upload generated image: %w", err)
	}

	return GenerationResult{ImageURL: url, Prompt: prompt}, nil
}

func firstInlineImage(resp *genai.GenerateContentResponse) ([]byte, string) {
	for _, part := range responseParts(resp) {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mimeType := part.InlineData.MIMEType
		if !strings.HasPrefix(mimeType, "image/") {
			mimeType = http.DetectContentType(part.InlineData.Data)
		}
		return part.InlineData.Data, mimeType
	}
	return nil, ""
}
