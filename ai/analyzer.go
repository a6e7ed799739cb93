package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/josh-vincent/roast-me-characters-sub001/config"
	"github.com/josh-vincent/roast-me-characters-sub001/models"
	"google.golang.org/genai"
)

const analysisPrompt = `You are a comedy caricature artist. Study the person in this photo and answer with JSON only, using this shape:

{
  "features": [{"name": "nose", "value": "long and pointy", "confidence": 0.9, "exaggeration_factor": 2.5}],
  "character_style": "cartoon | realistic | anime | pixar",
  "dominant_color": "#aabbcc or a color name",
  "personality_traits": ["confident", "..."],
  "gender": "...",
  "age_range": "25-35",
  "roast_content": "a short, playful roast of the person, two or three sentences"
}

Rules:
- List 3 to 6 of the most distinctive visible features.
- confidence is between 0 and 1; exaggeration_factor is between 1 and 3.
- Keep the roast witty but never cruel, and never mention protected attributes.`

// Analyzer asks the vision model for the caricature traits of a photo.
type Analyzer struct {
	models     ContentGenerator
	model      string
	httpClient *http.Client
}

func NewAnalyzer(contentGen ContentGenerator, cfg config.AI, httpClient *http.Client) *Analyzer {
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg.Timeout)
	}
	return &Analyzer{
		models:     contentGen,
		model:      cfg.AnalysisModel,
		httpClient: httpClient,
	}
}

// Analyze runs one synchronous vision call. It does not retry.
func (a *Analyzer) Analyze(ctx context.Context, imageURL string) (models.ImageAnalysis, error) {
	if a == nil || a.models == nil {
		return models.ImageAnalysis{}, errors.New("ai: analyzer not configured")
	}

	data, mimeType, err := fetchImage(ctx, a.httpClient, imageURL)
	if err != nil {
		return models.ImageAnalysis{}, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(analysisPrompt),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}

	resp, err := a.models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.8),
	})
	if err != nil {
		return models.ImageAnalysis{}, fmt.Errorf("ai: analyze image: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return models.ImageAnalysis{}, errors.New("ai: empty analysis response")
	}

	return parseAnalysis(text)
}

// parseAnalysis decodes the model's JSON, tolerating a markdown code fence.
func parseAnalysis(text string) (models.ImageAnalysis, error) {
	payload := stripCodeFence(text)

	var analysis models.ImageAnalysis
	if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
		return models.ImageAnalysis{}, fmt.Errorf("ai: decode analysis: %w", err)
	}
	if len(analysis.Features) == 0 && analysis.CharacterStyle == "" {
		return models.ImageAnalysis{}, errors.New("ai: analysis response has no features")
	}

	analysis.CharacterStyle = strings.ToLower(strings.TrimSpace(analysis.CharacterStyle))
	if analysis.CharacterStyle == "" {
		analysis.CharacterStyle = models.StyleCartoon
	}
	analysis.RoastContent = strings.TrimSpace(analysis.RoastContent)

	return analysis, nil
}

func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.Index(trimmed, "\n"); newline >= 0 {
		trimmed = trimmed[newline+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
