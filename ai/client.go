package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/josh-vincent/roast-me-characters-sub001/config"
	"google.golang.org/genai"
)

const maxFetchBytes int64 = 10 * 1024 * 1024

// ContentGenerator is the slice of the Gemini API this package needs.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewClient creates the Gemini client shared by the analyzer and generator.
func NewClient(ctx context.Context, cfg config.AI) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: create genai client: %w", err)
	}
	return client, nil
}

// NewHTTPClient is used to download images handed to the models.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// fetchImage downloads an image and returns its bytes and MIME type.
func fetchImage(ctx context.Context, client *http.Client, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("ai: create image request: %w", err)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("ai: fetch image: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("ai: fetch image: received status code %d", res.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxFetchBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("ai: read image: %w", err)
	}
	if int64(len(data)) > maxFetchBytes {
		return nil, "", fmt.Errorf("ai: image exceeds %d bytes", maxFetchBytes)
	}
	if len(data) == 0 {
		return nil, "", errors.New("ai: image is empty")
	}

	contentType := strings.TrimSpace(res.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", errors.New("ai: URL does not point to an image")
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}

	return data, contentType, nil
}

// responseParts returns the parts of the first candidate.
func responseParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return nil
	}
	return candidate.Content.Parts
}

func responseText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, part := range responseParts(resp) {
		if part != nil && part.Text != "" {
			builder.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(builder.String())
}
