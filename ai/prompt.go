package ai

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/josh-vincent/roast-me-characters-sub001/models"
)

const maxPromptFeatures = 5

var styleDirections = map[string]string{
	models.StyleCartoon:   "bold outlines, flat vibrant colors, classic Saturday-morning cartoon look",
	models.StyleRealistic: "photorealistic caricature, detailed skin texture, studio lighting",
	models.StyleAnime:     "Japanese anime style, cel-shaded, clean line art, expressive eyes",
	models.StylePixar:     "3D animated movie style, soft global illumination, glossy stylized materials",
}

var characterPrompt = template.Must(template.New("character").Parse(
	`Create a funny, exaggerated caricature character of the person in the reference photo.
Style: {{.Style}} ({{.Direction}}).
{{- if .Features}}
Exaggerate these features:
{{- range .Features}}
- {{.Name}}: {{.Value}} (exaggerate {{printf "%.1f" .ExaggerationFactor}}x)
{{- end}}
{{- end}}
{{- if .Traits}}
Personality to show in pose and expression: {{.Traits}}.
{{- end}}
{{- if .Color}}
Use {{.Color}} as the dominant color of the scene.
{{- end}}
Full body character, centered, plain background, no text, no watermark, safe for work.`))

type promptData struct {
	Style     string
	Direction string
	Features  []models.Feature
	Traits    string
	Color     string
}

// BuildPrompt turns an analysis into the image generation prompt. The most
// exaggerated features come first.
func BuildPrompt(analysis models.ImageAnalysis) (string, error) {
	style := analysis.CharacterStyle
	direction, ok := styleDirections[style]
	if !ok {
		style = models.StyleCartoon
		direction = styleDirections[style]
	}

	features := make([]models.Feature, 0, len(analysis.Features))
	for _, feature := range analysis.Features {
		if strings.TrimSpace(feature.Name) == "" {
			continue
		}
		features = append(features, feature)
	}
	sort.SliceStable(features, func(i, j int) bool {
		return features[i].ExaggerationFactor > features[j].ExaggerationFactor
	})
	if len(features) > maxPromptFeatures {
		features = features[:maxPromptFeatures]
	}

	data := promptData{
		Style:     style,
		Direction: direction,
		Features:  features,
		Traits:    strings.Join(analysis.PersonalityTraits, ", "),
		Color:     strings.TrimSpace(analysis.DominantColor),
	}

	var buf bytes.Buffer
	if err := characterPrompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("ai: render prompt: %w", err)
	}
	return buf.String(), nil
}
