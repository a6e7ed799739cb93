package models

// Character styles the generator knows how to draw.
const (
	StyleCartoon   = "cartoon"
	StyleRealistic = "realistic"
	StyleAnime     = "anime"
	StylePixar     = "pixar"
)

// Feature is one facial or visual trait picked out by the vision model.
type Feature struct {
	Name               string  `json:"name"`
	Value              string  `json:"value"`
	Confidence         float64 `json:"confidence"`
	ExaggerationFactor float64 `json:"exaggeration_factor"`
}

// ImageAnalysis is the normalized vision response. RoastContent comes from the
// same call and drives the share metadata.
type ImageAnalysis struct {
	Features          []Feature `json:"features"`
	CharacterStyle    string    `json:"character_style"`
	DominantColor     string    `json:"dominant_color"`
	PersonalityTraits []string  `json:"personality_traits"`
	Gender            string    `json:"gender"`
	AgeRange          string    `json:"age_range"`
	RoastContent      string    `json:"roast_content"`
}

// GenerationParams is stored as JSON on the character row.
type GenerationParams struct {
	ImageAnalysis
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}
