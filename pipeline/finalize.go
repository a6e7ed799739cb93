package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/josh-vincent/roast-me-characters-sub001/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ogTitleLimit       = 60
	ogDescriptionLimit = 160
	defaultOGTitle     = "Roast Me Character"
)

// Outcome is the terminal result of a generation attempt: either an image URL
// or the error that stopped it. Prompt is recorded when known.
type Outcome struct {
	ImageURL string
	Err      error
	Prompt   string
}

func (o Outcome) failed() bool {
	return o.Err != nil
}

func (o Outcome) message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// appliedTo reports whether c already records this outcome.
func (o Outcome) appliedTo(c *models.Character) bool {
	params := c.Params()
	if o.failed() {
		return params.Status == models.StatusFailed &&
			params.Error == o.message() &&
			c.GeneratedImageURL == nil
	}
	return params.Status == models.StatusCompleted &&
		params.Error == "" &&
		c.GeneratedImageURL != nil &&
		*c.GeneratedImageURL == o.ImageURL
}

// Finalize writes the outcome of a generation attempt onto the character.
// Applying an outcome the character already records is a no-op.
func (p *Pipeline) Finalize(ctx context.Context, characterID string, outcome Outcome) (*models.Character, error) {
	if !outcome.failed() && outcome.ImageURL == "" {
		return nil, NewError(KindInvalidInput, "Outcome needs an image URL or an error", nil)
	}

	character, err := p.loadCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if outcome.appliedTo(character) {
		return character, nil
	}

	params := character.Params()
	if outcome.failed() {
		params.Status = models.StatusFailed
		params.Error = outcome.message()
		character.GeneratedImageURL = nil
	} else {
		imageURL := outcome.ImageURL
		params.Status = models.StatusCompleted
		params.Error = ""
		character.GeneratedImageURL = &imageURL
		character.OGTitle = ogTitle(params.RoastContent)
		character.OGDescription = ogDescription(params.RoastContent, params.CharacterStyle)
	}
	if outcome.Prompt != "" {
		params.Prompt = outcome.Prompt
	}
	character.GenerationParams = datatypes.NewJSONType(params)

	err = p.db.WithContext(ctx).
		Model(character).
		Select("generated_image_url", "generation_params", "og_title", "og_description", "updated_at").
		Updates(character).Error
	if err != nil {
		return nil, NewError(KindPersistenceFailed, "Failed to update character", err)
	}
	return character, nil
}

func (p *Pipeline) loadCharacter(ctx context.Context, id string) (*models.Character, error) {
	var character models.Character
	err := p.db.WithContext(ctx).First(&character, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewError(KindNotFound, "Character not found", err)
	}
	if err != nil {
		return nil, NewError(KindPersistenceFailed, "Failed to load character", err)
	}
	return &character, nil
}

// ogTitle is the first sentence of the roast.
func ogTitle(roast string) string {
	text := collapseSpace(roast)
	if text == "" {
		return defaultOGTitle
	}
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		text = text[:i+1]
	}
	return truncateRunes(text, ogTitleLimit)
}

func ogDescription(roast, style string) string {
	text := collapseSpace(roast)
	if text == "" {
		if style == "" {
			style = models.StyleCartoon
		}
		return fmt.Sprintf("An exaggerated %s character generated from a selfie. Get roasted at Roast Me Characters.", style)
	}
	return truncateRunes(text, ogDescriptionLimit)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes keeps at most limit runes, ending with an ellipsis when cut.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
