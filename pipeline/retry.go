package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/josh-vincent/roast-me-characters-sub001/auth"
	"github.com/josh-vincent/roast-me-characters-sub001/models"
)

// Retry runs generation again for an existing character with its stored
// analysis. The prior status is not checked.
func (p *Pipeline) Retry(ctx context.Context, characterID string, caller auth.Identity) (*models.Character, error) {
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return nil, NewError(KindInvalidInput, "Character ID is required", nil)
	}

	character, err := p.loadCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if !character.ManageableBy(caller.UserID) {
		return nil, NewError(KindForbidden, "You do not have access to this character", nil)
	}

	if character.Status() == models.StatusCompleted {
		slog.WarnContext(ctx, "retrying a completed character, its image will be replaced",
			"character_id", character.ID)
	}

	outcome := p.generate(ctx, character)
	finalized, err := p.Finalize(context.WithoutCancel(ctx), character.ID, outcome)
	if err != nil {
		return nil, err
	}
	if outcome.failed() {
		return finalized, NewError(KindRetryFailed, "Failed to regenerate character", outcome.Err)
	}

	p.charge(ctx, finalized)
	return finalized, nil
}
