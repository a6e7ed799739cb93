// Package pipeline turns a photo into a roast character: ingest, analyze,
// generate, finalize.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/josh-vincent/roast-me-characters-sub001/ai"
	"github.com/josh-vincent/roast-me-characters-sub001/auth"
	"github.com/josh-vincent/roast-me-characters-sub001/config"
	"github.com/josh-vincent/roast-me-characters-sub001/credits"
	"github.com/josh-vincent/roast-me-characters-sub001/models"
	"github.com/josh-vincent/roast-me-characters-sub001/storage"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Analyzer interface {
	Analyze(ctx context.Context, imageURL string) (models.ImageAnalysis, error)
}

type Generator interface {
	Generate(ctx context.Context, req ai.GenerationRequest) (ai.GenerationResult, error)
}

type Pipeline struct {
	db        *gorm.DB
	store     storage.Storage
	analyzer  Analyzer
	generator Generator
	ledger    *credits.Ledger
	cfg       config.Credits
}

func New(db *gorm.DB, store storage.Storage, analyzer Analyzer, generator Generator, ledger *credits.Ledger, cfg config.Credits) *Pipeline {
	return &Pipeline{
		db:        db,
		store:     store,
		analyzer:  analyzer,
		generator: generator,
		ledger:    ledger,
		cfg:       cfg,
	}
}

// AnalyzeOnly ingests the photo and runs the vision analysis without drawing
// a character.
func (p *Pipeline) AnalyzeOnly(ctx context.Context, in Input) (models.ImageAnalysis, *models.ImageUpload, error) {
	upload, err := p.Ingest(ctx, in)
	if err != nil {
		return models.ImageAnalysis{}, nil, err
	}

	analysis, err := p.analyze(ctx, upload)
	if err != nil {
		return models.ImageAnalysis{}, upload, err
	}
	return analysis, upload, nil
}

// Run executes the whole chain. A failed generation is recorded on the
// returned character rather than returned as an error.
func (p *Pipeline) Run(ctx context.Context, in Input) (*models.Character, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := p.checkCredits(ctx, in.Identity); err != nil {
		return nil, err
	}

	upload, err := p.Ingest(ctx, in)
	if err != nil {
		return nil, err
	}

	analysis, err := p.analyze(ctx, upload)
	if err != nil {
		return nil, err
	}

	userID, anonID := ownerColumns(in.Identity)
	character := &models.Character{
		UserID:           userID,
		AnonID:           anonID,
		ImageUploadID:    upload.ID,
		OriginalImageURL: upload.FileURL,
		GenerationParams: datatypes.NewJSONType(models.GenerationParams{
			ImageAnalysis: analysis,
			Status:        models.StatusProcessing,
		}),
		OGTitle:       ogTitle(analysis.RoastContent),
		OGDescription: ogDescription(analysis.RoastContent, analysis.CharacterStyle),
	}
	if err := p.db.WithContext(ctx).Create(character).Error; err != nil {
		return nil, NewError(KindPersistenceFailed, "Failed to save character", err)
	}

	outcome := p.generate(ctx, character)
	finalized, err := p.Finalize(context.WithoutCancel(ctx), character.ID, outcome)
	if err != nil {
		return nil, err
	}

	if outcome.failed() {
		slog.WarnContext(ctx, "character generation failed",
			"character_id", finalized.ID, "error", outcome.Err)
		return finalized, nil
	}

	p.charge(ctx, finalized)
	return finalized, nil
}

func (p *Pipeline) analyze(ctx context.Context, upload *models.ImageUpload) (models.ImageAnalysis, error) {
	analysis, err := p.analyzer.Analyze(ctx, upload.FileURL)
	if err != nil {
		p.setUploadStatus(ctx, upload, models.StatusFailed)
		return models.ImageAnalysis{}, NewError(KindAnalysisFailed, "Failed to analyze image", err)
	}
	p.setUploadStatus(ctx, upload, models.StatusCompleted)
	return analysis, nil
}

func (p *Pipeline) setUploadStatus(ctx context.Context, upload *models.ImageUpload, status string) {
	err := p.db.WithContext(context.WithoutCancel(ctx)).
		Model(upload).
		Update("status", status).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to update image status",
			"image_upload_id", upload.ID, "status", status, "error", err)
		return
	}
	upload.Status = status
}

func (p *Pipeline) generate(ctx context.Context, character *models.Character) Outcome {
	result, err := p.generator.Generate(ctx, ai.GenerationRequest{
		Analysis:         character.Params().ImageAnalysis,
		OriginalImageURL: character.OriginalImageURL,
		Scope:            ownerIdentity(character).Scope(),
	})
	if err != nil {
		return Outcome{Err: err, Prompt: result.Prompt}
	}
	return Outcome{ImageURL: result.ImageURL, Prompt: result.Prompt}
}

func (p *Pipeline) checkCredits(ctx context.Context, id auth.Identity) error {
	if !id.Verified() {
		if !p.cfg.AllowAnonymous {
			return NewError(KindUnauthorized, "Sign in to create a character", nil)
		}
		return nil
	}
	if p.ledger == nil || p.cfg.GenerationCost <= 0 {
		return nil
	}

	balance, err := p.ledger.Balance(ctx, id.UserID)
	if err != nil {
		return NewError(KindPersistenceFailed, "Failed to check credits", err)
	}
	if balance < p.cfg.GenerationCost {
		return NewError(KindInsufficientCredits, "Not enough credits to create a character", nil)
	}
	return nil
}

// charge debits a user-owned character once. Failures are logged; the image
// has already been delivered.
func (p *Pipeline) charge(ctx context.Context, character *models.Character) {
	if p.ledger == nil || !character.OwnedByUser() {
		return
	}

	charged, err := p.ledger.ChargeGeneration(context.WithoutCancel(ctx), *character.UserID, character.ID, p.cfg.GenerationCost)
	if err != nil {
		slog.ErrorContext(ctx, "failed to charge credits",
			"character_id", character.ID, "user_id", *character.UserID, "error", err)
		return
	}
	if charged {
		slog.InfoContext(ctx, "credits charged",
			"character_id", character.ID, "user_id", *character.UserID, "amount", p.cfg.GenerationCost)
	}
}

func ownerIdentity(c *models.Character) auth.Identity {
	var id auth.Identity
	if c.UserID != nil {
		id.UserID = *c.UserID
	}
	if c.AnonID != nil {
		id.AnonID = *c.AnonID
	}
	return id
}
