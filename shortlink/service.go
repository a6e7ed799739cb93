package shortlink

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/josh-vincent/roast-me-characters-sub001/auth"
	"github.com/josh-vincent/roast-me-characters-sub001/background"
	"github.com/josh-vincent/roast-me-characters-sub001/cache"
	"github.com/josh-vincent/roast-me-characters-sub001/models"
	"gorm.io/gorm"
)

const (
	CodeLength  = 7
	maxAttempts = 5
	alphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

var (
	ErrCharacterNotFound = errors.New("shortlink: character not found")
	ErrForbidden         = errors.New("shortlink: caller may not share this character")
	ErrCodeExhausted     = errors.New("shortlink: could not allocate a unique code")
)

var codePattern = regexp.MustCompile(`^[0-9A-Za-z]{1,16}$`)

type Service struct {
	db       *gorm.DB
	cache    cache.Store
	cacheTTL time.Duration
	baseURL  string
	now      func() time.Time
	newCode  func(length int) (string, error)
}

// NewService wires the short-link store. store may be nil to disable caching.
func NewService(db *gorm.DB, store cache.Store, baseURL string, cacheTTL time.Duration) *Service {
	return &Service{
		db:       db,
		cache:    store,
		cacheTTL: cacheTTL,
		baseURL:  baseURL,
		now:      time.Now,
		newCode:  generateCode,
	}
}

// URL is the public address of a short code.
func (s *Service) URL(code string) string {
	return s.baseURL + "/s/" + code
}

// CharacterURL is the page a character's short link points at.
func (s *Service) CharacterURL(characterID string) string {
	return s.baseURL + "/character/" + characterID
}

// Redirect resolves code and, for active links, counts the click without
// waiting for the write.
func (s *Service) Redirect(ctx context.Context, code string) Decision {
	link, err := s.Lookup(ctx, code)
	if err != nil {
		slog.ErrorContext(ctx, "short link lookup failed", "short_code", code, "error", err)
	}

	decision := Resolve(link, err, s.now())
	if decision.State == StateActive {
		s.recordClick(code)
	}
	return decision
}

// Lookup returns the link for code, or nil when none exists.
func (s *Service) Lookup(ctx context.Context, code string) (*models.ShortURL, error) {
	if !codePattern.MatchString(code) {
		return nil, nil
	}

	if link, ok := s.cached(ctx, code); ok {
		return link, nil
	}

	var link models.ShortURL
	err := s.db.WithContext(ctx).Where("short_code = ?", code).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("shortlink: lookup %q: %w", code, err)
	}

	s.store(ctx, &link)
	return &link, nil
}

func (s *Service) recordClick(code string) {
	code = strings.Clone(code)
	background.Go("short-link click", background.DefaultTimeout, func(ctx context.Context) error {
		return s.db.WithContext(ctx).
			Model(&models.ShortURL{}).
			Where("short_code = ?", code).
			UpdateColumn("click_count", gorm.Expr("click_count + ?", 1)).Error
	})
}

// Create shares a character: it is made public and gets a short code. A
// character that already has a live code keeps it.
func (s *Service) Create(ctx context.Context, characterID string, caller auth.Identity, ttl time.Duration) (*models.ShortURL, error) {
	var character models.Character
	err := s.db.WithContext(ctx).First(&character, "id = ?", characterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCharacterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("shortlink: load character: %w", err)
	}
	if !character.ManageableBy(caller.UserID) {
		return nil, ErrForbidden
	}

	if character.ShortCode != nil {
		existing, err := s.Lookup(ctx, *character.ShortCode)
		if err != nil {
			return nil, err
		}
		if existing != nil && !existing.Expired(s.now()) {
			if !character.Public {
				if err := s.db.WithContext(ctx).Model(&character).Update("public", true).Error; err != nil {
					return nil, fmt.Errorf("shortlink: publish character: %w", err)
				}
			}
			return existing, nil
		}
	}

	var expiresAt *time.Time
	if ttl > 0 {
		t := s.now().Add(ttl).UTC()
		expiresAt = &t
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := s.newCode(CodeLength)
		if err != nil {
			return nil, err
		}

		link := models.ShortURL{
			ShortCode:   code,
			OriginalURL: s.CharacterURL(character.ID),
			CharacterID: &character.ID,
			ExpiresAt:   expiresAt,
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
			return tx.Model(&character).Updates(map[string]any{
				"public":     true,
				"short_code": code,
			}).Error
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			slog.WarnContext(ctx, "short code collision, regenerating", "short_code", code, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("shortlink: create: %w", err)
		}
		return &link, nil
	}
	return nil, ErrCodeExhausted
}

func (s *Service) cached(ctx context.Context, code string) (*models.ShortURL, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, cacheKey(code))
	if err != nil {
		slog.WarnContext(ctx, "short link cache read failed", "cache", s.cache.Name(), "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var link models.ShortURL
	if err := json.Unmarshal(data, &link); err != nil {
		_ = s.cache.Delete(ctx, cacheKey(code))
		return nil, false
	}
	return &link, true
}

func (s *Service) store(ctx context.Context, link *models.ShortURL) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(link)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(link.ShortCode), data, s.cacheTTL); err != nil {
		slog.WarnContext(ctx, "short link cache write failed", "cache", s.cache.Name(), "error", err)
	}
}

func cacheKey(code string) string {
	return "shortlink:" + code
}

func generateCode(length int) (string, error) {
	limit := big.NewInt(int64(len(alphabet)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("shortlink: generate code: %w", err)
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}
