package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort               = "3000"
	DefaultBaseURL            = "http://localhost:3000"
	DefaultAnalysisModel      = "gemini-2.5-flash"
	DefaultImageModel         = "gemini-2.5-flash-image-preview"
	DefaultAITimeout          = 90 * time.Second
	DefaultGenerationInterval = 2 * time.Second
	DefaultGenerationBurst    = 2
	DefaultShortLinkCacheTTL  = 10 * time.Minute
	DefaultGenerationCost     = 1
)

// Config is built once at start-up and handed to every component.
type Config struct {
	Environment string
	Port        string
	BaseURL     string
	CORSOrigins string

	Database Database
	Storage  Storage
	AI       AI
	Redis    Redis
	Credits  Credits
	Payment  Payment

	JWTSecret         string
	ShortLinkCacheTTL time.Duration
}

type Database struct {
	Driver string
	URL    string
}

type Storage struct {
	Driver         string // gcs or minio
	Bucket         string
	PublicURL      string
	GCSProjectID   string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
}

type AI struct {
	APIKey             string
	AnalysisModel      string
	ImageModel         string
	Timeout            time.Duration
	GenerationInterval time.Duration
	GenerationBurst    int
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Credits struct {
	GenerationCost int
	AllowAnonymous bool
}

type Payment struct {
	Provider           string
	TestPublishableKey string
	LivePublishableKey string
}

// IsProduction reports whether the service runs against live credentials.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: could not load .env file", "error", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	r := reader{lookup: lookup}

	cfg := Config{
		Environment: r.str("APP_ENV", "development"),
		Port:        r.str("PORT", DefaultPort),
		BaseURL:     strings.TrimRight(r.str("PUBLIC_BASE_URL", DefaultBaseURL), "/"),
		CORSOrigins: r.str("CORS_ORIGINS", "*"),
		Database: Database{
			Driver: r.str("DATABASE_DRIVER", ""),
			URL:    r.required("DATABASE_URL"),
		},
		Storage: Storage{
			Driver:         strings.ToLower(r.str("STORAGE_DRIVER", "gcs")),
			Bucket:         r.required("STORAGE_BUCKET"),
			PublicURL:      strings.TrimRight(r.str("STORAGE_PUBLIC_URL", ""), "/"),
			GCSProjectID:   r.str("GCS_PROJECT_ID", ""),
			MinioEndpoint:  r.str("MINIO_ENDPOINT", ""),
			MinioAccessKey: r.str("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: r.str("MINIO_SECRET_KEY", ""),
			MinioUseSSL:    r.boolean("MINIO_USE_SSL", false),
		},
		AI: AI{
			APIKey:             r.required("GEMINI_API_KEY"),
			AnalysisModel:      r.str("ANALYSIS_MODEL", DefaultAnalysisModel),
			ImageModel:         r.str("IMAGE_MODEL", DefaultImageModel),
			Timeout:            r.duration("AI_TIMEOUT", DefaultAITimeout),
			GenerationInterval: r.duration("GENERATION_INTERVAL", DefaultGenerationInterval),
			GenerationBurst:    r.integer("GENERATION_BURST", DefaultGenerationBurst),
		},
		Redis: Redis{
			Addr:     r.str("REDIS_ADDR", ""),
			Password: r.str("REDIS_PASSWORD", ""),
			DB:       r.integer("REDIS_DB", 0),
		},
		Credits: Credits{
			GenerationCost: r.integer("GENERATION_COST", DefaultGenerationCost),
			AllowAnonymous: r.boolean("ALLOW_ANONYMOUS", true),
		},
		Payment: Payment{
			Provider:           r.str("PAYMENT_PROVIDER", "stripe"),
			TestPublishableKey: r.str("PAYMENT_PUBLISHABLE_KEY_TEST", ""),
			LivePublishableKey: r.str("PAYMENT_PUBLISHABLE_KEY_LIVE", ""),
		},
		JWTSecret:         r.required("JWT_SECRET"),
		ShortLinkCacheTTL: r.duration("SHORTLINK_CACHE_TTL", DefaultShortLinkCacheTTL),
	}

	switch cfg.Storage.Driver {
	case "gcs":
		if cfg.Storage.GCSProjectID == "" {
			r.errs = append(r.errs, errors.New("GCS_PROJECT_ID not set"))
		}
	case "minio":
		if cfg.Storage.MinioEndpoint == "" || cfg.Storage.MinioAccessKey == "" || cfg.Storage.MinioSecretKey == "" {
			r.errs = append(r.errs, errors.New("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio driver"))
		}
	default:
		r.errs = append(r.errs, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.Storage.Driver))
	}

	if cfg.Credits.GenerationCost < 0 {
		r.errs = append(r.errs, errors.New("GENERATION_COST must not be negative"))
	}

	if len(r.errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(r.errs...))
	}
	return cfg, nil
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) raw(key string) string {
	value, _ := r.lookup(key)
	return strings.TrimSpace(value)
}

func (r *reader) str(key, fallback string) string {
	if value := r.raw(key); value != "" {
		return value
	}
	return fallback
}

func (r *reader) required(key string) string {
	value := r.raw(key)
	if value == "" {
		r.errs = append(r.errs, fmt.Errorf("%s not set", key))
	}
	return value
}

func (r *reader) integer(key string, fallback int) int {
	value := r.raw(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return fallback
	}
	return parsed
}

func (r *reader) boolean(key string, fallback bool) bool {
	value := r.raw(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, value))
		return fallback
	}
	return parsed
}

func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	value := r.raw(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return fallback
	}
	return parsed
}
