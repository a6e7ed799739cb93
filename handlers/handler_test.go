package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-pkgz/auth/v2/token"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/josh-vincent/roast-me-characters-sub001/ai"
	"github.com/josh-vincent/roast-me-characters-sub001/auth"
	"github.com/josh-vincent/roast-me-characters-sub001/cache"
	"github.com/josh-vincent/roast-me-characters-sub001/config"
	"github.com/josh-vincent/roast-me-characters-sub001/credits"
	"github.com/josh-vincent/roast-me-characters-sub001/database/databasetest"
	handler "github.com/josh-vincent/roast-me-characters-sub001/handlers"
	"github.com/josh-vincent/roast-me-characters-sub001/health"
	"github.com/josh-vincent/roast-me-characters-sub001/middleware"
	"github.com/josh-vincent/roast-me-characters-sub001/models"
	"github.com/josh-vincent/roast-me-characters-sub001/pipeline"
	"github.com/josh-vincent/roast-me-characters-sub001/router"
	"github.com/josh-vincent/roast-me-characters-sub001/shortlink"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const anonKey = "anon-12345"

type fakeStorage struct{}

func (fakeStorage) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	return "https://storage.test/" + key, nil
}

func (fakeStorage) ListBuckets(context.Context) ([]string, error) {
	return []string{"roast"}, nil
}

type fakeAnalyzer struct{ err error }

func (a fakeAnalyzer) Analyze(context.Context, string) (models.ImageAnalysis, error) {
	if a.err != nil {
		return models.ImageAnalysis{}, a.err
	}
	return models.ImageAnalysis{
		CharacterStyle: models.StylePixar,
		Features:       []models.Feature{{Name: "chin", Value: "square", ExaggerationFactor: 2}},
		RoastContent:   "You look like a screensaver that gained sentience.",
	}, nil
}

type fakeGenerator struct {
	url string
	err error
}

func (g *fakeGenerator) Generate(context.Context, ai.GenerationRequest) (ai.GenerationResult, error) {
	if g.err != nil {
		return ai.GenerationResult{Prompt: "p"}, g.err
	}
	return ai.GenerationResult{ImageURL: g.url, Prompt: "p"}, nil
}

type env struct {
	app       *fiber.App
	db        *gorm.DB
	ledger    *credits.Ledger
	generator *fakeGenerator
	tokens    *token.Service
}

func newEnv(t *testing.T, checks ...health.Check) *env {
	t.Helper()

	cfg := config.Config{
		Environment: "test",
		BaseURL:     "https://roast.test",
		CORSOrigins: "*",
		Credits:     config.Credits{GenerationCost: 1, AllowAnonymous: true},
		Payment:     config.Payment{Provider: "stripe", TestPublishableKey: "pk_test_1"},
	}

	db := databasetest.New(t)
	ledger := credits.NewLedger(db)
	generator := &fakeGenerator{url: "https://cdn/gen1.png"}
	tokens := auth.NewTokenService("handler-test-secret")

	if len(checks) == 0 {
		checks = []health.Check{health.DatabaseCheck(db), health.StorageCheck(fakeStorage{}), health.CacheCheck(cache.NewMemory())}
	}

	h := handler.New(handler.Deps{
		DB:       db,
		Pipeline: pipeline.New(db, fakeStorage{}, fakeAnalyzer{}, generator, ledger, cfg.Credits),
		Links:    shortlink.NewService(db, cache.NewMemory(), cfg.BaseURL, time.Minute),
		Ledger:   ledger,
		Catalog:  credits.NewCatalog(cfg),
		Health:   health.NewChecker(cfg.Environment, time.Second, checks...),
	})

	return &env{
		app:       router.New(cfg, h, tokens),
		db:        db,
		ledger:    ledger,
		generator: generator,
		tokens:    tokens,
	}
}

func (e *env) bearer(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.tokens.Token(token.Claims{
		User: &token.User{ID: userID, Name: userID},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + tok
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	headers     map[string]string
}

func (e *env) do(t *testing.T, r request) (*http.Response, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(r.method, r.path, r.body)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", r.method, r.path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, body
}

func jsonRequest(method, path, body string, headers map[string]string) request {
	return request{method: method, path: path, body: strings.NewReader(body), contentType: fiber.MIMEApplicationJSON, headers: headers}
}

func anonHeaders() map[string]string {
	return map[string]string{middleware.AnonHeader: anonKey}
}

func (e *env) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func seedCharacter(t *testing.T, db *gorm.DB, status, userID string) *models.Character {
	t.Helper()
	character := &models.Character{
		OriginalImageURL: "https://example.com/a.jpg",
		GenerationParams: datatypes.NewJSONType(models.GenerationParams{
			ImageAnalysis: models.ImageAnalysis{CharacterStyle: models.StyleAnime},
			Status:        status,
			Error:         "upstream timeout",
		}),
	}
	if userID != "" {
		character.UserID = &userID
	} else {
		key := anonKey
		character.AnonID = &key
	}
	if err := db.Create(character).Error; err != nil {
		t.Fatalf("seed character: %v", err)
	}
	return character
}

func characterField(t *testing.T, body map[string]any, field string) any {
	t.Helper()
	character, ok := body["character"].(map[string]any)
	if !ok {
		t.Fatalf("no character in %v", body)
	}
	return character[field]
}

func characterStatus(t *testing.T, body map[string]any) string {
	t.Helper()
	params, _ := characterField(t, body, "generation_params").(map[string]any)
	status, _ := params["status"].(string)
	return status
}

func TestGenerate(t *testing.T) {
	t.Run("no image", func(t *testing.T) {
		e := newEnv(t)
		resp, body := e.do(t, jsonRequest(http.MethodPost, "/api/generate", `{}`, anonHeaders()))

		if resp.StatusCode != fiber.StatusBadRequest || body["error"] != "No image provided" || body["success"] != false {
			t.Errorf("status %d body %v", resp.StatusCode, body)
		}
		if n := e.count(t, &models.ImageUpload{}); n != 0 {
			t.Errorf("%d uploads written", n)
		}
	})

	t.Run("image url", func(t *testing.T) {
		e := newEnv(t)
		resp, body := e.do(t, jsonRequest(http.MethodPost, "/api/generate", `{"imageUrl":"https://example.com/a.jpg"}`, anonHeaders()))

		if resp.StatusCode != fiber.StatusOK || body["success"] != true {
			t.Fatalf("status %d body %v", resp.StatusCode, body)
		}
		if got := characterField(t, body, "generated_image_url"); got != "https://cdn/gen1.png" {
			t.Errorf("generated_image_url = %v", got)
		}
		if got := characterStatus(t, body); got != models.StatusCompleted {
			t.Errorf("status = %q", got)
		}
	})

	t.Run("form field", func(t *testing.T) {
		e := newEnv(t)
		resp, body := e.do(t, request{
			method:      http.MethodPost,
			path:        "/api/generate",
			body:        strings.NewReader("imageUrl=https%3A%2F%2Fexample.com%2Fa.jpg"),
			contentType: fiber.MIMEApplicationForm,
			headers:     anonHeaders(),
		})
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status %d body %v", resp.StatusCode, body)
		}
	})

	t.Run("generation failure", func(t *testing.T) {
		e := newEnv(t)
		e.generator.err = errors.New("ai: no image data found in response")

		resp, body := e.do(t, jsonRequest(http.MethodPost, "/api/generate", `{"imageUrl":"https://example.com/a.jpg"}`, anonHeaders()))
		if resp.StatusCode != fiber.StatusInternalServerError || body["success"] != false {
			t.Fatalf("status %d body %v", resp.StatusCode, body)
		}
		if got := characterStatus(t, body); got != models.StatusFailed {
			t.Errorf("status = %q", got)
		}
		if got := characterField(t, body, "generated_image_url"); got != nil {
			t.Errorf("generated_image_url = %v, want null", got)
		}
	})

	t.Run("insufficient credits", func(t *testing.T) {
		e := newEnv(t)
		resp, body := e.do(t, jsonRequest(http.MethodPost, "/api/generate", `{"imageUrl":"https://example.com/a.jpg"}`,
			map[string]string{"Authorization": e.bearer(t, "broke-user")}))

		if resp.StatusCode != fiber.StatusPaymentRequired {
			t.Fatalf("status %d body %v", resp.StatusCode, body)
		}
		if n := e.count(t, &models.ImageUpload{}); n != 0 {
			t.Errorf("%d uploads written", n)
		}
	})

	t.Run("no identity", func(t *testing.T) {
		e := newEnv(t)
		resp, _ := e.do(t, jsonRequest(http.MethodPost, "/api/generate", `{"imageUrl":"https://example.com/a.jpg"}`, nil))
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("status %d, want 400", resp.StatusCode)
		}
	})
}

func multipartImage(t *testing.T) (io.Reader, string) {
	t.Helper()

	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "selfie.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write(img.Bytes())
	_ = w.Close()
	return &body, w.FormDataContentType()
}

func TestAnalyzeImage(t *testing.T) {
	t.Run("multipart file", func(t *testing.T) {
		e := newEnv(t)
		payload, contentType := multipartImage(t)

		resp, body := e.do(t, request{method: http.MethodPost, path: "/api/analyze-image", body: payload, contentType: contentType, headers: anonHeaders()})
		if resp.StatusCode != fiber.StatusOK || body["success"] != true {
			t.Fatalf("status %d body %v", resp.StatusCode, body)
		}

		analysis, _ := body["analysis"].(map[string]any)
		if analysis["character_style"] != models.StylePixar {
			t.Errorf("analysis = %v", analysis)
		}
		record, _ := body["imageRecord"].(map[string]any)
		if record["status"] != models.StatusCompleted || record["mime_type"] != "image/png" || record["file_name"] != "selfie.png" {
			t.Errorf("imageRecord = %v", record)
		}
		fileURL, _ := record["file_url"].(string)
		if !strings.HasPrefix(fileURL, "https://storage.test/uploads/anon/"+anonKey+"/") {
			t.Errorf("file_url = %q", fileURL)
		}
		if n := e.count(t, &models.Character{}); n != 0 {
			t.Errorf("%d characters written", n)
		}
	})

	t.Run("no image", func(t *testing.T) {
		e := newEnv(t)
		resp, body := e.do(t, request{method: http.MethodPost, path: "/api/analyze-image", headers: anonHeaders()})
		if resp.StatusCode != fiber.StatusBadRequest || body["error"] != "No image provided" {
			t.Errorf("status %d body %v", resp.StatusCode, body)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		e := newEnv(t)
		resp, body := e.do(t, jsonRequest(http.MethodPost, "/api/analyze-image", `{"imageUrl":`, anonHeaders()))
		if resp.StatusCode != fiber.StatusBadRequest || body["error"] != "Invalid request body" {
			t.Errorf("status %d body %v", resp.StatusCode, body)
		}
	})
}

func TestRetryGeneration(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		e := newEnv(t)
		character := seedCharacter(t, e.db, models.StatusFailed, "")

		resp, body := e.do(t, jsonRequest(http.MethodPost, "/api/retry-generation", `{"characterId":"`+character.ID+`"}`, nil))
		if resp.StatusCode != fiber.StatusOK || body["success"] != true || body["imageUrl"] != "https://cdn/gen1.png" {
			t.Fatalf("status %d body %v", resp.StatusCode, body)
		}

		var stored models.Character
		e.db.First(&stored, "id = ?", character.ID)
		if stored.Status() != models.StatusCompleted {
			t.Errorf("stored status = %q", stored.Status())
		}
	})

	t.Run("upstream failure", func(t *testing.T) {
		e := newEnv(t)
		e.generator.err = errors.New("quota exceeded")
		character := seedCharacter(t, e.db, models.StatusFailed, "")

		resp, body := e.do(t, jsonRequest(http.MethodPost, "/api/retry-generation", `{"characterId":"`+character.ID+`"}`, nil))
		if resp.StatusCode != fiber.StatusInternalServerError || body["success"] != false {
			t.Fatalf("status %d body %v", resp.StatusCode, body)
		}
		if strings.Contains(body["error"].(string), "quota") {
			t.Errorf("upstream error leaked: %v", body["error"])
		}

		var stored models.Character
		e.db.First(&stored, "id = ?", character.ID)
		if stored.Params().Error != "quota exceeded" {
			t.Errorf("stored error = %q", stored.Params().Error)
		}
	})

	tests := []struct {
		name   string
		body   func(id string) string
		auth   string
		status int
	}{
		{"missing id", func(string) string { return `{}` }, "", fiber.StatusBadRequest},
		{"bad body", func(string) string { return `{"characterId":` }, "", fiber.StatusBadRequest},
		{"unknown character", func(string) string { return `{"characterId":"nope"}` }, "", fiber.StatusNotFound},
		{"other user", func(id string) string { return `{"characterId":"` + id + `"}` }, "intruder", fiber.StatusForbidden},
		{"anonymous caller on user character", func(id string) string { return `{"characterId":"` + id + `"}` }, "", fiber.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			character := seedCharacter(t, e.db, models.StatusFailed, "owner")

			headers := anonHeaders()
			if tt.auth != "" {
				headers["Authorization"] = e.bearer(t, tt.auth)
			}
			resp, body := e.do(t, jsonRequest(http.MethodPost, "/api/retry-generation", tt.body(character.ID), headers))
			if resp.StatusCode != tt.status || body["success"] != false || body["error"] == "" {
				t.Errorf("status %d body %v, want %d", resp.StatusCode, body, tt.status)
			}
		})
	}
}

func TestCharacterStatus(t *testing.T) {
	e := newEnv(t)
	character := seedCharacter(t, e.db, models.StatusProcessing, "")

	resp, body := e.do(t, request{method: http.MethodGet, path: "/api/character-status/" + character.ID})
	if resp.StatusCode != fiber.StatusOK || characterStatus(t, body) != models.StatusProcessing {
		t.Errorf("status %d body %v", resp.StatusCode, body)
	}

	resp, body = e.do(t, request{method: http.MethodGet, path: "/api/character-status/missing"})
	if resp.StatusCode != fiber.StatusNotFound || body["error"] != "Character not found" {
		t.Errorf("status %d body %v", resp.StatusCode, body)
	}
}

func TestShareAndRedirect(t *testing.T) {
	e := newEnv(t)
	character := seedCharacter(t, e.db, models.StatusCompleted, "")

	resp, _ := e.do(t, request{method: http.MethodGet, path: "/api/characters/" + character.ID})
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("private character visible: %d", resp.StatusCode)
	}

	resp, body := e.do(t, jsonRequest(http.MethodPost, "/api/characters/"+character.ID+"/share", `{"expiresInDays":7}`, anonHeaders()))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("share status %d body %v", resp.StatusCode, body)
	}
	code, _ := body["shortCode"].(string)
	if len(code) != shortlink.CodeLength || body["shortUrl"] != "https://roast.test/s/"+code {
		t.Fatalf("share body %v", body)
	}

	resp, body = e.do(t, request{method: http.MethodGet, path: "/api/characters/" + character.ID})
	if resp.StatusCode != fiber.StatusOK || characterField(t, body, "public") != true {
		t.Fatalf("public character: status %d body %v", resp.StatusCode, body)
	}

	for i := 0; i < 2; i++ {
		resp, _ = e.do(t, request{method: http.MethodGet, path: "/s/" + code})
		if resp.StatusCode != fiber.StatusFound || resp.Header.Get("Location") != "https://roast.test/character/"+character.ID {
			t.Fatalf("redirect %d: status %d location %q", i, resp.StatusCode, resp.Header.Get("Location"))
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	var link models.ShortURL
	var stored models.Character
	for time.Now().Before(deadline) {
		e.db.Where("short_code = ?", code).First(&link)
		e.db.First(&stored, "id = ?", character.ID)
		if link.ClickCount >= 2 && stored.ViewsCount >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if link.ClickCount < 2 {
		t.Errorf("click_count = %d, want 2", link.ClickCount)
	}
	if stored.ViewsCount < 1 {
		t.Errorf("views_count = %d, want >= 1", stored.ViewsCount)
	}
}

func TestRedirectCountsEachCodeSeparately(t *testing.T) {
	e := newEnv(t)
	for _, code := range []string{"AAAAAAA", "BBBBBBB"} {
		if err := e.db.Create(&models.ShortURL{ShortCode: code, OriginalURL: "https://roast.test/character/" + code}).Error; err != nil {
			t.Fatalf("seed %s: %v", code, err)
		}
	}

	// Hold the increments back until both requests have finished.
	err := e.db.Callback().Update().Before("gorm:update").Register("test:slow_update", func(*gorm.DB) {
		time.Sleep(150 * time.Millisecond)
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	for _, code := range []string{"AAAAAAA", "BBBBBBB"} {
		resp, _ := e.do(t, request{method: http.MethodGet, path: "/s/" + code})
		if resp.StatusCode != fiber.StatusFound {
			t.Fatalf("%s: status %d", code, resp.StatusCode)
		}
	}

	clicks := func(code string) int64 {
		var link models.ShortURL
		e.db.Where("short_code = ?", code).First(&link)
		return link.ClickCount
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && clicks("AAAAAAA")+clicks("BBBBBBB") < 2 {
		time.Sleep(20 * time.Millisecond)
	}
	if a, b := clicks("AAAAAAA"), clicks("BBBBBBB"); a != 1 || b != 1 {
		t.Errorf("click_count AAAAAAA=%d BBBBBBB=%d, want 1 and 1", a, b)
	}
}

func TestRedirectUnknownAndExpired(t *testing.T) {
	e := newEnv(t)
	past := time.Now().Add(-time.Hour)
	if err := e.db.Create(&models.ShortURL{ShortCode: "gone123", OriginalURL: "https://roast.test/character/x", ExpiresAt: &past}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		path   string
		status int
	}{
		{"/s/gone123", fiber.StatusGone},
		{"/s/nope123", fiber.StatusNotFound},
	}
	for _, tt := range tests {
		resp, _ := e.do(t, request{method: http.MethodGet, path: tt.path})
		if resp.StatusCode != tt.status || resp.Header.Get("Location") != shortlink.Home {
			t.Errorf("%s: status %d location %q", tt.path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}
}

func TestShareErrors(t *testing.T) {
	e := newEnv(t)
	character := seedCharacter(t, e.db, models.StatusCompleted, "owner")

	tests := []struct {
		name   string
		path   string
		body   string
		auth   string
		status int
	}{
		{"unknown character", "/api/characters/missing/share", `{}`, "owner", fiber.StatusNotFound},
		{"not the owner", "/api/characters/" + character.ID + "/share", `{}`, "intruder", fiber.StatusForbidden},
		{"negative expiry", "/api/characters/" + character.ID + "/share", `{"expiresInDays":-1}`, "owner", fiber.StatusBadRequest},
		{"owner", "/api/characters/" + character.ID + "/share", ``, "owner", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := e.do(t, jsonRequest(http.MethodPost, tt.path, tt.body, map[string]string{"Authorization": e.bearer(t, tt.auth)}))
			if resp.StatusCode != tt.status {
				t.Errorf("status %d body %v, want %d", resp.StatusCode, body, tt.status)
			}
		})
	}
}

func TestCredits(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, request{method: http.MethodGet, path: "/api/credits/packages"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("packages status %d", resp.StatusCode)
	}
	if packages, _ := body["packages"].([]any); len(packages) == 0 {
		t.Errorf("no packages in %v", body)
	}
	provider, _ := body["provider"].(map[string]any)
	if provider["mode"] != "test" || provider["publishable_key"] != "pk_test_1" {
		t.Errorf("provider = %v", provider)
	}

	resp, _ = e.do(t, request{method: http.MethodGet, path: "/api/credits/balance", headers: anonHeaders()})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("anonymous balance status %d, want 401", resp.StatusCode)
	}

	if err := e.ledger.Grant(context.Background(), "user-1", 15, models.CreditPurchase, "order-1"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	resp, body = e.do(t, request{method: http.MethodGet, path: "/api/credits/balance", headers: map[string]string{"Authorization": e.bearer(t, "user-1")}})
	if resp.StatusCode != fiber.StatusOK || body["balance"] != float64(15) {
		t.Errorf("balance status %d body %v", resp.StatusCode, body)
	}
}

func TestCreditPackage(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, request{method: http.MethodGet, path: "/api/credits/packages/popular"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status %d body %v", resp.StatusCode, body)
	}
	pkg, _ := body["package"].(map[string]any)
	if pkg["id"] != "popular" || pkg["credits"] != float64(15) {
		t.Errorf("package = %v", pkg)
	}

	resp, body = e.do(t, request{method: http.MethodGet, path: "/api/credits/packages/platinum"})
	if resp.StatusCode != fiber.StatusNotFound || body["error"] != "Credit package not found" {
		t.Errorf("status %d body %v", resp.StatusCode, body)
	}
}

func TestCreditHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if err := e.ledger.Grant(ctx, "user-1", 5, models.CreditPurchase, "order-1"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := e.ledger.ChargeGeneration(ctx, "user-1", "character-1", 1); err != nil {
		t.Fatalf("charge: %v", err)
	}
	if err := e.ledger.Grant(ctx, "user-2", 50, models.CreditPurchase, "order-2"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	resp, _ := e.do(t, request{method: http.MethodGet, path: "/api/credits/history", headers: anonHeaders()})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("anonymous history status %d, want 401", resp.StatusCode)
	}

	resp, body := e.do(t, request{method: http.MethodGet, path: "/api/credits/history", headers: map[string]string{"Authorization": e.bearer(t, "user-1")}})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status %d body %v", resp.StatusCode, body)
	}
	entries, _ := body["transactions"].([]any)
	if len(entries) != 2 {
		t.Fatalf("transactions = %v, want 2 entries for user-1", entries)
	}
	total := 0.0
	for _, entry := range entries {
		row, _ := entry.(map[string]any)
		if row["user_id"] != "user-1" {
			t.Errorf("foreign entry %v", row)
		}
		amount, _ := row["amount"].(float64)
		total += amount
	}
	if total != 4 {
		t.Errorf("amounts sum to %v, want 4", total)
	}

	resp, body = e.do(t, request{method: http.MethodGet, path: "/api/credits/history?limit=1", headers: map[string]string{"Authorization": e.bearer(t, "user-1")}})
	if entries, _ := body["transactions"].([]any); resp.StatusCode != fiber.StatusOK || len(entries) != 1 {
		t.Errorf("limited history status %d body %v", resp.StatusCode, body)
	}
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		e := newEnv(t)
		resp, body := e.do(t, request{method: http.MethodGet, path: "/api/health"})
		if resp.StatusCode != fiber.StatusOK || body["status"] != health.StatusHealthy || body["environment"] != "test" {
			t.Errorf("status %d body %v", resp.StatusCode, body)
		}
		checks, _ := body["checks"].(map[string]any)
		for _, name := range []string{"database", "storage", "cache"} {
			if _, ok := checks[name]; !ok {
				t.Errorf("check %q missing from %v", name, checks)
			}
		}
	})

	t.Run("stale session cookie", func(t *testing.T) {
		e := newEnv(t)
		req := request{method: http.MethodGet, path: "/api/health", headers: map[string]string{
			"Cookie": middleware.SessionCookie + "=expired.or.forged",
		}}
		resp, body := e.do(t, req)
		if resp.StatusCode != fiber.StatusOK || body["status"] != health.StatusHealthy {
			t.Errorf("status %d body %v", resp.StatusCode, body)
		}

		req.path = "/api/credits/packages"
		if resp, _ := e.do(t, req); resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("identity middleware skipped for %s: status %d", req.path, resp.StatusCode)
		}
	})

	t.Run("required dependency down", func(t *testing.T) {
		e := newEnv(t, health.Check{Name: "storage", Required: true, Run: func(context.Context) error {
			return errors.New("bucket unreachable")
		}})
		resp, body := e.do(t, request{method: http.MethodGet, path: "/api/health"})
		if resp.StatusCode != fiber.StatusServiceUnavailable || body["status"] != health.StatusUnhealthy {
			t.Errorf("status %d body %v", resp.StatusCode, body)
		}
	})
}
