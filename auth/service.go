package auth

import (
	"regexp"
	"time"

	pkgzauth "github.com/go-pkgz/auth/v2"
	"github.com/go-pkgz/auth/v2/token"
)

const Issuer = "roast-me-characters"

var anonKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// Identity is the caller of a request. UserID comes from a verified bearer
// token; AnonID is an unauthenticated correlation key chosen by the client and
// must never be used for authorization.
type Identity struct {
	UserID string
	AnonID string
}

// Verified reports whether the caller presented a valid token.
func (i Identity) Verified() bool {
	return i.UserID != ""
}

func (i Identity) Empty() bool {
	return i.UserID == "" && i.AnonID == ""
}

// Scope is the storage prefix for objects created on behalf of the caller.
func (i Identity) Scope() string {
	if i.Verified() {
		return "users/" + i.UserID
	}
	if i.AnonID != "" {
		return "anon/" + i.AnonID
	}
	return "anon/unknown"
}

// ValidAnonKey reports whether a client supplied anonymous key is usable as a
// correlation key and storage path segment.
func ValidAnonKey(key string) bool {
	return anonKeyPattern.MatchString(key)
}

// NewTokenService builds the JWT verifier for tokens minted by the hosted auth
// provider with the shared secret.
func NewTokenService(secret string) *token.Service {
	options := pkgzauth.Opts{
		SecretReader: token.SecretFunc(func(aud string) (string, error) {
			return secret, nil
		}),
		TokenDuration:  time.Hour * 24,
		CookieDuration: time.Hour * 24 * 7,
		Issuer:         Issuer,
		DisableXSRF:    true,
	}

	return pkgzauth.NewService(options).TokenService()
}
