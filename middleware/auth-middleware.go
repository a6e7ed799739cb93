package middleware

import (
	"strings"

	"github.com/go-pkgz/auth/v2/token"
	"github.com/gofiber/fiber/v2"
	"github.com/josh-vincent/roast-me-characters-sub001/auth"
)

const (
	identityKey   = "identity"
	AnonHeader    = "X-Anon-Id"
	AnonCookie    = "anon_id"
	SessionCookie = "JWT"
)

// IdentityMiddleware resolves the caller. A presented token must be valid;
// without one the request continues with the anonymous key, if any.
func IdentityMiddleware(tokens *token.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		var tokenStr string

		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			tokenStr = strings.TrimSpace(authHeader[7:])
		} else {
			tokenStr = c.Cookies(SessionCookie)
		}

		var identity auth.Identity
		if tokenStr != "" {
			claims, err := tokens.Parse(tokenStr)
			if err != nil || claims.User == nil || claims.User.ID == "" || tokens.IsExpired(claims) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid token",
				})
			}
			identity.UserID = claims.User.ID
			c.Locals("claims", claims)
		}

		anonID := c.Get(AnonHeader)
		if anonID == "" {
			anonID = c.Cookies(AnonCookie)
		}
		if auth.ValidAnonKey(anonID) {
			identity.AnonID = anonID
		}

		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// RequireUser rejects callers without a verified token.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !CurrentIdentity(c).Verified() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "You are not authorized!",
			})
		}
		return c.Next()
	}
}

// CurrentIdentity returns the identity resolved for this request.
func CurrentIdentity(c *fiber.Ctx) auth.Identity {
	identity, _ := c.Locals(identityKey).(auth.Identity)
	return identity
}
