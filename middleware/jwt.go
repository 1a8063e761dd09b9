package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenCookie carries the bearer token for browser form posts.
const TokenCookie = "access_token"

// JWTAuth requires a valid HS256/HS384/HS512 token signed with secret. The
// token is read from the Authorization header, falling back to TokenCookie.
// An empty secret disables the check.
func JWTAuth(secret string) fiber.Handler {
	if secret == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))

	return func(c *fiber.Ctx) error {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		token, err := parser.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		if sub, err := token.Claims.GetSubject(); err == nil && sub != "" {
			c.Locals("user_id", sub)
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	auth := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.Cookies(TokenCookie)
}
