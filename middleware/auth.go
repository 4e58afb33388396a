// middleware/auth.go - Whop User Token Verification
package middleware

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// UserTokenHeader carries the token Whop injects into embedded-app requests.
const UserTokenHeader = "x-whop-user-token"

// WhopAuth verifies the signed user token Whop attaches to requests from an
// embedded app. Verification never errors out of the request path: anything
// short of a valid token degrades to "unauthenticated".
type WhopAuth struct {
	appID     string
	publicKey *ecdsa.PublicKey
}

// NewWhopAuth builds a verifier for a given app id and ES256 public key.
func NewWhopAuth(appID string, publicKey *ecdsa.PublicKey) *WhopAuth {
	return &WhopAuth{appID: appID, publicKey: publicKey}
}

// NewWhopAuthFromEnv reads WHOP_APP_ID and the PEM-encoded
// WHOP_JWT_PUBLIC_KEY.
func NewWhopAuthFromEnv() (*WhopAuth, error) {
	appID := os.Getenv("WHOP_APP_ID")
	if appID == "" {
		return nil, errors.New("WHOP_APP_ID must be set")
	}

	pemKey := os.Getenv("WHOP_JWT_PUBLIC_KEY")
	if pemKey == "" {
		return nil, errors.New("WHOP_JWT_PUBLIC_KEY must be set")
	}

	key, err := parseECPublicKey([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("invalid WHOP_JWT_PUBLIC_KEY: %w", err)
	}

	return &WhopAuth{appID: appID, publicKey: key}, nil
}

// VerifyUserToken returns the authenticated Whop user id, or "" when the
// request carries no valid token.
func (a *WhopAuth) VerifyUserToken(c *fiber.Ctx) string {
	tokenString := c.Get(UserTokenHeader)
	if tokenString == "" {
		return ""
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.publicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}), jwt.WithAudience(a.appID))
	if err != nil || !token.Valid {
		return ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}

	userID, _ := claims["sub"].(string)
	return userID
}

// RequireUser is the route guard for authenticated endpoints. It stores the
// Whop user id in locals for handlers downstream.
func (a *WhopAuth) RequireUser(c *fiber.Ctx) error {
	userID := a.VerifyUserToken(c)
	if userID == "" {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}

	c.Locals("whopUserId", userID)
	return c.Next()
}

// GetWhopUserID reads the authenticated user id set by RequireUser.
func GetWhopUserID(c *fiber.Ctx) (string, error) {
	userID, ok := c.Locals("whopUserId").(string)
	if !ok || userID == "" {
		return "", fiber.NewError(401, "User not authenticated")
	}
	return userID, nil
}

func parseECPublicKey(pemBytes []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("not an ECDSA public key")
	}
	return key, nil
}
