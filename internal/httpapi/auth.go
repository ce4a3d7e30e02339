package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"coins-catcher/internal/model"
)

const sessionKey = "session"

// Claims are the bearer token claims issued by the auth provider. Subject
// is the account id. Admin is advisory; the stored flag decides.
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

var errMissingToken = errors.New("missing bearer token")

// Authenticate verifies an HS256 bearer token and stores the Session in
// the request locals.
func Authenticate(secret []byte, issuer string) fiber.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *fiber.Ctx) error {
		sess, err := parseSession(parser, secret, c.Get(fiber.HeaderAuthorization))
		if err != nil {
			log.Debug().Err(err).Str("path", c.Path()).Msg("Rejected bearer token")
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or missing token")
		}
		c.Locals(sessionKey, sess)
		return c.Next()
	}
}

func parseSession(parser *jwt.Parser, secret []byte, header string) (model.Session, error) {
	if len(secret) == 0 {
		return model.Session{}, errors.New("no signing secret configured")
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return model.Session{}, errMissingToken
	}

	claims := &Claims{}
	if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return model.Session{}, err
	}
	if claims.Subject == "" {
		return model.Session{}, errors.New("token has no subject")
	}
	return model.Session{AccountID: claims.Subject, IsAdmin: claims.Admin}, nil
}

// SessionFrom returns the authenticated caller.
func SessionFrom(c *fiber.Ctx) model.Session {
	sess, _ := c.Locals(sessionKey).(model.Session)
	return sess
}

// IssueToken signs a token for accountID. Used by tests and local tooling.
func IssueToken(secret []byte, issuer, accountID string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
