// Package auth verifies bearer tokens and resolves them to live users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatroom/backend/internal/chaterr"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Identity is the verified caller.
type Identity struct {
	UserID string
	Email  string
}

// UserFinder looks users up by id.
type UserFinder interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Claims is the token payload: the user id and email at issue time.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens against the server secret and the user store.
type Verifier struct {
	secret []byte
	users  UserFinder
	parser *jwt.Parser
}

func NewVerifier(secret string, users UserFinder) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		users:  users,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify validates token and returns the identity it names. The embedded email
// must still match the user's current email.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, chaterr.ErrTokenMissing
	}

	var claims Claims
	_, err := v.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, chaterr.ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %w", chaterr.ErrTokenMalformed, err)
	}
	if claims.UserID == "" || claims.Email == "" {
		return Identity{}, fmt.Errorf("%w: missing id or email claim", chaterr.ErrTokenMalformed)
	}

	user, err := v.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, chaterr.ErrUserNotFound) {
			return Identity{}, chaterr.ErrUnknownUser
		}
		return Identity{}, err
	}
	if models.NormalizeEmail(user.Email) != models.NormalizeEmail(claims.Email) {
		return Identity{}, chaterr.ErrInvalidToken
	}

	return Identity{UserID: user.ID, Email: user.Email}, nil
}

// Sign issues a token for user valid for ttl. Token issuance belongs to the
// account service; this exists for the admin CLI and tests.
func Sign(secret string, user *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    config.TokenIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ExtractBearer returns the token from an "Authorization: Bearer <token>"
// header value.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", chaterr.ErrTokenMissing
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", chaterr.ErrTokenMalformed
	}
	return strings.TrimSpace(token), nil
}
