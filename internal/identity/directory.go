// Package identity resolves bearer credentials to caller identities.
//
// Tokens are HS256 JWTs whose subject is the numeric user ID and whose
// "role" claim names the user's role.  The signature and expiry are checked
// first; the user record is then read so that deactivated accounts and
// role changes take effect without waiting for tokens to expire.
package identity

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/model"
	"github.com/iliyamo/consultation-booking/internal/repository"
)

// Directory resolves an opaque bearer credential.
type Directory interface {
	Resolve(ctx context.Context, token string) (model.Identity, error)
}

// Claims is the JWT payload issued for a user.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type userLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// JWTDirectory verifies tokens with a shared secret and resolves the
// subject against the users table.
type JWTDirectory struct {
	secret []byte
	users  userLookup
	parser *jwt.Parser
}

// NewJWTDirectory returns a directory verifying tokens signed with secret.
func NewJWTDirectory(secret string, users *repository.UserRepo) *JWTDirectory {
	return newJWTDirectory(secret, users)
}

func newJWTDirectory(secret string, users userLookup) *JWTDirectory {
	return &JWTDirectory{
		secret: []byte(secret),
		users:  users,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Resolve implements Directory.  Every credential problem is an
// authentication error; only a store failure is a dependency error.
func (d *JWTDirectory) Resolve(ctx context.Context, raw string) (model.Identity, error) {
	if raw == "" {
		return model.Identity{}, apperr.New(apperr.ErrAuthentication, "missing bearer token")
	}
	var claims Claims
	_, err := d.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return d.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Identity{}, apperr.New(apperr.ErrAuthentication, "token expired")
		}
		return model.Identity{}, apperr.New(apperr.ErrAuthentication, "invalid token")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return model.Identity{}, apperr.New(apperr.ErrAuthentication, "invalid token subject")
	}

	u, err := d.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Identity{}, apperr.New(apperr.ErrAuthentication, "unknown user")
	}
	if err != nil {
		return model.Identity{}, apperr.Wrap(apperr.ErrDependency, err, "identity lookup failed")
	}
	if !u.IsActive {
		return model.Identity{}, apperr.New(apperr.ErrAuthentication, "account disabled")
	}
	if string(u.Role) != claims.Role {
		return model.Identity{}, apperr.New(apperr.ErrAuthentication, "token role is stale, sign in again")
	}
	return model.IdentityOf(u), nil
}
