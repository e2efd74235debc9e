package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/vines90/mcp-prompt-server/internal/store"
)

var (
	// ErrInvalidToken means the owner token could not be verified.
	ErrInvalidToken = errors.New("invalid owner token")
	// ErrInactiveUser means the token names a disabled account.
	ErrInactiveUser = errors.New("user is not active")
	// ErrNoUserStore means the token format needs a user table that is not
	// available for the configured backend.
	ErrNoUserStore = errors.New("owner token requires the sql backend")
)

// UserLookup reads accounts from the relational store.
type UserLookup interface {
	UserByUsername(ctx context.Context, username string) (store.User, error)
	UserByID(ctx context.Context, id int64) (store.User, error)
}

// Resolver turns a configured owner token into the user id the catalog is
// built for. Accepted formats are "username:password", a numeric user id and
// an HS256 JWT carrying "sub" or "user_id".
type Resolver struct {
	users     UserLookup
	jwtSecret []byte
	logger    *log.Logger
}

// NewResolver creates a resolver. users may be nil, in which case only JWTs
// are accepted.
func NewResolver(users UserLookup, jwtSecret string, logger *log.Logger) *Resolver {
	return &Resolver{users: users, jwtSecret: []byte(jwtSecret), logger: logger}
}

// Resolve returns the owner id for token. An empty token resolves to the
// empty owner, meaning the public catalog.
func (r *Resolver) Resolve(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	switch {
	case token == "":
		return "", nil
	case strings.Count(token, ".") == 2 && len(r.jwtSecret) > 0:
		return r.fromJWT(ctx, token)
	case strings.Contains(token, ":"):
		user, pass, _ := strings.Cut(token, ":")
		return r.fromPassword(ctx, user, pass)
	default:
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return "", fmt.Errorf("unrecognized owner token format: %w", ErrInvalidToken)
		}
		return r.fromID(ctx, id)
	}
}

func (r *Resolver) fromPassword(ctx context.Context, username, password string) (string, error) {
	if r.users == nil {
		return "", ErrNoUserStore
	}
	u, err := r.users.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("user %q: %w", username, ErrInvalidToken)
		}
		return "", err
	}
	if !u.Active {
		return "", fmt.Errorf("user %q: %w", username, ErrInactiveUser)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("user %q: %w", username, ErrInvalidToken)
	}
	r.logger.Debug("owner resolved from password", "user", u.Username, "id", u.ID)
	return u.OwnerID(), nil
}

func (r *Resolver) fromID(ctx context.Context, id int64) (string, error) {
	if r.users == nil {
		return "", ErrNoUserStore
	}
	u, err := r.users.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("user %d: %w", id, ErrInvalidToken)
		}
		return "", err
	}
	if !u.Active {
		return "", fmt.Errorf("user %d: %w", id, ErrInactiveUser)
	}
	return u.OwnerID(), nil
}

func (r *Resolver) fromJWT(ctx context.Context, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		return r.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse owner jwt: %v: %w", err, ErrInvalidToken)
	}
	claims, ok := parsed.Claims.(*jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}

	owner := claimString(*claims, "user_id")
	if owner == "" {
		owner = claimString(*claims, "sub")
	}
	if owner == "" {
		return "", fmt.Errorf("jwt has no sub or user_id claim: %w", ErrInvalidToken)
	}

	// A numeric subject names a row in the user table; check it is active
	// when the table is available.
	if id, err := strconv.ParseInt(owner, 10, 64); err == nil && r.users != nil {
		return r.fromID(ctx, id)
	}
	return owner, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
