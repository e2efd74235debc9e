package identity

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/vines90/mcp-prompt-server/internal/store"
)

type fakeUsers struct {
	byName map[string]store.User
}

func (f fakeUsers) UserByUsername(_ context.Context, name string) (store.User, error) {
	u, ok := f.byName[name]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f fakeUsers) UserByID(_ context.Context, id int64) (store.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func newUsers(t *testing.T) fakeUsers {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return fakeUsers{byName: map[string]store.User{
		"alice": {ID: 7, Username: "alice", PasswordHash: string(hash), Active: true},
		"bob":   {ID: 8, Username: "bob", PasswordHash: string(hash), Active: false},
	}}
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestResolve(t *testing.T) {
	t.Parallel()
	const secret = "test-secret-at-least-32-characters!!"
	r := NewResolver(newUsers(t), secret, quietLogger())
	future := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name    string
		token   string
		want    string
		wantErr error
	}{
		{name: "empty", token: "  ", want: ""},
		{name: "password", token: "alice:s3cret", want: "7"},
		{name: "wrong password", token: "alice:nope", wantErr: ErrInvalidToken},
		{name: "unknown user", token: "carol:s3cret", wantErr: ErrInvalidToken},
		{name: "inactive user", token: "bob:s3cret", wantErr: ErrInactiveUser},
		{name: "numeric id", token: "7", want: "7"},
		{name: "inactive id", token: "8", wantErr: ErrInactiveUser},
		{name: "missing id", token: "99", wantErr: ErrInvalidToken},
		{name: "garbage", token: "hello", wantErr: ErrInvalidToken},
		{name: "jwt user_id", token: signed(t, secret, jwt.MapClaims{"user_id": float64(7), "exp": future}), want: "7"},
		{name: "jwt sub", token: signed(t, secret, jwt.MapClaims{"sub": "team-42", "exp": future}), want: "team-42"},
		{name: "jwt inactive", token: signed(t, secret, jwt.MapClaims{"sub": "8"}), wantErr: ErrInactiveUser},
		{name: "jwt wrong key", token: signed(t, "another-secret-that-is-long-enough", jwt.MapClaims{"sub": "7"}), wantErr: ErrInvalidToken},
		{name: "jwt expired", token: signed(t, secret, jwt.MapClaims{"sub": "7", "exp": time.Now().Add(-time.Hour).Unix()}), wantErr: ErrInvalidToken},
		{name: "jwt no subject", token: signed(t, secret, jwt.MapClaims{"role": "admin"}), wantErr: ErrInvalidToken},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := r.Resolve(context.Background(), tc.token)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("Resolve() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolve_WithoutUserStore(t *testing.T) {
	t.Parallel()
	r := NewResolver(nil, "", quietLogger())
	if _, err := r.Resolve(context.Background(), "alice:s3cret"); !errors.Is(err, ErrNoUserStore) {
		t.Fatalf("password token error = %v, want ErrNoUserStore", err)
	}
	if _, err := r.Resolve(context.Background(), "7"); !errors.Is(err, ErrNoUserStore) {
		t.Fatalf("id token error = %v, want ErrNoUserStore", err)
	}
}
