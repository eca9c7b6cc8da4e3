// Package signing issues and verifies signed URLs for external players.
// A signed URL carries an HS256 JWT in the "jwt" query parameter whose
// "path" claim binds the exact path and query it was issued for.
package signing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// QueryParam is the query parameter carrying the token.
const QueryParam = "jwt"

var (
	// ErrEmptySecret is returned when a signer is created without a secret.
	ErrEmptySecret = errors.New("signing secret is empty")
	// ErrMissingToken is returned when a request carries no token.
	ErrMissingToken = errors.New("missing signature token")
	// ErrPathMismatch is returned when a token was issued for another URL.
	ErrPathMismatch = errors.New("signature does not match request path")
)

// Claims are the claims of a URL token.
type Claims struct {
	Path string `json:"path"`
	jwt.RegisteredClaims
}

// Signer signs and verifies URLs with a shared secret.
type Signer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewSigner creates a signer. An expiry of zero issues tokens that never expire.
func NewSigner(secret string, expiry time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Signer{secret: []byte(secret), expiry: expiry, now: time.Now}, nil
}

// GenerateSecret returns a random hex secret.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Expires returns the expiry of a token issued now, or the zero time when
// tokens do not expire.
func (s *Signer) Expires() time.Time {
	if s.expiry <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.expiry)
}

// SignURL appends a token bound to the URL's path and query. A zero expires
// issues a token without expiry.
func (s *Signer) SignURL(rawURL string, expires time.Time) (string, error) {
	return s.sign(rawURL, "", expires)
}

// ForUser returns a signer whose tokens name username as their subject.
func (s *Signer) ForUser(username string) *UserSigner {
	return &UserSigner{signer: s, username: username}
}

func (s *Signer) sign(rawURL, username string, expires time.Time) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	u.RawQuery = stripToken(u.RawQuery)

	claims := &Claims{
		Path: canonicalPath(u),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  username,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	if !expires.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expires)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing url: %w", err)
	}

	param := QueryParam + "=" + url.QueryEscape(token)
	if u.RawQuery == "" {
		u.RawQuery = param
	} else {
		u.RawQuery += "&" + param
	}
	return u.String(), nil
}

// Verify checks the token of a request against its path and query.
func (s *Signer) Verify(r *http.Request) (*Claims, error) {
	raw := r.URL.Query().Get(QueryParam)
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	u := *r.URL
	u.RawQuery = stripToken(u.RawQuery)
	if claims.Path != canonicalPath(&u) {
		return nil, ErrPathMismatch
	}
	return claims, nil
}

// UserSigner signs URLs on behalf of one user.
type UserSigner struct {
	signer   *Signer
	username string
}

// SignURL appends a token bound to the URL and the user.
func (u *UserSigner) SignURL(rawURL string, expires time.Time) (string, error) {
	return u.signer.sign(rawURL, u.username, expires)
}

func canonicalPath(u *url.URL) string {
	if u.RawQuery == "" {
		return u.EscapedPath()
	}
	return u.EscapedPath() + "?" + u.RawQuery
}

// stripToken removes every token parameter and keeps the others in order.
func stripToken(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		key, _, _ := strings.Cut(p, "=")
		if key == QueryParam {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "&")
}

type claimsKey struct{}

// ContextWithClaims returns a context carrying verified claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the verified claims of the request, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}
