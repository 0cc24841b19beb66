// internal/auth/guest.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName holds the signed guest token.
const CookieName = "guest_token"

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid guest token")

// Guests issues and verifies guest tokens. A guest token only ties the tabs
// of one browser together; it carries no account and grants nothing.
type Guests struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

// NewGuests generates a fresh ed25519 key pair. Tokens issued by a previous
// process stop verifying, which only means browsers get a new guest id.
// A ttl of 0 issues tokens without expiry.
func NewGuests(ttl time.Duration, secure bool) (*Guests, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Guests{privateKey: priv, publicKey: pub, ttl: ttl, secure: secure, now: time.Now}, nil
}

// NewGuestsFromFile reads an ed25519 private key, either the 32 byte seed or
// the 64 byte expanded form.
func NewGuestsFromFile(path string, ttl time.Duration, secure bool) (*Guests, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read guest key file: %w", err)
	}
	var priv ed25519.PrivateKey
	switch len(data) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(data)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(data)
	default:
		return nil, fmt.Errorf("guest key file %s: unexpected key size %d", path, len(data))
	}
	return &Guests{
		privateKey: priv,
		publicKey:  priv.Public().(ed25519.PublicKey),
		ttl:        ttl,
		secure:     secure,
		now:        time.Now,
	}, nil
}

// Issue signs a token with "sub" = guestID.
func (g *Guests) Issue(guestID uuid.UUID) (string, error) {
	now := g.now()
	claims := jwt.RegisteredClaims{
		Subject:  guestID.String(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if g.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(g.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(g.privateKey)
}

// Verify checks a token and returns its guest id.
func (g *Guests) Verify(tokenString string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.publicKey, nil
	}, jwt.WithTimeFunc(g.now))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}

// Identify returns the guest id carried by the request's cookie. Requests
// without a valid cookie get a new id and a Set-Cookie header, so it must be
// called before the response is written.
func (g *Guests) Identify(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	if c, err := r.Cookie(CookieName); err == nil {
		if id, err := g.Verify(c.Value); err == nil {
			return id, nil
		}
	}

	id := uuid.New()
	token, err := g.Issue(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to issue guest token: %w", err)
	}
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if g.ttl > 0 {
		cookie.MaxAge = int(g.ttl.Seconds())
	}
	http.SetCookie(w, cookie)
	return id, nil
}
