package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-club-go/pkg/utilities"
)

const issuer = "club-api"

var ErrInvalidToken = errors.New("invalid session token")

type Config struct {
	Secret []byte
	TTL    time.Duration
}

// ConfigFromEnv reads SESSION_SECRET and SESSION_TTL. Without a secret a
// random key is generated, so tokens do not survive a restart.
func ConfigFromEnv() (Config, error) {
	cfg := Config{Secret: []byte(os.Getenv("SESSION_SECRET")), TTL: 12 * time.Hour}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse SESSION_TTL: %w", err)
		}
		cfg.TTL = d
	}
	if len(cfg.Secret) == 0 {
		cfg.Secret = make([]byte, 32)
		if _, err := rand.Read(cfg.Secret); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// Claims identify a logged-in member.
type Claims struct {
	Administrator bool `json:"adm"`
	jwt.RegisteredClaims
}

// MemberID parses the subject back into a member id.
func (c *Claims) MemberID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// Service signs and verifies HS256 session tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(cfg Config) *Service {
	return &Service{secret: cfg.Secret, ttl: cfg.TTL, now: time.Now}
}

// Issue signs a token for the member.
func (s *Service) Issue(memberID int64, administrator bool) (string, error) {
	now := s.now()
	claims := Claims{
		Administrator: administrator,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(memberID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        utilities.NewKSUID(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies signature, issuer and expiry.
func (s *Service) Parse(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.MemberID() <= 0 {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

type ctxKey struct{}

// FromContext returns the claims stored by Middleware, if any.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}

// WithClaims stores claims on ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// Middleware attaches the claims of a valid bearer token to the request.
// Requests without a valid token pass through anonymous; handlers decide
// what needs a session.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if ok && raw != "" {
			if claims, err := s.Parse(raw); err == nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}
