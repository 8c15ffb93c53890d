package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"salon-loyalty-api/internal/apperr"
)

// Role tags the kind of party a token was issued to.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleBusiness Role = "business"
)

// DefaultCost is the bcrypt work factor used outside tests.
const DefaultCost = 12

// Token validation errors. Both match apperr.ErrUnauthorized.
var (
	ErrInvalidToken = fmt.Errorf("invalid token: %w", apperr.ErrUnauthorized)
	ErrExpiredToken = fmt.Errorf("token expired: %w", apperr.ErrUnauthorized)
)

// Claims is the JWT payload: the subject id plus its role.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Service hashes passwords and issues session tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithCost overrides the bcrypt cost.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock overrides the clock used for issuing and checking tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a credential service signing with secret.
func NewService(secret string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		secret: []byte(secret),
		ttl:    ttl,
		cost:   DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the token lifetime, which also bounds the session cookie.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// HashPassword hashes a plaintext password using bcrypt.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
func (s *Service) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken signs a token for subject with the given role.
func (s *Service) IssueToken(subject string, role Role) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and requires it to carry role.
func (s *Service) ParseToken(tokenString string, role Role) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.Role != role {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
