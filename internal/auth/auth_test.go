package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"salon-loyalty-api/internal/apperr"
)

func TestPasswordRoundTrip(t *testing.T) {
	s := NewService("test-secret-0123456789", time.Hour, WithCost(bcrypt.MinCost))

	hash, err := s.HashPassword("admin123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !s.CheckPassword(hash, "admin123") {
		t.Error("Expected password to match")
	}
	if s.CheckPassword(hash, "admin124") {
		t.Error("Expected wrong password to fail")
	}
}

func TestTokenRoles(t *testing.T) {
	s := NewService("test-secret-0123456789", time.Hour)

	token, err := s.IssueToken("cust-1", RoleCustomer)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	claims, err := s.ParseToken(token, RoleCustomer)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if claims.Subject != "cust-1" {
		t.Errorf("Expected subject cust-1, got %s", claims.Subject)
	}

	if _, err := s.ParseToken(token, RoleBusiness); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected customer token to be rejected for business, got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)
	s := NewService("test-secret-0123456789", time.Hour, WithClock(func() time.Time { return now }))

	token, err := s.IssueToken("biz-1", RoleBusiness)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	now = now.Add(2 * time.Hour)
	_, err = s.ParseToken(token, RoleBusiness)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("Expected ErrExpiredToken, got %v", err)
	}
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Error("Expected expired token to match ErrUnauthorized")
	}
}

func TestTokenWrongSecret(t *testing.T) {
	a := NewService("secret-a-0123456789", time.Hour)
	b := NewService("secret-b-0123456789", time.Hour)

	token, _ := a.IssueToken("cust-1", RoleCustomer)
	if _, err := b.ParseToken(token, RoleCustomer); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}
