package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)
	c := NewInMemoryCache(func() time.Time { return now })
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Expected v, got %q %v", got, err)
	}

	now = now.Add(time.Minute)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound at expiry, got %v", err)
	}
}

func TestInMemoryCache_NonPositiveTTLIsNotStored(t *testing.T) {
	c := NewInMemoryCache(nil)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), 0)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestJSONHelpers(t *testing.T) {
	c := NewInMemoryCache(nil)
	ctx := context.Background()

	type payload struct {
		Code string `json:"code"`
	}
	if err := SetJSON(ctx, c, "p", payload{Code: "123456"}, time.Minute); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}
	var got payload
	if err := GetJSON(ctx, c, "p", &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if got.Code != "123456" {
		t.Errorf("Expected 123456, got %s", got.Code)
	}

	_ = c.Delete(ctx, "p")
	if err := GetJSON(ctx, c, "p", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}
