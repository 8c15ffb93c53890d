package checkin

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/cache"
	"salon-loyalty-api/internal/database"
	"salon-loyalty-api/internal/models"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)}
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test_checkin.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// countingStore wraps a real store, counts lookups and can fail inserts.
type countingStore struct {
	*database.DB
	finds          int
	inserts        int
	conflictsFirst int
}

func (s *countingStore) FindCurrentCode(ctx context.Context, now time.Time) (models.CheckInCode, bool, error) {
	s.finds++
	return s.DB.FindCurrentCode(ctx, now)
}

func (s *countingStore) InsertCode(ctx context.Context, code models.CheckInCode) error {
	s.inserts++
	if s.inserts <= s.conflictsFirst {
		return apperr.ErrConflict
	}
	return s.DB.InsertCode(ctx, code)
}

var qrPattern = regexp.MustCompile(`^FADESBRAIDS_\d+_[1-9]\d{5}$`)

func TestGetCurrentCode_ValidatesInBothForms(t *testing.T) {
	db := setupTestDB(t)
	clk := newClock()
	m := NewManager(db, Options{Clock: clk.Now, Logger: zerolog.Nop()})
	ctx := context.Background()

	code, err := m.GetCurrentCode(ctx)
	if err != nil {
		t.Fatalf("GetCurrentCode failed: %v", err)
	}
	if !qrPattern.MatchString(code.QRCode) || !strings.HasSuffix(code.QRCode, "_"+code.DigitCode) {
		t.Errorf("Unexpected code shape %q / %q", code.QRCode, code.DigitCode)
	}
	if !code.ExpiresAt.Equal(clk.Now().Add(DefaultWindow)) {
		t.Errorf("Expected expiry five minutes out, got %s", code.ExpiresAt)
	}

	clk.Advance(time.Minute)
	again, err := m.GetCurrentCode(ctx)
	if err != nil {
		t.Fatalf("GetCurrentCode failed: %v", err)
	}
	if again.ID != code.ID {
		t.Errorf("Expected the same code within the window, got %s and %s", code.ID, again.ID)
	}

	for _, form := range []string{code.QRCode, code.DigitCode, "  " + code.DigitCode + " "} {
		ok, err := m.ValidateCode(ctx, form)
		if err != nil {
			t.Fatalf("ValidateCode failed: %v", err)
		}
		if !ok {
			t.Errorf("Expected %q to validate", form)
		}
	}

	current, _, _ := db.FindCurrentCode(ctx, clk.Now())
	if current.UsageCount != 3 {
		t.Errorf("Expected usage count 3, got %d", current.UsageCount)
	}
	if !current.IsActive {
		t.Error("Validation must not deactivate the code")
	}
}

func TestGetCurrentCode_RotatesAfterExpiry(t *testing.T) {
	db := setupTestDB(t)
	clk := newClock()
	m := NewManager(db, Options{Clock: clk.Now, Logger: zerolog.Nop()})
	ctx := context.Background()

	first, err := m.GetCurrentCode(ctx)
	if err != nil {
		t.Fatalf("GetCurrentCode failed: %v", err)
	}

	clk.Advance(DefaultWindow)
	second, err := m.GetCurrentCode(ctx)
	if err != nil {
		t.Fatalf("GetCurrentCode failed: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("Expected a new code once the old one expired")
	}

	if ok, _ := m.ValidateCode(ctx, first.QRCode); ok {
		t.Error("Expected expired code to be rejected")
	}
	if ok, _ := m.ValidateCode(ctx, second.DigitCode); !ok {
		t.Error("Expected fresh code to validate")
	}
}

func TestValidateCode_ExpiredNeverMatches(t *testing.T) {
	db := setupTestDB(t)
	clk := newClock()
	m := NewManager(db, Options{Clock: clk.Now, Logger: zerolog.Nop()})
	ctx := context.Background()

	expired := models.CheckInCode{
		ID:        uuid.New().String(),
		QRCode:    "FADESBRAIDS_1760518799000_654321",
		DigitCode: "654321",
		ExpiresAt: clk.Now().Add(-time.Second),
		IsActive:  true,
		CreatedAt: clk.Now().Add(-5*time.Minute - time.Second),
	}
	if err := db.InsertCode(ctx, expired); err != nil {
		t.Fatalf("InsertCode failed: %v", err)
	}

	for _, form := range []string{expired.QRCode, expired.DigitCode} {
		ok, err := m.ValidateCode(ctx, form)
		if err != nil {
			t.Fatalf("ValidateCode failed: %v", err)
		}
		if ok {
			t.Errorf("Expected expired %q to be rejected", form)
		}
	}
}

func TestValidateCode_UnknownAndEmpty(t *testing.T) {
	db := setupTestDB(t)
	m := NewManager(db, Options{Clock: newClock().Now, Logger: zerolog.Nop()})
	ctx := context.Background()

	for _, input := range []string{"", "   ", "000000", "FADESBRAIDS_1_000000"} {
		ok, err := m.ValidateCode(ctx, input)
		if err != nil || ok {
			t.Errorf("Expected %q to be rejected, got %v %v", input, ok, err)
		}
	}
}

func TestGenerate_RetriesOnCollision(t *testing.T) {
	store := &countingStore{DB: setupTestDB(t), conflictsFirst: 2}
	m := NewManager(store, Options{Clock: newClock().Now, Logger: zerolog.Nop()})

	code, err := m.GetCurrentCode(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentCode failed: %v", err)
	}
	if store.inserts != 3 {
		t.Errorf("Expected 3 insert attempts, got %d", store.inserts)
	}
	if code.DigitCode == "" {
		t.Error("Expected a code after retrying")
	}
}

func TestGenerate_GivesUpAfterMaxAttempts(t *testing.T) {
	store := &countingStore{DB: setupTestDB(t), conflictsFirst: maxGenerateAttempts}
	m := NewManager(store, Options{Clock: newClock().Now, Logger: zerolog.Nop()})

	_, err := m.GetCurrentCode(context.Background())
	if !errors.Is(err, apperr.ErrStoreFailure) {
		t.Fatalf("Expected ErrStoreFailure, got %v", err)
	}
	if store.inserts != maxGenerateAttempts {
		t.Errorf("Expected %d attempts, got %d", maxGenerateAttempts, store.inserts)
	}
}

func TestGetCurrentCode_UsesCache(t *testing.T) {
	store := &countingStore{DB: setupTestDB(t)}
	clk := newClock()
	enabled := true
	m := NewManager(store, Options{
		Clock:        clk.Now,
		Logger:       zerolog.Nop(),
		Cache:        cache.NewInMemoryCache(clk.Now),
		CacheEnabled: func() bool { return enabled },
	})
	ctx := context.Background()

	first, err := m.GetCurrentCode(ctx)
	if err != nil {
		t.Fatalf("GetCurrentCode failed: %v", err)
	}
	second, err := m.GetCurrentCode(ctx)
	if err != nil {
		t.Fatalf("GetCurrentCode failed: %v", err)
	}
	if first.ID != second.ID || store.finds != 1 {
		t.Errorf("Expected second call served from cache, finds=%d", store.finds)
	}

	enabled = false
	if _, err := m.GetCurrentCode(ctx); err != nil {
		t.Fatalf("GetCurrentCode failed: %v", err)
	}
	if store.finds != 2 {
		t.Errorf("Expected store lookup with cache disabled, finds=%d", store.finds)
	}

	enabled = true
	clk.Advance(DefaultWindow)
	third, err := m.GetCurrentCode(ctx)
	if err != nil {
		t.Fatalf("GetCurrentCode failed: %v", err)
	}
	if third.ID == first.ID {
		t.Error("Expected cached code to lapse at expiry")
	}
}

func TestJanitor_SweepDeletesExpired(t *testing.T) {
	db := setupTestDB(t)
	clk := newClock()
	m := NewManager(db, Options{Clock: clk.Now, Logger: zerolog.Nop()})
	ctx := context.Background()

	if _, err := m.GetCurrentCode(ctx); err != nil {
		t.Fatalf("GetCurrentCode failed: %v", err)
	}

	j := NewJanitor(db, time.Minute, clk.Now, zerolog.Nop(), nil)
	if n, err := j.Sweep(ctx); err != nil || n != 0 {
		t.Fatalf("Expected nothing to sweep, got %d %v", n, err)
	}

	clk.Advance(DefaultWindow)
	if n, err := j.Sweep(ctx); err != nil || n != 1 {
		t.Fatalf("Expected one expired code swept, got %d %v", n, err)
	}
}

func TestJanitor_StartStop(t *testing.T) {
	j := NewJanitor(setupTestDB(t), 10*time.Millisecond, nil, zerolog.Nop(), nil)
	j.Start()
	time.Sleep(25 * time.Millisecond)
	j.Stop()
}
