package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/models"
)

var testNow = time.Date(2025, 10, 15, 9, 30, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test_database.db")
	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	return db, func() { db.Close() }
}

func newCustomer(phone string, points int) models.Customer {
	return models.Customer{
		ID:              uuid.New().String(),
		Phone:           phone,
		PasswordHash:    "hash",
		FirstName:       "Wanjiru",
		LastName:        "Kamau",
		TotalPoints:     points,
		AvailablePoints: points,
		JoinDate:        testNow,
		IsActive:        true,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
}

func newReward(points int, maxRedemptions *int) models.Reward {
	return models.Reward{
		ID:             uuid.New().String(),
		Title:          "Free Haircut",
		Description:    "Complimentary haircut",
		PointsRequired: points,
		Category:       models.CategoryFreeService,
		Value:          "Free haircut",
		IsActive:       true,
		MaxRedemptions: maxRedemptions,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
}

func TestInsertCustomer_DuplicatePhone(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := db.InsertCustomer(ctx, newCustomer("0700000001", 50)); err != nil {
		t.Fatalf("InsertCustomer failed: %v", err)
	}
	err := db.InsertCustomer(ctx, newCustomer("0700000001", 50))
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := db.GetCustomer(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCreditAndDebitPoints(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	c := newCustomer("0700000002", 0)
	if err := db.InsertCustomer(ctx, c); err != nil {
		t.Fatalf("InsertCustomer failed: %v", err)
	}

	if err := db.CreditPoints(ctx, c.ID, 30, testNow); err != nil {
		t.Fatalf("CreditPoints failed: %v", err)
	}
	if err := db.DebitPoints(ctx, c.ID, 20, testNow); err != nil {
		t.Fatalf("DebitPoints failed: %v", err)
	}

	err := db.DebitPoints(ctx, c.ID, 11, testNow)
	if !errors.Is(err, apperr.ErrInsufficientPoints) {
		t.Fatalf("Expected ErrInsufficientPoints, got %v", err)
	}

	got, err := db.GetCustomer(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	if got.TotalPoints != 30 || got.AvailablePoints != 10 {
		t.Errorf("Expected total 30 available 10, got %d/%d", got.TotalPoints, got.AvailablePoints)
	}

	if err := db.DebitPoints(ctx, "missing", 1, testNow); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing customer, got %v", err)
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	c := newCustomer("0700000003", 0)
	if err := db.InsertCustomer(ctx, c); err != nil {
		t.Fatalf("InsertCustomer failed: %v", err)
	}

	boom := errors.New("boom")
	err := db.WithinTx(ctx, func(ctx context.Context) error {
		if err := db.CreditPoints(ctx, c.ID, 10, testNow); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	got, err := db.GetCustomer(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	if got.TotalPoints != 0 {
		t.Errorf("Expected rollback to leave 0 points, got %d", got.TotalPoints)
	}
}

func TestConsumeRedemption_RespectsCap(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	one := 1
	r := newReward(100, &one)
	if err := db.InsertReward(ctx, r); err != nil {
		t.Fatalf("InsertReward failed: %v", err)
	}

	ok, err := db.ConsumeRedemption(ctx, r.ID, testNow)
	if err != nil || !ok {
		t.Fatalf("Expected first consumption to succeed, got %v %v", ok, err)
	}
	ok, err = db.ConsumeRedemption(ctx, r.ID, testNow)
	if err != nil || ok {
		t.Fatalf("Expected second consumption to be refused, got %v %v", ok, err)
	}

	got, err := db.GetReward(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetReward failed: %v", err)
	}
	if got.CurrentRedemptions != 1 {
		t.Errorf("Expected 1 redemption, got %d", got.CurrentRedemptions)
	}
	if got.MaxRedemptions == nil || *got.MaxRedemptions != 1 {
		t.Errorf("Expected max redemptions 1, got %v", got.MaxRedemptions)
	}
}

func TestConsumeRedemption_RespectsWindow(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	r := newReward(100, nil)
	from := testNow.Add(time.Hour)
	r.ValidFrom = &from
	if err := db.InsertReward(ctx, r); err != nil {
		t.Fatalf("InsertReward failed: %v", err)
	}

	if ok, _ := db.ConsumeRedemption(ctx, r.ID, testNow); ok {
		t.Error("Expected consumption before window to be refused")
	}
	if ok, _ := db.ConsumeRedemption(ctx, r.ID, from); !ok {
		t.Error("Expected consumption at window start to succeed")
	}
}

func TestCodes_CurrentUseAndExpire(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	code := models.CheckInCode{
		ID:        uuid.New().String(),
		QRCode:    "FADESBRAIDS_1760520600000_123456",
		DigitCode: "123456",
		ExpiresAt: testNow.Add(5 * time.Minute),
		IsActive:  true,
		CreatedAt: testNow,
	}
	if err := db.InsertCode(ctx, code); err != nil {
		t.Fatalf("InsertCode failed: %v", err)
	}

	dup := code
	dup.ID = uuid.New().String()
	dup.QRCode = "other"
	if err := db.InsertCode(ctx, dup); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate digit code, got %v", err)
	}

	current, ok, err := db.FindCurrentCode(ctx, testNow)
	if err != nil || !ok {
		t.Fatalf("Expected a current code, got %v %v", ok, err)
	}
	if current.DigitCode != "123456" || !current.ExpiresAt.Equal(code.ExpiresAt) {
		t.Errorf("Unexpected current code %+v", current)
	}

	for _, form := range []string{code.QRCode, code.DigitCode} {
		used, err := db.UseCode(ctx, form, testNow)
		if err != nil || !used {
			t.Errorf("Expected %s to be usable, got %v %v", form, used, err)
		}
	}

	if used, _ := db.UseCode(ctx, code.DigitCode, code.ExpiresAt); used {
		t.Error("Expected code to be unusable at its expiry instant")
	}

	current, _, _ = db.FindCurrentCode(ctx, testNow)
	if current.UsageCount != 2 {
		t.Errorf("Expected usage count 2, got %d", current.UsageCount)
	}

	n, err := db.DeleteExpiredCodes(ctx, code.ExpiresAt)
	if err != nil || n != 1 {
		t.Errorf("Expected 1 expired code deleted, got %d %v", n, err)
	}
}

func TestSearchCustomers(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	low := newCustomer("0711111111", 10)
	high := newCustomer("0722222222", 90)
	high.FirstName = "Achieng"
	inactive := newCustomer("0733333333", 500)
	inactive.IsActive = false
	for _, c := range []models.Customer{low, high, inactive} {
		if err := db.InsertCustomer(ctx, c); err != nil {
			t.Fatalf("InsertCustomer failed: %v", err)
		}
	}

	all, total, err := db.SearchCustomers(ctx, "", 20, 0)
	if err != nil {
		t.Fatalf("SearchCustomers failed: %v", err)
	}
	if total != 2 || len(all) != 2 || all[0].ID != high.ID {
		t.Errorf("Expected 2 active customers led by the top scorer, got %d %+v", total, all)
	}

	found, total, err := db.SearchCustomers(ctx, "achi", 20, 0)
	if err != nil {
		t.Fatalf("SearchCustomers failed: %v", err)
	}
	if total != 1 || found[0].ID != high.ID {
		t.Errorf("Expected search to find Achieng, got %+v", found)
	}
}

func TestClaimedRewards_SkipDeleted(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	c := newCustomer("0744444444", 500)
	kept := newReward(100, nil)
	gone := newReward(150, nil)
	if err := db.InsertCustomer(ctx, c); err != nil {
		t.Fatalf("InsertCustomer failed: %v", err)
	}
	for _, r := range []models.Reward{kept, gone} {
		if err := db.InsertReward(ctx, r); err != nil {
			t.Fatalf("InsertReward failed: %v", err)
		}
		rec := models.RedemptionRecord{
			ID:          uuid.New().String(),
			RewardID:    r.ID,
			RewardTitle: r.Title,
			RedeemedAt:  testNow,
			PointsUsed:  r.PointsRequired,
		}
		if err := db.InsertRedemption(ctx, c.ID, rec); err != nil {
			t.Fatalf("InsertRedemption failed: %v", err)
		}
	}
	if err := db.DeleteReward(ctx, gone.ID); err != nil {
		t.Fatalf("DeleteReward failed: %v", err)
	}

	claimed, err := db.ListClaimedRewards(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListClaimedRewards failed: %v", err)
	}
	if len(claimed) != 1 || claimed[0].Reward.ID != kept.ID {
		t.Errorf("Expected only the kept reward, got %+v", claimed)
	}

	history, err := db.ListRedemptions(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListRedemptions failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("Expected history to keep both records, got %d", len(history))
	}
}
