package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/models"
	"salon-loyalty-api/internal/validation"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100

	// DefaultAwardReason is recorded when a manual award carries no reason.
	DefaultAwardReason = "Manual point award by business"
)

// Store is the customer and visit persistence the ledger needs. Calls made
// with the context handed to WithinTx's callback join that transaction.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	InsertCustomer(ctx context.Context, c models.Customer) error
	GetCustomer(ctx context.Context, id string) (models.Customer, error)
	CreditPoints(ctx context.Context, id string, amount int, now time.Time) error
	DebitPoints(ctx context.Context, id string, amount int, now time.Time) error
	TouchVisit(ctx context.Context, id string, visitDate time.Time) error
	InsertVisit(ctx context.Context, v models.Visit) error
	InsertRedemption(ctx context.Context, customerID string, rec models.RedemptionRecord) error
	ListVisits(ctx context.Context, customerID string, limit, offset int) ([]models.Visit, int, error)
	ListClaimedRewards(ctx context.Context, customerID string) ([]models.ClaimedReward, error)
}

// Catalog is the slice of the reward catalog redemption relies on.
type Catalog interface {
	Get(ctx context.Context, id string) (models.Reward, error)
	IsAvailable(r models.Reward) bool
	ConsumeRedemption(ctx context.Context, rewardID string) error
}

// Ledger keeps customer balances and visit counts. Available points never
// go negative and never exceed lifetime points.
type Ledger struct {
	store   Store
	catalog Catalog
	now     func() time.Time
	logger  zerolog.Logger
}

// New creates a ledger. A nil clock means time.Now.
func New(store Store, catalog Catalog, clock func() time.Time, logger zerolog.Logger) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{store: store, catalog: catalog, now: clock, logger: logger}
}

// CreditPoints adds amount to both the lifetime and the spendable balance.
func (l *Ledger) CreditPoints(ctx context.Context, customerID string, amount int) error {
	if err := validation.ValidatePoints(amount, "points"); err != nil {
		return err
	}
	return l.store.CreditPoints(ctx, customerID, amount, l.now())
}

// DebitPoints subtracts amount from the spendable balance. It fails with
// apperr.ErrInsufficientPoints, changing nothing, when the balance is short.
// Lifetime points are never reduced.
func (l *Ledger) DebitPoints(ctx context.Context, customerID string, amount int) error {
	if err := validation.ValidatePoints(amount, "points"); err != nil {
		return err
	}
	return l.store.DebitPoints(ctx, customerID, amount, l.now())
}

// RecordVisit appends a visit and bumps the customer's visit count and last
// visit time as one unit.
func (l *Ledger) RecordVisit(ctx context.Context, customerID, code string, pointsEarned int, notes string) (models.Visit, error) {
	if pointsEarned < 0 {
		return models.Visit{}, &validation.ValidationError{Field: "points_earned", Message: "must not be negative"}
	}

	visit := models.Visit{
		ID:           uuid.New().String(),
		CustomerID:   customerID,
		CheckInCode:  code,
		PointsEarned: pointsEarned,
		VisitDate:    l.now(),
		Notes:        validation.SanitizeString(notes),
		IsValid:      true,
	}

	err := l.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := l.store.TouchVisit(ctx, customerID, visit.VisitDate); err != nil {
			return err
		}
		return l.store.InsertVisit(ctx, visit)
	})
	if err != nil {
		return models.Visit{}, err
	}
	return visit, nil
}

// OpenAccount stores a new customer and credits the welcome bonus to both
// balances.
func (l *Ledger) OpenAccount(ctx context.Context, c models.Customer, welcomeBonus int) (models.Customer, error) {
	if welcomeBonus < 0 {
		return models.Customer{}, &validation.ValidationError{Field: "welcome_bonus", Message: "must not be negative"}
	}

	now := l.now()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.TotalPoints = 0
	c.AvailablePoints = 0
	c.TotalVisits = 0
	c.LastVisit = nil
	c.JoinDate = now
	c.IsActive = true
	c.CreatedAt = now
	c.UpdatedAt = now

	var opened models.Customer
	err := l.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := l.store.InsertCustomer(ctx, c); err != nil {
			return err
		}
		if welcomeBonus > 0 {
			if err := l.store.CreditPoints(ctx, c.ID, welcomeBonus, now); err != nil {
				return err
			}
		}
		var err error
		opened, err = l.store.GetCustomer(ctx, c.ID)
		return err
	})
	if err != nil {
		return models.Customer{}, err
	}

	l.logger.Info().Str("customer_id", opened.ID).Int("welcome_bonus", welcomeBonus).Msg("customer account opened")
	return opened, nil
}

// CheckIn credits pointsPerVisit and records the visit under code in one
// transaction. The caller validates the code first.
func (l *Ledger) CheckIn(ctx context.Context, customerID, code string, pointsPerVisit int) (models.Customer, models.Visit, error) {
	return l.creditWithVisit(ctx, customerID, code, pointsPerVisit, "")
}

// AwardPoints credits a manual bonus and records it as a visit carrying the
// manual award sentinel and the reason.
func (l *Ledger) AwardPoints(ctx context.Context, customerID string, points int, reason string) (models.Customer, models.Visit, error) {
	if validation.SanitizeString(reason) == "" {
		reason = DefaultAwardReason
	}
	return l.creditWithVisit(ctx, customerID, models.ManualAwardCode, points, reason)
}

func (l *Ledger) creditWithVisit(ctx context.Context, customerID, code string, points int, notes string) (models.Customer, models.Visit, error) {
	if err := validation.ValidatePoints(points, "points"); err != nil {
		return models.Customer{}, models.Visit{}, err
	}

	var customer models.Customer
	var visit models.Visit
	err := l.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := l.CreditPoints(ctx, customerID, points); err != nil {
			return err
		}
		var err error
		if visit, err = l.RecordVisit(ctx, customerID, code, points, notes); err != nil {
			return err
		}
		customer, err = l.store.GetCustomer(ctx, customerID)
		return err
	})
	if err != nil {
		return models.Customer{}, models.Visit{}, err
	}

	l.logger.Info().
		Str("customer_id", customerID).
		Str("code", code).
		Int("points", points).
		Msg("points credited with visit")
	return customer, visit, nil
}

// RedeemReward exchanges the reward's points for one redemption. It fails
// with apperr.ErrNotFound, apperr.ErrRewardUnavailable or
// apperr.ErrInsufficientPoints without changing anything. The debit, the
// catalog consumption and the history record commit together.
func (l *Ledger) RedeemReward(ctx context.Context, customerID, rewardID string) (models.Redemption, error) {
	reward, err := l.catalog.Get(ctx, rewardID)
	if err != nil {
		return models.Redemption{}, err
	}
	if !l.catalog.IsAvailable(reward) {
		return models.Redemption{}, fmt.Errorf("reward %s: %w", rewardID, apperr.ErrRewardUnavailable)
	}

	customer, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return models.Redemption{}, err
	}
	if customer.AvailablePoints < reward.PointsRequired {
		return models.Redemption{}, fmt.Errorf("customer %s has %d of %d points: %w",
			customerID, customer.AvailablePoints, reward.PointsRequired, apperr.ErrInsufficientPoints)
	}

	record := models.RedemptionRecord{
		ID:          uuid.New().String(),
		RewardID:    reward.ID,
		RewardTitle: reward.Title,
		RedeemedAt:  l.now(),
		PointsUsed:  reward.PointsRequired,
	}

	err = l.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := l.DebitPoints(ctx, customerID, reward.PointsRequired); err != nil {
			return err
		}
		if err := l.catalog.ConsumeRedemption(ctx, reward.ID); err != nil {
			return err
		}
		if err := l.store.InsertRedemption(ctx, customerID, record); err != nil {
			return err
		}
		customer, err = l.store.GetCustomer(ctx, customerID)
		return err
	})
	if err != nil {
		return models.Redemption{}, err
	}

	reward.CurrentRedemptions++
	l.logger.Info().
		Str("customer_id", customerID).
		Str("reward_id", reward.ID).
		Int("points_used", record.PointsUsed).
		Msg("reward redeemed")

	return models.Redemption{
		Reward:          reward,
		Record:          record,
		PointsUsed:      record.PointsUsed,
		RemainingPoints: customer.AvailablePoints,
	}, nil
}

// VisitHistory returns one page of a customer's visits, newest first. A
// page below 1 means the first page and a limit outside 1..100 means 10.
func (l *Ledger) VisitHistory(ctx context.Context, customerID string, page, limit int) (models.VisitPage, error) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	visits, total, err := l.store.ListVisits(ctx, customerID, limit, (page-1)*limit)
	if err != nil {
		return models.VisitPage{}, err
	}
	return models.VisitPage{
		Visits:     visits,
		Pagination: models.NewPagination(page, limit, total),
	}, nil
}

// ClaimedRewards returns the customer's redemptions of rewards that still
// exist, newest first.
func (l *Ledger) ClaimedRewards(ctx context.Context, customerID string) ([]models.ClaimedReward, error) {
	if _, err := l.store.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return l.store.ListClaimedRewards(ctx, customerID)
}
