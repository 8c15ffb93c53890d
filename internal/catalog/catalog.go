package catalog

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

// Store is the reward persistence the catalog needs.
type Store interface {
	InsertReward(ctx context.Context, r models.Reward) error
	GetReward(ctx context.Context, id string) (models.Reward, error)
	UpdateReward(ctx context.Context, r models.Reward) error
	DeleteReward(ctx context.Context, id string) error
	ListRewards(ctx context.Context) ([]models.Reward, error)
	ListActiveRewardsUpTo(ctx context.Context, maxPoints int) ([]models.Reward, error)
	ConsumeRedemption(ctx context.Context, id string, now time.Time) (bool, error)
}

// Catalog owns reward definitions and the availability rule.
type Catalog struct {
	store  Store
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a catalog. A nil clock means time.Now.
func New(store Store, clock func() time.Time, logger zerolog.Logger) *Catalog {
	if clock == nil {
		clock = time.Now
	}
	return &Catalog{store: store, now: clock, logger: logger}
}

// IsAvailable reports whether r can be redeemed at now: it is active, now
// lies inside its optional window (bounds inclusive) and its optional cap
// has room.
func IsAvailable(r models.Reward, now time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return false
	}
	if r.MaxRedemptions != nil && r.CurrentRedemptions >= *r.MaxRedemptions {
		return false
	}
	return true
}

// IsAvailable evaluates the availability rule at the catalog's clock.
func (c *Catalog) IsAvailable(r models.Reward) bool {
	return IsAvailable(r, c.now())
}

// ListAvailable returns rewards available now that cost at most
// customerPoints, cheapest first.
func (c *Catalog) ListAvailable(ctx context.Context, customerPoints int) ([]models.Reward, error) {
	candidates, err := c.store.ListActiveRewardsUpTo(ctx, customerPoints)
	if err != nil {
		return nil, err
	}

	now := c.now()
	available := make([]models.Reward, 0, len(candidates))
	for _, r := range candidates {
		if IsAvailable(r, now) {
			available = append(available, r)
		}
	}
	return available, nil
}

// ConsumeRedemption records one redemption of the reward. The availability
// check and the counter increment happen in a single store statement, so
// a reward at its cap is never over-redeemed.
func (c *Catalog) ConsumeRedemption(ctx context.Context, rewardID string) error {
	ok, err := c.store.ConsumeRedemption(ctx, rewardID, c.now())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	// Distinguish a missing reward from an unavailable one.
	if _, err := c.store.GetReward(ctx, rewardID); err != nil {
		return err
	}
	return fmt.Errorf("reward %s: %w", rewardID, apperr.ErrRewardUnavailable)
}

// Get returns a reward by id.
func (c *Catalog) Get(ctx context.Context, id string) (models.Reward, error) {
	return c.store.GetReward(ctx, id)
}

// List returns every reward, cheapest first.
func (c *Catalog) List(ctx context.Context) ([]models.Reward, error) {
	return c.store.ListRewards(ctx)
}

// Create validates in and stores a new reward. Category defaults to
// discount, the reward starts active unless told otherwise and its window
// opens now unless a start is given.
func (c *Catalog) Create(ctx context.Context, in models.RewardInput) (models.Reward, error) {
	in = sanitize(in)
	if err := validation.ValidateReward(in); err != nil {
		return models.Reward{}, err
	}

	now := c.now()
	r := models.Reward{
		ID:        uuid.New().String(),
		IsActive:  true,
		ValidFrom: &now,
		CreatedAt: now,
	}
	apply(&r, in)
	r.UpdatedAt = now
	if err := checkWindow(r); err != nil {
		return models.Reward{}, err
	}

	if err := c.store.InsertReward(ctx, r); err != nil {
		return models.Reward{}, err
	}

	c.logger.Info().Str("reward_id", r.ID).Str("title", r.Title).Msg("reward created")
	return r, nil
}

// Update replaces the editable fields of a reward. An omitted window start
// keeps the stored one and the redemption counter is kept.
func (c *Catalog) Update(ctx context.Context, id string, in models.RewardInput) (models.Reward, error) {
	in = sanitize(in)
	if err := validation.ValidateReward(in); err != nil {
		return models.Reward{}, err
	}

	r, err := c.store.GetReward(ctx, id)
	if err != nil {
		return models.Reward{}, err
	}

	apply(&r, in)
	r.UpdatedAt = c.now()
	if err := checkWindow(r); err != nil {
		return models.Reward{}, err
	}

	if err := c.store.UpdateReward(ctx, r); err != nil {
		return models.Reward{}, err
	}

	c.logger.Info().Str("reward_id", r.ID).Msg("reward updated")
	return r, nil
}

// Delete removes a reward definition.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := c.store.DeleteReward(ctx, id); err != nil {
		return err
	}
	c.logger.Info().Str("reward_id", id).Msg("reward deleted")
	return nil
}

// checkWindow rejects a window that closes before it opens once defaults
// and stored values are merged in.
func checkWindow(r models.Reward) error {
	if r.ValidFrom != nil && r.ValidUntil != nil && r.ValidUntil.Before(*r.ValidFrom) {
		return &validation.ValidationError{Field: "valid_until", Message: "must not be before valid_from"}
	}
	return nil
}

func sanitize(in models.RewardInput) models.RewardInput {
	in.Title = validation.SanitizeString(in.Title)
	in.Description = validation.SanitizeString(in.Description)
	in.Value = validation.SanitizeString(in.Value)
	in.Terms = validation.SanitizeString(in.Terms)
	return in
}

func apply(r *models.Reward, in models.RewardInput) {
	r.Title = in.Title
	r.Description = in.Description
	r.PointsRequired = in.PointsRequired
	r.Category = in.Category
	if r.Category == "" {
		r.Category = models.CategoryDiscount
	}
	r.Value = in.Value
	if in.IsActive != nil {
		r.IsActive = *in.IsActive
	}
	if in.ValidFrom != nil {
		r.ValidFrom = in.ValidFrom
	}
	r.ValidUntil = in.ValidUntil
	r.MaxRedemptions = in.MaxRedemptions
	r.Terms = in.Terms
}
