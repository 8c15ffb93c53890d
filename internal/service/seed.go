package service

import (
	"context"

	"github.com/google/uuid"

	"salon-loyalty-api/internal/models"
	"salon-loyalty-api/internal/validation"
)

// BusinessSeed describes the operator account created by InitBusiness.
type BusinessSeed struct {
	BusinessName string
	Email        string
	Password     string
	Phone        string
	Address      models.Address
}

// DefaultBusinessSeed is the account created when no overrides are given.
func DefaultBusinessSeed() BusinessSeed {
	return BusinessSeed{
		BusinessName: "Fades n Braids",
		Email:        "admin@fadesbraids.com",
		Password:     "admin123",
		Phone:        "0712345678",
		Address: models.Address{
			Street:  "123 Style Street",
			City:    "Nairobi",
			State:   "Nairobi",
			ZipCode: "00100",
		},
	}
}

// DefaultRewards is the starter catalog.
func DefaultRewards() []models.RewardInput {
	return []models.RewardInput{
		{
			Title:          "10% Off Next Service",
			Description:    "Get 10% off your next haircut or styling service",
			PointsRequired: 100,
			Category:       models.CategoryDiscount,
			Value:          "10% off",
			Terms:          "Valid for haircuts and styling services only. Cannot be combined with other offers.",
		},
		{
			Title:          "Free Hair Wash",
			Description:    "Complimentary hair wash and conditioning treatment",
			PointsRequired: 150,
			Category:       models.CategoryFreeService,
			Value:          "Free service",
			Terms:          "Valid for basic wash and conditioning. Upgrade treatments available for additional cost.",
		},
		{
			Title:          "20% Off Premium Service",
			Description:    "Get 20% off any premium styling or treatment service",
			PointsRequired: 250,
			Category:       models.CategoryDiscount,
			Value:          "20% off",
			Terms:          "Valid for premium services including braids, extensions, and specialty treatments.",
		},
		{
			Title:          "Free Haircut",
			Description:    "Complimentary basic haircut service",
			PointsRequired: 400,
			Category:       models.CategoryFreeService,
			Value:          "Free haircut",
			Terms:          "Valid for basic haircut only. Styling and treatments not included.",
		},
		{
			Title:          "VIP Package",
			Description:    "Complete VIP treatment including cut, style, and premium products",
			PointsRequired: 600,
			Category:       models.CategorySpecialOffer,
			Value:          "VIP Package",
			Terms:          "Includes haircut, styling, premium shampoo and conditioning, and take-home product sample.",
		},
	}
}

// InitBusiness creates the operator account with the default settings and
// the starter catalog. It does nothing and reports false when a business
// already exists.
func (s *Service) InitBusiness(ctx context.Context, seed BusinessSeed) (models.Business, bool, error) {
	n, err := s.db.CountBusinesses(ctx)
	if err != nil {
		return models.Business{}, false, err
	}
	if n > 0 {
		existing, err := s.db.FirstBusiness(ctx)
		return existing, false, err
	}

	seed.Email = validation.NormalizeEmail(seed.Email)
	if err := validation.ValidateEmail(seed.Email, "email"); err != nil {
		return models.Business{}, false, err
	}
	if len(seed.Password) < 6 {
		return models.Business{}, false, &validation.ValidationError{Field: "password", Message: "must be at least 6 characters long"}
	}

	hash, err := s.auth.HashPassword(seed.Password)
	if err != nil {
		return models.Business{}, false, err
	}

	now := s.now()
	business := models.Business{
		ID:           uuid.New().String(),
		BusinessName: seed.BusinessName,
		Email:        seed.Email,
		PasswordHash: hash,
		Phone:        seed.Phone,
		Address:      seed.Address,
		Settings:     s.defaults,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.db.InsertBusiness(ctx, business); err != nil {
			return err
		}
		for _, in := range DefaultRewards() {
			if _, err := s.catalog.Create(ctx, in); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Business{}, false, err
	}

	s.logger.Info().
		Str("business_id", business.ID).
		Str("email", business.Email).
		Int("rewards", len(DefaultRewards())).
		Msg("business initialized")
	return business, true, nil
}
