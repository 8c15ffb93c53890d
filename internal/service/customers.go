package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/auth"
	"salon-loyalty-api/internal/models"
	"salon-loyalty-api/internal/validation"
)

var (
	errInvalidCredentials = fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	errCustomerInactive   = fmt.Errorf("customer not found or inactive: %w", apperr.ErrUnauthorized)
	errBusinessInactive   = fmt.Errorf("business not found or inactive: %w", apperr.ErrUnauthorized)
)

// RegisterCustomer opens an account credited with the venue's welcome
// bonus and returns a session token for it.
func (s *Service) RegisterCustomer(ctx context.Context, req models.RegisterCustomerRequest) (result models.AuthResult, err error) {
	ctx, end := s.span(ctx, "service.RegisterCustomer")
	defer func() { end(err) }()

	req.Phone = validation.SanitizeString(req.Phone)
	req.FirstName = validation.SanitizeString(req.FirstName)
	req.LastName = validation.SanitizeString(req.LastName)
	req.Email = validation.NormalizeEmail(req.Email)
	if err := validation.ValidateRegistration(req); err != nil {
		return models.AuthResult{}, err
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		return models.AuthResult{}, err
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return models.AuthResult{}, err
	}

	customer, err := s.ledger.OpenAccount(ctx, models.Customer{
		Phone:        req.Phone,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
	}, settings.WelcomeBonus)
	if errors.Is(err, apperr.ErrConflict) {
		return models.AuthResult{}, fmt.Errorf("customer with phone %s: %w", req.Phone, apperr.ErrConflict)
	}
	if err != nil {
		return models.AuthResult{}, err
	}

	token, err := s.auth.IssueToken(customer.ID, auth.RoleCustomer)
	if err != nil {
		return models.AuthResult{}, err
	}

	s.metrics.Awarded("welcome", settings.WelcomeBonus)
	s.events.PublishCustomerRegistered(ctx, customer, settings.WelcomeBonus)
	return models.AuthResult{Token: token, Customer: &customer}, nil
}

// LoginCustomer checks a phone and password pair.
func (s *Service) LoginCustomer(ctx context.Context, req models.CustomerLoginRequest) (result models.AuthResult, err error) {
	ctx, end := s.span(ctx, "service.LoginCustomer")
	defer func() { end(err) }()

	phone := validation.SanitizeString(req.Phone)
	if phone == "" || req.Password == "" {
		return models.AuthResult{}, &validation.ValidationError{Field: "phone", Message: "phone and password are required"}
	}

	customer, err := s.db.GetCustomerByPhone(ctx, phone)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.AuthResult{}, errInvalidCredentials
	}
	if err != nil {
		return models.AuthResult{}, err
	}
	if !customer.IsActive || !s.auth.CheckPassword(customer.PasswordHash, req.Password) {
		return models.AuthResult{}, errInvalidCredentials
	}

	token, err := s.auth.IssueToken(customer.ID, auth.RoleCustomer)
	if err != nil {
		return models.AuthResult{}, err
	}
	return models.AuthResult{Token: token, Customer: &customer}, nil
}

// Profile returns the customer with their redemption history.
func (s *Service) Profile(ctx context.Context, customerID string) (models.Customer, error) {
	return s.db.GetCustomer(ctx, customerID)
}

// UpdateProfile replaces the customer's name and email.
func (s *Service) UpdateProfile(ctx context.Context, customerID string, req models.UpdateProfileRequest) (models.Customer, error) {
	req.FirstName = validation.SanitizeString(req.FirstName)
	req.LastName = validation.SanitizeString(req.LastName)
	req.Email = validation.NormalizeEmail(req.Email)
	if err := validation.ValidateProfile(req); err != nil {
		return models.Customer{}, err
	}

	if err := s.db.UpdateCustomerProfile(ctx, customerID, req, s.now()); err != nil {
		return models.Customer{}, err
	}
	return s.db.GetCustomer(ctx, customerID)
}

// CheckIn validates code and credits the venue's points per visit. Code
// use, the credit and the visit record commit together, so a failed
// credit leaves the code's usage count untouched.
func (s *Service) CheckIn(ctx context.Context, customerID, code string) (result models.CheckInResult, err error) {
	ctx, end := s.span(ctx, "service.CheckIn", attribute.String("customer.id", customerID))
	defer func() { end(err) }()

	code = validation.SanitizeString(code)
	if code == "" {
		return models.CheckInResult{}, &validation.ValidationError{Field: "code", Message: "is required"}
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		return models.CheckInResult{}, err
	}

	var customer models.Customer
	var visit models.Visit
	err = s.db.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.codes.ValidateCode(ctx, code)
		if err != nil {
			return err
		}
		if !ok {
			return &validation.ValidationError{Field: "code", Message: "invalid or expired check-in code"}
		}
		customer, visit, err = s.ledger.CheckIn(ctx, customerID, code, settings.PointsPerVisit)
		return err
	})
	if err != nil {
		return models.CheckInResult{}, err
	}

	result = models.CheckInResult{
		PointsEarned:    visit.PointsEarned,
		TotalPoints:     customer.TotalPoints,
		AvailablePoints: customer.AvailablePoints,
		TotalVisits:     customer.TotalVisits,
	}
	s.metrics.CheckedIn()
	s.metrics.Awarded("checkin", visit.PointsEarned)
	s.events.PublishCheckedIn(ctx, customerID, visit, result)
	return result, nil
}

// Visits returns a page of the customer's visit history.
func (s *Service) Visits(ctx context.Context, customerID string, page, limit int) (models.VisitPage, error) {
	return s.ledger.VisitHistory(ctx, customerID, page, limit)
}

// AvailableRewards lists the rewards the customer can afford right now.
func (s *Service) AvailableRewards(ctx context.Context, customerID string) (models.AvailableRewards, error) {
	customer, err := s.db.GetCustomer(ctx, customerID)
	if err != nil {
		return models.AvailableRewards{}, err
	}
	rewards, err := s.catalog.ListAvailable(ctx, customer.AvailablePoints)
	if err != nil {
		return models.AvailableRewards{}, err
	}
	return models.AvailableRewards{Rewards: rewards, CustomerPoints: customer.AvailablePoints}, nil
}

// ClaimedRewards lists the customer's past redemptions.
func (s *Service) ClaimedRewards(ctx context.Context, customerID string) ([]models.ClaimedReward, error) {
	return s.ledger.ClaimedRewards(ctx, customerID)
}

// RedeemReward spends the customer's points on rewardID.
func (s *Service) RedeemReward(ctx context.Context, customerID, rewardID string) (redemption models.Redemption, err error) {
	ctx, end := s.span(ctx, "service.RedeemReward",
		attribute.String("customer.id", customerID),
		attribute.String("reward.id", rewardID))
	defer func() { end(err) }()

	if err := validation.ValidateUUID(rewardID, "reward_id"); err != nil {
		return models.Redemption{}, err
	}

	redemption, err = s.ledger.RedeemReward(ctx, customerID, rewardID)
	if err != nil {
		s.metrics.Redeemed(redeemOutcome(err), 0)
		return models.Redemption{}, err
	}

	s.metrics.Redeemed("success", redemption.PointsUsed)
	s.events.PublishRewardRedeemed(ctx, customerID, redemption)
	return redemption, nil
}

func redeemOutcome(err error) string {
	switch {
	case errors.Is(err, apperr.ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, apperr.ErrRewardUnavailable):
		return "unavailable"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
