package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/auth"
	"salon-loyalty-api/internal/features"
	"salon-loyalty-api/internal/models"
	"salon-loyalty-api/internal/qrimage"
	"salon-loyalty-api/internal/validation"
)

const (
	dashboardRecentVisits = 10
	dashboardTopCustomers = 10
	dashboardRecentClaims = 5

	defaultCustomerPageSize = 20
	maxCustomerPageSize     = 100
)

// LoginBusiness checks an email and password pair.
func (s *Service) LoginBusiness(ctx context.Context, req models.BusinessLoginRequest) (result models.AuthResult, err error) {
	ctx, end := s.span(ctx, "service.LoginBusiness")
	defer func() { end(err) }()

	email := validation.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return models.AuthResult{}, &validation.ValidationError{Field: "email", Message: "email and password are required"}
	}

	business, err := s.db.GetBusinessByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.AuthResult{}, errInvalidCredentials
	}
	if err != nil {
		return models.AuthResult{}, err
	}
	if !business.IsActive || !s.auth.CheckPassword(business.PasswordHash, req.Password) {
		return models.AuthResult{}, errInvalidCredentials
	}

	token, err := s.auth.IssueToken(business.ID, auth.RoleBusiness)
	if err != nil {
		return models.AuthResult{}, err
	}
	return models.AuthResult{Token: token, Business: &business}, nil
}

// Dashboard gathers the headline counters and recent activity. The
// independent queries run concurrently.
func (s *Service) Dashboard(ctx context.Context) (dash models.Dashboard, err error) {
	ctx, end := s.span(ctx, "service.Dashboard")
	defer func() { end(err) }()

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		dash.Stats.TodayVisits, err = s.db.CountVisitsSince(gctx, startOfDay)
		return err
	})
	g.Go(func() (err error) {
		dash.Stats.TotalCustomers, err = s.db.CountActiveCustomers(gctx)
		return err
	})
	g.Go(func() (err error) {
		dash.Stats.TotalVisits, err = s.db.CountVisits(gctx)
		return err
	})
	g.Go(func() (err error) {
		dash.Stats.ActiveRewards, err = s.db.CountActiveRewards(gctx)
		return err
	})
	g.Go(func() (err error) {
		dash.RecentVisits, err = s.db.RecentVisits(gctx, dashboardRecentVisits)
		return err
	})
	g.Go(func() (err error) {
		dash.TopCustomers, err = s.db.TopCustomers(gctx, dashboardTopCustomers)
		return err
	})
	g.Go(func() (err error) {
		dash.RecentClaims, err = s.db.RecentClaims(gctx, dashboardRecentClaims)
		return err
	})
	g.Go(func() (err error) {
		dash.CurrentCode, err = s.codes.GetCurrentCode(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return models.Dashboard{}, err
	}
	return dash, nil
}

// CurrentCodes returns the code the point of sale should display.
func (s *Service) CurrentCodes(ctx context.Context) (models.CurrentCodes, error) {
	code, err := s.codes.GetCurrentCode(ctx)
	if err != nil {
		return models.CurrentCodes{}, err
	}

	out := models.CurrentCodes{
		DigitCode: code.DigitCode,
		QRCode:    code.QRCode,
		ExpiresAt: code.ExpiresAt,
	}
	if s.features.IsEnabled(features.QRImages) {
		img, err := qrimage.DataURL(code.QRCode, qrimage.DefaultSize)
		if err != nil {
			// The text forms are still usable without the image.
			s.logger.Warn().Err(err).Msg("failed to render qr image")
		} else {
			out.QRCodeImage = img
		}
	}
	return out, nil
}

// Customers returns a page of active customers, optionally filtered by
// search over name, phone and email.
func (s *Service) Customers(ctx context.Context, search string, page, limit int) (models.CustomerPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxCustomerPageSize {
		limit = defaultCustomerPageSize
	}

	customers, total, err := s.db.SearchCustomers(ctx, validation.SanitizeString(search), limit, (page-1)*limit)
	if err != nil {
		return models.CustomerPage{}, err
	}
	return models.CustomerPage{
		Customers:  customers,
		Pagination: models.NewPagination(page, limit, total),
	}, nil
}

// Rewards lists every reward definition.
func (s *Service) Rewards(ctx context.Context) ([]models.Reward, error) {
	return s.catalog.List(ctx)
}

// CreateReward adds a reward to the catalog.
func (s *Service) CreateReward(ctx context.Context, in models.RewardInput) (models.Reward, error) {
	return s.catalog.Create(ctx, in)
}

// UpdateReward edits a reward's definition.
func (s *Service) UpdateReward(ctx context.Context, id string, in models.RewardInput) (models.Reward, error) {
	if err := validation.ValidateUUID(id, "reward_id"); err != nil {
		return models.Reward{}, err
	}
	return s.catalog.Update(ctx, id, in)
}

// DeleteReward removes a reward. Past redemptions keep their history.
func (s *Service) DeleteReward(ctx context.Context, id string) error {
	if err := validation.ValidateUUID(id, "reward_id"); err != nil {
		return err
	}
	return s.catalog.Delete(ctx, id)
}

// UpdateSettings replaces the business's loyalty settings.
func (s *Service) UpdateSettings(ctx context.Context, businessID string, settings models.BusinessSettings) (models.Business, error) {
	if err := validation.ValidateSettings(settings); err != nil {
		return models.Business{}, err
	}
	if err := s.db.UpdateSettings(ctx, businessID, settings, s.now()); err != nil {
		return models.Business{}, err
	}

	s.logger.Info().
		Str("business_id", businessID).
		Int("points_per_visit", settings.PointsPerVisit).
		Int("welcome_bonus", settings.WelcomeBonus).
		Msg("settings updated")
	return s.db.GetBusiness(ctx, businessID)
}

// AwardPoints credits a manual bonus to a customer.
func (s *Service) AwardPoints(ctx context.Context, req models.AwardPointsRequest) (customer models.Customer, err error) {
	ctx, end := s.span(ctx, "service.AwardPoints",
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("points", req.Points))
	defer func() { end(err) }()

	if err := validation.ValidateUUID(req.CustomerID, "customer_id"); err != nil {
		return models.Customer{}, err
	}
	if err := validation.ValidatePoints(req.Points, "points"); err != nil {
		return models.Customer{}, err
	}

	customer, visit, err := s.ledger.AwardPoints(ctx, req.CustomerID, req.Points, req.Reason)
	if err != nil {
		return models.Customer{}, err
	}

	s.metrics.Awarded("manual", req.Points)
	s.events.PublishPointsAwarded(ctx, customer.ID, req.Points, visit.Notes)
	return customer, nil
}

// DeactivateCustomer soft-deletes a customer. Their history is kept and
// their tokens stop authenticating.
func (s *Service) DeactivateCustomer(ctx context.Context, customerID string) error {
	if err := validation.ValidateUUID(customerID, "customer_id"); err != nil {
		return err
	}
	return s.db.DeactivateCustomer(ctx, customerID, s.now())
}
