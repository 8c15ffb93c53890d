package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/auth"
	"salon-loyalty-api/internal/cache"
	"salon-loyalty-api/internal/catalog"
	"salon-loyalty-api/internal/checkin"
	"salon-loyalty-api/internal/config"
	"salon-loyalty-api/internal/database"
	"salon-loyalty-api/internal/events"
	"salon-loyalty-api/internal/features"
	"salon-loyalty-api/internal/ledger"
	"salon-loyalty-api/internal/metrics"
	"salon-loyalty-api/internal/models"
	"salon-loyalty-api/internal/tracing"
)

// Options wires the optional collaborators of a Service. Nil fields get
// inert defaults.
type Options struct {
	Loyalty  config.LoyaltyConfig
	Clock    func() time.Time
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Tracer   *tracing.Tracer
	Features *features.Manager
	Events   *events.Manager
	Cache    cache.Cache
}

// Service provides the loyalty use cases behind the HTTP API.
type Service struct {
	db       *database.DB
	auth     *auth.Service
	codes    *checkin.Manager
	catalog  *catalog.Catalog
	ledger   *ledger.Ledger
	events   *events.Manager
	metrics  *metrics.Metrics
	tracer   *tracing.Tracer
	features *features.Manager
	logger   zerolog.Logger
	defaults models.BusinessSettings
	now      func() time.Time
}

// NewService creates a new service instance.
func NewService(db *database.DB, authSvc *auth.Service, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	if opts.Features == nil {
		opts.Features = features.NewManager()
	}
	if opts.Events == nil {
		opts.Events = events.NewManager(opts.Features.Enabled(features.EventHooks), opts.Logger)
	}
	defaults := opts.Loyalty.DefaultSettings
	if defaults == (models.BusinessSettings{}) {
		defaults = models.DefaultSettings()
	}

	codes := checkin.NewManager(db, checkin.Options{
		Prefix:       opts.Loyalty.CodePrefix,
		Window:       opts.Loyalty.CodeWindow(),
		Clock:        opts.Clock,
		Logger:       opts.Logger.With().Str("component", "checkin").Logger(),
		Metrics:      opts.Metrics,
		Cache:        opts.Cache,
		CacheEnabled: opts.Features.Enabled(features.CodeCache),
	})
	rewards := catalog.New(db, opts.Clock, opts.Logger.With().Str("component", "catalog").Logger())

	return &Service{
		db:       db,
		auth:     authSvc,
		codes:    codes,
		catalog:  rewards,
		ledger:   ledger.New(db, rewards, opts.Clock, opts.Logger.With().Str("component", "ledger").Logger()),
		events:   opts.Events,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		features: opts.Features,
		logger:   opts.Logger,
		defaults: defaults,
		now:      opts.Clock,
	}
}

// Codes exposes the check-in code manager for the janitor and tests.
func (s *Service) Codes() *checkin.Manager {
	return s.codes
}

// Settings returns the venue's loyalty settings, or the configured
// defaults while no business exists.
func (s *Service) Settings(ctx context.Context) (models.BusinessSettings, error) {
	b, err := s.db.FirstBusiness(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return models.BusinessSettings{}, err
	}
	return b.Settings, nil
}

// Health checks the database connection.
func (s *Service) Health(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// AuthenticateCustomer resolves a customer token to an active customer id.
func (s *Service) AuthenticateCustomer(ctx context.Context, token string) (string, error) {
	claims, err := s.auth.ParseToken(token, auth.RoleCustomer)
	if err != nil {
		return "", err
	}
	c, err := s.db.GetCustomer(ctx, claims.Subject)
	if err != nil || !c.IsActive {
		return "", errCustomerInactive
	}
	return c.ID, nil
}

// AuthenticateBusiness resolves a business token to an active business id.
func (s *Service) AuthenticateBusiness(ctx context.Context, token string) (string, error) {
	claims, err := s.auth.ParseToken(token, auth.RoleBusiness)
	if err != nil {
		return "", err
	}
	b, err := s.db.GetBusiness(ctx, claims.Subject)
	if err != nil || !b.IsActive {
		return "", errBusinessInactive
	}
	return b.ID, nil
}

// TokenTTL is the lifetime of issued tokens, used for cookie max-age.
func (s *Service) TokenTTL() time.Duration {
	return s.auth.TTL()
}

// Shutdown waits for in-flight event handlers.
func (s *Service) Shutdown() {
	s.events.Shutdown()
}

func (s *Service) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, name)
	span.SetAttributes(attrs...)
	return ctx, func(err error) { tracing.End(span, err) }
}
