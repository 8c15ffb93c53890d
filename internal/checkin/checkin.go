package checkin

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/cache"
	"salon-loyalty-api/internal/metrics"
	"salon-loyalty-api/internal/models"
	"salon-loyalty-api/internal/validation"
)

const (
	// DefaultPrefix starts every long-form code.
	DefaultPrefix = "FADESBRAIDS"
	// DefaultWindow is how long a minted code stays valid.
	DefaultWindow = 5 * time.Minute

	maxGenerateAttempts = 5
	currentCodeKey      = "checkin:current"
)

// Store is the persistence the manager needs.
type Store interface {
	FindCurrentCode(ctx context.Context, now time.Time) (models.CheckInCode, bool, error)
	InsertCode(ctx context.Context, code models.CheckInCode) error
	UseCode(ctx context.Context, code string, now time.Time) (bool, error)
	DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error)
}

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	Prefix  string
	Window  time.Duration
	Clock   func() time.Time
	Random  io.Reader
	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	// Cache holds the current code until it expires. It is consulted only
	// while CacheEnabled reports true.
	Cache        cache.Cache
	CacheEnabled func() bool
}

// Manager mints and validates the venue's rotating check-in code.
type Manager struct {
	store        Store
	prefix       string
	window       time.Duration
	now          func() time.Time
	random       io.Reader
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	cache        cache.Cache
	cacheEnabled func() bool
}

// NewManager creates a code manager backed by store.
func NewManager(store Store, opts Options) *Manager {
	m := &Manager{
		store:        store,
		prefix:       opts.Prefix,
		window:       opts.Window,
		now:          opts.Clock,
		random:       opts.Random,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		cache:        opts.Cache,
		cacheEnabled: opts.CacheEnabled,
	}
	if m.prefix == "" {
		m.prefix = DefaultPrefix
	}
	if m.window <= 0 {
		m.window = DefaultWindow
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.random == nil {
		m.random = rand.Reader
	}
	if m.cacheEnabled == nil {
		m.cacheEnabled = func() bool { return true }
	}
	return m
}

// GetCurrentCode returns the newest active, unexpired code, minting one if
// none exists. Two callers racing here may both mint a code; either is
// valid until it expires.
func (m *Manager) GetCurrentCode(ctx context.Context) (models.CheckInCode, error) {
	now := m.now()

	if code, ok := m.cached(ctx, now); ok {
		return code, nil
	}

	code, found, err := m.store.FindCurrentCode(ctx, now)
	if err != nil {
		return models.CheckInCode{}, err
	}
	if !found {
		code, err = m.generate(ctx, now)
		if err != nil {
			return models.CheckInCode{}, err
		}
	}

	m.remember(ctx, code, now)
	return code, nil
}

// ValidateCode reports whether code matches the long or short form of a
// current code. A match increments the code's usage counter. Codes stay
// usable by any number of customers until they expire.
func (m *Manager) ValidateCode(ctx context.Context, code string) (bool, error) {
	code = validation.SanitizeString(code)
	if code == "" {
		m.metrics.CodeValidated(false)
		return false, nil
	}

	ok, err := m.store.UseCode(ctx, code, m.now())
	if err != nil {
		return false, err
	}

	m.metrics.CodeValidated(ok)
	if !ok {
		m.logger.Debug().Msg("check-in code rejected")
	}
	return ok, nil
}

func (m *Manager) generate(ctx context.Context, now time.Time) (models.CheckInCode, error) {
	var lastErr error
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		digits, err := m.digitCode()
		if err != nil {
			return models.CheckInCode{}, fmt.Errorf("failed to generate digit code: %w", err)
		}

		code := models.CheckInCode{
			ID:        uuid.New().String(),
			QRCode:    fmt.Sprintf("%s_%d_%s", m.prefix, now.UnixMilli(), digits),
			DigitCode: digits,
			ExpiresAt: now.Add(m.window),
			IsActive:  true,
			CreatedAt: now,
		}

		err = m.store.InsertCode(ctx, code)
		if err == nil {
			m.metrics.CodeGenerated()
			m.logger.Info().
				Str("digit_code", code.DigitCode).
				Time("expires_at", code.ExpiresAt).
				Msg("generated check-in code")
			return code, nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return models.CheckInCode{}, err
		}
		lastErr = err
		m.logger.Warn().Int("attempt", attempt+1).Msg("check-in code collision, regenerating")
	}
	return models.CheckInCode{}, apperr.Store("generate checkin code",
		fmt.Errorf("no unique code after %d attempts: %w", maxGenerateAttempts, lastErr))
}

// digitCode returns a uniformly random six digit string without a leading
// zero.
func (m *Manager) digitCode() (string, error) {
	n, err := rand.Int(m.random, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", 100000+n.Int64()), nil
}

func (m *Manager) cached(ctx context.Context, now time.Time) (models.CheckInCode, bool) {
	if m.cache == nil || !m.cacheEnabled() {
		return models.CheckInCode{}, false
	}
	var code models.CheckInCode
	if err := cache.GetJSON(ctx, m.cache, currentCodeKey, &code); err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			m.logger.Warn().Err(err).Msg("check-in code cache read failed")
		}
		return models.CheckInCode{}, false
	}
	if !code.IsCurrent(now) {
		return models.CheckInCode{}, false
	}
	return code, true
}

func (m *Manager) remember(ctx context.Context, code models.CheckInCode, now time.Time) {
	if m.cache == nil || !m.cacheEnabled() {
		return
	}
	if err := cache.SetJSON(ctx, m.cache, currentCodeKey, code, code.ExpiresAt.Sub(now)); err != nil {
		m.logger.Warn().Err(err).Msg("check-in code cache write failed")
	}
}
