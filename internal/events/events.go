package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"salon-loyalty-api/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventCustomerRegistered is emitted after an account is opened.
	EventCustomerRegistered EventType = "customer.registered"
	// EventCustomerCheckedIn is emitted after a successful check-in.
	EventCustomerCheckedIn EventType = "customer.checked_in"
	// EventRewardRedeemed is emitted after a redemption commits.
	EventRewardRedeemed EventType = "reward.redeemed"
	// EventPointsAwarded is emitted after a manual award.
	EventPointsAwarded EventType = "points.awarded"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// CustomerRegisteredData carries a newly opened account.
type CustomerRegisteredData struct {
	CustomerID   string
	Phone        string
	WelcomeBonus int
}

// CheckedInData carries a check-in result.
type CheckedInData struct {
	CustomerID string
	Visit      models.Visit
	Result     models.CheckInResult
}

// RewardRedeemedData carries a committed redemption.
type RewardRedeemedData struct {
	CustomerID string
	Redemption models.Redemption
}

// PointsAwardedData carries a manual award.
type PointsAwardedData struct {
	CustomerID string
	Points     int
	Reason     string
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager fans events out to subscribed handlers asynchronously.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  func() bool
	logger   zerolog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewManager creates an event manager. Publishing is skipped while
// enabled reports false; a nil enabled means always on.
func NewManager(enabled func() bool, logger zerolog.Logger) *Manager {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
		logger:   logger,
		now:      time.Now,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish runs every handler for eventType in its own goroutine. Handlers
// get a context detached from the caller's cancellation. Handler errors
// are logged.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled() {
		return
	}

	m.mu.RLock()
	handlers := append([]Handler(nil), m.handlers[eventType]...)
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: m.now(),
		Data:      data,
	}
	hctx := context.WithoutCancel(ctx)

	for _, handler := range handlers {
		m.wg.Add(1)
		go func(h Handler) {
			defer m.wg.Done()
			if err := h(hctx, event); err != nil {
				m.logger.Error().Err(err).Str("event", string(event.Type)).Msg("event handler failed")
			}
		}(handler)
	}
}

// PublishCustomerRegistered publishes a registration event.
func (m *Manager) PublishCustomerRegistered(ctx context.Context, c models.Customer, welcomeBonus int) {
	m.Publish(ctx, EventCustomerRegistered, CustomerRegisteredData{
		CustomerID:   c.ID,
		Phone:        c.Phone,
		WelcomeBonus: welcomeBonus,
	})
}

// PublishCheckedIn publishes a check-in event.
func (m *Manager) PublishCheckedIn(ctx context.Context, customerID string, visit models.Visit, result models.CheckInResult) {
	m.Publish(ctx, EventCustomerCheckedIn, CheckedInData{
		CustomerID: customerID,
		Visit:      visit,
		Result:     result,
	})
}

// PublishRewardRedeemed publishes a redemption event.
func (m *Manager) PublishRewardRedeemed(ctx context.Context, customerID string, r models.Redemption) {
	m.Publish(ctx, EventRewardRedeemed, RewardRedeemedData{CustomerID: customerID, Redemption: r})
}

// PublishPointsAwarded publishes a manual award event.
func (m *Manager) PublishPointsAwarded(ctx context.Context, customerID string, points int, reason string) {
	m.Publish(ctx, EventPointsAwarded, PointsAwardedData{
		CustomerID: customerID,
		Points:     points,
		Reason:     reason,
	})
}

// Shutdown drops all handlers and waits for running ones to finish.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.handlers = make(map[EventType][]Handler)
	m.mu.Unlock()

	m.wg.Wait()
}

// LogSubscriber returns a handler writing every event to logger at info.
func LogSubscriber(logger zerolog.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		logger.Info().
			Str("event", string(event.Type)).
			Time("at", event.Timestamp).
			Interface("data", event.Data).
			Msg("loyalty event")
		return nil
	}
}
