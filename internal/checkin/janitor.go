package checkin

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"salon-loyalty-api/internal/metrics"
)

// Janitor periodically deletes expired codes so the table stays small.
// Expired codes are already invisible to validation; this is storage
// cleanup only.
type Janitor struct {
	store    Store
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	stop chan struct{}
	done chan struct{}
}

// NewJanitor creates a janitor sweeping every interval.
func NewJanitor(store Store, interval time.Duration, clock func() time.Time, logger zerolog.Logger, m *metrics.Metrics) *Janitor {
	if clock == nil {
		clock = time.Now
	}
	return &Janitor{
		store:    store,
		interval: interval,
		now:      clock,
		logger:   logger,
		metrics:  m,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (j *Janitor) Start() {
	go j.run()
}

// Stop ends the sweep loop and waits for it to exit.
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}

func (j *Janitor) run() {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), j.interval)
			if _, err := j.Sweep(ctx); err != nil {
				j.logger.Error().Err(err).Msg("expired code sweep failed")
			}
			cancel()
		case <-j.stop:
			return
		}
	}
}

// Sweep deletes every code expired at the current time.
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	n, err := j.store.DeleteExpiredCodes(ctx, j.now())
	if err != nil {
		return 0, err
	}
	j.metrics.CodesDeleted(n)
	if n > 0 {
		j.logger.Debug().Int64("deleted", n).Msg("purged expired check-in codes")
	}
	return n, nil
}
