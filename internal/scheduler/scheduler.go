package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/observability"
	"github.com/chartdeck/chartdeck-backend/internal/repos"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

// SweepResult summarizes one staleness sweep for logging and metrics.
type SweepResult struct {
	Scanned int
	Seeded  int
	Flipped int
	Errors  int
}

// Scheduler periodically flips due cards from current to stale. It is the
// only writer of next_refresh_at; ingestion only ever resets refresh_status.
type Scheduler struct {
	db       *gorm.DB
	log      *logger.Logger
	cardRepo repos.CardRepo
	metrics  *observability.Metrics
	interval time.Duration
	now      func() time.Time

	group    singleflight.Group
	sweepCtx context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(db *gorm.DB, baseLog *logger.Logger, cardRepo repos.CardRepo, metrics *observability.Metrics, interval time.Duration) *Scheduler {
	schedLog := baseLog.With("service", "Scheduler")
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		db:       db,
		log:      schedLog,
		cardRepo: cardRepo,
		metrics:  metrics,
		interval: interval,
		now:      time.Now,
	}
}

// Start launches the tick loop. Stop cancels only the loop, not the Start
// context sweeps run under, so an in-flight sweep finishes its card updates.
func (s *Scheduler) Start(ctx context.Context) {
	s.sweepCtx = ctx
	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(loopCtx)
	s.log.Info("Staleness scheduler started", "interval", s.interval)
}

func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.log.Info("Staleness scheduler stopped")
}

func (s *Scheduler) run(loopCtx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-loopCtx.Done():
			return
		case <-ticker.C:
			result, err := s.Sweep(s.sweepCtx)
			if err != nil {
				s.log.Error("Staleness sweep failed", "error", err)
				continue
			}
			s.log.Info("Staleness sweep finished",
				"scanned", result.Scanned,
				"seeded", result.Seeded,
				"flipped", result.Flipped,
				"errors", result.Errors)
		}
	}
}

// Sweep runs one staleness pass. Concurrent callers collapse onto a single
// in-flight sweep; per-card failures are logged and skipped.
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	v, err, _ := s.group.Do("sweep", func() (interface{}, error) {
		return s.sweep(ctx)
	})
	if err != nil {
		return SweepResult{}, err
	}
	return v.(SweepResult), nil
}

func (s *Scheduler) sweep(ctx context.Context) (SweepResult, error) {
	started := s.now()
	var result SweepResult

	cards, err := s.cardRepo.ListSchedulable(ctx, nil)
	if err != nil {
		return result, err
	}
	result.Scanned = len(cards)

	now := s.now()
	for _, card := range cards {
		seeded, flipped, err := s.sweepCard(ctx, card, now)
		if err != nil {
			result.Errors++
			s.metrics.SweepErrors.Inc()
			s.log.Warn("Skipping card after sweep error", "card_id", card.ID, "error", err)
			continue
		}
		if seeded {
			result.Seeded++
		}
		if flipped {
			result.Flipped++
			s.metrics.SweepFlips.Inc()
		}
	}

	s.metrics.SweepRuns.Inc()
	s.metrics.SweepDuration.Observe(s.now().Sub(started).Seconds())
	return result, nil
}

func (s *Scheduler) sweepCard(ctx context.Context, card *types.Card, now time.Time) (seeded, flipped bool, err error) {
	interval := ParseCadence(card.RefreshCadence)
	if interval <= 0 {
		// Unparseable cadence: the card behaves as manual.
		return false, false, nil
	}

	nextRefreshAt := card.NextRefreshAt
	if nextRefreshAt == nil {
		anchor := card.CreatedAt
		if card.LastRefreshedAt != nil {
			anchor = *card.LastRefreshedAt
		}
		due := anchor.Add(interval)
		if err := s.cardRepo.UpdateFields(ctx, nil, card.ID, map[string]interface{}{
			"next_refresh_at": due,
		}); err != nil {
			return false, false, err
		}
		// A card overdue since before its due time existed still flips in
		// this same pass, not one tick later.
		nextRefreshAt = &due
		seeded = true
	}

	if now.Before(*nextRefreshAt) || card.RefreshStatus == types.RefreshStatusStale {
		return seeded, false, nil
	}

	// Advance from now, not from the missed due time; drift is accepted.
	if err := s.cardRepo.UpdateFields(ctx, nil, card.ID, map[string]interface{}{
		"refresh_status":  types.RefreshStatusStale,
		"next_refresh_at": now.Add(interval),
	}); err != nil {
		return seeded, false, err
	}
	return seeded, true, nil
}
