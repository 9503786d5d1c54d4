package worker

import (
	"context"
	"sync"
	"time"

	"todolist/internal/services"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// SessionCleanupHandler deletes expired session rows.
func SessionCleanupHandler(db *gorm.DB, sessions services.SessionService, logger *log.Logger) JobHandler {
	return func(ctx context.Context, job *Job) error {
		purged, err := sessions.PurgeExpired(db.WithContext(ctx))
		if err != nil {
			return err
		}
		if purged > 0 {
			logger.Info("purged expired sessions", "count", purged, "job", job.ID)
		}
		return nil
	}
}

// Periodic calls run once at start and then every interval until stopped.
// Failures are logged and the schedule continues.
type Periodic struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	logger   *log.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

// DefaultPeriodicInterval replaces a non-positive interval.
const DefaultPeriodicInterval = time.Hour

func NewPeriodic(name string, interval time.Duration, run func(ctx context.Context) error, logger *log.Logger) *Periodic {
	if interval <= 0 {
		interval = DefaultPeriodicInterval
	}
	return &Periodic{
		name:     name,
		interval: interval,
		run:      run,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (p *Periodic) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			if err := p.run(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("periodic job failed", "job", p.name, "err", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (p *Periodic) Stop() {
	p.once.Do(func() {
		if p.cancel == nil {
			close(p.done)
			return
		}
		p.cancel()
	})
	<-p.done
}

// EnqueueEvery schedules jobType onto queue at every interval.
func EnqueueEvery(queue *JobQueue, name string, jobType JobType, interval time.Duration, logger *log.Logger) *Periodic {
	return NewPeriodic(name, interval, func(ctx context.Context) error {
		_, err := queue.Enqueue(ctx, DefaultQueue, jobType, nil)
		return err
	}, logger)
}
