package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypeSessionCleanup JobType = "session_cleanup"
)

const (
	DefaultQueue = "default"
	RetryQueue   = "retry_queue"
	DeadQueue    = "dead_queue"
)

// ErrJobNotDue is returned by ProcessNext when the popped job was scheduled
// for later and went back on its queue.
var ErrJobNotDue = errors.New("job not due yet")

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type Worker struct {
	client       *redis.Client
	handlers     map[JobType]JobHandler
	queues       []string
	pollInterval time.Duration
	retryBackoff time.Duration
	jobTimeout   time.Duration
	logger       *log.Logger
	mu           sync.RWMutex
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

type WorkerConfig struct {
	RedisClient  *redis.Client
	PollInterval time.Duration
	RetryBackoff time.Duration
	JobTimeout   time.Duration
	Queues       []string
	Logger       *log.Logger
}

func NewWorker(config WorkerConfig) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Minute
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Second
	}
	if len(config.Queues) == 0 {
		config.Queues = []string{DefaultQueue, RetryQueue}
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	return &Worker{
		client:       config.RedisClient,
		handlers:     make(map[JobType]JobHandler),
		queues:       config.Queues,
		pollInterval: config.PollInterval,
		retryBackoff: config.RetryBackoff,
		jobTimeout:   config.JobTimeout,
		logger:       config.Logger.WithPrefix("worker"),
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches concurrency loops that run until ctx is cancelled or Stop
// is called.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, w.cancel = context.WithCancel(ctx)

	w.logger.Info("starting", "concurrency", concurrency, "queues", w.queues)
	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx)
	}
}

func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.logger.Info("stopping")
	w.cancel()
	w.wg.Wait()
	w.logger.Info("stopped")
}

func (w *Worker) workerLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		err := w.ProcessNext(ctx)
		switch {
		case err == nil:
			continue
		case errors.Is(err, ErrJobNotDue):
		case ctx.Err() != nil:
			return
		default:
			w.logger.Error("failed to process job", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// ProcessNext pops one job from the configured queues and runs it. An empty
// queue after the poll interval is not an error.
func (w *Worker) ProcessNext(ctx context.Context) error {
	result, err := w.client.BLPop(ctx, w.pollInterval, w.queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	queue := result[0]
	jobData := result[1]

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	if time.Now().Before(job.ProcessAt) {
		if err := w.enqueueJob(ctx, queue, &job); err != nil {
			return err
		}
		return ErrJobNotDue
	}

	return w.executeJob(ctx, &job)
}

func (w *Worker) executeJob(ctx context.Context, job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		return w.moveToDeadQueue(ctx, job, fmt.Errorf("no handler registered for job type: %s", job.Type))
	}

	w.logger.Debug("processing job", "id", job.ID, "type", job.Type)

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	err := handler(jobCtx, job)
	if err != nil {
		job.Attempts++
		if job.Attempts < job.MaxTries {
			w.logger.Warn("job failed, retrying",
				"id", job.ID, "attempt", job.Attempts, "max_tries", job.MaxTries, "err", err)
			return w.retryJob(ctx, job)
		}

		w.logger.Error("job failed permanently", "id", job.ID, "attempts", job.Attempts, "err", err)
		return w.moveToDeadQueue(ctx, job, err)
	}

	w.logger.Debug("job completed", "id", job.ID, "type", job.Type)
	return nil
}

func (w *Worker) retryJob(ctx context.Context, job *Job) error {
	delay := time.Duration(1<<job.Attempts) * w.retryBackoff
	job.ProcessAt = time.Now().Add(delay)

	return w.enqueueJob(ctx, RetryQueue, job)
}

func (w *Worker) enqueueJob(ctx context.Context, queue string, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return w.client.RPush(ctx, queue, jobData).Err()
}

type DeadJob struct {
	Job      *Job      `json:"original_job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func (w *Worker) moveToDeadQueue(ctx context.Context, job *Job, jobErr error) error {
	deadJobData, err := json.Marshal(DeadJob{
		Job:      job,
		Error:    jobErr.Error(),
		FailedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}

	return w.client.RPush(ctx, DeadQueue, deadJobData).Err()
}

type JobQueue struct {
	client   *redis.Client
	maxTries int
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client, maxTries: 3}
}

func (q *JobQueue) Enqueue(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}) (*Job, error) {
	return q.EnqueueAt(ctx, queue, jobType, payload, time.Now())
}

func (q *JobQueue) EnqueueAt(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) (*Job, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job ID: %w", err)
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        id.String(),
		Type:      jobType,
		Payload:   payload,
		MaxTries:  q.maxTries,
		CreatedAt: now,
		ProcessAt: processAt.UTC(),
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := q.client.RPush(ctx, queue, jobData).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

func (q *JobQueue) GetQueueSize(ctx context.Context, queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return q.client.LLen(ctx, queue).Result()
}

// QueueStats reports the depth of each named queue. A queue whose length
// cannot be read is reported as "unavailable".
func (q *JobQueue) QueueStats(ctx context.Context, queues ...string) map[string]interface{} {
	stats := make(map[string]interface{}, len(queues))
	for _, name := range queues {
		size, err := q.GetQueueSize(ctx, name)
		if err != nil {
			stats[name] = "unavailable"
			continue
		}
		stats[name] = size
	}
	return stats
}
