package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/LucaWinkler/FlohMarkt/internal/pkg/env"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/mail"
	metrics "github.com/LucaWinkler/FlohMarkt/internal/pkg/metrics/counter"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/sideeffect"
	"github.com/gofiber/fiber/v2/log"
	"github.com/hibiken/asynq"
)

// Manager manages the task queue, the worker server, the scheduler for
// recurring jobs and background tasks
type Manager struct {
	redisOpt    asynq.RedisClientOpt
	client      *asynq.Client
	inspector   *asynq.Inspector
	mux         *asynq.ServeMux
	server      *asynq.Server
	scheduler   *asynq.Scheduler
	concurrency int
	maxRetry    int

	counterFlushTicker *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = NewManagerFromEnv()
	})
	return globalManager
}

// NewManagerFromEnv builds a queue manager from environment settings. The
// queue shares the Redis instance of the cache layer.
func NewManagerFromEnv() *Manager {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")
	redisOpt := asynq.RedisClientOpt{Addr: fmt.Sprintf("%s:%s", host, port)}

	// Get worker count from settings, fallback to 5 if not available
	concurrency := 5
	if raw := env.GetEnv("QUEUE_CONCURRENCY", ""); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			concurrency = v
		}
	}

	return &Manager{
		redisOpt:    redisOpt,
		client:      asynq.NewClient(redisOpt),
		inspector:   asynq.NewInspector(redisOpt),
		mux:         asynq.NewServeMux(),
		concurrency: concurrency,
		maxRetry:    maxRetryFromEnv(),
		stopCh:      make(chan struct{}),
	}
}

// HandleFunc registers a task handler on the worker mux. Handlers must be
// registered before Start.
func (m *Manager) HandleFunc(pattern string, handler func(context.Context, *asynq.Task) error) {
	m.mux.HandleFunc(pattern, handler)
}

// Start starts the worker server, the scheduler and the background tasks
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	log.Info("[Queue Manager] Starting worker server and scheduler")

	m.server = asynq.NewServer(m.redisOpt, asynq.Config{
		Concurrency: m.concurrency,
		Queues: map[string]int{
			QueueWebhooks:    6,
			QueueDefault:     3,
			QueueMaintenance: 1,
		},
		RetryDelayFunc: RetryDelay,
		ErrorHandler:   asynq.ErrorHandlerFunc(m.handleProcessError),
	})
	if err := m.server.Start(m.mux); err != nil {
		m.server = nil
		return err
	}

	m.scheduler = asynq.NewScheduler(m.redisOpt, nil)
	if err := m.registerRecurring(); err != nil {
		m.server.Shutdown()
		m.server = nil
		m.scheduler = nil
		return err
	}
	if err := m.scheduler.Start(); err != nil {
		m.server.Shutdown()
		m.server = nil
		m.scheduler = nil
		return err
	}

	// Start counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker()

	m.running = true
	log.Info("[Queue Manager] Started successfully")
	return nil
}

// registerRecurring registers the recurring maintenance jobs with the
// scheduler. Intervals are configurable in minutes.
func (m *Manager) registerRecurring() error {
	offerInterval := intervalFromEnv("OFFER_SWEEP_INTERVAL_MINUTES", 10)
	reconcileInterval := intervalFromEnv("WEBHOOK_RECONCILE_INTERVAL_MINUTES", 5)

	if _, err := m.scheduler.Register(
		fmt.Sprintf("@every %dm", offerInterval),
		NewOfferSweepTask(),
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(3),
	); err != nil {
		return err
	}
	if _, err := m.scheduler.Register(
		fmt.Sprintf("@every %dm", reconcileInterval),
		NewWebhookReconcileTask(),
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(3),
	); err != nil {
		return err
	}
	return nil
}

// Stop drains the manager: the scheduler stops producing, the worker
// server finishes in-flight tasks, then the background tasks exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Queue Manager] Stopping worker server and scheduler...")

	if m.scheduler != nil {
		m.scheduler.Shutdown()
		m.scheduler = nil
	}
	if m.server != nil {
		m.server.Stop()
		m.server.Shutdown()
		m.server = nil
	}

	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	// Signal background workers to stop
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	log.Info("[Queue Manager] Stopped successfully")
}

// Close releases the queue connections. Call after Stop on process exit.
func (m *Manager) Close() error {
	if err := m.client.Close(); err != nil {
		return err
	}
	return m.inspector.Close()
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Inspector returns the asynq inspector for operator queries
func (m *Manager) Inspector() *asynq.Inspector {
	return m.inspector
}

// EnqueueWebhookProcess schedules processing for a stored event. A second
// enqueue for the same event is a no-op while the first task still exists.
func (m *Manager) EnqueueWebhookProcess(eventID uint, provider string) error {
	task, err := NewWebhookProcessTask(eventID, provider)
	if err != nil {
		return err
	}
	info, err := m.client.Enqueue(task,
		asynq.Queue(QueueWebhooks),
		asynq.TaskID(WebhookProcessTaskID(eventID)),
		asynq.MaxRetry(m.maxRetry),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			log.Debugf("[Queue Manager] event %d is already queued", eventID)
			return nil
		}
		return err
	}
	log.Debugf("[Queue Manager] enqueued %s id=%s queue=%s", task.Type(), info.ID, info.Queue)
	return nil
}

// handleProcessError runs for every failed task execution. Final failures
// are about to land in the dead letter archive and trigger the ops alert.
func (m *Manager) handleProcessError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	taskID, _ := asynq.GetTaskID(ctx)

	if errors.Is(err, asynq.SkipRetry) || retried >= maxRetry {
		log.Errorf("[Queue Manager] task %s (id=%s) moved to dead letter archive: %v", task.Type(), taskID, err)
		sideeffect.Observe("dead letter alert", func() error {
			return mail.SendDeadLetterAlert(task.Type(), taskID, err)
		})
		return
	}
	log.Warnf("[Queue Manager] task %s (id=%s) failed attempt %d/%d: %v", task.Type(), taskID, retried+1, maxRetry, err)
}

// counterFlushWorker periodically flushes pending webhook counters from Redis to DB
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Queue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[Queue Manager] Counter flush error: %v", err)
			}
		}
	}
}

// intervalFromEnv reads a positive minute interval from the environment
func intervalFromEnv(key string, fallback int) int {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
