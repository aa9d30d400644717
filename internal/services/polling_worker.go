package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"mailwatch/internal/domain/notification"
	"mailwatch/internal/queue"
	"mailwatch/internal/settings"
	mailwatch_errors "mailwatch/pkg/errors"
	"mailwatch/pkg/logger"
)

// WorkerStatus is a point-in-time snapshot of the polling loop, reported
// without interrupting it.
type WorkerStatus struct {
	Running         bool       `json:"running"`
	Paused          bool       `json:"paused"`
	LastPollAt      *time.Time `json:"last_poll_at,omitempty"`
	LastBatchSize   int        `json:"last_batch_size"`
	TotalProcessed  int64      `json:"total_processed"`
	TotalFailed     int64      `json:"total_failed"`
	BacklogEstimate int        `json:"backlog_estimate"`
}

// PollingWorker pulls notification batches off the primary queue on a fixed
// timer and routes them through the tracking service. Messages that process
// successfully are deleted; failures are left to reappear after the
// visibility timeout expires, with the provider's DLQ threshold as the
// retry backstop.
type PollingWorker struct {
	queue    queue.API
	tracking *TrackingService
	settings settings.Provider
	log      *logger.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu             sync.Mutex
	running        bool
	paused         bool
	lastPollAt     time.Time
	lastBatchSize  int
	totalProcessed int64
	totalFailed    int64
}

func NewPollingWorker(q queue.API, tracking *TrackingService, provider settings.Provider, log *logger.Logger) *PollingWorker {
	return &PollingWorker{
		queue:    q,
		tracking: tracking,
		settings: provider,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Start begins the worker loop
func (w *PollingWorker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run()
}

// Stop gracefully shuts down
func (w *PollingWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
}

// Pause skips polling ticks without stopping the loop.
func (w *PollingWorker) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = true
}

func (w *PollingWorker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = false
}

func (w *PollingWorker) Status(ctx context.Context) WorkerStatus {
	w.mu.Lock()
	status := WorkerStatus{
		Running:        w.running,
		Paused:         w.paused,
		LastBatchSize:  w.lastBatchSize,
		TotalProcessed: w.totalProcessed,
		TotalFailed:    w.totalFailed,
	}
	if !w.lastPollAt.IsZero() {
		t := w.lastPollAt
		status.LastPollAt = &t
	}
	w.mu.Unlock()

	if cfg, err := w.settings.Tracking(ctx); err == nil && cfg.QueueURL != "" {
		if depth, err := w.queue.Depth(ctx, cfg.QueueURL); err == nil {
			status.BacklogEstimate = depth
		}
	}
	return status
}

func (w *PollingWorker) run() {
	defer w.wg.Done()

	interval := w.pollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.mu.Lock()
			paused := w.paused
			w.mu.Unlock()
			if paused {
				continue
			}
			w.Poll(context.Background())

			// Settings may retune the interval between ticks.
			if next := w.pollInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (w *PollingWorker) pollInterval() time.Duration {
	cfg, err := w.settings.Tracking(context.Background())
	if err != nil {
		return 5 * time.Second
	}
	return cfg.PollingInterval()
}

// Poll executes one tick: fetch a batch, deduplicate it, process each
// message, and acknowledge exactly the successes. A provider error aborts
// the tick without crashing the loop; there is no cancellation mid-batch.
func (w *PollingWorker) Poll(ctx context.Context) {
	cfg, err := w.settings.Tracking(ctx)
	if err != nil {
		w.log.Errorf("polling worker: failed to load settings: %v", err)
		return
	}
	if !cfg.Enabled || !cfg.PollingEnabled || cfg.QueueURL == "" {
		return
	}

	messages, err := w.queue.Receive(ctx, cfg.QueueURL, cfg.MaxMessagesPerPoll, cfg.VisibilityTimeoutSecs)
	if err != nil {
		w.log.Errorf("polling worker: receive failed: %v", err)
		return
	}

	w.mu.Lock()
	w.lastPollAt = time.Now().UTC()
	w.lastBatchSize = len(messages)
	w.mu.Unlock()

	if len(messages) == 0 {
		return
	}

	var processed, failed int64
	seen := make(map[string]bool, len(messages))

	for _, m := range messages {
		key, ok := batchKey(m)
		if ok && seen[key] {
			// Exact repeat inside one batch; the first copy's processing
			// covers it, so it is acknowledged without reprocessing.
			w.deleteMessage(ctx, cfg.QueueURL, m)
			continue
		}
		if ok {
			seen[key] = true
		}

		if _, err := w.tracking.ProcessNotification(ctx, m.Body); err != nil {
			failed++
			if errors.Is(err, mailwatch_errors.ErrLogNotFound) {
				// The email was never logged (sampled out). Reported, not
				// retried: keeping the message would only cycle it into
				// the DLQ.
				w.log.Infof("polling worker: no log for message, dropping: %v", err)
				w.deleteMessage(ctx, cfg.QueueURL, m)
				continue
			}
			w.log.Warnf("polling worker: processing failed, leaving for redelivery: %v", err)
			continue
		}
		processed++
		w.deleteMessage(ctx, cfg.QueueURL, m)
	}

	w.mu.Lock()
	w.totalProcessed += processed
	w.totalFailed += failed
	w.mu.Unlock()

	w.log.Infof("polling worker: batch of %d, %d processed, %d failed", len(messages), processed, failed)
}

func (w *PollingWorker) deleteMessage(ctx context.Context, queueURL string, m queue.Message) {
	if err := w.queue.Delete(ctx, queueURL, m.ReceiptHandle); err != nil {
		w.log.Warnf("polling worker: delete failed for %s: %v", m.ID, err)
	}
}

// batchKey derives the (identifier, event type) dedup key for one message.
func batchKey(m queue.Message) (string, bool) {
	n, err := notification.Decode(m.Body)
	if err != nil {
		return "", false
	}
	messageID, err := n.ExtractMessageID()
	if err != nil {
		return "", false
	}
	evtType, err := n.Type()
	if err != nil {
		return "", false
	}
	return messageID + "|" + string(evtType), true
}
