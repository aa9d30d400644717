package services

import (
	"context"
	"errors"
	"fmt"

	"mailwatch/internal/domain/emaillog"
	"mailwatch/internal/domain/notification"
	"mailwatch/internal/queue"
	"mailwatch/internal/settings"
	mailwatch_errors "mailwatch/pkg/errors"
	"mailwatch/pkg/logger"
)

// maxSyncBatches bounds how deep a reconciliation scan digs into a queue
// before giving up the search.
const maxSyncBatches = 5

// SyncResult is the structured summary returned to the operator. "Not found"
// is a zero-valued result, never an error.
type SyncResult struct {
	EventsProcessed   int      `json:"events_processed"`
	EventsFailed      int      `json:"events_failed"`
	TotalEventsFound  int      `json:"total_events_found"`
	PrimaryQueueFound int      `json:"primary_queue_found"`
	DLQFound          int      `json:"dlq_found"`
	ExistingLogFound  bool     `json:"existing_log_found"`
	QueuesSearched    []string `json:"queues_searched"`
	Message           string   `json:"message"`
}

type foundMessage struct {
	messageID     string
	evtType       emaillog.EventType
	body          []byte
	receiptHandle string
	queueURL      string
	deletable     bool
}

// SyncService scans the primary queue and its dead-letter queue in bounded
// batches for messages matching a target identifier. Matches are processed
// and acknowledged; non-matches stay in place for the regular worker.
type SyncService struct {
	queue    queue.API
	tracking *TrackingService
	settings settings.Provider
	log      *logger.Logger
}

func NewSyncService(q queue.API, tracking *TrackingService, provider settings.Provider, log *logger.Logger) *SyncService {
	return &SyncService{
		queue:    q,
		tracking: tracking,
		settings: provider,
		log:      log,
	}
}

// ManualSync searches both queues for notifications carrying the given
// identifier, deduplicates across queues by (identifier, event type), and
// processes what it finds. Invoked interactively, so it reports rather than
// raises for everything except configuration and transport failures.
func (s *SyncService) ManualSync(ctx context.Context, target string) (*SyncResult, error) {
	cfg, err := s.settings.Tracking(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("%w: queue endpoint is not configured (set %s)", mailwatch_errors.ErrConfiguration, settings.KeyQueueURL)
	}

	result := &SyncResult{}

	if _, err := s.tracking.LookupLog(ctx, target); err == nil {
		result.ExistingLogFound = true
	} else if !errors.Is(err, mailwatch_errors.ErrLogNotFound) {
		return nil, err
	}

	primary, err := s.scanQueue(ctx, cfg.QueueURL, target, cfg, true)
	if err != nil {
		return nil, err
	}
	result.QueuesSearched = append(result.QueuesSearched, "primary")
	result.PrimaryQueueFound = len(primary)

	var dlq []foundMessage
	if cfg.DLQURL != "" {
		// The DLQ scan is a read-only forensic search; nothing is deleted.
		dlq, err = s.scanQueue(ctx, cfg.DLQURL, target, cfg, false)
		if err != nil {
			return nil, err
		}
		result.QueuesSearched = append(result.QueuesSearched, "dlq")
		result.DLQFound = len(dlq)
	}

	deduped := dedupeAcrossQueues(primary, dlq)
	result.TotalEventsFound = len(deduped)

	for _, msg := range deduped {
		if _, err := s.tracking.ProcessNotification(ctx, msg.body); err != nil {
			result.EventsFailed++
			s.log.Warnf("manual sync: failed to process %s/%s: %v", msg.messageID, msg.evtType, err)
			continue
		}
		result.EventsProcessed++
		if msg.deletable {
			// Already-deleted is not an error: the regular worker may have
			// retrieved the same message concurrently.
			if err := s.queue.Delete(ctx, msg.queueURL, msg.receiptHandle); err != nil {
				s.log.Warnf("manual sync: failed to delete %s from queue: %v", msg.messageID, err)
			}
		}
	}

	result.Message = syncMessage(target, result)
	return result, nil
}

// scanQueue fetches up to maxSyncBatches batches looking for notifications
// that carry the target identifier. An empty identifier matches everything.
// Non-matches are left in place for their natural visibility-timeout-driven
// reprocessing.
func (s *SyncService) scanQueue(ctx context.Context, queueURL, target string, cfg settings.TrackingConfig, deletable bool) ([]foundMessage, error) {
	var matches []foundMessage

	for batch := 0; batch < maxSyncBatches; batch++ {
		messages, err := s.queue.Receive(ctx, queueURL, cfg.MaxMessagesPerPoll, cfg.VisibilityTimeoutSecs)
		if err != nil {
			return matches, err
		}
		if len(messages) == 0 {
			break
		}

		for _, m := range messages {
			n, err := notification.Decode(m.Body)
			if err != nil {
				// Malformed payloads stay in the queue and age out to the DLQ.
				s.log.Warnf("sync scan: undecodable message on %s: %v", queueURL, err)
				continue
			}
			messageID, err := n.ExtractMessageID()
			if err != nil {
				continue
			}
			evtType, err := n.Type()
			if err != nil {
				continue
			}
			if target != "" && messageID != target {
				continue
			}
			matches = append(matches, foundMessage{
				messageID:     messageID,
				evtType:       evtType,
				body:          m.Body,
				receiptHandle: m.ReceiptHandle,
				queueURL:      queueURL,
				deletable:     deletable,
			})
		}
	}
	return matches, nil
}

// dedupeAcrossQueues collapses messages present in both queues by
// (identifier, event type), preferring the primary-queue copy so the
// acknowledgment lands where it should.
func dedupeAcrossQueues(primary, dlq []foundMessage) []foundMessage {
	seen := make(map[string]bool)
	deduped := make([]foundMessage, 0, len(primary)+len(dlq))
	for _, msg := range append(primary, dlq...) {
		key := msg.messageID + "|" + string(msg.evtType)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, msg)
	}
	return deduped
}

func syncMessage(target string, r *SyncResult) string {
	if r.TotalEventsFound == 0 {
		if r.ExistingLogFound {
			return fmt.Sprintf("no queued events found for %s; existing log is up to date", target)
		}
		return fmt.Sprintf("no queued events or local log found for %s", target)
	}
	return fmt.Sprintf("found %d event(s) for %s: %d processed, %d failed",
		r.TotalEventsFound, target, r.EventsProcessed, r.EventsFailed)
}
