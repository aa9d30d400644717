package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mailwatch/internal/domain/emaillog"
	"mailwatch/internal/queue"
	"mailwatch/internal/repository"
	"mailwatch/internal/settings"
	mailwatch_errors "mailwatch/pkg/errors"
	"mailwatch/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.DevelopmentMode)
}

// --- settings fake ---

type fakeSettings struct {
	cfg settings.TrackingConfig
	err error
}

func (f *fakeSettings) Tracking(ctx context.Context) (settings.TrackingConfig, error) {
	if f.err != nil {
		return settings.TrackingConfig{}, f.err
	}
	return f.cfg, nil
}

func defaultTestConfig() settings.TrackingConfig {
	return settings.TrackingConfig{
		Enabled:               true,
		SamplingRate:          100,
		PollingEnabled:        true,
		PollingIntervalMs:     5000,
		MaxMessagesPerPoll:    10,
		VisibilityTimeoutSecs: 60,
		QueueURL:              "https://sqs.test/primary",
		DLQURL:                "https://sqs.test/dlq",
		RetentionDays:         90,
		CompressAfterDays:     30,
	}
}

// --- log repository fake ---

type fakeLogRepo struct {
	mu   sync.Mutex
	logs map[uuid.UUID]emaillog.EmailLog

	counts    repository.StatusCounts
	daily     []repository.DailyCount
	templates []repository.TemplateEngagement
	domains   []repository.DomainCount

	// blockUntilCancel makes aggregate queries hang until the context is
	// done, to exercise the dashboard deadline.
	blockUntilCancel bool
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{logs: make(map[uuid.UUID]emaillog.EmailLog)}
}

func (f *fakeLogRepo) Create(ctx context.Context, l *emaillog.EmailLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[l.ID] = *l
	return nil
}

func (f *fakeLogRepo) GetByID(ctx context.Context, id uuid.UUID) (emaillog.EmailLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.logs[id]; ok {
		return l, nil
	}
	return emaillog.EmailLog{}, mailwatch_errors.ErrNotFound
}

func (f *fakeLogRepo) GetByTrackingID(ctx context.Context, trackingID string) (emaillog.EmailLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.logs {
		if l.TrackingID == trackingID {
			return l, nil
		}
	}
	return emaillog.EmailLog{}, mailwatch_errors.ErrNotFound
}

func (f *fakeLogRepo) GetByProviderMessageID(ctx context.Context, messageID string) (emaillog.EmailLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.logs {
		if l.ProviderMessageID.Valid && l.ProviderMessageID.String == messageID {
			return l, nil
		}
	}
	return emaillog.EmailLog{}, mailwatch_errors.ErrNotFound
}

func (f *fakeLogRepo) Update(ctx context.Context, l emaillog.EmailLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.logs[l.ID]; !ok {
		return mailwatch_errors.ErrNotFound
	}
	f.logs[l.ID] = l
	return nil
}

func (f *fakeLogRepo) List(ctx context.Context, filter repository.ListFilter) ([]emaillog.EmailLog, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emaillog.EmailLog
	for _, l := range f.logs {
		out = append(out, l)
	}
	return out, int64(len(out)), nil
}

func (f *fakeLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, l := range f.logs {
		if l.SentAt.Before(cutoff) {
			delete(f.logs, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeLogRepo) CompressBodiesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, l := range f.logs {
		if l.SentAt.Before(cutoff) && (l.Body.Valid || l.Headers.Valid) {
			l.Body.Valid = false
			l.Headers.Valid = false
			f.logs[id] = l
			n++
		}
	}
	return n, nil
}

func (f *fakeLogRepo) await(ctx context.Context) error {
	if !f.blockUntilCancel {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeLogRepo) CountsByStatus(ctx context.Context, from, to time.Time) (repository.StatusCounts, error) {
	if err := f.await(ctx); err != nil {
		return repository.StatusCounts{}, err
	}
	return f.counts, nil
}

func (f *fakeLogRepo) DailyCounts(ctx context.Context, from, to time.Time) ([]repository.DailyCount, error) {
	if err := f.await(ctx); err != nil {
		return nil, err
	}
	return f.daily, nil
}

func (f *fakeLogRepo) TemplateEngagement(ctx context.Context, from, to time.Time) ([]repository.TemplateEngagement, error) {
	if err := f.await(ctx); err != nil {
		return nil, err
	}
	return f.templates, nil
}

func (f *fakeLogRepo) DomainCounts(ctx context.Context, from, to time.Time) ([]repository.DomainCount, error) {
	if err := f.await(ctx); err != nil {
		return nil, err
	}
	return f.domains, nil
}

// --- event repository fake ---

type fakeEventRepo struct {
	mu     sync.Mutex
	events map[string]emaillog.EmailEvent
	geo    []repository.GeoCount
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[string]emaillog.EmailEvent)}
}

func eventKey(messageID string, evtType emaillog.EventType) string {
	return messageID + "|" + string(evtType)
}

func (f *fakeEventRepo) Create(ctx context.Context, e *emaillog.EmailEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := eventKey(e.MessageID, e.EventType)
	if _, ok := f.events[key]; ok {
		return mailwatch_errors.ErrAlreadyExists
	}
	f.events[key] = *e
	return nil
}

func (f *fakeEventRepo) GetByMessageIDAndType(ctx context.Context, messageID string, evtType emaillog.EventType) (emaillog.EmailEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.events[eventKey(messageID, evtType)]; ok {
		return e, nil
	}
	return emaillog.EmailEvent{}, mailwatch_errors.ErrNotFound
}

func (f *fakeEventRepo) ListByLog(ctx context.Context, logID uuid.UUID) ([]emaillog.EmailEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emaillog.EmailEvent
	for _, e := range f.events {
		if e.LogID == logID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for key, e := range f.events {
		if e.OccurredAt.Before(cutoff) {
			delete(f.events, key)
			n++
		}
	}
	return n, nil
}

func (f *fakeEventRepo) GeoCounts(ctx context.Context, from, to time.Time) ([]repository.GeoCount, error) {
	return f.geo, nil
}

func (f *fakeEventRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// --- queue fake ---

type fakeQueue struct {
	mu         sync.Mutex
	messages   map[string][]queue.Message
	cursor     map[string]int
	deleted    map[string][]string
	receiveErr error
	depth      int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		messages: make(map[string][]queue.Message),
		cursor:   make(map[string]int),
		deleted:  make(map[string][]string),
	}
}

func (q *fakeQueue) push(queueURL string, m queue.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages[queueURL] = append(q.messages[queueURL], m)
}

func (q *fakeQueue) Receive(ctx context.Context, queueURL string, maxMessages int, visibilityTimeoutSecs int) ([]queue.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.receiveErr != nil {
		return nil, q.receiveErr
	}
	msgs := q.messages[queueURL]
	c := q.cursor[queueURL]
	if c >= len(msgs) {
		return nil, nil
	}
	end := c + maxMessages
	if end > len(msgs) {
		end = len(msgs)
	}
	q.cursor[queueURL] = end
	return msgs[c:end], nil
}

func (q *fakeQueue) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted[queueURL] = append(q.deleted[queueURL], receiptHandle)
	return nil
}

func (q *fakeQueue) Depth(ctx context.Context, queueURL string) (int, error) {
	return q.depth, nil
}

func (q *fakeQueue) deletedFrom(queueURL string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deleted[queueURL]...)
}

// --- sender fake ---

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	fail error
}

func (s *fakeSender) From() string {
	return "sender@mailwatch.local"
}

func (s *fakeSender) Send(to, subject, htmlBody string, headers map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, to)
	return nil
}

func (s *fakeSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
