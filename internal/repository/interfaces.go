package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mailwatch/internal/domain/emaillog"
)

type ListFilter struct {
	Status    string
	Recipient string
	Page      int
	Limit     int
}

// StatusCounts are window-scoped totals over email_logs. Delivered/opened/
// clicked count timestamp presence, not displayed status, so a clicked mail
// still counts as delivered.
type StatusCounts struct {
	Sent       int64
	Delivered  int64
	Opened     int64
	Clicked    int64
	Bounced    int64
	Complained int64
}

type DailyCount struct {
	Day       time.Time
	Sent      int64
	Delivered int64
	Opened    int64
	Clicked   int64
	Bounced   int64
}

type GeoCount struct {
	Country string
	Region  string
	Opens   int64
	Clicks  int64
}

type TemplateEngagement struct {
	TemplateID uuid.UUID
	Sent       int64
	Opened     int64
	Clicked    int64
}

type DomainCount struct {
	Domain    string
	Sent      int64
	Delivered int64
	Bounced   int64
	Opened    int64
	Clicked   int64
}

type LogRepository interface {
	Create(ctx context.Context, l *emaillog.EmailLog) error
	GetByID(ctx context.Context, id uuid.UUID) (emaillog.EmailLog, error)
	GetByTrackingID(ctx context.Context, trackingID string) (emaillog.EmailLog, error)
	GetByProviderMessageID(ctx context.Context, messageID string) (emaillog.EmailLog, error)
	Update(ctx context.Context, l emaillog.EmailLog) error
	List(ctx context.Context, filter ListFilter) ([]emaillog.EmailLog, int64, error)

	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	CompressBodiesOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	CountsByStatus(ctx context.Context, from, to time.Time) (StatusCounts, error)
	DailyCounts(ctx context.Context, from, to time.Time) ([]DailyCount, error)
	TemplateEngagement(ctx context.Context, from, to time.Time) ([]TemplateEngagement, error)
	DomainCounts(ctx context.Context, from, to time.Time) ([]DomainCount, error)
}

type EventRepository interface {
	Create(ctx context.Context, e *emaillog.EmailEvent) error
	GetByMessageIDAndType(ctx context.Context, messageID string, evtType emaillog.EventType) (emaillog.EmailEvent, error)
	ListByLog(ctx context.Context, logID uuid.UUID) ([]emaillog.EmailEvent, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	GeoCounts(ctx context.Context, from, to time.Time) ([]GeoCount, error)
}
