package emaillog

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the displayed lifecycle status of an outbound email.
type Status string

const (
	StatusSent       Status = "sent"
	StatusDelivered  Status = "delivered"
	StatusOpened     Status = "opened"
	StatusClicked    Status = "clicked"
	StatusBounced    Status = "bounced"
	StatusComplained Status = "complained"
)

// EventType is the lifecycle occurrence reported by the provider.
type EventType string

const (
	EventDelivery  EventType = "delivery"
	EventBounce    EventType = "bounce"
	EventComplaint EventType = "complaint"
	EventOpen      EventType = "open"
	EventClick     EventType = "click"
)

// EmailLog represents the email_logs table: one row per outbound send attempt.
type EmailLog struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey"`
	TrackingID        string         `gorm:"size:64;uniqueIndex"`
	ProviderMessageID sql.NullString `gorm:"size:255;index"`
	Recipient         string         `gorm:"size:320;index"`
	Sender            string         `gorm:"size:320"`
	Subject           string         `gorm:"size:998"`
	TemplateID        uuid.NullUUID  `gorm:"index"`
	CampaignID        uuid.NullUUID  `gorm:"index"`
	Status            Status         `gorm:"size:16;index"`
	SentAt            time.Time      `gorm:"index"`
	DeliveredAt       sql.NullTime
	OpenedAt          sql.NullTime
	ClickedAt         sql.NullTime
	BounceType        sql.NullString `gorm:"size:64"`
	Body              sql.NullString
	Headers           sql.NullString
	ConfigurationSet  sql.NullString `gorm:"size:128"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// EmailEvent represents email_events: one row per discrete lifecycle occurrence.
// Uniqueness on (message_id, event_type) is the replay guard for at-least-once
// queue delivery.
type EmailEvent struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	LogID         uuid.UUID      `gorm:"type:uuid;index"`
	MessageID     string         `gorm:"size:255;uniqueIndex:idx_email_events_message_type"`
	EventType     EventType      `gorm:"size:16;uniqueIndex:idx_email_events_message_type"`
	OccurredAt    time.Time      `gorm:"index"`
	Country       sql.NullString `gorm:"size:64"`
	Region        sql.NullString `gorm:"size:128"`
	LinkURL       sql.NullString `gorm:"size:2048"`
	BounceSubtype sql.NullString `gorm:"size:64"`
	RawPayload    string
	CreatedAt     time.Time
}

func (EmailLog) TableName() string {
	return "email_logs"
}

func (EmailEvent) TableName() string {
	return "email_events"
}
