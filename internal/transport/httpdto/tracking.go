package httpdto

import "time"

type SendEmailRequest struct {
	To               string            `json:"to" binding:"required,email"`
	Subject          string            `json:"subject" binding:"required"`
	Body             string            `json:"body" binding:"required"`
	Headers          map[string]string `json:"headers,omitempty"`
	TemplateID       string            `json:"template_id,omitempty"`
	CampaignID       string            `json:"campaign_id,omitempty"`
	ConfigurationSet string            `json:"configuration_set,omitempty"`
}

type SendEmailResponse struct {
	Sent       bool   `json:"sent"`
	Logged     bool   `json:"logged"`
	TrackingID string `json:"tracking_id,omitempty"`
}

type EmailLogResponse struct {
	ID                string     `json:"id"`
	TrackingID        string     `json:"tracking_id"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	Recipient         string     `json:"recipient"`
	Sender            string     `json:"sender"`
	Subject           string     `json:"subject"`
	Status            string     `json:"status"`
	SentAt            time.Time  `json:"sent_at"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	OpenedAt          *time.Time `json:"opened_at,omitempty"`
	ClickedAt         *time.Time `json:"clicked_at,omitempty"`
	BounceType        string     `json:"bounce_type,omitempty"`
}

type EmailLogListResponse struct {
	Logs  []EmailLogResponse `json:"logs"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

type EmailEventResponse struct {
	ID            string    `json:"id"`
	MessageID     string    `json:"message_id"`
	EventType     string    `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	Country       string    `json:"country,omitempty"`
	Region        string    `json:"region,omitempty"`
	LinkURL       string    `json:"link_url,omitempty"`
	BounceSubtype string    `json:"bounce_subtype,omitempty"`
}

type WebhookAccepted struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
}
