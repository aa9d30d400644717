// Package notification decodes provider delivery notifications, both pushed
// to the webhook endpoint and pulled off the queue inside a transport
// envelope.
package notification

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mailwatch/internal/domain/emaillog"
	mailwatch_errors "mailwatch/pkg/errors"
)

// Notification wraps the provider event data type.
type Notification struct {
	EventType        string     `json:"eventType"`
	NotificationType string     `json:"notificationType"`
	MessageID        string     `json:"messageId"`
	Mail             Mail       `json:"mail"`
	Bounce           *Bounce    `json:"bounce,omitempty"`
	Complaint        *Complaint `json:"complaint,omitempty"`
	Delivery         *Delivery  `json:"delivery,omitempty"`
	Open             *Open      `json:"open,omitempty"`
	Click            *Click     `json:"click,omitempty"`
}

type Mail struct {
	Timestamp     string        `json:"timestamp"`
	Source        string        `json:"source"`
	MessageID     string        `json:"messageId"`
	Destination   []string      `json:"destination"`
	CommonHeaders CommonHeaders `json:"commonHeaders"`
}

type CommonHeaders struct {
	MessageID string   `json:"messageId"`
	Subject   string   `json:"subject"`
	From      []string `json:"from"`
	To        []string `json:"to"`
}

type Bounce struct {
	BounceType        string             `json:"bounceType"`
	BounceSubType     string             `json:"bounceSubType"`
	Timestamp         string             `json:"timestamp"`
	BouncedRecipients []BouncedRecipient `json:"bouncedRecipients"`
}

type BouncedRecipient struct {
	EmailAddress   string `json:"emailAddress"`
	DiagnosticCode string `json:"diagnosticCode"`
}

type Complaint struct {
	ComplaintFeedbackType string `json:"complaintFeedbackType"`
	Timestamp             string `json:"timestamp"`
}

type Delivery struct {
	Timestamp  string   `json:"timestamp"`
	Recipients []string `json:"recipients"`
}

type Open struct {
	Timestamp string `json:"timestamp"`
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
	IPGeo     *Geo   `json:"ipGeo,omitempty"`
}

type Click struct {
	Timestamp string `json:"timestamp"`
	IPAddress string `json:"ipAddress"`
	Link      string `json:"link"`
	IPGeo     *Geo   `json:"ipGeo,omitempty"`
}

type Geo struct {
	Country string `json:"country"`
	Region  string `json:"region"`
}

// envelope is the transport-level wrapper queue messages arrive in. The real
// notification rides inside Message as an escaped JSON string.
type envelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// UnwrapEnvelope strips one layer of transport wrapping if present and
// returns the inner payload unchanged otherwise.
func UnwrapEnvelope(raw []byte) []byte {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return raw
	}
	if env.Message == "" {
		return raw
	}
	return []byte(env.Message)
}

// Decode unwraps and unmarshals a notification payload.
func Decode(raw []byte) (*Notification, error) {
	body := UnwrapEnvelope(raw)
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", mailwatch_errors.ErrParse, err)
	}
	return &n, nil
}

// Type normalizes the event-type discriminator. Providers send either an
// eventType or a notificationType field, in varying capitalization.
func (n *Notification) Type() (emaillog.EventType, error) {
	discriminator := n.EventType
	if discriminator == "" {
		discriminator = n.NotificationType
	}
	switch strings.ToLower(discriminator) {
	case "delivery":
		return emaillog.EventDelivery, nil
	case "bounce":
		return emaillog.EventBounce, nil
	case "complaint":
		return emaillog.EventComplaint, nil
	case "open":
		return emaillog.EventOpen, nil
	case "click":
		return emaillog.EventClick, nil
	}
	return "", fmt.Errorf("%w: unknown event type %q", mailwatch_errors.ErrParse, discriminator)
}

// ExtractMessageID locates the message identifier. Providers place it at one
// of three payload paths depending on notification variant.
func (n *Notification) ExtractMessageID() (string, error) {
	if n.MessageID != "" {
		return n.MessageID, nil
	}
	if n.Mail.MessageID != "" {
		return n.Mail.MessageID, nil
	}
	if n.Mail.CommonHeaders.MessageID != "" {
		return n.Mail.CommonHeaders.MessageID, nil
	}
	return "", mailwatch_errors.ErrMessageIDNotFound
}

// HeaderMessageID returns the Message-ID header the sender stamped on the
// mail, distinct from the provider-assigned identifier. Empty when the
// provider did not echo the headers back.
func (n *Notification) HeaderMessageID() string {
	if n.Mail.CommonHeaders.MessageID == n.MessageID {
		return ""
	}
	return n.Mail.CommonHeaders.MessageID
}

// OccurredAt returns the event-specific timestamp, falling back to the mail
// timestamp and finally to now for payloads that omit both.
func (n *Notification) OccurredAt() time.Time {
	var stamp string
	switch {
	case n.Delivery != nil:
		stamp = n.Delivery.Timestamp
	case n.Bounce != nil:
		stamp = n.Bounce.Timestamp
	case n.Complaint != nil:
		stamp = n.Complaint.Timestamp
	case n.Open != nil:
		stamp = n.Open.Timestamp
	case n.Click != nil:
		stamp = n.Click.Timestamp
	}
	if stamp == "" {
		stamp = n.Mail.Timestamp
	}
	if t, err := time.Parse(time.RFC3339, stamp); err == nil {
		return t
	}
	return time.Now().UTC()
}

// GeoFields returns the best-effort country/region for open and click events.
func (n *Notification) GeoFields() (country, region string) {
	var geo *Geo
	switch {
	case n.Open != nil:
		geo = n.Open.IPGeo
	case n.Click != nil:
		geo = n.Click.IPGeo
	}
	if geo == nil {
		return "", ""
	}
	return geo.Country, geo.Region
}

// BounceInfo returns the bounce classification pair, empty for other events.
func (n *Notification) BounceInfo() (bounceType, bounceSubtype string) {
	if n.Bounce == nil {
		return "", ""
	}
	return n.Bounce.BounceType, n.Bounce.BounceSubType
}

// LinkURL returns the clicked link for click events.
func (n *Notification) LinkURL() string {
	if n.Click == nil {
		return ""
	}
	return n.Click.Link
}
