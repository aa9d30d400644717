package services

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"mailwatch/internal/domain/classifier"
	"mailwatch/internal/domain/emaillog"
	"mailwatch/internal/repository"
	"mailwatch/internal/settings"
	"mailwatch/pkg/logger"
)

// Sender is the outbound transport hand-off.
type Sender interface {
	From() string
	Send(to, subject, htmlBody string, headers map[string]string) error
}

type SendInput struct {
	To               string
	Subject          string
	Body             string
	Headers          map[string]string
	TemplateID       uuid.NullUUID
	CampaignID       uuid.NullUUID
	ConfigurationSet string
}

// SendService hands mail to the transport and creates the tracking log,
// gated by the configured sampling rate.
type SendService struct {
	logRepo  repository.LogRepository
	mailer   Sender
	settings settings.Provider
	log      *logger.Logger
	sample   func() int
}

func NewSendService(logRepo repository.LogRepository, mailer Sender, provider settings.Provider, log *logger.Logger) *SendService {
	return &SendService{
		logRepo:  logRepo,
		mailer:   mailer,
		settings: provider,
		log:      log,
		sample:   func() int { return rand.Intn(100) },
	}
}

// Send delivers the message and, when the sampling gate passes, records an
// EmailLog for lifecycle tracking. The returned log is nil for sampled-out
// or tracking-disabled sends; the mail itself still goes out.
func (s *SendService) Send(ctx context.Context, in SendInput) (*emaillog.EmailLog, error) {
	cfg, err := s.settings.Tracking(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.mailer.Send(in.To, in.Subject, in.Body, in.Headers); err != nil {
		return nil, err
	}

	if !cfg.Enabled {
		return nil, nil
	}
	if s.sample() >= cfg.SamplingRate {
		return nil, nil
	}

	now := time.Now().UTC()
	l := &emaillog.EmailLog{
		ID:         uuid.New(),
		TrackingID: newTrackingID(),
		Recipient:  in.To,
		Sender:     s.mailer.From(),
		Subject:    in.Subject,
		TemplateID: in.TemplateID,
		CampaignID: in.CampaignID,
		Status:     emaillog.StatusSent,
		SentAt:     now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.ConfigurationSet != "" {
		l.ConfigurationSet = sql.NullString{String: in.ConfigurationSet, Valid: true}
	}
	if cfg.SaveBody {
		l.Body = sql.NullString{String: in.Body, Valid: true}
	}
	if cfg.SaveHeaders && len(in.Headers) > 0 {
		if data, err := json.Marshal(in.Headers); err == nil {
			l.Headers = sql.NullString{String: string(data), Valid: true}
		}
	}

	if err := s.logRepo.Create(ctx, l); err != nil {
		// The mail is already gone; a failed log write degrades tracking,
		// it does not fail the send.
		s.log.Errorf("failed to create email log for %s: %v", in.To, err)
		return nil, nil
	}

	return l, nil
}

func newTrackingID() string {
	id := uuid.New()
	return classifier.InternalPrefix + hex.EncodeToString(id[:])
}
