package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mailwatch/internal/domain/classifier"
	"mailwatch/internal/domain/emaillog"
	"mailwatch/internal/domain/notification"
	"mailwatch/internal/repository"
	mailwatch_errors "mailwatch/pkg/errors"
	"mailwatch/pkg/logger"
)

// rawPayloadLimit caps the audit excerpt stored with each event.
const rawPayloadLimit = 1024

// TrackingService processes one decoded provider notification: locate the
// matching log, record the event exactly once, and drive the log's state
// transition. Safe to invoke concurrently for different identifiers and
// idempotent for the same one.
type TrackingService struct {
	logRepo   repository.LogRepository
	eventRepo repository.EventRepository
	log       *logger.Logger
}

func NewTrackingService(logRepo repository.LogRepository, eventRepo repository.EventRepository, log *logger.Logger) *TrackingService {
	return &TrackingService{
		logRepo:   logRepo,
		eventRepo: eventRepo,
		log:       log,
	}
}

// ProcessNotification ingests one raw notification payload (webhook body or
// unwrapped queue message). A duplicate submission returns the existing
// event without touching the log.
func (s *TrackingService) ProcessNotification(ctx context.Context, raw []byte) (*emaillog.EmailEvent, error) {
	n, err := notification.Decode(raw)
	if err != nil {
		return nil, err
	}

	evtType, err := n.Type()
	if err != nil {
		return nil, err
	}

	messageID, err := n.ExtractMessageID()
	if err != nil {
		return nil, err
	}

	l, kind, err := s.findLog(ctx, messageID, n.HeaderMessageID())
	if err != nil {
		return nil, err
	}

	// Replay guard: at-least-once queue delivery resubmits notifications.
	if existing, err := s.eventRepo.GetByMessageIDAndType(ctx, messageID, evtType); err == nil {
		return &existing, nil
	} else if !errors.Is(err, mailwatch_errors.ErrNotFound) {
		return nil, err
	}

	evt := s.buildEvent(n, l, messageID, evtType, raw)
	if err := s.eventRepo.Create(ctx, evt); err != nil {
		if errors.Is(err, mailwatch_errors.ErrAlreadyExists) {
			// Lost the race against a concurrent submission of the same
			// notification; the winner's row is the event.
			existing, getErr := s.eventRepo.GetByMessageIDAndType(ctx, messageID, evtType)
			if getErr != nil {
				return nil, getErr
			}
			return &existing, nil
		}
		return nil, err
	}

	bounceType, _ := n.BounceInfo()
	emaillog.ApplyEvent(&l, evtType, evt.OccurredAt, bounceType)

	// A provider-native id that reached us through an internal-id log fills
	// in the provider side of the join for later lookups.
	if !l.ProviderMessageID.Valid && kind == classifier.KindProviderNative {
		l.ProviderMessageID = sql.NullString{String: messageID, Valid: true}
	}

	if err := s.logRepo.Update(ctx, l); err != nil {
		return nil, err
	}

	s.log.Infof("processed %s event for message %s (log %s, status %s)", evtType, messageID, l.ID, l.Status)
	return evt, nil
}

// LookupLog resolves an identifier to its local log without side effects.
func (s *TrackingService) LookupLog(ctx context.Context, messageID string) (emaillog.EmailLog, error) {
	l, _, err := s.findLog(ctx, messageID, "")
	return l, err
}

// findLog resolves the message identifier to a local log using the
// classified lookup strategy. Ambiguous identifiers fall back to a dual
// lookup, internal namespace first. A provider-native identifier that has no
// provider-side row yet falls back to the echoed Message-ID header, which
// carries the internal tracking id for mail sent through here.
func (s *TrackingService) findLog(ctx context.Context, messageID, headerID string) (emaillog.EmailLog, classifier.Kind, error) {
	c := classifier.Classify(messageID)

	switch c.Strategy {
	case classifier.StrategyInternalLookup:
		l, err := s.logRepo.GetByTrackingID(ctx, messageID)
		return l, c.Kind, asLogNotFound(err, messageID)

	case classifier.StrategyProviderLookup:
		l, err := s.logRepo.GetByProviderMessageID(ctx, messageID)
		if errors.Is(err, mailwatch_errors.ErrNotFound) && headerID != "" {
			if hl, herr := s.logRepo.GetByTrackingID(ctx, headerID); herr == nil {
				s.log.Infof("provider id %s correlated via header id %s", messageID, headerID)
				return hl, c.Kind, nil
			}
		}
		return l, c.Kind, asLogNotFound(err, messageID)

	default:
		if l, err := s.logRepo.GetByTrackingID(ctx, messageID); err == nil {
			s.log.Infof("ambiguous id %s resolved via internal lookup", messageID)
			return l, c.Kind, nil
		} else if !errors.Is(err, mailwatch_errors.ErrNotFound) {
			return emaillog.EmailLog{}, c.Kind, err
		}
		l, err := s.logRepo.GetByProviderMessageID(ctx, messageID)
		if err == nil {
			s.log.Infof("ambiguous id %s resolved via provider lookup", messageID)
		}
		return l, c.Kind, asLogNotFound(err, messageID)
	}
}

func (s *TrackingService) buildEvent(n *notification.Notification, l emaillog.EmailLog, messageID string, evtType emaillog.EventType, raw []byte) *emaillog.EmailEvent {
	excerpt := string(raw)
	if len(excerpt) > rawPayloadLimit {
		excerpt = excerpt[:rawPayloadLimit]
	}

	evt := &emaillog.EmailEvent{
		ID:         uuid.New(),
		LogID:      l.ID,
		MessageID:  messageID,
		EventType:  evtType,
		OccurredAt: n.OccurredAt(),
		RawPayload: excerpt,
		CreatedAt:  time.Now().UTC(),
	}

	if country, region := n.GeoFields(); country != "" {
		evt.Country = sql.NullString{String: country, Valid: true}
		if region != "" {
			evt.Region = sql.NullString{String: region, Valid: true}
		}
	}
	if link := n.LinkURL(); link != "" {
		evt.LinkURL = sql.NullString{String: link, Valid: true}
	}
	if _, subtype := n.BounceInfo(); subtype != "" {
		evt.BounceSubtype = sql.NullString{String: subtype, Valid: true}
	}
	return evt
}

func asLogNotFound(err error, messageID string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mailwatch_errors.ErrNotFound) {
		return fmt.Errorf("%w: %s", mailwatch_errors.ErrLogNotFound, messageID)
	}
	return err
}
