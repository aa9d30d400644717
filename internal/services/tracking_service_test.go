package services

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailwatch/internal/domain/emaillog"
	mailwatch_errors "mailwatch/pkg/errors"
)

func seedLog(t *testing.T, repo *fakeLogRepo, trackingID, providerID string) emaillog.EmailLog {
	t.Helper()
	l := emaillog.EmailLog{
		ID:         uuid.New(),
		TrackingID: trackingID,
		Recipient:  "user@example.com",
		Sender:     "sender@mailwatch.local",
		Status:     emaillog.StatusSent,
		SentAt:     time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}
	if providerID != "" {
		l.ProviderMessageID = sql.NullString{String: providerID, Valid: true}
	}
	require.NoError(t, repo.Create(context.Background(), &l))
	return l
}

func deliveryPayload(messageID string) []byte {
	return []byte(fmt.Sprintf(`{"eventType":"delivery","messageId":"%s","delivery":{"timestamp":"2026-08-01T09:05:00Z"}}`, messageID))
}

func openPayload(messageID, ts string) []byte {
	return []byte(fmt.Sprintf(`{"eventType":"open","messageId":"%s","open":{"timestamp":"%s","ipGeo":{"country":"US","region":"CA"}}}`, messageID, ts))
}

func TestProcessNotificationRecordsEventAndAdvancesLog(t *testing.T) {
	logs := newFakeLogRepo()
	events := newFakeEventRepo()
	svc := NewTrackingService(logs, events, testLogger())

	l := seedLog(t, logs, "trk_0011223344556677", "")

	evt, err := svc.ProcessNotification(context.Background(), deliveryPayload("trk_0011223344556677"))
	require.NoError(t, err)
	assert.Equal(t, emaillog.EventDelivery, evt.EventType)
	assert.Equal(t, l.ID, evt.LogID)

	updated, err := logs.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, emaillog.StatusDelivered, updated.Status)
	assert.True(t, updated.DeliveredAt.Valid)
}

func TestProcessNotificationIsIdempotent(t *testing.T) {
	logs := newFakeLogRepo()
	events := newFakeEventRepo()
	svc := NewTrackingService(logs, events, testLogger())
	seedLog(t, logs, "trk_aabbccdd", "")

	payload := openPayload("trk_aabbccdd", "2026-08-01T10:00:00Z")

	first, err := svc.ProcessNotification(context.Background(), payload)
	require.NoError(t, err)

	second, err := svc.ProcessNotification(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, events.count())
}

func TestProcessNotificationDeliveryThenOpenThenDuplicateOpen(t *testing.T) {
	logs := newFakeLogRepo()
	events := newFakeEventRepo()
	svc := NewTrackingService(logs, events, testLogger())
	l := seedLog(t, logs, "trk_scenario01", "")

	ctx := context.Background()
	_, err := svc.ProcessNotification(ctx, deliveryPayload("trk_scenario01"))
	require.NoError(t, err)
	_, err = svc.ProcessNotification(ctx, openPayload("trk_scenario01", "2026-08-01T10:00:00Z"))
	require.NoError(t, err)

	afterOpen, err := logs.GetByID(ctx, l.ID)
	require.NoError(t, err)
	require.True(t, afterOpen.OpenedAt.Valid)

	// Duplicate open with a later timestamp must not move opened_at.
	_, err = svc.ProcessNotification(ctx, openPayload("trk_scenario01", "2026-08-01T11:00:00Z"))
	require.NoError(t, err)

	final, err := logs.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, emaillog.StatusOpened, final.Status)
	assert.Equal(t, afterOpen.OpenedAt.Time, final.OpenedAt.Time)
	assert.Equal(t, 2, events.count())
}

func TestProcessNotificationStaleDeliveryAfterOpen(t *testing.T) {
	logs := newFakeLogRepo()
	events := newFakeEventRepo()
	svc := NewTrackingService(logs, events, testLogger())
	l := seedLog(t, logs, "trk_outoforder", "")

	ctx := context.Background()
	_, err := svc.ProcessNotification(ctx, openPayload("trk_outoforder", "2026-08-01T10:00:00Z"))
	require.NoError(t, err)

	_, err = svc.ProcessNotification(ctx, deliveryPayload("trk_outoforder"))
	require.NoError(t, err)

	final, err := logs.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, emaillog.StatusOpened, final.Status, "late delivery must not regress the status")
	assert.True(t, final.DeliveredAt.Valid, "delivery timestamp is still recorded")
}

func TestProcessNotificationUnknownIdentifier(t *testing.T) {
	svc := NewTrackingService(newFakeLogRepo(), newFakeEventRepo(), testLogger())

	_, err := svc.ProcessNotification(context.Background(), deliveryPayload("trk_nosuchlog"))
	assert.ErrorIs(t, err, mailwatch_errors.ErrLogNotFound)
}

func TestProcessNotificationAmbiguousIdentifierDualLookup(t *testing.T) {
	logs := newFakeLogRepo()
	events := newFakeEventRepo()
	svc := NewTrackingService(logs, events, testLogger())

	// Neither trk_-prefixed nor provider-shaped, but stored as a provider id.
	l := seedLog(t, logs, "trk_otherlog", "Custom.Message.ID-42")

	evt, err := svc.ProcessNotification(context.Background(), deliveryPayload("Custom.Message.ID-42"))
	require.NoError(t, err)
	assert.Equal(t, l.ID, evt.LogID)
}

func TestProcessNotificationBackfillsProviderMessageID(t *testing.T) {
	logs := newFakeLogRepo()
	events := newFakeEventRepo()
	svc := NewTrackingService(logs, events, testLogger())

	l := seedLog(t, logs, "trk_backfill01", "")

	// Provider-native id the log has never seen, correlated through the
	// echoed Message-ID header.
	payload := []byte(`{
		"eventType": "delivery",
		"messageId": "abc123-def456-000001",
		"mail": {"commonHeaders": {"messageId": "trk_backfill01"}},
		"delivery": {"timestamp": "2026-08-01T09:05:00Z"}
	}`)

	evt, err := svc.ProcessNotification(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, l.ID, evt.LogID)

	updated, err := logs.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	require.True(t, updated.ProviderMessageID.Valid, "provider id is backfilled on the log")
	assert.Equal(t, "abc123-def456-000001", updated.ProviderMessageID.String)

	// Subsequent notifications resolve directly by provider id.
	evt2, err := svc.ProcessNotification(context.Background(), deliveryPayload("abc123-def456-000001"))
	require.NoError(t, err)
	assert.Equal(t, evt.ID, evt2.ID)
}

func TestProcessNotificationBounceRecordsSubtype(t *testing.T) {
	logs := newFakeLogRepo()
	events := newFakeEventRepo()
	svc := NewTrackingService(logs, events, testLogger())
	l := seedLog(t, logs, "trk_bouncer", "")

	payload := []byte(`{
		"notificationType": "Bounce",
		"mail": {"messageId": "trk_bouncer"},
		"bounce": {"bounceType": "Permanent", "bounceSubType": "NoEmail", "timestamp": "2026-08-01T09:30:00Z"}
	}`)

	evt, err := svc.ProcessNotification(context.Background(), payload)
	require.NoError(t, err)
	require.True(t, evt.BounceSubtype.Valid)
	assert.Equal(t, "NoEmail", evt.BounceSubtype.String)

	final, err := logs.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, emaillog.StatusBounced, final.Status)
	assert.Equal(t, "Permanent", final.BounceType.String)
}

func TestProcessNotificationMalformedPayload(t *testing.T) {
	svc := NewTrackingService(newFakeLogRepo(), newFakeEventRepo(), testLogger())

	_, err := svc.ProcessNotification(context.Background(), []byte(`{broken`))
	assert.ErrorIs(t, err, mailwatch_errors.ErrParse)
}

func TestProcessNotificationGeoFieldsOnEvent(t *testing.T) {
	logs := newFakeLogRepo()
	events := newFakeEventRepo()
	svc := NewTrackingService(logs, events, testLogger())
	seedLog(t, logs, "trk_geo", "")

	evt, err := svc.ProcessNotification(context.Background(), openPayload("trk_geo", "2026-08-01T10:00:00Z"))
	require.NoError(t, err)
	require.True(t, evt.Country.Valid)
	assert.Equal(t, "US", evt.Country.String)
	assert.Equal(t, "CA", evt.Region.String)
}
