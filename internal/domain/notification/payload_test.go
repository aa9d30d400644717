package notification

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailwatch/internal/domain/emaillog"
	mailwatch_errors "mailwatch/pkg/errors"
)

func TestExtractMessageIDPaths(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "top level",
			payload: `{"eventType":"delivery","messageId":"abc-def-000001"}`,
			want:    "abc-def-000001",
		},
		{
			name:    "nested mail object",
			payload: `{"eventType":"delivery","mail":{"messageId":"abc-def-000002"}}`,
			want:    "abc-def-000002",
		},
		{
			name:    "common headers",
			payload: `{"eventType":"delivery","mail":{"commonHeaders":{"messageId":"trk_deadbeef"}}}`,
			want:    "trk_deadbeef",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Decode([]byte(tt.payload))
			require.NoError(t, err)
			id, err := n.ExtractMessageID()
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestExtractMessageIDMissing(t *testing.T) {
	n, err := Decode([]byte(`{"eventType":"delivery","mail":{}}`))
	require.NoError(t, err)
	_, err = n.ExtractMessageID()
	assert.ErrorIs(t, err, mailwatch_errors.ErrMessageIDNotFound)
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.ErrorIs(t, err, mailwatch_errors.ErrParse)
}

func TestUnwrapEnvelope(t *testing.T) {
	inner := `{"eventType":"open","messageId":"trk_cafe"}`
	wrapped, err := json.Marshal(map[string]string{
		"Type":    "Notification",
		"Message": inner,
	})
	require.NoError(t, err)

	n, err := Decode(wrapped)
	require.NoError(t, err)
	id, err := n.ExtractMessageID()
	require.NoError(t, err)
	assert.Equal(t, "trk_cafe", id)

	evtType, err := n.Type()
	require.NoError(t, err)
	assert.Equal(t, emaillog.EventOpen, evtType)
}

func TestUnwrapEnvelopePassthrough(t *testing.T) {
	raw := []byte(`{"eventType":"click","messageId":"trk_1"}`)
	assert.Equal(t, raw, UnwrapEnvelope(raw))
}

func TestTypeDiscriminator(t *testing.T) {
	tests := []struct {
		payload string
		want    emaillog.EventType
	}{
		{`{"eventType":"delivery"}`, emaillog.EventDelivery},
		{`{"notificationType":"Bounce"}`, emaillog.EventBounce},
		{`{"notificationType":"Complaint"}`, emaillog.EventComplaint},
		{`{"eventType":"Open"}`, emaillog.EventOpen},
		{`{"eventType":"click"}`, emaillog.EventClick},
	}
	for _, tt := range tests {
		n, err := Decode([]byte(tt.payload))
		require.NoError(t, err)
		evtType, err := n.Type()
		require.NoError(t, err)
		assert.Equal(t, tt.want, evtType)
	}
}

func TestTypeUnknownDiscriminator(t *testing.T) {
	n, err := Decode([]byte(`{"eventType":"subscription"}`))
	require.NoError(t, err)
	_, err = n.Type()
	assert.ErrorIs(t, err, mailwatch_errors.ErrParse)
}

func TestEventDetails(t *testing.T) {
	payload := `{
		"eventType": "click",
		"messageId": "trk_click",
		"click": {
			"timestamp": "2026-08-01T10:30:00Z",
			"link": "https://example.com/offer",
			"ipGeo": {"country": "DE", "region": "Berlin"}
		}
	}`
	n, err := Decode([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/offer", n.LinkURL())

	country, region := n.GeoFields()
	assert.Equal(t, "DE", country)
	assert.Equal(t, "Berlin", region)

	assert.Equal(t, time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC), n.OccurredAt())
}

func TestBounceInfo(t *testing.T) {
	payload := `{
		"notificationType": "Bounce",
		"mail": {"messageId": "abc-def-000009"},
		"bounce": {
			"bounceType": "Permanent",
			"bounceSubType": "NoEmail",
			"timestamp": "2026-08-02T08:00:00Z"
		}
	}`
	n, err := Decode([]byte(payload))
	require.NoError(t, err)

	bounceType, subtype := n.BounceInfo()
	assert.Equal(t, "Permanent", bounceType)
	assert.Equal(t, "NoEmail", subtype)
}

func TestHeaderMessageID(t *testing.T) {
	n, err := Decode([]byte(`{
		"eventType": "delivery",
		"mail": {
			"messageId": "abc123-def456-000001",
			"commonHeaders": {"messageId": "trk_cafe0123"}
		}
	}`))
	require.NoError(t, err)

	id, err := n.ExtractMessageID()
	require.NoError(t, err)
	assert.Equal(t, "abc123-def456-000001", id)
	assert.Equal(t, "trk_cafe0123", n.HeaderMessageID())

	// When the header just echoes the top-level id there is nothing extra.
	n, err = Decode([]byte(`{
		"eventType": "delivery",
		"messageId": "trk_same",
		"mail": {"commonHeaders": {"messageId": "trk_same"}}
	}`))
	require.NoError(t, err)
	assert.Empty(t, n.HeaderMessageID())
}

func TestOccurredAtFallsBackToNow(t *testing.T) {
	n, err := Decode([]byte(`{"eventType":"delivery","messageId":"x"}`))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), n.OccurredAt(), time.Minute)
}
