package beacon

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedTokens []string

func (f *fixedTokens) NewToken() string {
	tok := (*f)[0]
	*f = (*f)[1:]
	return tok
}

func newTestNormalizer(t *testing.T, now time.Time) *normalizer {
	t.Helper()
	// The session key is drawn before the device tag.
	tokens := fixedTokens{"session-token", "device-token"}
	id := mustIdentity(t, NewMemoryStorage(), keyspace("beacon"), &tokens, "", func(err error) { t.Error(err) })
	return &normalizer{identity: id, clock: clockwork.NewFakeClockAt(now)}
}

func TestNormalizeEventStampsIdentity(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.UTC)
	n := newTestNormalizer(t, now)
	require.NoError(t, n.identity.setUserTag("alice"))

	rec, err := n.event(TypeEvent, Props{"kingdom": "ui", "phylum": "click", "float1": 2.5})
	require.NoError(t, err)

	assert.Equal(t, TypeEvent, rec.Type)
	assert.Equal(t, "2024-03-01T12:30:45.123Z", rec.EventDatetime)
	assert.Equal(t, "session-token", rec.GroupTag)
	assert.Equal(t, "device-token", rec.DeviceTag)
	assert.Equal(t, "alice", rec.UserTag)
	assert.Equal(t, "ui", rec.Kingdom)
	require.NotNil(t, rec.Float1)
	assert.Equal(t, 2.5, *rec.Float1)
	assert.Nil(t, rec.Float2)
}

func TestNormalizeCoercesAndTruncates(t *testing.T) {
	n := newTestNormalizer(t, time.Now())

	rec, err := n.event(TypeEvent, Props{
		"kingdom": strings.Repeat("k", 40),
		"phylum":  42,
		"class":   true,
		"order":   "",
		"family":  nil,
		"float1":  "3.5",
		"float2":  "abc",
		"float3":  math.Inf(1),
		"float4":  json.Number("7"),
		"unknown": "dropped",
	})
	require.NoError(t, err)

	assert.Len(t, rec.Kingdom, maxShortString)
	assert.Equal(t, "42", rec.Phylum)
	assert.Equal(t, "true", rec.Class)
	assert.Empty(t, rec.Order)
	assert.Empty(t, rec.Family)
	require.NotNil(t, rec.Float1)
	assert.Equal(t, 3.5, *rec.Float1)
	assert.Nil(t, rec.Float2, "unparsable numbers are dropped")
	assert.Nil(t, rec.Float3, "non-finite numbers are dropped")
	require.NotNil(t, rec.Float4)
	assert.Equal(t, 7.0, *rec.Float4)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "unknown")
	assert.NotContains(t, string(data), "spend_currency")
}

func TestNormalizeKeepsCallerDatetime(t *testing.T) {
	n := newTestNormalizer(t, time.Now())

	rec, err := n.event(TypeEvent, Props{"event_datetime": "2020-01-01T00:00:00.000Z"})
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01T00:00:00.000Z", rec.EventDatetime)

	at := time.Date(2021, 6, 1, 8, 0, 0, 0, time.FixedZone("x", 3600))
	rec, err = n.event(TypeEvent, Props{"event_datetime": at})
	require.NoError(t, err)
	assert.Equal(t, "2021-06-01T07:00:00.000Z", rec.EventDatetime)
}

func TestNormalizeEconomy(t *testing.T) {
	n := newTestNormalizer(t, time.Now())

	rec, err := n.event(TypeEconomy, Props{"spend_currency": "USD", "spend_amount": "4.99", "spend_type": "iap"})
	require.NoError(t, err)
	assert.Equal(t, "USD", rec.SpendCurrency)
	require.NotNil(t, rec.SpendAmount)
	assert.Equal(t, 4.99, *rec.SpendAmount)
	assert.Equal(t, "iap", rec.SpendType)

	tests := []struct {
		name  string
		props Props
		field string
	}{
		{"missing currency", Props{"spend_amount": 1}, "spend_currency"},
		{"empty currency", Props{"spend_currency": "", "spend_amount": 1}, "spend_currency"},
		{"non-string currency", Props{"spend_currency": 5, "spend_amount": 1}, "spend_currency"},
		{"missing amount", Props{"spend_currency": "USD"}, "spend_amount"},
		{"unparsable amount", Props{"spend_currency": "USD", "spend_amount": "lots"}, "spend_amount"},
		{"nan amount", Props{"spend_currency": "USD", "spend_amount": math.NaN()}, "spend_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.event(TypeEconomy, tt.props)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestNormalizeMessageSend(t *testing.T) {
	n := newTestNormalizer(t, time.Now())

	rec, err := n.event(TypeMessageSend, Props{
		"sender_tag":     "alice",
		"recipient_tag":  "bob",
		"recipient_tags": []any{"carol", 7, nil},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.SenderTag)
	assert.Equal(t, []string{"bob", "carol", "7"}, rec.RecipientTags)

	_, err = n.event(TypeMessageSend, Props{"recipient_tag": "bob"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = n.event(TypeMessageSend, Props{"sender_tag": "alice", "recipient_tags": []string{}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNormalizeRejectsNilProps(t *testing.T) {
	n := newTestNormalizer(t, time.Now())
	_, err := n.event(TypeEvent, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = n.log(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNormalizeLog(t *testing.T) {
	n := newTestNormalizer(t, time.Now())

	rec, err := n.log(Props{
		"log_line":       strings.Repeat("x", maxLogLine+10),
		"hostname":       "web-1",
		"log_level":      "error",
		"response_ms":    12,
		"response_bytes": "n/a",
	})
	require.NoError(t, err)
	assert.Len(t, rec.LogLine, maxLogLine)
	assert.Equal(t, "web-1", rec.Hostname)
	assert.Equal(t, "device-token", rec.DeviceTag, "device tag defaults to the client's")
	require.NotNil(t, rec.ResponseMs)
	assert.Equal(t, 12.0, *rec.ResponseMs)
	assert.Nil(t, rec.ResponseBytes)

	rec, err = n.log(Props{"device_tag": strings.Repeat("d", 100)})
	require.NoError(t, err)
	assert.Len(t, rec.DeviceTag, maxLogTag)
}

func TestTruncateCountsCharacters(t *testing.T) {
	assert.Equal(t, "héllo", truncate("héllo wörld", 5))
	assert.Equal(t, "short", truncate("short", 32))
	assert.Equal(t, "日本", truncate("日本語", 2))
}

func TestFormatLogArgs(t *testing.T) {
	got := formatLogArgs([]any{"user", 42, errors.New("boom"), map[string]int{"a": 1}})
	assert.Equal(t, `user 42 boom {"a":1}`, got)
}
