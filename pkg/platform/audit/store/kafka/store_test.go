package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "profilereg/pkg/domain"
	audit "profilereg/pkg/platform/audit"
)

func TestEncode(t *testing.T) {
	account := id.NewAccountID()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 5, time.FixedZone("CET", 3600))

	t.Run("ledger event carries amount", func(t *testing.T) {
		raw, err := Encode(audit.Event{
			Kind:      audit.EventValueReserved,
			Account:   account,
			Amount:    50,
			Timestamp: ts,
			RequestID: "req-1",
		})
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "value_reserved", got["kind"])
		assert.Equal(t, string(audit.CategoryLedger), got["category"])
		assert.Equal(t, account.String(), got["account"])
		assert.Equal(t, float64(50), got["amount"])
		assert.Equal(t, "2026-03-01T11:00:00.000000005Z", got["timestamp"])
		assert.Equal(t, "req-1", got["request_id"])
		assert.NotEmpty(t, got["id"])
		_, hasActor := got["actor_id"]
		assert.False(t, hasActor)
	})

	t.Run("registry event omits amount", func(t *testing.T) {
		raw, err := Encode(audit.Event{
			Kind:    audit.EventProfileDeleted,
			Account: account,
			Amount:  99,
			ActorID: "ops",
		})
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(raw, &got))
		_, hasAmount := got["amount"]
		assert.False(t, hasAmount)
		assert.Equal(t, "ops", got["actor_id"])
	})
}

func TestNew_RequiresBrokersAndTopic(t *testing.T) {
	_, err := New(nil, "events")
	require.Error(t, err)
	_, err = New([]string{"localhost:9092"}, "")
	require.Error(t, err)
}
