package fcm_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-fcm-service/pkg/fcm"
)

func newTestMessage() *fcm.Message {
	return fcm.NewMessage().
		SetTitle("Order Update").
		SetBody("Your order #12345 has been shipped!").
		SetData(map[string]any{
			"order_id": "12345",
			"urgent":   true,
			"silent":   false,
			"count":    3,
			"ratio":    1.5,
			"meta":     map[string]any{"carrier": "dhl"},
			"tags":     []any{"a", "b"},
			"empty":    nil,
		})
}

func TestMessage_FluentSetters(t *testing.T) {
	msg := fcm.NewMessage()
	same := msg.SetTitle("t").SetBody("b").SetTokens([]string{"x"}).SetTopic("news")

	assert.Same(t, msg, same)
	assert.Equal(t, "t", msg.Title())
	assert.Equal(t, "b", msg.Body())
	assert.Equal(t, []string{"x"}, msg.Tokens())
	assert.Equal(t, "news", msg.Topic())
	assert.True(t, msg.HasTarget())
	assert.False(t, fcm.NewMessage().HasTarget())
}

func TestMessage_ToLegacy(t *testing.T) {
	t.Run("Tokens become registration_ids", func(t *testing.T) {
		msg := newTestMessage().SetTokens([]string{"t1", "t2"}).SetTopic("ignored")

		payload := msg.ToLegacy()

		assert.Equal(t, []string{"t1", "t2"}, payload.RegistrationIDs)
		assert.Empty(t, payload.To)
		assert.Equal(t, "Order Update", payload.Notification.Title)
		assert.Equal(t, true, payload.Data["urgent"], "legacy data is sent untouched")

		raw := marshalToMap(t, payload)
		assert.NotContains(t, raw, "to")
		assert.Contains(t, raw, "registration_ids")
	})

	t.Run("Topic becomes to", func(t *testing.T) {
		msg := fcm.NewMessage().SetTitle("News").SetBody("Body").SetTopic("app_updates")

		payload := msg.ToLegacy()

		assert.Equal(t, "/topics/app_updates", payload.To)
		assert.Empty(t, payload.RegistrationIDs)

		raw := marshalToMap(t, payload)
		assert.NotContains(t, raw, "data", "empty data must be omitted")
		assert.NotContains(t, raw, "registration_ids")
	})
}

func TestMessage_ToV1Single(t *testing.T) {
	t.Run("First token wins", func(t *testing.T) {
		env := newTestMessage().SetTokens([]string{"first", "second"}).SetTopic("news").ToV1Single()

		assert.Equal(t, "first", env.Message.Token)
		assert.Empty(t, env.Message.Topic)
	})

	t.Run("Topic without tokens", func(t *testing.T) {
		env := fcm.NewMessage().SetTitle("a").SetTopic("news").ToV1Single()

		assert.Equal(t, "news", env.Message.Topic)
		assert.Empty(t, env.Message.Token)

		raw := marshalToMap(t, env)
		require.Contains(t, raw, "message")
		inner := raw["message"].(map[string]any)
		assert.NotContains(t, inner, "data")
		assert.NotContains(t, inner, "token")
	})

	t.Run("Data values are strings", func(t *testing.T) {
		data := newTestMessage().SetTopic("news").ToV1Single().Message.Data

		assert.Equal(t, "12345", data["order_id"])
		assert.Equal(t, "1", data["urgent"])
		assert.Equal(t, "0", data["silent"])
		assert.Equal(t, "3", data["count"])
		assert.Equal(t, "1.5", data["ratio"])
		assert.Equal(t, "", data["empty"])
		assert.JSONEq(t, `{"carrier":"dhl"}`, data["meta"])
		assert.JSONEq(t, `["a","b"]`, data["tags"])
	})

	t.Run("Structured values with String are still JSON", func(t *testing.T) {
		shipped := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		data := fcm.NewMessage().SetTopic("news").SetData(map[string]any{
			"shipped": shipped,
			"parcel":  parcel{ID: "p-1", Weight: 2},
		}).ToV1Single().Message.Data

		assert.Equal(t, `"2024-05-01T12:00:00Z"`, data["shipped"])
		assert.JSONEq(t, `{"id":"p-1","weight":2}`, data["parcel"])
	})
}

type parcel struct {
	ID     string `json:"id"`
	Weight int    `json:"weight"`
}

func (p parcel) String() string { return "parcel " + p.ID }

func TestMessage_ToV1Batch(t *testing.T) {
	tokens := []string{"t1", "t2", "t3"}
	msg := newTestMessage().SetTokens(tokens)

	batch := msg.ToV1Batch()

	require.Len(t, batch, len(tokens))
	for i, entry := range batch {
		assert.Equal(t, tokens[i], entry.Token)
		assert.Equal(t, msg.Title(), entry.Notification.Title)
		assert.Equal(t, msg.Body(), entry.Notification.Body)
		assert.Equal(t, "1", entry.Data["urgent"])
		assert.Empty(t, entry.Topic)
	}

	raw := marshalToMap(t, batch[0])
	assert.NotContains(t, raw, "message", "batch entries are unwrapped")

	assert.Empty(t, fcm.NewMessage().SetTopic("news").ToV1Batch())
}

func marshalToMap(t *testing.T, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}
