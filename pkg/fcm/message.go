// Package fcm formats push notifications and dispatches them to Firebase Cloud
// Messaging over either the legacy server-key API or the OAuth2 v1 API.
package fcm

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Message is a single logical notification. It is built with the fluent
// setters, handed to one send call and then discarded.
type Message struct {
	title  string
	body   string
	data   map[string]any
	tokens []string
	topic  string
}

// NewMessage returns an empty message ready for chaining.
func NewMessage() *Message {
	return &Message{}
}

func (m *Message) SetTitle(title string) *Message {
	m.title = title
	return m
}

func (m *Message) SetBody(body string) *Message {
	m.body = body
	return m
}

// SetData replaces the data payload. Values may be strings, numbers, booleans
// or nested maps/slices; the v1 formats stringify them.
func (m *Message) SetData(data map[string]any) *Message {
	m.data = data
	return m
}

func (m *Message) SetTokens(tokens []string) *Message {
	m.tokens = tokens
	return m
}

func (m *Message) SetTopic(topic string) *Message {
	m.topic = topic
	return m
}

func (m *Message) Title() string        { return m.title }
func (m *Message) Body() string         { return m.body }
func (m *Message) Data() map[string]any { return m.data }
func (m *Message) Tokens() []string     { return m.tokens }
func (m *Message) Topic() string        { return m.topic }

// HasTarget reports whether the message names at least one token or a topic.
func (m *Message) HasTarget() bool {
	return len(m.tokens) > 0 || m.topic != ""
}

// --- Wire formats ---

// Notification is the visible part shared by every wire format.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// LegacyPayload is the body of a legacy API send.
type LegacyPayload struct {
	Notification    Notification   `json:"notification"`
	Data            map[string]any `json:"data,omitempty"`
	RegistrationIDs []string       `json:"registration_ids,omitempty"`
	To              string         `json:"to,omitempty"`
}

// V1Message is one v1 message addressed to exactly one token or topic.
type V1Message struct {
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Token        string            `json:"token,omitempty"`
	Topic        string            `json:"topic,omitempty"`
}

// V1Envelope wraps a V1Message as the messages:send endpoint expects.
type V1Envelope struct {
	Message V1Message `json:"message"`
}

// ToLegacy builds the legacy payload. Tokens take priority over the topic.
func (m *Message) ToLegacy() LegacyPayload {
	p := LegacyPayload{
		Notification: m.notification(),
	}
	if len(m.data) > 0 {
		p.Data = m.data
	}
	if len(m.tokens) > 0 {
		p.RegistrationIDs = m.tokens
	} else if m.topic != "" {
		p.To = topicPath(m.topic)
	}
	return p
}

// ToV1Single builds a v1 envelope targeting the first token, or the topic
// when there are no tokens.
func (m *Message) ToV1Single() V1Envelope {
	msg := V1Message{
		Notification: m.notification(),
		Data:         m.stringData(),
	}
	if len(m.tokens) > 0 {
		msg.Token = m.tokens[0]
	} else if m.topic != "" {
		msg.Topic = m.topic
	}
	return V1Envelope{Message: msg}
}

// ToV1Batch builds one unwrapped v1 message per token, in token order.
func (m *Message) ToV1Batch() []V1Message {
	data := m.stringData()
	out := make([]V1Message, 0, len(m.tokens))
	for _, token := range m.tokens {
		out = append(out, V1Message{
			Notification: m.notification(),
			Data:         data,
			Token:        token,
		})
	}
	return out
}

func (m *Message) notification() Notification {
	return Notification{Title: m.title, Body: m.body}
}

func (m *Message) stringData() map[string]string {
	if len(m.data) == 0 {
		return nil
	}
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = stringifyValue(v)
	}
	return out
}

func topicPath(topic string) string {
	return "/topics/" + topic
}

// stringifyValue renders a data value the way the v1 API requires: every value
// is a string, booleans are "1"/"0" and structured values are JSON text.
func stringifyValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(val)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case []byte:
		return string(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
