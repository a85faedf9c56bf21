package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-fcm-service/pkg/dispatch"
	"github.com/tinywideclouds/go-fcm-service/pkg/fcm"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
)

// TopicAPI manages topic membership for the caller's devices and sends
// broadcasts to topics.
type TopicAPI struct {
	Sender dispatch.Sender
	Store  dispatch.TokenStore
	Logger *slog.Logger
}

func NewTopicAPI(sender dispatch.Sender, store dispatch.TokenStore, logger *slog.Logger) *TopicAPI {
	return &TopicAPI{
		Sender: sender,
		Store:  store,
		Logger: logger.With("component", "TopicAPI"),
	}
}

// TopicMessage is the body of a topic broadcast.
type TopicMessage struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// Subscribe adds every device registered to the caller to {topic}.
func (api *TopicAPI) Subscribe(w http.ResponseWriter, r *http.Request) {
	api.manage(w, r, api.Sender.SubscribeToTopic)
}

// Unsubscribe removes every device registered to the caller from {topic}.
func (api *TopicAPI) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	api.manage(w, r, api.Sender.UnsubscribeFromTopic)
}

type membershipFunc func(ctx context.Context, topic string, tokens []string) (fcm.Response, error)

func (api *TopicAPI) manage(w http.ResponseWriter, r *http.Request, update membershipFunc) {
	ctx := r.Context()
	userURN, ok := authenticatedUser(w, r)
	if !ok {
		return
	}
	topic := r.PathValue("topic")
	if topic == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing topic")
		return
	}

	tokens, err := api.Store.Fetch(ctx, userURN)
	if err != nil {
		api.Logger.Error("Failed to fetch device tokens", "user", userURN.String(), "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	if len(tokens) == 0 {
		response.WriteJSONError(w, http.StatusConflict, "no devices registered")
		return
	}

	resp, err := update(ctx, topic, tokens)
	if err != nil {
		api.writeFCMError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, resp)
}

// Send broadcasts a notification to {topic}.
func (api *TopicAPI) Send(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticatedUser(w, r); !ok {
		return
	}
	topic := r.PathValue("topic")
	if topic == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing topic")
		return
	}

	var req TopicMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == "" && req.Body == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing title or body")
		return
	}

	msg := fcm.NewMessage().SetTitle(req.Title).SetBody(req.Body).SetData(req.Data).SetTopic(topic)
	result, err := api.Sender.SendToTopic(r.Context(), msg)
	if err != nil {
		api.writeFCMError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusAccepted, result)
}

func (api *TopicAPI) writeFCMError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fcm.ErrValidation):
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, fcm.ErrAuth):
		api.Logger.Error("FCM authentication failed", "err", err)
		response.WriteJSONError(w, http.StatusServiceUnavailable, "fcm authentication failed")
	default:
		api.Logger.Error("FCM request failed", "err", err)
		response.WriteJSONError(w, http.StatusBadGateway, "fcm request failed")
	}
}
