// Package api holds the HTTP handlers for device registration and topics.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-fcm-service/pkg/dispatch"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

type TokenAPI struct {
	Store  dispatch.TokenStore
	Logger *slog.Logger
}

func NewTokenAPI(store dispatch.TokenStore, logger *slog.Logger) *TokenAPI {
	return &TokenAPI{
		Store:  store,
		Logger: logger.With("component", "TokenAPI"),
	}
}

type TokenRequest struct {
	Token string `json:"token"`
}

func (api *TokenAPI) RegisterFCM(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userURN, ok := authenticatedUser(w, r)
	if !ok {
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := api.Store.RegisterFCM(ctx, userURN, req.Token); err != nil {
		api.Logger.Error("Failed to register fcm token", "user", userURN.String(), "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnregisterFCM is idempotent: a storage failure is logged, not surfaced.
func (api *TokenAPI) UnregisterFCM(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userURN, ok := authenticatedUser(w, r)
	if !ok {
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := api.Store.UnregisterFCM(ctx, userURN, req.Token); err != nil {
		api.Logger.Warn("Failed to unregister fcm token", "user", userURN.String(), "err", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// authenticatedUser reads the caller set by the auth middleware and writes
// the error response itself when there is none.
func authenticatedUser(w http.ResponseWriter, r *http.Request) (urn.URN, bool) {
	userID, ok := middleware.GetUserHandleFromContext(r.Context())
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return urn.URN{}, false
	}
	userURN, err := urn.Parse(userID)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid user id")
		return urn.URN{}, false
	}
	return userURN, true
}
