// Package firestore is the source of truth for FCM device registrations.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// DefaultCollection is the root collection holding one document per user.
const DefaultCollection = "fcm-users"

// FirestoreStore implements dispatch.TokenStore.
// Layout: {collection}/{userURN}/tokens/{sha256(token)}
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

func NewFirestoreStore(client *firestore.Client, collection string, logger *slog.Logger) *FirestoreStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &FirestoreStore{
		client:     client,
		collection: collection,
		logger:     logger.With("component", "FirestoreTokenStore"),
	}
}

type tokenRecord struct {
	Token     string    `firestore:"token"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// RegisterFCM upserts the token. The document id is the token hash, so
// re-registering refreshes updated_at instead of adding a row.
func (s *FirestoreStore) RegisterFCM(ctx context.Context, user urn.URN, token string) error {
	record := tokenRecord{Token: token, UpdatedAt: time.Now().UTC()}
	if _, err := s.tokenRef(user, token).Set(ctx, record); err != nil {
		return fmt.Errorf("failed to register fcm token: %w", err)
	}
	return nil
}

// UnregisterFCM deletes the token. Deleting an unknown token is not an error.
func (s *FirestoreStore) UnregisterFCM(ctx context.Context, user urn.URN, token string) error {
	if _, err := s.tokenRef(user, token).Delete(ctx); err != nil {
		return fmt.Errorf("failed to unregister fcm token: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Fetch(ctx context.Context, user urn.URN) ([]string, error) {
	iter := s.tokensCollection(user).Documents(ctx)
	defer iter.Stop()

	tokens := make([]string, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record tokenRecord
		if err := doc.DataTo(&record); err != nil || record.Token == "" {
			s.logger.Warn("Skipping malformed token record", "doc_id", doc.Ref.ID, "err", err)
			continue
		}
		tokens = append(tokens, record.Token)
	}
	return tokens, nil
}

// --- Helpers ---

func (s *FirestoreStore) tokenRef(user urn.URN, token string) *firestore.DocumentRef {
	return s.tokensCollection(user).Doc(hashToken(token))
}

func (s *FirestoreStore) tokensCollection(user urn.URN) *firestore.CollectionRef {
	return s.client.Collection(s.collection).Doc(user.String()).Collection("tokens")
}

func hashToken(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
