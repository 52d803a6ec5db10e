package purchasing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const draftKeyPrefix = "procura:podraft:"

// DraftStore keeps order drafts in Redis with a TTL so composition
// survives page loads but abandoned drafts expire on their own.
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDraftStore constructs the store.
func NewDraftStore(client *redis.Client, ttl time.Duration) *DraftStore {
	return &DraftStore{client: client, ttl: ttl}
}

// Save persists the draft, refreshing its TTL.
func (s *DraftStore) Save(ctx context.Context, draft Draft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("purchasing: marshal draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKeyPrefix+draft.ID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("purchasing: save draft: %w", err)
	}
	return nil
}

// Get loads a draft by ID.
func (s *DraftStore) Get(ctx context.Context, id string) (Draft, error) {
	payload, err := s.client.Get(ctx, draftKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("purchasing: load draft: %w", err)
	}
	var draft Draft
	if err := json.Unmarshal(payload, &draft); err != nil {
		return Draft{}, fmt.Errorf("purchasing: decode draft: %w", err)
	}
	return draft, nil
}

// Delete discards a draft, typically after submission.
func (s *DraftStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, draftKeyPrefix+id).Err()
}
