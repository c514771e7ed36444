package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/firmvet/firmvet/internal/errors"
	"github.com/firmvet/firmvet/internal/webhook/domain"
)

const (
	deadLetterKeyPrefix = "dead_letter:webhook:"
	deadLetterIndexKey  = "dead_letter:webhook:index"
)

// RedisDeadLetterRepository is the durable sink for permanently failed
// deliveries. Writes are idempotent by webhook id: re-writing overwrites, it
// never duplicates. Retention is independent of the status record's TTL so
// failed-delivery forensics outlive the status.
type RedisDeadLetterRepository struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisDeadLetterRepository creates a new RedisDeadLetterRepository.
func NewRedisDeadLetterRepository(client *redis.Client, retention time.Duration) *RedisDeadLetterRepository {
	return &RedisDeadLetterRepository{
		client:    client,
		retention: retention,
	}
}

// DeadLetterKey returns the primary key for a webhook id.
func DeadLetterKey(webhookID string) string {
	return deadLetterKeyPrefix + webhookID
}

// Write stores a dead-letter entry and registers it in the global index.
func (r *RedisDeadLetterRepository) Write(ctx context.Context, entry *domain.DeadLetterEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return apperrors.Wrap(err, "marshaling dead letter entry")
	}

	if err := r.client.Set(ctx, DeadLetterKey(entry.WebhookID), raw, r.retention).Err(); err != nil {
		return apperrors.Wrap(err, "storing dead letter entry")
	}

	if err := r.client.SAdd(ctx, deadLetterIndexKey, entry.WebhookID).Err(); err != nil {
		return apperrors.Wrap(err, "indexing dead letter entry")
	}
	return nil
}

// Get loads a dead-letter entry. Returns ErrNotFound for a missing or expired
// key.
func (r *RedisDeadLetterRepository) Get(ctx context.Context, webhookID string) (*domain.DeadLetterEntry, error) {
	raw, err := r.client.Get(ctx, DeadLetterKey(webhookID)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "dead letter entry "+webhookID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "loading dead letter entry")
	}

	var entry domain.DeadLetterEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, apperrors.Wrap(err, "unmarshaling dead letter entry")
	}
	return &entry, nil
}

// ListIDs returns all dead-lettered webhook ids from the index.
func (r *RedisDeadLetterRepository) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, deadLetterIndexKey).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, "reading dead letter index")
	}
	return ids, nil
}
