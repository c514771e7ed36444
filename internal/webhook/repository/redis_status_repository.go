// Package repository provides Redis persistence for webhook delivery statuses
// and dead-letter entries. Key layout is kept stable for compatibility:
//
//	webhook_status:{webhook_id}            JSON status record with TTL
//	webhook_status:index:{reference_id}    set of webhook_ids
//	dead_letter:webhook:{webhook_id}       JSON dead-letter entry with TTL
//	dead_letter:webhook:index              set of all dead-lettered ids
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/firmvet/firmvet/internal/errors"
	"github.com/firmvet/firmvet/internal/webhook/domain"
)

// Key prefixes shared with the cleanup sweep.
const (
	StatusKeyPrefix = "webhook_status:"
	IndexKeyPrefix  = "webhook_status:index:"
)

// TTLPolicy selects the retention window for a status record at write time.
// Delivered records expire quickly; failed and in-flight records are kept long
// enough for forensics and restarts.
type TTLPolicy struct {
	Delivered time.Duration
	Failed    time.Duration
	Pending   time.Duration
}

// For returns the TTL for the given status.
func (p TTLPolicy) For(status domain.Status) time.Duration {
	switch status {
	case domain.StatusDelivered:
		return p.Delivered
	case domain.StatusFailed:
		return p.Failed
	default:
		return p.Pending
	}
}

// RedisStatusRepository persists webhook statuses in Redis with per-entry TTL
// and a secondary index set per reference id.
type RedisStatusRepository struct {
	client *redis.Client
	ttl    TTLPolicy
}

// NewRedisStatusRepository creates a new RedisStatusRepository.
func NewRedisStatusRepository(client *redis.Client, ttl TTLPolicy) *RedisStatusRepository {
	return &RedisStatusRepository{
		client: client,
		ttl:    ttl,
	}
}

// StatusKey returns the primary key for a webhook id.
func StatusKey(webhookID string) string {
	return StatusKeyPrefix + webhookID
}

// IndexKey returns the secondary index key for a reference id.
func IndexKey(referenceID string) string {
	return IndexKeyPrefix + referenceID
}

// Save writes the full status record with a TTL selected by its current
// status, and adds the webhook id to the reference index.
func (r *RedisStatusRepository) Save(ctx context.Context, status *domain.WebhookStatus) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return apperrors.Wrap(err, "marshaling webhook status")
	}

	if err := r.client.Set(ctx, StatusKey(status.WebhookID), raw, r.ttl.For(status.Status)).Err(); err != nil {
		return apperrors.Wrap(err, "storing webhook status")
	}

	if status.ReferenceID != "" {
		if err := r.client.SAdd(ctx, IndexKey(status.ReferenceID), status.WebhookID).Err(); err != nil {
			return apperrors.Wrap(err, "indexing webhook status")
		}
	}

	return nil
}

// Get loads a status record. Returns ErrNotFound for a missing or expired key.
func (r *RedisStatusRepository) Get(ctx context.Context, webhookID string) (*domain.WebhookStatus, error) {
	raw, err := r.client.Get(ctx, StatusKey(webhookID)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "webhook status "+webhookID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "loading webhook status")
	}

	var status domain.WebhookStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, apperrors.Wrap(err, "unmarshaling webhook status")
	}
	return &status, nil
}

// Update applies mutate to the stored record and writes it back with a TTL
// matching the new status. This is get-then-merge-then-put, not an atomic
// primitive; a lineage has at most one in-flight writer at a time.
func (r *RedisStatusRepository) Update(
	ctx context.Context,
	webhookID string,
	mutate func(*domain.WebhookStatus),
) (*domain.WebhookStatus, error) {
	status, err := r.Get(ctx, webhookID)
	if err != nil {
		return nil, err
	}

	mutate(status)
	status.UpdatedAt = time.Now().UTC()

	if err := r.Save(ctx, status); err != nil {
		return nil, err
	}
	return status, nil
}

// Delete removes a status record and its index membership.
func (r *RedisStatusRepository) Delete(ctx context.Context, webhookID string) error {
	status, err := r.Get(ctx, webhookID)
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	if err := r.client.Del(ctx, StatusKey(webhookID)).Err(); err != nil {
		return apperrors.Wrap(err, "deleting webhook status")
	}

	if status != nil && status.ReferenceID != "" {
		if err := r.client.SRem(ctx, IndexKey(status.ReferenceID), webhookID).Err(); err != nil {
			return apperrors.Wrap(err, "removing webhook status from index")
		}
	}
	return nil
}

// ListByReference loads all live statuses for a reference id via the secondary
// index. Index members whose status key already expired are skipped; the
// cleanup pass removes them.
func (r *RedisStatusRepository) ListByReference(
	ctx context.Context,
	referenceID string,
) ([]*domain.WebhookStatus, error) {
	ids, err := r.client.SMembers(ctx, IndexKey(referenceID)).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, "reading webhook status index")
	}
	return r.loadAll(ctx, ids)
}

// ListAll walks every status key with a non-blocking cursor scan. Used by the
// unfiltered listing endpoint; never a full key-space lock.
func (r *RedisStatusRepository) ListAll(ctx context.Context) ([]*domain.WebhookStatus, error) {
	keys, err := r.ScanKeys(ctx, StatusKeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	statuses := make([]*domain.WebhookStatus, 0, len(keys))
	for _, key := range keys {
		// The index keys share the prefix, skip them.
		if len(key) > len(IndexKeyPrefix) && key[:len(IndexKeyPrefix)] == IndexKeyPrefix {
			continue
		}
		status, err := r.Get(ctx, key[len(StatusKeyPrefix):])
		if apperrors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// ScanKeys returns all keys matching pattern using SCAN.
func (r *RedisStatusRepository) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, apperrors.Wrap(err, "scanning keys")
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// IndexMembers returns the webhook ids in a reference index set.
func (r *RedisStatusRepository) IndexMembers(ctx context.Context, referenceID string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, IndexKey(referenceID)).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, "reading webhook status index")
	}
	return ids, nil
}

// RemoveFromIndex drops a webhook id from a reference index set. Used by the
// cleanup pass to heal orphaned index entries.
func (r *RedisStatusRepository) RemoveFromIndex(ctx context.Context, referenceID, webhookID string) error {
	if err := r.client.SRem(ctx, IndexKey(referenceID), webhookID).Err(); err != nil {
		return apperrors.Wrap(err, "removing webhook status from index")
	}
	return nil
}

func (r *RedisStatusRepository) loadAll(ctx context.Context, ids []string) ([]*domain.WebhookStatus, error) {
	statuses := make([]*domain.WebhookStatus, 0, len(ids))
	for _, id := range ids {
		status, err := r.Get(ctx, id)
		if apperrors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
