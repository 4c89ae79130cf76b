package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-nailo-backend/internal/domain"
)

// GetIdempotency returns the live record for (actorID, scope, key) at now, or
// ErrNotFound. Blank actors and keys never match.
func GetIdempotency(ctx context.Context, db *gorm.DB, actorID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(actorID) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("actor_id = ? AND scope = ? AND key = ? AND expires_at > ?", actorID, scope, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency stores the outcome of a completed submission. An expired
// record under the same key is replaced, so keys become reusable after ttl;
// a live one yields ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, actorID, scope, key string, resultIDs []string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Scope:     scope,
		Key:       key,
		ResultRef: strings.Join(resultIDs, ","),
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("actor_id = ? AND scope = ? AND key = ? AND expires_at <= ?", actorID, scope, key, now).
			Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes records that expired at or before now and
// returns how many went.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}

// ResultIDs splits the stored result reference back into ids.
func ResultIDs(rec *domain.Idempotency) []string {
	if rec == nil || rec.ResultRef == "" {
		return []string{}
	}
	return strings.Split(rec.ResultRef, ",")
}
