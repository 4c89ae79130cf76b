package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-nailo-backend/internal/domain"
)

func TestGetIdempotency_BlankActorOrKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	rec, err := GetIdempotency(context.Background(), db, "   ", "requests", "k1", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank actor, got (%v, %v)", rec, err)
	}
	rec, err = GetIdempotency(context.Background(), db, "a1", "requests", "", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID:        "expired",
		ActorID:   "a1",
		Scope:     "requests",
		Key:       "k1",
		Status:    201,
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, "a1", "requests", "k1", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}
	rec, err = GetIdempotency(context.Background(), db, "a1", "requests", "missing", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec, err)
	}
}

func TestCreateIdempotency_SuccessReplayAndDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	ttl := 90 * time.Minute
	start := time.Now().UTC()

	rec, err := CreateIdempotency(ctx, db, "a9", "requests", "k9", []string{"r1", "r2"}, 201, ttl)
	if err != nil {
		t.Fatalf("CreateIdempotency error: %v", err)
	}
	if rec.ID == "" || rec.ActorID != "a9" || rec.Scope != "requests" || rec.ResultRef != "r1,r2" || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !(rec.ExpiresAt.After(start) && rec.ExpiresAt.Before(start.Add(2*time.Hour))) {
		t.Fatalf("unexpected ExpiresAt: %v", rec.ExpiresAt)
	}

	got, err := GetIdempotency(ctx, db, "a9", "requests", "k9", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	ids := ResultIDs(got)
	if len(ids) != 2 || ids[0] != "r1" || ids[1] != "r2" {
		t.Fatalf("ResultIDs: %v", ids)
	}

	if _, err := CreateIdempotency(ctx, db, "a9", "requests", "k9", nil, 201, ttl); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Same key under another scope is independent.
	if _, err := CreateIdempotency(ctx, db, "a9", "other", "k9", nil, 201, ttl); err != nil {
		t.Fatalf("other scope: %v", err)
	}
}

func TestResultIDs_Empty(t *testing.T) {
	if got := ResultIDs(nil); len(got) != 0 {
		t.Fatalf("nil record: %v", got)
	}
	if got := ResultIDs(&domain.Idempotency{}); len(got) != 0 {
		t.Fatalf("empty ref: %v", got)
	}
}

func TestCreateIdempotency_Error_NoTable(t *testing.T) {
	db := newTestDB(t) // intentionally not migrated
	_, err := CreateIdempotency(context.Background(), db, "aX", "requests", "kX", nil, 200, time.Minute)
	if err == nil {
		t.Fatalf("expected error when table is missing")
	}
	if err == ErrDuplicate {
		t.Fatalf("expected non-duplicate error, got ErrDuplicate")
	}
}

func TestCreateIdempotency_ExpiredKeyIsReusable(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Now().UTC()

	old := &domain.Idempotency{
		ID: "old", ActorID: "c1", Scope: "POST /requests", Key: "k1",
		ResultRef: "r-old", Status: 201,
		CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour),
	}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, err := CreateIdempotency(ctx, db, "c1", "POST /requests", "k1", []string{"r-new"}, 201, time.Hour)
	if err != nil {
		t.Fatalf("reuse after expiry: %v", err)
	}
	got, err := GetIdempotency(ctx, db, "c1", "POST /requests", "k1", time.Now().UTC())
	if err != nil || got.ID != rec.ID || got.ResultRef != "r-new" {
		t.Fatalf("live record = %+v, %v", got, err)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()
	for i, exp := range []time.Duration{-time.Hour, -time.Minute, time.Hour} {
		rec := &domain.Idempotency{
			ID: string(rune('a' + i)), ActorID: "s1", Scope: "POST /requests/:id/respond",
			Key: string(rune('a' + i)), Status: 201, CreatedAt: now, ExpiresAt: now.Add(exp),
		}
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	n, err := PurgeExpiredIdempotency(context.Background(), db, now)
	if err != nil || n != 2 {
		t.Fatalf("purged %d, err %v; want 2", n, err)
	}
	var left int64
	db.Model(&domain.Idempotency{}).Count(&left)
	if left != 1 {
		t.Fatalf("remaining = %d; want 1", left)
	}
}
