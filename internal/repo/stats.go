// Package repo persists actors, service requests and idempotency records
// with GORM. This file holds the aggregate behind the response listing's
// ETag.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-nailo-backend/internal/domain"
)

// RequestsStats returns the number of requests a customer has (optionally
// scoped to one design) and the greatest UpdatedAt among them. Since every
// response flips its request out of pending, the pair changes whenever the
// customer's response projection does. maxUpdatedAt is nil when count is 0.
func RequestsStats(ctx context.Context, db *gorm.DB, customerID, designID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ServiceRequest{}).Where("customer_id = ?", customerID)
	if designID != "" {
		q = q.Where("design_id = ?", designID)
	}

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// MAX(updated_at) comes back as TEXT from sqlite; order instead.
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
