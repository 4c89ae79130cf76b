// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides lookups for the two actor populations
// (customers and shops) and the designs they trade in.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// persistence and query composition.
//
// Error semantics:
//   - When a row is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-nailo-backend/internal/domain"
)

// GetCustomer fetches a customer by internal id.
func GetCustomer(ctx context.Context, db *gorm.DB, id string) (*domain.Customer, error) {
	var c domain.Customer
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCustomerByExternalID fetches a customer by the id used in session URLs.
func GetCustomerByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.Customer, error) {
	var c domain.Customer
	if err := db.WithContext(ctx).Where("external_id = ?", externalID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetShop fetches a shop by internal id regardless of its active flag.
func GetShop(ctx context.Context, db *gorm.DB, id string) (*domain.Shop, error) {
	var s domain.Shop
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetShopByExternalID fetches a shop by the id used in session URLs.
func GetShopByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.Shop, error) {
	var s domain.Shop
	if err := db.WithContext(ctx).Where("external_id = ?", externalID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetShopsByIDs returns the shops whose ids are listed, in unspecified order.
// Missing ids are simply absent from the result.
func GetShopsByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Shop, error) {
	if len(ids) == 0 {
		return []domain.Shop{}, nil
	}
	var out []domain.Shop
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// ListActiveShops returns all active shops ordered by creation time then id,
// which gives proximity ranking a deterministic insertion order for ties.
func ListActiveShops(ctx context.Context, db *gorm.DB) ([]domain.Shop, error) {
	var out []domain.Shop
	err := db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// GetDesign fetches a design by id regardless of its active flag.
func GetDesign(ctx context.Context, db *gorm.DB, id string) (*domain.Design, error) {
	var d domain.Design
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}
