// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ServiceRequest and ServiceResponse models.
//
// Error semantics:
//   - Inserts that hit ux_open_request (one open request per
//     customer/shop/design) or ux_response_request (one response per
//     request) return ErrDuplicate. Callers decide whether that is a
//     suppressed no-op or a conflict.
//   - Status changes go through CompareAndSetStatus so two concurrent
//     deciders cannot both move a request out of pending.
//
// Functions:
//
//   - CreateRequest(ctx, db, in) -> *domain.ServiceRequest, error
//   - GetRequest(ctx, db, id) -> *domain.ServiceRequest, error
//   - FindOpenRequest(ctx, db, customerID, shopID, designID) -> *domain.ServiceRequest, error
//   - CompareAndSetStatus(ctx, db, id, from, to) -> (bool, error)
//   - ListRequestsByCustomer(ctx, db, customerID, designID) -> []domain.ServiceRequest, error
//   - CreateResponse(ctx, db, req, price, contents) -> *domain.ServiceResponse, error
//   - GetResponseByRequest(ctx, db, requestID) -> *domain.ServiceResponse, error
//   - ListResponsesByRequestIDs(ctx, db, ids) -> []domain.ServiceResponse, error
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-nailo-backend/internal/domain"
)

// NewRequest carries the fields snapshotted into a ServiceRequest row.
type NewRequest struct {
	CustomerID string
	ShopID     string
	DesignID   string
	Price      int64
	Contents   string
}

// CreateRequest inserts a pending request with a fresh UUID. A unique
// violation on the open-request index is returned as ErrDuplicate.
func CreateRequest(ctx context.Context, db *gorm.DB, in NewRequest) (*domain.ServiceRequest, error) {
	now := time.Now().UTC()
	r := &domain.ServiceRequest{
		ID:         uuid.NewString(),
		CustomerID: in.CustomerID,
		ShopID:     in.ShopID,
		DesignID:   in.DesignID,
		Price:      in.Price,
		Status:     domain.StatusPending,
		Contents:   in.Contents,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.WithContext(ctx).Omit("Customer", "Shop", "Design").Create(r).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// GetRequest fetches a request by id.
func GetRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ServiceRequest, error) {
	var r domain.ServiceRequest
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// FindOpenRequest returns the pending or accepted request for the tuple, or
// ErrNotFound.
func FindOpenRequest(ctx context.Context, db *gorm.DB, customerID, shopID, designID string) (*domain.ServiceRequest, error) {
	var r domain.ServiceRequest
	err := db.WithContext(ctx).
		Where("customer_id = ? AND shop_id = ? AND design_id = ?", customerID, shopID, designID).
		Where("status IN ?", []string{domain.StatusPending, domain.StatusAccepted}).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CompareAndSetStatus moves a request from one status to another only if it
// is still in the expected state. It reports whether this call performed the
// transition.
func CompareAndSetStatus(ctx context.Context, db *gorm.DB, id, from, to string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListRequestsByCustomer returns every request of a customer with its design
// and shop preloaded, oldest first. An empty designID means all designs.
func ListRequestsByCustomer(ctx context.Context, db *gorm.DB, customerID, designID string) ([]domain.ServiceRequest, error) {
	q := db.WithContext(ctx).
		Preload("Design").
		Preload("Shop").
		Where("customer_id = ?", customerID)
	if designID != "" {
		q = q.Where("design_id = ?", designID)
	}
	var out []domain.ServiceRequest
	err := q.Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// CreateResponse inserts the single response for req. A second insert for the
// same request returns ErrDuplicate.
func CreateResponse(ctx context.Context, db *gorm.DB, req *domain.ServiceRequest, price int64, contents string) (*domain.ServiceResponse, error) {
	resp := &domain.ServiceResponse{
		ID:         uuid.NewString(),
		RequestID:  req.ID,
		CustomerID: req.CustomerID,
		ShopID:     req.ShopID,
		Price:      price,
		Contents:   contents,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Omit("Request").Create(resp).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return resp, nil
}

// GetResponseByRequest returns the response recorded for requestID, or
// ErrNotFound.
func GetResponseByRequest(ctx context.Context, db *gorm.DB, requestID string) (*domain.ServiceResponse, error) {
	var r domain.ServiceResponse
	if err := db.WithContext(ctx).Where("request_id = ?", requestID).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListResponsesByRequestIDs returns the responses for the given requests.
func ListResponsesByRequestIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.ServiceResponse, error) {
	if len(ids) == 0 {
		return []domain.ServiceResponse{}, nil
	}
	var out []domain.ServiceResponse
	err := db.WithContext(ctx).Where("request_id IN ?", ids).Find(&out).Error
	return out, err
}
