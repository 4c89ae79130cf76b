// Package domain defines the persistence models for customers, shops,
// designs, service requests, and service responses. These types are mapped
// with GORM and form the core data layer of the coordination backend.
package domain

import (
	"time"
)

// Request lifecycle states. A request leaves pending exactly once.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Customer is a requester identity.
//
// Fields:
//   - ID: stable UUID primary key (char(36)); used for group keys and foreign keys.
//   - ExternalID: login-facing identifier used in session URLs (unique).
//   - Name: display name.
type Customer struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ExternalID string    `json:"external_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Name       string    `json:"name"        gorm:"type:varchar(255);not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Customer.
func (Customer) TableName() string { return "customers" }

// Shop is a provider identity with a fixed location in decimal degrees.
// Inactive shops are excluded from proximity ranking but can still answer
// requests that were already addressed to them.
type Shop struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ExternalID string    `json:"external_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Name       string    `json:"name"        gorm:"type:varchar(255);not null"`
	Lat        float64   `json:"lat"         gorm:"not null"`
	Lng        float64   `json:"lng"         gorm:"not null"`
	Active     bool      `json:"active"      gorm:"not null;index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Shop.
func (Shop) TableName() string { return "shops" }

// Design is a catalog item owned by a shop. Its price is snapshotted into a
// ServiceRequest at creation time.
type Design struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ShopID    string    `json:"shop_id"    gorm:"type:char(36);not null;index"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	Price     int64     `json:"price"      gorm:"not null;check:price >= 0"`
	Active    bool      `json:"active"     gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Shop Shop `json:"-" gorm:"foreignKey:ShopID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Design.
func (Design) TableName() string { return "designs" }

// ServiceRequest is a customer's ask to one shop for one design.
//
// At most one open (pending or accepted) request exists per
// (customer_id, shop_id, design_id); the partial unique index
// ux_open_request enforces this in the datastore so concurrent submissions
// cannot both succeed. A rejected tuple may be requested again.
type ServiceRequest struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	CustomerID string    `json:"customer_id" gorm:"type:char(36);not null;index:idx_customer_requests,priority:1;uniqueIndex:ux_open_request,priority:1,where:status <> 'rejected'"`
	ShopID     string    `json:"shop_id"     gorm:"type:char(36);not null;index;uniqueIndex:ux_open_request,priority:2,where:status <> 'rejected'"`
	DesignID   string    `json:"design_id"   gorm:"type:char(36);not null;uniqueIndex:ux_open_request,priority:3,where:status <> 'rejected'"`
	Price      int64     `json:"price"       gorm:"not null"`
	Status     string    `json:"status"      gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','accepted','rejected')"`
	Contents   string    `json:"contents"    gorm:"type:text;not null;default:''"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index:idx_customer_requests,priority:2"`
	UpdatedAt  time.Time `json:"updated_at"`

	Customer Customer `json:"-" gorm:"foreignKey:CustomerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Shop     Shop     `json:"-" gorm:"foreignKey:ShopID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Design   Design   `json:"-" gorm:"foreignKey:DesignID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ServiceRequest.
func (ServiceRequest) TableName() string { return "service_requests" }

// IsOpen reports whether the request still blocks a new one for its tuple.
func (r ServiceRequest) IsOpen() bool {
	return r.Status == StatusPending || r.Status == StatusAccepted
}

// ServiceResponse is a shop's single definitive answer to an accepted
// request. The unique index on request_id is what guarantees "at most one
// response per request" across concurrent sessions.
type ServiceResponse struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	RequestID  string    `json:"request_id"  gorm:"type:char(36);not null;uniqueIndex:ux_response_request"`
	CustomerID string    `json:"customer_id" gorm:"type:char(36);not null;index"`
	ShopID     string    `json:"shop_id"     gorm:"type:char(36);not null;index"`
	Price      int64     `json:"price"       gorm:"not null"`
	Contents   string    `json:"contents"    gorm:"type:text;not null;default:''"`
	CreatedAt  time.Time `json:"created_at"`

	Request ServiceRequest `json:"-" gorm:"foreignKey:RequestID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ServiceResponse.
func (ServiceResponse) TableName() string { return "service_responses" }
