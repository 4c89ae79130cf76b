// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file loads YAML fixtures describing customers, shops
// and designs and upserts them. Seeding is an explicit setup step run by the
// server command; it is never triggered from a request path.
package repo

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-nailo-backend/internal/domain"
)

// Seed is the fixture document.
//
//	customers:
//	  - external_id: alice
//	    name: Alice
//	shops:
//	  - external_id: nail-studio
//	    name: Nail Studio
//	    lat: 37.5665
//	    lng: 126.9780
//	designs:
//	  - shop: nail-studio
//	    name: French tips
//	    price: 30000
type Seed struct {
	Customers []SeedCustomer `yaml:"customers"`
	Shops     []SeedShop     `yaml:"shops"`
	Designs   []SeedDesign   `yaml:"designs"`
}

type SeedCustomer struct {
	ExternalID string `yaml:"external_id"`
	Name       string `yaml:"name"`
}

type SeedShop struct {
	ExternalID string  `yaml:"external_id"`
	Name       string  `yaml:"name"`
	Lat        float64 `yaml:"lat"`
	Lng        float64 `yaml:"lng"`
	Active     *bool   `yaml:"active"`
}

// SeedDesign references its shop by external id. ID is optional; when empty
// a stable id is derived from the shop and design name.
type SeedDesign struct {
	ID     string `yaml:"id"`
	Shop   string `yaml:"shop"`
	Name   string `yaml:"name"`
	Price  int64  `yaml:"price"`
	Active *bool  `yaml:"active"`
}

// LoadSeed reads and validates a fixture file.
func LoadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeed(raw)
}

// ParseSeed decodes a fixture document and checks references.
func ParseSeed(raw []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	shops := make(map[string]struct{}, len(s.Shops))
	for i, sh := range s.Shops {
		if strings.TrimSpace(sh.ExternalID) == "" {
			return nil, fmt.Errorf("seed: shops[%d]: external_id is required", i)
		}
		if sh.Lat < -90 || sh.Lat > 90 || sh.Lng < -180 || sh.Lng > 180 {
			return nil, fmt.Errorf("seed: shop %q: coordinates out of range", sh.ExternalID)
		}
		shops[sh.ExternalID] = struct{}{}
	}
	for i, c := range s.Customers {
		if strings.TrimSpace(c.ExternalID) == "" {
			return nil, fmt.Errorf("seed: customers[%d]: external_id is required", i)
		}
	}
	for i, d := range s.Designs {
		if _, ok := shops[d.Shop]; !ok {
			return nil, fmt.Errorf("seed: designs[%d]: unknown shop %q", i, d.Shop)
		}
		if d.Price < 0 {
			return nil, fmt.Errorf("seed: designs[%d]: price must be >= 0", i)
		}
	}
	return &s, nil
}

// StableID derives a deterministic UUID so re-seeding keeps row ids.
func StableID(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.Join(parts, "/"))).String()
}

// ApplySeed upserts every fixture row in one transaction. Existing rows keep
// their ids and creation time; names, locations, prices and flags are
// refreshed.
func ApplySeed(ctx context.Context, db *gorm.DB, s *Seed) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range s.Customers {
			row := domain.Customer{
				ID:         StableID("customer", c.ExternalID),
				ExternalID: c.ExternalID,
				Name:       displayName(c.Name, c.ExternalID),
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("seed customer %q: %w", c.ExternalID, err)
			}
		}

		shopIDs := make(map[string]string, len(s.Shops))
		for _, sh := range s.Shops {
			row := domain.Shop{
				ID:         StableID("shop", sh.ExternalID),
				ExternalID: sh.ExternalID,
				Name:       displayName(sh.Name, sh.ExternalID),
				Lat:        sh.Lat,
				Lng:        sh.Lng,
				Active:     boolOr(sh.Active, true),
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "lat", "lng", "active", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("seed shop %q: %w", sh.ExternalID, err)
			}
			// The row may predate stable ids; read back the stored one.
			stored, err := GetShopByExternalID(ctx, tx, sh.ExternalID)
			if err != nil {
				return err
			}
			shopIDs[sh.ExternalID] = stored.ID
		}

		for _, d := range s.Designs {
			id := d.ID
			if id == "" {
				id = StableID("design", d.Shop, d.Name)
			}
			row := domain.Design{
				ID:        id,
				ShopID:    shopIDs[d.Shop],
				Name:      d.Name,
				Price:     d.Price,
				Active:    boolOr(d.Active, true),
				CreatedAt: now,
				UpdatedAt: now,
			}
			err := tx.Omit("Shop").Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"shop_id", "name", "price", "active", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("seed design %q: %w", d.Name, err)
			}
		}
		return nil
	})
}

func displayName(name, fallback string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return fallback
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
