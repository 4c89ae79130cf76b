package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-nailo-backend/internal/domain"
	"github.com/tbourn/go-nailo-backend/internal/repo"
)

// Directory resolves externally visible actor identifiers to internal
// identities. It is the trust boundary for "who is this session" and has no
// side effects.
type Directory struct {
	DB *gorm.DB
}

// Resolve looks up a customer or shop by the external id used in session
// URLs and identity headers. kindHint must be exactly "customer" or "shop".
// Inactive shops still resolve so they can answer outstanding requests.
func (d *Directory) Resolve(ctx context.Context, kindHint, externalID string) (domain.Actor, error) {
	kind, err := domain.ParseActorKind(kindHint)
	if err != nil {
		return domain.Actor{}, ErrInvalidKind
	}
	if externalID == "" {
		return domain.Actor{}, ErrActorNotFound
	}

	switch kind {
	case domain.KindCustomer:
		c, err := repo.GetCustomerByExternalID(ctx, d.DB, externalID)
		if err != nil {
			return domain.Actor{}, mapNotFound(err, ErrActorNotFound)
		}
		return domain.CustomerActor(*c), nil
	case domain.KindShop:
		s, err := repo.GetShopByExternalID(ctx, d.DB, externalID)
		if err != nil {
			return domain.Actor{}, mapNotFound(err, ErrActorNotFound)
		}
		return domain.ShopActor(*s), nil
	default:
		return domain.Actor{}, ErrInvalidKind
	}
}

// mapNotFound swaps repo not-found errors for a service sentinel and passes
// everything else through.
func mapNotFound(err, sentinel error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return sentinel
	}
	return err
}
