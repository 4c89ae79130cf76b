package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ActorKind distinguishes the two disjoint actor populations that share the
// session endpoint.
type ActorKind int

const (
	// KindCustomer is a requester.
	KindCustomer ActorKind = iota + 1
	// KindShop is a provider.
	KindShop
)

// ErrUnknownKind is returned by ParseActorKind for anything other than
// "customer" or "shop".
var ErrUnknownKind = errors.New("actor kind must be customer or shop")

// ParseActorKind maps the wire name of a kind to its enum value. Matching is
// exact: "Customer" or " shop" are rejected.
func ParseActorKind(s string) (ActorKind, error) {
	switch s {
	case "customer":
		return KindCustomer, nil
	case "shop":
		return KindShop, nil
	default:
		return 0, ErrUnknownKind
	}
}

// String returns the wire name of the kind.
func (k ActorKind) String() string {
	switch k {
	case KindCustomer:
		return "customer"
	case KindShop:
		return "shop"
	default:
		return fmt.Sprintf("ActorKind(%d)", int(k))
	}
}

// GroupKey is the pub/sub routing token for all sessions of one actor.
type GroupKey string

// NewGroupKey derives "{kind}:{id}".
func NewGroupKey(kind ActorKind, id string) GroupKey {
	return GroupKey(kind.String() + ":" + id)
}

// Kind returns the kind prefix of the key, or 0 if malformed.
func (g GroupKey) Kind() ActorKind {
	prefix, _, ok := strings.Cut(string(g), ":")
	if !ok {
		return 0
	}
	k, err := ParseActorKind(prefix)
	if err != nil {
		return 0
	}
	return k
}

// Actor is a resolved customer or shop identity.
type Actor struct {
	Kind       ActorKind `json:"kind"`
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
}

// GroupKey returns the routing key for this actor's sessions.
func (a Actor) GroupKey() GroupKey { return NewGroupKey(a.Kind, a.ID) }

// CustomerActor wraps a Customer row.
func CustomerActor(c Customer) Actor {
	return Actor{Kind: KindCustomer, ID: c.ID, ExternalID: c.ExternalID, Name: c.Name}
}

// ShopActor wraps a Shop row.
func ShopActor(s Shop) Actor {
	return Actor{Kind: KindShop, ID: s.ID, ExternalID: s.ExternalID, Name: s.Name}
}
