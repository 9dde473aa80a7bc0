package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidOrderRef = errors.New("invalid order reference")

// OrderKind is the tag stored in model_type columns.
type OrderKind string

const (
	OrderKindSubscription OrderKind = "subscription"
	OrderKindCart         OrderKind = "cart"
)

// OrderRef points at the order a payment session pays for. The set of
// implementations is closed: SubscriptionRef and CartRef.
type OrderRef interface {
	Kind() OrderKind
	OrderID() int64
	isOrderRef()
}

type SubscriptionRef struct{ ID int64 }

func (r SubscriptionRef) Kind() OrderKind { return OrderKindSubscription }
func (r SubscriptionRef) OrderID() int64  { return r.ID }
func (SubscriptionRef) isOrderRef()       {}

type CartRef struct{ ID int64 }

func (r CartRef) Kind() OrderKind { return OrderKindCart }
func (r CartRef) OrderID() int64  { return r.ID }
func (CartRef) isOrderRef()       {}

// ParseOrderRef rebuilds a reference from its persisted model_type/model_id pair.
func ParseOrderRef(modelType string, id int64) (OrderRef, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: id %d", ErrInvalidOrderRef, id)
	}
	switch OrderKind(strings.ToLower(strings.TrimSpace(modelType))) {
	case OrderKindSubscription:
		return SubscriptionRef{ID: id}, nil
	case OrderKindCart:
		return CartRef{ID: id}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidOrderRef, modelType)
	}
}

func FormatOrderRef(ref OrderRef) string {
	return fmt.Sprintf("%s:%d", ref.Kind(), ref.OrderID())
}
