package store

import "github.com/pkg/errors"

// Sentinel errors for the persistence gateway. Callers branch on these with
// errors.Is; the inventory errors additionally carry a human-readable message
// built by the validation path.
var (
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrBelowMinStock         = errors.New("order would drop inventory below minimum stock level")
	ErrEmptyOrder            = errors.New("order has no items")
)
