// Package customer defines the minimal customer directory contract the
// engine needs: sales require an associated, existing customer.
package customer

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a referenced customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer is the directory's read model.
type Customer struct {
	ID    string
	Name  string
	Phone string
}

// Directory provides customer lookups. Customer management itself lives in
// the surrounding system.
type Directory interface {
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*Customer, error)
}
