package services

import (
	"errors"

	"github.com/BradenHooton/amgate/internal/clock"
	"github.com/BradenHooton/amgate/internal/models"
	"github.com/BradenHooton/amgate/internal/observability"
	"github.com/google/uuid"
)

// IDGenerator assigns identifiers to records created without one
type IDGenerator func() string

// StoreOption customizes a store service
type StoreOption func(*storeOptions)

type storeOptions struct {
	clock    clock.Clock
	newID    IDGenerator
	observer observability.Observer
}

// WithClock overrides the expiry clock
func WithClock(c clock.Clock) StoreOption {
	return func(o *storeOptions) { o.clock = c }
}

// WithIDGenerator overrides the id generator
func WithIDGenerator(gen IDGenerator) StoreOption {
	return func(o *storeOptions) { o.newID = gen }
}

// WithObserver sets the observer notified around every store operation
func WithObserver(obs observability.Observer) StoreOption {
	return func(o *storeOptions) { o.observer = obs }
}

func newStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{
		clock:    clock.System{},
		newID:    uuid.NewString,
		observer: observability.Nop{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// persistenceFailure wraps a backend error for the caller. Guard errors raised by the
// store itself (invalid query) are returned as-is.
func persistenceFailure(op string, err error) error {
	if errors.Is(err, models.ErrInvalidQuery) {
		return err
	}
	return models.NewPersistenceError(op, err)
}
