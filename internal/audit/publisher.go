package audit

import (
	"context"
	"time"
)

// Store is the audit sink port. Append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that support reading events back, used by
// tests and operator tooling.
type Lister interface {
	ListByIssuer(ctx context.Context, issuerID string) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses
// the store port for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}
