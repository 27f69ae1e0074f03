package airquality

import (
	"context"
)

// Provider abstracts the remote air quality source for the configured coordinate.
// One call to Fetch is one fetch cycle: a single request plus validation.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (Reading, error)
}

// Store is the contract the freshness cache must satisfy.
type Store interface {
	SaveReading(r Reading)
	Latest() (Reading, error)
}

// Publisher receives every accepted reading after it is cached.
// Publication failures never affect collection.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, r Reading) error
}
