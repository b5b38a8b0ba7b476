package repository

import (
	"context"

	allowdomain "investor-portal/internal/allowlist/domain"
)

// Mutation receives a private copy of the current record (nil when absent)
// and returns the record to store. write=false leaves the store untouched;
// write=true with a nil record deletes it. It may run more than once when the
// store retries a conflicting transaction, so it must not have side effects.
type Mutation func(current *allowdomain.DomainRecord) (next *allowdomain.DomainRecord, write bool, err error)

type DomainRepository interface {
	Get(ctx context.Context, domain string) (*allowdomain.DomainRecord, error)
	List(ctx context.Context) ([]*allowdomain.DomainRecord, error)
	// Mutate applies fn as one atomic read-modify-write keyed by domain.
	Mutate(ctx context.Context, domain string, fn Mutation) error
}
