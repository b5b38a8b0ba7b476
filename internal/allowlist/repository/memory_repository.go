package repository

import (
	"context"
	"sort"
	"sync"

	allowdomain "investor-portal/internal/allowlist/domain"
)

type memoryDomainRepository struct {
	mu      sync.Mutex
	domains map[string]*allowdomain.DomainRecord
}

func NewMemoryDomainRepository() DomainRepository {
	return &memoryDomainRepository{domains: make(map[string]*allowdomain.DomainRecord)}
}

func (r *memoryDomainRepository) Get(_ context.Context, domain string) (*allowdomain.DomainRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.domains[domain].Clone(), nil
}

func (r *memoryDomainRepository) List(_ context.Context) ([]*allowdomain.DomainRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*allowdomain.DomainRecord, 0, len(r.domains))
	for _, rec := range r.domains {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

func (r *memoryDomainRepository) Mutate(_ context.Context, domain string, fn Mutation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, write, err := fn(r.domains[domain].Clone())
	if err != nil || !write {
		return err
	}
	if next == nil {
		delete(r.domains, domain)
		return nil
	}
	next = next.Clone()
	next.Domain = domain
	r.domains[domain] = next
	return nil
}
