package usecase

import (
	"context"
	"strings"

	allowdomain "investor-portal/internal/allowlist/domain"
)

type DomainReader interface {
	Get(ctx context.Context, domain string) (*allowdomain.DomainRecord, error)
}

// Policy decides whether an email may use the portal. It only reads; store
// errors are returned to the caller and never turned into a decision.
type Policy struct {
	domains DomainReader
}

func NewPolicy(domains DomainReader) *Policy {
	return &Policy{domains: domains}
}

func (p *Policy) IsApproved(ctx context.Context, email string) (bool, error) {
	email = allowdomain.Normalize(email)
	domain, ok := allowdomain.DomainOf(email)
	if !ok {
		return false, nil
	}

	rec, err := p.domains.Get(ctx, domain)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	if allowdomain.IsGenericProvider(domain) {
		for _, listed := range rec.Emails {
			if strings.EqualFold(listed, email) {
				return true, nil
			}
		}
		return false, nil
	}
	// Non-generic domain: the record itself is the approval.
	return true, nil
}
