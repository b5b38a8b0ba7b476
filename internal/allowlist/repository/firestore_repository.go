package repository

import (
	"context"

	allowdomain "investor-portal/internal/allowlist/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const domainsCollection = "approved_domains"

type firestoreDomainRepository struct {
	client *firestore.Client
}

func NewFirestoreDomainRepository(client *firestore.Client) DomainRepository {
	return &firestoreDomainRepository{client: client}
}

func decodeDomain(snap *firestore.DocumentSnapshot) (*allowdomain.DomainRecord, error) {
	var rec allowdomain.DomainRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, err
	}
	if rec.Domain == "" {
		rec.Domain = snap.Ref.ID
	}
	return &rec, nil
}

func (r *firestoreDomainRepository) Get(ctx context.Context, domain string) (*allowdomain.DomainRecord, error) {
	snap, err := r.client.Collection(domainsCollection).Doc(domain).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return decodeDomain(snap)
}

func (r *firestoreDomainRepository) List(ctx context.Context) ([]*allowdomain.DomainRecord, error) {
	snaps, err := r.client.Collection(domainsCollection).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]*allowdomain.DomainRecord, 0, len(snaps))
	for _, snap := range snaps {
		rec, err := decodeDomain(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *firestoreDomainRepository) Mutate(ctx context.Context, domain string, fn Mutation) error {
	ref := r.client.Collection(domainsCollection).Doc(domain)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var current *allowdomain.DomainRecord
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			if current, err = decodeDomain(snap); err != nil {
				return err
			}
		}

		next, write, err := fn(current)
		if err != nil || !write {
			return err
		}
		if next == nil {
			if current == nil {
				return nil
			}
			return tx.Delete(ref)
		}
		if next.Emails == nil {
			next.Emails = []string{}
		}
		next.Domain = domain
		return tx.Set(ref, next)
	})
}
