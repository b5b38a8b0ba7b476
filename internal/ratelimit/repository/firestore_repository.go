package repository

import (
	"context"
	"time"

	"investor-portal/internal/ratelimit/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const rateLimitsCollection = "rate_limits"

// rateLimitDoc stores epoch milliseconds, matching documents written by
// earlier deployments.
type rateLimitDoc struct {
	Count       int   `firestore:"count"`
	WindowStart int64 `firestore:"windowStart"`
	LastRequest int64 `firestore:"lastRequest"`
}

type firestoreRateLimitRepository struct {
	client *firestore.Client
}

func NewFirestoreRateLimitRepository(client *firestore.Client) RateLimitRepository {
	return &firestoreRateLimitRepository{client: client}
}

func (r *firestoreRateLimitRepository) Mutate(ctx context.Context, key string, fn Mutation) error {
	ref := r.client.Collection(rateLimitsCollection).Doc(key)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var cur *domain.Record
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			var doc rateLimitDoc
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			cur = &domain.Record{
				Key:         key,
				Count:       doc.Count,
				WindowStart: time.UnixMilli(doc.WindowStart),
				LastRequest: time.UnixMilli(doc.LastRequest),
			}
		}

		next, err := fn(cur)
		if err != nil || next == nil {
			return err
		}
		return tx.Set(ref, rateLimitDoc{
			Count:       next.Count,
			WindowStart: next.WindowStart.UnixMilli(),
			LastRequest: next.LastRequest.UnixMilli(),
		})
	})
}

func (r *firestoreRateLimitRepository) DeleteStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	snaps, err := r.client.Collection(rateLimitsCollection).
		Where("lastRequest", "<", cutoff.UnixMilli()).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, err
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(snaps))
	for _, snap := range snaps {
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return 0, err
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	for _, job := range jobs {
		if _, err := job.Results(); err == nil {
			deleted++
		}
	}
	return deleted, nil
}
