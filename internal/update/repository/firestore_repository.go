package repository

import (
	"context"
	"time"

	updatedomain "investor-portal/internal/update/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const updatesCollection = "timeline_updates"

type updateDoc struct {
	Title       string    `firestore:"title"`
	ContentMD   string    `firestore:"content_md"`
	CreatedAt   time.Time `firestore:"created_at"`
	EmailSent   bool      `firestore:"email_sent"`
	SentCount   int       `firestore:"sent_count"`
	FailedCount int       `firestore:"failed_count"`
}

type firestoreUpdateRepository struct {
	client *firestore.Client
}

func NewFirestoreUpdateRepository(client *firestore.Client) UpdateRepository {
	return &firestoreUpdateRepository{client: client}
}

func (r *firestoreUpdateRepository) updates() *firestore.CollectionRef {
	return r.client.Collection(updatesCollection)
}

func decodeUpdate(snap *firestore.DocumentSnapshot) (*updatedomain.Update, error) {
	var doc updateDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return &updatedomain.Update{
		ID:          snap.Ref.ID,
		Title:       doc.Title,
		ContentMD:   doc.ContentMD,
		CreatedAt:   doc.CreatedAt,
		EmailSent:   doc.EmailSent,
		SentCount:   doc.SentCount,
		FailedCount: doc.FailedCount,
	}, nil
}

func (r *firestoreUpdateRepository) Create(ctx context.Context, u *updatedomain.Update) error {
	ref := r.updates().NewDoc()
	if u.ID != "" {
		ref = r.updates().Doc(u.ID)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := ref.Create(ctx, updateDoc{
		Title:       u.Title,
		ContentMD:   u.ContentMD,
		CreatedAt:   u.CreatedAt,
		EmailSent:   u.EmailSent,
		SentCount:   u.SentCount,
		FailedCount: u.FailedCount,
	})
	if err != nil {
		return err
	}
	u.ID = ref.ID
	return nil
}

func (r *firestoreUpdateRepository) Get(ctx context.Context, id string) (*updatedomain.Update, error) {
	snap, err := r.updates().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return decodeUpdate(snap)
}

func (r *firestoreUpdateRepository) RecordDelivery(ctx context.Context, id string, d updatedomain.Delivery) error {
	_, err := r.updates().Doc(id).Update(ctx, []firestore.Update{
		{Path: "email_sent", Value: d.EmailSent},
		{Path: "sent_count", Value: d.Sent},
		{Path: "failed_count", Value: d.Failed},
	})
	return err
}

func (r *firestoreUpdateRepository) Delete(ctx context.Context, id string) error {
	_, err := r.updates().Doc(id).Delete(ctx)
	return err
}

func (r *firestoreUpdateRepository) ListRecent(ctx context.Context, limit int) ([]*updatedomain.Update, error) {
	snaps, err := r.updates().OrderBy("created_at", firestore.Desc).Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]*updatedomain.Update, 0, len(snaps))
	for _, snap := range snaps {
		u, err := decodeUpdate(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
