package repository

import (
	"context"
	"time"

	userdomain "investor-portal/internal/user/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const usersCollection = "users"

// userDoc mirrors the stored document. Subscribed stays a pointer so
// profiles written before the flag existed read as the default.
type userDoc struct {
	Email      string    `firestore:"email"`
	Approved   bool      `firestore:"approved"`
	Subscribed *bool     `firestore:"subscribed,omitempty"`
	CreatedAt  time.Time `firestore:"created_at"`
	LastLogin  time.Time `firestore:"last_login"`
}

func (d userDoc) toDomain(uid string) *userdomain.UserProfile {
	return &userdomain.UserProfile{
		UID:        uid,
		Email:      d.Email,
		Approved:   d.Approved,
		Subscribed: d.Subscribed,
		CreatedAt:  d.CreatedAt,
		LastLogin:  d.LastLogin,
	}
}

type firestoreUserRepository struct {
	client *firestore.Client
}

func NewFirestoreUserRepository(client *firestore.Client) UserRepository {
	return &firestoreUserRepository{client: client}
}

func (r *firestoreUserRepository) users() *firestore.CollectionRef {
	return r.client.Collection(usersCollection)
}

func decode(snap *firestore.DocumentSnapshot) (*userdomain.UserProfile, error) {
	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (r *firestoreUserRepository) FindByID(ctx context.Context, uid string) (*userdomain.UserProfile, error) {
	snap, err := r.users().Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return decode(snap)
}

func (r *firestoreUserRepository) FindByEmail(ctx context.Context, email string) (*userdomain.UserProfile, error) {
	snaps, err := r.users().Where("email", "==", email).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return decode(snaps[0])
}

func (r *firestoreUserRepository) List(ctx context.Context) ([]*userdomain.UserProfile, error) {
	snaps, err := r.users().Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]*userdomain.UserProfile, 0, len(snaps))
	for _, snap := range snaps {
		p, err := decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *firestoreUserRepository) UpsertLogin(ctx context.Context, s LoginSync) (*userdomain.UserProfile, error) {
	ref := r.users().Doc(s.UID)
	var result *userdomain.UserProfile

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc := userDoc{CreatedAt: s.At}
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
		}

		subscribed := doc.toDomain(s.UID).IsSubscribed()
		doc.Email = s.Email
		doc.Approved = s.Approved
		doc.Subscribed = &subscribed
		doc.LastLogin = s.At

		result = doc.toDomain(s.UID)
		return tx.Set(ref, doc)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *firestoreUserRepository) UpdateFlagsByEmail(ctx context.Context, email string, patch userdomain.FlagPatch) (int, error) {
	var updates []firestore.Update
	if patch.Approved != nil {
		updates = append(updates, firestore.Update{Path: "approved", Value: *patch.Approved})
	}
	if patch.Subscribed != nil {
		updates = append(updates, firestore.Update{Path: "subscribed", Value: *patch.Subscribed})
	}

	snaps, err := r.users().Where("email", "==", email).Documents(ctx).GetAll()
	if err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return len(snaps), nil
	}
	for _, snap := range snaps {
		if _, err := snap.Ref.Update(ctx, updates); err != nil {
			return 0, err
		}
	}
	return len(snaps), nil
}
