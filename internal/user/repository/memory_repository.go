package repository

import (
	"context"
	"sort"
	"sync"

	userdomain "investor-portal/internal/user/domain"
)

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*userdomain.UserProfile
}

func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]*userdomain.UserProfile)}
}

func clone(p *userdomain.UserProfile) *userdomain.UserProfile {
	out := *p
	if p.Subscribed != nil {
		out.Subscribed = userdomain.Bool(*p.Subscribed)
	}
	return &out
}

func (r *memoryUserRepository) FindByID(_ context.Context, uid string) (*userdomain.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.users[uid]; ok {
		return clone(p), nil
	}
	return nil, nil
}

func (r *memoryUserRepository) FindByEmail(_ context.Context, email string) (*userdomain.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.sortedLocked() {
		if p.Email == email {
			return clone(p), nil
		}
	}
	return nil, nil
}

func (r *memoryUserRepository) List(_ context.Context) ([]*userdomain.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*userdomain.UserProfile, 0, len(r.users))
	for _, p := range r.sortedLocked() {
		out = append(out, clone(p))
	}
	return out, nil
}

func (r *memoryUserRepository) UpsertLogin(_ context.Context, s LoginSync) (*userdomain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.users[s.UID]
	if !ok {
		p = &userdomain.UserProfile{UID: s.UID, CreatedAt: s.At}
		r.users[s.UID] = p
	}
	p.Email = s.Email
	p.Approved = s.Approved
	p.Subscribed = userdomain.Bool(p.IsSubscribed())
	p.LastLogin = s.At
	return clone(p), nil
}

func (r *memoryUserRepository) UpdateFlagsByEmail(_ context.Context, email string, patch userdomain.FlagPatch) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.users {
		if p.Email != email {
			continue
		}
		if patch.Approved != nil {
			p.Approved = *patch.Approved
		}
		if patch.Subscribed != nil {
			p.Subscribed = userdomain.Bool(*patch.Subscribed)
		}
		n++
	}
	return n, nil
}

// Seed inserts a profile as-is, including an absent subscribed flag.
func Seed(repo UserRepository, p *userdomain.UserProfile) {
	if m, ok := repo.(*memoryUserRepository); ok {
		m.mu.Lock()
		m.users[p.UID] = clone(p)
		m.mu.Unlock()
	}
}

func (r *memoryUserRepository) sortedLocked() []*userdomain.UserProfile {
	out := make([]*userdomain.UserProfile, 0, len(r.users))
	for _, p := range r.users {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}
