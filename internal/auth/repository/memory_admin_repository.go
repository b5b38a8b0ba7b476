package repository

import (
	"context"
	"sync"
)

type memoryAdminRepository struct {
	mu     sync.RWMutex
	admins map[string]struct{}
}

func NewMemoryAdminRepository() AdminRepository {
	return &memoryAdminRepository{admins: make(map[string]struct{})}
}

func (r *memoryAdminRepository) IsAdmin(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.admins[email]
	return ok, nil
}

func (r *memoryAdminRepository) Create(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.admins[email]; ok {
		return false, nil
	}
	r.admins[email] = struct{}{}
	return true, nil
}
