package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	allowdomain "investor-portal/internal/allowlist/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendEmail(email string) Mutation {
	return func(cur *allowdomain.DomainRecord) (*allowdomain.DomainRecord, bool, error) {
		if cur == nil {
			cur = &allowdomain.DomainRecord{}
		}
		return cur, cur.AddEmail(email), nil
	}
}

func TestMemoryMutate_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDomainRepository()

	require.NoError(t, repo.Mutate(ctx, "acme.com", appendEmail("a@acme.com")))
	rec, err := repo.Get(ctx, "acme.com")
	require.NoError(t, err)
	assert.Equal(t, "acme.com", rec.Domain)
	assert.Equal(t, []string{"a@acme.com"}, rec.Emails)

	err = repo.Mutate(ctx, "acme.com", func(*allowdomain.DomainRecord) (*allowdomain.DomainRecord, bool, error) {
		return nil, true, nil
	})
	require.NoError(t, err)
	rec, err = repo.Get(ctx, "acme.com")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemoryMutate_ErrorLeavesRecord(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDomainRepository()
	require.NoError(t, repo.Mutate(ctx, "acme.com", appendEmail("a@acme.com")))

	boom := errors.New("boom")
	err := repo.Mutate(ctx, "acme.com", func(cur *allowdomain.DomainRecord) (*allowdomain.DomainRecord, bool, error) {
		cur.Emails = nil
		return nil, true, boom
	})
	assert.ErrorIs(t, err, boom)

	rec, err := repo.Get(ctx, "acme.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@acme.com"}, rec.Emails)
}

func TestMemoryMutate_ConcurrentAppendsKeepEveryEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDomainRepository()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := string(rune('a'+i%26)) + string(rune('a'+i/26)) + "@acme.com"
			assert.NoError(t, repo.Mutate(ctx, "acme.com", appendEmail(email)))
		}(i)
	}
	wg.Wait()

	rec, err := repo.Get(ctx, "acme.com")
	require.NoError(t, err)
	assert.Len(t, rec.Emails, n)
}
