package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_DeleteStaleHonoursLimit(t *testing.T) {
	repo := NewMemoryRateLimitRepository()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, key := range []string{"a", "b", "c"} {
		_, err := admit(repo, key, base, 5)
		require.NoError(t, err)
	}

	n, err := repo.DeleteStale(context.Background(), base.Add(time.Hour), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.DeleteStale(context.Background(), base.Add(time.Hour), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
