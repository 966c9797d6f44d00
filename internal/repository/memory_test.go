package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"clinicbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionRepository(t *testing.T) {
	repo := NewMemorySessionRepository(time.Hour)
	ctx := context.Background()

	t.Run("SaveAndGetSession", func(t *testing.T) {
		session := &models.Session{UserID: 123, InputStep: models.InputLoginEmail}
		require.NoError(t, repo.SaveSession(ctx, session))

		got, err := repo.GetSession(ctx, 123)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.InputLoginEmail, got.InputStep)

		// stored value is a copy
		session.InputStep = models.InputNone
		got, _ = repo.GetSession(ctx, 123)
		assert.Equal(t, models.InputLoginEmail, got.InputStep)
	})

	t.Run("ClearSession", func(t *testing.T) {
		require.NoError(t, repo.ClearSession(ctx, 123))
		got, _ := repo.GetSession(ctx, 123)
		assert.Nil(t, got)
	})

	t.Run("Expiry", func(t *testing.T) {
		now := time.Now()
		repo.now = func() time.Time { return now }
		require.NoError(t, repo.SaveSession(ctx, &models.Session{UserID: 7}))

		now = now.Add(2 * time.Hour)
		got, err := repo.GetSession(ctx, 7)
		require.NoError(t, err)
		assert.Nil(t, got)
		repo.now = time.Now
	})

	t.Run("RateLimit", func(t *testing.T) {
		now := time.Now()
		repo.now = func() time.Time { return now }
		defer func() { repo.now = time.Now }()

		userID := int64(456)
		allowed, _ := repo.CheckRateLimit(ctx, userID, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, userID, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, userID, 2, time.Second)
		assert.False(t, allowed)

		now = now.Add(time.Second + 10*time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, userID, 2, time.Second)
		assert.True(t, allowed)
	})

	t.Run("RateLimitConcurrent", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, _ := repo.CheckRateLimit(ctx, 999, 10, time.Minute)
				if ok {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 10, allowed)
	})
}
