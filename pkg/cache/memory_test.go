package cache

import (
	"context"
	"edu_assessment_backend/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_DraftExpires(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	opt := model.OptionRef(2)
	require.NoError(t, c.SaveDraft(ctx, "a1", []model.Answer{{QuestionNumber: 1, SelectedOption: &opt}}, time.Minute))

	got, err := c.LoadDraft(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.OptionRef(2), *got[0].SelectedOption)

	now = now.Add(2 * time.Minute)
	got, err = c.LoadDraft(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCache_LockIsExclusiveUntilExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := c.TryLock(ctx, "sweep", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = c.TryLock(ctx, "sweep", 30*time.Second)
	assert.False(t, ok)

	now = now.Add(31 * time.Second)
	ok, _ = c.TryLock(ctx, "sweep", 30*time.Second)
	assert.True(t, ok)

	require.NoError(t, c.Unlock(ctx, "sweep"))
	ok, _ = c.TryLock(ctx, "sweep", 30*time.Second)
	assert.True(t, ok)
}
