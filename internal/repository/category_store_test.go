package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casual-tasker/internal/model"
)

func TestCategoryDeleteReassignsTasks(t *testing.T) {
	for _, k := range []int{0, 1, 3} {
		s := setupStores(t)
		ctx := context.Background()
		deleted, common := seedSentinels(t, s)

		work, err := s.categories.Add(ctx, &model.Category{Name: "Work"})
		require.NoError(t, err)

		var ids []uint
		for i := 0; i < k; i++ {
			task, err := s.tasks.Add(ctx, &model.Task{Name: "work task", Category: &model.Category{ID: work.ID}})
			require.NoError(t, err)
			ids = append(ids, task.ID)
		}
		other, err := s.tasks.Add(ctx, &model.Task{Name: "other"})
		require.NoError(t, err)

		ok, err := s.categories.Delete(ctx, work.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		gone, err := s.categories.GetByID(ctx, work.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)

		for _, id := range ids {
			task, err := s.tasks.GetByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, deleted.ID, task.CategoryID)
			require.NotNil(t, task.Category)
			assert.Equal(t, DeletedCategoryName, task.Category.Name)
		}

		untouched, err := s.tasks.GetByID(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, common.ID, untouched.CategoryID)
	}
}

func TestCategoryDeleteRefusesSentinel(t *testing.T) {
	s := setupStores(t)
	ctx := context.Background()
	deleted, _ := seedSentinels(t, s)

	work, err := s.categories.Add(ctx, &model.Category{Name: "Work"})
	require.NoError(t, err)
	task, err := s.tasks.Add(ctx, &model.Task{Name: "t", Category: work})
	require.NoError(t, err)
	ok, err := s.categories.Delete(ctx, work.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.categories.Delete(ctx, deleted.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	still, err := s.categories.GetByID(ctx, deleted.ID)
	require.NoError(t, err)
	assert.Equal(t, deleted, still)

	reread, err := s.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, deleted.ID, reread.CategoryID)
}

func TestCategoryDeleteWithoutSentinel(t *testing.T) {
	s := setupStores(t)
	ctx := context.Background()

	work, err := s.categories.Add(ctx, &model.Category{Name: "Work"})
	require.NoError(t, err)

	ok, err := s.categories.Delete(ctx, work.ID)
	require.ErrorIs(t, err, ErrSentinelMissing)
	assert.False(t, ok)

	still, err := s.categories.GetByID(ctx, work.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
}

func TestCategoryDeleteIsAtomic(t *testing.T) {
	s := setupStores(t)
	ctx := context.Background()
	seedSentinels(t, s)

	work, err := s.categories.Add(ctx, &model.Category{Name: "Work"})
	require.NoError(t, err)
	task, err := s.tasks.Add(ctx, &model.Task{Name: "t", CategoryID: work.ID})
	require.NoError(t, err)
	require.Equal(t, work.ID, task.CategoryID)

	failOn(t, s.db, "delete", "categories")

	ok, err := s.categories.Delete(ctx, work.ID)
	require.ErrorIs(t, err, errInjected)
	assert.False(t, ok)

	still, err := s.categories.GetByID(ctx, work.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)

	reread, err := s.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, work.ID, reread.CategoryID, "reassignment must roll back with the delete")
}

func TestCategoryDeleteMissing(t *testing.T) {
	s := setupStores(t)
	seedSentinels(t, s)

	ok, err := s.categories.Delete(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, ok)
}
