package store

import (
	"context"
	"testing"
	"time"

	"github.com/notedly/notedly-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCategory(id, ownerID, name string) *domain.Category {
	return &domain.Category{
		ID:        id,
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now(),
	}
}

func TestCreateCategory(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	cat := testCategory("cat-001", "usr-alice", "Work")
	require.NoError(t, s.CreateCategory(ctx, cat))

	retrieved, err := s.GetCategory(ctx, "usr-alice", cat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Work", retrieved.Name)
	assert.Equal(t, "usr-alice", retrieved.OwnerID)
}

func TestCreateCategory_DuplicateName(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateCategory(ctx, testCategory("cat-001", "usr-alice", "Work")))

	err := s.CreateCategory(ctx, testCategory("cat-002", "usr-alice", "Work"))
	assert.ErrorIs(t, err, ErrDuplicateCategory)
}

// Category names are scoped per owner, unlike note titles.
func TestCreateCategory_SameNameDifferentOwners(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateCategory(ctx, testCategory("cat-001", "usr-alice", "Work")))
	require.NoError(t, s.CreateCategory(ctx, testCategory("cat-002", "usr-bob", "Work")))
}

func TestGetCategory_WrongOwner(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateCategory(ctx, testCategory("cat-001", "usr-alice", "Work")))

	_, err := s.GetCategory(ctx, "usr-bob", "cat-001")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestListCategoriesByOwner_Order(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now()

	second := testCategory("cat-002", "usr-alice", "Personal")
	second.CreatedAt = base
	first := testCategory("cat-001", "usr-alice", "Work")
	first.CreatedAt = base.Add(-time.Hour)

	require.NoError(t, s.CreateCategory(ctx, second))
	require.NoError(t, s.CreateCategory(ctx, first))
	require.NoError(t, s.CreateCategory(ctx, testCategory("cat-bob", "usr-bob", "Other")))

	cats, err := s.ListCategoriesByOwner(ctx, "usr-alice")
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Work", cats[0].Name)
	assert.Equal(t, "Personal", cats[1].Name)
}

func TestDeleteCategory(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateCategory(ctx, testCategory("cat-001", "usr-alice", "Work")))
	require.NoError(t, s.DeleteCategory(ctx, "usr-alice", "cat-001"))

	_, err := s.GetCategory(ctx, "usr-alice", "cat-001")
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	// The name becomes reusable.
	require.NoError(t, s.CreateCategory(ctx, testCategory("cat-002", "usr-alice", "Work")))
}

func TestDeleteCategory_WrongOwner(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateCategory(ctx, testCategory("cat-001", "usr-alice", "Work")))

	err := s.DeleteCategory(ctx, "usr-bob", "cat-001")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}
