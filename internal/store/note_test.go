package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/notedly/notedly-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "notedly-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := New(dbPath, nil)
	require.NoError(t, err)
	require.NotNil(t, s)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return s, cleanup
}

func testNote(id, ownerID, title string) *domain.Note {
	now := time.Now()
	return &domain.Note{
		ID:        id,
		OwnerID:   ownerID,
		Title:     title,
		Content:   "<p>hello</p>",
		Color:     domain.DefaultNoteColor,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateNote(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	note := testNote("note-001", "usr-alice", "Groceries")
	note.Tags = []string{"home", "errands"}

	err := s.CreateNote(ctx, note)
	require.NoError(t, err)

	retrieved, err := s.GetNote(ctx, "usr-alice", note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.ID, retrieved.ID)
	assert.Equal(t, note.Title, retrieved.Title)
	assert.Equal(t, note.Tags, retrieved.Tags)
	assert.Equal(t, domain.DefaultNoteColor, retrieved.Color)
}

func TestCreateNote_DuplicateTitle(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateNote(ctx, testNote("note-001", "usr-alice", "Groceries")))

	err := s.CreateNote(ctx, testNote("note-002", "usr-alice", "Groceries"))
	assert.ErrorIs(t, err, ErrDuplicateTitle)
}

// The title index is shared across all owners, so a title held by one user
// blocks every other user from reusing it.
func TestCreateNote_DuplicateTitleAcrossOwners(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateNote(ctx, testNote("note-001", "usr-alice", "Groceries")))

	err := s.CreateNote(ctx, testNote("note-002", "usr-bob", "Groceries"))
	assert.ErrorIs(t, err, ErrDuplicateTitle)
}

func TestGetNote_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	_, err := s.GetNote(ctx, "usr-alice", "note-missing")
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

// A foreign owner's note must be indistinguishable from an absent one.
func TestGetNote_WrongOwner(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateNote(ctx, testNote("note-001", "usr-alice", "Groceries")))

	_, err := s.GetNote(ctx, "usr-bob", "note-001")
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestListNotesByOwner_Order(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now()

	older := testNote("note-001", "usr-alice", "Older")
	older.UpdatedAt = base.Add(-time.Hour)
	newer := testNote("note-002", "usr-alice", "Newer")
	newer.UpdatedAt = base

	// Two notes sharing a timestamp break the tie on ID ascending.
	tieB := testNote("note-tie-b", "usr-alice", "Tie B")
	tieB.UpdatedAt = base.Add(-2 * time.Hour)
	tieA := testNote("note-tie-a", "usr-alice", "Tie A")
	tieA.UpdatedAt = tieB.UpdatedAt

	for _, n := range []*domain.Note{older, newer, tieB, tieA} {
		require.NoError(t, s.CreateNote(ctx, n))
	}

	// Someone else's note must not leak into the listing.
	require.NoError(t, s.CreateNote(ctx, testNote("note-bob", "usr-bob", "Bob's note")))

	notes, err := s.ListNotesByOwner(ctx, "usr-alice")
	require.NoError(t, err)
	require.Len(t, notes, 4)

	ids := make([]string, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"note-002", "note-001", "note-tie-a", "note-tie-b"}, ids)
}

func TestListNotesByOwner_Empty(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	notes, err := s.ListNotesByOwner(context.Background(), "usr-nobody")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestMutateNote_TogglePin(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	note := testNote("note-001", "usr-alice", "Groceries")
	note.UpdatedAt = time.Now().Add(-time.Minute)
	require.NoError(t, s.CreateNote(ctx, note))

	updated, err := s.MutateNote(ctx, "usr-alice", note.ID, func(n *domain.Note) error {
		n.IsPinned = !n.IsPinned
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.IsPinned)
	assert.True(t, updated.UpdatedAt.After(note.UpdatedAt))

	// Toggling twice lands back on the original flag.
	again, err := s.MutateNote(ctx, "usr-alice", note.ID, func(n *domain.Note) error {
		n.IsPinned = !n.IsPinned
		return nil
	})
	require.NoError(t, err)
	assert.False(t, again.IsPinned)
}

func TestMutateNote_WrongOwner(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateNote(ctx, testNote("note-001", "usr-alice", "Groceries")))

	_, err := s.MutateNote(ctx, "usr-bob", "note-001", func(n *domain.Note) error {
		n.IsPinned = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNoteNotFound)

	// Nothing was written.
	note, err := s.GetNote(ctx, "usr-alice", "note-001")
	require.NoError(t, err)
	assert.False(t, note.IsPinned)
}

func TestMutateNote_TitleChangeConflict(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateNote(ctx, testNote("note-001", "usr-alice", "Groceries")))
	require.NoError(t, s.CreateNote(ctx, testNote("note-002", "usr-alice", "Chores")))

	_, err := s.MutateNote(ctx, "usr-alice", "note-002", func(n *domain.Note) error {
		n.Title = "Groceries"
		return nil
	})
	assert.ErrorIs(t, err, ErrDuplicateTitle)

	// The failed rename left the note untouched.
	note, err := s.GetNote(ctx, "usr-alice", "note-002")
	require.NoError(t, err)
	assert.Equal(t, "Chores", note.Title)
}

func TestMutateNote_TitleChangeFreesOldTitle(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateNote(ctx, testNote("note-001", "usr-alice", "Groceries")))

	_, err := s.MutateNote(ctx, "usr-alice", "note-001", func(n *domain.Note) error {
		n.Title = "Shopping"
		return nil
	})
	require.NoError(t, err)

	// The old title is reusable once released.
	err = s.CreateNote(ctx, testNote("note-002", "usr-alice", "Groceries"))
	require.NoError(t, err)
}

func TestMutateNote_SameTitleNoConflict(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateNote(ctx, testNote("note-001", "usr-alice", "Groceries")))

	// Writing the note back with its own title must not trip the index.
	_, err := s.MutateNote(ctx, "usr-alice", "note-001", func(n *domain.Note) error {
		n.Content = "<p>updated</p>"
		return nil
	})
	require.NoError(t, err)
}

func TestMutateNote_MutatorErrorAborts(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	note := testNote("note-001", "usr-alice", "Groceries")
	require.NoError(t, s.CreateNote(ctx, note))

	sentinel := assert.AnError
	_, err := s.MutateNote(ctx, "usr-alice", note.ID, func(n *domain.Note) error {
		n.Title = "Changed"
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	unchanged, err := s.GetNote(ctx, "usr-alice", note.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", unchanged.Title)
}

func TestMutateNote_CategoryIndexMove(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	note := testNote("note-001", "usr-alice", "Groceries")
	note.CategoryID = "cat-home"
	require.NoError(t, s.CreateNote(ctx, note))

	_, err := s.MutateNote(ctx, "usr-alice", note.ID, func(n *domain.Note) error {
		n.CategoryID = "cat-work"
		return nil
	})
	require.NoError(t, err)

	home, err := s.ListNotesByCategory(ctx, "usr-alice", "cat-home")
	require.NoError(t, err)
	assert.Empty(t, home)

	work, err := s.ListNotesByCategory(ctx, "usr-alice", "cat-work")
	require.NoError(t, err)
	require.Len(t, work, 1)
	assert.Equal(t, note.ID, work[0].ID)
}

func TestDeleteNote(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	note := testNote("note-001", "usr-alice", "Groceries")
	require.NoError(t, s.CreateNote(ctx, note))

	deleted, err := s.DeleteNote(ctx, "usr-alice", note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.ID, deleted.ID)

	_, err = s.GetNote(ctx, "usr-alice", note.ID)
	assert.ErrorIs(t, err, ErrNoteNotFound)

	// Deleting frees the title for reuse.
	require.NoError(t, s.CreateNote(ctx, testNote("note-002", "usr-alice", "Groceries")))
}

func TestDeleteNote_WrongOwner(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateNote(ctx, testNote("note-001", "usr-alice", "Groceries")))

	_, err := s.DeleteNote(ctx, "usr-bob", "note-001")
	assert.ErrorIs(t, err, ErrNoteNotFound)

	_, err = s.GetNote(ctx, "usr-alice", "note-001")
	require.NoError(t, err)
}

func TestDeleteManyNotes_PartialBatch(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateNote(ctx, testNote("note-001", "usr-alice", "One")))
	require.NoError(t, s.CreateNote(ctx, testNote("note-002", "usr-alice", "Two")))
	require.NoError(t, s.CreateNote(ctx, testNote("note-bob", "usr-bob", "Bob's")))

	// Mix of owned, missing, and foreign IDs.
	deleted, removed, err := s.DeleteManyNotes(ctx, "usr-alice",
		[]string{"note-001", "note-missing", "note-bob", "note-002"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Len(t, removed, 2)

	// Bob's note survived.
	_, err = s.GetNote(ctx, "usr-bob", "note-bob")
	require.NoError(t, err)

	notes, err := s.ListNotesByOwner(ctx, "usr-alice")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestListNotesByCategory_OwnerScoped(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	mine := testNote("note-001", "usr-alice", "Mine")
	mine.CategoryID = "cat-shared"
	require.NoError(t, s.CreateNote(ctx, mine))

	theirs := testNote("note-002", "usr-bob", "Theirs")
	theirs.CategoryID = "cat-shared"
	require.NoError(t, s.CreateNote(ctx, theirs))

	notes, err := s.ListNotesByCategory(ctx, "usr-alice", "cat-shared")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "note-001", notes[0].ID)
}

func TestClearCategoryFromNotes(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	for i, id := range []string{"note-001", "note-002"} {
		n := testNote(id, "usr-alice", "Linked "+string(rune('A'+i)))
		n.CategoryID = "cat-doomed"
		require.NoError(t, s.CreateNote(ctx, n))
	}

	require.NoError(t, s.ClearCategoryFromNotes(ctx, "usr-alice", "cat-doomed"))

	notes, err := s.ListNotesByCategory(ctx, "usr-alice", "cat-doomed")
	require.NoError(t, err)
	assert.Empty(t, notes)

	note, err := s.GetNote(ctx, "usr-alice", "note-001")
	require.NoError(t, err)
	assert.Empty(t, note.CategoryID)
}
