package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/notedly/notedly-server/internal/blob"
	"github.com/notedly/notedly-server/internal/enhance"
	domainerrors "github.com/notedly/notedly-server/internal/errors"
	"github.com/notedly/notedly-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEnhancer returns a canned reply or error.
type stubEnhancer struct {
	reply string
	err   error
}

func (s *stubEnhancer) Enhance(_ context.Context, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type testEnv struct {
	notes      *NoteService
	categories *CategoryService
	store      *store.Store
	blobs      *blob.Store
	enhancer   *stubEnhancer
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "service-test-*")
	require.NoError(t, err)

	st, err := store.New(filepath.Join(tmpDir, "db"), nil)
	require.NoError(t, err)

	blobs, err := blob.NewStore(filepath.Join(tmpDir, "attachments"), "/attachments")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = st.Close()
		_ = os.RemoveAll(tmpDir)
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	enhancer := &stubEnhancer{reply: "<p>Enhanced.</p>"}

	return &testEnv{
		notes:      NewNoteService(st, blobs, enhancer, logger),
		categories: NewCategoryService(st, logger),
		store:      st,
		blobs:      blobs,
		enhancer:   enhancer,
	}
}

func TestCreateNote_Defaults(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	note, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{
		Title:   "  Groceries  ",
		Content: "<p>milk</p>",
		Tags:    []string{" home ", "", "home", "errands"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Groceries", note.Title)
	assert.Equal(t, "#ffffff", note.Color)
	assert.Equal(t, []string{"home", "errands"}, note.Tags)
	assert.False(t, note.IsPinned)
	assert.False(t, note.IsArchived)
}

func TestCreateNote_EmptyTitle(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.notes.CreateNote(context.Background(), "usr-alice", CreateNoteInput{Title: "   "})
	assertCode(t, err, domainerrors.CodeValidation)
}

func TestCreateNote_DuplicateTitleConflict(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{Title: "Groceries"})
	require.NoError(t, err)

	_, err = env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{Title: "Groceries"})
	assertCode(t, err, domainerrors.CodeConflict)
}

// Titles collide across owners because the title index spans the whole
// collection. If titles ever become per-owner, this test and its sibling
// below swap roles.
func TestCreateNote_DuplicateTitleAcrossOwners(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{Title: "Groceries"})
	require.NoError(t, err)

	_, err = env.notes.CreateNote(ctx, "usr-bob", CreateNoteInput{Title: "Groceries"})
	assertCode(t, err, domainerrors.CodeConflict)
}

func TestCreateNote_PerOwnerTitles(t *testing.T) {
	t.Skip("titles are currently unique across owners")

	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{Title: "Groceries"})
	require.NoError(t, err)

	_, err = env.notes.CreateNote(ctx, "usr-bob", CreateNoteInput{Title: "Groceries"})
	assert.NoError(t, err)
}

func TestCreateNote_UnknownCategory(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.notes.CreateNote(context.Background(), "usr-alice", CreateNoteInput{
		Title:      "Groceries",
		CategoryID: "cat-missing",
	})
	assertCode(t, err, domainerrors.CodeValidation)
}

func TestCreateNote_ForeignCategoryRejected(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	cat, err := env.categories.CreateCategory(ctx, "usr-bob", "Work")
	require.NoError(t, err)

	_, err = env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{
		Title:      "Groceries",
		CategoryID: cat.ID,
	})
	assertCode(t, err, domainerrors.CodeValidation)
}

func TestCreateNote_WithAttachments(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	note, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{
		Title: "Receipts",
		Files: []UploadedFile{
			{Filename: "receipt.txt", Data: []byte("total: 12.50")},
		},
	})
	require.NoError(t, err)
	require.Len(t, note.Attachments, 1)

	att := note.Attachments[0]
	assert.NotEmpty(t, att.ID)
	assert.Equal(t, "receipt.txt", att.Filename)
	assert.True(t, env.blobs.Exists(blob.StoredNameFromURL(att.URL)))
}

func TestGetNote_OwnerScoped(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	note, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{Title: "Mine"})
	require.NoError(t, err)

	_, err = env.notes.GetNote(ctx, "usr-bob", note.ID)
	assertCode(t, err, domainerrors.CodeNotFound)
}

func TestTogglePin_Involution(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	note, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{Title: "Groceries"})
	require.NoError(t, err)

	pinned, err := env.notes.TogglePin(ctx, "usr-alice", note.ID)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)
	assert.True(t, pinned.UpdatedAt.After(note.UpdatedAt) || pinned.UpdatedAt.Equal(note.UpdatedAt))

	unpinned, err := env.notes.TogglePin(ctx, "usr-alice", note.ID)
	require.NoError(t, err)
	assert.False(t, unpinned.IsPinned)
}

func TestListPinnedAndArchived(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	plain, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{Title: "Plain"})
	require.NoError(t, err)
	_ = plain

	pinned, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{Title: "Pinned"})
	require.NoError(t, err)
	_, err = env.notes.TogglePin(ctx, "usr-alice", pinned.ID)
	require.NoError(t, err)

	archived, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{Title: "Archived"})
	require.NoError(t, err)
	_, err = env.notes.ToggleArchive(ctx, "usr-alice", archived.ID)
	require.NoError(t, err)

	pinnedList, err := env.notes.ListPinnedNotes(ctx, "usr-alice")
	require.NoError(t, err)
	require.Len(t, pinnedList, 1)
	assert.Equal(t, "Pinned", pinnedList[0].Title)

	archivedList, err := env.notes.ListArchivedNotes(ctx, "usr-alice")
	require.NoError(t, err)
	require.Len(t, archivedList, 1)
	assert.Equal(t, "Archived", archivedList[0].Title)
}

func TestUpdateNote_PartialFields(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	note, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{
		Title:   "Groceries",
		Content: "<p>milk</p>",
		Tags:    []string{"home"},
	})
	require.NoError(t, err)

	newContent := "<p>milk, eggs</p>"
	updated, err := env.notes.UpdateNote(ctx, "usr-alice", note.ID, UpdateNoteInput{
		Content: &newContent,
	})
	require.NoError(t, err)

	// Untouched fields survive.
	assert.Equal(t, "Groceries", updated.Title)
	assert.Equal(t, []string{"home"}, updated.Tags)
	assert.Equal(t, newContent, updated.Content)
}

func TestUpdateNote_DetachCategory(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	cat, err := env.categories.CreateCategory(ctx, "usr-alice", "Work")
	require.NoError(t, err)

	note, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{
		Title:      "Groceries",
		CategoryID: cat.ID,
	})
	require.NoError(t, err)

	empty := ""
	updated, err := env.notes.UpdateNote(ctx, "usr-alice", note.ID, UpdateNoteInput{
		CategoryID: &empty,
	})
	require.NoError(t, err)
	assert.Empty(t, updated.CategoryID)
}

func TestDeleteManyNotes_PartialCount(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	a, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{Title: "A"})
	require.NoError(t, err)
	b, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{Title: "B"})
	require.NoError(t, err)
	foreign, err := env.notes.CreateNote(ctx, "usr-bob", CreateNoteInput{Title: "C"})
	require.NoError(t, err)

	deleted, err := env.notes.DeleteManyNotes(ctx, "usr-alice",
		[]string{a.ID, "note-missing", foreign.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// Bob's note is untouched.
	_, err = env.notes.GetNote(ctx, "usr-bob", foreign.ID)
	require.NoError(t, err)
}

func TestDeleteManyNotes_EmptyList(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.notes.DeleteManyNotes(context.Background(), "usr-alice", nil)
	assertCode(t, err, domainerrors.CodeValidation)
}

func TestDeleteNote_RemovesAttachmentFiles(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	note, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{
		Title: "With files",
		Files: []UploadedFile{{Filename: "a.txt", Data: []byte("data")}},
	})
	require.NoError(t, err)
	stored := blob.StoredNameFromURL(note.Attachments[0].URL)
	require.True(t, env.blobs.Exists(stored))

	require.NoError(t, env.notes.DeleteNote(ctx, "usr-alice", note.ID))
	assert.False(t, env.blobs.Exists(stored))
}

func TestRemoveAttachment(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	note, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{
		Title: "With files",
		Files: []UploadedFile{
			{Filename: "first.txt", Data: []byte("one")},
			{Filename: "second.txt", Data: []byte("two")},
		},
	})
	require.NoError(t, err)
	firstStored := blob.StoredNameFromURL(note.Attachments[0].URL)

	updated, err := env.notes.RemoveAttachment(ctx, "usr-alice", note.ID, 0)
	require.NoError(t, err)
	require.Len(t, updated.Attachments, 1)
	assert.Equal(t, "second.txt", updated.Attachments[0].Filename)
	assert.False(t, env.blobs.Exists(firstStored))
}

func TestRemoveAttachment_IndexOutOfRange(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	note, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{
		Title: "With files",
		Files: []UploadedFile{{Filename: "only.txt", Data: []byte("one")}},
	})
	require.NoError(t, err)

	for _, index := range []int{-1, 1, 99} {
		_, err := env.notes.RemoveAttachment(ctx, "usr-alice", note.ID, index)
		assertCode(t, err, domainerrors.CodeNotFound)
	}

	// The attachment list is untouched after the failed removals.
	got, err := env.notes.GetNote(ctx, "usr-alice", note.ID)
	require.NoError(t, err)
	assert.Len(t, got.Attachments, 1)
}

func TestAddAttachments(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	note, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{Title: "Groceries"})
	require.NoError(t, err)

	updated, err := env.notes.AddAttachments(ctx, "usr-alice", note.ID, []UploadedFile{
		{Filename: "list.txt", Data: []byte("milk")},
	})
	require.NoError(t, err)
	assert.Len(t, updated.Attachments, 1)
}

func TestEnhanceContent(t *testing.T) {
	env := setupTestEnv(t)

	out, err := env.notes.EnhanceContent(context.Background(), "<p>improov</p>")
	require.NoError(t, err)
	assert.Equal(t, "<p>Enhanced.</p>", out)
}

func TestEnhanceContent_EmptyContent(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.notes.EnhanceContent(context.Background(), "  ")
	assertCode(t, err, domainerrors.CodeValidation)
}

func TestEnhanceContent_UpstreamFailure(t *testing.T) {
	env := setupTestEnv(t)
	env.enhancer.err = enhance.ErrUpstream

	_, err := env.notes.EnhanceContent(context.Background(), "<p>hi</p>")
	assertCode(t, err, domainerrors.CodeUpstream)
}

func TestEnhanceContent_NotConfigured(t *testing.T) {
	env := setupTestEnv(t)
	env.enhancer.err = enhance.ErrUnavailable

	_, err := env.notes.EnhanceContent(context.Background(), "<p>hi</p>")
	assertCode(t, err, domainerrors.CodeUpstream)
}

func TestExportMarkdown(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	note, err := env.notes.CreateNote(ctx, "usr-alice", CreateNoteInput{
		Title:   "Reading List",
		Content: "<p>Some <strong>bold</strong> text</p>",
		Tags:    []string{"books"},
	})
	require.NoError(t, err)

	filename, markdown, err := env.notes.ExportMarkdown(ctx, "usr-alice", note.ID)
	require.NoError(t, err)
	assert.Equal(t, "reading-list.md", filename)
	assert.Contains(t, markdown, "# Reading List")
	assert.Contains(t, markdown, "Tags: books")
	assert.Contains(t, markdown, "**bold**")
}

func assertCode(t *testing.T, err error, code domainerrors.Code) {
	t.Helper()

	require.Error(t, err)
	var domainErr *domainerrors.Error
	require.True(t, errors.As(err, &domainErr), "expected domain error, got %v", err)
	assert.Equal(t, code, domainErr.Code)
}
