// Package service orchestrates note, category, and auth operations on top of
// the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/notedly/notedly-server/internal/blob"
	"github.com/notedly/notedly-server/internal/domain"
	"github.com/notedly/notedly-server/internal/enhance"
	domainerrors "github.com/notedly/notedly-server/internal/errors"
	"github.com/notedly/notedly-server/internal/id"
	"github.com/notedly/notedly-server/internal/store"
)

// Enhancer rewrites note content through an upstream AI service.
type Enhancer interface {
	Enhance(ctx context.Context, content string) (string, error)
}

// UploadedFile is a file received from a multipart upload.
type UploadedFile struct {
	Filename string
	Data     []byte
}

// CreateNoteInput carries the fields for a new note.
type CreateNoteInput struct {
	Title      string
	Content    string
	Tags       []string
	Color      string
	CategoryID string
	Files      []UploadedFile
}

// UpdateNoteInput is a partial update; nil fields are left untouched.
// An empty CategoryID pointer value detaches the note from its category.
type UpdateNoteInput struct {
	Title      *string
	Content    *string
	Tags       *[]string
	Color      *string
	CategoryID *string
}

// NoteService orchestrates note operations with ownership enforcement.
type NoteService struct {
	store    *store.Store
	blobs    *blob.Store
	enhancer Enhancer
	logger   *slog.Logger
}

// NewNoteService creates a new note service.
func NewNoteService(st *store.Store, blobs *blob.Store, enhancer Enhancer, logger *slog.Logger) *NoteService {
	return &NoteService{
		store:    st,
		blobs:    blobs,
		enhancer: enhancer,
		logger:   logger,
	}
}

// CreateNote creates a note for the user, storing any uploaded attachments.
func (s *NoteService) CreateNote(ctx context.Context, ownerID string, input CreateNoteInput) (*domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainerrors.Validation("note title cannot be empty")
	}

	if input.CategoryID != "" {
		if _, err := s.store.GetCategory(ctx, ownerID, input.CategoryID); err != nil {
			if errors.Is(err, store.ErrCategoryNotFound) {
				return nil, domainerrors.Validation("category not found")
			}
			return nil, fmt.Errorf("check category: %w", err)
		}
	}

	noteID, err := id.Generate("note")
	if err != nil {
		return nil, fmt.Errorf("generate note ID: %w", err)
	}

	attachments, err := s.storeFiles(ctx, input.Files)
	if err != nil {
		return nil, err
	}

	color := input.Color
	if color == "" {
		color = domain.DefaultNoteColor
	}

	now := time.Now()
	note := &domain.Note{
		ID:          noteID,
		OwnerID:     ownerID,
		Title:       title,
		Content:     input.Content,
		Tags:        normalizeTags(input.Tags),
		Color:       color,
		CategoryID:  input.CategoryID,
		Attachments: attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateNote(ctx, note); err != nil {
		// The note record never landed; don't leave its files behind.
		s.cleanupAttachments(attachments)
		if errors.Is(err, store.ErrDuplicateTitle) {
			return nil, domainerrors.Conflict("a note with this title already exists")
		}
		return nil, fmt.Errorf("create note: %w", err)
	}

	return note, nil
}

// GetNote retrieves a single note.
func (s *NoteService) GetNote(ctx context.Context, ownerID, noteID string) (*domain.Note, error) {
	note, err := s.store.GetNote(ctx, ownerID, noteID)
	if err != nil {
		return nil, mapNoteErr(err)
	}
	return note, nil
}

// ListNotes returns all of the user's notes, most recently updated first.
func (s *NoteService) ListNotes(ctx context.Context, ownerID string) ([]*domain.Note, error) {
	return s.store.ListNotesByOwner(ctx, ownerID)
}

// ListPinnedNotes returns the user's pinned notes.
func (s *NoteService) ListPinnedNotes(ctx context.Context, ownerID string) ([]*domain.Note, error) {
	return s.filterNotes(ctx, ownerID, func(n *domain.Note) bool { return n.IsPinned })
}

// ListArchivedNotes returns the user's archived notes.
func (s *NoteService) ListArchivedNotes(ctx context.Context, ownerID string) ([]*domain.Note, error) {
	return s.filterNotes(ctx, ownerID, func(n *domain.Note) bool { return n.IsArchived })
}

// ListNotesByCategory returns the user's notes in a category.
func (s *NoteService) ListNotesByCategory(ctx context.Context, ownerID, categoryID string) ([]*domain.Note, error) {
	if _, err := s.store.GetCategory(ctx, ownerID, categoryID); err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			return nil, domainerrors.NotFound("category not found")
		}
		return nil, fmt.Errorf("check category: %w", err)
	}
	return s.store.ListNotesByCategory(ctx, ownerID, categoryID)
}

// UpdateNote applies a partial update to a note.
func (s *NoteService) UpdateNote(ctx context.Context, ownerID, noteID string, input UpdateNoteInput) (*domain.Note, error) {
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, domainerrors.Validation("note title cannot be empty")
	}
	if input.CategoryID != nil && *input.CategoryID != "" {
		if _, err := s.store.GetCategory(ctx, ownerID, *input.CategoryID); err != nil {
			if errors.Is(err, store.ErrCategoryNotFound) {
				return nil, domainerrors.Validation("category not found")
			}
			return nil, fmt.Errorf("check category: %w", err)
		}
	}

	note, err := s.store.MutateNote(ctx, ownerID, noteID, func(n *domain.Note) error {
		if input.Title != nil {
			n.Title = strings.TrimSpace(*input.Title)
		}
		if input.Content != nil {
			n.Content = *input.Content
		}
		if input.Tags != nil {
			n.Tags = normalizeTags(*input.Tags)
		}
		if input.Color != nil {
			n.Color = *input.Color
		}
		if input.CategoryID != nil {
			n.CategoryID = *input.CategoryID
		}
		return nil
	})
	if err != nil {
		return nil, mapNoteErr(err)
	}
	return note, nil
}

// TogglePin flips the pinned flag on a note.
func (s *NoteService) TogglePin(ctx context.Context, ownerID, noteID string) (*domain.Note, error) {
	note, err := s.store.MutateNote(ctx, ownerID, noteID, func(n *domain.Note) error {
		n.IsPinned = !n.IsPinned
		return nil
	})
	if err != nil {
		return nil, mapNoteErr(err)
	}
	return note, nil
}

// ToggleArchive flips the archived flag on a note.
func (s *NoteService) ToggleArchive(ctx context.Context, ownerID, noteID string) (*domain.Note, error) {
	note, err := s.store.MutateNote(ctx, ownerID, noteID, func(n *domain.Note) error {
		n.IsArchived = !n.IsArchived
		return nil
	})
	if err != nil {
		return nil, mapNoteErr(err)
	}
	return note, nil
}

// DeleteNote deletes a note and cleans up its attachment files.
func (s *NoteService) DeleteNote(ctx context.Context, ownerID, noteID string) error {
	note, err := s.store.DeleteNote(ctx, ownerID, noteID)
	if err != nil {
		return mapNoteErr(err)
	}

	s.cleanupAttachments(note.Attachments)
	return nil
}

// DeleteManyNotes deletes the user's notes from the ID list and returns how
// many were actually removed. Missing or foreign IDs are skipped.
func (s *NoteService) DeleteManyNotes(ctx context.Context, ownerID string, noteIDs []string) (int, error) {
	if len(noteIDs) == 0 {
		return 0, domainerrors.Validation("noteIds cannot be empty")
	}

	deleted, removed, err := s.store.DeleteManyNotes(ctx, ownerID, noteIDs)
	if err != nil {
		return deleted, fmt.Errorf("delete notes: %w", err)
	}

	for _, note := range removed {
		s.cleanupAttachments(note.Attachments)
	}
	return deleted, nil
}

// AddAttachments stores the uploaded files and appends them to the note.
func (s *NoteService) AddAttachments(ctx context.Context, ownerID, noteID string, files []UploadedFile) (*domain.Note, error) {
	if len(files) == 0 {
		return nil, domainerrors.Validation("no files provided")
	}

	attachments, err := s.storeFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	note, err := s.store.MutateNote(ctx, ownerID, noteID, func(n *domain.Note) error {
		n.AppendAttachments(attachments)
		return nil
	})
	if err != nil {
		// The note update failed; the files are orphans.
		s.cleanupAttachments(attachments)
		return nil, mapNoteErr(err)
	}
	return note, nil
}

// RemoveAttachment removes the attachment at the given position and deletes
// its file. The position is resolved to the attachment's stable ID inside
// the update transaction, so a concurrent removal can't shift the target.
func (s *NoteService) RemoveAttachment(ctx context.Context, ownerID, noteID string, index int) (*domain.Note, error) {
	var removed domain.Attachment

	note, err := s.store.MutateNote(ctx, ownerID, noteID, func(n *domain.Note) error {
		att, ok := n.AttachmentAt(index)
		if !ok {
			return domainerrors.NotFound("attachment not found")
		}
		if _, ok := n.RemoveAttachment(att.ID); !ok {
			return domainerrors.NotFound("attachment not found")
		}
		removed = att
		return nil
	})
	if err != nil {
		return nil, mapNoteErr(err)
	}

	s.cleanupAttachments([]domain.Attachment{removed})
	return note, nil
}

// EnhanceContent rewrites note content through the AI service.
func (s *NoteService) EnhanceContent(ctx context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", domainerrors.Validation("content cannot be empty")
	}

	enhanced, err := s.enhancer.Enhance(ctx, content)
	if err != nil {
		s.logger.Warn("enhance failed", "error", err)
		switch {
		case errors.Is(err, enhance.ErrUnavailable):
			return "", domainerrors.Upstream("enhancement service is not configured")
		case errors.Is(err, enhance.ErrRateLimited):
			return "", domainerrors.Upstream("enhancement service is rate limited, try again later")
		default:
			return "", domainerrors.Upstream("enhancement service failed")
		}
	}
	return enhanced, nil
}

// ExportMarkdown renders a note as a markdown document with the title as a
// top-level heading. Returns a suggested filename and the document body.
func (s *NoteService) ExportMarkdown(ctx context.Context, ownerID, noteID string) (filename, markdown string, err error) {
	note, err := s.store.GetNote(ctx, ownerID, noteID)
	if err != nil {
		return "", "", mapNoteErr(err)
	}

	body, err := htmltomarkdown.ConvertString(note.Content)
	if err != nil {
		return "", "", fmt.Errorf("convert to markdown: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# " + note.Title + "\n\n")
	if len(note.Tags) > 0 {
		sb.WriteString("Tags: " + strings.Join(note.Tags, ", ") + "\n\n")
	}
	sb.WriteString(strings.TrimSpace(body))
	sb.WriteString("\n")

	return slugify(note.Title) + ".md", sb.String(), nil
}

// storeFiles persists uploads and builds their attachment records, computing
// a BlurHash for raster images.
func (s *NoteService) storeFiles(ctx context.Context, files []UploadedFile) ([]domain.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}

	attachments := make([]domain.Attachment, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			s.cleanupAttachments(attachments)
			return nil, err
		}

		attID, err := id.Generate("att")
		if err != nil {
			s.cleanupAttachments(attachments)
			return nil, fmt.Errorf("generate attachment ID: %w", err)
		}

		saved, err := s.blobs.Save(attID, f.Filename, f.Data)
		if err != nil {
			s.cleanupAttachments(attachments)
			return nil, fmt.Errorf("store attachment: %w", err)
		}

		att := domain.Attachment{
			ID:       attID,
			Filename: f.Filename,
			URL:      saved.URL,
			Size:     saved.Size,
			MimeType: saved.MimeType,
		}

		if blob.IsImage(saved.MimeType) {
			hash, err := blob.ComputeBlurHash(f.Data)
			if err != nil {
				s.logger.Warn("blurhash failed", "attachment_id", attID, "error", err)
			} else {
				att.BlurHash = hash
			}
		}

		attachments = append(attachments, att)
	}
	return attachments, nil
}

// cleanupAttachments removes attachment files from disk. Failures are logged
// and swallowed; a leaked file never fails the note operation.
func (s *NoteService) cleanupAttachments(attachments []domain.Attachment) {
	for _, att := range attachments {
		if err := s.blobs.Delete(blob.StoredNameFromURL(att.URL)); err != nil {
			s.logger.Warn("failed to delete attachment file",
				"attachment_id", att.ID,
				"url", att.URL,
				"error", err,
			)
		}
	}
}

// mapNoteErr converts store sentinels to domain errors.
func mapNoteErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNoteNotFound):
		return domainerrors.NotFound("note not found")
	case errors.Is(err, store.ErrDuplicateTitle):
		return domainerrors.Conflict("a note with this title already exists")
	default:
		return err
	}
}

func (s *NoteService) filterNotes(ctx context.Context, ownerID string, keep func(*domain.Note) bool) ([]*domain.Note, error) {
	notes, err := s.store.ListNotesByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	filtered := make([]*domain.Note, 0, len(notes))
	for _, n := range notes {
		if keep(n) {
			filtered = append(filtered, n)
		}
	}
	return filtered, nil
}

// normalizeTags trims whitespace, drops empties, and dedupes while keeping
// first-seen order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// slugify turns a title into a filesystem-friendly filename stem.
func slugify(title string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.TrimSuffix(sb.String(), "-")
	if slug == "" {
		return "note"
	}
	return slug
}
