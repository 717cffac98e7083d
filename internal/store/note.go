package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/notedly/notedly-server/internal/domain"
)

// Key prefixes for note storage.
const (
	notePrefix = "note:"

	notesByOwnerPrefix    = "idx:notes:owner:"    // idx:notes:owner:{ownerID}:{noteID}
	noteTitlePrefix       = "idx:notes:title:"    // idx:notes:title:{title} -> noteID
	notesByCategoryPrefix = "idx:notes:category:" // idx:notes:category:{categoryID}:{noteID}
)

// CreateNote creates a new note in the store.
//
// The title index is collection-wide: a title held by ANY owner's note makes
// this fail with ErrDuplicateTitle. That mirrors the observed data model's
// single unique title index; see the named-ambiguity tests before "fixing" it.
func (s *Store) CreateNote(ctx context.Context, note *domain.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(notePrefix + note.ID)

	err := s.db.Update(func(txn *badger.Txn) error {
		// Enforce the collection-wide title uniqueness.
		titleKey := []byte(noteTitlePrefix + note.Title)
		if _, err := txn.Get(titleKey); err == nil {
			return ErrDuplicateTitle
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check title index: %w", err)
		}

		if err := setInTxn(txn, key, note); err != nil {
			return fmt.Errorf("set note: %w", err)
		}
		if err := txn.Set(titleKey, []byte(note.ID)); err != nil {
			return fmt.Errorf("set title index: %w", err)
		}

		ownerKey := fmt.Appendf(nil, "%s%s:%s", notesByOwnerPrefix, note.OwnerID, note.ID)
		if err := txn.Set(ownerKey, []byte{}); err != nil {
			return fmt.Errorf("set owner index: %w", err)
		}

		if note.CategoryID != "" {
			catKey := fmt.Appendf(nil, "%s%s:%s", notesByCategoryPrefix, note.CategoryID, note.ID)
			if err := txn.Set(catKey, []byte{}); err != nil {
				return fmt.Errorf("set category index: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("note created",
			"id", note.ID,
			"owner_id", note.OwnerID,
			"title", note.Title,
		)
	}
	return nil
}

// GetNote retrieves a note by ID, scoped to the owner.
// A note owned by somebody else looks exactly like a missing note.
func (s *Store) GetNote(ctx context.Context, ownerID, id string) (*domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var note domain.Note
	if err := s.get([]byte(notePrefix+id), &note); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("get note: %w", err)
	}

	if note.OwnerID != ownerID {
		return nil, ErrNoteNotFound
	}

	return &note, nil
}

// ListNotesByOwner returns all notes owned by a user, most recently updated
// first. Equal timestamps are broken by ID ascending so the order is stable.
func (s *Store) ListNotesByOwner(ctx context.Context, ownerID string) ([]*domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := fmt.Appendf(nil, "%s%s:", notesByOwnerPrefix, ownerID)
	noteIDs, err := s.scanKeySuffixes(prefix)
	if err != nil {
		return nil, fmt.Errorf("scan owner index: %w", err)
	}

	notes := make([]*domain.Note, 0, len(noteIDs))
	for _, id := range noteIDs {
		note, err := s.GetNote(ctx, ownerID, id)
		if err != nil {
			if errors.Is(err, ErrNoteNotFound) {
				// Index entry outlived the record; skip.
				continue
			}
			return nil, err
		}
		notes = append(notes, note)
	}

	sortNotes(notes)
	return notes, nil
}

// ListNotesByCategory returns the owner's notes linked to a category,
// most recently updated first.
func (s *Store) ListNotesByCategory(ctx context.Context, ownerID, categoryID string) ([]*domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := fmt.Appendf(nil, "%s%s:", notesByCategoryPrefix, categoryID)
	noteIDs, err := s.scanKeySuffixes(prefix)
	if err != nil {
		return nil, fmt.Errorf("scan category index: %w", err)
	}

	notes := make([]*domain.Note, 0, len(noteIDs))
	for _, id := range noteIDs {
		note, err := s.GetNote(ctx, ownerID, id)
		if err != nil {
			if errors.Is(err, ErrNoteNotFound) {
				// Not owned by this user, or stale index entry.
				continue
			}
			return nil, err
		}
		notes = append(notes, note)
	}

	sortNotes(notes)
	return notes, nil
}

// MutateNote applies fn to the note inside a single transaction and refreshes
// UpdatedAt. The read, the mutation, and the write commit atomically keyed on
// (id, owner), so concurrent mutations of the same note serialize at the
// storage layer instead of racing through a get-then-save window.
//
// Title and category index entries are moved when fn changes those fields; a
// title move that collides with the collection-wide index fails with
// ErrDuplicateTitle and nothing is written.
func (s *Store) MutateNote(ctx context.Context, ownerID, id string, fn func(*domain.Note) error) (*domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(notePrefix + id)
	var note domain.Note

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getInTxn(txn, key, &note); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNoteNotFound
			}
			return fmt.Errorf("get note: %w", err)
		}
		if note.OwnerID != ownerID {
			return ErrNoteNotFound
		}

		oldTitle := note.Title
		oldCategory := note.CategoryID

		if err := fn(&note); err != nil {
			return err
		}

		// Immutable fields stay immutable regardless of what fn did.
		note.ID = id
		note.OwnerID = ownerID
		note.UpdatedAt = time.Now()

		if note.Title != oldTitle {
			newTitleKey := []byte(noteTitlePrefix + note.Title)
			if item, err := txn.Get(newTitleKey); err == nil {
				var holder string
				_ = item.Value(func(val []byte) error {
					holder = string(val)
					return nil
				})
				if holder != id {
					return ErrDuplicateTitle
				}
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("check title index: %w", err)
			}

			if err := txn.Delete([]byte(noteTitlePrefix + oldTitle)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete title index: %w", err)
			}
			if err := txn.Set(newTitleKey, []byte(id)); err != nil {
				return fmt.Errorf("set title index: %w", err)
			}
		}

		if note.CategoryID != oldCategory {
			if oldCategory != "" {
				oldCatKey := fmt.Appendf(nil, "%s%s:%s", notesByCategoryPrefix, oldCategory, id)
				if err := txn.Delete(oldCatKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("delete category index: %w", err)
				}
			}
			if note.CategoryID != "" {
				catKey := fmt.Appendf(nil, "%s%s:%s", notesByCategoryPrefix, note.CategoryID, id)
				if err := txn.Set(catKey, []byte{}); err != nil {
					return fmt.Errorf("set category index: %w", err)
				}
			}
		}

		if err := setInTxn(txn, key, &note); err != nil {
			return fmt.Errorf("set note: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &note, nil
}

// DeleteNote removes a note and all its index entries. Returns the deleted
// note so callers can clean up external resources like attachment blobs.
func (s *Store) DeleteNote(ctx context.Context, ownerID, id string) (*domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(notePrefix + id)
	var note domain.Note

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getInTxn(txn, key, &note); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNoteNotFound
			}
			return fmt.Errorf("get note: %w", err)
		}
		if note.OwnerID != ownerID {
			return ErrNoteNotFound
		}

		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete note: %w", err)
		}

		if err := txn.Delete([]byte(noteTitlePrefix + note.Title)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete title index: %w", err)
		}

		ownerKey := fmt.Appendf(nil, "%s%s:%s", notesByOwnerPrefix, ownerID, id)
		if err := txn.Delete(ownerKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete owner index: %w", err)
		}

		if note.CategoryID != "" {
			catKey := fmt.Appendf(nil, "%s%s:%s", notesByCategoryPrefix, note.CategoryID, id)
			if err := txn.Delete(catKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete category index: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("note deleted", "id", id, "owner_id", ownerID)
	}
	return &note, nil
}

// DeleteManyNotes removes every listed note that belongs to the owner.
// IDs that are missing or owned by someone else are silently skipped; the
// count of notes actually deleted is returned. Each per-note delete is its
// own transaction; the batch is best-effort, not atomic.
func (s *Store) DeleteManyNotes(ctx context.Context, ownerID string, ids []string) (int, []*domain.Note, error) {
	deleted := 0
	var removed []*domain.Note

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return deleted, removed, err
		}

		note, err := s.DeleteNote(ctx, ownerID, id)
		if errors.Is(err, ErrNoteNotFound) {
			continue
		}
		if err != nil {
			return deleted, removed, err
		}
		deleted++
		removed = append(removed, note)
	}

	if s.logger != nil {
		s.logger.Info("bulk note delete",
			"owner_id", ownerID,
			"requested", len(ids),
			"deleted", deleted,
		)
	}
	return deleted, removed, nil
}

// ClearCategoryFromNotes detaches every note of the owner from a category.
// Used when the category itself is deleted.
func (s *Store) ClearCategoryFromNotes(ctx context.Context, ownerID, categoryID string) error {
	prefix := fmt.Appendf(nil, "%s%s:", notesByCategoryPrefix, categoryID)
	noteIDs, err := s.scanKeySuffixes(prefix)
	if err != nil {
		return fmt.Errorf("scan category index: %w", err)
	}

	for _, id := range noteIDs {
		_, err := s.MutateNote(ctx, ownerID, id, func(n *domain.Note) error {
			n.CategoryID = ""
			return nil
		})
		if err != nil && !errors.Is(err, ErrNoteNotFound) {
			return err
		}
	}
	return nil
}

// sortNotes orders notes by UpdatedAt descending, ID ascending on ties.
func sortNotes(notes []*domain.Note) {
	slices.SortFunc(notes, func(a, b *domain.Note) int {
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			if a.UpdatedAt.After(b.UpdatedAt) {
				return -1
			}
			return 1
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
