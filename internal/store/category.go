package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/notedly/notedly-server/internal/domain"
)

const (
	categoryPrefix = "category:"

	categoriesByOwnerPrefix = "idx:categories:owner:" // idx:categories:owner:{ownerID}:{catID}
	categoryNamePrefix      = "idx:categories:name:"  // idx:categories:name:{ownerID}:{name} -> catID
)

// CreateCategory creates a category. Names are unique per owner; two users
// can each have a "Work" category without colliding.
func (s *Store) CreateCategory(ctx context.Context, category *domain.Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(categoryPrefix + category.ID)
	nameKey := fmt.Appendf(nil, "%s%s:%s", categoryNamePrefix, category.OwnerID, category.Name)

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(nameKey); err == nil {
			return ErrDuplicateCategory
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check name index: %w", err)
		}

		if err := setInTxn(txn, key, category); err != nil {
			return fmt.Errorf("set category: %w", err)
		}
		if err := txn.Set(nameKey, []byte(category.ID)); err != nil {
			return fmt.Errorf("set name index: %w", err)
		}

		ownerKey := fmt.Appendf(nil, "%s%s:%s", categoriesByOwnerPrefix, category.OwnerID, category.ID)
		if err := txn.Set(ownerKey, []byte{}); err != nil {
			return fmt.Errorf("set owner index: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("category created",
			"id", category.ID,
			"owner_id", category.OwnerID,
			"name", category.Name,
		)
	}
	return nil
}

// GetCategory retrieves a category by ID, scoped to the owner.
func (s *Store) GetCategory(ctx context.Context, ownerID, id string) (*domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var category domain.Category
	if err := s.get([]byte(categoryPrefix+id), &category); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	if category.OwnerID != ownerID {
		return nil, ErrCategoryNotFound
	}

	return &category, nil
}

// ListCategoriesByOwner returns the owner's categories, oldest first.
func (s *Store) ListCategoriesByOwner(ctx context.Context, ownerID string) ([]*domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := fmt.Appendf(nil, "%s%s:", categoriesByOwnerPrefix, ownerID)
	catIDs, err := s.scanKeySuffixes(prefix)
	if err != nil {
		return nil, fmt.Errorf("scan owner index: %w", err)
	}

	categories := make([]*domain.Category, 0, len(catIDs))
	for _, id := range catIDs {
		category, err := s.GetCategory(ctx, ownerID, id)
		if err != nil {
			if errors.Is(err, ErrCategoryNotFound) {
				continue
			}
			return nil, err
		}
		categories = append(categories, category)
	}

	slices.SortFunc(categories, func(a, b *domain.Category) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if a.CreatedAt.Before(b.CreatedAt) {
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
	return categories, nil
}

// DeleteCategory removes a category and its index entries. Notes that point
// at the category are NOT touched here; callers detach them with
// ClearCategoryFromNotes so the service layer controls the ordering.
func (s *Store) DeleteCategory(ctx context.Context, ownerID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(categoryPrefix + id)

	err := s.db.Update(func(txn *badger.Txn) error {
		var category domain.Category
		if err := getInTxn(txn, key, &category); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrCategoryNotFound
			}
			return fmt.Errorf("get category: %w", err)
		}
		if category.OwnerID != ownerID {
			return ErrCategoryNotFound
		}

		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}

		nameKey := fmt.Appendf(nil, "%s%s:%s", categoryNamePrefix, ownerID, category.Name)
		if err := txn.Delete(nameKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete name index: %w", err)
		}

		ownerKey := fmt.Appendf(nil, "%s%s:%s", categoriesByOwnerPrefix, ownerID, id)
		if err := txn.Delete(ownerKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete owner index: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("category deleted", "id", id, "owner_id", ownerID)
	}
	return nil
}
