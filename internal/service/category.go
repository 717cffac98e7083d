package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/notedly/notedly-server/internal/domain"
	domainerrors "github.com/notedly/notedly-server/internal/errors"
	"github.com/notedly/notedly-server/internal/id"
	"github.com/notedly/notedly-server/internal/store"
)

// CategoryService orchestrates category operations with ownership enforcement.
type CategoryService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewCategoryService creates a new category service.
func NewCategoryService(st *store.Store, logger *slog.Logger) *CategoryService {
	return &CategoryService{
		store:  st,
		logger: logger,
	}
}

// CreateCategory creates a category for the user.
func (s *CategoryService) CreateCategory(ctx context.Context, ownerID, name string) (*domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainerrors.Validation("category name cannot be empty")
	}

	categoryID, err := id.Generate("cat")
	if err != nil {
		return nil, fmt.Errorf("generate category ID: %w", err)
	}

	category := &domain.Category{
		ID:        categoryID,
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now(),
	}

	if err := s.store.CreateCategory(ctx, category); err != nil {
		if errors.Is(err, store.ErrDuplicateCategory) {
			return nil, domainerrors.Conflict("a category with this name already exists")
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

// ListCategories returns the user's categories, oldest first.
func (s *CategoryService) ListCategories(ctx context.Context, ownerID string) ([]*domain.Category, error) {
	return s.store.ListCategoriesByOwner(ctx, ownerID)
}

// DeleteCategory deletes a category and detaches the user's notes from it.
// The notes themselves survive.
func (s *CategoryService) DeleteCategory(ctx context.Context, ownerID, categoryID string) error {
	if _, err := s.store.GetCategory(ctx, ownerID, categoryID); err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			return domainerrors.NotFound("category not found")
		}
		return fmt.Errorf("get category: %w", err)
	}

	if err := s.store.ClearCategoryFromNotes(ctx, ownerID, categoryID); err != nil {
		return fmt.Errorf("detach notes: %w", err)
	}

	if err := s.store.DeleteCategory(ctx, ownerID, categoryID); err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			return domainerrors.NotFound("category not found")
		}
		return fmt.Errorf("delete category: %w", err)
	}

	return nil
}
