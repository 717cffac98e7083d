package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/notedly/notedly-server/internal/domain"
)

func (s *Server) registerCategoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createCategory",
		Method:      http.MethodPost,
		Path:        "/api/category/create-category",
		Summary:     "Create category",
		Tags:        []string{"Categories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "listCategories",
		Method:      http.MethodGet,
		Path:        "/api/category/categories",
		Summary:     "List categories",
		Description: "Returns the current user's categories, oldest first",
		Tags:        []string{"Categories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListCategories)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteCategory",
		Method:      http.MethodDelete,
		Path:        "/api/category/{id}",
		Summary:     "Delete category",
		Description: "Deletes a category; notes linked to it are detached, not deleted",
		Tags:        []string{"Categories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteCategory)
}

// === DTOs ===

// CategoryResponse contains category data in API responses.
type CategoryResponse struct {
	ID        string    `json:"id" doc:"Category ID"`
	Name      string    `json:"name" doc:"Category name"`
	CreatedAt time.Time `json:"createdAt" doc:"Creation time"`
}

// CreateCategoryRequest is the request body for creating a category.
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,min=1,max=50" doc:"Category name"`
}

// CreateCategoryInput wraps the create category request for Huma.
type CreateCategoryInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateCategoryRequest
}

// CategoryOutput wraps a single category response for Huma.
type CategoryOutput struct {
	Body CategoryResponse
}

// ListCategoriesInput contains parameters for listing categories.
type ListCategoriesInput struct {
	Authorization string `header:"Authorization"`
}

// ListCategoriesResponse contains a list of categories.
type ListCategoriesResponse struct {
	Categories []CategoryResponse `json:"categories" doc:"List of categories"`
}

// ListCategoriesOutput wraps the list categories response for Huma.
type ListCategoriesOutput struct {
	Body ListCategoriesResponse
}

// DeleteCategoryInput contains parameters for deleting a category.
type DeleteCategoryInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Category ID"`
}

// === Handlers ===

func (s *Server) handleCreateCategory(ctx context.Context, input *CreateCategoryInput) (*CategoryOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	category, err := s.services.Category.CreateCategory(ctx, userID, input.Body.Name)
	if err != nil {
		return nil, err
	}
	return &CategoryOutput{Body: toCategoryResponse(category)}, nil
}

func (s *Server) handleListCategories(ctx context.Context, input *ListCategoriesInput) (*ListCategoriesOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	categories, err := s.services.Category.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = toCategoryResponse(c)
	}
	return &ListCategoriesOutput{Body: ListCategoriesResponse{Categories: resp}}, nil
}

func (s *Server) handleDeleteCategory(ctx context.Context, input *DeleteCategoryInput) (*DeletedOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Category.DeleteCategory(ctx, userID, input.ID); err != nil {
		return nil, err
	}

	out := &DeletedOutput{}
	out.Body.Deleted = true
	return out, nil
}

func toCategoryResponse(c *domain.Category) CategoryResponse {
	return CategoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
	}
}
