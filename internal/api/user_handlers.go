package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/user/login",
		Summary:     "Log in",
		Description: "Verifies credentials and returns an access token",
		Tags:        []string{"Users"},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/user/me",
		Summary:     "Get current user",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)
}

// === DTOs ===

// LoginRequest is the request body for logging in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" doc:"Account email"`
	Password string `json:"password" validate:"required,min=8" doc:"Account password"`
}

// LoginInput wraps the login request for Huma.
type LoginInput struct {
	Body LoginRequest
}

// UserResponse contains user data in API responses.
type UserResponse struct {
	ID          string    `json:"id" doc:"User ID"`
	Email       string    `json:"email" doc:"Account email"`
	DisplayName string    `json:"display_name" doc:"Display name"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation time"`
}

// LoginResponse contains the access token and user profile.
type LoginResponse struct {
	AccessToken string       `json:"access_token" doc:"PASETO access token"`
	User        UserResponse `json:"user" doc:"Authenticated user"`
}

// LoginOutput wraps the login response for Huma.
type LoginOutput struct {
	Body LoginResponse
}

// GetCurrentUserInput contains parameters for fetching the current user.
type GetCurrentUserInput struct {
	Authorization string `header:"Authorization"`
}

// UserOutput wraps the user response for Huma.
type UserOutput struct {
	Body UserResponse
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Body.Email))
	if !s.loginLimiter.Allow(email) {
		return nil, huma.Error429TooManyRequests("Too many login attempts, try again later")
	}

	token, user, err := s.services.Auth.Login(ctx, email, input.Body.Password)
	if err != nil {
		return nil, err
	}

	return &LoginOutput{
		Body: LoginResponse{
			AccessToken: token,
			User: UserResponse{
				ID:          user.ID,
				Email:       user.Email,
				DisplayName: user.DisplayName,
				CreatedAt:   user.CreatedAt,
			},
		},
	}, nil
}

func (s *Server) handleGetCurrentUser(ctx context.Context, input *GetCurrentUserInput) (*UserOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	user, err := s.services.Auth.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &UserOutput{
		Body: UserResponse{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			CreatedAt:   user.CreatedAt,
		},
	}, nil
}
