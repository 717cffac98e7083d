package api

import (
	"github.com/notedly/notedly-server/internal/service"
)

// Services groups the business logic services used by the API server.
type Services struct {
	Auth     *service.AuthService
	Note     *service.NoteService
	Category *service.CategoryService
}
