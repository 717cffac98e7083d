package store

import "errors"

// Sentinel errors for store operations. The service layer translates these
// into the API error taxonomy; raw badger errors never leave this package.
var (
	// ErrNoteNotFound is returned when a note is absent or owned by someone
	// else. The two cases are deliberately indistinguishable so the store
	// never reveals that another user's note exists.
	ErrNoteNotFound = errors.New("note not found")

	// ErrDuplicateTitle is returned when a note title collides with the
	// collection-wide unique title index.
	ErrDuplicateTitle = errors.New("note title already exists")

	// ErrCategoryNotFound is returned when a category is absent or not owned.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrDuplicateCategory is returned when an owner already has a category
	// with the same name.
	ErrDuplicateCategory = errors.New("category already exists")

	// ErrUserNotFound is returned when a user is not in the store.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUser is returned when a user email is already registered.
	ErrDuplicateUser = errors.New("user already exists")
)
