package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/notedly/notedly-server/internal/domain"
)

const (
	userPrefix = "user:"

	userEmailPrefix = "idx:users:email:" // idx:users:email:{email} -> userID
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser creates a user. Emails are unique across the store.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(userPrefix + user.ID)
	emailKey := []byte(userEmailPrefix + normalizeEmail(user.Email))

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey); err == nil {
			return ErrDuplicateUser
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check email index: %w", err)
		}

		if err := setInTxn(txn, key, user); err != nil {
			return fmt.Errorf("set user: %w", err)
		}
		if err := txn.Set(emailKey, []byte(user.ID)); err != nil {
			return fmt.Errorf("set email index: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("user created", "id", user.ID, "email", user.Email)
	}
	return nil
}

// EmailTaken reports whether an account already exists for the email.
// Lookup is case-insensitive.
func (s *Store) EmailTaken(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.exists([]byte(userEmailPrefix + normalizeEmail(email)))
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user domain.User
	if err := s.get([]byte(userPrefix+id), &user); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

// GetUserByEmail retrieves a user via the email index. Lookup is
// case-insensitive.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var userID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userEmailPrefix + normalizeEmail(email)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			userID = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get email index: %w", err)
	}

	return s.GetUser(ctx, userID)
}
