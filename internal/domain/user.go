package domain

import "time"

// User is a registered account. Credential issuance (signup, password reset)
// happens outside this server; users are provisioned with the seed tool and
// authenticate with the login endpoint.
type User struct {
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	// Argon2id encoded hash. Persisted with the record; API DTOs never
	// include it.
	PasswordHash string `json:"password_hash,omitempty"`
}
