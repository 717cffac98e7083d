package client

import "time"

// Attachment is a note attachment as returned by the server.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	BlurHash string `json:"blurhash,omitempty"`
}

// Note is a note as returned by the server.
type Note struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	Tags        []string     `json:"tags"`
	Color       string       `json:"color"`
	CategoryID  string       `json:"categoryId,omitempty"`
	IsPinned    bool         `json:"isPinned"`
	IsArchived  bool         `json:"isArchived"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Category is a category as returned by the server.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is the authenticated user's profile.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// LoginResult carries the access token and user returned by login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// CreateNoteRequest carries the fields for creating a note.
type CreateNoteRequest struct {
	Title      string
	Content    string
	Tags       []string
	Color      string
	CategoryID string
	Files      []File
}

// File is an attachment to upload.
type File struct {
	Name string
	Data []byte
}

// UpdateNoteRequest is a partial note update; nil fields are left untouched.
type UpdateNoteRequest struct {
	Title      *string   `json:"title,omitempty"`
	Content    *string   `json:"content,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
	Color      *string   `json:"color,omitempty"`
	CategoryID *string   `json:"categoryId,omitempty"`
}
