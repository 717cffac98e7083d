// Package client is a Go client for the Notedly API. It speaks the
// versioned response envelope and offers an optional per-session cache
// with tag based invalidation on top of the raw calls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-success response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to a Notedly server.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithToken sets the bearer token used for authenticated calls.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken updates the bearer token, typically after Login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// envelope mirrors the server's response wrapper. Error is either a
// plain string or an object with code and message, so it is decoded
// lazily.
type envelope struct {
	V       int             `json:"v"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeEnvelope(status int, body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !env.Success {
		apiErr := &APIError{Status: status}
		var detail errorDetail
		if err := json.Unmarshal(env.Error, &detail); err == nil && detail.Message != "" {
			apiErr.Code = detail.Code
			apiErr.Message = detail.Message
		} else {
			var msg string
			_ = json.Unmarshal(env.Error, &msg)
			apiErr.Message = msg
		}
		return apiErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, contentType, reader, out)
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	return decodeEnvelope(resp.StatusCode, data, out)
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var result LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/user/login", body, &result); err != nil {
		return nil, err
	}
	c.token = result.AccessToken
	return &result, nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/user/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// noteList mirrors the server's list wrapper.
type noteList struct {
	Notes []Note `json:"notes"`
}

// ListNotes returns all of the user's notes, newest first.
func (c *Client) ListNotes(ctx context.Context) ([]Note, error) {
	var list noteList
	if err := c.do(ctx, http.MethodGet, "/api/note/notes", nil, &list); err != nil {
		return nil, err
	}
	return list.Notes, nil
}

// GetNote returns a single note by ID.
func (c *Client) GetNote(ctx context.Context, id string) (*Note, error) {
	var note Note
	if err := c.do(ctx, http.MethodGet, "/api/note/note/"+url.PathEscape(id), nil, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// ListPinnedNotes returns the user's pinned notes.
func (c *Client) ListPinnedNotes(ctx context.Context) ([]Note, error) {
	var list noteList
	if err := c.do(ctx, http.MethodGet, "/api/note/getpinned", nil, &list); err != nil {
		return nil, err
	}
	return list.Notes, nil
}

// ListArchivedNotes returns the user's archived notes.
func (c *Client) ListArchivedNotes(ctx context.Context) ([]Note, error) {
	var list noteList
	if err := c.do(ctx, http.MethodGet, "/api/note/getarchives", nil, &list); err != nil {
		return nil, err
	}
	return list.Notes, nil
}

// ListNotesByCategory returns the notes in a category.
func (c *Client) ListNotesByCategory(ctx context.Context, categoryID string) ([]Note, error) {
	var list noteList
	path := "/api/note/notes/categories/" + url.PathEscape(categoryID)
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Notes, nil
}

// CreateNote creates a note, uploading any attached files alongside it.
func (c *Client) CreateNote(ctx context.Context, req CreateNoteRequest) (*Note, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"title":      req.Title,
		"content":    req.Content,
		"color":      req.Color,
		"categoryId": req.CategoryID,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	for _, tag := range req.Tags {
		if err := w.WriteField("tags", tag); err != nil {
			return nil, err
		}
	}
	for _, f := range req.Files {
		part, err := w.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var note Note
	if err := c.send(ctx, http.MethodPost, "/api/note/create", w.FormDataContentType(), &buf, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// UpdateNote applies a partial update to a note.
func (c *Client) UpdateNote(ctx context.Context, id string, req UpdateNoteRequest) (*Note, error) {
	var note Note
	if err := c.do(ctx, http.MethodPut, "/api/note/update/"+url.PathEscape(id), req, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// TogglePin flips a note's pinned flag and returns the new state.
func (c *Client) TogglePin(ctx context.Context, id string) (bool, error) {
	var state struct {
		IsPinned bool `json:"isPinned"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/note/togglepin/"+url.PathEscape(id), nil, &state); err != nil {
		return false, err
	}
	return state.IsPinned, nil
}

// ToggleArchive flips a note's archived flag and returns the new state.
func (c *Client) ToggleArchive(ctx context.Context, id string) (bool, error) {
	var state struct {
		IsArchived bool `json:"isArchived"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/note/togglearchive/"+url.PathEscape(id), nil, &state); err != nil {
		return false, err
	}
	return state.IsArchived, nil
}

// DeleteNote removes a note and its attachments.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/note/delete/"+url.PathEscape(id), nil, nil)
}

// DeleteNotes removes several notes at once and reports how many were
// actually deleted. IDs that do not resolve to one of the user's notes
// are skipped.
func (c *Client) DeleteNotes(ctx context.Context, ids []string) (int, error) {
	var result struct {
		Deleted int `json:"deleted"`
	}
	body := map[string][]string{"noteIds": ids}
	if err := c.do(ctx, http.MethodDelete, "/api/note/delete", body, &result); err != nil {
		return 0, err
	}
	return result.Deleted, nil
}

// Enhance rewrites note content through the server's AI endpoint.
func (c *Client) Enhance(ctx context.Context, content string) (string, error) {
	var result struct {
		Content string `json:"content"`
	}
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, "/api/note/enhance", body, &result); err != nil {
		return "", err
	}
	return result.Content, nil
}

// AddAttachments uploads files to an existing note.
func (c *Client) AddAttachments(ctx context.Context, id string, files []File) (*Note, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var note Note
	path := "/api/note/" + url.PathEscape(id) + "/attachments"
	if err := c.send(ctx, http.MethodPost, path, w.FormDataContentType(), &buf, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// RemoveAttachment removes the attachment at the given position.
func (c *Client) RemoveAttachment(ctx context.Context, id string, index int) (*Note, error) {
	var note Note
	path := fmt.Sprintf("/api/note/%s/attachments/%d", url.PathEscape(id), index)
	if err := c.do(ctx, http.MethodDelete, path, nil, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// CreateCategory creates a category.
func (c *Client) CreateCategory(ctx context.Context, name string) (*Category, error) {
	var category Category
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/api/category/create-category", body, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// ListCategories returns the user's categories, oldest first.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var list struct {
		Categories []Category `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/category/categories", nil, &list); err != nil {
		return nil, err
	}
	return list.Categories, nil
}

// DeleteCategory removes a category, detaching its notes.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/category/"+url.PathEscape(id), nil, nil)
}
