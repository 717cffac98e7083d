package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/notedly/notedly-server/internal/domain"
	"github.com/notedly/notedly-server/internal/service"
)

func (s *Server) registerNoteRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listNotes",
		Method:      http.MethodGet,
		Path:        "/api/note/notes",
		Summary:     "List notes",
		Description: "Returns all notes for the current user, most recently updated first",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "getNote",
		Method:      http.MethodGet,
		Path:        "/api/note/note/{id}",
		Summary:     "Get note",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPinnedNotes",
		Method:      http.MethodGet,
		Path:        "/api/note/getpinned",
		Summary:     "List pinned notes",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetPinnedNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "getArchivedNotes",
		Method:      http.MethodGet,
		Path:        "/api/note/getarchives",
		Summary:     "List archived notes",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetArchivedNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "getNotesByCategory",
		Method:      http.MethodGet,
		Path:        "/api/note/notes/categories/{categoryId}",
		Summary:     "List notes in a category",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetNotesByCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "createNote",
		Method:      http.MethodPost,
		Path:        "/api/note/create",
		Summary:     "Create note",
		Description: "Creates a note from multipart form data, with optional file attachments",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "enhanceNote",
		Method:      http.MethodPost,
		Path:        "/api/note/enhance",
		Summary:     "Enhance note content",
		Description: "Rewrites note content through the AI enhancement service",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleEnhanceNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateNote",
		Method:      http.MethodPut,
		Path:        "/api/note/update/{id}",
		Summary:     "Update note",
		Description: "Applies a partial update; omitted fields are left untouched",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "togglePin",
		Method:      http.MethodPut,
		Path:        "/api/note/togglepin/{id}",
		Summary:     "Toggle pin",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleTogglePin)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleArchive",
		Method:      http.MethodPut,
		Path:        "/api/note/togglearchive/{id}",
		Summary:     "Toggle archive",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleToggleArchive)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteNote",
		Method:      http.MethodDelete,
		Path:        "/api/note/delete/{id}",
		Summary:     "Delete note",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteNotes",
		Method:      http.MethodDelete,
		Path:        "/api/note/delete",
		Summary:     "Delete notes in bulk",
		Description: "Deletes the listed notes; IDs that don't exist or aren't yours are skipped",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "addAttachments",
		Method:      http.MethodPost,
		Path:        "/api/note/{id}/attachments",
		Summary:     "Add attachments",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAddAttachments)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeAttachment",
		Method:      http.MethodDelete,
		Path:        "/api/note/{id}/attachments/{index}",
		Summary:     "Remove attachment",
		Description: "Removes the attachment at the given position and deletes its file",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRemoveAttachment)

	huma.Register(s.api, huma.Operation{
		OperationID: "exportNote",
		Method:      http.MethodGet,
		Path:        "/api/note/{id}/export",
		Summary:     "Export note as markdown",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleExportNote)
}

// === DTOs ===

// AttachmentResponse contains attachment data in API responses.
type AttachmentResponse struct {
	ID       string `json:"id" doc:"Attachment ID"`
	Filename string `json:"filename" doc:"Original filename"`
	URL      string `json:"url" doc:"Download URL"`
	Size     int64  `json:"size" doc:"Size in bytes"`
	MimeType string `json:"mimeType" doc:"Sniffed MIME type"`
	BlurHash string `json:"blurhash,omitempty" doc:"BlurHash placeholder for images"`
}

// NoteResponse contains note data in API responses.
type NoteResponse struct {
	ID          string               `json:"id" doc:"Note ID"`
	Title       string               `json:"title" doc:"Note title"`
	Content     string               `json:"content" doc:"HTML content"`
	Tags        []string             `json:"tags" doc:"Tags"`
	Color       string               `json:"color" doc:"Display color"`
	CategoryID  string               `json:"categoryId,omitempty" doc:"Linked category ID"`
	IsPinned    bool                 `json:"isPinned" doc:"Pinned flag"`
	IsArchived  bool                 `json:"isArchived" doc:"Archived flag"`
	Attachments []AttachmentResponse `json:"attachments" doc:"File attachments"`
	CreatedAt   time.Time            `json:"createdAt" doc:"Creation time"`
	UpdatedAt   time.Time            `json:"updatedAt" doc:"Last update time"`
}

// NoteOutput wraps a single note response for Huma.
type NoteOutput struct {
	Body NoteResponse
}

// ListNotesResponse contains a list of notes.
type ListNotesResponse struct {
	Notes []NoteResponse `json:"notes" doc:"List of notes"`
}

// ListNotesOutput wraps the list notes response for Huma.
type ListNotesOutput struct {
	Body ListNotesResponse
}

// ListNotesInput contains parameters for listing notes.
type ListNotesInput struct {
	Authorization string `header:"Authorization"`
}

// GetNoteInput contains parameters for fetching one note.
type GetNoteInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Note ID"`
}

// GetNotesByCategoryInput contains parameters for listing notes in a category.
type GetNotesByCategoryInput struct {
	Authorization string `header:"Authorization"`
	CategoryID    string `path:"categoryId" doc:"Category ID"`
}

// CreateNoteInput carries the multipart form for creating a note.
type CreateNoteInput struct {
	Authorization string `header:"Authorization"`
	RawBody       multipart.Form
}

// EnhanceRequest is the request body for content enhancement.
type EnhanceRequest struct {
	Content string `json:"content" validate:"required" doc:"HTML content to rewrite"`
}

// EnhanceInput wraps the enhance request for Huma.
type EnhanceInput struct {
	Authorization string `header:"Authorization"`
	Body          EnhanceRequest
}

// EnhanceResponse carries the rewritten content.
type EnhanceResponse struct {
	Content string `json:"content" doc:"Rewritten HTML content"`
}

// EnhanceOutput wraps the enhance response for Huma.
type EnhanceOutput struct {
	Body EnhanceResponse
}

// UpdateNoteRequest is a partial update; omitted fields are left untouched.
type UpdateNoteRequest struct {
	Title      *string   `json:"title,omitempty" validate:"omitempty,max=200" doc:"New title"`
	Content    *string   `json:"content,omitempty" doc:"New HTML content"`
	Tags       *[]string `json:"tags,omitempty" doc:"Replacement tag list"`
	Color      *string   `json:"color,omitempty" validate:"omitempty,hexcolor_relaxed" doc:"New display color"`
	CategoryID *string   `json:"categoryId,omitempty" doc:"New category ID, empty string detaches"`
}

// UpdateNoteInput wraps the update request for Huma.
type UpdateNoteInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Note ID"`
	Body          UpdateNoteRequest
}

// PinStateResponse reports a note's pinned flag after a toggle.
type PinStateResponse struct {
	IsPinned bool `json:"isPinned" doc:"New pinned state"`
}

// PinStateOutput wraps the pin state for Huma.
type PinStateOutput struct {
	Body PinStateResponse
}

// ArchiveStateResponse reports a note's archived flag after a toggle.
type ArchiveStateResponse struct {
	IsArchived bool `json:"isArchived" doc:"New archived state"`
}

// ArchiveStateOutput wraps the archive state for Huma.
type ArchiveStateOutput struct {
	Body ArchiveStateResponse
}

// DeleteNoteInput contains parameters for deleting one note.
type DeleteNoteInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Note ID"`
}

// DeleteNotesRequest lists the notes to delete.
type DeleteNotesRequest struct {
	NoteIDs []string `json:"noteIds" validate:"required,min=1" doc:"Note IDs to delete"`
}

// DeleteNotesInput wraps the bulk delete request for Huma.
type DeleteNotesInput struct {
	Authorization string `header:"Authorization"`
	Body          DeleteNotesRequest
}

// DeleteNotesResponse reports how many notes were removed.
type DeleteNotesResponse struct {
	Deleted int `json:"deleted" doc:"Number of notes actually deleted"`
}

// DeleteNotesOutput wraps the bulk delete response for Huma.
type DeleteNotesOutput struct {
	Body DeleteNotesResponse
}

// DeletedOutput is the generic response for single deletions.
type DeletedOutput struct {
	Body struct {
		Deleted bool `json:"deleted" doc:"Whether the resource was deleted"`
	}
}

// AddAttachmentsInput carries the multipart form for adding attachments.
type AddAttachmentsInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Note ID"`
	RawBody       multipart.Form
}

// RemoveAttachmentInput contains parameters for removing an attachment.
type RemoveAttachmentInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Note ID"`
	Index         int    `path:"index" doc:"Zero-based attachment position"`
}

// ExportNoteInput contains parameters for exporting a note.
type ExportNoteInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Note ID"`
}

// ExportNoteOutput carries the raw markdown document.
type ExportNoteOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// === Handlers ===

func (s *Server) handleListNotes(ctx context.Context, input *ListNotesInput) (*ListNotesOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	notes, err := s.services.Note.ListNotes(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ListNotesOutput{Body: ListNotesResponse{Notes: toNoteResponses(notes)}}, nil
}

func (s *Server) handleGetNote(ctx context.Context, input *GetNoteInput) (*NoteOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	note, err := s.services.Note.GetNote(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &NoteOutput{Body: toNoteResponse(note)}, nil
}

func (s *Server) handleGetPinnedNotes(ctx context.Context, input *ListNotesInput) (*ListNotesOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	notes, err := s.services.Note.ListPinnedNotes(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ListNotesOutput{Body: ListNotesResponse{Notes: toNoteResponses(notes)}}, nil
}

func (s *Server) handleGetArchivedNotes(ctx context.Context, input *ListNotesInput) (*ListNotesOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	notes, err := s.services.Note.ListArchivedNotes(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ListNotesOutput{Body: ListNotesResponse{Notes: toNoteResponses(notes)}}, nil
}

func (s *Server) handleGetNotesByCategory(ctx context.Context, input *GetNotesByCategoryInput) (*ListNotesOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	notes, err := s.services.Note.ListNotesByCategory(ctx, userID, input.CategoryID)
	if err != nil {
		return nil, err
	}
	return &ListNotesOutput{Body: ListNotesResponse{Notes: toNoteResponses(notes)}}, nil
}

func (s *Server) handleCreateNote(ctx context.Context, input *CreateNoteInput) (*NoteOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	files, err := s.collectFiles(input.RawBody)
	if err != nil {
		return nil, err
	}

	note, err := s.services.Note.CreateNote(ctx, userID, service.CreateNoteInput{
		Title:      formValue(input.RawBody, "title"),
		Content:    formValue(input.RawBody, "content"),
		Tags:       formTags(input.RawBody),
		Color:      formValue(input.RawBody, "color"),
		CategoryID: formValue(input.RawBody, "categoryId"),
		Files:      files,
	})
	if err != nil {
		return nil, err
	}
	return &NoteOutput{Body: toNoteResponse(note)}, nil
}

func (s *Server) handleEnhanceNote(ctx context.Context, input *EnhanceInput) (*EnhanceOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	enhanced, err := s.services.Note.EnhanceContent(ctx, input.Body.Content)
	if err != nil {
		return nil, err
	}
	return &EnhanceOutput{Body: EnhanceResponse{Content: enhanced}}, nil
}

func (s *Server) handleUpdateNote(ctx context.Context, input *UpdateNoteInput) (*NoteOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	note, err := s.services.Note.UpdateNote(ctx, userID, input.ID, service.UpdateNoteInput{
		Title:      input.Body.Title,
		Content:    input.Body.Content,
		Tags:       input.Body.Tags,
		Color:      input.Body.Color,
		CategoryID: input.Body.CategoryID,
	})
	if err != nil {
		return nil, err
	}
	return &NoteOutput{Body: toNoteResponse(note)}, nil
}

func (s *Server) handleTogglePin(ctx context.Context, input *GetNoteInput) (*PinStateOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	note, err := s.services.Note.TogglePin(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &PinStateOutput{Body: PinStateResponse{IsPinned: note.IsPinned}}, nil
}

func (s *Server) handleToggleArchive(ctx context.Context, input *GetNoteInput) (*ArchiveStateOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	note, err := s.services.Note.ToggleArchive(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &ArchiveStateOutput{Body: ArchiveStateResponse{IsArchived: note.IsArchived}}, nil
}

func (s *Server) handleDeleteNote(ctx context.Context, input *DeleteNoteInput) (*DeletedOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Note.DeleteNote(ctx, userID, input.ID); err != nil {
		return nil, err
	}

	out := &DeletedOutput{}
	out.Body.Deleted = true
	return out, nil
}

func (s *Server) handleDeleteNotes(ctx context.Context, input *DeleteNotesInput) (*DeleteNotesOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	deleted, err := s.services.Note.DeleteManyNotes(ctx, userID, input.Body.NoteIDs)
	if err != nil {
		return nil, err
	}
	return &DeleteNotesOutput{Body: DeleteNotesResponse{Deleted: deleted}}, nil
}

func (s *Server) handleAddAttachments(ctx context.Context, input *AddAttachmentsInput) (*NoteOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	files, err := s.collectFiles(input.RawBody)
	if err != nil {
		return nil, err
	}

	note, err := s.services.Note.AddAttachments(ctx, userID, input.ID, files)
	if err != nil {
		return nil, err
	}
	return &NoteOutput{Body: toNoteResponse(note)}, nil
}

func (s *Server) handleRemoveAttachment(ctx context.Context, input *RemoveAttachmentInput) (*NoteOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	note, err := s.services.Note.RemoveAttachment(ctx, userID, input.ID, input.Index)
	if err != nil {
		return nil, err
	}
	return &NoteOutput{Body: toNoteResponse(note)}, nil
}

func (s *Server) handleExportNote(ctx context.Context, input *ExportNoteInput) (*ExportNoteOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	filename, markdown, err := s.services.Note.ExportMarkdown(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	return &ExportNoteOutput{
		ContentType:        "text/markdown; charset=utf-8",
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", filename),
		Body:               []byte(markdown),
	}, nil
}

// === Helpers ===

func toNoteResponse(n *domain.Note) NoteResponse {
	attachments := make([]AttachmentResponse, len(n.Attachments))
	for i, a := range n.Attachments {
		attachments[i] = AttachmentResponse{
			ID:       a.ID,
			Filename: a.Filename,
			URL:      a.URL,
			Size:     a.Size,
			MimeType: a.MimeType,
			BlurHash: a.BlurHash,
		}
	}

	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}

	return NoteResponse{
		ID:          n.ID,
		Title:       n.Title,
		Content:     n.Content,
		Tags:        tags,
		Color:       n.Color,
		CategoryID:  n.CategoryID,
		IsPinned:    n.IsPinned,
		IsArchived:  n.IsArchived,
		Attachments: attachments,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

func toNoteResponses(notes []*domain.Note) []NoteResponse {
	resp := make([]NoteResponse, len(notes))
	for i, n := range notes {
		resp[i] = toNoteResponse(n)
	}
	return resp
}

// formValue returns the first value for a multipart form field.
func formValue(form multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// formTags collects tags from repeated fields and comma-separated values.
func formTags(form multipart.Form) []string {
	var tags []string
	for _, raw := range form.Value["tags"] {
		for t := range strings.SplitSeq(raw, ",") {
			tags = append(tags, strings.TrimSpace(t))
		}
	}
	return tags
}

// collectFiles reads uploaded files from the form, enforcing count and size
// limits. Files are accepted under either "files" or "attachments".
func (s *Server) collectFiles(form multipart.Form) ([]service.UploadedFile, error) {
	var headers []*multipart.FileHeader
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["attachments"]...)

	if len(headers) > s.cfg.Blob.MaxFilesPerRequest {
		return nil, huma.Error400BadRequest(
			fmt.Sprintf("too many files: limit is %d per request", s.cfg.Blob.MaxFilesPerRequest))
	}

	files := make([]service.UploadedFile, 0, len(headers))
	for _, h := range headers {
		if h.Size > s.cfg.Blob.MaxFileSize {
			return nil, huma.Error400BadRequest(
				fmt.Sprintf("file %q exceeds the %d byte limit", h.Filename, s.cfg.Blob.MaxFileSize))
		}

		f, err := h.Open()
		if err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("cannot read file %q", h.Filename))
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.Blob.MaxFileSize+1))
		_ = f.Close()
		if err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("cannot read file %q", h.Filename))
		}
		if int64(len(data)) > s.cfg.Blob.MaxFileSize {
			return nil, huma.Error400BadRequest(
				fmt.Sprintf("file %q exceeds the %d byte limit", h.Filename, s.cfg.Blob.MaxFileSize))
		}

		files = append(files, service.UploadedFile{
			Filename: h.Filename,
			Data:     data,
		})
	}
	return files, nil
}
