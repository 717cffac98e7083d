// Package domain defines the core entities of the Notedly server.
package domain

import "time"

// DefaultNoteColor is the background color assigned to notes created without one.
const DefaultNoteColor = "#ffffff"

// Attachment is a file descriptor stored on a note. The file bytes themselves
// live in the external blob store; the note only carries the descriptor.
//
// Each attachment has its own stable ID so removal survives concurrent edits.
// The slice position is display order only, never identity.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	// BlurHash is a compact placeholder for image attachments, empty otherwise.
	BlurHash string `json:"blurhash,omitempty"`
}

// Note is a rich-text note owned by exactly one user.
//
// Pin and archive flags are orthogonal: all four combinations are valid, and
// toggling one never affects the other.
type Note struct {
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	ID          string       `json:"id"`
	OwnerID     string       `json:"ownerId"`
	Title       string       `json:"title"`
	Content     string       `json:"content"` // Sanitized HTML from the editor
	Tags        []string     `json:"tags"`    // Ordered for display; duplicates tolerated
	Color       string       `json:"color"`
	CategoryID  string       `json:"categoryId,omitempty"` // Optional category link
	IsPinned    bool         `json:"isPinned"`
	IsArchived  bool         `json:"isArchived"`
	Attachments []Attachment `json:"attachments"`
}

// AttachmentAt returns the attachment at the given display position.
// Returns false if the index is out of range.
func (n *Note) AttachmentAt(index int) (Attachment, bool) {
	if index < 0 || index >= len(n.Attachments) {
		return Attachment{}, false
	}
	return n.Attachments[index], true
}

// RemoveAttachment removes the attachment with the given ID, preserving the
// order of the rest. Returns the removed descriptor and whether it was found.
func (n *Note) RemoveAttachment(attachmentID string) (Attachment, bool) {
	for i, att := range n.Attachments {
		if att.ID == attachmentID {
			n.Attachments = append(n.Attachments[:i], n.Attachments[i+1:]...)
			return att, true
		}
	}
	return Attachment{}, false
}

// AppendAttachments appends descriptors to the note's attachment list.
func (n *Note) AppendAttachments(atts []Attachment) {
	n.Attachments = append(n.Attachments, atts...)
}
