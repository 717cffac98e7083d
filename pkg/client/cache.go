package client

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache tags. List results carry TagNotes, individual notes carry
// NoteTag(id), categories carry TagCategories. Invalidating a tag
// drops every cached entry that carries it.
const (
	TagNotes      = "Note"
	TagCategories = "Category"
)

// NoteTag returns the cache tag for a single note.
func NoteTag(id string) string {
	return TagNotes + ":" + id
}

type cacheEntry struct {
	value any
	tags  map[string]struct{}
}

// Cache is a per-session read cache keyed by request, with tag based
// invalidation. Concurrent fetches of the same key are collapsed into
// a single request.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// GetOrFetch returns the cached value for key, or calls fetch and
// stores the result under the tags it reports. List responses only
// know which notes they contain once the body is in hand, which is
// why fetch returns the tags alongside the value. Fetch errors are
// not cached.
func (c *Cache) GetOrFetch(key string, fetch func() (any, []string, error)) (any, error) {
	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return entry.value, nil
	}
	c.mu.Unlock()

	value, err, _ := c.group.Do(key, func() (any, error) {
		v, tags, err := fetch()
		if err != nil {
			return nil, err
		}
		tagSet := make(map[string]struct{}, len(tags))
		for _, tag := range tags {
			tagSet[tag] = struct{}{}
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{value: v, tags: tagSet}
		c.mu.Unlock()
		return v, nil
	})
	return value, err
}

// Invalidate drops every entry carrying any of the given tags.
func (c *Cache) Invalidate(tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		for _, tag := range tags {
			if _, ok := entry.tags[tag]; ok {
				delete(c.entries, key)
				break
			}
		}
	}
}

// Clear drops every entry, typically on logout.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CachedClient wraps a Client with a per-session cache. Reads are
// served from the cache when possible; mutations invalidate the tags
// they touch so the next read refetches.
type CachedClient struct {
	*Client
	cache *Cache
}

// NewCached wraps client with a fresh cache.
func NewCached(client *Client) *CachedClient {
	return &CachedClient{Client: client, cache: NewCache()}
}

// Cache exposes the underlying cache, mainly for logout handling.
func (c *CachedClient) Cache() *Cache {
	return c.cache
}

func fetchCached[T any](c *Cache, key string, fetch func() (T, []string, error)) (T, error) {
	value, err := c.GetOrFetch(key, func() (any, []string, error) {
		v, tags, err := fetch()
		return v, tags, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return value.(T), nil
}

func notesTags(notes []Note) []string {
	tags := make([]string, 0, len(notes)+1)
	tags = append(tags, TagNotes)
	for _, note := range notes {
		tags = append(tags, NoteTag(note.ID))
	}
	return tags
}

// ListNotes returns all notes, cached until a note mutation.
func (c *CachedClient) ListNotes(ctx context.Context) ([]Note, error) {
	return fetchCached(c.cache, "notes", func() ([]Note, []string, error) {
		notes, err := c.Client.ListNotes(ctx)
		if err != nil {
			return nil, nil, err
		}
		return notes, notesTags(notes), nil
	})
}

// GetNote returns a note, cached until that note is mutated. The entry
// carries only the per-note tag, so mutations of other notes leave it
// alone.
func (c *CachedClient) GetNote(ctx context.Context, id string) (*Note, error) {
	return fetchCached(c.cache, "note:"+id, func() (*Note, []string, error) {
		note, err := c.Client.GetNote(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return note, []string{NoteTag(id)}, nil
	})
}

// ListPinnedNotes returns pinned notes, cached until a note mutation.
func (c *CachedClient) ListPinnedNotes(ctx context.Context) ([]Note, error) {
	return fetchCached(c.cache, "notes:pinned", func() ([]Note, []string, error) {
		notes, err := c.Client.ListPinnedNotes(ctx)
		if err != nil {
			return nil, nil, err
		}
		return notes, notesTags(notes), nil
	})
}

// ListArchivedNotes returns archived notes, cached until a note mutation.
func (c *CachedClient) ListArchivedNotes(ctx context.Context) ([]Note, error) {
	return fetchCached(c.cache, "notes:archived", func() ([]Note, []string, error) {
		notes, err := c.Client.ListArchivedNotes(ctx)
		if err != nil {
			return nil, nil, err
		}
		return notes, notesTags(notes), nil
	})
}

// ListNotesByCategory returns a category's notes, cached until a note
// or category mutation.
func (c *CachedClient) ListNotesByCategory(ctx context.Context, categoryID string) ([]Note, error) {
	key := "notes:category:" + categoryID
	return fetchCached(c.cache, key, func() ([]Note, []string, error) {
		notes, err := c.Client.ListNotesByCategory(ctx, categoryID)
		if err != nil {
			return nil, nil, err
		}
		return notes, append(notesTags(notes), TagCategories), nil
	})
}

// ListCategories returns the user's categories, cached until a
// category mutation.
func (c *CachedClient) ListCategories(ctx context.Context) ([]Category, error) {
	return fetchCached(c.cache, "categories", func() ([]Category, []string, error) {
		categories, err := c.Client.ListCategories(ctx)
		if err != nil {
			return nil, nil, err
		}
		return categories, []string{TagCategories}, nil
	})
}

// CreateNote creates a note and invalidates the note lists.
func (c *CachedClient) CreateNote(ctx context.Context, req CreateNoteRequest) (*Note, error) {
	note, err := c.Client.CreateNote(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(TagNotes)
	return note, nil
}

// UpdateNote updates a note and invalidates it along with the lists.
func (c *CachedClient) UpdateNote(ctx context.Context, id string, req UpdateNoteRequest) (*Note, error) {
	note, err := c.Client.UpdateNote(ctx, id, req)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(TagNotes, NoteTag(id))
	return note, nil
}

// TogglePin flips the pinned flag and invalidates the note.
func (c *CachedClient) TogglePin(ctx context.Context, id string) (bool, error) {
	pinned, err := c.Client.TogglePin(ctx, id)
	if err != nil {
		return false, err
	}
	c.cache.Invalidate(TagNotes, NoteTag(id))
	return pinned, nil
}

// ToggleArchive flips the archived flag and invalidates the note.
func (c *CachedClient) ToggleArchive(ctx context.Context, id string) (bool, error) {
	archived, err := c.Client.ToggleArchive(ctx, id)
	if err != nil {
		return false, err
	}
	c.cache.Invalidate(TagNotes, NoteTag(id))
	return archived, nil
}

// DeleteNote removes a note and invalidates the lists.
func (c *CachedClient) DeleteNote(ctx context.Context, id string) error {
	if err := c.Client.DeleteNote(ctx, id); err != nil {
		return err
	}
	c.cache.Invalidate(TagNotes, NoteTag(id))
	return nil
}

// DeleteNotes removes several notes and invalidates the lists.
func (c *CachedClient) DeleteNotes(ctx context.Context, ids []string) (int, error) {
	deleted, err := c.Client.DeleteNotes(ctx, ids)
	if err != nil {
		return 0, err
	}
	tags := make([]string, 0, len(ids)+1)
	tags = append(tags, TagNotes)
	for _, id := range ids {
		tags = append(tags, NoteTag(id))
	}
	c.cache.Invalidate(tags...)
	return deleted, nil
}

// AddAttachments uploads files to a note and invalidates it.
func (c *CachedClient) AddAttachments(ctx context.Context, id string, files []File) (*Note, error) {
	note, err := c.Client.AddAttachments(ctx, id, files)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(TagNotes, NoteTag(id))
	return note, nil
}

// RemoveAttachment removes an attachment and invalidates the note.
func (c *CachedClient) RemoveAttachment(ctx context.Context, id string, index int) (*Note, error) {
	note, err := c.Client.RemoveAttachment(ctx, id, index)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(TagNotes, NoteTag(id))
	return note, nil
}

// CreateCategory creates a category and invalidates the category list.
func (c *CachedClient) CreateCategory(ctx context.Context, name string) (*Category, error) {
	category, err := c.Client.CreateCategory(ctx, name)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(TagCategories)
	return category, nil
}

// DeleteCategory removes a category. Its notes are detached server
// side, so both caches are invalidated.
func (c *CachedClient) DeleteCategory(ctx context.Context, id string) error {
	if err := c.Client.DeleteCategory(ctx, id); err != nil {
		return err
	}
	c.cache.Invalidate(TagCategories, TagNotes)
	return nil
}
