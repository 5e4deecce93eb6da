package feed

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/mmcdole/gofeed"

	"podpipe/internal/fileutil"
	"podpipe/internal/identity"
	"podpipe/internal/services"
)

// Store owns the ordered feed and its on-disk RSS document. All mutation goes
// through the store's lock; the document is rewritten atomically after every
// change so readers never observe a partial feed.
type Store struct {
	mu       sync.Mutex
	path     string
	channel  Channel
	maxItems int
	entries  []Entry // newest first
	revision uint64
}

// NewStore loads (or initializes) the feed document at path. maxItems caps
// how many entries the rendered document presents; older entries stay in
// memory and on disk through List's uncapped sibling All.
func NewStore(path string, channel Channel, maxItems int) (*Store, error) {
	store := &Store{path: path, channel: channel, maxItems: maxItems}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read feed document: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	parsed, err := gofeed.NewParser().ParseString(string(data))
	if err != nil {
		return fmt.Errorf("parse feed document %s: %w", s.path, err)
	}
	s.entries = entriesFromParsed(parsed)
	return nil
}

// Add publishes an entry at the head of the feed and persists the document.
// When an entry with the same ID already exists the feed is left untouched
// and Add reports false with no error.
func (s *Store) Add(entry Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entries {
		if existing.ID == entry.ID {
			return false, nil
		}
	}

	s.entries = append([]Entry{entry}, s.entries...)
	if err := s.persistLocked(); err != nil {
		// Roll back so a later retry starts from the persisted state.
		s.entries = s.entries[1:]
		return false, err
	}
	s.revision++
	return true, nil
}

// Remove deletes an entry by ID and persists the document.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, existing := range s.entries {
		if existing.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return services.Wrap(services.ErrNotFound, "feed", "remove", fmt.Sprintf("entry %s not found", id), nil)
	}

	before := s.entries
	s.entries = append(append([]Entry(nil), s.entries[:idx]...), s.entries[idx+1:]...)
	if err := s.persistLocked(); err != nil {
		s.entries = before
		return err
	}
	s.revision++
	return nil
}

// Get returns the entry with the given ID.
func (s *Store) Get(id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entries {
		if existing.ID == id {
			return existing, nil
		}
	}
	return Entry{}, services.Wrap(services.ErrNotFound, "feed", "get", fmt.Sprintf("entry %s not found", id), nil)
}

// Contains reports whether an entry with the given ID exists.
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entries {
		if existing.ID == id {
			return true
		}
	}
	return false
}

// List returns the newest entries up to the presentation cap.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cappedLocked()
}

// All returns every entry, newest first, without the presentation cap.
func (s *Store) All() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// Len returns the total number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Revision increases by one on every successful mutation.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Render produces the capped RSS document as served to podcast clients.
func (s *Store) Render() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Render(s.channel, s.cappedLocked())
}

// Import merges entries parsed from another feed, skipping IDs already
// present, and persists once. Returns the number of entries added.
func (s *Store) Import(entries []Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]struct{}, len(s.entries))
	for _, entry := range s.entries {
		existing[entry.ID] = struct{}{}
	}

	before := s.entries
	added := 0
	for _, entry := range entries {
		if _, ok := existing[entry.ID]; ok {
			continue
		}
		existing[entry.ID] = struct{}{}
		s.entries = append(s.entries, entry)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	// Imported documents can carry entries newer than what the store already
	// holds; re-sort so listing stays newest first and the presentation cap
	// keeps the right end.
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].PublishedAt.After(s.entries[j].PublishedAt)
	})

	if err := s.persistLocked(); err != nil {
		s.entries = before
		return 0, err
	}
	s.revision++
	return added, nil
}

func (s *Store) cappedLocked() []Entry {
	capped := s.entries
	if s.maxItems > 0 && len(capped) > s.maxItems {
		capped = capped[:s.maxItems]
	}
	return append([]Entry(nil), capped...)
}

// persistLocked writes the full entry set. The cap only shapes what clients
// see; the document on disk is the complete feed so nothing is lost when the
// cap shrinks.
func (s *Store) persistLocked() error {
	payload, err := Render(s.channel, s.entries)
	if err != nil {
		return services.Wrap(services.ErrFeedPersist, "feed", "render", "render feed document", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, payload, 0o644); err != nil {
		return services.Wrap(services.ErrFeedPersist, "feed", "persist", fmt.Sprintf("write %s", s.path), err)
	}
	return nil
}

func entriesFromParsed(parsed *gofeed.Feed) []Entry {
	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entry := entryFromItem(item)
		if entry.ID == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func entryFromItem(item *gofeed.Item) Entry {
	entry := Entry{
		ID:          strings.TrimSpace(item.GUID),
		Title:       item.Title,
		Description: item.Description,
		Link:        item.Link,
	}
	if len(item.Enclosures) > 0 {
		enc := item.Enclosures[0]
		entry.MediaURL = enc.URL
		entry.MediaType = enc.Type
		if length, err := parseLength(enc.Length); err == nil {
			entry.MediaLength = length
		}
	}
	if entry.ID == "" && entry.MediaURL != "" {
		entry.ID = identity.ForSource(entry.MediaURL)
	}
	if item.PublishedParsed != nil {
		entry.PublishedAt = item.PublishedParsed.UTC()
	}
	if item.ITunesExt != nil {
		entry.DurationSeconds = ParseDuration(item.ITunesExt.Duration)
		if item.ITunesExt.Image != "" {
			entry.ImageURL = item.ITunesExt.Image
		}
	}
	return entry
}

func parseLength(value string) (int64, error) {
	var length int64
	_, err := fmt.Sscanf(strings.TrimSpace(value), "%d", &length)
	return length, err
}
