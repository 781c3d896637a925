package vfs

import (
	"sort"
	"sync"
	"time"

	"codecollab/internal/model"
)

// Store is the authoritative in-memory map of filename -> FileRecord for one
// session, plus the single-selection state. All access is mutex-serialized:
// the extraction pass runs on the transport read goroutine while user edits
// arrive from the UI goroutine.
type Store struct {
	mu       sync.RWMutex
	files    map[string]*model.FileRecord
	selected string
}

// ExportedFile is one (filename, bytes) pair produced by ExportAll.
type ExportedFile struct {
	Name string
	Data []byte
}

func NewStore() *Store {
	return &Store{
		files: make(map[string]*model.FileRecord),
	}
}

// Put creates or overwrites a record. On overwrite the original CreatedAt is
// preserved and UpdatedAt bumped; filename uniqueness means this never
// produces a duplicate key. Returns true when the name was new.
func (s *Store) Put(name, content, language string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.files[name]; ok {
		existing.Content = content
		existing.Language = language
		existing.UpdatedAt = now
		return false
	}

	s.files[name] = &model.FileRecord{
		Name:      name,
		Content:   content,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true
}

// Get returns a copy of the named record.
func (s *Store) Get(name string) (model.FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[name]
	if !ok {
		return model.FileRecord{}, false
	}
	return f.Clone(), true
}

// Has reports whether the name exists without copying the record.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[name]
	return ok
}

// Names returns all filenames in lexical order. Display ordering is a
// presentation concern; lexical keeps it stable.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.namesLocked()
}

func (s *Store) namesLocked() []string {
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Select marks the named file as selected. Selecting a missing name is a
// no-op.
func (s *Store) Select(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[name]; ok {
		s.selected = name
	}
}

// SelectIfNone selects the name only when nothing is currently selected.
// Used by the extraction engine for its auto-select step.
func (s *Store) SelectIfNone(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != "" {
		return
	}
	if _, ok := s.files[name]; ok {
		s.selected = name
	}
}

// Selected returns the currently selected filename, or "".
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Update rewrites the content of an existing file and bumps UpdatedAt. It
// never changes name or language. Missing key is a no-op.
func (s *Store) Update(name, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[name]
	if !ok {
		return
	}
	f.Content = content
	f.UpdatedAt = time.Now()
}

// Delete removes the key. If it was selected, selection falls to the first
// remaining name in lexical order, or clears when the store empties. Missing
// key is a no-op.
func (s *Store) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[name]; !ok {
		return
	}
	delete(s.files, name)

	if s.selected != name {
		return
	}
	if remaining := s.namesLocked(); len(remaining) > 0 {
		s.selected = remaining[0]
	} else {
		s.selected = ""
	}
}

// Clear empties the store and clears selection atomically.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string]*model.FileRecord)
	s.selected = ""
}

// Export returns the raw bytes of one file, byte-identical to the stored
// content.
func (s *Store) Export(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[name]
	if !ok {
		return nil, false
	}
	return []byte(f.Content), true
}

// ExportAll snapshots every file under the lock so an in-flight Update can
// never tear a sequential multi-file export.
func (s *Store) ExportAll() []ExportedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ExportedFile, 0, len(s.files))
	for _, name := range s.namesLocked() {
		out = append(out, ExportedFile{Name: name, Data: []byte(s.files[name].Content)})
	}
	return out
}
