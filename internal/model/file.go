package model

import "time"

// FileRecord is a virtual file held entirely in memory: extracted from AI
// output or edited by the user, never persisted server-side.
type FileRecord struct {
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy so callers can hold a record without racing store
// mutations.
func (f *FileRecord) Clone() FileRecord {
	return *f
}
