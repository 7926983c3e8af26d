package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ItemTypeFile   = "file"
	ItemTypeFolder = "folder"
)

// Item is the unified read-only projection over File and Folder used by the
// listing, favorites and search views. It is never persisted; Size and Format
// are nil for folders.
type Item struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Favorite  bool       `json:"favorite"`
	Size      *int64     `json:"size"`
	Format    *string    `json:"format"`
	Type      string     `json:"type"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ParentID  *uuid.UUID `json:"parentID"`
}
