package models

import "github.com/google/uuid"

// File metadata; the content itself lives in the blob store under BlobID.
// A row is only ever created after its blob upload succeeded.
type File struct {
	BaseModel
	Name      string     `json:"name" gorm:"type:varchar(50);not null"`
	Size      int64      `json:"size" gorm:"not null;default:0"`
	Format    string     `json:"format" gorm:"type:varchar(50)"`
	MimeType  string     `json:"mimeType" gorm:"type:varchar(255);not null"`
	Favorite  bool       `json:"favorite" gorm:"not null;default:false"`
	BlobID    string     `json:"-" gorm:"type:text;not null"`
	FolderID  *uuid.UUID `json:"folderID,omitempty" gorm:"type:uuid;index"`
	CreatorID uuid.UUID  `json:"creatorID" gorm:"type:uuid;not null;index"`

	Folder *Folder `json:"folder,omitempty" gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE"`
}
