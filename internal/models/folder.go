package models

import "github.com/google/uuid"

// Folder rows form a forest per user: ParentID nil means root level.
type Folder struct {
	BaseModel
	Name      string     `json:"name" gorm:"type:varchar(50);not null"`
	Favorite  bool       `json:"favorite" gorm:"not null;default:false"`
	ParentID  *uuid.UUID `json:"parentID,omitempty" gorm:"type:uuid;index"`
	CreatorID uuid.UUID  `json:"creatorID" gorm:"type:uuid;not null;index"`

	Parent     *Folder  `json:"parent,omitempty" gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"`
	Subfolders []Folder `json:"subfolders,omitempty" gorm:"foreignKey:ParentID"`
	Files      []File   `json:"files,omitempty" gorm:"foreignKey:FolderID"`
}
