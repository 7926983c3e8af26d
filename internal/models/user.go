package models

// DefaultSortPreference is the listing order applied until a user picks their own.
const DefaultSortPreference = "updatedAt,DESC"

type User struct {
	BaseModel
	Username       string  `json:"username" gorm:"type:varchar(16);uniqueIndex;not null"`
	PasswordHash   string  `json:"-" gorm:"type:text;not null"`
	FirstName      string  `json:"firstName" gorm:"type:varchar(50);not null"`
	LastName       string  `json:"lastName" gorm:"type:varchar(50);not null"`
	StorageUsed    int64   `json:"storageUsed" gorm:"not null;default:0"`
	SortPreference string  `json:"sortPreference" gorm:"type:varchar(20);not null;default:'updatedAt,DESC'"`
	PictureID      *string `json:"pictureID,omitempty" gorm:"type:text"`
	PictureVersion *string `json:"pictureVersion,omitempty" gorm:"type:text"`

	Folders []Folder `json:"-" gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE"`
	Files   []File   `json:"-" gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE"`
}
