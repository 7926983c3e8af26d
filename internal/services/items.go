package services

import (
	"fmt"
	"strings"

	"github.com/filevault/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SortSpec is a validated (column, direction) pair for the unified listing.
// Column names map to whitelisted SQL expressions server-side; user input
// never reaches the query text directly.
type SortSpec struct {
	Column    string
	Direction string
}

var sortColumns = map[string]string{
	"name":      "LOWER(name)",
	"size":      "size",
	"updatedAt": "updated_at",
	"format":    "LOWER(format)",
}

// ParseSort maps raw user input ("name,ASC") to a SortSpec. Anything outside
// the whitelist silently falls back to updatedAt,DESC.
func ParseSort(raw string) SortSpec {
	column, direction, _ := strings.Cut(raw, ",")

	column = strings.TrimSpace(column)
	if _, ok := sortColumns[column]; !ok {
		column = "updatedAt"
	}
	direction = strings.ToUpper(strings.TrimSpace(direction))
	if direction != "ASC" && direction != "DESC" {
		direction = "DESC"
	}

	return SortSpec{Column: column, Direction: direction}
}

// NormalizeSort returns the canonical "column,direction" form of raw input.
func NormalizeSort(raw string) string {
	spec := ParseSort(raw)
	return spec.Column + "," + spec.Direction
}

// orderClause renders the ORDER BY body: nulls (a folder's size/format) sort
// first regardless of direction, ties break by name for a stable order.
func (s SortSpec) orderClause() string {
	return fmt.Sprintf("%s %s NULLS FIRST, LOWER(name) ASC", sortColumns[s.Column], s.Direction)
}

// ItemService produces the polymorphic file-plus-folder listing used by the
// home, folder, favorites and search views.
type ItemService struct {
	DB *gorm.DB
}

func NewItemService(db *gorm.DB) *ItemService {
	return &ItemService{DB: db}
}

// The union is wrapped in a subquery because SQLite and PostgreSQL only
// allow plain output columns or ordinals in the ORDER BY of a compound
// select; ordering the outer select keeps LOWER(...) expressions legal.
const itemQuery = `
SELECT * FROM (
	SELECT id, name, favorite, NULL AS size, NULL AS format, 'folder' AS type, created_at, updated_at, parent_id
	FROM folders
	WHERE creator_id = ? AND %s
	UNION ALL
	SELECT id, name, favorite, size, format, 'file' AS type, created_at, updated_at, folder_id AS parent_id
	FROM files
	WHERE creator_id = ? AND %s
) AS items
ORDER BY %s`

// ByParent lists the direct contents of a folder; a nil parent means root.
func (s *ItemService) ByParent(creatorID uuid.UUID, parentID *uuid.UUID, sort SortSpec) ([]models.Item, error) {
	var items []models.Item

	if parentID == nil {
		query := fmt.Sprintf(itemQuery, "parent_id IS NULL", "folder_id IS NULL", sort.orderClause())
		if err := s.DB.Raw(query, creatorID, creatorID).Scan(&items).Error; err != nil {
			return nil, err
		}
		return items, nil
	}

	query := fmt.Sprintf(itemQuery, "parent_id = ?", "folder_id = ?", sort.orderClause())
	if err := s.DB.Raw(query, creatorID, *parentID, creatorID, *parentID).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *ItemService) Favorites(creatorID uuid.UUID, sort SortSpec) ([]models.Item, error) {
	var items []models.Item
	query := fmt.Sprintf(itemQuery, "favorite = TRUE", "favorite = TRUE", sort.orderClause())
	if err := s.DB.Raw(query, creatorID, creatorID).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Search matches item names case-insensitively on a substring.
func (s *ItemService) Search(creatorID uuid.UUID, term string, sort SortSpec) ([]models.Item, error) {
	var items []models.Item
	pattern := "%" + strings.ToLower(term) + "%"
	query := fmt.Sprintf(itemQuery, "LOWER(name) LIKE ?", "LOWER(name) LIKE ?", sort.orderClause())
	if err := s.DB.Raw(query, creatorID, pattern, creatorID, pattern).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
