package services

import (
	"testing"

	"github.com/filevault/backend/internal/models"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  SortSpec
	}{
		{"valid name ascending", "name,ASC", SortSpec{Column: "name", Direction: "ASC"}},
		{"valid size descending", "size,DESC", SortSpec{Column: "size", Direction: "DESC"}},
		{"lowercase direction normalized", "format,asc", SortSpec{Column: "format", Direction: "ASC"}},
		{"unknown column falls back", "owner,ASC", SortSpec{Column: "updatedAt", Direction: "ASC"}},
		{"unknown direction falls back", "name,SIDEWAYS", SortSpec{Column: "name", Direction: "DESC"}},
		{"empty input falls back", "", SortSpec{Column: "updatedAt", Direction: "DESC"}},
		{"missing direction falls back", "name", SortSpec{Column: "name", Direction: "DESC"}},
		{"injection attempt falls back", "name; DROP TABLE files,ASC", SortSpec{Column: "updatedAt", Direction: "ASC"}},
		{"padded column trimmed", " name ,ASC", SortSpec{Column: "name", Direction: "ASC"}},
		{"padded direction trimmed", "name, asc", SortSpec{Column: "name", Direction: "ASC"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseSort(tc.input)
			if got != tc.want {
				t.Fatalf("ParseSort(%q) = %+v, want %+v", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizeSort(t *testing.T) {
	if got := NormalizeSort("garbage"); got != "updatedAt,DESC" {
		t.Fatalf("expected canonical fallback, got %q", got)
	}
	if got := NormalizeSort("name,asc"); got != "name,ASC" {
		t.Fatalf("expected canonical form, got %q", got)
	}
}

func TestItemServiceByParent(t *testing.T) {
	db := setupTestDB(t)
	service := NewItemService(db)

	owner := seedUser(t, db, "itemowner1")
	stranger := seedUser(t, db, "stranger01")

	docs := seedFolder(t, db, owner, "docs", nil)
	seedFolder(t, db, owner, "music", nil)
	seedFile(t, db, owner, "root.txt", 10, nil)
	nested := seedFile(t, db, owner, "inside.txt", 20, docs)
	seedFile(t, db, stranger, "foreign.txt", 30, nil)

	t.Run("root listing", func(t *testing.T) {
		items, err := service.ByParent(owner.ID, nil, ParseSort("name,ASC"))
		if err != nil {
			t.Fatalf("ByParent failed: %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("expected 3 root items, got %d", len(items))
		}
		for _, item := range items {
			if item.Name == "inside.txt" || item.Name == "foreign.txt" {
				t.Fatalf("unexpected item %q in root listing", item.Name)
			}
		}
	})

	t.Run("folder listing", func(t *testing.T) {
		items, err := service.ByParent(owner.ID, &docs.ID, ParseSort("name,ASC"))
		if err != nil {
			t.Fatalf("ByParent failed: %v", err)
		}
		if len(items) != 1 || items[0].ID != nested.ID {
			t.Fatalf("expected only the nested file, got %+v", items)
		}
		if items[0].Type != models.ItemTypeFile {
			t.Fatalf("expected file type, got %q", items[0].Type)
		}
		if items[0].Size == nil || *items[0].Size != 20 {
			t.Fatalf("expected size 20, got %+v", items[0].Size)
		}
	})

	t.Run("folder rows project null size and format", func(t *testing.T) {
		items, err := service.ByParent(owner.ID, nil, ParseSort("name,ASC"))
		if err != nil {
			t.Fatalf("ByParent failed: %v", err)
		}
		for _, item := range items {
			if item.Type != models.ItemTypeFolder {
				continue
			}
			if item.Size != nil || item.Format != nil {
				t.Fatalf("folder %q must have nil size and format, got %+v", item.Name, item)
			}
		}
	})
}

func TestItemServiceOrdering(t *testing.T) {
	db := setupTestDB(t)
	service := NewItemService(db)
	owner := seedUser(t, db, "orderowner")

	seedFolder(t, db, owner, "beta", nil)
	seedFolder(t, db, owner, "Alpha", nil)
	seedFile(t, db, owner, "big.txt", 100, nil)
	seedFile(t, db, owner, "small.txt", 1, nil)

	expectOrder := func(t *testing.T, items []models.Item, want []string) {
		t.Helper()
		if len(items) != len(want) {
			t.Fatalf("expected %d items, got %d", len(want), len(items))
		}
		for i, name := range want {
			if items[i].Name != name {
				got := make([]string, len(items))
				for j, item := range items {
					got[j] = item.Name
				}
				t.Fatalf("expected order %v, got %v", want, got)
			}
		}
	}

	t.Run("name ascending is case-insensitive", func(t *testing.T) {
		items, err := service.ByParent(owner.ID, nil, ParseSort("name,ASC"))
		if err != nil {
			t.Fatalf("ByParent failed: %v", err)
		}
		expectOrder(t, items, []string{"Alpha", "beta", "big.txt", "small.txt"})
	})

	t.Run("size descending keeps folders first with name tiebreak", func(t *testing.T) {
		items, err := service.ByParent(owner.ID, nil, ParseSort("size,DESC"))
		if err != nil {
			t.Fatalf("ByParent failed: %v", err)
		}
		expectOrder(t, items, []string{"Alpha", "beta", "big.txt", "small.txt"})
	})

	t.Run("size ascending still puts folders first", func(t *testing.T) {
		items, err := service.ByParent(owner.ID, nil, ParseSort("size,ASC"))
		if err != nil {
			t.Fatalf("ByParent failed: %v", err)
		}
		expectOrder(t, items, []string{"Alpha", "beta", "small.txt", "big.txt"})
	})
}

// Every whitelisted sort must execute against the database: the LOWER(...)
// expressions are only legal in the ORDER BY because the union is wrapped in
// a subquery, so this guards the query shape itself.
func TestItemServiceAllSortsExecute(t *testing.T) {
	db := setupTestDB(t)
	service := NewItemService(db)
	owner := seedUser(t, db, "allsortown")

	folder := seedFolder(t, db, owner, "docs", nil)
	seedFile(t, db, owner, "a.txt", 1, nil)
	seedFile(t, db, owner, "b.txt", 2, folder)

	for column := range sortColumns {
		for _, direction := range []string{"ASC", "DESC"} {
			sort := ParseSort(column + "," + direction)

			if _, err := service.ByParent(owner.ID, nil, sort); err != nil {
				t.Fatalf("ByParent root failed for %s,%s: %v", column, direction, err)
			}
			if _, err := service.ByParent(owner.ID, &folder.ID, sort); err != nil {
				t.Fatalf("ByParent folder failed for %s,%s: %v", column, direction, err)
			}
			if _, err := service.Favorites(owner.ID, sort); err != nil {
				t.Fatalf("Favorites failed for %s,%s: %v", column, direction, err)
			}
			if _, err := service.Search(owner.ID, "a", sort); err != nil {
				t.Fatalf("Search failed for %s,%s: %v", column, direction, err)
			}
		}
	}
}

func TestItemServiceFavorites(t *testing.T) {
	db := setupTestDB(t)
	service := NewItemService(db)
	owner := seedUser(t, db, "favowner01")

	starred := seedFolder(t, db, owner, "starred", nil)
	seedFolder(t, db, owner, "plain", nil)
	if err := db.Model(starred).Update("favorite", true).Error; err != nil {
		t.Fatalf("failed starring folder: %v", err)
	}

	file := seedFile(t, db, owner, "loved.txt", 5, nil)
	seedFile(t, db, owner, "ignored.txt", 5, nil)
	if err := db.Model(file).Update("favorite", true).Error; err != nil {
		t.Fatalf("failed starring file: %v", err)
	}

	items, err := service.Favorites(owner.ID, ParseSort("name,ASC"))
	if err != nil {
		t.Fatalf("Favorites failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 favorites, got %d", len(items))
	}
	for _, item := range items {
		if !item.Favorite {
			t.Fatalf("non-favorite %q leaked into favorites", item.Name)
		}
	}
}

func TestItemServiceSearch(t *testing.T) {
	db := setupTestDB(t)
	service := NewItemService(db)
	owner := seedUser(t, db, "searchown1")

	seedFolder(t, db, owner, "Tax Records", nil)
	seedFile(t, db, owner, "tax-return.pdf", 5, nil)
	seedFile(t, db, owner, "holiday.jpg", 5, nil)

	items, err := service.Search(owner.ID, "TaX", ParseSort("name,ASC"))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(items))
	}

	items, err = service.Search(owner.ID, "nothing", ParseSort("name,ASC"))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no matches, got %d", len(items))
	}
}
