package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProvisional(t *testing.T) {
	assert.True(t, IsProvisional("tmp-123"))
	assert.False(t, IsProvisional("01HZX3"))
	assert.False(t, IsProvisional(""))
}

func TestPage_IsBlank(t *testing.T) {
	tests := []struct {
		name     string
		page     Page
		expected bool
	}{
		{"empty", Page{}, true},
		{"whitespace only", Page{Title: "  ", Content: "\n\t"}, true},
		{"title only", Page{Title: "Groceries"}, false},
		{"content only", Page{Content: "<p>milk</p>"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.page.IsBlank())
		})
	}
}

func TestPage_DisplayTitle(t *testing.T) {
	assert.Equal(t, UntitledPage, Page{}.DisplayTitle())
	assert.Equal(t, UntitledPage, Page{Title: "   "}.DisplayTitle())
	assert.Equal(t, "Journal", Page{Title: "Journal"}.DisplayTitle())
}

func TestPage_Clone_DoesNotShareFolderID(t *testing.T) {
	original := Page{ID: "p1", FolderID: Ptr("f1")}

	clone := original.Clone()
	*clone.FolderID = "f2"

	assert.Equal(t, "f1", *original.FolderID)
}

func TestPageFields_Apply(t *testing.T) {
	page := Page{ID: "p1", Title: "Old", Content: "body", FolderID: Ptr("f1")}

	t.Run("sets only given fields", func(t *testing.T) {
		updated := PageFields{Title: Ptr("New")}.Apply(page)
		assert.Equal(t, "New", updated.Title)
		assert.Equal(t, "body", updated.Content)
		require.NotNil(t, updated.FolderID)
		assert.Equal(t, "f1", *updated.FolderID)
	})

	t.Run("empty folder id unfiles", func(t *testing.T) {
		updated := PageFields{FolderID: Ptr("")}.Apply(page)
		assert.Nil(t, updated.FolderID)
		assert.NotNil(t, page.FolderID)
	})

	t.Run("favourite", func(t *testing.T) {
		updated := PageFields{IsFavorite: Ptr(true)}.Apply(page)
		assert.True(t, updated.IsFavorite)
	})
}

func TestPageFields_Merge(t *testing.T) {
	first := PageFields{Title: Ptr("a"), Content: Ptr("one")}
	second := PageFields{Content: Ptr("two")}

	merged := first.Merge(second)

	assert.Equal(t, "a", *merged.Title)
	assert.Equal(t, "two", *merged.Content)
	assert.Nil(t, merged.FolderID)
	assert.False(t, merged.IsEmpty())
	assert.True(t, PageFields{}.IsEmpty())
}
