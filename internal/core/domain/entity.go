package domain

import (
	"strings"
	"time"
)

// ProvisionalPrefix tags ids minted on the client before the remote
// store has assigned a durable id.
const ProvisionalPrefix = "tmp-"

// UntitledPage is the display title of a page with an empty title.
const UntitledPage = "Untitled Page"

// IsProvisional returns true if id was minted by the client.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}

// EntityKind distinguishes pages from folders.
type EntityKind string

// Entity kinds.
const (
	KindPage   EntityKind = "page"
	KindFolder EntityKind = "folder"
)

// String returns the string representation.
func (k EntityKind) String() string {
	return string(k)
}

// Page is a rich-text note.
type Page struct {
	// ID is durable (store-assigned) or provisional (see IsProvisional).
	ID string

	// OwnerID scopes every read and write.
	OwnerID string

	// Title is the page title. May be empty.
	Title string

	// Content is the opaque rich-text payload. Never parsed.
	Content string

	// FolderID is the containing folder, or nil when unfiled.
	FolderID *string

	// IsFavorite marks the page as a favourite.
	IsFavorite bool

	// CreatedAt and UpdatedAt are advisory only.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsBlank returns true if both title and content are empty after trimming.
// A blank page is treated as a draft that was never really created.
func (p Page) IsBlank() bool {
	return strings.TrimSpace(p.Title) == "" && strings.TrimSpace(p.Content) == ""
}

// DisplayTitle returns the title, or UntitledPage when it is empty.
func (p Page) DisplayTitle() string {
	if strings.TrimSpace(p.Title) == "" {
		return UntitledPage
	}
	return p.Title
}

// InFolder returns true if the page is filed under folderID.
func (p Page) InFolder(folderID string) bool {
	return p.FolderID != nil && *p.FolderID == folderID
}

// Clone returns a copy that shares no pointers with p.
func (p Page) Clone() Page {
	if p.FolderID != nil {
		id := *p.FolderID
		p.FolderID = &id
	}
	return p
}

// Folder groups pages. Deleting a folder unfiles its pages.
type Folder struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PageFields is a partial page update. Nil fields are left unchanged.
type PageFields struct {
	Title   *string
	Content *string

	// FolderID moves the page. A pointer to "" unfiles it.
	FolderID *string

	IsFavorite *bool
}

// IsEmpty returns true if no field is set.
func (f PageFields) IsEmpty() bool {
	return f.Title == nil && f.Content == nil && f.FolderID == nil && f.IsFavorite == nil
}

// Merge returns f overlaid with the fields set in other.
func (f PageFields) Merge(other PageFields) PageFields {
	if other.Title != nil {
		f.Title = other.Title
	}
	if other.Content != nil {
		f.Content = other.Content
	}
	if other.FolderID != nil {
		f.FolderID = other.FolderID
	}
	if other.IsFavorite != nil {
		f.IsFavorite = other.IsFavorite
	}
	return f
}

// Apply returns p with the fields set in f.
func (f PageFields) Apply(p Page) Page {
	p = p.Clone()
	if f.Title != nil {
		p.Title = *f.Title
	}
	if f.Content != nil {
		p.Content = *f.Content
	}
	if f.FolderID != nil {
		if *f.FolderID == "" {
			p.FolderID = nil
		} else {
			id := *f.FolderID
			p.FolderID = &id
		}
	}
	if f.IsFavorite != nil {
		p.IsFavorite = *f.IsFavorite
	}
	return p
}

// NewPageInput holds the fields for creating a page.
type NewPageInput struct {
	Title    string
	Content  string
	FolderID *string
}

// FolderFields is a partial folder update.
type FolderFields struct {
	Name *string
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
