package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/mirae/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/core/ports/driven"
)

// DatabaseFile is the file name of the database inside the data directory.
const DatabaseFile = "mirae.db"

// Store is a SQLite-backed page and folder store.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.mirae/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".mirae", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// WAL lets the CLI read while another process writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
		now:  time.Now,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SetClock replaces the clock used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// EntityStore returns an EntityStore interface backed by this store.
func (s *Store) EntityStore() driven.EntityStore {
	return &entityStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("starting migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// =============================================================================
// EntityStore Implementation
// =============================================================================

type entityStore struct {
	store *Store
}

var _ driven.EntityStore = (*entityStore)(nil)

const pageColumns = "id, owner_id, title, content, folder_id, is_favorite, created_at, updated_at"

const folderColumns = "id, owner_id, name, created_at, updated_at"

// ListPages returns the owner's pages, most recently updated first.
func (s *entityStore) ListPages(ctx context.Context, ownerID string) ([]domain.Page, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+pageColumns+` FROM pages
		WHERE owner_id = ?
		ORDER BY updated_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.Page //nolint:prealloc // size unknown from query
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pages: %w", err)
	}
	return pages, nil
}

// ListFolders returns the owner's folders, oldest first.
func (s *entityStore) ListFolders(ctx context.Context, ownerID string) ([]domain.Folder, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+folderColumns+` FROM folders
		WHERE owner_id = ?
		ORDER BY created_at, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	defer rows.Close()

	var folders []domain.Folder //nolint:prealloc // size unknown from query
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, *folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating folders: %w", err)
	}
	return folders, nil
}

// CreatePage stores a new page with a durable id.
func (s *entityStore) CreatePage(ctx context.Context, ownerID string, input domain.NewPageInput) (*domain.Page, error) {
	if ownerID == "" {
		return nil, domain.ErrNoOwner
	}
	if input.FolderID != nil {
		if err := s.checkFolder(ctx, s.store.db, *input.FolderID, ownerID); err != nil {
			return nil, err
		}
	}

	now := s.store.now()
	page := domain.Page{
		ID:        ulid.Make().String(),
		OwnerID:   ownerID,
		Title:     input.Title,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.FolderID != nil {
		page.FolderID = domain.Ptr(*input.FolderID)
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO pages (`+pageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, page.ID, page.OwnerID, page.Title, page.Content, nullString(page.FolderID),
		page.IsFavorite, page.CreatedAt.UnixNano(), page.UpdatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("creating page: %w", err)
	}
	return &page, nil
}

// UpdatePage applies a partial update inside a transaction.
func (s *entityStore) UpdatePage(
	ctx context.Context, id, ownerID string, fields domain.PageFields,
) (*domain.Page, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	page, err := scanPage(tx.QueryRowContext(ctx,
		"SELECT "+pageColumns+" FROM pages WHERE id = ? AND owner_id = ?", id, ownerID))
	if err != nil {
		return nil, err
	}
	if fields.FolderID != nil && *fields.FolderID != "" {
		if err := s.checkFolder(ctx, tx, *fields.FolderID, ownerID); err != nil {
			return nil, err
		}
	}

	updated := fields.Apply(*page)
	updated.UpdatedAt = s.store.now()

	_, err = tx.ExecContext(ctx, `
		UPDATE pages SET title = ?, content = ?, folder_id = ?, is_favorite = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, updated.Title, updated.Content, nullString(updated.FolderID), updated.IsFavorite,
		updated.UpdatedAt.UnixNano(), id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("updating page: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing page update: %w", err)
	}
	return &updated, nil
}

// DeletePage removes a page.
func (s *entityStore) DeletePage(ctx context.Context, id, ownerID string) error {
	result, err := s.store.db.ExecContext(ctx, "DELETE FROM pages WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting page: %w", err)
	}
	return requireAffected(result, "page", id)
}

// MovePage files the page under folderID, or unfiles it.
func (s *entityStore) MovePage(ctx context.Context, pageID, ownerID string, folderID *string) (*domain.Page, error) {
	target := ""
	if folderID != nil {
		target = *folderID
	}
	return s.UpdatePage(ctx, pageID, ownerID, domain.PageFields{FolderID: &target})
}

// SetFavorite marks or unmarks the page as a favourite.
func (s *entityStore) SetFavorite(ctx context.Context, pageID, ownerID string, favorite bool) (*domain.Page, error) {
	return s.UpdatePage(ctx, pageID, ownerID, domain.PageFields{IsFavorite: &favorite})
}

// CreateFolder stores a new folder with a durable id.
func (s *entityStore) CreateFolder(ctx context.Context, ownerID, name string) (*domain.Folder, error) {
	if ownerID == "" {
		return nil, domain.ErrNoOwner
	}

	now := s.store.now()
	folder := domain.Folder{
		ID:        ulid.Make().String(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO folders (`+folderColumns+`)
		VALUES (?, ?, ?, ?, ?)
	`, folder.ID, folder.OwnerID, folder.Name, folder.CreatedAt.UnixNano(), folder.UpdatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("creating folder: %w", err)
	}
	return &folder, nil
}

// UpdateFolder renames a folder.
func (s *entityStore) UpdateFolder(
	ctx context.Context, id, ownerID string, fields domain.FolderFields,
) (*domain.Folder, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	folder, err := scanFolder(tx.QueryRowContext(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE id = ? AND owner_id = ?", id, ownerID))
	if err != nil {
		return nil, err
	}
	if fields.Name != nil {
		folder.Name = *fields.Name
	}
	folder.UpdatedAt = s.store.now()

	_, err = tx.ExecContext(ctx, "UPDATE folders SET name = ?, updated_at = ? WHERE id = ?",
		folder.Name, folder.UpdatedAt.UnixNano(), id)
	if err != nil {
		return nil, fmt.Errorf("updating folder: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing folder update: %w", err)
	}
	return folder, nil
}

// DeleteFolder removes a folder and unfiles its pages in one transaction.
func (s *entityStore) DeleteFolder(ctx context.Context, id, ownerID string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := s.checkFolder(ctx, tx, id, ownerID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE pages SET folder_id = NULL WHERE folder_id = ? AND owner_id = ?", id, ownerID); err != nil {
		return fmt.Errorf("unfiling pages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM folders WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting folder: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing folder delete: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// checkFolder verifies a folder exists for ownerID.
func (s *entityStore) checkFolder(ctx context.Context, q queryer, id, ownerID string) error {
	var found string
	err := q.QueryRowContext(ctx, "SELECT id FROM folders WHERE id = ? AND owner_id = ?", id, ownerID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking folder: %w", err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanPage scans a single page row.
func scanPage(row scanner) (*domain.Page, error) {
	var page domain.Page
	var folderID sql.NullString
	var createdAt, updatedAt int64

	if err := row.Scan(&page.ID, &page.OwnerID, &page.Title, &page.Content, &folderID,
		&page.IsFavorite, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning page: %w", err)
	}

	if folderID.Valid {
		page.FolderID = domain.Ptr(folderID.String)
	}
	page.CreatedAt = time.Unix(0, createdAt).UTC()
	page.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &page, nil
}

// scanFolder scans a single folder row.
func scanFolder(row scanner) (*domain.Folder, error) {
	var folder domain.Folder
	var createdAt, updatedAt int64

	if err := row.Scan(&folder.ID, &folder.OwnerID, &folder.Name, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning folder: %w", err)
	}

	folder.CreatedAt = time.Unix(0, createdAt).UTC()
	folder.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &folder, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func requireAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}
