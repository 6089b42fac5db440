package page

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"camelwiki/internal/database"
	"camelwiki/internal/models"
)

var (
	// ErrNotFound is returned when a page or revision does not exist.
	ErrNotFound = errors.New("page not found")

	// ErrVersionConflict is returned when the version being written already
	// exists, or the store could not take the write lock in time.
	ErrVersionConflict = errors.New("revision version conflict")
)

// Repository provides access to versioned pages and their revisions.
type Repository struct {
	DB *database.DB
}

// NewRepository creates a new page repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{DB: db}
}

const revisionSelect = `
SELECT r.id, r.page_id, r.version_number, r.content, r.author_id, r.comment, r.created_at,
       u.id, u.identity, u.nickname, u.email, u.created_at
FROM revisions r
JOIN pages p ON p.id = r.page_id
JOIN users u ON u.id = r.author_id
WHERE p.title = ?`

type scanner interface {
	Scan(dest ...any) error
}

func scanRevision(row scanner) (*models.Revision, error) {
	var rev models.Revision
	var author models.User
	err := row.Scan(&rev.ID, &rev.PageID, &rev.VersionNumber, &rev.Body, &rev.AuthorID, &rev.Comment, &rev.CreatedAt,
		&author.ID, &author.Identity, &author.Nickname, &author.Email, &author.CreatedAt)
	if err != nil {
		return nil, err
	}
	rev.Author = &author
	return &rev, nil
}

// FindByTitle finds a page by its title.
func (r *Repository) FindByTitle(ctx context.Context, title string) (models.Page, error) {
	var p models.Page
	err := r.DB.QueryRowContext(ctx, r.DB.Rebind("SELECT id, title, created_at FROM pages WHERE title = ?"), title).
		Scan(&p.ID, &p.Title, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Page{}, ErrNotFound
	}
	if err != nil {
		return models.Page{}, fmt.Errorf("error finding page %q: %w", title, err)
	}
	return p, nil
}

// LatestRevision returns the revision with the highest version number for the
// page. A page without revisions yields ErrNotFound, same as a missing page.
func (r *Repository) LatestRevision(ctx context.Context, title string) (*models.Revision, error) {
	row := r.DB.QueryRowContext(ctx, r.DB.Rebind(revisionSelect+" ORDER BY r.version_number DESC LIMIT 1"), title)
	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading latest revision of %q: %w", title, err)
	}
	return rev, nil
}

// GetRevision returns a specific version of a page.
func (r *Repository) GetRevision(ctx context.Context, title string, version int) (*models.Revision, error) {
	row := r.DB.QueryRowContext(ctx, r.DB.Rebind(revisionSelect+" AND r.version_number = ?"), title, version)
	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading revision %d of %q: %w", version, title, err)
	}
	return rev, nil
}

// ListRevisions lists all revisions of a page, oldest first.
func (r *Repository) ListRevisions(ctx context.Context, title string) ([]models.Revision, error) {
	rows, err := r.DB.QueryContext(ctx, r.DB.Rebind(revisionSelect+" ORDER BY r.version_number ASC"), title)
	if err != nil {
		return nil, fmt.Errorf("error listing revisions of %q: %w", title, err)
	}
	defer rows.Close()

	var revisions []models.Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, *rev)
	}
	return revisions, rows.Err()
}

// InsertRevision stores rev as a new revision of the page with the given
// title, creating the page row if needed, in a single transaction. The write
// only succeeds if rev.VersionNumber is not taken yet; otherwise
// ErrVersionConflict is returned and nothing is persisted.
func (r *Repository) InsertRevision(ctx context.Context, title string, rev *models.Revision) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return classifyWriteError("error starting transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, r.DB.Rebind("INSERT INTO pages (title, created_at) VALUES (?, ?) ON CONFLICT (title) DO NOTHING"), title, rev.CreatedAt)
	if err != nil {
		return classifyWriteError("error creating page", err)
	}

	if err := tx.QueryRowContext(ctx, r.DB.Rebind("SELECT id FROM pages WHERE title = ?"), title).Scan(&rev.PageID); err != nil {
		return classifyWriteError("error loading page id", err)
	}

	err = tx.QueryRowContext(ctx, r.DB.Rebind(
		"INSERT INTO revisions (page_id, version_number, content, author_id, comment, created_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id"),
		rev.PageID, rev.VersionNumber, rev.Body, rev.AuthorID, rev.Comment, rev.CreatedAt).Scan(&rev.ID)
	if err != nil {
		return classifyWriteError("error creating revision", err)
	}

	if err := tx.Commit(); err != nil {
		return classifyWriteError("error committing transaction", err)
	}
	return nil
}

func classifyWriteError(msg string, err error) error {
	if database.IsUniqueViolation(err) || database.IsTransient(err) {
		return fmt.Errorf("%s: %w: %w", msg, ErrVersionConflict, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
