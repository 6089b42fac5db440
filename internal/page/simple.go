package page

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"camelwiki/internal/database"
	"camelwiki/internal/models"
)

// SimpleRepository stores single-revision pages. Saves overwrite in place
// and the last writer wins.
type SimpleRepository struct {
	DB *database.DB
}

// NewSimpleRepository creates a new single-revision page repository.
func NewSimpleRepository(db *database.DB) *SimpleRepository {
	return &SimpleRepository{DB: db}
}

// Get loads a page together with its author profile.
func (r *SimpleRepository) Get(ctx context.Context, title string) (*models.SimplePage, error) {
	var p models.SimplePage
	var author models.User
	err := r.DB.QueryRowContext(ctx, r.DB.Rebind(`
SELECT s.title, s.body, s.author_id, s.updated_at, u.id, u.identity, u.nickname, u.email, u.created_at
FROM simple_pages s
JOIN users u ON u.id = s.author_id
WHERE s.title = ?`), title).
		Scan(&p.Title, &p.Body, &p.AuthorID, &p.UpdatedAt, &author.ID, &author.Identity, &author.Nickname, &author.Email, &author.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading page %q: %w", title, err)
	}
	p.Author = &author
	return &p, nil
}

// Put creates the page or overwrites its body and author.
func (r *SimpleRepository) Put(ctx context.Context, p *models.SimplePage) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
INSERT INTO simple_pages (title, body, author_id, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (title) DO UPDATE SET body = excluded.body, author_id = excluded.author_id, updated_at = excluded.updated_at`),
		p.Title, p.Body, p.AuthorID, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error saving page %q: %w", p.Title, err)
	}
	return nil
}
