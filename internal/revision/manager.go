// Package revision assigns version numbers to page revisions. Versions of a
// page are contiguous from 1 and are never reused; concurrent writers that
// race for the same version are retried against a fresh read.
package revision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"camelwiki/internal/metrics"
	"camelwiki/internal/models"
	"camelwiki/internal/page"
)

// ErrConflict is returned when a revision could not be stored after all
// attempts lost the race for the next version number.
var ErrConflict = errors.New("revision conflict: too many concurrent edits")

const (
	DefaultMaxAttempts = 5
	defaultBackoff     = 10 * time.Millisecond
)

// Store is the persistence the manager needs. page.Repository implements it.
type Store interface {
	LatestRevision(ctx context.Context, title string) (*models.Revision, error)
	GetRevision(ctx context.Context, title string, version int) (*models.Revision, error)
	ListRevisions(ctx context.Context, title string) ([]models.Revision, error)
	InsertRevision(ctx context.Context, title string, rev *models.Revision) error
}

// Manager creates and reads page revisions.
type Manager struct {
	store       Store
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// NewManager creates a revision manager. maxAttempts <= 0 selects
// DefaultMaxAttempts.
func NewManager(store Store, maxAttempts int, logger zerolog.Logger) *Manager {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Manager{
		store:       store,
		maxAttempts: maxAttempts,
		backoff:     defaultBackoff,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With().Str("component", "revision").Logger(),
	}
}

// CurrentRevision returns the revision with the highest version, or nil if
// the page does not exist or has no revisions.
func (m *Manager) CurrentRevision(ctx context.Context, title string) (*models.Revision, error) {
	rev, err := m.store.LatestRevision(ctx, title)
	if errors.Is(err, page.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rev, nil
}

// CreateRevision appends a revision with the next version number, creating
// the page on first save.
func (m *Manager) CreateRevision(ctx context.Context, title, body string, comment *string, authorID int64) (*models.Revision, error) {
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		current, err := m.CurrentRevision(ctx, title)
		if err != nil {
			return nil, err
		}
		next := 1
		if current != nil {
			next = current.VersionNumber + 1
		}

		rev := &models.Revision{
			VersionNumber: next,
			Body:          body,
			AuthorID:      authorID,
			Comment:       comment,
			CreatedAt:     m.now(),
		}
		err = m.store.InsertRevision(ctx, title, rev)
		if err == nil {
			return rev, nil
		}
		if !errors.Is(err, page.ErrVersionConflict) {
			return nil, err
		}

		lastErr = err
		metrics.RevisionConflicts.Inc()
		m.logger.Debug().Str("title", title).Int("version", next).Int("attempt", attempt).Msg("version taken, retrying")

		if attempt < m.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * m.backoff):
			}
		}
	}

	m.logger.Warn().Str("title", title).Int("attempts", m.maxAttempts).Msg("giving up on revision")
	return nil, fmt.Errorf("%w: %w", ErrConflict, lastErr)
}

// History lists the revisions of a page, oldest first.
func (m *Manager) History(ctx context.Context, title string) ([]models.Revision, error) {
	return m.store.ListRevisions(ctx, title)
}

// Revision returns one version of a page, or page.ErrNotFound.
func (m *Manager) Revision(ctx context.Context, title string, version int) (*models.Revision, error) {
	return m.store.GetRevision(ctx, title, version)
}
