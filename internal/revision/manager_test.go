package revision

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camelwiki/internal/database"
	"camelwiki/internal/models"
	"camelwiki/internal/page"
)

func newSQLiteManager(t *testing.T) (*Manager, int64) {
	t.Helper()
	db, err := database.New(database.SQLite, filepath.Join(t.TempDir(), "wiki.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	var authorID int64
	err = db.QueryRowContext(context.Background(),
		"INSERT INTO users (identity, nickname, email, created_at) VALUES (?, ?, ?, ?) RETURNING id",
		"local:alice", "alice", "alice@example.com", time.Now().UTC()).Scan(&authorID)
	require.NoError(t, err)

	m := NewManager(page.NewRepository(db), 50, zerolog.Nop())
	m.backoff = time.Millisecond
	return m, authorID
}

// flakyStore reports a version conflict for the first conflicts inserts.
type flakyStore struct {
	mu        sync.Mutex
	conflicts int
	inserts   int
	revisions []models.Revision
}

func (s *flakyStore) LatestRevision(_ context.Context, _ string) (*models.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.revisions) == 0 {
		return nil, page.ErrNotFound
	}
	rev := s.revisions[len(s.revisions)-1]
	return &rev, nil
}

func (s *flakyStore) GetRevision(_ context.Context, _ string, version int) (*models.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version < 1 || version > len(s.revisions) {
		return nil, page.ErrNotFound
	}
	rev := s.revisions[version-1]
	return &rev, nil
}

func (s *flakyStore) ListRevisions(_ context.Context, _ string) ([]models.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Revision(nil), s.revisions...), nil
}

func (s *flakyStore) InsertRevision(_ context.Context, _ string, rev *models.Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.conflicts > 0 {
		s.conflicts--
		return fmt.Errorf("insert: %w", page.ErrVersionConflict)
	}
	s.revisions = append(s.revisions, *rev)
	return nil
}

func TestCurrentRevisionMissingPage(t *testing.T) {
	m, _ := newSQLiteManager(t)
	rev, err := m.CurrentRevision(context.Background(), "NoSuchPage")
	require.NoError(t, err)
	assert.Nil(t, rev)
}

func TestSequentialCreatesAreContiguous(t *testing.T) {
	m, author := newSQLiteManager(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		rev, err := m.CreateRevision(ctx, "StartPage", fmt.Sprintf("body %d", i), nil, author)
		require.NoError(t, err)
		assert.Equal(t, i, rev.VersionNumber)
	}

	current, err := m.CurrentRevision(ctx, "StartPage")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 5, current.VersionNumber)
	assert.Equal(t, "body 5", current.Body)

	history, err := m.History(ctx, "StartPage")
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i, rev := range history {
		assert.Equal(t, i+1, rev.VersionNumber)
	}

	third, err := m.Revision(ctx, "StartPage", 3)
	require.NoError(t, err)
	assert.Equal(t, "body 3", third.Body)

	_, err = m.Revision(ctx, "StartPage", 6)
	assert.ErrorIs(t, err, page.ErrNotFound)
}

func TestCreateRevisionRetriesConflicts(t *testing.T) {
	store := &flakyStore{conflicts: 2}
	m := NewManager(store, 5, zerolog.Nop())
	m.backoff = time.Millisecond

	comment := "first"
	rev, err := m.CreateRevision(context.Background(), "StartPage", "hello", &comment, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, rev.VersionNumber)
	assert.Equal(t, 3, store.inserts)
	assert.Equal(t, "first", *rev.Comment)
}

func TestCreateRevisionGivesUp(t *testing.T) {
	store := &flakyStore{conflicts: 100}
	m := NewManager(store, 3, zerolog.Nop())
	m.backoff = time.Millisecond

	_, err := m.CreateRevision(context.Background(), "StartPage", "hello", nil, 1)
	require.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, page.ErrVersionConflict)
	assert.Equal(t, 3, store.inserts)
	assert.Empty(t, store.revisions)
}

func TestCreateRevisionStopsOnCanceledContext(t *testing.T) {
	store := &flakyStore{conflicts: 100}
	m := NewManager(store, 5, zerolog.Nop())
	m.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.CreateRevision(ctx, "StartPage", "hello", nil, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.inserts)
}

func TestConcurrentCreatesHaveNoDuplicates(t *testing.T) {
	m, author := newSQLiteManager(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.CreateRevision(ctx, "BusyPage", fmt.Sprintf("writer %d", i), nil, author)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	history, err := m.History(ctx, "BusyPage")
	require.NoError(t, err)
	require.Len(t, history, writers)
	for i, rev := range history {
		assert.Equal(t, i+1, rev.VersionNumber)
	}
}
