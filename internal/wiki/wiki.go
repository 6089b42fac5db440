// Package wiki implements the page operations behind the HTTP handlers:
// viewing, editing and saving pages for the versioned and the simple page
// models, plus revision history and diffs for the versioned one.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sergi/go-diff/diffmatchpatch"

	"camelwiki/internal/models"
)

const (
	VariantVersioned = "versioned"
	VariantSimple    = "simple"

	maxTitleBytes = 255
)

var (
	// ErrAuthenticationRequired is returned by Edit and Save without an identity.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrInvalidTitle is returned when a title cannot name a page.
	ErrInvalidTitle = errors.New("invalid page title")

	// ErrStoreUnavailable wraps unexpected storage failures.
	ErrStoreUnavailable = errors.New("page store unavailable")

	// ErrHistoryUnsupported is returned by History and Diff of the simple variant.
	ErrHistoryUnsupported = errors.New("page history is not kept")
)

// Service is the set of page operations offered by both variants.
type Service interface {
	Variant() string
	View(ctx context.Context, title string) (*ViewResult, error)
	Edit(ctx context.Context, title string, identity *models.Identity) (*EditResult, error)
	Save(ctx context.Context, in SaveInput, identity *models.Identity) error
	History(ctx context.Context, title string) ([]models.Revision, error)
	Diff(ctx context.Context, title string, from, to int) (*DiffResult, error)
}

// ProfileStore creates wiki profiles for identities on first save.
// auth.Repository implements it.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, identity models.Identity) (*models.User, error)
}

// Renderer converts page markup to HTML. render.Cached implements it.
type Renderer interface {
	Render(ctx context.Context, markup string) (string, error)
}

// ViewResult is what the view page displays. Exists is false for pages that
// were never saved, and every other field except Title is then blank.
type ViewResult struct {
	Title       string
	Exists      bool
	HTML        string
	Author      string
	AuthorEmail string
	Version     int
	VersionDate time.Time
}

// EditResult prefills the edit form with the raw markup.
type EditResult struct {
	Title   string
	Exists  bool
	Body    string
	Author  string
	Version int
}

// SaveInput is a submitted edit form.
type SaveInput struct {
	Title   string
	Body    string
	Comment string
}

// DiffResult compares two revisions of a page.
type DiffResult struct {
	Title string
	From  *models.Revision
	To    *models.Revision
	HTML  string
}

// ValidateTitle checks that title can name a page.
func ValidateTitle(title string) error {
	err := validation.Validate(title,
		validation.Required.Error("title is required"),
		validation.By(func(any) error {
			if strings.Contains(title, "/") {
				return errors.New("title must not contain '/'")
			}
			if len(title) > maxTitleBytes {
				return fmt.Errorf("title must be at most %d bytes", maxTitleBytes)
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTitle, err)
	}
	return nil
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func authorName(u *models.User) (nickname, email string) {
	if u == nil {
		return "", ""
	}
	return u.Nickname, u.Email
}

// diffHTML marks up the changes from one body to another with <ins>, <del>
// and <span> elements. The text itself is escaped.
func diffHTML(from, to string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(from, to, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, diff := range diffs {
		text := html.EscapeString(diff.Text)
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			b.WriteString("<ins>" + text + "</ins>")
		case diffmatchpatch.DiffDelete:
			b.WriteString("<del>" + text + "</del>")
		case diffmatchpatch.DiffEqual:
			b.WriteString("<span>" + text + "</span>")
		}
	}
	return b.String()
}
