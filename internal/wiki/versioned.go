package wiki

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"camelwiki/internal/metrics"
	"camelwiki/internal/models"
	"camelwiki/internal/page"
	"camelwiki/internal/revision"
	"camelwiki/internal/tracing"
)

// VersionedService keeps every save as an immutable revision.
type VersionedService struct {
	revisions *revision.Manager
	profiles  ProfileStore
	renderer  Renderer
	logger    zerolog.Logger
}

// NewVersionedService creates the versioned page service.
func NewVersionedService(revisions *revision.Manager, profiles ProfileStore, renderer Renderer, logger zerolog.Logger) *VersionedService {
	return &VersionedService{
		revisions: revisions,
		profiles:  profiles,
		renderer:  renderer,
		logger:    logger.With().Str("component", "wiki").Str("variant", VariantVersioned).Logger(),
	}
}

func (s *VersionedService) Variant() string { return VariantVersioned }

// View renders the current revision of a page.
func (s *VersionedService) View(ctx context.Context, title string) (*ViewResult, error) {
	ctx, span := tracing.StartSpan(ctx, "wiki.View")
	defer span.End()
	tracing.AddPageAttributes(span, VariantVersioned, title)

	rev, err := s.revisions.CurrentRevision(ctx, title)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, storeError("loading current revision", err)
	}
	if rev == nil {
		return &ViewResult{Title: title}, nil
	}

	content, err := s.renderer.Render(ctx, rev.Body)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("rendering %q: %w", title, err)
	}

	author, email := authorName(rev.Author)
	return &ViewResult{
		Title:       title,
		Exists:      true,
		HTML:        content,
		Author:      author,
		AuthorEmail: email,
		Version:     rev.VersionNumber,
		VersionDate: rev.CreatedAt,
	}, nil
}

// Edit returns the current markup of a page for editing.
func (s *VersionedService) Edit(ctx context.Context, title string, identity *models.Identity) (*EditResult, error) {
	if identity == nil {
		return nil, ErrAuthenticationRequired
	}
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}

	rev, err := s.revisions.CurrentRevision(ctx, title)
	if err != nil {
		return nil, storeError("loading current revision", err)
	}
	if rev == nil {
		return &EditResult{Title: title}, nil
	}
	author, _ := authorName(rev.Author)
	return &EditResult{
		Title:   title,
		Exists:  true,
		Body:    rev.Body,
		Author:  author,
		Version: rev.VersionNumber,
	}, nil
}

// Save appends a new revision authored by identity.
func (s *VersionedService) Save(ctx context.Context, in SaveInput, identity *models.Identity) (err error) {
	ctx, span := tracing.StartSpan(ctx, "wiki.Save")
	defer span.End()
	tracing.AddPageAttributes(span, VariantVersioned, in.Title)
	defer func() {
		tracing.RecordError(span, err)
		metrics.RecordSave(VariantVersioned, len(in.Body), err)
	}()

	if identity == nil {
		return ErrAuthenticationRequired
	}
	if err := ValidateTitle(in.Title); err != nil {
		return err
	}

	author, err := s.profiles.UpsertProfile(ctx, *identity)
	if err != nil {
		return storeError("upserting profile", err)
	}

	var comment *string
	if in.Comment != "" {
		comment = &in.Comment
	}
	rev, err := s.revisions.CreateRevision(ctx, in.Title, in.Body, comment, author.ID)
	if errors.Is(err, revision.ErrConflict) {
		s.logger.Warn().Err(err).Str("title", in.Title).Msg("save abandoned after repeated conflicts")
		return err
	}
	if err != nil {
		return storeError("creating revision", err)
	}

	s.logger.Info().Str("title", in.Title).Int("version", rev.VersionNumber).Str("author", identity.Key()).Msg("page saved")
	return nil
}

// History lists the revisions of a page, oldest first. A page without
// revisions yields page.ErrNotFound.
func (s *VersionedService) History(ctx context.Context, title string) ([]models.Revision, error) {
	revisions, err := s.revisions.History(ctx, title)
	if err != nil {
		return nil, storeError("listing revisions", err)
	}
	if len(revisions) == 0 {
		return nil, page.ErrNotFound
	}
	return revisions, nil
}

// Diff compares two versions of a page.
func (s *VersionedService) Diff(ctx context.Context, title string, from, to int) (*DiffResult, error) {
	ctx, span := tracing.StartSpan(ctx, "wiki.Diff")
	defer span.End()
	tracing.AddPageAttributes(span, VariantVersioned, title)

	fromRev, err := s.revision(ctx, title, from)
	if err != nil {
		return nil, err
	}
	toRev, err := s.revision(ctx, title, to)
	if err != nil {
		return nil, err
	}
	return &DiffResult{
		Title: title,
		From:  fromRev,
		To:    toRev,
		HTML:  diffHTML(fromRev.Body, toRev.Body),
	}, nil
}

func (s *VersionedService) revision(ctx context.Context, title string, version int) (*models.Revision, error) {
	rev, err := s.revisions.Revision(ctx, title, version)
	if errors.Is(err, page.ErrNotFound) {
		return nil, fmt.Errorf("version %d of %q: %w", version, title, err)
	}
	if err != nil {
		return nil, storeError("loading revision", err)
	}
	return rev, nil
}
