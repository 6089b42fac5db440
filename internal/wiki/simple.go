package wiki

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"camelwiki/internal/metrics"
	"camelwiki/internal/models"
	"camelwiki/internal/page"
	"camelwiki/internal/tracing"
)

// SimpleStore persists single-revision pages. page.SimpleRepository
// implements it.
type SimpleStore interface {
	Get(ctx context.Context, title string) (*models.SimplePage, error)
	Put(ctx context.Context, p *models.SimplePage) error
}

// SimpleService keeps one mutable body per page. Concurrent saves are last
// writer wins.
type SimpleService struct {
	pages    SimpleStore
	profiles ProfileStore
	renderer Renderer
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSimpleService creates the single-revision page service.
func NewSimpleService(pages SimpleStore, profiles ProfileStore, renderer Renderer, logger zerolog.Logger) *SimpleService {
	return &SimpleService{
		pages:    pages,
		profiles: profiles,
		renderer: renderer,
		logger:   logger.With().Str("component", "wiki").Str("variant", VariantSimple).Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *SimpleService) Variant() string { return VariantSimple }

func (s *SimpleService) load(ctx context.Context, title string) (*models.SimplePage, error) {
	p, err := s.pages.Get(ctx, title)
	if errors.Is(err, page.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("loading page", err)
	}
	return p, nil
}

// View renders the page body.
func (s *SimpleService) View(ctx context.Context, title string) (*ViewResult, error) {
	ctx, span := tracing.StartSpan(ctx, "wiki.View")
	defer span.End()
	tracing.AddPageAttributes(span, VariantSimple, title)

	p, err := s.load(ctx, title)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	if p == nil {
		return &ViewResult{Title: title}, nil
	}

	content, err := s.renderer.Render(ctx, p.Body)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("rendering %q: %w", title, err)
	}
	author, email := authorName(p.Author)
	return &ViewResult{
		Title:       title,
		Exists:      true,
		HTML:        content,
		Author:      author,
		AuthorEmail: email,
		VersionDate: p.UpdatedAt,
	}, nil
}

// Edit returns the page body for editing.
func (s *SimpleService) Edit(ctx context.Context, title string, identity *models.Identity) (*EditResult, error) {
	if identity == nil {
		return nil, ErrAuthenticationRequired
	}
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}

	p, err := s.load(ctx, title)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &EditResult{Title: title}, nil
	}
	author, _ := authorName(p.Author)
	return &EditResult{Title: title, Exists: true, Body: p.Body, Author: author}, nil
}

// Save overwrites the page body and author. The comment is not kept.
func (s *SimpleService) Save(ctx context.Context, in SaveInput, identity *models.Identity) (err error) {
	ctx, span := tracing.StartSpan(ctx, "wiki.Save")
	defer span.End()
	tracing.AddPageAttributes(span, VariantSimple, in.Title)
	defer func() {
		tracing.RecordError(span, err)
		metrics.RecordSave(VariantSimple, len(in.Body), err)
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

	err = s.pages.Put(ctx, &models.SimplePage{
		Title:     in.Title,
		Body:      in.Body,
		AuthorID:  author.ID,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return storeError("saving page", err)
	}

	s.logger.Info().Str("title", in.Title).Str("author", identity.Key()).Msg("page saved")
	return nil
}

func (s *SimpleService) History(context.Context, string) ([]models.Revision, error) {
	return nil, ErrHistoryUnsupported
}

func (s *SimpleService) Diff(context.Context, string, int, int) (*DiffResult, error) {
	return nil, ErrHistoryUnsupported
}
