package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
	"unicode"

	"textile-store/internal/domain"
	"textile-store/internal/realtime"
	"textile-store/internal/repository"
	"textile-store/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidPrice   = errors.New("a fabric needs a positive price in at least one currency")
	ErrInvalidStock   = errors.New("stock cannot be negative")
	ErrImageNotFound  = errors.New("image not found on fabric")
	ErrInvalidName    = errors.New("name must contain at least one letter or digit")
	ErrUnknownFabrics = errors.New("unknown fabric ids")
)

// FabricInput is the admin-editable part of a fabric.
type FabricInput struct {
	Name        string
	Description string
	CategoryID  *uuid.UUID
	PriceNGN    decimal.Decimal
	PriceUSD    decimal.Decimal
	Stock       int
	IsFeatured  bool
	IsActive    bool
}

type CategoryInput struct {
	Name        string
	Description string
}

// CatalogService manages fabrics, categories and fabric images
type CatalogService interface {
	ListFabrics(ctx context.Context, filter repository.FabricFilter) ([]*domain.Fabric, int, error)
	GetFabric(ctx context.Context, id uuid.UUID) (*domain.Fabric, error)
	GetFabricBySlug(ctx context.Context, slug string) (*domain.Fabric, error)
	CreateFabric(ctx context.Context, in FabricInput) (*domain.Fabric, error)
	UpdateFabric(ctx context.Context, id uuid.UUID, in FabricInput) (*domain.Fabric, error)
	DeleteFabric(ctx context.Context, id uuid.UUID) error
	UploadImage(ctx context.Context, fabricID uuid.UUID, r io.Reader, size int64, contentType string) (*domain.Fabric, error)
	RemoveImage(ctx context.Context, fabricID uuid.UUID, imageURL string) (*domain.Fabric, error)

	ListCategories(ctx context.Context) ([]*domain.Category, error)
	GetCategory(ctx context.Context, idOrSlug string) (*domain.Category, error)
	CreateCategory(ctx context.Context, in CategoryInput) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type catalogService struct {
	store    repository.Store
	storage  storage.Storage
	notifier *realtime.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewCatalogService(store repository.Store, objects storage.Storage, notifier *realtime.Notifier, logger *zap.Logger) CatalogService {
	return &catalogService{
		store:    store,
		storage:  objects,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Slugify lower-cases name and joins its letter and digit runs with hyphens,
// e.g. "Kente  Royal Gold!" becomes "kente-royal-gold".
func Slugify(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

func (in FabricInput) validate() error {
	if !in.PriceNGN.IsPositive() && !in.PriceUSD.IsPositive() {
		return ErrInvalidPrice
	}
	if in.PriceNGN.IsNegative() || in.PriceUSD.IsNegative() {
		return ErrInvalidPrice
	}
	if in.Stock < 0 {
		return ErrInvalidStock
	}
	if Slugify(in.Name) == "" {
		return ErrInvalidName
	}
	return nil
}

func (s *catalogService) ListFabrics(ctx context.Context, filter repository.FabricFilter) ([]*domain.Fabric, int, error) {
	return s.store.Fabrics().List(ctx, filter)
}

func (s *catalogService) GetFabric(ctx context.Context, id uuid.UUID) (*domain.Fabric, error) {
	return s.store.Fabrics().FindByID(ctx, id)
}

func (s *catalogService) GetFabricBySlug(ctx context.Context, slug string) (*domain.Fabric, error) {
	return s.store.Fabrics().FindBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
}

func (s *catalogService) CreateFabric(ctx context.Context, in FabricInput) (*domain.Fabric, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	fabric := &domain.Fabric{
		ID:        uuid.New(),
		Images:    []string{},
		CreatedAt: now,
	}
	applyFabricInput(fabric, in, now)

	if err := s.store.Fabrics().Create(ctx, fabric); err != nil {
		return nil, err
	}

	s.logger.Info("Fabric created", zap.String("fabric_id", fabric.ID.String()), zap.String("slug", fabric.Slug))
	s.notifier.Notify(ctx, realtime.TableFabrics, domain.ChangeInsert, fabric)
	return fabric, nil
}

func (s *catalogService) UpdateFabric(ctx context.Context, id uuid.UUID, in FabricInput) (*domain.Fabric, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	fabric, err := s.store.Fabrics().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyFabricInput(fabric, in, s.now())

	if err := s.store.Fabrics().Update(ctx, fabric); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, realtime.TableFabrics, domain.ChangeUpdate, fabric)
	return fabric, nil
}

func applyFabricInput(f *domain.Fabric, in FabricInput, now time.Time) {
	f.Name = strings.TrimSpace(in.Name)
	f.Slug = Slugify(in.Name)
	f.Description = strings.TrimSpace(in.Description)
	f.CategoryID = in.CategoryID
	f.PriceNGN = in.PriceNGN
	f.PriceUSD = in.PriceUSD
	f.Stock = in.Stock
	f.IsFeatured = in.IsFeatured
	f.IsActive = in.IsActive
	f.UpdatedAt = now
}

func (s *catalogService) DeleteFabric(ctx context.Context, id uuid.UUID) error {
	fabric, err := s.store.Fabrics().FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Fabrics().Delete(ctx, id); err != nil {
		return err
	}

	s.removeObjects(ctx, fabric.Images)
	s.notifier.Notify(ctx, realtime.TableFabrics, domain.ChangeDelete, map[string]string{"id": id.String()})
	return nil
}

// removeObjects deletes stored images on a best-effort basis; the rows
// referencing them are already gone.
func (s *catalogService) removeObjects(ctx context.Context, urls []string) {
	for _, u := range urls {
		key, ok := storage.KeyFromURL(s.storage, u)
		if !ok {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to delete image object", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *catalogService) UploadImage(ctx context.Context, fabricID uuid.UUID, r io.Reader, size int64, contentType string) (*domain.Fabric, error) {
	ext, err := storage.ValidateImage(contentType, size)
	if err != nil {
		return nil, err
	}

	fabric, err := s.store.Fabrics().FindByID(ctx, fabricID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("fabrics/%s/%s%s", fabricID, uuid.New(), ext)
	publicURL, err := s.storage.Upload(ctx, key, r, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	fabric.Images = append(fabric.Images, publicURL)
	fabric.UpdatedAt = s.now()
	if err := s.store.Fabrics().Update(ctx, fabric); err != nil {
		s.removeObjects(ctx, []string{publicURL})
		return nil, err
	}

	s.logger.Info("Fabric image uploaded", zap.String("fabric_id", fabricID.String()), zap.String("key", key))
	s.notifier.Notify(ctx, realtime.TableFabrics, domain.ChangeUpdate, fabric)
	return fabric, nil
}

func (s *catalogService) RemoveImage(ctx context.Context, fabricID uuid.UUID, imageURL string) (*domain.Fabric, error) {
	fabric, err := s.store.Fabrics().FindByID(ctx, fabricID)
	if err != nil {
		return nil, err
	}

	idx := slices.Index(fabric.Images, imageURL)
	if idx < 0 {
		return nil, ErrImageNotFound
	}
	fabric.Images = slices.Delete(fabric.Images, idx, idx+1)
	fabric.UpdatedAt = s.now()

	if err := s.store.Fabrics().Update(ctx, fabric); err != nil {
		return nil, err
	}

	s.removeObjects(ctx, []string{imageURL})
	s.notifier.Notify(ctx, realtime.TableFabrics, domain.ChangeUpdate, fabric)
	return fabric, nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.store.Categories().List(ctx)
}

// GetCategory looks a category up by id, falling back to its slug.
func (s *catalogService) GetCategory(ctx context.Context, idOrSlug string) (*domain.Category, error) {
	if id, err := uuid.Parse(idOrSlug); err == nil {
		return s.store.Categories().FindByID(ctx, id)
	}
	return s.store.Categories().FindBySlug(ctx, strings.ToLower(idOrSlug))
}

func (s *catalogService) CreateCategory(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	slug := Slugify(in.Name)
	if slug == "" {
		return nil, ErrInvalidName
	}

	category := &domain.Category{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(in.Name),
		Slug:        slug,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.now(),
	}
	if err := s.store.Categories().Create(ctx, category); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, realtime.TableCategories, domain.ChangeInsert, category)
	return category, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (*domain.Category, error) {
	slug := Slugify(in.Name)
	if slug == "" {
		return nil, ErrInvalidName
	}

	category, err := s.store.Categories().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Name = strings.TrimSpace(in.Name)
	category.Slug = slug
	category.Description = strings.TrimSpace(in.Description)

	if err := s.store.Categories().Update(ctx, category); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, realtime.TableCategories, domain.ChangeUpdate, category)
	return category, nil
}

// DeleteCategory removes a category. Its fabrics stay in the catalog
// without a category.
func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Categories().Delete(ctx, id); err != nil {
		return err
	}
	s.notifier.Notify(ctx, realtime.TableCategories, domain.ChangeDelete, map[string]string{"id": id.String()})
	return nil
}
