package service

import (
	"context"
	"errors"
	"time"

	"textile-store/internal/domain"
	"textile-store/internal/realtime"
	"textile-store/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidDiscount  = errors.New("percentage must be between 1 and 100 and the window must end after it starts")
	ErrDiscountInactive = errors.New("discount code is not active")
	ErrDiscountExpired  = errors.New("discount code is not valid at this time")
)

type DiscountInput struct {
	Code       string
	Percentage int
	StartsAt   time.Time
	ExpiresAt  time.Time
	MaxUses    int
	Active     bool
}

func (in DiscountInput) validate() error {
	if domain.NormalizeCode(in.Code) == "" || in.Percentage < 1 || in.Percentage > 100 || in.MaxUses < 0 {
		return ErrInvalidDiscount
	}
	if !in.ExpiresAt.After(in.StartsAt) {
		return ErrInvalidDiscount
	}
	return nil
}

// DiscountService administers discount codes and checks them at checkout
type DiscountService interface {
	List(ctx context.Context) ([]*domain.DiscountCode, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.DiscountCode, error)
	Create(ctx context.Context, in DiscountInput) (*domain.DiscountCode, error)
	Update(ctx context.Context, id uuid.UUID, in DiscountInput) (*domain.DiscountCode, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Validate returns the code if it can be redeemed at now.
	Validate(ctx context.Context, code string, now time.Time) (*domain.DiscountCode, error)
}

type discountService struct {
	repo     repository.DiscountRepository
	notifier *realtime.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewDiscountService(repo repository.DiscountRepository, notifier *realtime.Notifier, logger *zap.Logger) DiscountService {
	return &discountService{repo: repo, notifier: notifier, logger: logger, now: time.Now}
}

// checkRedeemable applies the redemption rules to an already loaded code.
func checkRedeemable(d *domain.DiscountCode, now time.Time) error {
	switch {
	case !d.Active:
		return ErrDiscountInactive
	case !d.IsValidAt(now):
		return ErrDiscountExpired
	case d.Exhausted():
		return repository.ErrDiscountExhausted
	}
	return nil
}

func (s *discountService) Validate(ctx context.Context, code string, now time.Time) (*domain.DiscountCode, error) {
	d, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := checkRedeemable(d, now); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *discountService) List(ctx context.Context) ([]*domain.DiscountCode, error) {
	return s.repo.List(ctx)
}

func (s *discountService) Get(ctx context.Context, id uuid.UUID) (*domain.DiscountCode, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *discountService) Create(ctx context.Context, in DiscountInput) (*domain.DiscountCode, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	d := &domain.DiscountCode{
		ID:        uuid.New(),
		CreatedAt: s.now(),
	}
	applyDiscountInput(d, in)

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("Discount code created", zap.String("code", d.Code), zap.Int("percentage", d.Percentage))
	s.notifier.Notify(ctx, realtime.TableDiscounts, domain.ChangeInsert, d)
	return d, nil
}

func (s *discountService) Update(ctx context.Context, id uuid.UUID, in DiscountInput) (*domain.DiscountCode, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyDiscountInput(d, in)

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, realtime.TableDiscounts, domain.ChangeUpdate, d)
	return d, nil
}

func applyDiscountInput(d *domain.DiscountCode, in DiscountInput) {
	d.Code = domain.NormalizeCode(in.Code)
	d.Percentage = in.Percentage
	d.StartsAt = in.StartsAt.UTC()
	d.ExpiresAt = in.ExpiresAt.UTC()
	d.MaxUses = in.MaxUses
	d.Active = in.Active
}

func (s *discountService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.notifier.Notify(ctx, realtime.TableDiscounts, domain.ChangeDelete, map[string]string{"id": id.String()})
	return nil
}
