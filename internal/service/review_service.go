package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"textile-store/internal/domain"
	"textile-store/internal/realtime"
	"textile-store/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxCommentLength = 2000

var (
	ErrInvalidRating  = errors.New("rating must be between 1 and 5")
	ErrCommentTooLong = errors.New("comment is too long")
)

// FabricReviews is the public review listing for one fabric
type FabricReviews struct {
	Summary *domain.RatingSummary `json:"summary"`
	Reviews []*domain.Review      `json:"reviews"`
}

// ReviewService handles shopper reviews and their moderation
type ReviewService interface {
	Create(ctx context.Context, userID, fabricID uuid.UUID, rating int, comment string) (*domain.Review, error)
	ListForFabric(ctx context.Context, fabricID uuid.UUID) (*FabricReviews, error)
	ListPending(ctx context.Context) ([]*domain.Review, error)
	List(ctx context.Context, filter repository.ReviewFilter) ([]*domain.Review, int, error)
	Approve(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type reviewService struct {
	reviews  repository.ReviewRepository
	users    repository.UserRepository
	notifier *realtime.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewReviewService(reviews repository.ReviewRepository, users repository.UserRepository, notifier *realtime.Notifier, logger *zap.Logger) ReviewService {
	return &reviewService{reviews: reviews, users: users, notifier: notifier, logger: logger, now: time.Now}
}

// Create stores a review awaiting moderation. Each user may review a
// fabric once.
func (s *reviewService) Create(ctx context.Context, userID, fabricID uuid.UUID, rating int, comment string) (*domain.Review, error) {
	if rating < domain.MinRating || rating > domain.MaxRating {
		return nil, ErrInvalidRating
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxCommentLength {
		return nil, ErrCommentTooLong
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	review := &domain.Review{
		ID:        uuid.New(),
		FabricID:  fabricID,
		UserID:    userID,
		Author:    authorName(user),
		Rating:    rating,
		Comment:   comment,
		CreatedAt: s.now(),
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}

	s.logger.Info("Review submitted", zap.String("review_id", review.ID.String()), zap.String("fabric_id", fabricID.String()))
	s.notifier.Notify(ctx, realtime.TableReviews, domain.ChangeInsert, review)
	return review, nil
}

// authorName is the first name and last initial shown next to a review.
func authorName(u *domain.User) string {
	name := strings.TrimSpace(u.FirstName)
	if last := strings.TrimSpace(u.LastName); last != "" {
		name += " " + string([]rune(last)[0]) + "."
	}
	if name == "" {
		return "Customer"
	}
	return name
}

func (s *reviewService) ListForFabric(ctx context.Context, fabricID uuid.UUID) (*FabricReviews, error) {
	reviews, err := s.reviews.ListByFabric(ctx, fabricID, true)
	if err != nil {
		return nil, err
	}
	summary, err := s.reviews.Summary(ctx, fabricID)
	if err != nil {
		return nil, err
	}
	return &FabricReviews{Summary: summary, Reviews: reviews}, nil
}

func (s *reviewService) ListPending(ctx context.Context) ([]*domain.Review, error) {
	return s.reviews.ListPending(ctx)
}

// List pages through every review, approved or not, for moderation.
func (s *reviewService) List(ctx context.Context, filter repository.ReviewFilter) ([]*domain.Review, int, error) {
	return s.reviews.List(ctx, filter)
}

func (s *reviewService) Approve(ctx context.Context, id uuid.UUID) error {
	if err := s.reviews.Approve(ctx, id); err != nil {
		return err
	}
	s.notifier.Notify(ctx, realtime.TableReviews, domain.ChangeUpdate, map[string]any{"id": id.String(), "approved": true})
	return nil
}

func (s *reviewService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.reviews.Delete(ctx, id); err != nil {
		return err
	}
	s.notifier.Notify(ctx, realtime.TableReviews, domain.ChangeDelete, map[string]string{"id": id.String()})
	return nil
}
