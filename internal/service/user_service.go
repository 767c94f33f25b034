package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"textile-store/internal/domain"
	"textile-store/internal/mail"
	"textile-store/internal/repository"
	"textile-store/internal/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for password hashing
const BcryptCost = 10

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrInvalidLink        = errors.New("login link is invalid or has expired")
)

// AuthConfig holds the lifetimes of the credentials UserService hands out.
type AuthConfig struct {
	RefreshTTL time.Duration
	LinkTTL    time.Duration
	// LinkBaseURL is the storefront origin the login link points at.
	LinkBaseURL string
}

// ProfileUpdate carries the editable profile fields; nil fields are kept.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Password  *string
}

// UserService defines the interface for account and session logic
type UserService interface {
	Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*domain.User, error)

	// RequestLoginLink mails a single-use sign-in link. Unknown addresses
	// succeed silently so the endpoint cannot be used to probe accounts.
	RequestLoginLink(ctx context.Context, email string) error
	ConsumeLoginLink(ctx context.Context, linkToken string) (accessToken, refreshToken string, user *domain.User, err error)

	// EnsureAdmin creates an admin account or promotes an existing one and
	// resets its password.
	EnsureAdmin(ctx context.Context, email, password string) (*domain.User, error)
	ListUsers(ctx context.Context, role string, page, pageSize int) ([]*domain.User, int, error)
}

type userService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	loginLinkRepo    repository.LoginLinkRepository
	tokens           *token.Manager
	mailer           mail.Mailer
	cfg              AuthConfig
	logger           *zap.Logger
	now              func() time.Time
}

// NewUserService creates a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	loginLinkRepo repository.LoginLinkRepository,
	tokens *token.Manager,
	mailer mail.Mailer,
	cfg AuthConfig,
	logger *zap.Logger,
) UserService {
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 30 * time.Minute
	}
	return &userService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		loginLinkRepo:    loginLinkRepo,
		tokens:           tokens,
		mailer:           mailer,
		cfg:              cfg,
		logger:           logger,
		now:              time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error) {
	email = normalizeEmail(email)

	existingUser, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, repository.ErrUserAlreadyExists
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (string, string, *domain.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	return s.startSession(ctx, user)
}

// startSession issues an access token and persists a fresh refresh token.
func (s *userService) startSession(ctx context.Context, user *domain.User) (string, string, *domain.User, error) {
	accessToken, err := s.tokens.Issue(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	plaintext, err := randomToken(32)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := s.now()
	refresh := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     plaintext,
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
		CreatedAt: now,
	}
	if err := s.refreshTokenRepo.Create(ctx, refresh); err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	if n, err := s.refreshTokenRepo.DeleteExpiredForUser(ctx, user.ID, now); err != nil {
		s.logger.Warn("Failed to prune expired sessions", zap.String("user_id", user.ID.String()), zap.Error(err))
	} else if n > 0 {
		s.logger.Debug("Pruned expired sessions", zap.String("user_id", user.ID.String()), zap.Int64("count", n))
	}

	return accessToken, refresh.Token, user, nil
}

func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken, s.now()); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (string, error) {
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if s.now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, refreshToken.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	return s.tokens.Issue(user)
}

func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*domain.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.FirstName != nil {
		user.FirstName = strings.TrimSpace(*update.FirstName)
	}
	if update.LastName != nil {
		user.LastName = strings.TrimSpace(*update.LastName)
	}
	if update.Phone != nil {
		user.Phone = strings.TrimSpace(*update.Phone)
	}
	if update.Password != nil {
		hashed, err := hashPassword(*update.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hashed
	}
	user.UpdatedAt = s.now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if update.Password != nil {
		if err := s.refreshTokenRepo.RevokeAllForUser(ctx, user.ID, s.now()); err != nil {
			s.logger.Warn("Failed to revoke sessions after password change",
				zap.String("user_id", user.ID.String()), zap.Error(err))
		}
	}
	return user, nil
}

func (s *userService) RequestLoginLink(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Debug("Login link requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	linkToken, err := randomToken(32)
	if err != nil {
		return fmt.Errorf("failed to generate login link: %w", err)
	}

	now := s.now()
	link := &domain.LoginLink{
		Token:     linkToken,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.LinkTTL),
		CreatedAt: now,
	}
	if err := s.loginLinkRepo.Create(ctx, link); err != nil {
		return err
	}

	target := strings.TrimRight(s.cfg.LinkBaseURL, "/") + "/auth/link?token=" + url.QueryEscape(linkToken)
	body := fmt.Sprintf("Hello %s,\n\nUse the link below to sign in. It expires in %d minutes and works once.\n\n%s\n",
		user.FirstName, int(s.cfg.LinkTTL.Minutes()), target)

	if err := s.mailer.Send(ctx, user.Email, "Your sign-in link", body); err != nil {
		return fmt.Errorf("failed to send login link: %w", err)
	}
	return nil
}

func (s *userService) ConsumeLoginLink(ctx context.Context, linkToken string) (string, string, *domain.User, error) {
	link, err := s.loginLinkRepo.FindByToken(ctx, linkToken)
	if err != nil {
		if errors.Is(err, repository.ErrLoginLinkNotFound) {
			return "", "", nil, ErrInvalidLink
		}
		return "", "", nil, err
	}

	now := s.now()
	if !link.Usable(now) {
		return "", "", nil, ErrInvalidLink
	}
	if err := s.loginLinkRepo.MarkUsed(ctx, linkToken, now); err != nil {
		if errors.Is(err, repository.ErrLoginLinkUsed) {
			return "", "", nil, ErrInvalidLink
		}
		return "", "", nil, err
	}

	user, err := s.userRepo.FindByID(ctx, link.UserID)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to find user: %w", err)
	}
	return s.startSession(ctx, user)
}

func (s *userService) EnsureAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	hashed, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		now := s.now()
		user = &domain.User{
			ID:           uuid.New(),
			Email:        email,
			PasswordHash: hashed,
			Role:         domain.RoleAdmin,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to find user: %w", err)
	default:
		user.Role = domain.RoleAdmin
		user.PasswordHash = hashed
		user.UpdatedAt = s.now()
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Admin account ready", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, role string, page, pageSize int) ([]*domain.User, int, error) {
	return s.userRepo.List(ctx, role, page, pageSize)
}

func hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// randomToken returns n random bytes encoded as unpadded base64url.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
