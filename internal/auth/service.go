package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsAdmin reports whether claims belong to an administrator: either the
// account role is admin or its email is the configured admin email.
func IsAdmin(claims *Claims, adminEmail string) bool {
	if claims == nil {
		return false
	}
	if claims.Role == RoleAdmin {
		return true
	}
	adminEmail = strings.TrimSpace(adminEmail)
	return adminEmail != "" && strings.EqualFold(strings.TrimSpace(claims.Email), adminEmail)
}

// ServiceOptions configure login throttling and the configured admin email.
type ServiceOptions struct {
	AdminEmail  string
	MaxAttempts int
	Window      time.Duration
}

// Service authenticates admin users and manages their sessions.
type Service struct {
	users    UserStore
	sessions Sessions
	throttle Throttle
	jwt      *JWTService
	log      *zap.Logger
	opts     ServiceOptions
}

func NewService(users UserStore, sessions Sessions, throttle Throttle, jwtService *JWTService, log *zap.Logger, opts ServiceOptions) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Window <= 0 {
		opts.Window = 15 * time.Minute
	}
	return &Service{
		users:    users,
		sessions: sessions,
		throttle: throttle,
		jwt:      jwtService,
		log:      log,
		opts:     opts,
	}
}

// Authenticate checks email and password. Unknown emails and wrong passwords
// return the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*AdminUser, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a token pair with a stored refresh session.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, *AdminUser, error) {
	email = strings.TrimSpace(email)

	attempts, err := s.throttle.Attempts(ctx, email)
	if err != nil {
		s.log.Warn("login throttle unavailable", zap.Error(err))
	} else if attempts >= s.opts.MaxAttempts {
		return nil, nil, ErrTooManyAttempts
	}

	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			if _, ferr := s.throttle.Fail(ctx, email, s.opts.Window); ferr != nil {
				s.log.Warn("failed to record login attempt", zap.Error(ferr))
			}
		}
		return nil, nil, err
	}

	if err := s.throttle.Reset(ctx, email); err != nil {
		s.log.Warn("failed to reset login attempts", zap.Error(err))
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		s.log.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.log.Info("admin logged in", zap.String("user_id", user.ID))
	return pair, user, nil
}

func (s *Service) issue(ctx context.Context, user *AdminUser) (*TokenPair, error) {
	accessToken, refreshToken, err := s.jwt.GenerateTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	refresh, err := s.jwt.ValidateToken(refreshToken)
	if err != nil {
		return nil, err
	}

	session := map[string]string{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
	}
	if err := s.sessions.Store(ctx, refresh.ID, session, s.jwt.RefreshTokenDuration()); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwt.AccessTokenDuration().Seconds()),
	}, nil
}

// Refresh issues a new access token when the refresh session is still live.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	accessToken, claims, err := s.jwt.RefreshAccessToken(refreshToken)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.Get(ctx, claims.ID); err != nil {
		return nil, ErrSessionNotFound
	}

	if err := s.sessions.Extend(ctx, claims.ID, s.jwt.RefreshTokenDuration()); err != nil {
		s.log.Warn("failed to extend session", zap.Error(err))
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwt.AccessTokenDuration().Seconds()),
	}, nil
}

// Logout drops the refresh session. Unknown or invalid tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.jwt.ValidateToken(refreshToken)
	if err != nil || claims.Type != TokenRefresh {
		return nil
	}
	return s.sessions.Delete(ctx, claims.ID)
}

// IsAdmin applies IsAdmin with the configured admin email.
func (s *Service) IsAdmin(claims *Claims) bool {
	return IsAdmin(claims, s.opts.AdminEmail)
}

// Me loads the account behind claims.
func (s *Service) Me(ctx context.Context, claims *Claims) (*AdminUser, error) {
	return s.users.GetByID(ctx, claims.UserID)
}

// CreateAdmin registers an admin account with a bcrypt hashed password.
func (s *Service) CreateAdmin(ctx context.Context, email, password, name string) (*AdminUser, error) {
	return CreateAdmin(ctx, s.users, email, password, name)
}

// CreateAdmin is the store-level helper used by the admin CLI.
func CreateAdmin(ctx context.Context, users UserStore, email, password, name string) (*AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &AdminUser{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		Role:         RoleAdmin,
		PasswordHash: string(hash),
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
