package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emailauth/emailauth/internal/core/domain"
	"github.com/emailauth/emailauth/internal/core/ports"
)

// AuthService implements registration and login.
type AuthService struct {
	users     ports.UserRepository
	manager   ports.UserManager
	jwtSecret string
	tokenTTL  time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

func NewAuthService(users ports.UserRepository, manager ports.UserManager, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		users:     users,
		manager:   manager,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		log:       log,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (s *AuthService) Register(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	if in.Password == "" {
		return nil, domain.ErrPasswordRequired
	}
	return s.manager.CreateUser(ctx, in)
}

// Login checks the credentials of an active account, stamps its last login
// time and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("login: %w", err)
	}

	// Inactive accounts fail the same way as a bad password.
	if !user.IsActive || !s.manager.CheckPassword(user, password) {
		return "", nil, domain.ErrInvalidCredentials
	}

	recorded, err := s.manager.RecordLogin(ctx, user.ID, s.now())
	switch {
	case err != nil:
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	case !recorded.IsActive:
		// Deactivated between the credential check and the write.
		return "", nil, domain.ErrInvalidCredentials
	default:
		user = recorded
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("login: sign token: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	return token, user, nil
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":          user.ID,
		"email":        user.Email,
		"is_staff":     user.IsStaff,
		"is_superuser": user.IsSuperuser,
		"jti":          uuid.NewString(),
		"iat":          s.now().Unix(),
		"exp":          s.now().Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
