package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"mnemochat/internal/models"
	"mnemochat/internal/user_service/store"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// 对外暴露的认证错误。登录失败刻意不区分“用户不存在”和“密码错误”。
var (
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// Service 封装了用户注册、登录与会话管理的业务逻辑。
type Service struct {
	users      store.UserStore
	sessions   store.SessionStore
	jwtSecret  []byte
	tokenTTL   time.Duration
	sessionTTL time.Duration
}

// NewService 创建一个新的 Service 实例。
func NewService(users store.UserStore, sessions store.SessionStore, jwtSecret string, tokenTTL, sessionTTL time.Duration) *Service {
	return &Service{
		users:      users,
		sessions:   sessions,
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   tokenTTL,
		sessionTTL: sessionTTL,
	}
}

// Register 处理新用户注册。
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	if !emailRegex.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Password:  string(hashedPassword),
		Status:    models.StatusActive,
		CreatedAt: now,
		LastLogin: now,
		Settings:  models.DefaultChatSettings(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login 校验凭证，更新最近登录时间，创建会话并签发 JWT。
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if user.Status != models.StatusActive {
		return "", nil, ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		return "", nil, fmt.Errorf("failed to update last login: %w", err)
	}

	sessionID := uuid.New().String()
	if err := s.sessions.Create(ctx, user.ID, sessionID, s.sessionTTL); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.generateJWT(user.ID, sessionID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Logout 删除会话。此后携带同一令牌的请求会在中间件处被拒绝。
func (s *Service) Logout(ctx context.Context, userID, sessionID string) error {
	return s.sessions.Delete(ctx, userID, sessionID)
}

// GetUser 返回指定 ID 的用户。
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// generateJWT 为指定用户和会话生成一个新的 JWT。
// sub 为用户 ID，jti 为会话 ID，中间件用二者校验会话有效性。
func (s *Service) generateJWT(userID, sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"jti": sessionID,
		"iss": "mnemochat_user_service",
		"exp": now.Add(s.tokenTTL).Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
