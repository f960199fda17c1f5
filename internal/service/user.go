package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/imgvault/imgvault/internal/auth"
	"github.com/imgvault/imgvault/internal/model"
	"github.com/imgvault/imgvault/internal/repository"
)

// User service errors.
var (
	ErrInvalidUsername    = errors.New("invalid username format")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrWeakPassword       = errors.New("password too short")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Username validation regex: 3-32 chars, alphanumeric plus underscore/hyphen.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)

// emailRegex is a shallow shape check; real validation happens on delivery.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLength = 8

// UserStore is the persistence surface the user service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// UserService handles registration and login.
type UserService struct {
	store  UserStore
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(store UserStore, tokens *auth.TokenService, logger *slog.Logger) *UserService {
	return &UserService{
		store:  store,
		tokens: tokens,
		logger: logger.With("component", "service.user"),
	}
}

// RegisterInput defines input for registering a user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register validates the input, hashes the password and stores the user.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	if !usernameRegex.MatchString(input.Username) {
		return nil, ErrInvalidUsername
	}
	if !emailRegex.MatchString(input.Email) {
		return nil, ErrInvalidEmail
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           newID(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, ErrUsernameTaken
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", slog.String("username", user.Username))

	return user, nil
}

// Login verifies the credentials and returns a signed token. Unknown user
// and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("get user: %w", err)
	}

	match, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("user logged in", slog.String("username", user.Username))

	return token, nil
}
