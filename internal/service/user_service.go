package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"taskdesk/internal/domain"
	"taskdesk/internal/repository"
)

// DefaultMinPasswordLength applies when UserOptions leaves it unset.
const DefaultMinPasswordLength = 6

// UserService describes the registration and login protocols over the credential store.
type UserService interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	ValidateRegistration(username, password, confirm string) error
}

type UserOptions struct {
	MinPasswordLength int
	HashCost          int
}

type userService struct {
	users     repository.UserRepository
	minLength int
	hashCost  int
}

func NewUserService(users repository.UserRepository, opts UserOptions) UserService {
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = DefaultMinPasswordLength
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	return &userService{
		users:     users,
		minLength: opts.MinPasswordLength,
		hashCost:  opts.HashCost,
	}
}

// ValidateRegistration runs the caller-side checks that precede Register.
func (s *userService) ValidateRegistration(username, password, confirm string) error {
	if strings.TrimSpace(username) == "" {
		return domain.NewValidationError("username", "username cannot be empty")
	}
	if password == "" {
		return domain.NewValidationError("password", "password cannot be empty")
	}
	if len(password) < s.minLength {
		return domain.NewValidationError("password", fmt.Sprintf("password must be at least %d characters long", s.minLength))
	}
	if len(password) > maxPasswordBytes {
		return domain.NewValidationError("password", fmt.Sprintf("password must be at most %d bytes long", maxPasswordBytes))
	}
	if password != confirm {
		return domain.NewValidationError("confirm", "passwords do not match")
	}
	return nil
}

func (s *userService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for _, existing := range users {
		if existing.Username == username {
			return nil, domain.ErrDuplicateUser
		}
	}

	hash, err := hashPassword(password, s.hashCost)
	if err != nil {
		return nil, err
	}

	user := domain.User{Username: username, PasswordHash: hash}
	if err := s.users.Append(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateUser) {
			return nil, domain.ErrDuplicateUser
		}
		return nil, fmt.Errorf("save user: %w", err)
	}

	return sanitizeUser(&user), nil
}

// Authenticate returns ErrInvalidCredentials for both unknown users and wrong
// passwords. There is no lockout or attempt counting.
func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	for i := range users {
		if users[i].Username != username {
			continue
		}
		if !VerifyPassword(password, users[i].PasswordHash) {
			return nil, domain.ErrInvalidCredentials
		}
		return sanitizeUser(&users[i]), nil
	}
	return nil, domain.ErrInvalidCredentials
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{Username: user.Username}
}
