package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-location-broker/internal/domain"
	"github.com/tbourn/go-location-broker/internal/repo"
)

// ErrInvalidCredentials is returned when a username/password pair does not
// match a stored user.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepo defines the repository contract required by UserService.
type UserRepo interface {
	CreateUser(ctx context.Context, db *gorm.DB, username, passwordHash string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error)
}

// UserService registers users and checks their Basic credentials.
type UserService struct {
	DB   *gorm.DB
	Repo UserRepo

	// Cost is the bcrypt work factor used by Register.
	Cost int
}

// NewUserService constructs a UserService with bcrypt.DefaultCost.
func NewUserService(db *gorm.DB, r UserRepo) *UserService {
	return &UserService{DB: db, Repo: r, Cost: bcrypt.DefaultCost}
}

// Register stores a new user with a bcrypt hash of password.
func (s *UserService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	u, err := s.Repo.CreateUser(ctx, s.DB, username, string(hash))
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, fmt.Errorf("%w: user %q already exists", ErrConflict, username)
		}
		return nil, depErr("create user", err)
	}
	return u, nil
}

// Authenticate returns the user whose credentials match, or
// ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	u, err := s.Repo.GetUserByUsername(ctx, s.DB, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, depErr("get user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
