package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-location-broker/internal/domain"
)

// CreateUser inserts a user with an already hashed password. A taken
// username is reported as ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, username, passwordHash string) (*domain.User, error) {
	u := &domain.User{Username: username, PasswordHash: passwordHash}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

// GetUserByUsername fetches a user by username, or ErrNotFound.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
