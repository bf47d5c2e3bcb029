package repository

import (
	"context"

	"gorm.io/gorm"

	"procurement/internal/model"
)

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *userRepository) first(ctx context.Context, cond string, arg interface{}) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, cond, arg).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
