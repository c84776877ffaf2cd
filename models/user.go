package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/capacity_backend/config"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:255;not null;uniqueIndex" json:"username" binding:"required"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Name      string    `gorm:"size:255" json:"name"`
	IsAdmin   *bool     `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Signin verifies credentials and issues a JWT. The role claim is "A" for
// platform admins, "U" otherwise.
func Signin(ctx context.Context, username string, password string) (string, *User, error) {
	db := config.GetDB()

	user, err := utils.WithTransientRetry(ctx, "Signin", func() (*User, error) {
		var user User
		err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error
		if err != nil {
			return nil, err
		}
		return &user, nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, utils.ErrorUnauthorized
		}
		return "", nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		return "", nil, utils.ErrorUnauthorized
	}

	role := "U"
	if utils.DereferencePtr(user.IsAdmin) {
		role = "A"
	}
	token, err := utils.JwtGenerate(user.ID, user.Username, role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
