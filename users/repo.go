package users

import "context"

// UserRepo is the profile store. GetByID and GetByEmail return an error of kind
// KindNotFound when no row exists; GetRegistration returns (nil, nil) instead.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	UpdateUsername(ctx context.Context, id, username string) error
	GetRegistration(ctx context.Context, userID string) (*Registration, error)
}
