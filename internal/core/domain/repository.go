package domain

import "context"

// UserRepository defines the interface for profile data access.
// Lookups that miss return an error wrapping ErrNotFound.
type UserRepository interface {
	GetByUID(ctx context.Context, uid string) (*User, error)
	Create(ctx context.Context, user *User) error
	UpdateName(ctx context.Context, uid, name string) (*User, error)
	UpdateProfilePhoto(ctx context.Context, uid, photo string) error
}

// PredictionLogRepository is the append-only store behind the history screens.
type PredictionLogRepository interface {
	Append(ctx context.Context, entry *PredictionLog) error
	ListByUser(ctx context.Context, userID string, types []FeatureType, limit int) ([]PredictionLog, error)
}
