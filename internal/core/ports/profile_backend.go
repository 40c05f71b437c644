package ports

import (
	"context"

	"github.com/pennywise/finance-client/internal/core/domain"
)

// ProfileBackend is the remote profile API consumed by the registry.
type ProfileBackend interface {
	ListProfiles(ctx context.Context) ([]domain.Profile, error)
	GetProfile(ctx context.Context, id domain.ProfileID) (*domain.Profile, error)
	CreateProfile(ctx context.Context, in domain.ProfileInput) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, id domain.ProfileID, in domain.ProfileInput) (*domain.Profile, error)
	DeleteProfile(ctx context.Context, id domain.ProfileID) error
	// SwitchProfile asks the backend to move its server-side context to id.
	SwitchProfile(ctx context.Context, id domain.ProfileID) error
}
