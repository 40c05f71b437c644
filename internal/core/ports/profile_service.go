package ports

import (
	"context"

	"github.com/pennywise/finance-client/internal/core/domain"
)

// ProfileService defines the profile registry use cases.
type ProfileService interface {
	FetchProfiles(ctx context.Context) ([]domain.Profile, error)
	SwitchProfile(ctx context.Context, id domain.ProfileID) (domain.Profile, error)
	CreateProfile(ctx context.Context, in domain.ProfileInput) (domain.Profile, error)
	UpdateProfile(ctx context.Context, id domain.ProfileID, in domain.ProfileInput) (domain.Profile, error)
	ReloadProfile(ctx context.Context, id domain.ProfileID) (domain.Profile, error)
	DeleteProfile(ctx context.Context, id domain.ProfileID) error
	Clear(ctx context.Context)

	Profiles() []domain.Profile
	ProfileOptions() []domain.ProfileOption
	// CurrentProfile returns ok=false while no profile is selected.
	CurrentProfile() (domain.Profile, bool)
}

// RefreshService triggers a manual sweep of the registered data stores.
type RefreshService interface {
	Refresh(ctx context.Context) error
	IsRefreshing() bool
}

// SessionService owns login state.
type SessionService interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.User, error)
	Logout(ctx context.Context)
	// Current returns the logged-in user or domain.ErrNoSession.
	Current(ctx context.Context) (*domain.User, error)
}
