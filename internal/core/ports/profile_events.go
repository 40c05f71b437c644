package ports

import (
	"context"

	"github.com/pennywise/finance-client/internal/core/domain"
)

// ProfileNotifier is the producer side of the profile-switched channel.
type ProfileNotifier interface {
	PublishProfileSwitched(ctx context.Context, evt domain.ProfileSwitched) error
}

// ProfileEvents is the consumer side of the profile-switched channel. The
// returned channel is closed once ctx is cancelled.
type ProfileEvents interface {
	SubscribeProfileSwitched(ctx context.Context) (<-chan domain.ProfileSwitched, error)
}
