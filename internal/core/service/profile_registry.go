package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/core/ports"
	"github.com/pennywise/finance-client/internal/pkg/metrics"
)

// Keys of the durable local state.
const (
	KeyCurrentProfileID = "currentProfileId"
	KeyAuthToken        = "authToken"
	KeyUser             = "user"
)

// RegistryOptions tunes the registry behaviour.
type RegistryOptions struct {
	// ConfirmSwitch makes SwitchProfile confirm the switch with the backend.
	// A failed confirmation rolls the selection back.
	ConfirmSwitch bool
	// Now is the clock used to stamp notifications. Defaults to time.Now.
	Now func() time.Time
}

// ProfileRegistry owns the profile list and the current profile selection.
//
// State is guarded by mu, which is never held across backend or store calls.
// Overlapping mutations are last-writer-wins; callers serialize them.
type ProfileRegistry struct {
	backend       ports.ProfileBackend
	state         ports.KeyValueStore
	notifier      ports.ProfileNotifier
	log           zerolog.Logger
	confirmSwitch bool
	now           func() time.Time

	mu       sync.RWMutex
	profiles []domain.Profile
	current  *domain.Profile
}

// NewProfileRegistry returns an empty registry. notifier may be nil.
func NewProfileRegistry(
	backend ports.ProfileBackend,
	state ports.KeyValueStore,
	notifier ports.ProfileNotifier,
	log zerolog.Logger,
	opts RegistryOptions,
) *ProfileRegistry {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ProfileRegistry{
		backend:       backend,
		state:         state,
		notifier:      notifier,
		log:           log.With().Str("component", "profile_registry").Logger(),
		confirmSwitch: opts.ConfirmSwitch,
		now:           now,
	}
}

var _ ports.ProfileService = (*ProfileRegistry)(nil)

// FetchProfiles replaces the profile list with the backend's and resolves the
// current profile: persisted selection, then the first default profile, then
// the first profile. On failure the list is left untouched.
func (r *ProfileRegistry) FetchProfiles(ctx context.Context) ([]domain.Profile, error) {
	fetched, err := r.backend.ListProfiles(ctx)
	if err != nil {
		r.fail("fetch", err)
		return nil, fmt.Errorf("fetch profiles: %w", err)
	}
	saved := r.savedSelection(ctx)

	r.mu.Lock()
	old := r.current
	r.profiles = cloneProfiles(fetched)
	next := resolveCurrent(r.profiles, saved)
	r.current = next
	out := cloneProfiles(r.profiles)
	r.mu.Unlock()

	r.log.Debug().Int("count", len(out)).Str("saved", saved.String()).Msg("profiles fetched")

	if next == nil {
		return out, nil
	}
	if next.ID != saved {
		if err := r.persistSelection(ctx, next.ID); err != nil {
			r.log.Warn().Err(err).Str("profile_id", next.ID.String()).Msg("failed to persist resolved profile")
		}
	}
	r.announce(ctx, old, *next, "fetch")
	return out, nil
}

// SwitchProfile makes id the current profile. Switching to the current profile
// is a no-op. The selection is persisted before the notification is raised.
func (r *ProfileRegistry) SwitchProfile(ctx context.Context, id domain.ProfileID) (domain.Profile, error) {
	r.mu.Lock()
	if r.current != nil && r.current.ID == id {
		p := *r.current
		r.mu.Unlock()
		return p, nil
	}
	target, ok := r.find(id)
	if !ok {
		r.mu.Unlock()
		err := fmt.Errorf("switch profile %q: %w", id, domain.ErrProfileNotFound)
		r.fail("switch", err)
		return domain.Profile{}, err
	}
	old := r.current
	r.current = &target
	r.mu.Unlock()

	if err := r.persistSelection(ctx, id); err != nil {
		r.rollback(ctx, old, id, false)
		r.fail("switch", err)
		return domain.Profile{}, fmt.Errorf("switch profile %q: %w", id, err)
	}

	if r.confirmSwitch {
		if err := r.backend.SwitchProfile(ctx, id); err != nil {
			r.rollback(ctx, old, id, true)
			r.fail("switch", err)
			return domain.Profile{}, fmt.Errorf("switch profile %q: confirm: %w", id, err)
		}
	}

	r.announce(ctx, old, target, "switch")
	return target, nil
}

// CreateProfile creates a profile on the backend and appends it. The new
// profile becomes current when no profile was selected before.
func (r *ProfileRegistry) CreateProfile(ctx context.Context, in domain.ProfileInput) (domain.Profile, error) {
	if err := validateInput(in); err != nil {
		r.fail("create", err)
		return domain.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	created, err := r.backend.CreateProfile(ctx, in)
	if err != nil {
		r.fail("create", err)
		return domain.Profile{}, fmt.Errorf("create profile: %w", err)
	}

	r.mu.Lock()
	r.profiles = append(r.profiles, *created)
	old := r.current
	selected := old == nil
	if selected {
		p := *created
		r.current = &p
	}
	r.mu.Unlock()

	r.log.Info().Str("profile_id", created.ID.String()).Str("name", created.Name).Msg("profile created")

	if selected {
		if err := r.persistSelection(ctx, created.ID); err != nil {
			r.log.Warn().Err(err).Str("profile_id", created.ID.String()).Msg("failed to persist new profile selection")
		}
		r.announce(ctx, old, *created, "create")
	}
	return *created, nil
}

// UpdateProfile replaces the profile in place. Updating the current profile
// refreshes it without raising a notification.
func (r *ProfileRegistry) UpdateProfile(ctx context.Context, id domain.ProfileID, in domain.ProfileInput) (domain.Profile, error) {
	if err := validateInput(in); err != nil {
		r.fail("update", err)
		return domain.Profile{}, fmt.Errorf("update profile %q: %w", id, err)
	}
	r.mu.RLock()
	_, ok := r.find(id)
	r.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("update profile %q: %w", id, domain.ErrProfileNotFound)
		r.fail("update", err)
		return domain.Profile{}, err
	}

	updated, err := r.backend.UpdateProfile(ctx, id, in)
	if err != nil {
		r.fail("update", err)
		return domain.Profile{}, fmt.Errorf("update profile %q: %w", id, err)
	}

	r.replace(*updated)
	return *updated, nil
}

// ReloadProfile re-reads one known profile from the backend and replaces the
// local copy. Like UpdateProfile it never raises a notification.
func (r *ProfileRegistry) ReloadProfile(ctx context.Context, id domain.ProfileID) (domain.Profile, error) {
	r.mu.RLock()
	_, ok := r.find(id)
	r.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("reload profile %q: %w", id, domain.ErrProfileNotFound)
		r.fail("reload", err)
		return domain.Profile{}, err
	}

	fresh, err := r.backend.GetProfile(ctx, id)
	if err != nil {
		r.fail("reload", err)
		return domain.Profile{}, fmt.Errorf("reload profile %q: %w", id, err)
	}
	r.replace(*fresh)
	return *fresh, nil
}

// replace swaps the stored copy of p, including the current profile.
func (r *ProfileRegistry) replace(p domain.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx := r.indexOf(p.ID); idx >= 0 {
		r.profiles[idx] = p
	}
	if r.current != nil && r.current.ID == p.ID {
		cur := p
		r.current = &cur
	}
}

// DeleteProfile removes a profile. The last remaining profile cannot be
// deleted. Deleting the current profile selects the first remaining one.
func (r *ProfileRegistry) DeleteProfile(ctx context.Context, id domain.ProfileID) error {
	r.mu.RLock()
	count := len(r.profiles)
	_, ok := r.find(id)
	r.mu.RUnlock()

	if count <= 1 {
		err := fmt.Errorf("delete profile %q: %w", id, domain.ErrLastProfile)
		r.fail("delete", err)
		return err
	}
	if !ok {
		err := fmt.Errorf("delete profile %q: %w", id, domain.ErrProfileNotFound)
		r.fail("delete", err)
		return err
	}

	if err := r.backend.DeleteProfile(ctx, id); err != nil {
		r.fail("delete", err)
		return fmt.Errorf("delete profile %q: %w", id, err)
	}

	r.mu.Lock()
	if idx := r.indexOf(id); idx >= 0 {
		r.profiles = append(r.profiles[:idx:idx], r.profiles[idx+1:]...)
	}
	old := r.current
	var next *domain.Profile
	if old != nil && old.ID == id {
		if len(r.profiles) > 0 {
			p := r.profiles[0]
			next = &p
		}
		r.current = next
	}
	r.mu.Unlock()

	r.log.Info().Str("profile_id", id.String()).Msg("profile deleted")

	if next == nil {
		return nil
	}
	if err := r.persistSelection(ctx, next.ID); err != nil {
		r.log.Warn().Err(err).Str("profile_id", next.ID.String()).Msg("failed to persist replacement profile")
	}
	r.announce(ctx, old, *next, "delete")
	return nil
}

// Clear forgets every profile and the persisted selection. It never raises a
// notification and never fails.
func (r *ProfileRegistry) Clear(ctx context.Context) {
	r.mu.Lock()
	r.profiles = nil
	r.current = nil
	r.mu.Unlock()

	if err := r.state.Delete(ctx, KeyCurrentProfileID); err != nil {
		r.log.Warn().Err(err).Msg("failed to erase persisted profile selection")
	}
}

// Profiles returns a copy of the profile list in backend order.
func (r *ProfileRegistry) Profiles() []domain.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneProfiles(r.profiles)
}

// CurrentProfile returns the current profile, ok=false when none is selected.
func (r *ProfileRegistry) CurrentProfile() (domain.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return domain.Profile{}, false
	}
	return *r.current, true
}

// CurrentProfileID returns the id of the current profile, empty when none.
func (r *ProfileRegistry) CurrentProfileID() domain.ProfileID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return ""
	}
	return r.current.ID
}

// ProfileOptions projects the profile list for a picker.
func (r *ProfileRegistry) ProfileOptions() []domain.ProfileOption {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ProfileOption, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, domain.ProfileOption{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Color:       p.DisplayColor(),
			IsActive:    r.current != nil && r.current.ID == p.ID,
		})
	}
	return out
}

// find must be called with mu held.
func (r *ProfileRegistry) find(id domain.ProfileID) (domain.Profile, bool) {
	if idx := r.indexOf(id); idx >= 0 {
		return r.profiles[idx], true
	}
	return domain.Profile{}, false
}

// indexOf must be called with mu held.
func (r *ProfileRegistry) indexOf(id domain.ProfileID) int {
	if id.IsZero() {
		return -1
	}
	for i := range r.profiles {
		if r.profiles[i].ID == id {
			return i
		}
	}
	return -1
}

// rollback restores old as the current profile if id is still selected, so a
// later switch is never clobbered.
func (r *ProfileRegistry) rollback(ctx context.Context, old *domain.Profile, id domain.ProfileID, persisted bool) {
	r.mu.Lock()
	owned := r.current != nil && r.current.ID == id
	if owned {
		r.current = old
	}
	r.mu.Unlock()

	if !owned || !persisted {
		return
	}
	var err error
	if old != nil {
		err = r.persistSelection(ctx, old.ID)
	} else {
		err = r.state.Delete(ctx, KeyCurrentProfileID)
	}
	if err != nil {
		r.log.Error().Err(err).Str("profile_id", id.String()).Msg("failed to roll back persisted profile selection")
	}
}

func (r *ProfileRegistry) savedSelection(ctx context.Context) domain.ProfileID {
	v, ok, err := r.state.Get(ctx, KeyCurrentProfileID)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to read persisted profile selection")
		return ""
	}
	if !ok {
		return ""
	}
	return domain.ProfileID(v)
}

func (r *ProfileRegistry) persistSelection(ctx context.Context, id domain.ProfileID) error {
	if err := r.state.Set(ctx, KeyCurrentProfileID, id.String()); err != nil {
		return fmt.Errorf("persist selection: %w", err)
	}
	return nil
}

// announce raises the profile-switched notification when the identity changed.
// Publishing failures are logged, never returned.
func (r *ProfileRegistry) announce(ctx context.Context, old *domain.Profile, next domain.Profile, reason string) {
	if old != nil && old.ID == next.ID {
		return
	}
	evt := domain.ProfileSwitched{NewProfile: next, SwitchedAt: r.now()}
	oldID := ""
	if old != nil {
		prev := *old
		evt.OldProfile = &prev
		oldID = prev.ID.String()
	}
	metrics.ProfileSwitchesTotal.WithLabelValues(reason).Inc()

	r.log.Info().
		Str("from", oldID).
		Str("to", next.ID.String()).
		Str("reason", reason).
		Msg("current profile changed")

	if r.notifier == nil {
		return
	}
	if err := r.notifier.PublishProfileSwitched(ctx, evt); err != nil {
		r.log.Warn().Err(err).Str("to", next.ID.String()).Msg("failed to publish profile switch")
	}
}

func (r *ProfileRegistry) fail(op string, err error) {
	reason := errorReason(err)
	metrics.ProfileOperationErrorsTotal.WithLabelValues(op, reason).Inc()
	r.log.Warn().Err(err).Str("operation", op).Str("reason", reason).Msg("profile operation failed")
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrLastProfile):
		return "last_profile"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNetworkFailure):
		return "network"
	default:
		return "other"
	}
}

func resolveCurrent(profiles []domain.Profile, saved domain.ProfileID) *domain.Profile {
	if len(profiles) == 0 {
		return nil
	}
	pick := func(p domain.Profile) *domain.Profile { return &p }
	if !saved.IsZero() {
		for _, p := range profiles {
			if p.ID == saved {
				return pick(p)
			}
		}
	}
	for _, p := range profiles {
		if p.IsDefault {
			return pick(p)
		}
	}
	return pick(profiles[0])
}

func cloneProfiles(in []domain.Profile) []domain.Profile {
	if in == nil {
		return nil
	}
	out := make([]domain.Profile, len(in))
	copy(out, in)
	return out
}
