package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pennywise/finance-client/internal/core/domain"
)

var fixedNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func threeProfiles() []domain.Profile {
	return []domain.Profile{
		{ID: "1", Name: "Personal"},
		{ID: "2", Name: "Business", IsDefault: true, Color: "#10B981"},
		{ID: "3", Name: "Side hustle"},
	}
}

type registryFixture struct {
	backend  *stubProfileBackend
	state    *stubState
	notifier *recordingNotifier
	registry *ProfileRegistry
}

func newRegistryFixture(profiles []domain.Profile, confirm bool) *registryFixture {
	backend := &stubProfileBackend{profiles: profiles}
	state := newStubState()
	notifier := &recordingNotifier{state: state}
	reg := NewProfileRegistry(backend, state, notifier, zerolog.Nop(), RegistryOptions{
		ConfirmSwitch: confirm,
		Now:           func() time.Time { return fixedNow },
	})
	return &registryFixture{backend: backend, state: state, notifier: notifier, registry: reg}
}

// loaded returns a fixture whose registry already fetched with "1" selected.
func loaded(t *testing.T, confirm bool) *registryFixture {
	t.Helper()
	f := newRegistryFixture(threeProfiles(), confirm)
	f.state.data[KeyCurrentProfileID] = "1"
	if _, err := f.registry.FetchProfiles(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	f.notifier.events = nil
	f.notifier.persisted = nil
	return f
}

func currentID(r *ProfileRegistry) domain.ProfileID {
	p, ok := r.CurrentProfile()
	if !ok {
		return ""
	}
	return p.ID
}

// ---------------------------------------------------------------------------
// FetchProfiles
// ---------------------------------------------------------------------------

func TestFetchProfiles_RestoresPersistedSelection(t *testing.T) {
	f := newRegistryFixture(threeProfiles(), false)
	f.state.data[KeyCurrentProfileID] = "3"

	got, err := f.registry.FetchProfiles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(got))
	}
	if currentID(f.registry) != "3" {
		t.Fatalf("expected persisted profile 3, got %q", currentID(f.registry))
	}
}

func TestFetchProfiles_FallsBackToDefault(t *testing.T) {
	f := newRegistryFixture(threeProfiles(), false)
	f.state.data[KeyCurrentProfileID] = "gone"

	if _, err := f.registry.FetchProfiles(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if currentID(f.registry) != "2" {
		t.Fatalf("expected default profile 2, got %q", currentID(f.registry))
	}
	if v, _ := f.state.value(KeyCurrentProfileID); v != "2" {
		t.Fatalf("expected resolved selection persisted, got %q", v)
	}
}

func TestFetchProfiles_FallsBackToFirst(t *testing.T) {
	profiles := []domain.Profile{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}
	f := newRegistryFixture(profiles, false)

	if _, err := f.registry.FetchProfiles(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if currentID(f.registry) != "a" {
		t.Fatalf("expected first profile, got %q", currentID(f.registry))
	}
}

func TestFetchProfiles_EmptyList(t *testing.T) {
	f := newRegistryFixture(nil, false)

	got, err := f.registry.FetchProfiles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no profiles, got %d", len(got))
	}
	if _, ok := f.registry.CurrentProfile(); ok {
		t.Fatalf("expected no current profile")
	}
	if len(f.notifier.all()) != 0 {
		t.Fatalf("expected no notification")
	}
}

func TestFetchProfiles_FailureLeavesStateUntouched(t *testing.T) {
	f := loaded(t, false)
	f.backend.listErr = &domain.NetworkError{Op: "list_profiles", Message: "connection refused"}

	_, err := f.registry.FetchProfiles(context.Background())
	if !errors.Is(err, domain.ErrNetworkFailure) {
		t.Fatalf("expected network failure, got %v", err)
	}
	if len(f.registry.Profiles()) != 3 || currentID(f.registry) != "1" {
		t.Fatalf("state changed after failed fetch")
	}
}

func TestFetchProfiles_NotifiesOnlyOnIdentityChange(t *testing.T) {
	f := newRegistryFixture(threeProfiles(), false)
	f.state.data[KeyCurrentProfileID] = "1"

	if _, err := f.registry.FetchProfiles(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	events := f.notifier.all()
	if len(events) != 1 || events[0].OldProfile != nil || events[0].NewProfile.ID != "1" {
		t.Fatalf("expected one initial notification, got %+v", events)
	}
	if !events[0].SwitchedAt.Equal(fixedNow) {
		t.Fatalf("unexpected timestamp %v", events[0].SwitchedAt)
	}

	if _, err := f.registry.FetchProfiles(context.Background()); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if len(f.notifier.all()) != 1 {
		t.Fatalf("refetch with the same current profile must not notify")
	}
}

func TestFetchProfiles_StateReadFailureFallsBack(t *testing.T) {
	f := newRegistryFixture(threeProfiles(), false)
	f.state.getErr = errBoom

	if _, err := f.registry.FetchProfiles(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if currentID(f.registry) != "2" {
		t.Fatalf("expected default profile, got %q", currentID(f.registry))
	}
}

// ---------------------------------------------------------------------------
// SwitchProfile
// ---------------------------------------------------------------------------

func TestSwitchProfile_PersistsThenNotifies(t *testing.T) {
	f := loaded(t, false)

	p, err := f.registry.SwitchProfile(context.Background(), "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "2" || currentID(f.registry) != "2" {
		t.Fatalf("expected profile 2 current, got %q", currentID(f.registry))
	}
	events := f.notifier.all()
	if len(events) != 1 {
		t.Fatalf("expected one notification, got %d", len(events))
	}
	if events[0].OldProfile == nil || events[0].OldProfile.ID != "1" || events[0].NewProfile.ID != "2" {
		t.Fatalf("unexpected event: %+v", events[0])
	}
	if f.notifier.persisted[0] != "2" {
		t.Fatalf("selection must be persisted before the notification, saw %q", f.notifier.persisted[0])
	}
}

func TestSwitchProfile_ToCurrentIsNoop(t *testing.T) {
	f := loaded(t, true)

	p, err := f.registry.SwitchProfile(context.Background(), "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "1" {
		t.Fatalf("expected current profile back, got %q", p.ID)
	}
	if len(f.notifier.all()) != 0 || len(f.backend.switches) != 0 {
		t.Fatalf("switching to the current profile must do nothing")
	}
}

func TestSwitchProfile_UnknownID(t *testing.T) {
	f := loaded(t, false)

	_, err := f.registry.SwitchProfile(context.Background(), "99")
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if currentID(f.registry) != "1" {
		t.Fatalf("current profile changed")
	}
	if v, _ := f.state.value(KeyCurrentProfileID); v != "1" {
		t.Fatalf("persisted selection changed to %q", v)
	}
	if len(f.notifier.all()) != 0 {
		t.Fatalf("expected no notification")
	}
}

func TestSwitchProfile_ConfirmsWithBackend(t *testing.T) {
	f := loaded(t, true)

	if _, err := f.registry.SwitchProfile(context.Background(), "3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.backend.switches) != 1 || f.backend.switches[0] != "3" {
		t.Fatalf("expected backend confirmation for 3, got %v", f.backend.switches)
	}
}

func TestSwitchProfile_ConfirmFailureRollsBack(t *testing.T) {
	f := loaded(t, true)
	f.backend.switchErr = &domain.NetworkError{Op: "switch_profile", Status: 503}

	_, err := f.registry.SwitchProfile(context.Background(), "2")
	if !errors.Is(err, domain.ErrNetworkFailure) {
		t.Fatalf("expected network failure, got %v", err)
	}
	if currentID(f.registry) != "1" {
		t.Fatalf("expected rollback to 1, got %q", currentID(f.registry))
	}
	if v, _ := f.state.value(KeyCurrentProfileID); v != "1" {
		t.Fatalf("expected persisted rollback to 1, got %q", v)
	}
	if len(f.notifier.all()) != 0 {
		t.Fatalf("failed switch must not notify")
	}
}

func TestSwitchProfile_PersistFailureRollsBack(t *testing.T) {
	f := loaded(t, false)
	f.state.setErr = errBoom

	_, err := f.registry.SwitchProfile(context.Background(), "2")
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected persist error, got %v", err)
	}
	if currentID(f.registry) != "1" {
		t.Fatalf("expected rollback to 1, got %q", currentID(f.registry))
	}
	if len(f.notifier.all()) != 0 {
		t.Fatalf("failed switch must not notify")
	}
}

func TestSwitchProfile_PublishFailureDoesNotFail(t *testing.T) {
	f := loaded(t, false)
	f.notifier.err = errBoom

	if _, err := f.registry.SwitchProfile(context.Background(), "2"); err != nil {
		t.Fatalf("publish failure must not fail the switch: %v", err)
	}
	if currentID(f.registry) != "2" {
		t.Fatalf("expected profile 2 current")
	}
}

// ---------------------------------------------------------------------------
// CreateProfile / UpdateProfile
// ---------------------------------------------------------------------------

func TestCreateProfile_SelectsWhenNothingSelected(t *testing.T) {
	f := newRegistryFixture(nil, false)

	p, err := f.registry.CreateProfile(context.Background(), domain.ProfileInput{Name: "First"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if currentID(f.registry) != p.ID {
		t.Fatalf("expected new profile current")
	}
	if v, _ := f.state.value(KeyCurrentProfileID); v != p.ID.String() {
		t.Fatalf("expected new selection persisted, got %q", v)
	}
	events := f.notifier.all()
	if len(events) != 1 || events[0].OldProfile != nil || events[0].NewProfile.ID != p.ID {
		t.Fatalf("unexpected notifications: %+v", events)
	}
}

func TestCreateProfile_AppendsWithoutSwitching(t *testing.T) {
	f := loaded(t, false)

	p, err := f.registry.CreateProfile(context.Background(), domain.ProfileInput{Name: "Travel", Color: "#F59E0B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	profiles := f.registry.Profiles()
	if len(profiles) != 4 || profiles[3].ID != p.ID {
		t.Fatalf("expected new profile appended, got %+v", profiles)
	}
	if currentID(f.registry) != "1" || len(f.notifier.all()) != 0 {
		t.Fatalf("create must not switch when a profile is selected")
	}
}

func TestCreateProfile_ValidatesLocally(t *testing.T) {
	f := loaded(t, false)

	_, err := f.registry.CreateProfile(context.Background(), domain.ProfileInput{Name: "", Color: "red"})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(ve.Fields["name"]) == 0 || len(ve.Fields["color"]) == 0 {
		t.Fatalf("expected name and color errors, got %+v", ve.Fields)
	}
	if f.backend.creates != 0 {
		t.Fatalf("backend must not be called on invalid input")
	}
}

func TestCreateProfile_BackendValidation(t *testing.T) {
	f := loaded(t, false)
	f.backend.createErr = &domain.ValidationError{Fields: map[string][]string{"name": {"has already been taken"}}}

	_, err := f.registry.CreateProfile(context.Background(), domain.ProfileInput{Name: "Personal"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.registry.Profiles()) != 3 {
		t.Fatalf("list changed after failed create")
	}
}

func TestUpdateProfile_RefreshesCurrentWithoutNotifying(t *testing.T) {
	f := loaded(t, false)

	p, err := f.registry.UpdateProfile(context.Background(), "1", domain.ProfileInput{Name: "Household"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cur, _ := f.registry.CurrentProfile()
	if p.Name != "Household" || cur.Name != "Household" {
		t.Fatalf("expected current profile renamed, got %+v", cur)
	}
	if f.registry.Profiles()[0].Name != "Household" {
		t.Fatalf("expected list entry updated in place")
	}
	if len(f.notifier.all()) != 0 {
		t.Fatalf("update must not notify")
	}
}

func TestUpdateProfile_Unknown(t *testing.T) {
	f := loaded(t, false)

	_, err := f.registry.UpdateProfile(context.Background(), "99", domain.ProfileInput{Name: "X"})
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestReloadProfile_ReplacesLocalCopy(t *testing.T) {
	f := loaded(t, false)
	f.backend.mu.Lock()
	f.backend.profiles[0].Name = "Renamed elsewhere"
	f.backend.mu.Unlock()

	p, err := f.registry.ReloadProfile(context.Background(), "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cur, _ := f.registry.CurrentProfile()
	if p.Name != "Renamed elsewhere" || cur.Name != "Renamed elsewhere" {
		t.Fatalf("expected current profile reloaded, got %+v", cur)
	}
	if len(f.notifier.all()) != 0 {
		t.Fatalf("reload must not notify")
	}
}

func TestReloadProfile_Unknown(t *testing.T) {
	f := loaded(t, false)

	_, err := f.registry.ReloadProfile(context.Background(), "99")
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// DeleteProfile / Clear
// ---------------------------------------------------------------------------

func TestDeleteProfile_LastProfile(t *testing.T) {
	f := newRegistryFixture([]domain.Profile{{ID: "only", Name: "Only"}}, false)
	if _, err := f.registry.FetchProfiles(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	err := f.registry.DeleteProfile(context.Background(), "only")
	if !errors.Is(err, domain.ErrLastProfile) {
		t.Fatalf("expected ErrLastProfile, got %v", err)
	}
	if len(f.backend.deletes) != 0 {
		t.Fatalf("backend must not be called")
	}
	if len(f.registry.Profiles()) != 1 {
		t.Fatalf("profile removed")
	}
}

func TestDeleteProfile_Unknown(t *testing.T) {
	f := loaded(t, false)

	if err := f.registry.DeleteProfile(context.Background(), "99"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestDeleteProfile_CurrentSelectsFirstRemaining(t *testing.T) {
	f := loaded(t, false)

	if err := f.registry.DeleteProfile(context.Background(), "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if currentID(f.registry) != "2" {
		t.Fatalf("expected first remaining profile 2, got %q", currentID(f.registry))
	}
	if v, _ := f.state.value(KeyCurrentProfileID); v != "2" {
		t.Fatalf("expected replacement persisted, got %q", v)
	}
	events := f.notifier.all()
	if len(events) != 1 || events[0].OldProfile.ID != "1" || events[0].NewProfile.ID != "2" {
		t.Fatalf("unexpected notifications: %+v", events)
	}
}

func TestDeleteProfile_OtherKeepsCurrent(t *testing.T) {
	f := loaded(t, false)

	if err := f.registry.DeleteProfile(context.Background(), "3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.registry.Profiles()) != 2 || currentID(f.registry) != "1" {
		t.Fatalf("unexpected state after delete")
	}
	if len(f.notifier.all()) != 0 {
		t.Fatalf("deleting another profile must not notify")
	}
}

func TestDeleteProfile_BackendFailureKeepsList(t *testing.T) {
	f := loaded(t, false)
	f.backend.deleteErr = &domain.NetworkError{Op: "delete_profile", Status: 500}

	if err := f.registry.DeleteProfile(context.Background(), "1"); !errors.Is(err, domain.ErrNetworkFailure) {
		t.Fatalf("expected network failure, got %v", err)
	}
	if len(f.registry.Profiles()) != 3 || currentID(f.registry) != "1" {
		t.Fatalf("state changed after failed delete")
	}
}

func TestClear_ForgetsEverythingSilently(t *testing.T) {
	f := loaded(t, false)

	f.registry.Clear(context.Background())

	if len(f.registry.Profiles()) != 0 {
		t.Fatalf("expected empty list")
	}
	if _, ok := f.registry.CurrentProfile(); ok {
		t.Fatalf("expected no current profile")
	}
	if _, ok := f.state.value(KeyCurrentProfileID); ok {
		t.Fatalf("expected persisted selection erased")
	}
	if len(f.notifier.all()) != 0 {
		t.Fatalf("clear must not notify")
	}
}

func TestProfileOptions(t *testing.T) {
	f := loaded(t, false)

	opts := f.registry.ProfileOptions()
	if len(opts) != 3 {
		t.Fatalf("expected 3 options, got %d", len(opts))
	}
	if !opts[0].IsActive || opts[1].IsActive || opts[2].IsActive {
		t.Fatalf("expected only profile 1 active: %+v", opts)
	}
	if opts[0].Color != domain.DefaultProfileColor || opts[1].Color != "#10B981" {
		t.Fatalf("unexpected colors: %+v", opts)
	}
}

func TestProfiles_ReturnsCopy(t *testing.T) {
	f := loaded(t, false)

	got := f.registry.Profiles()
	got[0].Name = "mutated"
	if f.registry.Profiles()[0].Name == "mutated" {
		t.Fatalf("Profiles must return a copy")
	}
}
