package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pennywise/finance-client/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

var errBoom = errors.New("boom")

type stubProfileBackend struct {
	mu        sync.Mutex
	profiles  []domain.Profile
	listErr   error
	createErr error
	updateErr error
	deleteErr error
	switchErr error
	nextID    int

	creates  int
	deletes  []domain.ProfileID
	switches []domain.ProfileID
}

func (b *stubProfileBackend) ListProfiles(context.Context) ([]domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	out := make([]domain.Profile, len(b.profiles))
	copy(out, b.profiles)
	return out, nil
}

func (b *stubProfileBackend) GetProfile(_ context.Context, id domain.ProfileID) (*domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.profiles {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, domain.ErrProfileNotFound
}

func (b *stubProfileBackend) CreateProfile(_ context.Context, in domain.ProfileInput) (*domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates++
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.nextID++
	p := domain.Profile{
		ID:          domain.ProfileID("new-" + string(rune('0'+b.nextID))),
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		IsDefault:   in.IsDefault,
	}
	b.profiles = append(b.profiles, p)
	return &p, nil
}

func (b *stubProfileBackend) UpdateProfile(_ context.Context, id domain.ProfileID, in domain.ProfileInput) (*domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updateErr != nil {
		return nil, b.updateErr
	}
	for i, p := range b.profiles {
		if p.ID == id {
			p.Name = in.Name
			p.Description = in.Description
			p.Color = in.Color
			p.IsDefault = in.IsDefault
			b.profiles[i] = p
			return &p, nil
		}
	}
	return nil, domain.ErrProfileNotFound
}

func (b *stubProfileBackend) DeleteProfile(_ context.Context, id domain.ProfileID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, id)
	return b.deleteErr
}

func (b *stubProfileBackend) SwitchProfile(_ context.Context, id domain.ProfileID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.switches = append(b.switches, id)
	return b.switchErr
}

type stubState struct {
	mu        sync.Mutex
	data      map[string]string
	getErr    error
	setErr    error
	deleteErr error
}

func newStubState() *stubState {
	return &stubState{data: make(map[string]string)}
}

func (s *stubState) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *stubState) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

func (s *stubState) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.data, key)
	return nil
}

func (s *stubState) Ping(context.Context) error { return nil }

func (s *stubState) value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// recordingNotifier captures notifications together with the persisted
// selection observed at publish time.
type recordingNotifier struct {
	mu        sync.Mutex
	state     *stubState
	events    []domain.ProfileSwitched
	persisted []string
	err       error
}

func (n *recordingNotifier) PublishProfileSwitched(_ context.Context, evt domain.ProfileSwitched) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	if n.state != nil {
		v, _ := n.state.value(KeyCurrentProfileID)
		n.persisted = append(n.persisted, v)
	}
	return n.err
}

func (n *recordingNotifier) all() []domain.ProfileSwitched {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.ProfileSwitched, len(n.events))
	copy(out, n.events)
	return out
}

// stubEvents is an in-process ProfileEvents. Channels close once the
// subscription context is cancelled.
type stubEvents struct {
	mu           sync.Mutex
	subs         []chan domain.ProfileSwitched
	subscribed   int
	subscribeErr error
}

func (s *stubEvents) SubscribeProfileSwitched(ctx context.Context) (<-chan domain.ProfileSwitched, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	ch := make(chan domain.ProfileSwitched, 16)
	s.subs = append(s.subs, ch)
	s.subscribed++
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		for i, c := range s.subs {
			if c == ch {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (s *stubEvents) emit(evt domain.ProfileSwitched) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		ch <- evt
	}
}

func (s *stubEvents) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func switchedTo(id domain.ProfileID) domain.ProfileSwitched {
	return domain.ProfileSwitched{NewProfile: domain.Profile{ID: id}, SwitchedAt: time.Now()}
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
