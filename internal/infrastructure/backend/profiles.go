package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/core/ports"
)

var _ ports.ProfileBackend = (*Client)(nil)

type profileEnvelope struct {
	Profile domain.ProfileInput `json:"profile"`
}

type switchRequest struct {
	ProfileID domain.ProfileID `json:"profile_id"`
}

func profilePath(id domain.ProfileID) string {
	return "/profiles/" + url.PathEscape(id.String())
}

// ListProfiles accepts both a bare array and {"profiles": [...]}.
func (c *Client) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{op: "list_profiles", method: http.MethodGet, path: "/profiles"}, &raw); err != nil {
		return nil, err
	}
	profiles, err := decodeList[domain.Profile](raw, "profiles")
	if err != nil {
		return nil, &domain.NetworkError{Op: "list_profiles", Status: http.StatusOK, Message: "decode response: " + err.Error()}
	}
	return profiles, nil
}

func (c *Client) GetProfile(ctx context.Context, id domain.ProfileID) (*domain.Profile, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{op: "get_profile", method: http.MethodGet, path: profilePath(id)}, &raw)
	if err != nil {
		return nil, notFound(err)
	}
	return decodeProfile("get_profile", raw)
}

func (c *Client) CreateProfile(ctx context.Context, in domain.ProfileInput) (*domain.Profile, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "create_profile",
		method: http.MethodPost,
		path:   "/profiles",
		body:   profileEnvelope{Profile: in},
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeProfile("create_profile", raw)
}

func (c *Client) UpdateProfile(ctx context.Context, id domain.ProfileID, in domain.ProfileInput) (*domain.Profile, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "update_profile",
		method: http.MethodPut,
		path:   profilePath(id),
		body:   profileEnvelope{Profile: in},
	}, &raw)
	if err != nil {
		return nil, notFound(err)
	}
	return decodeProfile("update_profile", raw)
}

func (c *Client) DeleteProfile(ctx context.Context, id domain.ProfileID) error {
	err := c.do(ctx, call{op: "delete_profile", method: http.MethodDelete, path: profilePath(id)}, nil)
	return notFound(err)
}

func (c *Client) SwitchProfile(ctx context.Context, id domain.ProfileID) error {
	err := c.do(ctx, call{
		op:     "switch_profile",
		method: http.MethodPost,
		path:   "/profiles/switch",
		body:   switchRequest{ProfileID: id},
	}, nil)
	return notFound(err)
}

// notFound adds domain.ErrProfileNotFound to a 404 so callers can match either.
func notFound(err error) error {
	if err != nil && statusOf(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %w", domain.ErrProfileNotFound, err)
	}
	return err
}

// decodeProfile accepts {"profile": {...}} and a bare profile object.
func decodeProfile(op string, raw json.RawMessage) (*domain.Profile, error) {
	return decodeOne(op, raw, "profile", func(p domain.Profile) bool { return !p.ID.IsZero() })
}
