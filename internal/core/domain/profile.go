package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DefaultProfileColor is used whenever a profile carries no color of its own.
const DefaultProfileColor = "#3B82F6"

// ProfileID is an opaque profile identifier. Backends emit either strings or
// integers; both decode to the same canonical text form and are only ever
// compared for equality.
type ProfileID string

// String returns the canonical text form.
func (id ProfileID) String() string { return string(id) }

// IsZero reports whether the id is unset.
func (id ProfileID) IsZero() bool { return id == "" }

// UnmarshalJSON accepts a JSON string or a JSON number.
func (id *ProfileID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("profile id: %w", err)
		}
		*id = ProfileID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("profile id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = ProfileID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ProfileID(n.String())
	return nil
}

// Profile is a named, isolated finance context belonging to a user.
type Profile struct {
	ID          ProfileID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Color       string     `json:"color,omitempty"`
	IsDefault   bool       `json:"is_default"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// DisplayColor returns the profile color or DefaultProfileColor when unset.
func (p Profile) DisplayColor() string {
	if p.Color == "" {
		return DefaultProfileColor
	}
	return p.Color
}

// ProfileInput carries the writable fields of a profile for create and update.
type ProfileInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description,omitempty" validate:"max=500"`
	Color       string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	IsDefault   bool   `json:"is_default"`
}

// ProfileOption is the picker projection of a profile.
type ProfileOption struct {
	ID          ProfileID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	IsActive    bool      `json:"is_active"`
}

// ProfileSwitched is raised when the resolved current profile changes identity.
// OldProfile is nil when no profile was selected before.
type ProfileSwitched struct {
	OldProfile *Profile  `json:"old_profile"`
	NewProfile Profile   `json:"new_profile"`
	SwitchedAt time.Time `json:"switched_at"`
}
