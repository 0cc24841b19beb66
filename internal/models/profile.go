// internal/models/profile.go
package models

const (
	// MaxNameLen bounds the display name forwarded to a partner.
	MaxNameLen = 64
	// MaxAvatarLen bounds the avatar blob (usually a URL or a data URI).
	MaxAvatarLen = 16 * 1024
)

// Profile is the display metadata a connection presents to its partner.
// The service never interprets either field; it only bounds their size.
type Profile struct {
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Clamp returns a copy of p with the name cut to MaxNameLen runes. An
// oversized avatar is dropped rather than truncated.
func (p Profile) Clamp() Profile {
	if r := []rune(p.Name); len(r) > MaxNameLen {
		p.Name = string(r[:MaxNameLen])
	}
	if len(p.Avatar) > MaxAvatarLen {
		p.Avatar = ""
	}
	return p
}

// DisplayName falls back to "Stranger" when no name was supplied.
func (p Profile) DisplayName() string {
	if p.Name == "" {
		return "Stranger"
	}
	return p.Name
}
