package identity

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Profile is the role-specific record describing a completed registration.
// The role is implied by the table the row lives in; repositories carry it
// alongside the row.
type Profile struct {
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Initials returns the display initials for avatar fallbacks, "U" when the
// profile carries no name at all. Initials are taken rune-wise so non-ASCII
// names survive intact.
func (p Profile) Initials() string {
	var b strings.Builder
	if r, size := utf8.DecodeRuneInString(p.FirstName); size > 0 && r != utf8.RuneError {
		b.WriteString(strings.ToUpper(string(r)))
	}
	if r, size := utf8.DecodeRuneInString(p.LastName); size > 0 && r != utf8.RuneError {
		b.WriteString(strings.ToUpper(string(r)))
	}
	if b.Len() == 0 {
		return "U"
	}
	return b.String()
}

// ProfileCacheEntry is a client-local projection of a Profile. HasProfile is
// tri-state: nil means existence has not been determined yet, which consumers
// must distinguish from a known false.
type ProfileCacheEntry struct {
	HasProfile *bool     `json:"has_profile"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Fresh reports whether the entry was fetched within the freshness window.
func (e ProfileCacheEntry) Fresh(now time.Time, window time.Duration) bool {
	if e.FetchedAt.IsZero() {
		return false
	}
	return now.Sub(e.FetchedAt) < window
}

// HasDisplayFields reports whether the entry carries cached display data.
// Used to repair HasProfile after a reload restored the blob but dropped the
// existence flag.
func (e ProfileCacheEntry) HasDisplayFields() bool {
	return e.FirstName != "" || e.LastName != ""
}

// Known reports whether profile existence has been determined.
func (e ProfileCacheEntry) Known() bool { return e.HasProfile != nil }

// Exists reports whether a profile row is known to exist.
func (e ProfileCacheEntry) Exists() bool {
	return e.HasProfile != nil && *e.HasProfile
}

// CacheEntryFromProfile projects a fetched profile into a cache entry.
func CacheEntryFromProfile(p *Profile, fetchedAt time.Time) ProfileCacheEntry {
	exists := p != nil
	entry := ProfileCacheEntry{
		HasProfile: &exists,
		FetchedAt:  fetchedAt,
	}
	if p != nil {
		entry.FirstName = p.FirstName
		entry.LastName = p.LastName
		entry.AvatarURL = p.AvatarURL
	}
	return entry
}
