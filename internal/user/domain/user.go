package domain

import "time"

// DefaultSubscribed applies to profiles created before the subscribed flag
// existed and to recipients without any profile: delivery is opt-out.
const DefaultSubscribed = true

// UserProfile is keyed by the identity provider's stable user id.
// Approved is a cached projection of the allowlist decision, refreshed on
// every sync; it is never authoritative.
type UserProfile struct {
	UID        string    `json:"uid"`
	Email      string    `json:"email"`
	Approved   bool      `json:"approved"`
	Subscribed *bool     `json:"subscribed,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastLogin  time.Time `json:"last_login"`
}

func (p *UserProfile) IsSubscribed() bool {
	if p == nil || p.Subscribed == nil {
		return DefaultSubscribed
	}
	return *p.Subscribed
}

// FlagPatch carries the profile flags an allowlist change may force.
// Nil fields are left untouched.
type FlagPatch struct {
	Approved   *bool
	Subscribed *bool
}

func Bool(v bool) *bool { return &v }
