// Package model defines the records shared across the client controllers
// and the backend.
//
// Client-side records (Session, LibraryEntry, Review, FriendProfile,
// ActivityFeedItem) are canonical shapes: the normalize package derives them
// from whatever the upstream sent, and nothing downstream ever looks at the
// raw payload again. Backend-side records (User, ReviewRecord, ...) carry db
// tags and mirror the SQLite tables.
package model

// Session is the signed-in user as the client knows them.
// Username, AvatarURL and Bio are optional; empty means absent.
type Session struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// IsZero reports whether s holds no user.
func (s Session) IsZero() bool {
	return s.ID == ""
}

// UserPatch is a partial update to a Session. Nil fields are left alone;
// a non-nil pointer to "" clears the field.
type UserPatch struct {
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Username  *string `json:"username,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
	Bio       *string `json:"bio,omitempty"`
}

// Apply returns a copy of s with the patch merged in. The id never changes.
func (p UserPatch) Apply(s Session) Session {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Email != nil {
		s.Email = *p.Email
	}
	if p.Username != nil {
		s.Username = *p.Username
	}
	if p.AvatarURL != nil {
		s.AvatarURL = *p.AvatarURL
	}
	if p.Bio != nil {
		s.Bio = *p.Bio
	}
	return s
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Username == nil && p.AvatarURL == nil && p.Bio == nil
}
