package model

// Relationship says which side of the follow graph a profile came from.
type Relationship string

const (
	Following Relationship = "following" // the acting user follows them
	Follower  Relationship = "follower"  // they follow the acting user
)

// Note is the label shown under a profile in the network lists.
func (r Relationship) Note() string {
	if r == Follower {
		return "Follows you"
	}
	return "You follow them"
}

// FriendProfile is one entry of the following or followers list.
type FriendProfile struct {
	ID           string       `json:"id"`
	Name         string       `json:"name,omitempty"`
	Username     string       `json:"username"`
	Accent       string       `json:"accent"`
	Note         string       `json:"note"`
	Relationship Relationship `json:"relationship"`
}

// UserSummary is a user-search hit.
type UserSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username"`
}
