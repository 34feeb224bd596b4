package normalize

import (
	"fmt"
	"strings"

	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
)

// Friend normalizes a following/followers entry ({name, username, userId}).
// Entries without any id are dropped.
func Friend(v jsonval.Value, rel model.Relationship) (model.FriendProfile, bool) {
	id := firstID(v, "userId", "_id", "id")
	if id == "" {
		return model.FriendProfile{}, false
	}
	username := firstText(v, "username")
	name := nameOf(v.Get("name"))
	if name == "" {
		name = username
	}
	seed := username
	if seed == "" {
		seed = id
	}
	return model.FriendProfile{
		ID:           id,
		Name:         name,
		Username:     username,
		Accent:       Accent(seed),
		Note:         rel.Note(),
		Relationship: rel,
	}, true
}

// User normalizes a user-search hit.
func User(v jsonval.Value) (model.UserSummary, bool) {
	id := firstID(v, "id", "_id", "userId")
	if id == "" {
		return model.UserSummary{}, false
	}
	username := firstText(v, "username")
	name := nameOf(v.Get("name"))
	if name == "" {
		name = username
	}
	return model.UserSummary{ID: id, Name: name, Username: username}, true
}

// Session normalizes the user object of an auth response or profile read.
func Session(v jsonval.Value) model.Session {
	username := firstText(v, "username")
	name := nameOf(v.Get("name"))
	if name == "" {
		name = username
	}
	return model.Session{
		ID:        firstID(v, "id", "_id", "userId"),
		Name:      name,
		Email:     strings.ToLower(firstText(v, "email")),
		Username:  username,
		AvatarURL: firstString(v, "avatarUrl"),
		Bio:       firstText(v, "bio"),
	}
}

// Accent derives a stable #RRGGBB colour from a seed string. The same
// username always gets the same colour on every device.
func Accent(seed string) string {
	// Unsigned so overflow wraps and the hue is never negative.
	var h uint32
	for _, c := range seed {
		h = 31*h + uint32(c)
	}
	hue := float64(h % 360)
	r, g, b := hslToRGB(hue, 0.45, 0.6)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// hslToRGB converts hue (0-360), saturation and lightness (0-1) to RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	h /= 360.0
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return toByte(hueToRGB(p, q, h+1.0/3)), toByte(hueToRGB(p, q, h)), toByte(hueToRGB(p, q, h-1.0/3))
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}

func toByte(f float64) uint8 {
	f = min(max(f, 0), 1)
	return uint8(f*255 + 0.5)
}
