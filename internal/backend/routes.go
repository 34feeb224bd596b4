package backend

import (
	"net/url"

	"github.com/sakif/movi/internal/model"
)

// Route builders for the core backend. Every caller-supplied segment is
// path-escaped; book ids in particular may contain characters that are
// not path-safe.

const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
)

func esc(s string) string { return url.PathEscape(s) }

// ListPath is the GET route for one library list.
func ListPath(list model.List, userID string) string {
	switch list {
	case model.ListWatched:
		return "/movies/user/" + esc(userID)
	case model.ListLater:
		return "/watchlatermovies/user/" + esc(userID)
	case model.ListRead:
		return "/read/user/" + esc(userID)
	default:
		return "/toberead/user/" + esc(userID)
	}
}

// ListField is the array field a list response stores its items under.
func ListField(list model.List) string {
	switch list {
	case model.ListRead:
		return "readBooks"
	case model.ListToRead:
		return "toBeReadBooks"
	default:
		return "items"
	}
}

// AddItemPath is the POST route adding itemID to list.
func AddItemPath(list model.List, userID, itemID string) string {
	switch list {
	case model.ListWatched:
		return "/addwatchedmovie/user/" + esc(userID) + "/movie/" + esc(itemID)
	case model.ListLater:
		return "/addwatchlatermovie/user/" + esc(userID) + "/movie/" + esc(itemID)
	case model.ListRead:
		return "/read/user/" + esc(userID) + "/book/" + esc(itemID)
	default:
		return "/toberead/user/" + esc(userID) + "/book/" + esc(itemID)
	}
}

// RemoveItemPath is the DELETE route removing itemID from list.
func RemoveItemPath(list model.List, userID, itemID string) string {
	switch list {
	case model.ListWatched:
		return "/removewatchedmovie/user/" + esc(userID) + "/movie/" + esc(itemID)
	case model.ListLater:
		return "/removewatchlatermovie/user/" + esc(userID) + "/movie/" + esc(itemID)
	default:
		// Book lists delete on the same path they add on.
		return AddItemPath(list, userID, itemID)
	}
}

// ReviewsPath lists a user's reviews.
func ReviewsPath(userID string) string {
	return "/reviews/user/" + esc(userID)
}

// CreateReviewPath is the POST route for a new review of kind.
func CreateReviewPath(kind model.Kind) string {
	if kind == model.KindBook {
		return "/createbookreview"
	}
	return "/createmoviereview"
}

// DeleteReviewPath deletes one review.
func DeleteReviewPath(kind model.Kind, reviewID string) string {
	return "/reviews/" + esc(string(kind)) + "/" + esc(reviewID)
}

// NetworkPath lists one side of a user's network.
func NetworkPath(side model.Relationship, userID string) string {
	return "/" + networkCollection(side) + "/user/" + esc(userID)
}

// NetworkField is the array field a network response stores entries under.
func NetworkField(side model.Relationship) string {
	return networkCollection(side)
}

// EdgePath adds (POST) or removes (DELETE) otherID in userID's side
// collection.
func EdgePath(side model.Relationship, userID, otherID string, add bool) string {
	verb := "usertoremove"
	if add {
		verb = "usertoadd"
	}
	return "/" + networkCollection(side) + "/user/" + esc(userID) + "/" + verb + "/" + esc(otherID)
}

func networkCollection(side model.Relationship) string {
	if side == model.Follower {
		return "followers"
	}
	return "following"
}

// SearchUsersPath searches users on behalf of userID.
func SearchUsersPath(userID, query string) string {
	return "/users/" + esc(userID) + "/searchUsers/" + esc(query)
}

// ActivityPath reads or appends to a user's activity log.
func ActivityPath(userID string) string {
	return "/users/" + esc(userID) + "/activity"
}

// ProfilePath reads or updates a user's profile.
func ProfilePath(userID string) string {
	return "/users/" + esc(userID) + "/profile"
}

// BioPath updates a user's bio.
func BioPath(userID string) string {
	return "/users/" + esc(userID) + "/bio"
}
