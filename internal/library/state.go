package library

import (
	"slices"

	"github.com/sakif/movi/internal/model"
)

// Phase is the controller's load state.
type Phase int

const (
	Idle Phase = iota
	Loading
	Ready
	Error
	Refreshing
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	case Refreshing:
		return "refreshing"
	default:
		return "idle"
	}
}

// State is a snapshot of everything the library screens render.
type State struct {
	Phase Phase
	// Message is the load error shown in the Error phase.
	Message string

	Watched []model.LibraryEntry
	Later   []model.LibraryEntry
	Read    []model.LibraryEntry
	ToRead  []model.LibraryEntry
	Reviews []model.Review
}

// List returns the entries of one list.
func (s State) List(l model.List) []model.LibraryEntry {
	switch l {
	case model.ListWatched:
		return s.Watched
	case model.ListLater:
		return s.Later
	case model.ListRead:
		return s.Read
	default:
		return s.ToRead
	}
}

func (s *State) setList(l model.List, entries []model.LibraryEntry) {
	switch l {
	case model.ListWatched:
		s.Watched = entries
	case model.ListLater:
		s.Later = entries
	case model.ListRead:
		s.Read = entries
	default:
		s.ToRead = entries
	}
}

// clone deep-copies the slices so a snapshot never aliases live state.
func (s State) clone() State {
	out := s
	out.Watched = slices.Clone(s.Watched)
	out.Later = slices.Clone(s.Later)
	out.Read = slices.Clone(s.Read)
	out.ToRead = slices.Clone(s.ToRead)
	out.Reviews = slices.Clone(s.Reviews)
	return out
}

func empty() State {
	return State{
		Watched: []model.LibraryEntry{},
		Later:   []model.LibraryEntry{},
		Read:    []model.LibraryEntry{},
		ToRead:  []model.LibraryEntry{},
		Reviews: []model.Review{},
	}
}

// without drops the entry with id.
func without(entries []model.LibraryEntry, id string) []model.LibraryEntry {
	return slices.DeleteFunc(slices.Clone(entries), func(e model.LibraryEntry) bool {
		return e.ID == id
	})
}

// prepend puts e first unless an entry with its id is already present.
func prepend(entries []model.LibraryEntry, e model.LibraryEntry) []model.LibraryEntry {
	if slices.ContainsFunc(entries, func(x model.LibraryEntry) bool { return x.ID == e.ID }) {
		return entries
	}
	return append([]model.LibraryEntry{e}, entries...)
}
