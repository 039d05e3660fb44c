package models

import (
	"time"

	"github.com/google/uuid"
)

type ChangeKind string

const (
	KindBioChanged            ChangeKind = "bio-changed"
	KindProfilePicChanged     ChangeKind = "profile-pic-changed"
	KindVisibilityChanged     ChangeKind = "visibility-changed"
	KindNewPost               ChangeKind = "new-post"
	KindNewStory              ChangeKind = "new-story"
	KindStoryExpired          ChangeKind = "story-expired"
	KindPostCountChanged      ChangeKind = "post-count-changed"
	KindFollowerCountChanged  ChangeKind = "follower-count-changed"
	KindFollowingCountChanged ChangeKind = "following-count-changed"
	KindFollowerAdded         ChangeKind = "follower-added"
	KindFollowerRemoved       ChangeKind = "follower-removed"
	KindFollowingAdded        ChangeKind = "following-added"
	KindFollowingRemoved      ChangeKind = "following-removed"
	KindError                 ChangeKind = "error"
)

var AllKinds = []ChangeKind{
	KindBioChanged,
	KindProfilePicChanged,
	KindVisibilityChanged,
	KindNewPost,
	KindNewStory,
	KindStoryExpired,
	KindPostCountChanged,
	KindFollowerCountChanged,
	KindFollowingCountChanged,
	KindFollowerAdded,
	KindFollowerRemoved,
	KindFollowingAdded,
	KindFollowingRemoved,
	KindError,
}

func (k ChangeKind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ChangeEvent is one detected difference between two snapshots of the
// same target.
type ChangeEvent struct {
	ID     string     `json:"id"`
	Target string     `json:"target"`
	Kind   ChangeKind `json:"kind"`
	Old    string     `json:"old"`
	New    string     `json:"new"`
	Item   *Item      `json:"item,omitempty"`
	At     time.Time  `json:"at"`
}

func NewChangeEvent(target string, kind ChangeKind, old, new string, at time.Time) ChangeEvent {
	return ChangeEvent{
		ID:     uuid.NewString(),
		Target: target,
		Kind:   kind,
		Old:    old,
		New:    new,
		At:     at,
	}
}

// NewErrorEvent builds the error-kind event used for terminal and store
// failures.
func NewErrorEvent(target string, err error, at time.Time) ChangeEvent {
	return NewChangeEvent(target, KindError, "", err.Error(), at)
}
