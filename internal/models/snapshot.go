package models

import (
	"slices"
	"time"
)

type Visibility int

const (
	VisibilityUnknown Visibility = iota
	VisibilityPublic
	VisibilityPrivate
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityPrivate:
		return "private"
	default:
		return "unknown"
	}
}

type ItemKind string

const (
	ItemPost  ItemKind = "post"
	ItemReel  ItemKind = "reel"
	ItemStory ItemKind = "story"
)

// Item is one post, reel or story identified by a stable ID.
type Item struct {
	ID      string    `json:"id"`
	Kind    ItemKind  `json:"kind"`
	TakenAt time.Time `json:"taken_at"`
	Caption string    `json:"caption,omitempty"`
	URL     string    `json:"url,omitempty"`
}

// Items is an ordered collection. Fetched=false means the provider did not
// return the collection, which is different from an empty one.
type Items struct {
	Fetched bool   `json:"fetched"`
	List    []Item `json:"list,omitempty"`
}

func FetchedItems(list ...Item) Items {
	return Items{Fetched: true, List: list}
}

// Members is a username set (followers or followings).
type Members struct {
	Fetched bool     `json:"fetched"`
	Names   []string `json:"names,omitempty"`
}

func FetchedMembers(names ...string) Members {
	return Members{Fetched: true, Names: names}
}

// Snapshot is the observable state of one target at one poll.
// nil pointers, empty hashes, VisibilityUnknown and Fetched=false all mean
// "not fetched".
type Snapshot struct {
	UserID         string     `json:"user_id"`
	Username       string     `json:"username"`
	Visibility     Visibility `json:"visibility"`
	Bio            *string    `json:"bio,omitempty"`
	ProfilePicHash string     `json:"profile_pic_hash,omitempty"`
	ProfilePicURL  string     `json:"profile_pic_url,omitempty"`
	FollowerCount  *int64     `json:"follower_count,omitempty"`
	FollowingCount *int64     `json:"following_count,omitempty"`
	PostCount      *int64     `json:"post_count,omitempty"`
	Posts          Items      `json:"posts"`
	Reels          Items      `json:"reels"`
	Stories        Items      `json:"stories"`
	Followers      Members    `json:"followers"`
	Followings     Members    `json:"followings"`
	TakenAt        time.Time  `json:"taken_at"`
}

// Merge returns a new snapshot equal to s with every unknown field filled
// from prev. It is used to commit a degraded fetch without losing baseline
// data.
func (s *Snapshot) Merge(prev *Snapshot) *Snapshot {
	out := s.Clone()
	if prev == nil {
		return out
	}
	if out.UserID == "" {
		out.UserID = prev.UserID
	}
	if out.Visibility == VisibilityUnknown {
		out.Visibility = prev.Visibility
	}
	if out.Bio == nil && prev.Bio != nil {
		out.Bio = Ptr(*prev.Bio)
	}
	if out.ProfilePicHash == "" {
		out.ProfilePicHash = prev.ProfilePicHash
		out.ProfilePicURL = prev.ProfilePicURL
	}
	if out.FollowerCount == nil && prev.FollowerCount != nil {
		out.FollowerCount = Ptr(*prev.FollowerCount)
	}
	if out.FollowingCount == nil && prev.FollowingCount != nil {
		out.FollowingCount = Ptr(*prev.FollowingCount)
	}
	if out.PostCount == nil && prev.PostCount != nil {
		out.PostCount = Ptr(*prev.PostCount)
	}
	if !out.Posts.Fetched {
		out.Posts = prev.Posts.clone()
	}
	if !out.Reels.Fetched {
		out.Reels = prev.Reels.clone()
	}
	if !out.Stories.Fetched {
		out.Stories = prev.Stories.clone()
	}
	if !out.Followers.Fetched {
		out.Followers = prev.Followers.clone()
	}
	if !out.Followings.Fetched {
		out.Followings = prev.Followings.clone()
	}
	return out
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.Bio != nil {
		out.Bio = Ptr(*s.Bio)
	}
	if s.FollowerCount != nil {
		out.FollowerCount = Ptr(*s.FollowerCount)
	}
	if s.FollowingCount != nil {
		out.FollowingCount = Ptr(*s.FollowingCount)
	}
	if s.PostCount != nil {
		out.PostCount = Ptr(*s.PostCount)
	}
	out.Posts = s.Posts.clone()
	out.Reels = s.Reels.clone()
	out.Stories = s.Stories.clone()
	out.Followers = s.Followers.clone()
	out.Followings = s.Followings.clone()
	return &out
}

func (i Items) clone() Items {
	return Items{Fetched: i.Fetched, List: slices.Clone(i.List)}
}

func (m Members) clone() Members {
	return Members{Fetched: m.Fetched, Names: slices.Clone(m.Names)}
}

func Ptr[T any](v T) *T {
	return &v
}
