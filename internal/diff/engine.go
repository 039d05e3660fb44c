// Package diff compares two snapshots of the same target and produces an
// ordered list of change events.
package diff

import (
	"errors"
	"slices"
	"sort"
	"strconv"
	"time"

	"profmon/internal/models"
)

var ErrTargetMismatch = errors.New("snapshots belong to different targets")

type Options struct {
	// DetailedStories enables story-expired events. Without it, a story
	// leaving the list is treated as normal expiry and ignored.
	DetailedStories bool
}

// Diff returns the changes from prev to cur in a fixed order: visibility,
// bio, profile picture, posts/reels, stories, followers, followings.
// A nil prev is a first run and yields no events.
func Diff(prev, cur *models.Snapshot, at time.Time, opts Options) ([]models.ChangeEvent, error) {
	if prev == nil || cur == nil {
		return nil, nil
	}
	if !sameTarget(prev, cur) {
		return nil, ErrTargetMismatch
	}

	d := &differ{target: cur.Username, at: at}

	if prev.Visibility != models.VisibilityUnknown && cur.Visibility != models.VisibilityUnknown &&
		prev.Visibility != cur.Visibility {
		d.emit(models.KindVisibilityChanged, prev.Visibility.String(), cur.Visibility.String())
	}

	if prev.Bio != nil && cur.Bio != nil && *prev.Bio != *cur.Bio {
		d.emit(models.KindBioChanged, *prev.Bio, *cur.Bio)
	}

	if prev.ProfilePicHash != "" && cur.ProfilePicHash != "" && prev.ProfilePicHash != cur.ProfilePicHash {
		d.emit(models.KindProfilePicChanged, prev.ProfilePicHash, cur.ProfilePicHash)
	}

	// posts and reels share one chronological new-post stream
	var posts []models.Item
	if prev.Posts.Fetched && cur.Posts.Fetched {
		posts = freshItems(prev.Posts, cur.Posts)
	} else {
		d.count(models.KindPostCountChanged, prev.PostCount, cur.PostCount)
	}
	if prev.Reels.Fetched && cur.Reels.Fetched {
		posts = append(posts, freshItems(prev.Reels, cur.Reels)...)
	}
	d.items(models.KindNewPost, posts)

	if prev.Stories.Fetched && cur.Stories.Fetched {
		d.items(models.KindNewStory, freshItems(prev.Stories, cur.Stories))
		if opts.DetailedStories {
			d.expiredItems(models.KindStoryExpired, prev.Stories, cur.Stories)
		}
	}

	d.members(prev.Followers, cur.Followers, prev.FollowerCount, cur.FollowerCount,
		models.KindFollowerRemoved, models.KindFollowerAdded, models.KindFollowerCountChanged)
	d.members(prev.Followings, cur.Followings, prev.FollowingCount, cur.FollowingCount,
		models.KindFollowingRemoved, models.KindFollowingAdded, models.KindFollowingCountChanged)

	return d.events, nil
}

func sameTarget(prev, cur *models.Snapshot) bool {
	if prev.UserID != "" && cur.UserID != "" {
		return prev.UserID == cur.UserID
	}
	return prev.Username == cur.Username
}

type differ struct {
	target string
	at     time.Time
	events []models.ChangeEvent
}

func (d *differ) emit(kind models.ChangeKind, old, new string) *models.ChangeEvent {
	d.events = append(d.events, models.NewChangeEvent(d.target, kind, old, new, d.at))
	return &d.events[len(d.events)-1]
}

// freshItems returns the items of cur whose ID is not in prev. Providers
// list items newest first, so the result is reversed to keep ties in
// discovery order.
func freshItems(prev, cur models.Items) []models.Item {
	seen := make(map[string]struct{}, len(prev.List))
	for _, it := range prev.List {
		seen[it.ID] = struct{}{}
	}

	var fresh []models.Item
	for _, it := range cur.List {
		if _, ok := seen[it.ID]; !ok {
			fresh = append(fresh, it)
		}
	}
	slices.Reverse(fresh)
	return fresh
}

// items emits one event per item, oldest first.
func (d *differ) items(kind models.ChangeKind, fresh []models.Item) {
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].TakenAt.Before(fresh[j].TakenAt)
	})
	for _, it := range fresh {
		item := it
		ev := d.emit(kind, "", item.ID)
		ev.Item = &item
	}
}

func (d *differ) expiredItems(kind models.ChangeKind, prev, cur models.Items) {
	present := make(map[string]struct{}, len(cur.List))
	for _, it := range cur.List {
		present[it.ID] = struct{}{}
	}
	for _, it := range prev.List {
		if _, ok := present[it.ID]; ok {
			continue
		}
		item := it
		ev := d.emit(kind, item.ID, "")
		ev.Item = &item
	}
}

// members compares membership sets when both snapshots carry them and
// falls back to a single count event otherwise. The two modes never mix.
func (d *differ) members(prev, cur models.Members, prevCount, curCount *int64, removedKind, addedKind, countKind models.ChangeKind) {
	if !prev.Fetched || !cur.Fetched {
		d.count(countKind, prevCount, curCount)
		return
	}

	removed, added := setDiff(prev.Names, cur.Names)
	for _, name := range removed {
		d.emit(removedKind, name, "")
	}
	for _, name := range added {
		d.emit(addedKind, "", name)
	}
}

func (d *differ) count(kind models.ChangeKind, prev, cur *int64) {
	if prev == nil || cur == nil || *prev == *cur {
		return
	}
	d.emit(kind, strconv.FormatInt(*prev, 10), strconv.FormatInt(*cur, 10))
}

// setDiff returns the sorted names only in prev and only in cur.
func setDiff(prev, cur []string) (removed, added []string) {
	prevSet := toSet(prev)
	curSet := toSet(cur)
	for name := range prevSet {
		if _, ok := curSet[name]; !ok {
			removed = append(removed, name)
		}
	}
	for name := range curSet {
		if _, ok := prevSet[name]; !ok {
			added = append(added, name)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	return removed, added
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
