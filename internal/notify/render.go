package notify

import (
	"fmt"
	"strings"

	"profmon/internal/models"
)

// Render formats ev as one human-readable line.
func Render(ev models.ChangeEvent) string {
	switch ev.Kind {
	case models.KindBioChanged:
		return fmt.Sprintf("%s changed bio: %q -> %q", ev.Target, ev.Old, ev.New)
	case models.KindProfilePicChanged:
		return fmt.Sprintf("%s changed profile picture (%s -> %s)", ev.Target, short(ev.Old), short(ev.New))
	case models.KindVisibilityChanged:
		return fmt.Sprintf("%s is now %s (was %s)", ev.Target, ev.New, ev.Old)
	case models.KindNewPost, models.KindNewStory:
		kind := "post"
		if ev.Kind == models.KindNewStory {
			kind = "story"
		}
		if ev.Item != nil {
			kind = string(ev.Item.Kind)
			if ev.Item.URL != "" {
				return fmt.Sprintf("%s published a new %s: %s", ev.Target, kind, ev.Item.URL)
			}
		}
		return fmt.Sprintf("%s published a new %s: %s", ev.Target, kind, ev.New)
	case models.KindStoryExpired:
		return fmt.Sprintf("%s story %s expired", ev.Target, ev.Old)
	case models.KindFollowerAdded:
		return fmt.Sprintf("%s has a new follower: %s", ev.Target, ev.New)
	case models.KindFollowerRemoved:
		return fmt.Sprintf("%s lost follower: %s", ev.Target, ev.Old)
	case models.KindFollowingAdded:
		return fmt.Sprintf("%s started following %s", ev.Target, ev.New)
	case models.KindFollowingRemoved:
		return fmt.Sprintf("%s stopped following %s", ev.Target, ev.Old)
	case models.KindError:
		return fmt.Sprintf("%s: monitoring error: %s", ev.Target, ev.New)
	default:
		label := strings.ReplaceAll(string(ev.Kind), "-", " ")
		return fmt.Sprintf("%s %s: %s -> %s", ev.Target, label, ev.Old, ev.New)
	}
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	if hash == "" {
		return "none"
	}
	return hash
}

// Summary describes a freshly captured baseline.
func Summary(snap *models.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: initial state captured (%s", snap.Username, snap.Visibility)
	if snap.FollowerCount != nil {
		fmt.Fprintf(&b, ", %d followers", *snap.FollowerCount)
	}
	if snap.FollowingCount != nil {
		fmt.Fprintf(&b, ", %d followings", *snap.FollowingCount)
	}
	if snap.PostCount != nil {
		fmt.Fprintf(&b, ", %d posts", *snap.PostCount)
	}
	b.WriteString(")")
	return b.String()
}
