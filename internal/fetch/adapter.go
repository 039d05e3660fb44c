// Package fetch turns provider responses into snapshots and classifies
// failures into RateLimited, AuthRequired, NotFound and Transient.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"profmon/internal/models"
	"profmon/internal/providers"
)

const pictureCachePrefix = "pic:"

// Fetcher returns the current snapshot of a target. With AuthRequired it
// returns a degraded snapshot and the error together.
type Fetcher interface {
	Fetch(ctx context.Context, username string) (*models.Snapshot, error)
}

type FetcherFunc func(ctx context.Context, username string) (*models.Snapshot, error)

func (f FetcherFunc) Fetch(ctx context.Context, username string) (*models.Snapshot, error) {
	return f(ctx, username)
}

type Adapter struct {
	provider    Provider
	cache       providers.CacheProviderInterface
	logger      providers.Logger
	picturesDir string
	now         func() time.Time
}

func NewAdapter(provider Provider, cache providers.CacheProviderInterface, logger providers.Logger, picturesDir string) *Adapter {
	return &Adapter{
		provider:    provider,
		cache:       cache,
		logger:      logger,
		picturesDir: picturesDir,
		now:         time.Now,
	}
}

func (a *Adapter) Fetch(ctx context.Context, username string) (*models.Snapshot, error) {
	prof, err := a.provider.Profile(ctx, username)
	err = normalize(err)
	if err != nil && KindOf(err) != AuthRequired {
		return nil, err
	}
	if prof == nil {
		// AuthRequired without any payload: everything is unknown.
		prof = &ProviderProfile{}
	}

	snap := toSnapshot(username, prof, a.now())
	if prof.ProfilePicURL != "" {
		hash, herr := a.pictureHash(ctx, username, prof.ProfilePicURL)
		if herr != nil {
			a.logger.Warnf(providers.TypeFetch, "Picture hash for %s unavailable: %s", username, herr)
		}
		snap.ProfilePicHash = hash
	}
	return snap, err
}

// pictureHash returns the sha256 of the picture content. Hashes are cached
// by URL; new pictures are written to picturesDir when configured.
func (a *Adapter) pictureHash(ctx context.Context, username, url string) (string, error) {
	key := pictureCachePrefix + url
	if cached, ok := a.cache.Get(key); ok {
		return string(cached), nil
	}

	data, err := a.provider.Picture(ctx, url)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	a.cache.Set(key, []byte(hash), 0)

	if a.picturesDir != "" {
		if err := a.savePicture(username, hash, data); err != nil {
			a.logger.Warnf(providers.TypeFetch, "Failed to save picture for %s: %s", username, err)
		}
	}
	return hash, nil
}

func (a *Adapter) savePicture(username, hash string, data []byte) error {
	dir := filepath.Join(a.picturesDir, filepath.Base(filepath.Clean("/"+username)))
	fileName := filepath.Join(dir, hash+".jpg")
	if _, err := os.Stat(fileName); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp := fileName + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, fileName); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	a.logger.Infof(providers.TypeFetch, "Saved new profile picture for %s: %s", username, fileName)
	return nil
}

func toSnapshot(username string, p *ProviderProfile, at time.Time) *models.Snapshot {
	snap := &models.Snapshot{
		UserID:         p.UserID,
		Username:       username,
		ProfilePicURL:  p.ProfilePicURL,
		FollowerCount:  p.FollowerCount,
		FollowingCount: p.FollowingCount,
		PostCount:      p.MediaCount,
		Posts:          toItems(p.Posts, models.ItemPost),
		Reels:          toItems(p.Reels, models.ItemReel),
		Stories:        toItems(p.Stories, models.ItemStory),
		Followers:      toMembers(p.Followers),
		Followings:     toMembers(p.Followings),
		TakenAt:        at,
	}
	if p.Username != "" {
		snap.Username = p.Username
	}
	if p.Biography != nil {
		snap.Bio = models.Ptr(*p.Biography)
	}
	if p.IsPrivate != nil {
		snap.Visibility = models.VisibilityPublic
		if *p.IsPrivate {
			snap.Visibility = models.VisibilityPrivate
		}
	}
	return snap
}

func toItems(list *[]ProviderItem, kind models.ItemKind) models.Items {
	if list == nil {
		return models.Items{}
	}
	items := make([]models.Item, 0, len(*list))
	for _, it := range *list {
		items = append(items, models.Item{
			ID:      it.ID,
			Kind:    kind,
			TakenAt: it.TakenAt,
			Caption: it.Caption,
			URL:     it.URL,
		})
	}
	return models.FetchedItems(items...)
}

func toMembers(names *[]string) models.Members {
	if names == nil {
		return models.Members{}
	}
	return models.FetchedMembers(append([]string(nil), *names...)...)
}
