package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const maxPictureSize = 16 << 20

// ProviderProfile is the raw profile as returned by a data provider. nil
// fields were not returned.
type ProviderProfile struct {
	UserID         string          `json:"user_id"`
	Username       string          `json:"username"`
	IsPrivate      *bool           `json:"is_private"`
	Biography      *string         `json:"biography"`
	ProfilePicURL  string          `json:"profile_pic_url"`
	FollowerCount  *int64          `json:"follower_count"`
	FollowingCount *int64          `json:"following_count"`
	MediaCount     *int64          `json:"media_count"`
	Posts          *[]ProviderItem `json:"posts"`
	Reels          *[]ProviderItem `json:"reels"`
	Stories        *[]ProviderItem `json:"stories"`
	Followers      *[]string       `json:"followers"`
	Followings     *[]string       `json:"followings"`
}

type ProviderItem struct {
	ID      string    `json:"id"`
	TakenAt time.Time `json:"taken_at"`
	Caption string    `json:"caption"`
	URL     string    `json:"url"`
}

// Provider is the boundary to whatever actually talks to the platform.
type Provider interface {
	Profile(ctx context.Context, username string) (*ProviderProfile, error)
	Picture(ctx context.Context, pictureURL string) ([]byte, error)
}

// HTTPProvider reads profiles from a profile-data sidecar over HTTP.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
	token   string
}

func NewHTTPProvider(client *http.Client, baseURL, token string) *HTTPProvider {
	return &HTTPProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Profile maps sidecar statuses onto the error taxonomy. A 401/403 with a
// JSON body yields the partial profile together with AuthRequired.
func (p *HTTPProvider) Profile(ctx context.Context, username string) (*ProviderProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/profiles/"+url.PathEscape(username), nil)
	if err != nil {
		return nil, newError(Transient, "build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: Transient, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		prof, err := decodeProfile(resp.Body)
		if err != nil {
			return nil, newError(Transient, "decode profile %s: %w", username, err)
		}
		return prof, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &FetchError{
			Kind:       RateLimited,
			Err:        fmt.Errorf("profile %s: status %d", username, resp.StatusCode),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		authErr := newError(AuthRequired, "profile %s: status %d", username, resp.StatusCode)
		prof, err := decodeProfile(resp.Body)
		if err != nil {
			return nil, authErr
		}
		return prof, authErr
	case resp.StatusCode == http.StatusNotFound:
		return nil, newError(NotFound, "profile %s does not exist", username)
	default:
		return nil, newError(Transient, "profile %s: status %d", username, resp.StatusCode)
	}
}

func (p *HTTPProvider) Picture(ctx context.Context, pictureURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pictureURL, nil)
	if err != nil {
		return nil, newError(Transient, "build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: Transient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newError(Transient, "picture: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPictureSize))
	if err != nil {
		return nil, &FetchError{Kind: Transient, Err: err}
	}
	return data, nil
}

func decodeProfile(r io.Reader) (*ProviderProfile, error) {
	var prof ProviderProfile
	if err := json.NewDecoder(r).Decode(&prof); err != nil {
		return nil, err
	}
	return &prof, nil
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
