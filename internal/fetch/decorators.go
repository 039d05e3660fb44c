package fetch

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"profmon/internal/models"
	"profmon/internal/providers"
	"profmon/internal/structures"
)

// Gate serializes outbound fetches across targets. A nil Gate is open.
type Gate chan struct{}

func NewGate() Gate {
	return make(Gate, 1)
}

// WithGate holds the gate for the duration of next's call only.
func WithGate(next Fetcher, gate Gate) Fetcher {
	if gate == nil {
		return next
	}
	return FetcherFunc(func(ctx context.Context, username string) (*models.Snapshot, error) {
		select {
		case gate <- struct{}{}:
		case <-ctx.Done():
			return nil, &FetchError{Kind: Transient, Err: ctx.Err()}
		}
		defer func() { <-gate }()
		return next.Fetch(ctx, username)
	})
}

// WithPacing waits a random human-like delay in [minDelay, maxDelay]
// before each call.
func WithPacing(next Fetcher, minDelay, maxDelay time.Duration, rnd *rand.Rand) Fetcher {
	if maxDelay <= 0 || maxDelay < minDelay {
		return next
	}
	var mu sync.Mutex
	return FetcherFunc(func(ctx context.Context, username string) (*models.Snapshot, error) {
		delay := minDelay
		if span := int64(maxDelay - minDelay); span > 0 {
			mu.Lock()
			delay += time.Duration(rnd.Int63n(span + 1))
			mu.Unlock()
		}
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return nil, &FetchError{Kind: Transient, Err: ctx.Err()}
			}
		}
		return next.Fetch(ctx, username)
	})
}

// WithTimeout bounds next by d. The call is detached from the caller's
// cancellation so a shutdown lets an in-flight request finish.
func WithTimeout(next Fetcher, d time.Duration) Fetcher {
	if d <= 0 {
		return next
	}
	return FetcherFunc(func(ctx context.Context, username string) (*models.Snapshot, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d)
		defer cancel()
		snap, err := next.Fetch(callCtx, username)
		return snap, normalize(err)
	})
}

// Compose wraps base as gate(pacing(timeout(base))). Waiting for the gate
// or the pacing delay stays cancellable; the request itself does not.
func Compose(base Fetcher, conf structures.FetchConfig, gate Gate) Fetcher {
	f := WithTimeout(base, conf.Timeout)
	f = WithPacing(f, conf.PacingMin, conf.PacingMax, rand.New(rand.NewSource(time.Now().UnixNano())))
	return WithGate(f, gate)
}

// NewFetcher builds the sidecar-backed fetcher with all decorators. The
// gate is only installed when fetches are serialized.
func NewFetcher(conf *structures.Config, client *http.Client, cache providers.CacheProviderInterface, logger providers.Logger) Fetcher {
	provider := NewHTTPProvider(client, conf.Fetch.BaseURL, conf.Fetch.SessionToken)
	adapter := NewAdapter(provider, cache, logger, conf.Fetch.PicturesDir)

	var gate Gate
	if conf.Schedule.SerializeFetches {
		gate = NewGate()
		logger.Infof(providers.TypeFetch, "Outbound fetches are serialized")
	}
	return Compose(adapter, conf.Fetch, gate)
}
