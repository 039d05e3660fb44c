// Package notify fans change events out to independent sinks and keeps
// the append-only CSV change log.
package notify

import (
	"context"
	"errors"
	"fmt"

	"profmon/internal/models"
	"profmon/internal/providers"
)

// ErrDeliveryFailed matches every SinkError via errors.Is.
var ErrDeliveryFailed = errors.New("delivery failed")

type Sink interface {
	Name() string
	Send(ctx context.Context, ev models.ChangeEvent) error
}

// Acceptor is implemented by sinks that only take some kinds.
type Acceptor interface {
	Accepts(kind models.ChangeKind) bool
}

// BaselineObserver is implemented by sinks that show the initial state of a
// target when its first baseline is captured.
type BaselineObserver interface {
	Initial(ctx context.Context, snap *models.Snapshot)
}

type SinkError struct {
	Sink  string
	Event models.ChangeEvent
	Err   error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %s for %s/%s: %v", e.Sink, ErrDeliveryFailed, e.Event.Target, e.Event.Kind, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

func (e *SinkError) Is(target error) bool {
	return target == ErrDeliveryFailed
}

// Filter is a set of accepted kinds. A nil Filter accepts everything.
type Filter map[models.ChangeKind]struct{}

// ParseFilter expands preset names (all, errors, followers, posts,
// profile) and explicit kinds. No tokens means no filtering.
func ParseFilter(tokens []string) (Filter, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	f := make(Filter)
	for _, token := range tokens {
		if kinds, ok := providers.FilterPresets[token]; ok {
			for _, k := range kinds {
				f[k] = struct{}{}
			}
			continue
		}
		kind := models.ChangeKind(token)
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown filter token %q", token)
		}
		f[kind] = struct{}{}
	}
	return f, nil
}

func (f Filter) Allows(kind models.ChangeKind) bool {
	if f == nil {
		return true
	}
	_, ok := f[kind]
	return ok
}

type filteredSink struct {
	Sink
	filter Filter
}

// Filtered restricts s to the kinds in f.
func Filtered(s Sink, f Filter) Sink {
	if f == nil {
		return s
	}
	return &filteredSink{Sink: s, filter: f}
}

func (f *filteredSink) Accepts(kind models.ChangeKind) bool {
	if !f.filter.Allows(kind) {
		return false
	}
	if a, ok := f.Sink.(Acceptor); ok {
		return a.Accepts(kind)
	}
	return true
}

func (f *filteredSink) Initial(ctx context.Context, snap *models.Snapshot) {
	if o, ok := f.Sink.(BaselineObserver); ok {
		o.Initial(ctx, snap)
	}
}

func accepts(s Sink, kind models.ChangeKind) bool {
	if a, ok := s.(Acceptor); ok {
		return a.Accepts(kind)
	}
	return true
}
