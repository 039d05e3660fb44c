package testutil

import (
	"context"
	"sync"
	"time"

	"profmon/internal/models"
	"profmon/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Count returns how many entries were logged at level.
func (m *MockLogger) Count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.Logs {
		if l.Level == level {
			n++
		}
	}
	return n
}

// MockCache implements providers.CacheProviderInterface over a map.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
	TTLs map[string]time.Duration
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Data[key]
	return v, ok
}

func (m *MockCache) Set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Data == nil {
		m.Data = make(map[string][]byte)
		m.TTLs = make(map[string]time.Duration)
	}
	m.Data[key] = value
	m.TTLs[key] = ttl
}

// MockCompressor is an identity compressor with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
	Closed       bool
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() { m.Closed = true }

// FetchResult is one scripted answer of MockFetcher.
type FetchResult struct {
	Snapshot *models.Snapshot
	Err      error
}

// MockFetcher replays Results in order, then repeats Default.
type MockFetcher struct {
	mu        sync.Mutex
	Results   []FetchResult
	Default   FetchResult
	Usernames []string
	OnFetch   func(ctx context.Context, username string)
}

func (m *MockFetcher) Fetch(ctx context.Context, username string) (*models.Snapshot, error) {
	m.mu.Lock()
	idx := len(m.Usernames)
	m.Usernames = append(m.Usernames, username)
	res := m.Default
	if idx < len(m.Results) {
		res = m.Results[idx]
	}
	hook := m.OnFetch
	m.mu.Unlock()

	if hook != nil {
		hook(ctx, username)
	}
	return res.Snapshot.Clone(), res.Err
}

func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Usernames)
}

// MockSink records delivered events; Err, when set, fails every call
// after recording the attempt.
type MockSink struct {
	mu       sync.Mutex
	SinkName string
	Err      error
	Events   []models.ChangeEvent
}

func (m *MockSink) Name() string {
	if m.SinkName == "" {
		return "mock"
	}
	return m.SinkName
}

func (m *MockSink) Send(_ context.Context, ev models.ChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return m.Err
}

func (m *MockSink) Received() []models.ChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ChangeEvent(nil), m.Events...)
}

func (m *MockSink) Kinds() []models.ChangeKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]models.ChangeKind, 0, len(m.Events))
	for _, ev := range m.Events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

// MockMetrics implements providers.MetricsProviderInterface and counts the
// domain metrics.
type MockMetrics struct {
	mu            sync.Mutex
	Polls         map[string]int
	Changes       map[string]int
	SinkFailures  map[string]int
	NextChecks    map[string]time.Time
	Heartbeats    map[string]time.Time
	ActiveTargets int
}

func (m *MockMetrics) inc(dst *map[string]int, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if *dst == nil {
		*dst = make(map[string]int)
	}
	(*dst)[key]++
}

func (m *MockMetrics) set(dst *map[string]time.Time, key string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if *dst == nil {
		*dst = make(map[string]time.Time)
	}
	(*dst)[key] = at
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *MockMetrics) IncCacheHits(_ string)                            {}
func (m *MockMetrics) IncCacheMisses(_ string)                          {}
func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (m *MockMetrics) ObserveFetchDuration(_ string, _ time.Duration)   {}

func (m *MockMetrics) IncPolls(target, outcome string) { m.inc(&m.Polls, target+"/"+outcome) }
func (m *MockMetrics) IncChanges(target, kind string)  { m.inc(&m.Changes, target+"/"+kind) }
func (m *MockMetrics) IncSinkFailures(sink string)     { m.inc(&m.SinkFailures, sink) }

func (m *MockMetrics) SetNextCheck(target string, at time.Time)     { m.set(&m.NextChecks, target, at) }
func (m *MockMetrics) SetLastHeartbeat(target string, at time.Time) { m.set(&m.Heartbeats, target, at) }

func (m *MockMetrics) SetActiveTargets(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ActiveTargets = count
}

func (m *MockMetrics) Count(kind, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch kind {
	case "polls":
		return m.Polls[key]
	case "changes":
		return m.Changes[key]
	case "sinkFailures":
		return m.SinkFailures[key]
	}
	return 0
}
