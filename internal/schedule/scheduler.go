// Package schedule computes poll times: jittered intervals, hour-of-day
// gating, rate-limit backoff and multi-target stagger.
package schedule

import (
	"math/rand"
	"sync"
	"time"

	"profmon/internal/structures"
)

const (
	defaultMinDelay   = time.Second
	defaultMaxBackoff = 6 * time.Hour
)

// HourRange is an inclusive hour-of-day window. Start > End wraps past
// midnight. 0/0 means the range is disabled.
type HourRange struct {
	Start int
	End   int
}

func (r HourRange) Disabled() bool {
	return r.Start == 0 && r.End == 0
}

func (r HourRange) Contains(hour int) bool {
	if r.Disabled() {
		return false
	}
	if r.Start <= r.End {
		return hour >= r.Start && hour <= r.End
	}
	return hour >= r.Start || hour <= r.End
}

type Policy struct {
	JitterLow     time.Duration
	JitterHigh    time.Duration
	MinDelay      time.Duration
	MaxBackoff    time.Duration
	StaggerJitter time.Duration
	Hours         []HourRange
}

func PolicyFromConfig(conf structures.ScheduleConfig) Policy {
	p := Policy{
		JitterLow:     conf.JitterLow,
		JitterHigh:    conf.JitterHigh,
		MinDelay:      conf.MinDelay,
		MaxBackoff:    conf.MaxBackoff,
		StaggerJitter: conf.StaggerJitter,
	}
	for _, h := range conf.Hours {
		p.Hours = append(p.Hours, HourRange{Start: h.Start, End: h.End})
	}
	return p
}

// Scheduler is safe for concurrent use by several runners.
type Scheduler struct {
	policy Policy

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(policy Policy) *Scheduler {
	return NewWithRand(policy, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewFromConfig builds the process-wide scheduler.
func NewFromConfig(conf *structures.Config) *Scheduler {
	return New(PolicyFromConfig(conf.Schedule))
}

func NewWithRand(policy Policy, rnd *rand.Rand) *Scheduler {
	if policy.MinDelay <= 0 {
		policy.MinDelay = defaultMinDelay
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = defaultMaxBackoff
	}
	if policy.JitterLow < 0 {
		policy.JitterLow = -policy.JitterLow
	}
	if policy.JitterHigh < 0 {
		policy.JitterHigh = -policy.JitterHigh
	}
	return &Scheduler{policy: policy, rnd: rnd}
}

func (s *Scheduler) Policy() Policy {
	return s.policy
}

// Jitter returns a uniform offset in [-JitterLow, +JitterHigh].
func (s *Scheduler) Jitter() time.Duration {
	span := int64(s.policy.JitterLow + s.policy.JitterHigh)
	if span <= 0 {
		return 0
	}
	return time.Duration(s.int63n(span+1)) - s.policy.JitterLow
}

// Next returns the time the following poll should execute.
func (s *Scheduler) Next(now time.Time, interval time.Duration) time.Time {
	delay := interval + s.Jitter()
	if delay < s.policy.MinDelay {
		delay = s.policy.MinDelay
	}
	return s.gate(now.Add(delay))
}

// First returns the time of a target's first poll, offset from now and
// moved into an allowed window when gating is on.
func (s *Scheduler) First(now time.Time, offset time.Duration) time.Time {
	if offset < 0 {
		offset = 0
	}
	return s.gate(now.Add(offset))
}

// Backoff returns the extended delay after failures consecutive
// rate-limit responses: the interval doubles from the first failure on,
// bounded by MaxBackoff but never below the interval itself. A zero
// MaxBackoff leaves the doubling unbounded.
func (s *Scheduler) Backoff(now time.Time, interval time.Duration, failures int, retryAfter time.Duration) time.Time {
	delay := interval
	for i := 0; i < failures; i++ {
		delay *= 2
		if s.policy.MaxBackoff > 0 && delay >= s.policy.MaxBackoff {
			delay = max(s.policy.MaxBackoff, interval)
			break
		}
	}
	if retryAfter > delay {
		delay = retryAfter
	}
	delay += s.Jitter()
	if delay < s.policy.MinDelay {
		delay = s.policy.MinDelay
	}
	return s.gate(now.Add(delay))
}

// Stagger returns the first-poll offset of target index i out of n.
func (s *Scheduler) Stagger(i, n int, interval, explicit time.Duration) time.Duration {
	if i <= 0 || n <= 1 {
		return s.staggerJitter()
	}
	var offset time.Duration
	if explicit > 0 {
		offset = time.Duration(i) * explicit
	} else {
		offset = time.Duration(i) * (interval / time.Duration(n))
	}
	return offset + s.staggerJitter()
}

func (s *Scheduler) staggerJitter() time.Duration {
	if s.policy.StaggerJitter <= 0 {
		return 0
	}
	return time.Duration(s.int63n(int64(s.policy.StaggerJitter) + 1))
}

// Allowed reports whether t falls inside an enabled hour range. Without
// any enabled range everything is allowed.
func (s *Scheduler) Allowed(t time.Time) bool {
	if !s.gating() {
		return true
	}
	h := t.Hour()
	for _, r := range s.policy.Hours {
		if r.Contains(h) {
			return true
		}
	}
	return false
}

func (s *Scheduler) gating() bool {
	for _, r := range s.policy.Hours {
		if !r.Disabled() {
			return true
		}
	}
	return false
}

// gate defers t to the start of the next allowed window and re-applies
// the upper jitter from there, staying inside the window.
func (s *Scheduler) gate(t time.Time) time.Time {
	if s.Allowed(t) {
		return t
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	for i := 0; i < 48 && !s.Allowed(start); i++ {
		start = start.Add(time.Hour)
	}
	if !s.Allowed(start) {
		return t
	}
	if s.policy.JitterHigh > 0 {
		candidate := start.Add(time.Duration(s.int63n(int64(s.policy.JitterHigh) + 1)))
		if s.Allowed(candidate) {
			return candidate
		}
	}
	return start
}

func (s *Scheduler) int63n(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Int63n(n)
}
