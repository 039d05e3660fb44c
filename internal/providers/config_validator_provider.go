package providers

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/gookit/validate"

	"profmon/internal/models"
	"profmon/internal/structures"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

// Validate runs the struct tag rules and then the cross-field checks
// that tags cannot express.
func (c *CnfValidator) Validate() error {
	v := validate.Struct(c.conf)
	if !v.Validate() {
		return v.Errors
	}

	var errs []error
	errs = append(errs, c.validateSchedule()...)
	errs = append(errs, c.validateTargets()...)
	errs = append(errs, c.validateNotify()...)

	if _, err := url.ParseRequestURI(c.conf.Fetch.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("fetch.baseURL: %w", err))
	}
	return errors.Join(errs...)
}

func (c *CnfValidator) validateSchedule() []error {
	var errs []error
	s := c.conf.Schedule
	if s.JitterLow < 0 || s.JitterHigh < 0 {
		errs = append(errs, errors.New("schedule: jitter bounds must be non-negative"))
	}
	if s.MaxBackoff > 0 && s.MaxBackoff < s.Interval {
		errs = append(errs, errors.New("schedule.maxBackoff must not be shorter than schedule.interval"))
	}
	if len(s.Hours) > 2 {
		errs = append(errs, errors.New("schedule.hours accepts at most two ranges"))
	}
	for i, h := range s.Hours {
		if h.Start < 0 || h.Start > 23 || h.End < 0 || h.End > 23 {
			errs = append(errs, fmt.Errorf("schedule.hours[%d]: hours must be within 0-23", i))
		}
	}
	return errs
}

func (c *CnfValidator) validateTargets() []error {
	if len(c.conf.Targets) == 0 {
		return []error{errors.New("at least one target is required")}
	}
	var errs []error
	seen := make(map[string]struct{}, len(c.conf.Targets))
	for i, t := range c.conf.Targets {
		if t.Username == "" {
			errs = append(errs, fmt.Errorf("targets[%d]: username is required", i))
			continue
		}
		if _, dup := seen[t.Username]; dup {
			errs = append(errs, fmt.Errorf("targets[%d]: duplicate username %q", i, t.Username))
		}
		seen[t.Username] = struct{}{}
		if t.Interval < 0 || t.Stagger < 0 {
			errs = append(errs, fmt.Errorf("targets[%d]: durations must be non-negative", i))
		}
	}
	return errs
}

func (c *CnfValidator) validateNotify() []error {
	var errs []error
	n := c.conf.Notify
	filters := map[string][]string{
		"console":   n.Console.Filter,
		"email":     n.Email.Filter,
		"webhook":   n.Webhook.Filter,
		"telegram":  n.Telegram.Filter,
		"dashboard": n.Dashboard.Filter,
		"postgres":  n.Postgres.Filter,
	}
	for sink, filter := range filters {
		for _, f := range filter {
			if !isFilterToken(f) {
				errs = append(errs, fmt.Errorf("notify.%s.filter: unknown entry %q", sink, f))
			}
		}
	}
	if n.Email.Enabled && (n.Email.Host == "" || n.Email.From == "" || len(n.Email.To) == 0) {
		errs = append(errs, errors.New("notify.email: host, from and to are required"))
	}
	if n.Webhook.Enabled {
		if _, err := url.ParseRequestURI(n.Webhook.URL); err != nil {
			errs = append(errs, fmt.Errorf("notify.webhook.url: %w", err))
		}
	}
	if n.Telegram.Enabled && (n.Telegram.Token == "" || n.Telegram.ChatID == 0) {
		errs = append(errs, errors.New("notify.telegram: token and chatID are required"))
	}
	if n.Postgres.Enabled && n.Postgres.DSN == "" {
		errs = append(errs, errors.New("notify.postgres.dsn is required"))
	}
	return errs
}

// FilterPresets names groups of change kinds usable in sink filters.
var FilterPresets = map[string][]models.ChangeKind{
	"all":    models.AllKinds,
	"errors": {models.KindError},
	"followers": {
		models.KindFollowerCountChanged, models.KindFollowingCountChanged,
		models.KindFollowerAdded, models.KindFollowerRemoved,
		models.KindFollowingAdded, models.KindFollowingRemoved,
	},
	"posts": {models.KindNewPost, models.KindNewStory, models.KindStoryExpired, models.KindPostCountChanged},
	"profile": {
		models.KindBioChanged, models.KindProfilePicChanged, models.KindVisibilityChanged,
	},
}

func isFilterToken(token string) bool {
	if _, ok := FilterPresets[token]; ok {
		return true
	}
	return models.ChangeKind(token).Valid()
}
