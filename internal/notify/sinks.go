package notify

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"profmon/internal/providers"
	"profmon/internal/structures"
)

// NewSinks builds the enabled sinks, each wrapped with its kind filter.
// The returned cleanup releases sink resources.
func NewSinks(ctx context.Context, conf *structures.Config, logger providers.Logger, client *http.Client, hub *Hub) ([]Sink, func(), error) {
	n := conf.Notify
	var (
		sinks    []Sink
		cleanups []func()
	)
	cleanup := func() {
		for _, c := range cleanups {
			c()
		}
	}
	add := func(s Sink, tokens []string) error {
		f, err := ParseFilter(tokens)
		if err != nil {
			return fmt.Errorf("notify.%s.filter: %w", s.Name(), err)
		}
		sinks = append(sinks, Filtered(s, f))
		logger.Infof(providers.TypeNotify, "Sink %s enabled", s.Name())
		return nil
	}

	if n.Console.Enabled {
		if err := add(NewConsoleSink(os.Stdout), n.Console.Filter); err != nil {
			return nil, cleanup, err
		}
	}
	if n.Email.Enabled {
		if err := add(NewEmailSink(n.Email), n.Email.Filter); err != nil {
			return nil, cleanup, err
		}
	}
	if n.Webhook.Enabled {
		if err := add(NewWebhookSink(client, n.Webhook), n.Webhook.Filter); err != nil {
			return nil, cleanup, err
		}
	}
	if n.Telegram.Enabled {
		tg, err := NewTelegramSink(n.Telegram)
		if err != nil {
			return nil, cleanup, err
		}
		if err := add(tg, n.Telegram.Filter); err != nil {
			return nil, cleanup, err
		}
	}
	if n.Dashboard.Enabled && hub != nil {
		if err := add(hub, n.Dashboard.Filter); err != nil {
			return nil, cleanup, err
		}
	}
	if n.Postgres.Enabled {
		pg, err := NewPostgresSink(ctx, n.Postgres.DSN)
		if err != nil {
			return nil, cleanup, err
		}
		cleanups = append(cleanups, pg.Close)
		if err := add(pg, n.Postgres.Filter); err != nil {
			return nil, cleanup, err
		}
	}

	if len(sinks) == 0 {
		logger.Warnf(providers.TypeNotify, "No sinks enabled, changes go to the change log only")
	}
	return sinks, cleanup, nil
}
