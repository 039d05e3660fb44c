package notify

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"profmon/internal/models"
)

type ConsoleSink struct {
	log zerolog.Logger
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{
		log: zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "2006-01-02 15:04:05"}).
			With().Timestamp().Logger(),
	}
}

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) Send(_ context.Context, ev models.ChangeEvent) error {
	entry := c.log.Info()
	if ev.Kind == models.KindError {
		entry = c.log.Error()
	}
	entry.
		Str("target", ev.Target).
		Str("kind", string(ev.Kind)).
		Msg(Render(ev))
	return nil
}

func (c *ConsoleSink) Initial(_ context.Context, snap *models.Snapshot) {
	c.log.Info().Str("target", snap.Username).Msg(Summary(snap))
}
