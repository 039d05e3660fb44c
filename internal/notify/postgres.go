package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"profmon/internal/models"
)

const profileChangesSchema = `
CREATE TABLE IF NOT EXISTS profile_changes (
	id         UUID PRIMARY KEY,
	target     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	old_value  TEXT NOT NULL,
	new_value  TEXT NOT NULL,
	item_id    TEXT,
	changed_at TIMESTAMPTZ NOT NULL
)`

const insertProfileChange = `
INSERT INTO profile_changes (id, target, kind, old_value, new_value, item_id, changed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresSink struct {
	db    execer
	close func()
}

// NewPostgresSink connects, pings and makes sure the table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	// PgBouncer in transaction mode rejects prepared statements.
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, profileChangesSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create profile_changes: %w", err)
	}
	return &PostgresSink{db: pool, close: pool.Close}, nil
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) Send(ctx context.Context, ev models.ChangeEvent) error {
	var itemID *string
	if ev.Item != nil {
		itemID = &ev.Item.ID
	}
	_, err := p.db.Exec(ctx, insertProfileChange, ev.ID, ev.Target, string(ev.Kind), ev.Old, ev.New, itemID, ev.At)
	return err
}

func (p *PostgresSink) Close() {
	if p.close != nil {
		p.close()
	}
}
