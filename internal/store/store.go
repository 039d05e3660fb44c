// Package store persists the per-target diff baseline.
package store

import (
	"context"
	"fmt"
	"time"

	"profmon/internal/models"
	"profmon/internal/providers"
	"profmon/internal/structures"
)

const RecordVersion = 1

// Record is the persisted baseline of one target.
type Record struct {
	Version  int              `json:"version"`
	Username string           `json:"username"`
	Snapshot *models.Snapshot `json:"snapshot"`
	Checks   int64            `json:"checks"`
	SavedAt  time.Time        `json:"saved_at"`
}

// StateStore keeps one record per target with atomic replace-on-write.
// Load returns nil, nil when the target has no record yet.
type StateStore interface {
	Load(ctx context.Context, username string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Close() error
}

// NewStateStore opens the configured backend. The cleanup closes it.
func NewStateStore(conf *structures.Config, compressor Compressor, logger providers.Logger) (StateStore, func(), error) {
	st, err := openStateStore(conf, compressor, logger)
	if err != nil {
		return nil, nil, err
	}
	return st, func() {
		if err := st.Close(); err != nil {
			logger.Errorf(providers.TypeStore, "Closing state store: %s", err)
		}
	}, nil
}

func openStateStore(conf *structures.Config, compressor Compressor, logger providers.Logger) (StateStore, error) {
	switch conf.Persistence.Driver {
	case "sqlite":
		path := conf.Persistence.SqlitePath
		if path == "" {
			path = conf.Persistence.Dir + "/profmon.db"
		}
		logger.Infof(providers.TypeStore, "Using sqlite state store %s", path)
		return NewSqliteStore(path)
	case "file", "":
		logger.Infof(providers.TypeStore, "Using file state store in %s", conf.Persistence.Dir)
		return NewFileStore(conf.Persistence.Dir, compressor, logger)
	default:
		return nil, fmt.Errorf("unknown persistence driver %q", conf.Persistence.Driver)
	}
}
