package notify

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"profmon/internal/models"
)

var changeLogHeader = []string{"timestamp", "target", "kind", "old", "new"}

// ChangeLog is the append-only CSV record of every dispatched event.
type ChangeLog struct {
	mu   sync.Mutex
	path string
}

func NewChangeLog(path string) (*ChangeLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create change log dir: %w", err)
	}
	return &ChangeLog{path: path}, nil
}

func (c *ChangeLog) Path() string {
	return c.path
}

// Append writes one row per event and syncs the file once per batch.
func (c *ChangeLog) Append(events []models.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open change log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat change log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(changeLogHeader); err != nil {
			return err
		}
	}
	for _, ev := range events {
		row := []string{ev.At.UTC().Format(time.RFC3339), ev.Target, string(ev.Kind), ev.Old, ev.New}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write change log: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush change log: %w", err)
	}
	return f.Sync()
}
