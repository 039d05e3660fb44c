package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"profmon/internal/providers"
)

const fileExt = ".state"

// FileStore keeps one zstd-compressed JSON file per target.
type FileStore struct {
	dir        string
	compressor Compressor
	logger     providers.Logger
}

func NewFileStore(dir string, compressor Compressor, logger providers.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure state directory: %w", err)
	}
	return &FileStore{
		dir:        dir,
		compressor: compressor,
		logger:     logger,
	}, nil
}

func (f *FileStore) Save(_ context.Context, rec *Record) error {
	if rec.Version == 0 {
		rec.Version = RecordVersion
	}
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return &StoreError{Kind: WriteFailed, Username: rec.Username, Err: err}
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return &StoreError{Kind: WriteFailed, Username: rec.Username, Err: err}
	}
	if err := writeAtomic(f.path(rec.Username), data); err != nil {
		return &StoreError{Kind: WriteFailed, Username: rec.Username, Err: err}
	}
	return nil
}

// writeAtomic writes to a temp file, syncs it and renames it over the
// target so a crash leaves either the old or the new record.
func writeAtomic(fileName string, data []byte) error {
	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

func (f *FileStore) Load(_ context.Context, username string) (*Record, error) {
	data, err := os.ReadFile(f.path(username))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StoreError{Kind: ReadFailed, Username: username, Err: err}
	}

	decompressed, err := f.compressor.Decompress(data)
	if err != nil {
		return nil, &StoreError{Kind: CorruptRecord, Username: username, Err: err}
	}

	var rec Record
	if err := json.Unmarshal(decompressed, &rec); err != nil {
		return nil, &StoreError{Kind: CorruptRecord, Username: username, Err: err}
	}
	if rec.Snapshot == nil {
		return nil, &StoreError{Kind: CorruptRecord, Username: username, Err: fmt.Errorf("record has no snapshot")}
	}
	if rec.Version > RecordVersion {
		f.logger.Warnf(providers.TypeStore, "Record for %s has newer version %d", username, rec.Version)
	}
	return &rec, nil
}

// Close is a no-op; the compressor belongs to its provider.
func (f *FileStore) Close() error {
	return nil
}

func (f *FileStore) path(username string) string {
	return filepath.Join(f.dir, safeName(username)+fileExt)
}

// safeName maps a username onto a file name that cannot escape dir.
func safeName(username string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, username)
	if name == "" || strings.Trim(name, ".") == "" {
		return "_" + name
	}
	return name
}
