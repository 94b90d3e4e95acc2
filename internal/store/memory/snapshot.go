package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"brettonwoods/internal/domain"
)

const snapshotVersion = 1

// snapshotDocument is the on-disk layout
type snapshotDocument struct {
	Version int            `json:"version"`
	SavedAt time.Time      `json:"savedAt"`
	Games   []*domain.Game `json:"games"`
}

// snapshotFile writes checkpoints with a temp file and rename, keeping the
// previous checkpoint as <path>.bak
type snapshotFile struct {
	path    string
	mu      sync.Mutex
	written uint64
}

func newSnapshotFile(path string) *snapshotFile {
	return &snapshotFile{path: path}
}

func (f *snapshotFile) backupPath() string {
	return f.path + ".bak"
}

func encodeSnapshot(games map[string]*domain.Game) ([]byte, error) {
	doc := snapshotDocument{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC(),
		Games:   make([]*domain.Game, 0, len(games)),
	}
	for _, g := range games {
		doc.Games = append(doc.Games, g)
	}
	sort.Slice(doc.Games, func(i, j int) bool {
		return doc.Games[i].Code < doc.Games[j].Code
	})
	return json.MarshalIndent(doc, "", "  ")
}

// load reads the checkpoint, falling back to the backup when the main file
// is unreadable. A missing file is an empty store.
func (f *snapshotFile) load() ([]*domain.Game, error) {
	games, err := readSnapshot(f.path)
	if err == nil {
		return games, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		if _, statErr := os.Stat(f.backupPath()); errors.Is(statErr, fs.ErrNotExist) {
			return nil, nil
		}
	}

	backup, backupErr := readSnapshot(f.backupPath())
	if backupErr != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", f.path, err)
	}
	return backup, nil
}

func readSnapshot(path string) ([]*domain.Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if doc.Version != snapshotVersion {
		return nil, fmt.Errorf("decode %s: unsupported version %d", path, doc.Version)
	}
	return doc.Games, nil
}

// write persists data unless a newer version has already been written
func (f *snapshotFile) write(data []byte, version uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if version < f.written {
		return nil
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}

	if _, err := os.Stat(f.path); err == nil {
		if err := os.Rename(f.path, f.backupPath()); err != nil {
			return fmt.Errorf("rotate snapshot backup: %w", err)
		}
	}

	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	f.written = version
	return nil
}
