package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gcbaptista/package-search/internal/logger"
	"github.com/gcbaptista/package-search/model"
)

// watchDebounce collapses the burst of events an editor or atomic rename produces.
const watchDebounce = 250 * time.Millisecond

// FileSource reads a JSON array of package documents from disk.
type FileSource struct {
	Path   string
	logger *slog.Logger
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string, log *slog.Logger) *FileSource {
	if log == nil {
		log = logger.Discard()
	}
	return &FileSource{Path: path, logger: log.With("component", "file-source", "path", path)}
}

func (s *FileSource) Name() string {
	return "file:" + s.Path
}

// Load reads and decodes the file.
func (s *FileSource) Load(ctx context.Context) ([]model.PackageDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading package file %s: %w", s.Path, err)
	}
	var docs []model.PackageDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decoding package file %s: %w", s.Path, err)
	}
	return docs, nil
}

// Watch calls onChange after the file is created, written or replaced, until
// ctx is cancelled. The parent directory is watched so atomic replacements are seen.
func (s *FileSource) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.Path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	s.logger.Info("watching package file")

	target := filepath.Clean(s.Path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(event, target) {
				continue
			}
			s.logger.Debug("package file changed", "op", event.Op.String())
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, onChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("file watcher error", "error", err)
		}
	}
}

// relevantEvent reports whether event changes the contents at target.
// Removals are ignored: the last good corpus stays loaded until a new file appears.
func relevantEvent(event fsnotify.Event, target string) bool {
	if filepath.Clean(event.Name) != target {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || (event.Has(fsnotify.Rename) && fileExists(target))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
