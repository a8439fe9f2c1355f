package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileDebounce is the quiet period after a file event before reloading.
const FileDebounce = 100 * time.Millisecond

// FileProvider reads settings from a YAML file and reloads it on change.
type FileProvider struct {
	path   string
	logger *slog.Logger
}

// NewFileProvider creates a provider for the YAML file at path. A missing
// file yields the defaults.
func NewFileProvider(path string, logger *slog.Logger) *FileProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileProvider{path: path, logger: logger}
}

// Path returns the watched file.
func (p *FileProvider) Path() string { return p.path }

// Load implements Provider.
func (p *FileProvider) Load(_ context.Context) (Settings, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("settings: read %s: %w", p.path, err)
	}
	s, err := Decode(data)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: %s: %w", p.path, err)
	}
	return s, nil
}

// Save writes s to the file, creating parent directories.
func (p *FileProvider) Save(_ context.Context, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("settings: mkdir: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("settings: write %s: %w", p.path, err)
	}
	return nil
}

// Watch implements Provider. The parent directory is watched so editors that
// replace the file on save are followed. A file that fails to parse is
// logged and skipped; the previous settings stay in effect.
func (p *FileProvider) Watch(ctx context.Context, fn func(Settings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings: create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(p.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("settings: watch %s: %w", dir, err)
	}
	p.logger.Info("settings: watching file", "path", p.path)

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != filepath.Base(p.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(FileDebounce)
			debounceCh = debounce.C

		case <-debounceCh:
			debounceCh = nil
			s, err := p.Load(ctx)
			if err != nil {
				p.logger.Warn("settings: reload failed", "path", p.path, "error", err)
				continue
			}
			p.logger.Info("settings: reloaded", "path", p.path, "phrases", len(s.Phrases))
			fn(s)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("settings: watcher error", "error", err)
		}
	}
}
