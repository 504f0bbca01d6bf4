package service

import (
	"context"

	"github.com/smazurov/camwatch/internal/config"
)

// WatchSources reloads the service whenever the sources file changes. Files
// that fail to load or validate are logged and ignored. The caller stops the
// returned watcher.
func (s *Service) WatchSources(ctx context.Context, path string) (*config.Watcher[[]config.SourceConfig], error) {
	w := config.NewWatcher(path, config.LoadSources, s.logger.With("file", path))
	w.OnReload(func(sources []config.SourceConfig) {
		s.logger.Info("Sources file changed, reload queued", "count", len(sources))
		s.Reload(sources)
	})
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
