package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/pagevoice/pagevoice-server/internal/config"
	"github.com/pagevoice/pagevoice-server/internal/logger"
	"github.com/pagevoice/pagevoice-server/internal/session"
	"github.com/pagevoice/pagevoice-server/internal/watcher"
)

// SessionGCJob evicts idle sessions on a timer.
type SessionGCJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *SessionGCJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideSessionGCJob provides the periodic session sweep.
func ProvideSessionGCJob(i do.Injector) (*SessionGCJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	sessions := do.MustInvoke[*session.Store](i)
	log := do.MustInvoke[*logger.Logger](i)

	interval := cfg.Session.GCInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if evicted := sessions.GC(); evicted > 0 {
					log.Info("Session sweep completed", "evicted", evicted, "remaining", sessions.Len())
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Session sweep started", "interval", interval)

	return &SessionGCJob{cancel: cancel}, nil
}

// ArtifactWatcherHandle wraps the artifact watcher with shutdown capability.
type ArtifactWatcherHandle struct {
	*watcher.Watcher
	started bool
}

// Shutdown implements do.Shutdownable.
func (h *ArtifactWatcherHandle) Shutdown() error {
	if !h.started {
		return nil
	}
	return h.Watcher.Close()
}

// ProvideArtifactWatcher provides the out-of-band artifact change watcher.
func ProvideArtifactWatcher(i do.Injector) (*ArtifactWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Server.WatchArtifacts {
		log.Info("Artifact watcher disabled by configuration")
		return &ArtifactWatcherHandle{started: false}, nil
	}

	w, err := watcher.New(cfg.Data.ArtifactsPath(), log.Logger)
	if err != nil {
		return nil, err
	}

	if err := w.Start(); err != nil {
		return nil, err
	}

	return &ArtifactWatcherHandle{Watcher: w, started: true}, nil
}
