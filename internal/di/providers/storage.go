package providers

import (
	"github.com/samber/do/v2"

	"github.com/pagevoice/pagevoice-server/internal/artifacts"
	"github.com/pagevoice/pagevoice-server/internal/config"
	"github.com/pagevoice/pagevoice-server/internal/logger"
	"github.com/pagevoice/pagevoice-server/internal/search"
	"github.com/pagevoice/pagevoice-server/internal/store"
)

// StoreHandle wraps the BadgerDB store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Store.Close()
}

// ProvideStore provides the BadgerDB chunk summary store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := store.New(cfg.Data.DatabasePath(), log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database opened", "path", cfg.Data.DatabasePath())

	return &StoreHandle{Store: db}, nil
}

// ProvideArtifactStore provides the on-disk artifact tree.
func ProvideArtifactStore(i do.Injector) (*artifacts.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	art, err := artifacts.New(cfg.Data.ArtifactsPath(), log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Artifact store ready", "root", cfg.Data.ArtifactsPath())

	return art, nil
}

// SearchIndexHandle wraps the Bleve index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Index.Close()
}

// ProvideSearchIndex provides the chunk text search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	idx, err := search.NewIndex(search.Options{
		DataPath: cfg.Data.SearchPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &SearchIndexHandle{Index: idx}, nil
}
