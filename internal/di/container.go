// Package di provides dependency injection configuration for the PageVoice server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/pagevoice/pagevoice-server/internal/artifacts"
	"github.com/pagevoice/pagevoice-server/internal/benchmark"
	"github.com/pagevoice/pagevoice-server/internal/config"
	"github.com/pagevoice/pagevoice-server/internal/coverage"
	"github.com/pagevoice/pagevoice-server/internal/di/providers"
	"github.com/pagevoice/pagevoice-server/internal/logger"
	"github.com/pagevoice/pagevoice-server/internal/ocr"
	"github.com/pagevoice/pagevoice-server/internal/pipeline"
	"github.com/pagevoice/pagevoice-server/internal/reader"
	"github.com/pagevoice/pagevoice-server/internal/service"
	"github.com/pagevoice/pagevoice-server/internal/session"
	"github.com/pagevoice/pagevoice-server/internal/tts"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideArtifactStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Upstream clients
	do.Provide(injector, providers.ProvideReaderClient)
	do.Provide(injector, providers.ProvideRecognizer)
	do.Provide(injector, providers.ProvideTTSRegistry)

	// Domain services
	do.Provide(injector, providers.ProvideSessionStore)
	do.Provide(injector, providers.ProvideTracker)
	do.Provide(injector, providers.ProvideAligner)
	do.Provide(injector, providers.ProvideRunner)
	do.Provide(injector, providers.ProvideBookService)

	// Workers
	do.Provide(injector, providers.ProvideSessionGCJob)
	do.Provide(injector, providers.ProvideArtifactWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)
	do.Provide(injector, providers.ProvideMDNSService)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle
// management. This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)

	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*artifacts.Store](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)

	_ = do.MustInvoke[reader.Client](injector)
	_ = do.MustInvoke[ocr.Recognizer](injector)
	_ = do.MustInvoke[*tts.Registry](injector)

	_ = do.MustInvoke[*session.Store](injector)
	_ = do.MustInvoke[*coverage.Tracker](injector)
	_ = do.MustInvoke[*benchmark.Aligner](injector)
	_ = do.MustInvoke[*pipeline.Runner](injector)
	_ = do.MustInvoke[*service.BookService](injector)

	_ = do.MustInvoke[*providers.SessionGCJob](injector)
	_ = do.MustInvoke[*providers.ArtifactWatcherHandle](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)
	_ = do.MustInvoke[*providers.MDNSServiceHandle](injector)

	return nil
}
