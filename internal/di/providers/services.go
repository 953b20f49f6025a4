package providers

import (
	"github.com/samber/do/v2"

	"github.com/pagevoice/pagevoice-server/internal/artifacts"
	"github.com/pagevoice/pagevoice-server/internal/benchmark"
	"github.com/pagevoice/pagevoice-server/internal/config"
	"github.com/pagevoice/pagevoice-server/internal/coverage"
	"github.com/pagevoice/pagevoice-server/internal/logger"
	"github.com/pagevoice/pagevoice-server/internal/ocr"
	"github.com/pagevoice/pagevoice-server/internal/pipeline"
	"github.com/pagevoice/pagevoice-server/internal/reader"
	"github.com/pagevoice/pagevoice-server/internal/service"
	"github.com/pagevoice/pagevoice-server/internal/session"
	"github.com/pagevoice/pagevoice-server/internal/tts"
)

// ProvideReaderClient provides the HTTP client for the remote reader service.
func ProvideReaderClient(i do.Injector) (reader.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return reader.NewHTTPClient(cfg.Reader.BaseURL, log.Logger), nil
}

// ProvideSessionStore provides the in-memory session store.
func ProvideSessionStore(i do.Injector) (*session.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	readerClient := do.MustInvoke[reader.Client](i)

	return session.New(readerClient, cfg.Session.TTL, log.Logger), nil
}

// ProvideTracker provides the coverage registry.
func ProvideTracker(i do.Injector) (*coverage.Tracker, error) {
	art := do.MustInvoke[*artifacts.Store](i)
	log := do.MustInvoke[*logger.Logger](i)

	return coverage.New(art, log.Logger), nil
}

// ProvideRecognizer provides the OCR client.
func ProvideRecognizer(i do.Injector) (ocr.Recognizer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var opts []ocr.SpaceOption
	if cfg.OCR.Language != "" {
		opts = append(opts, ocr.WithLanguage(cfg.OCR.Language))
	}

	return ocr.NewSpaceClient(cfg.OCR.APIKey, log.Logger, opts...), nil
}

// ProvideTTSRegistry provides the synthesizer registry. Providers without an
// API key are left unregistered; requests naming them fail with a clear error.
func ProvideTTSRegistry(i do.Injector) (*tts.Registry, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var synths []tts.Synthesizer

	if cfg.TTS.CartesiaAPIKey != "" {
		var opts []tts.CartesiaOption
		if cfg.TTS.CartesiaVoice != "" {
			opts = append(opts, tts.WithCartesiaVoice(cfg.TTS.CartesiaVoice))
		}
		synths = append(synths, tts.NewCartesia(cfg.TTS.CartesiaAPIKey, log.Logger, opts...))
	}

	if cfg.TTS.ElevenLabsAPIKey != "" {
		var opts []tts.ElevenLabsOption
		if cfg.TTS.ElevenLabsVoice != "" {
			opts = append(opts, tts.WithElevenLabsVoice(cfg.TTS.ElevenLabsVoice))
		}
		synths = append(synths, tts.NewElevenLabs(cfg.TTS.ElevenLabsAPIKey, log.Logger, opts...))
	}

	if len(synths) == 0 {
		log.Warn("no TTS provider API keys configured; narration requests will fail")
	}

	return tts.NewRegistry(synths...), nil
}

// ProvideAligner provides the benchmark aligner.
func ProvideAligner(i do.Injector) (*benchmark.Aligner, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return benchmark.NewAligner(cfg.TTS.BenchmarkIntervalSeconds), nil
}

// ProvideRunner provides the narration pipeline runner.
func ProvideRunner(i do.Injector) (*pipeline.Runner, error) {
	readerClient := do.MustInvoke[reader.Client](i)
	recognizer := do.MustInvoke[ocr.Recognizer](i)
	registry := do.MustInvoke[*tts.Registry](i)
	art := do.MustInvoke[*artifacts.Store](i)
	tracker := do.MustInvoke[*coverage.Tracker](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	aligner := do.MustInvoke[*benchmark.Aligner](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return pipeline.New(
		readerClient, recognizer, registry,
		art, tracker, storeHandle.Store,
		aligner, searchHandle.Index, log.Logger,
	), nil
}

// ProvideBookService provides the book catalog service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	readerClient := do.MustInvoke[reader.Client](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookService(readerClient, log.Logger), nil
}
