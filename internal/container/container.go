package container

import (
	"context"
	"net/http"

	"go-image-transcriber/internal/analyzer"
	"go-image-transcriber/internal/auth"
	"go-image-transcriber/internal/config"
	"go-image-transcriber/internal/logger"
	"go-image-transcriber/internal/observer"
	"go-image-transcriber/internal/ocr"
	"go-image-transcriber/internal/repository"
	"go-image-transcriber/internal/service"
	"go-image-transcriber/internal/storage"
	"go-image-transcriber/internal/translator"
	"go-image-transcriber/internal/transport"
	"go-image-transcriber/internal/vision"

	"github.com/dgraph-io/badger/v4"
)

// Container holds all application dependencies
type Container struct {
	config  *config.Config
	db      *badger.DB
	hub     *transport.Hub
	handler http.Handler
}

// NewContainer builds the full dependency graph.
func NewContainer(cfg *config.Config) (*Container, error) {
	db, err := repository.OpenDB(cfg.BadgerPath)
	if err != nil {
		return nil, err
	}

	transcriptionRepo := repository.NewBadgerTranscriptionRepository(db)
	collectionRepo := repository.NewBadgerCollectionRepository(db)

	imageAnalyzer := analyzer.NewImageAnalyzer()
	visionClient := vision.NewClient(cfg.ModelEndpoint, cfg.ModelAPIKey, cfg.VisionModel, cfg.TextModel, cfg.VisionTimeout)

	var textTranslator translator.Translator
	if cfg.TranslationEndpoint != "" {
		textTranslator = translator.NewHTTPTranslator(cfg.TranslationEndpoint, cfg.TranslationTimeout)
	}

	var blobStore storage.BlobStore
	if cfg.BlobStoreConfigured() {
		blobStore, err = storage.NewAzureStore(cfg.AzureAccountName, cfg.AzureAccountKey, cfg.AzureContainer)
		if err != nil {
			return nil, err
		}
	}

	hub := transport.NewHub()
	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)
	events.Subscribe(hub)

	orchestrator := service.NewOrchestrator(
		imageAnalyzer,
		visionClient,
		visionClient,
		textTranslator,
		ocr.NewTesseractEngine(),
		transcriptionRepo,
		service.NewRateLimiter(cfg.DailyRequestCap, cfg.MinRequestDelay),
		events,
		service.StepTimeouts{
			Vision:      cfg.VisionTimeout,
			Generation:  cfg.GenerationTimeout,
			Translation: cfg.TranslationTimeout,
		},
		cfg.TargetLanguage,
		cfg.AnalysisCacheTTL,
	)

	handler := transport.NewHandler(
		cfg,
		orchestrator,
		service.NewCollectionService(collectionRepo, transcriptionRepo),
		transcriptionRepo,
		storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout, cfg.MaxRequestBodySize),
		blobStore,
		auth.NewAuthenticator(cfg.Users),
		auth.NewTokenService(cfg.JWTSecret, cfg.TokenDuration),
		hub,
		metrics,
	)

	return &Container{
		config:  cfg,
		db:      db,
		hub:     hub,
		handler: handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// RunHub starts the websocket hub until the context ends.
func (c *Container) RunHub(ctx context.Context) {
	c.hub.Run(ctx)
}

// Close releases held resources.
func (c *Container) Close() error {
	return c.db.Close()
}
