package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessierh/psyche/internal/api/handlers"
	mw "github.com/tessierh/psyche/internal/api/middleware"
	"github.com/tessierh/psyche/internal/config"
	"github.com/tessierh/psyche/internal/domain"
	"github.com/tessierh/psyche/internal/embedding"
	"github.com/tessierh/psyche/internal/llm"
	"github.com/tessierh/psyche/internal/service"
	"github.com/tessierh/psyche/internal/store"
	"go.uber.org/zap"
)

// App holds the router and background workers for lifecycle management.
type App struct {
	Router     *chi.Mux
	Recovery   *service.RecoveryWorker
	Maturation *service.MaturationWorker

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	// Stores
	beliefStore := store.NewBeliefStore(db)
	queueStore := store.NewQueueStore(db)
	stateStore := store.NewResourceStateStore(db)
	eventStore := store.NewResourceEventStore(db)
	correctionStore := store.NewCorrectionStore(db)
	linkStore := store.NewCausalLinkStore(db)

	// External clients via provider factory
	llmClient, err := llm.NewClient(config.LLMProvider(), config.LLMAPIKey())
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	logger.Info("llm client initialized", zap.String("provider", config.LLMProvider()))

	var embeddingClient domain.EmbeddingClient
	embeddingClient, err = embedding.NewClient(config.EmbeddingProvider(), config.EmbeddingAPIKey())
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}
	if embeddingClient == nil {
		logger.Info("running without embeddings, recall disabled")
	} else {
		logger.Info("embedding client initialized", zap.String("provider", config.EmbeddingProvider()))
	}

	// Services
	governor, err := service.NewGovernor(ctx, stateStore, eventStore, service.DefaultGovernorConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("governor: %w", err)
	}
	logger.Info("governor loaded", zap.Int("energy", governor.Energy()))

	admission := service.NewAdmissionController(governor, queueStore, service.AdmissionConfig{
		CriticalFloor:       config.CriticalEnergyFloor(),
		HeavyTopicThreshold: config.HeavyTopicEnergyThreshold(),
		CostTolerance:       config.CostTolerance(),
		HourlyCeiling:       config.HourlyExtractionCeiling(),
	}, logger)
	orchestrator := service.NewOrchestrator(llmClient, logger)
	engine := service.NewEngine(beliefStore, linkStore, embeddingClient, service.DefaultConsolidationConfig(), logger)
	tracker := service.NewTracker(beliefStore, domain.DefaultMaturityRules(), logger)
	correctionHandler := service.NewHandler(beliefStore, correctionStore, service.DefaultCorrectionConfig(), logger)

	pipelineCfg := service.DefaultPipelineConfig()
	pipelineCfg.CostTolerance = config.CostTolerance()
	pipelineCfg.RecoveryInterval = config.RecoveryInterval()
	pipelineCfg.RecoveryAmount = config.RecoveryAmount()
	pipeline := service.NewPipeline(governor, admission, orchestrator, engine, tracker, queueStore, pipelineCfg, logger)

	recovery := service.NewRecoveryWorker(governor, pipeline, service.RecoveryConfig{
		Interval:       config.RecoveryInterval(),
		Amount:         config.RecoveryAmount(),
		DrainThreshold: config.DrainEnergyThreshold(),
		DrainBatch:     config.DrainBatchLimit(),
	}, logger)
	maturation := service.NewMaturationWorker(tracker, config.MaturationInterval(), logger)

	// Handlers
	observationHandler := handlers.NewObservationHandler(pipeline)
	beliefHandler := handlers.NewBeliefHandler(beliefStore, correctionStore, linkStore, correctionHandler, tracker, embeddingClient)
	statusHandler := handlers.NewStatusHandler(pipeline, governor, eventStore)

	r := chi.NewRouter()

	app := &App{
		Router:     r,
		Recovery:   recovery,
		Maturation: maturation,
		startTime:  time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/observations", func(r chi.Router) {
			r.Post("/", observationHandler.Ingest)
			r.Post("/{id}/consent", observationHandler.Consent)
		})

		r.Post("/queue/drain", observationHandler.Drain)

		r.Get("/status", statusHandler.Status)

		r.Route("/resource", func(r chi.Router) {
			r.Get("/events", statusHandler.Events)
			r.Get("/stats", statusHandler.Stats)
			r.Post("/reset", statusHandler.Reset)
		})

		r.Route("/beliefs", func(r chi.Router) {
			r.Get("/", beliefHandler.List)
			r.Post("/recall", beliefHandler.Recall)
			r.Post("/sweep", beliefHandler.Sweep)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", beliefHandler.GetByID)
				r.Post("/corrections", beliefHandler.Correct)
				r.Get("/corrections", beliefHandler.Corrections)
				r.Get("/links", beliefHandler.Links)
			})
		})
	})

	return app, nil
}

// StartWorkers launches the background recovery and maturation loops.
func (app *App) StartWorkers() {
	app.Recovery.Start()
	app.Maturation.Start()
}

// StopWorkers stops the background loops and waits for them to exit.
func (app *App) StopWorkers() {
	app.Recovery.Stop()
	app.Maturation.Stop()
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
