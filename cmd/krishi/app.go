package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/krishi/internal/api"
	"github.com/ShayCichocki/krishi/internal/config"
	"github.com/ShayCichocki/krishi/internal/conflict"
	"github.com/ShayCichocki/krishi/internal/contextbuilder"
	"github.com/ShayCichocki/krishi/internal/intent"
	"github.com/ShayCichocki/krishi/internal/orchestrator"
	"github.com/ShayCichocki/krishi/internal/scheduler"
	"github.com/ShayCichocki/krishi/internal/state"
	"github.com/ShayCichocki/krishi/internal/synth"
	"github.com/ShayCichocki/krishi/internal/translate"
	"github.com/ShayCichocki/krishi/internal/worker"
	"github.com/ShayCichocki/krishi/internal/worker/builtin"
	"github.com/ShayCichocki/krishi/pkg/models"
)

// app bundles everything a command needs to answer queries.
type app struct {
	cfg        *config.Config
	db         *state.DB
	orch       *orchestrator.Orchestrator
	classifier *intent.Classifier
	logger     *orchestrator.DebugLogger
	llm        *api.Client
	stopWatch  context.CancelFunc
}

// loadConfig loads configuration from --config or the default locations.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// newApp wires the stores, workers, translator, classifier and orchestrator
// from configuration. Extra options are applied after the configured ones.
func newApp(ctx context.Context, opts ...orchestrator.Option) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := orchestrator.NewDebugLogger(debugLogPath)
	if err != nil {
		return nil, fmt.Errorf("create debug logger: %w", err)
	}

	routing := &config.Routing{}
	if cfg.Routing.File != "" {
		if routing, err = config.LoadRouting(cfg.Routing.File); err != nil {
			logger.Close()
			return nil, fmt.Errorf("load routing: %w", err)
		}
	}

	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	db, err := state.Open(dbPath)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		logger.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	if n, err := db.PurgeInactive(ctx, time.Now().Add(-cfg.Store.InactivityWindow)); err != nil {
		log.Printf("[krishi] purge inactive sessions: %v", err)
	} else if n > 0 {
		logger.Log("[krishi] purged %d inactive sessions", n)
	}

	a := &app{cfg: cfg, db: db, logger: logger, stopWatch: func() {}}
	if err := a.wire(ctx, routing, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, routing *config.Routing, extra []orchestrator.Option) error {
	cfg := a.cfg

	glossary, err := translate.NewGlossaryTranslator(routing.TranslationGlossary())
	if err != nil {
		return fmt.Errorf("build glossary: %w", err)
	}

	if cfg.NeedsLLM() {
		clientCfg := api.ClientConfig{
			Model:         anthropic.Model(cfg.Anthropic.Model),
			MaxTokens:     cfg.Anthropic.MaxTokens,
			UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		}
		if !cfg.Anthropic.UseAWSBedrock {
			key, err := config.GetAPIKey(cfg)
			if err != nil {
				return err
			}
			clientCfg.APIKey = key
		}
		if a.llm, err = api.NewClient(clientCfg); err != nil {
			return fmt.Errorf("create anthropic client: %w", err)
		}
	}

	registry := worker.NewRegistry()
	if err := builtin.Register(registry); err != nil {
		return fmt.Errorf("register workers: %w", err)
	}
	if err := registry.Register(translate.GlossaryWorker{Glossary: glossary}); err != nil {
		return fmt.Errorf("register translator worker: %w", err)
	}

	var translator translate.Translator = glossary
	if cfg.Translation.Provider == "llm" {
		translator = api.NewTranslator(a.llm, routing.TranslationGlossary())
	}

	clsOpts := []intent.Option{
		intent.WithCandidates(registry.Types()),
		intent.WithDebugLog(a.logger.Log),
	}
	if k := routing.IntentKeywords(); k != nil {
		clsOpts = append(clsOpts, intent.WithKeywords(k))
	}
	if l := routing.IntentLexicon(); l != nil {
		clsOpts = append(clsOpts, intent.WithLexicon(l))
	}
	if cfg.Classifier.UseLLM {
		clsOpts = append(clsOpts, intent.WithScorer(api.NewScorer(a.llm)))
	}
	a.classifier = intent.New(intent.Config{
		InclusionThreshold:     cfg.Classifier.InclusionThreshold,
		ClarificationThreshold: cfg.Classifier.ClarificationThreshold,
		SimilarityTimeout:      cfg.Classifier.SimilarityTimeout,
	}, clsOpts...)

	builder := contextbuilder.New(a.db, a.db, contextbuilder.Config{
		HistoryLimit: cfg.Store.HistoryLimit,
	}, contextbuilder.WithDebugLog(a.logger.Log))

	opts := []orchestrator.Option{
		orchestrator.WithConfig(orchestratorConfig(cfg, routing)),
		orchestrator.WithTranslator(translator),
		orchestrator.WithClassifier(a.classifier),
		orchestrator.WithResolver(conflict.NewResolver(conflict.WithMinimalImpact(cfg.Conflict.MinimalImpactThreshold))),
		orchestrator.WithLogger(a.logger),
	}
	opts = append(opts, extra...)

	a.orch, err = orchestrator.New(orchestrator.RequiredConfig{
		Registry: registry,
		Builder:  builder,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	if cfg.Routing.Watch && cfg.Routing.File != "" {
		watchCtx, cancel := context.WithCancel(ctx)
		a.stopWatch = cancel
		go func() {
			err := config.WatchRouting(watchCtx, cfg.Routing.File, a.applyRouting)
			if err != nil && watchCtx.Err() == nil {
				log.Printf("[krishi] routing watcher stopped: %v", err)
			}
		}()
	}
	return nil
}

// applyRouting swaps the hot-reloadable tables after a routing file change.
func (a *app) applyRouting(r *config.Routing) {
	if k := r.IntentKeywords(); k != nil {
		a.classifier.SetKeywords(k)
	}
	if l := r.IntentLexicon(); l != nil {
		a.classifier.SetLexicon(l)
	}
	a.orch.SetUnits(r.UnitMap())
	a.logger.Log("[krishi] routing reloaded from %s", a.cfg.Routing.File)
}

// Close stops the orchestrator and releases the store.
func (a *app) Close() error {
	a.stopWatch()
	var firstErr error
	if a.orch != nil {
		if err := a.orch.Close(); err != nil {
			firstErr = err
		}
	}
	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	a.logger.Close()
	return firstErr
}

func orchestratorConfig(cfg *config.Config, routing *config.Routing) orchestrator.Config {
	maxQueue := cfg.Orchestrator.MaxQueue
	if maxQueue == 0 {
		maxQueue = -1
	}
	return orchestrator.Config{
		QueryDeadline:      cfg.Orchestrator.QueryDeadline,
		TranslationTimeout: cfg.Translation.Timeout,
		ReviewThreshold:    cfg.Translation.ReviewThreshold,
		PrimaryLanguage:    cfg.Translation.PrimaryLanguage,
		MaxInFlight:        cfg.Orchestrator.MaxInFlight,
		MaxQueue:           maxQueue,
		AvgProcessing:      cfg.Orchestrator.AvgProcessing,
		Scheduler: scheduler.Config{
			WorkerTimeout: cfg.Workers.Timeout,
			PoolSize:      cfg.Workers.PoolSize,
			MinConfidence: cfg.Workers.MinConfidence,
		},
		Budget: synth.Budget{
			TargetWords:       cfg.Response.TargetWords,
			LowBandwidthWords: cfg.Response.LowBandwidthWords,
			LineWidth:         cfg.Response.LineWidth,
			Format:            models.FormatType(cfg.Response.Format),
			Units:             routing.UnitMap(),
		},
	}
}
