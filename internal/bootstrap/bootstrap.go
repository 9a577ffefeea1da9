package bootstrap

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"voxnote-go/internal/domain/artifact"
	"voxnote-go/internal/domain/capture"
	"voxnote-go/internal/domain/eventbus"
	"voxnote-go/internal/domain/lifecycle"
	"voxnote-go/internal/domain/migrate"
	"voxnote-go/internal/domain/note"
	"voxnote-go/internal/domain/promote"
	"voxnote-go/internal/domain/transcribe"
	platformconfig "voxnote-go/internal/platform/config"
	platformerrors "voxnote-go/internal/platform/errors"
	platformlogging "voxnote-go/internal/platform/logging"
	"voxnote-go/internal/platform/observability"
	"voxnote-go/internal/platform/storage"
	"voxnote-go/internal/util/work"
)

// Options carries the host-provided device adapters. The OS microphone and
// the speech-inference runtime live in the embedding application; the core
// only sees their contracts.
type Options struct {
	ConfigPath string
	Mic        capture.MicrophoneCapture
	Model      transcribe.SpeechModel
}

// App is the composed lifecycle manager, handed to the embedding
// application after Run's init steps succeed.
type App struct {
	Config       *platformconfig.Config
	Logger       *platformlogging.Logger
	Bus          *eventbus.Bus
	DB           *gorm.DB
	Files        storage.FileStore
	Artifacts    *artifact.Store
	Notes        *note.Repository
	Capture      *capture.Manager
	Engine       *transcribe.Engine
	Orchestrator *transcribe.Orchestrator
	Pipeline     *promote.Pipeline
	Migrator     *migrate.Migrator
	Controller   *lifecycle.Controller

	pool *work.Pool
}

type stepFn func(context.Context, *App, Options) error

type initStep struct {
	ID      string
	Kind    platformerrors.Kind
	Execute stepFn
}

func initSteps() []initStep {
	return []initStep{
		{ID: "config", Kind: platformerrors.KindConfig, Execute: loadConfig},
		{ID: "logging", Kind: platformerrors.KindBootstrap, Execute: setupLogging},
		{ID: "database", Kind: platformerrors.KindStorage, Execute: openDatabase},
		{ID: "components", Kind: platformerrors.KindBootstrap, Execute: buildComponents},
		{ID: "sweep", Kind: platformerrors.KindCleanup, Execute: startupSweep},
	}
}

// New runs every init step and returns the composed app.
func New(ctx context.Context, opts Options) (*App, error) {
	app := &App{}
	for _, step := range initSteps() {
		if err := step.Execute(ctx, app, opts); err != nil {
			return nil, platformerrors.Wrap(step.Kind, "bootstrap."+step.ID,
				fmt.Sprintf("init step %s failed", step.ID), err)
		}
	}
	return app, nil
}

// Run composes the app and blocks until the context is cancelled or a
// termination signal arrives, then shuts down gracefully.
func Run(ctx context.Context, opts Options) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	log := app.Logger.Slog()
	log.Info("[bootstrap] voxnote core ready",
		"data_dir", app.Config.Storage.DataDir,
		"sweep_max_age", app.Config.Sweep.MaxAge)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return app.periodicSweep(groupCtx)
	})

	<-groupCtx.Done()
	log.Info("[bootstrap] shutting down")
	return group.Wait()
}

// Close drains background work and releases held resources.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.Bus != nil {
		a.Bus.WaitAsync()
	}
	if a.Logger != nil {
		_ = a.Logger.Close()
	}
}

func (a *App) periodicSweep(ctx context.Context) error {
	interval := a.Config.Sweep.Interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := a.Artifacts.SweepAbandoned(a.Config.Sweep.MaxAge); err != nil {
				a.Logger.Slog().Warn("[bootstrap] periodic sweep failed", "error", err)
			}
		}
	}
}

func loadConfig(_ context.Context, app *App, opts Options) error {
	loader := platformconfig.NewLoader()
	if opts.ConfigPath != "" {
		loader = loader.WithPath(opts.ConfigPath)
	}
	result, err := loader.Load()
	if err != nil {
		return err
	}
	app.Config = result.Config
	return nil
}

func setupLogging(_ context.Context, app *App, _ Options) error {
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    app.Config.Log.Level,
		Dir:      app.Config.Log.Dir,
		Filename: app.Config.Log.File,
	})
	if err != nil {
		return err
	}
	app.Logger = logger
	observability.SetLogger(logger.Slog())
	return nil
}

func openDatabase(_ context.Context, app *App, _ Options) error {
	db, err := storage.Open(app.Config.Storage.DBFile)
	if err != nil {
		return err
	}
	app.DB = db
	return nil
}

func buildComponents(_ context.Context, app *App, opts Options) error {
	cfg := app.Config
	log := app.Logger.Slog()

	mic := opts.Mic
	if mic == nil {
		mic = capture.UnavailableMicrophone{}
	}
	model := opts.Model
	if model == nil {
		model = transcribe.UnavailableModel{}
	}

	app.Bus = eventbus.New()
	app.Files = storage.NewLocalFileStore()
	app.Artifacts = artifact.NewStore(cfg.Storage.TempDir, app.Files, log)
	app.Notes = note.NewRepository(app.DB)
	app.Capture = capture.NewManager(mic, app.Artifacts, cfg.Capture, log)
	spec := transcribe.ModelSpec{
		ModelID:  cfg.Transcription.ModelID,
		CacheDir: cfg.Transcription.ModelCacheDir,
	}
	app.Engine = transcribe.NewEngine(model, spec, app.Bus, log)
	app.Pipeline = promote.NewPipeline(app.Notes, app.Artifacts, app.Files, cfg.Storage.AudioDir, log)
	app.Migrator = migrate.NewMigrator(app.Notes, app.Files, cfg.Storage.AudioDir, log)

	app.Orchestrator = transcribe.NewOrchestrator(
		app.Engine, app.Notes, app.Files, cfg.Storage.AudioDir, nil, app.Bus, log)
	workers := cfg.Pool.Workers
	if cfg.Transcription.Workers > 0 {
		workers = cfg.Transcription.Workers
	}
	app.pool = work.NewPool(workers, cfg.Pool.QueueSize, app.Orchestrator.JobHandler())
	app.Orchestrator.SetPool(app.pool)

	app.Controller = lifecycle.NewController(
		app.Capture, app.Pipeline, app.Orchestrator, app.Artifacts, app.Bus, log)
	return app.Controller.Bind()
}

// startupSweep reclaims abandoned temp artifacts before any new recording
// can start. Live sessions register ownership first, so the sweep never
// races an active recording.
func startupSweep(_ context.Context, app *App, _ Options) error {
	removed, err := app.Artifacts.SweepAbandoned(app.Config.Sweep.MaxAge)
	if err != nil {
		return err
	}
	app.Logger.Slog().Info("[bootstrap] startup sweep complete", "removed", removed)
	return nil
}
