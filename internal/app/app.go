package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/api"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/config"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/database"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/frames"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/progress"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/provenance"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/storage"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/vision"
)

const (
	sideEffectWorkers = 2
	sideEffectQueue   = 64
)

// setupValidator is implemented by backends that can probe their
// dependencies before the first scan.
type setupValidator interface {
	ValidateSetup(ctx context.Context) error
}

// App is the application layer between the CLI and ScanService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw paths and IDs, and manages the DB lifecycle on Close.
type App struct {
	cfg        *config.Config
	op         *Operation
	db         *database.SQLiteDatabase
	store      shield.ObjectStore
	ipDetector shield.Analyzer
	safety     shield.Analyzer
	verifier   shield.ProvenanceVerifier
	sampler    shield.FrameSampler
	dispatcher *progress.Dispatcher
	logger     shield.Logger
	logFile    *os.File
}

// NewApp creates a fully wired App from the given config.
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, op *Operation) (*App, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	l, logFile, err := newLogger(cfg.LogDir, op.ID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: l.With("op", op.Name)}

	a := &App{cfg: cfg, op: op, logger: logger, logFile: logFile}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	db, err := database.NewDatabaseFromConfig(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db
	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date (run `riskshield db migrate`): %w", err)
	}

	store, err := storage.NewStoreFromConfig(ctx, a.cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating object store: %w", err)
	}
	a.store = store

	if !a.op.Pipeline {
		return nil
	}
	if v, ok := store.(setupValidator); ok {
		if err := v.ValidateSetup(ctx); err != nil {
			return fmt.Errorf("object store not ready: %w", err)
		}
	}

	client, err := vision.NewClientFromConfig(a.cfg.Vision, a.logger)
	if err != nil {
		return fmt.Errorf("creating vision client: %w", err)
	}
	a.ipDetector = vision.NewIPDetector(client, a.logger)
	a.safety = vision.NewSafetyAnalyzer(client, a.logger)

	a.verifier, err = provenance.NewVerifierFromConfig(a.cfg.Provenance)
	if err != nil {
		return fmt.Errorf("creating provenance verifier: %w", err)
	}
	if v, ok := a.verifier.(setupValidator); ok {
		if err := v.ValidateSetup(ctx); err != nil {
			// every scan will record an error provenance status
			a.logger.Warn("provenance verifier unavailable", "error", err)
		}
	}

	a.sampler, err = frames.NewSamplerFromConfig(a.cfg.Frames)
	if err != nil {
		return fmt.Errorf("creating frame sampler: %w", err)
	}

	if err := os.MkdirAll(a.tempDir(), 0755); err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}

	a.dispatcher = progress.NewDispatcher(sideEffectWorkers, sideEffectQueue, a.logger)
	a.dispatcher.Start()
	return nil
}

// newService builds a ScanService over the shared backends. Progress events
// are logged and also sent to each extra broadcaster.
func (a *App) newService(extra ...shield.Broadcaster) *shield.ScanService {
	b := progress.Fanout{progress.LogBroadcaster{Logger: a.logger}}
	b = append(b, extra...)

	deps := shield.Deps{
		Database:       a.db,
		Store:          a.store,
		IPDetector:     a.ipDetector,
		SafetyAnalyzer: a.safety,
		Verifier:       a.verifier,
		Sampler:        a.sampler,
		Broadcaster:    b,
		Logger:         a.logger,
	}
	if a.dispatcher != nil {
		deps.Dispatcher = a.dispatcher
	}
	return shield.NewScanService(deps, a.options())
}

func (a *App) options() shield.Options {
	p := a.cfg.Pipeline
	opts := shield.DefaultOptions()
	opts.FrameCount = p.FrameCount
	opts.DisclosureThreshold = p.DisclosureThreshold
	opts.SignedURLTTL = time.Duration(p.SignedURLTTLSeconds) * time.Second
	opts.ScanTimeout = time.Duration(p.ScanTimeoutSeconds) * time.Second
	opts.TempDir = a.tempDir()
	return opts
}

func (a *App) tempDir() string {
	return filepath.Join(a.cfg.BaseDir, "tmp")
}

// ProgressFunc adapts a function to shield.Broadcaster.
type ProgressFunc func(scanID string, percent int, message string)

func (f ProgressFunc) Notify(scanID string, percent int, message string) {
	f(scanID, percent, message)
}

// RegisterAsset uploads the file at rawPath. The MIME type is sniffed from
// the content, not the extension.
func (a *App) RegisterAsset(ctx context.Context, rawPath string) (*model.Asset, error) {
	p, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening asset: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat asset: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", p)
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("detecting content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding asset: %w", err)
	}
	mimeType, _, _ := strings.Cut(mt.String(), ";")

	return a.newService().RegisterAsset(ctx, filepath.Base(p), f, info.Size(), mimeType)
}

// AddGuideline stores a brand guideline.
func (a *App) AddGuideline(name string, prohibited, required []string, brandContext string) (*model.BrandGuideline, error) {
	return a.newService().CreateBrandGuideline(name, prohibited, required, brandContext)
}

// CreateScan creates a pending scan of assetID.
func (a *App) CreateScan(assetID, guidelineID string) (*model.Scan, error) {
	return a.newService().CreateScan(assetID, guidelineID)
}

// ProcessScan runs a scan to a terminal state and returns its report.
// onProgress may be nil.
func (a *App) ProcessScan(ctx context.Context, scanID string, onProgress ProgressFunc) (*shield.ScanReport, error) {
	if !a.op.Pipeline {
		return nil, fmt.Errorf("operation %s cannot process scans", a.op.Name)
	}
	var svc *shield.ScanService
	if onProgress != nil {
		svc = a.newService(onProgress)
	} else {
		svc = a.newService()
	}
	if err := svc.Process(ctx, scanID); err != nil {
		return nil, err
	}
	return svc.GetReport(scanID)
}

// Report returns the current report of a scan.
func (a *App) Report(scanID string) (*shield.ScanReport, error) {
	return a.newService().GetReport(scanID)
}

// ListScans returns the most recent scans.
func (a *App) ListScans(limit int) ([]*model.Scan, error) {
	return a.newService().ListScans(limit)
}

// Serve runs the HTTP API, the scan queue and the progress hub until ctx
// is canceled. Scans already queued run to completion before it returns.
func (a *App) Serve(ctx context.Context) error {
	if !a.op.Pipeline {
		return fmt.Errorf("operation %s cannot serve", a.op.Name)
	}

	hub := progress.NewHub(a.logger)
	svc := a.newService(hub)
	queue := api.NewQueue(svc, a.cfg.Server.Workers, a.cfg.Server.QueueSize, a.logger)
	srv := api.NewServer(svc, queue, hub.ServeWS, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })

	queue.Start(context.WithoutCancel(ctx))
	g.Go(func() error {
		defer queue.Close()
		return srv.ListenAndServe(gctx, a.cfg.Server.Addr)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close drains pending side effects and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// Migrate applies pending schema migrations to the configured database.
func Migrate(cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}
