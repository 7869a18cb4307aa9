// Package shield is the scan pipeline core: collaborator interfaces, the
// error taxonomy and ScanService, which registers assets, queues scans and
// runs the forensic analysis for one scan at a time.
package shield

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
)

// Options tunes the pipeline. Start from DefaultOptions; non-positive
// durations and FrameCount and a negative DisclosureThreshold fall back to it.
type Options struct {
	// FrameCount is how many frames are sampled from a video.
	FrameCount int

	// DisclosureThreshold is the sub-score above which an IP or safety
	// finding is raised. Zero raises one for any non-zero sub-score.
	DisclosureThreshold int

	// SignedURLTTL bounds the lifetime of the asset download URL.
	SignedURLTTL time.Duration

	// ScanTimeout bounds one Process call once the scan is claimed. A scan
	// that runs past it is marked failed.
	ScanTimeout time.Duration

	// TempDir holds the local copy of the asset during a scan.
	// Empty uses the OS default.
	TempDir string
}

// DefaultOptions returns the production pipeline settings.
func DefaultOptions() Options {
	return Options{
		FrameCount:          5,
		DisclosureThreshold: 50,
		SignedURLTTL:        5 * time.Minute,
		ScanTimeout:         10 * time.Minute,
	}
}

// Deps lists the collaborators of a ScanService. Broadcaster, Dispatcher,
// Logger, Clock and IDs are optional.
type Deps struct {
	Database       Database
	Store          ObjectStore
	IPDetector     Analyzer
	SafetyAnalyzer Analyzer
	Verifier       ProvenanceVerifier
	Sampler        FrameSampler
	Broadcaster    Broadcaster
	Dispatcher     Dispatcher
	Logger         Logger
	Clock          Clock
	IDs            IDGenerator
}

// ScanService is the orchestration layer that coordinates storage, the
// provenance verifier, the vision analyzers and the datastore for scans.
// It holds no per-scan state, so one instance serves concurrent scans.
type ScanService struct {
	database       Database
	store          ObjectStore
	ipDetector     Analyzer
	safetyAnalyzer Analyzer
	verifier       ProvenanceVerifier
	sampler        FrameSampler
	broadcaster    Broadcaster
	dispatcher     Dispatcher
	logger         Logger
	clock          Clock
	idgen          IDGenerator
	opts           Options
}

// NewScanService creates a ScanService from its collaborators.
func NewScanService(deps Deps, opts Options) *ScanService {
	def := DefaultOptions()
	if opts.FrameCount <= 0 {
		opts.FrameCount = def.FrameCount
	}
	if opts.DisclosureThreshold < 0 {
		opts.DisclosureThreshold = def.DisclosureThreshold
	}
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = def.SignedURLTTL
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = def.ScanTimeout
	}

	s := &ScanService{
		database:       deps.Database,
		store:          deps.Store,
		ipDetector:     deps.IPDetector,
		safetyAnalyzer: deps.SafetyAnalyzer,
		verifier:       deps.Verifier,
		sampler:        deps.Sampler,
		broadcaster:    deps.Broadcaster,
		dispatcher:     deps.Dispatcher,
		logger:         deps.Logger,
		clock:          deps.Clock,
		idgen:          deps.IDs,
		opts:           opts,
	}
	if s.logger == nil {
		s.logger = NewNopLogger()
	}
	if s.broadcaster == nil {
		s.broadcaster = NopBroadcaster{}
	}
	if s.dispatcher == nil {
		s.dispatcher = InlineDispatcher{Logger: s.logger}
	}
	if s.clock == nil {
		s.clock = RealClock{}
	}
	if s.idgen == nil {
		s.idgen = UUIDGenerator{}
	}
	return s
}

// KindForMIME classifies a MIME type as image or video.
func KindForMIME(mimeType string) (model.MediaKind, error) {
	base, _, _ := strings.Cut(mimeType, ";")
	switch {
	case strings.HasPrefix(base, "image/"):
		return model.MediaImage, nil
	case strings.HasPrefix(base, "video/"):
		return model.MediaVideo, nil
	default:
		return "", fmt.Errorf("unsupported media type: %s", mimeType)
	}
}

// RegisterAsset uploads size bytes from r to object storage and records the
// immutable asset row. mimeType must be an image or video type.
func (s *ScanService) RegisterAsset(ctx context.Context, filename string, r io.Reader, size int64, mimeType string) (*model.Asset, error) {
	kind, err := KindForMIME(mimeType)
	if err != nil {
		return nil, err
	}

	id := s.idgen.New()
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	asset := &model.Asset{
		ID:         id,
		StorageKey: path.Join("assets", id, base),
		Filename:   base,
		MIMEType:   mimeType,
		Kind:       kind,
		Size:       size,
		CreatedAt:  s.clock.Now(),
	}

	if err := s.store.Put(ctx, asset.StorageKey, r, size, mimeType); err != nil {
		return nil, UpstreamError("uploading asset", err)
	}
	if err := s.database.CreateAsset(asset); err != nil {
		return nil, persistenceError("recording asset", err)
	}

	s.logger.Info("asset registered", "asset_id", asset.ID, "kind", asset.Kind, "size", asset.Size)
	return asset, nil
}

// CreateBrandGuideline records a guideline that scans may reference.
func (s *ScanService) CreateBrandGuideline(name string, prohibited, required []string, brandContext string) (*model.BrandGuideline, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("guideline name is required")
	}
	g := &model.BrandGuideline{
		ID:                 s.idgen.New(),
		Name:               name,
		ProhibitedKeywords: prohibited,
		RequiredElements:   required,
		Context:            brandContext,
		CreatedAt:          s.clock.Now(),
	}
	if err := s.database.CreateBrandGuideline(g); err != nil {
		return nil, persistenceError("recording guideline", err)
	}
	return g, nil
}

// CreateScan queues a pending scan for an existing asset. guidelineID may be
// empty; when set it must exist.
func (s *ScanService) CreateScan(assetID, guidelineID string) (*model.Scan, error) {
	asset, err := s.database.FindAsset(assetID)
	if err != nil {
		return nil, fmt.Errorf("finding asset: %w", err)
	}
	if asset == nil {
		return nil, notFound("asset %s", assetID)
	}

	if guidelineID != "" {
		g, err := s.database.FindBrandGuideline(guidelineID)
		if err != nil {
			return nil, fmt.Errorf("finding guideline: %w", err)
		}
		if g == nil {
			return nil, notFound("guideline %s", guidelineID)
		}
	}

	scan := &model.Scan{
		ID:          s.idgen.New(),
		AssetID:     asset.ID,
		GuidelineID: guidelineID,
		Status:      model.ScanPending,
		IsVideo:     asset.Kind == model.MediaVideo,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.database.CreateScan(scan); err != nil {
		return nil, persistenceError("creating scan", err)
	}

	s.logger.Info("scan queued", "scan_id", scan.ID, "asset_id", asset.ID)
	return scan, nil
}

// ListScans returns the most recent scans, newest first.
func (s *ScanService) ListScans(limit int) ([]*model.Scan, error) {
	scans, err := s.database.ListScans(limit)
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	return scans, nil
}

func (s *ScanService) notify(scanID string, percent int, message string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("progress broadcaster panicked", "scan_id", scanID, "percent", percent, "panic", r)
		}
	}()
	s.broadcaster.Notify(scanID, percent, message)
}
