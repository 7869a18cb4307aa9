package shield

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/metrics"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/scoring"
)

// Progress milestones, in percent.
const (
	progressStart      = 0
	progressProvenance = 10
	progressAnalysis   = 25
	progressFramesSpan = 60
	progressFinalize   = 90
	progressDone       = 100
)

// signals holds the resolved sub-scores for a scan. For video the reports
// are those of the worst frame for each signal.
type signals struct {
	ip          *AnalysisReport
	safety      *AnalysisReport
	ipFrame     int // -1 for images
	safetyFrame int
	frames      []*model.VideoFrame
	thumbnail   *Media
}

// Process runs the analysis pipeline for one scan and moves it to a terminal
// state.
//
// A scan already complete or failed is left untouched and Process returns
// nil. Any failure inside the pipeline marks the scan failed with the error
// message and Process still returns nil; an error is returned only when the
// scan does not exist or its state cannot be read or written at all.
func (s *ScanService) Process(ctx context.Context, scanID string) error {
	start := s.clock.Now()
	log := withScan(s.logger, scanID)

	scan, err := s.database.FindScan(scanID)
	if err != nil {
		return fmt.Errorf("finding scan: %w", err)
	}
	if scan == nil {
		return notFound("scan %s", scanID)
	}
	if scan.Status.Terminal() {
		log.Info("scan already finished, skipping", "status", scan.Status)
		return nil
	}

	claimed, err := s.database.ClaimScan(scanID, start)
	if err != nil {
		return persistenceError("claiming scan", err)
	}
	if !claimed {
		log.Info("scan claimed by another invocation, skipping")
		return nil
	}
	scan.Status = model.ScanProcessing
	scan.StartedAt = &start

	ctx, cancel := context.WithTimeout(ctx, s.opts.ScanTimeout)
	defer cancel()

	metrics.ScansInFlight.Inc()
	defer metrics.ScansInFlight.Dec()

	log.Info("scan started", "asset_id", scan.AssetID)
	s.notify(scanID, progressStart, "Initializing analysis")

	kind, err := s.run(ctx, scan, start, log)
	if err != nil {
		return s.fail(scan, kind, start, err, log)
	}

	elapsed := s.clock.Now().Sub(start)
	metrics.ObserveScan(string(model.ScanComplete), string(kind), elapsed)
	log.Info("scan complete",
		"score", *scan.CompositeScore,
		"level", scan.RiskLevel,
		"duration_ms", elapsed.Milliseconds(),
	)
	s.notify(scanID, progressDone, "Analysis complete")
	return nil
}

// run executes every pipeline stage and commits the result. On success scan
// carries the persisted final state.
func (s *ScanService) run(ctx context.Context, scan *model.Scan, start time.Time, log Logger) (model.MediaKind, error) {
	asset, err := s.database.FindAsset(scan.AssetID)
	if err != nil {
		return "", fmt.Errorf("finding asset: %w", err)
	}
	if asset == nil {
		return "", notFound("asset %s", scan.AssetID)
	}
	guideline := s.loadGuideline(scan, log)

	data, err := s.fetchAsset(ctx, asset)
	if err != nil {
		return asset.Kind, err
	}

	localPath, cleanup, err := s.writeTemp(asset, data)
	if err != nil {
		return asset.Kind, err
	}
	defer cleanup()

	s.notify(scan.ID, progressProvenance, "Verifying content credentials")
	prov := s.verifyProvenance(ctx, localPath, log)

	s.notify(scan.ID, progressAnalysis, "Analyzing content")
	var sig *signals
	switch asset.Kind {
	case model.MediaImage:
		sig, err = s.analyzeImage(ctx, Media{Data: data, MIMEType: asset.MIMEType}, guideline)
	case model.MediaVideo:
		sig, err = s.analyzeVideo(ctx, scan, localPath, guideline, prov.Status, log)
	default:
		err = fmt.Errorf("unsupported media kind: %s", asset.Kind)
	}
	if err != nil {
		return asset.Kind, err
	}

	composite := scoring.Compute(scoring.Input{
		IPScore:     sig.ip.Score,
		SafetyScore: sig.safety.Score,
		C2PAStatus:  prov.Status,
	})

	s.notify(scan.ID, progressFinalize, "Finalizing results")
	now := s.clock.Now()

	findings, err := s.synthesizeFindings(scan.ID, sig, prov, now)
	if err != nil {
		return asset.Kind, err
	}
	detail, err := provenanceDetail(scan.ID, prov, now)
	if err != nil {
		return asset.Kind, err
	}

	ipScore, safetyScore, provScore, score := sig.ip.Score, sig.safety.Score, composite.ProvenanceScore, composite.Score
	durationMS := now.Sub(start).Milliseconds()
	final := *scan
	final.Status = model.ScanComplete
	final.RiskLevel = composite.Level()
	final.CompositeScore = &score
	final.IPRiskScore = &ipScore
	final.SafetyRiskScore = &safetyScore
	final.ProvenanceRiskScore = &provScore
	final.ProvenanceStatus = prov.Status
	final.IsVideo = asset.Kind == model.MediaVideo
	final.FramesAnalyzed = len(sig.frames)
	final.CompletedAt = &now
	final.AnalysisDurationMS = &durationMS

	result := &ScanResult{
		Scan:       &final,
		Findings:   findings,
		Frames:     sig.frames,
		Provenance: detail,
	}
	if err := s.database.CompleteScan(result); err != nil {
		return asset.Kind, persistenceError("committing scan result", err)
	}
	*scan = final

	metrics.CompositeScores.Observe(float64(score))
	s.dispatchSideEffects(scan, asset, sig)
	return asset.Kind, nil
}

// fail records cause on the scan. The error is consumed here; only a failure
// to record it escapes.
func (s *ScanService) fail(scan *model.Scan, kind model.MediaKind, start time.Time, cause error, log Logger) error {
	now := s.clock.Now()
	elapsed := now.Sub(start)
	log.Error("scan failed", "error", cause, "duration_ms", elapsed.Milliseconds())

	if err := s.database.FailScan(scan.ID, cause.Error(), now, elapsed.Milliseconds()); err != nil {
		log.Error("recording scan failure", "error", err)
		return persistenceError("recording scan failure", err)
	}

	metrics.ObserveScan(string(model.ScanFailed), string(kind), elapsed)
	s.notify(scan.ID, progressDone, "Analysis failed")
	return nil
}

// loadGuideline resolves the optional brand guideline. A dangling reference
// only affects prompts, so it is logged and ignored.
func (s *ScanService) loadGuideline(scan *model.Scan, log Logger) *model.BrandGuideline {
	if scan.GuidelineID == "" {
		return nil
	}
	g, err := s.database.FindBrandGuideline(scan.GuidelineID)
	if err != nil {
		log.Warn("loading brand guideline, using default prompts", "guideline_id", scan.GuidelineID, "error", err)
		return nil
	}
	if g == nil {
		log.Warn("brand guideline not found, using default prompts", "guideline_id", scan.GuidelineID)
	}
	return g
}

func (s *ScanService) fetchAsset(ctx context.Context, asset *model.Asset) ([]byte, error) {
	url, err := s.store.SignedURL(ctx, asset.StorageKey, s.opts.SignedURLTTL)
	if err != nil {
		return nil, UpstreamError("signing asset url", err)
	}

	rc, err := s.store.Fetch(ctx, url)
	if err != nil {
		return nil, UpstreamError("fetching asset", err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if asset.Size > 0 {
		buf.Grow(int(asset.Size))
	}
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, UpstreamError("reading asset", err)
	}
	return buf.Bytes(), nil
}

// writeTemp materializes the asset for tools that need a file path. The
// original extension is kept so they can detect the container format.
func (s *ScanService) writeTemp(asset *model.Asset, data []byte) (string, func(), error) {
	f, err := os.CreateTemp(s.opts.TempDir, "riskshield-*"+filepath.Ext(asset.Filename))
	if err != nil {
		return "", nil, fmt.Errorf("creating temp file: %w", err)
	}
	name := f.Name()
	cleanup := func() { os.Remove(name) }

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing temp file: %w", err)
	}
	return name, cleanup, nil
}

// verifyProvenance never fails the scan: a verifier error degrades to the
// error status.
func (s *ScanService) verifyProvenance(ctx context.Context, localPath string, log Logger) *ProvenanceResult {
	res, err := s.verifier.Verify(ctx, localPath)
	switch {
	case err != nil:
		log.Warn("provenance check failed, scoring as error", "error", VerificationError("verifying content credentials", err))
		res = &ProvenanceResult{Status: model.ProvenanceError}
	case res == nil || !res.Status.Valid():
		log.Warn("provenance check returned no usable status, scoring as error")
		res = &ProvenanceResult{Status: model.ProvenanceError}
	}
	metrics.ProvenanceStatuses.WithLabelValues(string(res.Status)).Inc()
	log.Debug("provenance verified", "status", res.Status)
	return res
}

func (s *ScanService) analyzeImage(ctx context.Context, media Media, guideline *model.BrandGuideline) (*signals, error) {
	ip, safety, err := s.analyze(ctx, media, guideline)
	if err != nil {
		return nil, err
	}
	return &signals{ip: ip, safety: safety, ipFrame: -1, safetyFrame: -1}, nil
}

// analyzeVideo walks the sampled frames one at a time so at most two vision
// calls are in flight per scan. The scan's sub-scores are the per-signal
// maxima across frames.
func (s *ScanService) analyzeVideo(ctx context.Context, scan *model.Scan, localPath string, guideline *model.BrandGuideline, status model.ProvenanceStatus, log Logger) (*signals, error) {
	frames, err := s.sampler.Sample(ctx, localPath, s.opts.FrameCount)
	if err != nil {
		return nil, UpstreamError("sampling video frames", err)
	}
	if len(frames) == 0 {
		return nil, UpstreamError("sampling video frames", errors.New("no frames extracted"))
	}

	sig := &signals{ipFrame: -1, safetyFrame: -1, thumbnail: &frames[0].Media}
	for i, frame := range frames {
		ip, safety, err := s.analyze(ctx, frame.Media, guideline)
		if err != nil {
			return nil, fmt.Errorf("analyzing frame %d: %w", frame.Index, err)
		}

		sig.frames = append(sig.frames, &model.VideoFrame{
			ID:              s.idgen.New(),
			ScanID:          scan.ID,
			FrameIndex:      frame.Index,
			TimestampMS:     frame.Timestamp.Milliseconds(),
			IPRiskScore:     ip.Score,
			SafetyRiskScore: safety.Score,
			CompositeScore:  scoring.Score(ip.Score, safety.Score, status),
			CreatedAt:       s.clock.Now(),
		})

		if sig.ip == nil || ip.Score > sig.ip.Score {
			sig.ip, sig.ipFrame = ip, frame.Index
		}
		if sig.safety == nil || safety.Score > sig.safety.Score {
			sig.safety, sig.safetyFrame = safety, frame.Index
		}

		log.Debug("frame analyzed", "frame", frame.Index, "ip", ip.Score, "safety", safety.Score)
		percent := progressAnalysis + progressFramesSpan*(i+1)/len(frames)
		s.notify(scan.ID, percent, fmt.Sprintf("Analyzed frame %d of %d", i+1, len(frames)))
	}
	return sig, nil
}

// analyze runs the IP detector and the safety analyzer concurrently on one
// image and joins their reports.
func (s *ScanService) analyze(ctx context.Context, media Media, guideline *model.BrandGuideline) (*AnalysisReport, *AnalysisReport, error) {
	var ip, safety *AnalysisReport

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.ipDetector.Analyze(gctx, media, guideline)
		if err != nil {
			return asUpstream("ip detection", err)
		}
		ip = r
		return nil
	})
	g.Go(func() error {
		r, err := s.safetyAnalyzer.Analyze(gctx, media, guideline)
		if err != nil {
			return asUpstream("safety analysis", err)
		}
		safety = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if ip == nil || safety == nil {
		return nil, nil, UpstreamError("vision analysis", errors.New("analyzer returned no report"))
	}
	return ip, safety, nil
}

func asUpstream(stage string, err error) error {
	if errors.Is(err, ErrUpstreamService) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return UpstreamError(stage, err)
}

// dispatchSideEffects queues thumbnailing and usage metering. Neither can
// change the scan's terminal state.
func (s *ScanService) dispatchSideEffects(scan *model.Scan, asset *model.Asset, sig *signals) {
	if sig.thumbnail != nil {
		thumb := *sig.thumbnail
		key := fmt.Sprintf("thumbnails/%s.jpg", scan.ID)
		s.dispatcher.Dispatch("thumbnail", func(ctx context.Context) error {
			return s.store.Put(ctx, key, bytes.NewReader(thumb.Data), int64(len(thumb.Data)), thumb.MIMEType)
		})
	}

	units := 1
	if len(sig.frames) > 0 {
		units = len(sig.frames)
	}
	event := &model.UsageEvent{
		ID:         s.idgen.New(),
		ScanID:     scan.ID,
		AssetID:    asset.ID,
		Kind:       asset.Kind,
		Units:      units,
		RecordedAt: s.clock.Now(),
	}
	s.dispatcher.Dispatch("usage", func(context.Context) error {
		return s.database.RecordUsage(event)
	})
}
