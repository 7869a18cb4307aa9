package shield_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/database"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/storage"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/testutil"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	tasks  []string
	errors map[string]error
}

func (d *recordingDispatcher) Dispatch(name string, task func(ctx context.Context) error) {
	err := task(context.Background())
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, name)
	if err != nil {
		if d.errors == nil {
			d.errors = make(map[string]error)
		}
		d.errors[name] = err
	}
}

// thumbnailFailingStore rejects every derived-artifact upload.
type thumbnailFailingStore struct {
	*storage.MemoryStore
}

func (s thumbnailFailingStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if strings.HasPrefix(key, "thumbnails/") {
		return errors.New("bucket quota exceeded")
	}
	return s.MemoryStore.Put(ctx, key, r, size, contentType)
}

type harness struct {
	db         *database.SQLiteDatabase
	store      *storage.MemoryStore
	ip         *testutil.FakeAnalyzer
	safety     *testutil.FakeAnalyzer
	verifier   *testutil.FakeVerifier
	sampler    *testutil.FakeSampler
	progress   *testutil.RecordingBroadcaster
	dispatcher *recordingDispatcher
	logger     *testutil.CapturingLogger
	clock      shield.Clock
	opts       shield.Options
	svc        *shield.ScanService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		db:         testutil.NewTestDatabase(t),
		store:      storage.NewMemoryStore(),
		ip:         testutil.NewFakeAnalyzer(0),
		safety:     testutil.NewFakeAnalyzer(0),
		verifier:   testutil.NewFakeVerifier(model.ProvenanceMissing),
		sampler:    &testutil.FakeSampler{},
		progress:   &testutil.RecordingBroadcaster{},
		dispatcher: &recordingDispatcher{},
		logger:     &testutil.CapturingLogger{},
		clock:      testutil.FixedClock(),
		opts:       shield.DefaultOptions(),
	}
	h.opts.FrameCount = 3
	h.build(h.store)
	return h
}

func (h *harness) build(store shield.ObjectStore) {
	h.svc = shield.NewScanService(shield.Deps{
		Database:       h.db,
		Store:          store,
		IPDetector:     h.ip,
		SafetyAnalyzer: h.safety,
		Verifier:       h.verifier,
		Sampler:        h.sampler,
		Broadcaster:    h.progress,
		Dispatcher:     h.dispatcher,
		Logger:         h.logger,
		Clock:          h.clock,
		IDs:            testutil.NewStubIDGenerator(),
	}, h.opts)
}

func (h *harness) queue(t *testing.T, filename, mimeType string) *model.Scan {
	t.Helper()
	content := "payload for " + filename
	asset, err := h.svc.RegisterAsset(context.Background(), filename, strings.NewReader(content), int64(len(content)), mimeType)
	if err != nil {
		t.Fatalf("RegisterAsset() error = %v", err)
	}
	scan, err := h.svc.CreateScan(asset.ID, "")
	if err != nil {
		t.Fatalf("CreateScan() error = %v", err)
	}
	return scan
}

func (h *harness) process(t *testing.T, scanID string) *model.Scan {
	t.Helper()
	if err := h.svc.Process(context.Background(), scanID); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	scan, err := h.db.FindScan(scanID)
	if err != nil {
		t.Fatalf("FindScan() error = %v", err)
	}
	return scan
}

func assertInt(t *testing.T, name string, got *int, want int) {
	t.Helper()
	if got == nil {
		t.Errorf("%s = nil, want %d", name, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %d, want %d", name, *got, want)
	}
}

func TestScanService_Process_Image(t *testing.T) {
	h := newHarness(t)
	h.ip = testutil.NewFakeAnalyzer(85)
	h.safety = testutil.NewFakeAnalyzer(30)
	h.clock = testutil.TickingClock(time.Second)
	h.build(h.store)

	scan := h.queue(t, "poster.png", "image/png")
	got := h.process(t, scan.ID)

	if got.Status != model.ScanComplete {
		t.Fatalf("Status = %q, want %q (error %q)", got.Status, model.ScanComplete, got.ErrorMessage)
	}
	assertInt(t, "CompositeScore", got.CompositeScore, 79)
	assertInt(t, "IPRiskScore", got.IPRiskScore, 85)
	assertInt(t, "SafetyRiskScore", got.SafetyRiskScore, 30)
	assertInt(t, "ProvenanceRiskScore", got.ProvenanceRiskScore, 80)
	if got.RiskLevel != model.RiskHigh {
		t.Errorf("RiskLevel = %q, want %q", got.RiskLevel, model.RiskHigh)
	}
	if got.ProvenanceStatus != model.ProvenanceMissing {
		t.Errorf("ProvenanceStatus = %q, want %q", got.ProvenanceStatus, model.ProvenanceMissing)
	}
	if got.IsVideo || got.FramesAnalyzed != 0 {
		t.Errorf("IsVideo = %v, FramesAnalyzed = %d, want image with no frames", got.IsVideo, got.FramesAnalyzed)
	}
	if got.CompletedAt == nil || got.AnalysisDurationMS == nil {
		t.Error("CompletedAt and AnalysisDurationMS must be set")
	} else if *got.AnalysisDurationMS <= 0 || got.StartedAt == nil || !got.CompletedAt.After(*got.StartedAt) {
		t.Errorf("AnalysisDurationMS = %d, want positive with a ticking clock", *got.AnalysisDurationMS)
	}

	if h.ip.Calls() != 1 || h.safety.Calls() != 1 {
		t.Errorf("analyzer calls = %d/%d, want 1/1", h.ip.Calls(), h.safety.Calls())
	}
	if string(h.ip.Media[0].Data) != "payload for poster.png" {
		t.Errorf("IP detector saw %q, want the asset bytes", h.ip.Media[0].Data)
	}

	findings, err := h.db.FindingsForScan(scan.ID)
	if err != nil {
		t.Fatalf("FindingsForScan() error = %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("len(findings) = %d, want 2 (ip + provenance)", len(findings))
	}
	if findings[0].Type != model.FindingIPViolation || findings[0].Severity != model.SeverityHigh {
		t.Errorf("findings[0] = %s/%s, want ip_violation/high", findings[0].Type, findings[0].Severity)
	}
	if findings[1].Type != model.FindingProvenanceIssue || findings[1].Severity != model.SeverityHigh {
		t.Errorf("findings[1] = %s/%s, want provenance_issue/high", findings[1].Type, findings[1].Severity)
	}

	frames, _ := h.db.FramesForScan(scan.ID)
	if len(frames) != 0 {
		t.Errorf("len(frames) = %d, want 0 for an image", len(frames))
	}

	if len(h.dispatcher.tasks) != 1 || h.dispatcher.tasks[0] != "usage" {
		t.Errorf("dispatched tasks = %v, want [usage]", h.dispatcher.tasks)
	}
	if len(h.dispatcher.errors) != 0 {
		t.Errorf("side effect errors = %v", h.dispatcher.errors)
	}

	events := h.progress.Events()
	if len(events) == 0 || events[0].Percent != 0 || events[len(events)-1].Percent != 100 {
		t.Fatalf("progress events = %+v, want 0 ... 100", events)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Percent < events[i-1].Percent {
			t.Errorf("progress went backwards: %+v then %+v", events[i-1], events[i])
		}
	}
}

func TestScanService_Process_VideoUsesWorstFrame(t *testing.T) {
	h := newHarness(t)
	h.ip = testutil.NewFakeAnalyzer(10, 85, 20)
	h.safety = testutil.NewFakeAnalyzer(60, 5, 30)
	h.verifier = testutil.NewFakeVerifier(model.ProvenanceCaution)
	h.build(h.store)

	scan := h.queue(t, "clip.mp4", "video/mp4")
	got := h.process(t, scan.ID)

	if got.Status != model.ScanComplete {
		t.Fatalf("Status = %q, want %q (error %q)", got.Status, model.ScanComplete, got.ErrorMessage)
	}
	// maxima, not means (38 and 32)
	assertInt(t, "IPRiskScore", got.IPRiskScore, 85)
	assertInt(t, "SafetyRiskScore", got.SafetyRiskScore, 60)
	// round(85*.4 + 60*.4 + 20*.2) = 62, no boost under caution
	assertInt(t, "CompositeScore", got.CompositeScore, 62)
	if got.RiskLevel != model.RiskReview {
		t.Errorf("RiskLevel = %q, want %q", got.RiskLevel, model.RiskReview)
	}
	if !got.IsVideo || got.FramesAnalyzed != 3 {
		t.Errorf("IsVideo = %v, FramesAnalyzed = %d, want video with 3 frames", got.IsVideo, got.FramesAnalyzed)
	}

	frames, err := h.db.FramesForScan(scan.ID)
	if err != nil {
		t.Fatalf("FramesForScan() error = %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("len(frames) = %d, want 3", len(frames))
	}
	wantComposite := []int{32, 40, 24}
	maxIP, maxSafety := 0, 0
	for i, fr := range frames {
		if fr.CompositeScore != wantComposite[i] {
			t.Errorf("frame %d composite = %d, want %d", i, fr.CompositeScore, wantComposite[i])
		}
		maxIP = max(maxIP, fr.IPRiskScore)
		maxSafety = max(maxSafety, fr.SafetyRiskScore)
	}
	if maxIP != *got.IPRiskScore || maxSafety != *got.SafetyRiskScore {
		t.Errorf("scan sub-scores %d/%d differ from frame maxima %d/%d", *got.IPRiskScore, *got.SafetyRiskScore, maxIP, maxSafety)
	}

	findings, _ := h.db.FindingsForScan(scan.ID)
	if len(findings) != 3 {
		t.Fatalf("len(findings) = %d, want 3", len(findings))
	}
	var evidence struct {
		Frame *int `json:"frame_index"`
	}
	if err := json.Unmarshal(findings[0].Evidence, &evidence); err != nil {
		t.Fatalf("decoding ip evidence: %v", err)
	}
	if evidence.Frame == nil || *evidence.Frame != 1 {
		t.Errorf("ip evidence frame = %v, want 1", evidence.Frame)
	}
	if findings[1].Type != model.FindingSafetyViolation || findings[1].Severity != model.SeverityMedium {
		t.Errorf("findings[1] = %s/%s, want safety_violation/medium", findings[1].Type, findings[1].Severity)
	}
	if findings[2].Severity != model.SeverityMedium {
		t.Errorf("caution provenance severity = %s, want medium", findings[2].Severity)
	}

	thumb, ct, ok := h.store.Object("thumbnails/" + scan.ID + ".jpg")
	if !ok {
		t.Fatal("thumbnail not uploaded")
	}
	if string(thumb) != "frame-0" || ct != "image/jpeg" {
		t.Errorf("thumbnail = %q (%s), want first frame", thumb, ct)
	}

	var frameEvents int
	for _, e := range h.progress.Events() {
		if strings.HasPrefix(e.Message, "Analyzed frame") {
			frameEvents++
		}
	}
	if frameEvents != 3 {
		t.Errorf("per-frame progress events = %d, want 3", frameEvents)
	}
}

func TestScanService_Process_TerminalReentry(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		h := newHarness(t)
		h.ip = testutil.NewFakeAnalyzer(40)
		h.build(h.store)

		scan := h.queue(t, "poster.png", "image/png")
		first := h.process(t, scan.ID)
		findingsBefore, _ := h.db.FindingsForScan(scan.ID)
		eventsBefore := len(h.progress.Events())

		second := h.process(t, scan.ID)

		if h.ip.Calls() != 1 {
			t.Errorf("IP detector called %d times, want 1", h.ip.Calls())
		}
		if second.Status != first.Status || !second.CompletedAt.Equal(*first.CompletedAt) {
			t.Errorf("scan changed on re-entry: %+v -> %+v", first, second)
		}
		findingsAfter, _ := h.db.FindingsForScan(scan.ID)
		if len(findingsAfter) != len(findingsBefore) {
			t.Errorf("findings %d -> %d on re-entry", len(findingsBefore), len(findingsAfter))
		}
		if len(h.progress.Events()) != eventsBefore {
			t.Error("re-entry emitted progress events")
		}
	})

	t.Run("failed", func(t *testing.T) {
		h := newHarness(t)
		h.clock = testutil.TickingClock(time.Second)
		h.ip = &testutil.FakeAnalyzer{Err: errors.New("model overloaded"), ErrOnCall: 1}
		h.build(h.store)

		scan := h.queue(t, "poster.png", "image/png")
		first := h.process(t, scan.ID)
		if first.Status != model.ScanFailed {
			t.Fatalf("Status = %q, want %q", first.Status, model.ScanFailed)
		}
		if first.CompletedAt == nil {
			t.Fatal("CompletedAt not set on failed scan")
		}
		ipCalls, safetyCalls := h.ip.Calls(), h.safety.Calls()
		eventsBefore := len(h.progress.Events())

		second := h.process(t, scan.ID)

		if second.Status != model.ScanFailed {
			t.Errorf("Status = %q after re-entry, want %q", second.Status, model.ScanFailed)
		}
		if second.ErrorMessage != first.ErrorMessage {
			t.Errorf("ErrorMessage %q -> %q on re-entry", first.ErrorMessage, second.ErrorMessage)
		}
		if second.CompletedAt == nil || !second.CompletedAt.Equal(*first.CompletedAt) {
			t.Errorf("CompletedAt %v -> %v on re-entry", first.CompletedAt, second.CompletedAt)
		}
		if h.ip.Calls() != ipCalls || h.safety.Calls() != safetyCalls {
			t.Errorf("analyzers called again on re-entry: ip %d -> %d, safety %d -> %d",
				ipCalls, h.ip.Calls(), safetyCalls, h.safety.Calls())
		}
		if len(h.progress.Events()) != eventsBefore {
			t.Error("re-entry emitted progress events")
		}
	})
}

func TestScanService_Process_SkipsScanOwnedElsewhere(t *testing.T) {
	h := newHarness(t)
	scan := h.queue(t, "poster.png", "image/png")

	if ok, err := h.db.ClaimScan(scan.ID, testutil.FixedClock().Now()); err != nil || !ok {
		t.Fatalf("ClaimScan() = %v, %v", ok, err)
	}

	got := h.process(t, scan.ID)
	if got.Status != model.ScanProcessing {
		t.Errorf("Status = %q, want %q", got.Status, model.ScanProcessing)
	}
	if h.ip.Calls() != 0 {
		t.Errorf("IP detector called %d times, want 0", h.ip.Calls())
	}
}

func TestScanService_Process_Failures(t *testing.T) {
	t.Run("analyzer failure fails the scan without partial rows", func(t *testing.T) {
		h := newHarness(t)
		h.ip = testutil.NewFakeAnalyzer(20, 95)
		h.safety = &testutil.FakeAnalyzer{Err: errors.New("connection reset"), ErrOnCall: 2}
		h.build(h.store)

		scan := h.queue(t, "clip.mp4", "video/mp4")
		got := h.process(t, scan.ID)

		if got.Status != model.ScanFailed {
			t.Fatalf("Status = %q, want %q", got.Status, model.ScanFailed)
		}
		if !strings.Contains(got.ErrorMessage, "upstream service failure") || !strings.Contains(got.ErrorMessage, "connection reset") {
			t.Errorf("ErrorMessage = %q", got.ErrorMessage)
		}
		if got.CompositeScore != nil {
			t.Errorf("CompositeScore = %d, want nil", *got.CompositeScore)
		}

		findings, _ := h.db.FindingsForScan(scan.ID)
		frames, _ := h.db.FramesForScan(scan.ID)
		prov, _ := h.db.ProvenanceForScan(scan.ID)
		if len(findings) != 0 || len(frames) != 0 || prov != nil {
			t.Errorf("partial rows persisted: %d findings, %d frames, provenance %v", len(findings), len(frames), prov)
		}

		events := h.progress.Events()
		if last := events[len(events)-1]; last.Percent != 100 || last.Message != "Analysis failed" {
			t.Errorf("last progress event = %+v", last)
		}
	})

	t.Run("verification failure degrades to error status", func(t *testing.T) {
		h := newHarness(t)
		h.verifier = &testutil.FakeVerifier{Err: errors.New("c2patool: exit status 1")}
		h.build(h.store)

		scan := h.queue(t, "poster.png", "image/png")
		got := h.process(t, scan.ID)

		if got.Status != model.ScanComplete {
			t.Fatalf("Status = %q, want %q (error %q)", got.Status, model.ScanComplete, got.ErrorMessage)
		}
		if got.ProvenanceStatus != model.ProvenanceError {
			t.Errorf("ProvenanceStatus = %q, want %q", got.ProvenanceStatus, model.ProvenanceError)
		}
		assertInt(t, "ProvenanceRiskScore", got.ProvenanceRiskScore, 50)
		// round(0 + 0 + 50*.2)
		assertInt(t, "CompositeScore", got.CompositeScore, 10)

		var warned bool
		for _, line := range h.logger.Lines {
			if strings.HasPrefix(line, "WARN") && strings.Contains(line, "verification failure") {
				warned = true
			}
		}
		if !warned {
			t.Errorf("verification failure not logged: %v", h.logger.Lines)
		}
	})

	t.Run("missing object fails the scan", func(t *testing.T) {
		h := newHarness(t)
		asset := &model.Asset{
			ID:         "orphan",
			StorageKey: "assets/orphan/x.png",
			Filename:   "x.png",
			MIMEType:   "image/png",
			Kind:       model.MediaImage,
			Size:       1,
			CreatedAt:  testutil.FixedClock().Now(),
		}
		if err := h.db.CreateAsset(asset); err != nil {
			t.Fatalf("CreateAsset() error = %v", err)
		}
		scan, err := h.svc.CreateScan(asset.ID, "")
		if err != nil {
			t.Fatalf("CreateScan() error = %v", err)
		}

		got := h.process(t, scan.ID)
		if got.Status != model.ScanFailed {
			t.Fatalf("Status = %q, want %q", got.Status, model.ScanFailed)
		}
		if h.ip.Calls() != 0 {
			t.Error("analyzers ran without asset bytes")
		}
	})

	t.Run("empty frame sample fails the scan", func(t *testing.T) {
		h := newHarness(t)
		h.sampler.Err = errors.New("ffmpeg: invalid data found")
		scan := h.queue(t, "clip.mp4", "video/mp4")

		got := h.process(t, scan.ID)
		if got.Status != model.ScanFailed {
			t.Fatalf("Status = %q, want %q", got.Status, model.ScanFailed)
		}
		if !strings.Contains(got.ErrorMessage, "sampling video frames") {
			t.Errorf("ErrorMessage = %q", got.ErrorMessage)
		}
	})

	t.Run("unknown scan is not found", func(t *testing.T) {
		h := newHarness(t)
		err := h.svc.Process(context.Background(), "ghost")
		if !errors.Is(err, shield.ErrNotFound) {
			t.Errorf("Process() error = %v, want ErrNotFound", err)
		}
	})
}

func TestScanService_Process_SideEffectFailureKeepsResult(t *testing.T) {
	h := newHarness(t)
	h.build(thumbnailFailingStore{h.store})

	scan := h.queue(t, "clip.mp4", "video/mp4")
	got := h.process(t, scan.ID)

	if got.Status != model.ScanComplete {
		t.Fatalf("Status = %q, want %q (error %q)", got.Status, model.ScanComplete, got.ErrorMessage)
	}
	if h.dispatcher.errors["thumbnail"] == nil {
		t.Error("thumbnail failure was not reported to the dispatcher")
	}
}

func TestScanService_Process_DisclosureThreshold(t *testing.T) {
	h := newHarness(t)
	h.ip = testutil.NewFakeAnalyzer(50)
	h.safety = testutil.NewFakeAnalyzer(51)
	h.verifier = testutil.NewFakeVerifier(model.ProvenanceValid)
	h.build(h.store)

	scan := h.queue(t, "poster.png", "image/png")
	h.process(t, scan.ID)

	findings, _ := h.db.FindingsForScan(scan.ID)
	var types []model.FindingType
	for _, f := range findings {
		types = append(types, f.Type)
	}
	if len(types) != 2 || types[0] != model.FindingSafetyViolation || types[1] != model.FindingProvenanceIssue {
		t.Errorf("finding types = %v, want [safety_violation provenance_issue]", types)
	}
	if findings[1].Severity != model.SeverityLow {
		t.Errorf("valid provenance severity = %s, want low", findings[1].Severity)
	}
}

func TestScanService_Process_ZeroDisclosureThreshold(t *testing.T) {
	h := newHarness(t)
	h.ip = testutil.NewFakeAnalyzer(30)
	h.safety = testutil.NewFakeAnalyzer(30)
	h.opts.DisclosureThreshold = 0
	h.build(h.store)

	scan := h.queue(t, "poster.png", "image/png")
	h.process(t, scan.ID)

	findings, _ := h.db.FindingsForScan(scan.ID)
	var types []model.FindingType
	for _, f := range findings {
		types = append(types, f.Type)
	}
	want := []model.FindingType{model.FindingIPViolation, model.FindingSafetyViolation, model.FindingProvenanceIssue}
	if len(types) != len(want) {
		t.Fatalf("finding types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("finding types = %v, want %v", types, want)
			break
		}
	}
}

// panickingBroadcaster fails every Notify.
type panickingBroadcaster struct{}

func (panickingBroadcaster) Notify(scanID string, percent int, message string) {
	panic("terminal detached")
}

func TestScanService_Process_BroadcasterPanic(t *testing.T) {
	h := newHarness(t)
	h.svc = shield.NewScanService(shield.Deps{
		Database:       h.db,
		Store:          h.store,
		IPDetector:     h.ip,
		SafetyAnalyzer: h.safety,
		Verifier:       h.verifier,
		Sampler:        h.sampler,
		Broadcaster:    panickingBroadcaster{},
		Dispatcher:     h.dispatcher,
		Logger:         h.logger,
		Clock:          h.clock,
		IDs:            testutil.NewStubIDGenerator(),
	}, h.opts)

	scan := h.queue(t, "poster.png", "image/png")
	got := h.process(t, scan.ID)

	if got.Status != model.ScanComplete {
		t.Fatalf("Status = %q, want %q (error %q)", got.Status, model.ScanComplete, got.ErrorMessage)
	}
	var warned bool
	for _, line := range h.logger.Lines {
		if strings.HasPrefix(line, "WARN") && strings.Contains(line, "progress broadcaster panicked") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("broadcaster panic not logged: %v", h.logger.Lines)
	}
}

// stallingAnalyzer blocks until its context is done.
type stallingAnalyzer struct{}

func (stallingAnalyzer) Analyze(ctx context.Context, media shield.Media, g *model.BrandGuideline) (*shield.AnalysisReport, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestScanService_Process_ScanDeadline(t *testing.T) {
	h := newHarness(t)
	h.opts.ScanTimeout = 50 * time.Millisecond
	h.svc = shield.NewScanService(shield.Deps{
		Database:       h.db,
		Store:          h.store,
		IPDetector:     stallingAnalyzer{},
		SafetyAnalyzer: h.safety,
		Verifier:       h.verifier,
		Sampler:        h.sampler,
		Broadcaster:    h.progress,
		Dispatcher:     h.dispatcher,
		Logger:         h.logger,
		Clock:          h.clock,
		IDs:            testutil.NewStubIDGenerator(),
	}, h.opts)

	scan := h.queue(t, "poster.png", "image/png")
	got := h.process(t, scan.ID)

	if got.Status != model.ScanFailed {
		t.Fatalf("Status = %q, want %q", got.Status, model.ScanFailed)
	}
	if !strings.Contains(got.ErrorMessage, context.DeadlineExceeded.Error()) {
		t.Errorf("ErrorMessage = %q, want deadline exceeded", got.ErrorMessage)
	}
}

func TestScanService_Process_PassesGuideline(t *testing.T) {
	h := newHarness(t)
	g, err := h.svc.CreateBrandGuideline("Acme", []string{"competitor"}, nil, "family brand")
	if err != nil {
		t.Fatalf("CreateBrandGuideline() error = %v", err)
	}

	content := "png"
	asset, err := h.svc.RegisterAsset(context.Background(), "ad.png", strings.NewReader(content), int64(len(content)), "image/png")
	if err != nil {
		t.Fatalf("RegisterAsset() error = %v", err)
	}
	scan, err := h.svc.CreateScan(asset.ID, g.ID)
	if err != nil {
		t.Fatalf("CreateScan() error = %v", err)
	}
	h.process(t, scan.ID)

	for _, seen := range [][]*model.BrandGuideline{h.ip.Guidelines, h.safety.Guidelines} {
		if len(seen) != 1 || seen[0] == nil || seen[0].Name != "Acme" {
			t.Errorf("analyzer guidelines = %+v, want Acme", seen)
		}
	}
}
