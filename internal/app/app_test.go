package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/config"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Storage = config.StorageConfig{Type: "memory"}
	cfg.Provenance = config.ProvenanceConfig{Type: "disabled"}
	cfg.Vision.APIKeyEnv = "RISKSHIELD_TEST_API_KEY"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, pipeline bool) *App {
	t.Helper()
	a, err := NewApp(context.Background(), cfg, NewOperation("Test", pipeline, time.Now()))
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestApp_ReadOnlyOperations(t *testing.T) {
	a := newTestApp(t, testConfig(t), false)
	ctx := context.Background()

	asset, err := a.RegisterAsset(ctx, writeFile(t, "hero.png", pngHeader))
	if err != nil {
		t.Fatalf("RegisterAsset() error = %v", err)
	}
	if asset.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q, want sniffed image/png", asset.MIMEType)
	}
	if asset.Filename != "hero.png" {
		t.Errorf("Filename = %q", asset.Filename)
	}

	g, err := a.AddGuideline("Acme", []string{"competitor logos"}, nil, "Acme Corp")
	if err != nil {
		t.Fatalf("AddGuideline() error = %v", err)
	}

	scan, err := a.CreateScan(asset.ID, g.ID)
	if err != nil {
		t.Fatalf("CreateScan() error = %v", err)
	}

	scans, err := a.ListScans(10)
	if err != nil {
		t.Fatalf("ListScans() error = %v", err)
	}
	if len(scans) != 1 || scans[0].ID != scan.ID {
		t.Errorf("ListScans() = %+v, want [%s]", scans, scan.ID)
	}

	report, err := a.Report(scan.ID)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if report.Status != model.ScanPending {
		t.Errorf("Status = %q, want pending", report.Status)
	}

	if _, err := a.ProcessScan(ctx, scan.ID, nil); err == nil {
		t.Error("ProcessScan() on a read-only operation succeeded")
	}
	if err := a.Serve(ctx); err == nil {
		t.Error("Serve() on a read-only operation succeeded")
	}
}

func TestApp_RegisterAssetRejects(t *testing.T) {
	a := newTestApp(t, testConfig(t), false)
	ctx := context.Background()

	if _, err := a.RegisterAsset(ctx, writeFile(t, "notes.png", []byte("plain text, not an image"))); err == nil {
		t.Error("RegisterAsset() accepted text content with an image extension")
	}
	if _, err := a.RegisterAsset(ctx, t.TempDir()); err == nil {
		t.Error("RegisterAsset() accepted a directory")
	}
	if _, err := a.RegisterAsset(ctx, filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("RegisterAsset() accepted a missing file")
	}
}

func TestNewApp_Pipeline(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		t.Setenv("RISKSHIELD_TEST_API_KEY", "")
		_, err := NewApp(context.Background(), testConfig(t), NewOperation("ProcessScan", true, time.Now()))
		if err == nil || !strings.Contains(err.Error(), "vision") {
			t.Errorf("NewApp() error = %v, want vision client error", err)
		}
	})

	t.Run("wires backends", func(t *testing.T) {
		t.Setenv("RISKSHIELD_TEST_API_KEY", "sk-test")
		cfg := testConfig(t)
		a := newTestApp(t, cfg, true)

		if a.ipDetector == nil || a.safety == nil || a.verifier == nil || a.sampler == nil || a.dispatcher == nil {
			t.Fatalf("pipeline backends not wired: %+v", a)
		}
		if _, err := os.Stat(filepath.Join(cfg.BaseDir, "tmp")); err != nil {
			t.Errorf("temp dir not created: %v", err)
		}
	})

	t.Run("rejects unknown log level", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.LogLevel = "loud"
		if _, err := NewApp(context.Background(), cfg, NewOperation("ListScans", false, time.Now())); err == nil {
			t.Error("NewApp() accepted an unknown log level")
		}
	})
}

func TestApp_Options(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.FrameCount = 8
	cfg.Pipeline.DisclosureThreshold = 0
	cfg.Pipeline.SignedURLTTLSeconds = 60
	cfg.Pipeline.ScanTimeoutSeconds = 90
	a := newTestApp(t, cfg, false)

	opts := a.options()
	if opts.FrameCount != 8 {
		t.Errorf("FrameCount = %d, want 8", opts.FrameCount)
	}
	if opts.DisclosureThreshold != 0 {
		t.Errorf("DisclosureThreshold = %d, want 0", opts.DisclosureThreshold)
	}
	if opts.SignedURLTTL != time.Minute {
		t.Errorf("SignedURLTTL = %s, want 1m", opts.SignedURLTTL)
	}
	if opts.ScanTimeout != 90*time.Second {
		t.Errorf("ScanTimeout = %s, want 1m30s", opts.ScanTimeout)
	}
	if opts.TempDir != filepath.Join(cfg.BaseDir, "tmp") {
		t.Errorf("TempDir = %q", opts.TempDir)
	}
}

func TestMigrate(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = config.DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(cfg.BaseDir, "db")}
	op := NewOperation("ListScans", false, time.Now())

	if _, err := NewApp(context.Background(), cfg, op); err == nil {
		t.Fatal("NewApp() succeeded before migrations")
	}

	if err := Migrate(cfg); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	a, err := NewApp(context.Background(), cfg, op)
	if err != nil {
		t.Fatalf("NewApp() after Migrate error = %v", err)
	}
	a.Close()
}
