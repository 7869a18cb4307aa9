package shield

import (
	"time"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
)

// Database provides metadata storage for assets, scans and their results.
// Find* methods return (nil, nil) when the row does not exist.
type Database interface {
	// Asset operations

	// CreateAsset inserts an immutable asset record.
	CreateAsset(asset *model.Asset) error

	// FindAsset returns the asset with the given ID.
	FindAsset(id string) (*model.Asset, error)

	// Brand guideline operations

	// CreateBrandGuideline inserts a guideline.
	CreateBrandGuideline(g *model.BrandGuideline) error

	// FindBrandGuideline returns the guideline with the given ID.
	FindBrandGuideline(id string) (*model.BrandGuideline, error)

	// Scan operations

	// CreateScan inserts a scan in the pending state.
	CreateScan(scan *model.Scan) error

	// FindScan returns the scan with the given ID.
	FindScan(id string) (*model.Scan, error)

	// ListScans returns the most recent scans, newest first.
	ListScans(limit int) ([]*model.Scan, error)

	// ClaimScan moves a pending scan to processing. It returns false when
	// the scan was not pending, i.e. another invocation owns it or it is
	// already terminal.
	ClaimScan(id string, startedAt time.Time) (bool, error)

	// CompleteScan commits every result row and the final scan state in a
	// single transaction.
	CompleteScan(result *ScanResult) error

	// FailScan marks a non-terminal scan as failed with the given message.
	FailScan(id string, message string, completedAt time.Time, durationMS int64) error

	// Result reads

	// FindingsForScan returns findings in insertion order.
	FindingsForScan(scanID string) ([]*model.Finding, error)

	// FramesForScan returns video frames ordered by frame index.
	FramesForScan(scanID string) ([]*model.VideoFrame, error)

	// ProvenanceForScan returns provenance details, or nil if none were recorded.
	ProvenanceForScan(scanID string) (*model.ProvenanceDetail, error)

	// Metering

	// RecordUsage appends a usage event.
	RecordUsage(event *model.UsageEvent) error

	// Close closes the database connection.
	Close() error
}

// ScanResult is everything a successful scan persists.
type ScanResult struct {
	Scan       *model.Scan
	Findings   []*model.Finding
	Frames     []*model.VideoFrame
	Provenance *model.ProvenanceDetail
}
