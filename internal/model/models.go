package model

import "time"

// MediaKind distinguishes still images from video assets.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// ScanStatus is the lifecycle state of a Scan.
// pending -> processing -> {complete, failed}; complete and failed are terminal.
type ScanStatus string

const (
	ScanPending    ScanStatus = "pending"
	ScanProcessing ScanStatus = "processing"
	ScanComplete   ScanStatus = "complete"
	ScanFailed     ScanStatus = "failed"
)

// Terminal reports whether no further transitions are allowed out of s.
func (s ScanStatus) Terminal() bool {
	return s == ScanComplete || s == ScanFailed
}

// ProvenanceStatus is the outcome of a content-credential check.
type ProvenanceStatus string

const (
	ProvenanceValid   ProvenanceStatus = "valid"
	ProvenanceCaution ProvenanceStatus = "caution"
	ProvenanceInvalid ProvenanceStatus = "invalid"
	ProvenanceError   ProvenanceStatus = "error"
	ProvenanceMissing ProvenanceStatus = "missing"
)

// Valid reports whether s is one of the five known statuses.
func (s ProvenanceStatus) Valid() bool {
	switch s {
	case ProvenanceValid, ProvenanceCaution, ProvenanceInvalid, ProvenanceError, ProvenanceMissing:
		return true
	}
	return false
}

// RiskLevel is the tier a score falls into.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskCaution  RiskLevel = "caution"
	RiskReview   RiskLevel = "review"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Severity grades a single detection or finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// FindingType classifies a Finding by the signal that raised it.
type FindingType string

const (
	FindingIPViolation     FindingType = "ip_violation"
	FindingSafetyViolation FindingType = "safety_violation"
	FindingProvenanceIssue FindingType = "provenance_issue"
)

// Asset is an uploaded file. Immutable once created.
type Asset struct {
	ID         string    // UUID
	StorageKey string    // Object storage key
	Filename   string    // Original base name
	MIMEType   string
	Kind       MediaKind
	Size       int64
	CreatedAt  time.Time
}

// BrandGuideline tailors analysis prompts for a brand.
type BrandGuideline struct {
	ID                 string
	Name               string
	ProhibitedKeywords []string
	RequiredElements   []string
	Context            string
	CreatedAt          time.Time
}

// Scan is one analysis job for one Asset. Nullable columns are pointers.
type Scan struct {
	ID                  string
	AssetID             string
	GuidelineID         string // empty when no guideline applies
	Status              ScanStatus
	RiskLevel           RiskLevel
	CompositeScore      *int
	IPRiskScore         *int
	SafetyRiskScore     *int
	ProvenanceRiskScore *int
	ProvenanceStatus    ProvenanceStatus
	IsVideo             bool
	FramesAnalyzed      int
	ErrorMessage        string
	CreatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	AnalysisDurationMS  *int64
}

// Finding is one flagged issue on a Scan. Append-only.
type Finding struct {
	ID             string
	ScanID         string
	Type           FindingType
	Severity       Severity
	Title          string
	Description    string
	Recommendation string
	Evidence       []byte // JSON
	CreatedAt      time.Time
}

// VideoFrame is one sampled frame of a video Scan.
type VideoFrame struct {
	ID              string
	ScanID          string
	FrameIndex      int
	TimestampMS     int64
	IPRiskScore     int
	SafetyRiskScore int
	CompositeScore  int
	CreatedAt       time.Time
}

// ProvenanceDetail records the content-credential metadata seen for a Scan.
type ProvenanceDetail struct {
	ScanID          string
	Status          ProvenanceStatus
	Creator         string
	SigningTool     string
	Issuer          string
	SignedAt        *time.Time
	EditHistory     []byte // JSON array of actions
	ValidationCodes []byte // JSON array of validation status codes
	CreatedAt       time.Time
}

// UsageEvent is one metered unit of analysis work.
type UsageEvent struct {
	ID         string
	ScanID     string
	AssetID    string
	Kind       MediaKind
	Units      int // images or frames analyzed
	RecordedAt time.Time
}
