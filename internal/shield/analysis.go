package shield

import (
	"context"
	"time"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
)

// Media is one image, or one sampled video frame, handed to an analyzer.
type Media struct {
	Data     []byte
	MIMEType string
}

// Detection is a single itemized issue reported by an analyzer.
type Detection struct {
	Category    string         `json:"category"`
	Name        string         `json:"name,omitempty"`
	Severity    model.Severity `json:"severity"`
	Confidence  float64        `json:"confidence"`
	Description string         `json:"description"`
}

// AnalysisReport is the parsed output of one analyzer call.
type AnalysisReport struct {
	Score      int             `json:"score"`
	Level      model.RiskLevel `json:"level"`
	Detections []Detection     `json:"detections"`
	Summary    string          `json:"summary"`
}

// Analyzer sends one image to the vision service and scores the response.
// The IP detector and the safety analyzer both implement it.
type Analyzer interface {
	Analyze(ctx context.Context, media Media, guideline *model.BrandGuideline) (*AnalysisReport, error)
}

// ProvenanceResult is the outcome of a content-credential check.
type ProvenanceResult struct {
	Status          model.ProvenanceStatus
	Creator         string
	SigningTool     string
	Issuer          string
	SignedAt        *time.Time
	History         []EditAction
	ValidationCodes []string
}

// EditAction is one entry of a manifest's edit history.
type EditAction struct {
	Action        string `json:"action"`
	SoftwareAgent string `json:"software_agent,omitempty"`
	When          string `json:"when,omitempty"`
}

// ProvenanceVerifier checks the content credentials embedded in a file.
// A returned error means the check itself failed; it is distinct from an
// invalid manifest, which is reported through the status.
type ProvenanceVerifier interface {
	Verify(ctx context.Context, path string) (*ProvenanceResult, error)
}

// Frame is one still extracted from a video.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Media     Media
}

// FrameSampler extracts count representative frames from a video file.
type FrameSampler interface {
	Sample(ctx context.Context, path string, count int) ([]Frame, error)
}
