package shield

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/scoring"
)

// ScanReport is the read model of one scan. The top-level fields mirror the
// persisted scan row; a failed scan has the same shape with an error message.
type ScanReport struct {
	ID                  string                 `json:"id"`
	AssetID             string                 `json:"asset_id"`
	GuidelineID         string                 `json:"guideline_id,omitempty"`
	Status              model.ScanStatus       `json:"status"`
	RiskLevel           model.RiskLevel        `json:"risk_level,omitempty"`
	Verdict             string                 `json:"verdict,omitempty"`
	CompositeScore      *int                   `json:"composite_score"`
	IPRiskScore         *int                   `json:"ip_risk_score"`
	SafetyRiskScore     *int                   `json:"safety_risk_score"`
	ProvenanceRiskScore *int                   `json:"provenance_risk_score"`
	ProvenanceStatus    model.ProvenanceStatus `json:"provenance_status,omitempty"`
	IsVideo             bool                   `json:"is_video"`
	FramesAnalyzed      int                    `json:"frames_analyzed"`
	ErrorMessage        string                 `json:"error_message,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	StartedAt           *time.Time             `json:"started_at,omitempty"`
	CompletedAt         *time.Time             `json:"completed_at"`
	AnalysisDurationMS  *int64                 `json:"analysis_duration_ms"`

	Findings   []FindingReport   `json:"findings"`
	Frames     []FrameReport     `json:"frames,omitempty"`
	Provenance *ProvenanceReport `json:"provenance,omitempty"`
}

type FindingReport struct {
	ID             string            `json:"id"`
	Type           model.FindingType `json:"type"`
	Severity       model.Severity    `json:"severity"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Recommendation string            `json:"recommendation"`
	Evidence       json.RawMessage   `json:"evidence,omitempty"`
}

type FrameReport struct {
	Index           int   `json:"frame_index"`
	TimestampMS     int64 `json:"timestamp_ms"`
	IPRiskScore     int   `json:"ip_risk_score"`
	SafetyRiskScore int   `json:"safety_risk_score"`
	CompositeScore  int   `json:"composite_score"`
}

type ProvenanceReport struct {
	Status          model.ProvenanceStatus `json:"status"`
	Creator         string                 `json:"creator,omitempty"`
	SigningTool     string                 `json:"signing_tool,omitempty"`
	Issuer          string                 `json:"issuer,omitempty"`
	SignedAt        *time.Time             `json:"signed_at,omitempty"`
	EditHistory     json.RawMessage        `json:"edit_history,omitempty"`
	ValidationCodes json.RawMessage        `json:"validation_codes,omitempty"`
}

// GetReport assembles the scan row and its result rows.
func (s *ScanService) GetReport(scanID string) (*ScanReport, error) {
	scan, err := s.database.FindScan(scanID)
	if err != nil {
		return nil, fmt.Errorf("finding scan: %w", err)
	}
	if scan == nil {
		return nil, notFound("scan %s", scanID)
	}

	findings, err := s.database.FindingsForScan(scanID)
	if err != nil {
		return nil, fmt.Errorf("loading findings: %w", err)
	}
	frames, err := s.database.FramesForScan(scanID)
	if err != nil {
		return nil, fmt.Errorf("loading frames: %w", err)
	}
	prov, err := s.database.ProvenanceForScan(scanID)
	if err != nil {
		return nil, fmt.Errorf("loading provenance: %w", err)
	}

	r := &ScanReport{
		ID:                  scan.ID,
		AssetID:             scan.AssetID,
		GuidelineID:         scan.GuidelineID,
		Status:              scan.Status,
		RiskLevel:           scan.RiskLevel,
		CompositeScore:      scan.CompositeScore,
		IPRiskScore:         scan.IPRiskScore,
		SafetyRiskScore:     scan.SafetyRiskScore,
		ProvenanceRiskScore: scan.ProvenanceRiskScore,
		ProvenanceStatus:    scan.ProvenanceStatus,
		IsVideo:             scan.IsVideo,
		FramesAnalyzed:      scan.FramesAnalyzed,
		ErrorMessage:        scan.ErrorMessage,
		CreatedAt:           scan.CreatedAt,
		StartedAt:           scan.StartedAt,
		CompletedAt:         scan.CompletedAt,
		AnalysisDurationMS:  scan.AnalysisDurationMS,
		Findings:            make([]FindingReport, 0, len(findings)),
	}
	if scan.CompositeScore != nil {
		r.Verdict = scoring.TierFor(*scan.CompositeScore).Verdict
	}

	for _, f := range findings {
		r.Findings = append(r.Findings, FindingReport{
			ID:             f.ID,
			Type:           f.Type,
			Severity:       f.Severity,
			Title:          f.Title,
			Description:    f.Description,
			Recommendation: f.Recommendation,
			Evidence:       json.RawMessage(f.Evidence),
		})
	}
	for _, fr := range frames {
		r.Frames = append(r.Frames, FrameReport{
			Index:           fr.FrameIndex,
			TimestampMS:     fr.TimestampMS,
			IPRiskScore:     fr.IPRiskScore,
			SafetyRiskScore: fr.SafetyRiskScore,
			CompositeScore:  fr.CompositeScore,
		})
	}
	if prov != nil {
		r.Provenance = &ProvenanceReport{
			Status:          prov.Status,
			Creator:         prov.Creator,
			SigningTool:     prov.SigningTool,
			Issuer:          prov.Issuer,
			SignedAt:        prov.SignedAt,
			EditHistory:     json.RawMessage(prov.EditHistory),
			ValidationCodes: json.RawMessage(prov.ValidationCodes),
		}
	}
	return r, nil
}
