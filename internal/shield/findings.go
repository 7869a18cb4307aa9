package shield

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/scoring"
)

var provenanceSeverity = map[model.ProvenanceStatus]model.Severity{
	model.ProvenanceValid:   model.SeverityLow,
	model.ProvenanceCaution: model.SeverityMedium,
	model.ProvenanceError:   model.SeverityMedium,
	model.ProvenanceMissing: model.SeverityHigh,
	model.ProvenanceInvalid: model.SeverityCritical,
}

type provenanceCopy struct {
	title, description, recommendation string
}

var provenanceText = map[model.ProvenanceStatus]provenanceCopy{
	model.ProvenanceValid: {
		"Content credentials verified",
		"The asset carries a valid content-credential manifest with an intact signature chain.",
		"No action needed. Keep the manifest attached when redistributing the asset.",
	},
	model.ProvenanceCaution: {
		"Content credentials present with warnings",
		"A manifest was found but its signer is untrusted or its timestamp could not be confirmed.",
		"Confirm the signer's identity before relying on the provenance claim.",
	},
	model.ProvenanceError: {
		"Content credentials could not be checked",
		"The provenance check failed to run, so the asset's origin is unknown.",
		"Re-run the scan. If the failure persists, verify the asset manually.",
	},
	model.ProvenanceMissing: {
		"No content credentials",
		"The asset has no content-credential manifest. Its creation history cannot be verified.",
		"Obtain the source file with credentials attached, or document the asset's origin.",
	},
	model.ProvenanceInvalid: {
		"Content credentials failed validation",
		"A manifest was found but failed validation. The asset may have been altered after signing.",
		"Do not publish until the asset's origin and edit history are confirmed.",
	},
}

type analysisEvidence struct {
	Score      int             `json:"score"`
	Level      model.RiskLevel `json:"level"`
	Summary    string          `json:"summary,omitempty"`
	Detections []Detection     `json:"detections"`
	Frame      *int            `json:"frame_index,omitempty"`
}

type provenanceEvidence struct {
	Status          model.ProvenanceStatus `json:"status"`
	Creator         string                 `json:"creator,omitempty"`
	SigningTool     string                 `json:"signing_tool,omitempty"`
	Issuer          string                 `json:"issuer,omitempty"`
	SignedAt        *time.Time             `json:"signed_at,omitempty"`
	History         []EditAction           `json:"edit_history,omitempty"`
	ValidationCodes []string               `json:"validation_codes,omitempty"`
}

// synthesizeFindings raises one finding per sub-score above the disclosure
// threshold and always one for provenance.
func (s *ScanService) synthesizeFindings(scanID string, sig *signals, prov *ProvenanceResult, now time.Time) ([]*model.Finding, error) {
	var findings []*model.Finding

	if sig.ip.Score > s.opts.DisclosureThreshold {
		f, err := s.analysisFinding(scanID, model.FindingIPViolation, sig.ip, sig.ipFrame, now,
			"Potential intellectual property exposure",
			"Obtain licenses for the flagged material or remove it before publishing.")
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}

	if sig.safety.Score > s.opts.DisclosureThreshold {
		f, err := s.analysisFinding(scanID, model.FindingSafetyViolation, sig.safety, sig.safetyFrame, now,
			"Brand safety violation",
			"Review the flagged content against brand policy and edit or withdraw the asset.")
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}

	evidence, err := json.Marshal(provenanceEvidence{
		Status:          prov.Status,
		Creator:         prov.Creator,
		SigningTool:     prov.SigningTool,
		Issuer:          prov.Issuer,
		SignedAt:        prov.SignedAt,
		History:         prov.History,
		ValidationCodes: prov.ValidationCodes,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding provenance evidence: %w", err)
	}
	text := provenanceText[prov.Status]
	findings = append(findings, &model.Finding{
		ID:             s.idgen.New(),
		ScanID:         scanID,
		Type:           model.FindingProvenanceIssue,
		Severity:       provenanceSeverity[prov.Status],
		Title:          text.title,
		Description:    text.description,
		Recommendation: text.recommendation,
		Evidence:       evidence,
		CreatedAt:      now,
	})

	return findings, nil
}

func (s *ScanService) analysisFinding(scanID string, typ model.FindingType, r *AnalysisReport, frame int, now time.Time, title, recommendation string) (*model.Finding, error) {
	ev := analysisEvidence{
		Score:      r.Score,
		Level:      r.Level,
		Summary:    r.Summary,
		Detections: r.Detections,
	}
	if ev.Detections == nil {
		ev.Detections = []Detection{}
	}
	if frame >= 0 {
		ev.Frame = &frame
	}
	evidence, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s evidence: %w", typ, err)
	}

	description := r.Summary
	if description == "" {
		description = fmt.Sprintf("%d issue(s) detected with a risk score of %d.", len(r.Detections), r.Score)
	}

	return &model.Finding{
		ID:             s.idgen.New(),
		ScanID:         scanID,
		Type:           typ,
		Severity:       scoring.SeverityFor(r.Level),
		Title:          title,
		Description:    description,
		Recommendation: recommendation,
		Evidence:       evidence,
		CreatedAt:      now,
	}, nil
}

// provenanceDetail converts a verifier result into its persisted form.
func provenanceDetail(scanID string, prov *ProvenanceResult, now time.Time) (*model.ProvenanceDetail, error) {
	history := prov.History
	if history == nil {
		history = []EditAction{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("encoding edit history: %w", err)
	}
	codes := prov.ValidationCodes
	if codes == nil {
		codes = []string{}
	}
	codesJSON, err := json.Marshal(codes)
	if err != nil {
		return nil, fmt.Errorf("encoding validation codes: %w", err)
	}
	return &model.ProvenanceDetail{
		ScanID:          scanID,
		Status:          prov.Status,
		Creator:         prov.Creator,
		SigningTool:     prov.SigningTool,
		Issuer:          prov.Issuer,
		SignedAt:        prov.SignedAt,
		EditHistory:     historyJSON,
		ValidationCodes: codesJSON,
		CreatedAt:       now,
	}, nil
}
