// Package provenance checks content credentials (C2PA manifests) embedded in
// media files.
package provenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/toolexec"
)

// Validation codes that weaken trust in a manifest without proving
// tampering. Any other failure code makes the manifest invalid.
var cautionCodes = map[string]bool{
	"signingCredential.untrusted":     true,
	"signingCredential.expired":       true,
	"timeStamp.untrusted":             true,
	"timeStamp.mismatch":              true,
	"timeStamp.outsideValidity":       true,
	"signingCredential.ocsp.unknown":  true,
	"signingCredential.ocsp.skipped":  true,
	"general.unsupportedManifestType": true,
}

// Messages c2patool prints when a file has no manifest at all.
var noManifestMarkers = []string{
	"no claim found",
	"manifest not found",
	"no jumbf",
	"jumbfnotfound",
}

// C2PATool verifies files by running the c2patool CLI and reading its JSON
// manifest report.
type C2PATool struct {
	path string
	run  toolexec.Runner
}

// NewC2PATool creates a verifier that invokes the binary at path.
func NewC2PATool(path string) *C2PATool {
	return NewC2PAToolWithRunner(path, toolexec.Exec)
}

// NewC2PAToolWithRunner creates a verifier with a custom command runner.
func NewC2PAToolWithRunner(path string, run toolexec.Runner) *C2PATool {
	if path == "" {
		path = "c2patool"
	}
	return &C2PATool{path: path, run: run}
}

// Verify implements shield.ProvenanceVerifier.
func (c *C2PATool) Verify(ctx context.Context, path string) (*shield.ProvenanceResult, error) {
	stdout, stderr, err := c.run(ctx, c.path, path)
	if err != nil {
		if noManifest(stderr) || noManifest(stdout) {
			return &shield.ProvenanceResult{Status: model.ProvenanceMissing}, nil
		}
		return nil, fmt.Errorf("running %s: %w: %s", c.path, err, strings.TrimSpace(string(stderr)))
	}
	return parseReport(stdout)
}

// ValidateSetup checks that the binary can be run.
func (c *C2PATool) ValidateSetup(ctx context.Context) error {
	if _, _, err := c.run(ctx, c.path, "--version"); err != nil {
		return fmt.Errorf("c2patool is not available at %q: %w", c.path, err)
	}
	return nil
}

func noManifest(out []byte) bool {
	s := strings.ToLower(string(out))
	for _, m := range noManifestMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

type manifestReport struct {
	ActiveManifest   string              `json:"active_manifest"`
	Manifests        map[string]manifest `json:"manifests"`
	ValidationStatus []validationStatus  `json:"validation_status"`
}

type manifest struct {
	ClaimGenerator string `json:"claim_generator"`
	SignatureInfo  *struct {
		Issuer string `json:"issuer"`
		Time   string `json:"time"`
	} `json:"signature_info"`
	Assertions []assertion `json:"assertions"`
}

type assertion struct {
	Label string          `json:"label"`
	Data  json.RawMessage `json:"data"`
}

type validationStatus struct {
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

type actionsData struct {
	Actions []struct {
		Action        string `json:"action"`
		SoftwareAgent any    `json:"softwareAgent"`
		When          string `json:"when"`
	} `json:"actions"`
}

type creativeWork struct {
	Author []struct {
		Name string `json:"name"`
	} `json:"author"`
}

func parseReport(out []byte) (*shield.ProvenanceResult, error) {
	var report manifestReport
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, fmt.Errorf("decoding c2patool report: %w", err)
	}
	if len(report.Manifests) == 0 {
		return &shield.ProvenanceResult{Status: model.ProvenanceMissing}, nil
	}

	res := &shield.ProvenanceResult{Status: classify(report.ValidationStatus)}
	for _, v := range report.ValidationStatus {
		res.ValidationCodes = append(res.ValidationCodes, v.Code)
	}

	active, ok := report.Manifests[report.ActiveManifest]
	if !ok {
		return res, nil
	}
	res.SigningTool = active.ClaimGenerator
	if si := active.SignatureInfo; si != nil {
		res.Issuer = si.Issuer
		if t, err := time.Parse(time.RFC3339, si.Time); err == nil {
			res.SignedAt = &t
		}
	}

	for _, a := range active.Assertions {
		switch {
		case strings.HasPrefix(a.Label, "c2pa.actions"):
			var data actionsData
			if err := json.Unmarshal(a.Data, &data); err != nil {
				continue
			}
			for _, act := range data.Actions {
				res.History = append(res.History, shield.EditAction{
					Action:        act.Action,
					SoftwareAgent: agentName(act.SoftwareAgent),
					When:          act.When,
				})
			}
		case a.Label == "stds.schema-org.CreativeWork":
			var cw creativeWork
			if err := json.Unmarshal(a.Data, &cw); err == nil && len(cw.Author) > 0 {
				res.Creator = cw.Author[0].Name
			}
		}
	}
	return res, nil
}

// classify maps validation failures onto a status. An empty list means the
// manifest validated cleanly.
func classify(statuses []validationStatus) model.ProvenanceStatus {
	if len(statuses) == 0 {
		return model.ProvenanceValid
	}
	for _, s := range statuses {
		if !cautionCodes[s.Code] {
			return model.ProvenanceInvalid
		}
	}
	return model.ProvenanceCaution
}

// agentName handles both the v1 string form and the v2 {"name": ...} form.
func agentName(v any) string {
	switch a := v.(type) {
	case string:
		return a
	case map[string]any:
		if name, ok := a["name"].(string); ok {
			return name
		}
	}
	return ""
}

// Disabled reports every file as having no manifest. It lets the pipeline run
// on hosts without c2patool.
type Disabled struct{}

func (Disabled) Verify(ctx context.Context, path string) (*shield.ProvenanceResult, error) {
	return &shield.ProvenanceResult{Status: model.ProvenanceMissing}, nil
}

// ErrUnknownType is returned by NewVerifierFromConfig for an unknown type.
var ErrUnknownType = errors.New("unknown provenance type")

var (
	_ shield.ProvenanceVerifier = (*C2PATool)(nil)
	_ shield.ProvenanceVerifier = Disabled{}
)
