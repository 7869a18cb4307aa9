// Package vision adapts a vision-capable language model into the two
// analyzers of the scan pipeline: the IP detector and the safety analyzer.
package vision

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/metrics"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/scoring"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

// Analyzer sends one image to the vision model, parses the itemized reply
// and scores it. The IP detector and the safety analyzer differ only in
// prompt and in the name of the item array.
type Analyzer struct {
	name     string
	itemsKey string
	prompt   func(*model.BrandGuideline) string
	client   Client
	logger   shield.Logger
}

// NewIPDetector returns the analyzer for intellectual-property exposure.
func NewIPDetector(client Client, logger shield.Logger) *Analyzer {
	return newAnalyzer("ip", "detections", ipPrompt, client, logger)
}

// NewSafetyAnalyzer returns the analyzer for brand-safety violations.
func NewSafetyAnalyzer(client Client, logger shield.Logger) *Analyzer {
	return newAnalyzer("safety", "violations", safetyPrompt, client, logger)
}

func newAnalyzer(name, itemsKey string, prompt func(*model.BrandGuideline) string, client Client, logger shield.Logger) *Analyzer {
	if logger == nil {
		logger = shield.NewNopLogger()
	}
	return &Analyzer{
		name:     name,
		itemsKey: itemsKey,
		prompt:   prompt,
		client:   client,
		logger:   logger,
	}
}

// item is one entry of the reply. The IP schema names the class "category",
// the safety schema names it "type".
type item struct {
	Category    string  `json:"category"`
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Severity    string  `json:"severity"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// Analyze implements shield.Analyzer.
func (a *Analyzer) Analyze(ctx context.Context, media shield.Media, guideline *model.BrandGuideline) (*shield.AnalysisReport, error) {
	text, err := a.client.Complete(ctx, Request{
		System: systemPrompt,
		Prompt: a.prompt(guideline),
		Image:  media,
	})
	if err != nil {
		metrics.VisionRequests.WithLabelValues(a.name, "call_error").Inc()
		return nil, shield.UpstreamError(a.name+" request", err)
	}

	report, err := a.decode(text)
	if err != nil {
		metrics.VisionRequests.WithLabelValues(a.name, "parse_error").Inc()
		a.logger.Warn("vision reply rejected", "analyzer", a.name, "error", err, "reply", truncate(text, 200))
		return nil, err
	}

	metrics.VisionRequests.WithLabelValues(a.name, "ok").Inc()
	a.logger.Debug("vision reply scored", "analyzer", a.name, "score", report.Score, "items", len(report.Detections))
	return report, nil
}

func (a *Analyzer) decode(text string) (*shield.AnalysisReport, error) {
	var fields map[string]json.RawMessage
	if err := ParseStructuredResponse(text, &fields); err != nil {
		return nil, err
	}

	raw, ok := fields[a.itemsKey]
	if !ok || string(raw) == "null" {
		return nil, &ParseError{Reason: fmt.Sprintf("missing %q array", a.itemsKey), Raw: text}
	}
	var items []item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("malformed %q array", a.itemsKey), Raw: text, Err: err}
	}

	var summary string
	if s, ok := fields["summary"]; ok && string(s) != "null" {
		if err := json.Unmarshal(s, &summary); err != nil {
			return nil, &ParseError{Reason: "summary is not a string", Raw: text, Err: err}
		}
	}

	detections := make([]shield.Detection, 0, len(items))
	weighted := make([]scoring.Weighted, 0, len(items))
	for i, it := range items {
		sev := model.Severity(strings.ToLower(strings.TrimSpace(it.Severity)))
		if !scoring.KnownSeverity(sev) {
			return nil, &ParseError{Reason: fmt.Sprintf("%s[%d] has unknown severity %q", a.itemsKey, i, it.Severity), Raw: text}
		}
		category := it.Category
		if category == "" {
			category = it.Type
		}
		conf := min(max(it.Confidence, 0), 100)

		detections = append(detections, shield.Detection{
			Category:    category,
			Name:        it.Name,
			Severity:    sev,
			Confidence:  conf,
			Description: it.Description,
		})
		weighted = append(weighted, scoring.Weighted{Severity: sev, Confidence: conf})
	}

	score := scoring.Aggregate(weighted)
	return &shield.AnalysisReport{
		Score:      score,
		Level:      scoring.SubLevel(score, weighted),
		Detections: detections,
		Summary:    summary,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ shield.Analyzer = (*Analyzer)(nil)
