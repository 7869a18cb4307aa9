package scoring

import "github.com/Korkidis/ai-risk-shield-sub000/internal/model"

var severityWeights = map[model.Severity]float64{
	model.SeverityLow:      25,
	model.SeverityMedium:   50,
	model.SeverityHigh:     75,
	model.SeverityCritical: 100,
}

// SeverityWeight returns the weight for sev, or 0 for an unknown severity.
func SeverityWeight(sev model.Severity) float64 {
	return severityWeights[sev]
}

// KnownSeverity reports whether sev has a weight.
func KnownSeverity(sev model.Severity) bool {
	_, ok := severityWeights[sev]
	return ok
}

// Weighted is one detection as seen by the aggregate: a severity and a
// confidence in [0,100].
type Weighted struct {
	Severity   model.Severity
	Confidence float64
}

// Aggregate computes round(mean(weight * confidence/100)) over items.
// An empty list scores 0.
func Aggregate(items []Weighted) int {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += SeverityWeight(it.Severity) * clampConfidence(it.Confidence) / 100
	}
	return clamp(round(sum / float64(len(items))))
}

// SubLevel derives an analyzer's level from its sub-score using the tier
// table. Any critical detection forces critical.
func SubLevel(score int, items []Weighted) model.RiskLevel {
	for _, it := range items {
		if it.Severity == model.SeverityCritical {
			return model.RiskCritical
		}
	}
	return TierFor(score).Level
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
