package scoring

import "github.com/Korkidis/ai-risk-shield-sub000/internal/model"

// Tier maps an inclusive lower score bound to a level, label and verdict.
type Tier struct {
	Min     int
	Level   model.RiskLevel
	Label   string
	Verdict string
}

// Tiers is ordered from the highest lower bound to the lowest. It is the only
// place a score is classified; callers must go through TierFor.
var Tiers = []Tier{
	{Min: 91, Level: model.RiskCritical, Label: "Critical", Verdict: "Critical Risk"},
	{Min: 76, Level: model.RiskHigh, Label: "High", Verdict: "High Risk"},
	{Min: 51, Level: model.RiskReview, Label: "Review Required", Verdict: "Medium Risk"},
	{Min: 26, Level: model.RiskCaution, Label: "Caution", Verdict: "Low Risk"},
	{Min: 0, Level: model.RiskSafe, Label: "Safe", Verdict: "Low Risk"},
}

// TierFor returns the tier for score. Out-of-range scores are clamped first.
func TierFor(score int) Tier {
	score = clamp(score)
	for _, t := range Tiers {
		if score >= t.Min {
			return t
		}
	}
	return Tiers[len(Tiers)-1]
}

// SeverityFor maps a risk level onto the finding severity scale.
func SeverityFor(level model.RiskLevel) model.Severity {
	switch level {
	case model.RiskCritical:
		return model.SeverityCritical
	case model.RiskHigh:
		return model.SeverityHigh
	case model.RiskReview:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
