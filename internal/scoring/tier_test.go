package scoring

import (
	"testing"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
)

func TestTierFor_Boundaries(t *testing.T) {
	tests := []struct {
		score   int
		level   model.RiskLevel
		verdict string
	}{
		{0, model.RiskSafe, "Low Risk"},
		{25, model.RiskSafe, "Low Risk"},
		{26, model.RiskCaution, "Low Risk"},
		{50, model.RiskCaution, "Low Risk"},
		{51, model.RiskReview, "Medium Risk"},
		{75, model.RiskReview, "Medium Risk"},
		{76, model.RiskHigh, "High Risk"},
		{90, model.RiskHigh, "High Risk"},
		{91, model.RiskCritical, "Critical Risk"},
		{100, model.RiskCritical, "Critical Risk"},
		{-5, model.RiskSafe, "Low Risk"},
		{140, model.RiskCritical, "Critical Risk"},
	}

	for _, tt := range tests {
		got := TierFor(tt.score)
		if got.Level != tt.level {
			t.Errorf("TierFor(%d).Level = %q, want %q", tt.score, got.Level, tt.level)
		}
		if got.Verdict != tt.verdict {
			t.Errorf("TierFor(%d).Verdict = %q, want %q", tt.score, got.Verdict, tt.verdict)
		}
	}
}

func TestTierFor_Exhaustive(t *testing.T) {
	for score := 0; score <= 100; score++ {
		tier := TierFor(score)
		if score < tier.Min {
			t.Fatalf("TierFor(%d) returned tier with Min %d", score, tier.Min)
		}
	}
}

func TestSeverityFor(t *testing.T) {
	want := map[model.RiskLevel]model.Severity{
		model.RiskCritical: model.SeverityCritical,
		model.RiskHigh:     model.SeverityHigh,
		model.RiskReview:   model.SeverityMedium,
		model.RiskCaution:  model.SeverityLow,
		model.RiskSafe:     model.SeverityLow,
	}
	for level, sev := range want {
		if got := SeverityFor(level); got != sev {
			t.Errorf("SeverityFor(%q) = %q, want %q", level, got, sev)
		}
	}
}
