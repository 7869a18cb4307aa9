// Package scoring turns IP, safety and provenance signals into one 0-100
// composite score and its tier. Everything here is pure and deterministic.
package scoring

import (
	"math"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
)

const (
	// ValidIPCap is the ceiling applied to the IP score when provenance is valid.
	ValidIPCap = 10

	// CompoundIPThreshold and CompoundProvenanceThreshold must both be met
	// for the compound-risk boost to apply.
	CompoundIPThreshold         = 80
	CompoundProvenanceThreshold = 60

	// CriticalFloorIP is the effective IP score at which the composite is
	// floored to CriticalFloorScore.
	CriticalFloorIP    = 90
	CriticalFloorScore = 95

	ipWeight         = 0.4
	safetyWeight     = 0.4
	provenanceWeight = 0.2
)

var provenanceScores = map[model.ProvenanceStatus]int{
	model.ProvenanceValid:   0,
	model.ProvenanceCaution: 20,
	model.ProvenanceError:   50,
	model.ProvenanceMissing: 80,
	model.ProvenanceInvalid: 100,
}

// ProvenanceScore returns the fixed risk score for a provenance status.
// Unknown statuses score as error.
func ProvenanceScore(status model.ProvenanceStatus) int {
	if s, ok := provenanceScores[status]; ok {
		return s
	}
	return provenanceScores[model.ProvenanceError]
}

// Input is the value object consumed by Compute.
type Input struct {
	IPScore     int
	SafetyScore int
	C2PAStatus  model.ProvenanceStatus
}

// Result is the composite score plus the intermediate values that produced it.
type Result struct {
	Score           int
	EffectiveIP     int
	SafetyScore     int
	ProvenanceScore int
	Base            int
	Boost           int
	CriticalFloor   bool
	Tier            Tier
}

// Level is shorthand for r.Tier.Level.
func (r Result) Level() model.RiskLevel { return r.Tier.Level }

// Verdict is shorthand for r.Tier.Verdict.
func (r Result) Verdict() string { return r.Tier.Verdict }

// Score returns only the composite score for the given signals.
func Score(ipScore, safetyScore int, status model.ProvenanceStatus) int {
	return Compute(Input{IPScore: ipScore, SafetyScore: safetyScore, C2PAStatus: status}).Score
}

// Compute applies, in order: provenance mapping, the valid-caps-IP override,
// the weighted base, the compound-risk boost and the critical floor.
func Compute(in Input) Result {
	ip := clamp(in.IPScore)
	safety := clamp(in.SafetyScore)
	prov := ProvenanceScore(in.C2PAStatus)

	if in.C2PAStatus == model.ProvenanceValid && ip > ValidIPCap {
		ip = ValidIPCap
	}

	base := round(float64(ip)*ipWeight + float64(safety)*safetyWeight + float64(prov)*provenanceWeight)
	score := base

	boost := 0
	if ip >= CompoundIPThreshold && prov >= CompoundProvenanceThreshold {
		boost = round(float64(ip+prov) / 10)
		score = min(score+boost, 100)
	}

	floored := false
	if ip >= CriticalFloorIP && score < CriticalFloorScore {
		score = CriticalFloorScore
		floored = true
	}

	score = clamp(score)
	return Result{
		Score:           score,
		EffectiveIP:     ip,
		SafetyScore:     safety,
		ProvenanceScore: prov,
		Base:            base,
		Boost:           boost,
		CriticalFloor:   floored,
		Tier:            TierFor(score),
	}
}

func round(v float64) int {
	return int(math.Round(v))
}
