package confidence

import (
	"fmt"
	"sort"
)

// Insight thresholds: a component this strong is called out as a strength,
// this weak as a weakness.
const (
	strengthThreshold = 75.0
	weaknessThreshold = 35.0
)

// Severity ranks a risk factor.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var severityRank = map[Severity]int{
	SeverityHigh:   0,
	SeverityMedium: 1,
	SeverityLow:    2,
}

// Risk factor types.
const (
	RiskInsufficientData  = "insufficient_data"
	RiskLowUserQuality    = "low_user_quality"
	RiskPoorCrossVal      = "poor_cross_validation"
	RiskNewsDivergence    = "news_divergence"
	RiskEconomicHeadwinds = "economic_headwinds"
	RiskPoorTrackRecord   = "poor_track_record"
)

// RiskFactor is one typed, severity-tagged concern about the signal.
type RiskFactor struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Recommendation types.
const (
	RecAction         = "action"
	RecCaution        = "caution"
	RecWarning        = "warning"
	RecRiskManagement = "risk_management"
	RecDataCollection = "data_collection"
	RecValidation     = "validation"
)

// Recommendation is one prioritized, actionable step for the signal consumer.
type Recommendation struct {
	Type     string `json:"type"`
	Priority int    `json:"priority"` // 1 is most urgent
	Message  string `json:"message"`
}

// buildInsights calls out the top strengths and weaknesses per component.
func buildInsights(components []Component) Insights {
	var ins Insights
	for _, c := range components {
		if c.Degraded {
			continue
		}
		if c.Score >= strengthThreshold {
			ins.Strengths = append(ins.Strengths,
				fmt.Sprintf("%s is strong (%.0f): %s", c.Name, c.Score, c.Impact))
		} else if c.Score <= weaknessThreshold {
			ins.Weaknesses = append(ins.Weaknesses,
				fmt.Sprintf("%s is weak (%.0f): %s", c.Name, c.Score, c.Impact))
		}
	}
	return ins
}

// riskTrigger maps a component to its risk type and the score below which it
// fires.
type riskTrigger struct {
	component string
	riskType  string
	threshold float64
	message   string
}

var riskTriggers = []riskTrigger{
	{ComponentDataPoints, RiskInsufficientData, 40, "mention volume and diversity are below reliable levels"},
	{ComponentReputation, RiskLowUserQuality, 40, "contributing authors have weak reputations"},
	{ComponentCrossVal, RiskPoorCrossVal, 35, "communities disagree or the signal is single-venue"},
	{ComponentNews, RiskNewsDivergence, 35, "external news sentiment diverges from community sentiment"},
	{ComponentEcon, RiskEconomicHeadwinds, 40, "macro-economic context works against the signal"},
	{ComponentHistorical, RiskPoorTrackRecord, 40, "past sentiment for this ticker has predicted poorly"},
}

// buildRiskFactors evaluates every trigger and returns the hits sorted by
// severity, worst first.
func buildRiskFactors(res *Result) []RiskFactor {
	var risks []RiskFactor
	for _, trig := range riskTriggers {
		comp, ok := res.Component(trig.component)
		if !ok || comp.Degraded {
			continue
		}
		if comp.Score >= trig.threshold {
			continue
		}
		severity := SeverityMedium
		if comp.Score < trig.threshold-15 {
			severity = SeverityHigh
		} else if comp.Score >= trig.threshold-5 {
			severity = SeverityLow
		}
		risks = append(risks, RiskFactor{
			Type:     trig.riskType,
			Severity: severity,
			Message:  fmt.Sprintf("%s (score %.0f)", trig.message, comp.Score),
		})
	}

	sort.SliceStable(risks, func(i, j int) bool {
		return severityRank[risks[i].Severity] < severityRank[risks[j].Severity]
	})
	return risks
}

// buildRecommendations derives prioritized next steps from the confidence
// level and the active risk factors.
func buildRecommendations(res *Result) []Recommendation {
	var recs []Recommendation

	switch res.Level {
	case LevelVeryHigh, LevelHigh:
		recs = append(recs, Recommendation{
			Type:     RecAction,
			Message:  fmt.Sprintf("signal confidence is %s (%.0f); suitable for position consideration", res.Level, res.Score),
		})
	case LevelMedium:
		recs = append(recs, Recommendation{
			Type:     RecCaution,
			Message:  fmt.Sprintf("signal confidence is medium (%.0f); corroborate before acting", res.Score),
		})
	default:
		recs = append(recs, Recommendation{
			Type:     RecWarning,
			Message:  fmt.Sprintf("signal confidence is %s (%.0f); not actionable on its own", res.Level, res.Score),
		})
	}

	for _, risk := range res.RiskFactors {
		if risk.Severity != SeverityHigh {
			continue
		}
		recs = append(recs, Recommendation{
			Type:    RecRiskManagement,
			Message: "high-severity risk active: " + risk.Message,
		})
	}

	if hasRisk(res.RiskFactors, RiskInsufficientData) {
		recs = append(recs, Recommendation{
			Type:    RecDataCollection,
			Message: "widen the collection window or add communities to gather more evidence",
		})
	}

	if !res.IsValidated || hasRisk(res.RiskFactors, RiskPoorCrossVal) {
		recs = append(recs, Recommendation{
			Type:    RecValidation,
			Message: "signal lacks multi-community corroboration; wait for cross-validation",
		})
	}

	for i := range recs {
		recs[i].Priority = i + 1
	}
	return recs
}

func hasRisk(risks []RiskFactor, riskType string) bool {
	for _, r := range risks {
		if r.Type == riskType {
			return true
		}
	}
	return false
}
