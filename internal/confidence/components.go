package confidence

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/providers"
)

// Component names.
const (
	ComponentDataPoints   = "data_points"
	ComponentReputation   = "user_reputation"
	ComponentCrossVal     = "cross_validation"
	ComponentHistorical   = "historical_accuracy"
	ComponentNews         = "news_correlation"
	ComponentEcon         = "economic_context"
)

// Component weights. Must cover the six channels; renormalized at composite
// time over whichever components were actually computed.
var componentWeights = map[string]float64{
	ComponentDataPoints: 0.20,
	ComponentReputation: 0.25,
	ComponentCrossVal:   0.20,
	ComponentHistorical: 0.15,
	ComponentNews:       0.10,
	ComponentEcon:       0.10,
}

// neutralScore is the degraded default when a channel's provider fails.
const neutralScore = 50.0

// Component is one scored evidence channel.
type Component struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`  // 0-100
	Weight   float64 `json:"weight"` // nominal weight before renormalization
	Degraded bool    `json:"degraded"`
	Detail   string  `json:"detail,omitempty"`
	Impact   string  `json:"impact"` // human-readable confidence impact note
}

func degradedComponent(name, reason string) Component {
	return Component{
		Name:     name,
		Score:    neutralScore,
		Weight:   componentWeights[name],
		Degraded: true,
		Detail:   reason,
		Impact:   "channel unavailable, held at neutral",
	}
}

// scoreDataPoints measures evidence volume: mention counts, average quality
// and community diversity.
func scoreDataPoints(agg *models.TickerAggregate) Component {
	mentions := agg.Mentions.Total

	var volume float64
	switch {
	case mentions >= 50:
		volume = 40
	case mentions >= 20:
		volume = 30
	case mentions >= 10:
		volume = 20
	case mentions >= 5:
		volume = 10
	default:
		volume = 0
	}

	quality := agg.AvgQuality() * 0.4
	if quality > 30 {
		quality = 30
	}

	diversity := float64(agg.CommunityCount()) * 8
	if diversity > 30 {
		diversity = 30
	}

	score := models.ClampScore(volume + quality + diversity)
	return Component{
		Name:   ComponentDataPoints,
		Score:  score,
		Weight: componentWeights[ComponentDataPoints],
		Detail: fmt.Sprintf("%d mentions, avg quality %.1f, %d communities",
			mentions, agg.AvgQuality(), agg.CommunityCount()),
		Impact: impactNote(score, "evidence volume"),
	}
}

// scoreReputation measures who is doing the talking: average contributor
// reputation plus bonuses for high-quality and expert-tier shares.
func scoreReputation(authors []*models.AuthorProfile) Component {
	if len(authors) == 0 {
		return degradedComponent(ComponentReputation, "no contributor profiles available")
	}

	var sum float64
	var highQuality, expert int
	for _, a := range authors {
		sum += a.QualityScore
		if a.IsHighQuality() {
			highQuality++
		}
		if a.IsExpertTier() {
			expert++
		}
	}

	n := float64(len(authors))
	avg := sum / n

	base := avg * 0.6
	if base > 50 {
		base = 50
	}
	highQualityBonus := float64(highQuality) / n * 30
	expertBonus := float64(expert) / n * 20

	score := models.ClampScore(base + highQualityBonus + expertBonus)
	return Component{
		Name:   ComponentReputation,
		Score:  score,
		Weight: componentWeights[ComponentReputation],
		Detail: fmt.Sprintf("%d contributors, avg reputation %.1f, %d high-quality, %d expert-tier",
			len(authors), avg, highQuality, expert),
		Impact: impactNote(score, "contributor reputation"),
	}
}

// scoreCrossValidation measures cross-community agreement: distribution
// across venues, sentiment consistency (low variance) and consensus (share of
// communities near the mean).
func scoreCrossValidation(agg *models.TickerAggregate) Component {
	sentiments := make([]float64, 0, len(agg.Communities))
	for _, cs := range agg.Communities {
		sentiments = append(sentiments, cs.AvgSentiment)
	}
	communities := len(sentiments)

	var distribution float64
	switch {
	case communities >= 5:
		distribution = 40
	case communities >= 3:
		distribution = 30
	case communities >= 2:
		distribution = 20
	}

	var consistency, consensus float64
	if communities >= 2 {
		variance := stat.Variance(sentiments, nil)
		consistency = models.ClampScore(100 - variance)

		mean := stat.Mean(sentiments, nil)
		near := 0
		for _, s := range sentiments {
			if diff := s - mean; diff >= -20 && diff <= 20 {
				near++
			}
		}
		consensus = float64(near) / float64(communities) * 35
	}

	score := models.ClampScore(distribution + consistency*0.25 + consensus)
	return Component{
		Name:   ComponentCrossVal,
		Score:  score,
		Weight: componentWeights[ComponentCrossVal],
		Detail: fmt.Sprintf("%d communities, distribution %.0f, consistency %.1f, consensus %.1f",
			communities, distribution, consistency, consensus),
		Impact: impactNote(score, "cross-community agreement"),
	}
}

// scoreNews maps the news provider's alignment class to a base score,
// adjusted by correlation strength and capped article-count bonus.
func scoreNews(corr *providers.NewsCorrelation) Component {
	var base float64
	switch corr.Class {
	case providers.NewsPositiveAligned:
		base = 80
	case providers.NewsNegativeAligned:
		base = 75
	case providers.NewsDivergent:
		base = 25
	default: // mixed
		base = 45
	}

	strengthAdj := (corr.Strength - 0.5) * 20
	articleBonus := float64(corr.ArticleCount) * 1.5
	if articleBonus > 15 {
		articleBonus = 15
	}

	score := models.ClampScore(base + strengthAdj + articleBonus)
	return Component{
		Name:   ComponentNews,
		Score:  score,
		Weight: componentWeights[ComponentNews],
		Detail: fmt.Sprintf("%s, strength %.2f, %d articles", corr.Class, corr.Strength, corr.ArticleCount),
		Impact: impactNote(score, "news alignment"),
	}
}

// scoreEcon starts neutral and nudges by the macro assessment plus the
// opportunity/risk balance.
func scoreEcon(outlook *providers.EconOutlook) Component {
	score := neutralScore
	switch outlook.Assessment {
	case providers.EconFavorable:
		score += 10
	case providers.EconUnfavorable:
		score -= 10
	}
	score += (float64(len(outlook.Opportunities)) - 0.5*float64(len(outlook.RiskFactors))) * 5
	score = models.ClampScore(score)

	return Component{
		Name:   ComponentEcon,
		Score:  score,
		Weight: componentWeights[ComponentEcon],
		Detail: fmt.Sprintf("%s, %d opportunities, %d risk factors",
			outlook.Assessment, len(outlook.Opportunities), len(outlook.RiskFactors)),
		Impact: impactNote(score, "macro context"),
	}
}

func impactNote(score float64, channel string) string {
	switch {
	case score >= 75:
		return channel + " strongly supports confidence"
	case score >= 50:
		return channel + " moderately supports confidence"
	case score >= 35:
		return channel + " weakly supports confidence"
	default:
		return channel + " undermines confidence"
	}
}
