package usecase

import (
	"sort"
	"strings"

	"SpaceDealScanner/internal/config"
	"SpaceDealScanner/internal/domain"
)

// Heat classes used by the dashboard.
const (
	HeatHigh   = "high"
	HeatMedium = "medium"
	HeatLow    = "low"
)

// CompanyScore is one row of the interest heatmap.
type CompanyScore struct {
	Company string  `json:"company"`
	Score   float64 `json:"score"`
	Deals   int     `json:"deals"`
	Class   string  `json:"class"`
}

// InterestScores ranks companies by deal activity. With targets, each target
// collects the deals that mention it; without, deals are grouped by their
// target company, falling back to the acquirer. SearchTarget only counts for
// deals that name no party at all, since it carries every target of a run.
func InterestScores(deals []domain.DealRecord, targets []string, cfg config.ScoringConfig) []CompanyScore {
	index := make(map[string]*CompanyScore)
	var order []string

	add := func(company string, deal domain.DealRecord) {
		key := strings.ToLower(company)
		entry, ok := index[key]
		if !ok {
			entry = &CompanyScore{Company: company}
			index[key] = entry
			order = append(order, key)
		}
		entry.Score += dealScore(deal, cfg)
		entry.Deals++
	}

	for _, deal := range deals {
		if !deal.IsRelevant {
			continue
		}
		if len(targets) > 0 {
			for _, target := range targets {
				if mentions(deal, target) {
					add(strings.TrimSpace(target), deal)
				}
			}
			continue
		}
		company := strings.TrimSpace(deal.Target)
		if company == "" {
			company = strings.TrimSpace(deal.Acquirer)
		}
		if company != "" {
			add(company, deal)
		}
	}

	out := make([]CompanyScore, 0, len(order))
	for _, key := range order {
		entry := index[key]
		entry.Class = HeatClass(entry.Score)
		out = append(out, *entry)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if cfg.TopN > 0 && len(out) > cfg.TopN {
		out = out[:cfg.TopN]
	}
	return out
}

// HeatClass buckets a score for display.
func HeatClass(score float64) string {
	switch {
	case score >= 8:
		return HeatHigh
	case score >= 4:
		return HeatMedium
	default:
		return HeatLow
	}
}

func dealScore(deal domain.DealRecord, cfg config.ScoringConfig) float64 {
	score := deal.Score() * cfg.Weight
	if amount, ok := domain.ParseAmount(deal.Amount); ok && amount > cfg.AmountThreshold {
		score += cfg.Bonus
	}
	return score
}

func mentions(deal domain.DealRecord, company string) bool {
	needle := strings.ToLower(strings.TrimSpace(company))
	if needle == "" {
		return false
	}
	fields := append([]string{deal.Target, deal.Acquirer, deal.Title}, deal.Entities...)
	if strings.TrimSpace(deal.Target) == "" && strings.TrimSpace(deal.Acquirer) == "" && len(deal.Entities) == 0 {
		fields = append(fields, deal.SearchTarget)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
