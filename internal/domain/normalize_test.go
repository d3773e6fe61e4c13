package domain

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, payload string) map[string]any {
	t.Helper()
	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return raw
}

func TestNormalizeExtractionForcesIrrelevantOnNoneDeal(t *testing.T) {
	t.Parallel()

	meta := Article{Source: SourceSpaceNews, URL: "https://spacenews.com/a", Title: "ICEYE update"}
	raw := decode(t, `{"is_relevant": true, "deal_type": "none", "acquirer": "Acme", "amount": 5}`)

	rec := NormalizeExtraction(raw, meta)
	if rec.IsRelevant {
		t.Fatalf("expected is_relevant=false when deal_type is none")
	}
	if rec.DealType != "" || rec.Acquirer != "" || rec.Amount != "" {
		t.Fatalf("expected deal fields to be cleared, got %+v", rec)
	}
	if rec.Summary == "" {
		t.Fatalf("expected diagnostic summary on irrelevant record")
	}
}

func TestNormalizeExtractionCoercesScalarFields(t *testing.T) {
	t.Parallel()

	raw := decode(t, `{
		"is_relevant": "true",
		"deal_type": "Funding Round",
		"deal_status": "Closed",
		"amount": {"value": 5000000, "currency": "USD"},
		"valuation": [1.5, "billion"],
		"stake_percent": 12.5,
		"key_assets": {"satellites": 4, "ground_stations": 2},
		"currency": ["USD"],
		"investors": "Acme Ventures, Orbit Capital",
		"entities": ["ICEYE", {"name": "Acme"}]
	}`)

	rec := NormalizeExtraction(raw, Article{URL: "u", Source: SourceSNAPI})

	if !rec.IsRelevant {
		t.Fatalf("expected relevant record")
	}
	if rec.DealType != DealInvestment {
		t.Fatalf("unexpected deal type: %s", rec.DealType)
	}
	if rec.DealStatus != StatusCompleted {
		t.Fatalf("unexpected deal status: %s", rec.DealStatus)
	}
	if rec.Amount != "5000000" {
		t.Fatalf("unexpected amount: %q", rec.Amount)
	}
	if rec.Valuation != "1.5, billion" {
		t.Fatalf("unexpected valuation: %q", rec.Valuation)
	}
	if rec.StakePercent != "12.5" {
		t.Fatalf("unexpected stake: %q", rec.StakePercent)
	}
	if rec.KeyAssets != "ground_stations=2; satellites=4" {
		t.Fatalf("unexpected key assets: %q", rec.KeyAssets)
	}
	if rec.Currency != "USD" {
		t.Fatalf("unexpected currency: %q", rec.Currency)
	}
	if len(rec.Investors) != 2 || rec.Investors[1] != "Orbit Capital" {
		t.Fatalf("unexpected investors: %v", rec.Investors)
	}
	if len(rec.Entities) != 2 || rec.Entities[1] != "name=Acme" {
		t.Fatalf("unexpected entities: %v", rec.Entities)
	}
}

func TestNormalizeExtractionMetadataWins(t *testing.T) {
	t.Parallel()

	meta := Article{Source: SourceViaSatellite, URL: "https://example.com/real", Title: "Real", PublishedDate: "2024-05-01"}
	raw := decode(t, `{"url": "https://example.com/other", "source": "made-up", "title": "Fake", "is_relevant": true, "deal_type": "contract"}`)

	rec := NormalizeExtraction(raw, meta)
	if rec.URL != meta.URL || rec.Source != string(SourceViaSatellite) || rec.Title != "Real" {
		t.Fatalf("metadata was overridden: %+v", rec)
	}
	if rec.DealStatus != StatusUnknown {
		t.Fatalf("expected unknown status default, got %s", rec.DealStatus)
	}
}

func TestNormalizeExtractionDealTypeDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    DealType
	}{
		{name: "missing on relevant", payload: `{"is_relevant": true}`, want: DealOther},
		{name: "unknown label", payload: `{"is_relevant": true, "deal_type": "tech_demo"}`, want: DealOther},
		{name: "free form partnership", payload: `{"is_relevant": true, "deal_type": "Strategic partnership"}`, want: DealPartnership},
		{name: "ipo", payload: `{"is_relevant": true, "deal_type": "IPO"}`, want: DealIPO},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := NormalizeExtraction(decode(t, tt.payload), Article{URL: "u"})
			if rec.DealType != tt.want {
				t.Fatalf("deal type = %s, want %s", rec.DealType, tt.want)
			}
		})
	}
}

func TestNormalizeExtractionRelevanceScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    float64
		absent  bool
	}{
		{name: "fraction", payload: `{"relevance_score": 0.8}`, want: 0.8},
		{name: "percent number", payload: `{"relevance_score": 85}`, want: 0.85},
		{name: "percent string", payload: `{"relevance_score": "40%"}`, want: 0.4},
		{name: "above range", payload: `{"relevance_score": 250}`, want: 1},
		{name: "slightly above one", payload: `{"relevance_score": 1.05}`, want: 1},
		{name: "one and a half", payload: `{"relevance_score": 1.5}`, want: 1},
		{name: "two percent", payload: `{"relevance_score": 2}`, want: 0.02},
		{name: "negative", payload: `{"relevance_score": -0.3}`, want: 0},
		{name: "axis product", payload: `{"company_relevancy_probability": 0.5, "event_relevancy_probability": 0.5, "sector_relevancy_probability": 1}`, want: 0.25},
		{name: "absent", payload: `{}`, absent: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := NormalizeExtraction(decode(t, tt.payload), Article{URL: "u"})
			if tt.absent {
				if rec.RelevanceScore != nil {
					t.Fatalf("expected no score, got %v", *rec.RelevanceScore)
				}
				return
			}
			if rec.RelevanceScore == nil {
				t.Fatalf("expected score %v, got nil", tt.want)
			}
			if diff := *rec.RelevanceScore - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("score = %v, want %v", *rec.RelevanceScore, tt.want)
			}
		})
	}
}

func TestReconcileKeepsRelevantRecords(t *testing.T) {
	t.Parallel()

	rec := Reconcile(DealRecord{URL: "u", IsRelevant: true, DealType: DealAcquisition, Acquirer: "Acme"})
	if !rec.IsRelevant || rec.Acquirer != "Acme" || rec.DealStatus != StatusUnknown {
		t.Fatalf("unexpected reconcile result: %+v", rec)
	}
}
