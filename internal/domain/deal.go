package domain

// DealType classifies the transaction described by an article.
type DealType string

const (
	DealAcquisition DealType = "acquisition"
	DealMerger      DealType = "merger"
	DealInvestment  DealType = "investment"
	DealPartnership DealType = "partnership"
	DealContract    DealType = "contract"
	DealIPO         DealType = "ipo"
	DealOther       DealType = "other"
	DealNone        DealType = "none"
)

// DealStatus tracks how far along a reported deal is.
type DealStatus string

const (
	StatusRumor     DealStatus = "rumor"
	StatusAnnounced DealStatus = "announced"
	StatusCompleted DealStatus = "completed"
	StatusUnknown   DealStatus = "unknown"
)

// DealRecord is the normalized extraction result for one article URL.
type DealRecord struct {
	URL            string   `json:"url"`
	Source         string   `json:"source"`
	Title          string   `json:"title"`
	PublishedDate  string   `json:"published_date"`
	Section        string   `json:"section"`
	SearchTarget   string   `json:"search_target,omitempty"`
	IsRelevant     bool     `json:"is_relevant"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`

	DealType     DealType   `json:"deal_type,omitempty"`
	DealStatus   DealStatus `json:"deal_status,omitempty"`
	Acquirer     string     `json:"acquirer,omitempty"`
	Target       string     `json:"target,omitempty"`
	Investors    []string   `json:"investors,omitempty"`
	Amount       string     `json:"amount,omitempty"`
	Currency     string     `json:"currency,omitempty"`
	Valuation    string     `json:"valuation,omitempty"`
	StakePercent string     `json:"stake_percent,omitempty"`
	KeyAssets    string     `json:"key_assets,omitempty"`
	Geography    string     `json:"geography,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	WhyItMatters string     `json:"why_it_matters,omitempty"`
	Entities     []string   `json:"entities,omitempty"`
}

// Score returns the relevance score or zero when the model omitted it.
func (d DealRecord) Score() float64 {
	if d.RelevanceScore == nil {
		return 0
	}
	return *d.RelevanceScore
}

// Irrelevant builds a negative record carrying a diagnostic summary.
func Irrelevant(meta Article, reason string) DealRecord {
	return DealRecord{
		URL:           meta.URL,
		Source:        string(meta.Source),
		Title:         meta.Title,
		PublishedDate: meta.PublishedDate,
		Section:       meta.Section,
		IsRelevant:    false,
		Summary:       reason,
	}
}

// clearDealFields enforces that negative records carry metadata and summary only.
func (d *DealRecord) clearDealFields() {
	d.DealType = ""
	d.DealStatus = ""
	d.Acquirer = ""
	d.Target = ""
	d.Investors = nil
	d.Amount = ""
	d.Currency = ""
	d.Valuation = ""
	d.StakePercent = ""
	d.KeyAssets = ""
	d.Geography = ""
	d.WhyItMatters = ""
	d.Entities = nil
}

// DealFilter narrows repository queries. The zero value returns relevant
// deals only, newest first, without a limit.
type DealFilter struct {
	SearchTarget      string
	Source            string
	IncludeIrrelevant bool
	Limit             int
}
