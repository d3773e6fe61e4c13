package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const irrelevantSummary = "no deal involving the target companies"

var dealTypeSynonyms = map[string]DealType{
	"acquisition":    DealAcquisition,
	"buyout":         DealAcquisition,
	"takeover":       DealAcquisition,
	"merger":         DealMerger,
	"m&a":            DealMerger,
	"investment":     DealInvestment,
	"funding":        DealInvestment,
	"funding round":  DealInvestment,
	"fundraising":    DealInvestment,
	"partnership":    DealPartnership,
	"collaboration":  DealPartnership,
	"joint venture":  DealPartnership,
	"contract":       DealContract,
	"contract award": DealContract,
	"award":          DealContract,
	"ipo":            DealIPO,
	"spac":           DealIPO,
	"listing":        DealIPO,
	"other":          DealOther,
	"none":           DealNone,
	"n/a":            DealNone,
	"null":           DealNone,
	"no deal":        DealNone,
}

// dealTypeKeywords resolves free-form labels such as "strategic partnership".
// Order matters: the first keyword contained in the label wins.
var dealTypeKeywords = []struct {
	keyword  string
	dealType DealType
}{
	{"acqui", DealAcquisition},
	{"merg", DealMerger},
	{"invest", DealInvestment},
	{"funding", DealInvestment},
	{"series ", DealInvestment},
	{"seed", DealInvestment},
	{"partner", DealPartnership},
	{"joint venture", DealPartnership},
	{"contract", DealContract},
	{"award", DealContract},
	{"ipo", DealIPO},
	{"public offering", DealIPO},
}

var dealStatusSynonyms = map[string]DealStatus{
	"rumor":     StatusRumor,
	"rumour":    StatusRumor,
	"rumored":   StatusRumor,
	"rumoured":  StatusRumor,
	"reported":  StatusRumor,
	"announced": StatusAnnounced,
	"pending":   StatusAnnounced,
	"agreed":    StatusAnnounced,
	"signed":    StatusAnnounced,
	"completed": StatusCompleted,
	"complete":  StatusCompleted,
	"closed":    StatusCompleted,
	"finalized": StatusCompleted,
	"finalised": StatusCompleted,
	"unknown":   StatusUnknown,
}

// NormalizeExtraction turns a loosely typed model response into a DealRecord.
// It never fails: unexpected shapes are coerced and unknown values fall back
// to their catch-all enum members. Metadata from the fetched article wins over
// anything the model echoed back.
func NormalizeExtraction(raw map[string]any, meta Article) DealRecord {
	rec := DealRecord{
		URL:            meta.URL,
		Source:         string(meta.Source),
		Title:          firstNonEmpty(meta.Title, stringify(raw["title"])),
		PublishedDate:  firstNonEmpty(meta.PublishedDate, stringify(raw["published_date"])),
		Section:        firstNonEmpty(meta.Section, stringify(raw["section"])),
		IsRelevant:     toBool(raw["is_relevant"]),
		RelevanceScore: relevanceScore(raw),
		Acquirer:       stringify(raw["acquirer"]),
		Target:         stringify(raw["target"]),
		Investors:      toStringList(raw["investors"]),
		Amount:         stringify(raw["amount"]),
		Currency:       stringify(raw["currency"]),
		Valuation:      stringify(raw["valuation"]),
		StakePercent:   stringify(raw["stake_percent"]),
		KeyAssets:      stringify(raw["key_assets"]),
		Geography:      stringify(raw["geography"]),
		Summary:        stringify(raw["summary"]),
		WhyItMatters:   stringify(raw["why_it_matters"]),
		Entities:       toStringList(raw["entities"]),
	}

	if label := enumLabel(raw["deal_type"]); label != "" {
		rec.DealType = parseDealType(label)
	} else if rec.IsRelevant {
		rec.DealType = DealOther
	} else {
		rec.DealType = DealNone
	}
	rec.DealStatus = parseDealStatus(enumLabel(raw["deal_status"]))

	return Reconcile(rec)
}

// Reconcile applies the consistency rules every stored record must satisfy.
// A relevant record cannot have deal type none, and irrelevant records keep
// only their metadata, score and summary.
func Reconcile(rec DealRecord) DealRecord {
	if rec.DealType == DealNone && rec.IsRelevant {
		rec.IsRelevant = false
	}
	if !rec.IsRelevant {
		rec.clearDealFields()
		if rec.Summary == "" {
			rec.Summary = irrelevantSummary
		}
		return rec
	}
	if rec.DealType == "" {
		rec.DealType = DealOther
	}
	if rec.DealStatus == "" {
		rec.DealStatus = StatusUnknown
	}
	return rec
}

func parseDealType(value string) DealType {
	key := strings.ToLower(strings.TrimSpace(value))
	if dt, ok := dealTypeSynonyms[key]; ok {
		return dt
	}
	for _, kw := range dealTypeKeywords {
		if strings.Contains(key, kw.keyword) {
			return kw.dealType
		}
	}
	return DealOther
}

func parseDealStatus(value string) DealStatus {
	key := strings.ToLower(strings.TrimSpace(value))
	if st, ok := dealStatusSynonyms[key]; ok {
		return st
	}
	return StatusUnknown
}

// relevanceScore reads relevance_score, accepting percentages and strings.
// Without one it falls back to the product of the per-axis probabilities
// when the model reported them.
func relevanceScore(raw map[string]any) *float64 {
	if v, ok := toFloat(raw["relevance_score"]); ok {
		return clampScore(v)
	}

	product, found := 1.0, false
	for _, key := range []string{"company_relevancy_probability", "event_relevancy_probability", "sector_relevancy_probability"} {
		if v, ok := toFloat(raw[key]); ok {
			product *= *clampScore(v)
			found = true
		}
	}
	if !found {
		return nil
	}
	return &product
}

// clampScore reads values from 2 to 100 as percentages; explicit "%" strings
// are already scaled by toFloat. Anything else outside [0,1] is clamped.
func clampScore(v float64) *float64 {
	if v >= 2 && v <= 100 {
		v /= 100
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return &v
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "relevant":
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%"))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		if strings.HasSuffix(strings.TrimSpace(t), "%") {
			f /= 100
		}
		return f, true
	}
	return 0, false
}

func toStringList(v any) []string {
	var items []string
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range t {
			if s := stringify(item); s != "" {
				items = append(items, s)
			}
		}
	case string:
		for _, part := range strings.Split(t, ",") {
			if s := stringify(part); s != "" {
				items = append(items, s)
			}
		}
	default:
		if s := stringify(t); s != "" {
			items = append(items, s)
		}
	}
	return items
}

// stringify collapses any JSON value into a single display string.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(t)
		switch strings.ToLower(s) {
		case "null", "none", "n/a", "nil", "undefined":
			return ""
		}
		return s
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		for _, key := range []string{"value", "amount"} {
			if s := stringify(t[key]); s != "" {
				return s
			}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := stringify(t[k]); s != "" {
				parts = append(parts, k+"="+s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// enumLabel keeps placeholder words like "none" that stringify drops.
func enumLabel(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return stringify(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
