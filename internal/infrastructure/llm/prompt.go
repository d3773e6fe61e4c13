package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"SpaceDealScanner/internal/domain"
)

const defaultSystemPrompt = `You are a financial controller at a space industry investment fund.
You read trade press articles and extract corporate deals: acquisitions, mergers, investment rounds, partnerships, government or commercial contracts and IPOs.
Be precise and conservative. Only report facts stated in the article.`

const technicalOfficerPrompt = `You are the chief technology officer of an aerospace company.
You read trade press articles and extract deals that reveal hard technical data: manufacturing or launch contracts, technology partnerships and funded development programs.
Record orbit, mission type, technology readiness level and hardware specifications in "key_assets". Ignore financial gossip that carries no technical detail.`

// Preset ids accepted in place of a literal system prompt.
const (
	PresetFinancialController = "financial-controller"
	PresetTechnicalOfficer    = "technical-officer"
)

var promptPresets = map[string]string{
	PresetFinancialController: defaultSystemPrompt,
	PresetTechnicalOfficer:    technicalOfficerPrompt,
	"technical-controller":    technicalOfficerPrompt,
}

// ResolveSystemPrompt maps a preset id to its prompt text. Blank selects the
// financial controller; any other value is used as written.
func ResolveSystemPrompt(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultSystemPrompt
	}
	if preset, ok := promptPresets[strings.ToLower(value)]; ok {
		return preset
	}
	return value
}

const schemaInstructions = `Respond with a single JSON object and nothing else. Use exactly these keys:
"is_relevant" (boolean),
"relevance_score" (number from 0.0 to 1.0),
"deal_type" (one of "acquisition", "merger", "investment", "partnership", "contract", "ipo", "other", "none"),
"deal_status" (one of "rumor", "announced", "completed", "unknown"),
"acquirer" (string or null),
"target" (string or null),
"investors" (array of strings),
"amount" (string or null),
"currency" (ISO 4217 code or null),
"valuation" (string or null),
"stake_percent" (string or null),
"key_assets" (string or null),
"geography" (string or null),
"summary" (one or two sentences),
"why_it_matters" (string or null),
"entities" (array of company and agency names).`

const noFabricationRule = `Never invent figures. "amount", "valuation" and "stake_percent" must be copied from the article text; use null when the article does not state them.`

// BuildSystemPrompt combines the base instructions with the output schema and
// the run's target companies.
func BuildSystemPrompt(base string, targets []string) string {
	base = ResolveSystemPrompt(base)

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n")
	b.WriteString(schemaInstructions)
	b.WriteString("\n\n")
	if len(targets) > 0 {
		fmt.Fprintf(&b, "Target companies: %s.\n", strings.Join(targets, ", "))
		b.WriteString(`Set "is_relevant" to true only when the article describes a deal in which at least one target company takes part. `)
		b.WriteString(`If no target company is a party to a deal, set "is_relevant" to false, "deal_type" to "none" and say so in "summary".`)
		b.WriteString("\n")
	}
	b.WriteString(noFabricationRule)
	return b.String()
}

// BuildUserMessage renders the article header and its text, truncated to
// maxChars runes.
func BuildUserMessage(article domain.Article, maxChars int) string {
	return fmt.Sprintf("URL: %s\nTITLE: %s\nDATE: %s\nSECTION: %s\n\n%s",
		article.URL, article.Title, article.PublishedDate, article.Section,
		truncateRunes(article.Text, maxChars))
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}

var errNoJSONObject = errors.New("no JSON object in model output")

// ParseJSONObject decodes the model reply. Replies that wrap the object in
// prose or code fences are scanned for the first balanced object that decodes.
func ParseJSONObject(content string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errNoJSONObject
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(content), &out); err == nil && out != nil {
		return out, nil
	}

	for start := strings.IndexByte(content, '{'); start >= 0; {
		end := matchBrace(content, start)
		if end < 0 {
			break
		}
		candidate := content[start : end+1]
		out = nil
		if err := json.Unmarshal([]byte(candidate), &out); err == nil && out != nil {
			return out, nil
		}
		next := strings.IndexByte(content[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, errNoJSONObject
}

// matchBrace returns the index of the brace closing the one at start,
// ignoring braces inside JSON strings.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
