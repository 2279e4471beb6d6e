package resolver

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"orderbot_backend/platform/textnorm"
)

// Weights for the similarity score. Query coverage dominates: an order line
// usually names a subset of the catalog title, not the other way around.
const (
	queryCoverageWeight = 0.60
	titleCoverageWeight = 0.20
	jaccardWeight       = 0.20
	substringBonus      = 0.15
)

var (
	splitRe      = regexp.MustCompile(`[\n;,]+`)
	leadingQtyRe = regexp.MustCompile(`^([0-9]+)\s*(шт|кг|уп|м)?(?:\s+|$)`)
	unitQtyRe    = regexp.MustCompile(`(?:^|\s)(?:по\s+)?([0-9]+)\s*(шт|кг|уп|м)(?:\s|$)`)
)

// LocalParser is the terminal extraction source: deterministic lexical
// parsing of the order text with no external dependency. It never fails.
type LocalParser struct{}

// NewLocalParser creates the local fallback source.
func NewLocalParser() *LocalParser {
	return &LocalParser{}
}

func (p *LocalParser) Name() string { return "local" }

// Configured always reports true; the local parser is always present and
// always last in the priority list.
func (p *LocalParser) Configured() bool { return true }

func (p *LocalParser) Extract(_ context.Context, orderText string) ([]Candidate, error) {
	return ParseLines(orderText), nil
}

// ParseLines splits order text into line-level fragments (newline, comma,
// semicolon), pulls a quantity token out of each fragment (default 1) and
// keeps the remainder as the title query.
func ParseLines(orderText string) []Candidate {
	var candidates []Candidate
	for _, part := range splitRe.Split(orderText, -1) {
		fragment := textnorm.Normalize(part)
		if fragment == "" {
			continue
		}

		qty, title := extractQty(fragment)
		if title == "" {
			continue
		}
		candidates = append(candidates, Candidate{Title: title, Qty: qty})
	}
	return candidates
}

// extractQty finds a leading integer ("2 трубы") or an integer-with-unit
// anywhere in the fragment ("болт по 10 шт") and strips it from the title.
func extractQty(fragment string) (int, string) {
	if m := leadingQtyRe.FindStringSubmatchIndex(fragment); m != nil {
		if qty := mustAtoi(fragment[m[2]:m[3]]); qty > 0 {
			// An all-digits fragment leaves an empty title and is dropped
			// by the caller.
			return qty, strings.TrimSpace(fragment[m[1]:])
		}
	}

	if m := unitQtyRe.FindStringSubmatchIndex(fragment); m != nil {
		qty := mustAtoi(fragment[m[2]:m[3]])
		rest := strings.TrimSpace(fragment[:m[0]] + " " + fragment[m[1]:])
		rest = textnorm.Normalize(rest)
		if rest != "" && qty > 0 {
			return qty, rest
		}
	}

	return 1, fragment
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Score computes the similarity between an order-line query and a catalog
// title in [0, 1]. Deterministic for fixed inputs.
func Score(query, title string) float64 {
	queryTokens := textnorm.Tokens(query)
	titleTokens := textnorm.Tokens(title)
	if len(queryTokens) == 0 || len(titleTokens) == 0 {
		return 0
	}

	queryMatched := coverage(queryTokens, titleTokens)
	titleMatched := coverage(titleTokens, queryTokens)

	queryCoverage := float64(queryMatched) / float64(len(queryTokens))
	titleCoverage := float64(titleMatched) / float64(len(titleTokens))

	union := len(queryTokens) + len(titleTokens) - queryMatched
	jaccard := float64(queryMatched) / float64(union)

	score := queryCoverage*queryCoverageWeight + titleCoverage*titleCoverageWeight + jaccard*jaccardWeight

	normQuery := textnorm.Normalize(query)
	normTitle := textnorm.Normalize(title)
	if len([]rune(normQuery)) > 3 && (strings.Contains(normTitle, normQuery) || strings.Contains(normQuery, normTitle)) {
		score += substringBonus
	}

	if score > 1 {
		score = 1
	}
	return score
}

func coverage(from, against []string) int {
	matched := 0
	for _, token := range from {
		for _, other := range against {
			if tokenMatch(token, other) {
				matched++
				break
			}
		}
	}
	return matched
}

// tokenMatch accepts exact matches, prefix containment, and pairs that agree
// on a stem of at least 4 runes with at most 2 trailing runes of inflection
// on either side. The last rule folds Russian case endings
// ("трубы" / "труба") without a real stemmer.
func tokenMatch(a, b string) bool {
	if a == b {
		return true
	}
	if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
		return len([]rune(a)) >= 3 && len([]rune(b)) >= 3
	}

	ra, rb := []rune(a), []rune(b)
	stem := commonPrefixLen(ra, rb)
	return stem >= 4 && len(ra)-stem <= 2 && len(rb)-stem <= 2
}

func commonPrefixLen(a, b []rune) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// bestMatch scores a candidate title against the snapshot and returns the
// highest-scoring item. Ties keep the earlier item; the snapshot comes from
// the repository in a stable order, so repeated calls agree.
func bestMatch(items []CatalogItem, query string) (CatalogItem, float64) {
	var best CatalogItem
	bestScore := -1.0
	for _, item := range items {
		score := Score(query, item.Title)
		if score > bestScore {
			bestScore = score
			best = item
		}
	}
	if bestScore < 0 {
		return CatalogItem{}, 0
	}
	return best, bestScore
}

// Compile-time check that LocalParser implements Source.
var _ Source = (*LocalParser)(nil)
