// Package match finds salary-bearing text fragments. Detection is heuristic:
// ordered regular expressions for label+amount phrases, then a keyword pass
// that sweeps the keyword's visual row for amounts, which catches tabular
// layouts where the label and the value sit in separate cells.
package match

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hyeonwoo/redactkit/extractor"
	"github.com/hyeonwoo/redactkit/observability"
)

// Reason records which heuristic claimed a region. Values are stable wire
// strings.
type Reason string

const (
	ReasonPattern Reason = "pattern_match"
	ReasonKeyword Reason = "keyword_match"
	ReasonNearby  Reason = "nearby_number"
)

// Region is a claimed fragment.
type Region struct {
	extractor.Fragment
	Reason Reason
}

// rowTolerance is the maximum vertical center distance, in render units at
// scale 1.0, for two fragments to count as the same visual row.
const rowTolerance = 20.0

// Ordered: label+amount phrases beat bare amounts beat English phrases.
var patterns = []*regexp.Regexp{
	// Korean salary keyword followed by an amount with a unit.
	regexp.MustCompile(`(연봉|년봉|급여|월급|월봉)\s*[:：]?\s*[0-9][0-9,.]*\s*(천만\s*원?|만\s*원|만원|만|원)`),
	// Bare amount with a Korean unit.
	regexp.MustCompile(`[0-9][0-9,.]*\s*(천만\s*원?|만\s*원|만원)`),
	// English salary keyword with an amount.
	regexp.MustCompile(`(salary|pay|compensation)\s*[:：]?\s*[$₩]?\s*[0-9][0-9,.]*`),
}

var keywords = []string{"연봉", "년봉", "급여", "월급", "월봉", "salary", "pay"}

var (
	digitRun   = regexp.MustCompile(`[0-9][0-9,.]*`)
	unitToken  = regexp.MustCompile(`만원|천만|만|원`)
	bareAmount = regexp.MustCompile(`^[$₩]?\s*[0-9][0-9,.]*\s*(천만\s*원?|만\s*원|만원|만|원)?$`)
)

type Config struct {
	Logger observability.Logger
	// Rules holds JavaScript custom detection rules, run after the built-in
	// heuristics. A failing rule is logged and skipped.
	Rules []string
}

type Matcher struct {
	cfg Config
}

func NewMatcher(cfg Config) *Matcher {
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &Matcher{cfg: cfg}
}

// FindMatches scans fragments left to right, claiming each at most once.
// An empty result is a normal outcome, not an error.
func (m *Matcher) FindMatches(ctx context.Context, frags []extractor.Fragment) []Region {
	claimed := make([]bool, len(frags))
	var out []Region

	for i, frag := range frags {
		if claimed[i] {
			continue
		}
		text := normalize(frag.Text)
		if text == "" {
			continue
		}

		if matchesPattern(text) {
			claimed[i] = true
			out = append(out, Region{Fragment: frag, Reason: ReasonPattern})
			continue
		}

		if !containsKeyword(text) {
			continue
		}
		claimed[i] = true
		out = append(out, Region{Fragment: frag, Reason: ReasonKeyword})

		// Sweep the keyword's row for amounts, regardless of horizontal
		// distance.
		for j, other := range frags {
			if claimed[j] || other.Page != frag.Page || !sameRow(frag, other) {
				continue
			}
			if looksLikeAmount(normalize(other.Text)) {
				claimed[j] = true
				out = append(out, Region{Fragment: other, Reason: ReasonNearby})
			}
		}
	}

	out = append(out, m.runRules(ctx, frags, claimed)...)
	return out
}

func matchesPattern(text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func containsKeyword(text string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// looksLikeAmount accepts a digit run paired with a currency unit anywhere in
// the text, or text that is nothing but an amount.
func looksLikeAmount(text string) bool {
	if text == "" {
		return false
	}
	if digitRun.MatchString(text) && unitToken.MatchString(text) {
		return true
	}
	return bareAmount.MatchString(strings.TrimSpace(text))
}

func sameRow(a, b extractor.Fragment) bool {
	ca := a.Y + a.H/2
	cb := b.Y + b.H/2
	d := ca - cb
	if d < 0 {
		d = -d
	}
	return d <= rowTolerance
}

// normalize composes jamo to NFC, lowercases for the English keywords, and
// collapses runs of whitespace. Fragment text itself is never mutated.
func normalize(text string) string {
	text = norm.NFC.String(text)
	text = strings.ToLower(text)
	return strings.Join(strings.Fields(text), " ")
}
