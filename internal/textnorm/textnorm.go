// Package textnorm folds and tidies the free text that flows into the index
// and the sort keys.
package textnorm

import (
	"regexp"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/char/asciifolding"
)

var folder analysis.CharFilter = asciifolding.New()

// Fold transliterates s to ASCII and lowercases it. "Élisée Reclus" becomes
// "elisee reclus".
func Fold(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(string(folder.Filter([]byte(s))))
}

// FoldQuery prepares a user query for the name fields: trimmed, folded,
// leading wildcards removed.
func FoldQuery(q string) string {
	return StripLeadingWildcard(Fold(strings.TrimSpace(q)))
}

// StripLeadingWildcard removes leading '*' and '?' which the index cannot
// serve efficiently.
func StripLeadingWildcard(q string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(q), "*?"))
}

var (
	commaRun = regexp.MustCompile(`\s*,+\s*`)
	spaceRun = regexp.MustCompile(`\s{2,}`)
)

// Firstnames tidies a comma separated list of first names:
// "  Auguste  , Titus, " becomes "Auguste, Titus". It is idempotent and maps
// the empty string to itself.
func Firstnames(s string) string {
	if s == "" {
		return s
	}
	s = strings.TrimSpace(s)
	s = commaRun.ReplaceAllString(s, ", ")
	for {
		s = strings.TrimSpace(s)
		if !strings.HasSuffix(s, ",") {
			break
		}
		s = strings.TrimSuffix(s, ",")
	}
	return spaceRun.ReplaceAllString(s, " ")
}
