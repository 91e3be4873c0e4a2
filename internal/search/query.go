package search

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/renderinc/dil/internal/textnorm"
)

const maxPrefixLen = 10

// buildQuery combines the name and content queries with AND. Each query is
// itself the AND of its whitespace separated terms. It returns nil when no
// term survives tokenisation.
func buildQuery(name, content string) query.Query {
	var parts []query.Query
	if q := andGroup(tokenize(name), nameTerm); q != nil {
		parts = append(parts, q)
	}
	if q := andGroup(tokenize(content), contentTerm); q != nil {
		parts = append(parts, q)
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	return bleve.NewConjunctionQuery(parts...)
}

func andGroup(tokens []string, term func(string) query.Query) query.Query {
	var qs []query.Query
	for _, tok := range tokens {
		if q := term(tok); q != nil {
			qs = append(qs, q)
		}
	}
	switch len(qs) {
	case 0:
		return nil
	case 1:
		return qs[0]
	}
	return bleve.NewConjunctionQuery(qs...)
}

// nameTerm matches one token against the combined name field. Plain words
// are analysed without n-grams so "mar" must appear as a substring of a name
// rather than share any bigram with it.
func nameTerm(tok string) query.Query {
	switch {
	case isPhrase(tok):
		return nameMatch(strings.Trim(tok, `"`))
	case hasWildcard(tok):
		w := bleve.NewWildcardQuery(textnorm.Fold(tok))
		w.SetField(fieldFullname)
		return w
	}
	if base, fuzziness, ok := splitFuzzy(tok); ok {
		f := bleve.NewFuzzyQuery(textnorm.Fold(base))
		f.SetField(fieldFullname)
		f.SetFuzziness(fuzziness)
		return f
	}
	return nameMatch(tok)
}

func nameMatch(text string) query.Query {
	if !hasWordChar(text) {
		return nil
	}
	m := bleve.NewMatchQuery(text)
	m.SetField(fieldFullname)
	m.Analyzer = nameQueryAnalyzer
	m.SetOperator(query.MatchQueryOperatorAnd)
	return m
}

// contentTerm matches one token against the free text. Short trailing
// wildcards are served by the edge n-gram field, paired with a prefix query
// on content so the highlighter has term locations.
func contentTerm(tok string) query.Query {
	switch {
	case isPhrase(tok):
		phrase := strings.Trim(tok, `"`)
		if !hasWordChar(phrase) {
			return nil
		}
		p := bleve.NewMatchPhraseQuery(phrase)
		p.SetField(fieldContent)
		return p
	case hasWildcard(tok):
		prefix := strings.TrimSuffix(tok, "*")
		if !hasWildcard(prefix) && len(prefix) >= 2 && len(prefix) <= maxPrefixLen {
			folded := textnorm.Fold(prefix)
			t := bleve.NewTermQuery(folded)
			t.SetField(fieldContentNgram)
			p := bleve.NewPrefixQuery(folded)
			p.SetField(fieldContent)
			return bleve.NewDisjunctionQuery(t, p)
		}
		w := bleve.NewWildcardQuery(textnorm.Fold(tok))
		w.SetField(fieldContent)
		return w
	}
	if base, fuzziness, ok := splitFuzzy(tok); ok {
		f := bleve.NewFuzzyQuery(textnorm.Fold(base))
		f.SetField(fieldContent)
		f.SetFuzziness(fuzziness)
		return f
	}
	if !hasWordChar(tok) {
		return nil
	}
	m := bleve.NewMatchQuery(tok)
	m.SetField(fieldContent)
	m.SetOperator(query.MatchQueryOperatorAnd)
	return m
}

// tokenize splits on whitespace, keeping double-quoted phrases whole.
func tokenize(q string) []string {
	var (
		tokens  []string
		cur     strings.Builder
		inQuote bool
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range q {
		switch {
		case r == '"':
			if !inQuote {
				flush()
			}
			cur.WriteRune(r)
			if inQuote {
				flush()
			}
			inQuote = !inQuote
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func isPhrase(tok string) bool {
	return len(tok) >= 2 && strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`)
}

func hasWildcard(tok string) bool {
	return strings.ContainsAny(tok, "*?")
}

// splitFuzzy recognises "term~" and "term~N". The edit distance is capped at
// 2, the maximum bleve supports.
func splitFuzzy(tok string) (string, int, bool) {
	i := strings.LastIndexByte(tok, '~')
	if i <= 0 {
		return "", 0, false
	}
	base, suffix := tok[:i], tok[i+1:]
	if !hasWordChar(base) {
		return "", 0, false
	}
	if suffix == "" {
		return base, 1, true
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return "", 0, false
	}
	return base, min(n, 2), true
}

func hasWordChar(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
