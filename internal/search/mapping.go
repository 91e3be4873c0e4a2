package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/edgengram"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/ngram"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/renderinc/dil/internal/textnorm"
)

// Document fields.
const (
	fieldID           = "id_dil"
	fieldLastname     = "lastname"
	fieldFirstnames   = "firstnames"
	fieldFullname     = "firstnames_lastname"
	fieldContent      = "content"
	fieldContentNgram = "content_ngram"
)

const (
	foldFilterName = "dil_fold"

	nameNgramFilter     = "dil_ngram_2_15"
	fullnameNgramFilter = "dil_ngram_2_30"
	prefixFilter        = "dil_edge_ngram_2_10"

	nameAnalyzer      = "dil_name"
	fullnameAnalyzer  = "dil_fullname"
	nameQueryAnalyzer = "dil_name_query"
	textAnalyzer      = "dil_text"
	prefixAnalyzer    = "dil_text_prefix"
)

// foldFilter folds each token to lowercase ASCII. Folding tokens rather than
// the raw text keeps term offsets aligned with the stored original, which the
// highlighter relies on.
type foldFilter struct{}

func (foldFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	for _, tok := range input {
		tok.Term = []byte(textnorm.Fold(string(tok.Term)))
	}
	return input
}

func init() {
	registry.RegisterTokenFilter(foldFilterName,
		func(map[string]interface{}, *registry.Cache) (analysis.TokenFilter, error) {
			return foldFilter{}, nil
		})
}

// buildIndexMapping describes person documents: n-grams on the name fields
// for partial matching, folded full text on content for ranked matches and
// highlighting, and edge n-grams on content_ngram for cheap prefix lookups.
func buildIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()

	filters := map[string]map[string]interface{}{
		nameNgramFilter:     {"type": ngram.Name, "min": 2.0, "max": 15.0},
		fullnameNgramFilter: {"type": ngram.Name, "min": 2.0, "max": 30.0},
		prefixFilter:        {"type": edgengram.Name, "back": false, "min": 2.0, "max": 10.0},
	}
	for name, cfg := range filters {
		if err := m.AddCustomTokenFilter(name, cfg); err != nil {
			return nil, fmt.Errorf("token filter %s: %w", name, err)
		}
	}

	analyzers := map[string][]string{
		nameAnalyzer:      {lowercase.Name, foldFilterName, nameNgramFilter},
		fullnameAnalyzer:  {lowercase.Name, foldFilterName, fullnameNgramFilter},
		nameQueryAnalyzer: {lowercase.Name, foldFilterName},
		textAnalyzer:      {lowercase.Name, foldFilterName},
		prefixAnalyzer:    {lowercase.Name, foldFilterName, prefixFilter},
	}
	for name, tokenFilters := range analyzers {
		err := m.AddCustomAnalyzer(name, map[string]interface{}{
			"type":          custom.Name,
			"tokenizer":     unicodetok.Name,
			"token_filters": tokenFilters,
		})
		if err != nil {
			return nil, fmt.Errorf("analyzer %s: %w", name, err)
		}
	}

	idField := bleve.NewKeywordFieldMapping()

	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = nameAnalyzer
	nameField.IncludeInAll = false

	fullnameField := bleve.NewTextFieldMapping()
	fullnameField.Analyzer = fullnameAnalyzer
	fullnameField.Store = false
	fullnameField.IncludeInAll = false

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = textAnalyzer

	prefixField := bleve.NewTextFieldMapping()
	prefixField.Analyzer = prefixAnalyzer
	prefixField.Store = false
	prefixField.IncludeTermVectors = false
	prefixField.IncludeInAll = false

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(fieldID, idField)
	doc.AddFieldMappingsAt(fieldLastname, nameField)
	doc.AddFieldMappingsAt(fieldFirstnames, nameField)
	doc.AddFieldMappingsAt(fieldFullname, fullnameField)
	doc.AddFieldMappingsAt(fieldContent, contentField)
	doc.AddFieldMappingsAt(fieldContentNgram, prefixField)

	m.DefaultMapping = doc
	m.DefaultAnalyzer = textAnalyzer
	return m, nil
}
