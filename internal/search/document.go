package search

import (
	"strings"

	"github.com/renderinc/dil/internal/markup"
	"github.com/renderinc/dil/internal/storage"
	"github.com/renderinc/dil/internal/textnorm"
)

// IndexedDocument is the indexed view of a person. Names and Content keep
// their stored casing; the analyzers fold them for matching.
type IndexedDocument struct {
	IDDil              string `json:"id_dil"`
	Lastname           string `json:"lastname"`
	Firstnames         string `json:"firstnames"`
	FirstnamesLastname string `json:"firstnames_lastname"`
	Content            string `json:"content"`
	ContentNgram       string `json:"content_ngram"`
}

// BuildDocument derives the indexed document from a person's stored text:
// personal and professional information plus every patent reference,
// stripped of markup.
func BuildDocument(src *storage.IndexSource) *IndexedDocument {
	parts := append([]string{src.PersonalInformation, src.ProfessionalInformation}, src.References...)
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := markup.StripToPlainText(p); t != "" {
			texts = append(texts, t)
		}
	}
	content := strings.Join(texts, " ")

	lastname := strings.TrimSpace(src.Lastname)
	firstnames := strings.TrimSpace(src.Firstnames)
	fullname := strings.Join(strings.Fields(strings.ReplaceAll(firstnames, ",", " ")+" "+lastname), " ")

	return &IndexedDocument{
		IDDil:              src.IDDil,
		Lastname:           lastname,
		Firstnames:         firstnames,
		FirstnamesLastname: fullname,
		Content:            content,
		ContentNgram:       textnorm.Fold(content),
	}
}
