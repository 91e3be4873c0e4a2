// Package query builds the read-side projections served by the API: the
// printer listing with its search and filters, record details and the
// referential lists.
package query

import (
	"context"
	"slices"
	"strings"

	"github.com/renderinc/dil/internal/config"
	"github.com/renderinc/dil/internal/dilerr"
	"github.com/renderinc/dil/internal/logger"
	"github.com/renderinc/dil/internal/search"
	"github.com/renderinc/dil/internal/storage"
	"github.com/renderinc/dil/internal/textnorm"
)

// Searcher runs full-text queries against the person index.
type Searcher interface {
	Search(ctx context.Context, nameQuery, contentQuery string, limit int) (map[string]search.Hit, error)
}

// Mode selects the indexed fields a free-text search looks at.
type Mode string

const (
	ModeAll     Mode = "all"
	ModeNames   Mode = "names"
	ModeContent Mode = "content"
)

// ParseMode resolves a mode name; "" means ModeAll.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAll, nil
	case ModeAll, ModeNames, ModeContent:
		return m, nil
	}
	return "", dilerr.Validation("unknown search mode %q, expected all, names or content", s)
}

// PrinterParams are the filters of the printer listing.
type PrinterParams struct {
	Search string
	Mode   string
	// CityIDs keeps persons with a patent in any of these cities, or in
	// every one of them with AllCities.
	CityIDs   []string
	AllCities bool
	// DateStart is a YYYY, YYYY-MM or YYYY-MM-DD boundary. ExactDate
	// requires the patent to start inside it rather than overlap it.
	DateStart string
	ExactDate bool
	Sort      string
	Page      int
	Size      int
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Pages int `json:"pages"`
}

func newPage[T any](items []T, total, page, size int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return &Page[T]{Items: items, Total: total, Page: page, Size: size, Pages: pages}
}

// PrinterItem is the minimal person projection of the listing.
type PrinterItem struct {
	ID           string  `json:"_id_dil"`
	Lastname     string  `json:"lastname"`
	Firstnames   string  `json:"firstnames"`
	TotalPatents int     `json:"total_patents"`
	Highlight    *string `json:"highlight"`
}

// Composer answers the read endpoints from the database and the search index.
type Composer struct {
	db       *storage.DB
	searcher Searcher
	pageSize int
	log      *logger.Logger
}

// New creates a composer. pageSize is the default page size of the listings.
func New(log *logger.Logger, db *storage.DB, searcher Searcher, pageSize int) *Composer {
	if pageSize <= 0 {
		pageSize = config.DefaultPageSize
	}
	return &Composer{db: db, searcher: searcher, pageSize: pageSize, log: log.With("component", "query")}
}

// pagination validates page and size, filling defaults.
func (c *Composer) pagination(page, size int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = c.pageSize
	}
	if page < 1 {
		return 0, 0, dilerr.Validation("page must be at least 1")
	}
	if size < 1 || size > config.MaxPageSize {
		return 0, 0, dilerr.Validation("size must be between 1 and %d", config.MaxPageSize)
	}
	return page, size, nil
}

// ReadPrinters lists persons with at least one patent. A free-text search
// restricts the listing to the matching persons and attaches the content
// highlight; a search matching nobody yields an empty page.
func (c *Composer) ReadPrinters(ctx context.Context, p PrinterParams) (*Page[PrinterItem], error) {
	page, size, err := c.pagination(p.Page, p.Size)
	if err != nil {
		return nil, err
	}
	mode, err := ParseMode(p.Mode)
	if err != nil {
		return nil, err
	}
	desc, err := parseSort(p.Sort)
	if err != nil {
		return nil, err
	}
	period, err := parsePeriod(p.DateStart)
	if err != nil {
		return nil, err
	}

	filter := storage.PrinterFilter{
		CityIDDils:  compact(p.CityIDs),
		AllCities:   p.AllCities,
		Period:      period,
		ExactPeriod: p.ExactDate,
		Desc:        desc,
		Limit:       size,
		Offset:      (page - 1) * size,
	}

	var hits map[string]search.Hit
	if term := strings.TrimSpace(p.Search); term != "" {
		hits, err = c.search(ctx, term, mode)
		if err != nil {
			return nil, err
		}
		if len(hits) == 0 {
			return newPage[PrinterItem](nil, 0, page, size), nil
		}
		filter.IDDils = make([]string, 0, len(hits))
		for id := range hits {
			filter.IDDils = append(filter.IDDils, id)
		}
	}

	rows, total, err := c.db.ListPrinters(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]PrinterItem, 0, len(rows))
	for _, r := range rows {
		item := PrinterItem{
			ID:           r.IDDil,
			Lastname:     r.Lastname,
			Firstnames:   textnorm.Firstnames(r.Firstnames),
			TotalPatents: r.TotalPatents,
		}
		if h, ok := hits[r.IDDil]; ok && h.Highlight != "" {
			highlight := h.Highlight
			item.Highlight = &highlight
		}
		items = append(items, item)
	}
	return newPage(items, total, page, size), nil
}

// search runs the free-text part of the listing. In ModeAll a person matches
// on its names or its content; the content highlight wins when both match.
func (c *Composer) search(ctx context.Context, term string, mode Mode) (map[string]search.Hit, error) {
	switch mode {
	case ModeNames:
		return c.searcher.Search(ctx, term, "", 0)
	case ModeContent:
		return c.searcher.Search(ctx, "", term, 0)
	}
	names, err := c.searcher.Search(ctx, term, "", 0)
	if err != nil {
		return nil, err
	}
	content, err := c.searcher.Search(ctx, "", term, 0)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = make(map[string]search.Hit, len(content))
	}
	for id, h := range content {
		names[id] = h
	}
	c.log.Debug("search", "term", term, "hits", len(names))
	return names, nil
}

func parseSort(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return false, nil
	case "desc":
		return true, nil
	}
	return false, dilerr.Validation("unknown sort %q, expected asc or desc", s)
}

func parsePeriod(s string) (*storage.Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	start, end, ok := textnorm.PeriodBounds(s)
	if !ok || !textnorm.IsDate(s) {
		return nil, dilerr.Validation("date %q must look like YYYY, YYYY-MM or YYYY-MM-DD", s)
	}
	return &storage.Period{Start: start, End: end}, nil
}

// compact drops blank and repeated identifiers; nil when nothing is left.
func compact(ids []string) []string {
	var out []string
	for _, id := range ids {
		for _, part := range strings.Split(id, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

