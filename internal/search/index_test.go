package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/dil/internal/storage"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func source(idDil, lastname, firstnames, info string, refs ...string) *storage.IndexSource {
	return &storage.IndexSource{
		IDDil:                   idDil,
		Lastname:                lastname,
		Firstnames:              firstnames,
		ProfessionalInformation: info,
		References:              refs,
	}
}

func seed(t *testing.T, idx *Index) {
	t.Helper()
	for _, src := range []*storage.IndexSource{
		source("person_dil_didot000", "Didot", "Firmin, Ambroise", "<p>Imprimeur-libraire rue Jacob</p>"),
		source("person_dil_eluard00", "Éluard", "Marie", "<p>Lithographe à Lyon</p>", "AN F18 1740"),
		source("person_dil_mame0000", "Mame", "Alfred", "<p>Imprimeur à Tours</p>"),
	} {
		require.NoError(t, idx.IndexPerson(src))
	}
}

func keys(hits map[string]Hit) []string {
	out := make([]string, 0, len(hits))
	for k := range hits {
		out = append(out, k)
	}
	return out
}

// countingReader records how often the index is consulted.
type countingReader struct {
	searches int
	counts   int
}

func (r *countingReader) SearchInContext(context.Context, *bleve.SearchRequest) (*bleve.SearchResult, error) {
	r.searches++
	return &bleve.SearchResult{}, nil
}

func (r *countingReader) DocCount() (uint64, error) {
	r.counts++
	return 10, nil
}

func TestSearch_EmptyQueryDoesNotTouchIndex(t *testing.T) {
	fake := &countingReader{}
	idx := &Index{reader: fake}

	for _, q := range [][2]string{{"", ""}, {"  ", ""}, {"*", "**"}, {"", "!!"}} {
		hits, err := idx.Search(context.Background(), q[0], q[1], 0)
		require.NoError(t, err)
		assert.Empty(t, hits)
	}
	assert.Zero(t, fake.searches)
	assert.Zero(t, fake.counts)
}

func TestSearch_NoLimitUsesDocCount(t *testing.T) {
	fake := &countingReader{}
	idx := &Index{reader: fake}

	_, err := idx.Search(context.Background(), "didot", "", 0)

	require.NoError(t, err)
	assert.Equal(t, 1, fake.counts)
	assert.Equal(t, 1, fake.searches)
}

func TestSearch_Names(t *testing.T) {
	idx := openTestIndex(t)
	seed(t, idx)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"lastname", "Didot", []string{"person_dil_didot000"}},
		{"accents folded", "eluard", []string{"person_dil_eluard00"}},
		{"partial", "mam", []string{"person_dil_mame0000"}},
		{"firstname and lastname", "ambroise didot", []string{"person_dil_didot000"}},
		{"leading wildcard stripped", "*didot", []string{"person_dil_didot000"}},
		{"every term must match", "marie didot", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := idx.Search(ctx, tt.query, "", 0)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, keys(hits))
			for _, h := range hits {
				assert.Empty(t, h.Highlight)
			}
		})
	}
}

func TestSearch_Content(t *testing.T) {
	idx := openTestIndex(t)
	seed(t, idx)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"word", "imprimeur", []string{"person_dil_didot000", "person_dil_mame0000"}},
		{"all terms", "imprimeur tours", []string{"person_dil_mame0000"}},
		{"prefix", "litho*", []string{"person_dil_eluard00"}},
		{"phrase", `"rue jacob"`, []string{"person_dil_didot000"}},
		{"fuzzy", "lithographr~", []string{"person_dil_eluard00"}},
		{"patent reference", "F18", []string{"person_dil_eluard00"}},
		{"no match", "graveur", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := idx.Search(ctx, "", tt.query, 0)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, keys(hits))
		})
	}
}

func TestSearch_Highlight(t *testing.T) {
	idx := openTestIndex(t)
	seed(t, idx)

	hits, err := idx.Search(context.Background(), "", "Tours", 0)

	require.NoError(t, err)
	require.Contains(t, hits, "person_dil_mame0000")
	assert.Contains(t, hits["person_dil_mame0000"].Highlight, "<mark>Tours</mark>")
	assert.NotContains(t, hits["person_dil_mame0000"].Highlight, "<p>")
}

func TestSearch_HighlightPrefix(t *testing.T) {
	idx := openTestIndex(t)
	seed(t, idx)

	hits, err := idx.Search(context.Background(), "", "imprim*", 0)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"person_dil_didot000", "person_dil_mame0000"}, keys(hits))
	assert.Contains(t, hits["person_dil_mame0000"].Highlight, "<mark>Imprimeur</mark>")
}

func TestSearch_NameAndContent(t *testing.T) {
	idx := openTestIndex(t)
	seed(t, idx)

	hits, err := idx.Search(context.Background(), "didot", "imprimeur", 0)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"person_dil_didot000"}, keys(hits))
}

func TestSearch_Limit(t *testing.T) {
	idx := openTestIndex(t)
	seed(t, idx)

	hits, err := idx.Search(context.Background(), "", "imprimeur", 1)

	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestUpsert_ReplacesDocument(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.IndexPerson(source("person_dil_didot000", "Didot", "", "<p>Graveur</p>")))
	require.NoError(t, idx.IndexPerson(source("person_dil_didot000", "Didot", "", "<p>Fondeur</p>")))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	hits, err := idx.Search(ctx, "", "graveur", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
	hits, err = idx.Search(ctx, "", "fondeur", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestDelete(t *testing.T) {
	idx := openTestIndex(t)
	seed(t, idx)

	require.NoError(t, idx.Delete("person_dil_didot000"))
	require.NoError(t, idx.Delete("person_dil_absent00"))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	hits, err := idx.Search(context.Background(), "didot", "", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRebuild(t *testing.T) {
	idx := openTestIndex(t)
	seed(t, idx)
	docs := []*IndexedDocument{
		BuildDocument(source("person_dil_perrin00", "Perrin", "Louis", "<p>Typographe</p>")),
	}

	require.NoError(t, idx.Rebuild(context.Background(), docs, 1))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	hits, err := idx.Search(context.Background(), "perrin", "typographe", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	hits, err = idx.Search(context.Background(), "didot", "", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRebuild_Empty(t *testing.T) {
	idx := openTestIndex(t)
	seed(t, idx)

	require.NoError(t, idx.Rebuild(context.Background(), nil, 0))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
	hits, err := idx.Search(context.Background(), "didot", "", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRebuild_Cancelled(t *testing.T) {
	idx := openTestIndex(t)
	seed(t, idx)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := idx.Rebuild(ctx, []*IndexedDocument{BuildDocument(source("person_dil_x", "X", "", ""))}, 0)

	assert.ErrorIs(t, err, context.Canceled)
	n, err := idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 3, n, "live index untouched")
}

func TestBuildDocument(t *testing.T) {
	doc := BuildDocument(source("person_dil_eluard00", "  Éluard ", "Marie,Anne", "<p>Lithographe<br>à Lyon</p>", "<p>AN F18</p>"))

	assert.Equal(t, "Éluard", doc.Lastname)
	assert.Equal(t, "Marie,Anne", doc.Firstnames)
	assert.Equal(t, "Marie Anne Éluard", doc.FirstnamesLastname)
	assert.Equal(t, "Lithographe à Lyon AN F18", doc.Content)
	assert.Equal(t, "lithographe a lyon an f18", doc.ContentNgram)
}
