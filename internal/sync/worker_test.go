package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/dil/internal/catalog"
	"github.com/renderinc/dil/internal/consistency"
	"github.com/renderinc/dil/internal/ident"
	"github.com/renderinc/dil/internal/logger"
	"github.com/renderinc/dil/internal/search"
	"github.com/renderinc/dil/internal/storage"
)

func newTestWorker(t *testing.T) (*Worker, *storage.DB, *search.Index) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "dil.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	idx, err := search.Open(filepath.Join(dir, "index"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	log := logger.Nop()
	svc := catalog.New(log, db, consistency.New(log, ident.NewGenerator("dil")))
	return NewWorker(log, db, idx, svc), db, idx
}

func writeExport(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func seedExport(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeExport(t, dir, "tables/table_city.tsv",
		"\ufeffid\t_id_dil\tlabel\tlong_lat",
		"1\tcity_dil_paris000\tParis\t2.352,48.856",
		"2\tcity_dil_tours000\tTours\t0.689,47.394",
	)
	writeExport(t, dir, "tables/table_person.tsv",
		"id\t_id_dil\tlastname\tfirstnames\tprofessional_information",
		"10\tperson_dil_didot000\tDidot\tFirmin,Ambroise\t<p>Imprimeur rue Jacob</p>",
		"11\t\tMame\tAlfred\t<p>Imprimeur<br>à Tours</p>",
		"12\tperson_dil_blank000\t\t\t",
	)
	writeExport(t, dir, "tables/table_patent.tsv",
		"id\t_id_dil\tperson_id\tcity_id\tdate_start\tdate_end\treferences",
		"20\tpatent_dil_didot000\t10\t1.0\t1850\t\tAN F18 1740",
		"21\tpatent_dil_mame0000\t11\t2\t1860-03\t1870",
		"22\tpatent_dil_orphan00\t99\t\t1850\t\t",
		"23\tpatent_dil_baddate0\t10\t\tvers 1850\t\t",
	)
	writeExport(t, dir, "relations/patent_has_relations.tsv",
		"id\t_id_dil\tpatent_id\tperson_id\tperson_related_id\ttype",
		"30\t\t20\t10\t11\tassocié",
		"31\t\t20\t10\t11\tcousin",
	)
	return dir
}

func TestImport(t *testing.T) {
	w, db, _ := newTestWorker(t)
	ctx := context.Background()

	stats, err := w.Import(ctx, seedExport(t))

	require.NoError(t, err)
	byTable := map[string]TableStats{}
	for _, ts := range stats.Tables {
		byTable[ts.Kind.Table()] = ts
	}
	require.Len(t, byTable, 4, "tables without an export are skipped")
	assert.Equal(t, 2, byTable["cities"].Inserted)
	assert.Equal(t, TableStats{Kind: storage.KindPerson, File: byTable["persons"].File, Rows: 3, Inserted: 2, Errors: 1}, byTable["persons"])
	assert.Equal(t, 2, byTable["patents"].Inserted)
	assert.Equal(t, 2, byTable["patents"].Errors)
	assert.Equal(t, 1, byTable["patent_has_relations"].Inserted)

	mame, err := db.PersonByID(ctx, 11)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mame.IDDil, "person_dil_"), "missing identifiers are generated")

	patent, err := db.PatentByIDDil(ctx, "patent_dil_didot000")
	require.NoError(t, err)
	assert.Equal(t, "city_dil_paris000", patent.CityIDDil)
}

func TestImport_NeedsCatalog(t *testing.T) {
	_, db, idx := newTestWorker(t)
	w := NewWorker(logger.Nop(), db, idx, nil)

	_, err := w.Import(context.Background(), t.TempDir())

	assert.Error(t, err)
}

func TestImport_Cancelled(t *testing.T) {
	w, _, _ := newTestWorker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Import(ctx, seedExport(t))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestReindex(t *testing.T) {
	w, _, idx := newTestWorker(t)
	ctx := context.Background()
	_, err := w.Import(ctx, seedExport(t))
	require.NoError(t, err)

	n, err := idx.Count()
	require.NoError(t, err)
	require.Zero(t, n, "import does not touch the index")

	stats, err := w.Reindex(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalPersons)
	assert.EqualValues(t, 2, stats.Indexed)

	hits, err := idx.Search(ctx, "", "F18", 0)
	require.NoError(t, err)
	assert.Contains(t, hits, "person_dil_didot000")

	hits, err = idx.Search(ctx, "mame", "tours", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestEntityFromRow(t *testing.T) {
	e, err := entityFromRow(storage.KindPatentImage, map[string]string{
		"id": "5", "_id_dil": "patent_image_dil_a", "patent_id": "2.0", "image_id": "3", "is_pinned": "True",
	})
	require.NoError(t, err)
	link := e.(*storage.PatentImage)
	assert.EqualValues(t, 5, link.ID)
	assert.EqualValues(t, 2, link.PatentID)
	assert.True(t, link.IsPinned)

	_, err = entityFromRow(storage.KindPatent, map[string]string{"person_id": "1.5"})
	assert.Error(t, err)

	_, err = entityFromRow(storage.KindPatentImage, map[string]string{"is_pinned": "sometimes"})
	assert.Error(t, err)

	e, err = entityFromRow(storage.KindAddress, map[string]string{"label": "rue Jacob"})
	require.NoError(t, err)
	assert.Nil(t, e.(*storage.Address).CityID)
}
