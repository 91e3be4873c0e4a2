package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture holds a small graph of persons, patents and cities.
type fixture struct {
	db    *DB
	paris *City
	lyon  *City
	ids   map[string]*Person
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)
	f := &fixture{
		db:    db,
		paris: city("city_dil_paris000", "Paris", "2.352,48.856"),
		lyon:  city("city_dil_lyon0000", "Lyon", "4.835,45.764"),
		ids:   map[string]*Person{},
	}
	insert(t, db, f.paris)
	insert(t, db, f.lyon)
	return f
}

func (f *fixture) person(t *testing.T, idDil, lastname, firstnames string) *Person {
	t.Helper()
	p := person(idDil, lastname, firstnames)
	insert(t, f.db, p)
	f.ids[idDil] = p
	return p
}

func (f *fixture) patent(t *testing.T, p *Person, c *City, start, end string) {
	t.Helper()
	var cityID *int64
	if c != nil {
		cityID = &c.ID
	}
	pa := patent("patent_dil_"+p.IDDil[len("person_dil_"):]+start+end, p.ID, cityID, start, end)
	insert(t, f.db, pa)
}

func idsOf(rows []PrinterRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.IDDil)
	}
	return out
}

func TestListPrinters_DateOverlap(t *testing.T) {
	f := newFixture(t)
	a := f.person(t, "person_dil_aaaaaaaa", "Arnaud", "")
	b := f.person(t, "person_dil_bbbbbbbb", "Bernard", "")
	f.patent(t, a, f.paris, "1850", "")
	f.patent(t, b, f.paris, "1845", "1855")
	ctx := context.Background()

	tests := []struct {
		name  string
		start string
		end   string
		exact bool
		want  []string
	}{
		{"overlap excludes open patent", "1852-01-01", "1852-12-31", false, []string{b.IDDil}},
		{"overlap includes its start year", "1850-01-01", "1850-12-31", false, []string{a.IDDil, b.IDDil}},
		{"exact matches start only", "1850-01-01", "1850-12-31", true, []string{a.IDDil}},
		{"exact on span interior", "1852-01-01", "1852-12-31", true, []string{}},
		{"nothing before", "1800-01-01", "1800-12-31", false, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, total, err := f.db.ListPrinters(ctx, PrinterFilter{
				Period:      &Period{Start: tt.start, End: tt.end},
				ExactPeriod: tt.exact,
				Limit:       50,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, idsOf(rows))
			assert.Equal(t, len(tt.want), total)
		})
	}
}

func TestListPrinters_CityAllOf(t *testing.T) {
	f := newFixture(t)
	both := f.person(t, "person_dil_aaaaaaaa", "Arnaud", "")
	parisOnly := f.person(t, "person_dil_bbbbbbbb", "Bernard", "")
	f.patent(t, both, f.paris, "1850", "")
	f.patent(t, both, f.lyon, "1851", "")
	f.patent(t, parisOnly, f.paris, "1852", "")
	ctx := context.Background()
	cities := []string{f.paris.IDDil, f.lyon.IDDil}

	rows, total, err := f.db.ListPrinters(ctx, PrinterFilter{CityIDDils: cities, AllCities: true, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{both.IDDil}, idsOf(rows))
	assert.Equal(t, 1, total)

	rows, total, err = f.db.ListPrinters(ctx, PrinterFilter{CityIDDils: cities, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{both.IDDil, parisOnly.IDDil}, idsOf(rows))
	assert.Equal(t, 2, total)

	rows, _, err = f.db.ListPrinters(ctx, PrinterFilter{CityIDDils: []string{f.lyon.IDDil}, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{both.IDDil}, idsOf(rows))
}

func TestListPrinters_TotalPatentsIgnoresFilters(t *testing.T) {
	f := newFixture(t)
	p := f.person(t, "person_dil_aaaaaaaa", "Arnaud", "")
	f.patent(t, p, f.paris, "1850", "")
	f.patent(t, p, f.lyon, "1860", "")

	rows, _, err := f.db.ListPrinters(context.Background(), PrinterFilter{CityIDDils: []string{f.paris.IDDil}, Limit: 50})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].TotalPatents)
}

func TestListPrinters_FoldedSort(t *testing.T) {
	f := newFixture(t)
	for id, name := range map[string]string{
		"person_dil_zzzzzzzz": "Zola",
		"person_dil_eeeeeeee": "Éluard",
		"person_dil_dddddddd": "Dupont",
		"person_dil_ffffffff": "Faure",
	} {
		f.patent(t, f.person(t, id, name, ""), f.paris, "1850", "")
	}
	// A person without patents is not a printer.
	f.person(t, "person_dil_aaaaaaaa", "Abel", "")
	ctx := context.Background()

	rows, total, err := f.db.ListPrinters(ctx, PrinterFilter{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Lastname)
	}
	assert.Equal(t, []string{"Dupont", "Éluard", "Faure", "Zola"}, names)

	rows, _, err = f.db.ListPrinters(ctx, PrinterFilter{Desc: true, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Faure", rows[0].Lastname)
	assert.Equal(t, "Éluard", rows[1].Lastname)
}

func TestListPrinters_IDRestriction(t *testing.T) {
	f := newFixture(t)
	a := f.person(t, "person_dil_aaaaaaaa", "Arnaud", "")
	b := f.person(t, "person_dil_bbbbbbbb", "Bernard", "")
	f.patent(t, a, f.paris, "1850", "")
	f.patent(t, b, f.paris, "1850", "")
	ctx := context.Background()

	rows, _, err := f.db.ListPrinters(ctx, PrinterFilter{IDDils: []string{b.IDDil}, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{b.IDDil}, idsOf(rows))

	rows, total, err := f.db.ListPrinters(ctx, PrinterFilter{IDDils: []string{}, Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, total)
}

func TestMapPlaces(t *testing.T) {
	f := newFixture(t)
	nowhere := city("city_dil_nowhere0", "Nulle-part", "")
	insert(t, f.db, nowhere)
	a := f.person(t, "person_dil_aaaaaaaa", "Arnaud", "")
	b := f.person(t, "person_dil_bbbbbbbb", "Bernard", "")
	f.patent(t, a, f.paris, "1850", "")
	f.patent(t, b, f.paris, "1860", "")
	f.patent(t, b, f.lyon, "1861", "")
	f.patent(t, a, nowhere, "1850-06", "")
	ctx := context.Background()

	places, err := f.db.MapPlaces(ctx, PlaceFilter{})
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Lyon", places[0].Label)
	assert.Equal(t, []string{b.IDDil}, idsOf(places[0].Persons))
	assert.Equal(t, "Paris", places[1].Label)
	assert.Equal(t, []string{a.IDDil, b.IDDil}, idsOf(places[1].Persons))

	places, err = f.db.MapPlaces(ctx, PlaceFilter{Period: &Period{Start: "1860-01-01", End: "1869-12-31"}})
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, []string{b.IDDil}, idsOf(places[1].Persons))
}
