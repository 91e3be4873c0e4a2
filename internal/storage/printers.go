package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Period is an inclusive ISO date range, both ends "YYYY-MM-DD".
type Period struct {
	Start string
	End   string
}

// PrinterFilter narrows the printer listing.
type PrinterFilter struct {
	// IDDils restricts to these persons when non-nil. An empty non-nil
	// slice matches nobody.
	IDDils []string
	// CityIDDils keeps persons with a patent in one of these cities, or in
	// all of them when AllCities is set.
	CityIDDils []string
	AllCities  bool
	// Period keeps persons with a patent in the range. With ExactPeriod the
	// patent must start inside it; otherwise the patent's own span must
	// overlap it.
	Period      *Period
	ExactPeriod bool
	Desc        bool
	Limit       int
	Offset      int
}

// PrinterRow is one line of the printer listing.
type PrinterRow struct {
	IDDil        string
	Lastname     string
	Firstnames   string
	TotalPatents int
}

// ListPrinters returns the persons matching f, grouped so each appears once,
// sorted by accent-folded last name, together with the number of matches
// before pagination.
func (d *DB) ListPrinters(ctx context.Context, f PrinterFilter) ([]PrinterRow, int, error) {
	var (
		where []string
		args  []any
	)
	if f.IDDils != nil {
		where = append(where, "p._id_dil IN (SELECT value FROM json_each(?))")
		args = append(args, jsonList(f.IDDils))
	}
	if len(f.CityIDDils) > 0 {
		where = append(where, "c._id_dil IN (SELECT value FROM json_each(?))")
		args = append(args, jsonList(f.CityIDDils))
	}
	if f.Period != nil {
		clause, pargs := periodClause(*f.Period, f.ExactPeriod)
		where = append(where, clause)
		args = append(args, pargs...)
	}

	body := `
		FROM persons p
		JOIN patents pa ON pa.person_id = p.id
		LEFT JOIN cities c ON c.id = pa.city_id`
	if len(where) > 0 {
		body += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	body += "\n\t\tGROUP BY p.id"
	if f.AllCities && len(f.CityIDDils) > 0 {
		body += " HAVING COUNT(DISTINCT c.id) = ?"
		args = append(args, len(f.CityIDDils))
	}

	var total int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM (SELECT p.id "+body+")", args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count printers: %w", err)
	}

	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	query := `SELECT p._id_dil, p.lastname, p.firstnames,
		(SELECT COUNT(*) FROM patents x WHERE x.person_id = p.id)` + body +
		"\n\t\tORDER BY dil_fold(COALESCE(p.lastname, '')) " + dir + ", p.id " + dir +
		"\n\t\tLIMIT ? OFFSET ?"
	rows, err := d.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query printers: %w", err)
	}
	defer rows.Close()

	var out []PrinterRow
	for rows.Next() {
		var r PrinterRow
		if err := rows.Scan(&r.IDDil, &r.Lastname, text{&r.Firstnames}, &r.TotalPatents); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// periodClause filters patents on their start date (exact) or on the span
// start..end overlapping p. A patent without an end date covers only its
// start date; unparseable start dates never match.
func periodClause(p Period, exact bool) (string, []any) {
	const lo = "dil_date_lo(COALESCE(pa.date_start, ''))"
	if exact {
		return lo + " BETWEEN ? AND ?", []any{p.Start, p.End}
	}
	const hi = "dil_date_hi(COALESCE(NULLIF(pa.date_end, ''), pa.date_start, ''))"
	return "(" + lo + " <> '' AND " + lo + " <= ? AND " + hi + " >= ?)", []any{p.End, p.Start}
}

func jsonList(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

// PlaceFilter narrows the map of places.
type PlaceFilter struct {
	CityIDDils  []string
	Period      *Period
	ExactPeriod bool
}

// Place is a geolocated city with the persons holding a patent there.
type Place struct {
	CityIDDil string
	Label     string
	LongLat   string
	Persons   []PrinterRow
}

// MapPlaces lists the cities with coordinates where at least one patent
// matching f was granted.
func (d *DB) MapPlaces(ctx context.Context, f PlaceFilter) ([]*Place, error) {
	where := []string{"c.long_lat IS NOT NULL", "c.long_lat <> ''"}
	var args []any
	if len(f.CityIDDils) > 0 {
		where = append(where, "c._id_dil IN (SELECT value FROM json_each(?))")
		args = append(args, jsonList(f.CityIDDils))
	}
	if f.Period != nil {
		clause, pargs := periodClause(*f.Period, f.ExactPeriod)
		where = append(where, clause)
		args = append(args, pargs...)
	}
	query := `
		SELECT c._id_dil, c.label, c.long_lat, p._id_dil, p.lastname, p.firstnames, COUNT(pa.id)
		FROM cities c
		JOIN patents pa ON pa.city_id = c.id
		JOIN persons p ON p.id = pa.person_id
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY c.id, p.id
		ORDER BY c.label, c.id, dil_fold(COALESCE(p.lastname, '')), p.id`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query places: %w", err)
	}
	defer rows.Close()

	var (
		places []*Place
		cur    *Place
	)
	for rows.Next() {
		var (
			cityID, label, longLat string
			person                 PrinterRow
		)
		if err := rows.Scan(&cityID, &label, &longLat, &person.IDDil, &person.Lastname,
			text{&person.Firstnames}, &person.TotalPatents); err != nil {
			return nil, err
		}
		if cur == nil || cur.CityIDDil != cityID {
			cur = &Place{CityIDDil: cityID, Label: label, LongLat: longLat}
			places = append(places, cur)
		}
		cur.Persons = append(cur.Persons, person)
	}
	return places, rows.Err()
}
