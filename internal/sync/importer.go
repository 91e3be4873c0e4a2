package sync

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/renderinc/dil/internal/dilerr"
	"github.com/renderinc/dil/internal/metrics"
	"github.com/renderinc/dil/internal/storage"
)

// importSource locates the export of one table. Parents come before the
// link tables that point at them.
type importSource struct {
	kind  storage.Kind
	files []string
}

var importOrder = []importSource{
	{storage.KindCity, []string{"tables/table_city.tsv"}},
	{storage.KindAddress, []string{"tables/table_address.tsv"}},
	{storage.KindPerson, []string{"tables/table_person.tsv"}},
	{storage.KindPatent, []string{"tables/table_patent.tsv"}},
	{storage.KindImage, []string{"tables/table_image_prepared.csv", "tables/table_image.tsv"}},
	{storage.KindPatentRelation, []string{"relations/patent_has_relations.tsv"}},
	{storage.KindPatentAddress, []string{"relations/patent_has_addresses.tsv"}},
	{storage.KindPersonAddress, []string{"relations/person_has_addresses.tsv"}},
	{storage.KindPatentImage, []string{"relations/patent_has_images.tsv"}},
}

// TableStats counts the rows of one imported table.
type TableStats struct {
	Kind     storage.Kind
	File     string
	Rows     int
	Inserted int
	Errors   int
}

// ImportStats holds import statistics
type ImportStats struct {
	Tables   []TableStats
	Duration time.Duration
}

// Import loads the tab separated exports found under dir. Every row goes
// through the catalog so identifiers are generated and the consistency rules
// apply. Bad rows are logged and skipped; a missing file skips its table.
func (w *Worker) Import(ctx context.Context, dir string) (*ImportStats, error) {
	if w.catalog == nil {
		return nil, errors.New("import needs a catalog service")
	}
	start := time.Now()
	stats := &ImportStats{}

	for _, src := range importOrder {
		path, ok := firstExisting(dir, src.files)
		if !ok {
			w.log.Warn("no export for table, skipping", "table", src.kind.Table(), "dir", dir)
			continue
		}
		ts, err := w.importFile(ctx, src.kind, path)
		if err != nil {
			return nil, err
		}
		stats.Tables = append(stats.Tables, *ts)
		w.log.Info("table imported",
			"table", src.kind.Table(),
			"rows", ts.Rows,
			"inserted", ts.Inserted,
			"errors", ts.Errors,
		)
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

func (w *Worker) importFile(ctx context.Context, k storage.Kind, path string) (*TableStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	ts := &TableStats{Kind: k, File: path}
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		ts.Rows++
		if err == nil {
			err = w.importRow(ctx, k, header, record)
		}
		if err != nil {
			ts.Errors++
			metrics.ImportedRows.WithLabelValues(k.Table(), "error").Inc()
			w.log.Warn("row rejected", "file", filepath.Base(path), "line", line, "error", err)
			continue
		}
		ts.Inserted++
		metrics.ImportedRows.WithLabelValues(k.Table(), "ok").Inc()
	}
	return ts, nil
}

func (w *Worker) importRow(ctx context.Context, k storage.Kind, header, record []string) error {
	row := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(record) {
			row[name] = strings.TrimSpace(record[i])
		}
	}
	e, err := entityFromRow(k, row)
	if err != nil {
		return err
	}
	return w.catalog.Create(ctx, e)
}

func firstExisting(dir string, names []string) (string, bool) {
	for _, name := range names {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// rowReader pulls typed values out of an export row, keeping the first
// conversion error.
type rowReader struct {
	row map[string]string
	err error
}

func (r *rowReader) str(col string) string {
	return r.row[col]
}

func (r *rowReader) int(col string) int64 {
	v := r.row[col]
	if v == "" || r.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		// Spreadsheet exports write integer columns with gaps as floats.
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != float64(int64(f)) {
			r.err = dilerr.Validation("column %s: %q is not an integer", col, v)
			return 0
		}
		n = int64(f)
	}
	return n
}

func (r *rowReader) optInt(col string) *int64 {
	if r.row[col] == "" {
		return nil
	}
	n := r.int(col)
	return &n
}

func (r *rowReader) bool(col string) bool {
	v := r.row[col]
	if v == "" || r.err != nil {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.err = dilerr.Validation("column %s: %q is not a boolean", col, v)
	}
	return b
}

func (r *rowReader) record() storage.Record {
	return storage.Record{ID: r.int("id"), IDDil: r.str("_id_dil")}
}

// entityFromRow maps an export row, keyed by column name, onto the entity of
// kind k.
func entityFromRow(k storage.Kind, row map[string]string) (storage.Entity, error) {
	r := &rowReader{row: row}
	var e storage.Entity
	switch k {
	case storage.KindCity:
		e = &storage.City{
			Record:                 r.record(),
			Label:                  r.str("label"),
			CountryISOCode:         r.str("country_iso_code"),
			LongLat:                r.str("long_lat"),
			InseeFrCode:            r.str("insee_fr_code"),
			InseeFrDepartmentCode:  r.str("insee_fr_department_code"),
			InseeFrDepartmentLabel: r.str("insee_fr_department_label"),
			GeonameID:              r.str("geoname_id"),
			WikidataItemID:         r.str("wikidata_item_id"),
			DicotopoItemID:         r.str("dicotopo_item_id"),
			DatabnfArk:             r.str("databnf_ark"),
			ViafID:                 r.str("viaf_id"),
			SiafID:                 r.str("siaf_id"),
		}
	case storage.KindAddress:
		e = &storage.Address{
			Record:    r.record(),
			Label:     r.str("label"),
			CityLabel: r.str("city_label"),
			CityID:    r.optInt("city_id"),
		}
	case storage.KindPerson:
		e = &storage.Person{
			Record:                  r.record(),
			Lastname:                r.str("lastname"),
			Firstnames:              r.str("firstnames"),
			BirthDate:               r.str("birth_date"),
			BirthCityLabel:          r.str("birth_city_label"),
			BirthCityID:             r.optInt("birth_city_id"),
			PersonalInformation:     r.str("personal_information"),
			ProfessionalInformation: r.str("professional_information"),
			Comment:                 r.str("comment"),
		}
	case storage.KindPatent:
		e = &storage.Patent{
			Record:     r.record(),
			PersonID:   r.int("person_id"),
			CityLabel:  r.str("city_label"),
			CityID:     r.optInt("city_id"),
			DateStart:  r.str("date_start"),
			DateEnd:    r.str("date_end"),
			References: r.str("references"),
			Comment:    r.str("comment"),
		}
	case storage.KindImage:
		e = &storage.Image{
			Record:       r.record(),
			Label:        r.str("label"),
			ReferenceURL: r.str("reference_url"),
			ImgName:      r.str("img_name"),
			IIIFURL:      r.str("iiif_url"),
		}
	case storage.KindPatentRelation:
		t, err := storage.ParseRelationType(r.str("type"))
		if err != nil {
			return nil, err
		}
		e = &storage.PatentRelation{
			Record:          r.record(),
			PatentID:        r.int("patent_id"),
			PersonID:        r.int("person_id"),
			PersonRelatedID: r.int("person_related_id"),
			Type:            t,
		}
	case storage.KindPatentAddress:
		e = &storage.PatentAddress{
			Record:         r.record(),
			PatentID:       r.int("patent_id"),
			AddressID:      r.int("address_id"),
			DateOccupation: r.str("date_occupation"),
		}
	case storage.KindPersonAddress:
		e = &storage.PersonAddress{
			Record:         r.record(),
			PersonID:       r.int("person_id"),
			AddressID:      r.int("address_id"),
			DateOccupation: r.str("date_occupation"),
			Comment:        r.str("comment"),
		}
	case storage.KindPatentImage:
		e = &storage.PatentImage{
			Record:   r.record(),
			PatentID: r.int("patent_id"),
			ImageID:  r.int("image_id"),
			IsPinned: r.bool("is_pinned"),
		}
	default:
		return nil, fmt.Errorf("import: unsupported kind %s", k)
	}
	if r.err != nil {
		return nil, r.err
	}
	return e, nil
}
