package storage

import (
	"context"
	"database/sql"
	"fmt"
)

type scanner interface {
	Scan(dest ...any) error
}

// text scans a nullable TEXT column, NULL becoming "".
type text struct{ dst *string }

func (t text) Scan(v any) error {
	var ns sql.NullString
	if err := ns.Scan(v); err != nil {
		return err
	}
	*t.dst = ns.String
	return nil
}

const (
	personSelect = `SELECT p.id, p._id_dil, p.created_at, p.updated_at, p.last_editor,
		p.lastname, p.firstnames, p.birth_date, p.birth_city_label, p.birth_city_id, bc._id_dil,
		p.personal_information, p.professional_information, p.comment
		FROM persons p LEFT JOIN cities bc ON bc.id = p.birth_city_id`

	patentSelect = `SELECT pa.id, pa._id_dil, pa.created_at, pa.updated_at, pa.last_editor,
		pa.person_id, pa.city_label, pa.city_id, c._id_dil, pa.date_start, pa.date_end,
		pa."references", pa.comment
		FROM patents pa LEFT JOIN cities c ON c.id = pa.city_id`

	citySelect = `SELECT c.id, c._id_dil, c.created_at, c.updated_at, c.last_editor,
		c.label, c.country_iso_code, c.long_lat, c.insee_fr_code, c.insee_fr_department_code,
		c.insee_fr_department_label, c.geoname_id, c.wikidata_item_id, c.dicotopo_item_id,
		c.databnf_ark, c.viaf_id, c.siaf_id
		FROM cities c`

	addressSelect = `SELECT a.id, a._id_dil, a.created_at, a.updated_at, a.last_editor,
		a.label, a.city_label, a.city_id, c._id_dil
		FROM addresses a LEFT JOIN cities c ON c.id = a.city_id`

	imageSelect = `SELECT i.id, i._id_dil, i.created_at, i.updated_at, i.last_editor,
		i.label, i.reference_url, i.img_name, i.iiif_url
		FROM images i`

	relationSelect = `SELECT r.id, r._id_dil, r.created_at, r.updated_at, r.last_editor,
		r.patent_id, r.person_id, r.person_related_id, r.type
		FROM patent_has_relations r`

	patentAddressSelect = `SELECT l.id, l._id_dil, l.created_at, l.updated_at, l.last_editor,
		l.patent_id, l.address_id, l.date_occupation
		FROM patent_has_addresses l`

	personAddressSelect = `SELECT l.id, l._id_dil, l.created_at, l.updated_at, l.last_editor,
		l.person_id, l.address_id, l.date_occupation, l.comment
		FROM person_has_addresses l`

	patentImageSelect = `SELECT l.id, l._id_dil, l.created_at, l.updated_at, l.last_editor,
		l.patent_id, l.image_id, l.is_pinned
		FROM patent_has_images l`
)

// selects maps each kind to its SELECT and the alias of its main table.
var selects = map[Kind]struct{ query, alias string }{
	KindPerson:         {personSelect, "p"},
	KindPatent:         {patentSelect, "pa"},
	KindCity:           {citySelect, "c"},
	KindAddress:        {addressSelect, "a"},
	KindImage:          {imageSelect, "i"},
	KindPatentRelation: {relationSelect, "r"},
	KindPatentAddress:  {patentAddressSelect, "l"},
	KindPersonAddress:  {personAddressSelect, "l"},
	KindPatentImage:    {patentImageSelect, "l"},
}

func (r *Record) fields() []any {
	return []any{&r.ID, &r.IDDil, &r.CreatedAt, &r.UpdatedAt, text{&r.LastEditor}}
}

func scanPerson(s scanner) (*Person, error) {
	p := &Person{}
	dest := append(p.fields(),
		&p.Lastname, text{&p.Firstnames}, text{&p.BirthDate}, text{&p.BirthCityLabel},
		&p.BirthCityID, text{&p.BirthCityIDDil},
		text{&p.PersonalInformation}, text{&p.ProfessionalInformation}, text{&p.Comment})
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return p, nil
}

func scanPatent(s scanner) (*Patent, error) {
	p := &Patent{}
	dest := append(p.fields(),
		&p.PersonID, text{&p.CityLabel}, &p.CityID, text{&p.CityIDDil},
		text{&p.DateStart}, text{&p.DateEnd}, text{&p.References}, text{&p.Comment})
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return p, nil
}

func scanCity(s scanner) (*City, error) {
	c := &City{}
	dest := append(c.fields(),
		&c.Label, text{&c.CountryISOCode}, text{&c.LongLat}, text{&c.InseeFrCode},
		text{&c.InseeFrDepartmentCode}, text{&c.InseeFrDepartmentLabel}, text{&c.GeonameID},
		text{&c.WikidataItemID}, text{&c.DicotopoItemID}, text{&c.DatabnfArk},
		text{&c.ViafID}, text{&c.SiafID})
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return c, nil
}

func scanAddress(s scanner) (*Address, error) {
	a := &Address{}
	dest := append(a.fields(), &a.Label, text{&a.CityLabel}, &a.CityID, text{&a.CityIDDil})
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return a, nil
}

func scanImage(s scanner) (*Image, error) {
	i := &Image{}
	dest := append(i.fields(), &i.Label, text{&i.ReferenceURL}, text{&i.ImgName}, text{&i.IIIFURL})
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return i, nil
}

func scanRelation(s scanner) (*PatentRelation, error) {
	r := &PatentRelation{}
	dest := append(r.fields(), &r.PatentID, &r.PersonID, &r.PersonRelatedID, &r.Type)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return r, nil
}

func scanPatentAddress(s scanner) (*PatentAddress, error) {
	l := &PatentAddress{}
	dest := append(l.fields(), &l.PatentID, &l.AddressID, text{&l.DateOccupation})
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return l, nil
}

func scanPersonAddress(s scanner) (*PersonAddress, error) {
	l := &PersonAddress{}
	dest := append(l.fields(), &l.PersonID, &l.AddressID, text{&l.DateOccupation}, text{&l.Comment})
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return l, nil
}

func scanPatentImage(s scanner) (*PatentImage, error) {
	l := &PatentImage{}
	dest := append(l.fields(), &l.PatentID, &l.ImageID, &l.IsPinned)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return l, nil
}

func scanEntity(k Kind, s scanner) (Entity, error) {
	switch k {
	case KindPerson:
		return scanPerson(s)
	case KindPatent:
		return scanPatent(s)
	case KindCity:
		return scanCity(s)
	case KindAddress:
		return scanAddress(s)
	case KindImage:
		return scanImage(s)
	case KindPatentRelation:
		return scanRelation(s)
	case KindPatentAddress:
		return scanPatentAddress(s)
	case KindPersonAddress:
		return scanPersonAddress(s)
	case KindPatentImage:
		return scanPatentImage(s)
	}
	return nil, fmt.Errorf("scan: unknown kind %d", k)
}

func getEntity(ctx context.Context, q queryer, k Kind, idDil string) (Entity, error) {
	sel := selects[k]
	row := q.QueryRowContext(ctx, sel.query+" WHERE "+sel.alias+"._id_dil = ?", idDil)
	e, err := scanEntity(k, row)
	if err != nil {
		return nil, notFound(err, k, idDil)
	}
	return e, nil
}

func getEntityByID(ctx context.Context, q queryer, k Kind, id int64) (Entity, error) {
	sel := selects[k]
	row := q.QueryRowContext(ctx, sel.query+" WHERE "+sel.alias+".id = ?", id)
	e, err := scanEntity(k, row)
	if err != nil {
		return nil, notFound(err, k, id)
	}
	return e, nil
}

// Tx is a write transaction. Every mutation goes through one.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error {
	return classify(t.tx.Commit())
}

// Rollback aborts the transaction. Calling it after Commit is harmless.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// Get loads a row of kind k by its public identifier.
func (t *Tx) Get(ctx context.Context, k Kind, idDil string) (Entity, error) {
	return getEntity(ctx, t.tx, k, idDil)
}

// GetByID loads a row of kind k by its primary key.
func (t *Tx) GetByID(ctx context.Context, k Kind, id int64) (Entity, error) {
	return getEntityByID(ctx, t.tx, k, id)
}

// IDExists reports whether idDil is taken in the table of kind k.
func (t *Tx) IDExists(ctx context.Context, k Kind, idDil string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+k.Table()+" WHERE _id_dil = ?", idDil).Scan(&n)
	return n > 0, err
}

// Exists reports whether a row of kind k with primary key id exists.
func (t *Tx) Exists(ctx context.Context, k Kind, id int64) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+k.Table()+" WHERE id = ?", id).Scan(&n)
	return n > 0, err
}

// UnpinOthers clears the pinned flag on every image link of patentID except
// exceptID (0 clears them all). It returns the number of links changed.
func (t *Tx) UnpinOthers(ctx context.Context, patentID, exceptID int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE patent_has_images SET is_pinned = 0, updated_at = ?
		WHERE patent_id = ? AND id <> ? AND is_pinned = 1`,
		now(), patentID, exceptID)
	if err != nil {
		return 0, fmt.Errorf("unpin images of patent %d: %w", patentID, err)
	}
	return res.RowsAffected()
}

// Insert writes e and sets its primary key. A non-zero ID is kept, which
// lets imports preserve the keys their link tables refer to.
func (t *Tx) Insert(ctx context.Context, e Entity) error {
	rec := e.Base()
	ts := now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = ts
	}
	rec.UpdatedAt = ts
	if rec.LastEditor == "" {
		rec.LastEditor = "admin"
	}

	cols, vals := columns(e)
	query := "INSERT INTO " + e.Kind().Table() + " (id, _id_dil, created_at, updated_at, last_editor"
	placeholders := "NULLIF(?, 0), ?, ?, ?, ?"
	for _, c := range cols {
		query += ", " + c
		placeholders += ", ?"
	}
	query += ") VALUES (" + placeholders + ")"
	args := append([]any{rec.ID, rec.IDDil, rec.CreatedAt, rec.UpdatedAt, rec.LastEditor}, vals...)

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert %s: %w", e.Kind(), classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert %s: %w", e.Kind(), err)
	}
	rec.ID = id
	return nil
}

// Update rewrites every column of e, located by its primary key.
func (t *Tx) Update(ctx context.Context, e Entity) error {
	rec := e.Base()
	rec.UpdatedAt = now()
	cols, vals := columns(e)
	query := "UPDATE " + e.Kind().Table() + " SET updated_at = ?, last_editor = COALESCE(NULLIF(?, ''), last_editor)"
	for _, c := range cols {
		query += ", " + c + " = ?"
	}
	query += " WHERE id = ?"
	args := append([]any{rec.UpdatedAt, rec.LastEditor}, vals...)
	args = append(args, rec.ID)

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", e.Kind(), classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(sql.ErrNoRows, e.Kind(), rec.IDDil)
	}
	return nil
}

// Delete removes the row behind e. Link rows go with it through cascades.
func (t *Tx) Delete(ctx context.Context, e Entity) error {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM "+e.Kind().Table()+" WHERE id = ?", e.Base().ID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", e.Kind(), classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(sql.ErrNoRows, e.Kind(), e.Base().IDDil)
	}
	return nil
}

// columns lists the kind specific columns of e and their values.
func columns(e Entity) ([]string, []any) {
	switch v := e.(type) {
	case *Person:
		return []string{"lastname", "firstnames", "birth_date", "birth_city_label", "birth_city_id",
				"personal_information", "professional_information", "comment"},
			[]any{v.Lastname, nullString(v.Firstnames), nullString(v.BirthDate), nullString(v.BirthCityLabel),
				v.BirthCityID, nullString(v.PersonalInformation), nullString(v.ProfessionalInformation),
				nullString(v.Comment)}
	case *Patent:
		return []string{"person_id", "city_label", "city_id", "date_start", "date_end", `"references"`, "comment"},
			[]any{v.PersonID, nullString(v.CityLabel), v.CityID, nullString(v.DateStart), nullString(v.DateEnd),
				nullString(v.References), nullString(v.Comment)}
	case *City:
		return []string{"label", "country_iso_code", "long_lat", "insee_fr_code", "insee_fr_department_code",
				"insee_fr_department_label", "geoname_id", "wikidata_item_id", "dicotopo_item_id",
				"databnf_ark", "viaf_id", "siaf_id"},
			[]any{v.Label, orDefault(v.CountryISOCode, "FR"), nullString(v.LongLat), nullString(v.InseeFrCode),
				orDefault(v.InseeFrDepartmentCode, "DEP_00"), nullString(v.InseeFrDepartmentLabel),
				nullString(v.GeonameID), nullString(v.WikidataItemID), nullString(v.DicotopoItemID),
				nullString(v.DatabnfArk), nullString(v.ViafID), nullString(v.SiafID)}
	case *Address:
		return []string{"label", "city_label", "city_id"},
			[]any{orDefault(v.Label, "inconnue"), nullString(v.CityLabel), v.CityID}
	case *Image:
		return []string{"label", "reference_url", "img_name", "iiif_url"},
			[]any{v.Label, orDefault(v.ReferenceURL, UnknownImageURL), orDefault(v.ImgName, UnknownImageName),
				nullString(v.IIIFURL)}
	case *PatentRelation:
		return []string{"patent_id", "person_id", "person_related_id", "type"},
			[]any{v.PatentID, v.PersonID, v.PersonRelatedID, string(v.Type)}
	case *PatentAddress:
		return []string{"patent_id", "address_id", "date_occupation"},
			[]any{v.PatentID, v.AddressID, nullString(v.DateOccupation)}
	case *PersonAddress:
		return []string{"person_id", "address_id", "date_occupation", "comment"},
			[]any{v.PersonID, v.AddressID, nullString(v.DateOccupation), nullString(v.Comment)}
	case *PatentImage:
		return []string{"patent_id", "image_id", "is_pinned"},
			[]any{v.PatentID, v.ImageID, v.IsPinned}
	}
	panic(fmt.Sprintf("storage: no columns for %T", e))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
