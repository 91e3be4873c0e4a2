package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// PersonByIDDil loads a person by public identifier.
func (d *DB) PersonByIDDil(ctx context.Context, idDil string) (*Person, error) {
	e, err := getEntity(ctx, d.db, KindPerson, idDil)
	if err != nil {
		return nil, err
	}
	return e.(*Person), nil
}

// PatentByIDDil loads a patent by public identifier.
func (d *DB) PatentByIDDil(ctx context.Context, idDil string) (*Patent, error) {
	e, err := getEntity(ctx, d.db, KindPatent, idDil)
	if err != nil {
		return nil, err
	}
	return e.(*Patent), nil
}

// PersonByID loads a person by primary key.
func (d *DB) PersonByID(ctx context.Context, id int64) (*Person, error) {
	e, err := getEntityByID(ctx, d.db, KindPerson, id)
	if err != nil {
		return nil, err
	}
	return e.(*Person), nil
}

// PatentsByPerson returns the patents of a person, oldest first.
func (d *DB) PatentsByPerson(ctx context.Context, personID int64) ([]*Patent, error) {
	rows, err := d.db.QueryContext(ctx,
		patentSelect+` WHERE pa.person_id = ? ORDER BY dil_date_lo(COALESCE(pa.date_start, '')), pa.id`, personID)
	if err != nil {
		return nil, fmt.Errorf("query patents: %w", err)
	}
	defer rows.Close()

	var patents []*Patent
	for rows.Next() {
		p, err := scanPatent(rows)
		if err != nil {
			return nil, err
		}
		patents = append(patents, p)
	}
	return patents, rows.Err()
}

// AddressLink is an address seen through a patent or person link.
type AddressLink struct {
	Address
	LinkIDDil      string
	DateOccupation string
	Comment        string
}

// PatentAddresses lists the professional addresses of a patent.
func (d *DB) PatentAddresses(ctx context.Context, patentID int64) ([]*AddressLink, error) {
	return d.addressLinks(ctx, `
		SELECT a.id, a._id_dil, a.created_at, a.updated_at, a.last_editor,
			a.label, a.city_label, a.city_id, c._id_dil, l._id_dil, l.date_occupation, NULL
		FROM patent_has_addresses l
		JOIN addresses a ON a.id = l.address_id
		LEFT JOIN cities c ON c.id = a.city_id
		WHERE l.patent_id = ?
		ORDER BY l.date_occupation, l.id`, patentID)
}

// PersonAddresses lists the personal addresses of a person.
func (d *DB) PersonAddresses(ctx context.Context, personID int64) ([]*AddressLink, error) {
	return d.addressLinks(ctx, `
		SELECT a.id, a._id_dil, a.created_at, a.updated_at, a.last_editor,
			a.label, a.city_label, a.city_id, c._id_dil, l._id_dil, l.date_occupation, l.comment
		FROM person_has_addresses l
		JOIN addresses a ON a.id = l.address_id
		LEFT JOIN cities c ON c.id = a.city_id
		WHERE l.person_id = ?
		ORDER BY l.date_occupation, l.id`, personID)
}

func (d *DB) addressLinks(ctx context.Context, query string, id int64) ([]*AddressLink, error) {
	rows, err := d.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	var links []*AddressLink
	for rows.Next() {
		l := &AddressLink{}
		dest := append(l.fields(), &l.Label, text{&l.CityLabel}, &l.CityID, text{&l.CityIDDil},
			&l.LinkIDDil, text{&l.DateOccupation}, text{&l.Comment})
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// RelationLink is a patent relation with the related person resolved.
type RelationLink struct {
	IDDil            string
	Type             RelationType
	PersonIDDil      string
	PersonLastname   string
	PersonFirstnames string
}

// PatentRelations lists the persons related to a patent.
func (d *DB) PatentRelations(ctx context.Context, patentID int64) ([]*RelationLink, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT r._id_dil, r.type, p._id_dil, p.lastname, p.firstnames
		FROM patent_has_relations r
		JOIN persons p ON p.id = r.person_related_id
		WHERE r.patent_id = ?
		ORDER BY r.id`, patentID)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	var links []*RelationLink
	for rows.Next() {
		l := &RelationLink{}
		if err := rows.Scan(&l.IDDil, &l.Type, &l.PersonIDDil, &l.PersonLastname, text{&l.PersonFirstnames}); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ImageLink is an image attached to a patent.
type ImageLink struct {
	Image
	PatentIDDil string
	LinkIDDil   string
	IsPinned    bool
}

// PersonImages lists the images attached to any patent of a person, in
// patent order.
func (d *DB) PersonImages(ctx context.Context, personID int64) ([]*ImageLink, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT i.id, i._id_dil, i.created_at, i.updated_at, i.last_editor,
			i.label, i.reference_url, i.img_name, i.iiif_url,
			pa._id_dil, l._id_dil, l.is_pinned
		FROM patent_has_images l
		JOIN images i ON i.id = l.image_id
		JOIN patents pa ON pa.id = l.patent_id
		WHERE pa.person_id = ?
		ORDER BY dil_date_lo(COALESCE(pa.date_start, '')), pa.id, l.id`, personID)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	var links []*ImageLink
	for rows.Next() {
		l := &ImageLink{}
		dest := append(l.fields(), &l.Label, text{&l.ReferenceURL}, text{&l.ImgName}, text{&l.IIIFURL},
			&l.PatentIDDil, &l.LinkIDDil, &l.IsPinned)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// PinnedImages returns the pinned image links of a patent. The consistency
// rules keep this at zero or one element.
func (d *DB) PinnedImages(ctx context.Context, patentID int64) ([]*PatentImage, error) {
	rows, err := d.db.QueryContext(ctx, patentImageSelect+` WHERE l.patent_id = ? AND l.is_pinned = 1`, patentID)
	if err != nil {
		return nil, fmt.Errorf("query pinned images: %w", err)
	}
	defer rows.Close()

	var links []*PatentImage
	for rows.Next() {
		l, err := scanPatentImage(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// List returns one page of rows of kind k ordered by primary key, with the
// total row count.
func (d *DB) List(ctx context.Context, k Kind, limit, offset int) ([]Entity, int, error) {
	total, err := d.Count(ctx, k)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", k, err)
	}
	sel := selects[k]
	rows, err := d.db.QueryContext(ctx, sel.query+" ORDER BY "+sel.alias+".id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", k, err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		e, err := scanEntity(k, rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// IndexSource is everything the search index needs about one person.
type IndexSource struct {
	PersonID                int64
	IDDil                   string
	Lastname                string
	Firstnames              string
	PersonalInformation     string
	ProfessionalInformation string
	References              []string
}

const indexSourceQuery = `
	SELECT p.id, p._id_dil, p.lastname, p.firstnames, p.personal_information,
		p.professional_information, pa."references"
	FROM persons p
	LEFT JOIN patents pa ON pa.person_id = p.id`

// IndexSourceByID gathers the indexable text of one person.
func (d *DB) IndexSourceByID(ctx context.Context, personID int64) (*IndexSource, error) {
	rows, err := d.db.QueryContext(ctx, indexSourceQuery+` WHERE p.id = ? ORDER BY pa.id`, personID)
	if err != nil {
		return nil, fmt.Errorf("query index source: %w", err)
	}
	sources, err := collectIndexSources(rows)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, notFound(sql.ErrNoRows, KindPerson, personID)
	}
	return sources[0], nil
}

// IndexSources gathers the indexable text of every person.
func (d *DB) IndexSources(ctx context.Context) ([]*IndexSource, error) {
	rows, err := d.db.QueryContext(ctx, indexSourceQuery+` ORDER BY p.id, pa.id`)
	if err != nil {
		return nil, fmt.Errorf("query index sources: %w", err)
	}
	return collectIndexSources(rows)
}

// collectIndexSources folds the person x patent rows, which arrive grouped
// by person, into one source per person.
func collectIndexSources(rows *sql.Rows) ([]*IndexSource, error) {
	defer rows.Close()

	var (
		sources []*IndexSource
		cur     *IndexSource
	)
	for rows.Next() {
		var (
			id                            int64
			idDil, lastname               string
			firstnames, personal, profess string
			ref                           sql.NullString
		)
		if err := rows.Scan(&id, &idDil, &lastname, text{&firstnames}, text{&personal}, text{&profess}, &ref); err != nil {
			return nil, err
		}
		if cur == nil || cur.PersonID != id {
			cur = &IndexSource{
				PersonID:                id,
				IDDil:                   idDil,
				Lastname:                lastname,
				Firstnames:              firstnames,
				PersonalInformation:     personal,
				ProfessionalInformation: profess,
			}
			sources = append(sources, cur)
		}
		if ref.Valid && ref.String != "" {
			cur.References = append(cur.References, ref.String)
		}
	}
	return sources, rows.Err()
}
