package query

import (
	"context"

	"github.com/renderinc/dil/internal/markup"
	"github.com/renderinc/dil/internal/storage"
	"github.com/renderinc/dil/internal/textnorm"
)

type AddressOut struct {
	ID             string `json:"_id_dil"`
	Label          string `json:"label"`
	CityLabel      string `json:"city_label"`
	CityID         string `json:"city_id"`
	DateOccupation string `json:"date_occupation,omitempty"`
}

type RelationOut struct {
	ID         string `json:"_id_dil"`
	Lastname   string `json:"lastname"`
	Firstnames string `json:"firstnames"`
	Type       string `json:"type"`
}

type ImageOut struct {
	ImageID      string `json:"image_id"`
	LinkID       string `json:"patent_image_id"`
	Label        string `json:"label"`
	ReferenceURL string `json:"reference_url"`
	ImgName      string `json:"img_name"`
	IIIFURL      string `json:"iiif_url"`
	IsPinned     bool   `json:"is_pinned"`
}

type PatentOut struct {
	ID                    string        `json:"_id_dil"`
	PersonID              string        `json:"person_id,omitempty"`
	CityLabel             string        `json:"city_label"`
	CityID                string        `json:"city_id"`
	DateStart             string        `json:"date_start"`
	DateEnd               string        `json:"date_end"`
	References            string        `json:"references"`
	ProfessionalAddresses []AddressOut  `json:"professional_addresses"`
	PatentRelations       []RelationOut `json:"patent_relations"`
}

type PrinterOut struct {
	ID                      string       `json:"_id_dil"`
	Lastname                string       `json:"lastname"`
	Firstnames              string       `json:"firstnames"`
	BirthDate               string       `json:"birth_date"`
	BirthCityLabel          string       `json:"birth_city_label"`
	BirthCityID             string       `json:"birth_city_id"`
	PersonalInformation     string       `json:"personal_information"`
	ProfessionalInformation string       `json:"professional_information"`
	PersonalAddresses       []AddressOut `json:"personal_addresses"`
	Patents                 []PatentOut  `json:"patents"`
}

// richText returns s as stored when html is set, as plain text otherwise.
func richText(s string, html bool) string {
	if html {
		return s
	}
	return markup.StripToPlainText(s)
}

// ReadPrinter assembles a person with its patents, their addresses and
// relations, and its personal addresses.
func (c *Composer) ReadPrinter(ctx context.Context, id string, html bool) (*PrinterOut, error) {
	person, err := c.db.PersonByIDDil(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &PrinterOut{
		ID:                      person.IDDil,
		Lastname:                person.Lastname,
		Firstnames:              textnorm.Firstnames(person.Firstnames),
		BirthDate:               person.BirthDate,
		BirthCityLabel:          person.BirthCityLabel,
		BirthCityID:             person.BirthCityIDDil,
		PersonalInformation:     richText(person.PersonalInformation, html),
		ProfessionalInformation: richText(person.ProfessionalInformation, html),
		PersonalAddresses:       []AddressOut{},
		Patents:                 []PatentOut{},
	}

	addresses, err := c.db.PersonAddresses(ctx, person.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range addresses {
		out.PersonalAddresses = append(out.PersonalAddresses, addressLinkOut(a))
	}

	patents, err := c.db.PatentsByPerson(ctx, person.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range patents {
		po, err := c.patentOut(ctx, p, html)
		if err != nil {
			return nil, err
		}
		out.Patents = append(out.Patents, *po)
	}
	return out, nil
}

// ReadPatent assembles one patent with its addresses and relations.
func (c *Composer) ReadPatent(ctx context.Context, id string, html bool) (*PatentOut, error) {
	patent, err := c.db.PatentByIDDil(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := c.patentOut(ctx, patent, html)
	if err != nil {
		return nil, err
	}
	owner, err := c.db.PersonByID(ctx, patent.PersonID)
	if err != nil {
		return nil, err
	}
	out.PersonID = owner.IDDil
	return out, nil
}

func (c *Composer) patentOut(ctx context.Context, p *storage.Patent, html bool) (*PatentOut, error) {
	out := &PatentOut{
		ID:                    p.IDDil,
		CityLabel:             p.CityLabel,
		CityID:                p.CityIDDil,
		DateStart:             p.DateStart,
		DateEnd:               p.DateEnd,
		References:            richText(p.References, html),
		ProfessionalAddresses: []AddressOut{},
		PatentRelations:       []RelationOut{},
	}
	addresses, err := c.db.PatentAddresses(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range addresses {
		out.ProfessionalAddresses = append(out.ProfessionalAddresses, addressLinkOut(a))
	}
	relations, err := c.db.PatentRelations(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range relations {
		out.PatentRelations = append(out.PatentRelations, RelationOut{
			ID:         r.PersonIDDil,
			Lastname:   r.PersonLastname,
			Firstnames: textnorm.Firstnames(r.PersonFirstnames),
			Type:       r.Type.Label(),
		})
	}
	return out, nil
}

func addressLinkOut(a *storage.AddressLink) AddressOut {
	return AddressOut{
		ID:             a.IDDil,
		Label:          a.Label,
		CityLabel:      a.CityLabel,
		CityID:         a.CityIDDil,
		DateOccupation: a.DateOccupation,
	}
}

type PatentImagesOut struct {
	PatentID string     `json:"patent_id"`
	Images   []ImageOut `json:"images"`
}

// PersonImagesOut lists the images of a person's patents, with the pinned
// ones gathered apart.
type PersonImagesOut struct {
	PersonID          string            `json:"person_id"`
	PatentImages      []PatentImagesOut `json:"patent_images"`
	ImagesPinned      []ImageOut        `json:"images_pinned"`
	TotalImages       int               `json:"total_images"`
	TotalImagesPinned int               `json:"total_images_pinned"`
}

// PersonImages groups the images of a person by patent. Patents without
// images are listed with an empty set.
func (c *Composer) PersonImages(ctx context.Context, id string) (*PersonImagesOut, error) {
	person, err := c.db.PersonByIDDil(ctx, id)
	if err != nil {
		return nil, err
	}
	patents, err := c.db.PatentsByPerson(ctx, person.ID)
	if err != nil {
		return nil, err
	}
	links, err := c.db.PersonImages(ctx, person.ID)
	if err != nil {
		return nil, err
	}

	byPatent := make(map[string][]ImageOut, len(patents))
	for _, l := range links {
		byPatent[l.PatentIDDil] = append(byPatent[l.PatentIDDil], ImageOut{
			ImageID:      l.IDDil,
			LinkID:       l.LinkIDDil,
			Label:        l.Label,
			ReferenceURL: l.ReferenceURL,
			ImgName:      l.ImgName,
			IIIFURL:      l.IIIFURL,
			IsPinned:     l.IsPinned,
		})
	}

	out := &PersonImagesOut{
		PersonID:     person.IDDil,
		PatentImages: make([]PatentImagesOut, 0, len(patents)),
		ImagesPinned: []ImageOut{},
	}
	for _, p := range patents {
		images := byPatent[p.IDDil]
		if images == nil {
			images = []ImageOut{}
		}
		for _, img := range images {
			if img.IsPinned {
				out.ImagesPinned = append(out.ImagesPinned, img)
			}
		}
		out.TotalImages += len(images)
		out.PatentImages = append(out.PatentImages, PatentImagesOut{PatentID: p.IDDil, Images: images})
	}
	out.TotalImagesPinned = len(out.ImagesPinned)
	return out, nil
}
