package query

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/renderinc/dil/internal/storage"
	"github.com/renderinc/dil/internal/textnorm"
)

type PatentItem struct {
	ID        string `json:"_id_dil"`
	CityLabel string `json:"city_label"`
	DateStart string `json:"date_start"`
	DateEnd   string `json:"date_end"`
}

type CityOut struct {
	ID                     string `json:"_id_dil"`
	Label                  string `json:"label"`
	CountryISOCode         string `json:"country_iso_code"`
	LongLat                string `json:"long_lat"`
	InseeFrCode            string `json:"insee_fr_code"`
	InseeFrDepartmentCode  string `json:"insee_fr_department_code"`
	InseeFrDepartmentLabel string `json:"insee_fr_department_label"`
	GeonameID              string `json:"geoname_id"`
	WikidataItemID         string `json:"wikidata_item_id"`
	DicotopoItemID         string `json:"dicotopo_item_id"`
	DatabnfArk             string `json:"databnf_ark"`
	ViafID                 string `json:"viaf_id"`
	SiafID                 string `json:"siaf_id"`
}

// list pages through the rows of kind k, converting each with conv.
func list[T any](ctx context.Context, c *Composer, k storage.Kind, page, size int, conv func(storage.Entity) T) (*Page[T], error) {
	page, size, err := c.pagination(page, size)
	if err != nil {
		return nil, err
	}
	rows, total, err := c.db.List(ctx, k, size, (page-1)*size)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(rows))
	for _, e := range rows {
		items = append(items, conv(e))
	}
	return newPage(items, total, page, size), nil
}

// ListPatents pages through every patent.
func (c *Composer) ListPatents(ctx context.Context, page, size int) (*Page[PatentItem], error) {
	return list(ctx, c, storage.KindPatent, page, size, func(e storage.Entity) PatentItem {
		p := e.(*storage.Patent)
		return PatentItem{ID: p.IDDil, CityLabel: p.CityLabel, DateStart: p.DateStart, DateEnd: p.DateEnd}
	})
}

// ListCities pages through the cities.
func (c *Composer) ListCities(ctx context.Context, page, size int) (*Page[CityOut], error) {
	return list(ctx, c, storage.KindCity, page, size, func(e storage.Entity) CityOut {
		return cityOut(e.(*storage.City))
	})
}

// ReadCity returns one city by its public identifier.
func (c *Composer) ReadCity(ctx context.Context, id string) (*CityOut, error) {
	e, err := c.db.Get(ctx, storage.KindCity, id)
	if err != nil {
		return nil, err
	}
	out := cityOut(e.(*storage.City))
	return &out, nil
}

func cityOut(c *storage.City) CityOut {
	return CityOut{
		ID:                     c.IDDil,
		Label:                  c.Label,
		CountryISOCode:         c.CountryISOCode,
		LongLat:                c.LongLat,
		InseeFrCode:            c.InseeFrCode,
		InseeFrDepartmentCode:  c.InseeFrDepartmentCode,
		InseeFrDepartmentLabel: c.InseeFrDepartmentLabel,
		GeonameID:              c.GeonameID,
		WikidataItemID:         c.WikidataItemID,
		DicotopoItemID:         c.DicotopoItemID,
		DatabnfArk:             c.DatabnfArk,
		ViafID:                 c.ViafID,
		SiafID:                 c.SiafID,
	}
}

// ListAddresses pages through the addresses.
func (c *Composer) ListAddresses(ctx context.Context, page, size int) (*Page[AddressOut], error) {
	return list(ctx, c, storage.KindAddress, page, size, func(e storage.Entity) AddressOut {
		return addressOut(e.(*storage.Address))
	})
}

// ReadAddress returns one address by its public identifier.
func (c *Composer) ReadAddress(ctx context.Context, id string) (*AddressOut, error) {
	e, err := c.db.Get(ctx, storage.KindAddress, id)
	if err != nil {
		return nil, err
	}
	out := addressOut(e.(*storage.Address))
	return &out, nil
}

func addressOut(a *storage.Address) AddressOut {
	return AddressOut{ID: a.IDDil, Label: a.Label, CityLabel: a.CityLabel, CityID: a.CityIDDil}
}

// Infos counts the main records.
type Infos struct {
	Persons   int `json:"persons"`
	Patents   int `json:"patents"`
	Cities    int `json:"cities"`
	Addresses int `json:"addresses"`
}

// Infos returns the record counts.
func (c *Composer) Infos(ctx context.Context) (*Infos, error) {
	var out Infos
	g, gctx := errgroup.WithContext(ctx)
	for k, dst := range map[storage.Kind]*int{
		storage.KindPerson:  &out.Persons,
		storage.KindPatent:  &out.Patents,
		storage.KindCity:    &out.Cities,
		storage.KindAddress: &out.Addresses,
	} {
		g.Go(func() error {
			n, err := c.db.Count(gctx, k)
			*dst = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlaceParams filter the map the same way as the printer listing.
type PlaceParams struct {
	CityIDs   []string
	DateStart string
	ExactDate bool
}

type PlaceOut struct {
	CityID  string        `json:"city_id"`
	Label   string        `json:"label"`
	LongLat string        `json:"long_lat"`
	Persons []PrinterItem `json:"persons"`
}

// MapPlaces lists the geolocated cities with the persons patented there.
func (c *Composer) MapPlaces(ctx context.Context, p PlaceParams) ([]PlaceOut, error) {
	period, err := parsePeriod(p.DateStart)
	if err != nil {
		return nil, err
	}
	places, err := c.db.MapPlaces(ctx, storage.PlaceFilter{
		CityIDDils:  compact(p.CityIDs),
		Period:      period,
		ExactPeriod: p.ExactDate,
	})
	if err != nil {
		return nil, err
	}
	out := make([]PlaceOut, 0, len(places))
	for _, pl := range places {
		po := PlaceOut{CityID: pl.CityIDDil, Label: pl.Label, LongLat: pl.LongLat}
		for _, r := range pl.Persons {
			po.Persons = append(po.Persons, PrinterItem{
				ID:           r.IDDil,
				Lastname:     r.Lastname,
				Firstnames:   textnorm.Firstnames(r.Firstnames),
				TotalPatents: r.TotalPatents,
			})
		}
		out = append(out, po)
	}
	return out, nil
}
