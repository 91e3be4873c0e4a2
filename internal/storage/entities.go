package storage

import (
	"time"

	"github.com/renderinc/dil/internal/dilerr"
)

// Kind names one of the persisted entity kinds. The set is closed.
type Kind int

const (
	KindPerson Kind = iota
	KindPatent
	KindCity
	KindAddress
	KindImage
	KindPatentRelation
	KindPatentAddress
	KindPersonAddress
	KindPatentImage
)

var kindMeta = [...]struct {
	name, table, prefix string
}{
	KindPerson:         {"person", "persons", "person"},
	KindPatent:         {"patent", "patents", "patent"},
	KindCity:           {"city", "cities", "city"},
	KindAddress:        {"address", "addresses", "address"},
	KindImage:          {"image", "images", "img"},
	KindPatentRelation: {"patent_relation", "patent_has_relations", "patent_relation"},
	KindPatentAddress:  {"patent_address", "patent_has_addresses", "patent_address"},
	KindPersonAddress:  {"person_address", "person_has_addresses", "person_address"},
	KindPatentImage:    {"patent_image", "patent_has_images", "patent_image"},
}

// Kinds lists every kind in insertion order (parents before links).
var Kinds = []Kind{
	KindCity, KindAddress, KindPerson, KindPatent, KindImage,
	KindPatentRelation, KindPatentAddress, KindPersonAddress, KindPatentImage,
}

func (k Kind) String() string { return kindMeta[k].name }

// Table is the relational table backing k.
func (k Kind) Table() string { return kindMeta[k].table }

// Prefix is the identifier prefix for rows of kind k.
func (k Kind) Prefix() string { return kindMeta[k].prefix }

// ParseKind resolves a kind by name ("person", "patent_image", ...).
func ParseKind(name string) (Kind, error) {
	for k, m := range kindMeta {
		if m.name == name {
			return Kind(k), nil
		}
	}
	return 0, dilerr.Validation("unknown entity kind %q", name)
}

// Record holds the columns every table shares.
type Record struct {
	ID         int64     `db:"id"`
	IDDil      string    `db:"_id_dil"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
	LastEditor string    `db:"last_editor"`
}

func (r *Record) Base() *Record { return r }

// Entity is implemented by every persisted struct.
type Entity interface {
	Base() *Record
	Kind() Kind
}

// Person is a printer or lithographer. Rich text fields hold editor HTML.
type Person struct {
	Record
	Lastname                string `db:"lastname"`
	Firstnames              string `db:"firstnames"`
	BirthDate               string `db:"birth_date"`
	BirthCityLabel          string `db:"birth_city_label"`
	BirthCityID             *int64 `db:"birth_city_id"`
	PersonalInformation     string `db:"personal_information"`
	ProfessionalInformation string `db:"professional_information"`
	Comment                 string `db:"comment"`

	// BirthCityIDDil is filled on reads from the joined city.
	BirthCityIDDil string
}

// Patent is a professional licence granted to a person.
type Patent struct {
	Record
	PersonID   int64  `db:"person_id"`
	CityLabel  string `db:"city_label"`
	CityID     *int64 `db:"city_id"`
	DateStart  string `db:"date_start"`
	DateEnd    string `db:"date_end"`
	References string `db:"references"`
	Comment    string `db:"comment"`

	CityIDDil string
}

type City struct {
	Record
	Label                  string `db:"label"`
	CountryISOCode         string `db:"country_iso_code"`
	LongLat                string `db:"long_lat"`
	InseeFrCode            string `db:"insee_fr_code"`
	InseeFrDepartmentCode  string `db:"insee_fr_department_code"`
	InseeFrDepartmentLabel string `db:"insee_fr_department_label"`
	GeonameID              string `db:"geoname_id"`
	WikidataItemID         string `db:"wikidata_item_id"`
	DicotopoItemID         string `db:"dicotopo_item_id"`
	DatabnfArk             string `db:"databnf_ark"`
	ViafID                 string `db:"viaf_id"`
	SiafID                 string `db:"siaf_id"`
}

type Address struct {
	Record
	Label     string `db:"label"`
	CityLabel string `db:"city_label"`
	CityID    *int64 `db:"city_id"`

	CityIDDil string
}

const (
	UnknownImageName = "unknown.jpg"
	UnknownImageURL  = "unknown_url"
)

// Image is a scanned document. ImgName is the file in the image store;
// UnknownImageName means there is none.
type Image struct {
	Record
	Label        string `db:"label"`
	ReferenceURL string `db:"reference_url"`
	ImgName      string `db:"img_name"`
	IIIFURL      string `db:"iiif_url"`
}

// HasFile reports whether the image points at a stored file.
func (i *Image) HasFile() bool {
	return i.ImgName != "" && i.ImgName != UnknownImageName
}

// RelationType qualifies the link between a patent and another person.
type RelationType string

const (
	RelationPartner     RelationType = "PARTNER"
	RelationSponsor     RelationType = "SPONSOR"
	RelationSuccessor   RelationType = "SUCCESSOR"
	RelationPredecessor RelationType = "PREDECESSOR"
)

var relationLabels = map[RelationType]string{
	RelationPartner:     "associé",
	RelationSponsor:     "parrain",
	RelationSuccessor:   "successeur",
	RelationPredecessor: "prédécesseur",
}

// Label is the French label shown to readers.
func (t RelationType) Label() string { return relationLabels[t] }

func (t RelationType) Valid() bool {
	_, ok := relationLabels[t]
	return ok
}

// ParseRelationType accepts either the constant name or its label.
func ParseRelationType(s string) (RelationType, error) {
	if t := RelationType(s); t.Valid() {
		return t, nil
	}
	for t, label := range relationLabels {
		if label == s {
			return t, nil
		}
	}
	return "", dilerr.Validation("unknown relation type %q", s)
}

type PatentRelation struct {
	Record
	PatentID        int64        `db:"patent_id"`
	PersonID        int64        `db:"person_id"`
	PersonRelatedID int64        `db:"person_related_id"`
	Type            RelationType `db:"type"`
}

type PatentAddress struct {
	Record
	PatentID       int64  `db:"patent_id"`
	AddressID      int64  `db:"address_id"`
	DateOccupation string `db:"date_occupation"`
}

type PersonAddress struct {
	Record
	PersonID       int64  `db:"person_id"`
	AddressID      int64  `db:"address_id"`
	DateOccupation string `db:"date_occupation"`
	Comment        string `db:"comment"`
}

// PatentImage links an image to a patent. At most one link per patent is
// pinned.
type PatentImage struct {
	Record
	PatentID int64 `db:"patent_id"`
	ImageID  int64 `db:"image_id"`
	IsPinned bool  `db:"is_pinned"`
}

func (*Person) Kind() Kind         { return KindPerson }
func (*Patent) Kind() Kind         { return KindPatent }
func (*City) Kind() Kind           { return KindCity }
func (*Address) Kind() Kind        { return KindAddress }
func (*Image) Kind() Kind          { return KindImage }
func (*PatentRelation) Kind() Kind { return KindPatentRelation }
func (*PatentAddress) Kind() Kind  { return KindPatentAddress }
func (*PersonAddress) Kind() Kind  { return KindPersonAddress }
func (*PatentImage) Kind() Kind    { return KindPatentImage }
