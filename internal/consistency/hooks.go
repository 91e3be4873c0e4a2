package consistency

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/renderinc/dil/internal/dilerr"
	"github.com/renderinc/dil/internal/imagestore"
	"github.com/renderinc/dil/internal/markup"
	"github.com/renderinc/dil/internal/metrics"
	"github.com/renderinc/dil/internal/storage"
	"github.com/renderinc/dil/internal/textnorm"
)

var longLatPattern = regexp.MustCompile(`^\s*-?\d{1,3}(\.\d+)?\s*,\s*-?\d{1,3}(\.\d+)?\s*$`)

func fixMarkup(_ context.Context, _ *storage.Tx, m *Mutation) error {
	if m.Op == OpDelete {
		return nil
	}
	switch v := m.Entity.(type) {
	case *storage.Person:
		v.PersonalInformation = markup.FixEditorArtifact(v.PersonalInformation)
		v.ProfessionalInformation = markup.FixEditorArtifact(v.ProfessionalInformation)
		v.Comment = markup.FixEditorArtifact(v.Comment)
	case *storage.Patent:
		v.References = markup.FixEditorArtifact(v.References)
		v.Comment = markup.FixEditorArtifact(v.Comment)
	}
	return nil
}

func validate(_ context.Context, _ *storage.Tx, m *Mutation) error {
	if m.Op == OpDelete {
		return nil
	}
	switch v := m.Entity.(type) {
	case *storage.Person:
		if strings.TrimSpace(v.Lastname) == "" {
			return dilerr.Validation("person lastname is required")
		}
		return checkDates(map[string]string{"birth_date": v.BirthDate})
	case *storage.Patent:
		return checkDates(map[string]string{"date_start": v.DateStart, "date_end": v.DateEnd})
	case *storage.City:
		if strings.TrimSpace(v.Label) == "" {
			return dilerr.Validation("city label is required")
		}
		if v.LongLat != "" && !longLatPattern.MatchString(v.LongLat) {
			return dilerr.Validation("malformed coordinates %q", v.LongLat)
		}
	case *storage.Image:
		if strings.TrimSpace(v.Label) == "" {
			return dilerr.Validation("image label is required")
		}
	case *storage.PatentRelation:
		if !v.Type.Valid() {
			return dilerr.Validation("unknown relation type %q", v.Type)
		}
	case *storage.PatentAddress:
		return checkDates(map[string]string{"date_occupation": v.DateOccupation})
	case *storage.PersonAddress:
		return checkDates(map[string]string{"date_occupation": v.DateOccupation})
	}
	return nil
}

func checkDates(fields map[string]string) error {
	for name, value := range fields {
		if value != "" && !textnorm.IsDate(value) {
			return dilerr.Validation("%s %q is not a YYYY, YYYY-MM or YYYY-MM-DD date", name, value)
		}
	}
	return nil
}

type reference struct {
	kind storage.Kind
	id   int64
	role string
}

// checkReferences refuses writes pointing at rows that do not exist, before
// the database gets a chance to report a bare constraint failure.
func checkReferences(ctx context.Context, tx *storage.Tx, m *Mutation) error {
	if m.Op == OpDelete {
		return nil
	}
	var refs []reference
	switch v := m.Entity.(type) {
	case *storage.Patent:
		refs = []reference{{storage.KindPerson, v.PersonID, "person"}}
	case *storage.PatentRelation:
		refs = []reference{
			{storage.KindPatent, v.PatentID, "patent"},
			{storage.KindPerson, v.PersonID, "person"},
			{storage.KindPerson, v.PersonRelatedID, "related person"},
		}
	case *storage.PatentAddress:
		refs = []reference{{storage.KindPatent, v.PatentID, "patent"}, {storage.KindAddress, v.AddressID, "address"}}
	case *storage.PersonAddress:
		refs = []reference{{storage.KindPerson, v.PersonID, "person"}, {storage.KindAddress, v.AddressID, "address"}}
	case *storage.PatentImage:
		refs = []reference{{storage.KindPatent, v.PatentID, "patent"}, {storage.KindImage, v.ImageID, "image"}}
	}
	for _, r := range refs {
		ok, err := tx.Exists(ctx, r.kind, r.id)
		if err != nil {
			return fmt.Errorf("check %s %d: %w", r.role, r.id, err)
		}
		if !ok {
			return dilerr.Integrity("%s %s refers to missing %s %d", m.Entity.Kind(), m.Entity.Base().IDDil, r.role, r.id)
		}
	}
	return nil
}

func (e *Enforcer) assignID(ctx context.Context, tx *storage.Tx, m *Mutation) error {
	rec := m.Entity.Base()
	if m.Op != OpInsert || rec.IDDil != "" {
		return nil
	}
	id, err := e.uniqueID(ctx, tx, m.Entity.Kind())
	if err != nil {
		return err
	}
	rec.IDDil = id
	return nil
}

func (e *Enforcer) uniqueID(ctx context.Context, tx *storage.Tx, k storage.Kind) (string, error) {
	return e.ids.Unique(ctx, k.Prefix(), func(ctx context.Context, id string) (bool, error) {
		return tx.IDExists(ctx, k, id)
	})
}

// nameImageFile gives a new image file its canonical name, the image
// identifier plus the extension of its MIME type. The rename is reverted if
// the transaction fails.
func (e *Enforcer) nameImageFile(ctx context.Context, tx *storage.Tx, m *Mutation) error {
	img, ok := m.Entity.(*storage.Image)
	if !ok || m.Op != OpInsert || !img.HasFile() {
		return nil
	}
	ext, err := imagestore.DetectExtension(img.ImgName)
	if err != nil {
		return err
	}
	if img.IDDil != "" && img.ImgName == img.IDDil+ext {
		return nil
	}
	if img.IDDil == "" {
		if img.IDDil, err = e.uniqueID(ctx, tx, storage.KindImage); err != nil {
			return err
		}
	}
	oldName, newName := img.ImgName, img.IDDil+ext
	if err := e.files.Rename(oldName, newName); err != nil {
		return err
	}
	m.OnAbort(func() error { return e.files.Rename(newName, oldName) })
	img.ImgName = newName
	return nil
}

// enforceSinglePin clears every other pin of the patent when a link is
// pinned, inside the same transaction.
func enforceSinglePin(ctx context.Context, tx *storage.Tx, m *Mutation) error {
	link, ok := m.Entity.(*storage.PatentImage)
	if !ok || m.Op == OpDelete || !link.IsPinned {
		return nil
	}
	except := link.ID
	if m.Op == OpInsert {
		except = 0
	}
	_, err := tx.UnpinOthers(ctx, link.PatentID, except)
	return err
}

// syncIndex refreshes the document of the person touched by the mutation.
// Patent references feed the person's content, so patent writes count too,
// and a patent moved to another person refreshes both owners.
func (e *Enforcer) syncIndex(ctx context.Context, m *Mutation) error {
	op := m.Op.String()
	var personIDs []int64
	switch v := m.Entity.(type) {
	case *storage.Person:
		if m.Op == OpDelete {
			err := e.index.Delete(v.IDDil)
			metrics.IndexSync.WithLabelValues(op, result(err)).Inc()
			return err
		}
		personIDs = append(personIDs, v.ID)
	case *storage.Patent:
		op = "patent_" + op
		personIDs = append(personIDs, v.PersonID)
		if prev, ok := m.Previous.(*storage.Patent); ok && prev.PersonID != v.PersonID {
			personIDs = append(personIDs, prev.PersonID)
		}
	default:
		return nil
	}

	var errs []error
	for _, id := range personIDs {
		err := e.reindexPerson(ctx, id)
		metrics.IndexSync.WithLabelValues(op, result(err)).Inc()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Enforcer) reindexPerson(ctx context.Context, personID int64) error {
	src, err := e.source.IndexSourceByID(ctx, personID)
	if errors.Is(err, dilerr.ErrNotFound) {
		// The person went away with its patents.
		return nil
	}
	if err != nil {
		return err
	}
	return e.index.IndexPerson(src)
}

func (e *Enforcer) removeImageFile(_ context.Context, m *Mutation) error {
	img, ok := m.Entity.(*storage.Image)
	if !ok || m.Op != OpDelete || !img.HasFile() {
		return nil
	}
	return e.files.Remove(img.ImgName)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
