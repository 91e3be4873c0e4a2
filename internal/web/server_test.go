package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/dil/internal/logger"
	"github.com/renderinc/dil/internal/query"
	"github.com/renderinc/dil/internal/search"
	"github.com/renderinc/dil/internal/storage"
)

const prefix = "/dil/api"

type stubSearcher map[string]search.Hit

func (s stubSearcher) Search(_ context.Context, name, content string, _ int) (map[string]search.Hit, error) {
	if name+content == "nobody" {
		return map[string]search.Hit{}, nil
	}
	return s, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, pinger Pinger) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := storage.Open(filepath.Join(t.TempDir(), "dil.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	paris := &storage.City{Record: storage.Record{IDDil: "city_dil_paris000"}, Label: "Paris", LongLat: "2.352,48.856"}
	require.NoError(t, tx.Insert(ctx, paris))
	didot := &storage.Person{Record: storage.Record{IDDil: "person_dil_didot000"}, Lastname: "Didot", Firstnames: "Firmin"}
	require.NoError(t, tx.Insert(ctx, didot))
	require.NoError(t, tx.Insert(ctx, &storage.Patent{
		Record:     storage.Record{IDDil: "patent_dil_didot000"},
		PersonID:   didot.ID,
		CityID:     &paris.ID,
		DateStart:  "1850",
		References: "<p>AN F18</p>",
	}))
	require.NoError(t, tx.Commit())

	searcher := stubSearcher{"person_dil_didot000": {Score: 1, Highlight: "<mark>Didot</mark>"}}
	composer := query.New(logger.Nop(), db, searcher, 10)
	if pinger == nil {
		pinger = db
	}
	return NewServer(logger.Nop(), composer, pinger, Options{Prefix: prefix}).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var m Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m.Message
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(t, nil), prefix+"/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DIL API is running", message(t, rec))
}

func TestHealth_DatabaseDown(t *testing.T) {
	rec := get(t, newTestServer(t, stubPinger{err: errors.New("database is locked")}), prefix+"/")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "It seems the server has trouble: database is locked", message(t, rec))
}

func TestPersons(t *testing.T) {
	h := newTestServer(t, nil)

	tests := []struct {
		name    string
		path    string
		status  int
		message string
		items   int
	}{
		{"listing", "/persons", http.StatusOK, "", 1},
		{"search", "/persons?search=didot", http.StatusOK, "", 1},
		{"search without hits", "/persons?search=nobody&mode=names", http.StatusOK, "", 0},
		{"empty listing", "/persons?patent_date_start=1900", http.StatusNotFound, "No printers found", 0},
		{"city filter", "/persons?patent_city_query=city_dil_paris000&all_cities=true", http.StatusOK, "", 1},
		{"bad mode", "/persons?search=didot&mode=everything", http.StatusBadRequest, "", 0},
		{"bad page", "/persons?page=two", http.StatusBadRequest, `page must be an integer, got "two"`, 0},
		{"bad size", "/persons?size=1000", http.StatusBadRequest, "", 0},
		{"bad flag", "/persons?all_cities=maybe", http.StatusBadRequest, "", 0},
		{"bad date", "/persons?patent_date_start=soon", http.StatusBadRequest, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, prefix+tt.path)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				if tt.message != "" {
					assert.Contains(t, message(t, rec), tt.message)
				}
				return
			}
			var page query.Page[query.PrinterItem]
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
			assert.Len(t, page.Items, tt.items)
			assert.Equal(t, tt.items, page.Total)
		})
	}
}

func TestPersons_Highlight(t *testing.T) {
	rec := get(t, newTestServer(t, nil), prefix+"/persons?search=didot&mode=content")

	require.Equal(t, http.StatusOK, rec.Code)
	var page query.Page[query.PrinterItem]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].Highlight)
	assert.Equal(t, "<mark>Didot</mark>", *page.Items[0].Highlight)
}

func TestPerson(t *testing.T) {
	h := newTestServer(t, nil)

	rec := get(t, h, prefix+"/persons/person/person_dil_didot000")
	require.Equal(t, http.StatusOK, rec.Code)
	var out query.PrinterOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Patents, 1)
	assert.Equal(t, "AN F18", out.Patents[0].References)

	rec = get(t, h, prefix+"/persons/person/person_dil_didot000?html=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "<p>AN F18</p>", out.Patents[0].References)

	rec = get(t, h, prefix+"/persons/person/person_dil_ghost000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Printer with id person_dil_ghost000 not found", message(t, rec))

	rec = get(t, h, prefix+"/persons/person/person_dil_ghost000/images")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatentRoutes(t *testing.T) {
	h := newTestServer(t, nil)

	rec := get(t, h, prefix+"/patents")
	require.Equal(t, http.StatusOK, rec.Code)
	var page query.Page[query.PatentItem]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	rec = get(t, h, prefix+"/patents?page=3")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No patents found", message(t, rec))

	rec = get(t, h, prefix+"/patents/patent/patent_dil_didot000")
	require.Equal(t, http.StatusOK, rec.Code)
	var patent query.PatentOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patent))
	assert.Equal(t, "person_dil_didot000", patent.PersonID)

	rec = get(t, h, prefix+"/patents/patent/patent_dil_ghost000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Patent with id patent_dil_ghost000 not found", message(t, rec))
}

func TestReferentialRoutes(t *testing.T) {
	h := newTestServer(t, nil)

	rec := get(t, h, prefix+"/referential/cities")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, prefix+"/referential/cities/city/city_dil_paris000")
	require.Equal(t, http.StatusOK, rec.Code)
	var city query.CityOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &city))
	assert.Equal(t, "Paris", city.Label)

	rec = get(t, h, prefix+"/referential/cities/city/city_dil_ghost000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "City with id city_dil_ghost000 not found", message(t, rec))

	rec = get(t, h, prefix+"/referential/addresses")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No addresses found", message(t, rec))

	rec = get(t, h, prefix+"/infos")
	require.Equal(t, http.StatusOK, rec.Code)
	var infos query.Infos
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	assert.Equal(t, query.Infos{Persons: 1, Patents: 1, Cities: 1}, infos)
}

func TestMapPlaces(t *testing.T) {
	h := newTestServer(t, nil)

	rec := get(t, h, prefix+"/map/places")
	require.Equal(t, http.StatusOK, rec.Code)
	var places []query.PlaceOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &places))
	require.Len(t, places, 1)
	assert.Equal(t, "Paris", places[0].Label)

	rec = get(t, h, prefix+"/map/places?patent_date_start=1900")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, prefix+"/", nil)
	req.Header.Set("Origin", "https://dil.example.org")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
}
