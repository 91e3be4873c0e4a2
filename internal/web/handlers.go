package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/renderinc/dil/internal/dilerr"
	"github.com/renderinc/dil/internal/query"
)

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		s.respondError(c, err, "")
		return
	}
	respondMessage(c, http.StatusOK, "DIL API is running")
}

func (s *Server) handleInfos(c *gin.Context) {
	infos, err := s.composer.Infos(c.Request.Context())
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	respondOK(c, infos)
}

func (s *Server) handlePersons(c *gin.Context) {
	page, size, ok := s.pagination(c)
	if !ok {
		return
	}
	allCities, ok := s.boolParam(c, "all_cities")
	if !ok {
		return
	}
	exact, ok := s.boolParam(c, "exact_patent_date_start")
	if !ok {
		return
	}
	params := query.PrinterParams{
		Search:    c.Query("search"),
		Mode:      c.Query("mode"),
		CityIDs:   c.QueryArray("patent_city_query"),
		AllCities: allCities,
		DateStart: c.Query("patent_date_start"),
		ExactDate: exact,
		Sort:      c.Query("sort"),
		Page:      page,
		Size:      size,
	}
	result, err := s.composer.ReadPrinters(c.Request.Context(), params)
	if err != nil {
		s.respondError(c, err, "No printers found")
		return
	}
	// A search that matched nobody is an empty page, not a missing resource.
	if len(result.Items) == 0 && strings.TrimSpace(params.Search) == "" {
		respondMessage(c, http.StatusNotFound, "No printers found")
		return
	}
	respondOK(c, result)
}

func (s *Server) handlePerson(c *gin.Context) {
	id := c.Param("id")
	html, ok := s.boolParam(c, "html")
	if !ok {
		return
	}
	printer, err := s.composer.ReadPrinter(c.Request.Context(), id, html)
	if err != nil {
		s.respondError(c, err, "Printer with id "+id+" not found")
		return
	}
	respondOK(c, printer)
}

func (s *Server) handlePersonImages(c *gin.Context) {
	id := c.Param("id")
	images, err := s.composer.PersonImages(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, "Printer with id "+id+" not found")
		return
	}
	respondOK(c, images)
}

func (s *Server) handlePatents(c *gin.Context) {
	page, size, ok := s.pagination(c)
	if !ok {
		return
	}
	result, err := s.composer.ListPatents(c.Request.Context(), page, size)
	respondPage(s, c, result, err, "No patents found")
}

func (s *Server) handlePatent(c *gin.Context) {
	id := c.Param("id")
	html, ok := s.boolParam(c, "html")
	if !ok {
		return
	}
	patent, err := s.composer.ReadPatent(c.Request.Context(), id, html)
	if err != nil {
		s.respondError(c, err, "Patent with id "+id+" not found")
		return
	}
	respondOK(c, patent)
}

func (s *Server) handleCities(c *gin.Context) {
	page, size, ok := s.pagination(c)
	if !ok {
		return
	}
	result, err := s.composer.ListCities(c.Request.Context(), page, size)
	respondPage(s, c, result, err, "No cities found")
}

func (s *Server) handleCity(c *gin.Context) {
	id := c.Param("id")
	city, err := s.composer.ReadCity(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, "City with id "+id+" not found")
		return
	}
	respondOK(c, city)
}

func (s *Server) handleAddresses(c *gin.Context) {
	page, size, ok := s.pagination(c)
	if !ok {
		return
	}
	result, err := s.composer.ListAddresses(c.Request.Context(), page, size)
	respondPage(s, c, result, err, "No addresses found")
}

func (s *Server) handleAddress(c *gin.Context) {
	id := c.Param("id")
	address, err := s.composer.ReadAddress(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, "Address with id "+id+" not found")
		return
	}
	respondOK(c, address)
}

func (s *Server) handlePlaces(c *gin.Context) {
	exact, ok := s.boolParam(c, "exact_patent_date_start")
	if !ok {
		return
	}
	places, err := s.composer.MapPlaces(c.Request.Context(), query.PlaceParams{
		CityIDs:   c.QueryArray("patent_city_query"),
		DateStart: c.Query("patent_date_start"),
		ExactDate: exact,
	})
	if err != nil {
		s.respondError(c, err, "No places found")
		return
	}
	respondOK(c, places)
}

// respondPage writes a listing, or 404 with empty when it has no items.
func respondPage[T any](s *Server, c *gin.Context, page *query.Page[T], err error, empty string) {
	if err != nil {
		s.respondError(c, err, empty)
		return
	}
	if len(page.Items) == 0 {
		respondMessage(c, http.StatusNotFound, "%s", empty)
		return
	}
	respondOK(c, page)
}

func (s *Server) pagination(c *gin.Context) (page, size int, ok bool) {
	if page, ok = s.intParam(c, "page"); !ok {
		return 0, 0, false
	}
	if size, ok = s.intParam(c, "size"); !ok {
		return 0, 0, false
	}
	return page, size, true
}

// intParam reads an optional integer query parameter; 0 when absent.
func (s *Server) intParam(c *gin.Context, name string) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		s.respondError(c, dilerr.Validation("%s must be an integer, got %q", name, v), "")
		return 0, false
	}
	return n, true
}

// boolParam reads an optional boolean query parameter; false when absent.
func (s *Server) boolParam(c *gin.Context, name string) (bool, bool) {
	v := c.Query(name)
	if v == "" {
		return false, true
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		s.respondError(c, dilerr.Validation("%s must be true or false, got %q", name, v), "")
		return false, false
	}
	return b, true
}
