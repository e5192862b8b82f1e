// serialize.go: response shapes and query parsing shared by the route files.
//
// Every entity response carries its stored fields plus a nested image object
// of viewer URLs computed on read. Cropped entities (lines, characters) render
// regions against their parent page's image.
package api

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/printprob/bookdb/internal/datastore"
	"github.com/printprob/bookdb/internal/iiif"
)

// PaginatedResponse wraps a list endpoint's results with paging information.
type PaginatedResponse struct {
	Results any   `json:"results"`
	Count   int64 `json:"count"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
}

type spreadResponse struct {
	datastore.Spread
	Image iiif.URLs `json:"image"`
}

type pageResponse struct {
	datastore.Page
	Image iiif.URLs `json:"image"`
}

type lineResponse struct {
	datastore.Line
	Image iiif.URLs `json:"image"`
}

type characterResponse struct {
	datastore.Character
	Image iiif.URLs `json:"image"`
}

type pageRunResponse struct {
	datastore.PageRun
	ComponentCount int64 `json:"component_count"`
}

type lineRunResponse struct {
	datastore.LineRun
	ComponentCount int64 `json:"component_count"`
}

type characterRunResponse struct {
	datastore.CharacterRun
	ComponentCount int64 `json:"component_count"`
}

// runSummary nests the most recent run of each pipeline stage into a book
// detail response.
type runSummary struct {
	Pages      *pageRunResponse      `json:"pages,omitempty"`
	Lines      *lineRunResponse      `json:"lines,omitempty"`
	Characters *characterRunResponse `json:"characters,omitempty"`
}

type bookDetailResponse struct {
	datastore.Book
	ZipPath        string          `json:"zip_path"`
	CoverSpread    *spreadResponse `json:"cover_spread,omitempty"`
	MostRecentRuns runSummary      `json:"most_recent_runs"`
}

func (c *Controller) imageBase() string {
	return c.Settings.Images.BaseURL
}

func (c *Controller) spreadResponse(spread *datastore.Spread) spreadResponse {
	return spreadResponse{Spread: *spread, Image: spread.Image.URLs(c.imageBase())}
}

func (c *Controller) pageResponse(page *datastore.Page) pageResponse {
	return pageResponse{Page: *page, Image: page.Image.URLs(c.imageBase())}
}

func (c *Controller) lineResponse(line *datastore.Line, page *datastore.Page) lineResponse {
	return lineResponse{
		Line:  *line,
		Image: iiif.RegionURLs(page.Image.Base(c.imageBase()), line.Box()),
	}
}

func (c *Controller) characterResponse(char *datastore.Character, line *datastore.Line, page *datastore.Page) characterResponse {
	return characterResponse{
		Character: *char,
		Image:     iiif.RegionURLs(page.Image.Base(c.imageBase()), char.Box(line)),
	}
}

// pageResolver memoizes line and page lookups while serializing a batch of
// lines or characters, so a list response does one fetch per distinct parent.
type pageResolver struct {
	ds    datastore.Interface
	lines map[string]datastore.Line
	pages map[string]datastore.Page
}

func newPageResolver(ds datastore.Interface) *pageResolver {
	return &pageResolver{
		ds:    ds,
		lines: make(map[string]datastore.Line),
		pages: make(map[string]datastore.Page),
	}
}

func (r *pageResolver) line(id string) (datastore.Line, error) {
	if line, ok := r.lines[id]; ok {
		return line, nil
	}
	line, err := r.ds.GetLine(id)
	if err != nil {
		return datastore.Line{}, err
	}
	r.lines[id] = line
	return line, nil
}

func (r *pageResolver) page(id string) (datastore.Page, error) {
	if page, ok := r.pages[id]; ok {
		return page, nil
	}
	page, err := r.ds.GetPage(id)
	if err != nil {
		return datastore.Page{}, err
	}
	r.pages[id] = page
	return page, nil
}

// parsePagination reads limit/offset query parameters. Zero values defer to
// the datastore's defaults.
func parsePagination(ctx echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(ctx.QueryParam("limit"))
	offset, _ = strconv.Atoi(ctx.QueryParam("offset"))
	return limit, offset
}

// parseBoolParam returns nil when the parameter is absent, so tri-state
// filters can distinguish "unset" from false.
func parseBoolParam(ctx echo.Context, name string) *bool {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

func parseUintParam(ctx echo.Context, name string) *uint {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	u := uint(v)
	return &u
}

func parseFloatParam(ctx echo.Context, name string) *float64 {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}
