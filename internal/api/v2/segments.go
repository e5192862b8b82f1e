// segments.go: endpoints for spreads, pages and lines.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/printprob/bookdb/internal/datastore"
	"github.com/printprob/bookdb/internal/iiif"
)

type spreadRequest struct {
	BookID   string `json:"book"`
	Sequence uint   `json:"sequence"`
	Tif      string `json:"tif"`
	MD5      string `json:"md5"`
}

type pageRequest struct {
	CreatedByRunID string   `json:"created_by_run"`
	Sequence       uint     `json:"sequence"`
	Side           string   `json:"side"`
	X              *float64 `json:"x"`
	Y              *float64 `json:"y"`
	W              *float64 `json:"w"`
	H              *float64 `json:"h"`
	Rot1           *float64 `json:"rot1"`
	Rot2           *float64 `json:"rot2"`
	Tif            string   `json:"tif"`
	MD5            string   `json:"md5"`
}

type lineRequest struct {
	CreatedByRunID string `json:"created_by_run"`
	PageID         string `json:"page"`
	Sequence       uint   `json:"sequence"`
	YMin           int    `json:"y_min"`
	YMax           int    `json:"y_max"`
}

// initSpreadRoutes registers spread endpoints
func (c *Controller) initSpreadRoutes() {
	g := c.Group.Group("/spreads")
	g.GET("", c.ListSpreads)
	g.GET("/:id", c.GetSpread)
	g.POST("", c.CreateSpread, c.authMiddleware)
	g.PUT("/:id", c.UpdateSpread, c.authMiddleware)
	g.DELETE("/:id", c.DeleteSpread, c.authMiddleware)
}

// ListSpreads handles GET /api/v2/spreads
func (c *Controller) ListSpreads(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)
	spreads, total, err := c.DS.ListSpreads(ctx.QueryParam("book"), limit, offset)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to list spreads")
	}

	results := make([]spreadResponse, 0, len(spreads))
	for i := range spreads {
		results = append(results, c.spreadResponse(&spreads[i]))
	}
	return ctx.JSON(http.StatusOK, PaginatedResponse{Results: results, Count: total, Limit: limit, Offset: offset})
}

// GetSpread handles GET /api/v2/spreads/:id
func (c *Controller) GetSpread(ctx echo.Context) error {
	spread, err := c.DS.GetSpread(ctx.Param("id"))
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get spread")
	}
	return ctx.JSON(http.StatusOK, c.spreadResponse(&spread))
}

// CreateSpread handles POST /api/v2/spreads
func (c *Controller) CreateSpread(ctx echo.Context) error {
	var req spreadRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid spread payload", http.StatusBadRequest)
	}

	spread := datastore.Spread{
		BookID:   req.BookID,
		Sequence: req.Sequence,
		Image:    iiif.Image{Tif: req.Tif, MD5: req.MD5},
	}
	if err := c.DS.CreateSpread(&spread); err != nil {
		return c.handleDSError(ctx, err, "Failed to create spread")
	}

	c.invalidateBook(spread.BookID)
	return ctx.JSON(http.StatusCreated, c.spreadResponse(&spread))
}

// UpdateSpread handles PUT /api/v2/spreads/:id
func (c *Controller) UpdateSpread(ctx echo.Context) error {
	id := ctx.Param("id")
	spread, err := c.DS.GetSpread(id)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get spread")
	}

	req := spreadRequest{
		BookID:   spread.BookID,
		Sequence: spread.Sequence,
		Tif:      spread.Image.Tif,
		MD5:      spread.Image.MD5,
	}
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid spread payload", http.StatusBadRequest)
	}

	spread.BookID = req.BookID
	spread.Sequence = req.Sequence
	spread.Image = iiif.Image{Tif: req.Tif, MD5: req.MD5}

	if err := c.DS.UpdateSpread(&spread); err != nil {
		return c.handleDSError(ctx, err, "Failed to update spread")
	}

	c.invalidateBook(spread.BookID)
	return ctx.JSON(http.StatusOK, c.spreadResponse(&spread))
}

// DeleteSpread handles DELETE /api/v2/spreads/:id
func (c *Controller) DeleteSpread(ctx echo.Context) error {
	id := ctx.Param("id")
	spread, err := c.DS.GetSpread(id)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get spread")
	}
	if err := c.DS.DeleteSpread(id); err != nil {
		return c.handleDSError(ctx, err, "Failed to delete spread")
	}
	c.invalidateBook(spread.BookID)
	return ctx.NoContent(http.StatusNoContent)
}

// initPageRoutes registers page endpoints
func (c *Controller) initPageRoutes() {
	g := c.Group.Group("/pages")
	g.GET("", c.ListPages)
	g.GET("/:id", c.GetPage)
	g.POST("", c.CreatePage, c.authMiddleware)
	g.DELETE("/:id", c.DeletePage, c.authMiddleware)
}

// ListPages handles GET /api/v2/pages
func (c *Controller) ListPages(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)
	filter := datastore.PageFilter{
		RunID:  ctx.QueryParam("created_by_run"),
		BookID: ctx.QueryParam("book"),
		Side:   ctx.QueryParam("side"),
		Limit:  limit,
		Offset: offset,
	}

	pages, total, err := c.DS.ListPages(filter)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to list pages")
	}

	results := make([]pageResponse, 0, len(pages))
	for i := range pages {
		results = append(results, c.pageResponse(&pages[i]))
	}
	return ctx.JSON(http.StatusOK, PaginatedResponse{Results: results, Count: total, Limit: limit, Offset: offset})
}

// GetPage handles GET /api/v2/pages/:id
func (c *Controller) GetPage(ctx echo.Context) error {
	page, err := c.DS.GetPage(ctx.Param("id"))
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get page")
	}
	return ctx.JSON(http.StatusOK, c.pageResponse(&page))
}

// CreatePage handles POST /api/v2/pages
func (c *Controller) CreatePage(ctx echo.Context) error {
	var req pageRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid page payload", http.StatusBadRequest)
	}

	page := datastore.Page{
		CreatedByRunID: req.CreatedByRunID,
		Sequence:       req.Sequence,
		Side:           req.Side,
		X:              req.X,
		Y:              req.Y,
		W:              req.W,
		H:              req.H,
		Rot1:           req.Rot1,
		Rot2:           req.Rot2,
		Image:          iiif.Image{Tif: req.Tif, MD5: req.MD5},
	}
	if err := c.DS.CreatePage(&page); err != nil {
		return c.handleDSError(ctx, err, "Failed to create page")
	}

	if run, err := c.DS.GetPageRun(page.CreatedByRunID); err == nil {
		c.invalidateBook(run.BookID)
	}
	return ctx.JSON(http.StatusCreated, c.pageResponse(&page))
}

// DeletePage handles DELETE /api/v2/pages/:id
func (c *Controller) DeletePage(ctx echo.Context) error {
	id := ctx.Param("id")
	page, err := c.DS.GetPage(id)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get page")
	}
	if err := c.DS.DeletePage(id); err != nil {
		return c.handleDSError(ctx, err, "Failed to delete page")
	}
	if run, err := c.DS.GetPageRun(page.CreatedByRunID); err == nil {
		c.invalidateBook(run.BookID)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// initLineRoutes registers line endpoints
func (c *Controller) initLineRoutes() {
	g := c.Group.Group("/lines")
	g.GET("", c.ListLines)
	g.GET("/:id", c.GetLine)
	g.POST("", c.CreateLine, c.authMiddleware)
	g.DELETE("/:id", c.DeleteLine, c.authMiddleware)
}

// ListLines handles GET /api/v2/lines
func (c *Controller) ListLines(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)
	filter := datastore.LineFilter{
		RunID:  ctx.QueryParam("created_by_run"),
		PageID: ctx.QueryParam("page"),
		Limit:  limit,
		Offset: offset,
	}

	lines, total, err := c.DS.ListLines(filter)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to list lines")
	}

	resolver := newPageResolver(c.DS)
	results := make([]lineResponse, 0, len(lines))
	for i := range lines {
		page, err := resolver.page(lines[i].PageID)
		if err != nil {
			return c.handleDSError(ctx, err, "Failed to resolve line's page")
		}
		results = append(results, c.lineResponse(&lines[i], &page))
	}
	return ctx.JSON(http.StatusOK, PaginatedResponse{Results: results, Count: total, Limit: limit, Offset: offset})
}

// GetLine handles GET /api/v2/lines/:id
func (c *Controller) GetLine(ctx echo.Context) error {
	line, err := c.DS.GetLine(ctx.Param("id"))
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get line")
	}
	page, err := c.DS.GetPage(line.PageID)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to resolve line's page")
	}
	return ctx.JSON(http.StatusOK, c.lineResponse(&line, &page))
}

// CreateLine handles POST /api/v2/lines
func (c *Controller) CreateLine(ctx echo.Context) error {
	var req lineRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid line payload", http.StatusBadRequest)
	}

	line := datastore.Line{
		CreatedByRunID: req.CreatedByRunID,
		PageID:         req.PageID,
		Sequence:       req.Sequence,
		YMin:           req.YMin,
		YMax:           req.YMax,
	}
	if err := c.DS.CreateLine(&line); err != nil {
		return c.handleDSError(ctx, err, "Failed to create line")
	}

	page, err := c.DS.GetPage(line.PageID)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to resolve line's page")
	}
	return ctx.JSON(http.StatusCreated, c.lineResponse(&line, &page))
}

// DeleteLine handles DELETE /api/v2/lines/:id
func (c *Controller) DeleteLine(ctx echo.Context) error {
	if err := c.DS.DeleteLine(ctx.Param("id")); err != nil {
		return c.handleDSError(ctx, err, "Failed to delete line")
	}
	return ctx.NoContent(http.StatusNoContent)
}
