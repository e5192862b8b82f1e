// books.go: book CRUD endpoints.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/printprob/bookdb/internal/datastore"
	"github.com/printprob/bookdb/internal/errors"
)

// initBookRoutes registers all book-related API endpoints
func (c *Controller) initBookRoutes() {
	g := c.Group.Group("/books")

	g.GET("", c.ListBooks)
	g.GET("/:id", c.GetBook)
	g.GET("/:id/pages", c.GetBookPages)

	g.POST("", c.CreateBook, c.authMiddleware)
	g.PUT("/:id", c.UpdateBook, c.authMiddleware)
	g.DELETE("/:id", c.DeleteBook, c.authMiddleware)
}

// ListBooks handles GET /api/v2/books
func (c *Controller) ListBooks(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)
	filter := datastore.BookFilter{
		Title:     ctx.QueryParam("title"),
		Author:    ctx.QueryParam("author"),
		Printer:   ctx.QueryParam("printer"),
		YearEarly: parseUintParam(ctx, "year_early"),
		YearLate:  parseUintParam(ctx, "year_late"),
		Starred:   parseBoolParam(ctx, "starred"),
		Ignored:   parseBoolParam(ctx, "ignored"),
		EEBO:      parseBoolParam(ctx, "is_eebo_book"),
		Limit:     limit,
		Offset:    offset,
	}

	books, total, err := c.DS.ListBooks(filter)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to list books")
	}

	return ctx.JSON(http.StatusOK, PaginatedResponse{
		Results: books,
		Count:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// GetBook handles GET /api/v2/books/:id
func (c *Controller) GetBook(ctx echo.Context) error {
	id := ctx.Param("id")
	cacheKey := "book:" + id

	if cached, found := c.entityCache.Get(cacheKey); found {
		c.recordCacheOp("book_detail", "hit")
		return ctx.JSON(http.StatusOK, cached)
	}
	c.recordCacheOp("book_detail", "miss")

	book, err := c.DS.GetBook(id)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get book")
	}

	response := bookDetailResponse{
		Book:           book,
		ZipPath:        book.ZipPath(),
		MostRecentRuns: c.mostRecentRuns(id),
	}

	spreads, _, err := c.DS.ListSpreads(id, 1, 0)
	if err == nil && len(spreads) > 0 {
		cover := c.spreadResponse(&spreads[0])
		response.CoverSpread = &cover
	}

	c.entityCache.SetDefault(cacheKey, response)
	return ctx.JSON(http.StatusOK, response)
}

// mostRecentRuns collects the latest run of each pipeline stage for a book.
// Stages that have never run are omitted.
func (c *Controller) mostRecentRuns(bookID string) runSummary {
	var summary runSummary

	if run, err := c.DS.MostRecentPageRun(bookID); err == nil {
		count, _ := c.DS.PageRunComponentCount(run.ID)
		summary.Pages = &pageRunResponse{PageRun: run, ComponentCount: count}
	}
	if run, err := c.DS.MostRecentLineRun(bookID); err == nil {
		count, _ := c.DS.LineRunComponentCount(run.ID)
		summary.Lines = &lineRunResponse{LineRun: run, ComponentCount: count}
	}
	if run, err := c.DS.MostRecentCharacterRun(bookID); err == nil {
		count, _ := c.DS.CharacterRunComponentCount(run.ID)
		summary.Characters = &characterRunResponse{CharacterRun: run, ComponentCount: count}
	}

	return summary
}

// GetBookPages handles GET /api/v2/books/:id/pages, returning the pages of
// the book's most recent page run.
func (c *Controller) GetBookPages(ctx echo.Context) error {
	id := ctx.Param("id")
	cacheKey := "book_pages:" + id

	if cached, found := c.entityCache.Get(cacheKey); found {
		c.recordCacheOp("book_pages", "hit")
		return ctx.JSON(http.StatusOK, cached)
	}
	c.recordCacheOp("book_pages", "miss")

	if _, err := c.DS.GetBook(id); err != nil {
		return c.handleDSError(ctx, err, "Failed to get book")
	}

	pages, err := c.DS.MostRecentPages(id)
	if err != nil && errors.Category(err) != errors.CategoryNotFound {
		return c.handleDSError(ctx, err, "Failed to get book pages")
	}

	results := make([]pageResponse, 0, len(pages))
	for i := range pages {
		results = append(results, c.pageResponse(&pages[i]))
	}

	response := PaginatedResponse{Results: results, Count: int64(len(results))}
	c.entityCache.SetDefault(cacheKey, response)
	return ctx.JSON(http.StatusOK, response)
}

// CreateBook handles POST /api/v2/books
func (c *Controller) CreateBook(ctx echo.Context) error {
	var book datastore.Book
	if err := ctx.Bind(&book); err != nil {
		return c.HandleError(ctx, err, "Invalid book payload", http.StatusBadRequest)
	}

	if err := c.DS.CreateBook(&book); err != nil {
		return c.handleDSError(ctx, err, "Failed to create book")
	}

	return ctx.JSON(http.StatusCreated, book)
}

// UpdateBook handles PUT /api/v2/books/:id
func (c *Controller) UpdateBook(ctx echo.Context) error {
	id := ctx.Param("id")

	existing, err := c.DS.GetBook(id)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get book")
	}

	// Bind over the stored row so omitted fields keep their values.
	book := existing
	if err := ctx.Bind(&book); err != nil {
		return c.HandleError(ctx, err, "Invalid book payload", http.StatusBadRequest)
	}
	book.ID = id

	if err := c.DS.UpdateBook(&book); err != nil {
		return c.handleDSError(ctx, err, "Failed to update book")
	}

	c.invalidateBook(id)
	return ctx.JSON(http.StatusOK, book)
}

// DeleteBook handles DELETE /api/v2/books/:id
func (c *Controller) DeleteBook(ctx echo.Context) error {
	id := ctx.Param("id")

	if err := c.DS.DeleteBook(id); err != nil {
		return c.handleDSError(ctx, err, "Failed to delete book")
	}

	c.invalidateBook(id)
	return ctx.NoContent(http.StatusNoContent)
}

// invalidateBook drops every cached response derived from the given book.
func (c *Controller) invalidateBook(bookID string) {
	c.entityCache.Delete("book:" + bookID)
	c.entityCache.Delete("book_pages:" + bookID)
}

func (c *Controller) recordCacheOp(cacheType, result string) {
	if c.metrics != nil && c.metrics.Datastore != nil {
		c.metrics.Datastore.RecordCacheOperation(cacheType, "get", result)
	}
}
