// runs.go: endpoints for pipeline run bookkeeping. Each segmentation stage
// has its own run type with identical route shapes.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/printprob/bookdb/internal/datastore"
)

// initRunRoutes registers run endpoints for all three pipeline stages
func (c *Controller) initRunRoutes() {
	pageRuns := c.Group.Group("/pageruns")
	pageRuns.GET("", c.ListPageRuns)
	pageRuns.GET("/:id", c.GetPageRun)
	pageRuns.POST("", c.CreatePageRun, c.authMiddleware)
	pageRuns.DELETE("/:id", c.DeletePageRun, c.authMiddleware)

	lineRuns := c.Group.Group("/lineruns")
	lineRuns.GET("", c.ListLineRuns)
	lineRuns.GET("/:id", c.GetLineRun)
	lineRuns.POST("", c.CreateLineRun, c.authMiddleware)
	lineRuns.DELETE("/:id", c.DeleteLineRun, c.authMiddleware)

	charRuns := c.Group.Group("/characterruns")
	charRuns.GET("", c.ListCharacterRuns)
	charRuns.GET("/:id", c.GetCharacterRun)
	charRuns.POST("", c.CreateCharacterRun, c.authMiddleware)
	charRuns.DELETE("/:id", c.DeleteCharacterRun, c.authMiddleware)
}

// ListPageRuns handles GET /api/v2/pageruns
func (c *Controller) ListPageRuns(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)
	runs, total, err := c.DS.ListPageRuns(ctx.QueryParam("book"), limit, offset)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to list page runs")
	}
	return ctx.JSON(http.StatusOK, PaginatedResponse{Results: runs, Count: total, Limit: limit, Offset: offset})
}

// GetPageRun handles GET /api/v2/pageruns/:id
func (c *Controller) GetPageRun(ctx echo.Context) error {
	run, err := c.DS.GetPageRun(ctx.Param("id"))
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get page run")
	}
	count, err := c.DS.PageRunComponentCount(run.ID)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to count run components")
	}
	return ctx.JSON(http.StatusOK, pageRunResponse{PageRun: run, ComponentCount: count})
}

// CreatePageRun handles POST /api/v2/pageruns
func (c *Controller) CreatePageRun(ctx echo.Context) error {
	var run datastore.PageRun
	if err := ctx.Bind(&run); err != nil {
		return c.HandleError(ctx, err, "Invalid run payload", http.StatusBadRequest)
	}
	if err := c.DS.CreatePageRun(&run); err != nil {
		return c.handleDSError(ctx, err, "Failed to create page run")
	}
	c.invalidateBook(run.BookID)
	return ctx.JSON(http.StatusCreated, run)
}

// DeletePageRun handles DELETE /api/v2/pageruns/:id
func (c *Controller) DeletePageRun(ctx echo.Context) error {
	id := ctx.Param("id")
	run, err := c.DS.GetPageRun(id)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get page run")
	}
	if err := c.DS.DeletePageRun(id); err != nil {
		return c.handleDSError(ctx, err, "Failed to delete page run")
	}
	c.invalidateBook(run.BookID)
	return ctx.NoContent(http.StatusNoContent)
}

// ListLineRuns handles GET /api/v2/lineruns
func (c *Controller) ListLineRuns(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)
	runs, total, err := c.DS.ListLineRuns(ctx.QueryParam("book"), limit, offset)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to list line runs")
	}
	return ctx.JSON(http.StatusOK, PaginatedResponse{Results: runs, Count: total, Limit: limit, Offset: offset})
}

// GetLineRun handles GET /api/v2/lineruns/:id
func (c *Controller) GetLineRun(ctx echo.Context) error {
	run, err := c.DS.GetLineRun(ctx.Param("id"))
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get line run")
	}
	count, err := c.DS.LineRunComponentCount(run.ID)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to count run components")
	}
	return ctx.JSON(http.StatusOK, lineRunResponse{LineRun: run, ComponentCount: count})
}

// CreateLineRun handles POST /api/v2/lineruns
func (c *Controller) CreateLineRun(ctx echo.Context) error {
	var run datastore.LineRun
	if err := ctx.Bind(&run); err != nil {
		return c.HandleError(ctx, err, "Invalid run payload", http.StatusBadRequest)
	}
	if err := c.DS.CreateLineRun(&run); err != nil {
		return c.handleDSError(ctx, err, "Failed to create line run")
	}
	c.invalidateBook(run.BookID)
	return ctx.JSON(http.StatusCreated, run)
}

// DeleteLineRun handles DELETE /api/v2/lineruns/:id
func (c *Controller) DeleteLineRun(ctx echo.Context) error {
	id := ctx.Param("id")
	run, err := c.DS.GetLineRun(id)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get line run")
	}
	if err := c.DS.DeleteLineRun(id); err != nil {
		return c.handleDSError(ctx, err, "Failed to delete line run")
	}
	c.invalidateBook(run.BookID)
	return ctx.NoContent(http.StatusNoContent)
}

// ListCharacterRuns handles GET /api/v2/characterruns
func (c *Controller) ListCharacterRuns(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)
	runs, total, err := c.DS.ListCharacterRuns(ctx.QueryParam("book"), limit, offset)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to list character runs")
	}
	return ctx.JSON(http.StatusOK, PaginatedResponse{Results: runs, Count: total, Limit: limit, Offset: offset})
}

// GetCharacterRun handles GET /api/v2/characterruns/:id
func (c *Controller) GetCharacterRun(ctx echo.Context) error {
	run, err := c.DS.GetCharacterRun(ctx.Param("id"))
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get character run")
	}
	count, err := c.DS.CharacterRunComponentCount(run.ID)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to count run components")
	}
	return ctx.JSON(http.StatusOK, characterRunResponse{CharacterRun: run, ComponentCount: count})
}

// CreateCharacterRun handles POST /api/v2/characterruns
func (c *Controller) CreateCharacterRun(ctx echo.Context) error {
	var run datastore.CharacterRun
	if err := ctx.Bind(&run); err != nil {
		return c.HandleError(ctx, err, "Invalid run payload", http.StatusBadRequest)
	}
	if err := c.DS.CreateCharacterRun(&run); err != nil {
		return c.handleDSError(ctx, err, "Failed to create character run")
	}
	c.invalidateBook(run.BookID)
	return ctx.JSON(http.StatusCreated, run)
}

// DeleteCharacterRun handles DELETE /api/v2/characterruns/:id
func (c *Controller) DeleteCharacterRun(ctx echo.Context) error {
	id := ctx.Param("id")
	run, err := c.DS.GetCharacterRun(id)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get character run")
	}
	if err := c.DS.DeleteCharacterRun(id); err != nil {
		return c.handleDSError(ctx, err, "Failed to delete character run")
	}
	c.invalidateBook(run.BookID)
	return ctx.NoContent(http.StatusNoContent)
}
