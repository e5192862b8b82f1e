// characters.go: character endpoints, including the bulk annotation route
// used by curators.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/printprob/bookdb/internal/datastore"
)

// AnnotateRequest is the payload for POST /characters/annotate.
type AnnotateRequest struct {
	Characters          []string `json:"characters"`
	HumanCharacterClass string   `json:"human_character_class"`
}

// initCharacterRoutes registers character endpoints
func (c *Controller) initCharacterRoutes() {
	g := c.Group.Group("/characters")
	g.GET("", c.ListCharacters)
	g.GET("/:id", c.GetCharacter)
	g.POST("", c.CreateCharacter, c.authMiddleware)
	g.DELETE("/:id", c.DeleteCharacter, c.authMiddleware)
	g.POST("/annotate", c.AnnotateCharacters, c.authMiddleware)
}

// ListCharacters handles GET /api/v2/characters
func (c *Controller) ListCharacters(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)
	filter := datastore.CharacterFilter{
		RunID:          ctx.QueryParam("created_by_run"),
		LineID:         ctx.QueryParam("line"),
		Class:          ctx.QueryParam("character_class"),
		HumanClass:     ctx.QueryParam("human_character_class"),
		MinProbability: parseFloatParam(ctx, "min_probability"),
		MinDamage:      parseFloatParam(ctx, "min_damage"),
		MaxDamage:      parseFloatParam(ctx, "max_damage"),
		Limit:          limit,
		Offset:         offset,
	}

	characters, total, err := c.DS.ListCharacters(filter)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to list characters")
	}

	resolver := newPageResolver(c.DS)
	results := make([]characterResponse, 0, len(characters))
	for i := range characters {
		line, err := resolver.line(characters[i].LineID)
		if err != nil {
			return c.handleDSError(ctx, err, "Failed to resolve character's line")
		}
		page, err := resolver.page(line.PageID)
		if err != nil {
			return c.handleDSError(ctx, err, "Failed to resolve character's page")
		}
		results = append(results, c.characterResponse(&characters[i], &line, &page))
	}
	return ctx.JSON(http.StatusOK, PaginatedResponse{Results: results, Count: total, Limit: limit, Offset: offset})
}

// GetCharacter handles GET /api/v2/characters/:id
func (c *Controller) GetCharacter(ctx echo.Context) error {
	char, err := c.DS.GetCharacter(ctx.Param("id"))
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get character")
	}
	line, err := c.DS.GetLine(char.LineID)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to resolve character's line")
	}
	page, err := c.DS.GetPage(line.PageID)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to resolve character's page")
	}
	return ctx.JSON(http.StatusOK, c.characterResponse(&char, &line, &page))
}

// CreateCharacter handles POST /api/v2/characters
func (c *Controller) CreateCharacter(ctx echo.Context) error {
	var char datastore.Character
	if err := ctx.Bind(&char); err != nil {
		return c.HandleError(ctx, err, "Invalid character payload", http.StatusBadRequest)
	}
	if err := c.DS.CreateCharacter(&char); err != nil {
		return c.handleDSError(ctx, err, "Failed to create character")
	}
	return ctx.JSON(http.StatusCreated, char)
}

// DeleteCharacter handles DELETE /api/v2/characters/:id
func (c *Controller) DeleteCharacter(ctx echo.Context) error {
	if err := c.DS.DeleteCharacter(ctx.Param("id")); err != nil {
		return c.handleDSError(ctx, err, "Failed to delete character")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// AnnotateCharacters handles POST /api/v2/characters/annotate. The batch is
// atomic: any unresolvable character or class fails the whole request.
func (c *Controller) AnnotateCharacters(ctx echo.Context) error {
	var req AnnotateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid annotation payload", http.StatusBadRequest)
	}

	if err := c.DS.AnnotateCharacters(req.Characters, req.HumanCharacterClass); err != nil {
		c.recordAnnotations(len(req.Characters), "error")
		return c.handleDSError(ctx, err, "Failed to annotate characters")
	}

	c.recordAnnotations(len(req.Characters), "success")
	return ctx.JSON(http.StatusOK, map[string]any{
		"annotated":             len(req.Characters),
		"human_character_class": req.HumanCharacterClass,
	})
}

func (c *Controller) recordAnnotations(count int, status string) {
	if c.metrics != nil && c.metrics.Datastore != nil {
		c.metrics.Datastore.RecordAnnotations(count, status)
	}
}
