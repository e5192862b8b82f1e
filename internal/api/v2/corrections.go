// corrections.go: endpoints for the human correction overlay: the character
// class taxonomy, breakage types and curator groupings.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/printprob/bookdb/internal/datastore"
)

// GroupingRequest is the payload for creating a grouping.
type GroupingRequest struct {
	Label      string   `json:"label"`
	Notes      string   `json:"notes"`
	Username   string   `json:"username"`
	Characters []string `json:"characters"`
}

// GroupingMembersRequest is the payload for membership mutations.
type GroupingMembersRequest struct {
	Characters []string `json:"characters"`
}

type groupingResponse struct {
	datastore.CharacterGrouping
	Characters []characterResponse `json:"characters"`
}

// initCharacterClassRoutes registers taxonomy endpoints
func (c *Controller) initCharacterClassRoutes() {
	g := c.Group.Group("/characterclasses")
	g.GET("", c.ListCharacterClasses)
	g.GET("/:classname", c.GetCharacterClass)
	g.POST("", c.CreateCharacterClass, c.authMiddleware)
	g.DELETE("/:classname", c.DeleteCharacterClass, c.authMiddleware)

	bt := c.Group.Group("/breakagetypes")
	bt.GET("", c.ListBreakageTypes)
	bt.POST("", c.CreateBreakageType, c.authMiddleware)
}

// ListCharacterClasses handles GET /api/v2/characterclasses
func (c *Controller) ListCharacterClasses(ctx echo.Context) error {
	classes, err := c.DS.ListCharacterClasses()
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to list character classes")
	}
	return ctx.JSON(http.StatusOK, PaginatedResponse{Results: classes, Count: int64(len(classes))})
}

// GetCharacterClass handles GET /api/v2/characterclasses/:classname
func (c *Controller) GetCharacterClass(ctx echo.Context) error {
	class, err := c.DS.GetCharacterClass(ctx.Param("classname"))
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get character class")
	}
	return ctx.JSON(http.StatusOK, class)
}

// CreateCharacterClass handles POST /api/v2/characterclasses
func (c *Controller) CreateCharacterClass(ctx echo.Context) error {
	var class datastore.CharacterClass
	if err := ctx.Bind(&class); err != nil {
		return c.HandleError(ctx, err, "Invalid character class payload", http.StatusBadRequest)
	}
	if err := c.DS.CreateCharacterClass(&class); err != nil {
		return c.handleDSError(ctx, err, "Failed to create character class")
	}
	return ctx.JSON(http.StatusCreated, class)
}

// DeleteCharacterClass handles DELETE /api/v2/characterclasses/:classname
func (c *Controller) DeleteCharacterClass(ctx echo.Context) error {
	if err := c.DS.DeleteCharacterClass(ctx.Param("classname")); err != nil {
		return c.handleDSError(ctx, err, "Failed to delete character class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ListBreakageTypes handles GET /api/v2/breakagetypes
func (c *Controller) ListBreakageTypes(ctx echo.Context) error {
	types, err := c.DS.ListBreakageTypes()
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to list breakage types")
	}
	return ctx.JSON(http.StatusOK, PaginatedResponse{Results: types, Count: int64(len(types))})
}

// CreateBreakageType handles POST /api/v2/breakagetypes
func (c *Controller) CreateBreakageType(ctx echo.Context) error {
	var bt datastore.BreakageType
	if err := ctx.Bind(&bt); err != nil {
		return c.HandleError(ctx, err, "Invalid breakage type payload", http.StatusBadRequest)
	}
	if err := c.DS.CreateBreakageType(&bt); err != nil {
		return c.handleDSError(ctx, err, "Failed to create breakage type")
	}
	return ctx.JSON(http.StatusCreated, bt)
}

// initGroupingRoutes registers curator grouping endpoints
func (c *Controller) initGroupingRoutes() {
	g := c.Group.Group("/charactergroupings")
	g.GET("", c.ListGroupings)
	g.GET("/:id", c.GetGrouping)
	g.POST("", c.CreateGrouping, c.authMiddleware)
	g.DELETE("/:id", c.DeleteGrouping, c.authMiddleware)
	g.PATCH("/:id/add_characters", c.AddCharactersToGrouping, c.authMiddleware)
	g.PATCH("/:id/delete_characters", c.RemoveCharactersFromGrouping, c.authMiddleware)
}

// ListGroupings handles GET /api/v2/charactergroupings
func (c *Controller) ListGroupings(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)
	groupings, total, err := c.DS.ListGroupings(limit, offset)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to list groupings")
	}
	return ctx.JSON(http.StatusOK, PaginatedResponse{Results: groupings, Count: total, Limit: limit, Offset: offset})
}

// GetGrouping handles GET /api/v2/charactergroupings/:id
func (c *Controller) GetGrouping(ctx echo.Context) error {
	grouping, err := c.DS.GetGrouping(ctx.Param("id"))
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get grouping")
	}
	return c.groupingJSON(ctx, http.StatusOK, &grouping)
}

// groupingJSON serializes a grouping with image URLs for every member.
func (c *Controller) groupingJSON(ctx echo.Context, status int, grouping *datastore.CharacterGrouping) error {
	resolver := newPageResolver(c.DS)
	members := make([]characterResponse, 0, len(grouping.Characters))
	for i := range grouping.Characters {
		line, err := resolver.line(grouping.Characters[i].LineID)
		if err != nil {
			return c.handleDSError(ctx, err, "Failed to resolve member's line")
		}
		page, err := resolver.page(line.PageID)
		if err != nil {
			return c.handleDSError(ctx, err, "Failed to resolve member's page")
		}
		members = append(members, c.characterResponse(&grouping.Characters[i], &line, &page))
	}
	return ctx.JSON(status, groupingResponse{CharacterGrouping: *grouping, Characters: members})
}

// CreateGrouping handles POST /api/v2/charactergroupings
func (c *Controller) CreateGrouping(ctx echo.Context) error {
	var req GroupingRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid grouping payload", http.StatusBadRequest)
	}

	user, err := c.DS.GetOrCreateUser(req.Username)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to resolve user")
	}

	grouping := datastore.CharacterGrouping{
		Label:       req.Label,
		Notes:       req.Notes,
		CreatedByID: user.ID,
	}
	if err := c.DS.CreateGrouping(&grouping, req.Characters); err != nil {
		return c.handleDSError(ctx, err, "Failed to create grouping")
	}

	created, err := c.DS.GetGrouping(grouping.ID)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get grouping")
	}
	return c.groupingJSON(ctx, http.StatusCreated, &created)
}

// DeleteGrouping handles DELETE /api/v2/charactergroupings/:id
func (c *Controller) DeleteGrouping(ctx echo.Context) error {
	if err := c.DS.DeleteGrouping(ctx.Param("id")); err != nil {
		return c.handleDSError(ctx, err, "Failed to delete grouping")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// AddCharactersToGrouping handles PATCH /api/v2/charactergroupings/:id/add_characters
func (c *Controller) AddCharactersToGrouping(ctx echo.Context) error {
	return c.mutateGroupingMembers(ctx, "add", c.DS.AddCharactersToGrouping)
}

// RemoveCharactersFromGrouping handles PATCH /api/v2/charactergroupings/:id/delete_characters
func (c *Controller) RemoveCharactersFromGrouping(ctx echo.Context) error {
	return c.mutateGroupingMembers(ctx, "remove", c.DS.RemoveCharactersFromGrouping)
}

func (c *Controller) mutateGroupingMembers(ctx echo.Context, op string, mutate func(string, []string) error) error {
	id := ctx.Param("id")
	var req GroupingMembersRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid membership payload", http.StatusBadRequest)
	}

	if err := mutate(id, req.Characters); err != nil {
		c.recordGroupingMutation(op, "error")
		return c.handleDSError(ctx, err, "Failed to update grouping members")
	}
	c.recordGroupingMutation(op, "success")

	grouping, err := c.DS.GetGrouping(id)
	if err != nil {
		return c.handleDSError(ctx, err, "Failed to get grouping")
	}
	return c.groupingJSON(ctx, http.StatusOK, &grouping)
}

func (c *Controller) recordGroupingMutation(op, status string) {
	if c.metrics != nil && c.metrics.Datastore != nil {
		c.metrics.Datastore.RecordGroupingMutation(op, status)
	}
}
