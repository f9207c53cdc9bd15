package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"stitchmart/internal/common"
	"stitchmart/internal/models"
	"stitchmart/internal/services"

	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// DesignHandlers serves the public catalog and the admin design endpoints
type DesignHandlers struct {
	query   services.DesignQueryService
	designs services.DesignService
	logger  *zap.Logger
}

// NewDesignHandlers creates a new design handlers instance
func NewDesignHandlers(query services.DesignQueryService, designs services.DesignService, logger *zap.Logger) *DesignHandlers {
	return &DesignHandlers{query: query, designs: designs, logger: logger}
}

// ListDesigns godoc
// @Summary      List designs
// @Description  Search, filter, sort and paginate the public catalog
// @Tags         designs
// @Produce      json
// @Param        search      query  string  false  "substring of title, description or a tag"
// @Param        category    query  string  false  "category id"
// @Param        difficulty  query  string  false  "Beginner, Intermediate or Advanced"
// @Param        priceRange  query  string  false  "min-max or min-"
// @Param        sortBy      query  string  false  "createdAt, updatedAt, price, title, sales, downloads, rating, stitchCount"
// @Param        sortOrder   query  string  false  "asc or desc"
// @Param        page        query  int     false  "page number"
// @Param        limit       query  int     false  "page size (max 100)"
// @Success      200  {object}  models.DesignPage
// @Router       /v1/designs [get]
func (h *DesignHandlers) ListDesigns(c echo.Context) error {
	var params models.DesignListParams
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &params); err != nil {
		return common.Validation("invalid query parameters", nil)
	}
	page, err := h.query.List(c.Request().Context(), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// FeaturedDesigns returns the featured list.
func (h *DesignHandlers) FeaturedDesigns(c echo.Context) error {
	designs, err := h.query.Featured(c.Request().Context(), queryLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, designs)
}

// PopularDesigns returns the popular list.
func (h *DesignHandlers) PopularDesigns(c echo.Context) error {
	designs, err := h.query.Popular(c.Request().Context(), queryLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, designs)
}

// GetDesign returns one complete design. The response carries an ETag and
// answers 304 when If-None-Match matches it.
func (h *DesignHandlers) GetDesign(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	design, err := h.query.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}

	body, err := json.Marshal(design)
	if err != nil {
		return err
	}
	etag := `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
	c.Response().Header().Set("ETag", etag)
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	if match := c.Request().Header.Get("If-None-Match"); match == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSONBlob(http.StatusOK, body)
}

// AdminGetDesign returns a design in any asset state.
func (h *DesignHandlers) AdminGetDesign(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	design, err := h.query.GetAny(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, design)
}

// CreateDesign godoc
// @Summary      Create a design
// @Description  Multipart create; images[] and designFile_<FORMAT> files are stored after the record
// @Tags         admin
// @Accept       multipart/form-data
// @Produce      json
// @Success      201  {object}  models.Design
// @Failure      400  {object}  common.ErrorResponse
// @Failure      500  {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/admin/designs [post]
func (h *DesignHandlers) CreateDesign(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return common.Validation("request must be multipart/form-data", nil)
	}
	draft, uploads, err := newDesignForm(form).draft()
	if err != nil {
		return err
	}

	design, err := h.designs.Create(c.Request().Context(), draft, uploads)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, design)
}

// UpdateDesign applies a multipart partial update.
func (h *DesignHandlers) UpdateDesign(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return common.Validation("request must be multipart/form-data", nil)
	}
	patch, uploads, err := newDesignForm(form).patch()
	if err != nil {
		return err
	}

	design, err := h.designs.Update(c.Request().Context(), id, patch, uploads)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, design)
}

// DeleteDesign removes a design and, best effort, its assets.
func (h *DesignHandlers) DeleteDesign(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	if err := h.designs.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Design deleted successfully"})
}

// SetFeatured handles PATCH /admin/designs/:id/featured with {"featured": bool}.
func (h *DesignHandlers) SetFeatured(c echo.Context) error {
	return h.setFlag(c, services.FlagFeatured)
}

// SetPopular handles PATCH /admin/designs/:id/popular with {"popular": bool}.
func (h *DesignHandlers) SetPopular(c echo.Context) error {
	return h.setFlag(c, services.FlagPopular)
}

func (h *DesignHandlers) setFlag(c echo.Context, flag string) error {
	id, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	var body map[string]*bool
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return common.Validation("invalid request body", nil)
	}
	value, ok := body[flag]
	if !ok || value == nil {
		return common.Validation("Validation failed", map[string]string{flag: flag + " must be a boolean"})
	}

	design, err := h.designs.SetFlag(c.Request().Context(), id, flag, *value)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, design)
}

func queryLimit(c echo.Context) int {
	n, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil {
		return 0
	}
	return n
}
