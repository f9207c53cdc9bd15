package handlers

import (
	"net/http"

	"stitchmart/internal/common"
	"stitchmart/internal/models"
	"stitchmart/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CategoryHandlers handles category-related HTTP requests
type CategoryHandlers struct {
	categories services.CategoryService
}

// NewCategoryHandlers creates a new category handlers instance
func NewCategoryHandlers(categories services.CategoryService) *CategoryHandlers {
	return &CategoryHandlers{categories: categories}
}

// MainCategories lists top-level categories with their subcategories
func (h *CategoryHandlers) MainCategories(c echo.Context) error {
	categories, err := h.categories.Main(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, categories)
}

// GetCategory returns one category
func (h *CategoryHandlers) GetCategory(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	category, err := h.categories.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, category)
}

// CreateCategory handles creating a new category
func (h *CategoryHandlers) CreateCategory(c echo.Context) error {
	var req models.CategoryInput
	if err := bindValid(c, &req); err != nil {
		return err
	}
	category, err := h.categories.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, category)
}

// UpdateCategory renames or re-describes a category; the slug follows the name
func (h *CategoryHandlers) UpdateCategory(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	var req models.CategoryInput
	if err := bindValid(c, &req); err != nil {
		return err
	}
	category, err := h.categories.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, category)
}

// LinkSubcategoryRequest names the category to nest under the path's category
type LinkSubcategoryRequest struct {
	SubcategoryID uuid.UUID `json:"subcategoryId" validate:"required"`
}

// LinkSubcategory nests a category under the one in the path
func (h *CategoryHandlers) LinkSubcategory(c echo.Context) error {
	parentID, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	var req LinkSubcategoryRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	parent, err := h.categories.LinkSubcategory(c.Request().Context(), parentID, req.SubcategoryID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, parent)
}
