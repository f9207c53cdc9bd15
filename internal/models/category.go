package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	Name           string            `json:"name" db:"name"`
	Description    string            `json:"description" db:"description"`
	Slug           string            `json:"slug" db:"slug"`
	Image          string            `json:"image,omitempty" db:"image"`
	ParentID       *uuid.UUID        `json:"parent,omitempty" db:"parent_id"`
	SubcategoryIDs []uuid.UUID       `json:"-" db:"subcategories"`
	Subcategories  []CategorySummary `json:"subcategories" db:"-"` // For nested responses
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
}

// CategoryInput is the admin payload for creating or editing a category.
type CategoryInput struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Description string     `json:"description" validate:"required,max=1000"`
	Image       string     `json:"image" validate:"omitempty,max=500"`
	ParentID    *uuid.UUID `json:"parent"`
}

// Summary returns the populated reference form of the category.
func (c *Category) Summary() CategorySummary {
	return CategorySummary{ID: c.ID, Name: c.Name, Slug: c.Slug, Description: c.Description}
}

// Rename sets the name and recomputes the slug from it.
func (c *Category) Rename(name string) {
	c.Name = strings.TrimSpace(name)
	c.Slug = Slugify(c.Name)
}

// Slugify lowercases s, collapses every run of characters outside [a-z0-9]
// into a single hyphen and strips leading and trailing hyphens.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}
