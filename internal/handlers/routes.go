package handlers

import (
	"github.com/labstack/echo/v4"
)

// Router groups the handlers served by the API.
type Router struct {
	Designs    *DesignHandlers
	Categories *CategoryHandlers
	Auth       *AuthHandlers
	Users      *UserHandlers
	Payments   *PaymentHandlers
	Dashboard  *DashboardHandlers
	Health     *HealthHandlers
}

// Guards are the middleware chains protecting routes. Admin runs after Authn.
type Guards struct {
	Authn echo.MiddlewareFunc
	Admin echo.MiddlewareFunc
	Audit echo.MiddlewareFunc
}

// Register mounts every route on e.
func (r *Router) Register(e *echo.Echo, g Guards) {
	e.GET("/health", r.Health.LivenessCheck)
	e.GET("/health/ready", r.Health.ReadinessCheck)

	v1 := e.Group("/v1")

	// Public catalog
	v1.GET("/designs", r.Designs.ListDesigns)
	v1.GET("/designs/featured", r.Designs.FeaturedDesigns)
	v1.GET("/designs/popular", r.Designs.PopularDesigns)
	v1.GET("/designs/:id", r.Designs.GetDesign)
	v1.POST("/designs/:id/favorite", r.Users.ToggleFavorite, g.Authn)
	v1.GET("/categories/main", r.Categories.MainCategories)
	v1.GET("/categories/:id", r.Categories.GetCategory)

	// Authentication
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", r.Auth.Register)
	authGroup.POST("/login", r.Auth.Login)
	authGroup.GET("/me", r.Auth.Me, g.Authn)

	// Signed-in users
	users := v1.Group("/users", g.Authn)
	users.GET("/profile", r.Users.GetProfile)
	users.PUT("/profile", r.Users.UpdateProfile)
	users.GET("/purchases", r.Users.Purchases)

	payments := v1.Group("/payments", g.Authn)
	payments.POST("/create", r.Payments.CreatePayment)
	payments.POST("/execute", r.Payments.ExecutePayment)
	payments.POST("/cancel", r.Payments.CancelPayment)

	// Back office
	admin := v1.Group("/admin", g.Authn, g.Admin, g.Audit)
	admin.GET("/dashboard", r.Dashboard.Stats)
	admin.POST("/designs", r.Designs.CreateDesign)
	admin.GET("/designs/:id", r.Designs.AdminGetDesign)
	admin.PATCH("/designs/:id", r.Designs.UpdateDesign)
	admin.DELETE("/designs/:id", r.Designs.DeleteDesign)
	admin.PATCH("/designs/:id/featured", r.Designs.SetFeatured)
	admin.PATCH("/designs/:id/popular", r.Designs.SetPopular)
	admin.POST("/categories", r.Categories.CreateCategory)
	admin.PUT("/categories/:id", r.Categories.UpdateCategory)
	admin.POST("/categories/:id/subcategories", r.Categories.LinkSubcategory)
}
