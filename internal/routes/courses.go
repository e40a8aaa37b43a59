package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/coursecompass/storefront/internal/catalog"
	"github.com/coursecompass/storefront/internal/entitlement"
	"github.com/coursecompass/storefront/internal/visitor"
)

// RegisterCourseRoutes wires purchases, access checks and downloads.
func RegisterCourseRoutes(r fiber.Router, h *entitlement.Handler) {
	group := r.Group("/courses")
	group.Get("/my", h.MyCourses)
	group.Get("/:id/access", h.Access)
	group.Get("/:id/download", h.Download)
}

// RegisterAdminRoutes wires administrator-only endpoints.
func RegisterAdminRoutes(r fiber.Router, visitors *visitor.Resolver, h *catalog.Handler) {
	group := r.Group("/admin", visitors.RequireAdmin)
	group.Post("/courses/:id/pdfs", h.UploadPDF)
}
