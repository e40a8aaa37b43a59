package catalog

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/coursecompass/storefront/internal/visitor"
)

// Handler exposes the administrator upload endpoint.
type Handler struct {
	visitors *visitor.Resolver
}

// NewHandler builds a catalog handler.
func NewHandler(visitors *visitor.Resolver) *Handler {
	return &Handler{visitors: visitors}
}

// UploadPDF forwards a multipart PDF upload to the catalog service.
func (h *Handler) UploadPDF(c *fiber.Ctx) error {
	file, err := c.FormFile("pdf")
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "pdf file is required")
	}
	title := c.FormValue("title")
	if title == "" {
		return fiber.NewError(http.StatusBadRequest, "title is required")
	}
	f, err := file.Open()
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()

	pdf, err := NewService(h.visitors.API(c), "").UploadPDF(c.UserContext(), c.Params("id"), Upload{
		Title:       title,
		Description: c.FormValue("description"),
		FileName:    file.Filename,
		Content:     f,
	})
	if err != nil {
		return visitor.HTTPError(err, "Upload failed")
	}
	return c.Status(http.StatusCreated).JSON(pdf)
}
