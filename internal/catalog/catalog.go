// Package catalog reads course data from the REST catalog service and
// forwards administrator PDF uploads to it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coursecompass/storefront/internal/gateway"
)

// ErrNotFound means the catalog has no course with that id.
var ErrNotFound = errors.New("course not found")

// Course is the purchasable view of a catalog course.
type Course struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Currency    string          `json:"currency"`
	Active      *bool           `json:"is_active"`
}

// FinalAmount is price minus discount, floored at zero.
func (c Course) FinalAmount() decimal.Decimal {
	amount := c.Price.Sub(c.Discount)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// PDF is a file attached to a course.
type PDF struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// Upload is an administrator PDF upload.
type Upload struct {
	Title       string
	Description string
	FileName    string
	Content     io.Reader
}

type envelope[T any] struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Service talks to the catalog endpoints through the gateway.
type Service struct {
	api      gateway.API
	currency string
}

// NewService builds a catalog service. currency applies when the backend
// omits one.
func NewService(api gateway.API, currency string) *Service {
	if currency == "" {
		currency = "INR"
	}
	return &Service{api: api, currency: currency}
}

// Course fetches one course.
func (s *Service) Course(ctx context.Context, id string) (Course, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Course{}, ErrNotFound
	}
	resp, err := s.api.Do(ctx, gateway.Request{Path: "/courses/" + id})
	if err != nil {
		if gateway.StatusOf(err) == http.StatusNotFound {
			return Course{}, ErrNotFound
		}
		return Course{}, fmt.Errorf("fetch course: %w", err)
	}
	var env envelope[Course]
	if err := resp.Decode(&env); err != nil {
		return Course{}, err
	}
	if env.Data.ID == "" {
		return Course{}, ErrNotFound
	}
	if env.Data.Currency == "" {
		env.Data.Currency = s.currency
	}
	return env.Data, nil
}

// UploadPDF attaches a PDF to course courseID. The body is multipart with
// the file under "pdf".
func (s *Service) UploadPDF(ctx context.Context, courseID string, up Upload) (PDF, error) {
	if strings.TrimSpace(up.Title) == "" {
		return PDF{}, errors.New("title is required")
	}
	if up.Content == nil {
		return PDF{}, errors.New("pdf file is required")
	}
	fields := map[string]string{"title": up.Title}
	if up.Description != "" {
		fields["description"] = up.Description
	}
	resp, err := s.api.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/admin/courses/" + courseID + "/pdfs",
		Multipart: &gateway.Multipart{
			Fields: fields,
			Files:  []gateway.File{{Field: "pdf", Name: up.FileName, Content: up.Content}},
		},
	})
	if err != nil {
		return PDF{}, fmt.Errorf("upload pdf: %w", err)
	}
	var env envelope[PDF]
	if err := resp.Decode(&env); err != nil {
		return PDF{}, err
	}
	return env.Data, nil
}
