// Package entitlement decides whether a visitor owns an item and streams
// owned items.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/coursecompass/storefront/internal/gateway"
	"github.com/coursecompass/storefront/internal/logging"
)

// ErrNotOwned blocks a download of an item the visitor has not bought, or
// whose ownership could not be confirmed.
var ErrNotOwned = errors.New("item not owned")

// Purchase is a server-owned purchase record.
type Purchase struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	URL          string          `json:"url,omitempty"`
	PurchaseDate string          `json:"purchaseDate"`
	Price        decimal.Decimal `json:"price"`
}

// Access summarises what the UI may offer for an item.
type Access struct {
	Owned              bool `json:"owned"`
	CanDownload        bool `json:"canDownload"`
	ShowPurchasePrompt bool `json:"showPurchasePrompt"`
}

// Download is an open binary stream. The caller must close Body.
type Download struct {
	Body        io.ReadCloser
	ContentType string
	FileName    string
	// Length is -1 when unknown.
	Length int64
}

// Gate checks ownership against the buyer's purchase list.
type Gate struct {
	api    gateway.API
	logger *slog.Logger
}

// NewGate builds a gate over the visitor's gateway.
func NewGate(api gateway.API, logger *slog.Logger) *Gate {
	return &Gate{api: api, logger: logger}
}

// Purchases returns the visitor's purchase list.
func (g *Gate) Purchases(ctx context.Context) ([]Purchase, error) {
	resp, err := g.api.Do(ctx, gateway.Request{Path: "/courses/my"})
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	var env struct {
		Data []Purchase `json:"data"`
	}
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		env.Data = []Purchase{}
	}
	return env.Data, nil
}

// IsOwned reports whether itemID is in the purchase list. Any error yields
// false. It has no side effects beyond the read.
func (g *Gate) IsOwned(ctx context.Context, itemID string) bool {
	purchases, err := g.Purchases(ctx)
	if err != nil {
		g.logger.Warn("ownership check failed, treating as not owned",
			"item_id", itemID, "error", err, "request_id", logging.RequestID(ctx))
		return false
	}
	for _, p := range purchases {
		if p.ID == itemID {
			return true
		}
	}
	return false
}

// Access evaluates the gate for itemID. Administrators skip the purchase
// prompt but download permission is the same rule for everybody.
func (g *Gate) Access(ctx context.Context, itemID string, admin bool) Access {
	owned := g.IsOwned(ctx, itemID)
	return Access{
		Owned:              owned,
		CanDownload:        owned,
		ShowPurchasePrompt: !owned && !admin,
	}
}

// Download streams itemID after an affirmative ownership check.
func (g *Gate) Download(ctx context.Context, itemID string) (*Download, error) {
	if !g.IsOwned(ctx, itemID) {
		return nil, ErrNotOwned
	}
	resp, err := g.api.Stream(ctx, gateway.Request{
		Path:   "/courses/" + itemID + "/download",
		Header: http.Header{"Accept": []string{"application/pdf, application/octet-stream"}},
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", itemID, err)
	}

	d := &Download{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		FileName:    itemID + ".pdf",
		Length:      -1,
	}
	if d.ContentType == "" {
		d.ContentType = "application/pdf"
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		d.FileName = params["filename"]
	}
	if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
		d.Length = n
	}
	return d, nil
}
