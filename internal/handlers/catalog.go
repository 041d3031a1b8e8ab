package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/models"
)

// Catalog is the in-memory demo product set. The storefront endpoints exist
// to give the admission layer realistic traffic to protect; unknown product
// lookups return 404 and feed error-spike detection like any other error.
type Catalog struct {
	products []models.Product
	byID     map[string]models.Product
}

// NewCatalog returns a catalog seeded with the demo products.
func NewCatalog() *Catalog {
	products := []models.Product{
		{ID: "prod-001", Name: "Walnut Desk Organizer", Description: "Five-compartment organizer in oiled walnut", PriceCents: 4900, InStock: true},
		{ID: "prod-002", Name: "Ceramic Pour-Over Set", Description: "Dripper and carafe, matte white glaze", PriceCents: 6800, InStock: true},
		{ID: "prod-003", Name: "Linen Throw Blanket", Description: "Stonewashed linen, 130x170cm", PriceCents: 8900, InStock: false},
		{ID: "prod-004", Name: "Brass Page Holder", Description: "Weighted thumb ring for one-handed reading", PriceCents: 1500, InStock: true},
		{ID: "prod-005", Name: "Cork Yoga Block", Description: "High-density cork, rounded edges", PriceCents: 2200, InStock: true},
		{ID: "prod-006", Name: "Enamel Camp Mug", Description: "Double-fired enamel over steel, 350ml", PriceCents: 1800, InStock: true},
	}

	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &Catalog{products: products, byID: byID}
}

// Get returns the product with the given id.
func (c *Catalog) Get(id string) (models.Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// List returns all products in catalog order.
func (c *Catalog) List() []models.Product {
	return c.products
}

// HomeHandler serves the storefront root. Any other unrouted path falls
// through to it and gets a 404.
func HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			sendError(w, "Page not found", "NOT_FOUND", http.StatusNotFound)
			return
		}
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name":    "EcommerceStarter Storefront",
			"status":  "ok",
			"catalog": "/products",
		})
	}
}

// ProductsHandler lists the catalog
func ProductsHandler(catalog *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"products": catalog.List(),
		})
	}
}

// ProductHandler serves a single product by id.
// Expected format: /products/{id}
func ProductHandler(catalog *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/products/")
		if id == "" || strings.Contains(id, "/") {
			sendError(w, "Invalid product ID", "INVALID_PRODUCT_ID", http.StatusBadRequest)
			return
		}

		product, ok := catalog.Get(id)
		if !ok {
			slog.Debug("product not found",
				"product_id", id,
				"ip", getClientIP(r),
			)
			sendError(w, "Product not found", "PRODUCT_NOT_FOUND", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(product)
	}
}
