package models

// Product is one catalog item served by the storefront demo endpoints.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	InStock     bool   `json:"in_stock"`
}

// LoginRequest is the account login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the account login response
type LoginResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}
