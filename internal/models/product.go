// Package models defines the core domain models for the storefront.
// These models represent catalog records, backend rows, the persisted user
// session and the per-page application state.
package models

import "time"

// ProductRecord is a render-ready product card. Records are rebuilt on every
// catalog load and never persisted.
//
// JSON example:
//
//	{
//	  "id": 3,
//	  "name": "Wool Sweater",
//	  "price": "€49.99",
//	  "image": "/assets/products/3.png",
//	  "alt": "Product 3"
//	}
type ProductRecord struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"name"`
	Price       string `json:"price"` // Already formatted for display
	ImageRef    string `json:"image"`
	AltText     string `json:"alt"`
}

// ProductRow is a row of the hosted products table. Title, ImageURL and Price
// may be missing; mapping to a ProductRecord fills in placeholders.
type ProductRow struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Price     *float64  `json:"price" db:"price"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	Gender    string    `json:"gender" db:"gender"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
