package models

import (
	"math"
	"time"
)

// Category values accepted for a listing.
const (
	CategoryElectronics = "electronics"
	CategoryFurniture   = "furniture"
	CategoryClothing    = "clothing"
	CategoryBooks       = "books"
	CategoryOther       = "other"
)

// Categories lists every valid category in display order.
var Categories = []string{
	CategoryElectronics,
	CategoryFurniture,
	CategoryClothing,
	CategoryBooks,
	CategoryOther,
}

// IsCategory reports whether c is one of Categories.
func IsCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// MaxPrice is the largest price the products table stores (NUMERIC(12,2)).
const MaxPrice = 9999999999.99

// RoundPrice rounds p to whole cents, the precision prices are stored at.
func RoundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}

// Listing is a single product offered for sale (table products).
type Listing struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Price       float64   `db:"price" json:"price"`
	Category    string    `db:"category" json:"category"`
	Location    string    `db:"location" json:"location"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
