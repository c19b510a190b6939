package catalog

import (
	"math/rand"
	"sync"
)

var productNames = []string{
	"Essential Jacket",
	"Classic Denim",
	"Wool Sweater",
	"Cotton Dress",
	"Leather Boots",
	"Silk Blouse",
	"Casual Pants",
	"Winter Coat",
	"Summer Top",
	"Formal Shirt",
	"Knit Cardigan",
	"Ankle Boots",
	"Maxi Dress",
	"Blazer",
	"Skinny Jeans",
}

var productPrices = []string{
	"€29.99", "€39.99", "€49.99", "€59.99",
	"€69.99", "€79.99", "€89.99", "€99.99",
}

// ProductName returns the display name for a zero-based slot, cycling
// through the name list.
func ProductName(slot int) string {
	if slot < 0 {
		slot = -slot
	}
	return productNames[slot%len(productNames)]
}

// PricePicker chooses a display price for the probe index i.
type PricePicker func(i int) string

// RandomPrice picks a price uniformly from the price list.
func RandomPrice() PricePicker {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(rand.Int63()))

	return func(int) string {
		mu.Lock()
		defer mu.Unlock()
		return productPrices[rng.Intn(len(productPrices))]
	}
}

// CyclicPrice walks the price list in order. Useful for stable output.
func CyclicPrice() PricePicker {
	return func(i int) string {
		if i < 1 {
			i = 1
		}
		return productPrices[(i-1)%len(productPrices)]
	}
}
