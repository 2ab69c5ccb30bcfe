// model.go - Domain entities shared across the pipeline, gateway and API layers.
// All of them are session-scoped and transient; nothing here is persisted.

package model

// Identification is the minimal result of the first AI call: what the
// photographed object is.
type Identification struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ProductDetails holds the mandatory enrichment data for an identified product.
type ProductDetails struct {
	KeyFeatures      []string `json:"keyFeatures"`
	ApproximatePrice string   `json:"approximatePrice"`
}

// ProductInfo is the assembled product header shown on the results screen.
// Created once identification and detail lookup both succeed, then immutable.
type ProductInfo struct {
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	KeyFeatures      []string `json:"keyFeatures"`
	ApproximatePrice string   `json:"approximatePrice"`
}

// Shop is a physical store near the user that may carry the product.
// Distance is a locale-formatted string as returned by the model ("1.2 km").
type Shop struct {
	Name              string  `json:"name"`
	Address           string  `json:"address"`
	Distance          string  `json:"distance"`
	Rating            float64 `json:"rating"`            // 1..5
	AvailabilityScore float64 `json:"availabilityScore"` // 0..1, chance the product is in stock
}

// OnlineStore is an online marketplace listing. Price and stock status are
// free-text strings from the model and not guaranteed numeric.
type OnlineStore struct {
	Platform    string `json:"platform"`
	Price       string `json:"price"`
	StockStatus string `json:"stockStatus"`
	URL         string `json:"url"`
}

// SimilarProduct is a visually or functionally similar product. ImageURL may be
// empty when it comes back from search; the pipeline backfills it via image
// synthesis and drops entries that end up without one.
type SimilarProduct struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// UserLocation is the user's coordinates, captured once per session and cached
// in memory for subsequent searches.
type UserLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
