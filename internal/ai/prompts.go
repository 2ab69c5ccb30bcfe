// prompts.go - Centralized prompt templates for every gateway task
package ai

import (
	"fmt"
	"strings"

	"github.com/snapfind/product_scout_gemini/internal/model"
)

// priorityMarketplaces is the fixed set of platforms the online-store search is
// told to check first when they are relevant for the product.
var priorityMarketplaces = []string{"Amazon", "eBay", "Walmart", "AliExpress", "Etsy"}

// identifyPrompt asks for the two-field identification of the photographed object.
func identifyPrompt() string {
	return `Identify the product in this photo.
Respond with a JSON object with exactly two fields:
  "name": the specific product name, including brand and model if visible
  "type": a short product category (e.g. "Electronics", "Kitchenware", "Footwear")
Respond with JSON only, no commentary.`
}

// detailsPrompt asks for the mandatory enrichment data of an identified product.
func detailsPrompt(name string) string {
	return fmt.Sprintf(`Give me purchase-relevant details for the product "%s".
Respond with a JSON object:
  "keyFeatures": an array of 1 to 2 short strings naming its most important features
  "approximatePrice": a typical retail price as a display string (e.g. "$25 - $35")
Respond with JSON only, no commentary.`, name)
}

// nearbyShopsPrompt builds the geo-scoped physical store search prompt. The
// model is told to broaden the search to the product type when exact matches
// are scarce inside the radius.
func nearbyShopsPrompt(name, productType string, loc model.UserLocation, radiusKm, maxResults int) string {
	return fmt.Sprintf(`Find physical stores within %d km of latitude %.5f, longitude %.5f that are likely to sell "%s".
If you cannot find stores carrying that exact product, broaden the search to stores selling %s products in general.
Return at most %d stores.
Respond with a JSON array; each element:
  "name": store name
  "address": street address
  "distance": distance from the given coordinates as a display string (e.g. "1.2 km")
  "rating": store rating, a number from 1 to 5
  "availabilityScore": your estimate of the chance the product is in stock, a number from 0 to 1
If no stores can be found at all, respond with an empty JSON array [].
Respond with JSON only, no commentary.`, radiusKm, loc.Latitude, loc.Longitude, name, productType, maxResults)
}

// onlineStoresPrompt builds the online marketplace search prompt.
func onlineStoresPrompt(name string) string {
	return fmt.Sprintf(`Find online stores currently selling "%s".
Check these marketplaces first when relevant: %s. Other reputable stores may also be included.
Respond with a JSON array; each element:
  "platform": marketplace or store name
  "price": listed price as shown, as a string
  "stockStatus": stock status as shown (e.g. "In Stock", "Only 2 left")
  "url": direct product page URL
If the product is not available online, respond with an empty JSON array [].
Respond with JSON only, no commentary.`, name, strings.Join(priorityMarketplaces, ", "))
}

// similarProductsPrompt builds the similar-product search prompt.
func similarProductsPrompt(name string, maxResults int) string {
	return fmt.Sprintf(`List up to %d products that are similar alternatives to "%s".
Respond with a JSON array; each element:
  "name": product name
  "imageUrl": a publicly reachable product image URL, or omit the field if you do not know one
Respond with JSON only, no commentary.`, maxResults, name)
}

// generateImagePrompt asks for a single synthesized product photo.
func generateImagePrompt(name string) string {
	return fmt.Sprintf(`Generate a single square studio-style product photograph of "%s" on a clean neutral background. Output only the image.`, name)
}
