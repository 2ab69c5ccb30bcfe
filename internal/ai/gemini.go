// gemini.go - The AI gateway: one Gemini call per product-scouting task.
//
// Every operation is independently fallible. Failures are logged through the
// request context and surface as a non-nil error, which callers treat as the
// "no result" sentinel; nothing here panics past the gateway boundary. For the
// list-returning searches, a nil error with an empty slice is a valid outcome
// distinct from failure: it means "searched, found nothing".

package ai

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/snapfind/product_scout_gemini/configs"
	"github.com/snapfind/product_scout_gemini/internal/common"
	"github.com/snapfind/product_scout_gemini/internal/extract"
	"github.com/snapfind/product_scout_gemini/internal/model"
	"github.com/snapfind/product_scout_gemini/internal/ratelimit"
	"google.golang.org/api/option"
)

// Gateway issues task-specific requests against the hosted Gemini models.
type Gateway struct {
	apiKey         string
	modelName      string
	imageModelName string
}

// NewGateway creates a gateway from the loaded configuration.
func NewGateway() *Gateway {
	return &Gateway{
		apiKey:         configs.GEMINI_API_KEY,
		modelName:      configs.MODEL_NAME,
		imageModelName: configs.IMAGE_MODEL_NAME,
	}
}

// Identify determines what product is in the photo. The schema hint keeps the
// response shape honest but output is still validated through the extractor.
func (g *Gateway) Identify(ctx context.Context, reqCtx *common.RequestContext, imageData []byte, mimeType string) (*model.Identification, error) {
	ratelimit.WaitForRateLimit()

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		reqCtx.LogError("identify: failed to create Gemini client: %v", err)
		return nil, err
	}
	defer client.Close()

	m := client.GenerativeModel(g.modelName)
	m.GenerationConfig = genai.GenerationConfig{MaxOutputTokens: ptr(int32(1024))}
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = identifySchema()

	resp, err := callWithRetry(ctx, m, reqCtx, DefaultRetryConfig,
		genai.Text(identifyPrompt()),
		genai.Blob{MIMEType: mimeType, Data: imageData},
	)
	if err != nil {
		return nil, err
	}
	g.recordUsage(reqCtx, resp)

	var ident model.Identification
	if !extract.DecodeInto(responseText(resp), &ident) || ident.Name == "" {
		reqCtx.LogWarning("identify: no usable JSON in response: %s", preview(responseText(resp)))
		return nil, fmt.Errorf("identify: unusable model response")
	}
	return &ident, nil
}

// GetDetails fetches the key features and approximate price for a product.
func (g *Gateway) GetDetails(ctx context.Context, reqCtx *common.RequestContext, name string) (*model.ProductDetails, error) {
	ratelimit.WaitForRateLimit()

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		reqCtx.LogError("details: failed to create Gemini client: %v", err)
		return nil, err
	}
	defer client.Close()

	m := client.GenerativeModel(g.modelName)
	m.GenerationConfig = genai.GenerationConfig{MaxOutputTokens: ptr(int32(1024))}
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = detailsSchema()

	resp, err := callWithRetry(ctx, m, reqCtx, DefaultRetryConfig, genai.Text(detailsPrompt(name)))
	if err != nil {
		return nil, err
	}
	g.recordUsage(reqCtx, resp)

	var details model.ProductDetails
	if !extract.DecodeInto(responseText(resp), &details) || len(details.KeyFeatures) == 0 {
		reqCtx.LogWarning("details: no usable JSON in response: %s", preview(responseText(resp)))
		return nil, fmt.Errorf("details: unusable model response")
	}
	if len(details.KeyFeatures) > 2 {
		details.KeyFeatures = details.KeyFeatures[:2]
	}
	return &details, nil
}

// FindNearbyShops searches for physical stores around the user. The call is
// search-grounded, which rules out the JSON response mode, so the reply is
// free text run through the extractor.
func (g *Gateway) FindNearbyShops(ctx context.Context, reqCtx *common.RequestContext, name, productType string, loc model.UserLocation) ([]model.Shop, error) {
	ratelimit.WaitForRateLimit()

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		reqCtx.LogError("shops: failed to create Gemini client: %v", err)
		return nil, err
	}
	defer client.Close()

	m := client.GenerativeModel(g.modelName)
	m.GenerationConfig = genai.GenerationConfig{MaxOutputTokens: ptr(int32(2048))}
	m.Tools = []*genai.Tool{{GoogleSearchRetrieval: &genai.GoogleSearchRetrieval{}}}

	prompt := nearbyShopsPrompt(name, productType, loc, configs.SEARCH_RADIUS_KM, configs.MAX_NEARBY_SHOPS)
	resp, err := callWithRetry(ctx, m, reqCtx, DefaultRetryConfig, genai.Text(prompt))
	if err != nil {
		return nil, err
	}
	g.recordUsage(reqCtx, resp)

	var shops []model.Shop
	if !extract.DecodeInto(responseText(resp), &shops) {
		reqCtx.LogWarning("shops: no usable JSON in response: %s", preview(responseText(resp)))
		return nil, fmt.Errorf("shops: unusable model response")
	}
	if len(shops) > configs.MAX_NEARBY_SHOPS {
		shops = shops[:configs.MAX_NEARBY_SHOPS]
	}
	for i := range shops {
		shops[i].Rating = clamp(shops[i].Rating, 1, 5)
		shops[i].AvailabilityScore = clamp(shops[i].AvailabilityScore, 0, 1)
	}
	return shops, nil
}

// FindOnlineStores searches marketplaces for current listings of the product.
func (g *Gateway) FindOnlineStores(ctx context.Context, reqCtx *common.RequestContext, name string) ([]model.OnlineStore, error) {
	ratelimit.WaitForRateLimit()

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		reqCtx.LogError("stores: failed to create Gemini client: %v", err)
		return nil, err
	}
	defer client.Close()

	m := client.GenerativeModel(g.modelName)
	m.GenerationConfig = genai.GenerationConfig{MaxOutputTokens: ptr(int32(2048))}
	m.Tools = []*genai.Tool{{GoogleSearchRetrieval: &genai.GoogleSearchRetrieval{}}}

	resp, err := callWithRetry(ctx, m, reqCtx, DefaultRetryConfig, genai.Text(onlineStoresPrompt(name)))
	if err != nil {
		return nil, err
	}
	g.recordUsage(reqCtx, resp)

	var stores []model.OnlineStore
	if !extract.DecodeInto(responseText(resp), &stores) {
		reqCtx.LogWarning("stores: no usable JSON in response: %s", preview(responseText(resp)))
		return nil, fmt.Errorf("stores: unusable model response")
	}
	return stores, nil
}

// FindSimilarProducts lists alternative products. ImageURL is optional per
// entry; the pipeline backfills missing ones via GenerateImage.
func (g *Gateway) FindSimilarProducts(ctx context.Context, reqCtx *common.RequestContext, name string) ([]model.SimilarProduct, error) {
	ratelimit.WaitForRateLimit()

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		reqCtx.LogError("similar: failed to create Gemini client: %v", err)
		return nil, err
	}
	defer client.Close()

	m := client.GenerativeModel(g.modelName)
	m.GenerationConfig = genai.GenerationConfig{MaxOutputTokens: ptr(int32(2048))}
	m.Tools = []*genai.Tool{{GoogleSearchRetrieval: &genai.GoogleSearchRetrieval{}}}

	prompt := similarProductsPrompt(name, configs.MAX_SIMILAR_PRODUCTS)
	resp, err := callWithRetry(ctx, m, reqCtx, DefaultRetryConfig, genai.Text(prompt))
	if err != nil {
		return nil, err
	}
	g.recordUsage(reqCtx, resp)

	var similar []model.SimilarProduct
	if !extract.DecodeInto(responseText(resp), &similar) {
		reqCtx.LogWarning("similar: no usable JSON in response: %s", preview(responseText(resp)))
		return nil, fmt.Errorf("similar: unusable model response")
	}
	if len(similar) > configs.MAX_SIMILAR_PRODUCTS {
		similar = similar[:configs.MAX_SIMILAR_PRODUCTS]
	}
	return similar, nil
}

// GenerateImage synthesizes one square studio product photo and returns it as
// a base64 data URI.
func (g *Gateway) GenerateImage(ctx context.Context, reqCtx *common.RequestContext, name string) (string, error) {
	ratelimit.WaitForRateLimit()

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		reqCtx.LogError("image: failed to create Gemini client: %v", err)
		return "", err
	}
	defer client.Close()

	m := client.GenerativeModel(g.imageModelName)

	resp, err := callWithRetry(ctx, m, reqCtx, DefaultRetryConfig, genai.Text(generateImagePrompt(name)))
	if err != nil {
		return "", err
	}
	g.recordUsage(reqCtx, resp)

	if len(resp.Candidates) == 0 {
		reqCtx.LogWarning("image: no candidates for %q", name)
		return "", fmt.Errorf("image: empty response")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
			return fmt.Sprintf("data:%s;base64,%s", blob.MIMEType, base64.StdEncoding.EncodeToString(blob.Data)), nil
		}
	}
	reqCtx.LogWarning("image: response for %q contained no image part", name)
	return "", fmt.Errorf("image: no image part in response")
}

// --- Schemas ---

func identifySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name": {
				Type:        genai.TypeString,
				Description: "Specific product name, including brand and model if visible",
			},
			"type": {
				Type:        genai.TypeString,
				Description: "Short product category, e.g. Electronics, Kitchenware",
			},
		},
		Required: []string{"name", "type"},
	}
}

func detailsSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"keyFeatures": {
				Type:        genai.TypeArray,
				Description: "1 to 2 short strings naming the most important features",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
			"approximatePrice": {
				Type:        genai.TypeString,
				Description: "Typical retail price as a display string, e.g. \"$25 - $35\"",
			},
		},
		Required: []string{"keyFeatures", "approximatePrice"},
	}
}

// --- Helpers ---

// responseText returns the first text part of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			return string(text)
		}
	}
	return ""
}

// recordUsage accumulates token cost onto the request context.
func (g *Gateway) recordUsage(reqCtx *common.RequestContext, resp *genai.GenerateContentResponse) {
	if resp == nil || resp.UsageMetadata == nil {
		return
	}
	reqCtx.AddTokens(common.CalculateTokenCost(
		int(resp.UsageMetadata.PromptTokenCount),
		int(resp.UsageMetadata.CandidatesTokenCount),
	))
}

// preview truncates a model response for log lines.
func preview(s string) string {
	if len(s) > 300 {
		return s[:300] + "... (truncated)"
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ptr is a helper function to get a pointer to an int32 value
func ptr(i int32) *int32 {
	return &i
}
