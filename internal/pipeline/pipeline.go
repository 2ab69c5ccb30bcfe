// pipeline.go - The fixed analysis sequence behind one photo submission.
//
// identify → resolve location → four concurrent lookups → image backfill wave
// → results. Mandatory data (identity, details, location) fails fast and moves
// the session to the error state; shops, online stores and similar products
// are optional enrichment that degrades to "not fetched" on failure.

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/snapfind/product_scout_gemini/internal/common"
	"github.com/snapfind/product_scout_gemini/internal/model"
	"github.com/snapfind/product_scout_gemini/internal/session"
)

// User-facing messages for pipeline-fatal failures.
const (
	MsgIdentifyFailed = "Could not identify the product. Please try a clearer photo."
	MsgDetailsFailed  = "Could not load product details. Please try again."
	MsgNoLocation     = "Location is unavailable. Please allow location access and retry."
)

// Gateway is the AI call surface the pipeline depends on. Satisfied by
// ai.Gateway; stubbed in tests.
type Gateway interface {
	Identify(ctx context.Context, reqCtx *common.RequestContext, imageData []byte, mimeType string) (*model.Identification, error)
	GetDetails(ctx context.Context, reqCtx *common.RequestContext, name string) (*model.ProductDetails, error)
	FindNearbyShops(ctx context.Context, reqCtx *common.RequestContext, name, productType string, loc model.UserLocation) ([]model.Shop, error)
	FindOnlineStores(ctx context.Context, reqCtx *common.RequestContext, name string) ([]model.OnlineStore, error)
	FindSimilarProducts(ctx context.Context, reqCtx *common.RequestContext, name string) ([]model.SimilarProduct, error)
	GenerateImage(ctx context.Context, reqCtx *common.RequestContext, name string) (string, error)
}

// Pipeline orchestrates the gateway calls for one session.
type Pipeline struct {
	gateway Gateway
}

// New creates a pipeline on top of the given gateway.
func New(gateway Gateway) *Pipeline {
	return &Pipeline{gateway: gateway}
}

// Input is one photo submission.
type Input struct {
	Image    []byte
	MIMEType string
	// Location from the request, nil when the client sent none. Ignored when
	// the session already has a cached location.
	Location *model.UserLocation
}

// Run executes the pipeline. The outcome lands in the session state machine;
// the returned error is non-nil only when the session cannot enter processing
// (an analysis is already in flight).
func (p *Pipeline) Run(ctx context.Context, reqCtx *common.RequestContext, sess *session.Session, in Input) error {
	if err := sess.StartProcessing(); err != nil {
		return err
	}

	// Step 1: identification is mandatory; nothing else is attempted when it
	// fails.
	reqCtx.StartStep("identify_product")
	ident, err := p.gateway.Identify(ctx, reqCtx, in.Image, in.MIMEType)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		sess.Fail(MsgIdentifyFailed)
		return nil
	}
	reqCtx.EndStep("success", nil, nil)
	reqCtx.LogInfo("Identified: %s (%s)", ident.Name, ident.Type)

	// Step 2: resolve the location. First submission caches it for the rest
	// of the session; later runs (find-similar) reuse the cache.
	loc := sess.CachedLocation()
	if loc == nil {
		if in.Location == nil {
			sess.Fail(MsgNoLocation)
			return nil
		}
		sess.CacheLocation(*in.Location)
		loc = in.Location
	}

	// Step 3: the four lookups run concurrently and are all joined before any
	// result is rendered.
	reqCtx.StartStep("parallel_lookups")
	var (
		wg sync.WaitGroup

		details    *model.ProductDetails
		shops      []model.Shop
		stores     []model.OnlineStore
		similar    []model.SimilarProduct
		detailsErr error
		shopsErr   error
		storesErr  error
		similarErr error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		details, detailsErr = p.gateway.GetDetails(ctx, reqCtx, ident.Name)
	}()
	go func() {
		defer wg.Done()
		shops, shopsErr = p.gateway.FindNearbyShops(ctx, reqCtx, ident.Name, ident.Type, *loc)
	}()
	go func() {
		defer wg.Done()
		stores, storesErr = p.gateway.FindOnlineStores(ctx, reqCtx, ident.Name)
	}()
	go func() {
		defer wg.Done()
		similar, similarErr = p.gateway.FindSimilarProducts(ctx, reqCtx, ident.Name)
	}()
	wg.Wait()

	// Step 4: details are mandatory even though the other three may have
	// succeeded.
	if detailsErr != nil || details == nil {
		if detailsErr == nil {
			detailsErr = fmt.Errorf("details: empty result")
		}
		reqCtx.EndStep("failed", nil, detailsErr)
		sess.Fail(MsgDetailsFailed)
		return nil
	}
	reqCtx.EndStep("success", nil, nil)

	// Step 5: backfill missing similar-product images with a second wave of
	// concurrent synthesis calls; candidates that still have no image are
	// dropped.
	if similarErr == nil {
		reqCtx.StartStep("backfill_similar_images")
		similar = p.backfillImages(ctx, reqCtx, similar)
		reqCtx.EndStep("success", nil, nil)
	}

	results := session.Results{
		Product: &model.ProductInfo{
			Name:             ident.Name,
			Type:             ident.Type,
			KeyFeatures:      details.KeyFeatures,
			ApproximatePrice: details.ApproximatePrice,
		},
		Shops:           normalize(shops, shopsErr),
		OnlineStores:    normalize(stores, storesErr),
		SimilarProducts: normalize(similar, similarErr),
	}
	sess.Complete(results)
	return nil
}

// backfillImages synthesizes images for candidates lacking one, concurrently,
// and filters the list down to entries with a non-empty image URL.
func (p *Pipeline) backfillImages(ctx context.Context, reqCtx *common.RequestContext, similar []model.SimilarProduct) []model.SimilarProduct {
	var wg sync.WaitGroup
	generated := make([]string, len(similar))

	for i := range similar {
		if similar[i].ImageURL != "" {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uri, err := p.gateway.GenerateImage(ctx, reqCtx, similar[i].Name)
			if err != nil {
				reqCtx.LogWarning("dropping similar product %q: image synthesis failed", similar[i].Name)
				return
			}
			generated[i] = uri
		}(i)
	}
	wg.Wait()

	kept := make([]model.SimilarProduct, 0, len(similar))
	for i, sp := range similar {
		if sp.ImageURL == "" {
			sp.ImageURL = generated[i]
		}
		if sp.ImageURL != "" {
			kept = append(kept, sp)
		}
	}
	return kept
}

// normalize maps a lookup outcome onto the nil-vs-empty convention: failure
// becomes nil ("not fetched"), success is always a non-nil slice even when
// the search found nothing.
func normalize[T any](list []T, err error) []T {
	if err != nil {
		return nil
	}
	if list == nil {
		return []T{}
	}
	return list
}
