package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/snapfind/product_scout_gemini/internal/common"
	"github.com/snapfind/product_scout_gemini/internal/model"
	"github.com/snapfind/product_scout_gemini/internal/session"
)

// stubGateway fakes the AI service with per-operation behavior and counts
// calls so tests can assert which operations were issued.
type stubGateway struct {
	mu    sync.Mutex
	calls map[string]int

	identify func() (*model.Identification, error)
	details  func() (*model.ProductDetails, error)
	shops    func() ([]model.Shop, error)
	stores   func() ([]model.OnlineStore, error)
	similar  func() ([]model.SimilarProduct, error)
	image    func(name string) (string, error)
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		calls:    make(map[string]int),
		identify: func() (*model.Identification, error) { return &model.Identification{Name: "X", Type: "Electronics"}, nil },
		details: func() (*model.ProductDetails, error) {
			return &model.ProductDetails{KeyFeatures: []string{"durable"}, ApproximatePrice: "$25"}, nil
		},
		shops:   func() ([]model.Shop, error) { return []model.Shop{}, nil },
		stores:  func() ([]model.OnlineStore, error) { return []model.OnlineStore{}, nil },
		similar: func() ([]model.SimilarProduct, error) { return []model.SimilarProduct{}, nil },
		image:   func(string) (string, error) { return "data:image/png;base64,xyz", nil },
	}
}

func (g *stubGateway) count(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
}

func (g *stubGateway) callCount(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *stubGateway) Identify(ctx context.Context, reqCtx *common.RequestContext, imageData []byte, mimeType string) (*model.Identification, error) {
	g.count("identify")
	return g.identify()
}

func (g *stubGateway) GetDetails(ctx context.Context, reqCtx *common.RequestContext, name string) (*model.ProductDetails, error) {
	g.count("details")
	return g.details()
}

func (g *stubGateway) FindNearbyShops(ctx context.Context, reqCtx *common.RequestContext, name, productType string, loc model.UserLocation) ([]model.Shop, error) {
	g.count("shops")
	return g.shops()
}

func (g *stubGateway) FindOnlineStores(ctx context.Context, reqCtx *common.RequestContext, name string) ([]model.OnlineStore, error) {
	g.count("stores")
	return g.stores()
}

func (g *stubGateway) FindSimilarProducts(ctx context.Context, reqCtx *common.RequestContext, name string) ([]model.SimilarProduct, error) {
	g.count("similar")
	return g.similar()
}

func (g *stubGateway) GenerateImage(ctx context.Context, reqCtx *common.RequestContext, name string) (string, error) {
	g.count("image")
	return g.image(name)
}

func newTestSession() *session.Session {
	return session.NewStore(time.Minute).Create()
}

func testInput() Input {
	return Input{
		Image:    []byte("fake-jpeg"),
		MIMEType: "image/jpeg",
		Location: &model.UserLocation{Latitude: 13.75, Longitude: 100.5},
	}
}

func run(t *testing.T, gw *stubGateway, sess *session.Session, in Input) {
	t.Helper()
	reqCtx := common.NewRequestContext(sess.ID)
	if err := New(gw).Run(context.Background(), reqCtx, sess, in); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestIdentifyFailureHaltsPipeline(t *testing.T) {
	gw := newStubGateway()
	gw.identify = func() (*model.Identification, error) { return nil, errors.New("unusable response") }
	sess := newTestSession()

	run(t, gw, sess, testInput())

	snap := sess.Snapshot()
	if snap.Step != session.StepError {
		t.Errorf("step = %v, want error", snap.Step)
	}
	if snap.ErrorMessage != MsgIdentifyFailed {
		t.Errorf("errorMessage = %q", snap.ErrorMessage)
	}
	for _, op := range []string{"details", "shops", "stores", "similar", "image"} {
		if n := gw.callCount(op); n != 0 {
			t.Errorf("%s called %d times after identify failure, want 0", op, n)
		}
	}
}

func TestDetailsFailureIsFatalDespiteShopSuccess(t *testing.T) {
	gw := newStubGateway()
	gw.details = func() (*model.ProductDetails, error) { return nil, errors.New("unusable response") }
	gw.shops = func() ([]model.Shop, error) {
		return []model.Shop{{Name: "Corner Store", AvailabilityScore: 0.8}}, nil
	}
	sess := newTestSession()

	reqCtx := common.NewRequestContext(sess.ID)
	if err := New(gw).Run(context.Background(), reqCtx, sess, testInput()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := sess.Snapshot()
	if snap.Step != session.StepError {
		t.Errorf("step = %v, want error", snap.Step)
	}
	if snap.ErrorMessage != MsgDetailsFailed {
		t.Errorf("errorMessage = %q", snap.ErrorMessage)
	}

	// The lookup step log must carry the failure, not a blanket success.
	var lookupStep *common.StepLog
	for i := range reqCtx.Steps {
		if reqCtx.Steps[i].Name == "parallel_lookups" {
			lookupStep = &reqCtx.Steps[i]
		}
	}
	if lookupStep == nil {
		t.Fatal("no parallel_lookups step recorded")
	}
	if lookupStep.Status != "failed" || lookupStep.Error == "" {
		t.Errorf("parallel_lookups step = %+v, want failed with error", lookupStep)
	}
}

func TestMissingLocationIsFatal(t *testing.T) {
	gw := newStubGateway()
	sess := newTestSession()

	in := testInput()
	in.Location = nil
	run(t, gw, sess, in)

	snap := sess.Snapshot()
	if snap.Step != session.StepError || snap.ErrorMessage != MsgNoLocation {
		t.Errorf("snapshot = %+v, want location error", snap)
	}
	if n := gw.callCount("details"); n != 0 {
		t.Errorf("details called %d times without a location, want 0", n)
	}
}

func TestLocationCachedAcrossRuns(t *testing.T) {
	gw := newStubGateway()
	sess := newTestSession()

	run(t, gw, sess, testInput())
	if sess.CachedLocation() == nil {
		t.Fatal("first run should cache the location")
	}

	// Second run (find-similar flow) carries no coordinates and must reuse
	// the cache.
	sess.SoftReset()
	in := testInput()
	in.Location = nil
	run(t, gw, sess, in)

	if sess.Snapshot().Step != session.StepResults {
		t.Errorf("step = %v, want results", sess.Snapshot().Step)
	}
}

func TestOptionalLookupsDegradeToNull(t *testing.T) {
	gw := newStubGateway()
	gw.similar = func() ([]model.SimilarProduct, error) { return nil, errors.New("search failed") }
	sess := newTestSession()

	run(t, gw, sess, testInput())

	snap := sess.Snapshot()
	if snap.Step != session.StepResults {
		t.Fatalf("step = %v, want results", snap.Step)
	}
	if snap.Results.SimilarProducts != nil {
		t.Error("failed similar lookup should surface as nil (not fetched)")
	}
	if snap.Results.Shops == nil || len(snap.Results.Shops) != 0 {
		t.Errorf("shops = %v, want non-nil empty (searched, none found)", snap.Results.Shops)
	}
	if snap.Results.OnlineStores == nil || len(snap.Results.OnlineStores) != 0 {
		t.Errorf("stores = %v, want non-nil empty", snap.Results.OnlineStores)
	}
	if gw.callCount("image") != 0 {
		t.Error("no backfill wave should run when the similar lookup failed")
	}
}

func TestEndToEndEmptyStates(t *testing.T) {
	// Photo → identified → location cached → details ok → shops and stores
	// searched but empty → similar failed. Final state is RESULTS with the
	// product header and three empty-state lists.
	gw := newStubGateway()
	gw.similar = func() ([]model.SimilarProduct, error) { return nil, errors.New("failed") }
	sess := newTestSession()

	run(t, gw, sess, testInput())

	snap := sess.Snapshot()
	if snap.Step != session.StepResults {
		t.Fatalf("step = %v, want results", snap.Step)
	}
	p := snap.Results.Product
	if p == nil || p.Name != "X" || p.Type != "Electronics" || p.ApproximatePrice != "$25" {
		t.Errorf("product = %+v", p)
	}
	if len(p.KeyFeatures) != 1 || p.KeyFeatures[0] != "durable" {
		t.Errorf("keyFeatures = %v", p.KeyFeatures)
	}
}

func TestSimilarImageBackfill(t *testing.T) {
	gw := newStubGateway()
	gw.similar = func() ([]model.SimilarProduct, error) {
		return []model.SimilarProduct{
			{Name: "has image", ImageURL: "https://example.com/a.jpg"},
			{Name: "needs image"},
			{Name: "synthesis fails"},
		}, nil
	}
	gw.image = func(name string) (string, error) {
		if name == "synthesis fails" {
			return "", errors.New("blocked")
		}
		return "data:image/png;base64,abc", nil
	}
	sess := newTestSession()

	run(t, gw, sess, testInput())

	snap := sess.Snapshot()
	similar := snap.Results.SimilarProducts
	if len(similar) != 2 {
		t.Fatalf("similar = %v, want 2 entries", similar)
	}
	if similar[0].Name != "has image" || similar[0].ImageURL != "https://example.com/a.jpg" {
		t.Errorf("entry 0 = %+v", similar[0])
	}
	if similar[1].Name != "needs image" || similar[1].ImageURL != "data:image/png;base64,abc" {
		t.Errorf("entry 1 = %+v", similar[1])
	}
	// Only entries lacking an image get a synthesis call.
	if n := gw.callCount("image"); n != 2 {
		t.Errorf("image called %d times, want 2", n)
	}
}

func TestRunRejectsConcurrentSubmission(t *testing.T) {
	gw := newStubGateway()
	sess := newTestSession()
	if err := sess.StartProcessing(); err != nil {
		t.Fatal(err)
	}

	reqCtx := common.NewRequestContext(sess.ID)
	if err := New(gw).Run(context.Background(), reqCtx, sess, testInput()); err == nil {
		t.Error("Run should refuse a session that is already processing")
	}
}
