package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snapfind/product_scout_gemini/internal/common"
	"github.com/snapfind/product_scout_gemini/internal/model"
	"github.com/snapfind/product_scout_gemini/internal/pipeline"
	"github.com/snapfind/product_scout_gemini/internal/proxy"
	"github.com/snapfind/product_scout_gemini/internal/session"
	"github.com/stretchr/testify/require"
)

// fixedGateway answers every operation with canned data.
type fixedGateway struct {
	identifyErr error
	shops       []model.Shop
}

func (g *fixedGateway) Identify(ctx context.Context, reqCtx *common.RequestContext, imageData []byte, mimeType string) (*model.Identification, error) {
	if g.identifyErr != nil {
		return nil, g.identifyErr
	}
	return &model.Identification{Name: "Steel Thermos", Type: "Kitchenware"}, nil
}

func (g *fixedGateway) GetDetails(ctx context.Context, reqCtx *common.RequestContext, name string) (*model.ProductDetails, error) {
	return &model.ProductDetails{KeyFeatures: []string{"vacuum insulated"}, ApproximatePrice: "$25"}, nil
}

func (g *fixedGateway) FindNearbyShops(ctx context.Context, reqCtx *common.RequestContext, name, productType string, loc model.UserLocation) ([]model.Shop, error) {
	return g.shops, nil
}

func (g *fixedGateway) FindOnlineStores(ctx context.Context, reqCtx *common.RequestContext, name string) ([]model.OnlineStore, error) {
	return []model.OnlineStore{}, nil
}

func (g *fixedGateway) FindSimilarProducts(ctx context.Context, reqCtx *common.RequestContext, name string) ([]model.SimilarProduct, error) {
	return []model.SimilarProduct{}, nil
}

func (g *fixedGateway) GenerateImage(ctx context.Context, reqCtx *common.RequestContext, name string) (string, error) {
	return "data:image/png;base64,abc", nil
}

func newTestRouter(gw pipeline.Gateway) (*gin.Engine, *session.Store) {
	gin.SetMode(gin.TestMode)
	store := session.NewStore(time.Minute)
	handler := NewHandler(store, pipeline.New(gw), proxy.NewFetcher(""))

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, store
}

func multipartImage(t *testing.T, withLocation bool) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fw, err := w.CreateFormFile("image", "photo.jpg")
	require.NoError(t, err)
	fw.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02})

	if withLocation {
		w.WriteField("latitude", "13.75")
		w.WriteField("longitude", "100.50")
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func createSession(t *testing.T, router *gin.Engine) string {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, session.StepUpload, snap.Step)
	return snap.ID
}

func TestAnalyzeFlow(t *testing.T) {
	router, _ := newTestRouter(&fixedGateway{shops: []model.Shop{
		{Name: "A", AvailabilityScore: 0.2},
		{Name: "B", AvailabilityScore: 0.9},
	}})
	id := createSession(t, router)

	body, contentType := multipartImage(t, true)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Session session.Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, session.StepResults, resp.Session.Step)
	require.Equal(t, "Steel Thermos", resp.Session.Results.Product.Name)
	require.True(t, resp.Session.HasLocation)

	t.Run("sorted fetch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"?shops_sort=chances", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var snap session.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		require.Len(t, snap.Results.Shops, 2)
		require.Equal(t, "B", snap.Results.Shops[0].Name)
	})

	t.Run("export", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/export", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	})

	t.Run("full reset returns to upload", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/reset", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var snap session.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		require.Equal(t, session.StepUpload, snap.Step)
		require.False(t, snap.HasLocation)
	})
}

func TestAnalyzeIdentifyFailure(t *testing.T) {
	router, _ := newTestRouter(&fixedGateway{identifyErr: errors.New("unusable")})
	id := createSession(t, router)

	body, contentType := multipartImage(t, true)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Session session.Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, session.StepError, resp.Session.Step)
	require.Equal(t, pipeline.MsgIdentifyFailed, resp.Session.ErrorMessage)
}

func TestAnalyzeRequiresImage(t *testing.T) {
	router, _ := newTestRouter(&fixedGateway{})
	id := createSession(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/analyze", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownSession(t *testing.T) {
	router, _ := newTestRouter(&fixedGateway{})

	for _, path := range []string{
		"/api/v1/sessions/nope",
		"/api/v1/sessions/nope/export",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestExportWithoutResults(t *testing.T) {
	router, _ := newTestRouter(&fixedGateway{})
	id := createSession(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/export", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAnalyzeSimilarBadIndex(t *testing.T) {
	router, _ := newTestRouter(&fixedGateway{})
	id := createSession(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/similar/0/analyze", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
