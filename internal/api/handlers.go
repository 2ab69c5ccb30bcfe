// handlers.go - HTTP handlers for the session-driven analysis flow.

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snapfind/product_scout_gemini/configs"
	"github.com/snapfind/product_scout_gemini/internal/common"
	"github.com/snapfind/product_scout_gemini/internal/export"
	"github.com/snapfind/product_scout_gemini/internal/model"
	"github.com/snapfind/product_scout_gemini/internal/pipeline"
	"github.com/snapfind/product_scout_gemini/internal/processor"
	"github.com/snapfind/product_scout_gemini/internal/proxy"
	"github.com/snapfind/product_scout_gemini/internal/rank"
	"github.com/snapfind/product_scout_gemini/internal/session"
)

// maxUploadBytes caps the accepted photo size.
const maxUploadBytes = 15 << 20

// Handler wires the session store, pipeline and image fetcher into the API.
type Handler struct {
	store   *session.Store
	pipe    *pipeline.Pipeline
	fetcher *proxy.Fetcher
}

// NewHandler creates the API handler set.
func NewHandler(store *session.Store, pipe *pipeline.Pipeline, fetcher *proxy.Fetcher) *Handler {
	return &Handler{store: store, pipe: pipe, fetcher: fetcher}
}

// RegisterRoutes attaches all API routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.POST("/sessions", h.CreateSession)
	v1.GET("/sessions/:id", h.GetSession)
	v1.POST("/sessions/:id/analyze", h.Analyze)
	v1.POST("/sessions/:id/similar/:index/analyze", h.AnalyzeSimilar)
	v1.POST("/sessions/:id/reset", h.Reset)
	v1.GET("/sessions/:id/export", h.Export)
}

// CreateSession handles POST /api/v1/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	sess := h.store.Create()
	c.JSON(http.StatusCreated, sess.Snapshot())
}

// GetSession handles GET /api/v1/sessions/:id
// Sort query params re-order result lists for display without touching the
// stored results: shops_sort=chances|rating|distance,
// stores_sort=price_asc|price_desc|best_match.
func (h *Handler) GetSession(c *gin.Context) {
	sess, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	snap := sess.Snapshot()
	if snap.Results.Shops != nil {
		snap.Results.Shops = rank.SortShops(snap.Results.Shops, c.Query("shops_sort"))
	}
	if snap.Results.OnlineStores != nil {
		snap.Results.OnlineStores = rank.SortStores(snap.Results.OnlineStores, c.Query("stores_sort"))
	}
	c.JSON(http.StatusOK, snap)
}

// Analyze handles POST /api/v1/sessions/:id/analyze
// Multipart form: "image" (required), "latitude"/"longitude" (optional, only
// needed until the session has a cached location).
func (h *Handler) Analyze(c *gin.Context) {
	sess, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required", "details": err.Error()})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds size limit"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open upload", "details": err.Error()})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload", "details": err.Error()})
		return
	}

	imageData, mimeType, err := processor.Preprocess(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unusable image", "details": err.Error()})
		return
	}

	h.runPipeline(c, sess, pipeline.Input{
		Image:    imageData,
		MIMEType: mimeType,
		Location: parseLocation(c),
	})
}

// AnalyzeSimilar handles POST /api/v1/sessions/:id/similar/:index/analyze
// Fetches the similar product's reference image (through the cross-origin
// proxy for remote URLs) and re-runs the pipeline on it. The cached location
// survives via soft reset.
func (h *Handler) AnalyzeSimilar(c *gin.Context) {
	sess, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid similar-product index"})
		return
	}
	sp, ok := sess.SimilarProduct(index)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no similar product at that index"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	raw, _, err := h.fetcher.Fetch(ctx, sp.ImageURL)
	if err != nil {
		// The proxy is best-effort; a failed fetch is a pipeline-fatal error
		// with a descriptive message, not a transport error.
		sess.Fail(fmt.Sprintf("Could not load the reference image for %q. Please try again.", sp.Name))
		c.JSON(http.StatusOK, sess.Snapshot())
		return
	}

	imageData, mimeType, err := processor.Preprocess(raw)
	if err != nil {
		sess.Fail(fmt.Sprintf("The reference image for %q is unusable.", sp.Name))
		c.JSON(http.StatusOK, sess.Snapshot())
		return
	}

	sess.SoftReset()
	h.runPipeline(c, sess, pipeline.Input{Image: imageData, MIMEType: mimeType})
}

// Reset handles POST /api/v1/sessions/:id/reset - the "start over" action.
func (h *Handler) Reset(c *gin.Context) {
	sess, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	sess.FullReset()
	c.JSON(http.StatusOK, sess.Snapshot())
}

// Export handles GET /api/v1/sessions/:id/export - results as a workbook.
func (h *Handler) Export(c *gin.Context) {
	sess, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if sess.Step() != session.StepResults {
		c.JSON(http.StatusConflict, gin.H{"error": "no results to export"})
		return
	}

	data, err := export.BuildWorkbook(sess.Snapshot().Results)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed", "details": err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="product-scout-results.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// runPipeline executes one analysis synchronously and answers with the
// resulting session snapshot plus request diagnostics.
func (h *Handler) runPipeline(c *gin.Context, sess *session.Session, in pipeline.Input) {
	reqCtx := common.NewRequestContext(sess.ID)

	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(configs.ANALYZE_TIMEOUT)*time.Second)
	defer cancel()

	if err := h.pipe.Run(ctx, reqCtx, sess, in); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": sess.Snapshot(),
		"summary": reqCtx.GetSummary(),
	})
}

// parseLocation reads optional coordinates from the form.
func parseLocation(c *gin.Context) *model.UserLocation {
	latStr := c.PostForm("latitude")
	lngStr := c.PostForm("longitude")
	if latStr == "" || lngStr == "" {
		return nil
	}

	lat, errLat := strconv.ParseFloat(latStr, 64)
	lng, errLng := strconv.ParseFloat(lngStr, 64)
	if errLat != nil || errLng != nil {
		return nil
	}
	return &model.UserLocation{Latitude: lat, Longitude: lng}
}
