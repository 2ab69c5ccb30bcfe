// main.go - The entry point and router setup.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snapfind/product_scout_gemini/configs"
	"github.com/snapfind/product_scout_gemini/internal/ai"
	"github.com/snapfind/product_scout_gemini/internal/api"
	"github.com/snapfind/product_scout_gemini/internal/pipeline"
	"github.com/snapfind/product_scout_gemini/internal/proxy"
	"github.com/snapfind/product_scout_gemini/internal/session"
)

func main() {
	// Step 0: Load configuration from environment variables
	configs.LoadConfig()

	// Step 0.5: Set production mode
	if ginMode := os.Getenv("GIN_MODE"); ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Step 1: Wire the session store, gateway and pipeline
	store := session.NewStore(time.Duration(configs.SESSION_TTL_MINUTES) * time.Minute)
	pipe := pipeline.New(ai.NewGateway())
	fetcher := proxy.NewFetcher(configs.IMAGE_PROXY_URL)
	handler := api.NewHandler(store, pipe, fetcher)

	// Step 2: Initialize the Gin router
	router := gin.Default()

	// Add CORS middleware - configure allowed origins for production
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", configs.ALLOWED_ORIGINS)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Root endpoint for SSL verification
	router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":        "ok",
			"service":       "product-scout-api",
			"version":       "1.0.0",
			"live_sessions": store.Size(),
		})
	})

	// Step 3: Define the API routes
	handler.RegisterRoutes(router)

	// Step 4: Setup HTTP server with timeouts
	srv := &http.Server{
		Addr:           ":" + configs.PORT,
		Handler:        router,
		ReadTimeout:    30 * time.Second, // photo uploads take a while on mobile links
		WriteTimeout:   3 * time.Minute,  // Allow up to 3 minutes for AI processing
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on :%s", configs.PORT)
		log.Println("API Endpoints:")
		log.Println("  POST /api/v1/sessions")
		log.Println("  GET  /api/v1/sessions/:id")
		log.Println("  POST /api/v1/sessions/:id/analyze")
		log.Println("  POST /api/v1/sessions/:id/similar/:index/analyze")
		log.Println("  POST /api/v1/sessions/:id/reset")
		log.Println("  GET  /api/v1/sessions/:id/export")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
