// Package server exposes the download engine over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"vidgrab/internal/engine"
	"vidgrab/internal/model"
)

const (
	msgURLRequired       = "URL is required"
	msgURLFormatRequired = "URL and format are required"
	msgNotFound          = "Download not found"
	msgFormatsFailed     = "Failed to get video formats"
	msgDownloadFailed    = "Failed to start download"
)

// Jobs is the engine surface the handlers need.
type Jobs interface {
	GetFormats(ctx context.Context, sourceURL string) ([]model.Format, error)
	StartDownload(ctx context.Context, sourceURL, formatID string) (string, error)
	Status(ctx context.Context, jobID string) (model.JobRecord, error)
}

type Options struct {
	AllowedOrigins []string
	PushInterval   time.Duration
	Logger         *log.Logger
}

type Server struct {
	jobs         Jobs
	logger       *log.Logger
	pushInterval time.Duration
	origins      []string
	upgrader     websocket.Upgrader
}

func New(jobs Jobs, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	interval := opts.PushInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	s := &Server{
		jobs:         jobs,
		logger:       logger,
		pushInterval: interval,
		origins:      opts.AllowedOrigins,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Router builds the gin engine with logging, recovery and CORS.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(s.origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.origins
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", handleHealth)
	router.POST("/get-formats", s.handleGetFormats)
	router.POST("/download", s.handleDownload)
	router.GET("/progress/:id", s.handleProgress)
	router.GET("/ws/progress/:id", s.handleProgressStream)
	return router
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "vidgrab",
	})
}

type formatsRequest struct {
	URL string `json:"url"`
}

type downloadRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

func (s *Server) handleGetFormats(c *gin.Context) {
	var req formatsRequest
	_ = c.ShouldBindJSON(&req)
	url := strings.TrimSpace(req.URL)
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgURLRequired})
		return
	}

	formats, err := s.jobs.GetFormats(c.Request.Context(), url)
	if err != nil {
		s.logger.Printf("get-formats url=%s failed: %v", url, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": msgFormatsFailed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"formats": formats})
}

func (s *Server) handleDownload(c *gin.Context) {
	var req downloadRequest
	_ = c.ShouldBindJSON(&req)
	url := strings.TrimSpace(req.URL)
	format := strings.TrimSpace(req.Format)
	if url == "" || format == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgURLFormatRequired})
		return
	}

	jobID, err := s.jobs.StartDownload(c.Request.Context(), url, format)
	if err != nil {
		s.logger.Printf("download url=%s format=%s failed: %v", url, format, err)
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrShuttingDown) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": msgDownloadFailed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"download_id": jobID})
}

func (s *Server) handleProgress(c *gin.Context) {
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec.State())
}

// lookup writes the error response itself when it returns false.
func (s *Server) lookup(c *gin.Context) (model.JobRecord, bool) {
	rec, err := s.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, engine.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
			return model.JobRecord{}, false
		}
		s.logger.Printf("progress id=%s failed: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return model.JobRecord{}, false
	}
	return rec, true
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.origins, origin)
}

// ListenAndServe serves h on addr until ctx is cancelled, then drains
// in-flight requests.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Printf("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
