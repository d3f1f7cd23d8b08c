// Package server implements the HTTP API: health, image metadata and
// viewport extraction over the paging engine.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kiesman99/bigview/internal/api"
	"github.com/kiesman99/bigview/internal/dzi"
	"github.com/kiesman99/bigview/internal/view"
	"github.com/kiesman99/bigview/internal/vips"
	"github.com/kiesman99/bigview/pkg/pyramid"
	"github.com/kiesman99/bigview/pkg/raster"
)

// Server serves viewport extractions for pyramid images below a root
// directory.
type Server struct {
	startTime time.Time
	version   string
	imagesDir string
}

// NewServer creates a new server instance
func NewServer(version, imagesDir string) *Server {
	return &Server{
		startTime: time.Now(),
		version:   version,
		imagesDir: imagesDir,
	}
}

// Routes mounts the API handlers on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.GetHealth)
	r.Get("/images/{name}", s.GetImageInfo)
	r.Get("/view", s.GetView)
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// GetImageInfo returns the metadata of one pyramid image.
func (s *Server) GetImageInfo(w http.ResponseWriter, r *http.Request) {
	requestID := generateRequestID()

	name := chi.URLParam(r, "name")
	img, err := s.openImage(name)
	if err != nil {
		s.handleImageError(w, err, &requestID)
		return
	}

	width, err := img.WidthForZoom(img.MaxZoom())
	if err != nil {
		s.handleImageError(w, err, &requestID)
		return
	}
	height, err := img.HeightForZoom(img.MaxZoom())
	if err != nil {
		s.handleImageError(w, err, &requestID)
		return
	}

	info := api.ImageInfo{
		Name:       name,
		Width:      width,
		Height:     height,
		TileWidth:  img.TileWidth(),
		TileHeight: img.TileHeight(),
		MinZoom:    img.MinZoom(),
		MaxZoom:    img.MaxZoom(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(info); err != nil {
		log.Printf("Error encoding image info: %v", err)
	}
}

// viewParams are the query parameters of GET /view.
type viewParams struct {
	Image   string
	Width   int
	Height  int
	Zoom    *int
	CenterX *int
	CenterY *int
}

// GetView extracts the visible region of an image and returns it as PNG.
func (s *Server) GetView(w http.ResponseWriter, r *http.Request) {
	requestID := generateRequestID()

	params, err := bindViewParams(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_PARAMS",
			err.Error(), &requestID)
		return
	}

	img, err := s.openImage(params.Image)
	if err != nil {
		s.handleImageError(w, err, &requestID)
		return
	}

	v := view.New(img, view.DefaultExtraTiles)
	v.SetViewportSize(params.Width, params.Height)
	if params.Zoom != nil {
		v.SetZoom(*params.Zoom)
	}

	var center *image.Point
	if params.CenterX != nil && params.CenterY != nil {
		center = &image.Point{X: *params.CenterX, Y: *params.CenterY}
	}

	if err := v.Load(center); err != nil {
		s.handleImageError(w, err, &requestID)
		return
	}

	canvas, rect, err := v.Visible()
	if err != nil {
		s.handleImageError(w, err, &requestID)
		return
	}
	if canvas == nil {
		s.writeErrorResponse(w, http.StatusUnprocessableEntity, "EMPTY_VIEW",
			"requested view contains no image data", &requestID)
		return
	}

	data, err := raster.EncodePNG(canvas.Crop(rect))
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "ENCODE_FAILED",
			err.Error(), &requestID)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// bindViewParams parses and validates the GET /view query parameters.
func bindViewParams(r *http.Request) (*viewParams, error) {
	query := r.URL.Query()
	params := &viewParams{}

	if err := runtime.BindQueryParameter("form", true, true, "image",
		query, &params.Image); err != nil {
		return nil, err
	}
	if err := runtime.BindQueryParameter("form", true, true, "width",
		query, &params.Width); err != nil {
		return nil, err
	}
	if err := runtime.BindQueryParameter("form", true, true, "height",
		query, &params.Height); err != nil {
		return nil, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "zoom",
		query, &params.Zoom); err != nil {
		return nil, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "x",
		query, &params.CenterX); err != nil {
		return nil, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "y",
		query, &params.CenterY); err != nil {
		return nil, err
	}

	if params.Width <= 0 || params.Height <= 0 {
		return nil, fmt.Errorf("width and height must be positive")
	}
	if (params.CenterX == nil) != (params.CenterY == nil) {
		return nil, fmt.Errorf("x and y must be given together")
	}

	return params, nil
}

// openImage resolves a name below the images directory and opens it with
// the matching adapter: .dzi manifests through the Deep Zoom reader,
// everything else through libvips.
func (s *Server) openImage(name string) (pyramid.Image, error) {
	if name == "" {
		return nil, fmt.Errorf("image name is required")
	}
	if strings.Contains(name, "..") {
		return nil, fmt.Errorf("invalid image name")
	}

	path := filepath.Join(s.imagesDir, name)
	if strings.EqualFold(filepath.Ext(name), ".dzi") {
		return dzi.Open(path)
	}
	return vips.Open(path)
}

// handleImageError maps adapter and engine errors to HTTP responses.
func (s *Server) handleImageError(w http.ResponseWriter, err error, requestID *string) {
	var formatErr *pyramid.FormatError
	var zoomErr *pyramid.ZoomError
	var layoutErr *pyramid.UnsupportedLayoutError

	switch {
	case errors.As(err, &formatErr):
		s.writeErrorResponse(w, http.StatusUnprocessableEntity, "FORMAT_ERROR",
			formatErr.Message, requestID)
	case errors.As(err, &zoomErr):
		s.writeErrorResponse(w, http.StatusBadRequest, "ZOOM_ERROR",
			zoomErr.Error(), requestID)
	case errors.As(err, &layoutErr):
		s.writeErrorResponse(w, http.StatusUnprocessableEntity, "UNSUPPORTED_LAYOUT",
			layoutErr.Error(), requestID)
	default:
		s.writeErrorResponse(w, http.StatusNotFound, "IMAGE_UNAVAILABLE",
			err.Error(), requestID)
	}
}

// writeErrorResponse writes a JSON error response in the API format.
func (s *Server) writeErrorResponse(w http.ResponseWriter, status int,
	code, message string, requestID *string) {

	response := api.ErrorResponse{
		Error: api.ErrorDetail{
			Code:    code,
			Message: message,
		},
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	if requestID != nil {
		w.Header().Set("X-Request-ID", *requestID)
	}
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding error response: %v", err)
	}
}

// generateRequestID creates a request ID for tracking.
func generateRequestID() string {
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}
