package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go-image-transcriber/internal/analyzer"
	"go-image-transcriber/internal/auth"
	"go-image-transcriber/internal/config"
	apperrors "go-image-transcriber/internal/errors"
	"go-image-transcriber/internal/logger"
	"go-image-transcriber/internal/observer"
	"go-image-transcriber/internal/repository"
	"go-image-transcriber/internal/service"
	"go-image-transcriber/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AnalysisService is the orchestrator surface the handler needs.
type AnalysisService interface {
	Analyze(ctx context.Context, req service.AnalysisRequest) (*service.AnalysisResult, error)
}

// Handler owns the HTTP surface of the service.
type Handler struct {
	cfg            *config.Config
	orchestrator   AnalysisService
	collections    *service.CollectionService
	transcriptions repository.TranscriptionRepository
	fetcher        storage.ImageFetcher
	blobStore      storage.BlobStore
	authenticator  *auth.Authenticator
	tokens         *auth.TokenService
	hub            *Hub
	metrics        *observer.MetricsObserver
}

// NewHandler builds the router. blobStore, hub and metrics may be nil.
func NewHandler(
	cfg *config.Config,
	orchestrator AnalysisService,
	collections *service.CollectionService,
	transcriptions repository.TranscriptionRepository,
	fetcher storage.ImageFetcher,
	blobStore storage.BlobStore,
	authenticator *auth.Authenticator,
	tokens *auth.TokenService,
	hub *Hub,
	metrics *observer.MetricsObserver,
) http.Handler {
	h := &Handler{
		cfg:            cfg,
		orchestrator:   orchestrator,
		collections:    collections,
		transcriptions: transcriptions,
		fetcher:        fetcher,
		blobStore:      blobStore,
		authenticator:  authenticator,
		tokens:         tokens,
		hub:            hub,
		metrics:        metrics,
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", h.healthCheck)
	r.POST("/api/auth/login", h.login)
	r.GET("/api/shared/:token", h.getShared)
	if hub != nil {
		r.GET("/ws", serveWS(hub))
	}

	api := r.Group("/api", auth.Middleware(tokens))
	{
		api.POST("/analyze", h.analyze)

		api.GET("/transcriptions", h.listTranscriptions)
		api.GET("/transcriptions/:id", h.getTranscription)
		api.DELETE("/transcriptions/:id", h.deleteTranscription)

		api.POST("/collections", h.createCollection)
		api.GET("/collections", h.listCollections)
		api.GET("/collections/:id", h.getCollection)
		api.PUT("/collections/:id", h.updateCollection)
		api.DELETE("/collections/:id", h.deleteCollection)
		api.POST("/collections/:id/items", h.addCollectionItem)
		api.DELETE("/collections/:id/items/:itemId", h.removeCollectionItem)
	}

	return r
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	if !h.authenticator.CheckCredentials(req.Username, req.Password) {
		logger.WithFields(logrus.Fields{
			"username": req.Username,
			"ip":       c.ClientIP(),
		}).Warn("Failed login attempt")
		respondError(c, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	token, err := h.tokens.GenerateToken(req.Username)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to issue token", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type analyzeURLRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// analyze accepts either a multipart upload (field "image") or a JSON body
// with a source URL.
func (h *Handler) analyze(c *gin.Context) {
	startTime := time.Now()
	userID := auth.UserID(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	logger.WithFields(logrus.Fields{
		"user_id": userID,
		"ip":      c.ClientIP(),
	}).Info("Processing analysis request")

	imageData, imageURL, err := h.readSubmission(ctx, c)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "invalid submission", err)
		return
	}

	format := analyzer.DetectImageFormat(imageData)
	if h.blobStore != nil && imageURL == "" {
		// Best effort: a failed upload leaves the record without a URL.
		uploadedURL, err := h.blobStore.UploadImage(ctx, imageData, format)
		if err != nil {
			logger.WithError(err).Warn("Image upload to blob store failed")
		} else {
			imageURL = uploadedURL
		}
	}

	result, err := h.orchestrator.Analyze(ctx, service.AnalysisRequest{
		UserID:    userID,
		ImageData: imageData,
		MimeType:  "image/" + format,
		ImageURL:  imageURL,
	})
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "analysis failed", err)
		return
	}

	logger.WithFields(logrus.Fields{
		"user_id":            userID,
		"status":             result.Status,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}).Info("Analysis request completed")
	c.JSON(http.StatusOK, result)
}

// readSubmission extracts the image bytes from the request: multipart upload
// wins over a JSON URL body. URL submissions keep the source URL.
func (h *Handler) readSubmission(ctx context.Context, c *gin.Context) ([]byte, string, error) {
	file, _, err := c.Request.FormFile("image")
	if err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxRequestBodySize))
		if err != nil {
			return nil, "", apperrors.NewValidationError("failed to read uploaded image", err)
		}
		if len(data) == 0 {
			return nil, "", apperrors.NewValidationError("uploaded image is empty", nil)
		}
		return data, "", nil
	}

	var req analyzeURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, "", apperrors.NewValidationError("provide a multipart image or a JSON url", err)
	}
	if err := validateImageURL(req.URL); err != nil {
		return nil, "", err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, h.cfg.ImageFetchTimeout)
	defer cancel()
	data, err := h.fetcher.FetchImage(fetchCtx, req.URL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, "", apperrors.NewTimeoutError("image fetch timeout", err)
		}
		return nil, "", err
	}
	return data, req.URL, nil
}

func validateImageURL(imageURL string) error {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("invalid URL format", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return apperrors.NewValidationError("URL scheme must be http or https", nil)
	}
	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	return nil
}

func (h *Handler) listTranscriptions(c *gin.Context) {
	records, err := h.transcriptions.ListByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to list transcriptions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcriptions": records})
}

func (h *Handler) getTranscription(c *gin.Context) {
	t, err := h.ownedTranscription(c)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "transcription not found", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) deleteTranscription(c *gin.Context) {
	t, err := h.ownedTranscription(c)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "transcription not found", err)
		return
	}
	if err := h.transcriptions.Delete(c.Request.Context(), t.ID); err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to delete transcription", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ownedTranscription loads the :id transcription and hides records that
// belong to other users.
func (h *Handler) ownedTranscription(c *gin.Context) (*repository.Transcription, error) {
	t, err := h.transcriptions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if t.UserID != auth.UserID(c) {
		return nil, apperrors.NewNotFoundError("transcription not found", nil)
	}
	return t, nil
}

type collectionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

func (h *Handler) createCollection(c *gin.Context) {
	var req collectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	collection, err := h.collections.Create(c.Request.Context(), auth.UserID(c), req.Name, req.Description, req.IsPublic)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to create collection", err)
		return
	}
	c.JSON(http.StatusCreated, collection)
}

func (h *Handler) listCollections(c *gin.Context) {
	list, err := h.collections.List(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to list collections", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": list})
}

func (h *Handler) getCollection(c *gin.Context) {
	ctx := c.Request.Context()
	collection, err := h.collections.Get(ctx, auth.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "collection not found", err)
		return
	}
	items, err := h.collections.ListItems(ctx, auth.UserID(c), collection.ID)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to list collection items", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": collection, "items": items})
}

func (h *Handler) updateCollection(c *gin.Context) {
	var req collectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	collection, err := h.collections.Update(c.Request.Context(), auth.UserID(c), c.Param("id"), req.Name, req.Description, req.IsPublic)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to update collection", err)
		return
	}
	c.JSON(http.StatusOK, collection)
}

func (h *Handler) deleteCollection(c *gin.Context) {
	if err := h.collections.Delete(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to delete collection", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type addItemRequest struct {
	TranscriptionID string `json:"transcription_id" binding:"required"`
}

func (h *Handler) addCollectionItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	item, err := h.collections.AddItem(c.Request.Context(), auth.UserID(c), c.Param("id"), req.TranscriptionID)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to add collection item", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) removeCollectionItem(c *gin.Context) {
	if err := h.collections.RemoveItem(c.Request.Context(), auth.UserID(c), c.Param("id"), c.Param("itemId")); err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to remove collection item", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getShared(c *gin.Context) {
	shared, err := h.collections.GetShared(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "shared collection not found", err)
		return
	}
	c.JSON(http.StatusOK, shared)
}

func (h *Handler) healthCheck(c *gin.Context) {
	payload := gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if h.metrics != nil {
		payload["metrics"] = h.metrics.GetMetrics()
	}
	if h.hub != nil {
		payload["ws_clients"] = h.hub.ClientCount()
	}
	c.JSON(http.StatusOK, payload)
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr.StatusCode
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	body := ErrorResponse{Error: http.StatusText(code), Message: message}
	if err != nil {
		body.Message = fmt.Sprintf("%s: %v", message, err)
	}
	c.AbortWithStatusJSON(code, body)
}
