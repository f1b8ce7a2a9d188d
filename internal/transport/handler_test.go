package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-image-transcriber/internal/auth"
	"go-image-transcriber/internal/config"
	apperrors "go-image-transcriber/internal/errors"
	"go-image-transcriber/internal/repository"
	"go-image-transcriber/internal/service"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrchestrator struct {
	result *service.AnalysisResult
	err    error
	gotReq service.AnalysisRequest
}

func (s *stubOrchestrator) Analyze(ctx context.Context, req service.AnalysisRequest) (*service.AnalysisResult, error) {
	s.gotReq = req
	return s.result, s.err
}

type testEnv struct {
	router         http.Handler
	orchestrator   *stubOrchestrator
	transcriptions repository.TranscriptionRepository
	collections    *service.CollectionService
	tokens         *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		RequestTimeout:     30 * time.Second,
		ImageFetchTimeout:  5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	transcriptions := repository.NewBadgerTranscriptionRepository(db)
	collections := service.NewCollectionService(repository.NewBadgerCollectionRepository(db), transcriptions)
	tokens := auth.NewTokenService("test-secret", time.Hour)
	orchestrator := &stubOrchestrator{result: &service.AnalysisResult{Status: service.StatusSuccess, Text: "texto"}}

	router := NewHandler(
		cfg,
		orchestrator,
		collections,
		transcriptions,
		nil, // fetcher unused: tests submit multipart uploads
		nil,
		auth.NewAuthenticator(map[string]string{"alice": "segredo123"}),
		tokens,
		nil,
		nil,
	)
	return &testEnv{
		router:         router,
		orchestrator:   orchestrator,
		transcriptions: transcriptions,
		collections:    collections,
		tokens:         tokens,
	}
}

func (e *testEnv) bearer(t *testing.T, user string) string {
	t.Helper()
	token, err := e.tokens.GenerateToken(user)
	require.NoError(t, err)
	return "Bearer " + token
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func multipartImage(t *testing.T, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "upload.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("valid credentials issue a token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"username":"alice","password":"segredo123"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := env.do(req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		claims, err := env.tokens.ValidateToken(body["token"])
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.UserID)
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"username":"alice","password":"errada"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := env.do(req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAnalyze_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartImage(t, []byte("fake-image"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnalyze_MultipartUpload(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartImage(t, []byte("fake-image-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", env.bearer(t, "alice"))
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
	assert.Equal(t, "alice", env.orchestrator.gotReq.UserID)
	assert.Equal(t, []byte("fake-image-bytes"), env.orchestrator.gotReq.ImageData)
	assert.Empty(t, env.orchestrator.gotReq.ImageURL)
}

func TestAnalyze_ConflictMapsTo429(t *testing.T) {
	env := newTestEnv(t)
	env.orchestrator.err = apperrors.NewConflictError("another analysis is already running for this user")
	env.orchestrator.result = nil

	body, contentType := multipartImage(t, []byte("img"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", env.bearer(t, "alice"))
	rec := env.do(req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAnalyze_BadSubmission(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"url":"not-a-url"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", env.bearer(t, "alice"))
	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranscriptionRoutes_OwnershipHidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := &repository.Transcription{UserID: "bob", Text: "segredo do bob", Status: repository.StatusCompleted}
	require.NoError(t, env.transcriptions.Create(ctx, rec))

	req := httptest.NewRequest(http.MethodGet, "/api/transcriptions/"+rec.ID, nil)
	req.Header.Set("Authorization", env.bearer(t, "alice"))
	resp := env.do(req)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/transcriptions/"+rec.ID, nil)
	req.Header.Set("Authorization", env.bearer(t, "alice"))
	resp = env.do(req)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/transcriptions/"+rec.ID, nil)
	req.Header.Set("Authorization", env.bearer(t, "bob"))
	resp = env.do(req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "segredo do bob")
}

func TestTranscriptionRoutes_ListAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mine := &repository.Transcription{UserID: "alice", Text: "meu texto", Status: repository.StatusCompleted}
	require.NoError(t, env.transcriptions.Create(ctx, mine))

	req := httptest.NewRequest(http.MethodGet, "/api/transcriptions", nil)
	req.Header.Set("Authorization", env.bearer(t, "alice"))
	resp := env.do(req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "meu texto")

	req = httptest.NewRequest(http.MethodDelete, "/api/transcriptions/"+mine.ID, nil)
	req.Header.Set("Authorization", env.bearer(t, "alice"))
	resp = env.do(req)
	require.Equal(t, http.StatusNoContent, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/transcriptions/"+mine.ID, nil)
	req.Header.Set("Authorization", env.bearer(t, "alice"))
	resp = env.do(req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCollectionRoutes_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mine := &repository.Transcription{UserID: "alice", Text: "texto para coleção", Status: repository.StatusCompleted}
	require.NoError(t, env.transcriptions.Create(ctx, mine))

	// Create a public collection.
	req := httptest.NewRequest(http.MethodPost, "/api/collections",
		strings.NewReader(`{"name":"notas","description":"recibos","is_public":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", env.bearer(t, "alice"))
	resp := env.do(req)
	require.Equal(t, http.StatusCreated, resp.Code)

	var created repository.Collection
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	require.NotEmpty(t, created.ShareToken)

	// Add the transcription to it.
	req = httptest.NewRequest(http.MethodPost, "/api/collections/"+created.ID+"/items",
		strings.NewReader(`{"transcription_id":"`+mine.ID+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", env.bearer(t, "alice"))
	resp = env.do(req)
	require.Equal(t, http.StatusCreated, resp.Code)

	// The shared route is public: no Authorization header.
	req = httptest.NewRequest(http.MethodGet, "/api/shared/"+created.ShareToken, nil)
	resp = env.do(req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "texto para coleção")

	// Unknown token is a 404.
	req = httptest.NewRequest(http.MethodGet, "/api/shared/nope", nil)
	resp = env.do(req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"available"`)
}
