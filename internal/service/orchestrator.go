package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"go-image-transcriber/internal/analyzer"
	apperrors "go-image-transcriber/internal/errors"
	"go-image-transcriber/internal/logger"
	"go-image-transcriber/internal/observer"
	"go-image-transcriber/internal/ocr"
	"go-image-transcriber/internal/repository"
	"go-image-transcriber/internal/textnorm"
	"go-image-transcriber/internal/translator"
	"go-image-transcriber/internal/vision"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Analysis statuses returned to clients.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// AnalysisRequest carries one image submission through the pipeline.
type AnalysisRequest struct {
	UserID    string
	ImageData []byte
	MimeType  string
	// ImageURL is the stored location of the original (source URL or blob
	// URL); empty when the upload store is not configured.
	ImageURL string
}

// AnalysisResult is the orchestrator's answer. Status is "success" when every
// stage ran clean, "partial" when text was produced despite stage failures,
// "error" when nothing usable came out.
type AnalysisResult struct {
	TranscriptionID string                 `json:"transcription_id,omitempty"`
	Status          string                 `json:"status"`
	Text            string                 `json:"text,omitempty"`
	Description     string                 `json:"description,omitempty"`
	Confidence      float64                `json:"confidence"`
	ColorAnalysis   analyzer.ColorAnalysis `json:"color_analysis"`
	Errors          []string               `json:"errors,omitempty"`
	Cached          bool                   `json:"cached"`
}

// StepTimeouts bounds each external call of the pipeline.
type StepTimeouts struct {
	Vision      time.Duration
	Generation  time.Duration
	Translation time.Duration
}

// Orchestrator runs the full transcription pipeline for one submission.
type Orchestrator struct {
	analyzer   analyzer.ImageAnalyzer
	describer  vision.Describer
	generator  vision.Generator
	translator translator.Translator
	ocrEngine  ocr.Engine
	repo       repository.TranscriptionRepository
	limiter    *RateLimiter
	events     observer.Subject

	timeouts   StepTimeouts
	targetLang string

	locks sync.Map // userID -> struct{}

	cacheMu  sync.Mutex
	cache    map[string]cachedResult
	cacheTTL time.Duration
	now      func() time.Time
}

type cachedResult struct {
	result  AnalysisResult
	expires time.Time
}

// NewOrchestrator wires the pipeline. translator and ocrEngine may be nil;
// the corresponding steps are then skipped.
func NewOrchestrator(
	imageAnalyzer analyzer.ImageAnalyzer,
	describer vision.Describer,
	generator vision.Generator,
	textTranslator translator.Translator,
	ocrEngine ocr.Engine,
	repo repository.TranscriptionRepository,
	limiter *RateLimiter,
	events observer.Subject,
	timeouts StepTimeouts,
	targetLang string,
	cacheTTL time.Duration,
) *Orchestrator {
	return &Orchestrator{
		analyzer:   imageAnalyzer,
		describer:  describer,
		generator:  generator,
		translator: textTranslator,
		ocrEngine:  ocrEngine,
		repo:       repo,
		limiter:    limiter,
		events:     events,
		timeouts:   timeouts,
		targetLang: targetLang,
		cache:      make(map[string]cachedResult),
		cacheTTL:   cacheTTL,
		now:        time.Now,
	}
}

// Analyze runs the pipeline: lock, credits, local color analysis, describe,
// generate, translate, persist. Stage failures degrade the result instead of
// aborting it as long as some text was produced.
func (o *Orchestrator) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	if len(req.ImageData) == 0 {
		return nil, apperrors.NewValidationError("image data is required", nil)
	}
	if req.UserID == "" {
		return nil, apperrors.NewValidationError("user id is required", nil)
	}

	// One analysis per user at a time. No queueing: a held lock is an
	// immediate conflict.
	if _, loaded := o.locks.LoadOrStore(req.UserID, struct{}{}); loaded {
		return nil, apperrors.NewConflictError("another analysis is already running for this user")
	}
	defer o.locks.Delete(req.UserID)

	if o.limiter != nil {
		if decision := o.limiter.Check(req.UserID); !decision.Allowed {
			return nil, decision.Err()
		}
	}

	analysisID := uuid.NewString()
	started := o.now()
	o.emit(ctx, analysisID, req.UserID, observer.StageAccepted, true, "", 0)

	contentHash := hashContent(req.ImageData)
	if cached, ok := o.cachedFor(contentHash); ok {
		cached.Cached = true
		o.emit(ctx, analysisID, req.UserID, observer.StageDone, true, "served from cache", o.now().Sub(started))
		return &cached, nil
	}

	result := &AnalysisResult{Status: StatusSuccess}
	var stageErrors []string

	// Local color analysis never fails the pipeline.
	o.emit(ctx, analysisID, req.UserID, observer.StageAnalyzing, true, "", 0)
	result.ColorAnalysis = o.analyzer.Analyze(req.ImageData)

	// Describe.
	o.emit(ctx, analysisID, req.UserID, observer.StageDescribing, true, "", 0)
	description, err := o.describe(ctx, req, result.ColorAnalysis.Summary())
	if err != nil {
		stageErrors = append(stageErrors, "describe: "+err.Error())
		o.emit(ctx, analysisID, req.UserID, observer.StageDescribing, false, err.Error(), 0)
	}
	result.Description = description

	// Generate, only when a description exists.
	var generated string
	if description != "" {
		o.emit(ctx, analysisID, req.UserID, observer.StageGenerating, true, "", 0)
		generated, err = o.generate(ctx, description)
		if err != nil {
			stageErrors = append(stageErrors, "generate: "+err.Error())
			o.emit(ctx, analysisID, req.UserID, observer.StageGenerating, false, err.Error(), 0)
			generated = ""
		}
	}

	text := generated
	if text == "" {
		text = description
	}

	// Local OCR cross-check. When the hosted model produced nothing the
	// local pass may still rescue some text; when both produced text their
	// agreement becomes the confidence score.
	localText := o.runLocalOCR(ctx, req.ImageData)
	if text == "" && localText != "" {
		text = localText
		stageErrors = append(stageErrors, "vision produced no text, local OCR fallback used")
	}
	result.Confidence = ocr.DefaultConfidence
	if text != "" && localText != "" {
		result.Confidence = ocr.EstimateConfidence(text, localText)
	}

	// Translate when the text is not already in the target language.
	if text != "" && o.translator != nil && o.needsTranslation(text) {
		o.emit(ctx, analysisID, req.UserID, observer.StageTranslating, true, "", 0)
		translated, err := o.translate(ctx, text)
		if err != nil {
			stageErrors = append(stageErrors, "translate: "+err.Error())
			o.emit(ctx, analysisID, req.UserID, observer.StageTranslating, false, err.Error(), 0)
		} else {
			text = translated
		}
	}
	result.Text = text

	if text == "" {
		// Nothing usable was produced; nothing is persisted.
		result.Status = StatusError
		result.Errors = stageErrors
		o.emit(ctx, analysisID, req.UserID, observer.StageFailed, false, strings.Join(stageErrors, "; "), o.now().Sub(started))
		return result, apperrors.NewInternalError("analysis produced no text", nil)
	}

	// Persist. Earlier partial failures do not change the stored status.
	o.emit(ctx, analysisID, req.UserID, observer.StagePersisting, true, "", 0)
	record := &repository.Transcription{
		UserID:     req.UserID,
		ImageURL:   req.ImageURL,
		Text:       text,
		Confidence: result.Confidence,
		Status:     repository.StatusCompleted,
		Error:      strings.Join(stageErrors, "; "),
	}
	if err := o.repo.Create(ctx, record); err != nil {
		result.Status = StatusError
		result.Errors = append(stageErrors, "persist: "+err.Error())
		o.emit(ctx, analysisID, req.UserID, observer.StageFailed, false, err.Error(), o.now().Sub(started))
		return result, apperrors.NewInternalError("failed to persist transcription", err)
	}
	result.TranscriptionID = record.ID

	if len(stageErrors) > 0 {
		result.Status = StatusPartial
		result.Errors = stageErrors
	}
	o.storeCache(contentHash, *result)
	o.emit(ctx, analysisID, req.UserID, observer.StageDone, true, "", o.now().Sub(started))

	logger.WithFields(logrus.Fields{
		"analysis_id":      analysisID,
		"transcription_id": record.ID,
		"status":           result.Status,
		"confidence":       result.Confidence,
	}).Info("Analysis finished")
	return result, nil
}

func (o *Orchestrator) describe(ctx context.Context, req AnalysisRequest, colorSummary string) (string, error) {
	if o.describer == nil {
		return "", apperrors.NewInternalError("vision endpoint not configured", nil)
	}
	stepCtx, cancel := context.WithTimeout(ctx, o.timeouts.Vision)
	defer cancel()
	return o.describer.DescribeImage(stepCtx, req.ImageData, req.MimeType, colorSummary)
}

func (o *Orchestrator) generate(ctx context.Context, description string) (string, error) {
	if o.generator == nil {
		return "", apperrors.NewInternalError("text endpoint not configured", nil)
	}
	stepCtx, cancel := context.WithTimeout(ctx, o.timeouts.Generation)
	defer cancel()
	return o.generator.GenerateResponse(stepCtx, description)
}

func (o *Orchestrator) translate(ctx context.Context, text string) (string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.timeouts.Translation)
	defer cancel()
	return o.translator.Translate(stepCtx, text, o.targetLang)
}

func (o *Orchestrator) runLocalOCR(ctx context.Context, imageData []byte) string {
	if o.ocrEngine == nil {
		return ""
	}
	text, err := o.ocrEngine.ExtractText(ctx, imageData)
	if err != nil {
		logger.WithError(err).Debug("Local OCR pass failed")
		return ""
	}
	return text
}

func (o *Orchestrator) needsTranslation(text string) bool {
	switch o.targetLang {
	case "pt":
		return !textnorm.LooksLikePortuguese(text)
	case "en":
		return !textnorm.LooksLikeEnglish(text)
	default:
		return false
	}
}

func (o *Orchestrator) emit(ctx context.Context, analysisID, userID string, stage observer.Stage, success bool, message string, elapsed time.Duration) {
	if o.events == nil {
		return
	}
	o.events.NotifyObservers(ctx, observer.StageEvent{
		AnalysisID: analysisID,
		UserID:     userID,
		Stage:      stage,
		Success:    success,
		Message:    message,
		Elapsed:    elapsed,
		Timestamp:  o.now(),
	})
}

func (o *Orchestrator) cachedFor(hash string) (AnalysisResult, bool) {
	if o.cacheTTL <= 0 {
		return AnalysisResult{}, false
	}
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()
	entry, ok := o.cache[hash]
	if !ok {
		return AnalysisResult{}, false
	}
	if o.now().After(entry.expires) {
		delete(o.cache, hash)
		return AnalysisResult{}, false
	}
	return entry.result, true
}

func (o *Orchestrator) storeCache(hash string, result AnalysisResult) {
	if o.cacheTTL <= 0 {
		return
	}
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()
	o.cache[hash] = cachedResult{result: result, expires: o.now().Add(o.cacheTTL)}
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
