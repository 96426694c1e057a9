package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/example/sig-verify/internal/capture"
	"github.com/example/sig-verify/internal/imaging"
	"github.com/example/sig-verify/internal/repository"
	"github.com/example/sig-verify/internal/usecase"
)

// VerificationService is the slice of the use case the HTTP surface needs.
type VerificationService interface {
	SaveSignature(ctx context.Context, userID, source string, upload bool) (*repository.SignatureRecord, error)
	VerifySignature(ctx context.Context, userID, candidate string) (*usecase.VerifyResult, error)
	GetResult(ctx context.Context, userID, requestID string) (*usecase.VerifyResult, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

// Grabbers bundles the acquisition helpers exposed as capture triggers.
type Grabbers struct {
	Camera    capture.Grabber
	Clipboard capture.Grabber
}

// RegisterRoutes wires the HTTP handlers to the Gin router. Everything but
// the health probe sits behind the auth middleware.
func RegisterRoutes(router *gin.Engine, svc VerificationService, grabbers Grabbers, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/", authMiddleware)

	protected.POST("/signatures", func(c *gin.Context) {
		userID := c.PostForm("user_id")
		source := c.PostForm("source")
		upload := c.PostForm("upload") == "true"

		record, err := svc.SaveSignature(c.Request.Context(), userID, source, upload)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"user_id":        record.UserID,
			"signature_path": record.SignaturePath,
			"timestamp":      record.Timestamp,
			"status":         record.Status,
		})
	})

	protected.POST("/verify", func(c *gin.Context) {
		userID := c.PostForm("user_id")
		source := c.PostForm("source")

		result, err := svc.VerifySignature(c.Request.Context(), userID, source)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, verifyResponse(result))
	})

	protected.POST("/capture/camera", func(c *gin.Context) {
		if grabbers.Camera == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "camera capture not available"})
			return
		}
		slot := 1
		if raw := c.PostForm("slot"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "slot must be a positive integer"})
				return
			}
			slot = parsed
		}
		handleCapture(c, grabbers.Camera, slot)
	})

	protected.POST("/capture/clipboard", func(c *gin.Context) {
		if grabbers.Clipboard == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "clipboard capture not available"})
			return
		}
		handleCapture(c, grabbers.Clipboard, 1)
	})

	protected.GET("/results/:id", func(c *gin.Context) {
		requestID := c.Param("id")
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		result, err := svc.GetResult(c.Request.Context(), userID, requestID)
		if errors.Is(err, repository.ErrResultNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, verifyResponse(result))
	})

	protected.GET("/metrics/summary", func(c *gin.Context) {
		summary, err := svc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

func handleCapture(c *gin.Context, grabber capture.Grabber, slot int) {
	path, err := grabber.Grab(c.Request.Context(), slot)
	if errors.Is(err, capture.ErrCaptureCancelled) {
		c.JSON(http.StatusOK, gin.H{"captured": false})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"captured": true, "path": path})
}

func verifyResponse(result *usecase.VerifyResult) gin.H {
	return gin.H{
		"request_id": result.RequestID,
		"user_id":    result.UserID,
		"score":      result.Score,
		"matched":    result.Matched,
		"threshold":  result.Threshold,
		"created_at": result.CreatedAt,
	}
}

// respondError maps domain errors to HTTP statuses. Every failure carries a
// message for the operator; nothing is swallowed.
func respondError(c *gin.Context, err error) {
	var networkErr *imaging.NetworkError
	var decodeErr *imaging.DecodeError
	var deviceErr *capture.DeviceUnavailableError

	switch {
	case errors.Is(err, usecase.ErrInvalidInput), errors.Is(err, repository.ErrInvalidRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNoRecordFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no saved signature found for the user"})
	case errors.Is(err, capture.ErrNoImageInClipboard):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no image in clipboard"})
	case errors.As(err, &deviceErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": deviceErr.Error()})
	case errors.As(err, &networkErr), errors.As(err, &decodeErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to process images: " + err.Error()})
	case errors.Is(err, usecase.ErrStorageNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
