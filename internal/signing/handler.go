package signing

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"permit-portal/signing-backend/internal/capture"
)

// Handler exposes the signing pipeline over HTTP.
type Handler struct {
	service      Service
	downloadName string
	logger       *zap.Logger
}

// NewHandler creates a new signing handler. downloadName is the filename
// offered for the unsigned permit download.
func NewHandler(service Service, downloadName string, logger *zap.Logger) *Handler {
	return &Handler{
		service:      service,
		downloadName: downloadName,
		logger:       logger,
	}
}

// RegisterRoutes registers signing routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/permit", h.DownloadPermit)
	rg.POST("/submissions", h.Submit)
}

// DownloadPermit serves the original permit for review before signing.
func (h *Handler) DownloadPermit(c *gin.Context) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.downloadName))
	c.Data(http.StatusOK, "application/pdf", h.service.SourceDocument())
}

type submitPayload struct {
	Name string `json:"name"`
	// Signature is a data:image/png;base64 URI exported by the canvas.
	Signature string `json:"signature,omitempty"`
	// Strokes are raw pointer paths, rendered server-side when the client
	// did not rasterize the canvas itself.
	Strokes [][]capture.Point `json:"strokes,omitempty"`
}

// Submit runs one signing submission.
func (h *Handler) Submit(c *gin.Context) {
	var payload submitPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sig, err := h.signatureFromPayload(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": FailureMissingInput})
		return
	}

	receipt, err := h.service.Submit(c.Request.Context(), SubmitRequest{
		Name:      payload.Name,
		Signature: sig,
	})
	if err != nil {
		h.renderFailure(c, err)
		return
	}

	c.JSON(http.StatusCreated, receipt)
}

// signatureFromPayload decodes whichever signature transport the client
// used. A nil return with nil error means nothing was drawn; the pipeline
// rejects that as missing input.
func (h *Handler) signatureFromPayload(payload submitPayload) (*capture.SignatureImage, error) {
	if payload.Signature != "" {
		return capture.DecodeDataURI(payload.Signature)
	}
	if len(payload.Strokes) == 0 {
		return nil, nil
	}

	surface := capture.NewSurface()
	// Establish the untouched-canvas baseline before drawing, mirroring
	// the snapshot the live canvas takes on mount.
	if _, err := surface.Snapshot(); err != nil {
		return nil, err
	}
	for _, stroke := range payload.Strokes {
		surface.AddStroke(stroke)
	}
	return surface.Snapshot()
}

func (h *Handler) renderFailure(c *gin.Context, err error) {
	var pErr *Error
	if !errors.As(err, &pErr) {
		h.logger.Error("Submission failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch pErr.Kind {
	case FailureMissingInput:
		status = http.StatusBadRequest
	case FailureDuplicateSubmission:
		status = http.StatusConflict
	case FailureComposition:
		status = http.StatusUnprocessableEntity
	case FailureDelivery:
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{"error": pErr.Error(), "kind": pErr.Kind})
}
