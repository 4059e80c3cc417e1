package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"

	"interviewprep/internal/config"
	"interviewprep/internal/features"
	"interviewprep/internal/service"
	logging "interviewprep/pkg/logger/pkg"
)

// Handler wires the session orchestrator to the REST surface.
type Handler struct {
	svc      *features.Service
	identity service.IdentityVerifier
	logger   *zap.Logger
}

func NewHandler(svc *features.Service, identity service.IdentityVerifier, logger *zap.Logger) *Handler {
	return &Handler{
		svc:      svc,
		identity: identity,
		logger:   logger,
	}
}

// Router builds the gin engine with middleware and all routes registered.
func (h *Handler) Router(cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	if cfg.Tracing.Enable {
		r.Use(gintrace.Middleware(cfg.Tracing.Service))
	}

	r.GET("/healthz", h.Health)
	r.GET("/metrics", h.Metrics)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/interviews", h.CreateSession)
		v1.GET("/interviews/:id", h.GetResult)
		v1.GET("/interviews/:id/status", h.GetStatus)
		v1.GET("/interviews/:id/events", h.StreamSessionEvents)
		v1.POST("/interviews/:id/questions/:index/answer", h.SubmitAnswer)
	}
	return r
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-Id", requestID)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

type createSessionRequest struct {
	Label string `json:"label"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	ownerID, ok := h.resolveOwner(c)
	if !ok {
		return
	}

	var req createSessionRequest
	// An empty body is a valid request for an unlabeled session.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	created, err := h.svc.CreateSession(c.Request.Context(), ownerID, req.Label)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) SubmitAnswer(c *gin.Context) {
	sessionID := c.Param("id")
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question index must be an integer"})
		return
	}

	fileHeader, err := c.FormFile("video")
	if err != nil {
		h.writeError(c, &features.Error{
			Kind:  features.KindUploadMissing,
			Stage: features.StageUpload,
			Err:   err,
		})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.writeError(c, &features.Error{
			Kind:  features.KindUploadMissing,
			Stage: features.StageUpload,
			Err:   err,
		})
		return
	}
	defer file.Close()

	questionText := c.PostForm("questionText")
	ext := filepath.Ext(fileHeader.Filename)

	if err := h.svc.SubmitAnswer(c.Request.Context(), sessionID, index, questionText, file, ext); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId":     sessionID,
		"questionIndex": index,
		"status":        features.StatusDone,
	})
}

func (h *Handler) GetStatus(c *gin.Context) {
	sessionID := c.Param("id")
	statuses, err := h.svc.GetStatus(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId": sessionID,
		"questions": statuses,
	})
}

func (h *Handler) GetResult(c *gin.Context) {
	session, err := h.svc.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"worker_pool": h.svc.WorkerMetrics()})
}

// resolveOwner maps the Authorization header to an owner id. No header means
// an anonymous session; a present but invalid token is rejected.
func (h *Handler) resolveOwner(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return "", true
	}
	token := strings.TrimPrefix(auth, "Bearer ")

	identity, err := h.identity.Verify(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return "", false
		}
		logging.Logger(c.Request.Context()).Error("Identity provider unavailable", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "identity provider unavailable"})
		return "", false
	}
	return identity.SubjectID, true
}

// writeError translates orchestrator error kinds to HTTP status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	kind := features.KindOf(err)

	var status int
	switch kind {
	case features.KindUploadMissing:
		status = http.StatusBadRequest
	case features.KindSessionNotFound, features.KindIndexOutOfRange:
		status = http.StatusNotFound
	case features.KindNoQuestionsAvailable, features.KindSubmissionInFlight:
		status = http.StatusConflict
	case features.KindExtractionFailed, features.KindEmptyTranscript:
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		logging.Logger(c.Request.Context()).Error("Request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": string(kind)})
}
