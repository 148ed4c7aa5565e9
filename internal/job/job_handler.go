package job

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshu-sajeev/brokerjobs/common"
	"github.com/joshu-sajeev/brokerjobs/internal/dto"
	"github.com/joshu-sajeev/brokerjobs/middleware"
)

type JobHandler struct {
	service JobServiceInterface
}

func NewJobHandler(s JobServiceInterface) *JobHandler {
	return &JobHandler{service: s}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

// RegisterRoutes mounts the job endpoints under r.
func (h *JobHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/uploads", h.Upload)
	r.POST("/jobs/conflict-analysis", h.CreateConflict)
	r.POST("/jobs/roster-import", h.CreateRoster)
	r.GET("/jobs", h.List)
	r.GET("/jobs/:id", h.Get)
	r.GET("/jobs/:id/matches", h.Matches)
	r.POST("/jobs/:id/matches/decisions", h.Decide)
	r.POST("/admin/jobs/:id/reset", h.Reset)
	r.POST("/admin/jobs/:id/cancel", h.Cancel)
}

func jobID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if err := uuid.Validate(id); err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		return "", false
	}
	return id, true
}

// Upload handles multipart uploads of a single "file" field and returns the
// object key to create a job with.
func (h *JobHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.Error(common.Errf(http.StatusRequestEntityTooLarge, "file exceeds %d MB", MaxUploadBytes>>20))
			return
		}
		c.Error(common.Errf(http.StatusBadRequest, "file is required"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "cannot read file"))
		return
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "cannot read file"))
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	resp, err := h.service.Upload(c.Request.Context(), fh.Filename, contentType, body)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// CreateConflict handles requests to queue a conflict analysis.
func (h *JobHandler) CreateConflict(c *gin.Context) {
	var req dto.ConflictJobCreateDTO
	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	resp, err := h.service.CreateConflictJob(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// CreateRoster handles requests to queue a roster import.
func (h *JobHandler) CreateRoster(c *gin.Context) {
	var req dto.RosterJobCreateDTO
	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	resp, err := h.service.CreateRosterJob(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// Get handles status polling for one job.
func (h *JobHandler) Get(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetJob(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List handles the operator job listing, optionally filtered by kind and
// status query parameters.
func (h *JobHandler) List(c *gin.Context) {
	jobs, err := h.service.ListJobs(c.Request.Context(), c.Query("kind"), c.Query("status"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

func (h *JobHandler) Matches(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	matches, err := h.service.ListMatches(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, matches)
}

// Decide handles approvals and rejections of fuzzy matches.
func (h *JobHandler) Decide(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	var req dto.MatchDecisionsDTO
	if !middleware.Bind(c, &req) {
		return
	}

	resp, err := h.service.DecideMatches(c.Request.Context(), id, &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) Reset(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	if err := h.service.ResetJob(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *JobHandler) Cancel(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	var body dto.CancelJobDTO
	if c.Request.ContentLength > 0 && !middleware.Bind(c, &body) {
		return
	}

	if err := h.service.CancelJob(c.Request.Context(), id, body.Reason); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
