package job

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/dto"
	"github.com/joshu-sajeev/brokerjobs/internal/models"
)

// JobRepoInterface defines the job store operations the API needs.
type JobRepoInterface interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, kind config.JobKind, status config.JobStatus) ([]models.Job, error)
	Reset(ctx context.Context, id string, lease time.Duration) error
	Cancel(ctx context.Context, id string, reason string) error
	ResolveApproval(ctx context.Context, id string) error
}

// MatchRepoInterface defines the pending match operations the API needs.
type MatchRepoInterface interface {
	ListByJob(ctx context.Context, jobID string) ([]models.PendingMatch, error)
	Decide(ctx context.Context, jobID string, decisions []models.MatchDecision) (int64, error)
}

// FileStore receives uploaded documents.
type FileStore interface {
	NewKey(filename string) string
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// JobServiceInterface defines the contract for job business logic operations.
type JobServiceInterface interface {
	Upload(ctx context.Context, filename, contentType string, body []byte) (*dto.UploadDTO, error)
	CreateConflictJob(ctx context.Context, req *dto.ConflictJobCreateDTO) (*dto.JobCreatedDTO, error)
	CreateRosterJob(ctx context.Context, req *dto.RosterJobCreateDTO) (*dto.JobCreatedDTO, error)
	GetJob(ctx context.Context, id string) (*dto.JobStatusDTO, error)
	ListJobs(ctx context.Context, kind, status string) ([]dto.JobAdminDTO, error)
	ListMatches(ctx context.Context, id string) ([]dto.PendingMatchDTO, error)
	DecideMatches(ctx context.Context, id string, req *dto.MatchDecisionsDTO) (*dto.MatchDecisionResultDTO, error)
	ResetJob(ctx context.Context, id string) error
	CancelJob(ctx context.Context, id string, reason string) error
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Upload(c *gin.Context)
	CreateConflict(c *gin.Context)
	CreateRoster(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Matches(c *gin.Context)
	Decide(c *gin.Context)
	Reset(c *gin.Context)
	Cancel(c *gin.Context)
}
