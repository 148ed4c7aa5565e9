package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joshu-sajeev/brokerjobs/common"
	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/dto"
	"github.com/joshu-sajeev/brokerjobs/internal/models"
	"github.com/joshu-sajeev/brokerjobs/internal/pipeline/conflict"
	"github.com/joshu-sajeev/brokerjobs/internal/pipeline/roster"
	"gorm.io/gorm"
)

type JobService struct {
	repo    JobRepoInterface
	matches MatchRepoInterface
	files   FileStore
	lease   time.Duration
	logger  *slog.Logger
}

func NewJobService(repo JobRepoInterface, matches MatchRepoInterface, files FileStore, lease time.Duration) *JobService {
	return &JobService{
		repo:    repo,
		matches: matches,
		files:   files,
		lease:   lease,
		logger:  slog.Default(),
	}
}

var _ JobServiceInterface = (*JobService)(nil)

// storeError maps repository and context errors to API errors.
func storeError(err error, action string) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return common.Errf(http.StatusNotFound, "job not found")
	case errors.Is(err, models.ErrInvalidState):
		return common.Errf(http.StatusConflict, "job is not in a state that allows this operation")
	case errors.Is(err, models.ErrClaimActive):
		return common.Errf(http.StatusConflict, "job is being processed, try again after its lease expires")
	default:
		return common.Wrap(http.StatusInternalServerError, err, "failed to %s", action)
	}
}

func timedOut(ctx context.Context) error {
	if ctx.Err() != nil {
		return common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}
	return nil
}

// Upload stores a document in object storage and returns the key a job is
// later created with.
func (s *JobService) Upload(ctx context.Context, filename, contentType string, body []byte) (*dto.UploadDTO, error) {
	if err := timedOut(ctx); err != nil {
		return nil, err
	}
	if err := validateUpload(filename, len(body)); err != nil {
		return nil, err
	}

	key := s.files.NewKey(filename)
	if err := s.files.Put(ctx, key, body, contentType); err != nil {
		s.logger.Error("api.upload.failed", "key", key, "error", err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
		}
		return nil, common.Errf(http.StatusBadGateway, "failed to store file")
	}

	s.logger.Info("api.upload.stored", "key", key, "size", len(body))
	return &dto.UploadDTO{
		Key:         key,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(body)),
	}, nil
}

// CreateConflictJob queues a conflict analysis of two uploaded documents.
func (s *JobService) CreateConflictJob(ctx context.Context, req *dto.ConflictJobCreateDTO) (*dto.JobCreatedDTO, error) {
	if err := timedOut(ctx); err != nil {
		return nil, err
	}

	payload := conflict.Payload{
		ClientName:       strings.TrimSpace(req.ClientName),
		SPDKey:           req.SPDKey,
		SPDFilename:      req.SPDFilename,
		HandbookKey:      req.HandbookKey,
		HandbookFilename: req.HandbookFilename,
		FocusAreas:       req.FocusAreas,
		EmailRecipients:  req.EmailRecipients,
	}
	if req.Branding != nil {
		payload.Branding = &conflict.Branding{
			BrokerName:     req.Branding.BrokerName,
			LogoURL:        req.Branding.LogoURL,
			PrimaryColor:   req.Branding.PrimaryColor,
			SecondaryColor: req.Branding.SecondaryColor,
		}
	}

	return s.create(ctx, config.KindConflictAnalysis, payload)
}

// CreateRosterJob queues the import of an uploaded census file.
func (s *JobService) CreateRosterJob(ctx context.Context, req *dto.RosterJobCreateDTO) (*dto.JobCreatedDTO, error) {
	if err := timedOut(ctx); err != nil {
		return nil, err
	}
	if err := validateRosterFile(req.Filename); err != nil {
		return nil, err
	}

	return s.create(ctx, config.KindRosterImport, roster.Payload{
		TeamID:     req.TeamID,
		FileKey:    req.FileKey,
		Filename:   req.Filename,
		UploadedBy: req.UploadedBy,
	})
}

func (s *JobService) create(ctx context.Context, kind config.JobKind, payload any) (*dto.JobCreatedDTO, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	j := models.Job{
		Kind:    kind,
		Payload: raw,
	}
	if err := s.repo.Create(ctx, &j); err != nil {
		s.logger.Error("api.job.create_failed", "kind", kind, "error", err)
		return nil, storeError(err, "add job to database")
	}

	s.logger.Info("api.job.created", "job_id", j.ID, "kind", kind)
	return &dto.JobCreatedDTO{ID: j.ID, Kind: string(j.Kind), Status: string(j.Status)}, nil
}

// GetJob returns the client-facing status of a job: whether it is still
// running, its progress and either a result summary or why it failed.
func (s *JobService) GetJob(ctx context.Context, id string) (*dto.JobStatusDTO, error) {
	if err := timedOut(ctx); err != nil {
		return nil, err
	}

	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, "get job")
	}

	resp := &dto.JobStatusDTO{
		ID:           j.ID,
		Kind:         string(j.Kind),
		Status:       clientStatus(j.Status),
		Stage:        string(j.Status),
		Progress:     j.Progress,
		ProgressStep: j.ProgressStep,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		CompletedAt:  j.CompletedAt,
	}
	if j.Status == config.JobStatusError || j.FailureCount > 0 {
		resp.FailureSummary = j.FailureSummary
	}
	if j.Status == config.JobStatusError && resp.FailureSummary == "" {
		resp.FailureSummary = "This job could not be completed."
	}

	result, err := s.result(j)
	if err != nil {
		s.logger.Warn("api.job.state_unreadable", "job_id", j.ID, "error", err)
	}
	resp.Result = result
	return resp, nil
}

func clientStatus(s config.JobStatus) string {
	switch s {
	case config.JobStatusComplete:
		return "complete"
	case config.JobStatusError:
		return "failed"
	}
	return "in_progress"
}

func (s *JobService) result(j *models.Job) (json.RawMessage, error) {
	if len(j.StepState) == 0 {
		return nil, nil
	}

	var summary any
	switch j.Kind {
	case config.KindConflictAnalysis:
		st, err := conflict.DecodeState(j.StepState)
		if err != nil {
			return nil, err
		}
		if st.Analysis == nil {
			return nil, nil
		}
		es := st.Analysis.ExecutiveSummary
		summary = dto.ConflictResultDTO{
			TotalConflicts: es.TotalConflicts,
			Critical:       es.Critical,
			Medium:         es.Medium,
			Low:            es.Low,
			OverallRisk:    es.OverallRisk,
			SentTo:         st.SentTo,
		}
	case config.KindRosterImport:
		st, err := roster.DecodeState(j.StepState)
		if err != nil {
			return nil, err
		}
		r := dto.RosterResultDTO{Records: len(st.Records), Invalid: len(st.Invalid)}
		if st.Match != nil {
			r.Exact, r.Fuzzy, r.New = len(st.Match.Exact), st.Match.Fuzzy, len(st.Match.New)
		}
		if st.Import != nil {
			r.Imported, r.Updated, r.Skipped = st.Import.Imported, st.Import.Updated, st.Import.Skipped
		}
		summary = r
	default:
		return nil, nil
	}

	return json.Marshal(summary)
}

// ListJobs returns jobs for operators, filtered by kind and status.
func (s *JobService) ListJobs(ctx context.Context, kind, status string) ([]dto.JobAdminDTO, error) {
	if err := timedOut(ctx); err != nil {
		return nil, err
	}
	if err := validateFilters(kind, status); err != nil {
		return nil, err
	}

	jobs, err := s.repo.List(ctx, config.JobKind(kind), config.JobStatus(status))
	if err != nil {
		return nil, storeError(err, "list jobs")
	}

	dtos := make([]dto.JobAdminDTO, len(jobs))
	for i, j := range jobs {
		dtos[i] = dto.JobAdminDTO{
			ID:             j.ID,
			Kind:           string(j.Kind),
			Status:         string(j.Status),
			Progress:       j.Progress,
			ProgressStep:   j.ProgressStep,
			AttemptCount:   j.AttemptCount,
			FailureCount:   j.FailureCount,
			AvailableAt:    j.AvailableAt,
			ClaimedBy:      j.ClaimedBy,
			ClaimedAt:      j.ClaimedAt,
			Error:          j.Error,
			ErrorKind:      string(j.ErrorKind),
			FailureSummary: j.FailureSummary,
			CreatedAt:      j.CreatedAt,
			UpdatedAt:      j.UpdatedAt,
		}
	}
	return dtos, nil
}

func (s *JobService) rosterJob(ctx context.Context, id string) (*models.Job, error) {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, "get job")
	}
	if j.Kind != config.KindRosterImport {
		return nil, common.Errf(http.StatusBadRequest, "job %s is not a roster import", id)
	}
	return j, nil
}

// ListMatches returns the fuzzy matches of a roster import.
func (s *JobService) ListMatches(ctx context.Context, id string) ([]dto.PendingMatchDTO, error) {
	if err := timedOut(ctx); err != nil {
		return nil, err
	}
	if _, err := s.rosterJob(ctx, id); err != nil {
		return nil, err
	}

	matches, err := s.matches.ListByJob(ctx, id)
	if err != nil {
		return nil, storeError(err, "list matches")
	}

	dtos := make([]dto.PendingMatchDTO, len(matches))
	for i, m := range matches {
		dtos[i] = dto.PendingMatchDTO{
			ID:               m.ID,
			RowIndex:         m.RowIndex,
			ParsedName:       m.ParsedName,
			ParsedRecord:     json.RawMessage(m.ParsedRecord),
			ExistingMemberID: m.ExistingMemberID,
			ExistingName:     m.ExistingName,
			MatchScore:       m.MatchScore,
			MatchReason:      m.MatchReason,
			Status:           m.Status,
			DecidedAt:        m.DecidedAt,
		}
	}
	return dtos, nil
}

// DecideMatches records approvals and rejections. Once no match is left
// undecided the job moves on to applying and is picked up by the next tick.
func (s *JobService) DecideMatches(ctx context.Context, id string, req *dto.MatchDecisionsDTO) (*dto.MatchDecisionResultDTO, error) {
	if err := timedOut(ctx); err != nil {
		return nil, err
	}

	j, err := s.rosterJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.Status != config.JobStatusAwaitingApproval {
		return nil, common.NewAPIError(http.StatusConflict, "job is not awaiting approval", map[string]any{
			"status": j.Status,
		})
	}

	decisions := make([]models.MatchDecision, len(req.Decisions))
	for i, d := range req.Decisions {
		decisions[i] = models.MatchDecision{MatchID: d.MatchID, Approve: d.Action == "approve"}
	}

	remaining, err := s.matches.Decide(ctx, id, decisions)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.Errf(http.StatusNotFound, "match not found")
		}
		return nil, storeError(err, "record decisions")
	}

	status := config.JobStatusAwaitingApproval
	if remaining == 0 {
		if err := s.repo.ResolveApproval(ctx, id); err != nil {
			return nil, storeError(err, "resume job")
		}
		status = config.JobStatusApplying
		s.logger.Info("api.matches.resolved", "job_id", id)
	}

	return &dto.MatchDecisionResultDTO{Remaining: remaining, Status: string(status)}, nil
}

// ResetJob puts an errored job back in the queue.
func (s *JobService) ResetJob(ctx context.Context, id string) error {
	if err := timedOut(ctx); err != nil {
		return err
	}
	if err := s.repo.Reset(ctx, id, s.lease); err != nil {
		return storeError(err, "reset job")
	}
	s.logger.Info("api.job.reset", "job_id", id)
	return nil
}

// CancelJob fails a job that has not finished.
func (s *JobService) CancelJob(ctx context.Context, id string, reason string) error {
	if err := timedOut(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "cancelled by operator"
	}
	if err := s.repo.Cancel(ctx, id, reason); err != nil {
		return storeError(err, "cancel job")
	}
	s.logger.Info("api.job.cancelled", "job_id", id, "reason", reason)
	return nil
}
