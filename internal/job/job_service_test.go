package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/joshu-sajeev/brokerjobs/common"
	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/dto"
	"github.com/joshu-sajeev/brokerjobs/internal/mocks"
	"github.com/joshu-sajeev/brokerjobs/internal/models"
	"github.com/joshu-sajeev/brokerjobs/internal/pipeline/conflict"
	"github.com/joshu-sajeev/brokerjobs/internal/pipeline/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJobID = "8d7f5a52-4a0e-4a53-9d2e-3f4bb1f8f0a1"

type serviceMocks struct {
	repo    *mocks.JobRepoMock
	matches *mocks.MatchRepoMock
	files   *mocks.FileStoreMock
}

func newTestService() (*JobService, serviceMocks) {
	m := serviceMocks{
		repo:    new(mocks.JobRepoMock),
		matches: new(mocks.MatchRepoMock),
		files:   new(mocks.FileStoreMock),
	}
	return NewJobService(m.repo, m.matches, m.files, 5*time.Minute), m
}

func (m serviceMocks) assert(t *testing.T) {
	m.repo.AssertExpectations(t)
	m.matches.AssertExpectations(t)
	m.files.AssertExpectations(t)
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var apiErr common.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %T", err)
	return apiErr.Status
}

func cancelledCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestJobService_CreateConflictJob(t *testing.T) {
	validReq := func() *dto.ConflictJobCreateDTO {
		return &dto.ConflictJobCreateDTO{
			ClientName:      "  Acme  ",
			SPDKey:          "pdf-uploads/spd.pdf",
			SPDFilename:     "spd.pdf",
			HandbookKey:     "pdf-uploads/handbook.pdf",
			FocusAreas:      []string{"Short-Term Disability"},
			EmailRecipients: []string{"hr@acme.com"},
			Branding:        &dto.BrandingDTO{BrokerName: "Northside", PrimaryColor: "#112233"},
		}
	}

	tests := []struct {
		name       string
		ctx        context.Context
		setupMock  func(m serviceMocks)
		wantStatus int
	}{
		{
			name: "queues a pending job with the payload",
			ctx:  context.Background(),
			setupMock: func(m serviceMocks) {
				m.repo.On("Create", mock.Anything, mock.MatchedBy(func(j *models.Job) bool {
					var p conflict.Payload
					if err := json.Unmarshal(j.Payload, &p); err != nil {
						return false
					}
					return j.Kind == config.KindConflictAnalysis &&
						p.ClientName == "Acme" &&
						p.Branding != nil && p.Branding.BrokerName == "Northside" &&
						len(p.EmailRecipients) == 1
				})).Run(func(args mock.Arguments) {
					j := args.Get(1).(*models.Job)
					j.ID = testJobID
					j.Status = config.JobStatusPending
				}).Return(nil)
			},
		},
		{
			name:       "cancelled context",
			ctx:        cancelledCtx(),
			setupMock:  func(m serviceMocks) {},
			wantStatus: http.StatusRequestTimeout,
		},
		{
			name: "database error",
			ctx:  context.Background(),
			setupMock: func(m serviceMocks) {
				m.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "deadline while inserting",
			ctx:  context.Background(),
			setupMock: func(m serviceMocks) {
				m.repo.On("Create", mock.Anything, mock.Anything).Return(fmt.Errorf("create job: %w", context.DeadlineExceeded))
			},
			wantStatus: http.StatusRequestTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newTestService()
			tt.setupMock(m)

			resp, err := s.CreateConflictJob(tt.ctx, validReq())

			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
				assert.Nil(t, resp)
			} else {
				require.NoError(t, err)
				assert.Equal(t, testJobID, resp.ID)
				assert.Equal(t, "pending", resp.Status)
				assert.Equal(t, string(config.KindConflictAnalysis), resp.Kind)
			}
			m.assert(t)
		})
	}
}

func TestJobService_CreateRosterJob(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		setupMock   func(m serviceMocks)
		wantErr     bool
		errContains string
	}{
		{
			name:     "csv file",
			filename: "census.csv",
			setupMock: func(m serviceMocks) {
				m.repo.On("Create", mock.Anything, mock.MatchedBy(func(j *models.Job) bool {
					var p roster.Payload
					return json.Unmarshal(j.Payload, &p) == nil &&
						j.Kind == config.KindRosterImport &&
						p.TeamID == "team-1" && p.FileKey == "pdf-uploads/census.csv"
				})).Return(nil)
			},
		},
		{
			name:      "xlsx file",
			filename:  "Census.XLSX",
			setupMock: func(m serviceMocks) { m.repo.On("Create", mock.Anything, mock.Anything).Return(nil) },
		},
		{
			name:        "unsupported type",
			filename:    "census.docx",
			setupMock:   func(m serviceMocks) {},
			wantErr:     true,
			errContains: "unsupported roster file type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newTestService()
			tt.setupMock(m)

			_, err := s.CreateRosterJob(context.Background(), &dto.RosterJobCreateDTO{
				TeamID:   "team-1",
				FileKey:  "pdf-uploads/census.csv",
				Filename: tt.filename,
			})

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				m.repo.AssertNumberOfCalls(t, "Create", 0)
			} else {
				assert.NoError(t, err)
			}
			m.assert(t)
		})
	}
}

func TestJobService_Upload(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		body       []byte
		setupMock  func(m serviceMocks)
		wantStatus int
	}{
		{
			name:     "stores the file",
			filename: "spd.pdf",
			body:     []byte("%PDF-1.7"),
			setupMock: func(m serviceMocks) {
				m.files.On("NewKey", "spd.pdf").Return("pdf-uploads/2025/03/01/abc.pdf")
				m.files.On("Put", mock.Anything, "pdf-uploads/2025/03/01/abc.pdf", []byte("%PDF-1.7"), "application/pdf").Return(nil)
			},
		},
		{
			name:       "unsupported type",
			filename:   "notes.txt",
			body:       []byte("hello"),
			setupMock:  func(m serviceMocks) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty file",
			filename:   "spd.pdf",
			body:       nil,
			setupMock:  func(m serviceMocks) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:     "storage failure",
			filename: "spd.pdf",
			body:     []byte("%PDF-1.7"),
			setupMock: func(m serviceMocks) {
				m.files.On("NewKey", "spd.pdf").Return("k.pdf")
				m.files.On("Put", mock.Anything, "k.pdf", mock.Anything, mock.Anything).Return(errors.New("503 slow down"))
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newTestService()
			tt.setupMock(m)

			resp, err := s.Upload(context.Background(), tt.filename, "application/pdf", tt.body)

			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, "pdf-uploads/2025/03/01/abc.pdf", resp.Key)
				assert.Equal(t, int64(8), resp.Size)
			}
			m.assert(t)
		})
	}
}

func TestJobService_GetJob(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	conflictState, err := json.Marshal(conflict.State{
		Analysis: &conflict.Analysis{ExecutiveSummary: conflict.ExecutiveSummary{TotalConflicts: 3, Critical: 1, OverallRisk: "HIGH"}},
		SentTo:   []string{"hr@acme.com"},
	})
	require.NoError(t, err)

	rosterState, err := json.Marshal(roster.State{
		Records: []roster.Record{{RowIndex: 1, FullName: "Jane Doe"}, {RowIndex: 2, FullName: "John Roe"}},
		Match:   &roster.MatchSummary{Exact: []roster.ExactMatch{{RowIndex: 1, MemberID: 7}}, Fuzzy: 0, New: []int{2}},
		Import:  &roster.ImportResult{Imported: 1, Updated: 1},
	})
	require.NoError(t, err)

	tests := []struct {
		name       string
		job        *models.Job
		repoErr    error
		wantStatus int
		check      func(t *testing.T, resp *dto.JobStatusDTO)
	}{
		{
			name: "running job",
			job: &models.Job{ID: testJobID, Kind: config.KindConflictAnalysis, Status: config.JobStatusAnalyzing,
				Progress: 50, ProgressStep: "Analyzing conflicts", CreatedAt: now, UpdatedAt: now},
			check: func(t *testing.T, resp *dto.JobStatusDTO) {
				assert.Equal(t, "in_progress", resp.Status)
				assert.Equal(t, "analyzing", resp.Stage)
				assert.Equal(t, 50, resp.Progress)
				assert.Empty(t, resp.Result)
				assert.Empty(t, resp.FailureSummary)
			},
		},
		{
			name: "completed conflict analysis",
			job: &models.Job{ID: testJobID, Kind: config.KindConflictAnalysis, Status: config.JobStatusComplete,
				Progress: 100, StepState: conflictState, CompletedAt: &now},
			check: func(t *testing.T, resp *dto.JobStatusDTO) {
				assert.Equal(t, "complete", resp.Status)
				assert.JSONEq(t, `{"total_conflicts":3,"critical":1,"medium":0,"low":0,"overall_risk":"HIGH","sent_to":["hr@acme.com"]}`, string(resp.Result))
			},
		},
		{
			name: "completed roster import",
			job:  &models.Job{ID: testJobID, Kind: config.KindRosterImport, Status: config.JobStatusComplete, StepState: rosterState},
			check: func(t *testing.T, resp *dto.JobStatusDTO) {
				assert.JSONEq(t, `{"records":2,"invalid":0,"exact":1,"fuzzy":0,"new":1,"imported":1,"updated":1,"skipped":0}`, string(resp.Result))
			},
		},
		{
			name: "failed job shows the summary, not the raw error",
			job: &models.Job{ID: testJobID, Kind: config.KindRosterImport, Status: config.JobStatusError,
				Error: "terminal: pq: relation does not exist", FailureSummary: "This file type is not supported."},
			check: func(t *testing.T, resp *dto.JobStatusDTO) {
				assert.Equal(t, "failed", resp.Status)
				assert.Equal(t, "This file type is not supported.", resp.FailureSummary)
				body, err := json.Marshal(resp)
				require.NoError(t, err)
				assert.NotContains(t, string(body), "pq:")
			},
		},
		{
			name: "retrying job shows the summary",
			job: &models.Job{ID: testJobID, Kind: config.KindRosterImport, Status: config.JobStatusParsing,
				FailureCount: 1, FailureSummary: "A temporary problem interrupted processing."},
			check: func(t *testing.T, resp *dto.JobStatusDTO) {
				assert.Equal(t, "in_progress", resp.Status)
				assert.Equal(t, "A temporary problem interrupted processing.", resp.FailureSummary)
			},
		},
		{
			name: "unreadable state is left out",
			job:  &models.Job{ID: testJobID, Kind: config.KindRosterImport, Status: config.JobStatusMatching, StepState: []byte(`{"records":"x"}`)},
			check: func(t *testing.T, resp *dto.JobStatusDTO) {
				assert.Empty(t, resp.Result)
			},
		},
		{
			name:       "not found",
			repoErr:    fmt.Errorf("job not found: %w", gorm.ErrRecordNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "database error",
			repoErr:    errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newTestService()
			m.repo.On("Get", mock.Anything, testJobID).Return(tt.job, tt.repoErr)

			resp, err := s.GetJob(context.Background(), testJobID)

			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
			} else {
				require.NoError(t, err)
				tt.check(t, resp)
			}
			m.assert(t)
		})
	}
}

func TestJobService_ListJobs(t *testing.T) {
	t.Run("passes filters through", func(t *testing.T) {
		s, m := newTestService()
		m.repo.On("List", mock.Anything, config.KindRosterImport, config.JobStatusError).
			Return([]models.Job{{ID: testJobID, Kind: config.KindRosterImport, Status: config.JobStatusError, Error: "boom", ErrorKind: config.ErrorKindTerminal}}, nil)

		jobs, err := s.ListJobs(context.Background(), "roster-import", "error")

		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "boom", jobs[0].Error)
		assert.Equal(t, "terminal", jobs[0].ErrorKind)
		m.assert(t)
	})

	t.Run("no filters", func(t *testing.T) {
		s, m := newTestService()
		m.repo.On("List", mock.Anything, config.JobKind(""), config.JobStatus("")).Return([]models.Job{}, nil)

		jobs, err := s.ListJobs(context.Background(), "", "")

		require.NoError(t, err)
		assert.Empty(t, jobs)
		m.assert(t)
	})

	for _, tc := range []struct{ kind, status, msg string }{
		{"email", "", "invalid job kind"},
		{"", "running", "invalid job status"},
	} {
		t.Run(tc.msg, func(t *testing.T) {
			s, m := newTestService()

			_, err := s.ListJobs(context.Background(), tc.kind, tc.status)

			assert.EqualError(t, err, tc.msg)
			m.repo.AssertNumberOfCalls(t, "List", 0)
		})
	}
}

func TestJobService_DecideMatches(t *testing.T) {
	awaiting := &models.Job{ID: testJobID, Kind: config.KindRosterImport, Status: config.JobStatusAwaitingApproval}
	req := &dto.MatchDecisionsDTO{Decisions: []dto.MatchDecisionDTO{
		{MatchID: 1, Action: "approve"},
		{MatchID: 2, Action: "reject"},
	}}
	decisions := []models.MatchDecision{{MatchID: 1, Approve: true}, {MatchID: 2, Approve: false}}

	tests := []struct {
		name          string
		setupMock     func(m serviceMocks)
		wantStatus    int
		wantRemaining int64
		wantJobStatus string
	}{
		{
			name: "last decision resumes the job",
			setupMock: func(m serviceMocks) {
				m.repo.On("Get", mock.Anything, testJobID).Return(awaiting, nil)
				m.matches.On("Decide", mock.Anything, testJobID, decisions).Return(int64(0), nil)
				m.repo.On("ResolveApproval", mock.Anything, testJobID).Return(nil)
			},
			wantJobStatus: "applying",
		},
		{
			name: "matches still pending",
			setupMock: func(m serviceMocks) {
				m.repo.On("Get", mock.Anything, testJobID).Return(awaiting, nil)
				m.matches.On("Decide", mock.Anything, testJobID, decisions).Return(int64(3), nil)
			},
			wantRemaining: 3,
			wantJobStatus: "awaiting_approval",
		},
		{
			name: "job not awaiting approval",
			setupMock: func(m serviceMocks) {
				m.repo.On("Get", mock.Anything, testJobID).
					Return(&models.Job{ID: testJobID, Kind: config.KindRosterImport, Status: config.JobStatusMatching}, nil)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "not a roster job",
			setupMock: func(m serviceMocks) {
				m.repo.On("Get", mock.Anything, testJobID).
					Return(&models.Job{ID: testJobID, Kind: config.KindConflictAnalysis, Status: config.JobStatusAwaitingApproval}, nil)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown match",
			setupMock: func(m serviceMocks) {
				m.repo.On("Get", mock.Anything, testJobID).Return(awaiting, nil)
				m.matches.On("Decide", mock.Anything, testJobID, decisions).
					Return(int64(0), fmt.Errorf("decide pending matches: %w", gorm.ErrRecordNotFound))
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "job moved on concurrently",
			setupMock: func(m serviceMocks) {
				m.repo.On("Get", mock.Anything, testJobID).Return(awaiting, nil)
				m.matches.On("Decide", mock.Anything, testJobID, decisions).Return(int64(0), nil)
				m.repo.On("ResolveApproval", mock.Anything, testJobID).Return(models.ErrInvalidState)
			},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newTestService()
			tt.setupMock(m)

			resp, err := s.DecideMatches(context.Background(), testJobID, req)

			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantRemaining, resp.Remaining)
				assert.Equal(t, tt.wantJobStatus, resp.Status)
			}
			m.assert(t)
		})
	}
}

func TestJobService_ListMatches(t *testing.T) {
	s, m := newTestService()
	m.repo.On("Get", mock.Anything, testJobID).Return(&models.Job{ID: testJobID, Kind: config.KindRosterImport}, nil)
	m.matches.On("ListByJob", mock.Anything, testJobID).Return([]models.PendingMatch{
		{ID: 4, RowIndex: 2, ParsedName: "Jon Smith", ExistingMemberID: 9, ExistingName: "John Smith", MatchScore: 0.9, Status: "pending"},
	}, nil)

	matches, err := s.ListMatches(context.Background(), testJobID)

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint(9), matches[0].ExistingMemberID)
	assert.Equal(t, "Jon Smith", matches[0].ParsedName)
	m.assert(t)
}

func TestJobService_ResetJob(t *testing.T) {
	tests := []struct {
		name       string
		repoErr    error
		wantStatus int
	}{
		{name: "reset"},
		{name: "not in error", repoErr: fmt.Errorf("reset job: %w", models.ErrInvalidState), wantStatus: http.StatusConflict},
		{name: "claim still live", repoErr: fmt.Errorf("reset job: %w", models.ErrClaimActive), wantStatus: http.StatusConflict},
		{name: "missing", repoErr: gorm.ErrRecordNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newTestService()
			m.repo.On("Reset", mock.Anything, testJobID, 5*time.Minute).Return(tt.repoErr)

			err := s.ResetJob(context.Background(), testJobID)

			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
			} else {
				assert.NoError(t, err)
			}
			m.assert(t)
		})
	}
}

func TestJobService_CancelJob(t *testing.T) {
	s, m := newTestService()
	m.repo.On("Cancel", mock.Anything, testJobID, "cancelled by operator").Return(nil)

	assert.NoError(t, s.CancelJob(context.Background(), testJobID, "  "))
	m.assert(t)
}
