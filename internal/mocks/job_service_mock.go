package mocks

import (
	"context"

	"github.com/joshu-sajeev/brokerjobs/internal/dto"
	"github.com/stretchr/testify/mock"
)

type JobServiceMock struct {
	mock.Mock
}

func (m *JobServiceMock) Upload(ctx context.Context, filename, contentType string, body []byte) (*dto.UploadDTO, error) {
	args := m.Called(ctx, filename, contentType, body)

	resp, _ := args.Get(0).(*dto.UploadDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) CreateConflictJob(ctx context.Context, req *dto.ConflictJobCreateDTO) (*dto.JobCreatedDTO, error) {
	args := m.Called(ctx, req)

	resp, _ := args.Get(0).(*dto.JobCreatedDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) CreateRosterJob(ctx context.Context, req *dto.RosterJobCreateDTO) (*dto.JobCreatedDTO, error) {
	args := m.Called(ctx, req)

	resp, _ := args.Get(0).(*dto.JobCreatedDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) GetJob(ctx context.Context, id string) (*dto.JobStatusDTO, error) {
	args := m.Called(ctx, id)

	resp, _ := args.Get(0).(*dto.JobStatusDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, kind, status string) ([]dto.JobAdminDTO, error) {
	args := m.Called(ctx, kind, status)

	jobs, _ := args.Get(0).([]dto.JobAdminDTO)
	return jobs, args.Error(1)
}

func (m *JobServiceMock) ListMatches(ctx context.Context, id string) ([]dto.PendingMatchDTO, error) {
	args := m.Called(ctx, id)

	matches, _ := args.Get(0).([]dto.PendingMatchDTO)
	return matches, args.Error(1)
}

func (m *JobServiceMock) DecideMatches(ctx context.Context, id string, req *dto.MatchDecisionsDTO) (*dto.MatchDecisionResultDTO, error) {
	args := m.Called(ctx, id, req)

	resp, _ := args.Get(0).(*dto.MatchDecisionResultDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) ResetJob(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *JobServiceMock) CancelJob(ctx context.Context, id string, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}
