package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/models"
	"github.com/stretchr/testify/mock"
)

type JobRepoMock struct {
	mock.Mock
}

func (m *JobRepoMock) Create(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *JobRepoMock) Get(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) List(ctx context.Context, kind config.JobKind, status config.JobStatus) ([]models.Job, error) {
	args := m.Called(ctx, kind, status)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) Reset(ctx context.Context, id string, lease time.Duration) error {
	args := m.Called(ctx, id, lease)
	return args.Error(0)
}

func (m *JobRepoMock) Cancel(ctx context.Context, id string, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *JobRepoMock) ResolveApproval(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MatchRepoMock struct {
	mock.Mock
}

func (m *MatchRepoMock) ListByJob(ctx context.Context, jobID string) ([]models.PendingMatch, error) {
	args := m.Called(ctx, jobID)

	matches, _ := args.Get(0).([]models.PendingMatch)
	return matches, args.Error(1)
}

func (m *MatchRepoMock) Decide(ctx context.Context, jobID string, decisions []models.MatchDecision) (int64, error) {
	args := m.Called(ctx, jobID, decisions)
	return args.Get(0).(int64), args.Error(1)
}

type FileStoreMock struct {
	mock.Mock
}

func (m *FileStoreMock) NewKey(filename string) string {
	args := m.Called(filename)
	return args.String(0)
}

func (m *FileStoreMock) Put(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}
