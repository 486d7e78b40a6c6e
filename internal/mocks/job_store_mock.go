package mocks

import (
	"context"
	"encoding/json"

	"github.com/paygenio/paygen/internal/domain"
	"github.com/stretchr/testify/mock"
)

type JobStoreMock struct {
	mock.Mock
}

func (m *JobStoreMock) GetJobByPublicID(ctx context.Context, publicID string) (*domain.Job, error) {
	args := m.Called(ctx, publicID)

	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *JobStoreMock) MarkPaid(ctx context.Context, publicID, txHash string) error {
	args := m.Called(ctx, publicID, txHash)
	return args.Error(0)
}

func (m *JobStoreMock) MarkInProgress(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}

func (m *JobStoreMock) MarkCompleted(ctx context.Context, publicID string, output json.RawMessage) error {
	args := m.Called(ctx, publicID, output)
	return args.Error(0)
}

func (m *JobStoreMock) MarkFailed(ctx context.Context, publicID, reason, detail string) error {
	args := m.Called(ctx, publicID, reason, detail)
	return args.Error(0)
}
