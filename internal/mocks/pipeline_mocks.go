package mocks

import (
	"context"
	"encoding/json"

	"github.com/paygenio/paygen/internal/domain"
	"github.com/paygenio/paygen/internal/payment"
	"github.com/stretchr/testify/mock"
)

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) Verify(ctx context.Context, txHash, expectedRecipient string, expectedAmount domain.Amount) (*payment.Verdict, error) {
	args := m.Called(ctx, txHash, expectedRecipient, expectedAmount)

	verdict, _ := args.Get(0).(*payment.Verdict)
	return verdict, args.Error(1)
}

type DispatcherMock struct {
	mock.Mock
}

func (m *DispatcherMock) Dispatch(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	args := m.Called(ctx, job)

	output, _ := args.Get(0).(json.RawMessage)
	return output, args.Error(1)
}

type EventPublisherMock struct {
	mock.Mock
}

func (m *EventPublisherMock) Publish(ctx context.Context, event *domain.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
