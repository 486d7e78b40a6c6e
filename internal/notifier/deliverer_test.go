package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paygenio/paygen/internal/domain"
	"github.com/paygenio/paygen/internal/notifier/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testFulfiller = "0x3333333333333333333333333333333333333333"
	testSecret    = "super-secret-signing-key"
)

type deliveryStoreMock struct {
	mock.Mock
}

func (m *deliveryStoreMock) GetEndpointByFulfiller(ctx context.Context, fulfiller string) (*storage.Endpoint, error) {
	args := m.Called(ctx, fulfiller)

	endpoint, _ := args.Get(0).(*storage.Endpoint)
	return endpoint, args.Error(1)
}

func (m *deliveryStoreMock) CreateDelivery(ctx context.Context, jobPublicID, event, endpointURL string) (int64, error) {
	args := m.Called(ctx, jobPublicID, event, endpointURL)
	return args.Get(0).(int64), args.Error(1)
}

func (m *deliveryStoreMock) RecordAttempt(ctx context.Context, deliveryID int64, statusCode int, attemptErr string) error {
	args := m.Called(ctx, deliveryID, statusCode, attemptErr)
	return args.Error(0)
}

func (m *deliveryStoreMock) FinishDelivery(ctx context.Context, deliveryID int64, state string) error {
	args := m.Called(ctx, deliveryID, state)
	return args.Error(0)
}

func testEvent() *domain.WebhookEvent {
	return &domain.WebhookEvent{
		Event:      domain.EventJobCompleted,
		JobID:      "11111111-2222-3333-4444-555555555555",
		ServiceKey: "summarize",
		Fulfiller:  testFulfiller,
		Input:      json.RawMessage(`{"text":"hello"}`),
		Price:      "0.500000",
		Timestamp:  time.Now().UTC(),
	}
}

// permissiveStore wires the mock for the attempt bookkeeping tests don't care
// about, keeping each test focused on the delivery path under test.
func permissiveStore(endpointURL string) *deliveryStoreMock {
	store := new(deliveryStoreMock)
	store.On("GetEndpointByFulfiller", mock.Anything, testFulfiller).
		Return(&storage.Endpoint{ID: 1, Fulfiller: testFulfiller, URL: endpointURL, Secret: testSecret}, nil)
	store.On("CreateDelivery", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(int64(7), nil)
	store.On("RecordAttempt", mock.Anything, int64(7), mock.Anything, mock.Anything).Return(nil)
	store.On("FinishDelivery", mock.Anything, int64(7), mock.Anything).Return(nil)
	return store
}

func newTestDeliverer(store DeliveryStore) *Deliverer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDeliverer(store, &DelivererConfig{
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Millisecond,
		AttemptTimeout: 2 * time.Second,
	}, logger)
}

func TestDeliverer_Deliver_FirstAttemptSucceeds(t *testing.T) {
	var gotBody []byte
	var gotSignature, gotEvent string
	requests := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Paygen-Signature")
		gotEvent = r.Header.Get("X-Paygen-Event")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := permissiveStore(srv.URL)
	d := newTestDeliverer(store)

	err := d.Deliver(context.Background(), testEvent())

	require.NoError(t, err)
	assert.Equal(t, 1, requests)
	assert.Equal(t, domain.EventJobCompleted, gotEvent)

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(gotBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSignature)

	// The payload identifies the job but never leaks routing metadata.
	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Contains(t, payload, "job_id")
	assert.Contains(t, payload, "event")
	assert.NotContains(t, payload, "fulfiller")

	store.AssertCalled(t, "FinishDelivery", mock.Anything, int64(7), storage.DeliveryStateDelivered)
}

func TestDeliverer_Deliver_TransientFailureRetried(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := permissiveStore(srv.URL)
	d := newTestDeliverer(store)

	err := d.Deliver(context.Background(), testEvent())

	require.NoError(t, err)
	assert.Equal(t, 3, requests)
	store.AssertCalled(t, "FinishDelivery", mock.Anything, int64(7), storage.DeliveryStateDelivered)
}

func TestDeliverer_Deliver_RejectedStopsRetrying(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	store := permissiveStore(srv.URL)
	d := newTestDeliverer(store)

	err := d.Deliver(context.Background(), testEvent())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeliveryRejected)
	assert.Equal(t, 1, requests)
	store.AssertCalled(t, "FinishDelivery", mock.Anything, int64(7), storage.DeliveryStateRejected)
}

func TestDeliverer_Deliver_AttemptsExhausted(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := permissiveStore(srv.URL)
	d := newTestDeliverer(store)

	err := d.Deliver(context.Background(), testEvent())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeliveryExhausted)
	assert.Equal(t, 3, requests)
	store.AssertCalled(t, "FinishDelivery", mock.Anything, int64(7), storage.DeliveryStateFailed)
	store.AssertNumberOfCalls(t, "RecordAttempt", 3)
}

func TestDeliverer_Deliver_NoEndpointDropsEvent(t *testing.T) {
	store := new(deliveryStoreMock)
	store.On("GetEndpointByFulfiller", mock.Anything, testFulfiller).
		Return(nil, domain.ErrEndpointNotFound)

	d := newTestDeliverer(store)

	err := d.Deliver(context.Background(), testEvent())

	require.NoError(t, err)
	store.AssertNotCalled(t, "CreateDelivery", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliverer_Deliver_EndpointLookupFailureIsRetryable(t *testing.T) {
	store := new(deliveryStoreMock)
	store.On("GetEndpointByFulfiller", mock.Anything, testFulfiller).
		Return(nil, assert.AnError)

	d := newTestDeliverer(store)

	err := d.Deliver(context.Background(), testEvent())

	require.Error(t, err)
	var retryable *domain.RetryableError
	assert.ErrorAs(t, err, &retryable)
}
