package wompi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rogerbox/pkg/utils"
)

func newFakeGateway(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		PublicKey:  "pub_test_123",
		PrivateKey: "prv_test_456",
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
	}, zap.NewNop())
}

func TestClient_TokenizeCard(t *testing.T) {
	client := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tokens/cards", r.URL.Path)
		assert.Equal(t, "Bearer pub_test_123", r.Header.Get("Authorization"))

		var card CardDetails
		require.NoError(t, json.NewDecoder(r.Body).Decode(&card))
		assert.Equal(t, "4242424242424242", card.Number)

		_, _ = w.Write([]byte(`{"status":"CREATED","data":{"id":"tok_test_1","status":"CREATED"}}`))
	})

	token, err := client.TokenizeCard(context.Background(), CardDetails{
		Number: "4242424242424242", CVC: "123", ExpMonth: "08", ExpYear: "28", CardHolder: "Ana",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok_test_1", token)
}

func TestClient_CreateAcceptanceToken(t *testing.T) {
	calls := 0
	client := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/merchants/pub_test_123", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"presigned_acceptance":{"acceptance_token":"acc_1","permalink":"https://x"}}}`))
	})

	for i := 0; i < 2; i++ {
		token, err := client.CreateAcceptanceToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "acc_1", token)
	}
	assert.Equal(t, 2, calls, "acceptance token must not be cached")
}

func TestClient_CreateTransaction(t *testing.T) {
	client := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions", r.URL.Path)
		assert.Equal(t, "Bearer prv_test_456", r.Header.Get("Authorization"))

		var req TransactionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ROGER-1-abc", req.Reference)
		assert.Equal(t, int64(5000000), req.AmountInCents)
		assert.Equal(t, "CARD", req.PaymentMethod.Type)

		_, _ = w.Write([]byte(`{"data":{"id":"tx_1","reference":"ROGER-1-abc","status":"approved","amount_in_cents":5000000,"currency":"COP","payment_method_type":"CARD"}}`))
	})

	tx, err := client.CreateTransaction(context.Background(), TransactionRequest{
		AcceptanceToken: "acc_1",
		AmountInCents:   5000000,
		Currency:        "COP",
		Signature:       "sig",
		CustomerEmail:   "a@example.com",
		PaymentMethod:   PaymentMethod{Type: "CARD", Token: "tok", Installments: 1},
		Reference:       "ROGER-1-abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "tx_1", tx.ID)
	assert.Equal(t, StatusApproved, tx.Status)
	assert.Contains(t, string(tx.Raw), `"tx_1"`)
}

func TestClient_GetTransaction_UnknownStatus(t *testing.T) {
	client := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/tx_9", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"id":"tx_9","status":"IN_REVIEW"}}`))
	})

	tx, err := client.GetTransaction(context.Background(), "tx_9")
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, tx.Status)

	_, err = client.GetTransaction(context.Background(), "")
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestClient_Non2xx(t *testing.T) {
	client := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"type":"INPUT_VALIDATION_ERROR"}}`))
	})

	_, err := client.CreateTransaction(context.Background(), TransactionRequest{Reference: "r"})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrGateway)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusUnprocessableEntity, gwErr.StatusCode)
	assert.Contains(t, gwErr.Body, "INPUT_VALIDATION_ERROR")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{PublicKey: "pub", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := client.CreateAcceptanceToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrGateway)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnvironment_BaseURL(t *testing.T) {
	assert.Equal(t, SandboxBaseURL, NewClient(Config{Environment: EnvSandbox}, nil).BaseURL())
	assert.Equal(t, ProductionBaseURL, NewClient(Config{Environment: EnvProduction}, nil).BaseURL())
	assert.Equal(t, "http://localhost:9", NewClient(Config{BaseURL: "http://localhost:9/"}, nil).BaseURL())
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusApproved, ParseStatus("approved"))
	assert.Equal(t, StatusVoided, ParseStatus(" VOIDED "))
	assert.Equal(t, StatusUnknown, ParseStatus("REFUNDED"))
	assert.False(t, StatusPending.IsFinal())
	assert.True(t, StatusDeclined.IsFinal())
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event":"transaction.updated","data":{"transaction":{"id":"tx_1","status":"APPROVED","reference":"ROGER-1-a","amount_in_cents":100}}}`))
	require.NoError(t, err)
	assert.Equal(t, "transaction.updated", ev.Event)
	assert.Equal(t, "ROGER-1-a", ev.Data.Transaction.Reference)
	require.NotNil(t, ev.Data.Transaction.AmountInCents)
	assert.Equal(t, int64(100), *ev.Data.Transaction.AmountInCents)

	_, err = ParseEvent([]byte(`{not json`))
	assert.Error(t, err)
}
